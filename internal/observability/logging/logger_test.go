package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.Disabled, ParseLevel("off"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestNewLoggerWritesJSONWithService(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	newLogger(&buf, "api", "info", FormatJSON)
	log.Debug().Msg("hidden")
	log.Info().Str("build_id", "b1").Msg("index_reloaded")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "index_reloaded", entry["message"])
	assert.Equal(t, "b1", entry["build_id"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewLoggerConsoleFormat(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	newLogger(&buf, "chat", "info", "console")
	log.Info().Msg("corpus_loaded")

	assert.Contains(t, buf.String(), "corpus_loaded")
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}
