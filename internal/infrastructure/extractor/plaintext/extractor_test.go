package plaintext

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/storage/localfs"
)

func extractFile(t *testing.T, data []byte) (string, error) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "playdate1.txt"), data, 0o644))
	return NewExtractor(localfs.New(dir)).Extract(context.Background(), "playdate1.txt")
}

func TestExtractKeepsSurroundingWhitespace(t *testing.T) {
	raw := "\n\n  Rusty: welcome back.\r\n\tWill: hi!  \n\n"
	got, err := extractFile(t, []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	fp := domain.FingerprintSource("playdate1.txt", got)
	assert.Equal(t, domain.FingerprintSource("playdate1.txt", raw), fp)
	assert.NotEqual(t, domain.FingerprintSource("playdate1.txt", "Rusty: welcome back.\r\n\tWill: hi!"), fp)
}

func TestExtractStripsByteOrderMark(t *testing.T) {
	got, err := extractFile(t, append([]byte{0xEF, 0xBB, 0xBF}, []byte(" ёж \n")...))
	require.NoError(t, err)
	assert.Equal(t, " ёж \n", got)
}

func TestExtractWhitespaceOnlyFileIsReturnedAsIs(t *testing.T) {
	got, err := extractFile(t, []byte(" \n\t "))
	require.NoError(t, err)
	assert.Equal(t, " \n\t ", got)
}

func TestExtractRejectsUndecodableContent(t *testing.T) {
	_, err := extractFile(t, []byte{0xff, 0xfe, 0x41})
	assert.True(t, domain.IsKind(err, domain.ErrUnreadableFile), "got %v", err)

	_, err = extractFile(t, []byte("text\x00more"))
	assert.True(t, domain.IsKind(err, domain.ErrUnreadableFile), "got %v", err)
}

func TestExtractMissingObject(t *testing.T) {
	_, err := NewExtractor(localfs.New(t.TempDir())).Extract(context.Background(), "gone.txt")
	assert.True(t, domain.IsKind(err, domain.ErrUnreadableFile), "got %v", err)
}
