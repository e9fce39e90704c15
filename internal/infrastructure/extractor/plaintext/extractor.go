package plaintext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/core/ports"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

// Extract returns the object's text exactly as stored, minus a leading UTF-8
// byte order mark. Anything that is not valid UTF-8 is reported as
// ErrUnreadableFile.
func (e *Extractor) Extract(ctx context.Context, key string) (string, error) {
	reader, err := e.storage.Open(ctx, key)
	if err != nil {
		return "", domain.WrapError(domain.ErrUnreadableFile, "open transcript", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", domain.WrapError(domain.ErrUnreadableFile, "read transcript", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrUnreadableFile, "decode transcript", fmt.Errorf("%s is not valid utf-8", key))
	}
	if bytes.IndexByte(raw, 0) >= 0 {
		return "", domain.WrapError(domain.ErrUnreadableFile, "decode transcript", errors.New("binary content"))
	}

	return string(raw), nil
}
