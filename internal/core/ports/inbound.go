package ports

import (
	"context"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
)

// QuestionAnswerer is the inbound contract for answering against the live index.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question string) (*domain.Answer, error)
}

// IndexManager is the inbound contract for (re)building and reloading the live index.
type IndexManager interface {
	Rebuild(ctx context.Context, force bool) (domain.IndexManifest, error)
	Reload(ctx context.Context) error
	Manifest() (domain.IndexManifest, bool)
}
