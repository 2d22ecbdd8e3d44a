package ports

import (
	"context"

	"NichePress/internal/domain"
)

// NicheRegistry is the single source of truth for claimed topics. Per-slug
// operations are atomic; implementations must serialize concurrent attempts
// on the same slug.
type NicheRegistry interface {
	// Register inserts a new planned niche or, if the slug is already
	// claimed, returns the existing record untouched with created=false.
	Register(ctx context.Context, slug string, keywords []string) (domain.NicheRecord, bool, error)
	Get(ctx context.Context, slug string) (domain.NicheRecord, error)
	// UpdateStatus moves a niche along the state machine; lastError is
	// recorded only for transitions into failed.
	UpdateStatus(ctx context.Context, slug string, next domain.Status, lastError string) error
	// List returns records ordered by creation time, optionally filtered.
	List(ctx context.Context, filter *domain.Status) ([]domain.NicheRecord, error)
}

// GenerateRequest carries one prompt pair to the text-generation boundary.
type GenerateRequest struct {
	System string
	Prompt string
}

// Generator pushes prompts to an LLM API and returns the reply text.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// ImageSource looks up media assets; misses surface as domain.ErrNoImage.
type ImageSource interface {
	Search(ctx context.Context, query string) (domain.ImageRef, error)
}

// CitationResolver turns a reference URL into a titled citation.
type CitationResolver interface {
	Resolve(ctx context.Context, url string) (domain.Citation, error)
}

// OutputSink durably writes the final document; the path scheme is the
// sink's concern. Returns the path written for logging and notification.
type OutputSink interface {
	WriteDocument(ctx context.Context, slug string, doc domain.Document) (string, error)
}

// ArtifactCache persists intermediate stage outputs for resumability.
// Misses are reported via ok=false, not errors.
type ArtifactCache interface {
	Put(slug string, stage domain.Stage, artifact any) error
	Get(slug string, stage domain.Stage, into any) (bool, error)
}

// Notifier announces published niches to an outbound channel.
type Notifier interface {
	NotifyPublished(ctx context.Context, rec domain.NicheRecord, path string) error
}

// SweepDriver controls when the planned-niche sweep executes.
type SweepDriver interface {
	Start(ctx context.Context, job func()) error
	Stop(ctx context.Context) error
}
