package ports

import (
	"context"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
)

// RunStore is the arena of live pipeline contexts, keyed by run id.
// Implementations hand out independent copies: mutating a loaded context has no
// effect until Save, and never affects any other run.
type RunStore interface {
	// Create registers a fresh context. It fails if the run id already exists.
	Create(ctx context.Context, pc *domain.PipelineContext) error

	// Load returns the context of runID or domain.ErrRunNotFound.
	Load(ctx context.Context, runID string) (*domain.PipelineContext, error)

	// Save replaces the stored context. It returns domain.ErrRunNotFound if the
	// run already ended or expired.
	Save(ctx context.Context, pc *domain.PipelineContext) error

	// Delete ends the run and reports whether a stored run was removed.
	// Deleting an unknown run is not an error.
	Delete(ctx context.Context, runID string) (bool, error)

	// Close releases the store's resources.
	Close() error
}

// Sweeper is implemented by run stores that need explicit expiry of abandoned runs.
type Sweeper interface {
	// Sweep removes expired runs and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}
