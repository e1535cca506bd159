package repositories

import (
	"context"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
)

// OutcomeSearchRepository indexes completed screening outcomes for the
// history review dashboard.
type OutcomeSearchRepository interface {
	// InitSchema creates the outcome collection if it does not exist.
	InitSchema(ctx context.Context) error

	// Index upserts one outcome document.
	Index(ctx context.Context, outcome *entities.ScreeningOutcome) error

	// Search queries outcomes by free text and optional facets.
	Search(ctx context.Context, query OutcomeQuery) ([]*entities.ScreeningOutcome, error)
}

// OutcomeQuery is a history search request.
type OutcomeQuery struct {
	Text         string
	School       string
	Grade        string
	NeedsGlasses *bool
	Limit        int
	Offset       int
}
