package journey

import (
	"context"

	"github.com/google/uuid"
)

// Repository mirrors journey state to durable storage. The in-memory map is
// the runtime source of truth; the mirror services restarts and reporting.
type Repository interface {
	UpsertJourney(ctx context.Context, j *Journey) error
	GetJourney(ctx context.Context, id uuid.UUID) (*Journey, error)
	ListJourneys(ctx context.Context) ([]*Journey, error)
}
