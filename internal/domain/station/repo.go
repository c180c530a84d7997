package station

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository mirrors registry state to durable storage. The registry stays
// the runtime source of truth; the mirror services dashboards and restarts.
type Repository interface {
	UpsertStation(ctx context.Context, st *Station) error
	UpsertEquipment(ctx context.Context, stationID string, eq Equipment) error
	ReplaceQueue(ctx context.Context, stationID string, entries []QueueEntry) error
	InsertAlert(ctx context.Context, stationID string, a Alert) error
	MarkAlertResolved(ctx context.Context, alertID uuid.UUID, at time.Time) error
	UpsertDailyMetrics(ctx context.Context, stationID string, m DailyMetrics) error
	PruneMetrics(ctx context.Context, stationID string, beforeDay string) error
	ListStations(ctx context.Context) ([]*Station, error)
}
