package station

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Repository backed by PostgreSQL.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(_ context.Context) queryable { return r.pool }

const stationCols = `id, name, type, category, max_capacity, staff_on_duty, avg_service_minutes,
	is_active, status, queue_length_threshold, wait_minutes_threshold, utilization_threshold,
	required_for, flag_triggers`

func (r *repoPG) scanStation(row pgx.Row) (*Station, error) {
	var st Station
	err := row.Scan(&st.ID, &st.Name, &st.Type, &st.Category, &st.MaxCapacity, &st.StaffOnDuty,
		&st.AvgServiceMinutes, &st.IsActive, &st.Status, &st.Thresholds.QueueLength,
		&st.Thresholds.WaitMinutes, &st.Thresholds.Utilization, &st.RequiredFor, &st.FlagTriggers)
	return &st, err
}

func (r *repoPG) UpsertStation(ctx context.Context, st *Station) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO station (id, name, type, category, max_capacity, staff_on_duty, avg_service_minutes,
			is_active, status, queue_length_threshold, wait_minutes_threshold, utilization_threshold,
			required_for, flag_triggers)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name, type=EXCLUDED.type, category=EXCLUDED.category,
			max_capacity=EXCLUDED.max_capacity, staff_on_duty=EXCLUDED.staff_on_duty,
			avg_service_minutes=EXCLUDED.avg_service_minutes, is_active=EXCLUDED.is_active,
			status=EXCLUDED.status, queue_length_threshold=EXCLUDED.queue_length_threshold,
			wait_minutes_threshold=EXCLUDED.wait_minutes_threshold,
			utilization_threshold=EXCLUDED.utilization_threshold,
			required_for=EXCLUDED.required_for, flag_triggers=EXCLUDED.flag_triggers,
			updated_at=NOW()`,
		st.ID, st.Name, st.Type, st.Category, st.MaxCapacity, st.StaffOnDuty, st.AvgServiceMinutes,
		st.IsActive, st.Status, st.Thresholds.QueueLength, st.Thresholds.WaitMinutes,
		st.Thresholds.Utilization, st.RequiredFor, st.FlagTriggers)
	return err
}

func (r *repoPG) UpsertEquipment(ctx context.Context, stationID string, eq Equipment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO station_equipment (station_id, id, name, status, required)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (station_id, id) DO UPDATE SET
			name=EXCLUDED.name, status=EXCLUDED.status, required=EXCLUDED.required, updated_at=NOW()`,
		stationID, eq.ID, eq.Name, eq.Status, eq.Required)
	return err
}

func (r *repoPG) ReplaceQueue(ctx context.Context, stationID string, entries []QueueEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM station_queue_entry WHERE station_id = $1`, stationID); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO station_queue_entry (station_id, patient_id, session_id, tier, position, seq,
				enqueued_at, est_service_minutes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			stationID, e.PatientID, e.SessionID, e.Tier, e.Position, e.Seq,
			e.EnqueuedAt, e.EstServiceMinutes); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *repoPG) InsertAlert(ctx context.Context, stationID string, a Alert) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO station_alert (id, station_id, kind, severity, message, created_at, resolved, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, stationID, a.Kind, a.Severity, a.Message, a.CreatedAt, a.Resolved, a.ResolvedAt)
	return err
}

func (r *repoPG) MarkAlertResolved(ctx context.Context, alertID uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE station_alert SET resolved = TRUE, resolved_at = $2 WHERE id = $1`,
		alertID, at)
	return err
}

func (r *repoPG) UpsertDailyMetrics(ctx context.Context, stationID string, m DailyMetrics) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO station_daily_metrics (station_id, day, patients_served, total_wait_minutes,
			total_service_minutes, bottleneck_incidents, peak_utilization)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (station_id, day) DO UPDATE SET
			patients_served=EXCLUDED.patients_served,
			total_wait_minutes=EXCLUDED.total_wait_minutes,
			total_service_minutes=EXCLUDED.total_service_minutes,
			bottleneck_incidents=EXCLUDED.bottleneck_incidents,
			peak_utilization=EXCLUDED.peak_utilization`,
		stationID, m.Day, m.PatientsServed, m.TotalWaitMinutes,
		m.TotalServiceMinutes, m.BottleneckIncidents, m.PeakUtilization)
	return err
}

func (r *repoPG) PruneMetrics(ctx context.Context, stationID string, beforeDay string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM station_daily_metrics WHERE station_id = $1 AND day < $2`,
		stationID, beforeDay)
	return err
}

func (r *repoPG) ListStations(ctx context.Context) ([]*Station, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+stationCols+` FROM station ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []*Station
	for rows.Next() {
		st, err := r.scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, st := range stations {
		if err := r.loadEquipment(ctx, st); err != nil {
			return nil, err
		}
	}
	return stations, nil
}

func (r *repoPG) loadEquipment(ctx context.Context, st *Station) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, name, status, required FROM station_equipment WHERE station_id = $1 ORDER BY id`, st.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var eq Equipment
		if err := rows.Scan(&eq.ID, &eq.Name, &eq.Status, &eq.Required); err != nil {
			return err
		}
		st.Equipment = append(st.Equipment, eq)
	}
	return rows.Err()
}
