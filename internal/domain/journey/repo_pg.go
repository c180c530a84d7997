package journey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Repository backed by PostgreSQL. Document-shaped
// fields (check-in, answers, risk, results) are stored as JSONB.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const journeyCols = `id, patient_id, patient_name, document_number, employer, exam_type, phase,
	progress, check_in, answers, medical_flags, risk, completed_stations, current_station,
	station_results, started_at, updated_at`

func (r *repoPG) UpsertJourney(ctx context.Context, j *Journey) error {
	checkIn, err := json.Marshal(j.CheckIn)
	if err != nil {
		return fmt.Errorf("encode check-in: %w", err)
	}
	answers, err := json.Marshal(j.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	var risk []byte
	if j.Risk != nil {
		if risk, err = json.Marshal(j.Risk); err != nil {
			return fmt.Errorf("encode risk: %w", err)
		}
	}
	results, err := json.Marshal(j.StationResults)
	if err != nil {
		return fmt.Errorf("encode station results: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO journey (id, patient_id, patient_name, document_number, employer, exam_type,
			phase, progress, check_in, answers, medical_flags, risk, completed_stations,
			current_station, station_results, started_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
			patient_name=EXCLUDED.patient_name, document_number=EXCLUDED.document_number,
			employer=EXCLUDED.employer, exam_type=EXCLUDED.exam_type, phase=EXCLUDED.phase,
			progress=EXCLUDED.progress, check_in=EXCLUDED.check_in, answers=EXCLUDED.answers,
			medical_flags=EXCLUDED.medical_flags, risk=EXCLUDED.risk,
			completed_stations=EXCLUDED.completed_stations,
			current_station=EXCLUDED.current_station,
			station_results=EXCLUDED.station_results, updated_at=EXCLUDED.updated_at`,
		j.ID, j.PatientID, j.PatientName, j.DocumentNumber, j.Employer, j.ExamType,
		j.Phase, j.Progress, checkIn, answers, j.MedicalFlags, risk, j.CompletedStations,
		j.CurrentStation, results, j.StartedAt, j.UpdatedAt)
	return err
}

func (r *repoPG) scanJourney(row pgx.Row) (*Journey, error) {
	var (
		j       Journey
		checkIn []byte
		answers []byte
		risk    []byte
		results []byte
	)
	err := row.Scan(&j.ID, &j.PatientID, &j.PatientName, &j.DocumentNumber, &j.Employer,
		&j.ExamType, &j.Phase, &j.Progress, &checkIn, &answers, &j.MedicalFlags, &risk,
		&j.CompletedStations, &j.CurrentStation, &results, &j.StartedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(checkIn) > 0 {
		if err := json.Unmarshal(checkIn, &j.CheckIn); err != nil {
			return nil, fmt.Errorf("decode check-in: %w", err)
		}
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &j.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	if len(risk) > 0 {
		j.Risk = &RiskProfile{}
		if err := json.Unmarshal(risk, j.Risk); err != nil {
			return nil, fmt.Errorf("decode risk: %w", err)
		}
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &j.StationResults); err != nil {
			return nil, fmt.Errorf("decode station results: %w", err)
		}
	}
	return &j, nil
}

func (r *repoPG) GetJourney(ctx context.Context, id uuid.UUID) (*Journey, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+journeyCols+` FROM journey WHERE id = $1`, id)
	j, err := r.scanJourney(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("journey %s: %w", id, ErrNotFound)
	}
	return j, err
}

func (r *repoPG) ListJourneys(ctx context.Context) ([]*Journey, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+journeyCols+` FROM journey ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Journey
	for rows.Next() {
		j, err := r.scanJourney(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
