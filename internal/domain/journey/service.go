package journey

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/domain/routing"
	"github.com/clinicflow/clinicflow/internal/domain/station"
	"github.com/clinicflow/clinicflow/internal/platform/notify"
	"github.com/clinicflow/clinicflow/internal/platform/policy"
)

// StationDirectory is the slice of the station service the journey flow
// needs: queue admission, removal, and read-only snapshots.
type StationDirectory interface {
	Admit(ctx context.Context, stationID string, patientID, sessionID uuid.UUID, tier station.PriorityTier) (*station.Admission, error)
	Remove(ctx context.Context, stationID string, patientID uuid.UUID) (*station.Removal, error)
	Get(ctx context.Context, stationID string) (*station.Station, error)
	Snapshot() []*station.Station
	OccupiedStation(patientID uuid.UUID) string
}

// Service owns all journeys. Transitions for one journey are serialized by a
// per-journey lock; different journeys proceed fully in parallel.
type Service struct {
	mu       sync.Mutex
	journeys map[uuid.UUID]*Journey
	locks    map[uuid.UUID]*sync.Mutex
	now      func() time.Time

	stations StationDirectory
	engine   *routing.Engine
	risk     policy.RiskPolicy
	repo     Repository
	notifier notify.Notifier
	log      zerolog.Logger
}

// NewService wires a journey service.
func NewService(stations StationDirectory, engine *routing.Engine, risk policy.RiskPolicy, repo Repository, notifier notify.Notifier, log zerolog.Logger) *Service {
	return &Service{
		journeys: make(map[uuid.UUID]*Journey),
		locks:    make(map[uuid.UUID]*sync.Mutex),
		now:      time.Now,
		stations: stations,
		engine:   engine,
		risk:     risk,
		repo:     repo,
		notifier: notifier,
		log:      log.With().Str("component", "journey").Logger(),
	}
}

// SetClock replaces the service's time source for deterministic tests.
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Service) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

// Restore loads persisted journeys into memory. Called once at startup,
// before the service takes traffic.
func (s *Service) Restore(ctx context.Context) error {
	loaded, err := s.repo.ListJourneys(ctx)
	if err != nil {
		return fmt.Errorf("restore journeys: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range loaded {
		s.journeys[j.ID] = j
		s.locks[j.ID] = &sync.Mutex{}
	}
	s.log.Info().Int("count", len(loaded)).Msg("journeys restored")
	return nil
}

// StartInput is the intake payload for Start.
type StartInput struct {
	PatientID      uuid.UUID
	PatientName    string
	DocumentNumber string
	Employer       string
	ExamType       string
}

// Start creates a journey in reception. A zero PatientID is assigned one.
func (s *Service) Start(ctx context.Context, in StartInput) (*Journey, error) {
	if in.PatientName == "" {
		return nil, fmt.Errorf("patient name is required")
	}
	if !s.engine.Rules().KnownExamType(in.ExamType) {
		return nil, fmt.Errorf("unknown examination type %q", in.ExamType)
	}
	if in.PatientID == uuid.Nil {
		in.PatientID = uuid.New()
	}

	j := New(uuid.New(), PatientInfo{
		PatientID:      in.PatientID,
		PatientName:    in.PatientName,
		DocumentNumber: in.DocumentNumber,
		Employer:       in.Employer,
		ExamType:       in.ExamType,
	}, s.clock())

	s.mu.Lock()
	s.journeys[j.ID] = j
	s.locks[j.ID] = &sync.Mutex{}
	s.mu.Unlock()

	clone := j.Clone()
	s.persist(ctx, clone)
	s.emit(ctx, notify.Event{
		Kind:      notify.KindJourneyPhaseChanged,
		PatientID: j.PatientID.String(),
		Severity:  "info",
		Message:   fmt.Sprintf("journey %s started in reception", j.ID),
	})
	return clone, nil
}

// withJourney runs fn under the journey's lock and returns a fresh clone.
func (s *Service) withJourney(id uuid.UUID, fn func(j *Journey) error) (*Journey, error) {
	s.mu.Lock()
	j, ok := s.journeys[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("journey %s: %w", id, ErrNotFound)
	}
	lock := s.locks[id]
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	if fn != nil {
		if err := fn(j); err != nil {
			return nil, err
		}
	}
	return j.Clone(), nil
}

// Get returns a snapshot of one journey.
func (s *Service) Get(_ context.Context, id uuid.UUID) (*Journey, error) {
	return s.withJourney(id, nil)
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Phase    Phase
	ExamType string
	Active   *bool
}

// List returns snapshots of matching journeys, newest first.
func (s *Service) List(_ context.Context, f ListFilter) []*Journey {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.journeys))
	for id := range s.journeys {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	out := make([]*Journey, 0, len(ids))
	for _, id := range ids {
		j, err := s.withJourney(id, nil)
		if err != nil {
			continue
		}
		if f.Phase != "" && j.Phase != f.Phase {
			continue
		}
		if f.ExamType != "" && j.ExamType != f.ExamType {
			continue
		}
		if f.Active != nil && j.Active() != *f.Active {
			continue
		}
		out = append(out, j)
	}

	sort.Slice(out, func(i, k int) bool {
		if !out[i].StartedAt.Equal(out[k].StartedAt) {
			return out[i].StartedAt.After(out[k].StartedAt)
		}
		return out[i].ID.String() < out[k].ID.String()
	})
	return out
}

// Recommendations ranks stations for the journey against a live snapshot.
// Pure read: no phase requirement, no state change.
func (s *Service) Recommendations(_ context.Context, id uuid.UUID) ([]routing.Recommendation, error) {
	j, err := s.withJourney(id, nil)
	if err != nil {
		return nil, err
	}
	return s.engine.Recommend(patientContext(j), s.stations.Snapshot()), nil
}

// CompleteReception moves reception -> questionnaire.
func (s *Service) CompleteReception(ctx context.Context, id uuid.UUID, checkIn map[string]any) (*Journey, error) {
	clone, err := s.withJourney(id, func(j *Journey) error {
		return j.CompleteReception(checkIn, s.clock())
	})
	if err != nil {
		return nil, err
	}
	s.persist(ctx, clone)
	s.emitPhase(ctx, clone, PhaseReception)
	return clone, nil
}

// UpdateQuestionnaire merges partial answers while in questionnaire.
func (s *Service) UpdateQuestionnaire(ctx context.Context, id uuid.UUID, partial map[string]any, progress int) (*Journey, error) {
	clone, err := s.withJourney(id, func(j *Journey) error {
		return j.UpdateQuestionnaire(partial, progress, s.clock())
	})
	if err != nil {
		return nil, err
	}
	s.persist(ctx, clone)
	return clone, nil
}

// CompleteQuestionnaire stores answers and flags, derives the risk profile,
// and moves questionnaire -> station_routing.
func (s *Service) CompleteQuestionnaire(ctx context.Context, id uuid.UUID, answers map[string]any, flags []string) (*Journey, error) {
	risk := DeriveRiskProfile(s.risk, flags)
	clone, err := s.withJourney(id, func(j *Journey) error {
		return j.CompleteQuestionnaire(answers, flags, risk, s.clock())
	})
	if err != nil {
		return nil, err
	}
	s.persist(ctx, clone)
	s.emitPhase(ctx, clone, PhaseQuestionnaire)
	return clone, nil
}

// GenerateRouting produces the ranked recommendation list for the current
// routing round and records that routing ran.
func (s *Service) GenerateRouting(ctx context.Context, id uuid.UUID) (*Journey, []routing.Recommendation, error) {
	clone, err := s.withJourney(id, func(j *Journey) error {
		return j.MarkRoutingGenerated(s.clock())
	})
	if err != nil {
		return nil, nil, err
	}
	s.persist(ctx, clone)
	recs := s.engine.Recommend(patientContext(clone), s.stations.Snapshot())
	return clone, recs, nil
}

// SelectStation admits the patient into the chosen station's queue at the
// tier the engine recommends and moves station_routing -> examination. The
// journey is left unchanged when admission fails.
func (s *Service) SelectStation(ctx context.Context, id uuid.UUID, stationID string) (*Journey, *station.Admission, error) {
	var adm *station.Admission
	clone, err := s.withJourney(id, func(j *Journey) error {
		if err := j.guard(PhaseStationRouting, PhaseExamination); err != nil {
			return err
		}
		tier := s.engine.TierFor(patientContext(j), s.stations.Snapshot(), stationID)
		a, err := s.stations.Admit(ctx, stationID, j.PatientID, j.ID, tier)
		if err != nil {
			return err
		}
		adm = a
		return j.SelectStation(stationID, s.clock())
	})
	if err != nil {
		return nil, nil, err
	}
	s.persist(ctx, clone)
	s.emitPhase(ctx, clone, PhaseStationRouting)
	return clone, adm, nil
}

// CompleteStation releases the patient's queue entry, records the station's
// results, and either finishes the journey or loops back to routing.
func (s *Service) CompleteStation(ctx context.Context, id uuid.UUID, stationID string, results map[string]any) (*Journey, bool, error) {
	var finished bool
	var from Phase
	clone, err := s.withJourney(id, func(j *Journey) error {
		if err := j.guard(PhaseExamination, PhaseStationRouting); err != nil {
			return err
		}
		if _, err := s.stations.Get(ctx, stationID); err != nil {
			return err
		}
		if _, err := s.stations.Remove(ctx, stationID, j.PatientID); err != nil && !errors.Is(err, station.ErrNotFound) {
			return err
		}
		from = j.Phase
		f, err := j.CompleteStation(stationID, results, s.engine.Rules().RequiredStations(j.ExamType), s.clock())
		if err != nil {
			return err
		}
		finished = f
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	s.persist(ctx, clone)
	s.emitPhase(ctx, clone, from)
	return clone, finished, nil
}

// Cancel terminates the journey and releases any queue entry the patient
// still holds. Queue release failures are logged, never block the cancel.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Journey, error) {
	var from Phase
	clone, err := s.withJourney(id, func(j *Journey) error {
		from = j.Phase
		if err := j.Cancel(s.clock()); err != nil {
			return err
		}
		if held := s.stations.OccupiedStation(j.PatientID); held != "" {
			if _, err := s.stations.Remove(ctx, held, j.PatientID); err != nil && !errors.Is(err, station.ErrNotFound) {
				s.log.Warn().Err(err).Str("journey_id", id.String()).Str("station_id", held).Msg("queue release on cancel failed")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.persist(ctx, clone)
	s.emit(ctx, notify.Event{
		Kind:      notify.KindJourneyCancelled,
		PatientID: clone.PatientID.String(),
		Severity:  "warning",
		Message:   fmt.Sprintf("journey %s cancelled while in %s", clone.ID, from),
	})
	return clone, nil
}

func patientContext(j *Journey) routing.PatientContext {
	return routing.PatientContext{
		MedicalFlags:      j.MedicalFlags,
		ExamType:          j.ExamType,
		CompletedStations: j.CompletedStations,
	}
}

func (s *Service) persist(ctx context.Context, j *Journey) {
	if err := s.repo.UpsertJourney(ctx, j); err != nil {
		s.log.Error().Err(err).Str("journey_id", j.ID.String()).Msg("persist journey failed")
	}
}

func (s *Service) emit(ctx context.Context, event notify.Event) {
	event.Timestamp = s.clock()
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("kind", event.Kind).Msg("notify failed")
	}
}

func (s *Service) emitPhase(ctx context.Context, j *Journey, from Phase) {
	s.emit(ctx, notify.Event{
		Kind:      notify.KindJourneyPhaseChanged,
		PatientID: j.PatientID.String(),
		Severity:  "info",
		Message:   fmt.Sprintf("journey %s moved %s to %s", j.ID, from, j.Phase),
	})
}
