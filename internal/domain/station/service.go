package station

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/platform/notify"
)

// Service wraps the registry with persistence write-behind and event
// notification. The registry is the runtime source of truth; repository
// save failures are logged, never surfaced to the caller.
type Service struct {
	registry *Registry
	repo     Repository
	notifier notify.Notifier
	log      zerolog.Logger
}

// NewService wires a station service.
func NewService(registry *Registry, repo Repository, notifier notify.Notifier, log zerolog.Logger) *Service {
	return &Service{
		registry: registry,
		repo:     repo,
		notifier: notifier,
		log:      log.With().Str("component", "station").Logger(),
	}
}

// Registry exposes the underlying registry handle for collaborators that
// read snapshots directly, such as the recommendation engine.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Snapshot returns deep-copied snapshots of every station, ordered by id.
func (s *Service) Snapshot() []*Station {
	return s.registry.Snapshot()
}

// OccupiedStation returns the station currently holding the patient's queue
// entry, or "" when the patient is not queued.
func (s *Service) OccupiedStation(patientID uuid.UUID) string {
	return s.registry.OccupiedStation(patientID)
}

// Provision registers the given stations and persists them.
func (s *Service) Provision(ctx context.Context, stations []*Station) error {
	for _, st := range stations {
		if err := s.registry.Add(st); err != nil {
			return err
		}
		if err := s.repo.UpsertStation(ctx, st); err != nil {
			return fmt.Errorf("persist station %s: %w", st.ID, err)
		}
		for _, eq := range st.Equipment {
			if err := s.repo.UpsertEquipment(ctx, st.ID, eq); err != nil {
				return fmt.Errorf("persist equipment %s/%s: %w", st.ID, eq.ID, err)
			}
		}
	}
	return nil
}

// Get returns a snapshot of one station.
func (s *Service) Get(_ context.Context, stationID string) (*Station, error) {
	return s.registry.Get(stationID)
}

// List returns snapshots of all matching stations.
func (s *Service) List(_ context.Context, f Filter) []*Station {
	return s.registry.List(f)
}

// Queue returns a station's live queue with recomputed wait estimates.
func (s *Service) Queue(_ context.Context, stationID string) (*QueueView, error) {
	return s.registry.QueueOf(stationID)
}

// Admit inserts a patient into a station's queue.
func (s *Service) Admit(ctx context.Context, stationID string, patientID, sessionID uuid.UUID, tier PriorityTier) (*Admission, error) {
	adm, err := s.registry.Admit(stationID, patientID, sessionID, tier)
	if err != nil {
		return nil, err
	}

	s.persistStation(ctx, stationID)
	s.persistAlerts(ctx, stationID, adm.NewAlerts)

	s.emit(ctx, notify.Event{
		Kind:      notify.KindQueueAdmitted,
		StationID: stationID,
		PatientID: patientID.String(),
		Severity:  "info",
		Message:   fmt.Sprintf("patient admitted to %s at position %d (%s)", stationID, adm.Entry.Position, tier),
	})
	s.emitStatusChange(ctx, stationID, adm.PrevStatus, adm.Status)
	s.emitAlerts(ctx, stationID, adm.NewAlerts)

	return adm, nil
}

// Remove takes a patient out of a station's queue.
func (s *Service) Remove(ctx context.Context, stationID string, patientID uuid.UUID) (*Removal, error) {
	rem, err := s.registry.Remove(stationID, patientID)
	if err != nil {
		return nil, err
	}

	s.persistStation(ctx, stationID)
	s.persistAlerts(ctx, stationID, rem.NewAlerts)

	s.emit(ctx, notify.Event{
		Kind:      notify.KindQueueRemoved,
		StationID: stationID,
		PatientID: patientID.String(),
		Severity:  "info",
		Message:   fmt.Sprintf("patient left %s after %d min", stationID, rem.WaitedMinutes),
	})
	s.emitStatusChange(ctx, stationID, rem.PrevStatus, rem.Status)
	s.emitAlerts(ctx, stationID, rem.NewAlerts)

	return rem, nil
}

// SetEquipmentStatus updates one equipment item and re-derives station state.
func (s *Service) SetEquipmentStatus(ctx context.Context, stationID, equipmentID string, status EquipmentStatus) (*EquipmentUpdate, error) {
	upd, err := s.registry.SetEquipmentStatus(stationID, equipmentID, status)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpsertEquipment(ctx, stationID, upd.Equipment); err != nil {
		s.log.Error().Err(err).Str("station_id", stationID).Str("equipment_id", equipmentID).Msg("persist equipment failed")
	}
	s.persistStation(ctx, stationID)
	s.persistAlerts(ctx, stationID, upd.NewAlerts)

	s.emitStatusChange(ctx, stationID, upd.PrevStatus, upd.Status)
	s.emitAlerts(ctx, stationID, upd.NewAlerts)

	return upd, nil
}

// Deactivate takes a station out of service.
func (s *Service) Deactivate(ctx context.Context, stationID string) (*ActivationChange, error) {
	ch, err := s.registry.Deactivate(stationID)
	if err != nil {
		return nil, err
	}
	s.persistStation(ctx, stationID)
	s.emitStatusChange(ctx, stationID, ch.PrevStatus, ch.Status)
	return ch, nil
}

// Reactivate returns a station to service.
func (s *Service) Reactivate(ctx context.Context, stationID string) (*ActivationChange, error) {
	ch, err := s.registry.Reactivate(stationID)
	if err != nil {
		return nil, err
	}
	s.persistStation(ctx, stationID)
	s.emitStatusChange(ctx, stationID, ch.PrevStatus, ch.Status)
	return ch, nil
}

// Alerts returns a station's alerts, newest first.
func (s *Service) Alerts(_ context.Context, stationID string, unresolvedOnly bool) ([]Alert, error) {
	return s.registry.Alerts(stationID, unresolvedOnly)
}

// ResolveAlert marks an alert resolved.
func (s *Service) ResolveAlert(ctx context.Context, stationID string, alertID uuid.UUID) (*Alert, error) {
	alert, err := s.registry.ResolveAlert(stationID, alertID)
	if err != nil {
		return nil, err
	}

	if alert.ResolvedAt != nil {
		if err := s.repo.MarkAlertResolved(ctx, alertID, *alert.ResolvedAt); err != nil {
			s.log.Error().Err(err).Str("station_id", stationID).Str("alert_id", alertID.String()).Msg("persist alert resolution failed")
		}
	}

	s.emit(ctx, notify.Event{
		Kind:      notify.KindAlertResolved,
		StationID: stationID,
		Severity:  "info",
		Message:   fmt.Sprintf("%s alert resolved at %s", alert.Kind, stationID),
	})
	return alert, nil
}

// Metrics returns a station's daily rollups, newest day first.
func (s *Service) Metrics(_ context.Context, stationID string) ([]DailyMetrics, error) {
	return s.registry.Metrics(stationID)
}

// BoardRow is one station's line on the live dashboard.
type BoardRow struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Type                 Type   `json:"type"`
	Status               Status `json:"status"`
	QueueLength          int    `json:"queue_length"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
	StaffOnDuty          int    `json:"staff_on_duty"`
	OpenAlerts           int    `json:"open_alerts"`
}

// Board returns the dashboard summary for every station, ordered by id.
func (s *Service) Board(_ context.Context) []BoardRow {
	snapshot := s.registry.Snapshot()
	rows := make([]BoardRow, 0, len(snapshot))
	for _, st := range snapshot {
		open := 0
		for _, a := range st.Alerts {
			if !a.Resolved {
				open++
			}
		}
		rows = append(rows, BoardRow{
			ID:                   st.ID,
			Name:                 st.Name,
			Type:                 st.Type,
			Status:               st.Status,
			QueueLength:          st.QueueLength(),
			EstimatedWaitMinutes: st.NewEntryWait(),
			StaffOnDuty:          st.StaffOnDuty,
			OpenAlerts:           open,
		})
	}
	return rows
}

// persistStation mirrors the station's current state to the repository:
// core row, queue contents, and the latest daily rollup.
func (s *Service) persistStation(ctx context.Context, stationID string) {
	st, err := s.registry.Get(stationID)
	if err != nil {
		s.log.Error().Err(err).Str("station_id", stationID).Msg("snapshot for persistence failed")
		return
	}

	if err := s.repo.UpsertStation(ctx, st); err != nil {
		s.log.Error().Err(err).Str("station_id", stationID).Msg("persist station failed")
	}
	if err := s.repo.ReplaceQueue(ctx, stationID, st.Queue); err != nil {
		s.log.Error().Err(err).Str("station_id", stationID).Msg("persist queue failed")
	}

	if len(st.Metrics) == 0 {
		return
	}
	latest := st.Metrics[0]
	for _, m := range st.Metrics[1:] {
		if m.Day > latest.Day {
			latest = m
		}
	}
	if err := s.repo.UpsertDailyMetrics(ctx, stationID, latest); err != nil {
		s.log.Error().Err(err).Str("station_id", stationID).Msg("persist daily metrics failed")
	}
	if err := s.repo.PruneMetrics(ctx, stationID, pruneCutoff(latest.Day)); err != nil {
		s.log.Error().Err(err).Str("station_id", stationID).Msg("prune daily metrics failed")
	}
}

func (s *Service) persistAlerts(ctx context.Context, stationID string, alerts []Alert) {
	for _, a := range alerts {
		if err := s.repo.InsertAlert(ctx, stationID, a); err != nil {
			s.log.Error().Err(err).Str("station_id", stationID).Str("alert_id", a.ID.String()).Msg("persist alert failed")
		}
	}
}

func (s *Service) emit(ctx context.Context, event notify.Event) {
	event.Timestamp = s.registry.Now()
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("kind", event.Kind).Msg("notify failed")
	}
}

func (s *Service) emitStatusChange(ctx context.Context, stationID string, prev, current Status) {
	if prev == current {
		return
	}
	s.emit(ctx, notify.Event{
		Kind:      notify.KindStationStatusChanged,
		StationID: stationID,
		Severity:  "info",
		Message:   fmt.Sprintf("station %s is now %s", stationID, current),
	})
}

func (s *Service) emitAlerts(ctx context.Context, stationID string, alerts []Alert) {
	for _, a := range alerts {
		s.emit(ctx, notify.Event{
			Kind:      notify.KindAlertRaised,
			StationID: stationID,
			Severity:  a.Severity,
			Message:   a.Message,
		})
	}
}
