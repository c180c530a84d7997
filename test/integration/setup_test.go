// Package integration wires the real station registry, routing engine, and
// journey service together the way the server does and drives whole clinic
// flows through the stack. Only the Postgres mirror is swapped for in-memory
// repositories, so every test is deterministic and runs without a database.
package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/domain/journey"
	"github.com/clinicflow/clinicflow/internal/domain/routing"
	"github.com/clinicflow/clinicflow/internal/domain/station"
	"github.com/clinicflow/clinicflow/internal/platform/notify"
	"github.com/clinicflow/clinicflow/internal/platform/policy"
)

// clinicOpen is the instant every test clock starts at.
var clinicOpen = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{t: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memStationRepo is an in-memory double for the station mirror.
type memStationRepo struct {
	mu       sync.Mutex
	stations map[string]*station.Station
	queues   map[string][]station.QueueEntry
	alerts   map[uuid.UUID]station.Alert
	resolved map[uuid.UUID]time.Time
	metrics  map[string]map[string]station.DailyMetrics
}

func newMemStationRepo() *memStationRepo {
	return &memStationRepo{
		stations: make(map[string]*station.Station),
		queues:   make(map[string][]station.QueueEntry),
		alerts:   make(map[uuid.UUID]station.Alert),
		resolved: make(map[uuid.UUID]time.Time),
		metrics:  make(map[string]map[string]station.DailyMetrics),
	}
}

func (m *memStationRepo) UpsertStation(_ context.Context, st *station.Station) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stations[st.ID] = st.Clone()
	return nil
}

func (m *memStationRepo) UpsertEquipment(_ context.Context, _ string, _ station.Equipment) error {
	return nil
}

func (m *memStationRepo) ReplaceQueue(_ context.Context, stationID string, entries []station.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[stationID] = append([]station.QueueEntry(nil), entries...)
	return nil
}

func (m *memStationRepo) InsertAlert(_ context.Context, _ string, a station.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[a.ID] = a
	return nil
}

func (m *memStationRepo) MarkAlertResolved(_ context.Context, alertID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved[alertID] = at
	return nil
}

func (m *memStationRepo) UpsertDailyMetrics(_ context.Context, stationID string, dm station.DailyMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	days, ok := m.metrics[stationID]
	if !ok {
		days = make(map[string]station.DailyMetrics)
		m.metrics[stationID] = days
	}
	days[dm.Day] = dm
	return nil
}

func (m *memStationRepo) PruneMetrics(_ context.Context, stationID string, beforeDay string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for day := range m.metrics[stationID] {
		if day < beforeDay {
			delete(m.metrics[stationID], day)
		}
	}
	return nil
}

func (m *memStationRepo) ListStations(_ context.Context) ([]*station.Station, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*station.Station, 0, len(m.stations))
	for _, st := range m.stations {
		out = append(out, st.Clone())
	}
	return out, nil
}

// queue returns the mirrored queue for one station.
func (m *memStationRepo) queue(stationID string) []station.QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]station.QueueEntry(nil), m.queues[stationID]...)
}

// dailyMetrics returns the mirrored rollup for one station and day.
func (m *memStationRepo) dailyMetrics(stationID, day string) (station.DailyMetrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dm, ok := m.metrics[stationID][day]
	return dm, ok
}

// resolvedAt reports whether an alert resolution reached the mirror.
func (m *memStationRepo) resolvedAt(alertID uuid.UUID) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.resolved[alertID]
	return at, ok
}

// memJourneyRepo is an in-memory double for the journey store.
type memJourneyRepo struct {
	mu       sync.Mutex
	journeys map[uuid.UUID]*journey.Journey
}

func newMemJourneyRepo() *memJourneyRepo {
	return &memJourneyRepo{journeys: make(map[uuid.UUID]*journey.Journey)}
}

func (m *memJourneyRepo) UpsertJourney(_ context.Context, j *journey.Journey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journeys[j.ID] = j.Clone()
	return nil
}

func (m *memJourneyRepo) GetJourney(_ context.Context, id uuid.UUID) (*journey.Journey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.journeys[id]
	if !ok {
		return nil, journey.ErrNotFound
	}
	return j.Clone(), nil
}

func (m *memJourneyRepo) ListJourneys(_ context.Context) ([]*journey.Journey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*journey.Journey, 0, len(m.journeys))
	for _, j := range m.journeys {
		out = append(out, j.Clone())
	}
	return out, nil
}

// harness is the assembled service stack for one test.
type harness struct {
	clock       *fakeClock
	rec         *notify.Recorder
	stations    *station.Service
	journeys    *journey.Service
	stationRepo *memStationRepo
	journeyRepo *memJourneyRepo
}

// newHarness assembles the full stack over the default clinical policy.
// Extra notifiers are fanned out next to the recorder, matching the server
// wiring where the log notifier and the websocket hub sit side by side.
func newHarness(t *testing.T, extra ...notify.Notifier) *harness {
	t.Helper()
	return buildHarness(t, newMemJourneyRepo(), extra...)
}

// buildHarness assembles the stack over an existing journey store. Handing a
// previous harness's store to a fresh build is exactly what a server restart
// looks like: journeys survive, queue entries do not.
func buildHarness(t *testing.T, journeyRepo *memJourneyRepo, extra ...notify.Notifier) *harness {
	t.Helper()
	ctx := context.Background()

	pol := policy.Default()
	clock := newFakeClock(clinicOpen)

	registry := station.NewRegistry()
	registry.SetClock(clock.Now)

	rec := notify.NewRecorder()
	var notifier notify.Notifier = rec
	if len(extra) > 0 {
		notifier = notify.NewMulti(append([]notify.Notifier{rec}, extra...)...)
	}

	stationRepo := newMemStationRepo()
	stationSvc := station.NewService(registry, stationRepo, notifier, zerolog.Nop())

	provisioned, err := station.FromPolicy(pol)
	if err != nil {
		t.Fatalf("stations from policy: %v", err)
	}
	if err := stationSvc.Provision(ctx, provisioned); err != nil {
		t.Fatalf("provision stations: %v", err)
	}

	rules, err := routing.RulesFromPolicy(pol)
	if err != nil {
		t.Fatalf("rules from policy: %v", err)
	}

	journeySvc := journey.NewService(stationSvc, routing.NewEngine(rules), pol.Risk, journeyRepo, notifier, zerolog.Nop())
	journeySvc.SetClock(clock.Now)

	return &harness{
		clock:       clock,
		rec:         rec,
		stations:    stationSvc,
		journeys:    journeySvc,
		stationRepo: stationRepo,
		journeyRepo: journeyRepo,
	}
}

// startJourney runs intake through the questionnaire so the journey sits in
// station_routing with the given medical flags applied.
func (h *harness) startJourney(t *testing.T, examType string, flags ...string) *journey.Journey {
	t.Helper()
	ctx := context.Background()

	j, err := h.journeys.Start(ctx, journey.StartInput{
		PatientName:    "Ada Reyes",
		DocumentNumber: "ID-7741",
		Employer:       "Delta Freight",
		ExamType:       examType,
	})
	if err != nil {
		t.Fatalf("start journey: %v", err)
	}
	if _, err := h.journeys.CompleteReception(ctx, j.ID, map[string]any{"desk": "front-2"}); err != nil {
		t.Fatalf("complete reception: %v", err)
	}
	answers := map[string]any{"flags_reported": len(flags)}
	routed, err := h.journeys.CompleteQuestionnaire(ctx, j.ID, answers, flags)
	if err != nil {
		t.Fatalf("complete questionnaire: %v", err)
	}
	return routed
}

// visitStation selects the station, lets the service time pass, and completes
// the visit. Returns the finished flag from the completion.
func (h *harness) visitStation(t *testing.T, id uuid.UUID, stationID string, serviceMin int) bool {
	t.Helper()
	ctx := context.Background()

	if _, _, err := h.journeys.SelectStation(ctx, id, stationID); err != nil {
		t.Fatalf("select %s: %v", stationID, err)
	}
	h.clock.Advance(time.Duration(serviceMin) * time.Minute)
	_, finished, err := h.journeys.CompleteStation(ctx, id, stationID, map[string]any{"result": "normal"})
	if err != nil {
		t.Fatalf("complete %s: %v", stationID, err)
	}
	return finished
}
