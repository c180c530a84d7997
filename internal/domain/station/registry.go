package station

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry owns all station state. It is an explicitly constructed handle:
// callers receive it through their constructors, never through package-level
// state.
//
// Locking: mu guards the stations map and the cross-station occupancy index.
// Each station carries its own mutex so that operations on different stations
// proceed in parallel while admit/remove/alert checks on one station stay
// serialized. The two lock levels are never held at the same time.
type Registry struct {
	mu       sync.RWMutex
	stations map[string]*stationState
	occupied map[uuid.UUID]string // patient -> station currently holding their entry
	seq      uint64               // monotonic insertion sequence, guarded by mu

	now func() time.Time
}

type stationState struct {
	mu sync.Mutex
	st *Station
}

// NewRegistry returns an empty registry using the wall clock.
func NewRegistry() *Registry {
	return &Registry{
		stations: make(map[string]*stationState),
		occupied: make(map[uuid.UUID]string),
		now:      time.Now,
	}
}

// SetClock replaces the registry's time source. Tests use it to make alert
// deduplication and metric rollups deterministic.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *Registry) clock() func() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.now
}

// Now returns the registry clock's current time.
func (r *Registry) Now() time.Time {
	return r.clock()()
}

// Add registers a station. Capacity and service time below 1 are programming
// errors (policy validation rejects them before provisioning) and panic.
func (r *Registry) Add(st *Station) error {
	if st.MaxCapacity < 1 {
		panic(fmt.Sprintf("station %s: max capacity %d below 1", st.ID, st.MaxCapacity))
	}
	if st.AvgServiceMinutes < 1 {
		panic(fmt.Sprintf("station %s: average service minutes %d below 1", st.ID, st.AvgServiceMinutes))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stations[st.ID]; exists {
		return fmt.Errorf("station %s already registered", st.ID)
	}

	own := st.Clone()
	recomputeStatus(own)
	r.stations[st.ID] = &stationState{st: own}

	for _, e := range own.Queue {
		r.occupied[e.PatientID] = own.ID
		if e.Seq > r.seq {
			r.seq = e.Seq
		}
	}
	return nil
}

func (r *Registry) lookup(stationID string) (*stationState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ss, ok := r.stations[stationID]
	if !ok {
		return nil, fmt.Errorf("station %s: %w", stationID, ErrNotFound)
	}
	return ss, nil
}

// withStation runs fn with the station locked.
func (r *Registry) withStation(stationID string, fn func(st *Station) error) error {
	ss, err := r.lookup(stationID)
	if err != nil {
		return err
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return fn(ss.st)
}

// Get returns a deep-copied snapshot of one station.
func (r *Registry) Get(stationID string) (*Station, error) {
	var out *Station
	err := r.withStation(stationID, func(st *Station) error {
		out = st.Clone()
		return nil
	})
	return out, err
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type   Type
	Status Status
	Active *bool
}

// List returns deep-copied snapshots of all matching stations, ordered by id.
// The snapshot is point-in-time; callers must not assume it stays fresh.
func (r *Registry) List(f Filter) []*Station {
	r.mu.RLock()
	states := make([]*stationState, 0, len(r.stations))
	for _, ss := range r.stations {
		states = append(states, ss)
	}
	r.mu.RUnlock()

	var out []*Station
	for _, ss := range states {
		ss.mu.Lock()
		st := ss.st
		match := (f.Type == "" || st.Type == f.Type) &&
			(f.Status == "" || st.Status == f.Status) &&
			(f.Active == nil || st.IsActive == *f.Active)
		if match {
			out = append(out, st.Clone())
		}
		ss.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot returns deep copies of every station, ordered by id. The
// recommendation engine reads these without any locking of its own.
func (r *Registry) Snapshot() []*Station {
	return r.List(Filter{})
}

// EquipmentUpdate reports the outcome of SetEquipmentStatus.
type EquipmentUpdate struct {
	StationID  string    `json:"station_id"`
	Equipment  Equipment `json:"equipment"`
	PrevStatus Status    `json:"-"`
	Status     Status    `json:"status"`
	NewAlerts  []Alert   `json:"-"`
}

// SetEquipmentStatus updates one equipment item, recomputes station status
// and runs the alert check.
func (r *Registry) SetEquipmentStatus(stationID, equipmentID string, status EquipmentStatus) (*EquipmentUpdate, error) {
	if !ValidEquipmentStatuses[status] {
		return nil, fmt.Errorf("invalid equipment status %q", status)
	}

	now := r.clock()()
	var upd *EquipmentUpdate
	err := r.withStation(stationID, func(st *Station) error {
		eq := st.FindEquipment(equipmentID)
		if eq == nil {
			return fmt.Errorf("equipment %s at station %s: %w", equipmentID, stationID, ErrNotFound)
		}
		prev := st.Status
		eq.Status = status
		recomputeStatus(st)
		raised := checkAlerts(st, now)
		if len(raised) > 0 {
			rollDaily(st, now, func(m *DailyMetrics) {
				m.BottleneckIncidents += len(raised)
			})
		}
		upd = &EquipmentUpdate{
			StationID:  stationID,
			Equipment:  *eq,
			PrevStatus: prev,
			Status:     st.Status,
			NewAlerts:  raised,
		}
		return nil
	})
	return upd, err
}

// ActivationChange reports the outcome of Deactivate or Reactivate.
type ActivationChange struct {
	StationID  string `json:"station_id"`
	IsActive   bool   `json:"is_active"`
	PrevStatus Status `json:"-"`
	Status     Status `json:"status"`
}

// Deactivate takes a station out of service. Status becomes closed regardless
// of the queue; waiting entries stay queued.
func (r *Registry) Deactivate(stationID string) (*ActivationChange, error) {
	return r.setActive(stationID, false)
}

// Reactivate returns a station to service and recomputes its status.
func (r *Registry) Reactivate(stationID string) (*ActivationChange, error) {
	return r.setActive(stationID, true)
}

func (r *Registry) setActive(stationID string, active bool) (*ActivationChange, error) {
	var ch *ActivationChange
	err := r.withStation(stationID, func(st *Station) error {
		prev := st.Status
		st.IsActive = active
		recomputeStatus(st)
		ch = &ActivationChange{
			StationID:  stationID,
			IsActive:   active,
			PrevStatus: prev,
			Status:     st.Status,
		}
		return nil
	})
	return ch, err
}

// Alerts returns a station's alerts, newest first.
func (r *Registry) Alerts(stationID string, unresolvedOnly bool) ([]Alert, error) {
	var out []Alert
	err := r.withStation(stationID, func(st *Station) error {
		for _, a := range st.Alerts {
			if unresolvedOnly && a.Resolved {
				continue
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ResolveAlert marks an alert resolved. Resolving an already-resolved alert
// is a no-op.
func (r *Registry) ResolveAlert(stationID string, alertID uuid.UUID) (*Alert, error) {
	now := r.clock()()
	var resolved *Alert
	err := r.withStation(stationID, func(st *Station) error {
		for i := range st.Alerts {
			if st.Alerts[i].ID != alertID {
				continue
			}
			if !st.Alerts[i].Resolved {
				st.Alerts[i].Resolved = true
				at := now
				st.Alerts[i].ResolvedAt = &at
			}
			a := st.Alerts[i]
			resolved = &a
			return nil
		}
		return fmt.Errorf("alert %s at station %s: %w", alertID, stationID, ErrNotFound)
	})
	return resolved, err
}

// Metrics returns a station's daily rollups, newest day first.
func (r *Registry) Metrics(stationID string) ([]DailyMetrics, error) {
	var out []DailyMetrics
	err := r.withStation(stationID, func(st *Station) error {
		out = append(out, st.Metrics...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day > out[j].Day })
	return out, nil
}

// OccupiedStation returns the id of the station holding the patient's queue
// entry, or "" when the patient is not queued anywhere.
func (r *Registry) OccupiedStation(patientID uuid.UUID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.occupied[patientID]
}
