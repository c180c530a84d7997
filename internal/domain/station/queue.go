package station

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// entryBefore is the queue comparator over the priority key (urgent flag,
// insertion sequence). Urgent entries precede all others, and a later urgent
// arrival precedes an earlier one, so each urgent admission lands at
// position 1. Non-urgent entries keep arrival order regardless of tier.
func entryBefore(a, b QueueEntry) bool {
	au, bu := a.Tier == TierUrgent, b.Tier == TierUrgent
	if au != bu {
		return au
	}
	if au {
		return a.Seq > b.Seq
	}
	return a.Seq < b.Seq
}

// compactQueue renumbers positions to a contiguous 1..N sequence and asserts
// the queue invariants. A queue out of priority order or with non-contiguous
// positions after compaction is a programming error, never degraded silently.
func compactQueue(st *Station) {
	for i := range st.Queue {
		st.Queue[i].Position = i + 1
	}
	for i := range st.Queue {
		if st.Queue[i].Position != i+1 {
			panic(fmt.Sprintf("station %s: queue position %d at index %d after compaction", st.ID, st.Queue[i].Position, i))
		}
		if i > 0 && entryBefore(st.Queue[i], st.Queue[i-1]) {
			panic(fmt.Sprintf("station %s: queue order violates priority key at position %d", st.ID, i+1))
		}
	}
}

// Admission reports the outcome of Admit.
type Admission struct {
	StationID            string     `json:"station_id"`
	Entry                QueueEntry `json:"entry"`
	EstimatedWaitMinutes int        `json:"estimated_wait_minutes"`
	PrevStatus           Status     `json:"-"`
	Status               Status     `json:"status"`
	NewAlerts            []Alert    `json:"-"`
}

// Admit inserts a patient into a station's queue. Urgent admissions preempt:
// the entry lands at position 1 and every existing entry shifts back by one;
// no other tier preempts. A patient may hold at most one queue entry across
// the whole registry; a second admission fails with AlreadyQueuedError no
// matter which station holds the first.
//
// The queue may grow past MaxCapacity; capacity is soft and only drives the
// derived full status.
func (r *Registry) Admit(stationID string, patientID, sessionID uuid.UUID, tier PriorityTier) (*Admission, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf("invalid priority tier %q", tier)
	}

	// Claim the patient in the cross-station occupancy index first so two
	// concurrent admissions cannot both succeed.
	r.mu.Lock()
	ss, ok := r.stations[stationID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("station %s: %w", stationID, ErrNotFound)
	}
	if holder, dup := r.occupied[patientID]; dup {
		r.mu.Unlock()
		return nil, &AlreadyQueuedError{PatientID: patientID, StationID: holder}
	}
	r.occupied[patientID] = stationID
	r.seq++
	seq := r.seq
	now := r.now()
	r.mu.Unlock()

	ss.mu.Lock()
	defer ss.mu.Unlock()
	st := ss.st

	entry := QueueEntry{
		PatientID:         patientID,
		SessionID:         sessionID,
		Tier:              tier,
		Seq:               seq,
		EnqueuedAt:        now,
		EstServiceMinutes: st.AvgServiceMinutes,
	}

	idx := sort.Search(len(st.Queue), func(i int) bool {
		return entryBefore(entry, st.Queue[i])
	})
	st.Queue = append(st.Queue, QueueEntry{})
	copy(st.Queue[idx+1:], st.Queue[idx:])
	st.Queue[idx] = entry
	compactQueue(st)

	prev := st.Status
	recomputeStatus(st)
	raised := checkAlerts(st, now)

	admitted := st.Queue[idx]
	wait := st.EstimatedWait(admitted.Position)
	rollDaily(st, now, func(m *DailyMetrics) {
		m.TotalWaitMinutes += wait
		m.BottleneckIncidents += len(raised)
		if u := st.Utilization(); u > m.PeakUtilization {
			m.PeakUtilization = u
		}
	})

	return &Admission{
		StationID:            stationID,
		Entry:                admitted,
		EstimatedWaitMinutes: wait,
		PrevStatus:           prev,
		Status:               st.Status,
		NewAlerts:            raised,
	}, nil
}

// Removal reports the outcome of Remove.
type Removal struct {
	StationID     string     `json:"station_id"`
	Entry         QueueEntry `json:"entry"`
	WaitedMinutes int        `json:"waited_minutes"`
	PrevStatus    Status     `json:"-"`
	Status        Status     `json:"status"`
	NewAlerts     []Alert    `json:"-"`
}

// Remove takes a patient out of a station's queue, compacts the remaining
// positions to 1..N preserving relative order, and recomputes status. Open
// alerts are not resolved here; they stay until explicitly resolved.
func (r *Registry) Remove(stationID string, patientID uuid.UUID) (*Removal, error) {
	ss, err := r.lookup(stationID)
	if err != nil {
		return nil, err
	}
	now := r.clock()()

	ss.mu.Lock()
	st := ss.st

	idx := -1
	for i := range st.Queue {
		if st.Queue[i].PatientID == patientID {
			idx = i
			break
		}
	}
	if idx == -1 {
		ss.mu.Unlock()
		return nil, fmt.Errorf("patient %s at station %s: %w", patientID, stationID, ErrNotFound)
	}

	entry := st.Queue[idx]
	st.Queue = append(st.Queue[:idx], st.Queue[idx+1:]...)
	compactQueue(st)

	prev := st.Status
	recomputeStatus(st)
	raised := checkAlerts(st, now)

	waited := int(now.Sub(entry.EnqueuedAt).Minutes())
	if waited < 0 {
		waited = 0
	}
	rollDaily(st, now, func(m *DailyMetrics) {
		m.PatientsServed++
		m.TotalServiceMinutes += entry.EstServiceMinutes
		m.BottleneckIncidents += len(raised)
	})

	removal := &Removal{
		StationID:     stationID,
		Entry:         entry,
		WaitedMinutes: waited,
		PrevStatus:    prev,
		Status:        st.Status,
		NewAlerts:     raised,
	}
	ss.mu.Unlock()

	r.mu.Lock()
	delete(r.occupied, patientID)
	r.mu.Unlock()

	return removal, nil
}

// QueueView is the live queue of one station with recomputed wait estimates.
type QueueView struct {
	StationID string       `json:"station_id"`
	Status    Status       `json:"status"`
	Entries   []QueueEntry `json:"entries"`
	Waits     []int        `json:"estimated_wait_minutes"`
}

// QueueOf returns a station's current queue. Wait estimates are recomputed
// from the live positions, not the values captured at admission.
func (r *Registry) QueueOf(stationID string) (*QueueView, error) {
	var view *QueueView
	err := r.withStation(stationID, func(st *Station) error {
		view = &QueueView{
			StationID: stationID,
			Status:    st.Status,
			Entries:   append([]QueueEntry(nil), st.Queue...),
		}
		view.Waits = make([]int, len(st.Queue))
		for i, e := range st.Queue {
			view.Waits[i] = st.EstimatedWait(e.Position)
		}
		return nil
	})
	return view, err
}
