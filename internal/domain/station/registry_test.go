package station

import (
	"testing"

	"github.com/google/uuid"
)

func TestAddRejectsDuplicateID(t *testing.T) {
	reg, _ := newTestRegistry(t, testStation("vitals", 5))

	if err := reg.Add(testStation("vitals", 5)); err == nil {
		t.Fatal("expected error registering duplicate station id")
	}
}

func TestAddPanicsOnZeroCapacity(t *testing.T) {
	reg := NewRegistry()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for capacity below 1")
		}
	}()
	reg.Add(testStation("vitals", 0))
}

func TestAddPanicsOnZeroServiceMinutes(t *testing.T) {
	reg := NewRegistry()
	st := testStation("vitals", 5)
	st.AvgServiceMinutes = 0
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for service minutes below 1")
		}
	}()
	reg.Add(st)
}

func TestAddRebuildsOccupancyFromLoadedQueue(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	st := testStation("vitals", 5)
	st.Queue = []QueueEntry{
		{PatientID: p1, SessionID: uuid.New(), Tier: TierMedium, Position: 1, Seq: 7, EstServiceMinutes: 10},
		{PatientID: p2, SessionID: uuid.New(), Tier: TierMedium, Position: 2, Seq: 9, EstServiceMinutes: 10},
	}
	reg, _ := newTestRegistry(t, st)

	if got := reg.OccupiedStation(p1); got != "vitals" {
		t.Errorf("occupied station for p1 %q, want vitals", got)
	}

	// A restored registry must keep rejecting double admission and keep the
	// sequence counter ahead of every loaded entry.
	if _, err := reg.Admit("vitals", p1, uuid.New(), TierMedium); err == nil {
		t.Fatal("expected AlreadyQueuedError for restored patient")
	}
	adm, err := reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if adm.Entry.Seq <= 9 {
		t.Errorf("new entry seq %d, want above restored maximum 9", adm.Entry.Seq)
	}
	if adm.Entry.Position != 3 {
		t.Errorf("new entry position %d, want 3", adm.Entry.Position)
	}
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	reg, _ := newTestRegistry(t, testStation("vitals", 5))
	reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)

	snap, err := reg.Get("vitals")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	snap.Queue[0].Position = 99
	snap.Name = "mutated"

	fresh, _ := reg.Get("vitals")
	if fresh.Queue[0].Position != 1 {
		t.Error("mutating a snapshot leaked into registry state")
	}
	if fresh.Name != "vitals" {
		t.Error("mutating a snapshot's name leaked into registry state")
	}
}

func TestListFilters(t *testing.T) {
	vitals := testStation("vitals", 5)
	vitals.Type = TypeVitalSigns
	cardiac := testStation("cardiac", 5)
	cardiac.Type = TypeCardiac
	vision := testStation("vision", 5)
	vision.Type = TypeVision
	reg, _ := newTestRegistry(t, vitals, cardiac, vision)

	reg.Deactivate("vision")
	reg.Admit("cardiac", uuid.New(), uuid.New(), TierMedium)

	all := reg.List(Filter{})
	if len(all) != 3 {
		t.Fatalf("unfiltered count %d, want 3", len(all))
	}
	// Ordered by id.
	if all[0].ID != "cardiac" || all[1].ID != "vision" || all[2].ID != "vitals" {
		t.Errorf("order %s,%s,%s, want cardiac,vision,vitals", all[0].ID, all[1].ID, all[2].ID)
	}

	byType := reg.List(Filter{Type: TypeCardiac})
	if len(byType) != 1 || byType[0].ID != "cardiac" {
		t.Errorf("type filter returned %d stations", len(byType))
	}

	byStatus := reg.List(Filter{Status: StatusClosed})
	if len(byStatus) != 1 || byStatus[0].ID != "vision" {
		t.Errorf("status filter returned %d stations", len(byStatus))
	}

	active := true
	byActive := reg.List(Filter{Active: &active})
	if len(byActive) != 2 {
		t.Errorf("active filter returned %d stations, want 2", len(byActive))
	}

	inactive := false
	byInactive := reg.List(Filter{Active: &inactive})
	if len(byInactive) != 1 || byInactive[0].ID != "vision" {
		t.Errorf("inactive filter returned %d stations", len(byInactive))
	}
}

func TestStatusOnAdd(t *testing.T) {
	st := testStation("vitals", 5)
	st.Status = Status("stale-value")
	reg, _ := newTestRegistry(t, st)

	got, _ := reg.Get("vitals")
	if got.Status != StatusAvailable {
		t.Errorf("status %s after add, want available (derived, not trusted)", got.Status)
	}
}
