package station

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func alertStation(id string, capacity int, th Thresholds) *Station {
	st := testStation(id, capacity)
	st.Thresholds = th
	return st
}

func TestQueueLengthAlertRaised(t *testing.T) {
	st := alertStation("vitals", 10, Thresholds{QueueLength: 2, WaitMinutes: 10000, Utilization: 10})
	reg, _ := newTestRegistry(t, st)

	adm, _ := reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	if len(adm.NewAlerts) != 0 {
		t.Fatalf("alert raised below threshold: %+v", adm.NewAlerts)
	}

	adm, _ = reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	if len(adm.NewAlerts) != 1 {
		t.Fatalf("expected one alert at threshold, got %d", len(adm.NewAlerts))
	}
	a := adm.NewAlerts[0]
	if a.Kind != AlertQueueLength {
		t.Errorf("alert kind %s, want %s", a.Kind, AlertQueueLength)
	}
	if a.Severity != SeverityWarning {
		t.Errorf("severity %s, want warning (2 is below 1.25x of 2)", a.Severity)
	}
	if a.Resolved {
		t.Error("freshly raised alert marked resolved")
	}
}

func TestAlertDedupWithinWindow(t *testing.T) {
	st := alertStation("vitals", 10, Thresholds{QueueLength: 2, WaitMinutes: 10000, Utilization: 10})
	reg, clock := newTestRegistry(t, st)

	reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)

	clock.Advance(time.Minute)
	adm, _ := reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	if len(adm.NewAlerts) != 0 {
		t.Fatalf("duplicate alert raised within window: %+v", adm.NewAlerts)
	}

	alerts, err := reg.Alerts("vitals", false)
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alert count %d, want 1", len(alerts))
	}
}

func TestAlertReraisedAfterWindow(t *testing.T) {
	st := alertStation("vitals", 100, Thresholds{QueueLength: 2, WaitMinutes: 10000, Utilization: 10})
	reg, clock := newTestRegistry(t, st)

	reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)

	clock.Advance(6 * time.Minute)
	adm, _ := reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	if len(adm.NewAlerts) != 1 {
		t.Fatalf("expected re-raise after dedup window, got %d alerts", len(adm.NewAlerts))
	}
	// Queue is now 4, double the threshold, past the 1.25x escalation point.
	if adm.NewAlerts[0].Severity != SeverityCritical {
		t.Errorf("severity %s, want critical", adm.NewAlerts[0].Severity)
	}
}

func TestAlertReraisedAfterResolve(t *testing.T) {
	st := alertStation("vitals", 10, Thresholds{QueueLength: 2, WaitMinutes: 10000, Utilization: 10})
	reg, clock := newTestRegistry(t, st)

	reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	adm, _ := reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	if len(adm.NewAlerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(adm.NewAlerts))
	}

	if _, err := reg.ResolveAlert("vitals", adm.NewAlerts[0].ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Still inside the window, but the prior alert is resolved and no longer
	// suppresses a fresh one.
	clock.Advance(time.Minute)
	adm, _ = reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	if len(adm.NewAlerts) != 1 {
		t.Fatalf("expected new alert after resolve, got %d", len(adm.NewAlerts))
	}
}

func TestWaitTimeAlert(t *testing.T) {
	st := alertStation("vitals", 100, Thresholds{WaitMinutes: 30})
	st.AvgServiceMinutes = 10
	reg, _ := newTestRegistry(t, st)

	reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	adm, _ := reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	if len(adm.NewAlerts) != 0 {
		t.Fatalf("alert raised at 20 min estimate, threshold 30: %+v", adm.NewAlerts)
	}

	adm, _ = reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	if len(adm.NewAlerts) != 1 || adm.NewAlerts[0].Kind != AlertWaitTime {
		t.Fatalf("expected wait_time alert at 30 min estimate, got %+v", adm.NewAlerts)
	}
}

func TestUtilizationAlertEscalatesToCritical(t *testing.T) {
	st := alertStation("vitals", 4, Thresholds{Utilization: 0.5})
	reg, _ := newTestRegistry(t, st)

	reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	adm, _ := reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	if len(adm.NewAlerts) != 1 || adm.NewAlerts[0].Kind != AlertUtilization {
		t.Fatalf("expected utilization alert at 50%%, got %+v", adm.NewAlerts)
	}
	if adm.NewAlerts[0].Severity != SeverityWarning {
		t.Errorf("severity %s at 0.50 vs threshold 0.50, want warning", adm.NewAlerts[0].Severity)
	}

	if _, err := reg.ResolveAlert("vitals", adm.NewAlerts[0].ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	adm, _ = reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	if len(adm.NewAlerts) != 1 {
		t.Fatalf("expected fresh utilization alert at 75%%, got %+v", adm.NewAlerts)
	}
	// 0.75 is 1.5x the 0.5 threshold, past the 1.25x escalation point.
	if adm.NewAlerts[0].Severity != SeverityCritical {
		t.Errorf("severity %s at 0.75 vs threshold 0.50, want critical", adm.NewAlerts[0].Severity)
	}
}

func TestAlertsNewestFirstAndUnresolvedFilter(t *testing.T) {
	st := alertStation("vitals", 100, Thresholds{QueueLength: 2})
	reg, clock := newTestRegistry(t, st)

	reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	first, _ := reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)

	clock.Advance(6 * time.Minute)
	second, _ := reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)

	if len(first.NewAlerts) != 1 || len(second.NewAlerts) != 1 {
		t.Fatalf("expected one alert per crossing, got %d and %d", len(first.NewAlerts), len(second.NewAlerts))
	}

	all, err := reg.Alerts("vitals", false)
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("alert count %d, want 2", len(all))
	}
	if all[0].ID != second.NewAlerts[0].ID {
		t.Errorf("newest alert not first: got %s", all[0].ID)
	}

	if _, err := reg.ResolveAlert("vitals", first.NewAlerts[0].ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	unresolved, err := reg.Alerts("vitals", true)
	if err != nil {
		t.Fatalf("alerts unresolved: %v", err)
	}
	if len(unresolved) != 1 || unresolved[0].ID != second.NewAlerts[0].ID {
		t.Fatalf("unresolved filter wrong: %+v", unresolved)
	}
}

func TestResolveAlertIdempotent(t *testing.T) {
	st := alertStation("vitals", 10, Thresholds{QueueLength: 1})
	reg, clock := newTestRegistry(t, st)

	adm, _ := reg.Admit("vitals", uuid.New(), uuid.New(), TierMedium)
	if len(adm.NewAlerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(adm.NewAlerts))
	}
	id := adm.NewAlerts[0].ID

	a1, err := reg.ResolveAlert("vitals", id)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if !a1.Resolved || a1.ResolvedAt == nil {
		t.Fatalf("alert not marked resolved: %+v", a1)
	}

	clock.Advance(time.Minute)
	a2, err := reg.ResolveAlert("vitals", id)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !a2.ResolvedAt.Equal(*a1.ResolvedAt) {
		t.Errorf("second resolve moved ResolvedAt from %v to %v", a1.ResolvedAt, a2.ResolvedAt)
	}
}

func TestResolveAlertUnknown(t *testing.T) {
	reg, _ := newTestRegistry(t, testStation("vitals", 10))

	_, err := reg.ResolveAlert("vitals", uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
