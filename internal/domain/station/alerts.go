package station

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// alertDedupWindow suppresses a repeat alert of the same kind while an
// unresolved one created within this window exists.
const alertDedupWindow = 5 * time.Minute

// criticalFactor escalates severity when the measured value reaches this
// multiple of its threshold.
const criticalFactor = 1.25

// checkAlerts evaluates each independent threshold rule (queue length,
// estimated wait, utilization) and appends one alert per breached rule,
// unless an unresolved alert of the same kind was created within the dedup
// window. Alerts are only appended here, never resolved. Callers hold the
// station lock. Returns the newly appended alerts.
func checkAlerts(st *Station, now time.Time) []Alert {
	var raised []Alert

	qlen := len(st.Queue)
	if st.Thresholds.QueueLength > 0 && qlen >= st.Thresholds.QueueLength {
		raised = appendAlert(st, now, raised, Alert{
			Kind:     AlertQueueLength,
			Severity: severityFor(float64(qlen), float64(st.Thresholds.QueueLength)),
			Message:  fmt.Sprintf("queue length %d reached threshold %d", qlen, st.Thresholds.QueueLength),
		})
	}

	wait := st.NewEntryWait()
	if st.Thresholds.WaitMinutes > 0 && wait >= st.Thresholds.WaitMinutes {
		raised = appendAlert(st, now, raised, Alert{
			Kind:     AlertWaitTime,
			Severity: severityFor(float64(wait), float64(st.Thresholds.WaitMinutes)),
			Message:  fmt.Sprintf("estimated wait %d min reached threshold %d min", wait, st.Thresholds.WaitMinutes),
		})
	}

	util := st.Utilization()
	if st.Thresholds.Utilization > 0 && util >= st.Thresholds.Utilization {
		raised = appendAlert(st, now, raised, Alert{
			Kind:     AlertUtilization,
			Severity: severityFor(util, st.Thresholds.Utilization),
			Message:  fmt.Sprintf("utilization %.0f%% reached threshold %.0f%%", util*100, st.Thresholds.Utilization*100),
		})
	}

	return raised
}

func appendAlert(st *Station, now time.Time, raised []Alert, a Alert) []Alert {
	for i := len(st.Alerts) - 1; i >= 0; i-- {
		prev := &st.Alerts[i]
		if prev.Kind != a.Kind || prev.Resolved {
			continue
		}
		if now.Sub(prev.CreatedAt) < alertDedupWindow {
			return raised
		}
	}

	a.ID = uuid.New()
	a.CreatedAt = now
	st.Alerts = append(st.Alerts, a)
	return append(raised, a)
}

func severityFor(value, threshold float64) string {
	if value >= threshold*criticalFactor {
		return SeverityCritical
	}
	return SeverityWarning
}
