package station

import "time"

// metricsRetentionDays bounds the daily rollup history kept per station.
const metricsRetentionDays = 30

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// rollDaily ensures the rollup record for now's calendar day exists, applies
// mutate to it in place, and lazily prunes records older than the retention
// window. At most one record exists per station per day. Callers hold the
// station lock.
func rollDaily(st *Station, now time.Time, mutate func(*DailyMetrics)) {
	day := dayKey(now)

	idx := -1
	for i := range st.Metrics {
		if st.Metrics[i].Day == day {
			idx = i
			break
		}
	}
	if idx == -1 {
		st.Metrics = append(st.Metrics, DailyMetrics{Day: day})
		idx = len(st.Metrics) - 1
	}
	if mutate != nil {
		mutate(&st.Metrics[idx])
	}

	cutoff := dayKey(now.AddDate(0, 0, -metricsRetentionDays))
	kept := st.Metrics[:0]
	for _, m := range st.Metrics {
		if m.Day >= cutoff {
			kept = append(kept, m)
		}
	}
	st.Metrics = kept
}

// pruneCutoff returns the retention cutoff day relative to the given day.
func pruneCutoff(day string) string {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return day
	}
	return dayKey(t.AddDate(0, 0, -metricsRetentionDays))
}
