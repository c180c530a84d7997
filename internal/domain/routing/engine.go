package routing

import (
	"fmt"
	"sort"

	"github.com/clinicflow/clinicflow/internal/domain/station"
)

// opportunisticUtilizationCap bounds how loaded a station may be before it
// stops qualifying for a low-tier "no wait" suggestion.
const opportunisticUtilizationCap = 0.8

// Engine ranks stations for a patient. Recommend is a pure function over its
// arguments: no clock, no internal state, safe for any number of concurrent
// callers on an immutable snapshot.
type Engine struct {
	rules *Rules
}

// NewEngine returns an engine bound to the given rule set.
func NewEngine(rules *Rules) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() *Rules {
	return e.rules
}

// Recommend produces the full ranked recommendation list for a patient
// against a station snapshot. Three rule passes feed a per-station best
// entry, then the result is totally ordered.
//
//  1. Each medical flag contributes its policy routes at the route's tier.
//  2. The examination type contributes medium-tier entries for its required
//     stations.
//  3. Any remaining available station under the utilization cap contributes
//     a low-tier entry.
//
// A station already completed by the patient is never recommended again.
// When a station surfaces from several passes the highest tier wins, with
// flag routes beating equal-tier baselines. Ordering is tier first, then
// ascending wait, then station id.
func (e *Engine) Recommend(p PatientContext, snapshot []*station.Station) []Recommendation {
	byID := make(map[string]*station.Station, len(snapshot))
	for _, st := range snapshot {
		byID[st.ID] = st
	}
	done := make(map[string]bool, len(p.CompletedStations))
	for _, id := range p.CompletedStations {
		done[id] = true
	}

	best := make(map[string]Recommendation)
	consider := func(rec Recommendation) {
		if done[rec.StationID] {
			return
		}
		cur, seen := best[rec.StationID]
		if !seen || rec.Tier.Rank() < cur.Tier.Rank() {
			best[rec.StationID] = rec
		}
	}

	for _, flag := range p.MedicalFlags {
		for _, rule := range e.rules.flagRules[flag] {
			st, ok := byID[rule.StationID]
			if !ok {
				continue
			}
			consider(Recommendation{
				StationID:      st.ID,
				StationName:    st.Name,
				Tier:           rule.Tier,
				Reason:         rule.Reason,
				ServiceMinutes: st.AvgServiceMinutes,
				WaitMinutes:    st.NewEntryWait(),
			})
		}
	}

	for _, id := range e.rules.examRequirements[p.ExamType] {
		st, ok := byID[id]
		if !ok {
			continue
		}
		consider(Recommendation{
			StationID:      st.ID,
			StationName:    st.Name,
			Tier:           station.TierMedium,
			Reason:         fmt.Sprintf("required for %s examination", p.ExamType),
			ServiceMinutes: st.AvgServiceMinutes,
			WaitMinutes:    st.NewEntryWait(),
		})
	}

	for _, st := range snapshot {
		if _, seen := best[st.ID]; seen {
			continue
		}
		if st.Status != station.StatusAvailable || st.Utilization() >= opportunisticUtilizationCap {
			continue
		}
		consider(Recommendation{
			StationID:      st.ID,
			StationName:    st.Name,
			Tier:           station.TierLow,
			Reason:         "available with no current wait",
			ServiceMinutes: st.AvgServiceMinutes,
			WaitMinutes:    st.NewEntryWait(),
		})
	}

	out := make([]Recommendation, 0, len(best))
	for _, rec := range best {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Tier.Rank() != b.Tier.Rank() {
			return a.Tier.Rank() < b.Tier.Rank()
		}
		if a.WaitMinutes != b.WaitMinutes {
			return a.WaitMinutes < b.WaitMinutes
		}
		return a.StationID < b.StationID
	})
	return out
}

// TierFor returns the tier the engine would rank the given station at for
// this patient, falling back to medium when the station is absent from the
// ranked list. Queue admission uses it so the admitted tier always matches
// the recommendation shown.
func (e *Engine) TierFor(p PatientContext, snapshot []*station.Station, stationID string) station.PriorityTier {
	for _, rec := range e.Recommend(p, snapshot) {
		if rec.StationID == stationID {
			return rec.Tier
		}
	}
	return station.TierMedium
}
