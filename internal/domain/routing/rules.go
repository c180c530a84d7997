package routing

import (
	"fmt"

	"github.com/clinicflow/clinicflow/internal/domain/station"
	"github.com/clinicflow/clinicflow/internal/platform/policy"
)

// FlagRule routes one medical flag to one station at a fixed tier.
type FlagRule struct {
	StationID string
	Tier      station.PriorityTier
	Reason    string
}

// Rules is the engine's immutable rule set: flag routes and per-examination
// required stations, both sourced from the clinical policy.
type Rules struct {
	flagRules        map[string][]FlagRule
	examRequirements map[string][]string
}

// RulesFromPolicy translates the clinical policy's routing tables.
func RulesFromPolicy(pol *policy.Policy) (*Rules, error) {
	flagRules := make(map[string][]FlagRule)
	for _, route := range pol.FlagRoutes {
		tier := station.PriorityTier(route.Tier)
		if !tier.Valid() {
			return nil, fmt.Errorf("flag route %s -> %s: invalid tier %q", route.Flag, route.StationID, route.Tier)
		}
		flagRules[route.Flag] = append(flagRules[route.Flag], FlagRule{
			StationID: route.StationID,
			Tier:      tier,
			Reason:    route.Reason,
		})
	}

	examRequirements := make(map[string][]string)
	for _, ex := range pol.Examinations {
		examRequirements[ex.Type] = append([]string(nil), ex.RequiredStations...)
	}

	return &Rules{flagRules: flagRules, examRequirements: examRequirements}, nil
}

// RequiredStations returns the station ids the examination type mandates.
func (r *Rules) RequiredStations(examType string) []string {
	return append([]string(nil), r.examRequirements[examType]...)
}

// KnownExamType reports whether the examination type appears in the policy.
func (r *Rules) KnownExamType(examType string) bool {
	_, ok := r.examRequirements[examType]
	return ok
}
