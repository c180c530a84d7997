package journey

import (
	"github.com/clinicflow/clinicflow/internal/platform/policy"
)

// DeriveRiskProfile classifies each policy risk dimension from the patient's
// medical flags: any critical flag present lifts the dimension to high, any
// contributing flag to medium, otherwise low. Overall is the maximum across
// dimensions. Computed once at questionnaire completion, never re-derived.
func DeriveRiskProfile(risk policy.RiskPolicy, flags []string) *RiskProfile {
	present := make(map[string]bool, len(flags))
	for _, f := range flags {
		present[f] = true
	}

	profile := &RiskProfile{
		Dimensions: make(map[string]RiskLevel, len(risk.Dimensions)),
		Overall:    RiskLow,
	}
	for _, dim := range risk.Dimensions {
		level := RiskLow
		for _, f := range dim.Contributing {
			if present[f] {
				level = RiskMedium
				break
			}
		}
		for _, f := range dim.Critical {
			if present[f] {
				level = RiskHigh
				break
			}
		}
		profile.Dimensions[dim.Name] = level
		profile.Overall = profile.Overall.Max(level)
	}
	return profile
}
