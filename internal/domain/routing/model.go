package routing

import (
	"github.com/clinicflow/clinicflow/internal/domain/station"
)

// Recommendation is a ranked routing suggestion. Recommendations are
// ephemeral: computed per routing decision, never persisted.
type Recommendation struct {
	StationID      string               `json:"station_id"`
	StationName    string               `json:"station_name"`
	Tier           station.PriorityTier `json:"tier"`
	Reason         string               `json:"reason"`
	ServiceMinutes int                  `json:"service_minutes"`
	WaitMinutes    int                  `json:"wait_minutes"`
}

// PatientContext carries the journey facts the engine ranks against.
type PatientContext struct {
	MedicalFlags      []string
	ExamType          string
	CompletedStations []string
}
