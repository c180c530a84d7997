package journey

import (
	"time"

	"github.com/google/uuid"
)

// Phase is a journey's position in the examination pipeline.
type Phase string

const (
	PhaseReception      Phase = "reception"
	PhaseQuestionnaire  Phase = "questionnaire"
	PhaseStationRouting Phase = "station_routing"
	PhaseExamination    Phase = "examination"
	PhaseCompleted      Phase = "completed"
	PhaseCancelled      Phase = "cancelled"
)

// Terminal reports whether no further transition can leave the phase.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled
}

// RiskLevel classifies one risk dimension.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (l RiskLevel) rank() int {
	switch l {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// Max returns the higher of two levels.
func (l RiskLevel) Max(other RiskLevel) RiskLevel {
	if other.rank() > l.rank() {
		return other
	}
	return l
}

// RiskProfile holds the per-dimension levels derived once at questionnaire
// completion, plus the overall maximum.
type RiskProfile struct {
	Dimensions map[string]RiskLevel `db:"dimensions" json:"dimensions"`
	Overall    RiskLevel            `db:"overall" json:"overall"`
}

// StationResult records the outcome captured when a station visit finishes.
type StationResult struct {
	StationID   string         `db:"station_id" json:"station_id"`
	Results     map[string]any `db:"results" json:"results"`
	CompletedAt time.Time      `db:"completed_at" json:"completed_at"`
}

// Journey is one patient's traversal of the examination pipeline. Its ID is
// the session identifier referenced by queue entries.
type Journey struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	PatientID         uuid.UUID       `db:"patient_id" json:"patient_id"`
	PatientName       string          `db:"patient_name" json:"patient_name"`
	DocumentNumber    string          `db:"document_number" json:"document_number"`
	Employer          string          `db:"employer" json:"employer"`
	ExamType          string          `db:"exam_type" json:"exam_type"`
	Phase             Phase           `db:"phase" json:"phase"`
	Progress          int             `db:"progress" json:"progress"`
	CheckIn           map[string]any  `db:"check_in" json:"check_in,omitempty"`
	Answers           map[string]any  `db:"answers" json:"answers,omitempty"`
	MedicalFlags      []string        `db:"medical_flags" json:"medical_flags"`
	Risk              *RiskProfile    `db:"risk" json:"risk,omitempty"`
	CompletedStations []string        `db:"completed_stations" json:"completed_stations"`
	CurrentStation    *string         `db:"current_station" json:"current_station,omitempty"`
	StationResults    []StationResult `db:"station_results" json:"station_results"`
	StartedAt         time.Time       `db:"started_at" json:"started_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Active reports whether the journey is still in flight.
func (j *Journey) Active() bool {
	return !j.Phase.Terminal()
}

// ElapsedMinutes returns whole minutes since the journey started. Derived,
// never stored.
func (j *Journey) ElapsedMinutes(now time.Time) int {
	m := int(now.Sub(j.StartedAt).Minutes())
	if m < 0 {
		return 0
	}
	return m
}

// HasCompleted reports whether the station has already been completed.
func (j *Journey) HasCompleted(stationID string) bool {
	for _, id := range j.CompletedStations {
		if id == stationID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the journey.
func (j *Journey) Clone() *Journey {
	out := *j
	out.CheckIn = cloneMap(j.CheckIn)
	out.Answers = cloneMap(j.Answers)
	out.MedicalFlags = append([]string(nil), j.MedicalFlags...)
	out.CompletedStations = append([]string(nil), j.CompletedStations...)
	if j.CurrentStation != nil {
		cur := *j.CurrentStation
		out.CurrentStation = &cur
	}
	if j.Risk != nil {
		risk := RiskProfile{Overall: j.Risk.Overall}
		if j.Risk.Dimensions != nil {
			risk.Dimensions = make(map[string]RiskLevel, len(j.Risk.Dimensions))
			for k, v := range j.Risk.Dimensions {
				risk.Dimensions[k] = v
			}
		}
		out.Risk = &risk
	}
	out.StationResults = make([]StationResult, len(j.StationResults))
	for i, r := range j.StationResults {
		out.StationResults[i] = StationResult{
			StationID:   r.StationID,
			Results:     cloneMap(r.Results),
			CompletedAt: r.CompletedAt,
		}
	}
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
