package journey

import (
	"time"

	"github.com/google/uuid"
)

// Progress checkpoints for each transition. Progress is monotonically
// non-decreasing for the life of a journey.
const (
	progressReception        = 5
	progressQuestionnaire    = 15
	progressQuestionnaireCap = 60
	progressRiskAssessed     = 65
	progressRoutingGenerated = 70
	progressExamination      = 75
	progressStationStep      = 10
	progressStationCap       = 95
	progressCompleted        = 100
)

// PatientInfo is the intake payload for a new journey.
type PatientInfo struct {
	PatientID      uuid.UUID
	PatientName    string
	DocumentNumber string
	Employer       string
	ExamType       string
}

// New creates a journey in reception.
func New(id uuid.UUID, info PatientInfo, now time.Time) *Journey {
	return &Journey{
		ID:                id,
		PatientID:         info.PatientID,
		PatientName:       info.PatientName,
		DocumentNumber:    info.DocumentNumber,
		Employer:          info.Employer,
		ExamType:          info.ExamType,
		Phase:             PhaseReception,
		Progress:          progressReception,
		MedicalFlags:      []string{},
		CompletedStations: []string{},
		StationResults:    []StationResult{},
		StartedAt:         now,
		UpdatedAt:         now,
	}
}

func (j *Journey) guard(from, attempted Phase) error {
	if j.Phase != from {
		return &InvalidTransitionError{From: j.Phase, Attempted: attempted}
	}
	return nil
}

// raiseProgress moves progress up to p, never down.
func (j *Journey) raiseProgress(p int) {
	if p > j.Progress {
		j.Progress = p
	}
}

// CompleteReception stores check-in data and moves to questionnaire.
func (j *Journey) CompleteReception(checkIn map[string]any, now time.Time) error {
	if err := j.guard(PhaseReception, PhaseQuestionnaire); err != nil {
		return err
	}
	j.CheckIn = checkIn
	j.Phase = PhaseQuestionnaire
	j.raiseProgress(progressQuestionnaire)
	j.UpdatedAt = now
	return nil
}

// UpdateQuestionnaire merges partial answers while the questionnaire is in
// flight. The reported progress is clamped to the questionnaire band.
func (j *Journey) UpdateQuestionnaire(partial map[string]any, progress int, now time.Time) error {
	if err := j.guard(PhaseQuestionnaire, PhaseQuestionnaire); err != nil {
		return err
	}
	if j.Answers == nil {
		j.Answers = make(map[string]any, len(partial))
	}
	for k, v := range partial {
		j.Answers[k] = v
	}
	if progress < progressQuestionnaire {
		progress = progressQuestionnaire
	}
	if progress > progressQuestionnaireCap {
		progress = progressQuestionnaireCap
	}
	j.raiseProgress(progress)
	j.UpdatedAt = now
	return nil
}

// CompleteQuestionnaire stores the full answer set, the derived medical
// flags, and the risk profile computed from them, then moves to routing.
func (j *Journey) CompleteQuestionnaire(answers map[string]any, flags []string, risk *RiskProfile, now time.Time) error {
	if err := j.guard(PhaseQuestionnaire, PhaseStationRouting); err != nil {
		return err
	}
	if answers != nil {
		j.Answers = answers
	}
	j.MedicalFlags = append([]string{}, flags...)
	j.Risk = risk
	j.Phase = PhaseStationRouting
	j.raiseProgress(progressRiskAssessed)
	j.UpdatedAt = now
	return nil
}

// MarkRoutingGenerated records that a recommendation list was produced for
// the current routing round.
func (j *Journey) MarkRoutingGenerated(now time.Time) error {
	if err := j.guard(PhaseStationRouting, PhaseStationRouting); err != nil {
		return err
	}
	j.raiseProgress(progressRoutingGenerated)
	j.UpdatedAt = now
	return nil
}

// SelectStation pins the chosen station and moves to examination.
func (j *Journey) SelectStation(stationID string, now time.Time) error {
	if err := j.guard(PhaseStationRouting, PhaseExamination); err != nil {
		return err
	}
	j.CurrentStation = &stationID
	j.Phase = PhaseExamination
	j.raiseProgress(progressExamination)
	j.UpdatedAt = now
	return nil
}

// CompleteStation records the station's results. When every station in
// required has been completed the journey finishes, otherwise it loops back
// to routing for the next selection. Returns true when the journey reached
// completed.
func (j *Journey) CompleteStation(stationID string, results map[string]any, required []string, now time.Time) (bool, error) {
	if err := j.guard(PhaseExamination, PhaseStationRouting); err != nil {
		return false, err
	}

	if !j.HasCompleted(stationID) {
		j.CompletedStations = append(j.CompletedStations, stationID)
	}
	j.StationResults = append(j.StationResults, StationResult{
		StationID:   stationID,
		Results:     results,
		CompletedAt: now,
	})
	j.CurrentStation = nil
	j.UpdatedAt = now

	for _, id := range required {
		if !j.HasCompleted(id) {
			j.Phase = PhaseStationRouting
			j.raiseProgress(minInt(progressStationCap, j.Progress+progressStationStep))
			return false, nil
		}
	}

	j.Phase = PhaseCompleted
	j.Progress = progressCompleted
	return true, nil
}

// Cancel terminates the journey from any non-terminal phase. Irreversible.
func (j *Journey) Cancel(now time.Time) error {
	if j.Phase.Terminal() {
		return &InvalidTransitionError{From: j.Phase, Attempted: PhaseCancelled}
	}
	j.Phase = PhaseCancelled
	j.CurrentStation = nil
	j.UpdatedAt = now
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
