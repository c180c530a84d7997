package station

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies a station within the examination pipeline.
type Type string

const (
	TypeReception      Type = "reception"
	TypeQuestionnaire  Type = "questionnaire"
	TypeVitalSigns     Type = "vital-signs"
	TypeVision         Type = "vision"
	TypeAudio          Type = "audio"
	TypeCardiac        Type = "cardiac"
	TypeSpirometry     Type = "spirometry"
	TypeImaging        Type = "imaging"
	TypeClinicalReview Type = "clinical-review"
)

// ValidTypes is the closed set of station types.
var ValidTypes = map[Type]bool{
	TypeReception:      true,
	TypeQuestionnaire:  true,
	TypeVitalSigns:     true,
	TypeVision:         true,
	TypeAudio:          true,
	TypeCardiac:        true,
	TypeSpirometry:     true,
	TypeImaging:        true,
	TypeClinicalReview: true,
}

// Status is the derived operational state of a station. It is never set
// directly by callers; DeriveStatus recomputes it after every mutation.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusBusy        Status = "busy"
	StatusFull        Status = "full"
	StatusClosed      Status = "closed"
	StatusMaintenance Status = "maintenance"
)

// PriorityTier governs queue admission order. Only urgent preempts.
type PriorityTier string

const (
	TierUrgent PriorityTier = "urgent"
	TierHigh   PriorityTier = "high"
	TierMedium PriorityTier = "medium"
	TierLow    PriorityTier = "low"
)

// Rank returns the tier's sort rank; lower ranks ahead of higher.
func (t PriorityTier) Rank() int {
	switch t {
	case TierUrgent:
		return 0
	case TierHigh:
		return 1
	case TierMedium:
		return 2
	case TierLow:
		return 3
	default:
		return 4
	}
}

// Valid reports whether t is one of the four known tiers.
func (t PriorityTier) Valid() bool {
	return t.Rank() < 4
}

// EquipmentStatus is the operational state of one equipment item.
type EquipmentStatus string

const (
	EquipmentOperational EquipmentStatus = "operational"
	EquipmentMaintenance EquipmentStatus = "maintenance"
	EquipmentBroken      EquipmentStatus = "broken"
)

// ValidEquipmentStatuses is the closed set of equipment states.
var ValidEquipmentStatuses = map[EquipmentStatus]bool{
	EquipmentOperational: true,
	EquipmentMaintenance: true,
	EquipmentBroken:      true,
}

// Equipment is one device installed at a station. A broken required item
// forces the station into maintenance status.
type Equipment struct {
	ID       string          `db:"id" json:"id"`
	Name     string          `db:"name" json:"name"`
	Status   EquipmentStatus `db:"status" json:"status"`
	Required bool            `db:"required" json:"required"`
}

// Thresholds are the per-station alert trigger levels.
type Thresholds struct {
	QueueLength int     `db:"queue_length_threshold" json:"queue_length"`
	WaitMinutes int     `db:"wait_minutes_threshold" json:"wait_minutes"`
	Utilization float64 `db:"utilization_threshold" json:"utilization"`
}

// QueueEntry is one patient waiting at a station. Seq is the registry-wide
// monotonic insertion sequence; together with the tier it forms the priority
// key that fully determines queue order.
type QueueEntry struct {
	PatientID         uuid.UUID    `db:"patient_id" json:"patient_id"`
	SessionID         uuid.UUID    `db:"session_id" json:"session_id"`
	Tier              PriorityTier `db:"tier" json:"tier"`
	Position          int          `db:"position" json:"position"`
	Seq               uint64       `db:"seq" json:"seq"`
	EnqueuedAt        time.Time    `db:"enqueued_at" json:"enqueued_at"`
	EstServiceMinutes int          `db:"est_service_minutes" json:"est_service_minutes"`
}

// AlertKind names the threshold rule that raised an alert.
type AlertKind string

const (
	AlertQueueLength AlertKind = "queue_length"
	AlertWaitTime    AlertKind = "wait_time"
	AlertUtilization AlertKind = "utilization"
)

// Alert severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is one threshold breach. Alerts are never auto-deleted; they stay
// until explicitly resolved.
type Alert struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Kind       AlertKind  `db:"kind" json:"kind"`
	Severity   string     `db:"severity" json:"severity"`
	Message    string     `db:"message" json:"message"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	Resolved   bool       `db:"resolved" json:"resolved"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// DailyMetrics is the rollup record for one station and one calendar day.
type DailyMetrics struct {
	Day                 string  `db:"day" json:"day"` // YYYY-MM-DD
	PatientsServed      int     `db:"patients_served" json:"patients_served"`
	TotalWaitMinutes    int     `db:"total_wait_minutes" json:"total_wait_minutes"`
	TotalServiceMinutes int     `db:"total_service_minutes" json:"total_service_minutes"`
	BottleneckIncidents int     `db:"bottleneck_incidents" json:"bottleneck_incidents"`
	PeakUtilization     float64 `db:"peak_utilization" json:"peak_utilization"`
}

// Station is one examination point: its configuration, live queue, equipment,
// open alerts, and daily rollups. Registry methods hand out deep copies;
// callers must treat a Station value as a point-in-time snapshot.
type Station struct {
	ID                string         `db:"id" json:"id"`
	Name              string         `db:"name" json:"name"`
	Type              Type           `db:"type" json:"type"`
	Category          string         `db:"category" json:"category"`
	MaxCapacity       int            `db:"max_capacity" json:"max_capacity"`
	StaffOnDuty       int            `db:"staff_on_duty" json:"staff_on_duty"`
	AvgServiceMinutes int            `db:"avg_service_minutes" json:"avg_service_minutes"`
	IsActive          bool           `db:"is_active" json:"is_active"`
	Status            Status         `db:"status" json:"status"`
	Thresholds        Thresholds     `json:"thresholds"`
	Queue             []QueueEntry   `json:"queue"`
	Equipment         []Equipment    `json:"equipment"`
	Alerts            []Alert        `json:"alerts"`
	Metrics           []DailyMetrics `json:"metrics"`
	RequiredFor       []string       `json:"required_for"`
	FlagTriggers      []string       `json:"flag_triggers"`
}

// QueueLength returns the number of waiting patients.
func (s *Station) QueueLength() int { return len(s.Queue) }

// Utilization returns queue length over capacity.
func (s *Station) Utilization() float64 {
	if s.MaxCapacity <= 0 {
		return 0
	}
	return float64(len(s.Queue)) / float64(s.MaxCapacity)
}

// EstimatedWait returns the estimated wait in minutes for the given queue
// position.
func (s *Station) EstimatedWait(position int) int {
	return position * s.AvgServiceMinutes
}

// NewEntryWait returns the wait a newly admitted non-urgent patient would
// face: the full current queue ahead of them.
func (s *Station) NewEntryWait() int {
	return len(s.Queue) * s.AvgServiceMinutes
}

// FindEquipment returns the equipment item with the given id, or nil.
func (s *Station) FindEquipment(equipmentID string) *Equipment {
	for i := range s.Equipment {
		if s.Equipment[i].ID == equipmentID {
			return &s.Equipment[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the station.
func (s *Station) Clone() *Station {
	out := *s
	out.Queue = append([]QueueEntry(nil), s.Queue...)
	out.Equipment = append([]Equipment(nil), s.Equipment...)
	out.Alerts = append([]Alert(nil), s.Alerts...)
	out.Metrics = append([]DailyMetrics(nil), s.Metrics...)
	out.RequiredFor = append([]string(nil), s.RequiredFor...)
	out.FlagTriggers = append([]string(nil), s.FlagTriggers...)
	return &out
}
