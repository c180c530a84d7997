// Package policy loads the clinical policy file: the per-deployment data
// that drives station provisioning, routing rules, and risk classification.
// Capacities, thresholds, flag→station routes, examination requirements and
// risk flag sets are all deployment data, never code constants. The domain
// packages parse these raw shapes into their own typed values.
package policy

import (
	"fmt"

	"github.com/spf13/viper"
)

// Policy is the root of the clinical policy file.
type Policy struct {
	Stations     []StationPolicy     `mapstructure:"stations" json:"stations"`
	FlagRoutes   []FlagRoute         `mapstructure:"flag_routes" json:"flag_routes"`
	Examinations []ExaminationPolicy `mapstructure:"examinations" json:"examinations"`
	Risk         RiskPolicy          `mapstructure:"risk" json:"risk"`
}

// StationPolicy describes one station to provision.
type StationPolicy struct {
	ID                   string            `mapstructure:"id" json:"id"`
	Name                 string            `mapstructure:"name" json:"name"`
	Type                 string            `mapstructure:"type" json:"type"`
	Category             string            `mapstructure:"category" json:"category"`
	MaxCapacity          int               `mapstructure:"max_capacity" json:"max_capacity"`
	StaffOnDuty          int               `mapstructure:"staff_on_duty" json:"staff_on_duty"`
	AvgServiceMinutes    int               `mapstructure:"avg_service_minutes" json:"avg_service_minutes"`
	QueueLengthThreshold int               `mapstructure:"queue_length_threshold" json:"queue_length_threshold"`
	WaitMinutesThreshold int               `mapstructure:"wait_minutes_threshold" json:"wait_minutes_threshold"`
	UtilizationThreshold float64           `mapstructure:"utilization_threshold" json:"utilization_threshold"`
	Equipment            []EquipmentPolicy `mapstructure:"equipment" json:"equipment"`
}

// EquipmentPolicy describes one equipment item installed at a station.
type EquipmentPolicy struct {
	ID       string `mapstructure:"id" json:"id"`
	Name     string `mapstructure:"name" json:"name"`
	Required bool   `mapstructure:"required" json:"required"`
}

// FlagRoute maps one medical flag to one candidate station with a priority
// tier and a clinical reason. A flag may appear in several routes.
type FlagRoute struct {
	Flag      string `mapstructure:"flag" json:"flag"`
	StationID string `mapstructure:"station_id" json:"station_id"`
	Tier      string `mapstructure:"tier" json:"tier"`
	Reason    string `mapstructure:"reason" json:"reason"`
}

// ExaminationPolicy names the stations a given examination type requires.
// The set is explicit: a journey completes only when every listed station
// has been completed, not when some count of arbitrary stations has.
type ExaminationPolicy struct {
	Type             string   `mapstructure:"type" json:"type"`
	RequiredStations []string `mapstructure:"required_stations" json:"required_stations"`
}

// RiskPolicy holds the flag sets used to classify risk per dimension.
type RiskPolicy struct {
	Dimensions []RiskDimension `mapstructure:"dimensions" json:"dimensions"`
}

// RiskDimension classifies one risk dimension: any critical flag present
// yields high, otherwise any contributing flag yields medium, otherwise low.
type RiskDimension struct {
	Name         string   `mapstructure:"name" json:"name"`
	Critical     []string `mapstructure:"critical" json:"critical"`
	Contributing []string `mapstructure:"contributing" json:"contributing"`
}

var validTiers = map[string]bool{
	"urgent": true,
	"high":   true,
	"medium": true,
	"low":    true,
}

// Load reads the policy file at path (YAML), falling back to Default() when
// path is empty.
func Load(path string) (*Policy, error) {
	if path == "" {
		return Default(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read policy file %s: %w", path, err)
	}

	pol := &Policy{}
	if err := v.Unmarshal(pol); err != nil {
		return nil, fmt.Errorf("unmarshal policy file %s: %w", path, err)
	}

	if err := pol.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy file %s: %w", path, err)
	}

	return pol, nil
}

// Validate checks the policy for internal consistency: station ids unique,
// capacities and service times positive, thresholds sane, and every route,
// examination requirement and risk dimension referencing known identifiers.
func (p *Policy) Validate() error {
	if len(p.Stations) == 0 {
		return fmt.Errorf("at least one station is required")
	}

	stationIDs := make(map[string]bool, len(p.Stations))
	for _, s := range p.Stations {
		if s.ID == "" {
			return fmt.Errorf("station with empty id")
		}
		if stationIDs[s.ID] {
			return fmt.Errorf("duplicate station id %q", s.ID)
		}
		stationIDs[s.ID] = true

		if s.MaxCapacity < 1 {
			return fmt.Errorf("station %s: max_capacity must be >= 1, got %d", s.ID, s.MaxCapacity)
		}
		if s.StaffOnDuty < 0 {
			return fmt.Errorf("station %s: staff_on_duty must be >= 0, got %d", s.ID, s.StaffOnDuty)
		}
		if s.AvgServiceMinutes < 1 {
			return fmt.Errorf("station %s: avg_service_minutes must be >= 1, got %d", s.ID, s.AvgServiceMinutes)
		}
		if s.QueueLengthThreshold < 1 {
			return fmt.Errorf("station %s: queue_length_threshold must be >= 1, got %d", s.ID, s.QueueLengthThreshold)
		}
		if s.WaitMinutesThreshold < 1 {
			return fmt.Errorf("station %s: wait_minutes_threshold must be >= 1, got %d", s.ID, s.WaitMinutesThreshold)
		}
		if s.UtilizationThreshold <= 0 || s.UtilizationThreshold > 1 {
			return fmt.Errorf("station %s: utilization_threshold must be in (0,1], got %v", s.ID, s.UtilizationThreshold)
		}

		equipIDs := make(map[string]bool, len(s.Equipment))
		for _, eq := range s.Equipment {
			if eq.ID == "" {
				return fmt.Errorf("station %s: equipment with empty id", s.ID)
			}
			if equipIDs[eq.ID] {
				return fmt.Errorf("station %s: duplicate equipment id %q", s.ID, eq.ID)
			}
			equipIDs[eq.ID] = true
		}
	}

	for _, r := range p.FlagRoutes {
		if r.Flag == "" {
			return fmt.Errorf("flag route with empty flag")
		}
		if !stationIDs[r.StationID] {
			return fmt.Errorf("flag route %s: unknown station %q", r.Flag, r.StationID)
		}
		if !validTiers[r.Tier] {
			return fmt.Errorf("flag route %s: invalid tier %q", r.Flag, r.Tier)
		}
	}

	examTypes := make(map[string]bool, len(p.Examinations))
	for _, ex := range p.Examinations {
		if ex.Type == "" {
			return fmt.Errorf("examination with empty type")
		}
		if examTypes[ex.Type] {
			return fmt.Errorf("duplicate examination type %q", ex.Type)
		}
		examTypes[ex.Type] = true

		if len(ex.RequiredStations) == 0 {
			return fmt.Errorf("examination %s: required_stations must not be empty", ex.Type)
		}
		for _, id := range ex.RequiredStations {
			if !stationIDs[id] {
				return fmt.Errorf("examination %s: unknown required station %q", ex.Type, id)
			}
		}
	}

	dims := make(map[string]bool, len(p.Risk.Dimensions))
	for _, d := range p.Risk.Dimensions {
		if d.Name == "" {
			return fmt.Errorf("risk dimension with empty name")
		}
		if dims[d.Name] {
			return fmt.Errorf("duplicate risk dimension %q", d.Name)
		}
		dims[d.Name] = true
	}

	return nil
}

// Examination returns the examination policy for the given type, or nil.
func (p *Policy) Examination(examType string) *ExaminationPolicy {
	for i := range p.Examinations {
		if p.Examinations[i].Type == examType {
			return &p.Examinations[i]
		}
	}
	return nil
}

// Station returns the station policy for the given id, or nil.
func (p *Policy) Station(id string) *StationPolicy {
	for i := range p.Stations {
		if p.Stations[i].ID == id {
			return &p.Stations[i]
		}
	}
	return nil
}
