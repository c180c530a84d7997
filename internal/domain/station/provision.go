package station

import (
	"fmt"
	"sort"

	"github.com/clinicflow/clinicflow/internal/platform/policy"
)

// FromPolicy builds stations from the clinical policy. Per-station routing
// hints are derived rather than configured twice: FlagTriggers collects the
// flags whose routes target the station, RequiredFor the examination types
// that require it. Equipment starts operational.
func FromPolicy(pol *policy.Policy) ([]*Station, error) {
	if err := pol.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	triggers := make(map[string][]string)
	for _, route := range pol.FlagRoutes {
		triggers[route.StationID] = appendUnique(triggers[route.StationID], route.Flag)
	}

	requiredFor := make(map[string][]string)
	for _, ex := range pol.Examinations {
		for _, id := range ex.RequiredStations {
			requiredFor[id] = appendUnique(requiredFor[id], ex.Type)
		}
	}

	stations := make([]*Station, 0, len(pol.Stations))
	for _, sp := range pol.Stations {
		if !ValidTypes[Type(sp.Type)] {
			return nil, fmt.Errorf("station %s: unknown type %q", sp.ID, sp.Type)
		}

		equipment := make([]Equipment, 0, len(sp.Equipment))
		for _, ep := range sp.Equipment {
			equipment = append(equipment, Equipment{
				ID:       ep.ID,
				Name:     ep.Name,
				Status:   EquipmentOperational,
				Required: ep.Required,
			})
		}

		st := &Station{
			ID:                sp.ID,
			Name:              sp.Name,
			Type:              Type(sp.Type),
			Category:          sp.Category,
			MaxCapacity:       sp.MaxCapacity,
			StaffOnDuty:       sp.StaffOnDuty,
			AvgServiceMinutes: sp.AvgServiceMinutes,
			IsActive:          true,
			Thresholds: Thresholds{
				QueueLength: sp.QueueLengthThreshold,
				WaitMinutes: sp.WaitMinutesThreshold,
				Utilization: sp.UtilizationThreshold,
			},
			Equipment:    equipment,
			RequiredFor:  sortedCopy(requiredFor[sp.ID]),
			FlagTriggers: sortedCopy(triggers[sp.ID]),
		}
		recomputeStatus(st)
		stations = append(stations, st)
	}

	return stations, nil
}

// NewRegistryFromPolicy provisions a registry with the policy's stations.
func NewRegistryFromPolicy(pol *policy.Policy) (*Registry, error) {
	stations, err := FromPolicy(pol)
	if err != nil {
		return nil, err
	}
	reg := NewRegistry()
	for _, st := range stations {
		if err := reg.Add(st); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func sortedCopy(list []string) []string {
	out := append([]string(nil), list...)
	sort.Strings(out)
	return out
}
