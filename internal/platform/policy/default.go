package policy

// Default returns the built-in occupational-health clinic policy. It is the
// deployment used by the seed command and by tests; real deployments override
// it with CLINICAL_POLICY_FILE.
func Default() *Policy {
	return &Policy{
		Stations: []StationPolicy{
			{
				ID: "reception", Name: "Reception Desk", Type: "reception", Category: "administrative",
				MaxCapacity: 10, StaffOnDuty: 2, AvgServiceMinutes: 5,
				QueueLengthThreshold: 8, WaitMinutesThreshold: 30, UtilizationThreshold: 0.8,
			},
			{
				ID: "questionnaire", Name: "Medical Questionnaire", Type: "questionnaire", Category: "administrative",
				MaxCapacity: 8, StaffOnDuty: 1, AvgServiceMinutes: 10,
				QueueLengthThreshold: 6, WaitMinutesThreshold: 40, UtilizationThreshold: 0.8,
			},
			{
				ID: "vital-signs", Name: "Vital Signs", Type: "vital-signs", Category: "screening",
				MaxCapacity: 4, StaffOnDuty: 2, AvgServiceMinutes: 10,
				QueueLengthThreshold: 3, WaitMinutesThreshold: 30, UtilizationThreshold: 0.75,
				Equipment: []EquipmentPolicy{
					{ID: "bp-monitor-1", Name: "Blood Pressure Monitor", Required: true},
					{ID: "scale-1", Name: "Medical Scale", Required: true},
					{ID: "thermometer-1", Name: "Thermometer", Required: false},
				},
			},
			{
				ID: "vision", Name: "Vision Test", Type: "vision", Category: "screening",
				MaxCapacity: 3, StaffOnDuty: 1, AvgServiceMinutes: 15,
				QueueLengthThreshold: 3, WaitMinutesThreshold: 45, UtilizationThreshold: 0.75,
				Equipment: []EquipmentPolicy{
					{ID: "vision-tester-1", Name: "Vision Screener", Required: true},
				},
			},
			{
				ID: "audio", Name: "Audiometry", Type: "audio", Category: "screening",
				MaxCapacity: 2, StaffOnDuty: 1, AvgServiceMinutes: 20,
				QueueLengthThreshold: 2, WaitMinutesThreshold: 40, UtilizationThreshold: 0.75,
				Equipment: []EquipmentPolicy{
					{ID: "audiometer-1", Name: "Audiometer", Required: true},
					{ID: "audio-booth-1", Name: "Sound Booth", Required: true},
				},
			},
			{
				ID: "cardiac", Name: "Cardiac Assessment", Type: "cardiac", Category: "clinical",
				MaxCapacity: 3, StaffOnDuty: 2, AvgServiceMinutes: 20,
				QueueLengthThreshold: 2, WaitMinutesThreshold: 30, UtilizationThreshold: 0.7,
				Equipment: []EquipmentPolicy{
					{ID: "ecg-1", Name: "ECG Machine", Required: true},
					{ID: "defibrillator-1", Name: "Defibrillator", Required: false},
				},
			},
			{
				ID: "spirometry", Name: "Spirometry", Type: "spirometry", Category: "clinical",
				MaxCapacity: 2, StaffOnDuty: 1, AvgServiceMinutes: 15,
				QueueLengthThreshold: 2, WaitMinutesThreshold: 35, UtilizationThreshold: 0.75,
				Equipment: []EquipmentPolicy{
					{ID: "spirometer-1", Name: "Spirometer", Required: true},
				},
			},
			{
				ID: "imaging", Name: "Chest X-Ray", Type: "imaging", Category: "clinical",
				MaxCapacity: 2, StaffOnDuty: 1, AvgServiceMinutes: 15,
				QueueLengthThreshold: 2, WaitMinutesThreshold: 40, UtilizationThreshold: 0.7,
				Equipment: []EquipmentPolicy{
					{ID: "xray-1", Name: "X-Ray Unit", Required: true},
				},
			},
			{
				ID: "clinical-review", Name: "Physician Review", Type: "clinical-review", Category: "clinical",
				MaxCapacity: 4, StaffOnDuty: 2, AvgServiceMinutes: 25,
				QueueLengthThreshold: 3, WaitMinutesThreshold: 60, UtilizationThreshold: 0.8,
			},
		},
		FlagRoutes: []FlagRoute{
			{Flag: "chest_pain", StationID: "cardiac", Tier: "urgent", Reason: "Reported chest pain requires immediate cardiac assessment"},
			{Flag: "cardiac_history", StationID: "cardiac", Tier: "urgent", Reason: "Documented cardiac history requires priority cardiac assessment"},
			{Flag: "cardiac_history", StationID: "vital-signs", Tier: "high", Reason: "Baseline vitals needed before cardiac assessment"},
			{Flag: "palpitations", StationID: "cardiac", Tier: "high", Reason: "Reported palpitations warrant cardiac assessment"},
			{Flag: "hypertension", StationID: "vital-signs", Tier: "high", Reason: "Known hypertension requires blood pressure monitoring"},
			{Flag: "shortness_of_breath", StationID: "spirometry", Tier: "high", Reason: "Breathing difficulty requires lung function testing"},
			{Flag: "shortness_of_breath", StationID: "cardiac", Tier: "high", Reason: "Breathing difficulty may indicate cardiac involvement"},
			{Flag: "asthma", StationID: "spirometry", Tier: "high", Reason: "Asthma history requires lung function testing"},
			{Flag: "smoker", StationID: "spirometry", Tier: "medium", Reason: "Smoking history warrants lung function screening"},
			{Flag: "smoker", StationID: "imaging", Tier: "medium", Reason: "Smoking history warrants chest imaging"},
			{Flag: "seizures", StationID: "clinical-review", Tier: "urgent", Reason: "Seizure history requires physician evaluation before clearance"},
			{Flag: "vertigo", StationID: "clinical-review", Tier: "high", Reason: "Vertigo requires physician evaluation for height work clearance"},
			{Flag: "fainting", StationID: "cardiac", Tier: "high", Reason: "Fainting episodes warrant cardiac assessment"},
			{Flag: "vision_impaired", StationID: "vision", Tier: "high", Reason: "Reported vision impairment requires vision testing"},
			{Flag: "hearing_loss", StationID: "audio", Tier: "high", Reason: "Reported hearing loss requires audiometry"},
		},
		Examinations: []ExaminationPolicy{
			{Type: "pre_employment", RequiredStations: []string{"vital-signs", "vision", "audio", "spirometry", "clinical-review"}},
			{Type: "periodic", RequiredStations: []string{"vital-signs", "vision", "clinical-review"}},
			{Type: "working_at_heights", RequiredStations: []string{"vital-signs", "vision", "cardiac", "clinical-review"}},
			{Type: "exit", RequiredStations: []string{"vital-signs", "clinical-review"}},
		},
		Risk: RiskPolicy{
			Dimensions: []RiskDimension{
				{
					Name:         "working_at_heights",
					Critical:     []string{"seizures", "vertigo", "fainting"},
					Contributing: []string{"fear_of_heights", "medication_drowsiness", "vision_impaired"},
				},
				{
					Name:         "cardiovascular",
					Critical:     []string{"chest_pain", "cardiac_history"},
					Contributing: []string{"hypertension", "palpitations", "smoker"},
				},
				{
					Name:         "respiratory",
					Critical:     []string{"shortness_of_breath"},
					Contributing: []string{"asthma", "smoker"},
				},
			},
		},
	}
}
