package engine

// Thresholds defines the usage percentages at which each pressure level starts.
// Boundaries are inclusive: a usage equal to HighPercent is HIGH.
type Thresholds struct {
	ModeratePercent  float64 `yaml:"moderate_percent" json:"moderate_percent"`
	HighPercent      float64 `yaml:"high_percent" json:"high_percent"`
	CriticalPercent  float64 `yaml:"critical_percent" json:"critical_percent"`
	EmergencyPercent float64 `yaml:"emergency_percent" json:"emergency_percent"`
	GCThresholdMB    uint64  `yaml:"gc_threshold_mb" json:"gc_threshold_mb"`
}

// DefaultThresholds returns the stock 70/80/90/95 thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ModeratePercent:  70.0,
		HighPercent:      80.0,
		CriticalPercent:  90.0,
		EmergencyPercent: 95.0,
		GCThresholdMB:    100,
	}
}

// Validate checks that the thresholds are strictly increasing and lie in (0, 100].
func (t Thresholds) Validate() error {
	if t.ModeratePercent <= 0 {
		return &ThresholdError{Field: "ModeratePercent", Message: "must be positive"}
	}
	if t.HighPercent <= t.ModeratePercent {
		return &ThresholdError{Field: "HighPercent", Message: "must be greater than ModeratePercent"}
	}
	if t.CriticalPercent <= t.HighPercent {
		return &ThresholdError{Field: "CriticalPercent", Message: "must be greater than HighPercent"}
	}
	if t.EmergencyPercent <= t.CriticalPercent {
		return &ThresholdError{Field: "EmergencyPercent", Message: "must be greater than CriticalPercent"}
	}
	if t.EmergencyPercent > 100 {
		return &ThresholdError{Field: "EmergencyPercent", Message: "must not exceed 100"}
	}
	return nil
}

// ThresholdError represents a threshold validation error.
type ThresholdError struct {
	Field   string
	Message string
}

func (e *ThresholdError) Error() string {
	return "threshold error: " + e.Field + " " + e.Message
}
