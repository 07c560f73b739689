package engine

// Classify maps a usage percentage onto a pressure level.
// The highest threshold is checked first and every boundary is inclusive.
func Classify(percentUsed float64, t Thresholds) Level {
	switch {
	case percentUsed >= t.EmergencyPercent:
		return LevelEmergency
	case percentUsed >= t.CriticalPercent:
		return LevelCritical
	case percentUsed >= t.HighPercent:
		return LevelHigh
	case percentUsed >= t.ModeratePercent:
		return LevelModerate
	default:
		return LevelLow
	}
}
