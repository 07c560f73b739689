package engine

import (
	"fmt"
	"strings"
)

// Level is the memory pressure classification of a snapshot.
// Levels are ordered: comparing two levels with < tells whether pressure eased.
type Level int

const (
	LevelLow Level = iota
	LevelModerate
	LevelHigh
	LevelCritical
	LevelEmergency
)

var levelText = map[Level]string{
	LevelLow:       "LOW",
	LevelModerate:  "MODERATE",
	LevelHigh:      "HIGH",
	LevelCritical:  "CRITICAL",
	LevelEmergency: "EMERGENCY",
}

func (l Level) String() string {
	if s, ok := levelText[l]; ok {
		return s
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel converts a label such as "critical" back to a Level.
func ParseLevel(s string) (Level, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for l, text := range levelText {
		if text == want {
			return l, nil
		}
	}
	return LevelLow, fmt.Errorf("unknown pressure level %q", s)
}

// AtLeast reports whether l is the same as or more severe than other.
func (l Level) AtLeast(other Level) bool {
	return l >= other
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
