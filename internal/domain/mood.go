package domain

import (
	"strconv"
	"strings"
)

// Mood is the emotional register used when illustrating a verdict.
type Mood string

const (
	MoodAngry   Mood = "angry"
	MoodSad     Mood = "sad"
	MoodIronic  Mood = "ironic"
	MoodAbsurd  Mood = "absurd"
	MoodUnknown Mood = "unknown"
)

// MoodFromLevel maps a 1-10 frustration level to a mood.
// Values that are not numbers or fall outside the scale yield MoodUnknown.
func MoodFromLevel(raw string) Mood {
	v, err := strconv.ParseFloat(strings.Trim(strings.TrimSpace(raw), `"`), 64)
	if err != nil {
		return MoodUnknown
	}
	switch {
	case v >= 1 && v <= 3:
		return MoodAngry
	case v >= 4 && v <= 6:
		return MoodSad
	case v >= 7 && v <= 8:
		return MoodIronic
	case v >= 9 && v <= 10:
		return MoodAbsurd
	default:
		return MoodUnknown
	}
}
