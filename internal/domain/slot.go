package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	TimeLayout = "15:04"

	timeWithSecondsLayout = "15:04:05"
)

var ErrInvalidTime = errors.New("time must be HH:MM or HH:MM:SS (24-hour)")

// Slot is the (date, time) pair an appointment occupies. At most one
// appointment may hold a given slot.
type Slot struct {
	Date string
	Time string
}

func (s Slot) String() string {
	return s.Date + " " + s.Time
}

// ParseTime validates HH:MM or HH:MM:SS and returns HH:MM. Seconds are
// dropped: slots have minute granularity.
func ParseTime(value string) (string, error) {
	value = strings.TrimSpace(value)

	var layout string
	switch len(value) {
	case len(TimeLayout):
		layout = TimeLayout
	case len(timeWithSecondsLayout):
		layout = timeWithSecondsLayout
	default:
		return "", ErrInvalidTime
	}

	t, err := time.Parse(layout, value)
	if err != nil {
		return "", ErrInvalidTime
	}
	return t.Format(TimeLayout), nil
}
