package model

import (
	"errors"
	"time"
)

var (
	// ErrEmptyInput is returned when a medication or event list is empty.
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidInterval is returned for a dosing interval <= 0 hours.
	ErrInvalidInterval = errors.New("invalid interval")
)

// Reminder defaults attached to every dose.
const (
	AlarmActionDisplay     = "DISPLAY"
	DefaultAlarmText       = "It's time for your medication!"
	DefaultReminderOffset  = 10 * time.Minute
	DefaultMedicationLimit = 10
)

// Medication is a single entry of the user's medication list.
// Interval is in hours, Duration in days. StartTime marks the first dose.
type Medication struct {
	Name      string    `yaml:"name" json:"name" validate:"required,medname,max=50"`
	Interval  int       `yaml:"interval" json:"interval" validate:"required,interval"`
	Duration  int       `yaml:"duration" json:"duration" validate:"required,min=1,max=31"`
	StartTime time.Time `yaml:"start_time" json:"start_time"`
}

// Alarm is a reminder fired Before the start of a dose.
type Alarm struct {
	Action      string
	Description string
	Before      time.Duration
}

// DefaultAlarm returns the display reminder used for every dose.
func DefaultAlarm() Alarm {
	return Alarm{
		Action:      AlarmActionDisplay,
		Description: DefaultAlarmText,
		Before:      DefaultReminderOffset,
	}
}

// DoseEvent is one scheduled administration of a medication.
type DoseEvent struct {
	// Medication is the name of the medication this dose belongs to.
	Medication string

	// Start / End are in the location of the medication's StartTime.
	// End never crosses into the day after Start.
	Start time.Time
	End   time.Time

	Title       string
	Description string

	// Final is set on the synthetic trailing dose of long-interval schedules.
	Final bool

	Reminder Alarm
}
