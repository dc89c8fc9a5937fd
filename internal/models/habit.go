package models

import "time"

type CompletionType string

const (
	CompletionBoolean CompletionType = "boolean"
	CompletionNumeric CompletionType = "numeric"
)

type TimeOfDay string

const (
	TimeOfDayMorning   TimeOfDay = "morning"
	TimeOfDayAfternoon TimeOfDay = "afternoon"
	TimeOfDayEvening   TimeOfDay = "evening"
	TimeOfDayAnytime   TimeOfDay = "anytime"
)

// Habit represents a recurring practice to track
type Habit struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	Name             string         `json:"name"`
	Icon             string         `json:"icon"`
	Color            string         `json:"color"`
	Type             CompletionType `json:"type"`
	Unit             string         `json:"unit,omitempty"`
	TargetValue      *float64       `json:"target_value,omitempty"`
	ReminderTimes    []string       `json:"reminder_times,omitempty"` // HH:MM format
	TimeOfDay        TimeOfDay      `json:"time_of_day,omitempty"`
	RemindersEnabled bool           `json:"reminders_enabled"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsNumeric reports whether the habit is tracked against a numeric target.
func (h Habit) IsNumeric() bool {
	return h.Type == CompletionNumeric
}

// Target returns the effective daily target of a numeric habit. A missing or
// non-positive target counts as 1.
func (h Habit) Target() float64 {
	if h.TargetValue == nil || *h.TargetValue <= 0 {
		return 1
	}
	return *h.TargetValue
}
