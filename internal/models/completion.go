package models

import "time"

// Completion records progress on a habit for a single local calendar day.
// Boolean habits have at most one completion per day; numeric habits may have
// several, whose values are summed.
type Completion struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	HabitID   string    `json:"habit_id"`
	Date      string    `json:"date"` // YYYY-MM-DD format
	Value     *float64  `json:"value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Amount returns the logged value, or 0 when none was recorded.
func (c Completion) Amount() float64 {
	if c.Value == nil {
		return 0
	}
	return *c.Value
}
