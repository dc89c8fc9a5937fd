package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/models"
)

var ErrInvalidHabit = errors.New("invalid habit")

// ValidateHabit checks the fields a user can set on a habit.
func ValidateHabit(h models.Habit) error {
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidHabit)
	}
	switch h.Type {
	case models.CompletionBoolean, models.CompletionNumeric:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidHabit, h.Type)
	}
	if h.TargetValue != nil && *h.TargetValue <= 0 {
		return fmt.Errorf("%w: target must be greater than 0", ErrInvalidHabit)
	}
	switch h.TimeOfDay {
	case "", models.TimeOfDayMorning, models.TimeOfDayAfternoon, models.TimeOfDayEvening, models.TimeOfDayAnytime:
	default:
		return fmt.Errorf("%w: unknown time of day %q", ErrInvalidHabit, h.TimeOfDay)
	}
	for _, rt := range h.ReminderTimes {
		if !isValidTimeFormat(rt) {
			return fmt.Errorf("%w: invalid reminder time %q (expected HH:MM)", ErrInvalidHabit, rt)
		}
	}
	return nil
}

// ValidateDate checks a YYYY-MM-DD calendar date.
func ValidateDate(date string) error {
	if !isValidDateFormat(date) {
		return fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", date)
	}
	return nil
}

// ConflictType represents the type of data integrity conflict
type ConflictType string

const (
	ConflictDuplicateHabitName  ConflictType = "duplicate_habit_name"
	ConflictOrphanCompletion    ConflictType = "orphan_completion"
	ConflictDuplicateCompletion ConflictType = "duplicate_completion"
	ConflictInvalidDateTime     ConflictType = "invalid_datetime"
	ConflictInvalidValue        ConflictType = "invalid_value"
	ConflictInvalidHabit        ConflictType = "invalid_habit"
	ConflictDeadOperation       ConflictType = "dead_operation"
)

// Conflict represents a detected problem in the cached data
type Conflict struct {
	Type        ConflictType
	Description string
	Date        string   // YYYY-MM-DD format (if applicable)
	Items       []string // names involved
	IDs         []string // record ids involved
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, conflict := range vr.Conflicts {
		fmt.Fprintf(&b, "- %s\n", conflict.Description)
	}
	return b.String()
}

// Validator checks cached habits, completions and the operation queue.
type Validator struct{}

// New creates a new Validator
func New() *Validator {
	return &Validator{}
}

// ValidateHabits reports invalid habits and duplicate names.
func (v *Validator) ValidateHabits(habits []models.Habit) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}

	nameIDs := make(map[string][]string)
	for _, h := range habits {
		if err := ValidateHabit(h); err != nil {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictInvalidHabit,
				Description: fmt.Sprintf("Habit %q is invalid: %v", h.Name, err),
				Items:       []string{h.Name},
				IDs:         []string{h.ID},
			})
		}
		if h.Name != "" {
			key := strings.ToLower(strings.TrimSpace(h.Name))
			nameIDs[key] = append(nameIDs[key], h.ID)
		}
	}

	names := make([]string, 0, len(nameIDs))
	for name := range nameIDs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if ids := nameIDs[name]; len(ids) > 1 {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictDuplicateHabitName,
				Description: fmt.Sprintf("Duplicate habit name: %q (IDs: %v)", name, ids),
				Items:       []string{name},
				IDs:         ids,
			})
		}
	}
	return result
}

// ValidateCompletions reports completions that break the completion rules:
// unknown habit, bad date, non-positive numeric value, or more than one
// record for a boolean habit on one day.
func (v *Validator) ValidateCompletions(habits []models.Habit, completions []models.Completion) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}

	byID := make(map[string]models.Habit, len(habits))
	for _, h := range habits {
		byID[h.ID] = h
	}

	perDay := make(map[string][]string)
	var dayKeys []string
	for _, c := range completions {
		h, ok := byID[c.HabitID]
		if !ok {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictOrphanCompletion,
				Description: fmt.Sprintf("Completion %s references unknown habit %s", c.ID, c.HabitID),
				Date:        c.Date,
				IDs:         []string{c.ID},
			})
			continue
		}
		if !isValidDateFormat(c.Date) {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictInvalidDateTime,
				Description: fmt.Sprintf("Completion %s of %q has invalid date: %s", c.ID, h.Name, c.Date),
				Items:       []string{h.Name},
				IDs:         []string{c.ID},
			})
			continue
		}
		if h.IsNumeric() {
			if c.Value != nil && *c.Value <= 0 {
				result.Conflicts = append(result.Conflicts, Conflict{
					Type:        ConflictInvalidValue,
					Description: fmt.Sprintf("Completion %s of %q on %s has non-positive value %g", c.ID, h.Name, c.Date, *c.Value),
					Date:        c.Date,
					Items:       []string{h.Name},
					IDs:         []string{c.ID},
				})
			}
			continue
		}
		key := h.ID + "|" + c.Date
		if _, seen := perDay[key]; !seen {
			dayKeys = append(dayKeys, key)
		}
		perDay[key] = append(perDay[key], c.ID)
	}

	for _, key := range dayKeys {
		ids := perDay[key]
		if len(ids) < 2 {
			continue
		}
		habitID, date, _ := strings.Cut(key, "|")
		name := byID[habitID].Name
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        ConflictDuplicateCompletion,
			Description: fmt.Sprintf("Habit %q has %d completions on %s", name, len(ids), date),
			Date:        date,
			Items:       []string{name},
			IDs:         ids,
		})
	}
	return result
}

// ValidateQueue reports dead-lettered operations.
func (v *Validator) ValidateQueue(dead []models.PendingOperation) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}
	for _, op := range dead {
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        ConflictDeadOperation,
			Description: fmt.Sprintf("Operation %s (%s) gave up after %d attempts: %s", op.ID, op, op.Attempts, op.LastError),
			IDs:         []string{op.ID},
		})
	}
	return result
}

// Validate runs every check.
func (v *Validator) Validate(habits []models.Habit, completions []models.Completion, dead []models.PendingOperation) ValidationResult {
	result := v.ValidateHabits(habits)
	result.Conflicts = append(result.Conflicts, v.ValidateCompletions(habits, completions).Conflicts...)
	result.Conflicts = append(result.Conflicts, v.ValidateQueue(dead).Conflicts...)
	return result
}

func isValidTimeFormat(s string) bool {
	_, err := time.Parse(constants.TimeFormat, s)
	return err == nil && len(s) == len(constants.TimeFormat)
}

func isValidDateFormat(s string) bool {
	_, err := time.Parse(constants.DateFormat, s)
	return err == nil
}
