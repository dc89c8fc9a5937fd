package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/storage"
)

const habitColumns = `id, user_id, name, icon, color, type, unit, target_value,
       reminder_times, time_of_day, reminders_enabled, created_at, updated_at`

func encodeReminders(times []string) (sql.NullString, error) {
	if times == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(times)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode reminder times: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func scanHabit(row scanner) (models.Habit, error) {
	var h models.Habit
	var habitType string
	var unit, reminders, timeOfDay sql.NullString
	var target sql.NullFloat64

	if err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Icon, &h.Color, &habitType, &unit, &target,
		&reminders, &timeOfDay, &h.RemindersEnabled, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return models.Habit{}, err
	}

	h.Type = models.CompletionType(habitType)
	h.Unit = unit.String
	h.TargetValue = floatPtr(target)
	h.TimeOfDay = models.TimeOfDay(timeOfDay.String)
	h.CreatedAt = h.CreatedAt.UTC()
	h.UpdatedAt = h.UpdatedAt.UTC()
	if reminders.Valid {
		if err := json.Unmarshal([]byte(reminders.String), &h.ReminderTimes); err != nil {
			return models.Habit{}, fmt.Errorf("failed to decode reminder times for habit %s: %w", h.ID, err)
		}
	}
	return h, nil
}

func (s *Store) getHabit(ctx context.Context, db *sql.DB, userID, id string) (models.Habit, error) {
	h, err := scanHabit(db.QueryRowContext(ctx, `
SELECT `+habitColumns+`
FROM habits WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Habit{}, fmt.Errorf("habit %s: %w", id, storage.ErrNotFound)
		}
		return models.Habit{}, err
	}
	return h, nil
}

func (s *Store) ListHabits(ctx context.Context, userID string) ([]models.Habit, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
SELECT `+habitColumns+`
FROM habits WHERE user_id = $1
ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	habits := []models.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// CreateHabit inserts habit for userID. Creating an id that already exists
// for the same user returns the stored row unchanged.
func (s *Store) CreateHabit(ctx context.Context, userID string, h models.Habit) (models.Habit, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return models.Habit{}, err
	}
	reminders, err := encodeReminders(h.ReminderTimes)
	if err != nil {
		return models.Habit{}, err
	}

	_, err = db.ExecContext(ctx, `
INSERT INTO habits (`+habitColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO NOTHING`,
		h.ID, userID, h.Name, h.Icon, h.Color, string(h.Type), nullString(h.Unit), nullFloat(h.TargetValue),
		reminders, nullString(string(h.TimeOfDay)), h.RemindersEnabled, h.CreatedAt.UTC(), h.UpdatedAt.UTC())
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to create habit %s: %w", h.ID, err)
	}

	stored, err := s.getHabit(ctx, db, userID, h.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Habit{}, fmt.Errorf("habit %s: %w", h.ID, storage.ErrConflict)
	}
	return stored, err
}

func (s *Store) UpdateHabit(ctx context.Context, userID string, h models.Habit) (models.Habit, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return models.Habit{}, err
	}
	reminders, err := encodeReminders(h.ReminderTimes)
	if err != nil {
		return models.Habit{}, err
	}

	res, err := db.ExecContext(ctx, `
UPDATE habits SET name = $3, icon = $4, color = $5, type = $6, unit = $7, target_value = $8,
       reminder_times = $9, time_of_day = $10, reminders_enabled = $11, updated_at = $12
WHERE id = $1 AND user_id = $2`,
		h.ID, userID, h.Name, h.Icon, h.Color, string(h.Type), nullString(h.Unit), nullFloat(h.TargetValue),
		reminders, nullString(string(h.TimeOfDay)), h.RemindersEnabled, h.UpdatedAt.UTC())
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to update habit %s: %w", h.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Habit{}, fmt.Errorf("habit %s: %w", h.ID, storage.ErrNotFound)
	}
	return s.getHabit(ctx, db, userID, h.ID)
}

// DeleteHabit removes the habit and its completions. Deleting a habit that
// does not exist succeeds.
func (s *Store) DeleteHabit(ctx context.Context, userID, id string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM completions WHERE habit_id = $1 AND user_id = $2`, id, userID); err != nil {
		return fmt.Errorf("failed to delete completions of habit %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM habits WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		return fmt.Errorf("failed to delete habit %s: %w", id, err)
	}
	return tx.Commit()
}
