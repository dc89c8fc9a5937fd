package sqlite

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

type scanner interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) PutHabit(ctx context.Context, habit models.Habit) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	return putHabit(ctx, db, habit)
}

func putHabit(ctx context.Context, db execer, h models.Habit) error {
	var reminders sql.NullString
	if h.ReminderTimes != nil {
		data, err := json.Marshal(h.ReminderTimes)
		if err != nil {
			return fmt.Errorf("failed to encode reminder times: %w", err)
		}
		reminders = sql.NullString{String: string(data), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO habits (`+habitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, h.Name, h.Icon, h.Color, string(h.Type), nullString(h.Unit), nullFloat(h.TargetValue),
		reminders, nullString(string(h.TimeOfDay)), h.RemindersEnabled,
		formatTime(h.CreatedAt), formatTime(h.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save habit %s: %w", h.ID, err)
	}
	return nil
}

func scanHabit(row scanner) (models.Habit, error) {
	var h models.Habit
	var habitType, createdAt, updatedAt string
	var unit, reminders, timeOfDay sql.NullString
	var target sql.NullFloat64

	if err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Icon, &h.Color, &habitType, &unit, &target,
		&reminders, &timeOfDay, &h.RemindersEnabled, &createdAt, &updatedAt); err != nil {
		return models.Habit{}, err
	}

	h.Type = models.CompletionType(habitType)
	h.Unit = unit.String
	h.TargetValue = floatPtr(target)
	h.TimeOfDay = models.TimeOfDay(timeOfDay.String)
	if reminders.Valid {
		if err := json.Unmarshal([]byte(reminders.String), &h.ReminderTimes); err != nil {
			return models.Habit{}, fmt.Errorf("failed to decode reminder times for habit %s: %w", h.ID, err)
		}
	}

	var err error
	if h.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return models.Habit{}, err
	}
	if h.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return models.Habit{}, err
	}
	return h, nil
}

func (s *Store) GetHabit(ctx context.Context, id string) (models.Habit, error) {
	db, err := s.conn()
	if err != nil {
		return models.Habit{}, err
	}

	h, err := scanHabit(db.QueryRowContext(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Habit{}, fmt.Errorf("habit %s: %w", id, storage.ErrNotFound)
		}
		return models.Habit{}, err
	}
	return h, nil
}

func (s *Store) GetHabitsByUser(ctx context.Context, userID string) ([]models.Habit, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+habitColumns+`
		FROM habits WHERE user_id = ?
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

func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM completions WHERE habit_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete completions of habit %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM habits WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete habit %s: %w", id, err)
	}
	return tx.Commit()
}
