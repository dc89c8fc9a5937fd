package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/julianstephens/habitsync/internal/models"
)

const completionColumns = `id, user_id, habit_id, date, value, created_at`

func (s *Store) PutCompletion(ctx context.Context, c models.Completion) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	return putCompletion(ctx, db, c)
}

func putCompletion(ctx context.Context, db execer, c models.Completion) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO completions (`+completionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.HabitID, c.Date, nullFloat(c.Value), formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save completion %s: %w", c.ID, err)
	}
	return nil
}

func scanCompletion(row scanner) (models.Completion, error) {
	var c models.Completion
	var value sql.NullFloat64
	var createdAt string

	if err := row.Scan(&c.ID, &c.UserID, &c.HabitID, &c.Date, &value, &createdAt); err != nil {
		return models.Completion{}, err
	}
	c.Value = floatPtr(value)

	var err error
	if c.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return models.Completion{}, err
	}
	return c, nil
}

func (s *Store) queryCompletions(ctx context.Context, where string, args ...any) ([]models.Completion, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+completionColumns+`
		FROM completions WHERE `+where+`
		ORDER BY date, created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	completions := []models.Completion{}
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

func (s *Store) GetCompletionsByUser(ctx context.Context, userID string) ([]models.Completion, error) {
	return s.queryCompletions(ctx, "user_id = ?", userID)
}

func (s *Store) GetCompletionsByHabit(ctx context.Context, habitID string) ([]models.Completion, error) {
	return s.queryCompletions(ctx, "habit_id = ?", habitID)
}

func (s *Store) GetCompletionsByDate(ctx context.Context, userID, date string) ([]models.Completion, error) {
	return s.queryCompletions(ctx, "user_id = ? AND date = ?", userID, date)
}

func (s *Store) DeleteCompletion(ctx context.Context, id string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM completions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete completion %s: %w", id, err)
	}
	return nil
}
