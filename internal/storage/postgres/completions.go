package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/storage"
)

const completionSelect = `
SELECT id, user_id, habit_id, to_char(date, 'YYYY-MM-DD'), value, created_at
FROM completions`

func scanCompletion(row scanner) (models.Completion, error) {
	var c models.Completion
	var value sql.NullFloat64
	if err := row.Scan(&c.ID, &c.UserID, &c.HabitID, &c.Date, &value, &c.CreatedAt); err != nil {
		return models.Completion{}, err
	}
	c.Value = floatPtr(value)
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (s *Store) ListCompletions(ctx context.Context, userID string) ([]models.Completion, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, completionSelect+`
WHERE user_id = $1
ORDER BY date, created_at, id`, userID)
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

// CreateCompletion inserts c for userID. The referenced habit must belong to
// the same user. Replaying an existing id returns the stored row.
func (s *Store) CreateCompletion(ctx context.Context, userID string, c models.Completion) (models.Completion, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return models.Completion{}, err
	}

	_, err = db.ExecContext(ctx, `
INSERT INTO completions (id, user_id, habit_id, date, value, created_at)
SELECT $1::text, $2::text, $3::text, $4::date, $5::double precision, $6::timestamptz
WHERE EXISTS (SELECT 1 FROM habits WHERE id = $3::text AND user_id = $2::text)
ON CONFLICT (id) DO NOTHING`,
		c.ID, userID, c.HabitID, c.Date, nullFloat(c.Value), c.CreatedAt.UTC())
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to create completion %s: %w", c.ID, err)
	}

	stored, err := scanCompletion(db.QueryRowContext(ctx, completionSelect+`
WHERE id = $1 AND user_id = $2`, c.ID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Completion{}, fmt.Errorf("habit %s for completion %s: %w", c.HabitID, c.ID, storage.ErrNotFound)
		}
		return models.Completion{}, err
	}
	return stored, nil
}

// DeleteCompletion removes a completion. Deleting a missing id succeeds.
func (s *Store) DeleteCompletion(ctx context.Context, userID, id string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM completions WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		return fmt.Errorf("failed to delete completion %s: %w", id, err)
	}
	return nil
}
