package sqlite

import (
	"context"
	"fmt"

	"github.com/julianstephens/habitsync/internal/models"
)

func (s *Store) PutAchievement(ctx context.Context, a models.AchievementUnlock) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	return putAchievement(ctx, db, a)
}

func putAchievement(ctx context.Context, db execer, a models.AchievementUnlock) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO achievements (id, user_id, achievement_id, unlocked_at)
		VALUES (?, ?, ?, ?)`,
		a.Key(), a.UserID, a.AchievementID, formatTime(a.UnlockedAt))
	if err != nil {
		return fmt.Errorf("failed to save achievement %s: %w", a.Key(), err)
	}
	return nil
}

func (s *Store) GetAchievementsByUser(ctx context.Context, userID string) ([]models.AchievementUnlock, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT user_id, achievement_id, unlocked_at
		FROM achievements WHERE user_id = ?
		ORDER BY unlocked_at, achievement_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	unlocks := []models.AchievementUnlock{}
	for rows.Next() {
		var a models.AchievementUnlock
		var unlockedAt string
		if err := rows.Scan(&a.UserID, &a.AchievementID, &unlockedAt); err != nil {
			return nil, err
		}
		if a.UnlockedAt, err = parseTime(unlockedAt, "unlocked_at"); err != nil {
			return nil, err
		}
		unlocks = append(unlocks, a)
	}
	return unlocks, rows.Err()
}
