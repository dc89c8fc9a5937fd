package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/habitsync/internal/models"
)

func (s *Store) ListAchievements(ctx context.Context, userID string) ([]models.AchievementUnlock, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
SELECT user_id, achievement_id, unlocked_at
FROM user_achievements WHERE user_id = $1
ORDER BY unlocked_at, achievement_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	unlocks := []models.AchievementUnlock{}
	for rows.Next() {
		var a models.AchievementUnlock
		if err := rows.Scan(&a.UserID, &a.AchievementID, &a.UnlockedAt); err != nil {
			return nil, err
		}
		a.UnlockedAt = a.UnlockedAt.UTC()
		unlocks = append(unlocks, a)
	}
	return unlocks, rows.Err()
}

// UnlockAchievement records the unlock once; later calls return the original
// unlock time.
func (s *Store) UnlockAchievement(ctx context.Context, userID, achievementID string, at time.Time) (models.AchievementUnlock, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return models.AchievementUnlock{}, err
	}

	_, err = db.ExecContext(ctx, `
INSERT INTO user_achievements (id, user_id, achievement_id, unlocked_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT DO NOTHING`,
		models.AchievementKey(userID, achievementID), userID, achievementID, at.UTC())
	if err != nil {
		return models.AchievementUnlock{}, fmt.Errorf("failed to unlock achievement %s: %w", achievementID, err)
	}

	a := models.AchievementUnlock{UserID: userID, AchievementID: achievementID}
	if err := db.QueryRowContext(ctx, `
SELECT unlocked_at FROM user_achievements WHERE user_id = $1 AND achievement_id = $2`,
		userID, achievementID).Scan(&a.UnlockedAt); err != nil {
		return models.AchievementUnlock{}, err
	}
	a.UnlockedAt = a.UnlockedAt.UTC()
	return a, nil
}
