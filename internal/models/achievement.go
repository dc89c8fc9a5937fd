package models

import "time"

// AchievementUnlock records that a user has earned an achievement. Unlocks are
// never revoked.
type AchievementUnlock struct {
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// Key returns the composite identity of the unlock.
func (a AchievementUnlock) Key() string {
	return AchievementKey(a.UserID, a.AchievementID)
}

func AchievementKey(userID, achievementID string) string {
	return userID + ":" + achievementID
}
