package storage

import (
	"errors"

	"github.com/julianstephens/habitsync/internal/models"
)

var (
	// ErrStorageUnavailable means the host cannot provide durable local
	// storage. Offline mode is unusable; online mode is not affected.
	ErrStorageUnavailable = errors.New("durable local storage is unavailable")
	ErrNotFound           = errors.New("record not found")
	// ErrConflict means a record id is already taken by another user.
	ErrConflict = errors.New("record id belongs to another user")
	// ErrOffline is returned when an operation needs the remote backend and
	// none is reachable or configured.
	ErrOffline = errors.New("remote backend is offline")
)

// Snapshot is a full copy of one user's records.
type Snapshot struct {
	Habits       []models.Habit
	Completions  []models.Completion
	Achievements []models.AchievementUnlock
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
