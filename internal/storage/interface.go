package storage

import (
	"context"
	"time"

	"github.com/julianstephens/habitsync/internal/models"
)

// LocalStore is the on-device cache and pending-operation queue.
type LocalStore interface {
	// Lifecycle
	Init() error
	Close() error

	// Habits
	PutHabit(ctx context.Context, habit models.Habit) error
	GetHabit(ctx context.Context, id string) (models.Habit, error)
	GetHabitsByUser(ctx context.Context, userID string) ([]models.Habit, error)
	// DeleteHabit removes the habit and every local completion that references it.
	DeleteHabit(ctx context.Context, id string) error

	// Completions
	PutCompletion(ctx context.Context, completion models.Completion) error
	GetCompletionsByUser(ctx context.Context, userID string) ([]models.Completion, error)
	GetCompletionsByHabit(ctx context.Context, habitID string) ([]models.Completion, error)
	GetCompletionsByDate(ctx context.Context, userID, date string) ([]models.Completion, error)
	DeleteCompletion(ctx context.Context, id string) error

	// Achievements
	PutAchievement(ctx context.Context, unlock models.AchievementUnlock) error
	GetAchievementsByUser(ctx context.Context, userID string) ([]models.AchievementUnlock, error)

	// Pending operations
	EnqueueOperation(ctx context.Context, op models.PendingOperation) error
	// PendingOperations returns live operations in enqueue order.
	PendingOperations(ctx context.Context) ([]models.PendingOperation, error)
	DeadOperations(ctx context.Context) ([]models.PendingOperation, error)
	GetOperation(ctx context.Context, id string) (models.PendingOperation, error)
	UpdateOperation(ctx context.Context, op models.PendingOperation) error
	DeleteOperation(ctx context.Context, id string) error
	// RequeueOperation returns a dead operation to the queue at its original
	// position with its attempt counter reset.
	RequeueOperation(ctx context.Context, id string) error

	// Metadata
	SetMetadata(ctx context.Context, key, value string) error
	GetMetadata(ctx context.Context, key string) (string, error)

	// ReplaceUserData swaps the cached records of a user for an authoritative
	// copy in a single transaction. While live pending operations remain,
	// provisional records and the records those operations touch keep their
	// local state.
	ReplaceUserData(ctx context.Context, userID string, data Snapshot) error

	// Utils
	GetConfigPath() string
}

// RemoteGateway is the authoritative row store. Every call is scoped to the
// given user.
type RemoteGateway interface {
	Ping(ctx context.Context) error

	ListHabits(ctx context.Context, userID string) ([]models.Habit, error)
	CreateHabit(ctx context.Context, userID string, habit models.Habit) (models.Habit, error)
	UpdateHabit(ctx context.Context, userID string, habit models.Habit) (models.Habit, error)
	DeleteHabit(ctx context.Context, userID, id string) error

	ListCompletions(ctx context.Context, userID string) ([]models.Completion, error)
	CreateCompletion(ctx context.Context, userID string, completion models.Completion) (models.Completion, error)
	DeleteCompletion(ctx context.Context, userID, id string) error

	ListAchievements(ctx context.Context, userID string) ([]models.AchievementUnlock, error)
	UnlockAchievement(ctx context.Context, userID, achievementID string, at time.Time) (models.AchievementUnlock, error)
}
