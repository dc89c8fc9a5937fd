package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/storage"
)

// heldRecords are the records that live pending operations still have to
// replay. Their local state wins over the authoritative copy until then.
type heldRecords struct {
	// ids holds record ids as they appear locally (habits, completions,
	// achievement keys).
	ids map[string]bool
	// canonical holds the remote form of every held or provisional id, so
	// the authoritative copy of such a record is not written next to it.
	canonical map[string]bool
	// deletedHabits holds canonical ids of habits deleted while offline.
	deletedHabits map[string]bool
	pending       int
}

func (h *heldRecords) hold(id string) {
	h.ids[id] = true
	h.canonical[models.CanonicalID(id)] = true
}

// keeps reports whether a cached row must survive the replacement.
func (h *heldRecords) keeps(id string) bool {
	if h.pending == 0 {
		return false
	}
	return h.ids[id] || models.IsProvisional(id)
}

// shadows reports whether the authoritative row id is overridden locally.
func (h *heldRecords) shadows(id string) bool {
	return h.canonical[models.CanonicalID(id)]
}

func loadHeldRecords(ctx context.Context, tx *sql.Tx) (*heldRecords, error) {
	held := &heldRecords{
		ids:           map[string]bool{},
		canonical:     map[string]bool{},
		deletedHabits: map[string]bool{},
	}

	rows, err := tx.QueryContext(ctx, `SELECT `+operationColumns+` FROM pending_operations WHERE status = ?`,
		string(models.OpStatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to read pending operations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		held.pending++

		switch {
		case op.Kind == models.OpDelete:
			var p models.DeletePayload
			if err := op.Decode(&p); err != nil {
				logger.Warn("Skipping undecodable operation", "op", op.ID, "error", err)
				continue
			}
			held.hold(p.ID)
			if op.Collection == models.CollectionHabits {
				held.deletedHabits[models.CanonicalID(p.ID)] = true
			}
		case op.Collection == models.CollectionHabits:
			var h models.Habit
			if err := op.Decode(&h); err != nil {
				logger.Warn("Skipping undecodable operation", "op", op.ID, "error", err)
				continue
			}
			held.hold(h.ID)
		case op.Collection == models.CollectionCompletions:
			var c models.Completion
			if err := op.Decode(&c); err != nil {
				logger.Warn("Skipping undecodable operation", "op", op.ID, "error", err)
				continue
			}
			held.hold(c.ID)
		case op.Collection == models.CollectionAchievements:
			var a models.AchievementUnlock
			if err := op.Decode(&a); err != nil {
				logger.Warn("Skipping undecodable operation", "op", op.ID, "error", err)
				continue
			}
			held.hold(a.Key())
		}
	}
	return held, rows.Err()
}

// clearCached deletes the user's cached rows in table except the held ones.
func clearCached(ctx context.Context, tx *sql.Tx, table, userID string, held *heldRecords) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM `+table+` WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to read cached %s: %w", table, err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if held.keeps(id) {
			held.canonical[models.CanonicalID(id)] = true
			continue
		}
		stale = append(stale, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to clear cached %s: %w", table, err)
		}
	}
	return nil
}

// ReplaceUserData swaps the user's cache for data. Records referenced by
// live pending operations keep their local state: an offline edit is not
// reverted, an offline delete does not come back and an offline unlock is
// not dropped.
func (s *Store) ReplaceUserData(ctx context.Context, userID string, data storage.Snapshot) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	held, err := loadHeldRecords(ctx, tx)
	if err != nil {
		return err
	}

	for _, table := range []string{"completions", "habits", "achievements"} {
		if err := clearCached(ctx, tx, table, userID, held); err != nil {
			return err
		}
	}

	skipped := 0
	for _, h := range data.Habits {
		if held.shadows(h.ID) {
			skipped++
			continue
		}
		if err := putHabit(ctx, tx, h); err != nil {
			return err
		}
	}
	for _, c := range data.Completions {
		if held.shadows(c.ID) || held.deletedHabits[models.CanonicalID(c.HabitID)] {
			skipped++
			continue
		}
		if err := putCompletion(ctx, tx, c); err != nil {
			return err
		}
	}
	for _, a := range data.Achievements {
		if held.shadows(a.Key()) {
			skipped++
			continue
		}
		if err := putAchievement(ctx, tx, a); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logger.Debug("Replaced local cache", "user", userID, "habits", len(data.Habits),
		"completions", len(data.Completions), "achievements", len(data.Achievements),
		"pending_ops", held.pending, "held_back", skipped)
	return nil
}
