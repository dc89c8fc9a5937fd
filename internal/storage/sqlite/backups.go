package sqlite

import (
	"context"

	"github.com/julianstephens/habitsync/internal/backup"
)

// Backup writes a copy of the database next to it, keeping the newest
// backups only.
func (s *Store) Backup(ctx context.Context) (string, error) {
	if _, err := s.conn(); err != nil {
		return "", err
	}
	return backup.NewManager(s.path, s.backupsKept).CreateBackup(ctx)
}

// Backups returns the manager for this store's backup directory.
func (s *Store) Backups() *backup.Manager {
	return backup.NewManager(s.path, s.backupsKept)
}
