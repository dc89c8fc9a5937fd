package sqlite

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/migration"
	"github.com/julianstephens/habitsync/internal/storage"
	"github.com/julianstephens/habitsync/migrations"
)

// timestampFormat is fixed width so stored timestamps sort lexically.
const timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the local durable store. The database is opened and migrated on
// first use, at most once for the lifetime of the Store.
type Store struct {
	path        string
	backupsKept int

	once    sync.Once
	db      *sql.DB
	openErr error
}

var _ storage.LocalStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithBackupsKept sets how many backups Backup retains.
func WithBackupsKept(n int) Option {
	return func(s *Store) {
		s.backupsKept = n
	}
}

func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		path:        path,
		backupsKept: constants.MaxBackups,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init opens the database, applying pending migrations.
func (s *Store) Init() error {
	_, err := s.conn()
	return err
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) GetConfigPath() string {
	return s.path
}

// GetDB returns the underlying database connection, opening it if needed.
func (s *Store) GetDB() (*sql.DB, error) {
	return s.conn()
}

func (s *Store) conn() (*sql.DB, error) {
	s.once.Do(func() {
		s.db, s.openErr = s.open()
	})
	return s.db, s.openErr
}

func (s *Store) open() (*sql.DB, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("%w: failed to create data directory: %v", storage.ErrStorageUnavailable, err)
	}

	db, err := sql.Open("sqlite", s.path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", storage.ErrStorageUnavailable, err)
	}
	// One connection serializes writers from user actions and the sync drain.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to open database: %v", storage.ErrStorageUnavailable, err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to run migrations: %v", storage.ErrStorageUnavailable, err)
	}

	return db, nil
}

func newRunner(db *sql.DB) (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	return migration.NewRunner(db, subFS, migration.DriverSQLite), nil
}

func runMigrations(db *sql.DB) error {
	runner, err := newRunner(db)
	if err != nil {
		return err
	}
	_, err = runner.ApplyMigrations(func(msg string) {
		logger.Info(msg, "store", "local")
	})
	return err
}

// SchemaVersion reports the applied and latest known schema versions.
func (s *Store) SchemaVersion() (current, latest int, err error) {
	db, err := s.conn()
	if err != nil {
		return 0, 0, err
	}
	runner, err := newRunner(db)
	if err != nil {
		return 0, 0, err
	}
	if current, err = runner.GetCurrentVersion(); err != nil {
		return 0, 0, err
	}
	if latest, err = runner.GetLatestVersion(); err != nil {
		return 0, 0, err
	}
	return current, latest, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func parseTime(value, column string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", column, err)
	}
	return t, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
