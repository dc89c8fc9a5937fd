// Package lockfile keeps a single long-running habitsync process per data
// directory.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/habitsync/internal/constants"
)

var (
	ErrAlreadyRunning = errors.New("another habitsync watcher is running")
	ErrMalformed      = errors.New("lockfile is malformed")

	findProcessFunc = ps.FindProcess
	getpidFunc      = os.Getpid
)

// Lock is a held lockfile.
type Lock struct {
	path string
	pid  int
}

// Owner describes the process recorded in a lockfile.
type Owner struct {
	PID       int
	StartedAt time.Time
}

// Path returns the lockfile path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, constants.WatcherLockfileName)
}

// Acquire takes the lockfile at path. A lockfile left behind by a process
// that is gone, or that is not habitsync, is taken over.
func Acquire(path string) (*Lock, error) {
	if owner, err := Read(path); err == nil {
		if running(owner.PID) {
			return nil, fmt.Errorf("%w (pid %d since %s)", ErrAlreadyRunning, owner.PID, owner.StartedAt.Format(time.RFC3339))
		}
	} else if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, ErrMalformed) {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create lockfile directory: %w", err)
	}

	pid := getpidFunc()
	content := fmt.Sprintf("%d|%s\n", pid, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write lockfile: %w", err)
	}
	return &Lock{path: path, pid: pid}, nil
}

// Release removes the lockfile if it still belongs to this process.
func (l *Lock) Release() error {
	owner, err := Read(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if owner.PID != l.pid {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lockfile: %w", err)
	}
	return nil
}

// Read parses the lockfile at path.
func Read(path string) (Owner, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Owner{}, err
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 2 {
		return Owner{}, ErrMalformed
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil || pid <= 0 {
		return Owner{}, fmt.Errorf("%w: invalid process ID", ErrMalformed)
	}
	startedAt, err := time.Parse(time.RFC3339, parts[1])
	if err != nil {
		return Owner{}, fmt.Errorf("%w: invalid start time", ErrMalformed)
	}
	return Owner{PID: pid, StartedAt: startedAt}, nil
}

// Running reports whether the lockfile at path is held by a live habitsync
// process.
func Running(path string) (Owner, bool) {
	owner, err := Read(path)
	if err != nil {
		return Owner{}, false
	}
	return owner, running(owner.PID)
}

func running(pid int) bool {
	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return false
	}
	return strings.HasPrefix(process.Executable(), constants.AppName)
}
