package constants

import "time"

const (
	AppName            = "habitsync"
	DefaultKeyringUser = "database-connection"
	SessionKeyringUser = "session-token"
	DefaultConfigPath  = "~/.config/habitsync/habitsync.db"
	Version            = "v0.1.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// ProvisionalIDPrefix marks ids generated while offline. The remote id is the
	// same id with the prefix removed.
	ProvisionalIDPrefix = "offline_"

	// Metadata keys
	MetadataLastSync   = "lastSync"
	MetadataLastOnline = "lastOnline"
	MetadataUserID     = "userId"

	// Backup constants
	MaxBackups       = 7
	BackupDirName    = "backups"
	BackupFilePrefix = "habitsync-"
	BackupFileSuffix = ".db"

	// Watcher constants
	WatcherLockfileName  = "habitsync-watch.lock"
	DefaultProbeInterval = 30 * time.Second

	// Replay constants
	DefaultMaxReplayAttempts    = 5
	DefaultReplayInitialBackoff = 200 * time.Millisecond
	DefaultReplayMaxBackoff     = 5 * time.Second
	ReplayTriesPerDrain         = 3
	DefaultRequestTimeout       = 10 * time.Second

	// MinPerfectDayHabits is the number of active habits a day needs before it
	// can count as perfect. Statistics and achievements share this rule.
	MinPerfectDayHabits = 1

	// DefaultNumericIncrement is logged when a numeric habit is toggled without a value.
	DefaultNumericIncrement = 1.0
)
