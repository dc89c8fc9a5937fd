package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/habitsync/internal/constants"
)

var (
	// Logger is the global logger instance
	Logger *log.Logger
)

// Config holds logger configuration
type Config struct {
	Debug     bool
	ConfigDir string
	// Level is one of debug, info, warn or error. Empty means info; Debug
	// forces debug.
	Level string
}

// ParseLevel validates a level name.
func ParseLevel(name string) (log.Level, error) {
	if name == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(name)
	if err != nil || level > log.ErrorLevel {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

// Init initializes the global logger with the given configuration
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	if cfg.Debug {
		level = log.DebugLevel
	}

	logDir := filepath.Join(cfg.ConfigDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, constants.AppName+".log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	var writer io.Writer = fileWriter
	if cfg.Debug {
		writer = io.MultiWriter(os.Stderr, fileWriter)
	}

	Logger = log.NewWithOptions(writer, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          constants.AppName,
	})
	return nil
}

// Scope tags entries with a component name and fixed key/value pairs. It
// resolves the global logger on every call, so a Scope can be declared
// before Init runs.
type Scope struct {
	keyvals []interface{}
}

// For returns a Scope for component.
func For(component string) Scope {
	return Scope{keyvals: []interface{}{"component", component}}
}

// With returns a copy of s carrying extra key/value pairs.
func (s Scope) With(keyvals ...interface{}) Scope {
	kv := make([]interface{}, 0, len(s.keyvals)+len(keyvals))
	kv = append(kv, s.keyvals...)
	return Scope{keyvals: append(kv, keyvals...)}
}

func (s Scope) merge(keyvals []interface{}) []interface{} {
	kv := make([]interface{}, 0, len(s.keyvals)+len(keyvals))
	kv = append(kv, s.keyvals...)
	return append(kv, keyvals...)
}

func (s Scope) Debug(msg string, keyvals ...interface{}) { Debug(msg, s.merge(keyvals)...) }
func (s Scope) Info(msg string, keyvals ...interface{})  { Info(msg, s.merge(keyvals)...) }
func (s Scope) Warn(msg string, keyvals ...interface{})  { Warn(msg, s.merge(keyvals)...) }
func (s Scope) Error(msg string, keyvals ...interface{}) { Error(msg, s.merge(keyvals)...) }

// Debug logs a debug message
func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

// Info logs an info message
func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

// Warn logs a warning message
func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

// Error logs an error message
func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}

// Fatal logs a fatal error and exits
func Fatal(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Fatal(msg, keyvals...)
	}
	os.Exit(1)
}
