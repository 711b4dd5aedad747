package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the logging level
type Level int

const (
	// DEBUG level for detailed debugging information
	DEBUG Level = iota
	// INFO level for informational messages
	INFO
	// WARN level for warning messages
	WARN
	// ERROR level for error messages
	ERROR
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name ("debug", "info", ...) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level: %q", s)
}

// sink is the state shared between a logger and its component children.
type sink struct {
	mu            sync.RWMutex
	level         Level
	file          *os.File
	out           io.Writer
	mirror        io.Writer
	logs          map[Level]*log.Logger
	logDir        string
	filePrefix    string
	currentDay    string
	retentionDays int
}

// Logger handles logging to file with daily rotation.
// Loggers returned by Component share the parent's file and level.
type Logger struct {
	s         *sink
	component string
}

// Config holds logger configuration
type Config struct {
	LogDir        string
	Level         Level
	RetentionDays int
	// FilePrefix names the log file: <prefix>-YYYYMMDD.log
	FilePrefix string
	// Mirror receives a copy of every line when non-nil (e.g. os.Stderr)
	Mirror io.Writer
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}

	return Config{
		LogDir:        filepath.Join(dir, "EzCall", "logs"),
		Level:         INFO,
		RetentionDays: 7,
		FilePrefix:    "ezcall",
	}
}

// New creates a new logger
func New(config Config) (*Logger, error) {
	prefix := config.FilePrefix
	if prefix == "" {
		prefix = "ezcall"
	}
	s := &sink{
		level:         config.Level,
		logDir:        config.LogDir,
		filePrefix:    prefix,
		retentionDays: config.RetentionDays,
		mirror:        config.Mirror,
	}

	l := &Logger{s: s}
	if err := l.rotateLog(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return l, nil
}

// Discard returns a logger that drops everything. Used by tests and by
// components constructed without a logger.
func Discard() *Logger {
	s := &sink{level: ERROR + 1, out: io.Discard}
	s.buildLoggers(io.Discard)
	return &Logger{s: s}
}

// Component returns a child logger whose lines are tagged with name.
func (l *Logger) Component(name string) *Logger {
	if l == nil {
		return Discard().Component(name)
	}
	return &Logger{s: l.s, component: name}
}

func (s *sink) buildLoggers(w io.Writer) {
	s.out = w
	s.logs = map[Level]*log.Logger{
		DEBUG: log.New(w, "[DEBUG] ", log.LstdFlags),
		INFO:  log.New(w, "[INFO] ", log.LstdFlags),
		WARN:  log.New(w, "[WARN] ", log.LstdFlags),
		ERROR: log.New(w, "[ERROR] ", log.LstdFlags),
	}
}

// rotateLog rotates the log file if necessary
func (l *Logger) rotateLog() error {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()

	today := time.Now().Format("20060102")

	if s.currentDay == today && s.file != nil {
		return nil
	}

	if s.file != nil {
		s.file.Close()
	}

	if err := os.MkdirAll(s.logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := fmt.Sprintf("%s-%s.log", s.filePrefix, today)
	filePath := filepath.Join(s.logDir, filename)

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	s.file = file
	s.currentDay = today

	var w io.Writer = file
	if s.mirror != nil {
		w = io.MultiWriter(file, s.mirror)
	}
	s.buildLoggers(w)

	if err := s.cleanOldLogs(); err != nil {
		// not fatal; the mutex is held so write directly
		s.logs[WARN].Printf("Failed to clean old logs: %v", err)
	}

	return nil
}

// cleanOldLogs deletes log files older than retentionDays
func (s *sink) cleanOldLogs() error {
	if s.retentionDays <= 0 {
		return nil
	}
	cutoffDate := time.Now().AddDate(0, 0, -s.retentionDays)

	entries, err := os.ReadDir(s.logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if filepath.Ext(entry.Name()) != ".log" || !strings.HasPrefix(entry.Name(), s.filePrefix+"-") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffDate) {
			_ = os.Remove(filepath.Join(s.logDir, entry.Name()))
		}
	}

	return nil
}

// checkRotation checks if log rotation is needed and performs it
func (l *Logger) checkRotation() {
	l.s.mu.RLock()
	currentDay := l.s.currentDay
	hasFile := l.s.file != nil
	l.s.mu.RUnlock()

	if !hasFile {
		return
	}

	today := time.Now().Format("20060102")
	if currentDay != today {
		if err := l.rotateLog(); err != nil {
			// Can't log this error since logging is failing
			fmt.Fprintf(os.Stderr, "Failed to rotate log: %v\n", err)
		}
	}
}

func (l *Logger) logf(level Level, format string, v ...interface{}) {
	if l == nil || l.s == nil {
		return
	}
	l.s.mu.RLock()
	enabled := l.s.level <= level
	l.s.mu.RUnlock()
	if !enabled {
		return
	}

	l.checkRotation()

	l.s.mu.RLock()
	target := l.s.logs[level]
	l.s.mu.RUnlock()
	if target == nil {
		return
	}
	if l.component != "" {
		format = "[" + l.component + "] " + format
	}
	target.Printf(format, v...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) { l.logf(DEBUG, format, v...) }

// Info logs an informational message
func (l *Logger) Info(format string, v ...interface{}) { l.logf(INFO, format, v...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) { l.logf(WARN, format, v...) }

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) { l.logf(ERROR, format, v...) }

// Writer returns an io.Writer that logs each write at the given level.
// It lets libraries that take a *log.Logger or io.Writer share the file.
func (l *Logger) Writer(level Level) io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		l.logf(level, "%s", strings.TrimRight(string(p), "\n"))
		return len(p), nil
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// Close closes the log file
func (l *Logger) Close() error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	if l.s.file != nil {
		err := l.s.file.Close()
		l.s.file = nil
		return err
	}
	return nil
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level Level) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	l.s.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() Level {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	return l.s.level
}

// Path returns the path of the current log file, or "" for a discard logger.
func (l *Logger) Path() string {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	if l.s.file == nil {
		return ""
	}
	return l.s.file.Name()
}
