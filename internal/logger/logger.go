package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps the configured log_level string to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarn, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

var (
	logMu    sync.Mutex
	logFile  *os.File
	minLevel = LevelInfo
)

// Init sets the level threshold and, when logPath is non-empty, opens
// the log file for appending. Stdout output is always on.
func Init(lvl Level, logPath string) error {
	logMu.Lock()
	defer logMu.Unlock()

	minLevel = lvl
	if logPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return err
	}
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func Debug(format string, args ...interface{}) {
	log(LevelDebug, format, args...)
}

func Info(format string, args ...interface{}) {
	log(LevelInfo, format, args...)
}

func Warn(format string, args ...interface{}) {
	log(LevelWarn, format, args...)
}

func Error(format string, args ...interface{}) {
	log(LevelError, format, args...)
}

func log(lvl Level, format string, args ...interface{}) {
	logMu.Lock()
	defer logMu.Unlock()
	if lvl < minLevel {
		return
	}

	now := time.Now().Format("2006/01/02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	var label, color string
	switch lvl {
	case LevelDebug:
		color = "\033[36m" // Cyan
		label = "[DBUG] "  // 4 chars align
	case LevelInfo:
		color = "\033[32m" // Green
		label = "[INFO] "
	case LevelWarn:
		color = "\033[33m" // Yellow
		label = "[WARN] "
	case LevelError:
		color = "\033[31m" // Red
		label = "[EROR] "
	}

	// File output (no color)
	if logFile != nil {
		fmt.Fprintf(logFile, "%s %s%s\n", now, label, msg)
	}

	// Stdout (color)
	fmt.Fprintf(os.Stdout, "%s %s%s\033[0m%s\n", now, color, label, msg)
}
