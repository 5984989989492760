package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"turbodelete/internal/config"
)

const logFile = "turbodelete.log"

// New creates a logger using the default log directory and rotation window
func New() *log.Logger {
	return NewWithConfig(nil, false)
}

// NewWithConfig creates a logger that appends to the configured log file,
// rotating it first when it is older than the rotation window.
// With console set, output is mirrored to stderr so it does not interleave
// with the progress bar and summary on stdout.
func NewWithConfig(cfg *config.Config, console bool) *log.Logger {
	dir := DefaultDir()
	rotateDays := 30 // default
	if cfg != nil {
		if cfg.Logging.Dir != "" {
			dir = cfg.Logging.Dir
		}
		if cfg.Logging.RotationDays > 0 {
			rotateDays = cfg.Logging.RotationDays
		}
	}

	var out io.Writer = io.Discard
	if console {
		out = os.Stderr
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("failed to ensure log directory %s: %v", dir, err)
		return log.New(out, "", log.LstdFlags|log.Lmicroseconds)
	}

	filePath := filepath.Join(dir, logFile)
	rotateLogsIfNeeded(filePath, rotateDays)

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("failed to open log file %s: %v", filePath, err)
		return log.New(out, "", log.LstdFlags|log.Lmicroseconds)
	}

	mw := io.MultiWriter(out, f)
	return log.New(mw, "", log.LstdFlags|log.Lmicroseconds)
}

// DefaultDir is the per-user log directory (~/.cache/turbodelete/logs on Linux)
func DefaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "turbodelete", "logs")
}

// rotateLogsIfNeeded rotates log files older than the specified days
func rotateLogsIfNeeded(logPath string, rotationDays int) {
	info, err := os.Stat(logPath)
	if err != nil {
		// Log file doesn't exist yet, nothing to rotate
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)
	if info.ModTime().Before(cutoffTime) {
		timestamp := info.ModTime().Format("20060102-150405")
		rotatedPath := logPath + "." + timestamp

		if err := os.Rename(logPath, rotatedPath); err != nil {
			log.Printf("failed to rotate log file: %v", err)
			return
		}
		// Rotated files age from the moment they are rotated
		now := time.Now()
		_ = os.Chtimes(rotatedPath, now, now)

		cleanupOldLogs(logPath, rotationDays)
	}
}

// cleanupOldLogs removes rotated log files older than rotation days
func cleanupOldLogs(logPath string, rotationDays int) {
	logDir := filepath.Dir(logPath)
	baseName := filepath.Base(logPath)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, baseName+".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffTime) {
			fullPath := filepath.Join(logDir, name)
			if err := os.Remove(fullPath); err != nil {
				log.Printf("failed to remove old log file %s: %v", fullPath, err)
			}
		}
	}
}
