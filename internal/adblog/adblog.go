// Package adblog provides a process-wide file logger for the CLI and
// monitor front ends, following the same singleton pattern the interactive
// shell TUI this project's lineage shipped.
package adblog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLogger writes timestamped lines to a log file under the user's cache
// directory.
type FileLogger struct {
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

var (
	logger     *FileLogger
	loggerOnce sync.Once
)

// Get returns the singleton file logger, opening its log file on first use.
func Get() *FileLogger {
	loggerOnce.Do(func() {
		logger = &FileLogger{}
		logger.init()
	})
	return logger
}

func (l *FileLogger) init() {
	baseDir, err := os.UserCacheDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "adblog: could not resolve cache dir: %v\n", err)
		return
	}

	logDir := filepath.Join(baseDir, "adbhost", "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "adblog: could not create log directory: %v\n", err)
		return
	}

	timestamp := time.Now().Format("20060102_150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("adbhost_%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adblog: could not open log file: %v\n", err)
		return
	}

	l.file = file
	l.writer = bufio.NewWriter(file)
	fmt.Fprintf(os.Stderr, "adbhost logs: %s\n", logPath)
}

// Logf writes a formatted, timestamped line to the log file. A logger whose
// file failed to open silently drops log lines rather than blocking the
// caller on stderr fallback noise.
func (l *FileLogger) Logf(format string, args ...interface{}) {
	if l == nil || l.writer == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	timestamp := time.Now().Format("2006/01/02 15:04:05")
	fmt.Fprintf(l.writer, "[%s] %s\n", timestamp, fmt.Sprintf(format, args...))
	l.writer.Flush()
}

// Close flushes and closes the log file.
func (l *FileLogger) Close() {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.Flush()
	l.file.Close()
}
