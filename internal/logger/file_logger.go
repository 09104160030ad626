package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogFileName is the run log created under the output root
const LogFileName = "binance-fetch.log"

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
)

// RunLogger writes the download run log to a file under the output root so
// every invocation leaves an audit trail next to the data it produced.
type RunLogger struct {
	logFile *os.File
	logger  *log.Logger
	mu      sync.Mutex
	path    string
}

// NewRunLogger creates a run logger under outputRoot
func NewRunLogger(outputRoot string) (*RunLogger, error) {
	if err := os.MkdirAll(outputRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	logPath := filepath.Join(outputRoot, LogFileName)
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &RunLogger{
		logFile: file,
		logger:  log.New(file, "", 0),
		path:    logPath,
	}
	l.writeSessionHeader()
	return l, nil
}

// writeSessionHeader marks the start of one run in the shared log file
func (l *RunLogger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Printf("================================================================================")
	l.logger.Printf("FETCH SESSION STARTED  %s", time.Now().Format("2006-01-02 15:04:05"))
	l.logger.Printf("================================================================================")
}

// Log writes a formatted log entry with the specified level
func (l *RunLogger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	l.logger.Printf("[%s] [%s] %s", timestamp, level, fmt.Sprintf(format, args...))
}

// Info logs an info message
func (l *RunLogger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *RunLogger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *RunLogger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// GetLogPath returns the log file path
func (l *RunLogger) GetLogPath() string {
	return l.path
}

// Close writes the session footer and closes the log file
func (l *RunLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return nil
	}
	l.logger.Printf("FETCH SESSION ENDED    %s", time.Now().Format("2006-01-02 15:04:05"))
	l.logger.Printf("")
	err := l.logFile.Close()
	l.logFile = nil
	return err
}
