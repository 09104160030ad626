package main

import (
	"fmt"
	"strings"
)

// ConsoleLogger prints user-facing progress to stdout. It mirrors the file
// logger's levels but keeps the terminal output friendly.
type ConsoleLogger struct {
	ShowEmojis bool
	SilentMode bool
}

// NewConsoleLogger creates a console logger with default settings
func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{ShowEmojis: true}
}

// Header prints a formatted header
func (l *ConsoleLogger) Header(title string) {
	if l.SilentMode {
		return
	}
	emoji := "📦"
	if !l.ShowEmojis {
		emoji = "***"
	}
	fmt.Printf("\n%s %s\n", emoji, strings.ToUpper(title))
	fmt.Printf("%s\n", strings.Repeat("=", len(title)+5))
}

// Info prints an info message
func (l *ConsoleLogger) Info(format string, args ...interface{}) {
	if l.SilentMode {
		return
	}
	emoji := "ℹ️"
	if !l.ShowEmojis {
		emoji = "[INFO]"
	}
	fmt.Printf("%s  %s\n", emoji, fmt.Sprintf(format, args...))
}

// Success prints a success message
func (l *ConsoleLogger) Success(format string, args ...interface{}) {
	if l.SilentMode {
		return
	}
	emoji := "✅"
	if !l.ShowEmojis {
		emoji = "[SUCCESS]"
	}
	fmt.Printf("%s %s\n", emoji, fmt.Sprintf(format, args...))
}

// Warn prints a warning message
func (l *ConsoleLogger) Warn(format string, args ...interface{}) {
	emoji := "⚠️"
	if !l.ShowEmojis {
		emoji = "[WARN]"
	}
	fmt.Printf("%s  %s\n", emoji, fmt.Sprintf(format, args...))
}

// Error prints an error message
func (l *ConsoleLogger) Error(format string, args ...interface{}) {
	emoji := "❌"
	if !l.ShowEmojis {
		emoji = "[ERROR]"
	}
	fmt.Printf("%s %s\n", emoji, fmt.Sprintf(format, args...))
}

// teeLog forwards orchestrator log lines to both the run log file and the
// console.
type teeLog struct {
	file    runFileLog
	console *ConsoleLogger
}

type runFileLog interface {
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
}

func (t *teeLog) Info(format string, args ...interface{}) {
	if t.file != nil {
		t.file.Info(format, args...)
	}
	t.console.Info(format, args...)
}

func (t *teeLog) Warning(format string, args ...interface{}) {
	if t.file != nil {
		t.file.Warning(format, args...)
	}
	t.console.Warn(format, args...)
}

func (t *teeLog) Error(format string, args ...interface{}) {
	if t.file != nil {
		t.file.Error(format, args...)
	}
	t.console.Error(format, args...)
}
