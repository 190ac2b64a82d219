/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import (
	"fmt"
	"io"
	"os"
)

// Logger is minimal logging interface designed to be easily adaptable to any
// logging library.
type Logger interface {
	// Log is invoked with the log level, the log message, and key/value pairs
	// of any relevant log details. The keys are always strings, while the
	// values are unspecified.
	Log(level LogLevel, text string, args ...interface{})
}

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the lower case name of the level, as accepted by ParseLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts a level name to a LogLevel.
// Unknown names map to LevelInfo.
func ParseLevel(name string) LogLevel {
	switch name {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Simple console logger writing key/value formatted messages to a writer.
type consoleLogger struct {
	level  LogLevel
	output io.Writer
}

// NewConsoleLogger returns a logger that writes all messages of at least the given level to output.
func NewConsoleLogger(level LogLevel, output io.Writer) Logger {
	return &consoleLogger{
		level:  level,
		output: output,
	}
}

// Log writes the log message to the output if level is greater or equal than the level of this consoleLogger.
func (l *consoleLogger) Log(level LogLevel, text string, args ...interface{}) {
	if level < l.level {
		return
	}

	fmt.Fprint(l.output, text)
	for i := 0; i < len(args); i++ {
		if i+1 < len(args) {
			switch args[i+1].(type) {
			case []byte:
				// Print byte arrays in base 16 encoding.
				fmt.Fprintf(l.output, " %s=%x", args[i], args[i+1])
			default:
				// Print all other types using the Go default format.
				fmt.Fprintf(l.output, " %s=%v", args[i], args[i+1])
			}
			i++
		} else {
			fmt.Fprintf(l.output, " %s=%%MISSING%%", args[i])
		}
	}
	fmt.Fprintf(l.output, "\n")
}

// The nil logger drops all messages.
type nilLogger struct{}

// The Log method of the nilLogger does nothing, effectively dropping every log message.
func (nl *nilLogger) Log(level LogLevel, text string, args ...interface{}) {
	// Do nothing.
}

var (
	// ConsoleDebugLogger implements Logger and writes all log messages to stderr.
	ConsoleDebugLogger = NewConsoleLogger(LevelDebug, os.Stderr)

	// ConsoleInfoLogger implements Logger and writes all LevelInfo and above log messages to stderr.
	ConsoleInfoLogger = NewConsoleLogger(LevelInfo, os.Stderr)

	// ConsoleWarnLogger implements Logger and writes all LevelWarn and above log messages to stderr.
	ConsoleWarnLogger = NewConsoleLogger(LevelWarn, os.Stderr)

	// ConsoleErrorLogger implements Logger and writes all LevelError log messages to stderr.
	ConsoleErrorLogger = NewConsoleLogger(LevelError, os.Stderr)

	// NilLogger drops all log messages.
	NilLogger Logger = &nilLogger{}
)
