//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package logger provides logging functionality for the SDK.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// LogLevel defines a set of logging levels used to control logging output.
//
// The logging levels are ordered. The available levels in ascending order are:
//
//	Trace
//	Debug
//	Info
//	Warn
//	Error
//
// Enabling logging at a given level also enables logging at all higher levels.
// For example, a logger configured at the Debug level logs Debug, Info, Warn
// and Error messages.
//
// In addition there is a level Off that can be used to turn off logging.
type LogLevel int

const (
	// Trace represents a level used to log fine-grained tracing messages,
	// including request and response payloads.
	Trace LogLevel = 10

	// Debug represents a level used to log debug messages.
	Debug LogLevel = 20

	// Info represents a level used to log informative messages.
	Info LogLevel = 30

	// Warn represents a level used to log warning messages.
	Warn LogLevel = 40

	// Error represents a level used to log error messages.
	Error LogLevel = 50

	// Off turns off logging.
	Off LogLevel = 99
)

// String returns a string representation for the log level.
//
// This implements the fmt.Stringer interface.
func (level LogLevel) String() string {
	switch level {
	case Trace:
		return "Trace"
	case Debug:
		return "Debug"
	case Info:
		return "Info"
	case Warn:
		return "Warn"
	case Error:
		return "Error"
	case Off:
		return "Off"
	default:
		return "N/A"
	}
}

// Logger is a wrapper for log.Logger, adding capabilities to control the
// desired level of messages to log and whether the log entry time is
// displayed in local time zone or UTC.
//
// All methods are safe to call on a nil *Logger, in which case they do nothing.
type Logger struct {
	// logger represents the underlying log.Logger.
	logger *log.Logger

	// level specifies the desired logging level.
	level LogLevel

	// timezone specifies the suffix displayed for log entry time.
	// It is an empty string when local time is used, "UTC " otherwise.
	timezone string
}

// New creates a logger that writes messages of the specified logging level to
// the specified io.Writer. If useLocalTime is set to false, the log entry
// displays UTC time.
//
// If the specified level is Off or an unrecognized value, New returns nil,
// which represents a disabled logger.
func New(out io.Writer, level LogLevel, useLocalTime bool) *Logger {
	if out == nil {
		return nil
	}

	switch level {
	case Trace, Debug, Info, Warn, Error:
	default:
		return nil
	}

	var tz string
	flag := log.LstdFlags | log.Lmicroseconds
	if !useLocalTime {
		flag |= log.LUTC
		tz = "UTC "
	}

	return &Logger{
		level:    level,
		logger:   log.New(out, "", flag),
		timezone: tz,
	}
}

// Level returns the logging level the logger was configured with, or Off for
// a nil logger.
func (l *Logger) Level() LogLevel {
	if l == nil {
		return Off
	}
	return l.level
}

// Trace writes the specified message to the logger if the desired logging
// level is set to Trace.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Trace(messageFormat string, messageArgs ...interface{}) {
	l.Log(Trace, messageFormat, messageArgs...)
}

// Debug writes the specified message to the logger if the desired logging
// level is set to Debug or lower.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Debug(messageFormat string, messageArgs ...interface{}) {
	l.Log(Debug, messageFormat, messageArgs...)
}

// Info writes the specified message to the logger if the desired logging
// level is set to Info or lower.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Info(messageFormat string, messageArgs ...interface{}) {
	l.Log(Info, messageFormat, messageArgs...)
}

// Warn writes the specified message to the logger if the desired logging
// level is set to Warn or lower.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Warn(messageFormat string, messageArgs ...interface{}) {
	l.Log(Warn, messageFormat, messageArgs...)
}

// Error writes the specified message to the logger if the desired logging
// level is set to Error or lower.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Error(messageFormat string, messageArgs ...interface{}) {
	l.Log(Error, messageFormat, messageArgs...)
}

// Log writes the specified message to the logger if the specified logging
// level is the same as or higher than the logger's desired level.
//
// The arguments for the logging message are handled in the manner of fmt.Printf.
func (l *Logger) Log(level LogLevel, messageFormat string, messageArgs ...interface{}) {
	if l == nil || level == Off || l.level > level {
		return
	}

	l.logger.Print(l.timezone+label(level), fmt.Sprintf(messageFormat, messageArgs...))
}

// LogWithFn calls the function fn if the specified logging level is the same
// as or higher than the logger's desired level, and writes the message
// returned from fn to the logger.
//
// This avoids the cost of building expensive messages, such as encoded
// request payloads, when the level is disabled.
func (l *Logger) LogWithFn(level LogLevel, fn func() string) {
	if l == nil || level == Off || l.level > level {
		return
	}

	l.logger.Print(l.timezone+label(level), fn())
}

// label returns a label for the specified logging level used to display in
// log entries.
func label(level LogLevel) string {
	switch level {
	case Trace:
		return "[TRACE] "
	case Debug:
		return "[DEBUG] "
	case Info:
		return "[INFO]  "
	case Warn:
		return "[WARN]  "
	case Error:
		return "[ERROR] "
	default:
		return ""
	}
}

// DefaultLogger represents a default logger that writes warning and higher
// priority events to stderr.
var DefaultLogger *Logger = New(os.Stderr, Warn, false)
