// SPDX-License-Identifier: MIT

// Package log writes the engine's diagnostics to stderr.
//
// Extraction and synthesis are quiet on their normal paths. They report
// through Warnf when they fall back (no vocoder cache, reference audio of the
// wrong length) and through Debugf for timing and sizes. The threshold is a
// single process-wide value read on every call, so `logging.level` from the
// config file or --verbose can lower it while work is in flight.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel orders messages by severity; a message is written when its level
// is at or above the threshold set with SetLevel.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel maps a config value such as "debug" or " Warning " to a level.
// Unknown names yield LevelInfo and false so callers can keep the default
// and complain.
func ParseLevel(name string) (LogLevel, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "WARNING" {
		return LevelWarn, true
	}
	for l, n := range levelNames {
		if n == name {
			return LogLevel(l), true
		}
	}
	return LevelInfo, false
}

var (
	threshold atomic.Uint32
	sink      = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)
)

func init() {
	threshold.Store(uint32(LevelInfo))
}

func SetLevel(level LogLevel) { threshold.Store(uint32(level)) }

func GetLevel() LogLevel { return LogLevel(threshold.Load()) }

// SetOutput sends every later message to w.
func SetOutput(w io.Writer) { sink.SetOutput(w) }

// Enabled reports whether a message at level passes the threshold. Callers
// use it to skip building expensive debug summaries.
func Enabled(level LogLevel) bool {
	return level >= GetLevel()
}

// write emits one line as "[LEVEL] msg", with the tag padded to the width of
// the five-letter names.
func write(level LogLevel, msg string) {
	tag := "[" + level.String() + "]"
	sink.Printf("%-7s %s", tag, msg)
}

func logf(level LogLevel, format string, v []any) {
	if Enabled(level) {
		write(level, fmt.Sprintf(format, v...))
	}
}

func logln(level LogLevel, v []any) {
	if Enabled(level) {
		write(level, fmt.Sprint(v...))
	}
}

func Debugf(format string, v ...any) { logf(LevelDebug, format, v) }
func Infof(format string, v ...any)  { logf(LevelInfo, format, v) }
func Warnf(format string, v ...any)  { logf(LevelWarn, format, v) }
func Errorf(format string, v ...any) { logf(LevelError, format, v) }

func Debug(v ...any) { logln(LevelDebug, v) }
func Info(v ...any)  { logln(LevelInfo, v) }
func Warn(v ...any)  { logln(LevelWarn, v) }
func Error(v ...any) { logln(LevelError, v) }

// Fatalf writes msg regardless of the threshold and exits with status 1.
func Fatalf(format string, v ...any) {
	sink.Fatalf("[%s] %s", LevelFatal, fmt.Sprintf(format, v...))
}

// Fatal is Fatalf with fmt.Sprint formatting.
func Fatal(v ...any) {
	sink.Fatalf("[%s] %s", LevelFatal, fmt.Sprint(v...))
}
