// Package logger writes info and debug lines to stdout and errors to stderr
// so log collectors do not label routine output as failures.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

var (
	// InfoLogger writes debug and info lines.
	InfoLogger = log.New(os.Stdout, "", log.LstdFlags)
	// ErrorLogger writes error lines.
	ErrorLogger = log.New(os.Stderr, "", log.LstdFlags)

	level atomic.Int32
)

func init() { level.Store(int32(LevelInfo)) }

// ParseLevel maps "debug", "info" and "error" (any case); anything else is info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "error":
		return LevelError
	}
	return LevelInfo
}

func SetLevel(l Level) { level.Store(int32(l)) }

// SetOutput redirects both loggers; tests use it to capture lines.
func SetOutput(info, errs io.Writer) {
	InfoLogger.SetOutput(info)
	ErrorLogger.SetOutput(errs)
}

func enabled(l Level) bool { return Level(level.Load()) <= l }

func Debug(format string, v ...any) {
	if enabled(LevelDebug) {
		InfoLogger.Println("DEBUG " + fmt.Sprintf(format, v...))
	}
}

func Info(format string, v ...any) {
	if enabled(LevelInfo) {
		InfoLogger.Println("INFO " + fmt.Sprintf(format, v...))
	}
}

func Error(format string, v ...any) {
	ErrorLogger.Println("ERROR " + fmt.Sprintf(format, v...))
}

// Fatal logs an error and exits.
func Fatal(format string, v ...any) {
	ErrorLogger.Fatalln("FATAL " + fmt.Sprintf(format, v...))
}
