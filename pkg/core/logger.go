package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Logger is the printf-style logger used across reportlens. Any structured
// logger can be adapted to it.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// LogLevel orders messages by importance. LogLevelSilent disables output.
type LogLevel int32

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelSilent
)

var levelTags = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "SILENT"}

func (l LogLevel) String() string {
	if l < 0 || int(l) >= len(levelTags) {
		return fmt.Sprintf("LogLevel(%d)", int32(l))
	}
	return levelTags[l]
}

// ParseLogLevel maps a level name to a LogLevel. Unknown names are Info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	case "silent", "off", "none":
		return LogLevelSilent
	}
	return LogLevelInfo
}

// DefaultLogger filters by level and writes "[prefix] [LEVEL] msg" lines
// through a standard library log.Logger. It is safe for concurrent use.
type DefaultLogger struct {
	prefix string
	level  atomic.Int32
	out    *log.Logger
}

// NewDefaultLogger returns a logger writing to stderr.
func NewDefaultLogger(prefix string, level LogLevel) *DefaultLogger {
	l := &DefaultLogger{prefix: prefix, out: log.New(os.Stderr, "", log.LstdFlags)}
	l.level.Store(int32(level))
	return l
}

func (l *DefaultLogger) SetOutput(w io.Writer) { l.out.SetOutput(w) }

func (l *DefaultLogger) SetLevel(level LogLevel) { l.level.Store(int32(level)) }

func (l *DefaultLogger) Level() LogLevel { return LogLevel(l.level.Load()) }

func (l *DefaultLogger) Debug(format string, args ...interface{}) {
	l.emit(LogLevelDebug, format, args)
}

func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.emit(LogLevelInfo, format, args)
}

func (l *DefaultLogger) Warn(format string, args ...interface{}) {
	l.emit(LogLevelWarn, format, args)
}

func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.emit(LogLevelError, format, args)
}

func (l *DefaultLogger) emit(level LogLevel, format string, args []interface{}) {
	if level < l.Level() {
		return
	}
	var b strings.Builder
	if l.prefix != "" {
		b.WriteString("[" + l.prefix + "] ")
	}
	b.WriteString("[" + level.String() + "] ")
	fmt.Fprintf(&b, format, args...)
	l.out.Print(b.String())
}

// NopLogger discards everything.
type NopLogger struct{}

func (*NopLogger) Debug(string, ...interface{}) {}
func (*NopLogger) Info(string, ...interface{})  {}
func (*NopLogger) Warn(string, ...interface{})  {}
func (*NopLogger) Error(string, ...interface{}) {}

// PrintfLogger prints every message, without timestamps or level tags, to
// stderr by default so stdout can carry machine-readable output.
type PrintfLogger struct {
	prefix string

	mu  sync.Mutex
	out io.Writer
}

func NewPrintfLogger(prefix string) *PrintfLogger {
	return &PrintfLogger{prefix: prefix, out: os.Stderr}
}

func (l *PrintfLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.out = w
	l.mu.Unlock()
}

func (l *PrintfLogger) Debug(format string, args ...interface{}) { l.println(format, args) }
func (l *PrintfLogger) Info(format string, args ...interface{})  { l.println(format, args) }
func (l *PrintfLogger) Warn(format string, args ...interface{})  { l.println(format, args) }
func (l *PrintfLogger) Error(format string, args ...interface{}) { l.println(format, args) }

func (l *PrintfLogger) println(format string, args []interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = "[" + l.prefix + "] " + msg
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, msg)
}

// LoggerFromVerbose returns a PrintfLogger in verbose mode and otherwise a
// DefaultLogger that only reports warnings and errors.
func LoggerFromVerbose(prefix string, verbose bool) Logger {
	if verbose {
		return NewPrintfLogger(prefix)
	}
	return NewDefaultLogger(prefix, LogLevelWarn)
}

var (
	_ Logger = (*DefaultLogger)(nil)
	_ Logger = (*NopLogger)(nil)
	_ Logger = (*PrintfLogger)(nil)
)
