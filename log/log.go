package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level controls which messages a logger writes.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int32(l))
	}
}

// ParseLevel parses a level name. Unknown names default to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the logging surface shared by all packages.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
}

// New returns a Logger that writes timestamped lines to w, dropping
// messages below level. The writer is serialized with a mutex so the
// logger is safe for concurrent use.
func New(w io.Writer, level Level) Logger {
	return &writerLogger{writer: w, level: level}
}

// NewFile opens (or creates) path in append mode and returns a Logger
// writing to it.
func NewFile(path string, level Level) (Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return &writerLogger{writer: file, level: level}, file, nil
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type writerLogger struct {
	mu     sync.Mutex
	writer io.Writer
	level  Level
	prefix string
}

var _ Logger = &writerLogger{}

// WithPrefix returns a Logger that prepends "prefix: " to every message.
func WithPrefix(l Logger, prefix string) Logger {
	if wl, ok := l.(*writerLogger); ok {
		full := prefix
		if wl.prefix != "" {
			full = wl.prefix + ": " + prefix
		}
		return &writerLogger{writer: wl.writer, level: wl.level, prefix: full}
	}
	if _, ok := l.(nopLogger); ok {
		return l
	}
	return &prefixLogger{inner: l, prefix: prefix}
}

func (l *writerLogger) Debugf(format string, args ...interface{}) {
	l.writeLog(LevelDebug, fmt.Sprintf(format, args...))
}

func (l *writerLogger) Infof(format string, args ...interface{}) {
	l.writeLog(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *writerLogger) Warnf(format string, args ...interface{}) {
	l.writeLog(LevelWarn, fmt.Sprintf(format, args...))
}

func (l *writerLogger) Errorf(format string, args ...interface{}) {
	l.writeLog(LevelError, fmt.Sprintf(format, args...))
}

func (l *writerLogger) Debug(args ...interface{}) {
	l.writeLog(LevelDebug, fmt.Sprint(args...))
}

func (l *writerLogger) Info(args ...interface{}) {
	l.writeLog(LevelInfo, fmt.Sprint(args...))
}

func (l *writerLogger) Warn(args ...interface{}) {
	l.writeLog(LevelWarn, fmt.Sprint(args...))
}

func (l *writerLogger) Error(args ...interface{}) {
	l.writeLog(LevelError, fmt.Sprint(args...))
}

func (l *writerLogger) writeLog(level Level, msg string) {
	if level < l.level {
		return
	}
	if l.prefix != "" {
		msg = l.prefix + ": " + msg
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.Write([]byte(ts))
	l.writer.Write([]byte(" "))
	l.writer.Write([]byte(level.String()))
	l.writer.Write([]byte(" "))
	l.writer.Write([]byte(msg))
	l.writer.Write([]byte("\n"))
}

type nopLogger struct{}

var _ Logger = nopLogger{}

func (nopLogger) Debugf(format string, args ...interface{}) {}
func (nopLogger) Infof(format string, args ...interface{})  {}
func (nopLogger) Warnf(format string, args ...interface{})  {}
func (nopLogger) Errorf(format string, args ...interface{}) {}
func (nopLogger) Debug(args ...interface{})                 {}
func (nopLogger) Info(args ...interface{})                  {}
func (nopLogger) Warn(args ...interface{})                  {}
func (nopLogger) Error(args ...interface{})                 {}

type prefixLogger struct {
	inner  Logger
	prefix string
}

var _ Logger = &prefixLogger{}

func (l *prefixLogger) Debugf(format string, args ...interface{}) {
	l.inner.Debugf(l.prefix+": "+format, args...)
}

func (l *prefixLogger) Infof(format string, args ...interface{}) {
	l.inner.Infof(l.prefix+": "+format, args...)
}

func (l *prefixLogger) Warnf(format string, args ...interface{}) {
	l.inner.Warnf(l.prefix+": "+format, args...)
}

func (l *prefixLogger) Errorf(format string, args ...interface{}) {
	l.inner.Errorf(l.prefix+": "+format, args...)
}

func (l *prefixLogger) Debug(args ...interface{}) {
	l.inner.Debug(append([]interface{}{l.prefix + ": "}, args...)...)
}

func (l *prefixLogger) Info(args ...interface{}) {
	l.inner.Info(append([]interface{}{l.prefix + ": "}, args...)...)
}

func (l *prefixLogger) Warn(args ...interface{}) {
	l.inner.Warn(append([]interface{}{l.prefix + ": "}, args...)...)
}

func (l *prefixLogger) Error(args ...interface{}) {
	l.inner.Error(append([]interface{}{l.prefix + ": "}, args...)...)
}
