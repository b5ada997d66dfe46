// Package applog provides structured logging for the patch host,
// matching the call-site shape of the teacher's pkg/framework/debug
// logger (Debug/Info/Warn/Error/Fatal, SetLevel, SetPrefix, a global
// default logger) but backed by github.com/charmbracelet/log instead of
// a hand-rolled formatter, per the corpus's habit of reaching for a
// real logging library rather than re-implementing one.
package applog

import (
	"io"
	"os"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

// Level mirrors the teacher's LogLevel enum, re-expressed over
// charmlog.Level so call sites read the same way.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
	LevelOff
)

func (l Level) charm() charmlog.Level {
	switch l {
	case LevelDebug:
		return charmlog.DebugLevel
	case LevelInfo:
		return charmlog.InfoLevel
	case LevelWarn:
		return charmlog.WarnLevel
	case LevelError:
		return charmlog.ErrorLevel
	case LevelFatal:
		return charmlog.FatalLevel
	default:
		return charmlog.Level(99) // above Fatal: effectively off
	}
}

// Logger wraps a charmbracelet/log.Logger with the teacher's method
// names and a mutex-guarded prefix/level, since the patch host's
// control thread and background watchdog goroutine can both log.
type Logger struct {
	mu sync.Mutex
	l  *charmlog.Logger
}

// New creates a Logger writing to w with the given prefix. Component
// naming follows the teacher's SetPrefix convention — callers tag each
// subsystem ("player", "session", "connection") rather than logging
// untagged.
func New(w io.Writer, prefix string) *Logger {
	l := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
	})
	return &Logger{l: l}
}

// SetLevel sets the minimum level this logger emits.
func (lg *Logger) SetLevel(level Level) {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.l.SetLevel(level.charm())
}

// SetPrefix changes the component prefix.
func (lg *Logger) SetPrefix(prefix string) {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.l.SetPrefix(prefix)
}

// With returns a child logger with additional structured key/value
// context, the way charmlog.Logger.With composes — used to tag log
// lines with e.g. a connection ID without reformatting every call site.
func (lg *Logger) With(keyvals ...any) *Logger {
	return &Logger{l: lg.l.With(keyvals...)}
}

func (lg *Logger) Debug(msg string, keyvals ...any) { lg.l.Debug(msg, keyvals...) }
func (lg *Logger) Info(msg string, keyvals ...any)  { lg.l.Info(msg, keyvals...) }
func (lg *Logger) Warn(msg string, keyvals ...any)  { lg.l.Warn(msg, keyvals...) }
func (lg *Logger) Error(msg string, keyvals ...any) { lg.l.Error(msg, keyvals...) }

// Fatal logs at fatal level and panics — matching the teacher's Fatal,
// which never calls os.Exit directly so callers embedding the core in a
// larger process keep control of shutdown.
func (lg *Logger) Fatal(msg string, keyvals ...any) {
	lg.l.Error(msg, keyvals...)
	panic(msg)
}

var (
	defaultOnce sync.Once
	defaultLg   *Logger
)

// Default returns the process-wide default logger, writing to stderr
// with no prefix until a caller reassigns it with SetDefault.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLg = New(os.Stderr, "")
	})
	return defaultLg
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l *Logger) {
	defaultOnce.Do(func() {}) // ensure Default's lazy init never races SetDefault
	defaultLg = l
}

func Debug(msg string, keyvals ...any) { Default().Debug(msg, keyvals...) }
func Info(msg string, keyvals ...any)  { Default().Info(msg, keyvals...) }
func Warn(msg string, keyvals ...any)  { Default().Warn(msg, keyvals...) }
func Error(msg string, keyvals ...any) { Default().Error(msg, keyvals...) }
func Fatal(msg string, keyvals ...any) { Default().Fatal(msg, keyvals...) }
