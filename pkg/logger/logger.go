// Package logger provides the JSON access logger used by the dashboard HTTP layer.
// Entries are written one per line with flat structured fields.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
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
		return "unknown"
	}
}

// ParseLevel parses a level name. Unknown names map to LevelInfo.
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

// Field is a key-value pair attached to an entry.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field          { return Field{Key: key, Value: value} }
func Int(key string, value int) Field         { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field     { return Field{Key: key, Value: value} }
func Uint64(key string, value uint64) Field   { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field       { return Field{Key: key, Value: value} }
func Any(key string, value any) Field         { return Field{Key: key, Value: value} }

// Err creates an error field. A nil error produces a null value.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration creates a duration field rendered in milliseconds.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: float64(value.Microseconds()) / 1000}
}

// Time creates a time field.
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value.UTC().Format(time.RFC3339)}
}

// reserved keys are written by the logger itself and cannot be overridden by fields.
var reserved = map[string]struct{}{"ts": {}, "level": {}, "msg": {}, "caller": {}, "service": {}}

// Logger writes JSON lines to an io.Writer.
type Logger struct {
	mu        *sync.Mutex
	out       io.Writer
	level     Level
	service   string
	fields    []Field
	addCaller bool
	now       func() time.Time
}

// Options configures the logger.
type Options struct {
	Output    io.Writer
	Level     Level
	Service   string
	AddCaller bool
}

// New creates a new Logger with the given options.
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Logger{
		mu:        &sync.Mutex{},
		out:       opts.Output,
		level:     opts.Level,
		service:   opts.Service,
		addCaller: opts.AddCaller,
		now:       time.Now,
	}
}

// Default creates an info-level logger writing to stdout.
func Default() *Logger {
	return New(Options{Level: LevelInfo})
}

// With returns a child logger carrying the given fields. Children share the writer lock.
func (l *Logger) With(fields ...Field) *Logger {
	child := *l
	child.fields = make([]Field, 0, len(l.fields)+len(fields))
	child.fields = append(child.fields, l.fields...)
	child.fields = append(child.fields, fields...)
	return &child
}

// Enabled reports whether entries at level are written.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.level
}

func (l *Logger) write(level Level, msg string, fields []Field) {
	if !l.Enabled(level) {
		return
	}

	entry := make(map[string]any, len(l.fields)+len(fields)+5)
	for _, f := range l.fields {
		entry[f.Key] = f.Value
	}
	for _, f := range fields {
		if _, ok := reserved[f.Key]; ok {
			entry["field."+f.Key] = f.Value
			continue
		}
		entry[f.Key] = f.Value
	}

	entry["ts"] = l.now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg
	if l.service != "" {
		entry["service"] = l.service
	}
	if l.addCaller {
		if _, file, line, ok := runtime.Caller(2); ok {
			if idx := strings.LastIndex(file, "/"); idx >= 0 {
				file = file[idx+1:]
			}
			entry["caller"] = fmt.Sprintf("%s:%d", file, line)
		}
	}

	data, err := json.Marshal(entry)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		fmt.Fprintf(l.out, `{"level":%q,"msg":%q,"marshal_error":%q}`+"\n", level.String(), msg, err.Error())
		return
	}
	data = append(data, '\n')
	_, _ = l.out.Write(data)
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.write(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.write(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.write(LevelError, msg, fields) }

type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or returns a default logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}

// Dashboard field helpers.
func RequestID(id string) Field      { return String("request_id", id) }
func StudentID(id int64) Field       { return Int64("student_id", id) }
func SessionID(id string) Field      { return String("session_id", id) }
func Generation(gen uint64) Field    { return Uint64("generation", gen) }
func View(name string) Field         { return String("view", name) }
func Component(name string) Field    { return String("component", name) }
func Latency(d time.Duration) Field  { return Duration("latency_ms", d) }
func StatusCode(code int) Field      { return Int("status", code) }
func Route(method, path string) Field { return String("route", method+" "+path) }
