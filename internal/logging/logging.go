// Package logging provides the leveled, field-based logger every cockpit
// component takes. Two encodings share the Logger interface: logfmt lines
// written by this package, and JSON lines produced by zap.
package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Format selects the line encoding. It is read from the [logging] format
// config key; anything other than "json" means logfmt.
type Format string

const (
	FormatLogfmt Format = "logfmt"
	FormatJSON   Format = "json"
)

// Field is one key=value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Enabled(level Level) bool
}

// New returns a logfmt logger writing to out (stdout when nil). Lines below
// level are dropped.
func New(out io.Writer, level Level) Logger {
	if out == nil {
		out = os.Stdout
	}
	return &logfmt{w: out, min: level, mu: &sync.Mutex{}}
}

// NewWithFormat returns the logfmt logger for FormatLogfmt and a zap JSON
// logger for FormatJSON. Both write to out and filter at level.
func NewWithFormat(out io.Writer, level Level, format Format) Logger {
	if format == FormatJSON {
		return NewZapWriter(out, level)
	}
	return New(out, level)
}

// Nop discards everything.
func Nop() Logger {
	return &logfmt{w: io.Discard, min: Error + 1, mu: &sync.Mutex{}}
}

// logfmt writes one line per call. Loggers derived with With share the
// parent's mutex so lines from one writer never interleave.
type logfmt struct {
	w      io.Writer
	min    Level
	fields []Field
	mu     *sync.Mutex
}

func (l *logfmt) Enabled(level Level) bool {
	return l != nil && level >= l.min
}

func (l *logfmt) With(fields ...Field) Logger {
	if l == nil {
		return Nop()
	}
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &logfmt{w: l.w, min: l.min, fields: merged, mu: l.mu}
}

func (l *logfmt) Debug(msg string, fields ...Field) { l.write(Debug, msg, fields) }
func (l *logfmt) Info(msg string, fields ...Field)  { l.write(Info, msg, fields) }
func (l *logfmt) Warn(msg string, fields ...Field)  { l.write(Warn, msg, fields) }
func (l *logfmt) Error(msg string, fields ...Field) { l.write(Error, msg, fields) }

func (l *logfmt) write(level Level, msg string, fields []Field) {
	if !l.Enabled(level) {
		return
	}
	var line strings.Builder
	appendPair(&line, "ts", time.Now().UTC().Format(time.RFC3339Nano))
	appendPair(&line, "level", level.String())
	appendPair(&line, "msg", msg)
	for _, field := range l.fields {
		appendPair(&line, field.Key, field.Value)
	}
	for _, field := range fields {
		appendPair(&line, field.Key, field.Value)
	}
	line.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.w, line.String())
}

func appendPair(b *strings.Builder, key string, value any) {
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(encodeValue(value))
}

// encodeValue renders a field value for logfmt. Errors are logged by their
// message, so a wrapped chain shows up as one quoted string. Numbers and
// booleans are bare; everything else is quoted when it contains spaces,
// quotes or '='.
func encodeValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case error:
		return quote(v.Error())
	case string:
		return quote(v)
	case []byte:
		return quote(string(v))
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32, uint, uint32, uint64, float32, float64:
		return fmt.Sprint(v)
	case fmt.Stringer:
		return quote(v.String())
	default:
		return quote(fmt.Sprintf("%v", v))
	}
}

func quote(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\n\r\"=") {
		return strconv.Quote(s)
	}
	return s
}

// ParseLevel maps a config string to a Level; unknown values are Info.
func ParseLevel(raw string) Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// ParseFormat maps a config string to a Format; unknown values are logfmt.
func ParseFormat(raw string) Format {
	if strings.EqualFold(strings.TrimSpace(raw), string(FormatJSON)) {
		return FormatJSON
	}
	return FormatLogfmt
}
