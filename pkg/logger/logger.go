package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with typed fields and an optional error collector.
type Logger struct {
	zl        zerolog.Logger
	collector *ErrorCollector
}

type Config struct {
	Level      string // debug, info, warn, error, fatal, or panic
	Format     string // "json" or "console"
	Output     string // "stdout", "stderr", or a file path
	TimeFormat string // timestamp layout, default RFC3339Nano
}

func New(cfg *Config) (*Logger, error) {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	output, err := newWriter(cfg)
	if err != nil {
		return nil, err
	}

	zl := zerolog.New(output).
		With().
		Timestamp().
		CallerWithSkipFrameCount(4).
		Logger()

	return &Logger{zl: zl}, nil
}

func newWriter(cfg *Config) (io.Writer, error) {
	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat, NoColor: false}
	}
	return out, nil
}

func openOutput(target string) (io.Writer, error) {
	switch target {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		file, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		return file, nil
	}
}

func emit(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		f.AddTo(event)
	}
	event.Msg(msg)
}

func (l *Logger) Debug(msg string, fields ...Field) {
	emit(l.zl.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...Field) {
	emit(l.zl.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	emit(l.zl.Warn(), msg, fields)
}

// Error logs at error level and, when a collector is attached, records the
// event for the health endpoint.
func (l *Logger) Error(msg string, fields ...Field) {
	emit(l.zl.Error(), msg, fields)
	if l.collector != nil {
		l.collector.Record(msg, fields)
	}
}

// AttachCollector starts aggregating error-level events so the ops surface
// can report recent failures without scraping log output.
func (l *Logger) AttachCollector(cfg *CollectorConfig) *ErrorCollector {
	if l.collector != nil {
		l.collector.Close()
	}
	l.collector = NewErrorCollector(cfg)
	return l.collector
}

// Collector returns the attached error collector, or nil.
func (l *Logger) Collector() *ErrorCollector { return l.collector }

// Field is one typed key/value pair. GetKeyValue exists for consumers like
// the error collector that need the pair outside a zerolog event.
type Field interface {
	AddTo(e *zerolog.Event)
	GetKeyValue() (string, interface{})
}

type (
	StringField struct {
		Key   string
		Value string
	}
	IntField struct {
		Key   string
		Value int
	}
	Int64Field struct {
		Key   string
		Value int64
	}
	Float64Field struct {
		Key   string
		Value float64
	}
	BoolField struct {
		Key   string
		Value bool
	}
	AnyField struct {
		Key   string
		Value interface{}
	}
	ErrorField struct {
		Key   string
		Value error
	}
)

func (f StringField) AddTo(e *zerolog.Event)             { e.Str(f.Key, f.Value) }
func (f StringField) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

func (f IntField) AddTo(e *zerolog.Event)             { e.Int(f.Key, f.Value) }
func (f IntField) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

func (f Int64Field) AddTo(e *zerolog.Event)             { e.Int64(f.Key, f.Value) }
func (f Int64Field) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

func (f Float64Field) AddTo(e *zerolog.Event)             { e.Float64(f.Key, f.Value) }
func (f Float64Field) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

func (f BoolField) AddTo(e *zerolog.Event)             { e.Bool(f.Key, f.Value) }
func (f BoolField) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

func (f AnyField) AddTo(e *zerolog.Event)             { e.Interface(f.Key, f.Value) }
func (f AnyField) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

func (f ErrorField) AddTo(e *zerolog.Event)             { e.Err(f.Value) }
func (f ErrorField) GetKeyValue() (string, interface{}) { return f.Key, f.Value.Error() }

func String(key, value string) Field          { return StringField{Key: key, Value: value} }
func Int(key string, value int) Field         { return IntField{Key: key, Value: value} }
func Int64(key string, value int64) Field     { return Int64Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Float64Field{Key: key, Value: value} }
func Bool(key string, value bool) Field       { return BoolField{Key: key, Value: value} }
func Any(key string, value interface{}) Field { return AnyField{Key: key, Value: value} }

// Error logs err under the fixed "error" key.
func Error(err error) Field {
	return ErrorField{Key: "error", Value: err}
}

// Duration records the value as whole milliseconds.
func Duration(key string, value time.Duration) Field {
	return IntField{Key: key, Value: int(value / time.Millisecond)}
}

// Strings joins the values into one comma separated field.
func Strings(key string, value []string) Field {
	return String(key, strings.Join(value, ", "))
}
