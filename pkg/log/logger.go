package log

import (
	"fmt"
	"time"
)

// Logger provides structured logging capabilities.
// Implementations can wrap zerolog, zap, logrus, or any other logging library.
type Logger interface {
	// Debug logs a debug-level message with fields.
	Debug(msg string, fields ...Field)

	// Info logs an info-level message with fields.
	Info(msg string, fields ...Field)

	// Warn logs a warning-level message with fields.
	Warn(msg string, fields ...Field)

	// Error logs an error-level message with fields.
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Stringer creates a string field from a fmt.Stringer, such as a handle.
func Stringer(key string, value fmt.Stringer) Field {
	return Field{Key: key, Value: value.String()}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Uint64 creates a uint64 field.
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field with key "error".
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value.
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// With returns a Logger that prepends fields to every entry.
func With(l Logger, fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	if b, ok := l.(*bound); ok {
		merged := append(append([]Field{}, b.fields...), fields...)
		return &bound{next: b.next, fields: merged}
	}
	return &bound{next: l, fields: fields}
}

type bound struct {
	next   Logger
	fields []Field
}

func (b *bound) merge(fields []Field) []Field {
	return append(append(make([]Field, 0, len(b.fields)+len(fields)), b.fields...), fields...)
}

func (b *bound) Debug(msg string, fields ...Field) { b.next.Debug(msg, b.merge(fields)...) }
func (b *bound) Info(msg string, fields ...Field)  { b.next.Info(msg, b.merge(fields)...) }
func (b *bound) Warn(msg string, fields ...Field)  { b.next.Warn(msg, b.merge(fields)...) }
func (b *bound) Error(msg string, fields ...Field) { b.next.Error(msg, b.merge(fields)...) }
