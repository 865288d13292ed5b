// Package charmlog adapts charmbracelet/log to the observability seam.
// Binaries install it; library packages depend on the interface only.
package charmlog

import (
	"github.com/charmbracelet/log"

	"github.com/hyeonwoo/redactkit/observability"
)

type logger struct {
	l *log.Logger
}

// New wraps a charmbracelet logger. Fields become key/value pairs.
func New(l *log.Logger) observability.Logger {
	return logger{l: l}
}

func keyvals(fields []observability.Field) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key(), f.Value())
	}
	return out
}

func (c logger) Debug(msg string, fields ...observability.Field) { c.l.Debug(msg, keyvals(fields)...) }
func (c logger) Info(msg string, fields ...observability.Field)  { c.l.Info(msg, keyvals(fields)...) }
func (c logger) Warn(msg string, fields ...observability.Field)  { c.l.Warn(msg, keyvals(fields)...) }
func (c logger) Error(msg string, fields ...observability.Field) { c.l.Error(msg, keyvals(fields)...) }

func (c logger) With(fields ...observability.Field) observability.Logger {
	return logger{l: c.l.With(keyvals(fields)...)}
}
