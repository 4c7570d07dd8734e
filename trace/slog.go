package trace

import (
	"fmt"
	"log/slog"
)

// SlogTracer implements Tracer using the standard library slog.
type SlogTracer struct {
	Logger *slog.Logger
}

// NewSlogTracer creates a new tracer using slog
func NewSlogTracer(logger *slog.Logger) Tracer {
	return &SlogTracer{Logger: logger}
}

func (t *SlogTracer) Close() error {
	return nil
}

func (t *SlogTracer) Print(vs ...interface{}) {
	t.Logger.Info(fmt.Sprint(vs...))
}

func (t *SlogTracer) Printf(f string, s ...interface{}) {
	t.Logger.Info(fmt.Sprintf(f, s...))
}

func (t *SlogTracer) LogSQL(id string, query string) {
	t.Logger.Debug("statement", "stmt", id, "sql", query)
}
