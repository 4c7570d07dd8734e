package trace

import (
	"fmt"

	"go.uber.org/zap"
)

// ZapTracer implements Tracer using zap.
type ZapTracer struct {
	Logger *zap.Logger
}

// NewZapTracer creates a new tracer using zap
func NewZapTracer(logger *zap.Logger) Tracer {
	return &ZapTracer{Logger: logger}
}

func (t *ZapTracer) Close() error {
	return t.Logger.Sync()
}

func (t *ZapTracer) Print(vs ...interface{}) {
	t.Logger.Info(fmt.Sprint(vs...))
}

func (t *ZapTracer) Printf(f string, s ...interface{}) {
	t.Logger.Info(fmt.Sprintf(f, s...))
}

func (t *ZapTracer) LogSQL(id string, query string) {
	t.Logger.Debug("statement",
		zap.String("stmt", id),
		zap.String("sql", query),
	)
}
