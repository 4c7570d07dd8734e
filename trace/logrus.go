package trace

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogrusTracer implements Tracer using logrus.
type LogrusTracer struct {
	Logger *logrus.Logger
}

// NewLogrusTracer creates a new tracer using logrus
func NewLogrusTracer(logger *logrus.Logger) Tracer {
	return &LogrusTracer{Logger: logger}
}

func (t *LogrusTracer) Close() error {
	return nil
}

func (t *LogrusTracer) Print(vs ...interface{}) {
	t.Logger.Info(fmt.Sprint(vs...))
}

func (t *LogrusTracer) Printf(f string, s ...interface{}) {
	t.Logger.Infof(f, s...)
}

func (t *LogrusTracer) LogSQL(id string, query string) {
	t.Logger.WithFields(logrus.Fields{
		"stmt": id,
		"sql":  query,
	}).Debug("statement")
}
