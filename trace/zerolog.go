package trace

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ZerologTracer implements Tracer using zerolog.
type ZerologTracer struct {
	Logger zerolog.Logger
}

// NewZerologTracer creates a new tracer using zerolog
func NewZerologTracer(logger zerolog.Logger) Tracer {
	return &ZerologTracer{Logger: logger}
}

func (t *ZerologTracer) Close() error {
	return nil
}

func (t *ZerologTracer) Print(vs ...interface{}) {
	t.Logger.Info().Msg(fmt.Sprint(vs...))
}

func (t *ZerologTracer) Printf(f string, s ...interface{}) {
	t.Logger.Info().Msgf(f, s...)
}

func (t *ZerologTracer) LogSQL(id string, query string) {
	t.Logger.Debug().
		Str("stmt", id).
		Str("sql", query).
		Msg("statement")
}
