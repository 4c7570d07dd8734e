// Package trace carries the logging seam of the shim. Connections and
// statements report through a Tracer; adapters wrap the common logging
// backends so applications can reuse whatever logger they already run.
package trace

import (
	"fmt"
	"io"
	"time"
)

type Tracer interface {
	Close() error
	Print(vs ...interface{})
	Printf(f string, s ...interface{})
	LogSQL(id string, query string)
}

type traceWriter struct {
	w io.WriteCloser
}

func NewTraceWriter(w io.WriteCloser) *traceWriter {
	return &traceWriter{w}
}

func (t *traceWriter) Close() (err error) {
	if t.w != nil {
		err = t.w.Close()
	}
	return
}

func (t traceWriter) Print(vs ...interface{}) {
	if t.w != nil {
		t.w.Write([]byte(fmt.Sprintf("%s: ", time.Now().Format("2006-01-02T15:04:05.0000"))))
		for _, v := range vs {
			t.w.Write([]byte(fmt.Sprintf("%v", v)))
		}
		t.w.Write([]byte{'\n'})
	}
}

func (t traceWriter) Printf(f string, s ...interface{}) {
	if t.w != nil {
		t.Print(fmt.Sprintf(f, s...))
	}
}

func (t traceWriter) LogSQL(id string, query string) {
	if t.w != nil {
		t.Print(fmt.Sprintf("stmt %s: %s", id, query))
	}
}

type nilTracer struct{}

func NilTracer() *nilTracer                         { return &nilTracer{} }
func (nilTracer) Close() error                      { return nil }
func (nilTracer) Print(vs ...interface{})           {}
func (nilTracer) Printf(f string, s ...interface{}) {}
func (nilTracer) LogSQL(id string, query string)    {}
