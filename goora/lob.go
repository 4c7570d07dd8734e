package goora

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nineinchnick/pdo-oci8/oci8"
)

// Lob is a client-buffered large object. The pure Go protocol has no
// standalone locator to write through ahead of execute, so the staged payload
// travels in-band with the statement and the write and save phases only
// validate descriptor state.
type Lob struct {
	kind    oci8.LobKind
	data    []byte
	staged  bool
	written bool
	freed   bool
}

var _ oci8.Lob = (*Lob)(nil)

func (lob *Lob) Kind() oci8.LobKind {
	return lob.kind
}

func (lob *Lob) Stage(value []byte) {
	lob.data = value
	lob.staged = true
	lob.written = false
}

func (lob *Lob) WriteTemporary(ctx context.Context) error {
	if lob.freed {
		return errors.New("lob descriptor already freed")
	}
	if !lob.staged {
		return errors.New("no staged payload to write")
	}
	lob.written = true
	return nil
}

func (lob *Lob) Save(ctx context.Context) error {
	if lob.freed {
		return errors.New("lob descriptor already freed")
	}
	if !lob.staged {
		return errors.New("no staged payload to save")
	}
	return nil
}

func (lob *Lob) Free() error {
	lob.data = nil
	lob.staged = false
	lob.written = false
	lob.freed = true
	return nil
}

// payload returns the staged bytes and whether anything was staged at all.
func (lob *Lob) payload() ([]byte, bool) {
	return lob.data, lob.staged
}
