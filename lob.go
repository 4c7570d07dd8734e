package pdo_oci8

import (
	"context"
	"fmt"
	"io"

	"github.com/nineinchnick/pdo-oci8/oci8"
)

// LobStrategy selects when a bound large object reaches the server.
type LobStrategy int

const (
	// LobAtCommit saves the value through the descriptor after a successful
	// execute, followed by a commit when no explicit transaction is open.
	LobAtCommit LobStrategy = iota
	// LobBeforeExecute writes the value into a temporary large object before
	// the execute call, for PL/SQL-style input binds.
	LobBeforeExecute
)

func (strategy LobStrategy) String() string {
	if strategy == LobBeforeExecute {
		return "before-execute"
	}
	return "at-commit"
}

// pendingLob is one large-object bind waiting for the execute cycle. The two
// pending lists on the statement are consumed in insertion order.
type pendingLob struct {
	name     string
	kind     oci8.LobKind
	lob      oci8.Lob
	strategy LobStrategy
	value    []byte
}

// bindLob captures the raw value, allocates a descriptor through the owning
// connection, stages the value on it and binds the descriptor to the
// placeholder. The write itself is deferred to the execute cycle according to
// the chosen strategy.
func (stmt *Statement) bindLob(name string, value interface{}, options *BindOptions) error {
	raw, err := lobBytes(value)
	if err != nil {
		return err
	}
	strategy := LobAtCommit
	kind := lobKindFor(value)
	if options != nil {
		strategy = options.Strategy
		if options.Kind != 0 {
			kind = options.Kind
		}
	}
	lob, err := stmt.conn.allocLob(kind)
	if err != nil {
		return stmt.fail(err)
	}
	lob.Stage(raw)
	if err = stmt.native.BindLob(name, lob); err != nil {
		lob.Free()
		return stmt.fail(err)
	}
	stmt.storeBind(&bindInfo{name: name, paramType: ParamLob, code: lobTypeCode(kind), isLob: true})
	pending := &pendingLob{name: name, kind: kind, lob: lob, strategy: strategy, value: raw}
	if strategy == LobBeforeExecute {
		stmt.lobsBeforeExec = append(stmt.lobsBeforeExec, pending)
	} else {
		stmt.lobsAtCommit = append(stmt.lobsAtCommit, pending)
	}
	stmt.lobs[name] = lob
	stmt.lobsValue[name] = raw
	stmt.tracer().Printf("stmt %s: lob bind %s (%s, %s, %d bytes)", stmt.id, name, kind, strategy, len(raw))
	return nil
}

// releaseLob frees the descriptor registered for a placeholder and drops the
// name from both pending lists and the value map. Rebinding and the close
// paths go through here so no descriptor outlives its bind.
func (stmt *Statement) releaseLob(name string) {
	lob, ok := stmt.lobs[name]
	if !ok {
		return
	}
	lob.Free()
	delete(stmt.lobs, name)
	delete(stmt.lobsValue, name)
	stmt.lobsBeforeExec = dropPending(stmt.lobsBeforeExec, name)
	stmt.lobsAtCommit = dropPending(stmt.lobsAtCommit, name)
}

func dropPending(pendings []*pendingLob, name string) []*pendingLob {
	for i, pending := range pendings {
		if pending.name == name {
			return append(pendings[:i], pendings[i+1:]...)
		}
	}
	return pendings
}

func (stmt *Statement) hasPendingLobs() bool {
	return len(stmt.lobsBeforeExec) > 0 || len(stmt.lobsAtCommit) > 0
}

// writeTemporaries flushes every before-execute large object into its
// temporary lob, in bind order.
func (stmt *Statement) writeTemporaries(ctx context.Context) error {
	for _, pending := range stmt.lobsBeforeExec {
		if err := pending.lob.WriteTemporary(ctx); err != nil {
			return err
		}
	}
	return nil
}

// saveLobs persists every at-commit large object through its descriptor, in
// bind order. Called only after a successful execute.
func (stmt *Statement) saveLobs(ctx context.Context) error {
	for _, pending := range stmt.lobsAtCommit {
		if err := pending.lob.Save(ctx); err != nil {
			return err
		}
	}
	return nil
}

// finishLobs empties both pending lists and the captured value map once the
// execute cycle consumed them. Descriptors stay registered on the statement
// until releaseLob or freeLobs.
func (stmt *Statement) finishLobs() {
	stmt.lobsBeforeExec = nil
	stmt.lobsAtCommit = nil
	for name := range stmt.lobsValue {
		delete(stmt.lobsValue, name)
	}
}

// freeLobs releases every descriptor the statement still owns.
func (stmt *Statement) freeLobs() {
	for _, name := range stmt.bindOrder {
		if lob, ok := stmt.lobs[name]; ok {
			lob.Free()
			delete(stmt.lobs, name)
		}
	}
	for name, lob := range stmt.lobs {
		lob.Free()
		delete(stmt.lobs, name)
	}
	stmt.lobsBeforeExec = nil
	stmt.lobsAtCommit = nil
	for name := range stmt.lobsValue {
		delete(stmt.lobsValue, name)
	}
}

// lobBytes captures the caller value as raw bytes. Readers are drained,
// byte slices are copied so later caller writes cannot change the capture.
func lobBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		raw := make([]byte, len(v))
		copy(raw, v)
		return raw, nil
	case string:
		return []byte(v), nil
	case io.Reader:
		return io.ReadAll(v)
	default:
		return []byte(fmt.Sprintf("%v", value)), nil
	}
}

func lobKindFor(value interface{}) oci8.LobKind {
	switch value.(type) {
	case string:
		return oci8.LobChar
	case []byte, io.Reader, nil:
		return oci8.LobBinary
	default:
		return oci8.LobChar
	}
}

func lobTypeCode(kind oci8.LobKind) oci8.TypeCode {
	if kind == oci8.LobChar {
		return oci8.Clob
	}
	return oci8.Blob
}
