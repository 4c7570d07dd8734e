package pdo_oci8

import (
	"context"
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/nineinchnick/pdo-oci8/oci8"
	"github.com/nineinchnick/pdo-oci8/trace"
)

type StmtType int

const (
	SELECT StmtType = 1
	DML    StmtType = 2
	PLSQL  StmtType = 3
	OTHERS StmtType = 4
)

func stmtTypeOf(query string) StmtType {
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "SELECT"), strings.HasPrefix(upper, "WITH"):
		return SELECT
	case strings.HasPrefix(upper, "INSERT"), strings.HasPrefix(upper, "UPDATE"),
		strings.HasPrefix(upper, "DELETE"), strings.HasPrefix(upper, "MERGE"):
		return DML
	case strings.HasPrefix(upper, "DECLARE"), strings.HasPrefix(upper, "BEGIN"),
		strings.HasPrefix(upper, "CALL"):
		return PLSQL
	}
	return OTHERS
}

// Statement is one prepared statement. It owns its native handle exclusively
// and is not safe for concurrent use; callers serialize access.
type Statement struct {
	conn           *Connection
	native         oci8.Stmt
	id             string
	query          string
	stmtType       StmtType
	binds          map[string]*bindInfo
	bindOrder      []string
	columnBinds    []columnBind
	mode           fetchMode
	lobs           map[string]oci8.Lob
	lobsValue      map[string][]byte
	lobsBeforeExec []*pendingLob
	lobsAtCommit   []*pendingLob
	errors         errorState
	cols           []oci8.Column
	executed       bool
	cached         bool
	closed         bool
}

func newStatement(conn *Connection, native oci8.Stmt, query string) *Statement {
	return &Statement{
		conn:      conn,
		native:    native,
		id:        uuid.NewString(),
		query:     query,
		stmtType:  stmtTypeOf(query),
		binds:     make(map[string]*bindInfo),
		lobs:      make(map[string]oci8.Lob),
		lobsValue: make(map[string][]byte),
	}
}

// ID is the statement's trace identifier.
func (stmt *Statement) ID() string {
	return stmt.id
}

// Query returns the statement text as prepared.
func (stmt *Statement) Query() string {
	return stmt.query
}

// Type reports the statement classification derived from its leading keyword.
func (stmt *Statement) Type() StmtType {
	return stmt.stmtType
}

// Execute runs the statement. Optional params are bound as string-typed
// values before executing; a failed bind aborts the call and restores the
// previously registered binds.
//
// The commit mode is decided first: the call auto-commits only when the
// connection is in autocommit, no transaction is open and no large object is
// pending. Before-execute large objects are written to their temporaries
// ahead of the native execute, at-commit ones are saved after it, and a
// trailing commit is issued when large objects were involved outside an
// explicit transaction.
func (stmt *Statement) Execute(ctx context.Context, params map[string]interface{}) error {
	if stmt.closed {
		return ErrStmtClosed
	}
	mode := stmt.execMode()
	if len(params) > 0 {
		savedBinds, savedOrder := stmt.snapshotBinds()
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			key, err := normalizeName(name)
			if err == nil {
				err = stmt.bind(key, params[name], false, ParamStr, -1, nil)
			}
			if err != nil {
				stmt.restoreBinds(savedBinds, savedOrder)
				return fmt.Errorf("parameter %s: %w", name, err)
			}
		}
	}
	if err := stmt.refreshBinds(); err != nil {
		return stmt.fail(err)
	}
	if err := stmt.writeTemporaries(ctx); err != nil {
		return stmt.execFail(err)
	}
	if err := stmt.native.Execute(ctx, mode); err != nil {
		return stmt.execFail(err)
	}
	stmt.executed = true
	stmt.cols = nil
	if err := stmt.copyOutBinds(); err != nil {
		return err
	}
	if err := stmt.saveLobs(ctx); err != nil {
		return stmt.execFail(err)
	}
	if stmt.hasPendingLobs() && !stmt.conn.InTransaction() {
		if err := stmt.conn.commitNative(ctx); err != nil {
			return stmt.execFail(err)
		}
	}
	stmt.finishLobs()
	stmt.tracer().Printf("stmt %s: executed, %d rows affected", stmt.id, stmt.native.RowsAffected())
	return nil
}

// execMode decides between auto-committing the execute and leaving the
// transaction open. Pending large objects force the open mode so the final
// save still happens inside the same transaction.
func (stmt *Statement) execMode() oci8.ExecMode {
	if stmt.conn.Autocommit() && !stmt.conn.InTransaction() && !stmt.hasPendingLobs() {
		return oci8.ExecCommitOnSuccess
	}
	return oci8.ExecDefault
}

func (stmt *Statement) snapshotBinds() (map[string]*bindInfo, []string) {
	binds := make(map[string]*bindInfo, len(stmt.binds))
	for name, info := range stmt.binds {
		binds[name] = info
	}
	order := make([]string, len(stmt.bindOrder))
	copy(order, stmt.bindOrder)
	return binds, order
}

func (stmt *Statement) restoreBinds(binds map[string]*bindInfo, order []string) {
	stmt.binds = binds
	stmt.bindOrder = order
}

// fail records a native failure on the statement and routes it through the
// connection's error-mode policy.
func (stmt *Statement) fail(err error) error {
	native := liftNative(err)
	stmt.errors.record(native)
	return stmt.conn.police(native)
}

// execFail additionally mirrors the failure onto the connection state, as the
// execute path is visible through both handles.
func (stmt *Statement) execFail(err error) error {
	native := liftNative(err)
	if native.SQL == "" {
		native.SQL = stmt.query
	}
	stmt.errors.record(native)
	stmt.conn.errors.record(native)
	return stmt.conn.police(native)
}

// ErrorCode reports the two-tier status of the statement: empty when no
// native error is recorded, the generic failure state otherwise.
func (stmt *Statement) ErrorCode() string {
	return stmt.errors.code()
}

// ErrorInfo returns the detail triple behind ErrorCode.
func (stmt *Statement) ErrorInfo() ErrorInfo {
	return stmt.errors.info()
}

func (stmt *Statement) tracer() trace.Tracer {
	return stmt.conn.tracer()
}

// assignCursor wraps a ref-cursor bind as a fetch-only statement and stores
// it through the caller's pointer.
func (stmt *Statement) assignCursor(info *bindInfo) error {
	wrapped := newStatement(stmt.conn, &cursorStmt{cursor: info.cursor}, stmt.query)
	wrapped.executed = true
	switch target := info.ref.(type) {
	case **Statement:
		*target = wrapped
	case *interface{}:
		*target = wrapped
	default:
		return ErrBindTarget
	}
	return nil
}

// CloseCursor releases the current result set, frees large object descriptors
// the statement still owns and leaves it ready for another Execute.
func (stmt *Statement) CloseCursor() error {
	if stmt.closed {
		return ErrStmtClosed
	}
	stmt.freeLobs()
	stmt.cols = nil
	stmt.executed = false
	if err := stmt.native.CloseCursor(); err != nil {
		return stmt.fail(err)
	}
	return nil
}

// Close releases the statement. A cache-backed statement returns its native
// handle to the connection's cache instead of closing it. Close is
// idempotent.
func (stmt *Statement) Close() error {
	if stmt.closed {
		return nil
	}
	stmt.closed = true
	stmt.freeLobs()
	if stmt.cached && stmt.conn.State == Opened {
		stmt.native.CloseCursor()
		if stmt.conn.cache.put(stmt.query, stmt.native) {
			stmt.tracer().Printf("stmt %s: returned to cache", stmt.id)
			return nil
		}
	}
	if err := stmt.native.Close(); err != nil {
		return stmt.fail(err)
	}
	stmt.tracer().Printf("stmt %s: closed", stmt.id)
	return nil
}

// cursorStmt adapts a ref-cursor result set to the native statement surface.
// Everything except describing and fetching is rejected.
type cursorStmt struct {
	cursor oci8.Cursor
}

func (cs *cursorStmt) BindName(string, driver.Value, oci8.TypeCode, int) error {
	return ErrCursorFetchOnly
}

func (cs *cursorStmt) BindArray(string, []driver.Value, oci8.TypeCode, int) error {
	return ErrCursorFetchOnly
}

func (cs *cursorStmt) BindLob(string, oci8.Lob) error {
	return ErrCursorFetchOnly
}

func (cs *cursorStmt) BindOut(string, *driver.Value, oci8.TypeCode, int) error {
	return ErrCursorFetchOnly
}

func (cs *cursorStmt) BindCursor(string) (oci8.Cursor, error) {
	return nil, ErrCursorFetchOnly
}

func (cs *cursorStmt) Execute(context.Context, oci8.ExecMode) error {
	return ErrCursorFetchOnly
}

func (cs *cursorStmt) Columns() []oci8.Column {
	return cs.cursor.Columns()
}

func (cs *cursorStmt) Fetch(ctx context.Context) (oci8.Row, error) {
	return cs.cursor.Fetch(ctx)
}

func (cs *cursorStmt) RowsAffected() int64 {
	return 0
}

func (cs *cursorStmt) CloseCursor() error {
	return nil
}

func (cs *cursorStmt) Close() error {
	return cs.cursor.Close()
}
