package oci8

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
)

// Compile time sentinels for implemented interfaces.
var _ = Conn((*MockConn)(nil))
var _ = Stmt((*MockStmt)(nil))
var _ = BulkFetcher((*MockStmt)(nil))
var _ = Lob((*MockLob)(nil))
var _ = Cursor((*MockCursor)(nil))

// MockConn is an in-memory engine used by tests instead of a live server.
// Every call appends one line to Journal so tests can assert call ordering.
type MockConn struct {
	Stmts      map[string]*MockStmt
	PrepareErr error
	AllocErr   error
	BeginErr   error
	CommitErr  error
	VersionStr string
	Journal    []string
	InTx       bool
	Commits    int
	Rollbacks  int
	Closed     bool
	lobSeq     int
}

func NewMockConn() *MockConn {
	return &MockConn{Stmts: make(map[string]*MockStmt)}
}

// Script routes query to stmt on the next Prepare of the same text.
func (conn *MockConn) Script(query string, stmt *MockStmt) *MockStmt {
	stmt.conn = conn
	stmt.Query = query
	conn.Stmts[query] = stmt
	return stmt
}

func (conn *MockConn) log(format string, args ...interface{}) {
	conn.Journal = append(conn.Journal, fmt.Sprintf(format, args...))
}

func (conn *MockConn) Prepare(ctx context.Context, query string) (Stmt, error) {
	if conn.PrepareErr != nil {
		return nil, conn.PrepareErr
	}
	stmt := conn.Stmts[query]
	if stmt == nil {
		stmt = &MockStmt{}
	}
	stmt.conn = conn
	stmt.Query = query
	conn.log("prepare")
	return stmt, nil
}

func (conn *MockConn) AllocLob(kind LobKind) (Lob, error) {
	if conn.AllocErr != nil {
		return nil, conn.AllocErr
	}
	conn.lobSeq++
	lob := &MockLob{conn: conn, ID: fmt.Sprintf("lob%d", conn.lobSeq), kind: kind}
	conn.log("alloc-lob %s %s", lob.ID, kind)
	return lob, nil
}

func (conn *MockConn) Begin(ctx context.Context) error {
	if conn.BeginErr != nil {
		return conn.BeginErr
	}
	conn.InTx = true
	conn.log("begin")
	return nil
}

func (conn *MockConn) Commit(ctx context.Context) error {
	if conn.CommitErr != nil {
		return conn.CommitErr
	}
	conn.InTx = false
	conn.Commits++
	conn.log("commit")
	return nil
}

func (conn *MockConn) Rollback(ctx context.Context) error {
	conn.InTx = false
	conn.Rollbacks++
	conn.log("rollback")
	return nil
}

func (conn *MockConn) Ping(ctx context.Context) error {
	conn.log("ping")
	return nil
}

func (conn *MockConn) Version(ctx context.Context) (string, error) {
	if conn.VersionStr != "" {
		return conn.VersionStr, nil
	}
	return "Oracle Database 19c Mock Edition", nil
}

func (conn *MockConn) Close() error {
	conn.Closed = true
	conn.log("close")
	return nil
}

// MockBind records one bind call.
type MockBind struct {
	Name   string
	Value  driver.Value
	Values []driver.Value
	Code   TypeCode
	Size   int
	Out    bool
	Lob    Lob
	dest   *driver.Value
}

// MockStmt replays scripted columns, rows and errors.
type MockStmt struct {
	conn      *MockConn
	Query     string
	Cols      []Column
	Rows      []Row
	Cursors   map[string]*MockCursor
	OutValues map[string]driver.Value
	ExecErr   error
	BindErrOn string
	Affected  int64
	Binds     []MockBind
	Executed  int
	LastMode  ExecMode
	fetchIdx  int
	closed    bool
}

func (stmt *MockStmt) log(format string, args ...interface{}) {
	if stmt.conn != nil {
		stmt.conn.log(format, args...)
	}
}

// Bind returns the current bind record for a placeholder, nil when unbound.
func (stmt *MockStmt) Bind(name string) *MockBind {
	for i := range stmt.Binds {
		if stmt.Binds[i].Name == name {
			return &stmt.Binds[i]
		}
	}
	return nil
}

// store replaces an existing bind for the same placeholder, matching the
// rebind-by-name behavior of the real interface.
func (stmt *MockStmt) store(bind MockBind) {
	for i := range stmt.Binds {
		if stmt.Binds[i].Name == bind.Name {
			stmt.Binds[i] = bind
			return
		}
	}
	stmt.Binds = append(stmt.Binds, bind)
}

func (stmt *MockStmt) BindName(name string, value driver.Value, code TypeCode, size int) error {
	if stmt.BindErrOn == name {
		return &Error{Code: 1036, Message: "ORA-01036: illegal variable name/number", SQL: stmt.Query}
	}
	stmt.store(MockBind{Name: name, Value: value, Code: code, Size: size})
	stmt.log("bind %s", name)
	return nil
}

func (stmt *MockStmt) BindArray(name string, values []driver.Value, code TypeCode, size int) error {
	if stmt.BindErrOn == name {
		return &Error{Code: 1036, Message: "ORA-01036: illegal variable name/number", SQL: stmt.Query}
	}
	stmt.store(MockBind{Name: name, Values: values, Code: code, Size: size})
	stmt.log("bind-array %s[%d]", name, len(values))
	return nil
}

func (stmt *MockStmt) BindLob(name string, lob Lob) error {
	if stmt.BindErrOn == name {
		return &Error{Code: 1036, Message: "ORA-01036: illegal variable name/number", SQL: stmt.Query}
	}
	ml, _ := lob.(*MockLob)
	stmt.store(MockBind{Name: name, Lob: lob})
	if ml != nil {
		stmt.log("bind-lob %s %s", name, ml.ID)
	} else {
		stmt.log("bind-lob %s", name)
	}
	return nil
}

func (stmt *MockStmt) BindOut(name string, dest *driver.Value, code TypeCode, size int) error {
	if stmt.BindErrOn == name {
		return &Error{Code: 1036, Message: "ORA-01036: illegal variable name/number", SQL: stmt.Query}
	}
	stmt.store(MockBind{Name: name, Code: code, Size: size, Out: true, dest: dest})
	stmt.log("bind-out %s", name)
	return nil
}

func (stmt *MockStmt) BindCursor(name string) (Cursor, error) {
	if stmt.BindErrOn == name {
		return nil, &Error{Code: 1036, Message: "ORA-01036: illegal variable name/number", SQL: stmt.Query}
	}
	cursor := stmt.Cursors[name]
	if cursor == nil {
		cursor = &MockCursor{}
	}
	stmt.store(MockBind{Name: name, Code: RefCursor})
	stmt.log("bind-cursor %s", name)
	return cursor, nil
}

func (stmt *MockStmt) Execute(ctx context.Context, mode ExecMode) error {
	if stmt.closed {
		return errors.New("mock: statement is closed")
	}
	stmt.LastMode = mode
	if stmt.ExecErr != nil {
		stmt.log("execute failed")
		return stmt.ExecErr
	}
	stmt.Executed++
	stmt.fetchIdx = 0
	for i := range stmt.Binds {
		bind := &stmt.Binds[i]
		if bind.Out && bind.dest != nil {
			*bind.dest = stmt.OutValues[bind.Name]
		}
	}
	if mode&ExecCommitOnSuccess != 0 {
		stmt.log("execute commit-on-success")
	} else {
		stmt.log("execute no-auto-commit")
	}
	return nil
}

func (stmt *MockStmt) Columns() []Column {
	return stmt.Cols
}

func (stmt *MockStmt) Fetch(ctx context.Context) (Row, error) {
	if stmt.fetchIdx >= len(stmt.Rows) {
		return nil, io.EOF
	}
	row := make(Row, len(stmt.Rows[stmt.fetchIdx]))
	copy(row, stmt.Rows[stmt.fetchIdx])
	stmt.fetchIdx++
	return row, nil
}

func (stmt *MockStmt) FetchAll(ctx context.Context) ([]Row, error) {
	stmt.log("fetch-all")
	rows := make([]Row, 0, len(stmt.Rows)-stmt.fetchIdx)
	for stmt.fetchIdx < len(stmt.Rows) {
		row := make(Row, len(stmt.Rows[stmt.fetchIdx]))
		copy(row, stmt.Rows[stmt.fetchIdx])
		rows = append(rows, row)
		stmt.fetchIdx++
	}
	return rows, nil
}

func (stmt *MockStmt) RowsAffected() int64 {
	return stmt.Affected
}

func (stmt *MockStmt) CloseCursor() error {
	stmt.fetchIdx = len(stmt.Rows)
	stmt.log("close-cursor")
	return nil
}

func (stmt *MockStmt) Close() error {
	stmt.closed = true
	stmt.log("stmt-close")
	return nil
}

// MockLob records the two-phase write protocol.
type MockLob struct {
	conn        *MockConn
	ID          string
	Staged      []byte
	TempWritten bool
	Saved       bool
	Freed       bool
	WriteErr    error
	SaveErr     error
	kind        LobKind
}

func (lob *MockLob) Kind() LobKind {
	return lob.kind
}

func (lob *MockLob) Stage(value []byte) {
	lob.Staged = value
	lob.conn.log("lob-stage %s", lob.ID)
}

func (lob *MockLob) WriteTemporary(ctx context.Context) error {
	if lob.WriteErr != nil {
		return lob.WriteErr
	}
	lob.TempWritten = true
	lob.conn.log("lob-write-temp %s", lob.ID)
	return nil
}

func (lob *MockLob) Save(ctx context.Context) error {
	if lob.SaveErr != nil {
		return lob.SaveErr
	}
	lob.Saved = true
	lob.conn.log("lob-save %s", lob.ID)
	return nil
}

func (lob *MockLob) Free() error {
	lob.Freed = true
	lob.conn.log("lob-free %s", lob.ID)
	return nil
}

// MockCursor replays a scripted ref-cursor result set.
type MockCursor struct {
	Cols   []Column
	Rows   []Row
	idx    int
	Closed bool
}

func (cursor *MockCursor) Columns() []Column {
	return cursor.Cols
}

func (cursor *MockCursor) Fetch(ctx context.Context) (Row, error) {
	if cursor.idx >= len(cursor.Rows) {
		return nil, io.EOF
	}
	row := make(Row, len(cursor.Rows[cursor.idx]))
	copy(row, cursor.Rows[cursor.idx])
	cursor.idx++
	return row, nil
}

func (cursor *MockCursor) Close() error {
	cursor.Closed = true
	return nil
}
