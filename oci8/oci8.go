// Package oci8 defines the contract between the pdo-oci8 shim and the native
// engine that executes its statements. The shim binds, executes and fetches
// exclusively through these interfaces; the byte-level protocol belongs to the
// engine behind them.
package oci8

import (
	"context"
	"database/sql/driver"
)

// TypeCode is the native external type tag used when binding a value or
// describing a result column.
type TypeCode int

const (
	Char      TypeCode = 1
	Number    TypeCode = 2
	Integer   TypeCode = 3
	Float     TypeCode = 4
	NullStr   TypeCode = 5
	Long      TypeCode = 8
	RowID     TypeCode = 11
	Date      TypeCode = 12
	Raw       TypeCode = 23
	LongRaw   TypeCode = 24
	AFC       TypeCode = 96
	RefCursor TypeCode = 102
	NamedType TypeCode = 108
	Clob      TypeCode = 112
	Blob      TypeCode = 113
	BFile     TypeCode = 114
	ResultSet TypeCode = 116
	Timestamp TypeCode = 187
)

func (code TypeCode) String() string {
	switch code {
	case Char:
		return "CHAR"
	case Number:
		return "NUMBER"
	case Integer:
		return "INTEGER"
	case Float:
		return "FLOAT"
	case NullStr:
		return "STRING"
	case Long:
		return "LONG"
	case RowID:
		return "ROWID"
	case Date:
		return "DATE"
	case Raw:
		return "RAW"
	case LongRaw:
		return "LONG RAW"
	case AFC:
		return "CHAR"
	case RefCursor:
		return "REF CURSOR"
	case NamedType:
		return "NAMED TYPE"
	case Clob:
		return "CLOB"
	case Blob:
		return "BLOB"
	case BFile:
		return "BFILE"
	case ResultSet:
		return "RESULT SET"
	case Timestamp:
		return "TIMESTAMP"
	}
	return "UNKNOWN"
}

// ExecMode carries the execute-time flags. ExecDefault leaves the current
// transaction open; ExecCommitOnSuccess commits the statement's effects when
// the execute call succeeds.
type ExecMode int

const (
	ExecDefault         ExecMode = 0
	ExecDescribeOnly    ExecMode = 0x10
	ExecCommitOnSuccess ExecMode = 0x20
)

// LobKind selects between character and binary large objects.
type LobKind int

const (
	LobChar   LobKind = 1
	LobBinary LobKind = 2
)

func (kind LobKind) String() string {
	if kind == LobChar {
		return "clob"
	}
	return "blob"
}

// Row is one fetched row in driver value form.
type Row []driver.Value

// Column describes one result column after execute.
type Column struct {
	Name      string
	Type      TypeCode
	DeclType  string
	Length    int
	Precision int
	Scale     int
	Nullable  bool
}

// Config is the engine-independent connection description produced by the
// DSN parser.
type Config struct {
	Host         string
	Port         int
	ServiceName  string
	SID          string
	UserID       string
	Password     string
	PrefetchRows int
	Options      map[string]string
}

// Driver opens native connections.
type Driver interface {
	Open(ctx context.Context, config *Config) (Conn, error)
}

// Conn is one native session. It is not safe for concurrent use; callers
// serialize access externally.
type Conn interface {
	Prepare(ctx context.Context, query string) (Stmt, error)
	// AllocLob allocates an unattached large-object descriptor. The caller
	// owns it until Free.
	AllocLob(kind LobKind) (Lob, error)
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Ping(ctx context.Context) error
	Version(ctx context.Context) (string, error)
	Close() error
}

// Stmt is one prepared statement. Bind calls accumulate until Execute;
// Fetch walks the produced rows forward only and reports io.EOF at the end.
type Stmt interface {
	BindName(name string, value driver.Value, code TypeCode, size int) error
	BindArray(name string, values []driver.Value, code TypeCode, size int) error
	BindLob(name string, lob Lob) error
	BindOut(name string, dest *driver.Value, code TypeCode, size int) error
	BindCursor(name string) (Cursor, error)
	Execute(ctx context.Context, mode ExecMode) error
	Columns() []Column
	Fetch(ctx context.Context) (Row, error)
	RowsAffected() int64
	// CloseCursor releases the current result set and leaves the statement
	// ready for another Execute.
	CloseCursor() error
	Close() error
}

// BulkFetcher is implemented by statements that can drain the remaining rows
// in one native call. Discovered by type assertion.
type BulkFetcher interface {
	FetchAll(ctx context.Context) ([]Row, error)
}

// Cursor is a result set returned through a ref-cursor bind. It becomes
// readable after the owning statement executes.
type Cursor interface {
	Columns() []Column
	Fetch(ctx context.Context) (Row, error)
	Close() error
}

// Lob is a large-object descriptor. Stage captures the caller's value on the
// descriptor at bind time; WriteTemporary transfers it into a temporary lob
// before execute and Save persists it through the locator after execute.
type Lob interface {
	Kind() LobKind
	Stage(value []byte)
	WriteTemporary(ctx context.Context) error
	Save(ctx context.Context) error
	Free() error
}
