package pdo_oci8

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nineinchnick/pdo-oci8/oci8"
	"github.com/nineinchnick/pdo-oci8/trace"
)

type ConnectionState int

const (
	Closed ConnectionState = 0
	Opened ConnectionState = 1
)

// Attr identifies a connection attribute. The values match the PDO::ATTR_*
// constants; the statement cache size sits in the driver-specific range.
type Attr int

const (
	AttrAutocommit       Attr = 0
	AttrPrefetch         Attr = 1
	AttrErrMode          Attr = 3
	AttrServerVersion    Attr = 4
	AttrClientVersion    Attr = 5
	AttrCase             Attr = 8
	AttrDriverName       Attr = 16
	AttrDefaultFetchMode Attr = 19
	AttrStmtCacheSize    Attr = 1000
)

// ErrMode selects what happens on top of recording a native failure: nothing,
// a tracer warning, or wrapping the returned error with the full status line.
type ErrMode int

const (
	ErrModeSilent    ErrMode = 0
	ErrModeWarning   ErrMode = 1
	ErrModeException ErrMode = 2
)

// CaseMode folds result column names before they become record keys.
type CaseMode int

const (
	CaseNatural CaseMode = 0
	CaseUpper   CaseMode = 1
	CaseLower   CaseMode = 2
)

const (
	driverName    = "oci8"
	clientVersion = "1.1.0"
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]oci8.Driver)
)

// Register makes a native driver available to Open under the given name.
// Engines register themselves from an init function, like database/sql
// drivers do.
func Register(name string, driver oci8.Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if driver == nil {
		panic("pdo_oci8: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("pdo_oci8: Register called twice for driver " + name)
	}
	drivers[name] = driver
}

func lookupDriver(name string) (oci8.Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	driver, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("unknown driver %q (forgotten import?)", name)
	}
	return driver, nil
}

// Connection is one database session plus the attribute set that shapes how
// its statements bind, fetch and report errors. Not safe for concurrent use.
type Connection struct {
	State ConnectionState

	native oci8.Conn
	conStr *ConnectionString
	cache  *stmtCache
	trc    trace.Tracer
	errors errorState
	inTx   bool

	autoCommit   bool
	errMode      ErrMode
	columnCase   CaseMode
	fetchDefault FetchMode
	prefetch     int
}

// Open dials a new session for a PDO-OCI DSN of the form
// "oci:dbname=//host:port/service;charset=UTF8" (or a bare
// "oci:dbname=alias") through the named registered driver.
func Open(ctx context.Context, driverName, dsn, username, password string) (*Connection, error) {
	driver, err := lookupDriver(driverName)
	if err != nil {
		return nil, err
	}
	conStr, err := ParseDSN(dsn, username, password)
	if err != nil {
		return nil, err
	}
	native, err := driver.Open(ctx, conStr.config())
	if err != nil {
		return nil, err
	}
	conn := NewConnection(native, conStr)
	conn.prefetch = conStr.PrefetchRows
	conn.cache.resize(conStr.StmtCacheSize)
	return conn, nil
}

// NewConnection wraps an already opened native session. Attributes start at
// their defaults: autocommit on, natural case, silent error mode.
func NewConnection(native oci8.Conn, conStr *ConnectionString) *Connection {
	return &Connection{
		State:      Opened,
		native:     native,
		conStr:     conStr,
		cache:      newStmtCache(defaultStmtCacheSize),
		trc:        trace.NilTracer(),
		autoCommit: true,
	}
}

// SetTracer routes the connection's trace output. The tracer's lifetime stays
// with the caller.
func (conn *Connection) SetTracer(tracer trace.Tracer) {
	if tracer == nil {
		tracer = trace.NilTracer()
	}
	conn.trc = tracer
}

func (conn *Connection) tracer() trace.Tracer {
	return conn.trc
}

// Prepare readies a statement for execution, reusing a cached native handle
// when one is free for the same text.
func (conn *Connection) Prepare(ctx context.Context, query string) (*Statement, error) {
	if conn.State != Opened {
		return nil, ErrConnClosed
	}
	if native, ok := conn.cache.get(query); ok {
		stmt := newStatement(conn, native, query)
		stmt.cached = true
		conn.trc.LogSQL(stmt.id, query)
		return stmt, nil
	}
	native, err := conn.native.Prepare(ctx, query)
	if err != nil {
		return nil, conn.fail(err)
	}
	stmt := newStatement(conn, native, query)
	stmt.cached = conn.cache.enabled()
	conn.trc.LogSQL(stmt.id, query)
	return stmt, nil
}

// BeginTransaction opens an explicit transaction and suspends autocommit
// until Commit or Rollback. Only one transaction is open at a time.
func (conn *Connection) BeginTransaction(ctx context.Context) error {
	if conn.State != Opened {
		return ErrConnClosed
	}
	if conn.inTx {
		return ErrInTransaction
	}
	if err := conn.native.Begin(ctx); err != nil {
		return conn.fail(err)
	}
	conn.inTx = true
	conn.trc.Print("transaction started")
	return nil
}

// Commit ends the open transaction, keeping its effects.
func (conn *Connection) Commit(ctx context.Context) error {
	if conn.State != Opened {
		return ErrConnClosed
	}
	if !conn.inTx {
		return ErrNotInTransaction
	}
	if err := conn.native.Commit(ctx); err != nil {
		return conn.fail(err)
	}
	conn.inTx = false
	conn.trc.Print("transaction committed")
	return nil
}

// Rollback ends the open transaction, discarding its effects.
func (conn *Connection) Rollback(ctx context.Context) error {
	if conn.State != Opened {
		return ErrConnClosed
	}
	if !conn.inTx {
		return ErrNotInTransaction
	}
	if err := conn.native.Rollback(ctx); err != nil {
		return conn.fail(err)
	}
	conn.inTx = false
	conn.trc.Print("transaction rolled back")
	return nil
}

// InTransaction reports whether an explicit transaction is open.
func (conn *Connection) InTransaction() bool {
	return conn.inTx
}

// Autocommit reports the autocommit attribute. An open transaction overrides
// it until the transaction ends.
func (conn *Connection) Autocommit() bool {
	return conn.autoCommit
}

// commitNative commits on the native session outside the explicit
// transaction machinery. The deferred large-object flow uses it after saving.
func (conn *Connection) commitNative(ctx context.Context) error {
	return conn.native.Commit(ctx)
}

func (conn *Connection) allocLob(kind oci8.LobKind) (oci8.Lob, error) {
	if conn.State != Opened {
		return nil, ErrConnClosed
	}
	return conn.native.AllocLob(kind)
}

// Ping verifies the session is still alive.
func (conn *Connection) Ping(ctx context.Context) error {
	if conn.State != Opened {
		return ErrConnClosed
	}
	if err := conn.native.Ping(ctx); err != nil {
		return conn.fail(err)
	}
	return nil
}

// SetAttribute changes one connection attribute. Read-only attributes and
// out-of-range values are rejected.
func (conn *Connection) SetAttribute(attr Attr, value interface{}) error {
	if conn.State != Opened {
		return ErrConnClosed
	}
	n, isInt := attrInt(value)
	switch attr {
	case AttrAutocommit:
		if !isInt {
			return attrValueError(attr, value)
		}
		conn.autoCommit = n != 0
	case AttrErrMode:
		if !isInt || n < int(ErrModeSilent) || n > int(ErrModeException) {
			return attrValueError(attr, value)
		}
		conn.errMode = ErrMode(n)
	case AttrCase:
		if !isInt || n < int(CaseNatural) || n > int(CaseLower) {
			return attrValueError(attr, value)
		}
		conn.columnCase = CaseMode(n)
	case AttrDefaultFetchMode:
		if !isInt || n < int(FetchDefault) || n > int(FetchInto) {
			return attrValueError(attr, value)
		}
		conn.fetchDefault = FetchMode(n)
	case AttrPrefetch:
		if !isInt || n < 0 {
			return attrValueError(attr, value)
		}
		conn.prefetch = n
	case AttrStmtCacheSize:
		if !isInt || n < 0 {
			return attrValueError(attr, value)
		}
		conn.cache.resize(n)
	case AttrDriverName, AttrServerVersion, AttrClientVersion:
		return fmt.Errorf("attribute %d is read only", attr)
	default:
		return fmt.Errorf("unknown attribute %d", attr)
	}
	return nil
}

// GetAttribute reads one connection attribute.
func (conn *Connection) GetAttribute(ctx context.Context, attr Attr) (interface{}, error) {
	if conn.State != Opened {
		return nil, ErrConnClosed
	}
	switch attr {
	case AttrAutocommit:
		return conn.autoCommit, nil
	case AttrErrMode:
		return conn.errMode, nil
	case AttrCase:
		return conn.columnCase, nil
	case AttrDefaultFetchMode:
		return conn.defaultFetchMode(), nil
	case AttrPrefetch:
		return conn.prefetch, nil
	case AttrStmtCacheSize:
		return conn.cache.capacity(), nil
	case AttrDriverName:
		return driverName, nil
	case AttrClientVersion:
		return clientVersion, nil
	case AttrServerVersion:
		version, err := conn.native.Version(ctx)
		if err != nil {
			return nil, conn.fail(err)
		}
		return version, nil
	}
	return nil, fmt.Errorf("unknown attribute %d", attr)
}

func (conn *Connection) caseMode() CaseMode {
	return conn.columnCase
}

func (conn *Connection) defaultFetchMode() FetchMode {
	if conn.fetchDefault == FetchDefault {
		return FetchBoth
	}
	return conn.fetchDefault
}

// foldCase applies the case attribute to a result column name.
func (conn *Connection) foldCase(name string) string {
	switch conn.columnCase {
	case CaseLower:
		return strings.ToLower(name)
	case CaseUpper:
		return strings.ToUpper(name)
	}
	return name
}

// Quote returns the string as a quoted literal with embedded quotes doubled.
func (conn *Connection) Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// LastInsertID is not provided by this driver; sequences and RETURNING
// clauses cover its use cases.
func (conn *Connection) LastInsertID() (int64, error) {
	return 0, ErrNoLastInsertID
}

// ErrorCode reports the two-tier status of the connection: empty when no
// native error is recorded, the generic failure state otherwise.
func (conn *Connection) ErrorCode() string {
	return conn.errors.code()
}

// ErrorInfo returns the detail triple behind ErrorCode.
func (conn *Connection) ErrorInfo() ErrorInfo {
	return conn.errors.info()
}

// fail records a native failure on the connection and applies the error-mode
// policy to the returned error.
func (conn *Connection) fail(err error) error {
	native := liftNative(err)
	conn.errors.record(native)
	return conn.police(native)
}

// police applies the error-mode policy to an already recorded failure.
func (conn *Connection) police(native *oci8.Error) error {
	switch conn.errMode {
	case ErrModeWarning:
		conn.trc.Printf("warning: SQLSTATE[%s]: %d %s", sqlStateGeneral, native.Code, native.Message)
		return native
	case ErrModeException:
		return fmt.Errorf("SQLSTATE[%s]: %w", sqlStateGeneral, native)
	}
	return native
}

// Close rolls back an open transaction, drops the statement cache and closes
// the native session. Close is idempotent.
func (conn *Connection) Close() error {
	if conn.State == Closed {
		return nil
	}
	conn.State = Closed
	conn.cache.closeAll()
	if conn.inTx {
		conn.native.Rollback(context.Background())
		conn.inTx = false
	}
	err := conn.native.Close()
	conn.trc.Print("connection closed")
	return err
}

func attrInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case Attr:
		return int(v), true
	case ErrMode:
		return int(v), true
	case CaseMode:
		return int(v), true
	case FetchMode:
		return int(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func attrValueError(attr Attr, value interface{}) error {
	return fmt.Errorf("attribute %d: unsupported value %v", attr, value)
}
