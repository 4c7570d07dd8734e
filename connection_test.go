package pdo_oci8

import (
	"context"
	"strings"
	"testing"

	"github.com/nineinchnick/pdo-oci8/oci8"
)

func TestBeginCommitRollback(t *testing.T) {
	ctx := context.Background()
	native := oci8.NewMockConn()
	conn := NewConnection(native, NewConnectionString())
	if conn.InTransaction() {
		t.Error("expecting no transaction on a fresh connection")
	}
	if err := conn.Commit(ctx); err != ErrNotInTransaction {
		t.Errorf("expecting ErrNotInTransaction, got %v", err)
	}
	if err := conn.Rollback(ctx); err != ErrNotInTransaction {
		t.Errorf("expecting ErrNotInTransaction, got %v", err)
	}
	if err := conn.BeginTransaction(ctx); err != nil {
		t.Errorf("transaction can't be started: %s", err)
		return
	}
	if !conn.InTransaction() || !native.InTx {
		t.Error("expecting the transaction open on both handles")
	}
	if err := conn.BeginTransaction(ctx); err != ErrInTransaction {
		t.Errorf("expecting ErrInTransaction, got %v", err)
	}
	if err := conn.Commit(ctx); err != nil {
		t.Errorf("transaction can't be committed: %s", err)
		return
	}
	if conn.InTransaction() || native.Commits != 1 {
		t.Errorf("expecting one commit, got %d", native.Commits)
	}
	if err := conn.BeginTransaction(ctx); err != nil {
		t.Errorf("transaction can't be restarted: %s", err)
		return
	}
	if err := conn.Rollback(ctx); err != nil {
		t.Errorf("transaction can't be rolled back: %s", err)
		return
	}
	if conn.InTransaction() || native.Rollbacks != 1 {
		t.Errorf("expecting one rollback, got %d", native.Rollbacks)
	}
}

func TestConnectionCloseRollsBack(t *testing.T) {
	ctx := context.Background()
	native := oci8.NewMockConn()
	conn := NewConnection(native, NewConnectionString())
	if err := conn.BeginTransaction(ctx); err != nil {
		t.Errorf("transaction can't be started: %s", err)
		return
	}
	if err := conn.Close(); err != nil {
		t.Errorf("connection can't be closed: %s", err)
		return
	}
	if native.Rollbacks != 1 {
		t.Errorf("expecting the open transaction rolled back, got %d", native.Rollbacks)
	}
	if !native.Closed {
		t.Error("expecting the native session closed")
	}
	if err := conn.Close(); err != nil {
		t.Errorf("expecting close idempotent, got %v", err)
	}
	if err := conn.Ping(ctx); err != ErrConnClosed {
		t.Errorf("expecting ErrConnClosed, got %v", err)
	}
	if _, err := conn.Prepare(ctx, "SELECT 1 FROM dual"); err != ErrConnClosed {
		t.Errorf("expecting ErrConnClosed, got %v", err)
	}
	if err := conn.BeginTransaction(ctx); err != ErrConnClosed {
		t.Errorf("expecting ErrConnClosed, got %v", err)
	}
	if err := conn.SetAttribute(AttrErrMode, ErrModeException); err != ErrConnClosed {
		t.Errorf("expecting ErrConnClosed, got %v", err)
	}
	if _, err := conn.GetAttribute(ctx, AttrErrMode); err != ErrConnClosed {
		t.Errorf("expecting ErrConnClosed, got %v", err)
	}
}

func TestAttributeDefaults(t *testing.T) {
	ctx := context.Background()
	native := oci8.NewMockConn()
	conn := NewConnection(native, NewConnectionString())
	defaults := []struct {
		name string
		attr Attr
		want interface{}
	}{
		{"autocommit", AttrAutocommit, true},
		{"errmode", AttrErrMode, ErrModeSilent},
		{"case", AttrCase, CaseNatural},
		{"fetch mode", AttrDefaultFetchMode, FetchBoth},
		{"prefetch", AttrPrefetch, 0},
		{"cache size", AttrStmtCacheSize, defaultStmtCacheSize},
		{"driver name", AttrDriverName, "oci8"},
		{"client version", AttrClientVersion, "1.1.0"},
		{"server version", AttrServerVersion, "Oracle Database 19c Mock Edition"},
	}
	for _, tt := range defaults {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conn.GetAttribute(ctx, tt.attr)
			if err != nil {
				t.Errorf("attribute can't be read: %s", err)
				return
			}
			if got != tt.want {
				t.Errorf("expecting %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSetAttribute(t *testing.T) {
	ctx := context.Background()
	native := oci8.NewMockConn()
	conn := NewConnection(native, NewConnectionString())
	roundtrips := []struct {
		name  string
		attr  Attr
		value interface{}
		want  interface{}
	}{
		{"autocommit off", AttrAutocommit, 0, false},
		{"autocommit bool", AttrAutocommit, true, true},
		{"errmode", AttrErrMode, ErrModeException, ErrModeException},
		{"errmode int", AttrErrMode, 1, ErrModeWarning},
		{"case", AttrCase, CaseLower, CaseLower},
		{"fetch mode", AttrDefaultFetchMode, FetchAssoc, FetchAssoc},
		{"prefetch", AttrPrefetch, 500, 500},
		{"cache size", AttrStmtCacheSize, 7, 7},
	}
	for _, tt := range roundtrips {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.SetAttribute(tt.attr, tt.value); err != nil {
				t.Errorf("attribute can't be set: %s", err)
				return
			}
			got, err := conn.GetAttribute(ctx, tt.attr)
			if err != nil {
				t.Errorf("attribute can't be read back: %s", err)
				return
			}
			if got != tt.want {
				t.Errorf("expecting %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSetAttributeRejectsBadValues(t *testing.T) {
	native := oci8.NewMockConn()
	conn := NewConnection(native, NewConnectionString())
	rejected := []struct {
		name  string
		attr  Attr
		value interface{}
	}{
		{"errmode out of range", AttrErrMode, 9},
		{"case out of range", AttrCase, -1},
		{"fetch mode out of range", AttrDefaultFetchMode, 99},
		{"autocommit string", AttrAutocommit, "x"},
		{"negative prefetch", AttrPrefetch, -1},
		{"negative cache", AttrStmtCacheSize, -5},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			err := conn.SetAttribute(tt.attr, tt.value)
			if err == nil {
				t.Error("expecting the value rejected")
				return
			}
			if !strings.Contains(err.Error(), "unsupported value") {
				t.Errorf("expecting an unsupported value error, got %v", err)
			}
		})
	}
}

func TestReadOnlyAndUnknownAttributes(t *testing.T) {
	ctx := context.Background()
	native := oci8.NewMockConn()
	conn := NewConnection(native, NewConnectionString())
	for _, attr := range []Attr{AttrDriverName, AttrServerVersion, AttrClientVersion} {
		err := conn.SetAttribute(attr, "other")
		if err == nil || !strings.Contains(err.Error(), "read only") {
			t.Errorf("expecting attribute %d read only, got %v", attr, err)
		}
	}
	if err := conn.SetAttribute(Attr(999), 1); err == nil || !strings.Contains(err.Error(), "unknown attribute") {
		t.Errorf("expecting an unknown attribute error, got %v", err)
	}
	if _, err := conn.GetAttribute(ctx, Attr(999)); err == nil || !strings.Contains(err.Error(), "unknown attribute") {
		t.Errorf("expecting an unknown attribute error, got %v", err)
	}
}

func TestQuote(t *testing.T) {
	conn := NewConnection(oci8.NewMockConn(), NewConnectionString())
	if got := conn.Quote("It's"); got != "'It''s'" {
		t.Errorf("expecting the quotes doubled, got %s", got)
	}
	if got := conn.Quote(""); got != "''" {
		t.Errorf("expecting an empty literal, got %s", got)
	}
}

func TestLastInsertID(t *testing.T) {
	conn := NewConnection(oci8.NewMockConn(), NewConnectionString())
	if _, err := conn.LastInsertID(); err != ErrNoLastInsertID {
		t.Errorf("expecting ErrNoLastInsertID, got %v", err)
	}
}

func TestPing(t *testing.T) {
	native := oci8.NewMockConn()
	conn := NewConnection(native, NewConnectionString())
	if err := conn.Ping(context.Background()); err != nil {
		t.Errorf("session can't be pinged: %s", err)
		return
	}
	if journalIndex(native.Journal, "ping") == -1 {
		t.Errorf("expecting a ping in the journal %v", native.Journal)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "no-such-engine", "oci:dbname=//db:1521/svc", "scott", "tiger")
	if err == nil || !strings.Contains(err.Error(), "unknown driver") {
		t.Errorf("expecting an unknown driver error, got %v", err)
	}
}

type captureDriver struct {
	config *oci8.Config
	conn   *oci8.MockConn
}

func (d *captureDriver) Open(ctx context.Context, config *oci8.Config) (oci8.Conn, error) {
	d.config = config
	return d.conn, nil
}

func TestOpenAppliesConnectionString(t *testing.T) {
	ctx := context.Background()
	driver := &captureDriver{conn: oci8.NewMockConn()}
	Register("capture", driver)
	dsn := "oci:dbname=//dbhost:1599/orcl;stmtCacheSize=7;prefetchRows=9"
	conn, err := Open(ctx, "capture", dsn, "scott", "tiger")
	if err != nil {
		t.Errorf("connection can't be opened: %s", err)
		return
	}
	defer conn.Close()
	if driver.config == nil {
		t.Error("expecting the config passed to the engine")
		return
	}
	if driver.config.Host != "dbhost" || driver.config.Port != 1599 || driver.config.ServiceName != "orcl" {
		t.Errorf("expecting the connect target forwarded, got %+v", driver.config)
	}
	if driver.config.UserID != "scott" || driver.config.Password != "tiger" {
		t.Errorf("expecting the credentials forwarded, got %+v", driver.config)
	}
	if driver.config.PrefetchRows != 9 {
		t.Errorf("expecting prefetch 9, got %d", driver.config.PrefetchRows)
	}
	size, err := conn.GetAttribute(ctx, AttrStmtCacheSize)
	if err != nil || size != 7 {
		t.Errorf("expecting cache size 7, got %v (%v)", size, err)
	}
	prefetch, err := conn.GetAttribute(ctx, AttrPrefetch)
	if err != nil || prefetch != 9 {
		t.Errorf("expecting prefetch 9, got %v (%v)", prefetch, err)
	}
}

func TestOpenBadDSN(t *testing.T) {
	driver := &captureDriver{conn: oci8.NewMockConn()}
	Register("capture-bad-dsn", driver)
	_, err := Open(context.Background(), "capture-bad-dsn", "oci:charset=UTF8", "scott", "tiger")
	if err == nil || !strings.Contains(err.Error(), "dbname is missing") {
		t.Errorf("expecting the DSN rejected, got %v", err)
	}
	if driver.config != nil {
		t.Error("expecting the engine untouched")
	}
}
