package goora

import (
	"context"
	"database/sql"

	"github.com/nineinchnick/pdo-oci8/oci8"
)

// Conn pins one database/sql connection so every statement, transaction and
// temporary lob lives on the same server session. go-ora commits each
// statement on success while no driver transaction is open and suppresses
// the commit inside one, which maps directly onto the execute modes: a
// default-mode execute outside an explicit transaction opens an implicit
// sql.Tx to hold the work pending, and a commit-on-success execute runs bare.
type Conn struct {
	db       *sql.DB
	session  *sql.Conn
	tx       *sql.Tx
	implicit bool
}

var _ oci8.Conn = (*Conn)(nil)

// Prepare allocates a statement handle on the pinned session. go-ora
// prepares locally, so malformed statement text surfaces at execute.
func (conn *Conn) Prepare(ctx context.Context, query string) (oci8.Stmt, error) {
	prepared, err := conn.session.PrepareContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	return newStmt(conn, query, prepared), nil
}

func (conn *Conn) AllocLob(kind oci8.LobKind) (oci8.Lob, error) {
	return &Lob{kind: kind}, nil
}

// Begin promotes the session into an explicit transaction. Pending work that
// already opened the implicit transaction is adopted rather than nested; the
// server keeps a single transaction per session either way.
func (conn *Conn) Begin(ctx context.Context) error {
	if conn.tx != nil {
		conn.implicit = false
		return nil
	}
	tx, err := conn.session.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	conn.tx = tx
	conn.implicit = false
	return nil
}

func (conn *Conn) Commit(ctx context.Context) error {
	if conn.tx == nil {
		return nil
	}
	tx := conn.tx
	conn.tx = nil
	conn.implicit = false
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

func (conn *Conn) Rollback(ctx context.Context) error {
	if conn.tx == nil {
		return nil
	}
	tx := conn.tx
	conn.tx = nil
	conn.implicit = false
	if err := tx.Rollback(); err != nil {
		return mapError(err)
	}
	return nil
}

// ensureTx opens the implicit transaction that keeps default-mode work
// uncommitted until the caller commits, rolls back or disconnects.
func (conn *Conn) ensureTx(ctx context.Context) error {
	if conn.tx != nil {
		return nil
	}
	tx, err := conn.session.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	conn.tx = tx
	conn.implicit = true
	return nil
}

// settleImplicit commits the implicit transaction so a commit-on-success
// execute regains the per-statement commit. Explicit transactions are left
// alone.
func (conn *Conn) settleImplicit(ctx context.Context) error {
	if conn.tx == nil || !conn.implicit {
		return nil
	}
	return conn.Commit(ctx)
}

func (conn *Conn) Ping(ctx context.Context) error {
	if err := conn.session.PingContext(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (conn *Conn) Version(ctx context.Context) (string, error) {
	var banner string
	row := conn.session.QueryRowContext(ctx, "SELECT BANNER FROM V$VERSION WHERE ROWNUM = 1")
	if err := row.Scan(&banner); err != nil {
		return "", mapError(err)
	}
	return banner, nil
}

func (conn *Conn) Close() error {
	if conn.tx != nil {
		_ = conn.tx.Rollback()
		conn.tx = nil
		conn.implicit = false
	}
	err := conn.session.Close()
	if dbErr := conn.db.Close(); err == nil {
		err = dbErr
	}
	if err != nil {
		return mapError(err)
	}
	return nil
}
