package pdo_oci8

import (
	"database/sql/driver"

	"github.com/nineinchnick/pdo-oci8/oci8"
)

// Row is one fetched row with columns in select-list order.
type Row []driver.Value

// Record is one fetched row keyed by column name. Keys are folded per the
// connection case mode; the both-mode shape additionally carries "0".."n-1"
// index keys next to the names.
type Record map[string]driver.Value

// ColumnMeta describes one result column of an executed statement.
type ColumnMeta struct {
	Name       string
	NativeType oci8.TypeCode
	DeclType   string
	Length     int
	Precision  int
	Scale      int
	Nullable   bool
}

// RowCount reports the number of rows affected by the last execute. For
// select statements the driver reports the rows fetched so far.
func (stmt *Statement) RowCount() int64 {
	if stmt.closed || stmt.native == nil {
		return 0
	}
	return stmt.native.RowsAffected()
}

// ColumnCount reports the number of result columns, zero before execute.
func (stmt *Statement) ColumnCount() int {
	return len(stmt.columns())
}

// ColumnMeta describes the result column at a 0-based position.
func (stmt *Statement) ColumnMeta(column int) (*ColumnMeta, error) {
	if stmt.closed {
		return nil, ErrStmtClosed
	}
	cols := stmt.columns()
	if column < 0 || column >= len(cols) {
		return nil, ErrColumnIndex
	}
	col := cols[column]
	return &ColumnMeta{
		Name:       stmt.conn.foldCase(col.Name),
		NativeType: col.Type,
		DeclType:   col.DeclType,
		Length:     col.Length,
		Precision:  col.Precision,
		Scale:      col.Scale,
		Nullable:   col.Nullable,
	}, nil
}

func (stmt *Statement) columns() []oci8.Column {
	if stmt.closed || stmt.native == nil {
		return nil
	}
	if stmt.cols == nil {
		stmt.cols = stmt.native.Columns()
	}
	return stmt.cols
}
