package goora

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	go_ora "github.com/sijms/go-ora/v2"

	"github.com/nineinchnick/pdo-oci8/oci8"
)

// Stmt is a prepared statement over the pinned session. Binds accumulate by
// name until execute; rebinding a name replaces the previous value.
type Stmt struct {
	conn     *Conn
	query    string
	prepared *sql.Stmt
	binds    map[string]*bind
	order    []string
	rows     *sql.Rows
	cols     []oci8.Column
	affected int64
	fetched  int64
}

var (
	_ oci8.Stmt        = (*Stmt)(nil)
	_ oci8.BulkFetcher = (*Stmt)(nil)
)

type bind struct {
	name    string
	value   driver.Value
	values  []driver.Value
	code    oci8.TypeCode
	size    int
	isArray bool
	lob     *Lob
	out     *driver.Value
	holder  interface{}
	cursor  *Cursor
}

func newStmt(conn *Conn, query string, prepared *sql.Stmt) *Stmt {
	return &Stmt{
		conn:     conn,
		query:    query,
		prepared: prepared,
		binds:    make(map[string]*bind),
	}
}

func (stmt *Stmt) store(b *bind) {
	if _, ok := stmt.binds[b.name]; !ok {
		stmt.order = append(stmt.order, b.name)
	}
	stmt.binds[b.name] = b
}

func (stmt *Stmt) BindName(name string, value driver.Value, code oci8.TypeCode, size int) error {
	stmt.store(&bind{name: name, value: value, code: code, size: size})
	return nil
}

func (stmt *Stmt) BindArray(name string, values []driver.Value, code oci8.TypeCode, size int) error {
	stmt.store(&bind{name: name, values: values, code: code, size: size, isArray: true})
	return nil
}

func (stmt *Stmt) BindLob(name string, lob oci8.Lob) error {
	local, ok := lob.(*Lob)
	if !ok {
		return errors.New("lob descriptor belongs to another engine")
	}
	stmt.store(&bind{name: name, lob: local})
	return nil
}

func (stmt *Stmt) BindOut(name string, dest *driver.Value, code oci8.TypeCode, size int) error {
	stmt.store(&bind{name: name, out: dest, code: code, size: size})
	return nil
}

func (stmt *Stmt) BindCursor(name string) (oci8.Cursor, error) {
	cursor := &Cursor{}
	stmt.store(&bind{name: name, cursor: cursor})
	return cursor, nil
}

// Execute runs the statement with the accumulated binds. Default mode makes
// sure a transaction holds the work pending; commit-on-success first settles
// any implicit transaction so go-ora's per-statement commit applies again.
func (stmt *Stmt) Execute(ctx context.Context, mode oci8.ExecMode) error {
	if stmt.prepared == nil {
		return errors.New("statement handle is closed")
	}
	if err := stmt.CloseCursor(); err != nil {
		return err
	}
	if mode&oci8.ExecCommitOnSuccess != 0 {
		if err := stmt.conn.settleImplicit(ctx); err != nil {
			return err
		}
	} else if err := stmt.conn.ensureTx(ctx); err != nil {
		return err
	}
	args := stmt.buildArgs()
	stmt.affected = 0
	if isQueryText(stmt.query) {
		rows, err := stmt.prepared.QueryContext(ctx, args...)
		if err != nil {
			return mapError(err)
		}
		stmt.rows = rows
		return nil
	}
	result, err := stmt.prepared.ExecContext(ctx, args...)
	if err != nil {
		return mapError(err)
	}
	if affected, affErr := result.RowsAffected(); affErr == nil {
		stmt.affected = affected
	}
	return stmt.completeBinds()
}

func (stmt *Stmt) buildArgs() []interface{} {
	args := make([]interface{}, 0, len(stmt.order))
	for _, name := range stmt.order {
		args = append(args, sql.Named(name, stmt.binds[name].arg()))
	}
	return args
}

// completeBinds copies out-bind results back into the caller's slots and
// opens the cursors produced by ref cursor binds.
func (stmt *Stmt) completeBinds() error {
	for _, name := range stmt.order {
		b := stmt.binds[name]
		switch {
		case b.cursor != nil:
			if err := b.cursor.open(); err != nil {
				return err
			}
		case b.out != nil:
			*b.out = unholder(b.holder)
		}
	}
	return nil
}

func (stmt *Stmt) Columns() []oci8.Column {
	if stmt.cols != nil || stmt.rows == nil {
		return stmt.cols
	}
	types, err := stmt.rows.ColumnTypes()
	if err != nil {
		return nil
	}
	cols := make([]oci8.Column, len(types))
	for i, columnType := range types {
		declType := columnType.DatabaseTypeName()
		length, _ := columnType.Length()
		precision, scale, _ := columnType.DecimalSize()
		nullable, _ := columnType.Nullable()
		cols[i] = oci8.Column{
			Name:      columnType.Name(),
			Type:      typeCodeOf(declType),
			DeclType:  declType,
			Length:    int(length),
			Precision: int(precision),
			Scale:     int(scale),
			Nullable:  nullable,
		}
	}
	stmt.cols = cols
	return cols
}

func (stmt *Stmt) Fetch(ctx context.Context) (oci8.Row, error) {
	if stmt.rows == nil {
		return nil, io.EOF
	}
	if !stmt.rows.Next() {
		if err := stmt.rows.Err(); err != nil {
			return nil, mapError(err)
		}
		return nil, io.EOF
	}
	count := len(stmt.Columns())
	raw := make([]interface{}, count)
	dest := make([]interface{}, count)
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := stmt.rows.Scan(dest...); err != nil {
		return nil, mapError(err)
	}
	row := make(oci8.Row, count)
	for i, value := range raw {
		row[i] = ownValue(value)
	}
	stmt.fetched++
	return row, nil
}

// FetchAll drains the remaining rows in one pass.
func (stmt *Stmt) FetchAll(ctx context.Context) ([]oci8.Row, error) {
	rows := make([]oci8.Row, 0, 16)
	for {
		row, err := stmt.Fetch(ctx)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// RowsAffected reports fetched rows for queries and modified rows otherwise.
func (stmt *Stmt) RowsAffected() int64 {
	if stmt.rows != nil || stmt.fetched > 0 {
		return stmt.fetched
	}
	return stmt.affected
}

func (stmt *Stmt) CloseCursor() error {
	stmt.cols = nil
	stmt.fetched = 0
	if stmt.rows == nil {
		return nil
	}
	rows := stmt.rows
	stmt.rows = nil
	if err := rows.Close(); err != nil {
		return mapError(err)
	}
	return nil
}

func (stmt *Stmt) Close() error {
	err := stmt.CloseCursor()
	if stmt.prepared != nil {
		prepared := stmt.prepared
		stmt.prepared = nil
		if closeErr := prepared.Close(); closeErr != nil && err == nil {
			err = mapError(closeErr)
		}
	}
	return err
}

// arg converts one bind into the value handed to database/sql.
func (b *bind) arg() interface{} {
	switch {
	case b.cursor != nil:
		return go_ora.Out{Dest: &b.cursor.ref}
	case b.out != nil:
		b.holder = holderFor(b.code, *b.out)
		return go_ora.Out{Dest: b.holder, Size: b.size, In: true}
	case b.lob != nil:
		payload, staged := b.lob.payload()
		valid := staged && payload != nil
		if b.lob.Kind() == oci8.LobChar {
			return go_ora.Clob{String: string(payload), Valid: valid}
		}
		return go_ora.Blob{Data: payload, Valid: valid}
	case b.isArray:
		return arrayArg(b.values, b.code)
	default:
		return b.value
	}
}

// arrayArg lowers a driver value slice into the typed slice go-ora expects
// for PL/SQL table binds.
func arrayArg(values []driver.Value, code oci8.TypeCode) interface{} {
	switch code {
	case oci8.Integer:
		arr := make([]int64, len(values))
		for i, value := range values {
			arr[i] = asInt64(value)
		}
		return arr
	case oci8.Float, oci8.Number:
		arr := make([]float64, len(values))
		for i, value := range values {
			arr[i] = asFloat64(value)
		}
		return arr
	case oci8.Date, oci8.Timestamp:
		arr := make([]time.Time, len(values))
		for i, value := range values {
			if t, ok := value.(time.Time); ok {
				arr[i] = t
			}
		}
		return arr
	case oci8.Raw, oci8.LongRaw:
		arr := make([][]byte, len(values))
		for i, value := range values {
			arr[i] = asBytes(value)
		}
		return arr
	default:
		arr := make([]string, len(values))
		for i, value := range values {
			arr[i] = asString(value)
		}
		return arr
	}
}

// holderFor picks a scan destination for an out bind, seeded with the
// caller's current value so in/out parameters reach the server.
func holderFor(code oci8.TypeCode, initial driver.Value) interface{} {
	switch code {
	case oci8.Integer:
		holder := new(sql.NullInt64)
		if initial != nil {
			holder.Int64, holder.Valid = asInt64(initial), true
		}
		return holder
	case oci8.Float, oci8.Number:
		holder := new(sql.NullFloat64)
		if initial != nil {
			holder.Float64, holder.Valid = asFloat64(initial), true
		}
		return holder
	case oci8.Date, oci8.Timestamp:
		holder := new(sql.NullTime)
		if t, ok := initial.(time.Time); ok {
			holder.Time, holder.Valid = t, true
		}
		return holder
	case oci8.Clob:
		holder := new(go_ora.Clob)
		if initial != nil {
			holder.String, holder.Valid = asString(initial), true
		}
		return holder
	case oci8.Blob:
		holder := new(go_ora.Blob)
		if initial != nil {
			holder.Data, holder.Valid = asBytes(initial), true
		}
		return holder
	default:
		holder := new(sql.NullString)
		if initial != nil {
			holder.String, holder.Valid = asString(initial), true
		}
		return holder
	}
}

func unholder(holder interface{}) driver.Value {
	switch h := holder.(type) {
	case *sql.NullInt64:
		if h.Valid {
			return h.Int64
		}
	case *sql.NullFloat64:
		if h.Valid {
			return h.Float64
		}
	case *sql.NullTime:
		if h.Valid {
			return h.Time
		}
	case *sql.NullString:
		if h.Valid {
			return h.String
		}
	case *go_ora.Clob:
		if h.Valid {
			return h.String
		}
	case *go_ora.Blob:
		if h.Valid {
			return h.Data
		}
	}
	return nil
}

// isQueryText reports whether the statement produces a result set directly.
func isQueryText(query string) bool {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH":
		return true
	}
	return false
}

// typeCodeOf maps go-ora column type names onto the native external codes.
func typeCodeOf(declType string) oci8.TypeCode {
	switch declType {
	case "CHAR", "CHARZ":
		return oci8.AFC
	case "NCHAR", "VARCHAR", "NullStr", "OCIString", "LongVarChar":
		return oci8.Char
	case "NUMBER", "VarNum":
		return oci8.Number
	case "SB1", "SB2", "SB4", "UINT":
		return oci8.Integer
	case "FLOAT", "BFloat", "BDouble", "IBFloat", "IBDouble":
		return oci8.Float
	case "LONG":
		return oci8.Long
	case "ROWID", "UROWID":
		return oci8.RowID
	case "DATE", "OCIDate":
		return oci8.Date
	case "RAW", "VarRaw":
		return oci8.Raw
	case "LongRaw", "LongVarRaw":
		return oci8.LongRaw
	case "REFCURSOR":
		return oci8.RefCursor
	case "XMLType", "OCIXMLType", "OCIRef":
		return oci8.NamedType
	case "OCIClobLocator":
		return oci8.Clob
	case "OCIBlobLocator":
		return oci8.Blob
	case "OCIFileLocator":
		return oci8.BFile
	case "ResultSet":
		return oci8.ResultSet
	}
	if strings.HasPrefix(declType, "TimeStamp") || strings.HasPrefix(declType, "TIMESTAMP") || strings.HasPrefix(declType, "Time") {
		return oci8.Timestamp
	}
	return oci8.Char
}

// ownValue copies byte slices off driver-owned buffers.
func ownValue(value driver.Value) driver.Value {
	if b, ok := value.([]byte); ok {
		owned := make([]byte, len(b))
		copy(owned, b)
		return owned
	}
	return value
}

func asInt64(value driver.Value) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	}
	return 0
}

func asFloat64(value driver.Value) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	}
	return 0
}

func asString(value driver.Value) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	}
	return fmt.Sprint(value)
}

func asBytes(value driver.Value) []byte {
	switch v := value.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	return nil
}

// Cursor adapts a ref cursor produced by an out bind. It becomes readable
// after the owning statement executes.
type Cursor struct {
	ref  go_ora.RefCursor
	ds   *go_ora.DataSet
	cols []oci8.Column
}

var _ oci8.Cursor = (*Cursor)(nil)

func (cursor *Cursor) open() error {
	ds, err := cursor.ref.Query()
	if err != nil {
		return mapError(err)
	}
	cursor.ds = ds
	return nil
}

func (cursor *Cursor) Columns() []oci8.Column {
	if cursor.cols != nil || cursor.ds == nil {
		return cursor.cols
	}
	names := cursor.ds.Columns()
	cols := make([]oci8.Column, len(names))
	for i, name := range names {
		declType := cursor.ds.ColumnTypeDatabaseTypeName(i)
		length, _ := cursor.ds.ColumnTypeLength(i)
		nullable, _ := cursor.ds.ColumnTypeNullable(i)
		cols[i] = oci8.Column{
			Name:     name,
			Type:     typeCodeOf(declType),
			DeclType: declType,
			Length:   int(length),
			Nullable: nullable,
		}
	}
	cursor.cols = cols
	return cols
}

func (cursor *Cursor) Fetch(ctx context.Context) (oci8.Row, error) {
	if cursor.ds == nil {
		return nil, io.EOF
	}
	dest := make([]driver.Value, len(cursor.ds.Columns()))
	if err := cursor.ds.Next(dest); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, mapError(err)
	}
	row := make(oci8.Row, len(dest))
	for i, value := range dest {
		row[i] = ownValue(value)
	}
	return row, nil
}

func (cursor *Cursor) Close() error {
	if cursor.ds == nil {
		return nil
	}
	ds := cursor.ds
	cursor.ds = nil
	if err := ds.Close(); err != nil {
		return mapError(err)
	}
	return nil
}
