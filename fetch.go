package pdo_oci8

import (
	"context"
	"database/sql/driver"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/nineinchnick/pdo-oci8/oci8"
)

// FetchMode selects the shape a fetched row materializes into. The values
// match the PDO::FETCH_* constants.
type FetchMode int

const (
	FetchDefault FetchMode = 0
	FetchLazy    FetchMode = 1
	FetchAssoc   FetchMode = 2
	FetchNum     FetchMode = 3
	FetchBoth    FetchMode = 4
	FetchObj     FetchMode = 5
	FetchBound   FetchMode = 6
	FetchColumn  FetchMode = 7
	FetchClass   FetchMode = 8
	FetchInto    FetchMode = 9
)

// Orientation is the cursor movement requested by a fetch. Only OriNext is
// supported; the cursor is forward-only.
type Orientation int

const (
	OriNext Orientation = iota
	OriPrior
	OriFirst
	OriLast
	OriAbs
	OriRel
)

// FieldSetter assigns one column value onto a class-mode target. The column
// name arrives already case-folded.
type FieldSetter func(target interface{}, column string, value driver.Value) error

// fetchMode is the statement's active mode descriptor. Setting a mode
// replaces the whole descriptor including payloads.
type fetchMode struct {
	tag     FetchMode
	column  int
	factory func() interface{}
	setter  FieldSetter
	into    interface{}
}

// SetFetchMode replaces the active fetch mode. Modes that carry a payload
// have their own setters; requesting them here fails.
func (stmt *Statement) SetFetchMode(mode FetchMode) error {
	if stmt.closed {
		return ErrStmtClosed
	}
	switch mode {
	case FetchClass, FetchInto:
		return ErrModePayload
	case FetchColumn:
		stmt.mode = fetchMode{tag: FetchColumn}
		return nil
	}
	stmt.mode = fetchMode{tag: mode}
	return nil
}

// SetFetchModeColumn makes every fetch return the single 0-based column.
func (stmt *Statement) SetFetchModeColumn(column int) error {
	if stmt.closed {
		return ErrStmtClosed
	}
	if column < 0 {
		return ErrColumnIndex
	}
	stmt.mode = fetchMode{tag: FetchColumn, column: column}
	return nil
}

// SetFetchModeClass makes every fetch build a fresh target from factory and
// assign the row's columns onto it. A nil setter decodes the row into the
// target by field name.
func (stmt *Statement) SetFetchModeClass(factory func() interface{}, setter FieldSetter) error {
	if stmt.closed {
		return ErrStmtClosed
	}
	if factory == nil {
		return ErrModePayload
	}
	stmt.mode = fetchMode{tag: FetchClass, factory: factory, setter: setter}
	return nil
}

// SetFetchModeInto makes every fetch decode the row into the given target,
// returning the same target from each call.
func (stmt *Statement) SetFetchModeInto(target interface{}) error {
	if stmt.closed {
		return ErrStmtClosed
	}
	if target == nil {
		return ErrModePayload
	}
	stmt.mode = fetchMode{tag: FetchInto, into: target}
	return nil
}

// Fetch materializes the next row in the statement's active mode, io.EOF
// when the result set is exhausted.
func (stmt *Statement) Fetch(ctx context.Context) (interface{}, error) {
	return stmt.FetchOriented(ctx, FetchDefault, OriNext, 0)
}

// FetchOriented is Fetch with an explicit mode and cursor movement. Only the
// forward-next orientation with zero offset is accepted.
func (stmt *Statement) FetchOriented(ctx context.Context, mode FetchMode, orientation Orientation, offset int64) (interface{}, error) {
	if stmt.closed {
		return nil, ErrStmtClosed
	}
	if orientation != OriNext || offset != 0 {
		return nil, ErrNoScrollCursor
	}
	descriptor, err := stmt.resolveMode(mode)
	if err != nil {
		return nil, err
	}
	materializer, err := stmt.materializerFor(descriptor)
	if err != nil {
		return nil, err
	}
	row, err := stmt.native.Fetch(ctx)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, stmt.fail(err)
	}
	value, err := materializer.Materialize(Row(row), stmt.columns(), stmt.conn.foldCase)
	if err != nil {
		return nil, err
	}
	if descriptor.tag != FetchClass && descriptor.tag != FetchInto {
		if err = stmt.applyColumnBinds(Row(row)); err != nil {
			return nil, err
		}
	}
	return value, nil
}

// FetchAll drains the remaining rows in the given mode. Payload-carrying
// modes take their payload from SetFetchMode*; the only secondary argument
// accepted here is the column index for FetchColumn.
func (stmt *Statement) FetchAll(ctx context.Context, mode FetchMode, args ...interface{}) ([]interface{}, error) {
	if stmt.closed {
		return nil, ErrStmtClosed
	}
	descriptor, err := stmt.resolveMode(mode)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		if descriptor.tag != FetchColumn {
			return nil, ErrFetchAllArgs
		}
		column, ok := args[0].(int)
		if !ok || len(args) > 1 {
			return nil, ErrFetchAllArgs
		}
		if column < 0 {
			return nil, ErrColumnIndex
		}
		descriptor.column = column
	}
	materializer, err := stmt.materializerFor(descriptor)
	if err != nil {
		return nil, err
	}
	results := make([]interface{}, 0)
	bulk, bulkOK := stmt.native.(oci8.BulkFetcher)
	if bulkOK && descriptor.tag != FetchClass && descriptor.tag != FetchInto && descriptor.tag != FetchObj {
		rows, err := bulk.FetchAll(ctx)
		if err != nil {
			return nil, stmt.fail(err)
		}
		for _, row := range rows {
			value, err := materializer.Materialize(Row(row), stmt.columns(), stmt.conn.foldCase)
			if err != nil {
				return nil, err
			}
			if err = stmt.applyColumnBinds(Row(row)); err != nil {
				return nil, err
			}
			results = append(results, value)
		}
		stmt.tracer().Printf("stmt %s: fetched %d rows", stmt.id, len(results))
		return results, nil
	}
	for {
		row, err := stmt.native.Fetch(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stmt.fail(err)
		}
		value, err := materializer.Materialize(Row(row), stmt.columns(), stmt.conn.foldCase)
		if err != nil {
			return nil, err
		}
		if descriptor.tag != FetchClass && descriptor.tag != FetchInto {
			if err = stmt.applyColumnBinds(Row(row)); err != nil {
				return nil, err
			}
		}
		results = append(results, value)
	}
	stmt.tracer().Printf("stmt %s: fetched %d rows", stmt.id, len(results))
	return results, nil
}

// FetchColumn fetches the next row and returns its single 0-based column,
// io.EOF when no row remains.
func (stmt *Statement) FetchColumn(ctx context.Context, column int) (driver.Value, error) {
	if stmt.closed {
		return nil, ErrStmtClosed
	}
	if column < 0 {
		return nil, ErrColumnIndex
	}
	row, err := stmt.native.Fetch(ctx)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, stmt.fail(err)
	}
	if column >= len(row) {
		return nil, ErrColumnIndex
	}
	if err = stmt.applyColumnBinds(Row(row)); err != nil {
		return nil, err
	}
	return row[column], nil
}

// FetchObject fetches the next row as a name-keyed record, or through the
// given factory when one is supplied.
func (stmt *Statement) FetchObject(ctx context.Context, factory func() interface{}) (interface{}, error) {
	if stmt.closed {
		return nil, ErrStmtClosed
	}
	if factory == nil {
		return stmt.FetchOriented(ctx, FetchObj, OriNext, 0)
	}
	saved := stmt.mode
	if err := stmt.SetFetchModeClass(factory, nil); err != nil {
		return nil, err
	}
	value, err := stmt.FetchOriented(ctx, FetchClass, OriNext, 0)
	stmt.mode = saved
	return value, err
}

// resolveMode folds the requested mode with the statement descriptor and the
// connection default, then validates the result.
func (stmt *Statement) resolveMode(mode FetchMode) (fetchMode, error) {
	descriptor := stmt.mode
	if mode != FetchDefault {
		descriptor = fetchMode{tag: mode, column: stmt.mode.column, factory: stmt.mode.factory, setter: stmt.mode.setter, into: stmt.mode.into}
	}
	if descriptor.tag == FetchDefault {
		descriptor.tag = stmt.conn.defaultFetchMode()
	}
	switch descriptor.tag {
	case FetchAssoc, FetchNum, FetchBoth, FetchColumn:
	case FetchObj:
		if stmt.conn.caseMode() != CaseNatural {
			return fetchMode{}, ErrCaseFoldObject
		}
	case FetchClass:
		if descriptor.factory == nil {
			return fetchMode{}, ErrModePayload
		}
	case FetchInto:
		if descriptor.into == nil {
			return fetchMode{}, ErrModePayload
		}
	default:
		return fetchMode{}, ErrUnimplementedMode
	}
	return descriptor, nil
}

func (stmt *Statement) materializerFor(descriptor fetchMode) (Materializer, error) {
	switch descriptor.tag {
	case FetchNum:
		return tupleMaterializer{}, nil
	case FetchAssoc:
		return assocMaterializer{}, nil
	case FetchBoth:
		return assocMaterializer{indexed: true}, nil
	case FetchObj:
		return assocMaterializer{}, nil
	case FetchColumn:
		return columnMaterializer{column: descriptor.column}, nil
	case FetchClass:
		return &userTypeMaterializer{factory: descriptor.factory, setter: descriptor.setter}, nil
	case FetchInto:
		return &userTypeMaterializer{into: descriptor.into, setter: descriptor.setter}, nil
	}
	return nil, ErrUnimplementedMode
}

// applyColumnBinds refreshes every bound variable from the freshly fetched
// row, in registration order.
func (stmt *Statement) applyColumnBinds(row Row) error {
	for _, bind := range stmt.columnBinds {
		if bind.column > len(row) {
			return ErrColumnIndex
		}
		if err := assignValue(bind.ref, coerce(row[bind.column-1], bind.paramType)); err != nil {
			return err
		}
	}
	return nil
}

// Materializer turns one fetched row into its caller-facing shape.
type Materializer interface {
	Materialize(row Row, cols []oci8.Column, fold func(string) string) (interface{}, error)
}

// tupleMaterializer keeps the row as a positional tuple.
type tupleMaterializer struct{}

func (tupleMaterializer) Materialize(row Row, cols []oci8.Column, fold func(string) string) (interface{}, error) {
	return row, nil
}

// assocMaterializer builds a name-keyed record, optionally doubled with
// "0".."n-1" index keys.
type assocMaterializer struct {
	indexed bool
}

func (m assocMaterializer) Materialize(row Row, cols []oci8.Column, fold func(string) string) (interface{}, error) {
	record := make(Record, len(row)*2)
	for i, value := range row {
		name := strconv.Itoa(i)
		if i < len(cols) {
			name = fold(cols[i].Name)
		}
		record[name] = value
		if m.indexed {
			record[strconv.Itoa(i)] = value
		}
	}
	return record, nil
}

// columnMaterializer extracts one 0-based column from the row.
type columnMaterializer struct {
	column int
}

func (m columnMaterializer) Materialize(row Row, cols []oci8.Column, fold func(string) string) (interface{}, error) {
	if m.column >= len(row) {
		return nil, ErrColumnIndex
	}
	return row[m.column], nil
}

// userTypeMaterializer feeds the case-folded record through a caller-supplied
// field setter, or decodes it into the target by field name when no setter is
// given. A factory builds a fresh target per row; into reuses one target.
type userTypeMaterializer struct {
	factory func() interface{}
	setter  FieldSetter
	into    interface{}
}

func (m *userTypeMaterializer) Materialize(row Row, cols []oci8.Column, fold func(string) string) (interface{}, error) {
	target := m.into
	if m.factory != nil {
		target = m.factory()
	}
	if m.setter != nil {
		for i, value := range row {
			name := strconv.Itoa(i)
			if i < len(cols) {
				name = fold(cols[i].Name)
			}
			if err := m.setter(target, name, value); err != nil {
				return nil, err
			}
		}
		return target, nil
	}
	record := make(map[string]interface{}, len(row))
	for i, value := range row {
		name := strconv.Itoa(i)
		if i < len(cols) {
			name = fold(cols[i].Name)
		}
		if b, ok := value.([]byte); ok {
			record[name] = string(b)
		} else {
			record[name] = value
		}
	}
	return target, decodeRecord(record, target)
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func decodeRecord(record map[string]interface{}, target interface{}) error {
	raw, err := jsonAPI.Marshal(record)
	if err != nil {
		return err
	}
	return jsonAPI.Unmarshal(raw, target)
}
