package pdo_oci8

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/nineinchnick/pdo-oci8/oci8"
)

// ParamType carries the logical type of a bound parameter. The values match
// the PDO::PARAM_* constants so ports keep their numeric behavior.
type ParamType uint32

const (
	ParamNull   ParamType = 0
	ParamInt    ParamType = 1
	ParamStr    ParamType = 2
	ParamLob    ParamType = 3
	ParamStmt   ParamType = 4
	ParamBool   ParamType = 5
	ParamObject ParamType = 6

	// ParamInOut marks a parameter as in/out and is combined with a base type,
	// e.g. ParamStr|ParamInOut.
	ParamInOut ParamType = 0x80000000
)

func (paramType ParamType) base() ParamType {
	return paramType &^ ParamInOut
}

func (paramType ParamType) inOut() bool {
	return paramType&ParamInOut != 0
}

// BindOptions tunes large object binds made through BindParam.
type BindOptions struct {
	// Strategy selects when the value reaches the server, at transaction
	// commit or just before the owning execute call.
	Strategy LobStrategy
	// Kind overrides the large object kind derived from the value type.
	Kind oci8.LobKind
}

// bindInfo is the book-keeping record for one named placeholder.
type bindInfo struct {
	name      string
	ref       interface{}
	byRef     bool
	paramType ParamType
	code      oci8.TypeCode
	size      int
	isArray   bool
	isLob     bool
	outSlot   *driver.Value
	cursor    oci8.Cursor
}

// columnBind maps a 1-based result column to a caller variable. Binds are
// kept in registration order and all of them are applied on every fetch.
type columnBind struct {
	column    int
	ref       interface{}
	paramType ParamType
}

// BindValue binds a concrete value to a named placeholder. The value is
// captured immediately and later changes to the source variable have no
// effect on the statement.
func (stmt *Statement) BindValue(name string, value interface{}, paramType ParamType) error {
	if stmt.closed {
		return ErrStmtClosed
	}
	if paramType.inOut() {
		return ErrBindTarget
	}
	key, err := normalizeName(name)
	if err != nil {
		return err
	}
	return stmt.bind(key, value, false, paramType, -1, nil)
}

// BindParam binds a caller variable to a named placeholder by reference.
// The variable is re-read when the statement executes, and for in/out
// parameters the driver writes the output value back through the pointer.
// size is the reserved output length, -1 to derive it from the value.
func (stmt *Statement) BindParam(name string, ref interface{}, paramType ParamType, size int, options *BindOptions) error {
	if stmt.closed {
		return ErrStmtClosed
	}
	if reflect.ValueOf(ref).Kind() != reflect.Ptr {
		return ErrBindTarget
	}
	key, err := normalizeName(name)
	if err != nil {
		return err
	}
	return stmt.bind(key, ref, true, paramType, size, options)
}

// BindColumn ties a 1-based result column to a caller variable. Every fetch
// refreshes all bound variables in registration order, so several variables
// may observe the same column.
func (stmt *Statement) BindColumn(column int, ref interface{}, paramType ParamType) error {
	if stmt.closed {
		return ErrStmtClosed
	}
	if column < 1 {
		return ErrColumnIndex
	}
	if reflect.ValueOf(ref).Kind() != reflect.Ptr {
		return ErrBindTarget
	}
	stmt.columnBinds = append(stmt.columnBinds, columnBind{column: column, ref: ref, paramType: paramType})
	return nil
}

func (stmt *Statement) bind(name string, ref interface{}, byRef bool, paramType ParamType, size int, options *BindOptions) error {
	value, err := resolveRef(ref, byRef)
	if err != nil {
		return err
	}
	switch paramType.base() {
	case ParamLob:
		return stmt.bindLob(name, value, options)
	case ParamStmt:
		return stmt.bindCursorParam(name, ref, byRef, paramType)
	}
	if isSequence(value) {
		return stmt.bindArray(name, ref, byRef, value, paramType, size)
	}
	dv, err := toDriverValue(value)
	if err != nil {
		return err
	}
	code := nativeTypeOf(paramType)
	length := sizeOf(size, dv)
	info := &bindInfo{name: name, ref: ref, byRef: byRef, paramType: paramType, code: code, size: length}
	if paramType.inOut() {
		slot := new(driver.Value)
		*slot = dv
		if err = stmt.native.BindOut(name, slot, code, length); err != nil {
			return stmt.fail(err)
		}
		info.outSlot = slot
	} else if err = stmt.native.BindName(name, dv, code, length); err != nil {
		return stmt.fail(err)
	}
	stmt.storeBind(info)
	return nil
}

func (stmt *Statement) bindArray(name string, ref interface{}, byRef bool, value interface{}, paramType ParamType, size int) error {
	values, width, err := sequenceValues(value)
	if err != nil {
		return err
	}
	if size > 0 {
		width = size
	}
	code := nativeTypeOf(paramType)
	if err = stmt.native.BindArray(name, values, code, width); err != nil {
		return stmt.fail(err)
	}
	stmt.storeBind(&bindInfo{name: name, ref: ref, byRef: byRef, paramType: paramType, code: code, size: width, isArray: true})
	return nil
}

func (stmt *Statement) bindCursorParam(name string, ref interface{}, byRef bool, paramType ParamType) error {
	if !byRef {
		return ErrBindTarget
	}
	cursor, err := stmt.native.BindCursor(name)
	if err != nil {
		return stmt.fail(err)
	}
	stmt.storeBind(&bindInfo{name: name, ref: ref, byRef: true, paramType: paramType, code: oci8.RefCursor, cursor: cursor})
	return nil
}

// storeBind registers the record under its placeholder name. Rebinding a name
// replaces the previous record, releasing a large object descriptor the
// statement still owns for it.
func (stmt *Statement) storeBind(info *bindInfo) {
	if old, ok := stmt.binds[info.name]; ok {
		if old.isLob {
			stmt.releaseLob(info.name)
		}
		for i, name := range stmt.bindOrder {
			if name == info.name {
				stmt.bindOrder = append(stmt.bindOrder[:i], stmt.bindOrder[i+1:]...)
				break
			}
		}
	}
	stmt.binds[info.name] = info
	stmt.bindOrder = append(stmt.bindOrder, info.name)
}

// refreshBinds re-reads by-reference variables and re-issues their native
// binds so the execute call sees current values.
func (stmt *Statement) refreshBinds() error {
	for _, name := range stmt.bindOrder {
		info := stmt.binds[name]
		if !info.byRef || info.isLob || info.cursor != nil {
			continue
		}
		value, err := resolveRef(info.ref, true)
		if err != nil {
			return err
		}
		if info.isArray {
			values, width, err := sequenceValues(value)
			if err != nil {
				return err
			}
			if info.size > width {
				width = info.size
			}
			if err = stmt.native.BindArray(name, values, info.code, width); err != nil {
				return err
			}
			continue
		}
		dv, err := toDriverValue(value)
		if err != nil {
			return err
		}
		if info.outSlot != nil {
			*info.outSlot = dv
			continue
		}
		if err = stmt.native.BindName(name, dv, info.code, sizeOf(info.size, dv)); err != nil {
			return err
		}
	}
	return nil
}

// copyOutBinds writes driver output values back into in/out variables and
// wraps returned cursors as statements after a successful execute.
func (stmt *Statement) copyOutBinds() error {
	for _, name := range stmt.bindOrder {
		info := stmt.binds[name]
		if info.outSlot != nil {
			if err := assignValue(info.ref, *info.outSlot); err != nil {
				return err
			}
		}
		if info.cursor != nil {
			if err := stmt.assignCursor(info); err != nil {
				return err
			}
		}
	}
	return nil
}

func normalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	trimmed = strings.TrimPrefix(trimmed, ":")
	if trimmed == "" || trimmed == "?" || isDigits(trimmed) {
		return "", ErrPositionalPlaceholder
	}
	return trimmed, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func resolveRef(ref interface{}, byRef bool) (interface{}, error) {
	if !byRef {
		return ref, nil
	}
	rv := reflect.ValueOf(ref)
	if rv.Kind() != reflect.Ptr {
		return nil, ErrBindTarget
	}
	if rv.IsNil() {
		return nil, nil
	}
	return rv.Elem().Interface(), nil
}

func isSequence(value interface{}) bool {
	if value == nil {
		return false
	}
	if _, ok := value.([]byte); ok {
		return false
	}
	kind := reflect.ValueOf(value).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}

func sequenceValues(value interface{}) ([]driver.Value, int, error) {
	rv := reflect.ValueOf(value)
	values := make([]driver.Value, rv.Len())
	width := 0
	for i := 0; i < rv.Len(); i++ {
		dv, err := toDriverValue(rv.Index(i).Interface())
		if err != nil {
			return nil, 0, err
		}
		values[i] = dv
		if l := len(stringOf(dv)); l > width {
			width = l
		}
	}
	return values, width, nil
}

// toDriverValue folds a Go value onto the small set of wire types the native
// layer accepts. Booleans ride the integer type and anything unrecognized is
// formatted and rides the char type.
func toDriverValue(value interface{}) (driver.Value, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		return v, nil
	case []byte:
		return v, nil
	case time.Time:
		return v, nil
	case driver.Valuer:
		return v.Value()
	default:
		return fmt.Sprintf("%v", value), nil
	}
}

func sizeOf(size int, value driver.Value) int {
	if size > 0 {
		return size
	}
	switch v := value.(type) {
	case nil:
		return 0
	case string:
		return len(v)
	case []byte:
		return len(v)
	default:
		return len(stringOf(value))
	}
}

func stringOf(value driver.Value) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", value)
	}
}

func nativeTypeOf(paramType ParamType) oci8.TypeCode {
	switch paramType.base() {
	case ParamBool, ParamInt:
		return oci8.Integer
	case ParamStmt:
		return oci8.RefCursor
	case ParamObject:
		return oci8.NamedType
	default:
		return oci8.Char
	}
}

// coerce applies the logical type of a column bind to a fetched value.
// Conversions are loose casts, null stays null.
func coerce(value driver.Value, paramType ParamType) driver.Value {
	if value == nil {
		return nil
	}
	switch paramType.base() {
	case ParamInt:
		return coerceInt(value)
	case ParamBool:
		return coerceInt(value) != 0
	case ParamStr:
		return stringOf(value)
	default:
		return value
	}
}

func coerceInt(value driver.Value) int64 {
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
		return parseInt(v)
	case []byte:
		return parseInt(string(v))
	default:
		return 0
	}
}

func parseInt(s string) int64 {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// assignValue writes a fetched or returned value through a caller pointer,
// converting to the pointee type where a sensible cast exists.
func assignValue(ref interface{}, value driver.Value) error {
	switch target := ref.(type) {
	case *driver.Value:
		*target = value
		return nil
	case *interface{}:
		*target = value
		return nil
	case *string:
		*target = stringOf(value)
		return nil
	case *[]byte:
		switch v := value.(type) {
		case nil:
			*target = nil
		case []byte:
			*target = v
		default:
			*target = []byte(stringOf(value))
		}
		return nil
	case *int64:
		*target = coerceInt(value)
		return nil
	case *int:
		*target = int(coerceInt(value))
		return nil
	case *float64:
		switch v := value.(type) {
		case float64:
			*target = v
		case int64:
			*target = float64(v)
		default:
			f, _ := strconv.ParseFloat(stringOf(value), 64)
			*target = f
		}
		return nil
	case *bool:
		*target = coerceInt(value) != 0
		return nil
	case *time.Time:
		if v, ok := value.(time.Time); ok {
			*target = v
			return nil
		}
		return fmt.Errorf("cannot assign %T to *time.Time", value)
	}
	rv := reflect.ValueOf(ref)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return ErrBindTarget
	}
	elem := rv.Elem()
	if value == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}
	vv := reflect.ValueOf(value)
	if vv.Type().AssignableTo(elem.Type()) {
		elem.Set(vv)
		return nil
	}
	if vv.Type().ConvertibleTo(elem.Type()) {
		elem.Set(vv.Convert(elem.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, elem.Type())
}
