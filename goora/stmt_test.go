package goora

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	go_ora "github.com/sijms/go-ora/v2"
	"github.com/sijms/go-ora/v2/network"

	"github.com/nineinchnick/pdo-oci8/oci8"
)

func TestTypeCodeOf(t *testing.T) {
	tests := []struct {
		declType string
		want     oci8.TypeCode
	}{
		{"CHAR", oci8.AFC},
		{"CHARZ", oci8.AFC},
		{"NCHAR", oci8.Char},
		{"VARCHAR", oci8.Char},
		{"NullStr", oci8.Char},
		{"NUMBER", oci8.Number},
		{"SB4", oci8.Integer},
		{"UINT", oci8.Integer},
		{"FLOAT", oci8.Float},
		{"IBDouble", oci8.Float},
		{"LONG", oci8.Long},
		{"ROWID", oci8.RowID},
		{"UROWID", oci8.RowID},
		{"DATE", oci8.Date},
		{"OCIDate", oci8.Date},
		{"RAW", oci8.Raw},
		{"LongRaw", oci8.LongRaw},
		{"REFCURSOR", oci8.RefCursor},
		{"XMLType", oci8.NamedType},
		{"OCIClobLocator", oci8.Clob},
		{"OCIBlobLocator", oci8.Blob},
		{"OCIFileLocator", oci8.BFile},
		{"ResultSet", oci8.ResultSet},
		{"TimeStampDTY", oci8.Timestamp},
		{"TIMESTAMP WITH TZ", oci8.Timestamp},
		{"TimeStampTZ_DTY", oci8.Timestamp},
		{"SOMETHING ELSE", oci8.Char},
	}
	for _, tt := range tests {
		t.Run(tt.declType, func(t *testing.T) {
			if got := typeCodeOf(tt.declType); got != tt.want {
				t.Errorf("expecting %v for %s, got %v", tt.want, tt.declType, got)
			}
		})
	}
}

func TestIsQueryText(t *testing.T) {
	queries := []struct {
		query string
		want  bool
	}{
		{"SELECT 1 FROM dual", true},
		{"  select id FROM emp", true},
		{"WITH cte AS (SELECT 1 FROM dual) SELECT * FROM cte", true},
		{"with cte as (select 1 from dual) select * from cte", true},
		{"INSERT INTO emp VALUES (1)", false},
		{"BEGIN null; END;", false},
		{"", false},
		{"   ", false},
	}
	for _, tt := range queries {
		if got := isQueryText(tt.query); got != tt.want {
			t.Errorf("expecting %v for %q, got %v", tt.want, tt.query, got)
		}
	}
}

func TestArrayArg(t *testing.T) {
	ints := arrayArg([]driver.Value{int64(1), float64(2.9), "3"}, oci8.Integer)
	if !reflect.DeepEqual(ints, []int64{1, 2, 3}) {
		t.Errorf("expecting the values lowered to int64, got %v", ints)
	}
	floats := arrayArg([]driver.Value{float64(1.5), int64(2), "2.5"}, oci8.Float)
	if !reflect.DeepEqual(floats, []float64{1.5, 2, 2.5}) {
		t.Errorf("expecting the values lowered to float64, got %v", floats)
	}
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	dates := arrayArg([]driver.Value{day, "not a date"}, oci8.Date)
	if !reflect.DeepEqual(dates, []time.Time{day, {}}) {
		t.Errorf("expecting non-dates zeroed, got %v", dates)
	}
	raws := arrayArg([]driver.Value{[]byte{1}, "ab"}, oci8.Raw)
	if !reflect.DeepEqual(raws, [][]byte{{1}, []byte("ab")}) {
		t.Errorf("expecting the values lowered to bytes, got %v", raws)
	}
	strs := arrayArg([]driver.Value{"a", int64(7)}, oci8.Char)
	if !reflect.DeepEqual(strs, []string{"a", "7"}) {
		t.Errorf("expecting the values lowered to strings, got %v", strs)
	}
}

func TestHolderRoundTrip(t *testing.T) {
	day := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		code oci8.TypeCode
		seed driver.Value
	}{
		{"integer", oci8.Integer, int64(5)},
		{"float", oci8.Float, float64(2.5)},
		{"number", oci8.Number, float64(7)},
		{"date", oci8.Date, day},
		{"clob", oci8.Clob, "large text"},
		{"blob", oci8.Blob, []byte{1, 2, 3}},
		{"string", oci8.Char, "scott"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			holder := holderFor(tt.code, tt.seed)
			got := unholder(holder)
			if !reflect.DeepEqual(got, tt.seed) {
				t.Errorf("expecting %v back, got %v", tt.seed, got)
			}
		})
		t.Run(tt.name+" null", func(t *testing.T) {
			holder := holderFor(tt.code, nil)
			if got := unholder(holder); got != nil {
				t.Errorf("expecting nil for an unset holder, got %v", got)
			}
		})
	}
	if got := unholder(42); got != nil {
		t.Errorf("expecting nil for a foreign holder, got %v", got)
	}
}

func TestMapError(t *testing.T) {
	if err := mapError(nil); err != nil {
		t.Errorf("expecting nil passed through, got %v", err)
	}
	oraErr := &network.OracleError{ErrCode: 942, ErrMsg: "ORA-00942: table or view does not exist"}
	err := mapError(errors.Wrap(oraErr, "exec"))
	native, ok := err.(*oci8.Error)
	if !ok || native.Code != 942 || native.Message != oraErr.ErrMsg {
		t.Errorf("expecting the protocol error lifted, got %v", err)
	}
	err = mapError(errors.New("ORA-12154: TNS:could not resolve the connect identifier specified"))
	native, ok = err.(*oci8.Error)
	if !ok || native.Code != 12154 {
		t.Errorf("expecting the code parsed from the message, got %v", err)
	}
	err = mapError(errors.New("dial tcp 10.0.0.1:1521: i/o timeout"))
	native, ok = err.(*oci8.Error)
	if !ok {
		t.Errorf("expecting a native error, got %v", err)
		return
	}
	if native.Code != 0 || native.Message != "dial tcp 10.0.0.1:1521: i/o timeout" {
		t.Errorf("expecting a zero code with the message kept, got %+v", native)
	}
}

func TestOwnValue(t *testing.T) {
	source := []byte("abc")
	owned := ownValue(source).([]byte)
	source[0] = 'x'
	if string(owned) != "abc" {
		t.Errorf("expecting the bytes copied off the driver buffer, got %q", owned)
	}
	if got := ownValue("abc"); got != "abc" {
		t.Errorf("expecting other values passed through, got %v", got)
	}
}

func TestValueConversions(t *testing.T) {
	if asInt64(int64(5)) != 5 || asInt64(float64(2.9)) != 2 || asInt64("12") != 12 {
		t.Error("expecting numeric values lowered to int64")
	}
	if asInt64(true) != 1 || asInt64(false) != 0 || asInt64([]byte("13")) != 13 {
		t.Error("expecting booleans and bytes lowered to int64")
	}
	if asInt64(struct{}{}) != 0 {
		t.Error("expecting zero for unknown values")
	}
	if asFloat64(float64(1.5)) != 1.5 || asFloat64(int64(2)) != 2 || asFloat64("2.5") != 2.5 || asFloat64([]byte("3.5")) != 3.5 {
		t.Error("expecting numeric values lowered to float64")
	}
	if asString(nil) != "" || asString("a") != "a" || asString([]byte("b")) != "b" || asString(int64(42)) != "42" {
		t.Error("expecting values lowered to strings")
	}
	if string(asBytes("ab")) != "ab" || asBytes(42) != nil {
		t.Error("expecting strings lowered to bytes and unknowns dropped")
	}
}

func TestBuildArgsOrder(t *testing.T) {
	stmt := newStmt(nil, "UPDATE emp SET ename = :name WHERE id = :id", nil)
	if err := stmt.BindName("name", "king", oci8.Char, 0); err != nil {
		t.Errorf("name can't be bound: %s", err)
		return
	}
	if err := stmt.BindName("id", int64(1), oci8.Integer, 0); err != nil {
		t.Errorf("id can't be bound: %s", err)
		return
	}
	// rebinding keeps the original position
	if err := stmt.BindName("name", "blake", oci8.Char, 0); err != nil {
		t.Errorf("name can't be rebound: %s", err)
		return
	}
	args := stmt.buildArgs()
	if len(args) != 2 {
		t.Errorf("expecting two arguments, got %d", len(args))
		return
	}
	first := args[0].(sql.NamedArg)
	second := args[1].(sql.NamedArg)
	if first.Name != "name" || first.Value != "blake" {
		t.Errorf("expecting the rebound name first, got %+v", first)
	}
	if second.Name != "id" || second.Value != int64(1) {
		t.Errorf("expecting the id second, got %+v", second)
	}
}

func TestBindArgLob(t *testing.T) {
	stmt := newStmt(nil, "INSERT INTO docs (body) VALUES (:data)", nil)
	staged := &Lob{kind: oci8.LobChar}
	staged.Stage([]byte("payload"))
	if err := stmt.BindLob("data", staged); err != nil {
		t.Errorf("lob can't be bound: %s", err)
		return
	}
	clob, ok := stmt.binds["data"].arg().(go_ora.Clob)
	if !ok || !clob.Valid || clob.String != "payload" {
		t.Errorf("expecting a valid clob argument, got %v", clob)
	}
	// an empty stage travels as a null lob
	nulled := &Lob{kind: oci8.LobChar}
	nulled.Stage(nil)
	stmt.BindLob("data", nulled)
	clob = stmt.binds["data"].arg().(go_ora.Clob)
	if clob.Valid {
		t.Errorf("expecting a null clob argument, got %v", clob)
	}
	binary := &Lob{kind: oci8.LobBinary}
	binary.Stage([]byte{1, 2})
	stmt.BindLob("data", binary)
	blob, ok := stmt.binds["data"].arg().(go_ora.Blob)
	if !ok || !blob.Valid || !reflect.DeepEqual(blob.Data, []byte{1, 2}) {
		t.Errorf("expecting a valid blob argument, got %v", blob)
	}
}

func TestBindLobForeign(t *testing.T) {
	stmt := newStmt(nil, "INSERT INTO docs (body) VALUES (:data)", nil)
	err := stmt.BindLob("data", &oci8.MockLob{})
	if err == nil || !strings.Contains(err.Error(), "another engine") {
		t.Errorf("expecting the foreign descriptor rejected, got %v", err)
	}
}

func TestBindArgOut(t *testing.T) {
	stmt := newStmt(nil, "BEGIN :n := 7; END;", nil)
	slot := driver.Value(int64(3))
	if err := stmt.BindOut("n", &slot, oci8.Integer, 0); err != nil {
		t.Errorf("out bind can't be added: %s", err)
		return
	}
	b := stmt.binds["n"]
	out, ok := b.arg().(go_ora.Out)
	if !ok || !out.In {
		t.Errorf("expecting an in/out argument, got %v", out)
	}
	holder, ok := out.Dest.(*sql.NullInt64)
	if !ok || !holder.Valid || holder.Int64 != 3 {
		t.Errorf("expecting the holder seeded with the current value, got %v", out.Dest)
	}
	holder.Int64 = 42
	if err := stmt.completeBinds(); err != nil {
		t.Errorf("binds can't be completed: %s", err)
		return
	}
	if slot != int64(42) {
		t.Errorf("expecting the result copied back, got %v", slot)
	}
}

func TestBindArgCursor(t *testing.T) {
	stmt := newStmt(nil, "BEGIN open_cur(:cur); END;", nil)
	cursor, err := stmt.BindCursor("cur")
	if err != nil {
		t.Errorf("cursor can't be bound: %s", err)
		return
	}
	if cursor == nil {
		t.Error("expecting a cursor handle")
		return
	}
	out, ok := stmt.binds["cur"].arg().(go_ora.Out)
	if !ok {
		t.Errorf("expecting an out argument, got %T", stmt.binds["cur"].arg())
		return
	}
	if _, ok = out.Dest.(*go_ora.RefCursor); !ok {
		t.Errorf("expecting a ref cursor destination, got %T", out.Dest)
	}
}

func TestExecuteClosed(t *testing.T) {
	stmt := newStmt(nil, "SELECT 1 FROM dual", nil)
	err := stmt.Execute(context.Background(), oci8.ExecDefault)
	if err == nil || !strings.Contains(err.Error(), "statement handle is closed") {
		t.Errorf("expecting the closed handle rejected, got %v", err)
	}
}

func TestFetchWithoutRows(t *testing.T) {
	stmt := newStmt(nil, "SELECT 1 FROM dual", nil)
	if _, err := stmt.Fetch(context.Background()); err != io.EOF {
		t.Errorf("expecting io.EOF, got %v", err)
	}
	rows, err := stmt.FetchAll(context.Background())
	if err != nil || len(rows) != 0 {
		t.Errorf("expecting an empty drain, got %v (%v)", rows, err)
	}
	if stmt.RowsAffected() != 0 {
		t.Errorf("expecting zero rows affected, got %d", stmt.RowsAffected())
	}
	if err = stmt.CloseCursor(); err != nil {
		t.Errorf("cursor can't be closed: %s", err)
	}
	if err = stmt.Close(); err != nil {
		t.Errorf("statement can't be closed: %s", err)
	}
}

func TestLobLifecycle(t *testing.T) {
	ctx := context.Background()
	lob := &Lob{kind: oci8.LobChar}
	if err := lob.WriteTemporary(ctx); err == nil || !strings.Contains(err.Error(), "no staged payload to write") {
		t.Errorf("expecting the unstaged write rejected, got %v", err)
	}
	if err := lob.Save(ctx); err == nil || !strings.Contains(err.Error(), "no staged payload to save") {
		t.Errorf("expecting the unstaged save rejected, got %v", err)
	}
	lob.Stage([]byte("payload"))
	if err := lob.WriteTemporary(ctx); err != nil {
		t.Errorf("temporary can't be written: %s", err)
	}
	if err := lob.Save(ctx); err != nil {
		t.Errorf("lob can't be saved: %s", err)
	}
	if err := lob.Free(); err != nil {
		t.Errorf("lob can't be freed: %s", err)
	}
	if err := lob.Save(ctx); err == nil || !strings.Contains(err.Error(), "already freed") {
		t.Errorf("expecting the freed descriptor rejected, got %v", err)
	}
	if payload, staged := lob.payload(); payload != nil || staged {
		t.Error("expecting the payload dropped on free")
	}
}
