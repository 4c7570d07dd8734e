package pdo_oci8

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nineinchnick/pdo-oci8/oci8"
	"github.com/nineinchnick/pdo-oci8/trace"
)

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func TestErrorStateFresh(t *testing.T) {
	conn, _, stmt, _ := mockStatement(t, "SELECT 1 FROM dual", nil)
	if code := conn.ErrorCode(); code != "" {
		t.Errorf("expecting an empty code before any failure, got %q", code)
	}
	if info := conn.ErrorInfo(); info.SQLState != "00000" || info.Code != 0 || info.Message != "" {
		t.Errorf("expecting the success triple, got %+v", info)
	}
	if code := stmt.ErrorCode(); code != "" {
		t.Errorf("expecting an empty code before any failure, got %q", code)
	}
	if info := stmt.ErrorInfo(); info.SQLState != "00000" {
		t.Errorf("expecting the success triple, got %+v", info)
	}
}

func TestErrorStateRecorded(t *testing.T) {
	ctx := context.Background()
	script := &oci8.MockStmt{ExecErr: &oci8.Error{Code: 942, Message: "ORA-00942: table or view does not exist"}}
	conn, _, stmt, _ := mockStatement(t, "SELECT * FROM missing", script)
	if err := stmt.Execute(ctx, nil); err == nil {
		t.Error("expecting the execute to fail")
		return
	}
	info := stmt.ErrorInfo()
	if info.SQLState != "HY000" || info.Code != 942 {
		t.Errorf("expecting HY000/942, got %+v", info)
	}
	if !strings.Contains(info.Message, "ORA-00942") {
		t.Errorf("expecting the server message, got %q", info.Message)
	}
	if conn.ErrorCode() != "HY000" {
		t.Errorf("expecting the failure mirrored on the connection, got %q", conn.ErrorCode())
	}

	// the record survives the next successful operation
	script.ExecErr = nil
	if err := stmt.Execute(ctx, nil); err != nil {
		t.Errorf("statement can't be executed: %s", err)
		return
	}
	if stmt.ErrorCode() != "HY000" {
		t.Errorf("expecting the record kept after success, got %q", stmt.ErrorCode())
	}
}

func TestValidationErrorsAreNotRecorded(t *testing.T) {
	ctx := context.Background()
	_, _, stmt, _ := mockStatement(t, "SELECT id FROM emp", employeeScript())
	if err := stmt.BindValue("1", 1, ParamInt); err != ErrPositionalPlaceholder {
		t.Errorf("expecting ErrPositionalPlaceholder, got %v", err)
	}
	if _, err := stmt.FetchOriented(ctx, FetchNum, OriLast, 0); err != ErrNoScrollCursor {
		t.Errorf("expecting ErrNoScrollCursor, got %v", err)
	}
	if _, err := stmt.FetchColumn(ctx, -1); err != ErrColumnIndex {
		t.Errorf("expecting ErrColumnIndex, got %v", err)
	}
	if stmt.ErrorCode() != "" {
		t.Errorf("expecting no recorded failure, got %q", stmt.ErrorCode())
	}
}

func TestErrorModeSilent(t *testing.T) {
	ctx := context.Background()
	script := &oci8.MockStmt{ExecErr: &oci8.Error{Code: 942, Message: "ORA-00942: table or view does not exist"}}
	_, _, stmt, _ := mockStatement(t, "SELECT * FROM missing", script)
	err := stmt.Execute(ctx, nil)
	if err == nil {
		t.Error("expecting the execute to fail")
		return
	}
	var native *oci8.Error
	if !errors.As(err, &native) {
		t.Errorf("expecting the native error, got %T", err)
		return
	}
	if strings.Contains(err.Error(), "SQLSTATE") {
		t.Errorf("expecting no status prefix in silent mode, got %q", err.Error())
	}
}

func TestErrorModeException(t *testing.T) {
	ctx := context.Background()
	script := &oci8.MockStmt{ExecErr: &oci8.Error{Code: 942, Message: "ORA-00942: table or view does not exist"}}
	conn, _, stmt, _ := mockStatement(t, "SELECT * FROM missing", script)
	if err := conn.SetAttribute(AttrErrMode, ErrModeException); err != nil {
		t.Errorf("attribute can't be set: %s", err)
		return
	}
	err := stmt.Execute(ctx, nil)
	if err == nil {
		t.Error("expecting the execute to fail")
		return
	}
	if !strings.HasPrefix(err.Error(), "SQLSTATE[HY000]: ") {
		t.Errorf("expecting the status prefix, got %q", err.Error())
	}
	var native *oci8.Error
	if !errors.As(err, &native) || native.Code != 942 {
		t.Errorf("expecting the native error behind the prefix, got %v", err)
	}
}

func TestErrorModeWarning(t *testing.T) {
	ctx := context.Background()
	script := &oci8.MockStmt{ExecErr: &oci8.Error{Code: 942, Message: "ORA-00942: table or view does not exist"}}
	conn, _, stmt, _ := mockStatement(t, "SELECT * FROM missing", script)
	buffer := &bufferCloser{}
	conn.SetTracer(trace.NewTraceWriter(buffer))
	if err := conn.SetAttribute(AttrErrMode, ErrModeWarning); err != nil {
		t.Errorf("attribute can't be set: %s", err)
		return
	}
	err := stmt.Execute(ctx, nil)
	if err == nil {
		t.Error("expecting the execute to fail")
		return
	}
	if strings.Contains(err.Error(), "SQLSTATE") {
		t.Errorf("expecting the bare native error, got %q", err.Error())
	}
	if !strings.Contains(buffer.String(), "warning: SQLSTATE[HY000]: 942") {
		t.Errorf("expecting the warning traced, got %q", buffer.String())
	}
}

func TestLiftNative(t *testing.T) {
	lifted := liftNative(errors.New("engine detail"))
	if lifted.Code != 0 || lifted.Message != "engine detail" {
		t.Errorf("expecting a wrapped generic failure, got %+v", lifted)
	}
	original := &oci8.Error{Code: 1017, Message: "ORA-01017: invalid username/password"}
	if lifted = liftNative(fmt.Errorf("open: %w", original)); lifted != original {
		t.Errorf("expecting the native error unwrapped, got %+v", lifted)
	}
	if asNative(errors.New("plain")) != nil {
		t.Error("expecting nil for an error with no native detail")
	}
}

func TestNativeErrorMatching(t *testing.T) {
	err := &oci8.Error{Code: 1017, Message: "ORA-01017: invalid username/password; logon denied"}
	if err.Error() != err.Message {
		t.Errorf("expecting the message as text, got %q", err.Error())
	}
	wrapped := fmt.Errorf("connect: %w", err)
	if !errors.Is(wrapped, &oci8.Error{Code: 1017}) {
		t.Error("expecting a match by code")
	}
	if errors.Is(wrapped, &oci8.Error{Code: 942}) {
		t.Error("expecting no match for a different code")
	}
}
