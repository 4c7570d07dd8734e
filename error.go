package pdo_oci8

import (
	"errors"

	"github.com/nineinchnick/pdo-oci8/oci8"
)

// SQLSTATE values of the two-tier status model. Native failures surface as
// the generic failure state; the real native code travels in ErrorInfo.
const (
	sqlStateGeneral = "HY000"
	sqlStateSuccess = "00000"
)

// Argument validation failures. These are returned immediately and are never
// recorded into the error state.
var (
	ErrPositionalPlaceholder = errors.New("only named placeholders are supported")
	ErrNoScrollCursor        = errors.New("scrollable cursors are not supported")
	ErrUnimplementedMode     = errors.New("fetch mode is not implemented")
	ErrFetchAllArgs          = errors.New("extra fetch arguments are not supported with object modes")
	ErrColumnIndex           = errors.New("column index out of range")
	ErrCaseFoldObject        = errors.New("case folding cannot be applied to object rows")
	ErrStmtClosed            = errors.New("statement is closed")
	ErrConnClosed            = errors.New("connection is closed")
	ErrInTransaction         = errors.New("a transaction is already active")
	ErrNotInTransaction      = errors.New("no active transaction")
	ErrNoLastInsertID        = errors.New("driver does not support last inserted id")
	ErrBindTarget            = errors.New("binding requires a pointer to the target variable")
	ErrModePayload           = errors.New("fetch mode requires its payload argument")
	ErrCursorFetchOnly       = errors.New("cursor statements only support fetching")
)

// ErrorInfo is the detail triple behind ErrorCode: the two-tier SQLSTATE plus
// the native code and message when a failure is recorded.
type ErrorInfo struct {
	SQLState string
	Code     int
	Message  string
}

// errorState holds the last native error of a connection or statement. It is
// only replaced by the next failing operation, never cleared on success.
type errorState struct {
	last *oci8.Error
}

func (state *errorState) record(err *oci8.Error) {
	state.last = err
}

// code returns the generic failure state when an error is recorded and the
// empty string when none is. The success state is never returned here, only
// through info.
func (state *errorState) code() string {
	if state.last == nil {
		return ""
	}
	return sqlStateGeneral
}

func (state *errorState) info() ErrorInfo {
	if state.last == nil {
		return ErrorInfo{SQLState: sqlStateSuccess}
	}
	return ErrorInfo{
		SQLState: sqlStateGeneral,
		Code:     state.last.Code,
		Message:  state.last.Message,
	}
}

// asNative unwraps an engine failure to its native error, nil when the error
// carries no native detail.
func asNative(err error) *oci8.Error {
	var oerr *oci8.Error
	if errors.As(err, &oerr) {
		return oerr
	}
	return nil
}

// liftNative forces an engine failure into native form so it can be recorded;
// engines normally return *oci8.Error already.
func liftNative(err error) *oci8.Error {
	if native := asNative(err); native != nil {
		return native
	}
	return &oci8.Error{Message: err.Error()}
}
