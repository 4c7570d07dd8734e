package oci8

import "errors"

// Error is a failure reported by the native engine. Message carries the full
// server text (including the ORA- prefix when the server supplies one);
// Offset and SQL locate the failure inside the statement text when known.
type Error struct {
	Code    int
	Message string
	Offset  int
	SQL     string
}

func (err *Error) Error() string {
	return err.Message
}

// Is matches two native errors by code so callers can compare against
// sentinel values with errors.Is.
func (err *Error) Is(target error) bool {
	var oerr *Error
	if !errors.As(target, &oerr) {
		return false
	}
	return err.Code == oerr.Code
}
