package goora

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sijms/go-ora/v2/network"

	"github.com/nineinchnick/pdo-oci8/oci8"
)

var oraCode = regexp.MustCompile(`ORA-(\d{3,5})`)

// mapError lifts a go-ora failure into the native error shape. The typed
// protocol error carries the code directly; otherwise the code is parsed out
// of the ORA- prefix go-ora leaves in wrapped message text.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var oraErr *network.OracleError
	if errors.As(err, &oraErr) {
		return &oci8.Error{Code: oraErr.ErrCode, Message: oraErr.ErrMsg}
	}
	message := err.Error()
	if match := oraCode.FindStringSubmatch(message); match != nil {
		code, _ := strconv.Atoi(match[1])
		return &oci8.Error{Code: code, Message: message}
	}
	return &oci8.Error{Message: message}
}
