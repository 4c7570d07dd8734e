// Package goora backs the pdo-oci8 shim with the pure Go go-ora client.
// Importing it registers the engine under the driver name "oci8":
//
//	import _ "github.com/nineinchnick/pdo-oci8/goora"
package goora

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	go_ora "github.com/sijms/go-ora/v2"

	pdo_oci8 "github.com/nineinchnick/pdo-oci8"
	"github.com/nineinchnick/pdo-oci8/kerberos"
	"github.com/nineinchnick/pdo-oci8/oci8"
)

func init() {
	pdo_oci8.Register("oci8", &Driver{})
}

// Driver opens go-ora backed sessions.
type Driver struct{}

var _ oci8.Driver = (*Driver)(nil)

func (drv *Driver) Open(ctx context.Context, config *oci8.Config) (oci8.Conn, error) {
	if alias := config.Options["dataSource"]; alias != "" {
		return nil, errors.Errorf("tns alias %q cannot be resolved, use dbname=//host:port/service instead", alias)
	}
	if strings.EqualFold(config.Options["authType"], "kerberos") {
		if err := kerberos.Enable(config.Options["krb5Conf"], config.Options["krb5CCache"]); err != nil {
			return nil, err
		}
	}
	url := go_ora.BuildUrl(config.Host, config.Port, config.ServiceName,
		config.UserID, config.Password, urlOptions(config))
	db, err := sql.Open("oracle", url)
	if err != nil {
		return nil, mapError(err)
	}
	// transactions and temporary lobs are session state, so all work must
	// stay on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	session, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, mapError(err)
	}
	return &Conn{db: db, session: session}, nil
}

// urlOptions forwards connection string options under the names the go-ora
// url parser matches. Unknown keys pass through untouched.
func urlOptions(config *oci8.Config) map[string]string {
	options := make(map[string]string)
	for key, value := range config.Options {
		switch key {
		case "authType":
			options["AUTH TYPE"] = value
		case "charset":
			options["CHARSET"] = value
		case "timeout":
			options["CONNECTION TIMEOUT"] = value
		case "traceFile":
			options["TRACE FILE"] = value
		case "krb5Conf", "krb5CCache", "dataSource":
			// consumed by Open, not part of the url
		default:
			options[key] = value
		}
	}
	if config.PrefetchRows > 0 {
		options["PREFETCH_ROWS"] = strconv.Itoa(config.PrefetchRows)
	}
	if config.SID != "" && config.ServiceName == "" {
		options["SID"] = config.SID
	}
	return options
}
