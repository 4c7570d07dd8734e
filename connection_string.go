package pdo_oci8

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/nineinchnick/pdo-oci8/oci8"
)

// ConnectionString is the parsed form of a PDO-OCI data source name:
// "oci:dbname=//host:port/service;charset=UTF8;..." or a bare
// "oci:dbname=alias" naming a tns alias.
type ConnectionString struct {
	DataSource        string
	Host              string
	Port              int
	SID               string
	ServiceName       string
	UserID            string
	Password          string
	Charset           string
	ConnectionTimeout int
	PrefetchRows      int
	StmtCacheSize     int
	AuthType          string
	Krb5Conf          string
	Krb5CCache        string
	TraceFile         string
	Extra             map[string]string
}

func NewConnectionString() *ConnectionString {
	return &ConnectionString{
		Port:              1521,
		ConnectionTimeout: 15,
		PrefetchRows:      25,
		StmtCacheSize:     defaultStmtCacheSize,
		Extra:             make(map[string]string),
	}
}

// dsnOptions is the decode target for the semicolon attributes of the DSN.
// Keys match case-insensitively; unknown keys land in Extra untouched.
type dsnOptions struct {
	Charset       string `mapstructure:"charset"`
	Timeout       int    `mapstructure:"timeout"`
	PrefetchRows  int    `mapstructure:"prefetchRows"`
	StmtCacheSize int    `mapstructure:"stmtCacheSize"`
	AuthType      string `mapstructure:"authType"`
	Krb5Conf      string `mapstructure:"krb5Conf"`
	Krb5CCache    string `mapstructure:"krb5CCache"`
	TraceFile     string `mapstructure:"traceFile"`
	SID           string `mapstructure:"sid"`
}

// ParseDSN splits a PDO-OCI data source name into its connect target and
// option attributes. The user and password arrive separately, as the DSN
// never carries them.
func ParseDSN(dsn, username, password string) (*ConnectionString, error) {
	conStr := NewConnectionString()
	conStr.UserID = username
	conStr.Password = password
	rest := strings.TrimPrefix(dsn, "oci:")
	values := make(map[string]interface{})
	dbname := ""
	for _, pair := range strings.Split(rest, ";") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, errors.New("connection string attributes must use key=value form")
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if strings.EqualFold(key, "dbname") {
			dbname = value
			continue
		}
		values[key] = value
	}
	if dbname == "" {
		return nil, errors.New("dbname is missing from the connection string")
	}
	if err := conStr.parseTarget(dbname); err != nil {
		return nil, err
	}

	options := dsnOptions{}
	meta := mapstructure.Metadata{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &options,
		WeaklyTypedInput: true,
		Metadata:         &meta,
	})
	if err != nil {
		return nil, err
	}
	if err = decoder.Decode(values); err != nil {
		return nil, err
	}
	conStr.Charset = options.Charset
	conStr.AuthType = options.AuthType
	conStr.Krb5Conf = options.Krb5Conf
	conStr.Krb5CCache = options.Krb5CCache
	conStr.TraceFile = options.TraceFile
	if options.SID != "" {
		conStr.SID = options.SID
	}
	if options.Timeout > 0 {
		conStr.ConnectionTimeout = options.Timeout
	}
	if options.PrefetchRows > 0 {
		conStr.PrefetchRows = options.PrefetchRows
	}
	if options.StmtCacheSize > 0 {
		conStr.StmtCacheSize = options.StmtCacheSize
	}
	for _, key := range meta.Unused {
		if value, ok := values[key].(string); ok {
			conStr.Extra[key] = value
		}
	}
	if len(conStr.SID) == 0 && len(conStr.ServiceName) == 0 && len(conStr.DataSource) == 0 {
		return nil, errors.New("empty SID and service name")
	}
	return conStr, nil
}

// parseTarget resolves the dbname attribute: an easy-connect
// "//host:port/service" form, the same without the leading slashes, or a
// bare tns alias.
func (conStr *ConnectionString) parseTarget(dbname string) error {
	if !strings.Contains(dbname, "/") && !strings.Contains(dbname, ":") {
		conStr.DataSource = dbname
		return nil
	}
	target := dbname
	if !strings.HasPrefix(target, "//") {
		target = "//" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return err
	}
	conStr.Host = u.Hostname()
	if p := u.Port(); p != "" {
		conStr.Port, err = strconv.Atoi(p)
		if err != nil {
			return errors.New("Port must be a number")
		}
	}
	conStr.ServiceName = strings.Trim(u.Path, "/")
	if len(conStr.Host) == 0 {
		return errors.New("empty host name (server name)")
	}
	if len(conStr.ServiceName) == 0 {
		return errors.New("empty SID and service name")
	}
	return nil
}

// config shapes the parsed DSN into the engine-independent connect request.
func (conStr *ConnectionString) config() *oci8.Config {
	options := make(map[string]string, len(conStr.Extra)+6)
	for key, value := range conStr.Extra {
		options[key] = value
	}
	if conStr.Charset != "" {
		options["charset"] = conStr.Charset
	}
	if conStr.AuthType != "" {
		options["authType"] = conStr.AuthType
	}
	if conStr.Krb5Conf != "" {
		options["krb5Conf"] = conStr.Krb5Conf
	}
	if conStr.Krb5CCache != "" {
		options["krb5CCache"] = conStr.Krb5CCache
	}
	if conStr.TraceFile != "" {
		options["traceFile"] = conStr.TraceFile
	}
	if conStr.DataSource != "" {
		options["dataSource"] = conStr.DataSource
	}
	if conStr.ConnectionTimeout > 0 {
		options["timeout"] = strconv.Itoa(conStr.ConnectionTimeout)
	}
	return &oci8.Config{
		Host:         conStr.Host,
		Port:         conStr.Port,
		ServiceName:  conStr.ServiceName,
		SID:          conStr.SID,
		UserID:       conStr.UserID,
		Password:     conStr.Password,
		PrefetchRows: conStr.PrefetchRows,
		Options:      options,
	}
}
