package goora

import (
	"context"
	"strings"
	"testing"

	"github.com/nineinchnick/pdo-oci8/oci8"
)

func TestURLOptions(t *testing.T) {
	config := &oci8.Config{
		Host:         "dbhost",
		Port:         1521,
		ServiceName:  "",
		SID:          "XE",
		PrefetchRows: 10,
		Options: map[string]string{
			"authType":   "kerberos",
			"charset":    "AL32UTF8",
			"timeout":    "30",
			"traceFile":  "/tmp/trace.log",
			"krb5Conf":   "/etc/krb5.conf",
			"krb5CCache": "/tmp/krb5cc",
			"dataSource": "",
			"ssl":        "true",
		},
	}
	options := urlOptions(config)
	mapped := map[string]string{
		"AUTH TYPE":          "kerberos",
		"CHARSET":            "AL32UTF8",
		"CONNECTION TIMEOUT": "30",
		"TRACE FILE":         "/tmp/trace.log",
		"ssl":                "true",
		"PREFETCH_ROWS":      "10",
		"SID":                "XE",
	}
	for key, want := range mapped {
		if options[key] != want {
			t.Errorf("expecting %s=%q, got %q", key, want, options[key])
		}
	}
	for _, key := range []string{"authType", "charset", "timeout", "traceFile", "krb5Conf", "krb5CCache", "dataSource"} {
		if _, ok := options[key]; ok {
			t.Errorf("expecting %s consumed, got %q", key, options[key])
		}
	}
}

func TestURLOptionsServiceNameWins(t *testing.T) {
	config := &oci8.Config{
		Host:        "dbhost",
		Port:        1521,
		ServiceName: "orcl",
		SID:         "XE",
		Options:     map[string]string{},
	}
	options := urlOptions(config)
	if _, ok := options["SID"]; ok {
		t.Error("expecting the SID dropped when a service name is set")
	}
	if _, ok := options["PREFETCH_ROWS"]; ok {
		t.Error("expecting no prefetch option when unset")
	}
}

func TestOpenRejectsAlias(t *testing.T) {
	drv := &Driver{}
	_, err := drv.Open(context.Background(), &oci8.Config{
		Options: map[string]string{"dataSource": "PROD"},
	})
	if err == nil || !strings.Contains(err.Error(), `tns alias "PROD" cannot be resolved`) {
		t.Errorf("expecting the alias rejected, got %v", err)
	}
}

func TestOpenKerberosRequiresCache(t *testing.T) {
	t.Setenv("KRB5CCNAME", "")
	drv := &Driver{}
	_, err := drv.Open(context.Background(), &oci8.Config{
		Host:        "dbhost",
		Port:        1521,
		ServiceName: "orcl",
		Options:     map[string]string{"authType": "kerberos"},
	})
	if err == nil || !strings.Contains(err.Error(), "kerberos requires a credential cache") {
		t.Errorf("expecting the missing cache reported, got %v", err)
	}
}
