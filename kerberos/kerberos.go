// Package kerberos supplies the Kerberos 5 authentication hook used when a
// connection string selects authType=kerberos. Tickets come from an MIT
// credential cache populated externally, typically by kinit.
package kerberos

import (
	"os"
	"strings"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/gssapi"
	"github.com/jcmturner/gokrb5/v8/spnego"
	"github.com/pkg/errors"
	"github.com/sijms/go-ora/v2/advanced_nego"
)

const defaultConfigPath = "/etc/krb5.conf"

// Auth produces the AP-REQ token go-ora presents during its authentication
// negotiation.
type Auth struct {
	ConfigPath string
	CachePath  string
}

func (auth *Auth) Authenticate(server, service string) ([]byte, error) {
	conf, err := config.Load(auth.ConfigPath)
	if err != nil {
		return nil, errors.Wrap(err, "load krb5 config")
	}
	ccache, err := credentials.LoadCCache(auth.CachePath)
	if err != nil {
		return nil, errors.Wrap(err, "load credential cache")
	}
	cl, err := client.NewFromCCache(ccache, conf)
	if err != nil {
		return nil, errors.Wrap(err, "client from ccache")
	}
	ticket, key, err := cl.GetServiceTicket(service + "/" + server)
	if err != nil {
		return nil, errors.Wrap(err, "get service ticket")
	}
	token, err := spnego.NewKRB5TokenAPREQ(cl, ticket, key, []int{gssapi.ContextFlagMutual}, []int{})
	if err != nil {
		return nil, errors.Wrap(err, "build ap-req token")
	}
	return token.APReq.Marshal()
}

// Enable installs the hook for subsequent connections. An empty config path
// falls back to /etc/krb5.conf and an empty cache path to KRB5CCNAME.
func Enable(configPath, cachePath string) error {
	if configPath == "" {
		configPath = defaultConfigPath
	}
	if cachePath == "" {
		cachePath = strings.TrimPrefix(os.Getenv("KRB5CCNAME"), "FILE:")
	}
	if cachePath == "" {
		return errors.New("kerberos requires a credential cache, set krb5ccache in the connection string or KRB5CCNAME in the environment")
	}
	advanced_nego.SetKerberosAuth(&Auth{ConfigPath: configPath, CachePath: cachePath})
	return nil
}
