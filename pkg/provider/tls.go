package provider

import (
	"github.com/jsnhff/regender/pkg/config"
	"github.com/jsnhff/regender/pkg/httpclient"
)

// tlsOptions returns the httpclient.Options needed to honor cfg's TLS
// overrides. It returns none when neither override is set, so the default
// transport (proxy-from-env, connection pooling) is left untouched for the
// common case of talking to a public provider endpoint over plain TLS.
func tlsOptions(cfg *config.ProviderConfig) []httpclient.Option {
	if cfg.CACertificate == "" && !cfg.InsecureSkipVerify {
		return nil
	}
	return []httpclient.Option{httpclient.WithTLSConfig(&httpclient.TLSConfig{
		CACertificate:      cfg.CACertificate,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})}
}
