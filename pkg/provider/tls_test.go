package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jsnhff/regender/pkg/config"
)

func TestTLSOptionsEmptyWhenNoOverrides(t *testing.T) {
	opts := tlsOptions(&config.ProviderConfig{})
	assert.Empty(t, opts)
}

func TestTLSOptionsSetWhenCACertificateConfigured(t *testing.T) {
	opts := tlsOptions(&config.ProviderConfig{CACertificate: "/tmp/ca.pem"})
	assert.Len(t, opts, 1)
}

func TestTLSOptionsSetWhenInsecureSkipVerifyConfigured(t *testing.T) {
	opts := tlsOptions(&config.ProviderConfig{InsecureSkipVerify: true})
	assert.Len(t, opts, 1)
}
