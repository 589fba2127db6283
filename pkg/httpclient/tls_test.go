package httpclient

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigureTLSDefaultsToEmptyConfig(t *testing.T) {
	transport, err := ConfigureTLS(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("expected InsecureSkipVerify=false by default")
	}
	if transport.TLSClientConfig.RootCAs != nil {
		t.Error("expected no custom RootCAs by default")
	}
}

func TestConfigureTLSInsecureSkipVerify(t *testing.T) {
	transport, err := ConfigureTLS(&TLSConfig{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("expected InsecureSkipVerify=true")
	}
}

func TestConfigureTLSMissingCACertificate(t *testing.T) {
	_, err := ConfigureTLS(&TLSConfig{CACertificate: filepath.Join(t.TempDir(), "missing.pem")})
	if err == nil {
		t.Fatal("expected error for missing CA certificate file")
	}
}

func TestConfigureTLSInvalidCACertificate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pem")
	if err := os.WriteFile(path, []byte("not a certificate"), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	_, err := ConfigureTLS(&TLSConfig{CACertificate: path})
	if err == nil {
		t.Fatal("expected error for invalid CA certificate contents")
	}
}

func TestWithTLSConfigAppliesTransport(t *testing.T) {
	client := New(WithTLSConfig(&TLSConfig{InsecureSkipVerify: true}))
	if client.client.Transport == nil {
		t.Fatal("expected transport to be set")
	}
}

func TestWithTLSConfigNilIsNoop(t *testing.T) {
	client := New(WithTLSConfig(nil))
	if client.client.Transport != nil {
		t.Error("expected default (nil) transport to be left untouched")
	}
}
