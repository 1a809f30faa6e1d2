package tls

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// writeSelfSigned writes a self-signed key pair (which doubles as its own
// CA) into dir and returns the matching TLSConfig.
func writeSelfSigned(t *testing.T, dir, cn string) *TLSConfig {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	cfg := &TLSConfig{
		CertFile:          filepath.Join(dir, "tls.crt"),
		KeyFile:           filepath.Join(dir, "tls.key"),
		CAFile:            filepath.Join(dir, "ca.crt"),
		RequireClientCert: true,
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	require.NoError(t, os.WriteFile(cfg.CertFile, certPEM, 0o600))
	require.NoError(t, os.WriteFile(cfg.CAFile, certPEM, 0o600))
	require.NoError(t, os.WriteFile(cfg.KeyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return cfg
}

func leafCN(t *testing.T, cfg *tls.Config) string {
	t.Helper()
	leaf, err := x509.ParseCertificate(cfg.Certificates[0].Certificate[0])
	require.NoError(t, err)
	return leaf.Subject.CommonName
}

func TestLoadTLSConfig(t *testing.T) {
	cfg := writeSelfSigned(t, t.TempDir(), "first")

	tlsCfg, err := LoadTLSConfig(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, tls.RequireAndVerifyClientCert, tlsCfg.ClientAuth)
	assert.NotNil(t, tlsCfg.ClientCAs)
	assert.Equal(t, "first", leafCN(t, tlsCfg))

	cfg.RequireClientCert = false
	tlsCfg, err = LoadTLSConfig(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, tls.VerifyClientCertIfGiven, tlsCfg.ClientAuth)

	cfg.KeyFile = filepath.Join(t.TempDir(), "missing.key")
	_, err = LoadTLSConfig(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestReloader_ServesLatestConfig(t *testing.T) {
	dir := t.TempDir()
	first, err := LoadTLSConfig(writeSelfSigned(t, dir, "first"), zap.NewNop())
	require.NoError(t, err)
	second, err := LoadTLSConfig(writeSelfSigned(t, dir, "second"), zap.NewNop())
	require.NoError(t, err)

	r := NewReloader(first)
	server := r.ServerConfig()

	got, err := server.GetConfigForClient(nil)
	require.NoError(t, err)
	assert.Equal(t, "first", leafCN(t, got))

	require.NoError(t, r.Store(second))
	got, err = server.GetConfigForClient(nil)
	require.NoError(t, err)
	assert.Equal(t, "second", leafCN(t, got))

	assert.Error(t, r.Store(nil))
}

func TestWatchCertificates_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	cfg := writeSelfSigned(t, dir, "first")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloaded atomic.Pointer[tls.Config]
	done := make(chan error, 1)
	go func() {
		done <- WatchCertificates(ctx, cfg, func(c *tls.Config) error {
			reloaded.Store(c)
			return nil
		}, zap.NewNop())
	}()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	writeSelfSigned(t, dir, "rotated")

	require.Eventually(t, func() bool {
		c := reloaded.Load()
		return c != nil && leafCN(t, c) == "rotated"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestTLSConfig_FromEnvironment(t *testing.T) {
	t.Setenv("TLS_CERT_FILE", "/run/certs/svc.crt")
	t.Setenv("TLS_REQUIRE_CLIENT_CERT", "false")
	// the listener switch lives in pkg/config, not here
	t.Setenv("TLS_ENABLED", "not-a-bool")

	var cfg TLSConfig
	require.NoError(t, envconfig.Process("", &cfg))
	assert.Equal(t, "/run/certs/svc.crt", cfg.CertFile)
	assert.Equal(t, "/etc/tls/tls.key", cfg.KeyFile)
	assert.Equal(t, "/etc/tls/ca.crt", cfg.CAFile)
	assert.False(t, cfg.RequireClientCert)
}
