// Package tls loads the certificates for the internal mTLS listener and
// reloads them when the files on disk change.
package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// TLSConfig locates the certificate files. Whether the internal listener
// runs at all is decided by INTERNAL_TLS_ENABLED in pkg/config.
type TLSConfig struct {
	CertFile          string `envconfig:"TLS_CERT_FILE" default:"/etc/tls/tls.crt"`
	KeyFile           string `envconfig:"TLS_KEY_FILE" default:"/etc/tls/tls.key"`
	CAFile            string `envconfig:"TLS_CA_FILE" default:"/etc/tls/ca.crt"`
	RequireClientCert bool   `envconfig:"TLS_REQUIRE_CLIENT_CERT" default:"true"`
}

// LoadTLSConfig builds a server config from the key pair and, when a CA
// file is configured, verifies client certificates against it.
func LoadTLSConfig(cfg *TLSConfig, logger *zap.Logger) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.CAFile != "" {
		caPEM, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
		}
		tlsCfg.ClientCAs = pool
		if cfg.RequireClientCert {
			tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
		} else {
			tlsCfg.ClientAuth = tls.VerifyClientCertIfGiven
		}
	}

	logger.Info("TLS configuration loaded",
		zap.String("cert_file", cfg.CertFile),
		zap.Bool("client_auth", tlsCfg.ClientAuth == tls.RequireAndVerifyClientCert))
	return tlsCfg, nil
}

// Reloader hands the most recently loaded config to every new handshake, so
// a running listener picks up rotated certificates.
type Reloader struct {
	current atomic.Pointer[tls.Config]
}

func NewReloader(initial *tls.Config) *Reloader {
	r := &Reloader{}
	r.current.Store(initial)
	return r
}

func (r *Reloader) Store(cfg *tls.Config) error {
	if cfg == nil {
		return fmt.Errorf("nil TLS config")
	}
	r.current.Store(cfg)
	return nil
}

// ServerConfig is the config to install on http.Server.TLSConfig.
func (r *Reloader) ServerConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			cfg := r.current.Load()
			if len(cfg.Certificates) == 0 {
				return nil, fmt.Errorf("no certificate loaded")
			}
			return &cfg.Certificates[0], nil
		},
		GetConfigForClient: func(*tls.ClientHelloInfo) (*tls.Config, error) {
			return r.current.Load(), nil
		},
	}
}

const reloadDebounce = 500 * time.Millisecond

// WatchCertificates watches the directories holding the certificate files
// and calls onReload with a freshly loaded config after they change. It
// returns when ctx is cancelled.
func WatchCertificates(ctx context.Context, cfg *TLSConfig, onReload func(*tls.Config) error, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dirs := map[string]struct{}{}
	for _, f := range []string{cfg.CertFile, cfg.KeyFile, cfg.CAFile} {
		if f == "" {
			continue
		}
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	// Secret volume updates arrive as a burst of events; reload once after
	// they settle.
	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				debounce = time.After(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Certificate watcher error", zap.Error(err))
		case <-debounce:
			debounce = nil
			newCfg, err := LoadTLSConfig(cfg, logger)
			if err != nil {
				logger.Error("Failed to reload TLS config", zap.Error(err))
				continue
			}
			if err := onReload(newCfg); err != nil {
				logger.Error("Failed to apply TLS config", zap.Error(err))
			}
		}
	}
}
