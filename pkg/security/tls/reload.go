package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ExpiryWarning is how close to NotAfter a certificate is logged as
// expiring.
const ExpiryWarning = 30 * 24 * time.Hour

// DefaultReloadInterval is used when no interval is configured.
const DefaultReloadInterval = 5 * time.Minute

// Reloader serves a certificate pair and reloads it when either file
// changes on disk.
type Reloader struct {
	certFile string
	keyFile  string
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	cert     *tls.Certificate
	certTime time.Time
	keyTime  time.Time
}

// NewReloader creates a reloader for the given pair.
func NewReloader(certFile, keyFile string, interval time.Duration) *Reloader {
	if interval <= 0 {
		interval = DefaultReloadInterval
	}
	return &Reloader{
		certFile: certFile,
		keyFile:  keyFile,
		interval: interval,
		logger:   slog.Default().With("component", "security.tls"),
		now:      time.Now,
	}
}

// Start loads the pair and polls for changes until ctx is cancelled.
func (r *Reloader) Start(ctx context.Context) error {
	if err := r.Reload(); err != nil {
		return err
	}
	go r.loop(ctx)
	return nil
}

func (r *Reloader) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.changed() {
				continue
			}
			if err := r.Reload(); err != nil {
				r.logger.Error("certificate reload failed, keeping previous certificate",
					"cert_file", r.certFile,
					"error", err,
				)
			}
		}
	}
}

// changed reports whether either file is newer than the loaded pair.
func (r *Reloader) changed() bool {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		return false
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return certInfo.ModTime().After(r.certTime) || keyInfo.ModTime().After(r.keyTime)
}

// Reload loads the pair from disk. An expired or unparsable pair is
// rejected and the current certificate stays in service.
func (r *Reloader) Reload() error {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		return fmt.Errorf("stat certificate: %w", err)
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		return fmt.Errorf("stat key: %w", err)
	}

	pair, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return fmt.Errorf("parse certificate: %w", err)
	}
	now := r.now()
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("certificate expired at %s", leaf.NotAfter.Format(time.RFC3339))
	}
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("certificate not valid until %s", leaf.NotBefore.Format(time.RFC3339))
	}
	pair.Leaf = leaf

	r.mu.Lock()
	r.cert = &pair
	r.certTime = certInfo.ModTime()
	r.keyTime = keyInfo.ModTime()
	r.mu.Unlock()

	remaining := leaf.NotAfter.Sub(now)
	attrs := []any{
		"subject", leaf.Subject.CommonName,
		"expires_at", leaf.NotAfter.Format(time.RFC3339),
		"expires_in_days", int(remaining.Hours() / 24),
	}
	if remaining < ExpiryWarning {
		r.logger.Warn("certificate expiring soon", attrs...)
	} else {
		r.logger.Info("certificate loaded", attrs...)
	}
	return nil
}

// Certificate returns the certificate in service, or nil before the first
// successful load.
func (r *Reloader) Certificate() *tls.Certificate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert
}

// GetCertificate implements tls.Config.GetCertificate.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	if cert := r.Certificate(); cert != nil {
		return cert, nil
	}
	return nil, errors.New("no certificate loaded")
}
