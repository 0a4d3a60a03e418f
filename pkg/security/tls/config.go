package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"mercator-hq/warden/pkg/config"
)

// ServerConfig builds a crypto/tls server configuration that takes its
// certificate from reloader.
func ServerConfig(cfg *config.ServerTLSConfig, reloader *Reloader) (*tls.Config, error) {
	if reloader == nil {
		return nil, errors.New("certificate reloader is required")
	}
	minVersion, err := parseMinVersion(cfg.MinVersion)
	if err != nil {
		return nil, err
	}

	tlsCfg := &tls.Config{
		MinVersion:     minVersion,
		GetCertificate: reloader.GetCertificate,
	}

	clientAuth, err := parseClientAuth(cfg.ClientAuth)
	if err != nil {
		return nil, err
	}
	if clientAuth != tls.NoClientCert {
		if cfg.ClientCAFile == "" {
			return nil, fmt.Errorf("client_ca_file is required for client_auth %q", cfg.ClientAuth)
		}
		pool, err := loadCAPool(cfg.ClientCAFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = clientAuth
	}
	return tlsCfg, nil
}

func parseMinVersion(v string) (uint16, error) {
	switch v {
	case "", "1.3":
		return tls.VersionTLS13, nil
	case "1.2":
		return tls.VersionTLS12, nil
	}
	return 0, fmt.Errorf("unsupported min_version %q (expected 1.2 or 1.3)", v)
}

func parseClientAuth(v string) (tls.ClientAuthType, error) {
	switch v {
	case "", "none":
		return tls.NoClientCert, nil
	case "verify_if_given":
		return tls.VerifyClientCertIfGiven, nil
	case "require":
		return tls.RequireAndVerifyClientCert, nil
	}
	return 0, fmt.Errorf("unsupported client_auth %q (expected none, verify_if_given or require)", v)
}

func loadCAPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates in client CA file %s", path)
	}
	return pool, nil
}
