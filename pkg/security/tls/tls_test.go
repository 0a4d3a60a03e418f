package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/warden/pkg/config"
)

// writePair writes a self-signed certificate valid in [notBefore, notAfter)
// and returns the cert and key paths.
func writePair(t *testing.T, dir, name string, notBefore, notAfter time.Time) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: name},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:         true,
		DNSNames:     []string{name},

		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return certPath, keyPath
}

func validPair(t *testing.T, dir, name string) (string, string) {
	now := time.Now()
	return writePair(t, dir, name, now.Add(-time.Hour), now.Add(365*24*time.Hour))
}

func TestServerConfig(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := validPair(t, dir, "warden.local")
	reloader := NewReloader(certFile, keyFile, time.Minute)
	if err := reloader.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	tests := []struct {
		name           string
		cfg            config.ServerTLSConfig
		wantErr        bool
		wantMinVersion uint16
		wantClientAuth cryptotls.ClientAuthType
	}{
		{
			name:           "defaults to TLS 1.3",
			cfg:            config.ServerTLSConfig{},
			wantMinVersion: cryptotls.VersionTLS13,
			wantClientAuth: cryptotls.NoClientCert,
		},
		{
			name:           "TLS 1.2",
			cfg:            config.ServerTLSConfig{MinVersion: "1.2"},
			wantMinVersion: cryptotls.VersionTLS12,
			wantClientAuth: cryptotls.NoClientCert,
		},
		{
			name:    "unsupported version",
			cfg:     config.ServerTLSConfig{MinVersion: "1.0"},
			wantErr: true,
		},
		{
			name:    "unsupported client auth",
			cfg:     config.ServerTLSConfig{ClientAuth: "optional"},
			wantErr: true,
		},
		{
			name:    "client auth without CA",
			cfg:     config.ServerTLSConfig{ClientAuth: "require"},
			wantErr: true,
		},
		{
			name:    "client CA missing on disk",
			cfg:     config.ServerTLSConfig{ClientAuth: "require", ClientCAFile: filepath.Join(dir, "nope.pem")},
			wantErr: true,
		},
		{
			name:           "require client certificates",
			cfg:            config.ServerTLSConfig{ClientAuth: "require", ClientCAFile: certFile},
			wantMinVersion: cryptotls.VersionTLS13,
			wantClientAuth: cryptotls.RequireAndVerifyClientCert,
		},
		{
			name:           "verify if given",
			cfg:            config.ServerTLSConfig{MinVersion: "1.3", ClientAuth: "verify_if_given", ClientCAFile: certFile},
			wantMinVersion: cryptotls.VersionTLS13,
			wantClientAuth: cryptotls.VerifyClientCertIfGiven,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ServerConfig(&tt.cfg, reloader)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ServerConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.MinVersion != tt.wantMinVersion {
				t.Errorf("MinVersion = %x, want %x", got.MinVersion, tt.wantMinVersion)
			}
			if got.ClientAuth != tt.wantClientAuth {
				t.Errorf("ClientAuth = %v, want %v", got.ClientAuth, tt.wantClientAuth)
			}
			if tt.wantClientAuth != cryptotls.NoClientCert && got.ClientCAs == nil {
				t.Error("ClientCAs not set")
			}
			cert, err := got.GetCertificate(&cryptotls.ClientHelloInfo{})
			if err != nil || cert == nil {
				t.Errorf("GetCertificate() = %v, %v", cert, err)
			}
		})
	}
}

func TestServerConfig_NilReloader(t *testing.T) {
	if _, err := ServerConfig(&config.ServerTLSConfig{}, nil); err == nil {
		t.Error("expected error for nil reloader")
	}
}

func TestReloader_GetCertificateBeforeLoad(t *testing.T) {
	r := NewReloader("a.crt", "a.key", 0)
	if r.interval != DefaultReloadInterval {
		t.Errorf("interval = %v, want %v", r.interval, DefaultReloadInterval)
	}
	if _, err := r.GetCertificate(nil); err == nil {
		t.Error("expected error before first load")
	}
	if err := r.Reload(); err == nil {
		t.Error("expected error for missing files")
	}
}

func TestReloader_PicksUpNewCertificate(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := validPair(t, dir, "first.local")
	r := NewReloader(certFile, keyFile, time.Minute)
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := r.Certificate().Leaf.Subject.CommonName; got != "first.local" {
		t.Fatalf("CommonName = %q, want first.local", got)
	}
	if r.changed() {
		t.Error("changed() = true right after load")
	}

	validPair(t, dir, "second.local")
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(certFile, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if !r.changed() {
		t.Fatal("changed() = false after rewrite")
	}
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := r.Certificate().Leaf.Subject.CommonName; got != "second.local" {
		t.Errorf("CommonName = %q, want second.local", got)
	}
}

func TestReloader_RejectsExpiredCertificate(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := validPair(t, dir, "current.local")
	r := NewReloader(certFile, keyFile, time.Minute)
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	r.now = func() time.Time { return time.Now().Add(2 * 365 * 24 * time.Hour) }
	if err := r.Reload(); err == nil {
		t.Fatal("expected error for expired certificate")
	}
	if got := r.Certificate().Leaf.Subject.CommonName; got != "current.local" {
		t.Errorf("previous certificate not kept, got %q", got)
	}

	r.now = func() time.Time { return time.Now().Add(-24 * time.Hour) }
	if err := r.Reload(); err == nil {
		t.Error("expected error for not-yet-valid certificate")
	}
}

func TestReloader_ServesHandshake(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := validPair(t, dir, "warden.local")
	r := NewReloader(certFile, keyFile, time.Minute)
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	srvCfg, err := ServerConfig(&config.ServerTLSConfig{MinVersion: "1.2"}, r)
	if err != nil {
		t.Fatalf("ServerConfig() error = %v", err)
	}

	ln, err := cryptotls.Listen("tcp", "127.0.0.1:0", srvCfg)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.(*cryptotls.Conn).Handshake()
	}()

	pool := x509.NewCertPool()
	pool.AddCert(r.Certificate().Leaf)
	conn, err := cryptotls.Dial("tcp", ln.Addr().String(), &cryptotls.Config{
		RootCAs:    pool,
		ServerName: "warden.local",
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if got := conn.ConnectionState().PeerCertificates[0].Subject.CommonName; got != "warden.local" {
		t.Errorf("peer CommonName = %q", got)
	}
}
