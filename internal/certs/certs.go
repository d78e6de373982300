// Package certs keeps a self-signed certificate for serving the API over
// HTTPS on a local machine.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	certName = "tariff.crt"
	keyName  = "tariff.key"
	validFor = 365 * 24 * time.Hour
	// renewBefore forces regeneration when the certificate is about to expire.
	renewBefore = 7 * 24 * time.Hour
)

// FileManager stores one certificate and key pair in a directory.
type FileManager struct {
	now      func() time.Time
	certFile string
	keyFile  string
	dir      string
	hosts    []string
}

// NewFileManager creates a manager for dir. The certificate covers localhost
// and the loopback addresses plus any extra hosts, which may be names or IPs.
func NewFileManager(dir string, hosts ...string) *FileManager {
	return &FileManager{
		dir:      dir,
		certFile: filepath.Join(dir, certName),
		keyFile:  filepath.Join(dir, keyName),
		hosts:    append([]string{"localhost", "127.0.0.1", "::1"}, hosts...),
		now:      time.Now,
	}
}

// CertFile returns the path of the PEM certificate.
func (m *FileManager) CertFile() string {
	return m.certFile
}

// GetOrCreateCertificate loads the stored pair, or generates a new one when
// it is missing, unreadable, expiring or does not cover every host.
func (m *FileManager) GetOrCreateCertificate() (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(m.certFile, m.keyFile)
	switch {
	case err == nil:
		verr := m.verify(cert)
		if verr == nil {
			return cert, nil
		}
		slog.Info("regenerating TLS certificate", "reason", verr)
	case errors.Is(err, fs.ErrNotExist):
	default:
		slog.Warn("stored TLS certificate unreadable, regenerating", "error", err)
	}

	return m.generate()
}

// TLSConfig returns a server TLS configuration using the managed certificate.
func (m *FileManager) TLSConfig() (*tls.Config, error) {
	cert, err := m.GetOrCreateCertificate()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func (m *FileManager) generate() (tls.Certificate, error) {
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate private key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := m.now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"tariff"}, CommonName: "localhost"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range m.hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to encode private key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if err := os.WriteFile(m.certFile, certPEM, 0600); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := os.WriteFile(m.keyFile, keyPEM, 0600); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to write private key: %w", err)
	}

	slog.Info("generated TLS certificate", "path", m.certFile, "expires", template.NotAfter)
	return tls.X509KeyPair(certPEM, keyPEM)
}

func (m *FileManager) verify(cert tls.Certificate) error {
	if len(cert.Certificate) == 0 {
		return errors.New("no certificate in key pair")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	now := m.now()
	if now.Before(leaf.NotBefore) {
		return errors.New("certificate not yet valid")
	}
	if now.Add(renewBefore).After(leaf.NotAfter) {
		return errors.New("certificate expires soon")
	}
	for _, h := range m.hosts {
		if err := leaf.VerifyHostname(h); err != nil {
			return fmt.Errorf("certificate does not cover %s", h)
		}
	}
	return nil
}
