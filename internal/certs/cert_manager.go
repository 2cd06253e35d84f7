package certs

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	CertFile = "server.crt"
	KeyFile  = "server.key"
)

// CertManager manages the TLS material for the operator console.
type CertManager struct {
	certDir string
}

// NewCertManager creates a new CertManager for the given directory.
func NewCertManager(certDir string) *CertManager {
	return &CertManager{certDir: certDir}
}

// TLSConfig loads server.crt and server.key from the cert directory.
func (cm *CertManager) TLSConfig() (*tls.Config, error) {
	pair, err := tls.LoadX509KeyPair(filepath.Join(cm.certDir, CertFile), filepath.Join(cm.certDir, KeyFile))
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// LoadCertificates loads all certificates from the cert directory.
func (cm *CertManager) LoadCertificates() ([]*x509.Certificate, error) {
	var certs []*x509.Certificate

	err := filepath.Walk(cm.certDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if strings.HasSuffix(info.Name(), ".crt") || strings.HasSuffix(info.Name(), ".pem") {
			cert, err := cm.loadCertificate(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			certs = append(certs, cert)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return certs, nil
}

func (cm *CertManager) loadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to parse certificate PEM")
	}

	return x509.ParseCertificate(block.Bytes)
}

// IsExpired checks if a certificate is expired.
func (cm *CertManager) IsExpired(cert *x509.Certificate) bool {
	return cert.NotAfter.Before(time.Now())
}

// ExpiringWithin returns the certificates that expire before now+d,
// including those already expired.
func (cm *CertManager) ExpiringWithin(d time.Duration) ([]*x509.Certificate, error) {
	certs, err := cm.LoadCertificates()
	if err != nil {
		return nil, err
	}
	limit := time.Now().Add(d)
	var out []*x509.Certificate
	for _, c := range certs {
		if c.NotAfter.Before(limit) {
			out = append(out, c)
		}
	}
	return out, nil
}
