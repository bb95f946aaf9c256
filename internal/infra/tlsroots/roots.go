package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoCertsFound is returned when a PEM source holds no certificate.
var ErrNoCertsFound = errors.New("tlsroots: no certificates found")

// LoadPool builds a trust pool from PEM files and directories of them.
// With system set the pool starts from the system roots.
func LoadPool(system bool, paths ...string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if system {
		if sys, err := x509.SystemCertPool(); err == nil {
			pool = sys
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: %w", err)
		}
		if info.IsDir() {
			err = appendDir(pool, path)
		} else {
			err = appendFile(pool, path)
		}
		if err != nil {
			return nil, err
		}
	}
	return pool, nil
}

func appendFile(pool *x509.CertPool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tlsroots: read %s: %w", path, err)
	}
	n, err := appendPEM(pool, data)
	if err != nil {
		return fmt.Errorf("tlsroots: %s: %w", path, err)
	}
	if n == 0 {
		return fmt.Errorf("%w in %s", ErrNoCertsFound, path)
	}
	return nil
}

// appendDir adds every .pem, .crt and .cer file of dir. Files without
// certificates are skipped; an empty directory is an error.
func appendDir(pool *x509.CertPool, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("tlsroots: read dir %s: %w", dir, err)
	}

	total := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pem", ".crt", ".cer":
		default:
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("tlsroots: %w", err)
		}
		n, err := appendPEM(pool, data)
		if err != nil {
			return fmt.Errorf("tlsroots: %s: %w", entry.Name(), err)
		}
		total += n
	}
	if total == 0 {
		return fmt.Errorf("%w in %s", ErrNoCertsFound, dir)
	}
	return nil
}

func appendPEM(pool *x509.CertPool, data []byte) (int, error) {
	n := 0
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return n, fmt.Errorf("parse certificate: %w", err)
		}
		pool.AddCert(cert)
		n++
	}
	return n, nil
}

// ClientConfig returns the settings of a client that trusts the system
// roots plus the CAs in caFile. An empty caFile trusts system roots only.
func ClientConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	pool, err := LoadPool(true, caFile)
	if err != nil {
		return nil, err
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// ServerConfig serves the reloader's current certificate. With clientCAFile
// set, clients must present a certificate signed by one of its CAs.
func ServerConfig(r *Reloader, clientCAFile string) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: r.GetCertificate,
	}
	if clientCAFile != "" {
		pool, err := LoadPool(false, clientCAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}
