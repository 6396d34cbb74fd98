package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"

	"github.com/drfintrack/fintrack-auth/pkg/debug"
	"github.com/drfintrack/fintrack-auth/pkg/env"
)

// ErrIncompletePair is returned when only one of the certificate and key
// files is configured.
var ErrIncompletePair = errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")

// Config holds TLS configuration settings
type Config struct {
	CertFile string
	KeyFile  string
}

// NewConfig reads TLS_CERT_FILE and TLS_KEY_FILE. Both empty means the
// server speaks plain HTTP, typically behind a terminating proxy.
func NewConfig() *Config {
	return &Config{
		CertFile: env.GetOrDefault("TLS_CERT_FILE", ""),
		KeyFile:  env.GetOrDefault("TLS_KEY_FILE", ""),
	}
}

// Enabled reports whether a certificate pair is configured.
func (c *Config) Enabled() bool {
	return c.CertFile != "" || c.KeyFile != ""
}

// LoadTLSConfig creates a TLS configuration for the server
func (c *Config) LoadTLSConfig() (*tls.Config, error) {
	if c.CertFile == "" || c.KeyFile == "" {
		return nil, ErrIncompletePair
	}
	if !checkFileExists(c.CertFile) {
		return nil, fmt.Errorf("certificate file not found: %s", c.CertFile)
	}
	if !checkFileExists(c.KeyFile) {
		return nil, fmt.Errorf("key file not found: %s", c.KeyFile)
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate and key: %w", err)
	}

	debug.Info("TLS configuration loaded from %s", c.CertFile)
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		},
	}, nil
}

// checkFileExists checks if a file exists and is not a directory
func checkFileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
