package messaging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/KimApps/ether/pkg/config"
	"github.com/KimApps/ether/pkg/logger"
)

const (
	// Default certificate paths
	defaultCertsDir   = "certs"
	defaultClientCert = "client-cert.pem"
	defaultClientKey  = "client-key.pem"
	defaultCACert     = "rootCA.pem"
)

// GetNATSConnection creates a NATS connection with proper TLS configuration
func GetNATSConnection(environment string, natsCfg *config.NATsConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1), // retry forever
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectHandler(func(nc *nats.Conn) {
			logger.Warn("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed!")
		}),
	}

	if environment == config.Production {
		tlsOpts, err := buildTLSOptions(natsCfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tlsOpts...)
	}

	return nats.Connect(natsCfg.URL, opts...)
}

// buildTLSOptions constructs TLS options for NATS connection
func buildTLSOptions(natsCfg *config.NATsConfig) ([]nats.Option, error) {
	certPaths := getCertificatePaths(natsCfg)

	if err := validateCertificateFiles(certPaths); err != nil {
		return nil, err
	}

	return []nats.Option{
		nats.ClientCert(certPaths.ClientCert, certPaths.ClientKey),
		nats.RootCAs(certPaths.CACert),
		nats.UserInfo(natsCfg.Username, natsCfg.Password),
	}, nil
}

// certificatePaths holds the paths to certificate files
type certificatePaths struct {
	ClientCert string
	ClientKey  string
	CACert     string
}

// getCertificatePaths returns certificate paths with fallback to defaults
func getCertificatePaths(natsCfg *config.NATsConfig) certificatePaths {
	paths := certificatePaths{}

	if natsCfg.TLS != nil {
		paths.ClientCert = natsCfg.TLS.ClientCert
		paths.ClientKey = natsCfg.TLS.ClientKey
		paths.CACert = natsCfg.TLS.CACert
	}

	if paths.ClientCert == "" {
		paths.ClientCert = filepath.Join(".", defaultCertsDir, defaultClientCert)
	}
	if paths.ClientKey == "" {
		paths.ClientKey = filepath.Join(".", defaultCertsDir, defaultClientKey)
	}
	if paths.CACert == "" {
		paths.CACert = filepath.Join(".", defaultCertsDir, defaultCACert)
	}

	return paths
}

// validateCertificateFiles checks if all required certificate files exist
func validateCertificateFiles(paths certificatePaths) error {
	requiredFiles := map[string]string{
		"client certificate": paths.ClientCert,
		"client key":         paths.ClientKey,
		"CA certificate":     paths.CACert,
	}

	for name, path := range requiredFiles {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("%s not found at %s", name, path)
		}
	}

	return nil
}
