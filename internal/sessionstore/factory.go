package sessionstore

import (
	"fmt"
	"path/filepath"

	"github.com/hashicorp/consul/api"

	"github.com/KimApps/ether/pkg/config"
	"github.com/KimApps/ether/pkg/logger"
	"github.com/KimApps/ether/pkg/walletconnect"
)

// New builds the configured session store backend.
func New(cfg *config.Config, consulClient *api.Client) (walletconnect.SessionStore, func() error, error) {
	switch cfg.StorageType {
	case "badger":
		dbPath := filepath.Join(cfg.DBPath, "sessions")
		store, err := NewBadgerStore(BadgerConfig{
			DBPath:        dbPath,
			EncryptionKey: []byte(cfg.BadgerPassword),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create badger session store: %w", err)
		}
		return store, store.Close, nil

	case "consul":
		if consulClient == nil {
			return nil, nil, fmt.Errorf("consul session store requires a consul client")
		}
		store := NewConsulStore(consulClient.KV())
		logger.Info("Using consul session store")
		return store, func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("storage type %q is not supported", cfg.StorageType)
	}
}
