package sessionstore

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/KimApps/ether/pkg/logger"
	"github.com/KimApps/ether/pkg/types"
)

const sessionKeyPrefix = "wc/session/"

// BadgerStore persists walletconnect sessions in a local BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

type BadgerConfig struct {
	DBPath        string
	EncryptionKey []byte
}

func NewBadgerStore(config BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(config.DBPath).
		WithIndexCacheSize(16 << 20).
		WithSyncWrites(true).
		WithCompactL0OnClose(true).
		WithLogger(nil)
	if len(config.EncryptionKey) > 0 {
		opts = opts.WithEncryptionKey(config.EncryptionKey)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", config.DBPath, err)
	}

	logger.Info("Connected to BadgerDB session store", "path", config.DBPath)
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Put(session types.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionKeyPrefix+session.Topic), data)
	})
}

func (s *BadgerStore) Delete(topic string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(sessionKeyPrefix + topic))
	})
}

func (s *BadgerStore) List() ([]types.Session, error) {
	var sessions []types.Session
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(sessionKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var session types.Session
				if err := json.Unmarshal(val, &session); err != nil {
					return err
				}
				sessions = append(sessions, session)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
