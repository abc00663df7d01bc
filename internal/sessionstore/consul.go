package sessionstore

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/consul/api"

	"github.com/KimApps/ether/pkg/types"
)

// ConsulKV is the slice of the consul KV API the store uses.
type ConsulKV interface {
	Put(kv *api.KVPair, options *api.WriteOptions) (*api.WriteMeta, error)
	Get(key string, options *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
	Delete(key string, options *api.WriteOptions) (*api.WriteMeta, error)
	List(prefix string, options *api.QueryOptions) (api.KVPairs, *api.QueryMeta, error)
}

// ConsulStore persists walletconnect sessions in consul KV, for deployments
// where service instances share session state.
type ConsulStore struct {
	kv ConsulKV
}

func NewConsulStore(kv ConsulKV) *ConsulStore {
	return &ConsulStore{kv: kv}
}

func (s *ConsulStore) Put(session types.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	pair := &api.KVPair{Key: s.composeKey(session.Topic), Value: data}
	if _, err := s.kv.Put(pair, nil); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *ConsulStore) Delete(topic string) error {
	if _, err := s.kv.Delete(s.composeKey(topic), nil); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *ConsulStore) List() ([]types.Session, error) {
	pairs, _, err := s.kv.List(sessionKeyPrefix, nil)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]types.Session, 0, len(pairs))
	for _, pair := range pairs {
		var session types.Session
		if err := json.Unmarshal(pair.Value, &session); err != nil {
			return nil, fmt.Errorf("unmarshal session %s: %w", pair.Key, err)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *ConsulStore) composeKey(topic string) string {
	return sessionKeyPrefix + topic
}
