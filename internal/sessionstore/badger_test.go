package sessionstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KimApps/ether/pkg/types"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(BadgerConfig{DBPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore_PutListDelete(t *testing.T) {
	store := newTestBadgerStore(t)

	require.NoError(t, store.Put(types.Session{
		Topic:     "topic-1",
		PeerID:    "dapp-1",
		Namespace: "eip155:1",
		Account:   "0xabc",
	}))
	require.NoError(t, store.Put(types.Session{Topic: "topic-2", PeerID: "dapp-2"}))

	sessions, err := store.List()
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	require.NoError(t, store.Delete("topic-1"))

	sessions, err = store.List()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "topic-2", sessions[0].Topic)
}

func TestBadgerStore_PutOverwritesSameTopic(t *testing.T) {
	store := newTestBadgerStore(t)

	require.NoError(t, store.Put(types.Session{Topic: "topic-1", Account: "0xold"}))
	require.NoError(t, store.Put(types.Session{Topic: "topic-1", Account: "0xnew"}))

	sessions, err := store.List()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "0xnew", sessions[0].Account)
}

func TestBadgerStore_DeleteUnknownTopic(t *testing.T) {
	store := newTestBadgerStore(t)
	assert.NoError(t, store.Delete("missing"))
}
