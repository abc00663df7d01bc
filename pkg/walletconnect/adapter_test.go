package walletconnect

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KimApps/ether/pkg/reporting"
	"github.com/KimApps/ether/pkg/types"
)

// fakeTransport drives the adapter's handlers directly, standing in for the
// relay peer.
type fakeTransport struct {
	mu       sync.Mutex
	handlers Handlers

	pairedURIs    []string
	resumedTopics []string
	responses     []responseEnvelope
	pairErr       error
	resumeErr     error
}

func (f *fakeTransport) SetHandlers(h Handlers) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = h
}

func (f *fakeTransport) Pair(ctx context.Context, uri string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pairErr != nil {
		return f.pairErr
	}
	f.pairedURIs = append(f.pairedURIs, uri)
	return nil
}

func (f *fakeTransport) Resume(ctx context.Context, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resumeErr != nil {
		return f.resumeErr
	}
	f.resumedTopics = append(f.resumedTopics, topic)
	return nil
}

func (f *fakeTransport) ApproveProposal(ctx context.Context, proposal types.SessionProposal, namespace, account string) (types.Session, error) {
	session := types.Session{
		Topic:     proposal.Topic,
		PeerID:    proposal.ProposerID,
		Namespace: namespace,
		Account:   account,
	}
	f.fireConnection(true)
	return session, nil
}

func (f *fakeTransport) Respond(ctx context.Context, request types.SessionRequest, payload string, errorReason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, responseEnvelope{
		RequestID: request.RequestID,
		Payload:   payload,
		Error:     errorReason,
	})
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) fireConnection(connected bool) {
	f.mu.Lock()
	h := f.handlers.OnConnectionChange
	f.mu.Unlock()
	if h != nil {
		h(connected)
	}
}

func (f *fakeTransport) fireProposal(p types.SessionProposal) {
	f.mu.Lock()
	h := f.handlers.OnSessionProposal
	f.mu.Unlock()
	if h != nil {
		h(p)
	}
}

func (f *fakeTransport) fireRequest(r types.SessionRequest) {
	f.mu.Lock()
	h := f.handlers.OnSessionRequest
	f.mu.Unlock()
	if h != nil {
		h(r)
	}
}

func (f *fakeTransport) fireDelete(topic string) {
	f.mu.Lock()
	h := f.handlers.OnSessionDelete
	f.mu.Unlock()
	if h != nil {
		h(topic)
	}
}

func (f *fakeTransport) sentResponses() []responseEnvelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]responseEnvelope, len(f.responses))
	copy(out, f.responses)
	return out
}

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]types.Session
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[string]types.Session)}
}

func (s *memorySessionStore) Put(session types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Topic] = session
	return nil
}

func (s *memorySessionStore) Delete(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, topic)
	return nil
}

func (s *memorySessionStore) List() ([]types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out, nil
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeTransport, *memorySessionStore) {
	t.Helper()
	transport := &fakeTransport{}
	store := newMemorySessionStore()
	adapter := NewAdapter(transport, store, reporting.NewLogReporter(), "eip155:1", "0xmock")
	return adapter, transport, store
}

func TestSubscribeConnection_ReplaysCurrentValue(t *testing.T) {
	adapter, transport, _ := newTestAdapter(t)

	transport.fireConnection(true)

	ch, cancel := adapter.SubscribeConnection()
	defer cancel()

	select {
	case connected := <-ch:
		assert.True(t, connected, "subscriber must see the current value immediately")
	case <-time.After(time.Second):
		t.Fatal("no initial connection value delivered")
	}

	transport.fireConnection(false)
	select {
	case connected := <-ch:
		assert.False(t, connected)
	case <-time.After(time.Second):
		t.Fatal("connection change not delivered")
	}
}

func TestSubscribeConnection_ConflatesToLatest(t *testing.T) {
	adapter, transport, _ := newTestAdapter(t)

	ch, cancel := adapter.SubscribeConnection()
	defer cancel()

	// Subscriber not draining; rapid changes collapse to the newest.
	transport.fireConnection(true)
	transport.fireConnection(false)
	transport.fireConnection(true)

	var last bool
	deadline := time.After(time.Second)
	for {
		select {
		case last = <-ch:
			if last {
				assert.True(t, adapter.Connected())
				return
			}
		case <-deadline:
			t.Fatal("latest connection value never observed")
		}
	}
}

func TestSessionProposal_AutoApprovedAndPersisted(t *testing.T) {
	adapter, transport, store := newTestAdapter(t)

	transport.fireProposal(types.SessionProposal{
		Topic:      "topic-1",
		ProposerID: "dapp-1",
	})

	require.Eventually(t, func() bool {
		sessions, err := store.List()
		require.NoError(t, err)
		return len(sessions) == 1
	}, time.Second, time.Millisecond)

	sessions, _ := store.List()
	assert.Equal(t, "topic-1", sessions[0].Topic)
	assert.Equal(t, "eip155:1", sessions[0].Namespace)
	assert.Equal(t, "0xmock", sessions[0].Account)
	assert.True(t, adapter.Connected(), "settling a session must mark the wallet connected")
}

func TestSubscribeRequests_LatestWins(t *testing.T) {
	adapter, transport, _ := newTestAdapter(t)

	ch, cancel := adapter.SubscribeRequests()
	defer cancel()

	// Two requests before the subscriber reads: the second overwrites the
	// first.
	transport.fireRequest(types.SessionRequest{Topic: "t", RequestID: 1, Method: "personal_sign"})
	transport.fireRequest(types.SessionRequest{Topic: "t", RequestID: 2, Method: "personal_sign"})

	select {
	case req := <-ch:
		assert.Equal(t, int64(2), req.RequestID)
	case <-time.After(time.Second):
		t.Fatal("no request delivered")
	}

	select {
	case req := <-ch:
		t.Fatalf("unexpected second delivery: %+v", req)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeRequests_DroppedWithoutSubscriber(t *testing.T) {
	adapter, transport, _ := newTestAdapter(t)

	// No subscriber: must not block, must not queue.
	transport.fireRequest(types.SessionRequest{Topic: "t", RequestID: 1})

	ch, cancel := adapter.SubscribeRequests()
	defer cancel()

	select {
	case req := <-ch:
		t.Fatalf("request from before subscription must not replay: %+v", req)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestApproveReject_CorrelatedResponses(t *testing.T) {
	adapter, transport, _ := newTestAdapter(t)
	ctx := context.Background()

	req := types.SessionRequest{Topic: "t", RequestID: 7, Method: "personal_sign"}

	require.NoError(t, adapter.Approve(ctx, req, "sig-payload"))
	require.NoError(t, adapter.Reject(ctx, req))

	responses := transport.sentResponses()
	require.Len(t, responses, 2)
	assert.Equal(t, int64(7), responses[0].RequestID)
	assert.Equal(t, "sig-payload", responses[0].Payload)
	assert.Empty(t, responses[0].Error)
	assert.Equal(t, int64(7), responses[1].RequestID)
	assert.Equal(t, "user rejected", responses[1].Error)
}

func TestRestoreSessions_ResumesPersistedTopics(t *testing.T) {
	adapter, transport, store := newTestAdapter(t)

	require.NoError(t, store.Put(types.Session{Topic: "topic-1", PeerID: "dapp-1"}))
	require.NoError(t, store.Put(types.Session{Topic: "topic-2", PeerID: "dapp-2"}))

	require.NoError(t, adapter.RestoreSessions(context.Background()))

	transport.mu.Lock()
	resumed := append([]string(nil), transport.resumedTopics...)
	transport.mu.Unlock()
	assert.ElementsMatch(t, []string{"topic-1", "topic-2"}, resumed)
	assert.True(t, adapter.Connected(), "restored sessions must mark the wallet connected")
}

func TestRestoreSessions_EmptyStore(t *testing.T) {
	adapter, transport, _ := newTestAdapter(t)

	require.NoError(t, adapter.RestoreSessions(context.Background()))

	transport.mu.Lock()
	resumed := len(transport.resumedTopics)
	transport.mu.Unlock()
	assert.Zero(t, resumed)
	assert.False(t, adapter.Connected())
}

func TestRestoreSessions_ResumeFailureSkipsTopic(t *testing.T) {
	adapter, transport, store := newTestAdapter(t)
	transport.resumeErr = context.DeadlineExceeded

	require.NoError(t, store.Put(types.Session{Topic: "topic-1"}))
	require.NoError(t, adapter.RestoreSessions(context.Background()))

	assert.False(t, adapter.Connected(), "a failed resume must not claim connectivity")
}

func TestSessionDelete_RemovesFromStoreAndDisconnects(t *testing.T) {
	adapter, transport, store := newTestAdapter(t)

	require.NoError(t, store.Put(types.Session{Topic: "topic-1"}))
	transport.fireConnection(true)
	require.True(t, adapter.Connected())

	transport.fireDelete("topic-1")

	sessions, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.False(t, adapter.Connected(), "losing the last session must drop the connection state")
}

func TestSessionDelete_KeepsConnectionWhileSessionsRemain(t *testing.T) {
	adapter, transport, store := newTestAdapter(t)

	require.NoError(t, store.Put(types.Session{Topic: "topic-1"}))
	require.NoError(t, store.Put(types.Session{Topic: "topic-2"}))
	transport.fireConnection(true)

	transport.fireDelete("topic-1")

	sessions, err := store.List()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "topic-2", sessions[0].Topic)
	assert.True(t, adapter.Connected())
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	adapter, transport, _ := newTestAdapter(t)

	ch, cancel := adapter.SubscribeRequests()
	cancel()

	transport.fireRequest(types.SessionRequest{Topic: "t", RequestID: 1})

	select {
	case req := <-ch:
		t.Fatalf("delivery after unsubscribe: %+v", req)
	case <-time.After(50 * time.Millisecond):
	}
}
