package walletconnect

import (
	"context"
	"sync"

	"github.com/KimApps/ether/pkg/logger"
	"github.com/KimApps/ether/pkg/reporting"
	"github.com/KimApps/ether/pkg/types"
)

const featureName = "walletconnect"

// SessionStore persists established sessions so pairings survive a restart.
type SessionStore interface {
	Put(session types.Session) error
	Delete(topic string) error
	List() ([]types.Session, error)
}

// Adapter bridges the callback-based relay transport into subscriber
// streams. Connection state conflates to the latest value and replays it on
// subscribe; incoming requests do not replay — an event with no active
// subscriber is dropped, and a newer event overwrites an undelivered one.
//
// Incoming session proposals are auto-approved with a fixed namespace and a
// fixed account. A production wallet must suspend here for explicit user
// account and chain selection instead.
type Adapter struct {
	transport Transport
	store     SessionStore
	reporter  reporting.Reporter
	namespace string
	account   string

	mu        sync.Mutex
	connected bool
	nextSubID int
	connSubs  map[int]chan bool
	reqSubs   map[int]chan types.SessionRequest
}

func NewAdapter(transport Transport, store SessionStore, reporter reporting.Reporter, namespace, account string) *Adapter {
	a := &Adapter{
		transport: transport,
		store:     store,
		reporter:  reporter,
		namespace: namespace,
		account:   account,
		connSubs:  make(map[int]chan bool),
		reqSubs:   make(map[int]chan types.SessionRequest),
	}
	transport.SetHandlers(Handlers{
		OnConnectionChange: a.handleConnectionChange,
		OnSessionProposal:  a.handleSessionProposal,
		OnSessionRequest:   a.handleSessionRequest,
		OnSessionDelete:    a.handleSessionDelete,
	})
	return a
}

// RestoreSessions re-attaches every persisted session topic so requests from
// previously paired peers are received again after a restart. Call once at
// startup, before serving traffic.
func (a *Adapter) RestoreSessions(ctx context.Context) error {
	sessions, err := a.store.List()
	if err != nil {
		return err
	}

	restored := 0
	for _, session := range sessions {
		if err := a.transport.Resume(ctx, session.Topic); err != nil {
			a.reporter.ReportError(featureName, "session resume failed", err)
			continue
		}
		restored++
	}

	if restored > 0 {
		a.handleConnectionChange(true)
	}
	logger.Info("Restored persisted sessions", "persisted", len(sessions), "restored", restored)
	return nil
}

// Pair initiates the pairing handshake. Fire-and-forget: errors are reported
// to the sink, the peer's progress arrives through the connection stream.
func (a *Adapter) Pair(uri string) {
	go func() {
		if err := a.transport.Pair(context.Background(), uri); err != nil {
			a.reporter.ReportError(featureName, "pairing failed", err)
		}
	}()
}

// Approve sends an approval response, correlated by the request's topic and id.
func (a *Adapter) Approve(ctx context.Context, request types.SessionRequest, payload string) error {
	return a.transport.Respond(ctx, request, payload, "")
}

// Reject sends a rejection response for the request.
func (a *Adapter) Reject(ctx context.Context, request types.SessionRequest) error {
	return a.transport.Respond(ctx, request, "", "user rejected")
}

// SubscribeConnection returns a stream of connection-state changes, seeded
// with the current value. The cancel func releases the subscription.
func (a *Adapter) SubscribeConnection() (<-chan bool, func()) {
	ch := make(chan bool, 1)

	a.mu.Lock()
	id := a.nextSubID
	a.nextSubID++
	a.connSubs[id] = ch
	ch <- a.connected
	a.mu.Unlock()

	return ch, func() {
		a.mu.Lock()
		delete(a.connSubs, id)
		a.mu.Unlock()
	}
}

// SubscribeRequests returns a stream of incoming session requests. No
// replay; at most one undelivered request is held and a newer one
// overwrites it.
func (a *Adapter) SubscribeRequests() (<-chan types.SessionRequest, func()) {
	ch := make(chan types.SessionRequest, 1)

	a.mu.Lock()
	id := a.nextSubID
	a.nextSubID++
	a.reqSubs[id] = ch
	a.mu.Unlock()

	return ch, func() {
		a.mu.Lock()
		delete(a.reqSubs, id)
		a.mu.Unlock()
	}
}

// Connected reports the current connection state.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *Adapter) Close() error {
	return a.transport.Close()
}

func (a *Adapter) handleConnectionChange(connected bool) {
	a.mu.Lock()
	a.connected = connected
	for _, ch := range a.connSubs {
		sendLatest(ch, connected)
	}
	a.mu.Unlock()
	logger.Info("Wallet connection state changed", "connected", connected)
}

func (a *Adapter) handleSessionProposal(proposal types.SessionProposal) {
	session, err := a.transport.ApproveProposal(context.Background(), proposal, a.namespace, a.account)
	if err != nil {
		a.reporter.ReportError(featureName, "session proposal approval failed", err)
		return
	}
	if err := a.store.Put(session); err != nil {
		a.reporter.ReportError(featureName, "session persistence failed", err)
	}
	logger.Info("Session established", "topic", session.Topic, "namespace", session.Namespace)
}

func (a *Adapter) handleSessionDelete(topic string) {
	if err := a.store.Delete(topic); err != nil {
		a.reporter.ReportError(featureName, "session removal failed", err)
	}

	remaining, err := a.store.List()
	if err != nil {
		a.reporter.ReportError(featureName, "session list failed", err)
		return
	}
	if len(remaining) == 0 {
		a.handleConnectionChange(false)
	}
	logger.Info("Session deleted by peer", "topic", topic, "remaining", len(remaining))
}

func (a *Adapter) handleSessionRequest(request types.SessionRequest) {
	a.mu.Lock()
	subscribers := len(a.reqSubs)
	for _, ch := range a.reqSubs {
		sendLatest(ch, request)
	}
	a.mu.Unlock()

	if subscribers == 0 {
		logger.Warn("Session request received with no active subscriber, dropping",
			"topic", request.Topic,
			"requestID", request.RequestID,
			"method", request.Method)
	}
}

// sendLatest delivers v on a capacity-1 channel, displacing an undelivered
// older value.
func sendLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
