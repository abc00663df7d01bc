package approval

import (
	"context"
	"sync"

	"github.com/KimApps/ether/pkg/coordinator"
	"github.com/KimApps/ether/pkg/event"
	"github.com/KimApps/ether/pkg/logger"
	"github.com/KimApps/ether/pkg/reporting"
	"github.com/KimApps/ether/pkg/signer"
	"github.com/KimApps/ether/pkg/types"
)

const featureName = "approval"

// WalletAdapter is the slice of the wallet-connection adapter the session
// consumes. Satisfied by *walletconnect.Adapter.
type WalletAdapter interface {
	Pair(uri string)
	Approve(ctx context.Context, request types.SessionRequest, payload string) error
	Reject(ctx context.Context, request types.SessionRequest) error
	Connected() bool
	SubscribeConnection() (<-chan bool, func())
	SubscribeRequests() (<-chan types.SessionRequest, func())
}

// ResultPublisher receives the outcome of every resolved signing attempt,
// e.g. for the wallet event stream. Implementations must not block.
type ResultPublisher interface {
	PublishResult(e event.SigningResultEvent)
}

// State is the observable snapshot of the approval flow.
type State struct {
	Challenge        string                 `json:"challenge"`
	OperationType    types.OperationType    `json:"operation_type"`
	Loading          bool                   `json:"loading"`
	Error            string                 `json:"error,omitempty"`
	WalletConnected  bool                   `json:"wallet_connected"`
	ShowPairingInput bool                   `json:"show_pairing_input"`
	AwaitingApproval bool                   `json:"awaiting_approval"`
	PendingRequest   *types.SessionRequest  `json:"pending_request,omitempty"`
}

// Session owns one approval flow for one challenge. It supports two
// independent approval paths: local-credential signing, and remote approval
// through the wallet adapter. Exactly one broker resolution happens per
// challenge, on exactly one of SignLocally, Cancel, ApprovePending, or the
// Close teardown hook — no path may end the session without resolving, or
// the withdrawing task hangs forever.
type Session struct {
	broker      *coordinator.Coordinator
	credSigner  signer.CredentialSigner
	tokenSigner signer.Signer
	adapter     WalletAdapter
	reporter    reporting.Reporter
	publisher   ResultPublisher

	mu       sync.Mutex
	state    State
	resolved bool
	closed   bool

	done      chan struct{}
	stopWatch chan struct{}
	watchOnce sync.Once
}

func NewSession(
	broker *coordinator.Coordinator,
	credSigner signer.CredentialSigner,
	tokenSigner signer.Signer,
	adapter WalletAdapter,
	reporter reporting.Reporter,
	publisher ResultPublisher,
) *Session {
	return &Session{
		broker:      broker,
		credSigner:  credSigner,
		tokenSigner: tokenSigner,
		adapter:     adapter,
		reporter:    reporter,
		publisher:   publisher,
		done:        make(chan struct{}),
		stopWatch:   make(chan struct{}),
	}
}

// Init seeds the session and starts watching the adapter streams.
// Idempotent per (challenge, operationType) pair; a different pair resets
// the session for the new request.
func (s *Session) Init(challenge string, operationType types.OperationType) {
	s.mu.Lock()
	if s.state.Challenge == challenge && s.state.OperationType == operationType {
		s.mu.Unlock()
		return
	}
	s.state = State{
		Challenge:       challenge,
		OperationType:   operationType,
		WalletConnected: s.adapter.Connected(),
	}
	s.resolved = false
	s.mu.Unlock()

	s.watchOnce.Do(func() { go s.watchAdapter() })
}

// Done is closed when the session asks to be dismissed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns the current flow snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SignLocally runs the local-credential approval path. On success the broker
// is resolved with the signature and the session closes; on failure the
// error is surfaced in state AND the broker is resolved with the failure —
// both actions are mandatory.
func (s *Session) SignLocally(ctx context.Context) {
	s.mu.Lock()
	if s.state.Loading || s.state.Challenge == "" {
		s.mu.Unlock()
		return
	}
	s.state.Loading = true
	challenge := s.state.Challenge
	operationType := s.state.OperationType
	s.mu.Unlock()

	result := s.credSigner.Sign(ctx, challenge, operationType)

	if result.IsSigned() {
		s.mu.Lock()
		s.state.Loading = false
		s.mu.Unlock()
		s.resolveOnce(result)
		s.emitClose()
		return
	}

	reason := result.ErrorReason
	s.reporter.ReportError(featureName, "local signing failed", errString(reason))
	s.mu.Lock()
	s.state.Loading = false
	s.state.Error = reason
	s.mu.Unlock()
	s.resolveOnce(types.Failed(reason))
}

// Cancel resolves the broker with a cancellation and closes the session.
// Every user-initiated back/close gesture must route through here.
func (s *Session) Cancel() {
	s.resolveOnce(types.Cancelled())
	s.emitClose()
}

// ConnectWallet reveals the pairing input. Pure state transition.
func (s *Session) ConnectWallet() {
	s.mu.Lock()
	s.state.ShowPairingInput = true
	s.mu.Unlock()
}

// Pair forwards the pairing URI to the adapter. Fire-and-forget; connection
// progress arrives through the adapter's connection stream.
func (s *Session) Pair(uri string) {
	s.adapter.Pair(uri)
	s.mu.Lock()
	s.state.ShowPairingInput = false
	s.state.AwaitingApproval = true
	s.mu.Unlock()
}

// RejectPending rejects the pending remote request, if any, and always
// clears the slot.
func (s *Session) RejectPending(ctx context.Context) {
	s.mu.Lock()
	pending := s.state.PendingRequest
	s.state.PendingRequest = nil
	s.mu.Unlock()

	if pending == nil {
		return
	}
	if err := s.adapter.Reject(ctx, *pending); err != nil {
		s.reporter.ReportError(featureName, "rejecting session request failed", err)
	}
}

// ApprovePending approves the pending remote request: produce an
// authorization token, respond to the peer, resolve the broker, close. On
// any failure the broker is resolved with the error and the session stays
// open so the user can see what happened.
func (s *Session) ApprovePending(ctx context.Context) {
	s.mu.Lock()
	if s.state.Loading {
		s.mu.Unlock()
		return
	}
	pending := s.state.PendingRequest
	challenge := s.state.Challenge
	operationType := s.state.OperationType
	if pending == nil || challenge == "" {
		s.mu.Unlock()
		return
	}
	s.state.Loading = true
	s.mu.Unlock()

	fail := func(err error) {
		s.reporter.ReportError(featureName, "wallet approval failed", err)
		s.mu.Lock()
		s.state.Loading = false
		s.state.Error = err.Error()
		s.mu.Unlock()
		s.resolveOnce(types.Failed(err.Error()))
	}

	token, err := s.tokenSigner.Sign(challenge, operationType)
	if err != nil {
		fail(err)
		return
	}
	if err := s.adapter.Approve(ctx, *pending, token); err != nil {
		fail(err)
		return
	}

	s.resolveOnce(types.Signed(token))

	s.mu.Lock()
	s.state.Loading = false
	s.state.PendingRequest = nil
	s.state.Challenge = ""
	s.mu.Unlock()

	s.emitClose()
}

// Close is the mandatory teardown hook. It stops the stream watcher and, if
// no resolution has happened yet, resolves the broker with a cancellation so
// the awaiting withdrawal flow is released on any teardown path, not just an
// explicit back gesture.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopWatch)
	s.resolveOnce(types.Cancelled())
	s.emitClose()
}

// resolveOnce resolves the broker for the current challenge at most once per
// session lifetime.
func (s *Session) resolveOnce(result types.SigningResult) {
	s.mu.Lock()
	if s.resolved {
		s.mu.Unlock()
		return
	}
	s.resolved = true
	challenge := s.state.Challenge
	operationType := s.state.OperationType
	s.mu.Unlock()

	if challenge == "" {
		return
	}
	s.broker.Resolve(challenge, result)
	s.publishResult(challenge, operationType, result)
}

func (s *Session) publishResult(challenge string, operationType types.OperationType, result types.SigningResult) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishResult(event.SigningResultEvent{
		Challenge:     challenge,
		OperationType: operationType,
		Status:        result.Status,
		Signature:     result.Signature,
		ErrorReason:   result.ErrorReason,
	})
}

func (s *Session) emitClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// watchAdapter mirrors the adapter streams into session state for the
// session's lifetime.
func (s *Session) watchAdapter() {
	connCh, cancelConn := s.adapter.SubscribeConnection()
	defer cancelConn()
	reqCh, cancelReq := s.adapter.SubscribeRequests()
	defer cancelReq()

	for {
		select {
		case connected, ok := <-connCh:
			if !ok {
				return
			}
			s.mu.Lock()
			s.state.WalletConnected = connected
			// Any connection change supersedes the pairing wait state.
			s.state.AwaitingApproval = false
			s.mu.Unlock()

		case request, ok := <-reqCh:
			if !ok {
				return
			}
			s.mu.Lock()
			// Only one pending request is tracked; a newer one
			// overwrites an unhandled older one.
			s.state.PendingRequest = &request
			s.mu.Unlock()
			logger.Info("Session request pending approval",
				"topic", request.Topic,
				"requestID", request.RequestID,
				"method", request.Method)

		case <-s.stopWatch:
			return
		}
	}
}

type stringError string

func (e stringError) Error() string { return string(e) }

func errString(msg string) error { return stringError(msg) }
