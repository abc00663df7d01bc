package walletconnect

import (
	"context"

	"github.com/KimApps/ether/pkg/types"
)

// Handlers receive transport callbacks. They are invoked from the
// transport's own receive goroutine; implementations must not block.
type Handlers struct {
	OnConnectionChange func(connected bool)
	OnSessionProposal  func(proposal types.SessionProposal)
	OnSessionRequest   func(request types.SessionRequest)
	OnSessionDelete    func(topic string)
}

// Transport is the relay protocol peer: pairing handshake, session
// establishment, and correlated request/response delivery. Implementations
// report incoming traffic through Handlers registered before Pair.
type Transport interface {
	// SetHandlers registers the callback set. Must be called before Pair.
	SetHandlers(h Handlers)

	// Pair initiates the pairing handshake for the topic encoded in uri.
	Pair(ctx context.Context, uri string) error

	// Resume re-attaches to an already established session topic without
	// re-running the pairing handshake, e.g. after a restart.
	Resume(ctx context.Context, topic string) error

	// ApproveProposal settles an incoming session proposal with the given
	// namespace and account, establishing the session.
	ApproveProposal(ctx context.Context, proposal types.SessionProposal, namespace, account string) (types.Session, error)

	// Respond sends a correlated response for a session request. A non-nil
	// errorReason rejects the request.
	Respond(ctx context.Context, request types.SessionRequest, payload string, errorReason string) error

	Close() error
}
