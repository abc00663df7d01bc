package service

import (
	"context"
	"sync"

	"github.com/KimApps/ether/pkg/approval"
	"github.com/KimApps/ether/pkg/coordinator"
	"github.com/KimApps/ether/pkg/logger"
	"github.com/KimApps/ether/pkg/types"
)

// SessionFactory builds a fresh approval session.
type SessionFactory func() *approval.Session

// Dispatcher listens for signing request notifications from the coordinator
// and maintains the single active approval session, the way a navigation
// layer would present the signing screen. A new request supersedes the
// current session; superseded and dismissed sessions are closed, which
// guarantees their broker resolution.
type Dispatcher struct {
	broker     *coordinator.Coordinator
	newSession SessionFactory

	mu     sync.Mutex
	active *approval.Session
}

func NewDispatcher(broker *coordinator.Coordinator, newSession SessionFactory) *Dispatcher {
	return &Dispatcher{
		broker:     broker,
		newSession: newSession,
	}
}

// Run blocks until ctx is cancelled, opening an approval session for each
// incoming signing request.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case req := <-d.broker.Requests():
			d.open(ctx, req)
		case <-ctx.Done():
			d.closeActive(nil)
			return
		}
	}
}

// Active returns the current approval session, or nil.
func (d *Dispatcher) Active() *approval.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *Dispatcher) open(ctx context.Context, req types.SigningRequest) {
	session := d.newSession()
	session.Init(req.Challenge, req.OperationType)

	d.mu.Lock()
	previous := d.active
	d.active = session
	d.mu.Unlock()

	if previous != nil {
		// Closing resolves the superseded challenge as cancelled.
		previous.Close()
	}

	logger.Info("Approval session opened",
		"challenge", req.Challenge,
		"operationType", req.OperationType)

	go func() {
		select {
		case <-session.Done():
			session.Close()
			d.closeActive(session)
		case <-ctx.Done():
			session.Close()
		}
	}()
}

// closeActive clears the active slot. With a non-nil session the slot is
// only cleared if it still holds that session.
func (d *Dispatcher) closeActive(session *approval.Session) {
	d.mu.Lock()
	current := d.active
	if session == nil || current == session {
		d.active = nil
	}
	d.mu.Unlock()

	if session == nil && current != nil {
		current.Close()
	}
}
