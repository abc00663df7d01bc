package coordinator

import (
	"context"
	"sync"

	"github.com/KimApps/ether/pkg/logger"
	"github.com/KimApps/ether/pkg/metrics"
	"github.com/KimApps/ether/pkg/types"
)

// Coordinator is a single-use, challenge-addressed promise broker. The
// withdrawal flow parks in AwaitResult until the approval flow calls Resolve
// with the same challenge. It is the only piece of state shared between the
// two flows and must outlive both; construct one per process and inject it
// by reference.
//
// Challenges are assumed globally unique per in-flight request. Two
// concurrent AwaitResult calls for the same challenge are a caller bug: the
// second registration overwrites the first slot and the first caller only
// returns on cancellation.
type Coordinator struct {
	mu      sync.Mutex
	pending map[string]chan types.SigningResult

	requests chan types.SigningRequest
}

func New() *Coordinator {
	return &Coordinator{
		pending:  make(map[string]chan types.SigningResult),
		requests: make(chan types.SigningRequest),
	}
}

// Requests exposes newly registered signing requests so a dispatch layer can
// open an approval session. Delivery is best-effort: if no receiver is
// active at registration time the notification is dropped, not queued. A
// stale request must never resurrect an approval prompt after the fact.
func (c *Coordinator) Requests() <-chan types.SigningRequest {
	return c.requests
}

// AwaitResult registers a pending slot for req.Challenge, announces the
// request, and blocks until Resolve is called for the same challenge or ctx
// is cancelled. The slot is removed on every exit path; cancellation
// propagates as ctx.Err(), never as a fabricated result.
func (c *Coordinator) AwaitResult(ctx context.Context, req types.SigningRequest) (types.SigningResult, error) {
	slot := make(chan types.SigningResult, 1)

	c.mu.Lock()
	c.pending[req.Challenge] = slot
	c.mu.Unlock()
	metrics.PendingSignings.Inc()

	defer func() {
		c.mu.Lock()
		if cur, ok := c.pending[req.Challenge]; ok && cur == slot {
			delete(c.pending, req.Challenge)
		}
		c.mu.Unlock()
		metrics.PendingSignings.Dec()
	}()

	select {
	case c.requests <- req:
	default:
		logger.Warn("No active listener for signing request, dropping notification",
			"challenge", req.Challenge,
			"operationType", req.OperationType)
	}

	select {
	case res := <-slot:
		metrics.SigningResolutions.WithLabelValues(string(res.Status)).Inc()
		return res, nil
	case <-ctx.Done():
		logger.Debug("Await cancelled before resolution", "challenge", req.Challenge)
		return types.SigningResult{}, ctx.Err()
	}
}

// Resolve completes the pending slot for challenge, if one exists. Unknown
// challenges (already resolved, cancelled, or never registered) are a silent
// no-op. The slot is removed before delivery, so the first resolution wins
// and later calls fall through to the no-op path.
func (c *Coordinator) Resolve(challenge string, res types.SigningResult) {
	c.mu.Lock()
	slot, ok := c.pending[challenge]
	if ok {
		delete(c.pending, challenge)
	}
	c.mu.Unlock()

	if !ok {
		metrics.UnknownResolves.Inc()
		logger.Debug("Resolve for unknown challenge ignored", "challenge", challenge)
		return
	}

	// Buffered slot: delivery never blocks even if the awaiter is
	// between its registration and its receive.
	slot <- res
}

// PendingCount reports the number of unresolved slots.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
