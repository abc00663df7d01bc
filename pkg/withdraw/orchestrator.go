package withdraw

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/KimApps/ether/pkg/coordinator"
	"github.com/KimApps/ether/pkg/logger"
	"github.com/KimApps/ether/pkg/metrics"
	"github.com/KimApps/ether/pkg/reporting"
	"github.com/KimApps/ether/pkg/types"
)

const (
	featureName = "withdraw"

	// Fixed message for a clean backend rejection of the submission.
	errMsgSubmissionRejected = "withdrawal was rejected, please try again"
)

// Quoter issues a quotation for a requested amount.
type Quoter interface {
	GetQuotation(ctx context.Context, amount string) (types.Quotation, error)
}

// Submitter submits a signed withdrawal. A false return is a clean backend
// rejection; transport failures come back as errors.
type Submitter interface {
	SubmitWithdrawal(ctx context.Context, quotationID, signature string) (bool, error)
}

// State is the observable snapshot of the withdrawal flow.
type State struct {
	Amount  string `json:"amount"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// EventKind discriminates one-shot flow signals.
type EventKind string

const (
	EventValidationFailed  EventKind = "validation_failed"
	EventNavigateToSigning EventKind = "navigate_to_signing"
	EventSuccess           EventKind = "success"
	EventCancelled         EventKind = "cancelled"
)

// Event is a one-shot signal emitted on flow transitions.
type Event struct {
	Kind          EventKind           `json:"kind"`
	Challenge     string              `json:"challenge,omitempty"`
	OperationType types.OperationType `json:"operation_type,omitempty"`
	Message       string              `json:"message,omitempty"`
}

// Orchestrator owns the withdrawal flow: validate the amount, fetch a
// quotation, park on the coordinator until the signing flow resolves the
// challenge, then submit. Steps run strictly sequentially for one attempt;
// concurrent attempts are refused.
type Orchestrator struct {
	quoter    Quoter
	submitter Submitter
	broker    *coordinator.Coordinator
	reporter  reporting.Reporter

	mu       sync.Mutex
	state    State
	inFlight bool

	events chan Event
}

func New(quoter Quoter, submitter Submitter, broker *coordinator.Coordinator, reporter reporting.Reporter) *Orchestrator {
	return &Orchestrator{
		quoter:    quoter,
		submitter: submitter,
		broker:    broker,
		reporter:  reporter,
		events:    make(chan Event, 8),
	}
}

// SetAmount sanitizes the input to digits and decimal separators and stores
// it. Non-digit, non-separator characters are stripped; multiple separators
// pass through and are rejected later at validation time.
func (o *Orchestrator) SetAmount(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Amount = sanitizeAmount(text)
}

func sanitizeAmount(text string) string {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// State returns the current flow snapshot.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Events exposes the one-shot signal stream. Signals are dropped if the
// buffer is full rather than blocking the flow.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Withdraw runs one withdrawal attempt to completion. Re-entry while an
// attempt is in flight is ignored. Run it on its own goroutine; ctx
// cancellation aborts the attempt at any suspension point.
func (o *Orchestrator) Withdraw(ctx context.Context) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		logger.Debug("Withdrawal already in flight, ignoring request")
		return
	}
	o.inFlight = true
	amount := o.state.Amount
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	if !validAmount(amount) {
		o.emit(Event{Kind: EventValidationFailed, Message: "enter a valid amount"})
		metrics.Withdrawals.WithLabelValues("validation_failed").Inc()
		return
	}

	o.update(func(s *State) {
		s.Loading = true
		s.Error = ""
	})

	quotation, err := o.quoter.GetQuotation(ctx, amount)
	if err != nil {
		o.reporter.ReportError(featureName, "quotation fetch failed", err)
		o.update(func(s *State) {
			s.Loading = false
			s.Error = err.Error()
		})
		metrics.Withdrawals.WithLabelValues("quote_failed").Inc()
		return
	}

	// Hand off to the signing flow. Loading drops immediately so the flow
	// stays usable if the user backs out of signing without completing.
	o.emit(Event{
		Kind:          EventNavigateToSigning,
		Challenge:     quotation.Challenge,
		OperationType: types.OperationWithdrawal,
	})
	o.update(func(s *State) { s.Loading = false })

	result, err := o.broker.AwaitResult(ctx, types.SigningRequest{
		Challenge:     quotation.Challenge,
		OperationType: types.OperationWithdrawal,
	})
	if err != nil {
		// Host cancelled mid-flow; the broker slot is already cleaned up.
		logger.Debug("Withdrawal await aborted", "challenge", quotation.Challenge, "error", err)
		o.update(func(s *State) { s.Loading = false })
		metrics.Withdrawals.WithLabelValues("aborted").Inc()
		return
	}

	switch {
	case result.IsSigned():
		o.submit(ctx, quotation, result.Signature)

	case result.IsCancelled():
		// Keep the amount so the user can retry without re-entering it.
		o.update(func(s *State) { s.Loading = false })
		o.emit(Event{Kind: EventCancelled, Message: "withdrawal cancelled"})
		metrics.Withdrawals.WithLabelValues("cancelled").Inc()

	default:
		o.update(func(s *State) {
			s.Loading = false
			s.Error = result.ErrorReason
		})
		metrics.Withdrawals.WithLabelValues("signing_failed").Inc()
	}
}

func (o *Orchestrator) submit(ctx context.Context, quotation types.Quotation, signature string) {
	o.update(func(s *State) { s.Loading = true })

	accepted, err := o.submitter.SubmitWithdrawal(ctx, quotation.ID, signature)
	if err != nil {
		o.reporter.ReportError(featureName, "withdrawal submission failed", err)
		o.update(func(s *State) {
			s.Loading = false
			s.Error = err.Error()
		})
		metrics.Withdrawals.WithLabelValues("submit_failed").Inc()
		return
	}
	if !accepted {
		o.update(func(s *State) {
			s.Loading = false
			s.Error = errMsgSubmissionRejected
		})
		metrics.Withdrawals.WithLabelValues("rejected").Inc()
		return
	}

	o.update(func(s *State) {
		s.Loading = false
		s.Amount = ""
	})
	o.emit(Event{Kind: EventSuccess, Message: "withdrawal submitted"})
	metrics.Withdrawals.WithLabelValues("success").Inc()
}

func validAmount(amount string) bool {
	if amount == "" {
		return false
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return false
	}
	return d.IsPositive()
}

func (o *Orchestrator) update(fn func(s *State)) {
	o.mu.Lock()
	fn(&o.state)
	o.mu.Unlock()
}

func (o *Orchestrator) emit(e Event) {
	select {
	case o.events <- e:
	default:
		logger.Warn("Withdrawal event buffer full, dropping", "kind", e.Kind)
	}
}
