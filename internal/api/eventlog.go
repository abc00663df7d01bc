package api

import (
	"context"
	"sync"

	"github.com/KimApps/ether/pkg/withdraw"
)

const eventLogCapacity = 32

// EventLog drains the withdrawal one-shot signal stream into a bounded
// in-memory log so HTTP clients can poll for flow transitions. Oldest
// entries are discarded first.
type EventLog struct {
	mu      sync.Mutex
	entries []withdraw.Event
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

// Collect consumes events until ctx is cancelled. Run on its own goroutine.
func (l *EventLog) Collect(ctx context.Context, events <-chan withdraw.Event) {
	for {
		select {
		case e := <-events:
			l.append(e)
		case <-ctx.Done():
			return
		}
	}
}

func (l *EventLog) append(e withdraw.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if len(l.entries) > eventLogCapacity {
		l.entries = l.entries[len(l.entries)-eventLogCapacity:]
	}
}

// Recent returns a copy of the logged events, oldest first.
func (l *EventLog) Recent() []withdraw.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]withdraw.Event, len(l.entries))
	copy(out, l.entries)
	return out
}
