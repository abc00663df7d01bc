package service

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/KimApps/ether/pkg/event"
	"github.com/KimApps/ether/pkg/logger"
	"github.com/KimApps/ether/pkg/messaging"
)

const auditLogCapacity = 64

// AuditConsumer drains the signing-result work queue and keeps a bounded
// in-memory log of outcomes for inspection over the API. It is the in-process
// consumer of the wallet stream; external audit systems attach their own
// durable consumers to the same subjects.
type AuditConsumer struct {
	queue messaging.MessageQueue

	mu      sync.Mutex
	entries []event.SigningResultEvent
}

func NewAuditConsumer(queue messaging.MessageQueue) *AuditConsumer {
	return &AuditConsumer{queue: queue}
}

// Start attaches the consumer to the queue. Delivery runs on the queue's own
// goroutines until the queue is closed.
func (c *AuditConsumer) Start() error {
	return c.queue.Dequeue(event.SigningResultTopic, c.handle)
}

func (c *AuditConsumer) handle(message []byte) error {
	var e event.SigningResultEvent
	if err := json.Unmarshal(message, &e); err != nil {
		// Malformed payloads never become parseable; terminate instead of
		// redelivering.
		return fmt.Errorf("%w: unmarshal signing result: %s", messaging.ErrPermanent, err)
	}

	c.mu.Lock()
	c.entries = append(c.entries, e)
	if len(c.entries) > auditLogCapacity {
		c.entries = c.entries[len(c.entries)-auditLogCapacity:]
	}
	c.mu.Unlock()

	logger.Info("Signing outcome recorded",
		"challenge", e.Challenge,
		"operationType", e.OperationType,
		"status", e.Status)
	return nil
}

// Recent returns a copy of the recorded outcomes, oldest first.
func (c *AuditConsumer) Recent() []event.SigningResultEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]event.SigningResultEvent, len(c.entries))
	copy(out, c.entries)
	return out
}
