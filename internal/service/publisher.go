package service

import (
	"encoding/json"

	"github.com/KimApps/ether/pkg/event"
	"github.com/KimApps/ether/pkg/logger"
	"github.com/KimApps/ether/pkg/messaging"
)

// ResultQueuePublisher forwards signing outcomes to the wallet event stream
// so external consumers (audit, notification) can observe them. Publish
// failures are logged, never propagated: the signing flow must not depend on
// the event stream being up.
type ResultQueuePublisher struct {
	queue messaging.MessageQueue
}

func NewResultQueuePublisher(queue messaging.MessageQueue) *ResultQueuePublisher {
	return &ResultQueuePublisher{queue: queue}
}

func (p *ResultQueuePublisher) PublishResult(e event.SigningResultEvent) {
	data, err := json.Marshal(e)
	if err != nil {
		logger.Error("Failed to marshal signing result event", err, "challenge", e.Challenge)
		return
	}

	err = p.queue.Enqueue(event.FormatSigningResultTopic(e.Challenge), data, &messaging.EnqueueOptions{
		IdempotentKey: e.Challenge,
	})
	if err != nil {
		logger.Error("Failed to enqueue signing result event", err, "challenge", e.Challenge)
	}
}
