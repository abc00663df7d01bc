package messaging

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/KimApps/ether/pkg/logger"
)

// PubSub is lightweight core-NATS publish/subscribe, used for transient
// relay traffic that must not be persisted or redelivered.
type PubSub interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(msg *nats.Msg)) (Subscription, error)
}

// Subscription is the unsubscribe handle for an active subscription.
type Subscription interface {
	Unsubscribe() error
}

type natsPubSub struct {
	conn *nats.Conn
}

func NewNATSPubSub(conn *nats.Conn) PubSub {
	return &natsPubSub{conn: conn}
}

func (p *natsPubSub) Publish(subject string, data []byte) error {
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (p *natsPubSub) Subscribe(subject string, handler func(msg *nats.Msg)) (Subscription, error) {
	sub, err := p.conn.Subscribe(subject, handler)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	logger.Debug("Subscribed", "subject", subject)
	return sub, nil
}
