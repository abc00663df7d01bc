package walletconnect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/KimApps/ether/pkg/logger"
	"github.com/KimApps/ether/pkg/messaging"
	"github.com/KimApps/ether/pkg/types"
)

// Relay subjects, rooted at a configurable prefix:
//
//	{prefix}.{topic}.pair      wallet -> peer   pairing ready signal
//	{prefix}.{topic}.proposal  peer -> wallet   session proposal
//	{prefix}.{topic}.settle    wallet -> peer   proposal approval
//	{prefix}.{topic}.request   peer -> wallet   session request
//	{prefix}.{topic}.response  wallet -> peer   correlated response
//	{prefix}.{topic}.delete    peer -> wallet   session teardown
const (
	pairSegment     = "pair"
	proposalSegment = "proposal"
	settleSegment   = "settle"
	requestSegment  = "request"
	responseSegment = "response"
	deleteSegment   = "delete"
)

// responseEnvelope correlates a wallet response to the peer's request id.
type responseEnvelope struct {
	RequestID int64  `json:"request_id"`
	Payload   string `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
}

// natsTransport relays walletconnect-style envelopes over core NATS
// subjects. Relay traffic is transient; nothing here is persisted or
// redelivered.
type natsTransport struct {
	pubsub messaging.PubSub
	prefix string

	mu          sync.Mutex
	handlers    Handlers
	subsByTopic map[string][]messaging.Subscription
}

func NewNATSTransport(pubsub messaging.PubSub, prefix string) Transport {
	return &natsTransport{
		pubsub:      pubsub,
		prefix:      prefix,
		subsByTopic: make(map[string][]messaging.Subscription),
	}
}

func (t *natsTransport) SetHandlers(h Handlers) {
	t.mu.Lock()
	t.handlers = h
	t.mu.Unlock()
}

// Pair parses the pairing URI, subscribes to the peer's subjects for the
// encoded topic, and announces readiness. Pairing an already attached topic
// only re-announces; the existing subscriptions are kept, not duplicated.
func (t *natsTransport) Pair(ctx context.Context, uri string) error {
	topic, err := ParsePairingURI(uri)
	if err != nil {
		return fmt.Errorf("pair: %w", err)
	}

	attached, err := t.attachTopic(topic)
	if err != nil {
		return fmt.Errorf("pair: %w", err)
	}

	if err := t.pubsub.Publish(t.subject(topic, pairSegment), []byte(`{"ready":true}`)); err != nil {
		if attached {
			t.detachTopic(topic)
		}
		return fmt.Errorf("pair: %w", err)
	}

	logger.Info("Pairing initiated", "topic", topic)
	return nil
}

// Resume re-attaches the peer subjects for a settled topic. No ready signal
// is published: the session already exists on the peer's side.
func (t *natsTransport) Resume(ctx context.Context, topic string) error {
	if _, err := t.attachTopic(topic); err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	logger.Info("Session topic resumed", "topic", topic)
	return nil
}

// attachTopic subscribes the peer-facing subjects for topic exactly once.
// Returns false when the topic was already attached. On partial failure
// nothing stays registered.
func (t *natsTransport) attachTopic(topic string) (bool, error) {
	t.mu.Lock()
	if _, ok := t.subsByTopic[topic]; ok {
		t.mu.Unlock()
		return false, nil
	}
	// Reserve the slot so concurrent attaches for the topic back off.
	t.subsByTopic[topic] = nil
	t.mu.Unlock()

	var subs []messaging.Subscription
	for segment, handler := range map[string]func(*nats.Msg){
		proposalSegment: t.handleProposalMsg,
		requestSegment:  t.handleRequestMsg,
		deleteSegment:   t.handleDeleteMsg,
	} {
		sub, err := t.pubsub.Subscribe(t.subject(topic, segment), handler)
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			t.mu.Lock()
			delete(t.subsByTopic, topic)
			t.mu.Unlock()
			return false, err
		}
		subs = append(subs, sub)
	}

	t.mu.Lock()
	t.subsByTopic[topic] = subs
	t.mu.Unlock()
	return true, nil
}

func (t *natsTransport) detachTopic(topic string) {
	t.mu.Lock()
	subs := t.subsByTopic[topic]
	delete(t.subsByTopic, topic)
	t.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			logger.Warn("Failed to unsubscribe relay subject", "topic", topic, "error", err)
		}
	}
}

func (t *natsTransport) ApproveProposal(ctx context.Context, proposal types.SessionProposal, namespace, account string) (types.Session, error) {
	session := types.Session{
		Topic:     proposal.Topic,
		PeerID:    proposal.ProposerID,
		Namespace: namespace,
		Account:   account,
	}

	data, err := json.Marshal(session)
	if err != nil {
		return types.Session{}, fmt.Errorf("approve proposal: %w", err)
	}
	if err := t.pubsub.Publish(t.subject(proposal.Topic, settleSegment), data); err != nil {
		return types.Session{}, fmt.Errorf("approve proposal: %w", err)
	}

	t.fireConnectionChange(true)
	return session, nil
}

func (t *natsTransport) Respond(ctx context.Context, request types.SessionRequest, payload string, errorReason string) error {
	envelope := responseEnvelope{
		RequestID: request.RequestID,
		Payload:   payload,
		Error:     errorReason,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("respond: %w", err)
	}
	if err := t.pubsub.Publish(t.subject(request.Topic, responseSegment), data); err != nil {
		return fmt.Errorf("respond: %w", err)
	}
	return nil
}

func (t *natsTransport) Close() error {
	t.mu.Lock()
	topics := make([]string, 0, len(t.subsByTopic))
	for topic := range t.subsByTopic {
		topics = append(topics, topic)
	}
	t.mu.Unlock()

	for _, topic := range topics {
		t.detachTopic(topic)
	}

	t.fireConnectionChange(false)
	return nil
}

func (t *natsTransport) handleProposalMsg(msg *nats.Msg) {
	var proposal types.SessionProposal
	if err := json.Unmarshal(msg.Data, &proposal); err != nil {
		logger.Error("Failed to unmarshal session proposal", err, "subject", msg.Subject)
		return
	}
	if proposal.Topic == "" {
		proposal.Topic = topicFromSubject(msg.Subject)
	}

	t.mu.Lock()
	handler := t.handlers.OnSessionProposal
	t.mu.Unlock()
	if handler != nil {
		handler(proposal)
	}
}

func (t *natsTransport) handleRequestMsg(msg *nats.Msg) {
	var request types.SessionRequest
	if err := json.Unmarshal(msg.Data, &request); err != nil {
		logger.Error("Failed to unmarshal session request", err, "subject", msg.Subject)
		return
	}
	if request.Topic == "" {
		request.Topic = topicFromSubject(msg.Subject)
	}

	t.mu.Lock()
	handler := t.handlers.OnSessionRequest
	t.mu.Unlock()
	if handler != nil {
		handler(request)
	}
}

func (t *natsTransport) handleDeleteMsg(msg *nats.Msg) {
	topic := topicFromSubject(msg.Subject)
	if topic == "" {
		logger.Warn("Session delete on malformed subject", "subject", msg.Subject)
		return
	}
	t.detachTopic(topic)

	t.mu.Lock()
	handler := t.handlers.OnSessionDelete
	t.mu.Unlock()
	if handler != nil {
		handler(topic)
	}
}

func (t *natsTransport) fireConnectionChange(connected bool) {
	t.mu.Lock()
	handler := t.handlers.OnConnectionChange
	t.mu.Unlock()
	if handler != nil {
		handler(connected)
	}
}

func (t *natsTransport) subject(topic, segment string) string {
	return fmt.Sprintf("%s.%s.%s", t.prefix, topic, segment)
}

// topicFromSubject extracts the session topic from "{prefix}.{topic}.{segment}".
func topicFromSubject(subject string) string {
	parts := strings.Split(subject, ".")
	if len(parts) < 3 {
		return ""
	}
	return strings.Join(parts[1:len(parts)-1], ".")
}

// ParsePairingURI extracts the pairing topic from a "wc:{topic}@{version}"
// style URI. Query parameters are ignored.
func ParsePairingURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, "wc:") {
		return "", fmt.Errorf("invalid pairing uri %q", uri)
	}
	rest := strings.TrimPrefix(uri, "wc:")
	if at := strings.IndexByte(rest, '@'); at >= 0 {
		rest = rest[:at]
	}
	if q := strings.IndexByte(rest, '?'); q >= 0 {
		rest = rest[:q]
	}
	if rest == "" {
		return "", fmt.Errorf("pairing uri %q has empty topic", uri)
	}
	return rest, nil
}
