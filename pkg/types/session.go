package types

import "encoding/json"

// SessionProposal is a dapp's request to establish a walletconnect session.
type SessionProposal struct {
	Topic      string `json:"topic"`
	ProposerID string `json:"proposer_id"`
	Namespace  string `json:"namespace,omitempty"`
}

// SessionRequest is a signing request arriving over an established session.
type SessionRequest struct {
	Topic     string          `json:"topic"`
	RequestID int64           `json:"request_id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Session is a settled walletconnect session.
type Session struct {
	Topic     string `json:"topic"`
	PeerID    string `json:"peer_id"`
	Namespace string `json:"namespace"`
	Account   string `json:"account"`
}
