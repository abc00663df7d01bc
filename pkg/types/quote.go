package types

import "time"

// Quotation is the backend's priced offer for a withdrawal. The challenge is
// the single-use key the signing flow must resolve before the quotation can
// be submitted.
type Quotation struct {
	ID        string    `json:"id"`
	Amount    string    `json:"amount"`
	Fee       string    `json:"fee"`
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expires_at"`
}
