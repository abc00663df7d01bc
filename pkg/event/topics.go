package event

// Wallet stream topics

const (
	// Stream for signing outcome events consumed by external systems
	// (audit, notification).
	StreamName = "wallet"

	SigningResultTopic = "wallet.wallet_signing_result.*"

	SigningResultQueueName = "wallet_signing_result"
)

// FormatSigningResultTopic creates a specific signing result topic for a challenge
func FormatSigningResultTopic(challenge string) string {
	return "wallet.wallet_signing_result." + challenge
}
