package signer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/KimApps/ether/pkg/types"
)

// Signer produces an opaque authorization token for a challenge. The token
// stands in for a real signature; a production deployment substitutes an
// implementation backed by genuine key material without touching the
// orchestrators.
type Signer interface {
	Sign(challenge string, operationType types.OperationType) (string, error)
}

// CredentialSigner is the local-credential signing service. It never returns
// an error: failures are encoded in the result itself.
type CredentialSigner interface {
	Sign(ctx context.Context, challenge string, operationType types.OperationType) types.SigningResult
}

// MockSigner fabricates placeholder tokens. It is the only Signer this
// repository ships; see the trade-off notes in DESIGN.md.
type MockSigner struct{}

func (MockSigner) Sign(challenge string, operationType types.OperationType) (string, error) {
	if challenge == "" {
		return "", fmt.Errorf("sign: empty challenge")
	}
	return fmt.Sprintf("sig-%s-%s", operationType, uuid.NewString()), nil
}

// MockCredentialSigner approves every challenge with a placeholder token,
// mapping an empty challenge to a failure result.
type MockCredentialSigner struct{}

func (MockCredentialSigner) Sign(ctx context.Context, challenge string, operationType types.OperationType) types.SigningResult {
	if ctx.Err() != nil {
		return types.Failed(ctx.Err().Error())
	}
	if challenge == "" {
		return types.Failed("empty challenge")
	}
	return types.Signed(fmt.Sprintf("passkey-sig-%s-%s", operationType, uuid.NewString()))
}
