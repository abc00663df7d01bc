package event

import "github.com/KimApps/ether/pkg/types"

// SigningResultEvent is published to the wallet stream after every broker
// resolution so external consumers can observe signing outcomes.
type SigningResultEvent struct {
	Challenge     string              `json:"challenge"`
	OperationType types.OperationType `json:"operation_type"`
	Status        types.ResultStatus  `json:"status"`
	Signature     string              `json:"signature,omitempty"`
	ErrorReason   string              `json:"error_reason,omitempty"`
}
