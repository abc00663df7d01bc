package types

// OperationType identifies the kind of transaction an authorization is for.
type OperationType string

const (
	OperationWithdrawal OperationType = "withdrawal"
	OperationTransfer   OperationType = "transfer"
	OperationSwap       OperationType = "swap"
)

// SigningRequest asks the approval flow to authorize a pending transaction.
// The challenge is the server-issued token identifying the transaction; it
// is the join key between the withdrawal flow and the signing flow and must
// be unique per in-flight request.
type SigningRequest struct {
	Challenge     string        `json:"challenge"`
	OperationType OperationType `json:"operation_type"`
}

// ResultStatus discriminates the outcome of a signing attempt.
type ResultStatus string

const (
	StatusSigned    ResultStatus = "signed"
	StatusCancelled ResultStatus = "cancelled"
	StatusError     ResultStatus = "error"
)

// SigningResult is the outcome of one signing attempt. Produced exactly once
// per challenge by the approval flow, consumed exactly once by the awaiting
// withdrawal flow. The signature is an opaque authorization token.
type SigningResult struct {
	Status      ResultStatus `json:"status"`
	Signature   string       `json:"signature,omitempty"`
	ErrorReason string       `json:"error_reason,omitempty"`
}

// Signed builds a successful result carrying the authorization token.
func Signed(signature string) SigningResult {
	return SigningResult{Status: StatusSigned, Signature: signature}
}

// Cancelled builds a user-abort result. Cancellation is not an error and is
// matched separately everywhere results are branched on.
func Cancelled() SigningResult {
	return SigningResult{Status: StatusCancelled}
}

// Failed builds a failure result with a human-readable reason.
func Failed(reason string) SigningResult {
	return SigningResult{Status: StatusError, ErrorReason: reason}
}

func (r SigningResult) IsSigned() bool    { return r.Status == StatusSigned }
func (r SigningResult) IsCancelled() bool { return r.Status == StatusCancelled }
func (r SigningResult) IsError() bool     { return r.Status == StatusError }
