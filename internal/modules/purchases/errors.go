package purchases

import "errors"

// Failure reasons stored on purchases that can never validate.
const (
	ReasonProofMissing           = "proof missing"
	ReasonTokenTransactionID     = "signed token transactionId mismatch"
	ReasonTokenProductID         = "signed token productId mismatch"
	ReasonReceiptProductID       = "receipt productId mismatch"
	ReasonTransactionAlreadyUsed = "apple transaction already recorded on another purchase"
)

// TerminalError is a validation failure that retrying cannot fix.
type TerminalError struct {
	Reason string
	Err    error
}

func (e *TerminalError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Reason
}

func (e *TerminalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *TerminalError) Retryable() bool { return false }

func terminalf(reason string, cause error) *TerminalError {
	return &TerminalError{Reason: reason, Err: cause}
}

var errDuplicateTransaction = errors.New("duplicate apple transaction id")

// ErrLeaseHeld is returned when another worker is validating the same purchase.
var ErrLeaseHeld = errors.New("purchase validation already in progress")
