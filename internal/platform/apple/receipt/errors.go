package receipt

import (
	"errors"
	"fmt"
)

var ErrTransactionNotFound = errors.New("transaction not present in receipt")

// GatewayError describes a failed exchange with the receipt endpoint. Status is
// the App Store status code, or zero when the failure happened below the
// protocol (timeouts, resets, 5xx responses).
type GatewayError struct {
	Status    int
	Message   string
	Err       error
	retryable bool
}

func (e *GatewayError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *GatewayError) Retryable() bool {
	return e != nil && e.retryable
}

func transportError(err error) *GatewayError {
	return &GatewayError{Message: "apple receipt endpoint unreachable", Err: err, retryable: true}
}

func statusError(status int, retryable bool) *GatewayError {
	return &GatewayError{
		Status:    status,
		Message:   fmt.Sprintf("apple receipt verification failed with status %d", status),
		retryable: retryable,
	}
}

func terminal(err error) *GatewayError {
	return &GatewayError{Message: err.Error(), Err: err}
}
