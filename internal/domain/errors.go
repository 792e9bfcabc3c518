package domain

import (
	"errors"
	"fmt"
)

// BrokerError is an abort code returned by the settlement engine. Every
// BrokerError aborts the whole call; none of them is retried.
type BrokerError struct {
	Code uint32
	Name string
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("broker error %d: %s", e.Code, e.Name)
}

var (
	ErrUnauthorized       = &BrokerError{Code: 32700, Name: "unauthorized"}
	ErrNotInitialized     = &BrokerError{Code: 32701, Name: "not initialized"}
	ErrAlreadyInitialized = &BrokerError{Code: 32702, Name: "already initialized"}
	ErrProtocolDisabled   = &BrokerError{Code: 32710, Name: "protocol disabled"}
	ErrInvalidPath        = &BrokerError{Code: 32711, Name: "invalid path"}
	ErrUnfeasible         = &BrokerError{Code: 32712, Name: "unfeasible"}
	ErrMisconduct         = &BrokerError{Code: 32713, Name: "misconduct"}
)

// ErrorCode extracts the broker abort code from a (possibly wrapped) error.
func ErrorCode(err error) (uint32, bool) {
	var be *BrokerError
	if errors.As(err, &be) {
		return be.Code, true
	}
	return 0, false
}
