package network

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateBus   = errors.New("network: duplicate bus id")
	ErrNoSlackBus     = errors.New("network: no slack bus")
	ErrMultipleSlack  = errors.New("network: more than one slack bus")
	ErrUnknownBus     = errors.New("network: branch references unknown bus")
	ErrUnknownBusType = errors.New("network: unknown bus type")
	ErrGeneratorOnPQ  = errors.New("network: in-service generator on PQ bus")
	ErrUnknownGenBus  = errors.New("network: generator references unknown bus")
	ErrNonPositiveVm0 = errors.New("network: initial voltage magnitude not positive")
)

// ModelError reports a malformed input case. It is detected during model or
// admittance construction, always before any solver iteration starts, and is
// never retried. It wraps one of the sentinel errors above; match with
// errors.Is.
type ModelError struct {
	Detail string
	Err    error
}

func (e *ModelError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *ModelError) Unwrap() error { return e.Err }

// NewModelError builds a ModelError around a sentinel with a formatted detail.
func NewModelError(sentinel error, format string, args ...any) *ModelError {
	return &ModelError{Detail: fmt.Sprintf(format, args...), Err: sentinel}
}
