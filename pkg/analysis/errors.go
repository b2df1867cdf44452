package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrSingularJacobian means the sparse solve could not proceed
	// (rank-deficient system, typically an unsolvable or islanded network).
	// Fatal: no usable voltage state is returned.
	ErrSingularJacobian = errors.New("analysis: singular jacobian")

	// ErrNoConvergence means the iteration ceiling was reached before the
	// mismatch norm met tolerance. Not fatal: the Result alongside it carries
	// the last voltage state and mismatch norm.
	ErrNoConvergence = errors.New("analysis: iteration limit reached without convergence")
)

// SolveError wraps a fatal numeric failure with the iteration count reached
// when it happened.
type SolveError struct {
	Iterations int
	Err        error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("%v (after %d iterations)", e.Err, e.Iterations)
}

func (e *SolveError) Unwrap() error { return e.Err }

func singularf(iterations int, format string, args ...any) *SolveError {
	return &SolveError{
		Iterations: iterations,
		Err:        fmt.Errorf("%w: %s", ErrSingularJacobian, fmt.Sprintf(format, args...)),
	}
}
