package matrix

import (
	"fmt"

	"github.com/edp1096/sparse"
)

// System wraps one sparse real linear system A x = b with the
// clear / stamp / factor / solve cycle the iterative solvers drive.
// Indices are 1-based; index 0 addresses the eliminated reference equation
// (the slack bus) and is silently discarded, like a ground stamp.
//
// A factorization belongs exclusively to the System that produced it: the
// Fast-Decoupled driver factors once and calls Solve repeatedly, the Newton
// driver re-stamps and re-factors every iteration.
type System struct {
	Size     int
	matrix   *sparse.Matrix
	rhs      []float64
	solution []float64
	config   *sparse.Configuration
}

func NewSystem(size int) (*System, error) {
	// Translate must stay on: once Factor has reordered the matrix,
	// stamping by external indices is only legal through the
	// internal index translation.
	config := &sparse.Configuration{
		Real:           true,
		Complex:        false,
		Expandable:     true,
		Translate:      true,
		ModifiedNodal:  false,
		TiesMultiplier: 5,
		PrinterWidth:   140,
		Annotate:       0,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("creating sparse matrix: %v", err)
	}

	return &System{
		Size:     size,
		matrix:   mat,
		rhs:      make([]float64, size+1), // 1-based indexing
		solution: make([]float64, size+1),
		config:   config,
	}, nil
}

func (s *System) AddElement(i, j int, value float64) {
	if i <= 0 || j <= 0 || i > s.Size || j > s.Size {
		return
	}
	s.matrix.GetElement(int64(i), int64(j)).Real += value
}

func (s *System) AddRHS(i int, value float64) {
	if i <= 0 || i > s.Size {
		return
	}
	s.rhs[i] += value
}

// Clear zeroes the matrix values and the right-hand side, keeping the
// sparsity structure and ordering from previous factorizations.
func (s *System) Clear() {
	s.matrix.Clear()
	s.ClearRHS()
}

func (s *System) ClearRHS() {
	for i := range s.rhs {
		s.rhs[i] = 0
	}
}

// Factor LU-factorizes the current matrix values. A rank-deficient system
// surfaces here as an error.
func (s *System) Factor() error {
	if err := s.matrix.Factor(); err != nil {
		return fmt.Errorf("matrix factorization failed: %v", err)
	}
	return nil
}

// Solve runs forward/backward substitution against the existing factors and
// returns the 1-based solution vector.
func (s *System) Solve() ([]float64, error) {
	solution, err := s.matrix.Solve(s.rhs)
	if err != nil {
		return nil, fmt.Errorf("matrix solve failed: %v", err)
	}
	s.solution = solution
	return s.solution, nil
}

// FactorAndSolve is the per-iteration Newton path: fresh values, fresh
// factors, one solve.
func (s *System) FactorAndSolve() ([]float64, error) {
	if err := s.Factor(); err != nil {
		return nil, err
	}
	return s.Solve()
}

func (s *System) RHS() []float64 { return s.rhs }

func (s *System) Solution() []float64 { return s.solution }

func (s *System) Destroy() {
	if s.matrix != nil {
		s.matrix.Destroy()
	}
}
