package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"powerflow/pkg/matrix"
	"powerflow/pkg/network"
	"powerflow/pkg/ybus"
)

// Newton drives the full Newton-Raphson power-flow iteration:
// evaluate mismatch, check convergence, stamp and factor the Jacobian,
// solve for the correction, derive the next state. One Newton instance
// serves exactly one solve request.
type Newton struct {
	model *network.Model
	cfg   Config

	ybus *ybus.Matrix
	sbus []complex128
	pvpq []int
	pq   []int

	jac   *jacobian
	sys   *matrix.System
	state *State

	iterations int
}

// NewNewton builds the admittance matrix and the iteration workspace.
// Malformed models surface here as ModelError, before any iteration.
func NewNewton(m *network.Model, cfg Config) (*Newton, error) {
	y, err := ybus.Build(m)
	if err != nil {
		return nil, err
	}
	return NewNewtonWith(m, y, cfg)
}

// NewNewtonWith reuses a previously built Y-bus, e.g. when running many load
// scenarios against one network. The Y-bus is only read.
func NewNewtonWith(m *network.Model, y *ybus.Matrix, cfg Config) (*Newton, error) {
	cfg = cfg.withDefaults()
	pvpq := m.PVPQ()
	pq := m.PQ()

	// A slack-only network has no unknowns; leave the system nil and let Run
	// report immediate convergence.
	var sys *matrix.System
	if size := len(pvpq) + len(pq); size > 0 {
		var err error
		sys, err = matrix.NewSystem(size)
		if err != nil {
			return nil, err
		}
	}

	return &Newton{
		model: m,
		cfg:   cfg,
		ybus:  y,
		sbus:  m.Sbus(),
		pvpq:  pvpq,
		pq:    pq,
		jac:   newJacobian(m.N(), pvpq, pq),
		sys:   sys,
		state: NewState(m, cfg.FlatStart),
	}, nil
}

// Run iterates to convergence, non-convergence or failure.
// On ErrNoConvergence the returned Result still holds the last state; on a
// singular Jacobian the result is nil and the error carries the iteration
// count reached.
func (n *Newton) Run() (*Result, error) {
	computed := Injections(n.state, n.ybus)
	mis := packMismatch(computed, n.sbus, n.pvpq, n.pq)
	if len(mis) == 0 {
		return n.result(0, true), nil
	}
	norm := floats.Norm(mis, math.Inf(1))

	// NaN compares false against the tolerance, so the loop condition is
	// written to keep a blown-up state out of the converged path.
	for !(norm < n.cfg.Tolerance) {
		if n.iterations >= n.cfg.MaxIterations || math.IsNaN(norm) {
			return n.result(norm, false), ErrNoConvergence
		}

		dx, err := n.step(mis, computed)
		if err != nil {
			return nil, singularf(n.iterations, "%v", err)
		}

		n.state = n.state.applyNewton(dx, n.pvpq, n.pq)
		n.iterations++

		computed = Injections(n.state, n.ybus)
		mis = packMismatch(computed, n.sbus, n.pvpq, n.pq)
		norm = floats.Norm(mis, math.Inf(1))
	}

	return n.result(norm, true), nil
}

// step performs one Jacobian build and sparse solve, returning the 1-based
// correction vector.
func (n *Newton) step(mis []float64, computed []complex128) ([]float64, error) {
	n.sys.Clear()
	n.jac.stamp(n.sys, n.state, n.ybus, computed)
	for k, v := range mis {
		n.sys.AddRHS(k+1, v)
	}
	return n.sys.FactorAndSolve()
}

func (n *Newton) result(norm float64, converged bool) *Result {
	return &Result{
		State:             n.state,
		Converged:         converged,
		Iterations:        n.iterations,
		FinalMismatchNorm: norm,
		Ybus:              n.ybus,
	}
}

func (n *Newton) Destroy() {
	if n.sys != nil {
		n.sys.Destroy()
	}
}
