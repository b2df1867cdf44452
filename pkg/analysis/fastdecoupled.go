package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"powerflow/pkg/matrix"
	"powerflow/pkg/network"
	"powerflow/pkg/ybus"
)

// FastDecoupled drives the fast-decoupled power-flow iteration. B' and B''
// are factorized once and reused for every half-step, which is the whole
// point of the method. Each outer iteration is a P half-step (angle update)
// followed by a Q half-step (magnitude update) on the refreshed mismatch.
type FastDecoupled struct {
	model *network.Model
	cfg   Config

	ybus *ybus.Matrix
	bp   *ybus.RealMatrix
	bpp  *ybus.RealMatrix
	sbus []complex128
	pvpq []int
	pq   []int

	sysP  *matrix.System // B' over the pvpq buses
	sysQ  *matrix.System // B'' over the pq buses
	state *State

	iterations int
}

func NewFastDecoupled(m *network.Model, cfg Config) (*FastDecoupled, error) {
	y, err := ybus.Build(m)
	if err != nil {
		return nil, err
	}
	bp, bpp, err := ybus.BuildB(m)
	if err != nil {
		return nil, err
	}
	return NewFastDecoupledWith(m, y, bp, bpp, cfg)
}

// NewFastDecoupledWith reuses previously built admittance structures. The
// factorizations stay private to this instance; only the matrices are shared.
func NewFastDecoupledWith(m *network.Model, y *ybus.Matrix, bp, bpp *ybus.RealMatrix, cfg Config) (*FastDecoupled, error) {
	cfg = cfg.withDefaults()
	pvpq := m.PVPQ()
	pq := m.PQ()

	var sysP, sysQ *matrix.System
	if len(pvpq) > 0 {
		var err error
		sysP, err = matrix.NewSystem(len(pvpq))
		if err != nil {
			return nil, err
		}
	}
	if len(pq) > 0 {
		var err error
		sysQ, err = matrix.NewSystem(len(pq))
		if err != nil {
			if sysP != nil {
				sysP.Destroy()
			}
			return nil, err
		}
	}

	fd := &FastDecoupled{
		model: m,
		cfg:   cfg,
		ybus:  y,
		bp:    bp,
		bpp:   bpp,
		sbus:  m.Sbus(),
		pvpq:  pvpq,
		pq:    pq,
		sysP:  sysP,
		sysQ:  sysQ,
		state: NewState(m, cfg.FlatStart),
	}
	fd.stampB()
	return fd, nil
}

// stampB loads the B'/B'' sub-blocks for the solvable buses into the two
// systems. Values never change afterwards.
func (fd *FastDecoupled) stampB() {
	colP := make([]int, fd.model.N())
	for k, b := range fd.pvpq {
		colP[b] = k + 1
	}
	for k, b := range fd.pvpq {
		for _, e := range fd.bp.Row(b) {
			fd.sysP.AddElement(k+1, colP[e.Col], e.V)
		}
	}

	colQ := make([]int, fd.model.N())
	for k, b := range fd.pq {
		colQ[b] = k + 1
	}
	for k, b := range fd.pq {
		for _, e := range fd.bpp.Row(b) {
			fd.sysQ.AddElement(k+1, colQ[e.Col], e.V)
		}
	}
}

// Run factorizes B' and B'' once, then alternates half-steps until both the
// P and Q mismatch infinity norms are below tolerance.
func (fd *FastDecoupled) Run() (*Result, error) {
	if fd.sysP != nil {
		if err := fd.sysP.Factor(); err != nil {
			return nil, singularf(0, "B': %v", err)
		}
	}
	if fd.sysQ != nil {
		if err := fd.sysQ.Factor(); err != nil {
			return nil, singularf(0, "B'': %v", err)
		}
	}

	computed := Injections(fd.state, fd.ybus)
	pnorm, qnorm := fd.norms(computed)

	// As in Newton.Run, a NaN norm must not read as converged.
	for !(pnorm < fd.cfg.Tolerance && qnorm < fd.cfg.Tolerance) {
		if fd.iterations >= fd.cfg.MaxIterations || math.IsNaN(pnorm) || math.IsNaN(qnorm) {
			return fd.result(pnorm, qnorm, false), ErrNoConvergence
		}

		// P half-step: B' * dVa = dP / Vm
		if fd.sysP != nil {
			fd.sysP.ClearRHS()
			for k, b := range fd.pvpq {
				dp := real(fd.sbus[b]) - real(computed[b])
				fd.sysP.AddRHS(k+1, dp/fd.state.Vm[b])
			}
			dva, err := fd.sysP.Solve()
			if err != nil {
				return nil, singularf(fd.iterations, "angle step: %v", err)
			}
			fd.state = fd.state.applyAngles(dva, fd.pvpq)
			computed = Injections(fd.state, fd.ybus)
		}

		// Q half-step on the refreshed mismatch: B'' * dVm = dQ / Vm
		if fd.sysQ != nil {
			fd.sysQ.ClearRHS()
			for k, b := range fd.pq {
				dq := imag(fd.sbus[b]) - imag(computed[b])
				fd.sysQ.AddRHS(k+1, dq/fd.state.Vm[b])
			}
			dvm, err := fd.sysQ.Solve()
			if err != nil {
				return nil, singularf(fd.iterations, "magnitude step: %v", err)
			}
			fd.state = fd.state.applyMagnitudes(dvm, fd.pq)
		}
		fd.iterations++

		computed = Injections(fd.state, fd.ybus)
		pnorm, qnorm = fd.norms(computed)
	}

	return fd.result(pnorm, qnorm, true), nil
}

// norms evaluates the P and Q mismatch infinity norms independently; both
// must meet tolerance before iteration stops.
func (fd *FastDecoupled) norms(computed []complex128) (pnorm, qnorm float64) {
	dp := make([]float64, len(fd.pvpq))
	for k, b := range fd.pvpq {
		dp[k] = real(fd.sbus[b]) - real(computed[b])
	}
	dq := make([]float64, len(fd.pq))
	for k, b := range fd.pq {
		dq[k] = imag(fd.sbus[b]) - imag(computed[b])
	}
	if len(dp) > 0 {
		pnorm = floats.Norm(dp, math.Inf(1))
	}
	if len(dq) > 0 {
		qnorm = floats.Norm(dq, math.Inf(1))
	}
	return pnorm, qnorm
}

func (fd *FastDecoupled) result(pnorm, qnorm float64, converged bool) *Result {
	return &Result{
		State:             fd.state,
		Converged:         converged,
		Iterations:        fd.iterations,
		// math.Max keeps a NaN half-norm visible in the report.
		FinalMismatchNorm: math.Max(pnorm, qnorm),
		Ybus:              fd.ybus,
		BPrime:            fd.bp,
		BDoublePrime:      fd.bpp,
	}
}

func (fd *FastDecoupled) Destroy() {
	if fd.sysP != nil {
		fd.sysP.Destroy()
	}
	if fd.sysQ != nil {
		fd.sysQ.Destroy()
	}
}
