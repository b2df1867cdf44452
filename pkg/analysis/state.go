package analysis

import (
	"math/cmplx"

	"powerflow/internal/consts"
	"powerflow/pkg/network"
)

// State is one voltage snapshot of the network: per-bus magnitude (per-unit)
// and angle (rad). A State is never mutated; every update derives a fresh one
// from the previous state plus a correction, so a shared Y-bus can back
// concurrent scenario runs safely.
type State struct {
	Vm []float64
	Va []float64
}

// NewState builds the starting state: flat (1.0 pu, 0 rad) or the case's own
// initial guess. Either way, buses holding an in-service generator start at
// the generator's voltage setpoint and the slack bus keeps its fixed angle.
func NewState(m *network.Model, flat bool) *State {
	n := m.N()
	s := &State{Vm: make([]float64, n), Va: make([]float64, n)}
	for i := 0; i < n; i++ {
		if flat {
			s.Vm[i] = consts.FlatStartVm
			s.Va[i] = consts.FlatStartVa
		} else {
			s.Vm[i] = m.Bus(i).Vm
			s.Va[i] = m.Bus(i).Va
		}
	}

	slack := m.SlackIndex()
	s.Va[slack] = m.Bus(slack).Va
	s.Vm[slack] = m.VSetpoint(slack)
	for _, i := range m.PV() {
		s.Vm[i] = m.VSetpoint(i)
	}
	return s
}

// Complex returns the per-bus complex voltage vector.
func (s *State) Complex() []complex128 {
	v := make([]complex128, len(s.Vm))
	for i := range v {
		v[i] = cmplx.Rect(s.Vm[i], s.Va[i])
	}
	return v
}

func (s *State) clone() *State {
	return &State{
		Vm: append([]float64(nil), s.Vm...),
		Va: append([]float64(nil), s.Va...),
	}
}

// applyNewton derives the next state from a Newton correction vector.
// dx is the 1-based solver output: angle corrections for the pvpq buses
// followed by relative magnitude corrections for the pq buses. Angles update
// additively, magnitudes relatively: Vm' = Vm * (1 + delta).
func (s *State) applyNewton(dx []float64, pvpq, pq []int) *State {
	next := s.clone()
	for k, b := range pvpq {
		next.Va[b] += dx[k+1]
	}
	off := len(pvpq)
	for k, b := range pq {
		next.Vm[b] *= 1 + dx[off+k+1]
	}
	return next
}

// applyAngles is the Fast-Decoupled P half-step: additive angle update at the
// pvpq buses.
func (s *State) applyAngles(dva []float64, pvpq []int) *State {
	next := s.clone()
	for k, b := range pvpq {
		next.Va[b] += dva[k+1]
	}
	return next
}

// applyMagnitudes is the Fast-Decoupled Q half-step: additive magnitude
// update at the pq buses.
func (s *State) applyMagnitudes(dvm []float64, pq []int) *State {
	next := s.clone()
	for k, b := range pq {
		next.Vm[b] += dvm[k+1]
	}
	return next
}
