package analysis

import (
	"math/cmplx"

	"powerflow/pkg/ybus"
)

// Injections computes the complex power injected at every bus by the given
// voltage state: S_i = V_i * conj(sum_k Y_ik V_k). Pure function.
func Injections(s *State, y *ybus.Matrix) []complex128 {
	v := s.Complex()
	i := y.MulVec(v)
	out := make([]complex128, len(v))
	for k := range v {
		out[k] = v[k] * cmplx.Conj(i[k])
	}
	return out
}

// Mismatch evaluates scheduled-minus-computed power and packs the solvable
// entries: active power for the pvpq buses first, then reactive power for the
// pq buses. The ordering matches the Jacobian rows exactly. Pure function of
// its inputs.
func Mismatch(s *State, y *ybus.Matrix, sbus []complex128, pvpq, pq []int) []float64 {
	return packMismatch(Injections(s, y), sbus, pvpq, pq)
}

func packMismatch(computed, scheduled []complex128, pvpq, pq []int) []float64 {
	out := make([]float64, len(pvpq)+len(pq))
	for k, b := range pvpq {
		out[k] = real(scheduled[b]) - real(computed[b])
	}
	off := len(pvpq)
	for k, b := range pq {
		out[off+k] = imag(scheduled[b]) - imag(computed[b])
	}
	return out
}
