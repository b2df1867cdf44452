package analysis

import (
	"math"

	"powerflow/pkg/matrix"
	"powerflow/pkg/ybus"
)

// jacobian stamps the power-flow Jacobian for the current state into sys.
// Rows and columns follow the mismatch packing: angle equations for the pvpq
// buses, then magnitude equations for the pq buses. Magnitude columns are
// scaled by Vm so the solved correction is relative (dVm/Vm).
//
// computed holds the bus injections already evaluated for this state; the
// diagonal closed forms include the self-injection correction terms.
type jacobian struct {
	angCol []int // bus -> 1-based angle column, 0 when the bus has none
	magCol []int // bus -> 1-based magnitude column, 0 when the bus has none
	pvpq   []int
	pq     []int
}

func newJacobian(n int, pvpq, pq []int) *jacobian {
	j := &jacobian{
		angCol: make([]int, n),
		magCol: make([]int, n),
		pvpq:   pvpq,
		pq:     pq,
	}
	for k, b := range pvpq {
		j.angCol[b] = k + 1
	}
	for k, b := range pq {
		j.magCol[b] = len(pvpq) + k + 1
	}
	return j
}

func (j *jacobian) stamp(sys *matrix.System, s *State, y *ybus.Matrix, computed []complex128) {
	for _, i := range j.pvpq {
		j.stampRow(sys, s, y, computed, i, j.angCol[i], false)
	}
	for _, i := range j.pq {
		j.stampRow(sys, s, y, computed, i, j.magCol[i], true)
	}
}

// stampRow loads one equation row: the active-power row of bus i when
// reactive is false, the reactive-power row otherwise.
func (j *jacobian) stampRow(sys *matrix.System, s *State, y *ybus.Matrix, computed []complex128, i, row int, reactive bool) {
	vi := s.Vm[i]
	pi := real(computed[i])
	qi := imag(computed[i])

	for _, e := range y.Row(i) {
		k := e.Col
		g, b := real(e.Y), imag(e.Y)

		if k == i {
			vv := vi * vi
			if reactive {
				sys.AddElement(row, j.angCol[i], pi-g*vv)
				sys.AddElement(row, j.magCol[i], qi-b*vv)
			} else {
				sys.AddElement(row, j.angCol[i], -qi-b*vv)
				sys.AddElement(row, j.magCol[i], pi+g*vv)
			}
			continue
		}

		theta := s.Va[i] - s.Va[k]
		sin, cos := math.Sincos(theta)
		vv := vi * s.Vm[k]
		inPhase := vv * (g*cos + b*sin)
		quadrature := vv * (g*sin - b*cos)

		if reactive {
			sys.AddElement(row, j.angCol[k], -inPhase)
			sys.AddElement(row, j.magCol[k], quadrature)
		} else {
			sys.AddElement(row, j.angCol[k], quadrature)
			sys.AddElement(row, j.magCol[k], inPhase)
		}
	}
}
