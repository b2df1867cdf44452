package ybus

import (
	"math/cmplx"
	"sort"

	"powerflow/pkg/network"
)

// Entry is one stored element of a sparse matrix row.
type Entry struct {
	Col int
	Y   complex128
}

// Matrix is the sparse complex nodal admittance matrix of a network model.
// It is built once per model and is read-only afterwards; concurrent solve
// requests may share it.
type Matrix struct {
	n    int
	rows [][]Entry

	// Per-branch two-port admittance stamps, indexed like the model's branch
	// slice. Out-of-service branches hold zeros. Exposed for collaborators
	// that form branch-flow quantities.
	Yff, Yft, Ytf, Ytt []complex128
}

func (y *Matrix) Size() int { return y.n }

// Row returns the stored entries of row i, sorted by column. Callers must not
// modify the returned slice.
func (y *Matrix) Row(i int) []Entry { return y.rows[i] }

func (y *Matrix) At(i, j int) complex128 {
	for _, e := range y.rows[i] {
		if e.Col == j {
			return e.Y
		}
	}
	return 0
}

// MulVec computes the injected current vector I = Y v.
func (y *Matrix) MulVec(v []complex128) []complex128 {
	out := make([]complex128, y.n)
	for i, row := range y.rows {
		var acc complex128
		for _, e := range row {
			acc += e.Y * v[e.Col]
		}
		out[i] = acc
	}
	return out
}

type RealEntry struct {
	Col int
	V   float64
}

// RealMatrix holds one of the Fast-Decoupled susceptance matrices (B' or B'').
// Like Matrix it is immutable once built.
type RealMatrix struct {
	n    int
	rows [][]RealEntry
}

func (b *RealMatrix) Size() int { return b.n }

// Row returns the stored entries of row i. Callers must not modify it.
func (b *RealMatrix) Row(i int) []RealEntry { return b.rows[i] }

func (b *RealMatrix) At(i, j int) float64 {
	for _, e := range b.rows[i] {
		if e.Col == j {
			return e.V
		}
	}
	return 0
}

// opts select the documented Fast-Decoupled simplifications applied while
// stamping. The zero value builds the exact Y-bus.
type opts struct {
	zeroResistance bool // drop series resistance
	zeroCharging   bool // drop line charging shunts
	zeroBusShunts  bool // drop bus shunt admittances
	unityTaps      bool // force tap magnitudes to 1 (phase shift kept)
	zeroShift      bool // drop transformer phase shifts
}

// Build constructs the bus admittance matrix from the in-service branches and
// bus shunts of the model. A branch endpoint not present in the bus set fails
// with a ModelError before any solver iteration can run.
func Build(m *network.Model) (*Matrix, error) {
	return build(m, opts{})
}

// BuildB constructs the Fast-Decoupled matrices (XB scheme):
// B' from the network with series resistance, line charging and bus shunts
// removed and tap magnitudes forced to nominal; B'' from the network with
// phase shifts removed. Both are the negated imaginary part of the
// corresponding admittance matrix.
func BuildB(m *network.Model) (*RealMatrix, *RealMatrix, error) {
	yp, err := build(m, opts{zeroResistance: true, zeroCharging: true, zeroBusShunts: true, unityTaps: true})
	if err != nil {
		return nil, nil, err
	}
	ypp, err := build(m, opts{zeroShift: true})
	if err != nil {
		return nil, nil, err
	}
	return negImag(yp), negImag(ypp), nil
}

func build(m *network.Model, o opts) (*Matrix, error) {
	n := m.N()
	branches := m.Branches()

	y := &Matrix{
		n:   n,
		Yff: make([]complex128, len(branches)),
		Yft: make([]complex128, len(branches)),
		Ytf: make([]complex128, len(branches)),
		Ytt: make([]complex128, len(branches)),
	}

	acc := make([]map[int]complex128, n)
	for i := range acc {
		acc[i] = make(map[int]complex128)
	}

	for k, br := range branches {
		if !br.Status {
			continue
		}
		f, ok := m.Index(br.From)
		if !ok {
			return nil, network.NewModelError(network.ErrUnknownBus, "branch %d-%d: from bus %d", br.From, br.To, br.From)
		}
		t, ok := m.Index(br.To)
		if !ok {
			return nil, network.NewModelError(network.ErrUnknownBus, "branch %d-%d: to bus %d", br.From, br.To, br.To)
		}

		r := br.R
		if o.zeroResistance {
			r = 0
		}
		ys := 1 / complex(r, br.X) // series admittance

		var bc complex128
		if !o.zeroCharging {
			bc = complex(0, br.B/2) // half charging at each terminal
		}

		tapMag := br.Tap
		if tapMag == 0 || o.unityTaps {
			tapMag = 1
		}
		shift := br.Shift
		if o.zeroShift {
			shift = 0
		}
		tap := cmplx.Rect(tapMag, shift)

		// Two-port stamp. Off-nominal taps make it asymmetric.
		ytt := ys + bc
		yff := ytt / (tap * cmplx.Conj(tap))
		yft := -ys / cmplx.Conj(tap)
		ytf := -ys / tap

		y.Yff[k], y.Yft[k], y.Ytf[k], y.Ytt[k] = yff, yft, ytf, ytt

		acc[f][f] += yff
		acc[f][t] += yft
		acc[t][f] += ytf
		acc[t][t] += ytt
	}

	if !o.zeroBusShunts {
		for i, b := range m.Buses() {
			sh := complex(b.Gs, b.Bs)
			if sh != 0 {
				acc[i][i] += sh
			}
		}
	}

	y.rows = make([][]Entry, n)
	for i, row := range acc {
		entries := make([]Entry, 0, len(row))
		for col, v := range row {
			entries = append(entries, Entry{Col: col, Y: v})
		}
		sort.Slice(entries, func(a, b int) bool { return entries[a].Col < entries[b].Col })
		y.rows[i] = entries
	}

	return y, nil
}

func negImag(y *Matrix) *RealMatrix {
	b := &RealMatrix{n: y.n, rows: make([][]RealEntry, y.n)}
	for i, row := range y.rows {
		entries := make([]RealEntry, 0, len(row))
		for _, e := range row {
			entries = append(entries, RealEntry{Col: e.Col, V: -imag(e.Y)})
		}
		b.rows[i] = entries
	}
	return b
}
