package ybus

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"powerflow/pkg/network"
)

func testCase() network.Case {
	return network.Case{
		Buses: []network.Bus{
			{ID: 1, Type: network.Slack, Vm: 1.0},
			{ID: 2, Type: network.PQ, Vm: 1.0, Gs: 0.01, Bs: 0.05},
			{ID: 3, Type: network.PQ, Vm: 1.0},
		},
		Branches: []network.Branch{
			{From: 1, To: 2, R: 0.02, X: 0.2, B: 0.04, Status: true},
			{From: 2, To: 3, R: 0.03, X: 0.25, B: 0.03, Status: true},
			{From: 1, To: 3, R: 0.04, X: 0.3, B: 0.02, Status: true},
		},
	}
}

func mustModel(t *testing.T, c network.Case) *network.Model {
	t.Helper()
	m, err := network.NewModel(c)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	return m
}

// With no off-nominal taps, the series terms of each row cancel and the row
// sum reduces to the total shunt admittance connected at that bus.
func TestRowSumEqualsShunt(t *testing.T) {
	c := testCase()
	m := mustModel(t, c)
	y, err := Build(m)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for i := 0; i < y.Size(); i++ {
		var sum complex128
		for _, e := range y.Row(i) {
			sum += e.Y
		}

		b := m.Bus(i)
		want := complex(b.Gs, b.Bs)
		for _, br := range c.Branches {
			if br.From == b.ID || br.To == b.ID {
				want += complex(0, br.B/2)
			}
		}

		if cmplx.Abs(sum-want) > 1e-12 {
			t.Errorf("bus %d: row sum = %v, want %v", b.ID, sum, want)
		}
	}
}

func TestTapTransformerStampAsymmetry(t *testing.T) {
	c := testCase()
	c.Branches[0].Tap = 0.98
	c.Branches[0].Shift = 0.05
	m := mustModel(t, c)
	y, err := Build(m)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	f, _ := m.Index(1)
	tt, _ := m.Index(2)
	if cmplx.Abs(y.At(f, tt)-y.At(tt, f)) < 1e-12 {
		t.Error("off-diagonal stamps of a phase-shifting transformer should differ")
	}
	if cmplx.Abs(y.At(f, tt)-y.Yft[0]) > 1e-12 || cmplx.Abs(y.At(tt, f)-y.Ytf[0]) > 1e-12 {
		t.Error("matrix entries disagree with the per-branch stamps")
	}

	// From-side diagonal contribution scales with 1/tap^2.
	ys := 1 / complex(c.Branches[0].R, c.Branches[0].X)
	want := (ys + complex(0, c.Branches[0].B/2)) / complex(0.98*0.98, 0)
	if cmplx.Abs(y.Yff[0]-want) > 1e-12 {
		t.Errorf("Yff = %v, want %v", y.Yff[0], want)
	}
}

func TestOutOfServiceBranchSkipped(t *testing.T) {
	c := testCase()
	c.Branches[1].Status = false
	m := mustModel(t, c)
	y, err := Build(m)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	i, _ := m.Index(2)
	j, _ := m.Index(3)
	if y.At(i, j) != 0 || y.At(j, i) != 0 {
		t.Error("out-of-service branch left a stamp in the matrix")
	}
	if y.Yff[1] != 0 || y.Ytt[1] != 0 {
		t.Error("out-of-service branch has nonzero per-branch stamps")
	}
}

func TestDanglingBranchFailsWithModelError(t *testing.T) {
	c := testCase()
	c.Branches = append(c.Branches, network.Branch{From: 2, To: 99, X: 0.1, Status: true})
	m := mustModel(t, c)

	_, err := Build(m)
	if !errors.Is(err, network.ErrUnknownBus) {
		t.Fatalf("err = %v, want ErrUnknownBus", err)
	}
	var me *network.ModelError
	if !errors.As(err, &me) {
		t.Fatalf("err %v is not a ModelError", err)
	}

	// Out of service, the same branch is never stamped and cannot fail.
	c.Branches[len(c.Branches)-1].Status = false
	m = mustModel(t, c)
	if _, err := Build(m); err != nil {
		t.Fatalf("out-of-service dangling branch rejected: %v", err)
	}
}

func TestBPrimeIgnoresResistanceChargingAndShunts(t *testing.T) {
	c := network.Case{
		Buses: []network.Bus{
			{ID: 1, Type: network.Slack, Vm: 1.0, Bs: 0.3},
			{ID: 2, Type: network.PQ, Vm: 1.0},
		},
		Branches: []network.Branch{
			{From: 1, To: 2, R: 0.05, X: 0.2, B: 0.1, Tap: 0.9, Status: true},
		},
	}
	m := mustModel(t, c)
	bp, bpp, err := BuildB(m)
	if err != nil {
		t.Fatalf("BuildB: %v", err)
	}

	// B': series reactance only, nominal tap: diagonal 1/x, off-diagonal -1/x.
	if got, want := bp.At(0, 0), 1/0.2; math.Abs(got-want) > 1e-12 {
		t.Errorf("B'(0,0) = %v, want %v", got, want)
	}
	if got, want := bp.At(0, 1), -1/0.2; math.Abs(got-want) > 1e-12 {
		t.Errorf("B'(0,1) = %v, want %v", got, want)
	}

	// B'': full admittance with shifts removed. The to-side diagonal keeps
	// resistance, charging and the bus shunt contributions.
	ys := 1 / complex(0.05, 0.2)
	want := -imag(ys+complex(0, 0.05))
	if got := bpp.At(1, 1); math.Abs(got-want) > 1e-12 {
		t.Errorf("B''(1,1) = %v, want %v", got, want)
	}
	wantDiag := -imag((ys+complex(0, 0.05))/complex(0.9*0.9, 0)) - 0.3
	if got := bpp.At(0, 0); math.Abs(got-wantDiag) > 1e-12 {
		t.Errorf("B''(0,0) = %v, want %v", got, wantDiag)
	}
}

func TestBDoublePrimeDropsPhaseShift(t *testing.T) {
	c := testCase()
	c.Branches[0].Shift = 0.1
	m := mustModel(t, c)
	_, bpp, err := BuildB(m)
	if err != nil {
		t.Fatalf("BuildB: %v", err)
	}

	// Without the shift the two-port stamp is symmetric again.
	f, _ := m.Index(1)
	tt, _ := m.Index(2)
	if math.Abs(bpp.At(f, tt)-bpp.At(tt, f)) > 1e-12 {
		t.Error("B'' should be symmetric once phase shifts are removed")
	}
}

func TestMulVec(t *testing.T) {
	m := mustModel(t, testCase())
	y, err := Build(m)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	v := make([]complex128, y.Size())
	for i := range v {
		v[i] = 1
	}
	got := y.MulVec(v)
	for i := range got {
		var want complex128
		for _, e := range y.Row(i) {
			want += e.Y
		}
		if cmplx.Abs(got[i]-want) > 1e-12 {
			t.Errorf("MulVec[%d] = %v, want row sum %v", i, got[i], want)
		}
	}
}
