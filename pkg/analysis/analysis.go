package analysis

import (
	"fmt"
	"strings"

	"powerflow/internal/consts"
	"powerflow/pkg/network"
	"powerflow/pkg/util"
	"powerflow/pkg/ybus"
)

// Method selects the power-flow iteration scheme.
type Method int

const (
	MethodNewton Method = iota
	MethodFastDecoupled
)

func (m Method) String() string {
	switch m {
	case MethodNewton:
		return "newton"
	case MethodFastDecoupled:
		return "fast-decoupled"
	}
	return "unknown"
}

// Config carries the per-solve options. There are no process-wide defaults to
// mutate; zero fields fall back to the package constants.
type Config struct {
	Tolerance     float64 // mismatch infinity-norm stopping threshold, per-unit power
	MaxIterations int
	Method        Method
	FlatStart     bool
}

func DefaultConfig() Config {
	return Config{
		Tolerance:     consts.DefaultTolerance,
		MaxIterations: consts.DefaultMaxIterations,
		Method:        MethodNewton,
	}
}

func (c Config) withDefaults() Config {
	if c.Tolerance <= 0 {
		c.Tolerance = consts.DefaultTolerance
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = consts.DefaultMaxIterations
	}
	return c
}

// Result is the outcome of one power-flow solve. On NonConvergence it still
// carries the last computed state and mismatch norm so the caller can retry
// from a different start or accept the approximation.
//
// The attached Y-bus (and B'/B'' for Fast-Decoupled) are shared read-only
// structures: collaborators such as OPF or state estimation may reuse them
// but must not mutate them.
type Result struct {
	State             *State
	Converged         bool
	Iterations        int
	FinalMismatchNorm float64

	Ybus         *ybus.Matrix
	BPrime       *ybus.RealMatrix // nil unless Fast-Decoupled
	BDoublePrime *ybus.RealMatrix // nil unless Fast-Decoupled
}

func (r *Result) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "converged=%v iterations=%d mismatch=%s\n",
		r.Converged, r.Iterations, util.FormatMismatch(r.FinalMismatchNorm))
	for i := range r.State.Vm {
		sb.WriteString(util.FormatPolar(fmt.Sprintf("V(%d)", i), r.State.Vm[i], r.State.Va[i]))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Solve runs one power-flow computation on the model with the configured
// method. Each call owns its own state, mismatch and factorization; a Model
// may back many concurrent Solve calls.
func Solve(m *network.Model, cfg Config) (*Result, error) {
	switch cfg.Method {
	case MethodNewton:
		nr, err := NewNewton(m, cfg)
		if err != nil {
			return nil, err
		}
		defer nr.Destroy()
		return nr.Run()
	case MethodFastDecoupled:
		fd, err := NewFastDecoupled(m, cfg)
		if err != nil {
			return nil, err
		}
		defer fd.Destroy()
		return fd.Run()
	}
	return nil, fmt.Errorf("unknown solve method %d", cfg.Method)
}
