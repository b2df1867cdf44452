package network

// BusType classifies a bus by which electrical quantities are held fixed.
type BusType int

const (
	PQ    BusType = iota + 1 // load bus: P and Q fixed
	PV                       // generator bus: P and Vm fixed
	Slack                    // reference bus: Vm and Va fixed
)

func (t BusType) String() string {
	switch t {
	case PQ:
		return "PQ"
	case PV:
		return "PV"
	case Slack:
		return "slack"
	}
	return "unknown"
}

// All electrical quantities are per-unit on the system base; angles are in
// radians. Unit conversion is the caller's concern.

type Bus struct {
	ID     int
	Type   BusType
	BaseKV float64
	Pd, Qd float64 // load demand
	Gs, Bs float64 // shunt admittance at the bus
	Vm, Va float64 // initial voltage guess
}

type Branch struct {
	From, To int
	R, X     float64
	B        float64 // total line charging susceptance
	Tap      float64 // off-nominal tap ratio; 0 means nominal (1.0)
	Shift    float64 // transformer phase shift angle
	Status   bool    // true = in service
}

type Generator struct {
	Bus    int
	Pg, Qg float64
	Vg     float64 // voltage setpoint for PV and slack buses
	Status bool    // true = in service
}

// Case is the inbound description of one steady-state network condition.
type Case struct {
	Buses      []Bus
	Branches   []Branch
	Generators []Generator
}

// Model is an immutable, validated snapshot of a Case with the bus-type
// partition precomputed. It is read-only after construction and may be shared
// across concurrent solve requests.
type Model struct {
	buses      []Bus
	branches   []Branch
	generators []Generator

	idx   map[int]int // external bus id -> internal index
	slack int         // internal index of the slack bus
	pv    []int       // internal indices, ascending
	pq    []int       // internal indices, ascending
}

// NewModel validates a Case and computes the slack/PV/PQ partition.
// Branch-to-bus references are not checked here; the admittance builder
// verifies them when stamping (still before any iteration).
func NewModel(c Case) (*Model, error) {
	m := &Model{
		buses:      append([]Bus(nil), c.Buses...),
		branches:   append([]Branch(nil), c.Branches...),
		generators: append([]Generator(nil), c.Generators...),
		idx:        make(map[int]int, len(c.Buses)),
		slack:      -1,
	}

	for i, b := range m.buses {
		if _, exists := m.idx[b.ID]; exists {
			return nil, NewModelError(ErrDuplicateBus, "bus %d", b.ID)
		}
		m.idx[b.ID] = i

		if b.Vm <= 0 {
			return nil, NewModelError(ErrNonPositiveVm0, "bus %d: Vm=%g", b.ID, b.Vm)
		}

		switch b.Type {
		case Slack:
			if m.slack >= 0 {
				return nil, NewModelError(ErrMultipleSlack, "buses %d and %d", m.buses[m.slack].ID, b.ID)
			}
			m.slack = i
		case PV:
			m.pv = append(m.pv, i)
		case PQ:
			m.pq = append(m.pq, i)
		default:
			return nil, NewModelError(ErrUnknownBusType, "bus %d: type %d", b.ID, b.Type)
		}
	}

	if m.slack < 0 {
		return nil, NewModelError(ErrNoSlackBus, "%d buses, none marked slack", len(m.buses))
	}

	for _, g := range m.generators {
		if !g.Status {
			continue
		}
		i, ok := m.idx[g.Bus]
		if !ok {
			return nil, NewModelError(ErrUnknownGenBus, "bus %d", g.Bus)
		}
		if m.buses[i].Type == PQ {
			return nil, NewModelError(ErrGeneratorOnPQ, "bus %d", g.Bus)
		}
	}

	return m, nil
}

func (m *Model) N() int { return len(m.buses) }

// Index maps an external bus id to its internal matrix index.
func (m *Model) Index(id int) (int, bool) {
	i, ok := m.idx[id]
	return i, ok
}

func (m *Model) Bus(i int) Bus           { return m.buses[i] }
func (m *Model) Buses() []Bus            { return m.buses }
func (m *Model) Branches() []Branch      { return m.branches }
func (m *Model) Generators() []Generator { return m.generators }

func (m *Model) SlackIndex() int { return m.slack }
func (m *Model) PV() []int       { return m.pv }
func (m *Model) PQ() []int       { return m.pq }

// PVPQ returns the angle-unknown bus ordering used by the mismatch vector and
// the Jacobian: PV buses first, then PQ buses, each ascending by internal
// index.
func (m *Model) PVPQ() []int {
	out := make([]int, 0, len(m.pv)+len(m.pq))
	out = append(out, m.pv...)
	out = append(out, m.pq...)
	return out
}

// Sbus assembles the scheduled net complex power injection at every bus:
// in-service generation minus load, per-unit.
func (m *Model) Sbus() []complex128 {
	s := make([]complex128, len(m.buses))
	for i, b := range m.buses {
		s[i] = -complex(b.Pd, b.Qd)
	}
	for _, g := range m.generators {
		if !g.Status {
			continue
		}
		if i, ok := m.idx[g.Bus]; ok {
			s[i] += complex(g.Pg, g.Qg)
		}
	}
	return s
}

// VSetpoint returns the starting voltage magnitude for bus i: the setpoint of
// an attached in-service generator when present, otherwise the bus record's
// own initial magnitude.
func (m *Model) VSetpoint(i int) float64 {
	for _, g := range m.generators {
		if !g.Status || g.Vg <= 0 {
			continue
		}
		if j, ok := m.idx[g.Bus]; ok && j == i {
			return g.Vg
		}
	}
	return m.buses[i].Vm
}
