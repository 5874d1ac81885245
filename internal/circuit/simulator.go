package circuit

import (
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/exp/constraints"

	"pulsenet/internal/model"
	"pulsenet/internal/prototype"
)

const (
	// VoltageLimit bounds every compartment voltage to a signed 24-bit range.
	VoltageLimit int64 = 1<<23 - 1

	decayOne = 4096
)

type Option func(*Simulator)

func WithSeed(seed int64) Option {
	return func(s *Simulator) {
		s.seed = seed
	}
}

type route struct {
	target  PopulationID
	weight  int64
	delay   int
	targets [][]int
}

type unitState struct {
	u         []int64
	v         []int64
	fired     []bool
	saturated []bool
	addJoin   []int64
	orJoin    []bool
	pending   []bool
	lo, hi    int64
	rng       *rand.Rand
}

// Simulator advances a Network one tick at a time. The next state of every
// unit depends only on input that arrived by this tick, so evaluation order
// between populations is irrelevant except that dendrites run before their
// parents.
//
// A spike emitted at tick t through a connection with delay d is integrated
// at tick t+1+d.
type Simulator struct {
	net    *Network
	seed   int64
	tick   int
	state  []unitState
	routes [][]route
	order  []PopulationID
	ring   [][][]int64
}

func NewSimulator(net *Network, opts ...Option) *Simulator {
	s := &Simulator{net: net, seed: 1}
	for _, opt := range opts {
		opt(s)
	}

	maxDelay := 0
	s.routes = make([][]route, len(net.pops))
	for _, c := range net.conns {
		r := route{
			target:  c.Target,
			weight:  c.Synapse.WeightRaw(),
			delay:   c.Synapse.Delay,
			targets: make([][]int, c.Mask.Rows()),
		}
		for src := range r.targets {
			r.targets[src] = c.Mask.Targets(src)
		}
		s.routes[c.Source] = append(s.routes[c.Source], r)
		if c.Synapse.Delay > maxDelay {
			maxDelay = c.Synapse.Delay
		}
	}

	s.ring = make([][][]int64, maxDelay+2)
	for slot := range s.ring {
		s.ring[slot] = make([][]int64, len(net.pops))
		for id, p := range net.pops {
			s.ring[slot][id] = make([]int64, p.Size())
		}
	}

	s.state = make([]unitState, len(net.pops))
	for id, p := range net.pops {
		size := p.Size()
		st := unitState{
			u:         make([]int64, size),
			v:         make([]int64, size),
			fired:     make([]bool, size),
			saturated: make([]bool, size),
			addJoin:   make([]int64, size),
			orJoin:    make([]bool, size),
			pending:   make([]bool, size),
			lo:        -VoltageLimit,
			hi:        VoltageLimit,
		}
		c := p.Compartment
		if c.Bounded {
			st.lo = max(st.lo, c.VMin)
			st.hi = min(st.hi, c.VMax)
		}
		if c.Noisy {
			st.rng = rand.New(rand.NewSource(s.seed + int64(id)*7919))
		}
		s.state[id] = st
	}

	// dendrites are always allocated after their parents
	s.order = make([]PopulationID, len(net.pops))
	for i := range s.order {
		s.order[i] = PopulationID(len(net.pops) - 1 - i)
	}
	return s
}

// Tick is the number of ticks completed so far.
func (s *Simulator) Tick() int {
	return s.tick
}

func (s *Simulator) Network() *Network {
	return s.net
}

func (s *Simulator) Step() {
	slot := s.tick % len(s.ring)
	for _, id := range s.order {
		s.integrate(id, s.ring[slot][id])
	}
	for id, routes := range s.routes {
		fired := s.state[id].fired
		for _, r := range routes {
			dst := s.ring[(s.tick+1+r.delay)%len(s.ring)][r.target]
			for unit, on := range fired {
				if !on {
					continue
				}
				for _, t := range r.targets[unit] {
					dst[t] += r.weight
				}
			}
		}
	}
	s.tick++
}

// Run advances n ticks, stopping early when ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Step()
	}
	return nil
}

func (s *Simulator) integrate(id PopulationID, input []int64) {
	p := &s.net.pops[id]
	st := &s.state[id]

	if p.Stub {
		copy(st.fired, st.pending)
		clear(st.pending)
		return
	}

	c := &p.Compartment
	bias := c.BiasRaw()
	threshold := c.ThresholdRaw()
	bound := c.NoiseBound()

	var parent *unitState
	if p.IsDendrite() {
		parent = &s.state[p.Parent]
	}

	for i := range st.v {
		u := decay(st.u[i], c.CurrentDecay) + input[i]
		input[i] = 0
		v := decay(st.v[i], c.VoltageDecay) + u + bias + st.addJoin[i]
		joined := st.orJoin[i]
		st.addJoin[i] = 0
		st.orJoin[i] = false

		if c.Saturating && v > st.hi {
			st.saturated[i] = true
		}
		v = clamp(v, st.lo, st.hi)

		effective := threshold
		if bound > 0 {
			effective += st.rng.Int63n(2*bound+1) - bound
		}

		var fired, passed bool
		var out int64
		switch c.Behavior {
		case prototype.SpikeAndReset:
			fired = v > effective || joined
			passed = fired
			if fired {
				v = 0
			}
		case prototype.PassAboveThreshold:
			passed = v > effective || joined
			if passed {
				out = v
			}
		case prototype.PassVoltage:
			passed = v > effective || joined
			out = v
		}

		st.u[i] = u
		st.v[i] = v
		if parent == nil {
			st.fired[i] = fired
			continue
		}
		switch p.Join {
		case JoinAdd:
			parent.addJoin[i] += out
		case JoinOr:
			parent.orJoin[i] = parent.orJoin[i] || passed
		}
	}
}

// Inject makes one unit of an input stub fire during the next Step.
func (s *Simulator) Inject(id PopulationID, unit int) error {
	if err := s.net.check(id); err != nil {
		return err
	}
	p := s.net.pops[id]
	if !p.Stub {
		return fmt.Errorf("%w: population %s is not an input stub", model.ErrAssembly, p.Name)
	}
	if unit < 0 || unit >= p.Size() {
		return fmt.Errorf("%w: unit %d outside stub %s of size %d", model.ErrAssembly, unit, p.Name, p.Size())
	}
	s.state[id].pending[unit] = true
	return nil
}

// Fired reports which units of a population fired in the last tick.
func (s *Simulator) Fired(id PopulationID) []bool {
	return append([]bool(nil), s.state[id].fired...)
}

func (s *Simulator) Spiked(id PopulationID, unit int) bool {
	return s.state[id].fired[unit]
}

func (s *Simulator) FiredCount(id PopulationID) int {
	n := 0
	for _, on := range s.state[id].fired {
		if on {
			n++
		}
	}
	return n
}

func (s *Simulator) Voltage(id PopulationID, unit int) int64 {
	return s.state[id].v[unit]
}

// SetVoltage overwrites a unit's voltage, clamped to its population's range.
func (s *Simulator) SetVoltage(id PopulationID, unit int, v int64) {
	st := &s.state[id]
	st.v[unit] = clamp(v, st.lo, st.hi)
}

func (s *Simulator) ResetVoltages(id PopulationID) {
	clear(s.state[id].v)
}

// Saturated reports whether a saturating unit has been clamped at its ceiling
// since the flag was last cleared.
func (s *Simulator) Saturated(id PopulationID, unit int) bool {
	return s.state[id].saturated[unit]
}

func (s *Simulator) ClearSaturation(id PopulationID) {
	clear(s.state[id].saturated)
}

func decay(x int64, d int) int64 {
	if d == 0 {
		return x
	}
	return x * int64(decayOne-d) / decayOne
}

func clamp[T constraints.Signed](x, lo, hi T) T {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
