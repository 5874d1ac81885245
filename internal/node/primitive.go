package node

import (
	"fmt"

	"pulsenet/internal/circuit"
	"pulsenet/internal/connect"
	"pulsenet/internal/prototype"
)

type Kind int

const (
	KindOr Kind = iota
	KindAnd
	KindInverter
	KindFlipFlop
	KindSoftReset
	KindTracker
	KindCounter
	KindRingOscillator
)

var kindNames = [...]string{"or", "and", "inverter", "flipflop", "soft-reset", "tracker", "counter", "ring-oscillator"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Primitive is a single logic element. Which populations it owns depends on
// its kind.
type Primitive struct {
	kind     Kind
	name     string
	shape    connect.Shape
	pops     map[string]circuit.PopulationID
	inputs   []Port
	outputs  []Port
	synapses []prototype.Synapse
}

func (p *Primitive) Kind() Kind { return p.kind }

func (p *Primitive) Name() string { return p.name }

func (p *Primitive) Shape() connect.Shape { return p.shape.Clone() }

// Population returns an internal population by role, e.g. "soma".
func (p *Primitive) Population(role string) (circuit.PopulationID, bool) {
	id, ok := p.pops[role]
	return id, ok
}

func (p *Primitive) Inputs() []Port { return append([]Port(nil), p.inputs...) }

func (p *Primitive) Outputs() []Port { return append([]Port(nil), p.outputs...) }

func (p *Primitive) SynapsePrototypes() []prototype.Synapse {
	return append([]prototype.Synapse(nil), p.synapses...)
}

// builder allocates a primitive's populations and wiring, keeping the first
// error.
type builder struct {
	net *circuit.Network
	p   *Primitive
	err error
}

func newBuilder(net *circuit.Network, kind Kind, name string, shape connect.Shape) *builder {
	return &builder{
		net: net,
		p: &Primitive{
			kind:  kind,
			name:  name,
			shape: shape.Clone(),
			pops:  make(map[string]circuit.PopulationID),
		},
	}
}

func (b *builder) port(role string) Port {
	return Port{Name: role, Pop: b.p.pops[role], Shape: b.net.Population(b.p.pops[role]).Shape}
}

func (b *builder) pop(role string, c prototype.Compartment) {
	b.popShaped(role, b.p.shape, c)
}

func (b *builder) popShaped(role string, shape connect.Shape, c prototype.Compartment) {
	if b.err != nil {
		return
	}
	id, err := b.net.AddPopulation(b.p.name+"/"+role, shape, c)
	if err != nil {
		b.err = err
		return
	}
	b.p.pops[role] = id
}

func (b *builder) dendrite(role, parent string, join circuit.Join, c prototype.Compartment) {
	if b.err != nil {
		return
	}
	id, err := b.net.AddDendrite(b.p.name+"/"+role, b.p.pops[parent], join, c)
	if err != nil {
		b.err = err
		return
	}
	b.p.pops[role] = id
}

func (b *builder) oneToOne(from, to string, syn prototype.Synapse) {
	if b.err != nil {
		return
	}
	b.err = ConnectOneToOne(b.net, b.p.name+"/"+from+">"+to, b.port(from), b.port(to), syn)
}

func (b *builder) full(from, to string, syn prototype.Synapse) {
	if b.err != nil {
		return
	}
	b.err = ConnectFull(b.net, b.p.name+"/"+from+">"+to, b.port(from), b.port(to), syn)
}

func (b *builder) masked(from, to string, mask *connect.Mask, syn prototype.Synapse) {
	if b.err != nil {
		return
	}
	_, b.err = b.net.Connect(b.p.name+"/"+from+">"+to, b.p.pops[from], b.p.pops[to], mask, syn)
}

func (b *builder) input(role string, syn prototype.Synapse) {
	if b.err != nil {
		return
	}
	port := b.port(role)
	b.p.inputs = append(b.p.inputs, port)
	b.p.synapses = append(b.p.synapses, syn)
}

func (b *builder) inputAs(name, role string, syn prototype.Synapse) {
	if b.err != nil {
		return
	}
	port := b.port(role)
	port.Name = name
	b.p.inputs = append(b.p.inputs, port)
	b.p.synapses = append(b.p.synapses, syn)
}

func (b *builder) outputAs(name, role string) {
	if b.err != nil {
		return
	}
	port := b.port(role)
	port.Name = name
	b.p.outputs = append(b.p.outputs, port)
}

func (b *builder) done() (*Primitive, error) {
	if b.err != nil {
		return nil, fmt.Errorf("%s %s: %w", b.p.kind, b.p.name, b.err)
	}
	return b.p, nil
}

// NewOr is a buffer that fires in any tick at least one input arrived.
func NewOr(net *circuit.Network, protos prototype.Set, name string, shape connect.Shape) (*Primitive, error) {
	b := newBuilder(net, KindOr, name, shape)
	b.pop("or", protos.Buffer)
	b.inputAs("in", "or", protos.Single)
	b.outputAs("out", "or")
	return b.done()
}

type AndConfig struct {
	// Inputs is how many simultaneous arrivals the gate needs. Defaults to 2.
	Inputs int
}

// NewAnd fires only when every configured input arrives in the same tick.
func NewAnd(net *circuit.Network, protos prototype.Set, name string, shape connect.Shape, cfg AndConfig) (*Primitive, error) {
	if cfg.Inputs == 0 {
		cfg.Inputs = 2
	}
	syn, err := protos.AndSynapse(cfg.Inputs)
	if err != nil {
		return nil, fmt.Errorf("and %s: %w", name, err)
	}
	b := newBuilder(net, KindAnd, name, shape)
	b.pop("and", protos.And)
	b.inputAs("in", "and", syn)
	b.outputAs("out", "and")
	return b.done()
}

// NewInverter fires every tick except the tick after an input arrives.
func NewInverter(net *circuit.Network, protos prototype.Set, name string, shape connect.Shape) (*Primitive, error) {
	b := newBuilder(net, KindInverter, name, shape)
	b.pop("inverter", protos.Inverter)
	b.inputAs("in", "inverter", protos.Invert)
	b.outputAs("out", "inverter")
	return b.done()
}

// NewCounter tallies arrivals without decay. It saturates at its ceiling and
// can only be read, never wired onward.
func NewCounter(net *circuit.Network, protos prototype.Set, name string, shape connect.Shape) (*Primitive, error) {
	b := newBuilder(net, KindCounter, name, shape)
	b.pop("counter", protos.Counter)
	b.inputAs("in", "counter", protos.Single)
	b.outputAs("out", "counter")
	return b.done()
}

// NewFlipFlop latches on excite and releases on inhibit. A latched unit fires
// every tick. The inhibit buffer vetoes the excite gate in its own tick and
// clears the memory one tick later, so an inhibit at or after an excite
// always wins.
//
// Timing, counted from the tick the excite buffer fires: the output starts
// two ticks later. An inhibit buffer spike k>=1 ticks after the excite
// buffer stops the output from tick k+2.
func NewFlipFlop(net *circuit.Network, protos prototype.Set, name string, shape connect.Shape) (*Primitive, error) {
	b := newBuilder(net, KindFlipFlop, name, shape)
	b.pop("soma", protos.FlipFlopSoma)
	b.dendrite("memory", "soma", circuit.JoinAdd, protos.FlipFlopMemory)
	b.pop("inverter", protos.Inverter)
	b.pop("excite-and", protos.And)
	b.pop("inhibit-and", protos.And)
	b.pop("excite", protos.Buffer)
	b.pop("inhibit", protos.Buffer)

	b.oneToOne("soma", "inverter", protos.Invert)
	b.oneToOne("excite", "excite-and", protos.Half)
	b.oneToOne("inhibit", "inhibit-and", protos.Half)
	b.oneToOne("inverter", "excite-and", protos.Half)
	b.oneToOne("soma", "inhibit-and", protos.Half)
	b.oneToOne("inhibit", "excite-and", protos.Reset)
	b.oneToOne("excite-and", "memory", protos.Excite)
	b.oneToOne("inhibit-and", "memory", protos.Inhibit)
	b.oneToOne("inhibit", "memory", protos.Inhibit.WithDelay(1))

	b.input("excite", protos.Single)
	b.input("inhibit", protos.Single)
	b.outputAs("out", "soma")
	return b.done()
}
