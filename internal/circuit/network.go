// Package circuit is the synchronous substrate: a flat arena of shaped
// populations wired by masked connections, and a simulator that advances
// every unit by one global tick at a time.
package circuit

import (
	"fmt"

	"pulsenet/internal/connect"
	"pulsenet/internal/model"
	"pulsenet/internal/prototype"
)

type PopulationID int

type ConnectionID int

// NoPopulation marks a population without a parent.
const NoPopulation PopulationID = -1

// Join is how a dendrite population feeds its parent, unit for unit.
type Join int

const (
	JoinNone Join = iota
	// JoinAdd adds the dendrite's passed voltage to the parent's input.
	JoinAdd
	// JoinOr makes the parent fire whenever the dendrite passes.
	JoinOr
)

func (j Join) String() string {
	switch j {
	case JoinNone:
		return "none"
	case JoinAdd:
		return "add"
	case JoinOr:
		return "or"
	default:
		return fmt.Sprintf("join(%d)", int(j))
	}
}

type Population struct {
	ID          PopulationID
	Name        string
	Shape       connect.Shape
	Compartment prototype.Compartment
	Parent      PopulationID
	Join        Join
	Stub        bool
}

func (p Population) Size() int {
	return p.Shape.Size()
}

func (p Population) IsDendrite() bool {
	return p.Parent != NoPopulation
}

type Connection struct {
	ID      ConnectionID
	Name    string
	Source  PopulationID
	Target  PopulationID
	Mask    *connect.Mask
	Synapse prototype.Synapse
}

// Network is the arena every node allocates into. It is static once a
// Simulator has been built from it.
type Network struct {
	pops   []Population
	conns  []Connection
	byName map[string]PopulationID
}

func NewNetwork() *Network {
	return &Network{byName: make(map[string]PopulationID)}
}

func (n *Network) AddPopulation(name string, shape connect.Shape, c prototype.Compartment) (PopulationID, error) {
	if err := c.Validate(); err != nil {
		return NoPopulation, fmt.Errorf("population %s: %w", name, err)
	}
	return n.add(Population{Name: name, Shape: shape.Clone(), Compartment: c, Parent: NoPopulation})
}

// AddDendrite attaches a population of the parent's shape that is computed
// before the parent in every tick and joins into it unit for unit.
func (n *Network) AddDendrite(name string, parent PopulationID, join Join, c prototype.Compartment) (PopulationID, error) {
	if err := n.check(parent); err != nil {
		return NoPopulation, err
	}
	if join != JoinAdd && join != JoinOr {
		return NoPopulation, fmt.Errorf("%w: dendrite %s needs an add or or join, got %s", model.ErrAssembly, name, join)
	}
	p := n.pops[parent]
	if p.Stub {
		return NoPopulation, fmt.Errorf("%w: dendrite %s cannot attach to input stub %s", model.ErrAssembly, name, p.Name)
	}
	if err := c.Validate(); err != nil {
		return NoPopulation, fmt.Errorf("dendrite %s: %w", name, err)
	}
	return n.add(Population{Name: name, Shape: p.Shape.Clone(), Compartment: c, Parent: parent, Join: join})
}

// AddStub creates an external input line that fires only when injected.
func (n *Network) AddStub(name string, shape connect.Shape) (PopulationID, error) {
	return n.add(Population{Name: name, Shape: shape.Clone(), Compartment: prototype.Compartment{Name: "stub"}, Parent: NoPopulation, Stub: true})
}

func (n *Network) add(p Population) (PopulationID, error) {
	if p.Name == "" {
		return NoPopulation, fmt.Errorf("%w: population name is required", model.ErrAssembly)
	}
	if _, exists := n.byName[p.Name]; exists {
		return NoPopulation, fmt.Errorf("%w: population %s already exists", model.ErrAssembly, p.Name)
	}
	if err := p.Shape.Validate(); err != nil {
		return NoPopulation, fmt.Errorf("population %s: %w", p.Name, err)
	}
	p.ID = PopulationID(len(n.pops))
	n.pops = append(n.pops, p)
	n.byName[p.Name] = p.ID
	return p.ID, nil
}

// Connect wires src to dst. The mask must be source units by target units.
func (n *Network) Connect(name string, src, dst PopulationID, mask *connect.Mask, syn prototype.Synapse) (ConnectionID, error) {
	if err := n.check(src); err != nil {
		return -1, err
	}
	if err := n.check(dst); err != nil {
		return -1, err
	}
	from, to := n.pops[src], n.pops[dst]
	switch {
	case mask == nil:
		return -1, fmt.Errorf("%w: connection %s has no mask", model.ErrAssembly, name)
	case from.Compartment.Sink:
		return -1, fmt.Errorf("%w: connection %s: %s is an observable sink and cannot drive other populations", model.ErrAssembly, name, from.Name)
	case from.IsDendrite():
		return -1, fmt.Errorf("%w: connection %s: dendrite %s cannot be a source", model.ErrAssembly, name, from.Name)
	case to.Stub:
		return -1, fmt.Errorf("%w: connection %s: input stub %s cannot be a target", model.ErrAssembly, name, to.Name)
	case mask.Rows() != from.Size() || mask.Cols() != to.Size():
		return -1, fmt.Errorf("%w: connection %s: mask is %dx%d, populations %s%s -> %s%s", model.ErrAssembly, name, mask.Rows(), mask.Cols(), from.Name, from.Shape, to.Name, to.Shape)
	}
	if err := syn.Validate(); err != nil {
		return -1, fmt.Errorf("connection %s: %w", name, err)
	}
	id := ConnectionID(len(n.conns))
	n.conns = append(n.conns, Connection{ID: id, Name: name, Source: src, Target: dst, Mask: mask, Synapse: syn})
	return id, nil
}

func (n *Network) Population(id PopulationID) Population {
	return n.pops[id]
}

func (n *Network) Lookup(name string) (PopulationID, bool) {
	id, ok := n.byName[name]
	return id, ok
}

func (n *Network) Populations() []Population {
	return append([]Population(nil), n.pops...)
}

func (n *Network) Connections() []Connection {
	return append([]Connection(nil), n.conns...)
}

func (n *Network) Units() int {
	total := 0
	for _, p := range n.pops {
		total += p.Size()
	}
	return total
}

// Synapses is the total number of set mask entries over all connections.
func (n *Network) Synapses() int {
	total := 0
	for _, c := range n.conns {
		total += c.Mask.Count()
	}
	return total
}

func (n *Network) check(id PopulationID) error {
	if id < 0 || int(id) >= len(n.pops) {
		return fmt.Errorf("%w: unknown population id %d", model.ErrAssembly, id)
	}
	return nil
}
