package node

import (
	"sort"

	"pulsenet/internal/prototype"
)

// Composite is a node built from named children. Its ports are ports of its
// children, so composites nest without limit.
type Composite struct {
	name     string
	children map[string]Node
	inputs   []Port
	outputs  []Port
	synapses []prototype.Synapse
}

func NewComposite(name string) *Composite {
	return &Composite{name: name, children: make(map[string]Node)}
}

func (c *Composite) Name() string { return c.name }

func (c *Composite) Add(name string, child Node) {
	c.children[name] = child
}

// Child returns the named child, or nil.
func (c *Composite) Child(name string) Node {
	return c.children[name]
}

func (c *Composite) Children() []string {
	names := make([]string, 0, len(c.children))
	for name := range c.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExposeInput publishes a child's port as one of the composite's inputs.
func (c *Composite) ExposeInput(name string, p Port, syn prototype.Synapse) {
	p.Name = name
	c.inputs = append(c.inputs, p)
	c.synapses = append(c.synapses, syn)
}

func (c *Composite) ExposeOutput(name string, p Port) {
	p.Name = name
	c.outputs = append(c.outputs, p)
}

func (c *Composite) Inputs() []Port { return append([]Port(nil), c.inputs...) }

func (c *Composite) Outputs() []Port { return append([]Port(nil), c.outputs...) }

func (c *Composite) SynapsePrototypes() []prototype.Synapse {
	return append([]prototype.Synapse(nil), c.synapses...)
}
