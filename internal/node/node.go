// Package node implements the logic primitives and the generic composite
// that every circuit in the agent is built from.
//
// A node allocates its populations in a circuit.Network when constructed and
// exposes them through ports. Anything that wires into a node uses the
// synapse prototype the node publishes for that input.
package node

import (
	"fmt"

	"pulsenet/internal/circuit"
	"pulsenet/internal/connect"
	"pulsenet/internal/prototype"
)

// Port names one population a node exposes.
type Port struct {
	Name  string
	Pop   circuit.PopulationID
	Shape connect.Shape
}

// Node is the contract shared by primitives and composites.
// SynapsePrototypes is aligned with Inputs.
type Node interface {
	Inputs() []Port
	Outputs() []Port
	SynapsePrototypes() []prototype.Synapse
}

// Input returns the named input port and the synapse prototype to reach it.
func Input(n Node, name string) (Port, prototype.Synapse, error) {
	syns := n.SynapsePrototypes()
	for i, p := range n.Inputs() {
		if p.Name == name {
			return p, syns[i], nil
		}
	}
	return Port{}, prototype.Synapse{}, fmt.Errorf("no input port %q", name)
}

// Output returns the named output port.
func Output(n Node, name string) (Port, error) {
	for _, p := range n.Outputs() {
		if p.Name == name {
			return p, nil
		}
	}
	return Port{}, fmt.Errorf("no output port %q", name)
}

func ConnectOneToOne(net *circuit.Network, name string, from, to Port, syn prototype.Synapse) error {
	mask, err := connect.OneToOne(from.Shape, to.Shape)
	return link(net, name, from, to, mask, syn, err)
}

func ConnectFull(net *circuit.Network, name string, from, to Port, syn prototype.Synapse) error {
	mask, err := connect.Full(from.Shape, to.Shape)
	return link(net, name, from, to, mask, syn, err)
}

func ConnectDense(net *circuit.Network, name string, from Port, fromAxis int, to Port, toAxis int, syn prototype.Synapse) error {
	mask, err := connect.DenseAlongAxis(from.Shape, fromAxis, to.Shape, toAxis)
	return link(net, name, from, to, mask, syn, err)
}

func ConnectProject(net *circuit.Network, name string, from Port, axis int, to Port, syn prototype.Synapse) error {
	mask, err := connect.ProjectAlongAxis(from.Shape, axis, to.Shape)
	return link(net, name, from, to, mask, syn, err)
}

func ConnectExpand(net *circuit.Network, name string, from, to Port, axis int, syn prototype.Synapse) error {
	mask, err := connect.ExpandAlongAxis(from.Shape, to.Shape, axis)
	return link(net, name, from, to, mask, syn, err)
}

func link(net *circuit.Network, name string, from, to Port, mask *connect.Mask, syn prototype.Synapse, maskErr error) error {
	if maskErr != nil {
		return fmt.Errorf("connection %s: %w", name, maskErr)
	}
	_, err := net.Connect(name, from.Pop, to.Pop, mask, syn)
	return err
}
