// Package region builds the four stages of the agent pipeline out of node
// primitives: the state decoder, the eligibility trace (hippocampus), the
// value store (cortex) and the action encoder.
package region

import (
	"fmt"

	"pulsenet/internal/circuit"
	"pulsenet/internal/connect"
	"pulsenet/internal/model"
	"pulsenet/internal/node"
	"pulsenet/internal/prototype"
)

const (
	// DecoderSetDelay holds a new state back until the old one is cleared.
	DecoderSetDelay = 5
	// DecoderResetWindow is how many consecutive ticks each input pulse
	// keeps the memory reset line active.
	DecoderResetWindow = 4
	// DecoderSettle is the number of ticks from an input buffer spike until
	// the new state is latched.
	DecoderSettle = DecoderSetDelay + 3
)

// Decoder turns a one-hot state pulse into a state line that fires every
// tick until the next pulse arrives. Pulses on two lines in quick
// succession never leave both latched.
type Decoder struct {
	*node.Composite
	states int
	memory *node.Primitive
}

func NewDecoder(net *circuit.Network, protos prototype.Set, name string, states int) (*Decoder, error) {
	if states < 1 {
		return nil, fmt.Errorf("%w: decoder %s needs at least one state, got %d", model.ErrAssembly, name, states)
	}
	shape := connect.Shape{states}
	input, err := node.NewOr(net, protos, name+"/input", shape)
	if err != nil {
		return nil, err
	}
	sum, err := node.NewOr(net, protos, name+"/sum", connect.Shape{1})
	if err != nil {
		return nil, err
	}
	memory, err := node.NewFlipFlop(net, protos, name+"/memory", shape)
	if err != nil {
		return nil, err
	}

	inOut, _ := node.Output(input, "out")
	sumIn, sumSyn, _ := node.Input(sum, "in")
	sumOut, _ := node.Output(sum, "out")
	set, _, _ := node.Input(memory, "excite")
	reset, resetSyn, _ := node.Input(memory, "inhibit")

	if err := node.ConnectFull(net, name+"/input>sum", inOut, sumIn, sumSyn); err != nil {
		return nil, err
	}
	for d := 0; d < DecoderResetWindow; d++ {
		if err := node.ConnectFull(net, fmt.Sprintf("%s/sum>reset#%d", name, d), sumOut, reset, resetSyn.WithDelay(d)); err != nil {
			return nil, err
		}
	}
	activation := protos.Drive.WithDelay(DecoderSetDelay)
	if err := node.ConnectOneToOne(net, name+"/input>set", inOut, set, activation); err != nil {
		return nil, err
	}

	c := node.NewComposite(name)
	c.Add("input", input)
	c.Add("sum", sum)
	c.Add("memory", memory)
	in, inSyn, _ := node.Input(input, "in")
	c.ExposeInput("in", in, inSyn)
	out, _ := node.Output(memory, "out")
	c.ExposeOutput("out", out)
	return &Decoder{Composite: c, states: states, memory: memory}, nil
}

func (d *Decoder) States() int { return d.states }

// Latched is the population that fires for the current state.
func (d *Decoder) Latched() circuit.PopulationID {
	out, _ := node.Output(d.memory, "out")
	return out.Pop
}
