package region

import (
	"fmt"

	"pulsenet/internal/circuit"
	"pulsenet/internal/connect"
	"pulsenet/internal/model"
	"pulsenet/internal/node"
	"pulsenet/internal/prototype"
)

// Encoder passes only the values of the current state and tallies them per
// action. The tallies are read and cleared from outside once per epoch; the
// choice between actions happens there too.
type Encoder struct {
	*node.Composite
	actions int
	counter *node.Primitive
}

// NewEncoder pairs with a single-replicate cortex: one OR per action merges
// the gated values before the counter.
func NewEncoder(net *circuit.Network, protos prototype.Set, name string, actions, states int) (*Encoder, error) {
	if actions < 1 || states < 1 {
		return nil, fmt.Errorf("%w: encoder %s needs actions and states, got %dx%d", model.ErrAssembly, name, actions, states)
	}
	filter, err := node.NewAnd(net, protos, name+"/filter", connect.Shape{actions, states}, node.AndConfig{})
	if err != nil {
		return nil, err
	}
	summator, err := node.NewOr(net, protos, name+"/summator", connect.Shape{actions})
	if err != nil {
		return nil, err
	}
	counter, err := node.NewCounter(net, protos, name+"/counter", connect.Shape{actions})
	if err != nil {
		return nil, err
	}

	filterOut, _ := node.Output(filter, "out")
	sumIn, sumSyn, _ := node.Input(summator, "in")
	sumOut, _ := node.Output(summator, "out")
	counterIn, counterSyn, _ := node.Input(counter, "in")
	if err := node.ConnectDense(net, name+"/filter>summator", filterOut, 0, sumIn, 0, sumSyn); err != nil {
		return nil, err
	}
	if err := node.ConnectOneToOne(net, name+"/summator>counter", sumOut, counterIn, counterSyn); err != nil {
		return nil, err
	}

	c := node.NewComposite(name)
	c.Add("filter", filter)
	c.Add("summator", summator)
	c.Add("counter", counter)
	return newEncoder(c, actions, filter, counter), nil
}

// NewMultiEncoder pairs with a replicated cortex: every gated replicate
// feeds the action's counter directly, so the tally sums over replicates.
func NewMultiEncoder(net *circuit.Network, protos prototype.Set, name string, actions, states, replicates int) (*Encoder, error) {
	if actions < 1 || states < 1 || replicates < 1 {
		return nil, fmt.Errorf("%w: encoder %s needs actions, states and replicates, got %dx%dx%d", model.ErrAssembly, name, actions, states, replicates)
	}
	filter, err := node.NewAnd(net, protos, name+"/filter", connect.Shape{actions, states, replicates}, node.AndConfig{})
	if err != nil {
		return nil, err
	}
	counter, err := node.NewCounter(net, protos, name+"/counter", connect.Shape{actions})
	if err != nil {
		return nil, err
	}
	filterOut, _ := node.Output(filter, "out")
	counterIn, counterSyn, _ := node.Input(counter, "in")
	if err := node.ConnectDense(net, name+"/filter>counter", filterOut, 0, counterIn, 0, counterSyn); err != nil {
		return nil, err
	}

	c := node.NewComposite(name)
	c.Add("filter", filter)
	c.Add("counter", counter)
	return newEncoder(c, actions, filter, counter), nil
}

func newEncoder(c *node.Composite, actions int, filter, counter *node.Primitive) *Encoder {
	in, syn, _ := node.Input(filter, "in")
	// the state line and the value line gate the same filter
	c.ExposeInput("state", in, syn)
	c.ExposeInput("value", in, syn)
	out, _ := node.Output(counter, "out")
	c.ExposeOutput("out", out)
	return &Encoder{Composite: c, actions: actions, counter: counter}
}

func (e *Encoder) Actions() int { return e.actions }

// Counter is the per-action tally population.
func (e *Encoder) Counter() circuit.PopulationID {
	out, _ := node.Output(e.counter, "out")
	return out.Pop
}
