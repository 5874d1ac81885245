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
	// FeedbackSumDelay routes reward and punishment into the trace reset.
	FeedbackSumDelay = 3
	// TraceResetDelay holds the trace reset back until the gates have read
	// the trace.
	TraceResetDelay = 6
	// GateDelay lines reward and punishment up with the trace at the gates.
	GateDelay = 5
)

// Hippocampus keeps an eligibility trace of the (action, state) pairs taken
// since the last feedback and, on reward or punishment, emits one event for
// every traced pair. Feedback of any kind, including a draw, clears the
// trace afterwards.
type Hippocampus struct {
	*node.Composite
	actions, states int
	trace           *node.Primitive
	feedbackDelay   *node.Primitive
}

func NewHippocampus(net *circuit.Network, protos prototype.Set, name string, actions, states int) (*Hippocampus, error) {
	if actions < 1 || states < 1 {
		return nil, fmt.Errorf("%w: hippocampus %s needs actions and states, got %dx%d", model.ErrAssembly, name, actions, states)
	}
	shape := connect.Shape{actions, states}
	one := connect.Shape{1}

	filter, err := node.NewAnd(net, protos, name+"/filter", shape, node.AndConfig{})
	if err != nil {
		return nil, err
	}
	trace, err := node.NewFlipFlop(net, protos, name+"/trace", shape)
	if err != nil {
		return nil, err
	}
	reward, err := node.NewOr(net, protos, name+"/reward", one)
	if err != nil {
		return nil, err
	}
	punishment, err := node.NewOr(net, protos, name+"/punishment", one)
	if err != nil {
		return nil, err
	}
	feedback, err := node.NewOr(net, protos, name+"/feedback", one)
	if err != nil {
		return nil, err
	}
	// allocated but left unwired; see Hippocampus.FeedbackDelay
	feedbackDelay, err := node.NewOr(net, protos, name+"/feedback-delay", one)
	if err != nil {
		return nil, err
	}
	rewardGate, err := node.NewAnd(net, protos, name+"/reward-gate", shape, node.AndConfig{})
	if err != nil {
		return nil, err
	}
	punishmentGate, err := node.NewAnd(net, protos, name+"/punishment-gate", shape, node.AndConfig{})
	if err != nil {
		return nil, err
	}

	filterOut, _ := node.Output(filter, "out")
	traceOut, _ := node.Output(trace, "out")
	traceSet, setSyn, _ := node.Input(trace, "excite")
	traceReset, _, _ := node.Input(trace, "inhibit")
	rewardOut, _ := node.Output(reward, "out")
	punishmentOut, _ := node.Output(punishment, "out")
	feedbackIn, orSyn, _ := node.Input(feedback, "in")
	feedbackOut, _ := node.Output(feedback, "out")
	rewardGateIn, andSyn, _ := node.Input(rewardGate, "in")
	punishmentGateIn, _, _ := node.Input(punishmentGate, "in")

	links := []struct {
		name     string
		from, to node.Port
		syn      prototype.Synapse
		full     bool
	}{
		{"filter>trace", filterOut, traceSet, setSyn, false},
		{"trace>reward-gate", traceOut, rewardGateIn, andSyn, false},
		{"trace>punishment-gate", traceOut, punishmentGateIn, andSyn, false},
		{"reward>reward-gate", rewardOut, rewardGateIn, andSyn.WithDelay(GateDelay), true},
		{"punishment>punishment-gate", punishmentOut, punishmentGateIn, andSyn.WithDelay(GateDelay), true},
		{"reward>feedback", rewardOut, feedbackIn, orSyn.WithDelay(FeedbackSumDelay), true},
		{"punishment>feedback", punishmentOut, feedbackIn, orSyn.WithDelay(FeedbackSumDelay), true},
		{"feedback>trace", feedbackOut, traceReset, orSyn.WithDelay(TraceResetDelay), true},
	}
	for _, l := range links {
		connectFn := node.ConnectOneToOne
		if l.full {
			connectFn = node.ConnectFull
		}
		if err := connectFn(net, name+"/"+l.name, l.from, l.to, l.syn); err != nil {
			return nil, err
		}
	}

	c := node.NewComposite(name)
	c.Add("filter", filter)
	c.Add("trace", trace)
	c.Add("reward", reward)
	c.Add("punishment", punishment)
	c.Add("feedback", feedback)
	c.Add("feedback-delay", feedbackDelay)
	c.Add("reward-gate", rewardGate)
	c.Add("punishment-gate", punishmentGate)

	filterIn, filterSyn, _ := node.Input(filter, "in")
	rewardIn, rewardSyn, _ := node.Input(reward, "in")
	punishmentIn, punishmentSyn, _ := node.Input(punishment, "in")
	c.ExposeInput("in", filterIn, filterSyn)
	c.ExposeInput("reward", rewardIn, rewardSyn)
	c.ExposeInput("punishment", punishmentIn, punishmentSyn)
	c.ExposeInput("feedback", feedbackIn, orSyn)
	rewardGateOut, _ := node.Output(rewardGate, "out")
	punishmentGateOut, _ := node.Output(punishmentGate, "out")
	c.ExposeOutput("reward", rewardGateOut)
	c.ExposeOutput("punishment", punishmentGateOut)

	return &Hippocampus{
		Composite:     c,
		actions:       actions,
		states:        states,
		trace:         trace,
		feedbackDelay: feedbackDelay,
	}, nil
}

// Trace is the population latched for every (action, state) pair visited
// since the last feedback.
func (h *Hippocampus) Trace() circuit.PopulationID {
	out, _ := node.Output(h.trace, "out")
	return out.Pop
}

// FeedbackDelay is a spare buffer for a second trace reset stage. It is not
// connected; the trace reset runs straight from the feedback sum.
func (h *Hippocampus) FeedbackDelay() circuit.PopulationID {
	out, _ := node.Output(h.feedbackDelay, "out")
	return out.Pop
}
