package region

import (
	"fmt"

	"pulsenet/internal/circuit"
	"pulsenet/internal/connect"
	"pulsenet/internal/model"
	"pulsenet/internal/node"
	"pulsenet/internal/prototype"
)

type CortexConfig struct {
	Noisy bool
	// Replicates above 1 keep several independent trackers per pair.
	Replicates int
	DynRange   int
}

// Cortex stores one rate-coded value per (action, state) pair, or per
// (action, state, replicate) when replicated.
type Cortex struct {
	*node.Composite
	actions, states, replicates int
	tracker                     *node.Tracker
}

// NewCortex is the single-replicate value store: reward and punishment
// events drive the trackers directly.
func NewCortex(net *circuit.Network, protos prototype.Set, name string, actions, states int, cfg CortexConfig) (*Cortex, error) {
	if actions < 1 || states < 1 {
		return nil, fmt.Errorf("%w: cortex %s needs actions and states, got %dx%d", model.ErrAssembly, name, actions, states)
	}
	tracker, err := node.NewTracker(net, protos, name+"/estimates", connect.Shape{actions, states}, node.TrackerConfig{
		Noisy:    cfg.Noisy,
		DynRange: cfg.DynRange,
	})
	if err != nil {
		return nil, err
	}

	c := node.NewComposite(name)
	c.Add("estimates", tracker)
	excite, exciteSyn, _ := node.Input(tracker, "excite")
	inhibit, inhibitSyn, _ := node.Input(tracker, "inhibit")
	c.ExposeInput("excite", excite, exciteSyn)
	c.ExposeInput("inhibit", inhibit, inhibitSyn)
	out, _ := node.Output(tracker, "out")
	c.ExposeOutput("out", out)
	return &Cortex{Composite: c, actions: actions, states: states, replicates: 1, tracker: tracker}, nil
}

// NewMultiCortex fans every event out to Replicates noisy trackers so the
// encoder can average them in space instead of time.
func NewMultiCortex(net *circuit.Network, protos prototype.Set, name string, actions, states int, cfg CortexConfig) (*Cortex, error) {
	if actions < 1 || states < 1 {
		return nil, fmt.Errorf("%w: cortex %s needs actions and states, got %dx%d", model.ErrAssembly, name, actions, states)
	}
	if cfg.Replicates < 1 {
		return nil, fmt.Errorf("%w: cortex %s needs at least one replicate, got %d", model.ErrAssembly, name, cfg.Replicates)
	}
	pairs := connect.Shape{actions, states}
	replicated := connect.Shape{actions, states, cfg.Replicates}

	exciteBuf, err := node.NewOr(net, protos, name+"/excite", pairs)
	if err != nil {
		return nil, err
	}
	inhibitBuf, err := node.NewOr(net, protos, name+"/inhibit", pairs)
	if err != nil {
		return nil, err
	}
	tracker, err := node.NewTracker(net, protos, name+"/estimates", replicated, node.TrackerConfig{
		Noisy:    true,
		DynRange: cfg.DynRange,
	})
	if err != nil {
		return nil, err
	}

	excite, syn, _ := node.Input(tracker, "excite")
	inhibit, _, _ := node.Input(tracker, "inhibit")
	exciteOut, _ := node.Output(exciteBuf, "out")
	inhibitOut, _ := node.Output(inhibitBuf, "out")
	if err := node.ConnectExpand(net, name+"/excite>estimates", exciteOut, excite, 2, syn); err != nil {
		return nil, err
	}
	if err := node.ConnectExpand(net, name+"/inhibit>estimates", inhibitOut, inhibit, 2, syn); err != nil {
		return nil, err
	}

	c := node.NewComposite(name)
	c.Add("excite", exciteBuf)
	c.Add("inhibit", inhibitBuf)
	c.Add("estimates", tracker)
	exciteIn, exciteSyn, _ := node.Input(exciteBuf, "in")
	inhibitIn, inhibitSyn, _ := node.Input(inhibitBuf, "in")
	c.ExposeInput("excite", exciteIn, exciteSyn)
	c.ExposeInput("inhibit", inhibitIn, inhibitSyn)
	out, _ := node.Output(tracker, "out")
	c.ExposeOutput("out", out)
	return &Cortex{Composite: c, actions: actions, states: states, replicates: cfg.Replicates, tracker: tracker}, nil
}

func (c *Cortex) Replicates() int { return c.replicates }

func (c *Cortex) Tracker() *node.Tracker { return c.tracker }

// Unit is the tracker unit holding the value of one (action, state,
// replicate) cell.
func (c *Cortex) Unit(action, state, replicate int) int {
	if c.replicates == 1 {
		return action*c.states + state
	}
	return (action*c.states+state)*c.replicates + replicate
}

func (c *Cortex) Estimate(sim *circuit.Simulator, action, state, replicate int) float64 {
	return c.tracker.Estimate(sim, c.Unit(action, state, replicate))
}
