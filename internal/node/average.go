package node

import (
	"fmt"

	"pulsenet/internal/circuit"
	"pulsenet/internal/connect"
	"pulsenet/internal/model"
	"pulsenet/internal/prototype"
)

type AveragePoolConfig struct {
	Axis int
	// Ring tunes the sampler; the zero value uses DefaultRingConfig.
	Ring RingConfig
}

// NewAveragePool collapses one axis by sampling it: a ring oscillator with one
// responder per sample opens the AND filter of one slice per tick, and the
// summator ORs the filtered slices together. Output unit j at tick t repeats
// input (s, j) where s is the ring position at t, so the output rate is the
// mean input rate along the axis.
func NewAveragePool(net *circuit.Network, protos prototype.Set, name string, shape connect.Shape, cfg AveragePoolConfig) (*Composite, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("average pool %s: %w", name, err)
	}
	if cfg.Axis < 0 || cfg.Axis >= shape.Rank() {
		return nil, fmt.Errorf("%w: average pool %s axis %d out of range for %s", model.ErrAssembly, name, cfg.Axis, shape)
	}

	filter, err := NewAnd(net, protos, name+"/filter", shape, AndConfig{Inputs: 2})
	if err != nil {
		return nil, err
	}
	sampler, err := NewRingOscillator(net, protos, name+"/sampler", shape[cfg.Axis], cfg.Ring)
	if err != nil {
		return nil, err
	}
	summator, err := NewOr(net, protos, name+"/summator", shape.Without(cfg.Axis))
	if err != nil {
		return nil, err
	}

	filterIn, andSyn, _ := Input(filter, "in")
	filterOut, _ := Output(filter, "out")
	samplerOut, _ := Output(sampler, "out")
	sumIn, sumSyn, _ := Input(summator, "in")
	if err := ConnectDense(net, name+"/sampler>filter", samplerOut, 0, filterIn, cfg.Axis, andSyn); err != nil {
		return nil, err
	}
	if err := ConnectProject(net, name+"/filter>summator", filterOut, cfg.Axis, sumIn, sumSyn); err != nil {
		return nil, err
	}

	c := NewComposite(name)
	c.Add("filter", filter)
	c.Add("sampler", sampler)
	c.Add("summator", summator)
	c.ExposeInput("in", filterIn, andSyn)
	sumOut, _ := Output(summator, "out")
	c.ExposeOutput("out", sumOut)
	return c, nil
}

type QAverageConfig struct {
	Replicates int
	Noisy      bool
}

// NewQAverage averages Replicates copies of a population of the given shape
// by splitting their charge into a soft-reset unit. Its input has one extra
// trailing axis holding the replicates. The soft-reset threshold caps
// Replicates at half the largest synapse magnitude.
func NewQAverage(net *circuit.Network, protos prototype.Set, name string, shape connect.Shape, cfg QAverageConfig) (*Composite, error) {
	if cfg.Replicates < 1 {
		return nil, fmt.Errorf("%w: q-average %s needs at least one replicate, got %d", model.ErrConfiguration, name, cfg.Replicates)
	}
	full := append(shape.Clone(), cfg.Replicates)
	axis := len(shape)

	buffer, err := NewOr(net, protos, name+"/buffer", full)
	if err != nil {
		return nil, err
	}
	pool, err := NewSoftReset(net, protos, name+"/pool", shape, SoftResetConfig{
		Threshold: 2 * cfg.Replicates,
		Noisy:     cfg.Noisy,
	})
	if err != nil {
		return nil, err
	}
	out, _ := Output(buffer, "out")
	in, syn, _ := Input(pool, "in")
	if err := ConnectProject(net, name+"/buffer>pool", out, axis, in, syn); err != nil {
		return nil, err
	}

	c := NewComposite(name)
	c.Add("buffer", buffer)
	c.Add("pool", pool)
	bufIn, bufSyn, _ := Input(buffer, "in")
	c.ExposeInput("in", bufIn, bufSyn)
	poolOut, _ := Output(pool, "out")
	c.ExposeOutput("out", poolOut)
	return c, nil
}

// Follower is a tracker trained to reproduce the firing rate of its input.
type Follower struct {
	*Composite
	tracker *Tracker
}

func NewFollower(net *circuit.Network, protos prototype.Set, name string, shape connect.Shape, cfg TrackerConfig) (*Follower, error) {
	buffer, err := NewOr(net, protos, name+"/buffer", shape)
	if err != nil {
		return nil, err
	}
	inverter, err := NewInverter(net, protos, name+"/inverter", shape)
	if err != nil {
		return nil, err
	}
	tracker, err := NewTracker(net, protos, name+"/tracker", shape, cfg)
	if err != nil {
		return nil, err
	}

	bufOut, _ := Output(buffer, "out")
	invIn, invSyn, _ := Input(inverter, "in")
	invOut, _ := Output(inverter, "out")
	excite, _, _ := Input(tracker, "excite")
	inhibit, _, _ := Input(tracker, "inhibit")

	// the inverter lags the buffer by one tick
	if err := ConnectOneToOne(net, name+"/buffer>inverter", bufOut, invIn, invSyn); err != nil {
		return nil, err
	}
	if err := ConnectOneToOne(net, name+"/buffer>excite", bufOut, excite, protos.Single.WithDelay(1)); err != nil {
		return nil, err
	}
	if err := ConnectOneToOne(net, name+"/inverter>inhibit", invOut, inhibit, protos.Single); err != nil {
		return nil, err
	}

	c := NewComposite(name)
	c.Add("buffer", buffer)
	c.Add("inverter", inverter)
	c.Add("tracker", tracker)
	bufIn, bufSyn, _ := Input(buffer, "in")
	c.ExposeInput("in", bufIn, bufSyn)
	out, _ := Output(tracker, "out")
	c.ExposeOutput("out", out)
	return &Follower{Composite: c, tracker: tracker}, nil
}

func (f *Follower) Tracker() *Tracker { return f.tracker }
