package node

import (
	"fmt"

	"pulsenet/internal/circuit"
	"pulsenet/internal/connect"
	"pulsenet/internal/model"
	"pulsenet/internal/prototype"
)

type RingConfig struct {
	SelfBias      int
	StartupCycles int
}

func DefaultRingConfig() RingConfig {
	return RingConfig{SelfBias: 5, StartupCycles: 2}
}

// NewRingOscillator builds a ring of size responders in which exactly one
// fires per tick, passing activity to its successor. A self-biased starter
// launches the ring once and is then held below threshold by the inhibitor
// the ring keeps driving.
func NewRingOscillator(net *circuit.Network, protos prototype.Set, name string, size int, cfg RingConfig) (*Primitive, error) {
	if cfg == (RingConfig{}) {
		cfg = DefaultRingConfig()
	}
	if cfg.SelfBias < 1 || cfg.StartupCycles < 1 {
		return nil, fmt.Errorf("%w: ring %s needs positive self bias and startup cycles", model.ErrConfiguration, name)
	}
	ring, err := connect.Ring(size)
	if err != nil {
		return nil, fmt.Errorf("ring %s: %w", name, err)
	}
	starter, err := protos.Starter(cfg.SelfBias, cfg.StartupCycles)
	if err != nil {
		return nil, fmt.Errorf("ring %s: %w", name, err)
	}
	kick := connect.NewMask(1, size)
	kick.Set(0, 0)

	b := newBuilder(net, KindRingOscillator, name, connect.Shape{size})
	b.popShaped("starter", connect.Shape{1}, starter)
	b.popShaped("inhibitor", connect.Shape{1}, protos.Buffer)
	b.pop("responders", protos.Buffer)

	b.masked("starter", "responders", kick, protos.Single)
	b.masked("responders", "responders", ring, protos.Single)
	b.full("starter", "inhibitor", protos.Single)
	b.full("responders", "inhibitor", protos.Single)
	b.full("inhibitor", "starter", protos.Single.WithWeight(-cfg.SelfBias))

	b.outputAs("out", "responders")
	return b.done()
}
