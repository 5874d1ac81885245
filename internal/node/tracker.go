package node

import (
	"fmt"

	"pulsenet/internal/circuit"
	"pulsenet/internal/connect"
	"pulsenet/internal/model"
	"pulsenet/internal/prototype"
)

type SoftResetConfig struct {
	// Threshold is the charge, in single-synapse mantissa units, consumed by
	// each output spike. Must be at least 2.
	Threshold int
	Noisy     bool
}

// NewSoftReset integrates its input and fires whenever the accumulated charge
// reaches the threshold, subtracting exactly one threshold per spike. Its
// long-run output rate is input charge / threshold.
func NewSoftReset(net *circuit.Network, protos prototype.Set, name string, shape connect.Shape, cfg SoftResetConfig) (*Primitive, error) {
	if cfg.Threshold < 2 || cfg.Threshold > -prototype.MinWeight {
		return nil, fmt.Errorf("%w: soft reset %s threshold %d outside [2,%d]", model.ErrConfiguration, name, cfg.Threshold, -prototype.MinWeight)
	}
	soma := protos.SoftResetSoma
	spike := protos.SoftResetSpike
	spike.Threshold = cfg.Threshold - 1
	spike.Noisy = cfg.Noisy
	spike.NoiseExp = protos.Params.NoiseExp
	input := protos.SoftResetInput

	b := newBuilder(net, KindSoftReset, name, shape)
	b.pop("soma", soma)
	b.dendrite("spike", "soma", circuit.JoinOr, spike)
	b.dendrite("input", "spike", circuit.JoinAdd, input)
	b.oneToOne("soma", "spike", protos.Reset.WithWeight(-cfg.Threshold))
	b.inputAs("in", "input", protos.Single)
	b.outputAs("out", "soma")
	return b.done()
}

type TrackerConfig struct {
	// Threshold defaults to the prototype set's threshold.
	Threshold int
	Noisy     bool
	// DynRange multiplies the threshold while the learning step stays fixed,
	// giving a finer rate resolution at the cost of slower convergence.
	DynRange int
	NoiseExp int
}

// Tracker fires at a rate that follows the balance of excite and inhibit
// events it receives. An excite event raises the rate only while the tracker
// is quiet and an inhibit event lowers it only while it fires, so the rate
// settles at excites/(excites+inhibits).
type Tracker struct {
	*Primitive
	scaled   prototype.Set
	dynRange int
}

func NewTracker(net *circuit.Network, protos prototype.Set, name string, shape connect.Shape, cfg TrackerConfig) (*Tracker, error) {
	if cfg.Threshold == 0 {
		cfg.Threshold = protos.Params.Threshold
	}
	if cfg.DynRange == 0 {
		cfg.DynRange = 1
	}
	if cfg.NoiseExp == 0 {
		cfg.NoiseExp = protos.Params.NoiseExp
	}
	if cfg.DynRange < 1 {
		return nil, fmt.Errorf("%w: tracker %s dynamic range %d must be positive", model.ErrConfiguration, name, cfg.DynRange)
	}
	scaled, err := prototype.NewSet(prototype.Params{
		Threshold: cfg.Threshold * cfg.DynRange,
		Noisy:     cfg.Noisy,
		SynScale:  cfg.DynRange,
		NoiseExp:  cfg.NoiseExp,
	})
	if err != nil {
		return nil, fmt.Errorf("tracker %s: %w", name, err)
	}

	b := newBuilder(net, KindTracker, name, shape)
	b.pop("soma", scaled.TrackerSoma)
	b.dendrite("spike", "soma", circuit.JoinOr, scaled.TrackerSpike)
	b.dendrite("memory", "spike", circuit.JoinAdd, scaled.TrackerMemory)
	b.pop("inverter", protos.Inverter)
	b.pop("excite-and", protos.And)
	b.pop("inhibit-and", protos.And)
	b.pop("excite", protos.Buffer)
	b.pop("inhibit", protos.Buffer)

	b.oneToOne("soma", "inverter", protos.Invert)
	for i := 0; i < cfg.DynRange; i++ {
		if b.err != nil {
			break
		}
		b.err = ConnectOneToOne(net, fmt.Sprintf("%s/soma>spike#%d", name, i), b.port("soma"), b.port("spike"), scaled.Reset)
	}
	b.oneToOne("excite", "excite-and", protos.Half)
	b.oneToOne("inhibit", "inhibit-and", protos.Half)
	b.oneToOne("inverter", "excite-and", protos.Half)
	b.oneToOne("soma", "inhibit-and", protos.Half)
	b.oneToOne("excite-and", "memory", protos.Excite)
	b.oneToOne("inhibit-and", "memory", protos.Inhibit)

	b.input("excite", protos.Single)
	b.input("inhibit", protos.Single)
	b.outputAs("out", "soma")
	b.outputAs("inverted", "inverter")
	p, err := b.done()
	if err != nil {
		return nil, err
	}
	return &Tracker{Primitive: p, scaled: scaled, dynRange: cfg.DynRange}, nil
}

func (t *Tracker) DynRange() int { return t.dynRange }

// Memory is the population holding the learned rate offsets.
func (t *Tracker) Memory() circuit.PopulationID {
	return t.pops["memory"]
}

func (t *Tracker) Soma() circuit.PopulationID {
	return t.pops["soma"]
}

// Estimate is the firing probability per tick implied by the unit's memory.
func (t *Tracker) Estimate(sim *circuit.Simulator, unit int) float64 {
	bias := t.scaled.TrackerSpike.BiasRaw()
	threshold := t.scaled.TrackerSpike.ThresholdRaw()
	r := float64(bias+sim.Voltage(t.Memory(), unit)) / float64(threshold)
	return min(max(r, 0), 1)
}

// SetStartingValue offsets the unit's rate from one half. value is in
// [-1, 1]: -1 silences the unit and 1 makes it fire every tick.
func (t *Tracker) SetStartingValue(sim *circuit.Simulator, unit int, value float64) {
	sim.SetVoltage(t.Memory(), unit, int64(value*float64(t.scaled.TrackerSpike.BiasRaw())))
}
