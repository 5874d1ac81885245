package prototype

import (
	"fmt"

	"pulsenet/internal/model"
)

const counterThreshold = MaxThreshold

type Params struct {
	// Threshold is the firing threshold mantissa of the rate-coding
	// compartments and AND gates.
	Threshold int
	// Noisy perturbs the threshold of spike-generating dendrites.
	Noisy bool
	// SynScale divides the threshold before synapse weights are derived,
	// keeping weights in range when Threshold is scaled up.
	SynScale int
	NoiseExp int
}

func DefaultParams() Params {
	return Params{
		Threshold: DefaultThreshold,
		SynScale:  1,
		NoiseExp:  DefaultNoiseExp,
	}
}

// Set is an immutable table of compartment and synapse prototypes derived
// from one Params value.
type Set struct {
	Params Params

	TrackerSoma    Compartment
	TrackerSpike   Compartment
	TrackerMemory  Compartment
	SoftResetSoma  Compartment
	SoftResetSpike Compartment
	SoftResetInput Compartment
	FlipFlopSoma   Compartment
	FlipFlopMemory Compartment
	Inverter       Compartment
	Buffer         Compartment
	And            Compartment
	Counter        Compartment

	Excite  Synapse
	Inhibit Synapse
	Invert  Synapse
	Reset   Synapse
	Drive   Synapse
	Half    Synapse
	Third   Synapse
	Single  Synapse
}

// NewSet derives the prototype table and validates every entry.
func NewSet(p Params) (Set, error) {
	if p.SynScale == 0 {
		p.SynScale = 1
	}
	if p.Threshold < 1 || p.Threshold > MaxThreshold {
		return Set{}, fmt.Errorf("%w: threshold %d outside [1,%d]", model.ErrConfiguration, p.Threshold, MaxThreshold)
	}
	if p.SynScale < 1 {
		return Set{}, fmt.Errorf("%w: synapse scale %d must be positive", model.ErrConfiguration, p.SynScale)
	}
	if p.NoiseExp < 0 || p.NoiseExp > MaxNoiseExp {
		return Set{}, fmt.Errorf("%w: noise exponent %d outside [0,%d]", model.ErrConfiguration, p.NoiseExp, MaxNoiseExp)
	}

	vth := p.Threshold
	s := Set{Params: p}

	s.TrackerSoma = Compartment{Name: "tracker-soma", Threshold: vth, CurrentDecay: MaxDecay}
	s.TrackerSpike = Compartment{
		Name:         "tracker-spike",
		Threshold:    vth,
		BiasMant:     vth / 2,
		BiasExp:      6,
		CurrentDecay: MaxDecay,
		Behavior:     PassAboveThreshold,
		Noisy:        p.Noisy,
		NoiseExp:     p.NoiseExp,
	}
	s.TrackerMemory = Compartment{Name: "tracker-memory", Threshold: vth, CurrentDecay: MaxDecay, Behavior: PassVoltage}

	s.SoftResetSoma = Compartment{Name: "soft-reset-soma", Threshold: vth, CurrentDecay: MaxDecay}
	s.SoftResetSpike = Compartment{
		Name:         "soft-reset-spike",
		Threshold:    vth,
		BiasExp:      6,
		CurrentDecay: MaxDecay,
		Behavior:     PassAboveThreshold,
		Noisy:        p.Noisy,
		NoiseExp:     p.NoiseExp,
	}
	s.SoftResetInput = Compartment{Name: "soft-reset-input", Threshold: vth, CurrentDecay: MaxDecay, VoltageDecay: MaxDecay, Behavior: PassVoltage}

	s.FlipFlopSoma = Compartment{Name: "flipflop-soma", Threshold: 1, CurrentDecay: MaxDecay}
	s.Inverter = Compartment{Name: "inverter", Threshold: 1, BiasMant: 2, BiasExp: 6, CurrentDecay: MaxDecay, VoltageDecay: MaxDecay}
	s.Buffer = Compartment{Name: "buffer", Threshold: 1, CurrentDecay: MaxDecay, VoltageDecay: MaxDecay}
	s.And = Compartment{Name: "and", Threshold: vth, CurrentDecay: MaxDecay, VoltageDecay: MaxDecay}

	wth := vth / p.SynScale
	s.Excite = Synapse{Name: "excite", Weight: 2}
	s.Inhibit = Synapse{Name: "inhibit", Weight: -2}
	s.Invert = Synapse{Name: "invert", Weight: -1}
	s.Reset = Synapse{Name: "reset", Weight: -wth}
	s.Drive = Synapse{Name: "drive", Weight: wth}
	s.Half = Synapse{Name: "half", Weight: wth/2 + 1}
	s.Third = Synapse{Name: "third", Weight: wth/3 + 1}
	s.Single = Synapse{Name: "single", Weight: 2}

	// the memory holds at most one excite step, so repeated sets and resets
	// are idempotent
	s.FlipFlopMemory = Compartment{
		Name:         "flipflop-memory",
		Threshold:    vth,
		CurrentDecay: MaxDecay,
		Behavior:     PassVoltage,
		Bounded:      true,
		VMin:         0,
		VMax:         s.Excite.WeightRaw(),
	}

	s.Counter = Compartment{
		Name:         "counter",
		Threshold:    counterThreshold,
		CurrentDecay: MaxDecay,
		Bounded:      true,
		VMin:         0,
		VMax:         int64(counterThreshold) << ScaleShift,
		Saturating:   true,
		Sink:         true,
	}

	for _, c := range s.compartments() {
		if err := c.Validate(); err != nil {
			return Set{}, err
		}
	}
	for _, syn := range s.synapses() {
		if err := syn.Validate(); err != nil {
			return Set{}, err
		}
	}
	return s, nil
}

func MustDefault() Set {
	s, err := NewSet(DefaultParams())
	if err != nil {
		panic(err)
	}
	return s
}

// AndSynapse is the per-input weight that makes an AND gate fire only when
// all n inputs arrive in the same tick.
func (s Set) AndSynapse(n int) (Synapse, error) {
	if n < 1 {
		return Synapse{}, fmt.Errorf("%w: and gate needs at least one input, got %d", model.ErrConfiguration, n)
	}
	syn := Synapse{Name: fmt.Sprintf("and-%d", n), Weight: s.Params.Threshold/n + 1}
	if err := syn.Validate(); err != nil {
		return Synapse{}, err
	}
	return syn, nil
}

// Starter is the self-biased compartment that kicks a ring oscillator: it
// fires once after startupCycles ticks unless inhibited.
func (s Set) Starter(selfBias, startupCycles int) (Compartment, error) {
	c := Compartment{
		Name:         "starter",
		Threshold:    selfBias*startupCycles - 1,
		BiasMant:     selfBias,
		BiasExp:      6,
		CurrentDecay: MaxDecay,
	}
	return c, c.Validate()
}

// Counts converts a counter voltage to the number of single-weight events it
// integrated.
func (s Set) Counts(voltage int64) int {
	return int(voltage / s.Single.WeightRaw())
}

func (s Set) compartments() []Compartment {
	return []Compartment{
		s.TrackerSoma, s.TrackerSpike, s.TrackerMemory,
		s.SoftResetSoma, s.SoftResetSpike, s.SoftResetInput,
		s.FlipFlopSoma, s.FlipFlopMemory, s.Inverter, s.Buffer, s.And, s.Counter,
	}
}

func (s Set) synapses() []Synapse {
	return []Synapse{s.Excite, s.Inhibit, s.Invert, s.Reset, s.Drive, s.Half, s.Third, s.Single}
}
