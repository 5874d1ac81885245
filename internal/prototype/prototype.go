// Package prototype holds the fixed-point parameter bundles applied to
// populations and connections.
//
// Thresholds and weights are mantissas scaled by 2^6 on the substrate, biases
// are mantissa<<exponent, and decays are 12-bit fractions: a state variable
// keeps (4096-decay)/4096 of its value each tick, so 0 holds it and 4095
// clears it.
package prototype

import (
	"fmt"

	"pulsenet/internal/model"
)

const (
	// ScaleShift converts threshold and weight mantissas to raw units.
	ScaleShift = 6

	MaxThreshold = 1<<17 - 1
	MinWeight    = -256
	MaxWeight    = 255
	MinBiasMant  = -(1 << 12)
	MaxBiasMant  = 1<<12 - 1
	MaxBiasExp   = 7
	MaxDecay     = 4095
	MaxDelay     = 62
	MaxNoiseExp  = 23

	DefaultThreshold = 255
	DefaultNoiseExp  = 6
)

// Behavior selects what a compartment does once its voltage is computed.
type Behavior int

const (
	// SpikeAndReset fires when the voltage exceeds the threshold and zeroes it.
	SpikeAndReset Behavior = iota
	// PassAboveThreshold hands its voltage to the parent while it exceeds the
	// threshold and never resets itself.
	PassAboveThreshold
	// PassVoltage hands its voltage to the parent every tick.
	PassVoltage
)

func (b Behavior) String() string {
	switch b {
	case SpikeAndReset:
		return "spike-and-reset"
	case PassAboveThreshold:
		return "pass-above-threshold"
	case PassVoltage:
		return "pass-voltage"
	default:
		return fmt.Sprintf("behavior(%d)", int(b))
	}
}

// Compartment parameterises every unit of a population.
type Compartment struct {
	Name         string
	Threshold    int
	BiasMant     int
	BiasExp      int
	CurrentDecay int
	VoltageDecay int
	Behavior     Behavior

	// Bounded clamps the voltage to [VMin, VMax] raw units after integration.
	Bounded bool
	VMin    int64
	VMax    int64
	// Saturating flags units whose voltage was clamped at VMax.
	Saturating bool
	// Sink populations are pure observables and may not drive connections.
	Sink bool

	Noisy    bool
	NoiseExp int
}

func (c Compartment) ThresholdRaw() int64 {
	return int64(c.Threshold) << ScaleShift
}

func (c Compartment) BiasRaw() int64 {
	return int64(c.BiasMant) << c.BiasExp
}

// NoiseBound is the largest threshold perturbation in raw units.
func (c Compartment) NoiseBound() int64 {
	if !c.Noisy {
		return 0
	}
	return int64(1) << c.NoiseExp
}

func (c Compartment) Validate() error {
	switch {
	case c.Threshold < 1 || c.Threshold > MaxThreshold:
		return fmt.Errorf("%w: compartment %s threshold %d outside [1,%d]", model.ErrConfiguration, c.Name, c.Threshold, MaxThreshold)
	case c.BiasMant < MinBiasMant || c.BiasMant > MaxBiasMant:
		return fmt.Errorf("%w: compartment %s bias mantissa %d outside [%d,%d]", model.ErrConfiguration, c.Name, c.BiasMant, MinBiasMant, MaxBiasMant)
	case c.BiasExp < 0 || c.BiasExp > MaxBiasExp:
		return fmt.Errorf("%w: compartment %s bias exponent %d outside [0,%d]", model.ErrConfiguration, c.Name, c.BiasExp, MaxBiasExp)
	case c.CurrentDecay < 0 || c.CurrentDecay > MaxDecay:
		return fmt.Errorf("%w: compartment %s current decay %d outside [0,%d]", model.ErrConfiguration, c.Name, c.CurrentDecay, MaxDecay)
	case c.VoltageDecay < 0 || c.VoltageDecay > MaxDecay:
		return fmt.Errorf("%w: compartment %s voltage decay %d outside [0,%d]", model.ErrConfiguration, c.Name, c.VoltageDecay, MaxDecay)
	case c.Behavior < SpikeAndReset || c.Behavior > PassVoltage:
		return fmt.Errorf("%w: compartment %s has unknown %s", model.ErrConfiguration, c.Name, c.Behavior)
	case c.Bounded && c.VMin > c.VMax:
		return fmt.Errorf("%w: compartment %s voltage bounds [%d,%d] are inverted", model.ErrConfiguration, c.Name, c.VMin, c.VMax)
	case c.Noisy && (c.NoiseExp < 0 || c.NoiseExp > MaxNoiseExp):
		return fmt.Errorf("%w: compartment %s noise exponent %d outside [0,%d]", model.ErrConfiguration, c.Name, c.NoiseExp, MaxNoiseExp)
	}
	return nil
}

// Synapse parameterises every edge of a connection.
type Synapse struct {
	Name   string
	Weight int
	Delay  int
}

func (s Synapse) WeightRaw() int64 {
	return int64(s.Weight) << ScaleShift
}

// WithDelay copies the synapse with a different delay.
func (s Synapse) WithDelay(delay int) Synapse {
	s.Delay = delay
	return s
}

func (s Synapse) WithWeight(weight int) Synapse {
	s.Weight = weight
	return s
}

func (s Synapse) Validate() error {
	if s.Weight < MinWeight || s.Weight > MaxWeight {
		return fmt.Errorf("%w: synapse %s weight %d outside [%d,%d]", model.ErrConfiguration, s.Name, s.Weight, MinWeight, MaxWeight)
	}
	if s.Delay < 0 || s.Delay > MaxDelay {
		return fmt.Errorf("%w: synapse %s delay %d outside [0,%d]", model.ErrConfiguration, s.Name, s.Delay, MaxDelay)
	}
	return nil
}
