package prototype

import (
	"errors"
	"testing"

	"pulsenet/internal/model"
)

func TestDefaultSetConstants(t *testing.T) {
	s := MustDefault()

	if s.TrackerSpike.BiasRaw() != 127<<6 {
		t.Fatalf("tracker bias raw %d", s.TrackerSpike.BiasRaw())
	}
	if s.Inverter.BiasRaw() != 2<<6 || s.Inverter.ThresholdRaw() != 1<<6 {
		t.Fatalf("inverter bias/threshold %d/%d", s.Inverter.BiasRaw(), s.Inverter.ThresholdRaw())
	}
	if s.Reset.Weight != -255 || s.Drive.Weight != 255 || s.Half.Weight != 128 || s.Third.Weight != 86 {
		t.Fatalf("unexpected derived weights: %+v %+v %+v %+v", s.Reset, s.Drive, s.Half, s.Third)
	}
	if !s.Counter.Sink || !s.Counter.Saturating || s.Counter.VMax != s.Counter.ThresholdRaw() {
		t.Fatalf("counter must be a saturating sink at its threshold: %+v", s.Counter)
	}
	if s.FlipFlopMemory.VMax != s.Excite.WeightRaw() || s.FlipFlopMemory.VMin != 0 {
		t.Fatalf("flip-flop memory bounds %d..%d", s.FlipFlopMemory.VMin, s.FlipFlopMemory.VMax)
	}
	if s.Counts(5*s.Single.WeightRaw()+3) != 5 {
		t.Fatalf("counts conversion")
	}
}

func TestAndSynapseWeights(t *testing.T) {
	s := MustDefault()
	cases := map[int]int{1: 256, 2: 128, 3: 86, 4: 64}
	for n, want := range cases {
		syn, err := s.AndSynapse(n)
		if n == 1 {
			if !errors.Is(err, model.ErrConfiguration) {
				t.Fatalf("single-input and weight %d should be out of range, got %v", want, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("and synapse %d: %v", n, err)
		}
		if syn.Weight != want {
			t.Fatalf("and-%d weight %d want %d", n, syn.Weight, want)
		}
		// all n inputs cross the threshold, n-1 do not
		if int64(n)*syn.WeightRaw() <= s.And.ThresholdRaw() || int64(n-1)*syn.WeightRaw() > s.And.ThresholdRaw() {
			t.Fatalf("and-%d weight %d does not separate %d from %d inputs", n, syn.Weight, n, n-1)
		}
	}
	if _, err := s.AndSynapse(0); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestScaledSetKeepsWeightsInRange(t *testing.T) {
	s, err := NewSet(Params{Threshold: 255 * 8, SynScale: 8, Noisy: true, NoiseExp: 6})
	if err != nil {
		t.Fatalf("scaled set: %v", err)
	}
	if s.Reset.Weight != -255 || s.TrackerSpike.Threshold != 2040 || s.TrackerSpike.BiasMant != 1020 {
		t.Fatalf("unexpected scaled set: reset %d threshold %d bias %d", s.Reset.Weight, s.TrackerSpike.Threshold, s.TrackerSpike.BiasMant)
	}
	if s.TrackerSpike.NoiseBound() != 64 || s.TrackerMemory.NoiseBound() != 0 {
		t.Fatalf("noise bounds %d/%d", s.TrackerSpike.NoiseBound(), s.TrackerMemory.NoiseBound())
	}
}

func TestNewSetRejectsOutOfRangeValues(t *testing.T) {
	cases := []Params{
		{Threshold: 0, SynScale: 1},
		{Threshold: MaxThreshold + 1, SynScale: 1},
		{Threshold: 300, SynScale: 1},
		{Threshold: 255, SynScale: -1},
		{Threshold: 255, SynScale: 1, NoiseExp: 24},
	}
	for _, p := range cases {
		if _, err := NewSet(p); !errors.Is(err, model.ErrConfiguration) {
			t.Fatalf("params %+v: expected configuration error, got %v", p, err)
		}
	}
}

func TestSynapseValidate(t *testing.T) {
	if err := (Synapse{Name: "x", Weight: 2, Delay: 63}).Validate(); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected delay error, got %v", err)
	}
	if err := (Synapse{Name: "x", Weight: -257}).Validate(); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected weight error, got %v", err)
	}
	if err := (Synapse{Name: "x", Weight: 255, Delay: 62}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
