package agent

import (
	"errors"
	"math"
	"testing"

	"pulsenet/internal/circuit"
	"pulsenet/internal/model"
)

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{name: "no actions", cfg: Config{Actions: 0, States: 1}, want: model.ErrAssembly},
		{name: "no states", cfg: Config{Actions: 2, States: -1}, want: model.ErrAssembly},
		{name: "negative replicates", cfg: Config{Actions: 2, States: 1, Replicates: -2}, want: model.ErrAssembly},
		{name: "dynrange", cfg: Config{Actions: 2, States: 1, DynRange: MaxDynRange + 1}, want: model.ErrConfiguration},
		{name: "starting values length", cfg: Config{Actions: 2, States: 2, StartingValues: []float64{0, 0, 0}}, want: model.ErrConfiguration},
		{name: "starting value range", cfg: Config{Actions: 2, States: 1, StartingValues: []float64{0, 1.5}}, want: model.ErrConfiguration},
		{name: "threshold", cfg: Config{Actions: 2, States: 1, Threshold: -3}, want: model.ErrConfiguration},
	}
	for _, tc := range cases {
		if _, err := New(tc.cfg); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestHandlesAreRangeChecked(t *testing.T) {
	a, err := New(Config{Actions: 3, States: 2})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	if _, err := a.StateInput(2); !errors.Is(err, model.ErrAssembly) {
		t.Fatalf("expected assembly error for state 2, got %v", err)
	}
	if _, err := a.ActionInput(-1); !errors.Is(err, model.ErrAssembly) {
		t.Fatalf("expected assembly error for action -1, got %v", err)
	}
	if _, err := a.Counter(3); !errors.Is(err, model.ErrAssembly) {
		t.Fatalf("expected assembly error for counter 3, got %v", err)
	}
	if h, err := a.Counter(2); err != nil || h.Unit != 2 {
		t.Fatalf("counter 2 handle %+v err %v", h, err)
	}
	if _, ok := a.FeedbackInput(model.FeedbackNone); ok {
		t.Fatal("no feedback has no input line")
	}
	if h, ok := a.FeedbackInput(model.FeedbackDraw); !ok || h != a.DrawInput() {
		t.Fatalf("draw handle %+v", h)
	}
}

func TestTopologyCoversEveryRegion(t *testing.T) {
	for _, replicates := range []int{1, 4} {
		a, err := New(Config{Actions: 2, States: 3, Replicates: replicates, DynRange: 2})
		if err != nil {
			t.Fatalf("replicates %d: %v", replicates, err)
		}
		topo := a.Topology()
		want := []string{"action", "cortex", "decoder", "encoder", "hippocampus", "in"}
		got := topo.RegionNames()
		if len(got) != len(want) {
			t.Fatalf("regions %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("regions %v, want %v", got, want)
			}
		}
		if topo.Units != a.Network().Units() || topo.Synapses == 0 {
			t.Fatalf("units %d synapses %d", topo.Units, topo.Synapses)
		}
		if got := len(a.Estimates(a.NewSimulator())); got != 2*3*replicates {
			t.Fatalf("estimates %d, want %d", got, 2*3*replicates)
		}
	}
}

func TestRewardRaisesTakenCellOnly(t *testing.T) {
	a, err := New(Config{Actions: 2, States: 1, StartingValues: []float64{-1, -1}})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	sim := a.NewSimulator()
	if got := a.Estimate(sim, 0, 0, 0); got != 0 {
		t.Fatalf("starting estimate %.4f, want 0", got)
	}
	state, _ := a.StateInput(0)
	action, _ := a.ActionInput(0)

	_ = state.Fire(sim)
	for tick := 0; tick < 60; tick++ {
		if tick == 20 {
			_ = action.Fire(sim)
			_ = a.RewardInput().Fire(sim)
		}
		sim.Step()
	}
	got := a.Estimate(sim, 0, 0, 0)
	want := float64(a.Prototypes().Excite.WeightRaw()) / float64(a.Prototypes().TrackerSpike.ThresholdRaw())
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("rewarded cell estimate %.5f, want one excite step %.5f", got, want)
	}
	if other := a.Estimate(sim, 1, 0, 0); other != 0 {
		t.Fatalf("untaken action moved to %.5f", other)
	}
	if sim.FiredCount(a.hippocampus.Trace()) != 0 {
		t.Fatal("reward should clear the trace")
	}
}

func TestCountersFollowValues(t *testing.T) {
	a, err := New(Config{Actions: 2, States: 2, StartingValues: []float64{-1, 1, 1, -1}})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	sim := a.NewSimulator(circuit.WithSeed(9))
	state, _ := a.StateInput(1)
	_ = state.Fire(sim)
	if err := sim.Run(testContext(t), 50); err != nil {
		t.Fatalf("run: %v", err)
	}
	counts := a.Counts(sim)
	if counts[0] < 30 || counts[1] != 0 {
		t.Fatalf("counts %v: action 0 is valued in state 1, action 1 is not", counts)
	}
	if a.Saturated(sim) {
		t.Fatal("counters should not saturate in 50 ticks")
	}
	a.ResetCounters(sim)
	if c := a.Counts(sim); c[0] != 0 || c[1] != 0 {
		t.Fatalf("counts after reset %v", c)
	}
}
