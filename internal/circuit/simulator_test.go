package circuit

import (
	"context"
	"errors"
	"testing"

	"pulsenet/internal/connect"
	"pulsenet/internal/model"
	"pulsenet/internal/prototype"
)

// mustPop wraps a population constructor: mustPop(t)(net.AddStub(...)).
func mustPop(t *testing.T) func(PopulationID, error) PopulationID {
	return func(id PopulationID, err error) PopulationID {
		t.Helper()
		if err != nil {
			t.Fatalf("add population: %v", err)
		}
		return id
	}
}

func mustConnect(t *testing.T, net *Network, name string, src, dst PopulationID, syn prototype.Synapse) {
	t.Helper()
	mask, err := connect.OneToOne(net.Population(src).Shape, net.Population(dst).Shape)
	if err != nil {
		t.Fatalf("mask %s: %v", name, err)
	}
	if _, err := net.Connect(name, src, dst, mask, syn); err != nil {
		t.Fatalf("connect %s: %v", name, err)
	}
}

func TestSpikeArrivesAfterDelay(t *testing.T) {
	protos := prototype.MustDefault()
	for _, delay := range []int{0, 1, 5} {
		net := NewNetwork()
		stub := mustPop(t)(net.AddStub("in", connect.Shape{1}))
		buf := mustPop(t)(net.AddPopulation("buf", connect.Shape{1}, protos.Buffer))
		mustConnect(t, net, "in-buf", stub, buf, protos.Single.WithDelay(delay))

		sim := NewSimulator(net)
		if err := sim.Inject(stub, 0); err != nil {
			t.Fatalf("inject: %v", err)
		}
		var firedAt []int
		for tick := 0; tick < 10; tick++ {
			sim.Step()
			if sim.Spiked(buf, 0) {
				firedAt = append(firedAt, tick)
			}
		}
		if len(firedAt) != 1 || firedAt[0] != 1+delay {
			t.Fatalf("delay %d: buffer fired at %v, want [%d]", delay, firedAt, 1+delay)
		}
	}
}

func TestThresholdComparisonIsStrict(t *testing.T) {
	protos := prototype.MustDefault()
	gate := prototype.Compartment{Name: "gate", Threshold: 2, CurrentDecay: prototype.MaxDecay, VoltageDecay: prototype.MaxDecay}

	cases := []struct {
		weight int
		fires  bool
	}{
		{weight: 2, fires: false},
		{weight: 3, fires: true},
	}
	for _, tc := range cases {
		net := NewNetwork()
		stub := mustPop(t)(net.AddStub("in", connect.Shape{1}))
		g := mustPop(t)(net.AddPopulation("gate", connect.Shape{1}, gate))
		mustConnect(t, net, "in-gate", stub, g, protos.Single.WithWeight(tc.weight))

		sim := NewSimulator(net)
		_ = sim.Inject(stub, 0)
		sim.Step()
		sim.Step()
		if sim.Spiked(g, 0) != tc.fires {
			t.Fatalf("weight %d: fired=%v want %v", tc.weight, sim.Spiked(g, 0), tc.fires)
		}
	}
}

func TestDendriteAddJoinDrivesParent(t *testing.T) {
	protos := prototype.MustDefault()
	net := NewNetwork()
	soma := mustPop(t)(net.AddPopulation("soma", connect.Shape{2}, protos.FlipFlopSoma))
	mem := mustPop(t)(net.AddDendrite("memory", soma, JoinAdd, protos.FlipFlopMemory))

	sim := NewSimulator(net)
	sim.SetVoltage(mem, 1, 1<<20)
	if got := sim.Voltage(mem, 1); got != protos.FlipFlopMemory.VMax {
		t.Fatalf("voltage should clamp to %d, got %d", protos.FlipFlopMemory.VMax, got)
	}
	for tick := 0; tick < 5; tick++ {
		sim.Step()
		if sim.Spiked(soma, 0) {
			t.Fatalf("tick %d: unit 0 has an empty memory and must stay quiet", tick)
		}
		if !sim.Spiked(soma, 1) {
			t.Fatalf("tick %d: unit 1 should fire every tick", tick)
		}
		if sim.Spiked(mem, 1) {
			t.Fatalf("dendrites never report spikes")
		}
	}
}

func TestCounterSaturatesInsteadOfWrapping(t *testing.T) {
	protos := prototype.MustDefault()
	net := NewNetwork()
	stub := mustPop(t)(net.AddStub("in", connect.Shape{1}))
	counter := mustPop(t)(net.AddPopulation("counter", connect.Shape{1}, protos.Counter))
	mustConnect(t, net, "in-counter", stub, counter, protos.Single)

	sim := NewSimulator(net)
	ceiling := protos.Counter.VMax
	sim.SetVoltage(counter, 0, ceiling-protos.Single.WeightRaw()/2)
	for i := 0; i < 3; i++ {
		_ = sim.Inject(stub, 0)
		sim.Step()
	}
	sim.Step()
	if got := sim.Voltage(counter, 0); got != ceiling {
		t.Fatalf("counter voltage %d, want ceiling %d", got, ceiling)
	}
	if !sim.Saturated(counter, 0) {
		t.Fatal("expected saturation flag")
	}
	if sim.Spiked(counter, 0) {
		t.Fatal("counter must never fire")
	}
	sim.ClearSaturation(counter)
	sim.ResetVoltages(counter)
	if sim.Saturated(counter, 0) || sim.Voltage(counter, 0) != 0 {
		t.Fatal("expected cleared counter")
	}
}

func TestConnectValidation(t *testing.T) {
	protos := prototype.MustDefault()
	net := NewNetwork()
	stub := mustPop(t)(net.AddStub("in", connect.Shape{2}))
	buf := mustPop(t)(net.AddPopulation("buf", connect.Shape{2}, protos.Buffer))
	counter := mustPop(t)(net.AddPopulation("counter", connect.Shape{2}, protos.Counter))
	soma := mustPop(t)(net.AddPopulation("soma", connect.Shape{2}, protos.FlipFlopSoma))
	mem := mustPop(t)(net.AddDendrite("memory", soma, JoinAdd, protos.FlipFlopMemory))

	identity, _ := connect.OneToOne(connect.Shape{2}, connect.Shape{2})
	wrong, _ := connect.Full(connect.Shape{2}, connect.Shape{3})

	cases := []struct {
		name     string
		src, dst PopulationID
		mask     *connect.Mask
		syn      prototype.Synapse
		want     error
	}{
		{name: "sink source", src: counter, dst: buf, mask: identity, syn: protos.Single, want: model.ErrAssembly},
		{name: "dendrite source", src: mem, dst: buf, mask: identity, syn: protos.Single, want: model.ErrAssembly},
		{name: "stub target", src: buf, dst: stub, mask: identity, syn: protos.Single, want: model.ErrAssembly},
		{name: "mask dims", src: stub, dst: buf, mask: wrong, syn: protos.Single, want: model.ErrAssembly},
		{name: "unknown id", src: 99, dst: buf, mask: identity, syn: protos.Single, want: model.ErrAssembly},
		{name: "weight range", src: stub, dst: buf, mask: identity, syn: protos.Single.WithWeight(300), want: model.ErrConfiguration},
		{name: "delay range", src: stub, dst: buf, mask: identity, syn: protos.Single.WithDelay(63), want: model.ErrConfiguration},
	}
	for _, tc := range cases {
		if _, err := net.Connect(tc.name, tc.src, tc.dst, tc.mask, tc.syn); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if _, err := net.AddPopulation("buf", connect.Shape{1}, protos.Buffer); !errors.Is(err, model.ErrAssembly) {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
	bad := protos.Buffer
	bad.VoltageDecay = 5000
	if _, err := net.AddPopulation("bad", connect.Shape{1}, bad); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestInjectRequiresStub(t *testing.T) {
	protos := prototype.MustDefault()
	net := NewNetwork()
	buf := mustPop(t)(net.AddPopulation("buf", connect.Shape{1}, protos.Buffer))
	stub := mustPop(t)(net.AddStub("in", connect.Shape{1}))
	sim := NewSimulator(net)
	if err := sim.Inject(buf, 0); !errors.Is(err, model.ErrAssembly) {
		t.Fatalf("expected assembly error, got %v", err)
	}
	if err := sim.Inject(stub, 3); !errors.Is(err, model.ErrAssembly) {
		t.Fatalf("expected assembly error for unit, got %v", err)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	sim := NewSimulator(NewNetwork())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sim.Run(ctx, 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if sim.Tick() != 0 {
		t.Fatalf("no tick should run after cancellation, got %d", sim.Tick())
	}
	if err := sim.Run(context.Background(), 3); err != nil || sim.Tick() != 3 {
		t.Fatalf("run: tick=%d err=%v", sim.Tick(), err)
	}
}

func TestNoiseIsDeterministicPerSeed(t *testing.T) {
	protos, err := prototype.NewSet(prototype.Params{Threshold: 255, SynScale: 1, Noisy: true, NoiseExp: 12})
	if err != nil {
		t.Fatalf("prototypes: %v", err)
	}
	trace := func(seed int64) []bool {
		net := NewNetwork()
		soma, _ := net.AddPopulation("soma", connect.Shape{4}, protos.TrackerSoma)
		_, _ = net.AddDendrite("spike", soma, JoinOr, protos.TrackerSpike)
		sim := NewSimulator(net, WithSeed(seed))
		var out []bool
		for i := 0; i < 50; i++ {
			sim.Step()
			out = append(out, sim.Fired(soma)...)
		}
		return out
	}
	a, b := trace(42), trace(42)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at %d", i)
		}
	}
}
