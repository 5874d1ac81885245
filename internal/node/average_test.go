package node

import (
	"math"
	"math/rand"
	"testing"

	"pulsenet/internal/circuit"
	"pulsenet/internal/connect"
	"pulsenet/internal/prototype"
)

func countWindow(ticks []int, from, to int) int {
	n := 0
	for _, t := range ticks {
		if t >= from && t <= to {
			n++
		}
	}
	return n
}

func TestAveragePoolFiresAtMeanRate(t *testing.T) {
	protos := prototype.MustDefault()
	net := circuit.NewNetwork()
	shape := connect.Shape{3, 2}
	pool, err := NewAveragePool(net, protos, "pool", shape, AveragePoolConfig{Axis: 0})
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	stub := stubInto(t, net, "in", pool, "in")
	out := outPop(t, pool)
	sim := circuit.NewSimulator(net)

	// column 0 fires on every row, column 1 only on row 0
	active := []int{shape.Ravel([]int{0, 0}), shape.Ravel([]int{1, 0}), shape.Ravel([]int{2, 0}), shape.Ravel([]int{0, 1})}
	var col0, col1 []int
	for tick := 0; tick < 40; tick++ {
		for _, unit := range active {
			_ = sim.Inject(stub, unit)
		}
		sim.Step()
		if sim.Spiked(out, 0) {
			col0 = append(col0, tick)
		}
		if sim.Spiked(out, 1) {
			col1 = append(col1, tick)
		}
	}
	if got := countWindow(col0, 10, 39); got != 30 {
		t.Fatalf("full column fired %d times in 30 ticks, want 30", got)
	}
	if got := countWindow(col1, 10, 39); got != 10 {
		t.Fatalf("one-third column fired %d times in 30 ticks, want 10", got)
	}
}

func TestAveragePoolRepeatsSampledRow(t *testing.T) {
	protos := prototype.MustDefault()
	net := circuit.NewNetwork()
	shape := connect.Shape{5, 2}
	pool, err := NewAveragePool(net, protos, "pool", shape, AveragePoolConfig{Axis: 0})
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	stub := stubInto(t, net, "in", pool, "in")
	out := outPop(t, pool)
	sim := circuit.NewSimulator(net)
	rng := rand.New(rand.NewSource(5))

	// the ring starts sampling row 0 at tick 2; filter and summator add two
	// more ticks, so output at t repeats row (t-4) mod 5 injected at t-2
	const lag = 4
	var injected [][]bool
	for tick := 0; tick < 80; tick++ {
		row := make([]bool, shape.Size())
		for unit := range row {
			if rng.Intn(2) == 0 {
				row[unit] = true
				_ = sim.Inject(stub, unit)
			}
		}
		injected = append(injected, row)
		sim.Step()
		for col := 0; col < shape[1]; col++ {
			want := false
			if tick >= lag {
				want = injected[tick-2][shape.Ravel([]int{(tick - lag) % shape[0], col})]
			}
			if got := sim.Spiked(out, col); got != want {
				t.Fatalf("tick %d column %d: fired %v, want %v", tick, col, got, want)
			}
		}
	}
}

func TestAveragePoolSamplesLongAxis(t *testing.T) {
	protos := prototype.MustDefault()
	net := circuit.NewNetwork()
	pool, err := NewAveragePool(net, protos, "pool", connect.Shape{200, 1}, AveragePoolConfig{Axis: 0})
	if err != nil {
		t.Fatalf("200-sample pool: %v", err)
	}
	stub := stubInto(t, net, "in", pool, "in")
	sim := circuit.NewSimulator(net)

	got := firingTicks(sim, outPop(t, pool), 0, 420, func(int) {
		_ = sim.Inject(stub, 150)
	})
	if want := []int{154, 354}; !equalTicks(got, want) {
		t.Fatalf("only row 150 is active, pool fired at %v, want %v", got, want)
	}
}

func TestQAverageIsUnbiased(t *testing.T) {
	protos := prototype.MustDefault()
	net := circuit.NewNetwork()
	avg, err := NewQAverage(net, protos, "avg", connect.Shape{1}, QAverageConfig{Replicates: 3})
	if err != nil {
		t.Fatalf("q-average: %v", err)
	}
	stub := stubInto(t, net, "in", avg, "in")
	sim := circuit.NewSimulator(net)

	got := firingTicks(sim, outPop(t, avg), 0, 60, func(tick int) {
		_ = sim.Inject(stub, tick%3)
	})
	if len(got) < 10 {
		t.Fatalf("q-average fired only at %v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i]-got[i-1] != 3 {
			t.Fatalf("q-average should fire exactly every 3 ticks, got %v", got)
		}
	}
}

func trackerUnderEvents(t *testing.T, dynRange int, pExcite float64, ticks int, seed int64) (estimate, rate float64) {
	t.Helper()
	protos := prototype.MustDefault()
	net := circuit.NewNetwork()
	tr, err := NewTracker(net, protos, "tracker", connect.Shape{1}, TrackerConfig{DynRange: dynRange})
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}
	excite := stubInto(t, net, "excite", tr, "excite")
	inhibit := stubInto(t, net, "inhibit", tr, "inhibit")
	sim := circuit.NewSimulator(net)
	rng := rand.New(rand.NewSource(seed))

	window := ticks / 3
	var sum float64
	var samples, fired int
	for tick := 0; tick < ticks; tick++ {
		if rng.Float64() < 0.25 {
			if rng.Float64() < pExcite {
				_ = sim.Inject(excite, 0)
			} else {
				_ = sim.Inject(inhibit, 0)
			}
		}
		sim.Step()
		if tick < ticks-window {
			continue
		}
		if sim.Spiked(tr.Soma(), 0) {
			fired++
		}
		if tick%50 == 0 {
			sum += tr.Estimate(sim, 0)
			samples++
		}
	}
	return sum / float64(samples), float64(fired) / float64(window)
}

func TestTrackerSettlesAtRewardShare(t *testing.T) {
	for _, p := range []float64{0.2, 0.8} {
		estimate, rate := trackerUnderEvents(t, 1, p, 30000, 7)
		if math.Abs(estimate-p) > 0.05 {
			t.Fatalf("p=%.1f: estimate %.3f", p, estimate)
		}
		if math.Abs(rate-estimate) > 0.03 {
			t.Fatalf("p=%.1f: firing rate %.3f disagrees with estimate %.3f", p, rate, estimate)
		}
	}
}

func TestTrackerDynamicRangeKeepsFixedPoint(t *testing.T) {
	for _, dynRange := range []int{2, 4} {
		prev := -1.0
		for _, p := range []float64{0.2, 0.4, 0.6, 0.8} {
			estimate, _ := trackerUnderEvents(t, dynRange, p, 30000, 11)
			if math.Abs(estimate-p) > 0.05 {
				t.Fatalf("dynamic range %d p=%.1f: estimate %.3f", dynRange, p, estimate)
			}
			if estimate <= prev {
				t.Fatalf("dynamic range %d: estimate %.3f at p=%.1f is not above %.3f", dynRange, estimate, p, prev)
			}
			prev = estimate
		}
	}
}

// settleTick feeds a fresh tracker a fixed share of excite events and returns
// the first tick its estimate reaches target, or -1.
func settleTick(t *testing.T, dynRange int, pExcite, target float64, ticks int, seed int64) int {
	t.Helper()
	protos := prototype.MustDefault()
	net := circuit.NewNetwork()
	tr, err := NewTracker(net, protos, "tracker", connect.Shape{1}, TrackerConfig{DynRange: dynRange})
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}
	excite := stubInto(t, net, "excite", tr, "excite")
	inhibit := stubInto(t, net, "inhibit", tr, "inhibit")
	sim := circuit.NewSimulator(net)
	rng := rand.New(rand.NewSource(seed))
	for tick := 0; tick < ticks; tick++ {
		if rng.Float64() < 0.25 {
			if rng.Float64() < pExcite {
				_ = sim.Inject(excite, 0)
			} else {
				_ = sim.Inject(inhibit, 0)
			}
		}
		sim.Step()
		if tr.Estimate(sim, 0) >= target {
			return tick
		}
	}
	return -1
}

func TestTrackerDynamicRangeSlowsSettling(t *testing.T) {
	fast := settleTick(t, 1, 0.9, 0.75, 30000, 13)
	slow := settleTick(t, 4, 0.9, 0.75, 30000, 13)
	if fast < 0 || slow < 0 {
		t.Fatalf("trackers never settled: dynamic range 1 at %d, 4 at %d", fast, slow)
	}
	if slow < 2*fast {
		t.Fatalf("dynamic range 4 settled at tick %d, expected well after dynamic range 1 at %d", slow, fast)
	}
}

func TestTrackerStartingValue(t *testing.T) {
	protos := prototype.MustDefault()
	net := circuit.NewNetwork()
	tr, err := NewTracker(net, protos, "tracker", connect.Shape{3}, TrackerConfig{DynRange: 2})
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}
	sim := circuit.NewSimulator(net)
	if got := tr.Estimate(sim, 0); math.Abs(got-0.5) > 0.01 {
		t.Fatalf("fresh tracker estimate %.3f, want 0.5", got)
	}
	tr.SetStartingValue(sim, 0, 1)
	tr.SetStartingValue(sim, 1, -1)
	tr.SetStartingValue(sim, 2, 0.5)
	for unit, want := range []float64{1, 0, 0.75} {
		if got := tr.Estimate(sim, unit); math.Abs(got-want) > 0.01 {
			t.Fatalf("unit %d: estimate %.3f, want %.2f", unit, got, want)
		}
	}

	fired := make([]int, 3)
	for tick := 0; tick < 1000; tick++ {
		sim.Step()
		for unit := range fired {
			if sim.Spiked(tr.Soma(), unit) {
				fired[unit]++
			}
		}
	}
	if fired[0] < 998 || fired[1] != 0 || fired[2] < 748 || fired[2] > 752 {
		t.Fatalf("firing counts %v, want about [1000 0 750]", fired)
	}
}

func TestFollowerReproducesInputRate(t *testing.T) {
	protos := prototype.MustDefault()
	net := circuit.NewNetwork()
	f, err := NewFollower(net, protos, "follow", connect.Shape{1}, TrackerConfig{})
	if err != nil {
		t.Fatalf("follower: %v", err)
	}
	if f.Child("tracker") == nil {
		t.Fatal("follower should expose its tracker child")
	}
	stub := stubInto(t, net, "in", f, "in")
	sim := circuit.NewSimulator(net)
	rng := rand.New(rand.NewSource(3))

	var sum float64
	var samples int
	for tick := 0; tick < 20000; tick++ {
		if rng.Float64() < 0.3 {
			_ = sim.Inject(stub, 0)
		}
		sim.Step()
		if tick >= 10000 && tick%50 == 0 {
			sum += f.Tracker().Estimate(sim, 0)
			samples++
		}
	}
	if got := sum / float64(samples); math.Abs(got-0.3) > 0.05 {
		t.Fatalf("follower estimate %.3f, want about 0.3", got)
	}
}
