// Package driver paces an agent through a task: it delivers state, action
// and feedback pulses at epoch boundaries and arbitrates between actions from
// the per-epoch counter tallies.
package driver

import (
	"context"
	"fmt"
	"math/rand"

	"pulsenet/internal/agent"
	"pulsenet/internal/circuit"
	"pulsenet/internal/logging"
	"pulsenet/internal/model"
	"pulsenet/internal/scape"
)

const (
	DefaultEpochTicks = 128
	DefaultEpsilon    = 0.10
	DefaultSeed       = 341257896
)

type Config struct {
	EpochTicks int
	Epsilon    float64
	Seed       int64
}

func DefaultConfig() Config {
	return Config{EpochTicks: DefaultEpochTicks, Epsilon: DefaultEpsilon, Seed: DefaultSeed}
}

func (c Config) Validate() error {
	if c.EpochTicks < 1 {
		return fmt.Errorf("%w: epoch ticks must be positive, got %d", model.ErrConfiguration, c.EpochTicks)
	}
	if c.Epsilon < 0 || c.Epsilon > 1 {
		return fmt.Errorf("%w: epsilon %g outside [0,1]", model.ErrConfiguration, c.Epsilon)
	}
	return nil
}

// Observer sees every epoch record as soon as it is produced.
type Observer func(model.EpochRecord)

type Driver struct {
	cfg   Config
	agent *agent.Agent
	task  scape.Scape
	sim   *circuit.Simulator
	rng   *rand.Rand
	state int
	epoch int
}

func New(a *agent.Agent, task scape.Scape, cfg Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	acfg := a.Config()
	if task.Actions() != acfg.Actions || task.States() != acfg.States {
		return nil, fmt.Errorf("%w: task %s is %d states x %d actions, agent is %d x %d",
			model.ErrAssembly, task.Name(), task.States(), task.Actions(), acfg.States, acfg.Actions)
	}
	d := &Driver{
		cfg:   cfg,
		agent: a,
		task:  task,
		sim:   a.NewSimulator(circuit.WithSeed(cfg.Seed)),
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
	d.state = task.Reset(d.rng)
	if err := d.inject(d.agent.StateInput(d.state)); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Driver) Simulator() *circuit.Simulator { return d.sim }

// State is the state most recently sent to the agent.
func (d *Driver) State() int { return d.state }

// Run advances the given number of epochs. Each epoch runs EpochTicks ticks
// and then closes with one decision.
func (d *Driver) Run(ctx context.Context, epochs int, observe Observer) ([]model.EpochRecord, error) {
	records := make([]model.EpochRecord, 0, epochs)
	for i := 0; i < epochs; i++ {
		if err := d.sim.Run(ctx, d.cfg.EpochTicks); err != nil {
			return records, err
		}
		rec, err := d.boundary()
		if err != nil {
			return records, err
		}
		records = append(records, rec)
		if observe != nil {
			observe(rec)
		}
	}
	return records, nil
}

// boundary reads and clears the counters, picks and sends an action, steps
// the task and sends its feedback and next state.
func (d *Driver) boundary() (model.EpochRecord, error) {
	d.epoch++
	counts := d.agent.Counts(d.sim)
	saturated := d.agent.Saturated(d.sim)
	d.agent.ResetCounters(d.sim)
	if saturated {
		logging.Error("action counter saturated", d.epoch, counts)
	}

	action, explored := d.choose(counts)
	if err := d.inject(d.agent.ActionInput(action)); err != nil {
		return model.EpochRecord{}, err
	}
	out, err := d.task.Step(d.rng, d.state, action)
	if err != nil {
		return model.EpochRecord{}, fmt.Errorf("epoch %d: %w", d.epoch, err)
	}
	// without feedback the trace keeps accumulating until the episode ends
	if h, ok := d.agent.FeedbackInput(out.Feedback); ok {
		if err := h.Fire(d.sim); err != nil {
			return model.EpochRecord{}, err
		}
	}
	rec := model.EpochRecord{
		Epoch:     d.epoch,
		Tick:      d.sim.Tick(),
		State:     d.state,
		Action:    action,
		Explored:  explored,
		Feedback:  out.Feedback,
		Counts:    counts,
		Estimates: d.agent.Estimates(d.sim),
		Saturated: saturated,
	}
	d.state = out.Next
	if err := d.inject(d.agent.StateInput(d.state)); err != nil {
		return model.EpochRecord{}, err
	}
	logging.Debugf("epoch %d tick %d state %d action %d explored %t feedback %s counts %v",
		rec.Epoch, rec.Tick, rec.State, rec.Action, rec.Explored, rec.Feedback, rec.Counts)
	return rec, nil
}

// choose is epsilon-greedy over the counts with a uniform random tie break.
func (d *Driver) choose(counts []int) (action int, explored bool) {
	if d.rng.Float64() < d.cfg.Epsilon {
		return d.rng.Intn(len(counts)), true
	}
	best := []int{0}
	for i := 1; i < len(counts); i++ {
		switch {
		case counts[i] > counts[best[0]]:
			best = append(best[:0], i)
		case counts[i] == counts[best[0]]:
			best = append(best, i)
		}
	}
	return best[d.rng.Intn(len(best))], false
}

func (d *Driver) inject(h agent.Handle, err error) error {
	if err != nil {
		return err
	}
	return h.Fire(d.sim)
}

// GreedyShare is the fraction of the last window records whose counters
// favoured action strictly over every other action.
func GreedyShare(records []model.EpochRecord, action, window int) float64 {
	if window > len(records) {
		window = len(records)
	}
	if window == 0 {
		return 0
	}
	wins := 0
	for _, rec := range records[len(records)-window:] {
		if favours(rec.Counts, action) {
			wins++
		}
	}
	return float64(wins) / float64(window)
}

func favours(counts []int, action int) bool {
	if action < 0 || action >= len(counts) {
		return false
	}
	for i, c := range counts {
		if i != action && c >= counts[action] {
			return false
		}
	}
	return true
}
