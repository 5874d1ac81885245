// Package agent wires the decoder, hippocampus, cortex and encoder into one
// closed learning loop and exposes the input lines and observables a driver
// needs.
package agent

import (
	"fmt"

	"pulsenet/internal/circuit"
	"pulsenet/internal/connect"
	"pulsenet/internal/model"
	"pulsenet/internal/node"
	"pulsenet/internal/prototype"
	"pulsenet/internal/region"
)

// MaxDynRange keeps the scaled tracker bias inside the bias mantissa range.
const MaxDynRange = 32

type Config struct {
	Actions    int
	States     int
	Replicates int
	DynRange   int
	Noisy      bool
	Threshold  int
	NoiseExp   int
	// StartingValues seeds the cortex, one value in [-1, 1] per
	// (action, state) or per (action, state, replicate). Empty means 0.
	StartingValues []float64
}

func DefaultConfig() Config {
	return Config{
		Actions:    2,
		States:     1,
		Replicates: 1,
		DynRange:   1,
		Threshold:  prototype.DefaultThreshold,
		NoiseExp:   prototype.DefaultNoiseExp,
	}
}

func (c Config) Validate() error {
	if c.Actions < 1 {
		return fmt.Errorf("%w: actions must be positive, got %d", model.ErrAssembly, c.Actions)
	}
	if c.States < 1 {
		return fmt.Errorf("%w: states must be positive, got %d", model.ErrAssembly, c.States)
	}
	if c.Replicates < 1 {
		return fmt.Errorf("%w: replicates must be positive, got %d", model.ErrAssembly, c.Replicates)
	}
	if c.DynRange < 1 || c.DynRange > MaxDynRange {
		return fmt.Errorf("%w: dynamic range %d outside [1,%d]", model.ErrConfiguration, c.DynRange, MaxDynRange)
	}
	if n := len(c.StartingValues); n != 0 && n != c.Actions*c.States && n != c.Actions*c.States*c.Replicates {
		return fmt.Errorf("%w: %d starting values for %dx%dx%d cells", model.ErrConfiguration, n, c.Actions, c.States, c.Replicates)
	}
	for i, v := range c.StartingValues {
		if v < -1 || v > 1 {
			return fmt.Errorf("%w: starting value %d is %g, outside [-1,1]", model.ErrConfiguration, i, v)
		}
	}
	return nil
}

// Handle addresses one unit of an external input line or observable.
type Handle struct {
	Pop  circuit.PopulationID
	Unit int
}

func (h Handle) Fire(sim *circuit.Simulator) error {
	return sim.Inject(h.Pop, h.Unit)
}

type Agent struct {
	cfg    Config
	protos prototype.Set
	net    *circuit.Network

	decoder     *region.Decoder
	hippocampus *region.Hippocampus
	cortex      *region.Cortex
	encoder     *region.Encoder
	actions     *node.Primitive

	state      circuit.PopulationID
	action     circuit.PopulationID
	reward     circuit.PopulationID
	punishment circuit.PopulationID
	draw       circuit.PopulationID
}

// New assembles the agent network. Replicates above 1 select the replicated
// cortex and encoder.
func New(cfg Config) (*Agent, error) {
	if cfg.Threshold == 0 {
		cfg.Threshold = prototype.DefaultThreshold
	}
	if cfg.DynRange == 0 {
		cfg.DynRange = 1
	}
	if cfg.Replicates == 0 {
		cfg.Replicates = 1
	}
	if cfg.NoiseExp == 0 {
		cfg.NoiseExp = prototype.DefaultNoiseExp
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	protos, err := prototype.NewSet(prototype.Params{
		Threshold: cfg.Threshold,
		Noisy:     cfg.Noisy,
		SynScale:  1,
		NoiseExp:  cfg.NoiseExp,
	})
	if err != nil {
		return nil, err
	}

	a := &Agent{cfg: cfg, protos: protos, net: circuit.NewNetwork()}
	if err := a.build(); err != nil {
		return nil, fmt.Errorf("assemble agent: %w", err)
	}
	return a, nil
}

func (a *Agent) build() error {
	net, protos, cfg := a.net, a.protos, a.cfg
	var err error

	if a.decoder, err = region.NewDecoder(net, protos, "decoder", cfg.States); err != nil {
		return err
	}
	if a.hippocampus, err = region.NewHippocampus(net, protos, "hippocampus", cfg.Actions, cfg.States); err != nil {
		return err
	}
	if cfg.Replicates > 1 {
		a.cortex, err = region.NewMultiCortex(net, protos, "cortex", cfg.Actions, cfg.States, region.CortexConfig{
			Replicates: cfg.Replicates,
			DynRange:   cfg.DynRange,
		})
	} else {
		a.cortex, err = region.NewCortex(net, protos, "cortex", cfg.Actions, cfg.States, region.CortexConfig{
			Noisy:    cfg.Noisy,
			DynRange: cfg.DynRange,
		})
	}
	if err != nil {
		return err
	}
	if cfg.Replicates > 1 {
		a.encoder, err = region.NewMultiEncoder(net, protos, "encoder", cfg.Actions, cfg.States, cfg.Replicates)
	} else {
		a.encoder, err = region.NewEncoder(net, protos, "encoder", cfg.Actions, cfg.States)
	}
	if err != nil {
		return err
	}
	if a.actions, err = node.NewOr(net, protos, "action", connect.Shape{cfg.Actions}); err != nil {
		return err
	}

	if a.state, err = net.AddStub("in/state", connect.Shape{cfg.States}); err != nil {
		return err
	}
	if a.action, err = net.AddStub("in/action", connect.Shape{cfg.Actions}); err != nil {
		return err
	}
	if a.reward, err = net.AddStub("in/reward", connect.Shape{1}); err != nil {
		return err
	}
	if a.punishment, err = net.AddStub("in/punishment", connect.Shape{1}); err != nil {
		return err
	}
	if a.draw, err = net.AddStub("in/draw", connect.Shape{1}); err != nil {
		return err
	}

	w := wiring{net: net}
	stateStub := node.Port{Pop: a.state, Shape: connect.Shape{cfg.States}}
	actionStub := node.Port{Pop: a.action, Shape: connect.Shape{cfg.Actions}}
	one := connect.Shape{1}

	decIn, decSyn := w.input(a.decoder, "in")
	decOut := w.output(a.decoder, "out")
	actIn, actSyn := w.input(a.actions, "in")
	actOut := w.output(a.actions, "out")
	hcIn, hcSyn := w.input(a.hippocampus, "in")
	hcReward, rewardSyn := w.input(a.hippocampus, "reward")
	hcPunishment, punishmentSyn := w.input(a.hippocampus, "punishment")
	hcFeedback, feedbackSyn := w.input(a.hippocampus, "feedback")
	gateReward := w.output(a.hippocampus, "reward")
	gatePunishment := w.output(a.hippocampus, "punishment")
	ctxExcite, exciteSyn := w.input(a.cortex, "excite")
	ctxInhibit, inhibitSyn := w.input(a.cortex, "inhibit")
	ctxOut := w.output(a.cortex, "out")
	encState, encSyn := w.input(a.encoder, "state")
	encValue, _ := w.input(a.encoder, "value")

	w.oneToOne("state>decoder", stateStub, decIn, decSyn)
	w.oneToOne("action>buffer", actionStub, actIn, actSyn)
	w.full("reward>hippocampus", node.Port{Pop: a.reward, Shape: one}, hcReward, rewardSyn)
	w.full("punishment>hippocampus", node.Port{Pop: a.punishment, Shape: one}, hcPunishment, punishmentSyn)
	w.full("draw>hippocampus", node.Port{Pop: a.draw, Shape: one}, hcFeedback, feedbackSyn)

	w.dense("decoder>hippocampus", decOut, 0, hcIn, 1, hcSyn)
	w.dense("action>hippocampus", actOut, 0, hcIn, 0, hcSyn)
	w.oneToOne("hippocampus>cortex/excite", gateReward, ctxExcite, exciteSyn)
	w.oneToOne("hippocampus>cortex/inhibit", gatePunishment, ctxInhibit, inhibitSyn)
	w.dense("decoder>encoder", decOut, 0, encState, 1, encSyn)
	w.oneToOne("cortex>encoder", ctxOut, encValue, encSyn)
	return w.err
}

type wiring struct {
	net *circuit.Network
	err error
}

func (w *wiring) input(n node.Node, name string) (node.Port, prototype.Synapse) {
	p, syn, err := node.Input(n, name)
	if err != nil && w.err == nil {
		w.err = fmt.Errorf("%w: %v", model.ErrAssembly, err)
	}
	return p, syn
}

func (w *wiring) output(n node.Node, name string) node.Port {
	p, err := node.Output(n, name)
	if err != nil && w.err == nil {
		w.err = fmt.Errorf("%w: %v", model.ErrAssembly, err)
	}
	return p
}

func (w *wiring) oneToOne(name string, from, to node.Port, syn prototype.Synapse) {
	if w.err == nil {
		w.err = node.ConnectOneToOne(w.net, name, from, to, syn)
	}
}

func (w *wiring) full(name string, from, to node.Port, syn prototype.Synapse) {
	if w.err == nil {
		w.err = node.ConnectFull(w.net, name, from, to, syn)
	}
}

func (w *wiring) dense(name string, from node.Port, fromAxis int, to node.Port, toAxis int, syn prototype.Synapse) {
	if w.err == nil {
		w.err = node.ConnectDense(w.net, name, from, fromAxis, to, toAxis, syn)
	}
}

func (a *Agent) Config() Config { return a.cfg }

func (a *Agent) Network() *circuit.Network { return a.net }

func (a *Agent) Prototypes() prototype.Set { return a.protos }

func (a *Agent) Decoder() *region.Decoder { return a.decoder }

func (a *Agent) Hippocampus() *region.Hippocampus { return a.hippocampus }

func (a *Agent) Cortex() *region.Cortex { return a.cortex }

func (a *Agent) Encoder() *region.Encoder { return a.encoder }

// NewSimulator compiles the network and applies the starting values.
func (a *Agent) NewSimulator(opts ...circuit.Option) *circuit.Simulator {
	sim := circuit.NewSimulator(a.net, opts...)
	a.ApplyStartingValues(sim)
	return sim
}

func (a *Agent) StateInput(state int) (Handle, error) {
	if state < 0 || state >= a.cfg.States {
		return Handle{}, fmt.Errorf("%w: state %d outside [0,%d)", model.ErrAssembly, state, a.cfg.States)
	}
	return Handle{Pop: a.state, Unit: state}, nil
}

func (a *Agent) ActionInput(action int) (Handle, error) {
	if action < 0 || action >= a.cfg.Actions {
		return Handle{}, fmt.Errorf("%w: action %d outside [0,%d)", model.ErrAssembly, action, a.cfg.Actions)
	}
	return Handle{Pop: a.action, Unit: action}, nil
}

func (a *Agent) RewardInput() Handle { return Handle{Pop: a.reward} }

func (a *Agent) PunishmentInput() Handle { return Handle{Pop: a.punishment} }

// DrawInput clears the trace without touching the cortex.
func (a *Agent) DrawInput() Handle { return Handle{Pop: a.draw} }

// FeedbackInput maps a feedback signal to its input line. FeedbackNone has
// no line.
func (a *Agent) FeedbackInput(f model.Feedback) (Handle, bool) {
	switch f {
	case model.FeedbackReward:
		return a.RewardInput(), true
	case model.FeedbackPunishment:
		return a.PunishmentInput(), true
	case model.FeedbackDraw:
		return a.DrawInput(), true
	}
	return Handle{}, false
}

// Counter is the tally unit for an action. It can be read but not fired.
func (a *Agent) Counter(action int) (Handle, error) {
	if action < 0 || action >= a.cfg.Actions {
		return Handle{}, fmt.Errorf("%w: counter %d outside [0,%d)", model.ErrAssembly, action, a.cfg.Actions)
	}
	return Handle{Pop: a.encoder.Counter(), Unit: action}, nil
}

func (a *Agent) Counts(sim *circuit.Simulator) []int {
	out := make([]int, a.cfg.Actions)
	for i := range out {
		out[i] = a.protos.Counts(sim.Voltage(a.encoder.Counter(), i))
	}
	return out
}

// Saturated reports whether any counter hit its ceiling since the last
// reset.
func (a *Agent) Saturated(sim *circuit.Simulator) bool {
	for i := 0; i < a.cfg.Actions; i++ {
		if sim.Saturated(a.encoder.Counter(), i) {
			return true
		}
	}
	return false
}

func (a *Agent) ResetCounters(sim *circuit.Simulator) {
	sim.ResetVoltages(a.encoder.Counter())
	sim.ClearSaturation(a.encoder.Counter())
}

func (a *Agent) Estimate(sim *circuit.Simulator, action, state, replicate int) float64 {
	return a.cortex.Estimate(sim, action, state, replicate)
}

// Estimates returns every cell's normalized value, ordered by action, then
// state, then replicate.
func (a *Agent) Estimates(sim *circuit.Simulator) []float64 {
	reps := a.cortex.Replicates()
	out := make([]float64, 0, a.cfg.Actions*a.cfg.States*reps)
	for act := 0; act < a.cfg.Actions; act++ {
		for s := 0; s < a.cfg.States; s++ {
			for r := 0; r < reps; r++ {
				out = append(out, a.cortex.Estimate(sim, act, s, r))
			}
		}
	}
	return out
}

// ApplyStartingValues writes the configured starting values into the
// cortex memory.
func (a *Agent) ApplyStartingValues(sim *circuit.Simulator) {
	values := a.cfg.StartingValues
	if len(values) == 0 {
		return
	}
	reps := a.cortex.Replicates()
	perReplicate := len(values) == a.cfg.Actions*a.cfg.States*reps
	tracker := a.cortex.Tracker()
	for act := 0; act < a.cfg.Actions; act++ {
		for s := 0; s < a.cfg.States; s++ {
			for r := 0; r < reps; r++ {
				i := act*a.cfg.States + s
				if perReplicate {
					i = i*reps + r
				}
				tracker.SetStartingValue(sim, a.cortex.Unit(act, s, r), values[i])
			}
		}
	}
}
