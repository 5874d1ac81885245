package scape

import (
	"fmt"
	"math/rand"

	"pulsenet/internal/model"
	"pulsenet/internal/scapeid"
)

// Outcome is what the environment returns for one action.
type Outcome struct {
	Next     int
	Feedback model.Feedback
}

// Scape is an episodic task with discrete states and actions. Scapes may
// hold state between steps and are not safe for concurrent use.
type Scape interface {
	Name() string
	States() int
	Actions() int
	// Reset starts a new episode and returns its first state.
	Reset(rng *rand.Rand) int
	Step(rng *rand.Rand, state, action int) (Outcome, error)
}

// Options selects and parameterises a task by name.
type Options struct {
	Name          string
	Probabilities []float64
	Width         int
	Height        int
	Goal          [2]int
	Lifespan      int
}

func New(opts Options) (Scape, error) {
	switch scapeid.Normalize(opts.Name) {
	case "", scapeid.Bandit:
		return NewBandit(opts.Probabilities)
	case scapeid.Grid:
		return NewGrid(GridConfig{Width: opts.Width, Height: opts.Height, Goal: opts.Goal, Lifespan: opts.Lifespan})
	default:
		return nil, fmt.Errorf("%w: unsupported task %q", model.ErrConfiguration, opts.Name)
	}
}

func checkMove(s Scape, state, action int) error {
	if state < 0 || state >= s.States() {
		return fmt.Errorf("%s: state %d outside [0,%d)", s.Name(), state, s.States())
	}
	if action < 0 || action >= s.Actions() {
		return fmt.Errorf("%s: action %d outside [0,%d)", s.Name(), action, s.Actions())
	}
	return nil
}
