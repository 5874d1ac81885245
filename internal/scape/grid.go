package scape

import (
	"fmt"
	"math/rand"

	"pulsenet/internal/model"
)

const (
	North = iota
	South
	East
	West
)

type GridConfig struct {
	Width, Height int
	Goal          [2]int
	// Lifespan is how many moves an episode may take before it ends in a
	// punishment.
	Lifespan int
}

func DefaultGridConfig() GridConfig {
	return GridConfig{Width: 5, Height: 5, Goal: [2]int{4, 4}, Lifespan: 8}
}

// Grid is a walled maze: the agent moves one cell per step, is rewarded on
// reaching the goal and punished when its lifespan runs out. Either ending
// restarts it on a random non-goal cell. Moves into a wall leave it in
// place.
type Grid struct {
	cfg   GridConfig
	moves int
}

func NewGrid(cfg GridConfig) (*Grid, error) {
	def := DefaultGridConfig()
	if cfg.Width == 0 && cfg.Height == 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
		if cfg.Goal == ([2]int{}) {
			cfg.Goal = def.Goal
		}
	}
	if cfg.Lifespan == 0 {
		cfg.Lifespan = def.Lifespan
	}
	if cfg.Width < 1 || cfg.Height < 1 || cfg.Width*cfg.Height < 2 {
		return nil, fmt.Errorf("%w: grid %dx%d needs at least two cells", model.ErrConfiguration, cfg.Width, cfg.Height)
	}
	if cfg.Goal[0] < 0 || cfg.Goal[0] >= cfg.Width || cfg.Goal[1] < 0 || cfg.Goal[1] >= cfg.Height {
		return nil, fmt.Errorf("%w: goal %v outside %dx%d grid", model.ErrConfiguration, cfg.Goal, cfg.Width, cfg.Height)
	}
	if cfg.Lifespan < 1 {
		return nil, fmt.Errorf("%w: lifespan %d must be positive", model.ErrConfiguration, cfg.Lifespan)
	}
	return &Grid{cfg: cfg}, nil
}

func (g *Grid) Name() string { return "grid" }

func (g *Grid) States() int { return g.cfg.Width * g.cfg.Height }

func (g *Grid) Actions() int { return 4 }

// Cell maps a state to its (x, y) coordinate.
func (g *Grid) Cell(state int) (x, y int) {
	return state % g.cfg.Width, state / g.cfg.Width
}

func (g *Grid) State(x, y int) int {
	return y*g.cfg.Width + x
}

func (g *Grid) Reset(rng *rand.Rand) int {
	g.moves = 0
	goal := g.State(g.cfg.Goal[0], g.cfg.Goal[1])
	for {
		if s := rng.Intn(g.States()); s != goal {
			return s
		}
	}
}

func (g *Grid) Step(rng *rand.Rand, state, action int) (Outcome, error) {
	if err := checkMove(g, state, action); err != nil {
		return Outcome{}, err
	}
	x, y := g.Cell(state)
	switch action {
	case North:
		y = min(y+1, g.cfg.Height-1)
	case South:
		y = max(y-1, 0)
	case East:
		x = min(x+1, g.cfg.Width-1)
	case West:
		x = max(x-1, 0)
	}
	if x == g.cfg.Goal[0] && y == g.cfg.Goal[1] {
		return Outcome{Next: g.Reset(rng), Feedback: model.FeedbackReward}, nil
	}
	g.moves++
	if g.moves >= g.cfg.Lifespan {
		return Outcome{Next: g.Reset(rng), Feedback: model.FeedbackPunishment}, nil
	}
	return Outcome{Next: g.State(x, y), Feedback: model.FeedbackNone}, nil
}
