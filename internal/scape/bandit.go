package scape

import (
	"fmt"
	"math/rand"

	"pulsenet/internal/model"
)

// Bandit is a single-state multi-armed bandit: arm i pays a reward with
// probability Probabilities[i] and a punishment otherwise.
type Bandit struct {
	probabilities []float64
}

func NewBandit(probabilities []float64) (*Bandit, error) {
	if len(probabilities) < 1 {
		return nil, fmt.Errorf("%w: bandit needs at least one arm", model.ErrConfiguration)
	}
	for i, p := range probabilities {
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("%w: arm %d probability %g outside [0,1]", model.ErrConfiguration, i, p)
		}
	}
	return &Bandit{probabilities: append([]float64(nil), probabilities...)}, nil
}

func (b *Bandit) Name() string { return "bandit" }

func (b *Bandit) States() int { return 1 }

func (b *Bandit) Actions() int { return len(b.probabilities) }

func (b *Bandit) Probabilities() []float64 {
	return append([]float64(nil), b.probabilities...)
}

// Best is the arm with the highest payout probability.
func (b *Bandit) Best() int {
	best := 0
	for i, p := range b.probabilities {
		if p > b.probabilities[best] {
			best = i
		}
	}
	return best
}

func (b *Bandit) Reset(*rand.Rand) int { return 0 }

func (b *Bandit) Step(rng *rand.Rand, state, action int) (Outcome, error) {
	if err := checkMove(b, state, action); err != nil {
		return Outcome{}, err
	}
	if rng.Float64() < b.probabilities[action] {
		return Outcome{Next: 0, Feedback: model.FeedbackReward}, nil
	}
	return Outcome{Next: 0, Feedback: model.FeedbackPunishment}, nil
}
