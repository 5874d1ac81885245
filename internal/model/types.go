package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Construction-time error categories. Callers match them with errors.Is.
var (
	ErrAssembly      = errors.New("assembly error")
	ErrConfiguration = errors.New("configuration error")
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Feedback is the external signal delivered at an epoch boundary.
type Feedback int

const (
	FeedbackNone Feedback = iota
	FeedbackReward
	FeedbackPunishment
	FeedbackDraw
)

var feedbackNames = [...]string{"none", "reward", "punishment", "draw"}

func (f Feedback) String() string {
	if f < 0 || int(f) >= len(feedbackNames) {
		return fmt.Sprintf("feedback(%d)", int(f))
	}
	return feedbackNames[f]
}

func ParseFeedback(name string) (Feedback, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i, n := range feedbackNames {
		if n == normalized {
			return Feedback(i), nil
		}
	}
	return FeedbackNone, fmt.Errorf("unknown feedback %q", name)
}

func (f Feedback) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Feedback) UnmarshalText(text []byte) error {
	parsed, err := ParseFeedback(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

type EpochRecord struct {
	Epoch     int       `json:"epoch"`
	Tick      int       `json:"tick"`
	State     int       `json:"state"`
	Action    int       `json:"action"`
	Explored  bool      `json:"explored"`
	Feedback  Feedback  `json:"feedback"`
	Counts    []int     `json:"counts"`
	Estimates []float64 `json:"estimates,omitempty"`
	Saturated bool      `json:"saturated"`
}

// RunRecord summarises one persisted agent run.
type RunRecord struct {
	VersionedRecord
	ID             string    `json:"id"`
	Task           string    `json:"task"`
	CreatedAt      time.Time `json:"created_at"`
	Actions        int       `json:"actions"`
	States         int       `json:"states"`
	Replicates     int       `json:"replicates"`
	DynRange       int       `json:"dynrange"`
	Noisy          bool      `json:"noisy"`
	Probabilities  []float64 `json:"probabilities,omitempty"`
	Epochs         int       `json:"epochs"`
	EpochTicks     int       `json:"epoch_ticks"`
	Epsilon        float64   `json:"epsilon"`
	Seed           int64     `json:"seed"`
	FinalCounts    []int     `json:"final_counts"`
	FinalEstimates []float64 `json:"final_estimates,omitempty"`
	GreedyShare    float64   `json:"greedy_share"`
}

// EpochHistory is the per-epoch trace of a run, stored separately from the
// run summary because it grows with the epoch count.
type EpochHistory struct {
	VersionedRecord
	RunID   string        `json:"run_id"`
	Records []EpochRecord `json:"records"`
}
