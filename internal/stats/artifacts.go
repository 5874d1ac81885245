// Package stats summarises stored runs and writes them out as files.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pulsenet/internal/model"
)

const (
	runFile           = "run.json"
	epochsFile        = "epochs.json"
	epochsCSVFile     = "epochs.csv"
	learningCurveFile = "learning_curve.csv"
)

type CurvePoint struct {
	FirstEpoch     int     `json:"first_epoch"`
	LastEpoch      int     `json:"last_epoch"`
	RewardRate     float64 `json:"reward_rate"`
	PunishmentRate float64 `json:"punishment_rate"`
	ExploreRate    float64 `json:"explore_rate"`
	// Leading is, per action, the fraction of epochs whose counters it led
	// outright.
	Leading []float64 `json:"leading"`
}

// LearningCurve splits records into windows of the given size. The last
// window may be short.
func LearningCurve(records []model.EpochRecord, window int) []CurvePoint {
	if window < 1 || len(records) == 0 {
		return nil
	}
	var curve []CurvePoint
	for start := 0; start < len(records); start += window {
		end := start + window
		if end > len(records) {
			end = len(records)
		}
		curve = append(curve, summarize(records[start:end]))
	}
	return curve
}

func summarize(records []model.EpochRecord) CurvePoint {
	p := CurvePoint{
		FirstEpoch: records[0].Epoch,
		LastEpoch:  records[len(records)-1].Epoch,
	}
	n := float64(len(records))
	for _, rec := range records {
		switch rec.Feedback {
		case model.FeedbackReward:
			p.RewardRate++
		case model.FeedbackPunishment:
			p.PunishmentRate++
		}
		if rec.Explored {
			p.ExploreRate++
		}
		if len(p.Leading) < len(rec.Counts) {
			p.Leading = append(p.Leading, make([]float64, len(rec.Counts)-len(p.Leading))...)
		}
		if lead, ok := leader(rec.Counts); ok {
			p.Leading[lead]++
		}
	}
	p.RewardRate /= n
	p.PunishmentRate /= n
	p.ExploreRate /= n
	for i := range p.Leading {
		p.Leading[i] /= n
	}
	return p
}

// leader returns the action with the strictly highest count.
func leader(counts []int) (int, bool) {
	if len(counts) == 0 {
		return 0, false
	}
	best, tied := 0, false
	for i := 1; i < len(counts); i++ {
		switch {
		case counts[i] > counts[best]:
			best, tied = i, false
		case counts[i] == counts[best]:
			tied = true
		}
	}
	return best, !tied
}

// WriteRunArtifacts writes a run, its epoch history and its learning curve
// into outDir/<run id> and returns that directory.
func WriteRunArtifacts(outDir string, run model.RunRecord, history model.EpochHistory, window int) (string, error) {
	if run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}
	if history.RunID != "" && history.RunID != run.ID {
		return "", fmt.Errorf("history belongs to run %s, not %s", history.RunID, run.ID)
	}

	runDir := filepath.Join(outDir, run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, runFile), run); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, epochsFile), history.Records); err != nil {
		return "", err
	}
	if err := writeCSVFile(filepath.Join(runDir, epochsCSVFile), func(w io.Writer) error {
		return WriteEpochsCSV(w, history.Records)
	}); err != nil {
		return "", err
	}
	if err := writeCSVFile(filepath.Join(runDir, learningCurveFile), func(w io.Writer) error {
		return WriteCurveCSV(w, LearningCurve(history.Records, window))
	}); err != nil {
		return "", err
	}
	return runDir, nil
}

// WriteEpochsCSV writes one row per epoch with one count column per action.
func WriteEpochsCSV(w io.Writer, records []model.EpochRecord) error {
	actions := 0
	for _, rec := range records {
		if len(rec.Counts) > actions {
			actions = len(rec.Counts)
		}
	}
	cw := csv.NewWriter(w)
	header := []string{"epoch", "tick", "state", "action", "explored", "feedback", "saturated"}
	for a := 0; a < actions; a++ {
		header = append(header, "count_"+strconv.Itoa(a))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			strconv.Itoa(rec.Epoch),
			strconv.Itoa(rec.Tick),
			strconv.Itoa(rec.State),
			strconv.Itoa(rec.Action),
			strconv.FormatBool(rec.Explored),
			rec.Feedback.String(),
			strconv.FormatBool(rec.Saturated),
		}
		for a := 0; a < actions; a++ {
			if a < len(rec.Counts) {
				row = append(row, strconv.Itoa(rec.Counts[a]))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteCurveCSV(w io.Writer, curve []CurvePoint) error {
	actions := 0
	for _, p := range curve {
		if len(p.Leading) > actions {
			actions = len(p.Leading)
		}
	}
	cw := csv.NewWriter(w)
	header := []string{"first_epoch", "last_epoch", "reward_rate", "punishment_rate", "explore_rate"}
	for a := 0; a < actions; a++ {
		header = append(header, "leading_"+strconv.Itoa(a))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range curve {
		row := []string{
			strconv.Itoa(p.FirstEpoch),
			strconv.Itoa(p.LastEpoch),
			formatRate(p.RewardRate),
			formatRate(p.PunishmentRate),
			formatRate(p.ExploreRate),
		}
		for a := 0; a < actions; a++ {
			v := 0.0
			if a < len(p.Leading) {
				v = p.Leading[a]
			}
			row = append(row, formatRate(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadRun(runDir string) (model.RunRecord, error) {
	data, err := os.ReadFile(filepath.Join(runDir, runFile))
	if err != nil {
		return model.RunRecord{}, err
	}
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, fmt.Errorf("decode %s: %w", runFile, err)
	}
	return run, nil
}

func formatRate(v float64) string {
	return strings.TrimRight(strings.TrimRight(strconv.FormatFloat(v, 'f', 4, 64), "0"), ".")
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func writeCSVFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
