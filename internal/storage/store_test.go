package storage

import (
	"context"
	"testing"
	"time"

	"pulsenet/internal/model"
)

func sampleRun(id string, created time.Time) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		Task:            "bandit",
		CreatedAt:       created,
		Actions:         2,
		States:          1,
		Replicates:      1,
		DynRange:        1,
		Probabilities:   []float64{0.9, 0.1},
		Epochs:          10,
		EpochTicks:      128,
		Epsilon:         0.1,
		Seed:            7,
		FinalCounts:     []int{100, 12},
		FinalEstimates:  []float64{0.8, 0.1},
		GreedyShare:     0.9,
	}
}

func sampleHistory(runID string) model.EpochHistory {
	return model.EpochHistory{
		VersionedRecord: CurrentVersion(),
		RunID:           runID,
		Records: []model.EpochRecord{
			{Epoch: 1, Tick: 128, Action: 1, Explored: true, Feedback: model.FeedbackPunishment, Counts: []int{0, 0}},
			{Epoch: 2, Tick: 256, Action: 0, Feedback: model.FeedbackReward, Counts: []int{3, 1}},
		},
	}
}

// exerciseStore runs the shared contract against any backend.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		if err := store.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("save run %s: %v", id, err)
		}
	}

	run, ok, err := store.GetRun(ctx, "run-b")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if run.Task != "bandit" || len(run.FinalCounts) != 2 || run.FinalCounts[0] != 100 || !run.CreatedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("unexpected run loaded: %+v", run)
	}
	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing run: ok=%t err=%v", ok, err)
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Fatalf("expected newest two runs, got %+v", runs)
	}
	all, err := store.ListRuns(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("list all runs: %d %v", len(all), err)
	}

	if err := store.SaveEpochHistory(ctx, sampleHistory("run-a")); err != nil {
		t.Fatalf("save history: %v", err)
	}
	history, ok, err := store.GetEpochHistory(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%t err=%v", ok, err)
	}
	if len(history.Records) != 2 || history.Records[1].Feedback != model.FeedbackReward || history.Records[1].Counts[0] != 3 {
		t.Fatalf("unexpected history loaded: %+v", history)
	}

	stale := sampleRun("run-stale", base)
	stale.SchemaVersion = CurrentSchemaVersion + 1
	if err := store.SaveRun(ctx, stale); err != ErrVersionMismatch {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), sampleRun("early", time.Now())); err == nil {
		t.Fatal("expected error before init")
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	exerciseStore(t, store)
}

func TestMemoryStoreCopiesSlices(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	run := sampleRun("r", time.Now())
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	run.FinalCounts[0] = -1
	loaded, _, _ := store.GetRun(ctx, "r")
	if loaded.FinalCounts[0] != 100 {
		t.Fatalf("stored run aliased caller slice: %v", loaded.FinalCounts)
	}
}

func TestCodecRejectsOtherVersions(t *testing.T) {
	run := sampleRun("r", time.Now())
	run.CodecVersion = 0
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRun(data); err != ErrVersionMismatch {
		t.Fatalf("expected version mismatch, got %v", err)
	}
	data, err = EncodeEpochHistory(sampleHistory("r"))
	if err != nil {
		t.Fatalf("encode history: %v", err)
	}
	history, err := DecodeEpochHistory(data)
	if err != nil || history.Records[0].Feedback != model.FeedbackPunishment {
		t.Fatalf("decode history: %+v %v", history, err)
	}
}
