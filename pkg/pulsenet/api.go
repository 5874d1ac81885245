// Package pulsenet runs spiking reinforcement-learning agents against tasks
// and keeps their run history.
package pulsenet

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"pulsenet/internal/agent"
	"pulsenet/internal/config"
	"pulsenet/internal/driver"
	"pulsenet/internal/logging"
	"pulsenet/internal/model"
	"pulsenet/internal/scape"
	"pulsenet/internal/stats"
	"pulsenet/internal/storage"
)

const (
	defaultDBPath     = "pulsenet.db"
	defaultRunsLimit  = 20
	defaultExportsDir = "exports"
	greedyShareWindow = 100
)

type Options struct {
	StoreKind string
	DBPath    string
}

type Client struct {
	store       storage.Store
	initialized bool
	now         func() time.Time
}

// RunRequest describes one run. Zero fields take the defaults of
// config.DefaultConfig.
type RunRequest struct {
	Task          string
	Probabilities []float64
	GridWidth     int
	GridHeight    int
	GridGoal      [2]int
	GridLifespan  int

	Epochs     int
	EpochTicks int
	Epsilon    float64
	Seed       int64

	Replicates     int
	DynRange       int
	Noisy          bool
	NoiseExp       int
	Threshold      int
	StartingValues []float64

	// Progress, when set, is called after every epoch.
	Progress func(model.EpochRecord)
}

type RunSummary struct {
	RunID          string
	Task           string
	Epochs         int
	Ticks          int
	FinalCounts    []int
	FinalEstimates []float64
	// BestAction is the task's best action, or -1 when the task has none.
	BestAction int
	// GreedyShare is the fraction of the last epochs in which BestAction
	// led the counters.
	GreedyShare float64
}

type RunItem struct {
	RunID        string
	CreatedAtUTC time.Time
	Task         string
	Seed         int64
	Epochs       int
	EpochTicks   int
	Replicates   int
	GreedyShare  float64
	FinalCounts  []int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
	// Window is the learning-curve window in epochs.
	Window int
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type HistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

// RequestFromConfig maps a loaded configuration onto a run request.
func RequestFromConfig(cfg config.Config) RunRequest {
	return RunRequest{
		Task:           cfg.Task.Name,
		Probabilities:  append([]float64(nil), cfg.Task.Probabilities...),
		GridWidth:      cfg.Task.Width,
		GridHeight:     cfg.Task.Height,
		GridGoal:       cfg.Task.Goal,
		GridLifespan:   cfg.Task.Lifespan,
		Epochs:         cfg.Driver.Epochs,
		EpochTicks:     cfg.Driver.EpochTicks,
		Epsilon:        cfg.Driver.Epsilon,
		Seed:           cfg.Driver.Seed,
		Replicates:     cfg.Agent.Replicates,
		DynRange:       cfg.Agent.DynRange,
		Noisy:          cfg.Agent.Noisy,
		NoiseExp:       cfg.Agent.NoiseExp,
		Threshold:      cfg.Agent.Threshold,
		StartingValues: append([]float64(nil), cfg.Agent.StartingValues...),
	}
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store, now: time.Now}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Init opens the store. Every other method calls it as needed.
func (c *Client) Init(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := req.config()
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	task, err := cfg.Scape()
	if err != nil {
		return RunSummary{}, err
	}
	ac := cfg.AgentConfig(task)
	a, err := agent.New(ac)
	if err != nil {
		return RunSummary{}, err
	}
	d, err := driver.New(a, task, cfg.DriverConfig())
	if err != nil {
		return RunSummary{}, err
	}

	runID := uuid.NewString()
	logging.Info("run started", runID, task.Name(), cfg.Driver.Epochs)
	records, err := d.Run(ctx, cfg.Driver.Epochs, req.Progress)
	if err != nil {
		return RunSummary{}, fmt.Errorf("run %s: %w", runID, err)
	}

	summary := RunSummary{
		RunID:      runID,
		Task:       task.Name(),
		Epochs:     len(records),
		Ticks:      d.Simulator().Tick(),
		BestAction: -1,
	}
	if len(records) > 0 {
		last := records[len(records)-1]
		summary.FinalCounts = last.Counts
		summary.FinalEstimates = last.Estimates
	}
	if best, ok := task.(interface{ Best() int }); ok {
		summary.BestAction = best.Best()
		summary.GreedyShare = driver.GreedyShare(records, summary.BestAction, greedyShareWindow)
	}

	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		Task:            summary.Task,
		CreatedAt:       c.now().UTC(),
		Actions:         ac.Actions,
		States:          ac.States,
		Replicates:      ac.Replicates,
		DynRange:        ac.DynRange,
		Noisy:           ac.Noisy,
		Probabilities:   probabilitiesOf(task),
		Epochs:          summary.Epochs,
		EpochTicks:      cfg.Driver.EpochTicks,
		Epsilon:         cfg.Driver.Epsilon,
		Seed:            cfg.Driver.Seed,
		FinalCounts:     summary.FinalCounts,
		FinalEstimates:  summary.FinalEstimates,
		GreedyShare:     summary.GreedyShare,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveEpochHistory(ctx, model.EpochHistory{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Records:         records,
	}); err != nil {
		return RunSummary{}, err
	}
	logging.Info("run finished", runID, summary.Ticks, summary.GreedyShare)
	return summary, nil
}

func (c *Client) Runs(ctx context.Context, limit int) ([]RunItem, error) {
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunItem, 0, len(runs))
	for _, r := range runs {
		out = append(out, RunItem{
			RunID:        r.ID,
			CreatedAtUTC: r.CreatedAt.UTC(),
			Task:         r.Task,
			Seed:         r.Seed,
			Epochs:       r.Epochs,
			EpochTicks:   r.EpochTicks,
			Replicates:   r.Replicates,
			GreedyShare:  r.GreedyShare,
			FinalCounts:  r.FinalCounts,
		})
	}
	return out, nil
}

// History returns the epoch records of a run. A positive limit keeps only
// the last limit epochs.
func (c *Client) History(ctx context.Context, req HistoryRequest) ([]model.EpochRecord, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if runID == "" {
		return nil, errors.New("history requires run id or latest")
	}

	history, ok, err := c.store.GetEpochHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("epoch history not found for run id: %s", runID)
	}
	records := history.Records
	if req.Limit > 0 && len(records) > req.Limit {
		records = records[len(records)-req.Limit:]
	}
	return append([]model.EpochRecord(nil), records...), nil
}

// Export writes a stored run with its epoch history and learning curve to
// OutDir/<run id>.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = defaultExportsDir
	}
	if req.Window <= 0 {
		req.Window = greedyShareWindow
	}
	if err := c.Init(ctx); err != nil {
		return ExportSummary{}, err
	}

	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok {
		return ExportSummary{}, fmt.Errorf("run not found: %s", runID)
	}
	history, ok, err := c.store.GetEpochHistory(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok {
		return ExportSummary{}, fmt.Errorf("epoch history not found for run id: %s", runID)
	}
	dir, err := stats.WriteRunArtifacts(req.OutDir, run, history, req.Window)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(dir)}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if !latest {
		return runID, nil
	}
	runs, err := c.store.ListRuns(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].ID, nil
}

// Topology assembles the agent a request would run and describes it
// without simulating.
func (c *Client) Topology(_ context.Context, req RunRequest) (agent.Topology, error) {
	cfg := req.config()
	if err := cfg.Validate(); err != nil {
		return agent.Topology{}, err
	}
	task, err := cfg.Scape()
	if err != nil {
		return agent.Topology{}, err
	}
	a, err := agent.New(cfg.AgentConfig(task))
	if err != nil {
		return agent.Topology{}, err
	}
	return a.Topology(), nil
}

func (req RunRequest) config() config.Config {
	cfg := config.DefaultConfig()
	if req.Task != "" {
		cfg.Task.Name = req.Task
	}
	if len(req.Probabilities) > 0 {
		cfg.Task.Probabilities = req.Probabilities
	}
	if req.GridWidth > 0 {
		cfg.Task.Width = req.GridWidth
	}
	if req.GridHeight > 0 {
		cfg.Task.Height = req.GridHeight
	}
	if req.GridGoal != [2]int{} {
		cfg.Task.Goal = req.GridGoal
	}
	if req.GridLifespan > 0 {
		cfg.Task.Lifespan = req.GridLifespan
	}
	if req.Epochs > 0 {
		cfg.Driver.Epochs = req.Epochs
	}
	if req.EpochTicks > 0 {
		cfg.Driver.EpochTicks = req.EpochTicks
	}
	if req.Epsilon != 0 {
		cfg.Driver.Epsilon = req.Epsilon
	}
	if req.Seed != 0 {
		cfg.Driver.Seed = req.Seed
	}
	if req.Replicates > 0 {
		cfg.Agent.Replicates = req.Replicates
	}
	if req.DynRange > 0 {
		cfg.Agent.DynRange = req.DynRange
	}
	if req.Threshold > 0 {
		cfg.Agent.Threshold = req.Threshold
	}
	if req.NoiseExp > 0 {
		cfg.Agent.NoiseExp = req.NoiseExp
	}
	cfg.Agent.Noisy = cfg.Agent.Noisy || req.Noisy
	if len(req.StartingValues) > 0 {
		cfg.Agent.StartingValues = req.StartingValues
	}
	return cfg
}

func probabilitiesOf(task scape.Scape) []float64 {
	if b, ok := task.(*scape.Bandit); ok {
		return b.Probabilities()
	}
	return nil
}
