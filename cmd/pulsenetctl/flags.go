package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"pulsenet/internal/config"
	"pulsenet/internal/storage"
)

// runFlags are the flags shared by run and topology. Explicitly set flags
// override the configuration file.
type runFlags struct {
	configPath    *string
	task          *string
	probabilities *string
	gridWidth     *int
	gridHeight    *int
	gridGoal      *string
	lifespan      *int
	epochs        *int
	epochTicks    *int
	epsilon       *float64
	seed          *int64
	replicates    *int
	dynRange      *int
	noisy         *bool
	noiseExp      *int
	storeKind     *string
	dbPath        *string
	logLevel      *string
}

func bindRunFlags(fs *flag.FlagSet) *runFlags {
	def := config.DefaultConfig()
	return &runFlags{
		configPath:    fs.String("config", "", "YAML run configuration"),
		task:          fs.String("task", def.Task.Name, "task: bandit|grid"),
		probabilities: fs.String("probabilities", joinFloats(def.Task.Probabilities), "comma separated bandit arm reward probabilities"),
		gridWidth:     fs.Int("grid-width", def.Task.Width, "grid width"),
		gridHeight:    fs.Int("grid-height", def.Task.Height, "grid height"),
		gridGoal:      fs.String("grid-goal", fmt.Sprintf("%d,%d", def.Task.Goal[0], def.Task.Goal[1]), "grid goal cell as x,y"),
		lifespan:      fs.Int("lifespan", def.Task.Lifespan, "grid moves before punishment"),
		epochs:        fs.Int("epochs", def.Driver.Epochs, "epochs to run"),
		epochTicks:    fs.Int("epoch-ticks", def.Driver.EpochTicks, "ticks per epoch"),
		epsilon:       fs.Float64("epsilon", def.Driver.Epsilon, "exploration probability"),
		seed:          fs.Int64("seed", def.Driver.Seed, "random seed"),
		replicates:    fs.Int("replicates", def.Agent.Replicates, "cortex replicates per cell"),
		dynRange:      fs.Int("dynrange", def.Agent.DynRange, "tracker dynamic range"),
		noisy:         fs.Bool("noisy", def.Agent.Noisy, "use noisy tracker thresholds"),
		noiseExp:      fs.Int("noise-exp", def.Agent.NoiseExp, "threshold noise bound exponent"),
		storeKind:     fs.String("store", def.Storage.Kind, "store backend: memory|sqlite"),
		dbPath:        fs.String("db-path", def.Storage.DBPath, "sqlite database path"),
		logLevel:      fs.String("log-level", def.Log.Level, "log level: debug|info|warning|error"),
	}
}

// resolve loads the configuration file, if any, and applies the flags the
// user set on top of it.
func (f *runFlags) resolve(fs *flag.FlagSet) (config.Config, error) {
	setFlags := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) {
		setFlags[fl.Name] = true
	})

	cfg := config.DefaultConfig()
	if *f.configPath != "" {
		loaded, err := config.Load(*f.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if setFlags["task"] {
		cfg.Task.Name = *f.task
	}
	if setFlags["probabilities"] {
		probs, err := parseFloats(*f.probabilities)
		if err != nil {
			return config.Config{}, fmt.Errorf("parse probabilities: %w", err)
		}
		cfg.Task.Probabilities = probs
	}
	if setFlags["grid-width"] {
		cfg.Task.Width = *f.gridWidth
	}
	if setFlags["grid-height"] {
		cfg.Task.Height = *f.gridHeight
	}
	if setFlags["grid-goal"] {
		goal, err := parseInts(*f.gridGoal)
		if err != nil || len(goal) != 2 {
			return config.Config{}, fmt.Errorf("grid goal must be x,y: %q", *f.gridGoal)
		}
		cfg.Task.Goal = [2]int{goal[0], goal[1]}
	}
	if setFlags["lifespan"] {
		cfg.Task.Lifespan = *f.lifespan
	}
	if setFlags["epochs"] {
		cfg.Driver.Epochs = *f.epochs
	}
	if setFlags["epoch-ticks"] {
		cfg.Driver.EpochTicks = *f.epochTicks
	}
	if setFlags["epsilon"] {
		cfg.Driver.Epsilon = *f.epsilon
	}
	if setFlags["seed"] {
		cfg.Driver.Seed = *f.seed
	}
	if setFlags["replicates"] {
		cfg.Agent.Replicates = *f.replicates
	}
	if setFlags["dynrange"] {
		cfg.Agent.DynRange = *f.dynRange
	}
	if setFlags["noisy"] {
		cfg.Agent.Noisy = *f.noisy
	}
	if setFlags["noise-exp"] {
		cfg.Agent.NoiseExp = *f.noiseExp
	}
	if setFlags["store"] {
		cfg.Storage.Kind = *f.storeKind
	}
	if setFlags["db-path"] {
		cfg.Storage.DBPath = *f.dbPath
	}
	if setFlags["log-level"] {
		cfg.Log.Level = *f.logLevel
	}
	if cfg.Storage.Kind == "" {
		cfg.Storage.Kind = storage.DefaultStoreKind()
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func joinFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
