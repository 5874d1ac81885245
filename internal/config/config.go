// Package config loads run configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"pulsenet/internal/agent"
	"pulsenet/internal/driver"
	"pulsenet/internal/model"
	"pulsenet/internal/scape"
	"pulsenet/internal/storage"
)

type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Driver  DriverConfig  `yaml:"driver"`
	Task    TaskConfig    `yaml:"task"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

type AgentConfig struct {
	Replicates     int       `yaml:"replicates"`
	DynRange       int       `yaml:"dynrange"`
	Noisy          bool      `yaml:"noisy"`
	Threshold      int       `yaml:"threshold"`
	NoiseExp       int       `yaml:"noise_exp"`
	StartingValues []float64 `yaml:"starting_values"`
}

type DriverConfig struct {
	Epochs     int     `yaml:"epochs"`
	EpochTicks int     `yaml:"epoch_ticks"`
	Epsilon    float64 `yaml:"epsilon"`
	Seed       int64   `yaml:"seed"`
}

// TaskConfig selects the environment. Probabilities apply to the bandit,
// the remaining fields to the grid.
type TaskConfig struct {
	Name          string    `yaml:"name"`
	Probabilities []float64 `yaml:"probabilities"`
	Width         int       `yaml:"width"`
	Height        int       `yaml:"height"`
	Goal          [2]int    `yaml:"goal"`
	Lifespan      int       `yaml:"lifespan"`
}

type StorageConfig struct {
	Kind   string `yaml:"kind"`
	DBPath string `yaml:"db_path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Target string `yaml:"target"`
	Path   string `yaml:"path"`
}

func DefaultConfig() Config {
	ac := agent.DefaultConfig()
	dc := driver.DefaultConfig()
	grid := scape.DefaultGridConfig()
	return Config{
		Agent: AgentConfig{
			Replicates: ac.Replicates,
			DynRange:   ac.DynRange,
			Threshold:  ac.Threshold,
			NoiseExp:   ac.NoiseExp,
		},
		Driver: DriverConfig{
			Epochs:     2000,
			EpochTicks: dc.EpochTicks,
			Epsilon:    dc.Epsilon,
			Seed:       dc.Seed,
		},
		Task: TaskConfig{
			Name:          "bandit",
			Probabilities: []float64{0.9, 0.1},
			Width:         grid.Width,
			Height:        grid.Height,
			Goal:          grid.Goal,
			Lifespan:      grid.Lifespan,
		},
		Storage: StorageConfig{
			Kind:   storage.DefaultStoreKind(),
			DBPath: "pulsenet.db",
		},
		Log: LogConfig{
			Level:  "info",
			Target: "stdout",
		},
	}
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", model.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate builds the task and checks the agent and driver sections
// against it.
func (c Config) Validate() error {
	if c.Driver.Epochs < 1 {
		return fmt.Errorf("%w: epochs must be positive, got %d", model.ErrConfiguration, c.Driver.Epochs)
	}
	if err := c.DriverConfig().Validate(); err != nil {
		return err
	}
	task, err := c.Scape()
	if err != nil {
		return err
	}
	if err := c.AgentConfig(task).Validate(); err != nil {
		return err
	}
	switch c.Log.Level {
	case "debug", "info", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", model.ErrConfiguration, c.Log.Level)
	}
	return nil
}

func (c Config) Scape() (scape.Scape, error) {
	return scape.New(scape.Options{
		Name:          c.Task.Name,
		Probabilities: c.Task.Probabilities,
		Width:         c.Task.Width,
		Height:        c.Task.Height,
		Goal:          c.Task.Goal,
		Lifespan:      c.Task.Lifespan,
	})
}

// AgentConfig sizes the agent for the given task.
func (c Config) AgentConfig(task scape.Scape) agent.Config {
	return agent.Config{
		Actions:        task.Actions(),
		States:         task.States(),
		Replicates:     c.Agent.Replicates,
		DynRange:       c.Agent.DynRange,
		Noisy:          c.Agent.Noisy,
		Threshold:      c.Agent.Threshold,
		NoiseExp:       c.Agent.NoiseExp,
		StartingValues: c.Agent.StartingValues,
	}
}

func (c Config) DriverConfig() driver.Config {
	return driver.Config{
		EpochTicks: c.Driver.EpochTicks,
		Epsilon:    c.Driver.Epsilon,
		Seed:       c.Driver.Seed,
	}
}
