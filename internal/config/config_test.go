package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pulsenet/internal/model"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	task, err := cfg.Scape()
	if err != nil {
		t.Fatalf("default task: %v", err)
	}
	ac := cfg.AgentConfig(task)
	if ac.Actions != 2 || ac.States != 1 {
		t.Fatalf("default agent is %dx%d", ac.Actions, ac.States)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	doc := `
agent:
  replicates: 3
  dynrange: 4
  noisy: true
driver:
  epochs: 50
  epsilon: 0.2
task:
  name: grid
  width: 3
  height: 2
  goal: [2, 1]
  lifespan: 6
storage:
  kind: memory
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Agent.Replicates != 3 || cfg.Agent.DynRange != 4 || !cfg.Agent.Noisy {
		t.Fatalf("agent section: %+v", cfg.Agent)
	}
	if cfg.Driver.Epochs != 50 || cfg.Driver.Epsilon != 0.2 || cfg.Driver.EpochTicks != DefaultConfig().Driver.EpochTicks {
		t.Fatalf("driver section: %+v", cfg.Driver)
	}
	task, err := cfg.Scape()
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if task.Name() != "grid" || task.States() != 6 || task.Actions() != 4 {
		t.Fatalf("task %s %dx%d", task.Name(), task.States(), task.Actions())
	}
	if cfg.Log.Level != "debug" || cfg.Log.Target != "stdout" {
		t.Fatalf("log section: %+v", cfg.Log)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "agent:\n  colour: red\n",
		"epochs":         "driver:\n  epochs: 0\n",
		"epsilon":        "driver:\n  epsilon: 2\n",
		"task":           "task:\n  name: chess\n",
		"probabilities":  "task:\n  probabilities: [0.5, 1.5]\n",
		"dynrange":       "agent:\n  dynrange: 99\n",
		"starting value": "agent:\n  starting_values: [0.1, 3]\n",
		"log level":      "log:\n  level: loud\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); !errors.Is(err, model.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestParseEmptyDocumentKeepsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Driver.Seed != DefaultConfig().Driver.Seed || cfg.Task.Name != "bandit" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}
