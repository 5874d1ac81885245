package scapeid

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"bandit":              "bandit",
		"Bandit":              "bandit",
		" multi_armed_bandit": "bandit",
		"k-armed-bandit":      "bandit",
		"MAB":                 "bandit",
		"bandit_sim":          "bandit",
		"task_bandit":         "bandit",
		"grid":                "grid",
		"grid_world":          "grid",
		"GridWorld":           "grid",
		"maze":                "grid",
		"maze_sim":            "grid",
		"task-maze-env":       "grid",
		"custom_sim":          "custom-sim",
		"poker":               "poker",
		"":                    "",
	}

	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("normalize(%q)=%q want=%q", in, got, want)
		}
	}
}
