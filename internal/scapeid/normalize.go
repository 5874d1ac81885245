// Package scapeid canonicalizes task names given on the command line or in
// configuration files.
package scapeid

import "strings"

const (
	Bandit = "bandit"
	Grid   = "grid"
)

// Normalize maps a task name or alias to its canonical name. Unknown names
// come back lower-cased and hyphenated; the empty name stays empty.
func Normalize(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.Trim(normalized, "-")
	if normalized == "" {
		return ""
	}
	for _, candidate := range aliasCandidates(normalized) {
		if canonical, ok := canonicalTask(candidate); ok {
			return canonical
		}
	}
	return normalized
}

// aliasCandidates strips a "task" prefix and an "env" or "sim" suffix.
func aliasCandidates(normalized string) []string {
	candidates := []string{normalized}
	trimmed := strings.Trim(strings.TrimPrefix(normalized, "task"), "-")
	for _, suffix := range []string{"-env", "-sim", "env", "sim"} {
		if strings.HasSuffix(trimmed, suffix) && len(trimmed) > len(suffix) {
			trimmed = strings.TrimSuffix(trimmed, suffix)
			break
		}
	}
	if trimmed != "" && trimmed != normalized {
		candidates = append(candidates, trimmed)
	}
	return candidates
}

func canonicalTask(alias string) (string, bool) {
	switch strings.ReplaceAll(alias, "-", "") {
	case "bandit", "mab", "multiarmedbandit", "karmedbandit", "nbandit":
		return Bandit, true
	case "grid", "gridworld", "maze":
		return Grid, true
	default:
		return "", false
	}
}
