// Package logging is the process-wide leveled logger. Messages logged before
// Setup are dropped, so library packages stay silent under test unless a
// caller opts in.
package logging

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/voodooEntity/archivist"
)

const (
	TargetStdout = "stdout"
	TargetFile   = "file"
)

var enabled atomic.Bool

// Setup routes log output to target ("stdout" or "file" at path) at the
// given level: debug, info, warning or error.
func Setup(level, target, path string) error {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "":
		level = "info"
	case "debug", "info", "warning", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", level)
	}
	switch target {
	case "":
		target = TargetStdout
	case TargetStdout:
	case TargetFile:
		if path == "" {
			return fmt.Errorf("log target %s requires a path", target)
		}
	default:
		return fmt.Errorf("unsupported log target: %s", target)
	}
	archivist.Init(level, target, path)
	enabled.Store(true)
	return nil
}

func Enabled() bool {
	return enabled.Load()
}

func Info(message string, params ...interface{}) {
	if enabled.Load() {
		archivist.Info(message, params...)
	}
}

func Debug(message string, params ...interface{}) {
	if enabled.Load() {
		archivist.Debug(message, params...)
	}
}

func Debugf(message string, params ...interface{}) {
	if enabled.Load() {
		archivist.DebugF(message, params...)
	}
}

func Error(message string, params ...interface{}) {
	if enabled.Load() {
		archivist.Error(message, params...)
	}
}
