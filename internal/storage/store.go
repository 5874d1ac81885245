package storage

import (
	"context"

	"pulsenet/internal/model"
)

// Store persists run summaries and their per-epoch histories.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first. A limit of zero or less means all.
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	SaveEpochHistory(ctx context.Context, history model.EpochHistory) error
	GetEpochHistory(ctx context.Context, runID string) (model.EpochHistory, bool, error)
}
