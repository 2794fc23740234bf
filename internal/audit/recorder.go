package audit

import (
	"context"

	"github.com/wonny/trifund/internal/brain"
	"github.com/wonny/trifund/internal/strategyconfig"
	"github.com/wonny/trifund/pkg/logger"
)

// Runner executes one selection run (brain.Orchestrator)
type Runner interface {
	Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error)
}

// Store persists audit records (Repository)
type Store interface {
	SaveConfigSnapshot(ctx context.Context, snapshot *strategyconfig.Snapshot) error
	SaveRunReport(ctx context.Context, report *RunReport) error
}

// Recorder wraps a Runner and writes the config snapshot and a run report
// around every run. Audit write failures are logged, never returned.
// ⭐ SSOT: 실행 감사 기록은 여기서만
type Recorder struct {
	runner   Runner
	store    Store
	snapshot *strategyconfig.Snapshot
	logger   *logger.Logger
}

// NewRecorder creates a recorder for runs made with snapshot's config
func NewRecorder(runner Runner, store Store, snapshot *strategyconfig.Snapshot, log *logger.Logger) *Recorder {
	return &Recorder{
		runner:   runner,
		store:    store,
		snapshot: snapshot,
		logger:   log,
	}
}

// Run implements Runner
func (r *Recorder) Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error) {
	if err := r.store.SaveConfigSnapshot(ctx, r.snapshot); err != nil {
		r.logger.WithError(err).Warn("Failed to save config snapshot")
	}

	result, runErr := r.runner.Run(ctx, config)
	if result == nil {
		return result, runErr
	}

	report := NewRunReport(result, r.snapshot.ConfigHash, config.DryRun)

	// 취소된 실행도 기록해야 하므로 부모 ctx의 취소를 따르지 않는다
	if err := r.store.SaveRunReport(context.WithoutCancel(ctx), report); err != nil {
		r.logger.WithError(err).WithField("run_id", report.RunID).Warn("Failed to save run report")
	}

	return result, runErr
}
