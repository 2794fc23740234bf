package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/trifund/internal/brain"
	"github.com/wonny/trifund/pkg/logger"
	"github.com/wonny/trifund/pkg/retry"
)

// Runner executes one selection run
type Runner interface {
	Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error)
}

// SelectionJob runs the full S1→S5 pipeline on a schedule
// ⭐ SSOT: 정기 선정 실행은 이 Job에서만
type SelectionJob struct {
	runner   Runner
	schedule string
	now      func() time.Time
	logger   *logger.Logger
}

// NewSelectionJob creates a selection job firing on schedule (cron with seconds)
func NewSelectionJob(runner Runner, schedule string, log *logger.Logger) *SelectionJob {
	return &SelectionJob{
		runner:   runner,
		schedule: schedule,
		now:      time.Now,
		logger:   log,
	}
}

func (j *SelectionJob) Name() string {
	return "selection_run"
}

func (j *SelectionJob) Schedule() string {
	return j.schedule
}

// Run selects for today's UTC date. Infrastructure failures are retried by
// the scheduler; an invalid portfolio or a canceled context is not.
func (j *SelectionJob) Run(ctx context.Context) error {
	asOf := j.now().UTC().Truncate(24 * time.Hour)

	result, err := j.runner.Run(ctx, brain.RunConfig{AsOf: asOf})
	if err != nil {
		if ctx.Err() != nil || invalidPortfolio(result) {
			return retry.Permanent(fmt.Errorf("selection run: %w", err))
		}
		return fmt.Errorf("selection run: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":    result.RunID,
		"as_of":     asOf.Format("2006-01-02"),
		"selected":  result.Portfolio.Size(),
		"narrative": result.Portfolio.NarrativeStatus,
		"duration":  result.Duration,
	}).Info("Scheduled selection run finished")

	return nil
}

// invalidPortfolio: 선정은 끝났지만 S4 검증에서 실패 (같은 입력이면 재시도해도 동일)
func invalidPortfolio(result *brain.RunResult) bool {
	if result == nil {
		return false
	}
	n := len(result.CompletedStages)
	return n > 0 && result.CompletedStages[n-1] == "S3:Narrative"
}
