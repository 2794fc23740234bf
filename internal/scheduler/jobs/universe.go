package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/trifund/internal/s1_universe"
	"github.com/wonny/trifund/pkg/logger"
)

// UniverseBuilder refreshes the stored index universe
type UniverseBuilder interface {
	Build(ctx context.Context) (*s1_universe.Universe, error)
}

// UniverseJob refreshes index membership ahead of the selection run
// ⭐ SSOT: Universe 갱신 스케줄은 이 Job에서만
type UniverseJob struct {
	builder  UniverseBuilder
	schedule string
	logger   *logger.Logger
}

// NewUniverseJob creates a universe job; an empty schedule means weekdays 21:00
func NewUniverseJob(builder UniverseBuilder, schedule string, log *logger.Logger) *UniverseJob {
	if schedule == "" {
		schedule = "0 0 21 * * 1-5"
	}
	return &UniverseJob{
		builder:  builder,
		schedule: schedule,
		logger:   log,
	}
}

func (j *UniverseJob) Name() string {
	return "universe_refresh"
}

func (j *UniverseJob) Schedule() string {
	return j.schedule
}

// Run fetches the index pages and replaces the stored universe
func (j *UniverseJob) Run(ctx context.Context) error {
	universe, err := j.builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("build universe: %w", err)
	}

	byIndex := make(map[string]int, len(universe.ByIndex))
	for idx, n := range universe.ByIndex {
		byIndex[string(idx)] = n
	}

	j.logger.WithFields(map[string]interface{}{
		"source":     universe.Source,
		"total":      len(universe.Instruments),
		"duplicates": universe.Duplicates,
		"by_index":   byIndex,
	}).Info("Universe refreshed")

	return nil
}
