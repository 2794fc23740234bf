package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trifund/pkg/logger"
	"github.com/wonny/trifund/pkg/retry"
)

type countingJob struct {
	name     string
	schedule string
	failures int32
	err      error
	calls    atomic.Int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	n := j.calls.Add(1)
	if n <= j.failures {
		return j.err
	}
	return nil
}

func newTestScheduler() *Scheduler {
	return New(logger.NewNop(), WithRetry(retry.Policy{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	}))
}

func TestScheduler_AddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&countingJob{name: "b", schedule: "0 0 21 * * 1-5"}))
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@daily"}))

	assert.Error(t, s.AddJob(&countingJob{name: "a", schedule: "@daily"}), "duplicate name")
	assert.Error(t, s.AddJob(&countingJob{name: "c", schedule: "every tuesday"}), "bad expression")

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("b"))
	assert.Equal(t, []string{"a"}, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("b"))
}

func TestScheduler_NextRun(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "nightly", schedule: "0 30 22 * * *"}))

	s.Start()
	defer s.Stop()

	next, err := s.NextRun("nightly")
	require.NoError(t, err)
	assert.Equal(t, 22, next.Hour())
	assert.Equal(t, 30, next.Minute())

	_, err = s.NextRun("missing")
	assert.Error(t, err)
}

func TestScheduler_RetriesTransientFailures(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "flaky", schedule: "@daily", failures: 2, err: errors.New("feed timeout")}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync(context.Background(), "flaky")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, int32(3), job.calls.Load())
}

func TestScheduler_GivesUpAfterRetries(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "broken", schedule: "@daily", failures: 100, err: errors.New("feed down")}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync(context.Background(), "broken")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, "feed down", result.Error)
}

func TestScheduler_PermanentErrorIsNotRetried(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "invalid", schedule: "@daily", failures: 100, err: retry.Permanent(errors.New("portfolio invalid"))}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync(context.Background(), "invalid")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
}

func TestScheduler_HistoryAndStats(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "once-broken", schedule: "@daily", failures: 3, err: errors.New("down")}
	require.NoError(t, s.AddJob(job))

	ctx := context.Background()
	_, err := s.RunJobSync(ctx, "once-broken") // 3 attempts, all fail
	require.NoError(t, err)
	_, err = s.RunJobSync(ctx, "once-broken") // 4th call succeeds
	require.NoError(t, err)

	history, err := s.GetJobHistory("once-broken")
	require.NoError(t, err)
	require.Len(t, history.Results, 2)
	assert.InDelta(t, 0.5, history.GetSuccessRate(), 1e-9)

	stats := s.GetJobStats()["once-broken"]
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	require.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)

	_, err = s.RunJobSync(ctx, "missing")
	assert.Error(t, err)
	_, err = s.GetJobHistory("missing")
	assert.Error(t, err)
}

func TestScheduler_RunJobAsync(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "async", schedule: "@daily"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("async"))
	assert.Eventually(t, func() bool { return job.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Error(t, s.RunJob("missing"))
}

func TestJobHistory_Bounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+20; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}

	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.Len(t, h.GetFailedResults(), maxHistory/2)
	assert.Empty(t, (&JobHistory{}).GetLatestResults(3))
}
