package audit

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trifund/internal/brain"
	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/narrative"
	"github.com/wonny/trifund/internal/s0_data/quality"
	"github.com/wonny/trifund/internal/strategyconfig"
	"github.com/wonny/trifund/pkg/config"
	"github.com/wonny/trifund/pkg/database"
	"github.com/wonny/trifund/pkg/logger"
)

var asOf = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type memStore struct {
	mu        sync.Mutex
	snapshots []*strategyconfig.Snapshot
	reports   []*RunReport
	ctxErr    error
	err       error
}

func (m *memStore) SaveConfigSnapshot(_ context.Context, s *strategyconfig.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, s)
	return m.err
}

func (m *memStore) SaveRunReport(ctx context.Context, r *RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErr = ctx.Err()
	m.reports = append(m.reports, r)
	return m.err
}

type stubRunner struct {
	result *brain.RunResult
	err    error
}

func (s stubRunner) Run(context.Context, brain.RunConfig) (*brain.RunResult, error) {
	return s.result, s.err
}

func snapshot(t *testing.T) *strategyconfig.Snapshot {
	t.Helper()
	snap, err := strategyconfig.NewSnapshot(strategyconfig.Default(), []byte("meta: {}\n"))
	require.NoError(t, err)
	return snap
}

func successfulRun() *brain.RunResult {
	return &brain.RunResult{
		RunID:           "run-1",
		AsOf:            asOf,
		Success:         true,
		CompletedStages: []string{"S1:Universe", "S0:Factors", "S2:Selection", "S3:Narrative", "S4:Portfolio", "S5:Publish"},
		Quality:         &quality.Snapshot{QualityScore: 0.93},
		Narrative:       narrative.DispatchReport{Status: contracts.NarrativePartial},
		Portfolio: &contracts.PortfolioSet{
			NarrativeStatus: contracts.NarrativePartial,
			Short: &contracts.SelectionResult{
				Strategy:   contracts.StrategyShort,
				PoolSize:   12,
				Candidates: []contracts.Candidate{{Instrument: contracts.Instrument{ID: "NVDA"}}},
			},
			Long: &contracts.SelectionResult{
				Strategy:  contracts.StrategyLong,
				PoolSize:  40,
				Excluded:  1,
				GateLevel: 3,
				Dropped:   []contracts.Dropped{{InstrumentID: "X", Kind: contracts.KindMissingFactorData}},
				Flagged:   []contracts.Flagged{{InstrumentID: "Y", Kind: contracts.KindTargetPriceUndefined}},
			},
		},
		Duration: 3 * time.Second,
	}
}

func TestNewRunReport(t *testing.T) {
	report := NewRunReport(successfulRun(), "hash-1", true)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, "hash-1", report.ConfigHash)
	assert.True(t, report.DryRun)
	assert.True(t, report.Success)
	require.NotNil(t, report.QualityScore)
	assert.InDelta(t, 0.93, *report.QualityScore, 1e-9)
	assert.Equal(t, contracts.NarrativePartial, report.NarrativeStatus)

	require.Len(t, report.Strategies, 2)
	assert.Equal(t, StrategySummary{Strategy: contracts.StrategyShort, PoolSize: 12, Selected: 1}, report.Strategies[0])
	assert.Equal(t, StrategySummary{Strategy: contracts.StrategyLong, PoolSize: 40, Excluded: 1, Dropped: 1, Flagged: 1, GateLevel: 3}, report.Strategies[1])
}

func TestNewRunReport_FailedRun(t *testing.T) {
	report := NewRunReport(&brain.RunResult{
		RunID: "run-2",
		AsOf:  asOf,
		Error: errors.New("S1:Universe failed: feed down"),
	}, "hash-1", false)

	assert.False(t, report.Success)
	assert.Equal(t, "S1:Universe failed: feed down", report.Error)
	assert.Nil(t, report.QualityScore)
	assert.Empty(t, report.Strategies)
}

func TestRecorder_RecordsEveryRun(t *testing.T) {
	store := &memStore{}
	snap := snapshot(t)

	rec := NewRecorder(stubRunner{result: successfulRun()}, store, snap, logger.NewNop())
	result, err := rec.Run(context.Background(), brain.RunConfig{AsOf: asOf})
	require.NoError(t, err)
	assert.Equal(t, "run-1", result.RunID)

	failing := NewRecorder(stubRunner{
		result: &brain.RunResult{RunID: "run-2", Error: errors.New("boom")},
		err:    errors.New("boom"),
	}, store, snap, logger.NewNop())
	_, err = failing.Run(context.Background(), brain.RunConfig{AsOf: asOf})
	assert.EqualError(t, err, "boom")

	require.Len(t, store.snapshots, 2)
	require.Len(t, store.reports, 2)
	assert.Equal(t, snap.ConfigHash, store.reports[0].ConfigHash)
	assert.False(t, store.reports[1].Success)
}

func TestRecorder_CanceledRunStillRecorded(t *testing.T) {
	store := &memStore{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := NewRecorder(stubRunner{
		result: &brain.RunResult{RunID: "run-3", Error: context.Canceled},
		err:    context.Canceled,
	}, store, snapshot(t), logger.NewNop())

	_, err := rec.Run(ctx, brain.RunConfig{AsOf: asOf})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, store.reports, 1)
	assert.NoError(t, store.ctxErr)
}

func TestRecorder_StoreFailureDoesNotFailRun(t *testing.T) {
	store := &memStore{err: errors.New("db down")}

	rec := NewRecorder(stubRunner{result: successfulRun()}, store, snapshot(t), logger.NewNop())
	result, err := rec.Run(context.Background(), brain.RunConfig{AsOf: asOf})

	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestRecorder_NilResult(t *testing.T) {
	store := &memStore{}

	rec := NewRecorder(stubRunner{err: errors.New("no result")}, store, snapshot(t), logger.NewNop())
	_, err := rec.Run(context.Background(), brain.RunConfig{})

	assert.Error(t, err)
	assert.Empty(t, store.reports)
}

func TestRepository_Integration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if testing.Short() || url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	db, err := database.New(&config.Config{Database: config.DatabaseConfig{URL: url, MaxConns: 2, MinConns: 1}})
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, db.EnsureSchema(ctx))

	repo := NewRepository(db.Pool)

	snap := snapshot(t)
	require.NoError(t, repo.SaveConfigSnapshot(ctx, snap))
	require.NoError(t, repo.SaveConfigSnapshot(ctx, snap), "idempotent per hash")

	got, err := repo.GetConfigSnapshot(ctx, snap.ConfigHash)
	require.NoError(t, err)
	assert.Equal(t, snap.ConfigYAML, got.ConfigYAML)

	_, err = repo.GetConfigSnapshot(ctx, "missing")
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	result := successfulRun()
	result.RunID = uuid.NewString()
	require.NoError(t, repo.SaveRunReport(ctx, NewRunReport(result, snap.ConfigHash, false)))

	report, err := repo.GetRunReport(ctx, result.RunID)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Len(t, report.Strategies, 2)
}
