package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trifund/internal/audit"
	"github.com/wonny/trifund/internal/brain"
	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/portfolio"
	"github.com/wonny/trifund/internal/strategyconfig"
	"github.com/wonny/trifund/pkg/logger"
)

const runID = "4f1c2a9e-8b7d-4c3e-9a51-2d6f0e7b8c10"

type fakeStore struct {
	sets map[string]*contracts.PortfolioSet
	err  error
}

func (f *fakeStore) SavePortfolio(context.Context, *contracts.PortfolioSet) error { return nil }

func (f *fakeStore) LatestPortfolio(context.Context) (*contracts.PortfolioSet, error) {
	if f.err != nil {
		return nil, f.err
	}
	if set, ok := f.sets["latest"]; ok {
		return set, nil
	}
	return nil, contracts.ErrNotFound
}

func (f *fakeStore) GetPortfolio(_ context.Context, id string) (*contracts.PortfolioSet, error) {
	if f.err != nil {
		return nil, f.err
	}
	if set, ok := f.sets[id]; ok {
		return set, nil
	}
	return nil, contracts.ErrNotFound
}

type fakeRuns struct {
	limit int
}

func (f *fakeRuns) ListRuns(_ context.Context, limit int) ([]portfolio.RunSummary, error) {
	f.limit = limit
	return []portfolio.RunSummary{{RunID: runID, AsOf: "2026-03-02"}}, nil
}

func sampleSet() *contracts.PortfolioSet {
	return &contracts.PortfolioSet{
		RunID: runID,
		AsOf:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Short: &contracts.SelectionResult{
			Strategy:   contracts.StrategyShort,
			Candidates: []contracts.Candidate{{Instrument: contracts.Instrument{ID: "NVDA"}, Rank: 1}},
		},
		NarrativeStatus: contracts.NarrativeOK,
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestPortfolioHandler_GetLatest(t *testing.T) {
	h := NewPortfolioHandler(&fakeStore{sets: map[string]*contracts.PortfolioSet{"latest": sampleSet()}}, nil, logger.NewNop())

	rec := httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/latest", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, runID, decode(t, rec)["run_id"])
}

func TestPortfolioHandler_GetLatestEmpty(t *testing.T) {
	h := NewPortfolioHandler(&fakeStore{}, nil, logger.NewNop())

	rec := httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/latest", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPortfolioHandler_StoreFailure(t *testing.T) {
	h := NewPortfolioHandler(&fakeStore{err: errors.New("connection reset")}, nil, logger.NewNop())

	rec := httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/latest", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestPortfolioHandler_GetByRunID(t *testing.T) {
	h := NewPortfolioHandler(&fakeStore{sets: map[string]*contracts.PortfolioSet{runID: sampleSet()}}, nil, logger.NewNop())

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{"found", runID, http.StatusOK},
		{"unknown", "0b6a4a3e-0000-4000-8000-000000000000", http.StatusNotFound},
		{"malformed", "not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/"+tt.id, nil), map[string]string{"runID": tt.id})
			rec := httptest.NewRecorder()
			h.GetByRunID(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestPortfolioHandler_GetLatestStrategy(t *testing.T) {
	h := NewPortfolioHandler(&fakeStore{sets: map[string]*contracts.PortfolioSet{"latest": sampleSet()}}, nil, logger.NewNop())

	tests := []struct {
		strategy string
		status   int
	}{
		{"short", http.StatusOK},
		{"medium", http.StatusNotFound},
		{"weekly", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"strategy": tt.strategy})
			rec := httptest.NewRecorder()
			h.GetLatestStrategy(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestPortfolioHandler_ListRuns(t *testing.T) {
	runs := &fakeRuns{}
	h := NewPortfolioHandler(&fakeStore{}, runs, logger.NewNop())

	rec := httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=5000", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxRunLimit, runs.limit)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	NewPortfolioHandler(&fakeStore{}, nil, logger.NewNop()).ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

type blockingRunner struct {
	mu      sync.Mutex
	configs []brain.RunConfig
	release chan struct{}
	err     error
}

func (b *blockingRunner) Run(ctx context.Context, cfg brain.RunConfig) (*brain.RunResult, error) {
	b.mu.Lock()
	b.configs = append(b.configs, cfg)
	b.mu.Unlock()

	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if b.err != nil {
		return &brain.RunResult{RunID: cfg.RunID, Error: b.err}, b.err
	}
	return &brain.RunResult{
		RunID:           cfg.RunID,
		Success:         true,
		CompletedStages: []string{"S1:Universe", "S0:Factors"},
		Portfolio:       &contracts.PortfolioSet{RunID: cfg.RunID, NarrativeStatus: contracts.NarrativeSkipped},
	}, nil
}

func TestRunHandler_TriggerAndConflict(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	h := NewRunHandler(context.Background(), runner, time.Minute, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"as_of":"2026-03-02","dry_run":true}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	first := decode(t, rec)
	assert.Equal(t, "2026-03-02", first["as_of"])
	assert.Equal(t, true, first["running"])

	rec = httptest.NewRecorder()
	h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, first["run_id"], decode(t, rec)["run_id"])

	close(runner.release)
	require.NoError(t, h.Wait(context.Background()))

	rec = httptest.NewRecorder()
	h.Current(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/current", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode(t, rec)
	assert.Equal(t, false, status["running"])
	assert.Equal(t, true, status["success"])
	assert.Equal(t, "skipped", status["narrative_status"])

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.configs, 1)
	assert.True(t, runner.configs[0].DryRun)
	assert.Equal(t, first["run_id"], runner.configs[0].RunID)
	assert.Equal(t, "2026-03-02", runner.configs[0].AsOf.Format("2006-01-02"))
}

func TestRunHandler_RecordsFailure(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), err: errors.New("universe: feed down")}
	close(runner.release)
	h := NewRunHandler(context.Background(), runner, time.Minute, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, h.Wait(context.Background()))

	rec = httptest.NewRecorder()
	h.Current(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/current", nil))
	status := decode(t, rec)
	assert.Equal(t, false, status["success"])
	assert.Equal(t, "universe: feed down", status["error"])

	// a finished run frees the slot
	rec = httptest.NewRecorder()
	h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, h.Wait(context.Background()))
}

func TestRunHandler_RejectsBadInput(t *testing.T) {
	h := NewRunHandler(context.Background(), &blockingRunner{}, time.Minute, logger.NewNop())

	for _, body := range []string{`{"as_of":"03/02/2026"}`, `{not json`} {
		rec := httptest.NewRecorder()
		h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := httptest.NewRecorder()
	h.Current(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/current", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfigHandler_Get(t *testing.T) {
	rec := httptest.NewRecorder()
	NewConfigHandler(strategyconfig.Default(), "abc123").Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "abc123", body["config_hash"])
	assert.Contains(t, body, "config")
}

type fakeAudit struct{}

func (fakeAudit) GetConfigSnapshot(_ context.Context, hash string) (*strategyconfig.Snapshot, error) {
	if hash == "abc123" {
		return &strategyconfig.Snapshot{ConfigHash: hash, StrategyID: "trifund"}, nil
	}
	return nil, contracts.ErrNotFound
}

func (fakeAudit) GetRunReport(_ context.Context, id string) (*audit.RunReport, error) {
	if id == runID {
		return &audit.RunReport{RunID: id, Success: false, Error: "S1:Universe failed"}, nil
	}
	return nil, errors.New("relation does not exist")
}

func TestAuditHandler(t *testing.T) {
	h := NewAuditHandler(fakeAudit{}, logger.NewNop())

	serve := func(fn http.HandlerFunc, vars map[string]string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		fn(rec, mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), vars))
		return rec
	}

	rec := serve(h.GetConfigSnapshot, map[string]string{"hash": "abc123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trifund", decode(t, rec)["strategy_id"])

	assert.Equal(t, http.StatusNotFound, serve(h.GetConfigSnapshot, map[string]string{"hash": "zzz"}).Code)

	rec = serve(h.GetRunReport, map[string]string{"runID": runID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "S1:Universe failed", decode(t, rec)["error"])

	assert.Equal(t, http.StatusBadRequest, serve(h.GetRunReport, map[string]string{"runID": "x"}).Code)
	assert.Equal(t, http.StatusInternalServerError,
		serve(h.GetRunReport, map[string]string{"runID": "0b6a4a3e-0000-4000-8000-000000000000"}).Code)
}
