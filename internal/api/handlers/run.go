package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wonny/trifund/internal/brain"
	"github.com/wonny/trifund/pkg/logger"
)

// Runner executes one selection run
type Runner interface {
	Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error)
}

// RunRequest is the body of POST /api/v1/runs
type RunRequest struct {
	AsOf   string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	DryRun bool   `json:"dry_run"`
}

// RunStatus describes the in-flight or last finished run
type RunStatus struct {
	RunID           string    `json:"run_id"`
	AsOf            string    `json:"as_of"`
	DryRun          bool      `json:"dry_run"`
	Running         bool      `json:"running"`
	Success         bool      `json:"success"`
	Error           string    `json:"error,omitempty"`
	CompletedStages []string  `json:"completed_stages,omitempty"`
	NarrativeStatus string    `json:"narrative_status,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	Duration        string    `json:"duration,omitempty"`
}

// RunHandler triggers runs in the background, one at a time
type RunHandler struct {
	runner   Runner
	baseCtx  context.Context
	timeout  time.Duration
	validate *validator.Validate
	logger   *logger.Logger

	mu      sync.Mutex
	current *RunStatus
	done    chan struct{}
}

// NewRunHandler creates a handler; runs inherit baseCtx so shutdown cancels them
func NewRunHandler(ctx context.Context, runner Runner, timeout time.Duration, log *logger.Logger) *RunHandler {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &RunHandler{
		runner:   runner,
		baseCtx:  ctx,
		timeout:  timeout,
		validate: validator.New(),
		logger:   log,
	}
}

// Trigger starts a run and returns immediately
// POST /api/v1/runs
func (h *RunHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
		return
	}

	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	if req.AsOf != "" {
		asOf, _ = time.Parse("2006-01-02", req.AsOf)
	}

	h.mu.Lock()
	if h.current != nil && h.current.Running {
		status := *h.current
		h.mu.Unlock()
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error":  "a run is already in progress",
			"run_id": status.RunID,
		})
		return
	}

	status := &RunStatus{
		RunID:     uuid.NewString(),
		AsOf:      asOf.Format("2006-01-02"),
		DryRun:    req.DryRun,
		Running:   true,
		StartedAt: time.Now(),
	}
	h.current = status
	h.done = make(chan struct{})
	done := h.done
	accepted := *status
	h.mu.Unlock()

	go h.execute(brain.RunConfig{AsOf: asOf, RunID: status.RunID, DryRun: req.DryRun}, done)

	respondJSON(w, http.StatusAccepted, accepted)
}

// Current returns the in-flight or last finished run
// GET /api/v1/runs/current
func (h *RunHandler) Current(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current == nil {
		respondError(w, http.StatusNotFound, "no run has been triggered")
		return
	}

	respondJSON(w, http.StatusOK, *h.current)
}

// Wait blocks until the current run finishes or ctx ends
func (h *RunHandler) Wait(ctx context.Context) error {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *RunHandler) execute(cfg brain.RunConfig, done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithTimeout(h.baseCtx, h.timeout)
	defer cancel()

	result, err := h.runner.Run(ctx, cfg)

	h.mu.Lock()
	defer h.mu.Unlock()

	status := h.current
	status.Running = false
	if result != nil {
		status.Success = result.Success
		status.CompletedStages = result.CompletedStages
		status.Duration = result.Duration.String()
		if result.Portfolio != nil {
			status.NarrativeStatus = string(result.Portfolio.NarrativeStatus)
		}
	}
	if err != nil {
		status.Success = false
		status.Error = err.Error()
		h.logger.WithFields(map[string]interface{}{
			"run_id": cfg.RunID,
			"error":  err.Error(),
		}).Error("Triggered run failed")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"run_id":   cfg.RunID,
		"duration": status.Duration,
	}).Info("Triggered run finished")
}
