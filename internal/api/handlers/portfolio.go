package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/portfolio"
	"github.com/wonny/trifund/pkg/logger"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// RunLister lists past runs, newest first
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]portfolio.RunSummary, error)
}

// PortfolioHandler serves published portfolio sets (S5)
// ⭐ SSOT: 포트폴리오 조회 API는 여기서만
type PortfolioHandler struct {
	store  contracts.PortfolioStore
	runs   RunLister
	logger *logger.Logger
}

// NewPortfolioHandler creates a handler; runs may be nil
func NewPortfolioHandler(store contracts.PortfolioStore, runs RunLister, log *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		store:  store,
		runs:   runs,
		logger: log,
	}
}

// GetLatest returns the most recently published set
// GET /api/v1/portfolio/latest
func (h *PortfolioHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	set, err := h.store.LatestPortfolio(r.Context())
	if err != nil {
		h.respondStoreError(w, err, "latest")
		return
	}

	respondJSON(w, http.StatusOK, set)
}

// GetLatestStrategy returns one strategy's selection from the latest set
// GET /api/v1/portfolio/latest/{strategy}
func (h *PortfolioHandler) GetLatestStrategy(w http.ResponseWriter, r *http.Request) {
	strategy, err := contracts.ParseStrategy(mux.Vars(r)["strategy"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	set, err := h.store.LatestPortfolio(r.Context())
	if err != nil {
		h.respondStoreError(w, err, "latest")
		return
	}

	result := set.Result(strategy)
	if result == nil {
		respondError(w, http.StatusNotFound, "strategy not present in latest run")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetByRunID returns the set published by one run
// GET /api/v1/portfolio/{runID}
func (h *PortfolioHandler) GetByRunID(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runID"]
	if _, err := uuid.Parse(runID); err != nil {
		respondError(w, http.StatusBadRequest, "run id must be a UUID")
		return
	}

	set, err := h.store.GetPortfolio(r.Context(), runID)
	if err != nil {
		h.respondStoreError(w, err, runID)
		return
	}

	respondJSON(w, http.StatusOK, set)
}

// ListRuns returns run summaries, newest first
// GET /api/v1/runs?limit=20
func (h *PortfolioHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusNotImplemented, "run history is not available")
		return
	}

	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

func (h *PortfolioHandler) respondStoreError(w http.ResponseWriter, err error, ref string) {
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "portfolio not found")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"ref":   ref,
		"error": err.Error(),
	}).Error("Failed to load portfolio")
	respondError(w, http.StatusInternalServerError, "Failed to load portfolio")
}
