package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/trifund/internal/audit"
	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/strategyconfig"
	"github.com/wonny/trifund/pkg/logger"
)

// AuditReader reads audit records (audit.Repository)
type AuditReader interface {
	GetConfigSnapshot(ctx context.Context, hash string) (*strategyconfig.Snapshot, error)
	GetRunReport(ctx context.Context, runID string) (*audit.RunReport, error)
}

// AuditHandler serves config snapshots and run reports
type AuditHandler struct {
	reader AuditReader
	logger *logger.Logger
}

func NewAuditHandler(reader AuditReader, log *logger.Logger) *AuditHandler {
	return &AuditHandler{reader: reader, logger: log}
}

// GetConfigSnapshot returns the exact config behind a config_hash
// GET /api/v1/config/{hash}
func (h *AuditHandler) GetConfigSnapshot(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	snap, err := h.reader.GetConfigSnapshot(r.Context(), hash)
	if err != nil {
		h.respondReadError(w, err, "config snapshot")
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

// GetRunReport returns the audit report of one run, failed runs included
// GET /api/v1/runs/{runID}/report
func (h *AuditHandler) GetRunReport(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runID"]
	if _, err := uuid.Parse(runID); err != nil {
		respondError(w, http.StatusBadRequest, "run id must be a UUID")
		return
	}

	report, err := h.reader.GetRunReport(r.Context(), runID)
	if err != nil {
		h.respondReadError(w, err, "run report")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func (h *AuditHandler) respondReadError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, what+" not found")
		return
	}
	h.logger.WithError(err).Error("Failed to read " + what)
	respondError(w, http.StatusInternalServerError, "Failed to read "+what)
}
