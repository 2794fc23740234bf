package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/strategyconfig"
)

// Repository handles audit data persistence
// ⭐ SSOT: Audit 데이터 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveConfigSnapshot stores a config once per hash
func (r *Repository) SaveConfigSnapshot(ctx context.Context, snapshot *strategyconfig.Snapshot) error {
	query := `
		INSERT INTO selection.config_snapshots (
			config_hash, strategy_id, version, config_yaml, created_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (config_hash) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		snapshot.ConfigHash, snapshot.StrategyID, snapshot.Version, snapshot.ConfigYAML, snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save config snapshot: %w", err)
	}

	return nil
}

// GetConfigSnapshot returns the config a run hash refers to
func (r *Repository) GetConfigSnapshot(ctx context.Context, hash string) (*strategyconfig.Snapshot, error) {
	query := `
		SELECT config_hash, strategy_id, version, config_yaml, created_at
		FROM selection.config_snapshots
		WHERE config_hash = $1
	`

	var s strategyconfig.Snapshot
	err := r.pool.QueryRow(ctx, query, hash).Scan(&s.ConfigHash, &s.StrategyID, &s.Version, &s.ConfigYAML, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("config snapshot %s: %w", hash, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config snapshot: %w", err)
	}

	return &s, nil
}

// SaveRunReport upserts the report of one run
func (r *Repository) SaveRunReport(ctx context.Context, report *RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	query := `
		INSERT INTO selection.run_reports (
			run_id, as_of, config_hash, dry_run, success, error, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			success = EXCLUDED.success,
			error = EXCLUDED.error,
			payload = EXCLUDED.payload
	`

	_, err = r.pool.Exec(ctx, query,
		report.RunID, report.AsOf, report.ConfigHash, report.DryRun, report.Success, report.Error, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}

	return nil
}

// GetRunReport returns the report of one run
func (r *Repository) GetRunReport(ctx context.Context, runID string) (*RunReport, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `SELECT payload FROM selection.run_reports WHERE run_id = $1`, runID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run report %s: %w", runID, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}

	var report RunReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("failed to decode run report: %w", err)
	}
	return &report, nil
}
