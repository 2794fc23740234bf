package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/trifund/internal/contracts"
)

// Repository persists published portfolio sets
// ⭐ SSOT: PortfolioSet 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new portfolio repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SavePortfolio stores the full set as JSONB plus one row per candidate
func (r *Repository) SavePortfolio(ctx context.Context, set *contracts.PortfolioSet) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal portfolio set: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO selection.portfolio_runs (run_id, as_of, config_hash, narrative_status, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET
			narrative_status = EXCLUDED.narrative_status,
			payload = EXCLUDED.payload
	`, set.RunID, set.AsOf, set.ConfigHash, string(set.NarrativeStatus), payload)
	if err != nil {
		return fmt.Errorf("failed to save portfolio run: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM selection.candidates WHERE run_id = $1", set.RunID); err != nil {
		return fmt.Errorf("failed to delete old candidates: %w", err)
	}

	batch := &pgx.Batch{}
	for _, res := range set.Results() {
		for _, c := range res.Candidates {
			var narrative *float64
			if score, ok := c.NarrativeScore(); ok {
				narrative = &score
			}
			batch.Queue(`
				INSERT INTO selection.candidates (
					run_id, strategy, rank, instrument_id, composite_score,
					gate_level, target_price, allocation_pct, narrative_score
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, set.RunID, string(c.Strategy), c.Rank, c.Instrument.ID, c.CompositeScore,
				c.GateLevel, c.TargetPrice, c.AllocationPct, narrative)
		}
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert candidates: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// LatestPortfolio returns the most recently created set
func (r *Repository) LatestPortfolio(ctx context.Context) (*contracts.PortfolioSet, error) {
	return r.scanOne(ctx, `
		SELECT payload FROM selection.portfolio_runs
		ORDER BY created_at DESC
		LIMIT 1
	`)
}

// GetPortfolio returns the set of one run
func (r *Repository) GetPortfolio(ctx context.Context, runID string) (*contracts.PortfolioSet, error) {
	return r.scanOne(ctx, `SELECT payload FROM selection.portfolio_runs WHERE run_id = $1`, runID)
}

// RunSummary is one row of the run history
type RunSummary struct {
	RunID           string                    `json:"run_id"`
	ConfigHash      string                    `json:"config_hash"`
	NarrativeStatus contracts.NarrativeStatus `json:"narrative_status"`
	AsOf            string                    `json:"as_of"`
	CreatedAt       string                    `json:"created_at"`
}

// ListRuns returns the newest runs first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT run_id::text, config_hash, narrative_status,
		       to_char(as_of, 'YYYY-MM-DD'), to_char(created_at, 'YYYY-MM-DD"T"HH24:MI:SSOF')
		FROM selection.portfolio_runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var s RunSummary
		var status string
		if err := rows.Scan(&s.RunID, &s.ConfigHash, &status, &s.AsOf, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.NarrativeStatus = contracts.NarrativeStatus(status)
		runs = append(runs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return runs, nil
}

func (r *Repository) scanOne(ctx context.Context, query string, args ...interface{}) (*contracts.PortfolioSet, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, query, args...).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("portfolio run: %w", contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio run: %w", err)
	}

	var set contracts.PortfolioSet
	if err := json.Unmarshal(payload, &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal portfolio run: %w", err)
	}

	return &set, nil
}
