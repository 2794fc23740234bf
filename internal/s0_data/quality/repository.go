package quality

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles data quality snapshot persistence
// ⭐ SSOT: S0 품질 스냅샷 저장
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new quality repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveSnapshot upserts the coverage report of one run date
func (r *Repository) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	coverage, err := json.Marshal(snapshot.Coverage)
	if err != nil {
		return fmt.Errorf("marshal coverage: %w", err)
	}
	eligible, err := json.Marshal(snapshot.Eligible)
	if err != nil {
		return fmt.Errorf("marshal eligible: %w", err)
	}

	query := `
		INSERT INTO data.quality_snapshots (
			snapshot_date, total_stocks, eligible, coverage, quality_score, passed
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (snapshot_date) DO UPDATE SET
			total_stocks = EXCLUDED.total_stocks,
			eligible = EXCLUDED.eligible,
			coverage = EXCLUDED.coverage,
			quality_score = EXCLUDED.quality_score,
			passed = EXCLUDED.passed,
			created_at = NOW()
	`

	_, err = r.pool.Exec(ctx, query,
		snapshot.Date,
		snapshot.TotalStocks,
		eligible,
		coverage,
		snapshot.QualityScore,
		snapshot.Passed,
	)
	if err != nil {
		return fmt.Errorf("save quality snapshot: %w", err)
	}

	return nil
}
