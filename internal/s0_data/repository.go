package s0_data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/trifund/internal/contracts"
)

// Repository handles factor snapshot persistence (data.factor_snapshots)
// ⭐ SSOT: 팩터 스냅샷 DB 접근은 여기서만
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Pool returns the underlying database pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

// GetFactors implements contracts.FactorStore
func (r *Repository) GetFactors(ctx context.Context, instrumentID string, asOf time.Time) (*contracts.FactorBundle, error) {
	query := `
		SELECT factors
		FROM data.factor_snapshots
		WHERE instrument_id = $1 AND as_of = $2
	`

	var raw []byte
	err := r.db.QueryRow(ctx, query, instrumentID, asOf).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("factor snapshot %s@%s: %w", instrumentID, asOf.Format("2006-01-02"), contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query factor snapshot: %w", err)
	}

	return decodeBundle(instrumentID, asOf, raw)
}

// GetFactorsBatch loads every snapshot of asOf for the given instruments in
// one round trip. Instruments without a snapshot are simply absent.
func (r *Repository) GetFactorsBatch(ctx context.Context, instrumentIDs []string, asOf time.Time) (map[string]*contracts.FactorBundle, error) {
	query := `
		SELECT instrument_id, factors
		FROM data.factor_snapshots
		WHERE as_of = $1 AND instrument_id = ANY($2)
	`

	rows, err := r.db.Query(ctx, query, asOf, instrumentIDs)
	if err != nil {
		return nil, fmt.Errorf("query factor snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*contracts.FactorBundle, len(instrumentIDs))
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan factor snapshot: %w", err)
		}
		b, err := decodeBundle(id, asOf, raw)
		if err != nil {
			return nil, err
		}
		out[id] = b
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate factor snapshots: %w", err)
	}

	return out, nil
}

// SaveFactors upserts bundles with a single batch
func (r *Repository) SaveFactors(ctx context.Context, bundles []*contracts.FactorBundle) error {
	if len(bundles) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.factor_snapshots (as_of, instrument_id, factors)
		VALUES ($1, $2, $3)
		ON CONFLICT (as_of, instrument_id) DO UPDATE SET
			factors = EXCLUDED.factors,
			created_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, b := range bundles {
		raw, err := json.Marshal(b.Values)
		if err != nil {
			return fmt.Errorf("marshal factors %s: %w", b.InstrumentID, err)
		}
		batch.Queue(query, b.AsOf, b.InstrumentID, raw)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range bundles {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert factor snapshot: %w", err)
		}
	}

	return nil
}

// CountSnapshots returns how many bundles exist for asOf
func (r *Repository) CountSnapshots(ctx context.Context, asOf time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM data.factor_snapshots WHERE as_of = $1`, asOf).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count factor snapshots: %w", err)
	}
	return count, nil
}

func decodeBundle(instrumentID string, asOf time.Time, raw []byte) (*contracts.FactorBundle, error) {
	values := make(map[contracts.FactorName]float64)
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("unmarshal factors %s: %w", instrumentID, err)
	}

	return &contracts.FactorBundle{
		InstrumentID: instrumentID,
		AsOf:         asOf,
		Values:       values,
	}, nil
}
