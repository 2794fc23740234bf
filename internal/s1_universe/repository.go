package s1_universe

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/trifund/internal/contracts"
)

// Repository handles data persistence for S1
// (data.instruments, data.catalyst_candidates)
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListUniverse implements contracts.UniverseProvider
func (r *Repository) ListUniverse(ctx context.Context) ([]contracts.Instrument, error) {
	query := `
		SELECT instrument_id, name, index_source
		FROM data.instruments
		WHERE active
		ORDER BY instrument_id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query universe: %w", err)
	}
	defer rows.Close()

	return scanInstruments(rows)
}

// ReplaceUniverse upserts instruments as active and deactivates every other
// row, in one transaction. Returns the number deactivated.
func (r *Repository) ReplaceUniverse(ctx context.Context, instruments []contracts.Instrument) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	ids := make([]string, len(instruments))
	for i, inst := range instruments {
		ids[i] = inst.ID
		batch.Queue(`
			INSERT INTO data.instruments (instrument_id, name, index_source, active, updated_at)
			VALUES ($1, $2, $3, TRUE, NOW())
			ON CONFLICT (instrument_id) DO UPDATE SET
				name = EXCLUDED.name,
				index_source = EXCLUDED.index_source,
				active = TRUE,
				updated_at = NOW()
		`, inst.ID, inst.Name, string(inst.Index))
	}

	results := tx.SendBatch(ctx, batch)
	for range instruments {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return 0, fmt.Errorf("upsert instrument: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE data.instruments SET active = FALSE, updated_at = NOW()
		WHERE active AND NOT (instrument_id = ANY($1))
	`, ids)
	if err != nil {
		return 0, fmt.Errorf("deactivate instruments: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit universe: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ListCatalystCandidates implements contracts.CatalystDetector
func (r *Repository) ListCatalystCandidates(ctx context.Context, asOf time.Time) ([]contracts.Instrument, error) {
	query := `
		SELECT instrument_id, name, $2::text
		FROM data.catalyst_candidates
		WHERE as_of = $1
		ORDER BY instrument_id
	`

	rows, err := r.db.Query(ctx, query, asOf, string(contracts.IndexCatalyst))
	if err != nil {
		return nil, fmt.Errorf("query catalyst candidates: %w", err)
	}
	defer rows.Close()

	return scanInstruments(rows)
}

// SaveCatalystCandidates records detector output for asOf
func (r *Repository) SaveCatalystCandidates(ctx context.Context, asOf time.Time, instruments []contracts.Instrument, reason string) error {
	batch := &pgx.Batch{}
	for _, inst := range instruments {
		batch.Queue(`
			INSERT INTO data.catalyst_candidates (as_of, instrument_id, name, reason)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (as_of, instrument_id) DO UPDATE SET
				name = EXCLUDED.name,
				reason = EXCLUDED.reason
		`, asOf, inst.ID, inst.Name, reason)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range instruments {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert catalyst candidate: %w", err)
		}
	}
	return nil
}

func scanInstruments(rows pgx.Rows) ([]contracts.Instrument, error) {
	out := make([]contracts.Instrument, 0)
	for rows.Next() {
		var inst contracts.Instrument
		var index string
		if err := rows.Scan(&inst.ID, &inst.Name, &index); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		inst.Index = contracts.IndexSource(index)
		out = append(out, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instruments: %w", err)
	}
	return out, nil
}
