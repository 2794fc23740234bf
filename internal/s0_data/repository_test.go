package s0_data

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/pkg/config"
	"github.com/wonny/trifund/pkg/database"
)

func TestRepository_SaveAndGet(t *testing.T) {
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
	require.NoError(t, repo.SaveFactors(ctx, []*contracts.FactorBundle{bundle("ZZTEST1", 10), bundle("ZZTEST2", 20)}))

	got, err := repo.GetFactors(ctx, "ZZTEST1", testDate)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Values[contracts.FactorPrice])

	batch, err := repo.GetFactorsBatch(ctx, []string{"ZZTEST1", "ZZTEST2", "ZZNONE"}, testDate)
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	_, err = repo.GetFactors(ctx, "ZZNONE", testDate)
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}
