package database

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trifund/pkg/config"
)

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{
		"data.instruments",
		"data.factor_snapshots",
		"data.catalyst_candidates",
		"selection.portfolio_runs",
		"selection.candidates",
	} {
		assert.True(t, strings.Contains(schemaSQL, table), "schema should define %s", table)
	}
}

func TestNew_InvalidURL(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{URL: "://not a url"}}

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNewAndHealthCheck(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if testing.Short() || url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	cfg := &config.Config{Database: config.DatabaseConfig{URL: url, MaxConns: 4, MinConns: 1}}
	db, err := New(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, db.EnsureSchema(ctx))

	status, err := db.HealthCheck(ctx)
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Equal(t, int32(4), status.Stats.MaxConns)
}
