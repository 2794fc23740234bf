package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/pkg/logger"
	"github.com/wonny/trifund/pkg/metrics"
	"github.com/wonny/trifund/pkg/retry"
)

// flakyStore fails each id a configured number of times before answering
type flakyStore struct {
	mu       sync.Mutex
	failures map[string]int // remaining transient failures
	broken   map[string]bool
	missing  map[string]bool
	calls    map[string]int
}

func (s *flakyStore) GetFactors(_ context.Context, id string, asOf time.Time) (*contracts.FactorBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[id]++
	if s.missing[id] {
		return nil, fmt.Errorf("%s: %w", id, contracts.ErrNotFound)
	}
	if s.broken[id] {
		return nil, errors.New("connection reset")
	}
	if s.failures[id] > 0 {
		s.failures[id]--
		return nil, errors.New("timeout")
	}
	return &contracts.FactorBundle{InstrumentID: id, AsOf: asOf, Values: map[contracts.FactorName]float64{contracts.FactorPrice: 1}}, nil
}

func testConfig() Config {
	return Config{
		Workers: 3,
		Retry:   retry.Policy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
}

func TestCollector_FetchAll(t *testing.T) {
	store := &flakyStore{
		failures: map[string]int{"B": 2},
		broken:   map[string]bool{"C": true},
		missing:  map[string]bool{"D": true},
		calls:    make(map[string]int),
	}
	reg := metrics.NewRegistry()
	c := NewCollector(store, testConfig(), reg, logger.NewNop())

	res, err := c.FetchAll(context.Background(), []string{"A", "B", "C", "D", "E"}, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Len(t, res.Bundles, 3)
	assert.Contains(t, res.Bundles, "B", "transient failures are retried")
	assert.Equal(t, []string{"C"}, res.Failed)
	assert.Equal(t, []string{"D"}, res.NotFound)

	assert.Equal(t, 3, store.calls["B"])
	assert.Equal(t, 3, store.calls["C"], "bounded retries")
	assert.Equal(t, 1, store.calls["D"], "not found is not retried")

	assert.Equal(t, 3.0, testutil.ToFloat64(reg.FactorFetches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.FactorFetches.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.FactorFetches.WithLabelValues("error")))
}

func TestCollector_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &flakyStore{calls: make(map[string]int)}
	c := NewCollector(store, testConfig(), nil, logger.NewNop())

	_, err := c.FetchAll(ctx, []string{"A", "B"}, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollector_Empty(t *testing.T) {
	c := NewCollector(&flakyStore{calls: make(map[string]int)}, Config{}, nil, logger.NewNop())

	res, err := c.FetchAll(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, res.Bundles)
}
