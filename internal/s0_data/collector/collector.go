package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/pkg/logger"
	"github.com/wonny/trifund/pkg/metrics"
	"github.com/wonny/trifund/pkg/retry"
)

// Collector loads one factor bundle per instrument for a run date
// ⭐ SSOT: 팩터 수집 오케스트레이션은 이 패키지에서만
type Collector struct {
	store   contracts.FactorStore
	config  Config
	metrics *metrics.Registry
	logger  *logger.Logger
}

// Config holds collector configuration
type Config struct {
	Workers int // Number of concurrent workers
	Retry   retry.Policy
}

// DefaultConfig returns the collector defaults
func DefaultConfig() Config {
	return Config{
		Workers: 8,
		Retry: retry.Policy{
			MaxRetries:   2,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
	}
}

// NewCollector creates a new Collector instance
func NewCollector(store contracts.FactorStore, cfg Config, reg *metrics.Registry, log *logger.Logger) *Collector {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Collector{
		store:   store,
		config:  cfg,
		metrics: reg,
		logger:  log.WithField("module", "collector"),
	}
}

// FetchResult is the outcome of one collection
type FetchResult struct {
	Bundles  map[string]*contracts.FactorBundle
	NotFound []string // no snapshot for the run date
	Failed   []string // store errors after retries
}

type fetchItem struct {
	id     string
	bundle *contracts.FactorBundle
	err    error
}

// FetchAll loads bundles for every id with a worker pool. A missing or
// failing instrument is reported and left out of Bundles; the selection then
// drops it as MissingFactorData. Only context cancellation returns an error.
func (c *Collector) FetchAll(ctx context.Context, ids []string, asOf time.Time) (*FetchResult, error) {
	start := time.Now()

	c.logger.WithFields(map[string]interface{}{
		"instrument_count": len(ids),
		"as_of":            asOf.Format("2006-01-02"),
		"workers":          c.config.Workers,
	}).Info("Starting factor collection")

	idCh := make(chan string, len(ids))
	itemCh := make(chan fetchItem, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < c.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx, idCh, itemCh, asOf)
		}()
	}

	for _, id := range ids {
		idCh <- id
	}
	close(idCh)

	go func() {
		wg.Wait()
		close(itemCh)
	}()

	result := &FetchResult{Bundles: make(map[string]*contracts.FactorBundle, len(ids))}
	for item := range itemCh {
		switch {
		case item.err == nil:
			result.Bundles[item.id] = item.bundle
		case errors.Is(item.err, contracts.ErrNotFound):
			result.NotFound = append(result.NotFound, item.id)
		default:
			result.Failed = append(result.Failed, item.id)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("factor collection canceled: %w", err)
	}

	sort.Strings(result.NotFound)
	sort.Strings(result.Failed)

	c.logger.WithFields(map[string]interface{}{
		"loaded":      len(result.Bundles),
		"not_found":   len(result.NotFound),
		"failed":      len(result.Failed),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Factor collection completed")

	return result, nil
}

func (c *Collector) worker(ctx context.Context, idCh <-chan string, itemCh chan<- fetchItem, asOf time.Time) {
	for id := range idCh {
		if ctx.Err() != nil {
			itemCh <- fetchItem{id: id, err: ctx.Err()}
			continue
		}

		var bundle *contracts.FactorBundle
		err := retry.Do(ctx, c.config.Retry, func(ctx context.Context) error {
			b, err := c.store.GetFactors(ctx, id, asOf)
			if errors.Is(err, contracts.ErrNotFound) {
				return retry.Permanent(err)
			}
			if err != nil {
				return err
			}
			bundle = b
			return nil
		}, nil)

		switch {
		case err == nil:
			c.metrics.RecordFactorFetch("ok")
		case errors.Is(err, contracts.ErrNotFound):
			c.metrics.RecordFactorFetch("not_found")
			c.logger.WithField("instrument_id", id).Debug("No factor snapshot")
		default:
			c.metrics.RecordFactorFetch("error")
			c.logger.WithError(err).WithField("instrument_id", id).Warn("Factor fetch failed")
		}

		itemCh <- fetchItem{id: id, bundle: bundle, err: err}
	}
}
