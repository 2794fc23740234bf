package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/pkg/logger"
	"github.com/wonny/trifund/pkg/redis"
)

// Cache is the subset of pkg/redis.Cache used for factor bundles
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// FactorWriter is a FactorStore that also accepts snapshot imports
type FactorWriter interface {
	SaveFactors(ctx context.Context, bundles []*contracts.FactorBundle) error
}

// CachedStore puts a read-through cache in front of a FactorStore.
// Bundles are immutable per run date, so entries live for a day.
type CachedStore struct {
	store  contracts.FactorStore
	cache  Cache
	logger *logger.Logger
}

// NewCachedStore wraps store with cache
func NewCachedStore(store contracts.FactorStore, cache Cache, log *logger.Logger) *CachedStore {
	return &CachedStore{store: store, cache: cache, logger: log}
}

// GetFactors implements contracts.FactorStore. Cache errors degrade to a
// store read; not-found results are never cached.
func (s *CachedStore) GetFactors(ctx context.Context, instrumentID string, asOf time.Time) (*contracts.FactorBundle, error) {
	key := redis.FactorKey(instrumentID, asOf.Format("2006-01-02"))

	var cached contracts.FactorBundle
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Debug("Factor cache read failed")
	}
	if hit {
		return &cached, nil
	}

	b, err := s.store.GetFactors(ctx, instrumentID, asOf)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, b, redis.TTLDaily); err != nil {
		s.logger.WithError(err).WithField("key", key).Debug("Factor cache write failed")
	}

	return b, nil
}

// SaveFactors writes bundles through to the underlying store and evicts their
// cached copies so the next read sees the refreshed snapshot.
func (s *CachedStore) SaveFactors(ctx context.Context, bundles []*contracts.FactorBundle) error {
	w, ok := s.store.(FactorWriter)
	if !ok {
		return fmt.Errorf("factor store %T is read-only", s.store)
	}

	if err := w.SaveFactors(ctx, bundles); err != nil {
		return err
	}

	evicted := 0
	for _, b := range bundles {
		key := redis.FactorKey(b.InstrumentID, b.AsOf.Format("2006-01-02"))
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Factor cache eviction failed")
			continue
		}
		evicted++
	}

	s.logger.WithFields(map[string]interface{}{
		"saved":   len(bundles),
		"evicted": evicted,
	}).Info("Factor snapshots saved")

	return nil
}
