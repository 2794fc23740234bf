package s0_data

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/pkg/logger"
	"github.com/wonny/trifund/pkg/redis"
)

var testDate = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func bundle(id string, price float64) *contracts.FactorBundle {
	return &contracts.FactorBundle{
		InstrumentID: id,
		AsOf:         testDate,
		Values:       map[contracts.FactorName]float64{contracts.FactorPrice: price},
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	store.Put(bundle("AAPL", 180))

	got, err := store.GetFactors(context.Background(), "AAPL", testDate)
	require.NoError(t, err)
	price, ok := got.Get(contracts.FactorPrice)
	assert.True(t, ok)
	assert.Equal(t, 180.0, price)

	_, err = store.GetFactors(context.Background(), "AAPL", testDate.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	_, err = store.GetFactors(context.Background(), "MSFT", testDate)
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

// countingStore counts reads of an inner store
type countingStore struct {
	inner contracts.FactorStore
	reads int
}

func (c *countingStore) GetFactors(ctx context.Context, id string, asOf time.Time) (*contracts.FactorBundle, error) {
	c.reads++
	return c.inner.GetFactors(ctx, id, asOf)
}

func TestCachedStore_ReadThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.Wrap(db), "trifund")

	mem := NewMemoryStore()
	mem.Put(bundle("SAP.DE", 120))
	inner := &countingStore{inner: mem}
	store := NewCachedStore(inner, cache, logger.NewNop())

	key := "trifund:cache:" + redis.FactorKey("SAP.DE", "2026-03-02")
	payload, err := json.Marshal(bundle("SAP.DE", 120))
	require.NoError(t, err)

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, payload, redis.TTLDaily).SetVal("OK")
	mock.ExpectGet(key).SetVal(string(payload))

	ctx := context.Background()
	first, err := store.GetFactors(ctx, "SAP.DE", testDate)
	require.NoError(t, err)
	second, err := store.GetFactors(ctx, "SAP.DE", testDate)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.reads)
	assert.Equal(t, first.Values, second.Values)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_CacheErrorFallsBack(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.Wrap(db), "trifund")

	mem := NewMemoryStore()
	mem.Put(bundle("AIR.PA", 150))
	store := NewCachedStore(mem, cache, logger.NewNop())

	key := "trifund:cache:" + redis.FactorKey("AIR.PA", "2026-03-02")
	mock.ExpectGet(key).SetErr(errors.New("connection refused"))

	got, err := store.GetFactors(context.Background(), "AIR.PA", testDate)
	require.NoError(t, err)
	assert.Equal(t, "AIR.PA", got.InstrumentID)
}

func TestCachedStore_NotFoundNotCached(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.Wrap(db), "trifund")
	store := NewCachedStore(NewMemoryStore(), cache, logger.NewNop())

	mock.ExpectGet("trifund:cache:" + redis.FactorKey("NOPE", "2026-03-02")).RedisNil()

	_, err := store.GetFactors(context.Background(), "NOPE", testDate)
	assert.ErrorIs(t, err, contracts.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_SaveEvictsCachedBundles(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.Wrap(db), "trifund")

	mem := NewMemoryStore()
	mem.Put(bundle("SAP.DE", 120))
	store := NewCachedStore(mem, cache, logger.NewNop())

	key := "trifund:cache:" + redis.FactorKey("SAP.DE", "2026-03-02")
	stale, err := json.Marshal(bundle("SAP.DE", 120))
	require.NoError(t, err)

	ctx := context.Background()
	mock.ExpectGet(key).SetVal(string(stale))
	got, err := store.GetFactors(ctx, "SAP.DE", testDate)
	require.NoError(t, err)
	assert.Equal(t, 120.0, got.Values[contracts.FactorPrice])

	mock.ExpectDel(key).SetVal(1)
	require.NoError(t, store.SaveFactors(ctx, []*contracts.FactorBundle{bundle("SAP.DE", 130)}))

	fresh, err := json.Marshal(bundle("SAP.DE", 130))
	require.NoError(t, err)
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, fresh, redis.TTLDaily).SetVal("OK")

	got, err = store.GetFactors(ctx, "SAP.DE", testDate)
	require.NoError(t, err)
	assert.Equal(t, 130.0, got.Values[contracts.FactorPrice], "refreshed snapshot, not the stale cache entry")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_SaveEvictionFailureIsNotFatal(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mem := NewMemoryStore()
	store := NewCachedStore(mem, redis.NewCache(redis.Wrap(db), "trifund"), logger.NewNop())

	mock.ExpectDel("trifund:cache:" + redis.FactorKey("AIR.PA", "2026-03-02")).SetErr(errors.New("connection refused"))

	require.NoError(t, store.SaveFactors(context.Background(), []*contracts.FactorBundle{bundle("AIR.PA", 150)}))
	got, err := mem.GetFactors(context.Background(), "AIR.PA", testDate)
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.Values[contracts.FactorPrice])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_SaveReadOnlyStore(t *testing.T) {
	db, _ := redismock.NewClientMock()
	store := NewCachedStore(&countingStore{inner: NewMemoryStore()}, redis.NewCache(redis.Wrap(db), "trifund"), logger.NewNop())

	err := store.SaveFactors(context.Background(), []*contracts.FactorBundle{bundle("X", 1)})
	assert.ErrorContains(t, err, "read-only")
}

func TestMemoryStore_Bundles(t *testing.T) {
	mem := NewMemoryStore()
	later := bundle("AAPL", 1)
	later.AsOf = testDate.AddDate(0, 0, 1)
	mem.Put(later)
	mem.Put(bundle("MSFT", 2))
	mem.Put(bundle("AAPL", 3))

	got := mem.Bundles()
	require.Len(t, got, 3)
	assert.Equal(t, "AAPL", got[0].InstrumentID)
	assert.Equal(t, testDate, got[0].AsOf)
	assert.Equal(t, "MSFT", got[1].InstrumentID)
	assert.Equal(t, later, got[2])
}

func TestLoadSnapshotFile(t *testing.T) {
	content := `
as_of: 2026-03-02
instruments:
  - id: AAPL
    name: Apple Inc.
    index: SP500
    factors:
      price: 182.5
      eps: 6.4
  - id: SAP.DE
    name: SAP SE
    index: DAX
    factors:
      price: 120
  - id: GME
    name: GameStop
    catalyst: true
    factors:
      price: 25
      relative_volume: 4.2
`
	path := filepath.Join(t.TempDir(), "factors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	data, err := LoadSnapshotFile(path)
	require.NoError(t, err)

	assert.Equal(t, testDate, data.AsOf)
	require.Len(t, data.Universe, 2)
	assert.Equal(t, contracts.IndexDAX, data.Universe[1].Index)
	require.Len(t, data.Catalysts, 1)
	assert.Equal(t, contracts.IndexCatalyst, data.Catalysts[0].Index)

	b, err := data.Store.GetFactors(context.Background(), "GME", testDate)
	require.NoError(t, err)
	rv, ok := b.Get(contracts.FactorRelativeVolume)
	assert.True(t, ok)
	assert.Equal(t, 4.2, rv)

	universe, err := data.ListUniverse(context.Background())
	require.NoError(t, err)
	assert.Len(t, universe, 2)

	catalysts, err := data.ListCatalystCandidates(context.Background(), testDate)
	require.NoError(t, err)
	assert.Len(t, catalysts, 1)

	catalysts, err = data.ListCatalystCandidates(context.Background(), testDate.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, catalysts)
}

func TestLoadSnapshotFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("as_of: yesterday\ninstruments: []\n"), 0o600))
	_, err := LoadSnapshotFile(bad)
	assert.Error(t, err)

	noID := filepath.Join(dir, "noid.yaml")
	require.NoError(t, os.WriteFile(noID, []byte("as_of: 2026-03-02\ninstruments:\n  - name: X\n"), 0o600))
	_, err = LoadSnapshotFile(noID)
	assert.Error(t, err)

	_, err = LoadSnapshotFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
