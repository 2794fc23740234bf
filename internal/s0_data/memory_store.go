package s0_data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/trifund/internal/contracts"
)

// MemoryStore is an in-process FactorStore (offline runs, tests)
type MemoryStore struct {
	mu      sync.RWMutex
	bundles map[string]map[string]*contracts.FactorBundle // date → id → bundle
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bundles: make(map[string]map[string]*contracts.FactorBundle)}
}

// Put stores b under its own AsOf date, replacing any previous bundle
func (m *MemoryStore) Put(b *contracts.FactorBundle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := b.AsOf.Format("2006-01-02")
	if m.bundles[day] == nil {
		m.bundles[day] = make(map[string]*contracts.FactorBundle)
	}
	m.bundles[day][b.InstrumentID] = b
}

// GetFactors implements contracts.FactorStore
func (m *MemoryStore) GetFactors(_ context.Context, instrumentID string, asOf time.Time) (*contracts.FactorBundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bundles[asOf.Format("2006-01-02")][instrumentID]
	if !ok {
		return nil, fmt.Errorf("factor snapshot %s@%s: %w", instrumentID, asOf.Format("2006-01-02"), contracts.ErrNotFound)
	}
	return b, nil
}

// SaveFactors implements FactorWriter
func (m *MemoryStore) SaveFactors(_ context.Context, bundles []*contracts.FactorBundle) error {
	for _, b := range bundles {
		m.Put(b)
	}
	return nil
}

// Bundles returns every stored bundle ordered by date then instrument ID
func (m *MemoryStore) Bundles() []*contracts.FactorBundle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*contracts.FactorBundle, 0)
	for _, byID := range m.bundles {
		for _, b := range byID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AsOf.Equal(out[j].AsOf) {
			return out[i].AsOf.Before(out[j].AsOf)
		}
		return out[i].InstrumentID < out[j].InstrumentID
	})
	return out
}

// Snapshot is the on-disk format of an offline factor file
//
//	as_of: 2026-03-02
//	instruments:
//	  - id: AAPL
//	    name: Apple Inc.
//	    index: SP500
//	    factors: {price: 182.3, eps: 6.4, ...}
type Snapshot struct {
	AsOf        string               `yaml:"as_of" json:"as_of"`
	Instruments []SnapshotInstrument `yaml:"instruments" json:"instruments"`
}

type SnapshotInstrument struct {
	ID       string                           `yaml:"id" json:"id"`
	Name     string                           `yaml:"name" json:"name"`
	Index    contracts.IndexSource            `yaml:"index" json:"index"`
	Catalyst bool                             `yaml:"catalyst" json:"catalyst"`
	Factors  map[contracts.FactorName]float64 `yaml:"factors" json:"factors"`
}

// OfflineData is a loaded snapshot file: store plus universe and catalysts
type OfflineData struct {
	AsOf      time.Time
	Store     *MemoryStore
	Universe  []contracts.Instrument
	Catalysts []contracts.Instrument
}

// LoadSnapshotFile reads a YAML (or JSON, a YAML subset) factor file
func LoadSnapshotFile(path string) (*OfflineData, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot file: %w", err)
	}

	asOf, err := time.Parse("2006-01-02", strings.TrimSpace(snap.AsOf))
	if err != nil {
		return nil, fmt.Errorf("invalid as_of %q: %w", snap.AsOf, err)
	}

	out := &OfflineData{AsOf: asOf, Store: NewMemoryStore()}
	for _, si := range snap.Instruments {
		if si.ID == "" {
			return nil, fmt.Errorf("snapshot instrument without id")
		}

		inst := contracts.Instrument{ID: si.ID, Name: si.Name, Index: si.Index}
		if si.Catalyst {
			inst.Index = contracts.IndexCatalyst
			out.Catalysts = append(out.Catalysts, inst)
		} else {
			out.Universe = append(out.Universe, inst)
		}

		if len(si.Factors) > 0 {
			out.Store.Put(&contracts.FactorBundle{InstrumentID: si.ID, AsOf: asOf, Values: si.Factors})
		}
	}

	return out, nil
}

// ListUniverse implements contracts.UniverseProvider over the file's instruments
func (d *OfflineData) ListUniverse(context.Context) ([]contracts.Instrument, error) {
	return d.Universe, nil
}

// ListCatalystCandidates implements contracts.CatalystDetector; only the
// file's own date has catalysts
func (d *OfflineData) ListCatalystCandidates(_ context.Context, asOf time.Time) ([]contracts.Instrument, error) {
	if !asOf.Equal(d.AsOf) {
		return nil, nil
	}
	return d.Catalysts, nil
}
