package s1_universe

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/pkg/logger"
)

// Source yields raw index constituents (may contain duplicates)
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]contracts.Instrument, error)
}

// Store persists the refreshed universe
type Store interface {
	ReplaceUniverse(ctx context.Context, instruments []contracts.Instrument) (int, error)
}

// Universe is the outcome of one refresh
type Universe struct {
	Date        time.Time
	Source      string
	Instruments []contracts.Instrument
	ByIndex     map[contracts.IndexSource]int
	Duplicates  int
}

// Builder constructs the deduplicated index universe
type Builder struct {
	source Source
	store  Store
	logger *logger.Logger
}

// NewBuilder creates a new Universe Builder; store may be nil (dry run)
func NewBuilder(source Source, store Store, log *logger.Logger) *Builder {
	return &Builder{
		source: source,
		store:  store,
		logger: log.WithField("module", "universe"),
	}
}

// Build fetches the constituents, keeps the first listing of every ID and
// sorts by ID. With a store the active universe is replaced.
// ⭐ SSOT: S1 유니버스 생성
func (b *Builder) Build(ctx context.Context) (*Universe, error) {
	raw, err := b.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch constituents from %s: %w", b.source.Name(), err)
	}

	universe := &Universe{
		Date:        time.Now().UTC(),
		Source:      b.source.Name(),
		Instruments: Dedupe(raw),
		ByIndex:     make(map[contracts.IndexSource]int),
	}
	universe.Duplicates = len(raw) - len(universe.Instruments)

	for _, inst := range universe.Instruments {
		universe.ByIndex[inst.Index]++
	}

	if len(universe.Instruments) == 0 {
		return nil, fmt.Errorf("universe from %s is empty", b.source.Name())
	}

	if b.store != nil {
		n, err := b.store.ReplaceUniverse(ctx, universe.Instruments)
		if err != nil {
			return nil, fmt.Errorf("save universe: %w", err)
		}
		b.logger.WithField("deactivated", n).Debug("Universe replaced")
	}

	b.logger.WithFields(map[string]interface{}{
		"source":     universe.Source,
		"total":      len(universe.Instruments),
		"duplicates": universe.Duplicates,
	}).Info("Universe built")

	return universe, nil
}

// Provider serves ListUniverse straight from a Source (no persistence)
type Provider struct {
	source Source
}

// NewProvider adapts a Source to contracts.UniverseProvider
func NewProvider(source Source) *Provider {
	return &Provider{source: source}
}

// ListUniverse implements contracts.UniverseProvider
func (p *Provider) ListUniverse(ctx context.Context) ([]contracts.Instrument, error) {
	raw, err := p.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Dedupe(raw), nil
}
