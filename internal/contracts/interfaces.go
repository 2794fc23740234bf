package contracts

import (
	"context"
	"time"
)

// FactorStore supplies one immutable bundle per instrument per run (S0)
// ⭐ SSOT: 팩터 스냅샷 조회 인터페이스
type FactorStore interface {
	// GetFactors returns ErrNotFound (wrapped) when no bundle exists
	GetFactors(ctx context.Context, instrumentID string, asOf time.Time) (*FactorBundle, error)
}

// UniverseProvider lists the merged, de-duplicated index universe (S1)
type UniverseProvider interface {
	ListUniverse(ctx context.Context) ([]Instrument, error)
}

// CatalystDetector lists instruments flagged for a catalyst on asOf (S1)
type CatalystDetector interface {
	ListCatalystCandidates(ctx context.Context, asOf time.Time) ([]Instrument, error)
}

// NarrativeService enriches one instrument with an AI narrative
// ⭐ SSOT: 외부 AI 내러티브 인터페이스
type NarrativeService interface {
	Narrate(ctx context.Context, req NarrativeRequest) (*Narrative, error)
}

// PortfolioStore persists published portfolio sets
type PortfolioStore interface {
	SavePortfolio(ctx context.Context, set *PortfolioSet) error
	LatestPortfolio(ctx context.Context) (*PortfolioSet, error)
	GetPortfolio(ctx context.Context, runID string) (*PortfolioSet, error)
}

// Publisher pushes a freshly published set to live subscribers
type Publisher interface {
	Publish(set *PortfolioSet)
}
