package narrative

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/strategyconfig"
)

// recordingService answers from a score table and remembers every request
type recordingService struct {
	mu       sync.Mutex
	requests []contracts.NarrativeRequest
	scores   map[string]float64 // instrument id → score; absent = failure
	delay    time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *recordingService) Narrate(ctx context.Context, req contracts.NarrativeRequest) (*contracts.Narrative, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxInFlight.Load()
		if n <= m || s.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	score, ok := s.scores[req.InstrumentID]
	if !ok {
		return nil, errors.New("model refused")
	}
	return &contracts.Narrative{
		Catalysts: []string{req.Strategy.Label() + " catalyst"},
		Threats:   []string{},
		AIImpact:  contracts.AIImpactNeutral,
		Score:     score,
	}, nil
}

func candidate(id string, s contracts.Strategy, rank int, composite float64, values map[contracts.FactorName]float64) contracts.Candidate {
	return contracts.Candidate{
		Instrument:     contracts.Instrument{ID: id, Name: id + " Inc"},
		Strategy:       s,
		Rank:           rank,
		CompositeScore: composite,
		Factors:        &contracts.FactorBundle{InstrumentID: id, Values: values},
	}
}

func sampleSet() *contracts.PortfolioSet {
	all := map[contracts.FactorName]float64{
		contracts.FactorPrice:          100,
		contracts.FactorRelativeVolume: 3.1,
		contracts.FactorShortInterest:  0.22,
		contracts.FactorHurst:          0.61,
		contracts.FactorQuantRisk:      70,
		contracts.FactorPiotroski:      8,
		contracts.FactorDeepValue:      80,
	}

	return &contracts.PortfolioSet{
		AsOf: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Short: &contracts.SelectionResult{
			Strategy: contracts.StrategyShort,
			Candidates: []contracts.Candidate{
				candidate("S1", contracts.StrategyShort, 1, 80, all),
				candidate("S2", contracts.StrategyShort, 2, 80, all),
				candidate("S3", contracts.StrategyShort, 3, 60, all),
			},
		},
		Medium: &contracts.SelectionResult{
			Strategy: contracts.StrategyMedium,
			Candidates: []contracts.Candidate{
				candidate("M1", contracts.StrategyMedium, 1, 75, all),
				candidate("M2", contracts.StrategyMedium, 2, 70, all),
			},
		},
		Long: &contracts.SelectionResult{
			Strategy: contracts.StrategyLong,
			Candidates: []contracts.Candidate{
				candidate("L1", contracts.StrategyLong, 1, 0.4, all),
			},
		},
	}
}

func testConfig(concurrency int) DispatchConfig {
	return DispatchConfig{
		Concurrency: concurrency,
		Context: strategyconfig.NarrativeContext{
			Short:  []contracts.FactorName{contracts.FactorRelativeVolume, contracts.FactorShortInterest},
			Medium: []contracts.FactorName{contracts.FactorHurst, contracts.FactorQuantRisk},
			Long:   []contracts.FactorName{contracts.FactorPiotroski, contracts.FactorDeepValue},
		},
	}
}
