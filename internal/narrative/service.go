package narrative

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/pkg/logger"
	"github.com/wonny/trifund/pkg/redis"
	"github.com/wonny/trifund/pkg/retry"
)

// Cache is the subset of pkg/redis.Cache the service needs
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ServiceConfig bounds every call to the model
type ServiceConfig struct {
	Timeout      time.Duration // per attempt
	MaxRetries   int
	InitialDelay time.Duration

	// Consecutive failures that open the breaker
	TripAfter    uint32
	OpenDuration time.Duration
}

// DefaultServiceConfig returns conservative call limits
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Timeout:      45 * time.Second,
		MaxRetries:   2,
		InitialDelay: 1 * time.Second,
		TripAfter:    5,
		OpenDuration: 60 * time.Second,
	}
}

// Service implements contracts.NarrativeService on top of a Completer with
// per-call timeout, bounded retries, a circuit breaker and an optional cache
// ⭐ SSOT: 외부 AI 호출 정책은 여기서만
type Service struct {
	completer Completer
	cfg       ServiceConfig
	breaker   *gobreaker.CircuitBreaker
	cache     Cache
	limiter   *redis.RateLimiter
	logger    *logger.Logger
}

// NewService creates a narrative service
func NewService(completer Completer, cfg ServiceConfig, log *logger.Logger) *Service {
	s := &Service{
		completer: completer,
		cfg:       cfg,
		logger:    log,
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "narrative",
		MaxRequests: 1,
		Timeout:     cfg.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.TripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Narrative circuit breaker state changed")
		},
	})

	return s
}

// WithCache enables result caching per (run date, strategy, instrument)
func (s *Service) WithCache(c Cache) *Service {
	s.cache = c
	return s
}

// WithRateLimiter shares the Anthropic quota across processes
func (s *Service) WithRateLimiter(l *redis.RateLimiter) *Service {
	s.limiter = l
	return s
}

// Narrate returns the narrative of one instrument for its own strategy.
// Failures are wrapped as ExternalServiceFailure and ErrNarrativeUnavailable.
func (s *Service) Narrate(ctx context.Context, req contracts.NarrativeRequest) (*contracts.Narrative, error) {
	key := redis.NarrativeKey(req.Strategy.Label(), req.InstrumentID, req.AsOf.Format("2006-01-02"))

	if s.cache != nil {
		var cached contracts.Narrative
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.WithError(err).Debug("Narrative cache read failed")
		}
		if hit {
			return &cached, nil
		}
	}

	prompt := buildPrompt(req)
	var result *contracts.Narrative

	policy := retry.Policy{MaxRetries: s.cfg.MaxRetries, InitialDelay: s.cfg.InitialDelay, MaxDelay: 10 * s.cfg.InitialDelay}
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx, redis.NarrativeRateLimit); err != nil {
				return retry.Permanent(err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()

		out, err := s.breaker.Execute(func() (interface{}, error) {
			return s.completer.Complete(callCtx, systemPrompt, prompt)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return retry.Permanent(err)
		}
		if err != nil {
			return err
		}

		n, err := Parse(out.(string))
		if err != nil {
			return retry.Permanent(err)
		}
		result = n
		return nil
	}, func(attempt int, delay time.Duration, err error) {
		s.logger.WithFields(map[string]interface{}{
			"instrument_id": req.InstrumentID,
			"strategy":      req.Strategy,
			"attempt":       attempt,
			"delay_ms":      delay.Milliseconds(),
			"error":         err.Error(),
		}).Debug("Retrying narrative call")
	})
	if err != nil {
		return nil, contracts.NewSelectionError(contracts.KindExternalServiceFailure, req.Strategy, req.InstrumentID,
			fmt.Errorf("%w: %v", contracts.ErrNarrativeUnavailable, err))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, redis.TTLDaily); err != nil {
			s.logger.WithError(err).Debug("Narrative cache write failed")
		}
	}

	return result, nil
}

// Unavailable is a NarrativeService that always fails (narrative disabled)
type Unavailable struct{}

func (Unavailable) Narrate(_ context.Context, req contracts.NarrativeRequest) (*contracts.Narrative, error) {
	return nil, contracts.NewSelectionError(contracts.KindExternalServiceFailure, req.Strategy, req.InstrumentID, contracts.ErrNarrativeUnavailable)
}
