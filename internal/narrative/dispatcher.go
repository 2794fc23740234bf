package narrative

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/strategyconfig"
	"github.com/wonny/trifund/pkg/logger"
	"github.com/wonny/trifund/pkg/metrics"
)

// DispatchConfig bounds the fan-out to the narrative service
type DispatchConfig struct {
	Concurrency int
	RPS         float64 // 0 = unlimited
	Context     strategyconfig.NarrativeContext
}

// Key identifies one narrative result; strategies never share results
type Key struct {
	Strategy     contracts.Strategy
	InstrumentID string
}

// DispatchReport is the fan-in of one dispatch
type DispatchReport struct {
	Status    contracts.NarrativeStatus
	Requested int
	Succeeded int
	Failed    int
	Results   map[Key]*contracts.Narrative
	Duration  time.Duration
}

// Dispatcher sends every finalized candidate to the narrative service
// ⭐ SSOT: 내러티브 fan-out/fan-in은 여기서만
type Dispatcher struct {
	service contracts.NarrativeService
	cfg     DispatchConfig
	limiter *rate.Limiter
	metrics *metrics.Registry
	logger  *logger.Logger
}

// NewDispatcher creates a dispatcher; a nil service makes every dispatch "skipped"
func NewDispatcher(service contracts.NarrativeService, cfg DispatchConfig, reg *metrics.Registry, log *logger.Logger) *Dispatcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Dispatcher{
		service: service,
		cfg:     cfg,
		limiter: limiter,
		metrics: reg,
		logger:  log,
	}
}

func (d *Dispatcher) contextFor(s contracts.Strategy) []contracts.FactorName {
	switch s {
	case contracts.StrategyShort:
		return d.cfg.Context.Short
	case contracts.StrategyMedium:
		return d.cfg.Context.Medium
	}
	return d.cfg.Context.Long
}

// Requests builds one request per candidate, each carrying only its own
// strategy tag and that strategy's factor context
func (d *Dispatcher) Requests(set *contracts.PortfolioSet) []contracts.NarrativeRequest {
	var reqs []contracts.NarrativeRequest
	for _, r := range set.Results() {
		names := d.contextFor(r.Strategy)
		for _, c := range r.Candidates {
			reqs = append(reqs, contracts.NarrativeRequest{
				InstrumentID: c.Instrument.ID,
				Name:         c.Instrument.Name,
				Strategy:     r.Strategy,
				AsOf:         set.AsOf,
				Factors:      c.Factors.Subset(names...),
			})
		}
	}
	return reqs
}

// Dispatch calls the service for every candidate with bounded concurrency.
// Individual failures are counted, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, set *contracts.PortfolioSet) DispatchReport {
	start := time.Now()
	report := DispatchReport{Results: make(map[Key]*contracts.Narrative)}

	if d.service == nil {
		report.Status = contracts.NarrativeSkipped
		d.metrics.RecordNarrativeStatus(string(report.Status))
		return report
	}

	reqs := d.Requests(set)
	report.Requested = len(reqs)

	jobs := make(chan contracts.NarrativeRequest)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < d.cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				n, err := d.call(ctx, req)

				mu.Lock()
				if err != nil {
					report.Failed++
				} else {
					report.Succeeded++
					report.Results[Key{req.Strategy, req.InstrumentID}] = n
				}
				mu.Unlock()
			}
		}()
	}

send:
	for _, req := range reqs {
		select {
		case jobs <- req:
		case <-ctx.Done():
			break send
		}
	}
	close(jobs)
	wg.Wait()

	// 컨텍스트 취소로 보내지 못한 요청은 실패로 집계
	report.Failed = report.Requested - report.Succeeded
	report.Duration = time.Since(start)
	report.Status = statusOf(report)
	d.metrics.RecordNarrativeStatus(string(report.Status))

	d.logger.WithFields(map[string]interface{}{
		"requested":   report.Requested,
		"succeeded":   report.Succeeded,
		"failed":      report.Failed,
		"status":      report.Status,
		"duration_ms": report.Duration.Milliseconds(),
	}).Info("Narrative dispatch completed")

	return report
}

func (d *Dispatcher) call(ctx context.Context, req contracts.NarrativeRequest) (*contracts.Narrative, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		d.metrics.RecordNarrativeCall(req.Strategy.Label(), "canceled")
		return nil, err
	}

	n, err := d.service.Narrate(ctx, req)
	if err != nil {
		d.metrics.RecordNarrativeCall(req.Strategy.Label(), "error")
		d.logger.WithFields(map[string]interface{}{
			"instrument_id": req.InstrumentID,
			"strategy":      req.Strategy,
			"error":         err.Error(),
		}).Warn("Narrative call failed")
		return nil, err
	}

	d.metrics.RecordNarrativeCall(req.Strategy.Label(), "ok")
	return n, nil
}

func statusOf(r DispatchReport) contracts.NarrativeStatus {
	switch {
	case r.Requested == 0:
		return contracts.NarrativeSkipped
	case r.Succeeded == r.Requested:
		return contracts.NarrativeOK
	case r.Succeeded == 0:
		return contracts.NarrativeUnavailable
	}
	return contracts.NarrativePartial
}
