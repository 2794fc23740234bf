package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/internal/narrative"
	"github.com/wonny/trifund/internal/portfolio"
	"github.com/wonny/trifund/internal/s0_data/collector"
	"github.com/wonny/trifund/internal/s0_data/quality"
	"github.com/wonny/trifund/internal/selection"
	"github.com/wonny/trifund/internal/strategyconfig"
	"github.com/wonny/trifund/pkg/logger"
	"github.com/wonny/trifund/pkg/metrics"
)

// FactorFetcher loads the bundles of one run (collector.Collector)
type FactorFetcher interface {
	FetchAll(ctx context.Context, ids []string, asOf time.Time) (*collector.FetchResult, error)
}

// QualityStore persists coverage reports (quality.Repository)
type QualityStore interface {
	SaveSnapshot(ctx context.Context, snapshot *quality.Snapshot) error
}

// Deps are the collaborators of an Orchestrator. Catalysts, QualityStore,
// Dispatcher, Store and Publisher are optional.
type Deps struct {
	Config       *strategyconfig.Config
	Universe     contracts.UniverseProvider
	Catalysts    contracts.CatalystDetector
	Fetcher      FactorFetcher
	QualityGate  *quality.QualityGate
	QualityStore QualityStore
	Dispatcher   *narrative.Dispatcher
	Store        contracts.PortfolioStore
	Publisher    contracts.Publisher
	Metrics      *metrics.Registry
}

// Orchestrator coordinates one selection run end to end
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	deps        Deps
	configHash  string
	required    map[contracts.Strategy][]contracts.FactorName
	coordinator *selection.Coordinator
	allocator   *portfolio.Allocator
	logger      *logger.Logger
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	AsOf   time.Time
	RunID  string // empty = new UUID
	DryRun bool   // no persistence, no publish
}

// RunResult holds the results of a complete pipeline run
type RunResult struct {
	RunID           string
	AsOf            time.Time
	Success         bool
	Error           error
	CompletedStages []string
	Quality         *quality.Snapshot
	Factors         *collector.FetchResult
	Portfolio       *contracts.PortfolioSet
	Narrative       narrative.DispatchReport
	Duration        time.Duration
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(deps Deps, log *logger.Logger) (*Orchestrator, error) {
	if deps.Config == nil || deps.Universe == nil || deps.Fetcher == nil {
		return nil, fmt.Errorf("orchestrator requires config, universe and fetcher")
	}

	hash, err := strategyconfig.Hash(deps.Config)
	if err != nil {
		return nil, fmt.Errorf("hash strategy config: %w", err)
	}

	if deps.QualityGate == nil {
		deps.QualityGate = quality.NewQualityGate(quality.Config{MinCoverage: 0.8})
	}

	return &Orchestrator{
		deps:        deps,
		configHash:  hash,
		required:    selection.RequiredFactors(deps.Config),
		coordinator: selection.NewCoordinator(deps.Config, deps.Metrics, log),
		allocator:   portfolio.NewAllocator(deps.Config.Allocation, log),
		logger:      log.WithField("module", "brain"),
	}, nil
}

// ConfigHash returns the hash stamped on every run
func (o *Orchestrator) ConfigHash() string {
	return o.configHash
}

// Run executes universe → factors → selection → narrative → sizing → publish.
// Only infrastructure failures (universe, factors, persistence) and context
// cancellation fail a run; strategy and narrative failures degrade it.
func (o *Orchestrator) Run(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := time.Now()

	if config.RunID == "" {
		config.RunID = uuid.NewString()
	}
	if config.AsOf.IsZero() {
		y, m, d := time.Now().UTC().Date()
		config.AsOf = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	result := &RunResult{
		RunID:           config.RunID,
		AsOf:            config.AsOf,
		CompletedStages: make([]string, 0, 6),
	}

	o.logger.WithFields(map[string]interface{}{
		"run_id":      config.RunID,
		"as_of":       config.AsOf.Format("2006-01-02"),
		"config_hash": o.configHash,
		"dry_run":     config.DryRun,
	}).Info("Starting selection run")

	fail := func(stage string, err error) (*RunResult, error) {
		result.Error = fmt.Errorf("%s failed: %w", stage, err)
		result.Duration = time.Since(startTime)
		o.logger.WithError(err).WithField("stage", stage).Error("Selection run aborted")
		return result, result.Error
	}

	// S1: Universe + catalysts
	universe, catalysts, err := o.stage("universe", func() ([]contracts.Instrument, []contracts.Instrument, error) {
		return o.loadUniverse(ctx, config.AsOf)
	})
	if err != nil {
		return fail("S1:Universe", err)
	}
	result.CompletedStages = append(result.CompletedStages, "S1:Universe")

	// S0: Factor bundles + coverage
	fetchStart := time.Now()
	ids := instrumentIDs(contracts.MergeInstruments(universe, catalysts))
	fetched, err := o.deps.Fetcher.FetchAll(ctx, ids, config.AsOf)
	o.deps.Metrics.ObserveStage("factors", time.Since(fetchStart))
	if err != nil {
		return fail("S0:Factors", err)
	}
	result.Factors = fetched
	result.Quality = o.checkQuality(ctx, config.AsOf, ids, fetched.Bundles, config.DryRun)
	result.CompletedStages = append(result.CompletedStages, "S0:Factors")

	// S2: Selection
	set, err := o.coordinator.Run(ctx, selection.RunInput{
		AsOf:      config.AsOf,
		Universe:  universe,
		Catalysts: catalysts,
		Factors:   fetched.Bundles,
	})
	if err != nil {
		return fail("S2:Selection", err)
	}
	set.RunID = config.RunID
	set.ConfigHash = o.configHash
	result.CompletedStages = append(result.CompletedStages, "S2:Selection")

	// S3: Narrative (never fails the run)
	narrStart := time.Now()
	result.Narrative = o.dispatchNarrative(ctx, set)
	set.NarrativeStatus = result.Narrative.Status
	narrative.Merge(set, result.Narrative)
	o.deps.Metrics.ObserveStage("narrative", time.Since(narrStart))
	if err := ctx.Err(); err != nil {
		return fail("S3:Narrative", err)
	}
	result.CompletedStages = append(result.CompletedStages, "S3:Narrative")

	// S4: Sizing (after narrative: Short-Term allocation reads narrative_score)
	o.allocator.Apply(set)
	narrative.ApplyConviction(set)
	if err := set.Validate(o.deps.Config.Selection.Picks); err != nil {
		return fail("S4:Portfolio", err)
	}
	set.GeneratedAt = time.Now().UTC()
	result.Portfolio = set
	result.CompletedStages = append(result.CompletedStages, "S4:Portfolio")

	// S5: Persist + publish
	if !config.DryRun {
		if o.deps.Store != nil {
			saveStart := time.Now()
			if err := o.deps.Store.SavePortfolio(ctx, set); err != nil {
				return fail("S5:Publish", err)
			}
			o.deps.Metrics.ObserveStage("persist", time.Since(saveStart))
		}
		if o.deps.Publisher != nil {
			o.deps.Publisher.Publish(set)
		}
		result.CompletedStages = append(result.CompletedStages, "S5:Publish")
	} else {
		o.logger.Info("Skipping S5:Publish (dry run mode)")
	}

	result.Success = true
	result.Duration = time.Since(startTime)
	o.deps.Metrics.ObserveRun(result.Duration)

	o.logger.WithFields(map[string]interface{}{
		"run_id":           config.RunID,
		"duration":         result.Duration.Seconds(),
		"short":            len(set.Short.IDs()),
		"medium":           len(set.Medium.IDs()),
		"long":             len(set.Long.IDs()),
		"narrative_status": set.NarrativeStatus,
	}).Info("Selection run completed successfully")

	return result, nil
}

func (o *Orchestrator) stage(name string, fn func() ([]contracts.Instrument, []contracts.Instrument, error)) ([]contracts.Instrument, []contracts.Instrument, error) {
	start := time.Now()
	a, b, err := fn()
	o.deps.Metrics.ObserveStage(name, time.Since(start))
	return a, b, err
}

func (o *Orchestrator) loadUniverse(ctx context.Context, asOf time.Time) ([]contracts.Instrument, []contracts.Instrument, error) {
	universe, err := o.deps.Universe.ListUniverse(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list universe: %w", err)
	}
	if len(universe) == 0 {
		return nil, nil, fmt.Errorf("universe is empty")
	}

	var catalysts []contracts.Instrument
	if o.deps.Catalysts != nil {
		catalysts, err = o.deps.Catalysts.ListCatalystCandidates(ctx, asOf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			// 촉매 목록 없이도 Short-Term은 유니버스로 진행
			o.logger.WithError(err).Warn("Catalyst detector failed, continuing without catalysts")
			catalysts = nil
		}
	}

	o.logger.WithFields(map[string]interface{}{
		"universe":  len(universe),
		"catalysts": len(catalysts),
	}).Info("Universe loaded")

	return universe, catalysts, nil
}

func (o *Orchestrator) checkQuality(ctx context.Context, asOf time.Time, ids []string, bundles map[string]*contracts.FactorBundle, dryRun bool) *quality.Snapshot {
	snapshot := o.deps.QualityGate.Check(asOf, ids, bundles, o.required)

	fields := map[string]interface{}{
		"quality_score": snapshot.QualityScore,
		"eligible":      snapshot.Eligible,
		"weakest":       snapshot.Weakest,
	}
	if snapshot.Passed {
		o.logger.WithFields(fields).Info("Factor coverage check passed")
	} else {
		o.logger.WithFields(fields).Warn("Factor coverage below threshold")
	}

	if o.deps.QualityStore != nil && !dryRun {
		if err := o.deps.QualityStore.SaveSnapshot(ctx, snapshot); err != nil {
			o.logger.WithError(err).Warn("Failed to save quality snapshot")
		}
	}

	return snapshot
}

func (o *Orchestrator) dispatchNarrative(ctx context.Context, set *contracts.PortfolioSet) narrative.DispatchReport {
	if o.deps.Dispatcher == nil || !o.deps.Config.Narrative.Enabled {
		return narrative.DispatchReport{Status: contracts.NarrativeSkipped, Results: map[narrative.Key]*contracts.Narrative{}}
	}

	report := o.deps.Dispatcher.Dispatch(ctx, set)
	if report.Status == contracts.NarrativeUnavailable || report.Status == contracts.NarrativePartial {
		o.logger.WithFields(map[string]interface{}{
			"status": report.Status,
			"failed": report.Failed,
		}).Warn("Narrative enrichment degraded")
	}
	return report
}

func instrumentIDs(insts []contracts.Instrument) []string {
	ids := make([]string, len(insts))
	for i, inst := range insts {
		ids[i] = inst.ID
	}
	return ids
}
