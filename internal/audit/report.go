package audit

import (
	"time"

	"github.com/wonny/trifund/internal/brain"
	"github.com/wonny/trifund/internal/contracts"
)

// RunReport is the audit record of one run, kept for failed runs too
type RunReport struct {
	RunID           string                    `json:"run_id"`
	AsOf            time.Time                 `json:"as_of"`
	ConfigHash      string                    `json:"config_hash"`
	DryRun          bool                      `json:"dry_run"`
	Success         bool                      `json:"success"`
	Error           string                    `json:"error,omitempty"`
	CompletedStages []string                  `json:"completed_stages"`
	QualityScore    *float64                  `json:"quality_score,omitempty"`
	NarrativeStatus contracts.NarrativeStatus `json:"narrative_status,omitempty"`
	Strategies      []StrategySummary         `json:"strategies,omitempty"`
	Duration        time.Duration             `json:"duration"`
}

// StrategySummary condenses one SelectionResult
type StrategySummary struct {
	Strategy  contracts.Strategy `json:"strategy"`
	PoolSize  int                `json:"pool_size"`
	Excluded  int                `json:"excluded"`
	Selected  int                `json:"selected"`
	Dropped   int                `json:"dropped"`
	Flagged   int                `json:"flagged"`
	GateLevel int                `json:"gate_level"`
	Error     string             `json:"error,omitempty"`
}

// NewRunReport summarizes a run result
func NewRunReport(result *brain.RunResult, configHash string, dryRun bool) *RunReport {
	report := &RunReport{
		RunID:           result.RunID,
		AsOf:            result.AsOf,
		ConfigHash:      configHash,
		DryRun:          dryRun,
		Success:         result.Success,
		CompletedStages: result.CompletedStages,
		NarrativeStatus: result.Narrative.Status,
		Duration:        result.Duration,
	}

	if result.Error != nil {
		report.Error = result.Error.Error()
	}
	if result.Quality != nil {
		score := result.Quality.QualityScore
		report.QualityScore = &score
	}

	if set := result.Portfolio; set != nil {
		report.NarrativeStatus = set.NarrativeStatus
		for _, r := range set.Results() {
			report.Strategies = append(report.Strategies, StrategySummary{
				Strategy:  r.Strategy,
				PoolSize:  r.PoolSize,
				Excluded:  r.Excluded,
				Selected:  len(r.Candidates),
				Dropped:   len(r.Dropped),
				Flagged:   len(r.Flagged),
				GateLevel: r.GateLevel,
				Error:     r.Error,
			})
		}
	}

	return report
}
