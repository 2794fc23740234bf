package contracts

import "time"

// AIImpact is the AI-exposure assessment returned by the narrative service
type AIImpact string

const (
	AIImpactOpportunity AIImpact = "opportunity"
	AIImpactThreat      AIImpact = "threat"
	AIImpactNeutral     AIImpact = "neutral"
)

// NarrativeRequest carries a single instrument with its own strategy context
type NarrativeRequest struct {
	InstrumentID string                 `json:"instrument_id"`
	Name         string                 `json:"name,omitempty"`
	Strategy     Strategy               `json:"strategy"`
	AsOf         time.Time              `json:"as_of"`
	Factors      map[FactorName]float64 `json:"factors"`
}

// Narrative is the enrichment merged back onto a candidate
type Narrative struct {
	Catalysts []string `json:"catalysts"`
	Threats   []string `json:"threats"`
	AIImpact  AIImpact `json:"ai_impact"`
	Score     float64  `json:"narrative_score"`  // 0-100
	Method    string   `json:"method,omitempty"` // how the response was parsed
}

// NarrativeStatus summarises a dispatch for the whole portfolio
type NarrativeStatus string

const (
	NarrativeOK          NarrativeStatus = "ok"
	NarrativePartial     NarrativeStatus = "partial"
	NarrativeUnavailable NarrativeStatus = "unavailable"
	NarrativeSkipped     NarrativeStatus = "skipped"
)
