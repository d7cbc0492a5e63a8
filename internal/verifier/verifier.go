// Package verifier talks to the external AI fraud-scoring service. The
// bridge only loads on overall_score; everything else passes through for
// logging and dashboards.
package verifier

import "context"

// Scenario tags accepted by the scoring service.
const (
	ScenarioLegitimate   = "legitimate"
	ScenarioBotFraud     = "bot_fraud"
	ScenarioMixedQuality = "mixed_quality"
)

// Result is the scoring service's answer. OverallScore is the single
// load-bearing field.
type Result struct {
	OverallScore   int            `json:"overall_score"`
	Recommendation string         `json:"recommendation"`
	Breakdown      map[string]any `json:"breakdown,omitempty"`
	FraudFlags     []string       `json:"fraud_flags,omitempty"`
	Confidence     string         `json:"confidence,omitempty"`
}

// Client scores a post. A failure here is fatal to the relay attempt; no
// synthetic score is ever invented locally.
type Client interface {
	Score(ctx context.Context, postURL, scenario string) (*Result, error)
	Healthy(ctx context.Context) error
}
