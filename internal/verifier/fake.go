package verifier

import (
	"context"
	"sync"
)

// Fake is the deterministic in-process verifier used in memory mode and
// tests. Scores are scripted per scenario, overridable per post URL.
type Fake struct {
	mu        sync.Mutex
	overrides map[string]Result
	calls     int
}

func NewFake() *Fake {
	return &Fake{overrides: make(map[string]Result)}
}

// SetResult pins the answer for one post URL.
func (f *Fake) SetResult(postURL string, result Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides[postURL] = result
}

// Calls reports how many times Score ran, for asserting memoization.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) Score(ctx context.Context, postURL, scenario string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if r, ok := f.overrides[postURL]; ok {
		cp := r
		return &cp, nil
	}

	switch scenario {
	case ScenarioBotFraud:
		return &Result{
			OverallScore:   42,
			Recommendation: "REJECT",
			FraudFlags:     []string{"follower_farm", "engagement_spike"},
			Confidence:     "high",
		}, nil
	case ScenarioMixedQuality:
		return &Result{
			OverallScore:   78,
			Recommendation: "REVIEW",
			FraudFlags:     []string{"velocity_anomaly"},
			Confidence:     "medium",
		}, nil
	default:
		return &Result{
			OverallScore:   96,
			Recommendation: "APPROVE",
			Confidence:     "high",
		}, nil
	}
}

func (f *Fake) Healthy(ctx context.Context) error { return ctx.Err() }

var _ Client = (*Fake)(nil)
