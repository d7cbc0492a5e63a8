package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPClient calls the scoring service's REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, log *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type scoreRequest struct {
	PostURL  string `json:"post_url"`
	Scenario string `json:"scenario,omitempty"`
}

func (c *HTTPClient) Score(ctx context.Context, postURL, scenario string) (*Result, error) {
	body, err := json.Marshal(scoreRequest{PostURL: postURL, Scenario: scenario})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verifier unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("verifier returned %d: %s", resp.StatusCode, string(b))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("verifier: decode response: %w", err)
	}
	if result.OverallScore < 0 || result.OverallScore > 100 {
		return nil, fmt.Errorf("verifier returned score %d outside [0,100]", result.OverallScore)
	}

	if c.log != nil {
		c.log.Info("verifier answered",
			zap.String("post_url", postURL),
			zap.Int("overall_score", result.OverallScore),
			zap.String("recommendation", result.Recommendation),
			zap.Strings("fraud_flags", result.FraudFlags),
			zap.String("confidence", result.Confidence),
		)
	}
	return &result, nil
}

func (c *HTTPClient) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("verifier unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("verifier health returned %d", resp.StatusCode)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
