// Package postcheck confirms a post URL resolves to a real page before the
// relay spends a verifier call on it. It is a cheap liveness probe, not a
// content check; the scoring itself belongs to the external verifier.
package postcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Checker struct {
	httpClient *http.Client
	maxRetries int
	log        *zap.Logger
}

func NewChecker(timeout time.Duration, maxRetries int, log *zap.Logger) *Checker {
	return &Checker{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		log:        log,
	}
}

// Check fetches the post URL and verifies the response parses as a page
// with actual content. Transient fetch failures retry with a linear
// backoff, matching the site-scrape behavior elsewhere in the stack.
func (c *Checker) Check(ctx context.Context, postURL string) error {
	u, err := url.Parse(postURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("post url %q is not a fetchable http(s) url", postURL)
	}

	var doc *goquery.Document
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, postURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if sleepOrDone(ctx, time.Duration(attempt+1)*500*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}

		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			resp.Body.Close()
			return fmt.Errorf("post not found: HTTP %d for %s", resp.StatusCode, postURL)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, postURL)
			if sleepOrDone(ctx, time.Duration(attempt+1)*500*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}

	if lastErr != nil {
		return fmt.Errorf("post check failed: %w", lastErr)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	bodyText := strings.TrimSpace(doc.Find("body").Text())
	if title == "" && bodyText == "" {
		return fmt.Errorf("post page at %s is empty", postURL)
	}

	if c.log != nil {
		c.log.Debug("post check passed",
			zap.String("post_url", postURL),
			zap.String("title", title),
		)
	}
	return nil
}

// sleepOrDone waits d or until ctx cancels; reports cancellation.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return true
	case <-time.After(d):
		return false
	}
}
