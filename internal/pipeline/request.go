package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// RunRequest is the bounded per-run configuration accepted at submission.
type RunRequest struct {
	Keyword string `json:"keyword"`
	// MaxAds bounds how many ad listings stage 1 pulls (1-500, default 50).
	MaxAds int `json:"max_ads"`
	// CountryCode targets the ad library search (default US).
	CountryCode string `json:"country_code"`
	// PollIntervalSeconds is the scrape-status poll cadence (5-60, default 15).
	PollIntervalSeconds int `json:"poll_interval_seconds"`
	// Concurrency is the scrape task parallelism hint (1-20, default 5).
	Concurrency int `json:"concurrency"`
	// TimeoutSeconds bounds the stage-1 scrape (60-3600, default 900).
	TimeoutSeconds int `json:"timeout_seconds"`
	// MinAdSpendUSD drops discoveries below this estimated spend (>= 0).
	MinAdSpendUSD int64 `json:"min_ad_spend_usd"`
	// RetryAttempts bounds traffic-lookup retries (0-5, default 2).
	RetryAttempts int `json:"retry_attempts"`
}

// Normalize fills zero values with defaults.
func (r *RunRequest) Normalize() {
	if r.MaxAds == 0 {
		r.MaxAds = 50
	}
	if r.CountryCode == "" {
		r.CountryCode = "US"
	}
	if r.PollIntervalSeconds == 0 {
		r.PollIntervalSeconds = 15
	}
	if r.Concurrency == 0 {
		r.Concurrency = 5
	}
	if r.TimeoutSeconds == 0 {
		r.TimeoutSeconds = 900
	}
	if r.RetryAttempts == 0 {
		r.RetryAttempts = 2
	}
}

// Validate rejects out-of-range parameters. Runs are never created for
// invalid requests.
func (r RunRequest) Validate() error {
	if strings.TrimSpace(r.Keyword) == "" {
		return fmt.Errorf("keyword is required")
	}
	if r.MaxAds < 1 || r.MaxAds > 500 {
		return fmt.Errorf("max_ads must be between 1 and 500")
	}
	if r.PollIntervalSeconds < 5 || r.PollIntervalSeconds > 60 {
		return fmt.Errorf("poll_interval_seconds must be between 5 and 60")
	}
	if r.Concurrency < 1 || r.Concurrency > 20 {
		return fmt.Errorf("concurrency must be between 1 and 20")
	}
	if r.TimeoutSeconds < 60 || r.TimeoutSeconds > 3600 {
		return fmt.Errorf("timeout_seconds must be between 60 and 3600")
	}
	if r.MinAdSpendUSD < 0 {
		return fmt.Errorf("min_ad_spend_usd must be >= 0")
	}
	if r.RetryAttempts < 0 || r.RetryAttempts > 5 {
		return fmt.Errorf("retry_attempts must be between 0 and 5")
	}
	return nil
}

// Timeout returns the stage-1 budget as a duration.
func (r RunRequest) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// configMap renders the request for the pipeline_start event payload.
func (r RunRequest) configMap() map[string]any {
	return map[string]any{
		"keyword":               r.Keyword,
		"max_ads":               r.MaxAds,
		"country_code":          r.CountryCode,
		"poll_interval_seconds": r.PollIntervalSeconds,
		"concurrency":           r.Concurrency,
		"timeout_seconds":       r.TimeoutSeconds,
		"min_ad_spend_usd":      r.MinAdSpendUSD,
		"retry_attempts":        r.RetryAttempts,
	}
}
