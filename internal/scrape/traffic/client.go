// Package traffic estimates a domain's monthly visits using SimilarWeb data
// fetched through the ScraperAPI proxy. The structured data API is preferred;
// the public website page is scraped as a fallback.
package traffic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/zrouga/CoAI-app/internal/intel"
	"github.com/zrouga/CoAI-app/internal/retry"
)

const (
	defaultProxyURL = "https://api.scraperapi.com"

	sourceAPI    = "similarweb_api"
	sourceHTML   = "similarweb_html"
	sourceNoData = "no_data"
)

// Config carries proxy credentials and tuning knobs.
type Config struct {
	// APIKey authenticates against ScraperAPI.
	APIKey string
	// ProxyURL overrides the ScraperAPI endpoint, for tests.
	ProxyURL string
	// Retry tunes the per-request retry policy.
	Retry retry.Config
}

// Client implements intel.TrafficLookup.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New builds a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.ProxyURL == "" {
		cfg.ProxyURL = defaultProxyURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// Lookup implements intel.TrafficLookup. A domain SimilarWeb has never
// measured returns a no-data result with a nil error; only transport and
// upstream failures surface as errors.
func (c *Client) Lookup(ctx context.Context, domain string) (intel.TrafficResult, error) {
	visits, err := c.lookupAPI(ctx, domain)
	if err == nil && visits != nil {
		c.logger.Debug("traffic via data api",
			zap.String("domain", domain),
			zap.Int64("monthly_visits", *visits),
		)
		return intel.TrafficResult{MonthlyVisits: visits, Source: sourceAPI}, nil
	}
	if err != nil {
		c.logger.Warn("data api lookup failed, trying html",
			zap.String("domain", domain),
			zap.Error(err),
		)
	}

	visits, htmlErr := c.lookupHTML(ctx, domain)
	if htmlErr != nil {
		if err != nil {
			return intel.TrafficResult{}, fmt.Errorf("traffic lookup %s: api: %v; html: %w", domain, err, htmlErr)
		}
		return intel.TrafficResult{}, fmt.Errorf("traffic lookup %s: %w", domain, htmlErr)
	}
	if visits != nil {
		return intel.TrafficResult{MonthlyVisits: visits, Source: sourceHTML}, nil
	}
	return intel.TrafficResult{Source: sourceNoData}, nil
}

// similarwebData is the subset of data.similarweb.com's response we read.
// Engagments is misspelled upstream.
type similarwebData struct {
	Engagments struct {
		Visits string `json:"Visits"`
	} `json:"Engagments"`
	EstimatedMonthlyVisits map[string]int64 `json:"EstimatedMonthlyVisits"`
}

// lookupAPI queries the structured data endpoint. (nil, nil) means the
// endpoint answered but carries no visit estimate for the domain.
func (c *Client) lookupAPI(ctx context.Context, domain string) (*int64, error) {
	target := "https://data.similarweb.com/api/v1/data?domain=" + url.QueryEscape(domain)
	body, err := c.fetch(ctx, target, false, "traffic data api")
	if err != nil {
		return nil, err
	}

	var data similarwebData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode similarweb data: %w", err)
	}

	if data.Engagments.Visits != "" {
		if v, ok := ParseCompactNumber(data.Engagments.Visits); ok && v > 0 {
			return &v, nil
		}
	}
	if len(data.EstimatedMonthlyVisits) > 0 {
		months := make([]string, 0, len(data.EstimatedMonthlyVisits))
		for m := range data.EstimatedMonthlyVisits {
			months = append(months, m)
		}
		sort.Strings(months)
		latest := data.EstimatedMonthlyVisits[months[len(months)-1]]
		if latest > 0 {
			return &latest, nil
		}
	}
	return nil, nil
}

// lookupHTML scrapes the public website page with JS rendering enabled and
// extracts the total-visits figure.
func (c *Client) lookupHTML(ctx context.Context, domain string) (*int64, error) {
	target := "https://www.similarweb.com/website/" + url.PathEscape(domain) + "/"
	body, err := c.fetch(ctx, target, true, "traffic html page")
	if err != nil {
		return nil, err
	}
	return ParseVisitsHTML(body)
}

// fetch routes the target URL through ScraperAPI with retries. Rate limits,
// proxy-level blocks, and server errors are transient.
func (c *Client) fetch(ctx context.Context, target string, render bool, op string) ([]byte, error) {
	q := url.Values{}
	q.Set("api_key", c.cfg.APIKey)
	q.Set("url", target)
	if render {
		q.Set("render", "true")
	}
	endpoint := c.cfg.ProxyURL + "/?" + q.Encode()

	return retry.DoValue(ctx, c.cfg.Retry, c.logger, op, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, retry.Transient(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return io.ReadAll(resp.Body)
		case resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode == http.StatusForbidden,
			resp.StatusCode >= 500:
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, retry.Transient(fmt.Errorf("proxy responded %d", resp.StatusCode))
		default:
			return nil, fmt.Errorf("proxy responded %d", resp.StatusCode)
		}
	})
}
