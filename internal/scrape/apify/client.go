// Package apify discovers e-commerce products by running a Facebook Ad
// Library scraping actor on the Apify platform and persisting the advertisers
// it finds.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/zrouga/CoAI-app/internal/intel"
	"github.com/zrouga/CoAI-app/internal/retry"
)

const (
	defaultBaseURL      = "https://api.apify.com"
	defaultActorID      = "curious_coder~facebook-ads-library-scraper"
	defaultPollInterval = 15 * time.Second
)

// Domains that appear as ad landing pages but are never a brand's own store.
var blockedDomains = map[string]bool{
	"facebook.com":  true,
	"instagram.com": true,
	"whatsapp.com":  true,
	"fb.me":         true,
	"linktr.ee":     true,
	"bit.ly":        true,
	"amazon.com":    true,
	"amzn.to":       true,
	"etsy.com":      true,
	"ebay.com":      true,
	"youtube.com":   true,
	"tiktok.com":    true,
	"google.com":    true,
}

// Config carries the Apify platform credentials and tuning knobs.
type Config struct {
	// Token authenticates against the Apify API.
	Token string
	// ActorID selects the ad-library scraping actor. Empty uses the default.
	ActorID string
	// BaseURL overrides the Apify API endpoint, for tests.
	BaseURL string
	// PollInterval is the delay between actor run status checks.
	PollInterval time.Duration
	// CountryCode scopes the ad search.
	CountryCode string
	// Retry tunes the per-request retry policy.
	Retry retry.Config
}

// Client runs scraping actors and maps their dataset items onto products.
type Client struct {
	cfg    Config
	http   *http.Client
	store  intel.Store
	logger *zap.Logger
}

// New builds a Client persisting through store. httpClient may be nil.
func New(cfg Config, store intel.Store, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ActorID == "" {
		cfg.ActorID = defaultActorID
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = "US"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: httpClient, store: store, logger: logger}
}

// Scrape implements intel.Scraper. It starts an actor run, polls it to a
// terminal state, fetches the dataset, and upserts one product per unique
// brand domain. Returned products are the persisted rows for this run.
func (c *Client) Scrape(ctx context.Context, req intel.ScrapeRequest) ([]intel.Product, error) {
	runCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	run, err := c.startRun(runCtx, req)
	if err != nil {
		return nil, fmt.Errorf("start actor run: %w", err)
	}
	c.logger.Info("actor run started",
		zap.String("keyword", req.Keyword),
		zap.String("run_id", run.ID),
	)

	datasetID, err := c.waitForRun(runCtx, run.ID)
	if err != nil {
		return nil, err
	}

	items, err := c.fetchDataset(runCtx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	c.logger.Info("dataset fetched",
		zap.String("keyword", req.Keyword),
		zap.Int("items", len(items)),
	)

	return c.persistItems(runCtx, req, items)
}

type runInfo struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

type runEnvelope struct {
	Data runInfo `json:"data"`
}

func (c *Client) startRun(ctx context.Context, req intel.ScrapeRequest) (runInfo, error) {
	input := map[string]any{
		"searchTerms":    []string{req.Keyword},
		"adActiveStatus": "active",
		"adType":         "all",
		"countryCode":    c.cfg.CountryCode,
		"count":          req.MaxItems,
	}
	body, err := json.Marshal(input)
	if err != nil {
		return runInfo{}, err
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/runs?token=%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.ActorID), url.QueryEscape(c.cfg.Token))
	var env runEnvelope
	err = retry.Do(ctx, c.cfg.Retry, c.logger, "apify start run", func(ctx context.Context) error {
		return c.postJSON(ctx, endpoint, body, &env)
	})
	if err != nil {
		return runInfo{}, err
	}
	if env.Data.ID == "" {
		return runInfo{}, fmt.Errorf("actor run response missing run id")
	}
	return env.Data, nil
}

// waitForRun polls the run until it reaches a terminal status and returns the
// dataset id holding its results.
func (c *Client) waitForRun(ctx context.Context, runID string) (string, error) {
	endpoint := fmt.Sprintf("%s/v2/actor-runs/%s?token=%s",
		c.cfg.BaseURL, url.PathEscape(runID), url.QueryEscape(c.cfg.Token))

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		var env runEnvelope
		err := retry.Do(ctx, c.cfg.Retry, c.logger, "apify poll run", func(ctx context.Context) error {
			return c.getJSON(ctx, endpoint, &env)
		})
		if err != nil {
			return "", fmt.Errorf("poll actor run: %w", err)
		}

		switch env.Data.Status {
		case "SUCCEEDED":
			if env.Data.DefaultDatasetID == "" {
				return "", fmt.Errorf("actor run %s succeeded without a dataset", runID)
			}
			return env.Data.DefaultDatasetID, nil
		case "FAILED", "ABORTED", "TIMED-OUT":
			return "", fmt.Errorf("actor run %s ended with status %s", runID, env.Data.Status)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for actor run %s: %w", runID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchDataset(ctx context.Context, datasetID string) ([]adItem, error) {
	endpoint := fmt.Sprintf("%s/v2/datasets/%s/items?token=%s&format=json&clean=true",
		c.cfg.BaseURL, url.PathEscape(datasetID), url.QueryEscape(c.cfg.Token))
	var items []adItem
	err := retry.Do(ctx, c.cfg.Retry, c.logger, "apify fetch dataset", func(ctx context.Context) error {
		return c.getJSON(ctx, endpoint, &items)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// persistItems maps dataset items onto products, filtering junk domains,
// per-run duplicates, and (optionally) low spenders, then upserts each one.
// Spend filters gate new discoveries only: a known domain is always upserted
// so rediscoveries keep refreshing its row.
func (c *Client) persistItems(ctx context.Context, req intel.ScrapeRequest, items []adItem) ([]intel.Product, error) {
	known, err := c.store.ExistingDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing domains: %w", err)
	}
	seen := make(map[string]bool)
	var (
		out              []intel.Product
		created, updated int
		skipped          int
	)
	for _, item := range items {
		product, ok := item.toProduct()
		if !ok {
			skipped++
			continue
		}
		if blockedDomains[product.BrandDomain] || seen[product.BrandDomain] {
			skipped++
			continue
		}
		if _, rediscovery := known[product.BrandDomain]; !rediscovery && !passesFilters(product, req.Filters) {
			skipped++
			continue
		}
		seen[product.BrandDomain] = true

		product.KeywordID = req.KeywordID
		product.DiscoveryKeyword = req.Keyword
		saved, wasCreated, err := c.store.UpsertProduct(ctx, product)
		if err != nil {
			return nil, fmt.Errorf("persist product %s: %w", product.BrandDomain, err)
		}
		if wasCreated {
			created++
		} else {
			updated++
		}
		out = append(out, saved)
	}

	c.logger.Info("scrape persisted",
		zap.String("keyword", req.Keyword),
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int("skipped", skipped),
	)
	return out, nil
}

// passesFilters applies the new-discovery thresholds. A missing attribute
// fails its threshold; absence of data is not evidence of scale.
func passesFilters(p intel.Product, f intel.ScrapeFilters) bool {
	if f.MinSpendUSD > 0 {
		spend := p.Intelligence.EstMonthlySpend
		if spend == nil || *spend < f.MinSpendUSD {
			return false
		}
	}
	if f.MinImpressions > 0 {
		impr := p.Intelligence.EstMonthlyImpr
		if impr == nil || *impr < f.MinImpressions {
			return false
		}
	}
	if f.MinCampaignDays > 0 {
		days := p.Intelligence.CampaignDurationDays
		if days == nil || *days < f.MinCampaignDays {
			return false
		}
	}
	return true
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

// doJSON executes the request and decodes the body. Rate limits and server
// errors are marked transient so the retry layer backs off and re-sends.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return retry.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return retry.Transient(fmt.Errorf("apify responded %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("apify responded %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode apify response: %w", err)
	}
	return nil
}

// NormalizeDomain reduces a landing URL or hostname to its registrable root
// domain (e.g. shop.example.co.uk -> example.co.uk). Empty when the input has
// no usable host.
func NormalizeDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	host := raw
	if strings.Contains(raw, "/") || strings.Contains(raw, "://") {
		if !strings.Contains(raw, "://") {
			raw = "https://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return ""
		}
		host = u.Host
	}
	host = strings.ToLower(host)
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimPrefix(host, "www.")
	if host == "" || !strings.Contains(host, ".") {
		return ""
	}
	root, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return root
}
