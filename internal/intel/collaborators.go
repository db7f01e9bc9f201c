package intel

import (
	"context"
	"time"
)

// ScrapeFilters optionally narrows which discovered entities are kept.
// Zero values mean the filter is disabled.
type ScrapeFilters struct {
	// MinSpendUSD drops entities whose estimated monthly spend is below this.
	MinSpendUSD int64
	// MinImpressions drops entities below this estimated monthly impressions.
	MinImpressions int64
	// MinCampaignDays drops entities with shorter campaign durations.
	MinCampaignDays int
}

// ScrapeRequest parameterizes one stage-1 discovery pass.
type ScrapeRequest struct {
	Keyword   string
	KeywordID int64
	// MaxItems bounds how many ad listings are pulled.
	MaxItems int
	// Timeout bounds the whole scrape including remote polling.
	Timeout time.Duration
	Filters ScrapeFilters
}

// Scraper is the stage-1 collaborator: it scrapes ad listings for a keyword,
// dedupes them by root domain within the run, drops blacklisted domains,
// applies filters to new discoveries, persists each kept entity via the store
// upsert, and returns the persisted rows. Implementations perform blocking
// network I/O and must honor ctx.
type Scraper interface {
	Scrape(ctx context.Context, req ScrapeRequest) ([]Product, error)
}

// TrafficResult is the outcome of one traffic lookup. MonthlyVisits is nil
// when no estimate is available; Source then carries the reason label.
type TrafficResult struct {
	MonthlyVisits *int64
	Source        string
}

// TrafficLookup is the stage-2 collaborator: it estimates monthly website
// visits for a domain. Implementations retry transient upstream failures
// internally and perform blocking network I/O.
type TrafficLookup interface {
	Lookup(ctx context.Context, domain string) (TrafficResult, error)
}
