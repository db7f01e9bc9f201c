// Package intel defines the market-intelligence domain types shared by the
// pipeline, storage, and API layers, plus the narrow interfaces behind which
// the external scraping collaborators live.
package intel

import "time"

// KeywordStatus mirrors the keywords.status column.
type KeywordStatus string

// Keyword lifecycle statuses.
const (
	KeywordPending    KeywordStatus = "pending"
	KeywordProcessing KeywordStatus = "processing"
	KeywordCompleted  KeywordStatus = "completed"
	KeywordFailed     KeywordStatus = "failed"
)

// Keyword is a persisted search keyword and its processing lifecycle.
type Keyword struct {
	// ID is the primary key.
	ID int64
	// Keyword is the unique keyword string.
	Keyword string
	// Status tracks the lifecycle of the most recent run.
	Status KeywordStatus
	// TotalProducts counts products discovered for this keyword.
	TotalProducts int
	// ProcessingDurationSeconds is the wall-clock duration of the last run.
	ProcessingDurationSeconds *float64
	// ErrorMessage holds the final failure reason, if any.
	ErrorMessage *string
	// CreatedAt is set on first insert.
	CreatedAt time.Time
	// ProcessedAt is set when a run reaches a terminal status.
	ProcessedAt *time.Time
}

// AdIntelligence carries the spend/impression/reach attributes extracted from
// ad listings. All fields are explicitly optional; absence means the source
// did not report the attribute, never zero.
type AdIntelligence struct {
	CampaignDurationDays *int    `json:"ad_campaign_duration_days,omitempty"`
	TotalActiveAds       *int    `json:"total_active_ads,omitempty"`
	MinMonthlySpend      *int64  `json:"min_monthly_ad_spend,omitempty"`
	MaxMonthlySpend      *int64  `json:"max_monthly_ad_spend,omitempty"`
	EstMonthlySpend      *int64  `json:"estimated_monthly_ad_spend,omitempty"`
	MinMonthlyImpr       *int64  `json:"min_monthly_impressions,omitempty"`
	MaxMonthlyImpr       *int64  `json:"max_monthly_impressions,omitempty"`
	EstMonthlyImpr       *int64  `json:"estimated_monthly_impressions,omitempty"`
	PlatformsCount       *int    `json:"advertising_platforms_count,omitempty"`
	Platforms            *string `json:"advertising_platforms,omitempty"`
	CountriesCount       *int    `json:"target_countries_count,omitempty"`
	Countries            *string `json:"target_countries,omitempty"`
}

// PsychologyFlags captures the promotional-strategy signals detected in ad
// creatives. Unlike AdIntelligence these are refreshed on every rediscovery.
type PsychologyFlags struct {
	DiscountOffer   *bool   `json:"features_discount_offer,omitempty"`
	UrgencyLanguage *bool   `json:"features_urgency_language,omitempty"`
	PurchaseCTA     *bool   `json:"features_purchase_cta,omitempty"`
	SocialProof     *bool   `json:"features_social_proof,omitempty"`
	FreeShipping    *bool   `json:"features_free_shipping,omitempty"`
	PrimaryCTA      *string `json:"primary_call_to_action,omitempty"`
	CreativeThemes  *string `json:"ad_creative_themes,omitempty"`
}

// Product is a discovered e-commerce product, uniquely keyed by its
// normalized root domain.
type Product struct {
	// ID is the primary key.
	ID int64
	// KeywordID links to the owning Keyword row.
	KeywordID int64
	// BrandDomain is the normalized root domain (e.g. example.com). At most
	// one product exists per domain.
	BrandDomain string
	// BrandName is the advertiser's display name when known.
	BrandName *string
	// ProductPageURL is the ad's landing page.
	ProductPageURL string
	// DiscoveryKeyword is the keyword string the product was first found under.
	DiscoveryKeyword string
	// FirstDiscovered is set once on insert.
	FirstDiscovered time.Time
	// LastSeen refreshes on every rediscovery.
	LastSeen time.Time

	Intelligence AdIntelligence
	Psychology   PsychologyFlags
}

// TrafficIntelligence is the latest traffic estimate for a product. One row
// per product; reruns replace the values rather than adding rows.
type TrafficIntelligence struct {
	// ID is the primary key.
	ID int64
	// ProductID links 1:1 to the discovered product.
	ProductID int64
	// MonthlyVisits is nil when the lookup yielded no data. Persisting the
	// no-data outcome prevents re-querying domains known to be empty.
	MonthlyVisits *int64
	// DataSource labels where the estimate came from (extension, html, ...).
	DataSource string
	// CollectedAt refreshes on every upsert.
	CollectedAt time.Time
}

// Enriched reports whether the record carries a usable visit estimate.
func (t TrafficIntelligence) Enriched() bool {
	return t.MonthlyVisits != nil && *t.MonthlyVisits > 0
}
