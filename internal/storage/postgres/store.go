// Package postgres provides the pgx-backed intel.Store implementation.
//
// Expected schema:
//
//	CREATE TABLE keywords (
//	    id BIGSERIAL PRIMARY KEY,
//	    keyword TEXT NOT NULL UNIQUE,
//	    status TEXT NOT NULL DEFAULT 'pending',
//	    total_products INT NOT NULL DEFAULT 0,
//	    processing_duration_seconds DOUBLE PRECISION,
//	    error_message TEXT,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    processed_at TIMESTAMPTZ
//	);
//
//	CREATE TABLE products (
//	    id BIGSERIAL PRIMARY KEY,
//	    keyword_id BIGINT NOT NULL REFERENCES keywords(id),
//	    brand_domain TEXT NOT NULL UNIQUE,
//	    brand_name TEXT,
//	    product_page_url TEXT NOT NULL,
//	    discovery_keyword TEXT NOT NULL,
//	    first_discovered TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    last_seen_advertising TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    ad_campaign_duration_days INT,
//	    total_active_ads INT,
//	    min_monthly_ad_spend BIGINT,
//	    max_monthly_ad_spend BIGINT,
//	    estimated_monthly_ad_spend BIGINT,
//	    min_monthly_impressions BIGINT,
//	    max_monthly_impressions BIGINT,
//	    estimated_monthly_impressions BIGINT,
//	    advertising_platforms_count INT,
//	    advertising_platforms TEXT,
//	    target_countries_count INT,
//	    target_countries TEXT,
//	    features_discount_offer BOOLEAN,
//	    features_urgency_language BOOLEAN,
//	    features_purchase_cta BOOLEAN,
//	    features_social_proof BOOLEAN,
//	    features_free_shipping BOOLEAN,
//	    primary_call_to_action TEXT,
//	    ad_creative_themes TEXT
//	);
//
//	CREATE TABLE traffic_intelligence (
//	    id BIGSERIAL PRIMARY KEY,
//	    product_id BIGINT NOT NULL UNIQUE REFERENCES products(id),
//	    monthly_visits BIGINT,
//	    data_source TEXT NOT NULL,
//	    collected_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zrouga/CoAI-app/internal/intel"
)

// Config controls the connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// poolIface is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store implements intel.Store over Postgres.
type Store struct {
	pool poolIface
}

var _ intel.Store = (*Store)(nil)

// New connects a pool and returns the Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for tests).
func NewWithPool(pool poolIface) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const keywordColumns = `id, keyword, status, total_products, processing_duration_seconds, error_message, created_at, processed_at`

// GetOrCreateKeyword implements intel.Store. The no-op conflict update makes
// the insert-or-fetch atomic for racing callers with the same keyword string.
func (s *Store) GetOrCreateKeyword(ctx context.Context, keyword string) (intel.Keyword, error) {
	query := `
		INSERT INTO keywords (keyword, status)
		VALUES ($1, $2)
		ON CONFLICT (keyword) DO UPDATE SET keyword = EXCLUDED.keyword
		RETURNING ` + keywordColumns + `;`
	var k intel.Keyword
	err := s.pool.QueryRow(ctx, query, keyword, intel.KeywordPending).Scan(
		&k.ID, &k.Keyword, &k.Status, &k.TotalProducts,
		&k.ProcessingDurationSeconds, &k.ErrorMessage, &k.CreatedAt, &k.ProcessedAt,
	)
	if err != nil {
		return intel.Keyword{}, fmt.Errorf("get or create keyword: %w", err)
	}
	return k, nil
}

// MarkKeywordProcessing implements intel.Store.
func (s *Store) MarkKeywordProcessing(ctx context.Context, id int64) error {
	query := `
		UPDATE keywords
		SET status = $1,
		    error_message = NULL
		WHERE id = $2;`
	tag, err := s.pool.Exec(ctx, query, intel.KeywordProcessing, id)
	if err != nil {
		return fmt.Errorf("mark keyword processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return intel.ErrNotFound
	}
	return nil
}

// UpdateKeywordResult implements intel.Store.
func (s *Store) UpdateKeywordResult(ctx context.Context, id int64, status intel.KeywordStatus, totalProducts int, duration *float64, errMsg *string) error {
	query := `
		UPDATE keywords
		SET status = $1,
		    total_products = $2,
		    processing_duration_seconds = $3,
		    error_message = $4,
		    processed_at = NOW()
		WHERE id = $5;`
	tag, err := s.pool.Exec(ctx, query, status, totalProducts, duration, errMsg, id)
	if err != nil {
		return fmt.Errorf("update keyword result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return intel.ErrNotFound
	}
	return nil
}

const productColumns = `id, keyword_id, brand_domain, brand_name, product_page_url, discovery_keyword,
	first_discovered, last_seen_advertising,
	ad_campaign_duration_days, total_active_ads,
	min_monthly_ad_spend, max_monthly_ad_spend, estimated_monthly_ad_spend,
	min_monthly_impressions, max_monthly_impressions, estimated_monthly_impressions,
	advertising_platforms_count, advertising_platforms, target_countries_count, target_countries,
	features_discount_offer, features_urgency_language, features_purchase_cta,
	features_social_proof, features_free_shipping, primary_call_to_action, ad_creative_themes`

func scanProduct(row pgx.Row) (intel.Product, error) {
	var p intel.Product
	err := row.Scan(
		&p.ID, &p.KeywordID, &p.BrandDomain, &p.BrandName, &p.ProductPageURL, &p.DiscoveryKeyword,
		&p.FirstDiscovered, &p.LastSeen,
		&p.Intelligence.CampaignDurationDays, &p.Intelligence.TotalActiveAds,
		&p.Intelligence.MinMonthlySpend, &p.Intelligence.MaxMonthlySpend, &p.Intelligence.EstMonthlySpend,
		&p.Intelligence.MinMonthlyImpr, &p.Intelligence.MaxMonthlyImpr, &p.Intelligence.EstMonthlyImpr,
		&p.Intelligence.PlatformsCount, &p.Intelligence.Platforms,
		&p.Intelligence.CountriesCount, &p.Intelligence.Countries,
		&p.Psychology.DiscountOffer, &p.Psychology.UrgencyLanguage, &p.Psychology.PurchaseCTA,
		&p.Psychology.SocialProof, &p.Psychology.FreeShipping,
		&p.Psychology.PrimaryCTA, &p.Psychology.CreativeThemes,
	)
	return p, err
}

// UpsertProduct implements intel.Store. The conflict clause encodes the
// better-data-wins rule per field group; psychology flags and last-seen
// always take the new values. xmax = 0 distinguishes insert from update.
func (s *Store) UpsertProduct(ctx context.Context, p intel.Product) (intel.Product, bool, error) {
	query := `
		INSERT INTO products (
			keyword_id, brand_domain, brand_name, product_page_url, discovery_keyword,
			ad_campaign_duration_days, total_active_ads,
			min_monthly_ad_spend, max_monthly_ad_spend, estimated_monthly_ad_spend,
			min_monthly_impressions, max_monthly_impressions, estimated_monthly_impressions,
			advertising_platforms_count, advertising_platforms, target_countries_count, target_countries,
			features_discount_offer, features_urgency_language, features_purchase_cta,
			features_social_proof, features_free_shipping, primary_call_to_action, ad_creative_themes
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
		ON CONFLICT (brand_domain) DO UPDATE SET
			brand_name = COALESCE(EXCLUDED.brand_name, products.brand_name),
			min_monthly_ad_spend = CASE WHEN COALESCE(EXCLUDED.estimated_monthly_ad_spend, 0) > COALESCE(products.estimated_monthly_ad_spend, 0)
				THEN EXCLUDED.min_monthly_ad_spend ELSE products.min_monthly_ad_spend END,
			max_monthly_ad_spend = CASE WHEN COALESCE(EXCLUDED.estimated_monthly_ad_spend, 0) > COALESCE(products.estimated_monthly_ad_spend, 0)
				THEN EXCLUDED.max_monthly_ad_spend ELSE products.max_monthly_ad_spend END,
			estimated_monthly_ad_spend = CASE WHEN COALESCE(EXCLUDED.estimated_monthly_ad_spend, 0) > COALESCE(products.estimated_monthly_ad_spend, 0)
				THEN EXCLUDED.estimated_monthly_ad_spend ELSE products.estimated_monthly_ad_spend END,
			min_monthly_impressions = CASE WHEN COALESCE(EXCLUDED.estimated_monthly_impressions, 0) > COALESCE(products.estimated_monthly_impressions, 0)
				THEN EXCLUDED.min_monthly_impressions ELSE products.min_monthly_impressions END,
			max_monthly_impressions = CASE WHEN COALESCE(EXCLUDED.estimated_monthly_impressions, 0) > COALESCE(products.estimated_monthly_impressions, 0)
				THEN EXCLUDED.max_monthly_impressions ELSE products.max_monthly_impressions END,
			estimated_monthly_impressions = CASE WHEN COALESCE(EXCLUDED.estimated_monthly_impressions, 0) > COALESCE(products.estimated_monthly_impressions, 0)
				THEN EXCLUDED.estimated_monthly_impressions ELSE products.estimated_monthly_impressions END,
			ad_campaign_duration_days = CASE WHEN COALESCE(EXCLUDED.ad_campaign_duration_days, 0) > COALESCE(products.ad_campaign_duration_days, 0)
				THEN EXCLUDED.ad_campaign_duration_days ELSE products.ad_campaign_duration_days END,
			total_active_ads = CASE WHEN COALESCE(EXCLUDED.total_active_ads, 0) > COALESCE(products.total_active_ads, 0)
				THEN EXCLUDED.total_active_ads ELSE products.total_active_ads END,
			advertising_platforms_count = CASE WHEN COALESCE(EXCLUDED.advertising_platforms_count, 0) > COALESCE(products.advertising_platforms_count, 0)
				THEN EXCLUDED.advertising_platforms_count ELSE products.advertising_platforms_count END,
			advertising_platforms = CASE WHEN COALESCE(EXCLUDED.advertising_platforms_count, 0) > COALESCE(products.advertising_platforms_count, 0)
				THEN EXCLUDED.advertising_platforms ELSE products.advertising_platforms END,
			target_countries_count = CASE WHEN COALESCE(EXCLUDED.target_countries_count, 0) > COALESCE(products.target_countries_count, 0)
				THEN EXCLUDED.target_countries_count ELSE products.target_countries_count END,
			target_countries = CASE WHEN COALESCE(EXCLUDED.target_countries_count, 0) > COALESCE(products.target_countries_count, 0)
				THEN EXCLUDED.target_countries ELSE products.target_countries END,
			features_discount_offer = EXCLUDED.features_discount_offer,
			features_urgency_language = EXCLUDED.features_urgency_language,
			features_purchase_cta = EXCLUDED.features_purchase_cta,
			features_social_proof = EXCLUDED.features_social_proof,
			features_free_shipping = EXCLUDED.features_free_shipping,
			primary_call_to_action = EXCLUDED.primary_call_to_action,
			ad_creative_themes = EXCLUDED.ad_creative_themes,
			last_seen_advertising = NOW()
		RETURNING ` + productColumns + `, (xmax = 0) AS inserted;`

	var out intel.Product
	var inserted bool
	err := s.pool.QueryRow(ctx, query,
		p.KeywordID, p.BrandDomain, p.BrandName, p.ProductPageURL, p.DiscoveryKeyword,
		p.Intelligence.CampaignDurationDays, p.Intelligence.TotalActiveAds,
		p.Intelligence.MinMonthlySpend, p.Intelligence.MaxMonthlySpend, p.Intelligence.EstMonthlySpend,
		p.Intelligence.MinMonthlyImpr, p.Intelligence.MaxMonthlyImpr, p.Intelligence.EstMonthlyImpr,
		p.Intelligence.PlatformsCount, p.Intelligence.Platforms,
		p.Intelligence.CountriesCount, p.Intelligence.Countries,
		p.Psychology.DiscountOffer, p.Psychology.UrgencyLanguage, p.Psychology.PurchaseCTA,
		p.Psychology.SocialProof, p.Psychology.FreeShipping,
		p.Psychology.PrimaryCTA, p.Psychology.CreativeThemes,
	).Scan(
		&out.ID, &out.KeywordID, &out.BrandDomain, &out.BrandName, &out.ProductPageURL, &out.DiscoveryKeyword,
		&out.FirstDiscovered, &out.LastSeen,
		&out.Intelligence.CampaignDurationDays, &out.Intelligence.TotalActiveAds,
		&out.Intelligence.MinMonthlySpend, &out.Intelligence.MaxMonthlySpend, &out.Intelligence.EstMonthlySpend,
		&out.Intelligence.MinMonthlyImpr, &out.Intelligence.MaxMonthlyImpr, &out.Intelligence.EstMonthlyImpr,
		&out.Intelligence.PlatformsCount, &out.Intelligence.Platforms,
		&out.Intelligence.CountriesCount, &out.Intelligence.Countries,
		&out.Psychology.DiscountOffer, &out.Psychology.UrgencyLanguage, &out.Psychology.PurchaseCTA,
		&out.Psychology.SocialProof, &out.Psychology.FreeShipping,
		&out.Psychology.PrimaryCTA, &out.Psychology.CreativeThemes,
		&inserted,
	)
	if err != nil {
		return intel.Product{}, false, fmt.Errorf("upsert product: %w", err)
	}
	return out, inserted, nil
}

// RecentProducts implements intel.Store.
func (s *Store) RecentProducts(ctx context.Context, cutoff time.Time, limit int) ([]intel.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE first_discovered >= $1
		ORDER BY first_discovered ASC, id ASC
		LIMIT $2;`
	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]intel.Product, error) {
	var out []intel.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

// sortColumns whitelists sort fields resolvable directly on products.
var sortColumns = map[intel.ProductSort]string{
	intel.SortBrandName:    "brand_name",
	intel.SortBrandDomain:  "brand_domain",
	intel.SortDiscoveredAt: "first_discovered",
}

// ProductsByKeyword implements intel.Store. monthly_visits lives on the
// traffic table, so that sort loads the keyword's products and orders them in
// memory; the other sorts push ORDER BY into the query.
func (s *Store) ProductsByKeyword(ctx context.Context, keyword string, sortBy intel.ProductSort, desc bool, offset, limit int) (intel.ProductPage, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM products WHERE discovery_keyword = $1;`
	if err := s.pool.QueryRow(ctx, countQuery, keyword).Scan(&total); err != nil {
		return intel.ProductPage{}, fmt.Errorf("count products: %w", err)
	}
	if total == 0 {
		return intel.ProductPage{}, intel.ErrNotFound
	}
	// limit <= 0 means the full result set.
	if limit <= 0 {
		limit = total
	}

	if sortBy == intel.SortMonthlyVisits {
		return s.pageByVisits(ctx, keyword, desc, offset, limit, total)
	}

	col, ok := sortColumns[sortBy]
	if !ok {
		col = "first_discovered"
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE discovery_keyword = $1
		ORDER BY %s %s, id ASC
		OFFSET $2 LIMIT $3;`, productColumns, col, dir)
	rows, err := s.pool.Query(ctx, query, keyword, offset, limit)
	if err != nil {
		return intel.ProductPage{}, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()
	products, err := collectProducts(rows)
	if err != nil {
		return intel.ProductPage{}, err
	}
	return intel.ProductPage{Products: products, Total: total}, nil
}

func (s *Store) pageByVisits(ctx context.Context, keyword string, desc bool, offset, limit, total int) (intel.ProductPage, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE discovery_keyword = $1
		ORDER BY id ASC;`
	rows, err := s.pool.Query(ctx, query, keyword)
	if err != nil {
		return intel.ProductPage{}, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()
	products, err := collectProducts(rows)
	if err != nil {
		return intel.ProductPage{}, err
	}

	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	traffic, err := s.TrafficForProducts(ctx, ids)
	if err != nil {
		return intel.ProductPage{}, err
	}
	visits := func(p intel.Product) int64 {
		if t, ok := traffic[p.ID]; ok && t.MonthlyVisits != nil {
			return *t.MonthlyVisits
		}
		return 0
	}
	sort.SliceStable(products, func(i, j int) bool {
		if desc {
			return visits(products[i]) > visits(products[j])
		}
		return visits(products[i]) < visits(products[j])
	})

	if offset >= len(products) {
		return intel.ProductPage{Products: []intel.Product{}, Total: total}, nil
	}
	end := len(products)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return intel.ProductPage{Products: products[offset:end], Total: total}, nil
}

// ExistingDomains implements intel.Store.
func (s *Store) ExistingDomains(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT brand_domain FROM products;`)
	if err != nil {
		return nil, fmt.Errorf("query existing domains: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		out[strings.ToLower(domain)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domains: %w", err)
	}
	return out, nil
}

// UpsertTraffic implements intel.Store.
func (s *Store) UpsertTraffic(ctx context.Context, t intel.TrafficIntelligence) error {
	query := `
		INSERT INTO traffic_intelligence (product_id, monthly_visits, data_source)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id) DO UPDATE SET
			monthly_visits = EXCLUDED.monthly_visits,
			data_source = EXCLUDED.data_source,
			collected_at = NOW();`
	if _, err := s.pool.Exec(ctx, query, t.ProductID, t.MonthlyVisits, t.DataSource); err != nil {
		return fmt.Errorf("upsert traffic: %w", err)
	}
	return nil
}

// TrafficForProducts implements intel.Store.
func (s *Store) TrafficForProducts(ctx context.Context, productIDs []int64) (map[int64]intel.TrafficIntelligence, error) {
	out := make(map[int64]intel.TrafficIntelligence)
	if len(productIDs) == 0 {
		return out, nil
	}
	query := `
		SELECT id, product_id, monthly_visits, data_source, collected_at
		FROM traffic_intelligence
		WHERE product_id = ANY($1);`
	rows, err := s.pool.Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("query traffic: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t intel.TrafficIntelligence
		if err := rows.Scan(&t.ID, &t.ProductID, &t.MonthlyVisits, &t.DataSource, &t.CollectedAt); err != nil {
			return nil, fmt.Errorf("scan traffic: %w", err)
		}
		out[t.ProductID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate traffic: %w", err)
	}
	return out, nil
}

// DeleteKeywordResults implements intel.Store. Traffic rows, product rows,
// and the keyword row go in one transaction so the cascade is all-or-nothing.
func (s *Store) DeleteKeywordResults(ctx context.Context, keyword string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM traffic_intelligence
		WHERE product_id IN (SELECT id FROM products WHERE discovery_keyword = $1);`, keyword); err != nil {
		return fmt.Errorf("delete traffic rows: %w", err)
	}
	productsTag, err := tx.Exec(ctx, `DELETE FROM products WHERE discovery_keyword = $1;`, keyword)
	if err != nil {
		return fmt.Errorf("delete product rows: %w", err)
	}
	keywordTag, err := tx.Exec(ctx, `DELETE FROM keywords WHERE keyword = $1;`, keyword)
	if err != nil {
		return fmt.Errorf("delete keyword row: %w", err)
	}
	if productsTag.RowsAffected() == 0 && keywordTag.RowsAffected() == 0 {
		return intel.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}
	return nil
}

// Counts implements intel.Store.
func (s *Store) Counts(ctx context.Context) (intel.StoreCounts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM keywords),
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(DISTINCT product_id) FROM traffic_intelligence WHERE monthly_visits > 0);`
	var c intel.StoreCounts
	if err := s.pool.QueryRow(ctx, query).Scan(&c.Keywords, &c.Products, &c.ProductsWithTraffic); err != nil {
		return intel.StoreCounts{}, fmt.Errorf("query counts: %w", err)
	}
	return c, nil
}

// Ping implements intel.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is the store's not-found signal.
func IsNotFound(err error) bool {
	return errors.Is(err, intel.ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}
