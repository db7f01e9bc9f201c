package intel

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ProductSort names the fields results may be ordered by.
type ProductSort string

// Supported sort fields for ProductsByKeyword. SortMonthlyVisits lives on the
// related traffic row, so stores are expected to sort it in memory after the
// join rather than pushing it into the query.
const (
	SortMonthlyVisits ProductSort = "monthly_visits"
	SortBrandName     ProductSort = "brand_name"
	SortBrandDomain   ProductSort = "brand_domain"
	SortDiscoveredAt  ProductSort = "discovered_at"
)

// ProductPage is one page of keyword results.
type ProductPage struct {
	Products []Product
	// Total is the unpaginated product count for the keyword.
	Total int
}

// StoreCounts aggregates record totals for metrics and the dashboard.
type StoreCounts struct {
	Keywords            int64
	Products            int64
	ProductsWithTraffic int64
}

// Store persists keywords, discovered products, and traffic intelligence.
// Implementations must be safe for concurrent use; every call is a single
// short-lived unit of work and must honor ctx.
type Store interface {
	// GetOrCreateKeyword resolves the keyword string to its row, creating it
	// when absent. Creation is atomic with respect to duplicate strings: two
	// concurrent calls for the same keyword yield the same row.
	GetOrCreateKeyword(ctx context.Context, keyword string) (Keyword, error)
	// MarkKeywordProcessing moves the keyword row to KeywordProcessing at run
	// start and clears any error message left by a prior run.
	MarkKeywordProcessing(ctx context.Context, id int64) error
	// UpdateKeywordResult finalizes a keyword row after a run.
	UpdateKeywordResult(ctx context.Context, id int64, status KeywordStatus, totalProducts int, duration *float64, errMsg *string) error

	// UpsertProduct inserts the product or merges it into the existing row
	// for the same brand domain. Spend/impression/duration/breadth fields
	// replace existing values only when strictly better; psychology flags and
	// LastSeen always refresh. Each field is compared independently, so a
	// merged row may mix values from different discovery events. Returns true
	// when a new row was created.
	UpsertProduct(ctx context.Context, p Product) (Product, bool, error)
	// RecentProducts returns products first discovered at or after cutoff,
	// oldest first, capped at limit.
	RecentProducts(ctx context.Context, cutoff time.Time, limit int) ([]Product, error)
	// ProductsByKeyword returns one page of products discovered under the
	// keyword. ErrNotFound when the keyword has no products at all.
	ProductsByKeyword(ctx context.Context, keyword string, sortBy ProductSort, desc bool, offset, limit int) (ProductPage, error)
	// ExistingDomains returns the set of brand domains already persisted.
	ExistingDomains(ctx context.Context) (map[string]struct{}, error)

	// UpsertTraffic writes the latest traffic estimate for a product,
	// replacing any prior row (latest wins, including no-data outcomes).
	UpsertTraffic(ctx context.Context, t TrafficIntelligence) error
	// TrafficForProducts returns traffic rows keyed by product ID. Products
	// without a row are simply absent from the map.
	TrafficForProducts(ctx context.Context, productIDs []int64) (map[int64]TrafficIntelligence, error)

	// DeleteKeywordResults removes the keyword row plus all of its products
	// and their traffic rows as one unit. ErrNotFound when nothing is
	// persisted for the keyword.
	DeleteKeywordResults(ctx context.Context, keyword string) error

	// Counts reports record totals.
	Counts(ctx context.Context) (StoreCounts, error)
	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
