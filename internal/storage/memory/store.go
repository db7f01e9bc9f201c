// Package memory provides an in-memory intel.Store for tests and local runs.
// Semantics match the Postgres implementation, including the per-field
// better-data-wins product upsert and the latest-wins traffic upsert.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zrouga/CoAI-app/internal/intel"
)

// Store keeps all records behind one mutex.
type Store struct {
	mu sync.Mutex

	nextKeywordID int64
	nextProductID int64
	nextTrafficID int64

	keywords map[string]*intel.Keyword            // by keyword string
	products map[string]*intel.Product            // by brand domain
	traffic  map[int64]*intel.TrafficIntelligence // by product id
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		keywords: make(map[string]*intel.Keyword),
		products: make(map[string]*intel.Product),
		traffic:  make(map[int64]*intel.TrafficIntelligence),
	}
}

var _ intel.Store = (*Store)(nil)

// GetOrCreateKeyword implements intel.Store.
func (s *Store) GetOrCreateKeyword(_ context.Context, keyword string) (intel.Keyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keywords[keyword]; ok {
		return *k, nil
	}
	s.nextKeywordID++
	k := &intel.Keyword{
		ID:        s.nextKeywordID,
		Keyword:   keyword,
		Status:    intel.KeywordPending,
		CreatedAt: time.Now(),
	}
	s.keywords[keyword] = k
	return *k, nil
}

// MarkKeywordProcessing implements intel.Store.
func (s *Store) MarkKeywordProcessing(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keywords {
		if k.ID == id {
			k.Status = intel.KeywordProcessing
			k.ErrorMessage = nil
			return nil
		}
	}
	return intel.ErrNotFound
}

// UpdateKeywordResult implements intel.Store.
func (s *Store) UpdateKeywordResult(_ context.Context, id int64, status intel.KeywordStatus, totalProducts int, duration *float64, errMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keywords {
		if k.ID == id {
			now := time.Now()
			k.Status = status
			k.TotalProducts = totalProducts
			k.ProcessingDurationSeconds = duration
			k.ErrorMessage = errMsg
			k.ProcessedAt = &now
			return nil
		}
	}
	return intel.ErrNotFound
}

// UpsertProduct implements intel.Store.
func (s *Store) UpsertProduct(_ context.Context, p intel.Product) (intel.Product, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	existing, ok := s.products[p.BrandDomain]
	if !ok {
		s.nextProductID++
		p.ID = s.nextProductID
		if p.FirstDiscovered.IsZero() {
			p.FirstDiscovered = now
		}
		p.LastSeen = now
		cp := p
		s.products[p.BrandDomain] = &cp
		return p, true, nil
	}

	mergeIntelligence(existing, p.Intelligence)
	// Psychology flags and last-seen always track the newest discovery.
	existing.Psychology = p.Psychology
	existing.LastSeen = now
	if p.BrandName != nil {
		existing.BrandName = p.BrandName
	}
	return *existing, false, nil
}

// mergeIntelligence applies the better-data-wins rule field group by field
// group. Groups are compared independently, so the merged row may mix values
// from different discovery events.
func mergeIntelligence(dst *intel.Product, in intel.AdIntelligence) {
	if i64(in.EstMonthlySpend) > i64(dst.Intelligence.EstMonthlySpend) {
		dst.Intelligence.MinMonthlySpend = in.MinMonthlySpend
		dst.Intelligence.MaxMonthlySpend = in.MaxMonthlySpend
		dst.Intelligence.EstMonthlySpend = in.EstMonthlySpend
	}
	if i64(in.EstMonthlyImpr) > i64(dst.Intelligence.EstMonthlyImpr) {
		dst.Intelligence.MinMonthlyImpr = in.MinMonthlyImpr
		dst.Intelligence.MaxMonthlyImpr = in.MaxMonthlyImpr
		dst.Intelligence.EstMonthlyImpr = in.EstMonthlyImpr
	}
	if iv(in.CampaignDurationDays) > iv(dst.Intelligence.CampaignDurationDays) {
		dst.Intelligence.CampaignDurationDays = in.CampaignDurationDays
	}
	if iv(in.TotalActiveAds) > iv(dst.Intelligence.TotalActiveAds) {
		dst.Intelligence.TotalActiveAds = in.TotalActiveAds
	}
	if iv(in.PlatformsCount) > iv(dst.Intelligence.PlatformsCount) {
		dst.Intelligence.PlatformsCount = in.PlatformsCount
		dst.Intelligence.Platforms = in.Platforms
	}
	if iv(in.CountriesCount) > iv(dst.Intelligence.CountriesCount) {
		dst.Intelligence.CountriesCount = in.CountriesCount
		dst.Intelligence.Countries = in.Countries
	}
}

func i64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func iv(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// RecentProducts implements intel.Store.
func (s *Store) RecentProducts(_ context.Context, cutoff time.Time, limit int) ([]intel.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []intel.Product
	for _, p := range s.products {
		if !p.FirstDiscovered.Before(cutoff) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstDiscovered.Equal(out[j].FirstDiscovered) {
			return out[i].ID < out[j].ID
		}
		return out[i].FirstDiscovered.Before(out[j].FirstDiscovered)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ProductsByKeyword implements intel.Store.
func (s *Store) ProductsByKeyword(_ context.Context, keyword string, sortBy intel.ProductSort, desc bool, offset, limit int) (intel.ProductPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []intel.Product
	for _, p := range s.products {
		if p.DiscoveryKeyword == keyword {
			all = append(all, *p)
		}
	}
	if len(all) == 0 {
		return intel.ProductPage{}, intel.ErrNotFound
	}

	less := productLess(sortBy, s.traffic)
	sort.Slice(all, func(i, j int) bool {
		if desc {
			return less(all[j], all[i])
		}
		return less(all[i], all[j])
	})

	total := len(all)
	if offset >= total {
		return intel.ProductPage{Products: []intel.Product{}, Total: total}, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return intel.ProductPage{Products: all[offset:end], Total: total}, nil
}

func productLess(sortBy intel.ProductSort, traffic map[int64]*intel.TrafficIntelligence) func(a, b intel.Product) bool {
	switch sortBy {
	case intel.SortBrandName:
		return func(a, b intel.Product) bool {
			return strings.ToLower(sv(a.BrandName)) < strings.ToLower(sv(b.BrandName))
		}
	case intel.SortBrandDomain:
		return func(a, b intel.Product) bool { return a.BrandDomain < b.BrandDomain }
	case intel.SortDiscoveredAt:
		return func(a, b intel.Product) bool { return a.FirstDiscovered.Before(b.FirstDiscovered) }
	default: // monthly_visits
		visits := func(p intel.Product) int64 {
			if t, ok := traffic[p.ID]; ok && t.MonthlyVisits != nil {
				return *t.MonthlyVisits
			}
			return 0
		}
		return func(a, b intel.Product) bool { return visits(a) < visits(b) }
	}
}

func sv(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// ExistingDomains implements intel.Store.
func (s *Store) ExistingDomains(_ context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.products))
	for domain := range s.products {
		out[domain] = struct{}{}
	}
	return out, nil
}

// UpsertTraffic implements intel.Store.
func (s *Store) UpsertTraffic(_ context.Context, t intel.TrafficIntelligence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.traffic[t.ProductID]; ok {
		existing.MonthlyVisits = t.MonthlyVisits
		existing.DataSource = t.DataSource
		existing.CollectedAt = time.Now()
		return nil
	}
	s.nextTrafficID++
	t.ID = s.nextTrafficID
	t.CollectedAt = time.Now()
	cp := t
	s.traffic[t.ProductID] = &cp
	return nil
}

// TrafficForProducts implements intel.Store.
func (s *Store) TrafficForProducts(_ context.Context, productIDs []int64) (map[int64]intel.TrafficIntelligence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]intel.TrafficIntelligence)
	for _, id := range productIDs {
		if t, ok := s.traffic[id]; ok {
			out[id] = *t
		}
	}
	return out, nil
}

// DeleteKeywordResults implements intel.Store.
func (s *Store) DeleteKeywordResults(_ context.Context, keyword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doomed []string
	for domain, p := range s.products {
		if p.DiscoveryKeyword == keyword {
			doomed = append(doomed, domain)
		}
	}
	_, hasKeyword := s.keywords[keyword]
	if len(doomed) == 0 && !hasKeyword {
		return intel.ErrNotFound
	}
	for _, domain := range doomed {
		delete(s.traffic, s.products[domain].ID)
		delete(s.products, domain)
	}
	delete(s.keywords, keyword)
	return nil
}

// Counts implements intel.Store.
func (s *Store) Counts(_ context.Context) (intel.StoreCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := intel.StoreCounts{
		Keywords: int64(len(s.keywords)),
		Products: int64(len(s.products)),
	}
	for _, t := range s.traffic {
		if t.MonthlyVisits != nil && *t.MonthlyVisits > 0 {
			c.ProductsWithTraffic++
		}
	}
	return c, nil
}

// Ping implements intel.Store.
func (s *Store) Ping(context.Context) error { return nil }
