package api

import (
	"time"

	"github.com/zrouga/CoAI-app/internal/intel"
)

type resultsResponse struct {
	Keyword    string       `json:"keyword"`
	Total      int          `json:"total_products"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
	Products   []productDTO `json:"products"`
}

// productDTO flattens a product, its ad intelligence, and its traffic row
// into the wire shape dashboards consume.
type productDTO struct {
	ID               int64     `json:"id"`
	BrandDomain      string    `json:"brand_domain"`
	BrandName        *string   `json:"brand_name,omitempty"`
	ProductPageURL   string    `json:"product_page_url"`
	DiscoveryKeyword string    `json:"discovery_keyword"`
	FirstDiscovered  time.Time `json:"first_discovered"`
	LastSeen         time.Time `json:"last_seen"`

	intel.AdIntelligence
	intel.PsychologyFlags

	MonthlyVisits    *int64     `json:"monthly_visits,omitempty"`
	TrafficSource    *string    `json:"traffic_source,omitempty"`
	TrafficCollected *time.Time `json:"traffic_collected_at,omitempty"`
}

func toProductDTOs(products []intel.Product, traffic map[int64]intel.TrafficIntelligence) []productDTO {
	out := make([]productDTO, 0, len(products))
	for _, p := range products {
		dto := productDTO{
			ID:               p.ID,
			BrandDomain:      p.BrandDomain,
			BrandName:        p.BrandName,
			ProductPageURL:   p.ProductPageURL,
			DiscoveryKeyword: p.DiscoveryKeyword,
			FirstDiscovered:  p.FirstDiscovered,
			LastSeen:         p.LastSeen,
			AdIntelligence:   p.Intelligence,
			PsychologyFlags:  p.Psychology,
		}
		if t, ok := traffic[p.ID]; ok {
			dto.MonthlyVisits = t.MonthlyVisits
			src := t.DataSource
			dto.TrafficSource = &src
			collected := t.CollectedAt
			dto.TrafficCollected = &collected
		}
		out = append(out, dto)
	}
	return out
}
