package apify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zrouga/CoAI-app/internal/intel"
)

// adItem is the subset of the ad-library actor's dataset schema we consume.
type adItem struct {
	PageName    string   `json:"page_name"`
	StartDate   int64    `json:"start_date"`
	Platforms   []string `json:"publisher_platform"`
	Countries   []string `json:"targeted_or_reached_countries"`
	TotalActive int      `json:"total_active_ads"`
	Spend       bounds   `json:"spend"`
	Impressions bounds   `json:"impressions"`
	Snapshot    snapshot `json:"snapshot"`
}

type bounds struct {
	Lower *flexInt64 `json:"lower_bound"`
	Upper *flexInt64 `json:"upper_bound"`
}

// flexInt64 decodes from either a JSON number or a quoted numeric string; the
// actor has shipped both encodings.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse bound %q: %w", s, err)
	}
	*f = flexInt64(v)
	return nil
}

type snapshot struct {
	LinkURL string `json:"link_url"`
	CTAType string `json:"cta_type"`
	CTAText string `json:"cta_text"`
	Body    struct {
		Text string `json:"text"`
	} `json:"body"`
	Title string `json:"title"`
}

// toProduct maps the raw ad onto a product. ok=false means the ad has no
// usable landing domain and should be skipped.
func (a adItem) toProduct() (intel.Product, bool) {
	domain := NormalizeDomain(a.Snapshot.LinkURL)
	if domain == "" {
		return intel.Product{}, false
	}

	p := intel.Product{
		BrandDomain:    domain,
		ProductPageURL: a.Snapshot.LinkURL,
		Intelligence:   a.intelligence(),
		Psychology:     a.psychology(),
	}
	if name := strings.TrimSpace(a.PageName); name != "" {
		p.BrandName = &name
	}
	return p, true
}

func (a adItem) intelligence() intel.AdIntelligence {
	var ai intel.AdIntelligence

	if a.StartDate > 0 {
		days := int(time.Since(time.Unix(a.StartDate, 0)).Hours() / 24)
		if days > 0 {
			ai.CampaignDurationDays = &days
		}
	}
	if a.TotalActive > 0 {
		total := a.TotalActive
		ai.TotalActiveAds = &total
	}

	ai.MinMonthlySpend, ai.MaxMonthlySpend, ai.EstMonthlySpend = a.Spend.triple()
	ai.MinMonthlyImpr, ai.MaxMonthlyImpr, ai.EstMonthlyImpr = a.Impressions.triple()

	if len(a.Platforms) > 0 {
		n := len(a.Platforms)
		joined := strings.Join(a.Platforms, ",")
		ai.PlatformsCount = &n
		ai.Platforms = &joined
	}
	if len(a.Countries) > 0 {
		n := len(a.Countries)
		joined := strings.Join(a.Countries, ",")
		ai.CountriesCount = &n
		ai.Countries = &joined
	}
	return ai
}

// triple returns the reported bounds plus their midpoint as the estimate.
func (b bounds) triple() (lo, hi, est *int64) {
	if b.Lower == nil && b.Upper == nil {
		return nil, nil, nil
	}
	if b.Lower != nil {
		v := int64(*b.Lower)
		lo = &v
	}
	if b.Upper != nil {
		v := int64(*b.Upper)
		hi = &v
	}
	var mid int64
	switch {
	case lo != nil && hi != nil:
		mid = (*lo + *hi) / 2
	case lo != nil:
		mid = *lo
	default:
		mid = *hi
	}
	est = &mid
	return lo, hi, est
}

var themePatterns = []struct {
	theme string
	terms []string
}{
	{"discount", []string{"% off", "sale", "discount", "save ", "deal"}},
	{"urgency", []string{"limited time", "hurry", "act now", "last chance", "today only", "ends soon", "while supplies last"}},
	{"purchase_cta", []string{"shop now", "buy now", "order now", "get yours", "add to cart"}},
	{"social_proof", []string{"reviews", "customers", "rated", "trusted by", "best seller", "bestseller", "5-star"}},
	{"free_shipping", []string{"free shipping", "free delivery"}},
}

var purchaseCTATypes = map[string]bool{
	"SHOP_NOW":   true,
	"BUY_NOW":    true,
	"ORDER_NOW":  true,
	"GET_OFFER":  true,
	"SUBSCRIBE":  true,
	"SIGN_UP":    false,
	"LEARN_MORE": false,
}

// psychology scans the creative text for promotional-strategy signals. The
// flags are tri-state on the wire, so a scanned ad always reports explicit
// true/false rather than absent.
func (a adItem) psychology() intel.PsychologyFlags {
	text := strings.ToLower(a.Snapshot.Body.Text + " " + a.Snapshot.Title + " " + a.Snapshot.CTAText)

	found := make(map[string]bool, len(themePatterns))
	var themes []string
	for _, tp := range themePatterns {
		for _, term := range tp.terms {
			if strings.Contains(text, term) {
				found[tp.theme] = true
				themes = append(themes, tp.theme)
				break
			}
		}
	}
	if purchaseCTATypes[a.Snapshot.CTAType] {
		if !found["purchase_cta"] {
			themes = append(themes, "purchase_cta")
		}
		found["purchase_cta"] = true
	}

	flags := intel.PsychologyFlags{
		DiscountOffer:   bp(found["discount"]),
		UrgencyLanguage: bp(found["urgency"]),
		PurchaseCTA:     bp(found["purchase_cta"]),
		SocialProof:     bp(found["social_proof"]),
		FreeShipping:    bp(found["free_shipping"]),
	}
	if a.Snapshot.CTAType != "" {
		cta := a.Snapshot.CTAType
		flags.PrimaryCTA = &cta
	}
	if len(themes) > 0 {
		joined := strings.Join(themes, ",")
		flags.CreativeThemes = &joined
	}
	return flags
}

func bp(v bool) *bool { return &v }
