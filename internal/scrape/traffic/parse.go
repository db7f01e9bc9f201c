package traffic

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors tried in order against the website page. SimilarWeb reshuffles
// its markup periodically, so older selectors are kept as fallbacks.
var visitSelectors = []string{
	"p[data-test='total-visits']",
	".engagement-list__item-value",
	".websiteRanks-valueContainer",
}

var compactNumberRe = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)([KMB])?$`)

// ParseVisitsHTML extracts the total-visits figure from a SimilarWeb website
// page. (nil, nil) when the page parsed but no figure was found.
func ParseVisitsHTML(page []byte) (*int64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse traffic page: %w", err)
	}

	for _, sel := range visitSelectors {
		var found *int64
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := ParseCompactNumber(s.Text()); ok && v > 0 {
				found = &v
				return false
			}
			return true
		})
		if found != nil {
			return found, nil
		}
	}
	return nil, nil
}

// ParseCompactNumber converts display figures like "402K", "1.5M", "2.3B",
// "12,345" or "987654" to an integer count.
func ParseCompactNumber(raw string) (int64, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "VISITS")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "N/A" {
		return 0, false
	}

	m := compactNumberRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	base, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "K":
		base *= 1e3
	case "M":
		base *= 1e6
	case "B":
		base *= 1e9
	}
	return int64(base), true
}
