// Package catalog holds the listing browser's view logic: search and
// category filtering over an already fetched collection, and the seller
// contact link.
package catalog

import (
	"net/url"
	"strings"

	"github.com/chuka-black-market/marketplace/models"
)

// AllCategories is the wildcard category filter.
const AllCategories = "all"

// FilterOptions returns the category filter choices, wildcard first.
func FilterOptions() []string {
	return append([]string{AllCategories}, models.Categories...)
}

// Filter keeps listings whose title or description contains search
// (case-insensitive) and whose category equals category. An empty search
// matches everything; an empty or "all" category matches every category.
// The input order is preserved.
func Filter(listings []models.Listing, search, category string) []models.Listing {
	needle := strings.ToLower(search)
	out := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if category != "" && category != AllCategories && l.Category != category {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(l.Title), needle) &&
			!strings.Contains(strings.ToLower(l.Description), needle) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// ContactLink builds a WhatsApp deep link to the seller with a pre-filled
// message about the listing.
func ContactLink(phone, title string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	msg := "Hi, I'm interested in your product: " + title
	return "https://wa.me/" + digits + "?text=" + encodeURIComponent(msg)
}

// encodeURIComponent escapes like the browser function of the same name:
// spaces become %20 and !'()* stay literal.
func encodeURIComponent(s string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
	r := strings.NewReplacer("%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")
	return r.Replace(escaped)
}
