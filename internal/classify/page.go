package classify

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DirectoryMinProfileLinks is the profile-link count at which a page is
	// a directory regardless of other signals.
	DirectoryMinProfileLinks = 8
	// DirectoryConservativeThreshold is the fallback link count used when no
	// stronger signal resolves the page.
	DirectoryConservativeThreshold = 5

	indicatorWindow = 3000
)

var directoryIndicators = []string{
	"all members", "all staff", "all faculty", "all people", "browse by",
	"filter by", "search results", "view all", "staff directory",
	"faculty directory", "people directory", "member directory",
	"researcher directory", "academic staff", "faculty members",
	"our people", "our faculty", "our staff",
}

var headingDirectoryTerms = []string{
	"directory", "staff", "faculty", "people", "members", "browse", "search", "filter",
}

var profileSections = []string{
	"biography", "research", "publications", "contact", "education",
	"experience", "interests", "teaching", "awards", "grants",
}

// Parse builds a goquery document from raw HTML. A parse failure yields an
// empty document so callers can keep going on text-only signals.
func Parse(html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	return doc
}

// IsDirectoryLikePage decides whether a fetched page lists many people rather
// than describing one. Strong directory signals are checked first, then
// person-positive signals, then a weak link-count fallback.
func IsDirectoryLikePage(text, html, pageURL string) bool {
	return IsDirectoryLikeDoc(text, Parse(html), pageURL)
}

// IsDirectoryLikeDoc is IsDirectoryLikePage over an already parsed document.
func IsDirectoryLikeDoc(text string, doc *goquery.Document, pageURL string) bool {
	links := countProfileLinks(doc, pageURL)
	if links >= DirectoryMinProfileLinks {
		return true
	}

	window := text
	if len(window) > indicatorWindow {
		window = window[:indicatorWindow]
	}
	lower := strings.ToLower(window)
	for _, ind := range directoryIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}

	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" && looksLikePersonHeading(h1, true) {
		return false
	}

	sections := 0
	for _, s := range profileSections {
		if strings.Contains(lower, s) {
			sections++
		}
	}
	if sections >= 2 {
		return false
	}

	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && looksLikePersonHeading(og, false) {
		return false
	}

	return links >= DirectoryConservativeThreshold
}

// looksLikePersonHeading reports whether heading reads like a 2-4 word
// personal name. The h1 check also requires every word to be capitalized.
func looksLikePersonHeading(heading string, requireCaps bool) bool {
	lower := strings.ToLower(heading)
	for _, term := range headingDirectoryTerms {
		if strings.Contains(lower, term) {
			return false
		}
	}
	words := strings.Fields(heading)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	if requireCaps {
		if strings.Contains(" "+lower+" ", " all ") {
			return false
		}
		for _, w := range words {
			r := []rune(w)
			if !unicode.IsUpper(r[0]) {
				return false
			}
		}
	}
	return true
}

func countProfileLinks(doc *goquery.Document, pageURL string) int {
	base, err := url.Parse(pageURL)
	if err != nil {
		return 0
	}
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := resolve(base, href)
		if abs == "" {
			return
		}
		if LooksLikeProfileURL(abs) {
			seen[abs] = struct{}{}
		}
	})
	return len(seen)
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

// ExtractProfileURLs returns the deduplicated profile-shaped links on a page
// that stay on the page's host or its profiles. subdomain, in document order.
func ExtractProfileURLs(html, baseURL string) []string {
	return ExtractProfileURLsDoc(Parse(html), baseURL)
}

// ExtractProfileURLsDoc is ExtractProfileURLs over a parsed document.
func ExtractProfileURLsDoc(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	baseHost := strings.ToLower(base.Hostname())

	var out []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := resolve(base, href)
		if abs == "" {
			return
		}
		if !sameSite(Host(abs), baseHost) || !LooksLikeProfileURL(abs) {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	})
	return out
}

const paginationSelector = `a.page-link, a.pagination-link, .pagination a, a[rel="next"], .pager a`

// FindPaginationLinks returns same-host links found in common pager markup.
func FindPaginationLinks(html, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	baseHost := strings.ToLower(base.Hostname())
	self := strings.TrimSuffix(base.String(), "/")

	var out []string
	seen := make(map[string]struct{})
	Parse(html).Find(paginationSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := resolve(base, href)
		if abs == "" || Host(abs) != baseHost || strings.TrimSuffix(abs, "/") == self {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	})
	return out
}
