package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/supervisor-cli/internal/model"
)

const (
	evidenceWindow  = 30
	maxPublications = 5
)

var (
	emailRe     = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	mailtoEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
)

var genericEmailMarkers = []string{"noreply", "no-reply", "info@", "admin@", "contact@", "enquir", "webmaster@", "office@"}

func isGenericEmail(email string) bool {
	return containsAny(strings.ToLower(email), genericEmailMarkers)
}

// extractEmail prefers a mailto link (high), then an address in page text
// (medium). The evidence is the mailto target or the surrounding text.
func extractEmail(doc *goquery.Document, text string) (string, model.EmailConfidence, string) {
	var found string
	doc.Find(`a[href^="mailto:"], a[href^="MAILTO:"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		addr := href[len("mailto:"):]
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		if decoded, err := url.PathUnescape(addr); err == nil {
			addr = decoded
		}
		addr = strings.TrimSpace(addr)
		if mailtoEmail.MatchString(addr) && !isGenericEmail(addr) {
			found = addr
			return false
		}
		return true
	})
	if found != "" {
		return found, model.EmailHigh, "mailto:" + found
	}

	for _, loc := range emailRe.FindAllStringIndex(text, -1) {
		addr := strings.TrimRight(text[loc[0]:loc[1]], ".")
		if isGenericEmail(addr) {
			continue
		}
		start := max(0, loc[0]-evidenceWindow)
		end := min(len(text), loc[1]+evidenceWindow)
		return addr, model.EmailMedium, collapse(text[start:end])
	}
	return "", model.EmailNone, ""
}

// acceptableTitles are searched longest first.
var acceptableTitles = []struct {
	re    *regexp.Regexp
	title string
}{
	{regexp.MustCompile(`(?i)\bAssociate Professor\b`), "Associate Professor"},
	{regexp.MustCompile(`(?i)\bAssistant Professor\b`), "Assistant Professor"},
	{regexp.MustCompile(`(?i)\bProfessor\b`), "Professor"},
	{regexp.MustCompile(`(?i)\bReader\b`), "Reader"},
	{regexp.MustCompile(`(?i)\bProf\.`), "Professor"},
}

func extractTitle(text string) string {
	for _, t := range acceptableTitles {
		if t.re.MatchString(text) {
			return t.title
		}
	}
	return ""
}

var (
	homepageMarkers    = []string{"homepage", "home page", "personal page", "website"}
	publicationMarkers = []string{"publication", "paper", "research output", "scholar", "orcid"}
)

// extractLinks returns the personal homepage and up to maxPublications
// publication links found in anchors.
func extractLinks(doc *goquery.Document, pageURL string) (string, []string) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", nil
	}

	var homepage string
	var pubs []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := absolute(base, href)
		if abs == "" {
			return
		}
		label := strings.ToLower(collapse(s.Text()))

		if homepage == "" && containsAny(label, homepageMarkers) {
			homepage = abs
		}
		if len(pubs) >= maxPublications {
			return
		}
		if containsAny(label, publicationMarkers) || containsAny(strings.ToLower(href), publicationMarkers) {
			if _, ok := seen[abs]; !ok {
				seen[abs] = struct{}{}
				pubs = append(pubs, abs)
			}
		}
	})
	return homepage, pubs
}

func absolute(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "mailto:") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

// ScholarURL builds a Google Scholar author search for name.
func ScholarURL(name string) string {
	return "https://scholar.google.com/scholar?q=" + url.QueryEscape(`author:"`+name+`"`)
}
