package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

const (
	nameRegexWindow   = 2000
	personCheckWindow = 3000
	maxListedNames    = 15
	maxH1Length       = 100
	maxTitlePart      = 60
)

var h1RejectExact = map[string]struct{}{
	"alumni": {}, "discovery": {}, "discover": {}, "news": {}, "events": {},
	"people": {}, "staff": {}, "faculty": {}, "home": {}, "welcome": {},
	"about": {}, "contact": {}, "overview": {}, "publications": {},
	"music": {}, "covid": {}, "therapy": {}, "education": {}, "research": {},
	"teaching": {}, "project": {}, "program": {}, "programme": {},
	"initiative": {}, "collaboration": {}, "biography": {}, "profile": {},
}

// h1RejectContains is matched against the lowercased heading padded with
// spaces; single institutional words are covered by nonNameWords.
var h1RejectContains = []string{" visiting ", " current ", "doctoral student", " sts ", " about us "}

// nonNamePhrases are multi-word fragments that never appear in a name.
var nonNamePhrases = []string{
	"school of", "faculty of", "department of", "institute of", "centre for",
	"center for", "research group", "page not found", "research interests",
	"medical image", "image analysis", "machine learning", "biomedical engineering",
	"deep learning", "computer vision", "artificial intelligence", "data science",
	"our people", "find a", "meet the", "log in", "sign in", "skip to",
}

// nonNameWords are whole words that rule a string out as a name.
var nonNameWords = map[string]struct{}{
	"department": {}, "university": {}, "institute": {}, "centre": {}, "center": {},
	"laboratory": {}, "college": {}, "school": {}, "faculty": {}, "home": {},
	"welcome": {}, "contact": {}, "directory": {}, "search": {}, "error": {},
	"404": {}, "login": {}, "news": {}, "events": {}, "about": {}, "staff": {},
	"people": {}, "profile": {}, "profiles": {}, "overview": {}, "menu": {},
	"navigation": {}, "cookie": {}, "cookies": {}, "privacy": {}, "alumni": {},
	"research": {}, "publications": {}, "teaching": {}, "biography": {},
	"lab": {}, "engineering": {}, "support": {}, "science": {}, "sciences": {},
	"studies": {}, "medicine": {}, "biology": {}, "chemistry": {}, "physics": {},
	"mathematics": {}, "informatics": {}, "computing": {}, "technology": {},
	"management": {}, "services": {}, "office": {}, "unit": {}, "group": {},
	"programme": {}, "program": {}, "division": {}, "team": {}, "members": {},
	"students": {}, "seminar": {}, "conference": {}, "project": {}, "projects": {},
}

// nameParticles may appear lowercase inside a name.
var nameParticles = map[string]struct{}{
	"van": {}, "von": {}, "de": {}, "der": {}, "den": {}, "da": {}, "di": {},
	"du": {}, "la": {}, "le": {}, "del": {}, "bin": {}, "al": {}, "dos": {},
}

var (
	acronymRe   = regexp.MustCompile(`^[A-Z]{2,6}$`)
	drProfRe    = regexp.MustCompile(`\b(?:Dr\.?|Prof\.?|Professor)\s+([A-Z][a-z]{2,}(?:\s+[A-Z][a-z]{2,}){1,2})\b`)
	listedName  = regexp.MustCompile(`(?:Dr\.?|Prof\.?|Professor)\s+[A-Z][a-z]+\s+[A-Z][a-z]+`)
	titleSplit  = regexp.MustCompile(`\s*[|–—:]\s*|\s+-\s+`)
	listingPath = regexp.MustCompile(`(/directory|/people/?$|/staff/?$|/faculty/?$|/list|/all-)`)
)

var regexNameExcludes = []string{"medical", "imaging", "analysis", "image", "research", "study"}

var listingIndicators = []string{
	"staff directory", "faculty directory", "people directory", "all staff",
	"all people", "browse by", "filter by", "search results", "view all",
}

// isPersonProfilePage rules out listings that slipped past the classifier.
func isPersonProfilePage(text, pageURL string) bool {
	head := strings.ToLower(truncate(text, nameRegexWindow))
	if listingPath.MatchString(strings.ToLower(strings.TrimSuffix(pageURL, "/"))) {
		for _, ind := range listingIndicators {
			if strings.Contains(head, ind) {
				return false
			}
		}
	}
	return len(listedName.FindAllString(truncate(text, personCheckWindow), -1)) <= maxListedNames
}

// extractName tries heading, meta, title, schema.org and free-text sources in
// order and returns the first name-shaped string.
func extractName(doc *goquery.Document, text string) string {
	if h1 := collapse(doc.Find("h1").First().Text()); acceptableH1(h1) {
		return h1
	}

	for _, sel := range []string{`meta[property="og:title"]`, `meta[name="twitter:title"]`} {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if name := firstNamePart(content, 0); name != "" {
				return name
			}
		}
	}

	if name := firstNamePart(doc.Find("title").First().Text(), maxTitlePart); name != "" {
		return name
	}

	if n := collapse(doc.Find(`[itemtype*="Person"] [itemprop="name"]`).First().Text()); looksLikeName(n) {
		return n
	}

	for _, m := range drProfRe.FindAllStringSubmatch(truncate(text, nameRegexWindow), -1) {
		candidate := m[1]
		lower := strings.ToLower(candidate)
		if containsAny(lower, regexNameExcludes) {
			continue
		}
		if looksLikeName(candidate) {
			return candidate
		}
	}
	return ""
}

func acceptableH1(h1 string) bool {
	if h1 == "" || len(h1) >= maxH1Length {
		return false
	}
	lower := strings.ToLower(h1)
	if _, ok := h1RejectExact[lower]; ok {
		return false
	}
	if containsAny(" "+lower+" ", h1RejectContains) {
		return false
	}
	return looksLikeName(h1)
}

// firstNamePart splits a page or meta title on common separators and returns
// the first name-shaped part no longer than maxLen (0 = unbounded).
func firstNamePart(title string, maxLen int) string {
	for _, part := range titleSplit.Split(collapse(title), -1) {
		part = strings.TrimSpace(part)
		if maxLen > 0 && len(part) >= maxLen {
			continue
		}
		if looksLikeName(part) {
			return part
		}
	}
	return ""
}

// looksLikeName applies shape rules: 1-4 capitalized words of plausible
// length that are not institutional or topical vocabulary.
func looksLikeName(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 2 || len(s) > 80 {
		return false
	}
	if !strings.ContainsFunc(s, unicode.IsLetter) {
		return false
	}
	if len(s) > 10 && strings.ToUpper(s) == s {
		return false
	}
	if strings.Count(s, ",") >= 2 {
		return false
	}
	if acronymRe.MatchString(s) {
		return false
	}

	lower := strings.ToLower(s)
	if containsAny(lower, nonNamePhrases) {
		return false
	}

	words := strings.Fields(s)
	for _, w := range words {
		if _, ok := nonNameWords[strings.Trim(strings.ToLower(w), ".,;:()")]; ok {
			return false
		}
	}

	if len(words) == 1 {
		w := []rune(words[0])
		return len(w) >= 5 && unicode.IsUpper(w[0]) && strings.ToUpper(words[0]) != words[0]
	}

	if len(words) > 4 {
		return false
	}
	for i, w := range words {
		if len(w) >= 20 {
			return false
		}
		if i >= 3 {
			continue
		}
		if _, ok := nameParticles[w]; ok && i > 0 {
			continue
		}
		if r := []rune(w); !unicode.IsUpper(r[0]) {
			return false
		}
	}
	return true
}

var (
	prefixRe   = regexp.MustCompile(`(?i)^(?:(?:dr|prof|professor|mr|mrs|ms)\.?\s+)+`)
	innerTitle = regexp.MustCompile(`(?i)\b(?:dr|prof|professor|mr|mrs|ms)\b\.?`)
	suffixRe   = regexp.MustCompile(`(?i)(?:,?\s*\b(?:ph\.?d|md|jr|sr|iii|ii|iv)\b\.?)+\s*$`)
	emailInRe  = regexp.MustCompile(`\S+@\S+`)
	urlInRe    = regexp.MustCompile(`(?i)(?:https?://|www\.)\S*`)
	domainInRe = regexp.MustCompile(`[a-zA-Z0-9-]+\.[a-zA-Z]{2,}(?:/\S*)?`)
	nonNameRe  = regexp.MustCompile(`[^\p{L}\p{N}_\s\-']`)
	digitsRe   = regexp.MustCompile(`\d{4,}`)
	tldRe      = regexp.MustCompile(`(?i)\.(com|org|edu|ac|uk|gov|net)\b`)
	pathRe     = regexp.MustCompile(`/[a-z]`)
)

// cleanName strips honorifics, degree suffixes, embedded addresses and stray
// punctuation.
func cleanName(name string) string {
	s := collapse(name)
	s = prefixRe.ReplaceAllString(s, "")
	s = suffixRe.ReplaceAllString(s, "")
	s = emailInRe.ReplaceAllString(s, " ")
	s = urlInRe.ReplaceAllString(s, " ")
	s = domainInRe.ReplaceAllString(s, " ")
	s = innerTitle.ReplaceAllString(s, " ")
	s = strings.TrimPrefix(strings.TrimSpace(s), "essor ")
	s = nonNameRe.ReplaceAllString(s, "")
	return collapse(s)
}

// isURLOrInvalid rejects cleaned names that are still address-shaped.
func isURLOrInvalid(name string) bool {
	lower := strings.ToLower(name)
	return len(name) < 2 || len(name) > 100 ||
		strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") ||
		strings.Contains(lower, "www.") || tldRe.MatchString(lower) ||
		pathRe.MatchString(lower) || digitsRe.MatchString(name)
}

// splitName returns first and last name using positional rules.
func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch {
	case len(parts) == 0:
		return "", ""
	case len(parts) == 1:
		return "", parts[0]
	case len(parts) == 2:
		return parts[0], parts[1]
	case len(parts) == 3 && len(strings.TrimSuffix(parts[1], ".")) <= 2:
		return parts[0], parts[2]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
