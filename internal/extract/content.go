package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	minMeaningfulLength = 300
	shortTextLength     = 100
)

var navigationRe = regexp.MustCompile(`(?i)\b(home|about|contact|search|menu|log ?in|sign in|news|events|skip to (?:main )?content|cookies?|privacy|accessibility|sitemap|back to top|share|follow us|facebook|twitter|linkedin|instagram|youtube)\b`)

var researchIndicators = []string{
	"research", "publication", "paper", "journal", "conference", "grant",
	"project", "laboratory", "lab ", "phd", "supervis", "students",
	"interests", "expertise", "teaching", "biography", "education", "award",
	"funding", "citation", "scholar", "orcid", "h-index", "collaborat",
	"theory", "method", "analysis", "study", "studies", "experiment",
	"data", "model", "science", "professor", "lecturer", "fellow",
}

var (
	sectionClassRe = regexp.MustCompile(`(?i)(bio|research|publication|interest|expertise|teaching|profile-content|about)`)
	sectionHeadRe  = regexp.MustCompile(`(?i)(research|publication|biography|interest|expertise|education|experience|background|teaching|supervision)`)
	paragraphClass = regexp.MustCompile(`(?i)(content|bio|description|about)`)
)

var basicInfoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
	regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`),
	regexp.MustCompile(`(?i)\b(office|room|building)\b`),
	regexp.MustCompile(`(?i)\b(tel|telephone|phone|fax)\b`),
}

// contentSelectors are tried when the fetcher's text is too short.
var contentSelectors = []string{
	"main", "article", ".content", ".main-content", "#content", ".profile-content", ".person-details",
}

// augmentText returns the longest text among text and the main content
// containers when text is shorter than shortTextLength.
func augmentText(doc *goquery.Document, text string) string {
	if len(text) >= shortTextLength {
		return text
	}
	best := text
	for _, sel := range contentSelectors {
		if t := collapse(doc.Find(sel).First().Text()); len(t) > len(best) {
			best = t
		}
	}
	return best
}

func countIndicators(lower string) int {
	n := 0
	for _, ind := range researchIndicators {
		if strings.Contains(lower, ind) {
			n++
		}
	}
	return n
}

// isBlankProfilePage reports pages that carry a name and contact details but
// no research content worth scoring.
func isBlankProfilePage(doc *goquery.Document, text string) bool {
	navHits := len(navigationRe.FindAllStringIndex(text, -1))
	meaningful := collapse(navigationRe.ReplaceAllString(text, " "))
	length := len(meaningful)
	if length < minMeaningfulLength {
		return true
	}

	indicators := countIndicators(strings.ToLower(meaningful))
	if indicators < 3 && length < 500 {
		return true
	}

	sections := 0
	doc.Find("section, div, article").Each(func(_ int, s *goquery.Selection) {
		if class, ok := s.Attr("class"); ok && sectionClassRe.MatchString(class) {
			sections++
		}
	})
	headings := 0
	doc.Find("h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		if sectionHeadRe.MatchString(s.Text()) {
			headings++
		}
	})
	if sections == 0 && headings == 0 && length < 400 {
		return true
	}

	if navHits > 8 && length < 500 {
		return true
	}

	basic := 0
	for _, re := range basicInfoPatterns {
		if re.MatchString(text) {
			basic++
		}
	}
	if basic >= 2 {
		if length < 500 && indicators < 2 {
			return true
		}
		if length < 800 && indicators < 1 {
			return true
		}
	}

	paragraphs := 0
	doc.Find("p, div").Each(func(_ int, s *goquery.Selection) {
		if s.Is("p") {
			paragraphs += len(collapse(s.Text()))
			return
		}
		if class, ok := s.Attr("class"); ok && paragraphClass.MatchString(class) {
			paragraphs += len(collapse(s.Text()))
		}
	})
	return paragraphs < 200 && length < 600 && indicators < 2
}

var academicTitleRe = regexp.MustCompile(`(?i)(\bprof\b|professor|\bdr\.?\s|doctor|reader|lecturer|senior lecturer|research fellow|principal investigator|\bpi\b|group leader|lab head|director|head of)`)

var piRe = regexp.MustCompile(`(?i)(principal investigator|\bpi\b|group leader|lab head|lab director|research group leader)`)

var juniorRe = regexp.MustCompile(`(?i)(ph\.?d\.? student|doctoral student|graduate student|post-?doc|postdoctoral)`)

func hasAcademicTitle(text string) bool { return academicTitleRe.MatchString(text) }

func hasPISignal(text string) bool { return piRe.MatchString(text) }

func hasJuniorRole(text string) bool { return juniorRe.MatchString(text) }
