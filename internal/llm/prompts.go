package llm

import (
	"fmt"
	"strings"

	"github.com/sells-group/supervisor-cli/internal/model"
)

const profileSystemPrompt = `You help a prospective PhD student find supervisors. Read the student's CV text and keywords and answer with one JSON object:

{
  "core_keywords": [10-20 broad research field terms that describe the student's primary area],
  "adjacent_keywords": [10-20 broader or neighbouring field terms in the same field category],
  "negative_keywords": [5-10 fields that are completely unrelated and should exclude a supervisor],
  "preferred_departments": [3-8 likely department names],
  "query_templates": [5-10 web search templates, each containing the placeholder site:{domain}]
}

Rules:
- Use high-level field names ("medical imaging", "educational psychology"), never gene names, techniques, datasets or project titles.
- Decide the primary field category first. Therapy or intervention topics taught in education or psychology departments (music therapy, art therapy) belong to psychology and education, not clinical medicine.
- Adjacent keywords must stay in the same field category as the core keywords.
- Never list engineering, computer science, physics, chemistry or mathematics as negative keywords.
- When only keywords are given, work from the keywords. When only a CV is given, work from the CV.

Answer with JSON only.`

const pageSystemPrompt = `You read the text of a university staff profile page and compare it with a student's research profile. Answer with one JSON object:

{
  "keywords": [5-12 high-level research field terms found on the page],
  "fit_score": number between 0 and 1 for how well the supervisor's field matches the student's,
  "one_sentence_reason": "short explanation of the field match"
}

Use only facts present in the page text. Judge the match on broad research fields, not on specific techniques. Answer with JSON only.`

const directorySystemPrompt = `You are given candidate URLs from one university domain. Pick the 5-10 URLs most likely to be staff, faculty or people directory pages. Answer with JSON only: {"directory_urls": ["..."]}`

func profileUserPrompt(cvText, keywords string) string {
	cvText = strings.TrimSpace(cvText)
	keywords = strings.TrimSpace(keywords)
	switch {
	case cvText == "" && keywords == "":
		cvText, keywords = "(none)", "(none)"
	case cvText == "":
		cvText = "(no CV provided, use the keywords only)"
	case keywords == "":
		keywords = "(no keywords provided, extract them from the CV)"
	}
	return fmt.Sprintf("CV:\n%s\n\nKeywords:\n%s", cvText, keywords)
}

// profileContext renders the part of the research profile that stays fixed
// for a whole run.
func profileContext(p model.ResearchProfile) string {
	return fmt.Sprintf("Student research profile:\nCore keywords: %s\nAdjacent keywords: %s",
		strings.Join(p.Core, ", "), strings.Join(p.Adjacent, ", "))
}

func pageUserPrompt(pageText string) string {
	return "Profile page text:\n" + pageText
}

func directoryUserPrompt(candidates []string, domain string) string {
	return fmt.Sprintf("Domain: %s\n\nCandidate URLs:\n%s", domain, strings.Join(candidates, "\n"))
}
