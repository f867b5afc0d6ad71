package model

import "time"

// EmailConfidence grades how an email address was found.
type EmailConfidence string

const (
	EmailHigh   EmailConfidence = "high"
	EmailMedium EmailConfidence = "medium"
	EmailLow    EmailConfidence = "low"
	EmailNone   EmailConfidence = "none"
)

// Verified reports whether the confidence counts as a verification.
func (c EmailConfidence) Verified() bool {
	return c == EmailHigh || c == EmailMedium
}

// Tier is the relevance band of a scored candidate.
type Tier string

const (
	TierCore     Tier = "Core"
	TierAdjacent Tier = "Adjacent"
)

// Candidate is a potential supervisor.
type Candidate struct {
	CanonicalID      string          `json:"canonical_id"`
	Name             string          `json:"name"`
	FirstName        string          `json:"first_name,omitempty"`
	LastName         string          `json:"last_name,omitempty"`
	Title            string          `json:"title,omitempty"`
	Institution      string          `json:"institution"`
	Domain           string          `json:"domain,omitempty"`
	Country          string          `json:"country,omitempty"`
	Region           string          `json:"region,omitempty"`
	QSRank           int             `json:"qs_rank,omitempty"`
	Email            string          `json:"email,omitempty"`
	EmailConfidence  EmailConfidence `json:"email_confidence"`
	ProfileURL       string          `json:"profile_url,omitempty"`
	Homepage         string          `json:"homepage,omitempty"`
	Keywords         []string        `json:"keywords,omitempty"`
	PublicationLinks []string        `json:"publication_links,omitempty"`
	ScholarURL       string          `json:"scholar_url,omitempty"`
	FitScore         float64         `json:"fit_score"`
	Tier             Tier            `json:"tier"`
	MatchedTerms     []string        `json:"matched_terms,omitempty"`
	SourceURL        string          `json:"source_url"`
	EvidenceEmail    string          `json:"evidence_email,omitempty"`
	EvidenceSnippets []string        `json:"evidence_snippets,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	FromLocalDB      bool            `json:"from_local_db,omitempty"`
	LastSeenAt       time.Time       `json:"last_seen_at,omitzero"`
	LastVerifiedAt   *time.Time      `json:"last_verified_at,omitempty"`
}

// Page is the fetcher's view of one URL. StatusCode 0 means the fetch failed.
type Page struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	HTML       string `json:"html"`
	Text       string `json:"text"`
	FromCache  bool   `json:"from_cache,omitempty"`
}

// OK reports whether the page was fetched with a 200.
func (p Page) OK() bool { return p.StatusCode == 200 }

// SearchResult is one ranked web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// ProfileKeywords is the LLM's read of a profile page.
type ProfileKeywords struct {
	Keywords []string `json:"keywords"`
	FitScore float64  `json:"fit_score"`
	Reason   string   `json:"one_sentence_reason"`
}
