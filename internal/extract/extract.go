// Package extract turns a fetched profile page into a candidate record, or
// reports the first gate the page failed.
package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/supervisor-cli/internal/classify"
	"github.com/sells-group/supervisor-cli/internal/identity"
	"github.com/sells-group/supervisor-cli/internal/model"
)

// Reason names the gate a page failed.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonDomainMismatch  Reason = "domain_mismatch"
	ReasonNotAPerson      Reason = "not_a_person"
	ReasonNoName          Reason = "no_name"
	ReasonInvalidName     Reason = "invalid_name"
	ReasonBlankProfile    Reason = "blank_profile_page"
	ReasonNoAcademicTitle Reason = "no_academic_title"
	ReasonStudentPostdoc  Reason = "student_postdoc"
	ReasonNegativeKeyword Reason = "negative_keyword"
	ReasonVeryLowFitScore Reason = "very_low_fit_score"
)

// MinProvisionalFitScore is the LLM score floor for non-PI pages.
const MinProvisionalFitScore = 0.1

// KeywordExtractor reads research keywords and a provisional fit score from
// page text.
type KeywordExtractor interface {
	ExtractProfileKeywords(ctx context.Context, pageText string, profile model.ResearchProfile) model.ProfileKeywords
}

// Options relaxes individual gates.
type Options struct {
	AllowStudentPostdoc bool
	// AllowLowFitScore skips the provisional score floor, for manual adds.
	AllowLowFitScore bool
}

// Extractor builds candidates from profile pages.
type Extractor struct {
	keywords KeywordExtractor
}

// New creates an Extractor.
func New(keywords KeywordExtractor) *Extractor {
	return &Extractor{keywords: keywords}
}

// Extract runs the gate sequence over page. On success it returns the
// candidate and ReasonNone; otherwise nil and the failing gate. The fit
// score on the returned candidate is the LLM's provisional score.
func (e *Extractor) Extract(ctx context.Context, page model.Page, uni model.University, profile model.ResearchProfile, opts Options) (*model.Candidate, Reason) {
	if !DomainMatches(classify.Host(page.URL), uni.Domain) {
		return nil, ReasonDomainMismatch
	}

	doc := classify.Parse(page.HTML)
	text := augmentText(doc, page.Text)

	if !isPersonProfilePage(text, page.URL) {
		return nil, ReasonNotAPerson
	}
	raw := extractName(doc, text)
	if raw == "" {
		return nil, ReasonNoName
	}
	name := cleanName(raw)
	if name == "" || isURLOrInvalid(name) {
		return nil, ReasonInvalidName
	}

	if isBlankProfilePage(doc, text) {
		return nil, ReasonBlankProfile
	}

	pi := hasPISignal(text)
	if !hasAcademicTitle(text) && !pi && !classify.IsProfileShapedURL(page.URL) {
		return nil, ReasonNoAcademicTitle
	}
	if !pi && !opts.AllowStudentPostdoc && hasJuniorRole(text) {
		return nil, ReasonStudentPostdoc
	}

	email, confidence, evidence := extractEmail(doc, text)
	title := extractTitle(text)
	homepage, pubs := extractLinks(doc, page.URL)

	lower := strings.ToLower(text)
	for _, neg := range profile.Negative {
		if n := strings.ToLower(strings.TrimSpace(neg)); n != "" && strings.Contains(lower, n) {
			return nil, ReasonNegativeKeyword
		}
	}

	var kw model.ProfileKeywords
	if e.keywords != nil {
		kw = e.keywords.ExtractProfileKeywords(ctx, text, profile)
	}
	if kw.FitScore < MinProvisionalFitScore && !pi && !opts.AllowLowFitScore {
		return nil, ReasonVeryLowFitScore
	}

	first, last := splitName(name)
	notes := kw.Reason
	if pi {
		if notes != "" {
			notes += " | "
		}
		notes += "Principal Investigator/Group Leader"
	}

	c := &model.Candidate{
		Name:             name,
		FirstName:        first,
		LastName:         last,
		Title:            title,
		Institution:      uni.Institution,
		Domain:           uni.Domain,
		Country:          uni.Country,
		Region:           uni.Region,
		QSRank:           uni.QSRank,
		Email:            email,
		EmailConfidence:  confidence,
		ProfileURL:       page.URL,
		Homepage:         homepage,
		Keywords:         kw.Keywords,
		PublicationLinks: pubs,
		ScholarURL:       ScholarURL(name),
		FitScore:         kw.FitScore,
		Tier:             model.TierAdjacent,
		SourceURL:        page.URL,
		EvidenceEmail:    evidence,
		Notes:            notes,
	}
	if evidence != "" {
		c.EvidenceSnippets = []string{"Email: " + evidence}
	}
	c.CanonicalID = identity.CanonicalID(c.Email, c.Name, c.Institution, c.Domain, c.ProfileURL)

	zap.L().Debug("extract: candidate built",
		zap.String("name", c.Name),
		zap.String("url", page.URL),
		zap.String("email_confidence", string(confidence)),
		zap.Bool("pi", pi),
	)
	return c, ReasonNone
}
