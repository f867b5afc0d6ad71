// Package selection filters, deduplicates and picks the final candidate set.
package selection

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/sells-group/supervisor-cli/internal/model"
)

// Reason explains why a candidate failed validation.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonNameTooShort    Reason = "no_name_or_too_short"
	ReasonNoInstitution   Reason = "no_institution"
	ReasonNoSourceURL     Reason = "no_source_url"
	ReasonInvalidEmail    Reason = "invalid_email_format"
	ReasonInvalidURL      Reason = "invalid_profile_url_format"
	ReasonVeryLowFitScore Reason = "very_low_fit_score"
)

const (
	minFitScoreForNonPI = 0.1
	minFieldLength      = 2
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var piNoteSignals = []string{"principal investigator", "pi", "group leader", "lab head", "lab director"}

var piKeywordSignals = []string{"principal investigator", "pi", "group leader", "lab head"}

// Validate reports whether c is complete enough to keep.
func Validate(c model.Candidate) (bool, Reason) {
	if len(strings.TrimSpace(c.Name)) < minFieldLength {
		return false, ReasonNameTooShort
	}
	if len(strings.TrimSpace(c.Institution)) < minFieldLength {
		return false, ReasonNoInstitution
	}
	if strings.TrimSpace(c.SourceURL) == "" {
		return false, ReasonNoSourceURL
	}
	if c.Email != "" && !emailRe.MatchString(c.Email) {
		return false, ReasonInvalidEmail
	}
	if c.ProfileURL != "" {
		u, err := url.Parse(c.ProfileURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false, ReasonInvalidURL
		}
	}
	if c.FitScore < minFitScoreForNonPI && !HasPISignal(c) {
		return false, ReasonVeryLowFitScore
	}
	return true, ReasonNone
}

// HasPISignal reports whether notes or keywords mark c as a principal
// investigator or lab head. Matching is on whole words.
func HasPISignal(c model.Candidate) bool {
	if containsPhrase(wordsOf(c.Notes), piNoteSignals) {
		return true
	}
	return containsPhrase(wordsOf(strings.Join(c.Keywords, " ")), piKeywordSignals)
}

// wordsOf lowercases s and splits it on anything that is not a letter or
// digit, so "Investigator/Group" yields two words.
func wordsOf(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

func containsPhrase(text string, phrases []string) bool {
	if text == "" {
		return false
	}
	padded := " " + text + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}
