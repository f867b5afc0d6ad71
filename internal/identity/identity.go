// Package identity normalizes free text and derives the stable candidate
// identifier used for deduplication across runs.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	lower   = cases.Lower(language.Und)
)

// Normalize lowercases text, collapses whitespace and strips everything that
// is not a letter, digit, underscore or space. The output is for matching and
// hashing only, never for display.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := strings.Join(strings.Fields(lower.String(text)), " ")
	s = nonWord.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// CanonicalID returns the deduplication key for a candidate. A non-empty email
// wins outright; otherwise the key is a SHA-1 over the normalized name,
// institution and domain (or the host of profileURL when domain is empty).
func CanonicalID(email, name, institution, domain, profileURL string) string {
	if e := strings.ToLower(strings.TrimSpace(email)); e != "" {
		return e
	}

	host := domain
	if host == "" && profileURL != "" {
		if u, err := url.Parse(profileURL); err == nil {
			host = u.Host
		}
	}

	key := Normalize(name) + "|" + Normalize(institution) + "|" + Normalize(host)
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}
