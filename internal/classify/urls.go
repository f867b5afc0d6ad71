// Package classify separates directory listings from individual profile pages
// on academic sites and harvests profile links from directories.
package classify

import (
	"net/url"
	"regexp"
	"strings"
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

var excludePatterns = compileAll(
	`\.(pdf|docx?|xlsx?|pptx?|zip|jpe?g|png|gif|svg|mp4|mp3)$`,
	`/news/`, `/articles?/`, `/press/`, `/press-release`, `/events?/`, `/announcements?`,
	`/department-`, `/research-`, `/program(me)?s?/`, `/publications?/`, `/projects?/`,
	`/study/`, `/studies/`, `/research/`, `/areas?/`,
	`/category/`, `/tag/`, `/blog/`, `/discover`, `/giving/`, `/alumni`, `/about-us`,
	`/contact/`, `/search`, `/filter`, `/browse`, `/login`,
	`(^|\.)actu\.`, `(^|\.)news\.`, `\.edu/news`, `\.ac\.uk/news`,
	`ucl\.ac\.uk/(alumni|discover)`,
	`/faculty-academics/?$`, `/faculty-academics/[a-z]-[a-z]/?$`,
)

var directoryPatterns = compileAll(
	`/people/?$`, `/people/[^/]+/`,
	`/staff/?$`, `/staff/[^/]+/`,
	`/faculty/?$`, `/faculty/[^/]+/`,
	`/members?/?$`, `/members?/[^/]+/`,
	`/academic/?$`, `/academic/[^/]+/`,
	`/directory`, `/list`, `/all-`, `/browse`,
)

var facultyAcademicsPath = regexp.MustCompile(`^[^/]+/faculty-academics/[a-z0-9_-]+/?$`)

var profilePatterns = compileAll(
	`/people/[^/]+$`, `/person/[^/]+$`, `/staff/[^/]+$`, `/faculty/[^/]+$`,
	`/profile/[^/]+$`, `/profiles/[^/]+$`, `/researcher/[^/]+$`, `/academic/[^/]+$`,
	`/professor/[^/]+$`, `/members?/[^/]+$`,
	`/faculty-academics/[a-z0-9_-]+/?$`,
	`profiles\.ucl\.ac\.uk/\d+-[^/]+$`,
	`^profiles\.[^/]+/[^/]+$`,
)

// shape returns the lowercased host+path of rawURL as written and with any
// trailing slash removed. Exclusion and directory patterns see the path as
// written, so /people/academic-staff/ stays a listing; profile patterns see
// the trimmed form.
func shape(rawURL string) (raw, trimmed string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", "", false
	}
	host := strings.ToLower(u.Host)
	p := strings.ToLower(u.EscapedPath())
	raw = host + p
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return raw, host + p, true
}

// LooksLikeProfileURL reports whether rawURL has the shape of a single
// person's profile page. Exclusions are checked first, then directory shapes,
// then the person-container patterns.
func LooksLikeProfileURL(rawURL string) bool {
	raw, trimmed, ok := shape(rawURL)
	if !ok {
		return false
	}
	if matchAny(excludePatterns, raw) {
		return false
	}
	if matchAny(directoryPatterns, raw) {
		return false
	}
	if facultyAcademicsPath.MatchString(trimmed) {
		return true
	}
	return matchAny(profilePatterns, trimmed)
}

var validProfileExcludes = compileAll(
	`/story/`, `/post/`, `/magazine/`, `/media/`, `/communications/`,
)

var validProfileIncludes = compileAll(`/team/[^/]+$`)

// IsProfileShapedURL is a looser variant of LooksLikeProfileURL used as an
// academic-standing signal: it also accepts team pages and any profiles.
// subdomain, and rejects editorial paths.
func IsProfileShapedURL(rawURL string) bool {
	_, s, ok := shape(rawURL)
	if !ok {
		return false
	}
	if strings.HasPrefix(s, "profiles.") {
		return true
	}
	if matchAny(validProfileExcludes, s) {
		return false
	}
	return LooksLikeProfileURL(rawURL) || (!matchAny(excludePatterns, s) && matchAny(validProfileIncludes, s))
}

// Host returns the lowercased host of rawURL without port.
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// profilesHost returns the "profiles." sibling host for base, built from its
// last two labels.
func profilesHost(base string) string {
	labels := strings.Split(base, ".")
	if len(labels) < 2 {
		return "profiles." + base
	}
	return "profiles." + strings.Join(labels[len(labels)-2:], ".")
}

// sameSite reports whether host belongs to the base host or its profiles.
// subdomain.
func sameSite(host, base string) bool {
	if host == "" {
		return false
	}
	if host == base {
		return true
	}
	bare := strings.TrimPrefix(base, "www.")
	return host == "profiles."+bare || host == profilesHost(base)
}
