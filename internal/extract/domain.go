package extract

import (
	"regexp"
	"strings"
)

var universityHost = regexp.MustCompile(`(\.ac\.uk$|\.edu$|\.ac\.|\.edu\.|university)`)

// blockedHosts look academic but host no faculty profiles.
var blockedHosts = []string{
	"ncfdd.org", "statecancerprofiles.cancer.gov", "cps.edu", "institut-curie.org",
}

// DomainMatches reports whether host belongs to the university domain: an
// exact match, a profiles. subdomain, a subdomain, or host being a parent of
// domain. Every comparison is a suffix on a label boundary, so
// ox.ac.uk.evil.com does not pass for ox.ac.uk. With an empty domain any
// university-looking host passes.
func DomainMatches(host, domain string) bool {
	host = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
	if host == "" {
		return false
	}

	if domain == "" {
		for _, b := range blockedHosts {
			if host == b || strings.HasSuffix(host, "."+b) {
				return false
			}
		}
		return universityHost.MatchString(host)
	}

	if host == domain {
		return true
	}
	if bare, ok := strings.CutPrefix(host, "profiles."); ok {
		if bare == domain || strings.HasSuffix(bare, "."+domain) {
			return true
		}
	}
	if strings.HasSuffix(host, "."+domain) {
		return true
	}
	return strings.HasSuffix(domain, "."+host)
}
