package selection

import (
	"strings"

	"github.com/sells-group/supervisor-cli/internal/identity"
	"github.com/sells-group/supervisor-cli/internal/model"
)

// Deduplicate keeps the first occurrence of each candidate. A candidate is
// dropped when its email, its name|institution pair or its profile URL has
// already been kept.
func Deduplicate(cands []model.Candidate) []model.Candidate {
	emails := make(map[string]struct{})
	names := make(map[string]struct{})
	urls := make(map[string]struct{})

	out := make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		email := strings.ToLower(strings.TrimSpace(c.Email))
		nameKey := NameKey(c)
		urlKey := profileURLKey(c.ProfileURL)

		if _, ok := emails[email]; email != "" && ok {
			continue
		}
		if _, ok := names[nameKey]; ok {
			continue
		}
		if _, ok := urls[urlKey]; urlKey != "" && ok {
			continue
		}

		if email != "" {
			emails[email] = struct{}{}
		}
		names[nameKey] = struct{}{}
		if urlKey != "" {
			urls[urlKey] = struct{}{}
		}
		out = append(out, c)
	}
	return out
}

// ValidateAndDeduplicate drops invalid candidates, counting each reason in
// drops when it is non-nil, then deduplicates the survivors.
func ValidateAndDeduplicate(cands []model.Candidate, drops map[string]int) []model.Candidate {
	valid := make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		ok, reason := Validate(c)
		if !ok {
			if drops != nil {
				drops[string(reason)]++
			}
			continue
		}
		valid = append(valid, c)
	}
	return Deduplicate(valid)
}

// NameKey is the normalized name|institution pair of c.
func NameKey(c model.Candidate) string {
	return identity.Normalize(c.Name) + "|" + identity.Normalize(c.Institution)
}

func profileURLKey(u string) string {
	return strings.TrimSuffix(strings.TrimSpace(u), "/")
}
