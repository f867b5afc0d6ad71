package scorer

import (
	"strings"

	"github.com/sells-group/supervisor-cli/internal/identity"
	"github.com/sells-group/supervisor-cli/internal/model"
)

// The arts guard stops profiles like "music education" from matching every
// generic education researcher. It only fires when the profile mixes an arts
// term with one of the domain terms below. Terms match whole words.

var artsTerms = []string{
	"music", "musical", "art", "arts", "dance", "theatre", "theater", "drama",
	"performance", "composition", "singing", "choir", "opera", "instrumental",
}

var artsDomainTerms = []string{
	"education", "therapy", "psychology", "counseling", "counselling",
	"pedagogy", "teaching", "learning", "development",
}

func passesArtsGuard(profile model.ResearchProfile, blob string) bool {
	profileWords := wordSet(identity.Normalize(strings.Join(profile.Keywords(), " ")))
	profileArts := present(artsTerms, profileWords)
	profileDomains := present(artsDomainTerms, profileWords)
	if len(profileArts) == 0 || len(profileDomains) == 0 {
		return true
	}

	candidateWords := wordSet(blob)
	if len(present(profileArts, candidateWords)) == 0 {
		return false
	}
	return len(present(profileDomains, candidateWords)) > 0
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

func present(terms []string, words map[string]struct{}) []string {
	var out []string
	for _, t := range terms {
		if _, ok := words[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
