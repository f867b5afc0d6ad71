package scorer

import (
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/sells-group/supervisor-cli/internal/config"
	"github.com/sells-group/supervisor-cli/internal/identity"
	"github.com/sells-group/supervisor-cli/internal/model"
)

// Result is the outcome of scoring one candidate.
type Result struct {
	FitScore     float64
	Tier         model.Tier
	MatchedTerms []string
}

// Scorer applies the rule-based relevance formula.
type Scorer struct {
	cfg config.ScoringConfig
}

// New creates a Scorer. Zero-valued thresholds fall back to DefaultConfig.
func New(cfg config.ScoringConfig) *Scorer {
	if cfg.CoreThreshold == 0 {
		cfg = DefaultConfig()
	}
	return &Scorer{cfg: cfg}
}

// Config returns the constants in use.
func (s *Scorer) Config() config.ScoringConfig { return s.cfg }

// Score computes fit score, tier and matched terms for c against profile.
func (s *Scorer) Score(profile model.ResearchProfile, c model.Candidate) Result {
	blob := identity.Normalize(strings.Join([]string{
		c.Name, c.Title, c.Institution, strings.Join(c.Keywords, " "),
	}, " "))

	for _, neg := range profile.Negative {
		if n := identity.Normalize(neg); n != "" && strings.Contains(blob, n) {
			return Result{FitScore: 0, Tier: model.TierAdjacent}
		}
	}

	if !passesArtsGuard(profile, blob) {
		return Result{FitScore: 0, Tier: model.TierAdjacent}
	}

	coreHits := matches(profile.Core, blob)
	adjHits := matches(profile.Adjacent, blob)

	score := math.Min(maxCoreContribution, float64(len(coreHits))*s.cfg.CoreWeight) +
		math.Min(maxAdjacentContribution, float64(len(adjHits))*s.cfg.AdjacentWeight)
	if c.Email != "" {
		score += s.cfg.EmailBonus
		if c.EmailConfidence == model.EmailHigh {
			score += s.cfg.HighEmailBonus
		}
	}
	score = clamp(round6(score))

	tier := model.TierAdjacent
	if score >= s.cfg.CoreThreshold {
		tier = model.TierCore
	}

	return Result{
		FitScore:     score,
		Tier:         tier,
		MatchedTerms: dedupeTerms(append(coreHits, adjHits...)),
	}
}

// Apply scores c in place.
func (s *Scorer) Apply(profile model.ResearchProfile, c *model.Candidate) {
	r := s.Score(profile, *c)
	c.FitScore = r.FitScore
	c.Tier = r.Tier
	c.MatchedTerms = r.MatchedTerms
}

// EffectiveCoreThreshold returns the Core cut-off for a final batch: the
// lower of the configured threshold and the score at the retier percentile
// (descending) when that score is positive.
func (s *Scorer) EffectiveCoreThreshold(cands []model.Candidate) float64 {
	if len(cands) == 0 {
		return s.cfg.CoreThreshold
	}
	scores := make([]float64, len(cands))
	for i, c := range cands {
		scores[i] = c.FitScore
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	idx := 0
	if n := len(scores); n > 2 {
		idx = int(float64(n) * s.cfg.RetierPercentile)
		if idx >= n {
			idx = n - 1
		}
	}
	if v := scores[idx]; v > 0 {
		return math.Min(s.cfg.CoreThreshold, v)
	}
	return s.cfg.CoreThreshold
}

// ScoreAndTier retiers a final batch in place against the effective Core
// threshold and returns it.
func (s *Scorer) ScoreAndTier(cands []model.Candidate) []model.Candidate {
	threshold := s.EffectiveCoreThreshold(cands)
	for i := range cands {
		if cands[i].FitScore >= threshold {
			cands[i].Tier = model.TierCore
		} else {
			cands[i].Tier = model.TierAdjacent
		}
	}
	return cands
}

// Rank orders candidates Core first, then by descending score. The sort is
// stable so equal candidates keep their input order.
func Rank(cands []model.Candidate) {
	slices.SortStableFunc(cands, func(a, b model.Candidate) int {
		ac, bc := a.Tier == model.TierCore, b.Tier == model.TierCore
		if ac != bc {
			if ac {
				return -1
			}
			return 1
		}
		switch {
		case a.FitScore > b.FitScore:
			return -1
		case a.FitScore < b.FitScore:
			return 1
		}
		return 0
	})
}

func matches(keywords []string, blob string) []string {
	var out []string
	for _, kw := range keywords {
		if n := identity.Normalize(kw); n != "" && strings.Contains(blob, n) {
			out = append(out, kw)
		}
	}
	return out
}

func dedupeTerms(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		k := identity.Normalize(t)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}

// round6 drops float noise such as 0.30000000000000004 so threshold
// comparisons stay stable.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
