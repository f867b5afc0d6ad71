package selection

import (
	"math"
	"slices"
	"strings"

	"github.com/sells-group/supervisor-cli/internal/model"
	"github.com/sells-group/supervisor-cli/internal/scorer"
)

// RelevanceFloor is the minimum score for the first selection stage and for
// SelectTopN.
const RelevanceFloor = 0.15

// stageThresholds are tried in order at each cap level.
var stageThresholds = []float64{RelevanceFloor, 0.10, 0.05, 0.0}

// capMultipliers scale MaxPerInstitution at each relaxation level; 0 means
// uncapped.
var capMultipliers = []int{1, 2, 5, 0}

// SelectTopN keeps candidates above the relevance floor with at least one
// matched term, retiers them as a batch and returns the best n.
func SelectTopN(s *scorer.Scorer, cands []model.Candidate, n int) []model.Candidate {
	pool := make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.FitScore > RelevanceFloor && len(c.MatchedTerms) > 0 {
			pool = append(pool, c)
		}
	}
	pool = s.ScoreAndTier(pool)
	scorer.Rank(pool)
	if n >= 0 && len(pool) > n {
		pool = pool[:n]
	}
	return pool
}

// DiversityOptions controls SelectWithDiversity.
type DiversityOptions struct {
	N                 int
	MaxPerInstitution int
	// MinInstitutions seeds one pick from each of the top institutions
	// (by best score) before greedy filling, when greater than 1.
	MinInstitutions int
	// Strict never lets an institution exceed MaxPerInstitution, except
	// up to MaxRelaxedCap when that is larger and the target would
	// otherwise be missed.
	Strict        bool
	MaxRelaxedCap int
}

// stage is one (threshold, cap) attempt. limit 0 means uncapped. The
// relevance floor is exclusive, as in SelectTopN; relaxed thresholds are
// inclusive.
type stage struct {
	threshold    float64
	limit        int
	needsMatches bool
}

func (st stage) admits(c model.Candidate) bool {
	if st.needsMatches && len(c.MatchedTerms) == 0 {
		return false
	}
	if st.threshold >= RelevanceFloor {
		return c.FitScore > st.threshold
	}
	return c.FitScore >= st.threshold
}

func (o DiversityOptions) stages() []stage {
	var out []stage
	for _, needs := range []bool{true, false} {
		for _, mul := range capMultipliers {
			if o.Strict && mul != 1 {
				continue
			}
			limit := o.MaxPerInstitution * mul
			if o.MaxPerInstitution <= 0 {
				limit = 0
			}
			for _, thr := range stageThresholds {
				out = append(out, stage{threshold: thr, limit: limit, needsMatches: needs})
			}
			if o.MaxPerInstitution <= 0 {
				break
			}
		}
	}
	return out
}

// SelectWithDiversity returns up to opts.N candidates while capping any one
// institution. Stages relax the relevance threshold, then the cap, then the
// matched-terms requirement, stopping as soon as N is reached. Candidates
// are never invented: a short pool yields a short result.
func SelectWithDiversity(s *scorer.Scorer, cands []model.Candidate, opts DiversityOptions) []model.Candidate {
	if opts.N <= 0 || len(cands) == 0 {
		return nil
	}

	pool := tierAgainstEligible(s, slices.Clone(cands))
	scorer.Rank(pool)

	var best []model.Candidate
	for _, st := range opts.stages() {
		picked := greedyPick(pool, opts, st)
		if len(picked) >= opts.N {
			return finish(picked)
		}
		if len(picked) > len(best) {
			best = picked
		}
	}

	if !opts.Strict {
		top := pool
		if len(top) > opts.N {
			top = top[:opts.N]
		}
		return finish(slices.Clone(top))
	}

	if relaxed := relaxedCap(pool, opts); relaxed > opts.MaxPerInstitution {
		picked := greedyPick(pool, opts, stage{threshold: 0, limit: relaxed})
		if len(picked) > len(best) {
			best = picked
		}
	}
	return finish(best)
}

// tierAgainstEligible tiers the whole pool against the effective Core
// threshold of the first-stage set (above the relevance floor with matched
// terms), so padding from weak candidates cannot lower the cut-off.
func tierAgainstEligible(s *scorer.Scorer, pool []model.Candidate) []model.Candidate {
	first := stage{threshold: RelevanceFloor, needsMatches: true}
	var eligible []model.Candidate
	for _, c := range pool {
		if first.admits(c) {
			eligible = append(eligible, c)
		}
	}
	threshold := s.EffectiveCoreThreshold(eligible)
	for i := range pool {
		if pool[i].FitScore >= threshold {
			pool[i].Tier = model.TierCore
		} else {
			pool[i].Tier = model.TierAdjacent
		}
	}
	return pool
}

// relaxedCap is the smallest per-institution cap that could reach N given the
// distinct institutions in pool, bounded by MaxRelaxedCap. It returns 0 when
// the pool is too small for N to be reachable.
func relaxedCap(pool []model.Candidate, opts DiversityOptions) int {
	if opts.MaxRelaxedCap <= opts.MaxPerInstitution || len(pool) < opts.N {
		return 0
	}
	insts := make(map[string]struct{})
	for _, c := range pool {
		insts[institutionKey(c)] = struct{}{}
	}
	need := int(math.Ceil(float64(opts.N) / float64(len(insts))))
	return min(need, opts.MaxRelaxedCap)
}

func greedyPick(ranked []model.Candidate, opts DiversityOptions, st stage) []model.Candidate {
	eligible := make([]int, 0, len(ranked))
	for i, c := range ranked {
		if st.admits(c) {
			eligible = append(eligible, i)
		}
	}

	counts := make(map[string]int)
	taken := make(map[int]struct{})
	var picked []model.Candidate
	take := func(i int) bool {
		if len(picked) >= opts.N {
			return false
		}
		if _, ok := taken[i]; ok {
			return false
		}
		key := institutionKey(ranked[i])
		if st.limit > 0 && counts[key] >= st.limit {
			return false
		}
		counts[key]++
		taken[i] = struct{}{}
		picked = append(picked, ranked[i])
		return true
	}

	if opts.MinInstitutions > 1 {
		for _, i := range seedIndexes(ranked, eligible, opts.MinInstitutions) {
			take(i)
		}
	}
	for _, i := range eligible {
		if len(picked) >= opts.N {
			break
		}
		take(i)
	}
	return picked
}

// seedIndexes returns the best candidate of each of the top k institutions,
// ordered by that candidate's rank. Because ranked is already sorted, the
// first eligible hit per institution is its best.
func seedIndexes(ranked []model.Candidate, eligible []int, k int) []int {
	seen := make(map[string]struct{})
	var out []int
	for _, i := range eligible {
		key := institutionKey(ranked[i])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, i)
		if len(out) == k {
			break
		}
	}
	return out
}

func finish(picked []model.Candidate) []model.Candidate {
	scorer.Rank(picked)
	return picked
}

func institutionKey(c model.Candidate) string {
	return strings.ToLower(strings.TrimSpace(c.Institution))
}
