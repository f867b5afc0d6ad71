package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/supervisor-cli/internal/classify"
	"github.com/sells-group/supervisor-cli/internal/identity"
	"github.com/sells-group/supervisor-cli/internal/model"
	"github.com/sells-group/supervisor-cli/internal/selection"
	"github.com/sells-group/supervisor-cli/internal/store"
	"github.com/sells-group/supervisor-cli/internal/university"
)

func normInstitution(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// localCandidates queries the repository and keeps candidates whose
// institution is in the filtered university list, scored against profile.
// University metadata (QS rank, region, country) is taken from the list.
func (p *Pipeline) localCandidates(ctx context.Context, profile model.ResearchProfile, unis []model.University, req Request) []model.Candidate {
	recs, err := p.store.QueryCandidates(ctx, store.Filter{
		Regions:   req.Regions,
		Countries: req.Countries,
		Keywords:  profile.Keywords(),
		Limit:     p.cfg.Pipeline.LocalQueryLimit,
	})
	if err != nil {
		zap.L().Warn("pipeline: local query failed", zap.Error(err))
		return nil
	}

	byName := make(map[string]model.University, len(unis))
	for _, u := range unis {
		byName[normInstitution(u.Institution)] = u
	}

	out := make([]model.Candidate, 0, len(recs))
	for _, c := range recs {
		u, ok := byName[normInstitution(c.Institution)]
		if !ok {
			continue
		}
		c.QSRank = u.QSRank
		if c.Region == "" {
			c.Region = u.Region
		}
		if c.Country == "" {
			c.Country = u.Country
		}
		p.scorer.Apply(profile, &c)
		out = append(out, c)
	}

	if len(out) == 0 {
		zap.L().Info("pipeline: no local candidates",
			zap.Int("retrieved", len(recs)),
			zap.Int("keywords", len(profile.Keywords())),
		)
	}
	return out
}

// persist validates, deduplicates, scores and filters the online
// candidates, fixes their institution metadata from the URL host and
// upserts them. It returns the kept candidates and the number saved.
func (p *Pipeline) persist(ctx context.Context, online []model.Candidate, profile model.ResearchProfile, unis []model.University, stats *Stats) ([]model.Candidate, int) {
	drops := make(map[string]int)
	unique := selection.ValidateAndDeduplicate(online, drops)
	stats.AddDrops(drops)

	keepFloor := p.cfg.Pipeline.KeepScoreFloor
	if keepFloor <= 0 {
		keepFloor = selection.RelevanceFloor
	}
	piFloor := p.cfg.Pipeline.KeepPIScoreFloor
	if piFloor <= 0 {
		piFloor = 0.05
	}

	kept := make([]model.Candidate, 0, len(unique))
	for _, c := range unique {
		p.scorer.Apply(profile, &c)
		pi := selection.HasPISignal(c)
		if (c.FitScore >= keepFloor && len(c.MatchedTerms) > 0) || (pi && c.FitScore >= piFloor) {
			fixInstitution(&c, unis)
			kept = append(kept, c)
			continue
		}
		stats.Drop(DropLowRelevance)
		zap.L().Debug("pipeline: filtered low relevance",
			zap.String("name", c.Name),
			zap.String("institution", c.Institution),
			zap.Float64("score", c.FitScore),
			zap.Int("matched", len(c.MatchedTerms)),
		)
	}

	if len(kept) == 0 {
		return kept, 0
	}

	saved, err := p.store.UpsertMany(ctx, kept)
	if err != nil {
		zap.L().Error("pipeline: upsert failed", zap.Error(err))
	}
	stats.add(func(s *Stats) { s.Saved += saved })

	pruneAfter := p.cfg.Pipeline.CachePruneAfter
	if pruneAfter <= 0 {
		pruneAfter = 10
	}
	if saved >= pruneAfter {
		p.pruneCache(ctx)
	}
	return kept, saved
}

func (p *Pipeline) pruneCache(ctx context.Context) {
	maxEntries := p.cfg.Pipeline.CachePruneMaxEntries
	if maxEntries <= 0 {
		maxEntries = 500
	}
	ttl := time.Duration(p.cfg.Crawl.CacheTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	n, err := p.store.PrunePageCache(ctx, ttl, maxEntries)
	if err != nil {
		zap.L().Warn("pipeline: cache prune failed", zap.Error(err))
		return
	}
	zap.L().Info("pipeline: pruned page cache", zap.Int("deleted", n))
}

// fixInstitution copies university metadata onto c when the profile URL
// host belongs to a listed university, then recomputes the canonical id.
func fixInstitution(c *model.Candidate, unis []model.University) {
	u, ok := university.ByHost(unis, classify.Host(c.ProfileURL))
	if !ok {
		return
	}
	c.Institution = u.Institution
	c.Domain = u.Domain
	c.Country = u.Country
	c.Region = u.Region
	c.QSRank = u.QSRank
	c.CanonicalID = identity.CanonicalID(c.Email, c.Name, c.Institution, c.Domain, c.ProfileURL)
}

// mergeLocal re-queries the repository and appends candidates whose
// canonical id is not already present.
func (p *Pipeline) mergeLocal(ctx context.Context, all []model.Candidate, profile model.ResearchProfile, unis []model.University, req Request) []model.Candidate {
	seen := make(map[string]bool, len(all))
	for _, c := range all {
		if c.CanonicalID != "" {
			seen[c.CanonicalID] = true
		}
	}
	for _, c := range p.localCandidates(ctx, profile, unis, req) {
		if c.CanonicalID == "" || seen[c.CanonicalID] {
			continue
		}
		seen[c.CanonicalID] = true
		all = append(all, c)
	}
	return all
}
