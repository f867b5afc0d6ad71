package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/supervisor-cli/internal/classify"
	"github.com/sells-group/supervisor-cli/internal/extract"
	"github.com/sells-group/supervisor-cli/internal/model"
	"github.com/sells-group/supervisor-cli/internal/selection"
)

const (
	// MinTextLength is the extracted text needed before extraction is tried.
	MinTextLength = 20
	// MinProfileTextLength applies to profile-shaped URLs.
	MinProfileTextLength = 10
	// directoryResultsPerQuery bounds each directory search.
	directoryResultsPerQuery = 5
	// shortlistThreshold is the search URL count above which the LLM
	// orders the directory shortlist first.
	shortlistThreshold = 10
	// maxAdjacentQueryKeywords bounds adjacent keywords added to profile
	// queries.
	maxAdjacentQueryKeywords = 5
)

// discover processes universities one at a time until the list is
// exhausted or enough candidates have been collected.
func (p *Pipeline) discover(ctx context.Context, unis []model.University, profile model.ResearchProfile, req Request, need int, stats *Stats) []model.Candidate {
	factor := p.cfg.Pipeline.EarlyExitFactor
	if factor <= 0 {
		factor = 2
	}

	var online []model.Candidate
	for i, uni := range unis {
		if ctx.Err() != nil {
			zap.L().Warn("pipeline: discovery cancelled", zap.Error(ctx.Err()))
			break
		}

		log := zap.L().With(
			zap.String("university", uni.Institution),
			zap.String("domain", uni.Domain),
			zap.Int("index", i+1),
			zap.Int("total", len(unis)),
		)
		log.Info("pipeline: processing university")

		found, err := p.processUniversity(ctx, uni, profile, req, stats)
		if err != nil {
			stats.Drop(DropUniversityErr)
			log.Error("pipeline: university failed", zap.Error(err))
			continue
		}
		online = append(online, found...)
		log.Info("pipeline: university done",
			zap.Int("found", len(found)),
			zap.Int("total_found", len(online)),
		)

		if len(online) >= need*factor {
			zap.L().Info("pipeline: collected enough candidates", zap.Int("found", len(online)), zap.Int("need", need))
			break
		}
	}
	return online
}

// processUniversity searches, classifies, crawls and extracts candidates for
// one university. A panic is converted into an error so one bad site never
// aborts the run.
func (p *Pipeline) processUniversity(ctx context.Context, uni model.University, profile model.ResearchProfile, req Request, stats *Stats) (cands []model.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("pipeline: panic processing %s: %v", uni.Institution, r)
		}
	}()

	if strings.TrimSpace(uni.Domain) == "" {
		stats.add(func(s *Stats) { s.UniversitiesSkipped++ })
		stats.Drop(DropNoDomain)
		zap.L().Warn("pipeline: skipping university without domain", zap.String("university", uni.Institution))
		return nil, nil
	}
	stats.add(func(s *Stats) { s.UniversitiesProcessed++ })

	seen := make(map[string]bool)
	dirQueries := make([]profileQuery, 0, 11)
	for _, q := range directoryQueries(uni.Domain) {
		dirQueries = append(dirQueries, profileQuery{q, directoryResultsPerQuery})
	}
	dirResults := p.runQueries(ctx, dirQueries, seen)

	keywords := append([]string{}, profile.Core...)
	keywords = append(keywords, profile.Adjacent[:min(maxAdjacentQueryKeywords, len(profile.Adjacent))]...)
	researcherResults := p.runQueries(ctx, profileQueries(uni.Domain, keywords, profile.QueryTemplates), seen)

	searchURLs := make([]string, 0, len(dirResults)+len(researcherResults))
	for _, r := range dirResults {
		searchURLs = append(searchURLs, r.Link)
	}
	for _, r := range researcherResults {
		searchURLs = append(searchURLs, r.Link)
	}
	if len(searchURLs) > shortlistThreshold {
		searchURLs = shortlistFirst(searchURLs, p.llm.SelectDirectoryURLs(ctx, searchURLs, uni.Domain))
	}
	stats.add(func(s *Stats) { s.SearchURLs += len(searchURLs) })

	maxSearch := p.cfg.Pipeline.MaxSearchURLs
	if maxSearch <= 0 {
		maxSearch = 30
	}
	if len(searchURLs) > maxSearch {
		searchURLs = searchURLs[:maxSearch]
	}

	profileURLs := newOrderedSet()
	for _, u := range searchURLs {
		p.expandSearchURL(ctx, u, profileURLs, stats)
	}
	for _, r := range researcherResults {
		profileURLs.add(r.Link)
	}

	urls := profileURLs.items()
	stats.add(func(s *Stats) { s.ProfilePages += len(urls) })
	maxProfiles := p.cfg.Pipeline.MaxProfileURLs
	if maxProfiles <= 0 {
		maxProfiles = 200
	}
	if len(urls) > maxProfiles {
		urls = urls[:maxProfiles]
	}

	opts := extract.Options{AllowStudentPostdoc: req.AllowStudentPostdoc || p.cfg.Pipeline.AllowStudentPostdoc}
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		if c, reason := p.extractURL(ctx, u, uni, profile, opts); c != nil {
			cands = append(cands, *c)
		} else {
			stats.Drop(reason)
		}
	}
	stats.add(func(s *Stats) {
		s.Crawled += len(urls)
		s.Extracted += len(cands)
	})
	return cands, nil
}

// expandSearchURL fetches one search hit. Profile pages are kept as is;
// directories contribute their profile links, plus those of one level of
// pagination.
func (p *Pipeline) expandSearchURL(ctx context.Context, u string, out *orderedSet, stats *Stats) {
	page := p.fetcher.Fetch(ctx, u)
	if !page.OK() {
		return
	}
	doc := classify.Parse(page.HTML)
	if !classify.IsDirectoryLikeDoc(page.Text, doc, u) {
		out.add(u)
		stats.add(func(s *Stats) { s.Reclassified++ })
		zap.L().Debug("pipeline: reclassified as profile", zap.String("url", u))
		return
	}

	stats.add(func(s *Stats) { s.DirectoryPages++ })
	found := classify.ExtractProfileURLsDoc(doc, u)
	for _, next := range classify.FindPaginationLinks(page.HTML, u) {
		if ctx.Err() != nil {
			break
		}
		np := p.fetcher.Fetch(ctx, next)
		if np.OK() {
			found = append(found, classify.ExtractProfileURLs(np.HTML, next)...)
		}
	}
	out.add(found...)
	if len(found) > 0 {
		zap.L().Debug("pipeline: expanded directory", zap.String("url", u), zap.Int("profiles", len(found)))
	}
}

// extractURL fetches and extracts one profile URL. On failure it returns
// nil and the drop reason.
func (p *Pipeline) extractURL(ctx context.Context, u string, uni model.University, profile model.ResearchProfile, opts extract.Options) (*model.Candidate, string) {
	page := p.fetcher.Fetch(ctx, u)
	if !page.OK() {
		return nil, DropFetchFailed
	}

	profileURL := isProfileURL(u)
	minLen := MinTextLength
	if profileURL {
		minLen = MinProfileTextLength
	}
	if len(strings.TrimSpace(page.Text)) < minLen && (!profileURL || page.HTML == "") {
		return nil, DropTextTooShort
	}

	c, reason := p.extractor.Extract(ctx, page, uni, profile, opts)
	if c == nil {
		if reason == extract.ReasonNone {
			return nil, DropOther
		}
		return nil, string(reason)
	}
	if ok, vr := selection.Validate(*c); !ok {
		return nil, string(vr)
	}
	return c, ""
}

// isProfileURL is the loose URL test that relaxes the text length gate.
func isProfileURL(u string) bool {
	l := strings.ToLower(u)
	return strings.Contains(l, "profiles.") || strings.Contains(l, "/people/") || strings.Contains(l, "/profile/")
}

// shortlistFirst moves the shortlisted URLs to the front, keeping the
// rest in their original order.
func shortlistFirst(urls, shortlist []string) []string {
	if len(shortlist) == 0 {
		return urls
	}
	out := newOrderedSet()
	out.add(shortlist...)
	out.add(urls...)
	return out.items()
}

type orderedSet struct {
	seen  map[string]bool
	order []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (s *orderedSet) add(items ...string) {
	for _, it := range items {
		if it == "" || s.seen[it] {
			continue
		}
		s.seen[it] = true
		s.order = append(s.order, it)
	}
}

func (s *orderedSet) items() []string { return s.order }

func logSearchError(query string, err error) {
	zap.L().Warn("pipeline: search failed", zap.String("query", query), zap.Error(err))
}
