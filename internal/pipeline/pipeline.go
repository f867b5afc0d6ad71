// Package pipeline drives a supervisor discovery run: it builds the research
// profile, pulls candidates from the local repository, crawls university
// sites for the rest, and selects a diversity-bounded final list.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/supervisor-cli/internal/config"
	"github.com/sells-group/supervisor-cli/internal/cvtext"
	"github.com/sells-group/supervisor-cli/internal/export"
	"github.com/sells-group/supervisor-cli/internal/extract"
	"github.com/sells-group/supervisor-cli/internal/fetcher"
	"github.com/sells-group/supervisor-cli/internal/model"
	"github.com/sells-group/supervisor-cli/internal/scorer"
	"github.com/sells-group/supervisor-cli/internal/selection"
	"github.com/sells-group/supervisor-cli/internal/store"
	"github.com/sells-group/supervisor-cli/internal/university"
	"github.com/sells-group/supervisor-cli/pkg/anthropic"
)

// LLM is the keyword/LLM extractor the pipeline consumes.
type LLM interface {
	extract.KeywordExtractor
	BuildResearchProfile(ctx context.Context, cvText, keywords string) model.ResearchProfile
	SelectDirectoryURLs(ctx context.Context, candidates []string, domain string) []string
}

// UsageReporter is implemented by LLMs that track token usage.
type UsageReporter interface {
	Usage() (anthropic.TokenUsage, int)
	Model() string
}

// Request is one discovery run.
type Request struct {
	model.RunRequest
	// Profile, when set, replaces the LLM-built research profile.
	Profile *model.ResearchProfile
	// AllowStudentPostdoc keeps junior-role pages.
	AllowStudentPostdoc bool
}

// Validate reports the conditions that abort a run before it starts.
func (r Request) Validate() error {
	if r.CVPath == "" && r.Keywords == "" && r.Profile == nil {
		return eris.New("pipeline: at least one of cv or keywords is required")
	}
	if r.UniversitiesPath == "" {
		return eris.New("pipeline: universities file is required")
	}
	return r.filter().Validate()
}

func (r Request) filter() university.Filter {
	return university.Filter{
		Regions:   r.Regions,
		Countries: r.Countries,
		QSMin:     r.QSMin,
		QSMax:     r.QSMax,
	}
}

// Result is the outcome of a run.
type Result struct {
	RunID        string
	Profile      model.ResearchProfile
	Universities int
	LocalHits    int
	OnlineHits   int
	Selected     []model.Candidate
	Files        []string
	Stats        *Stats
	Phases       []model.PhaseResult
}

// Pipeline orchestrates discovery runs.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	fetcher   fetcher.Fetcher
	searcher  Searcher
	llm       LLM
	extractor *extract.Extractor
	scorer    *scorer.Scorer
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, f fetcher.Fetcher, s Searcher, llm LLM) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		fetcher:   f,
		searcher:  s,
		llm:       llm,
		extractor: extract.New(llm),
		scorer:    scorer.New(cfg.Scoring),
	}
}

// Scorer returns the scorer in use.
func (p *Pipeline) Scorer() *scorer.Scorer { return p.scorer }

// Run executes a discovery run. Only invalid input, a missing university
// list or CV, and repository failures while recording the run are returned
// as errors; everything else degrades into a smaller result.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Target <= 0 {
		req.Target = p.cfg.Pipeline.Target
	}

	log := zap.L().With(zap.String("universities", req.UniversitiesPath), zap.Int("target", req.Target))
	log.Info("pipeline: starting run")

	run, err := p.store.CreateRun(ctx, req.RunRequest)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	result := &Result{RunID: run.ID, Stats: NewStats()}
	log = log.With(zap.String("run_id", run.ID))

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	var phasesMu sync.Mutex
	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) error {
		phase, phaseErr := p.store.CreatePhase(ctx, run.ID, name)
		if phaseErr != nil {
			log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
		}

		start := time.Now()
		phaseResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if phaseResult == nil {
			phaseResult = &model.PhaseResult{}
		}
		phaseResult.Name = name
		phaseResult.Duration = duration

		if fnErr != nil {
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			if phaseResult.Status == "" {
				phaseResult.Status = model.PhaseStatusComplete
			}
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if phase != nil {
			_ = p.store.CompletePhase(ctx, phase.ID, phaseResult)
		}
		phasesMu.Lock()
		result.Phases = append(result.Phases, *phaseResult)
		phasesMu.Unlock()
		return fnErr
	}

	fail := func(err error) (*Result, error) {
		p.finishRun(ctx, run.ID, result, err)
		return result, err
	}

	// ===== Setup: universities and research profile in parallel =====
	setStatus(model.RunStatusProfiling)
	var unis []model.University
	var profile model.ResearchProfile

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return trackPhase("universities", func() (*model.PhaseResult, error) {
			all, loadErr := university.Load(gCtx, req.UniversitiesPath)
			if loadErr != nil {
				return nil, loadErr
			}
			unis = req.filter().Apply(all)
			return &model.PhaseResult{Metadata: map[string]any{
				"loaded":   len(all),
				"filtered": len(unis),
			}}, nil
		})
	})
	g.Go(func() error {
		return trackPhase("profile", func() (*model.PhaseResult, error) {
			pr, profErr := p.buildProfile(gCtx, req)
			if profErr != nil {
				return nil, profErr
			}
			profile = pr
			return &model.PhaseResult{Metadata: map[string]any{
				"core":     len(pr.Core),
				"adjacent": len(pr.Adjacent),
				"negative": len(pr.Negative),
			}}, nil
		})
	})
	if err := g.Wait(); err != nil {
		return fail(err)
	}
	result.Profile = profile
	result.Universities = len(unis)

	log.Info("pipeline: research profile ready",
		zap.Strings("core", profile.Core),
		zap.Strings("adjacent", profile.Adjacent),
		zap.Strings("negative", profile.Negative),
		zap.Int("universities", len(unis)),
	)

	// ===== Local-first retrieval =====
	setStatus(model.RunStatusLocal)
	var all []model.Candidate
	_ = trackPhase("local", func() (*model.PhaseResult, error) {
		local := p.localCandidates(ctx, profile, unis, req)
		picked := selection.SelectTopN(p.scorer, local, req.Target)
		all = append(all, picked...)
		result.LocalHits = len(picked)
		return &model.PhaseResult{Metadata: map[string]any{
			"retrieved": len(local),
			"selected":  len(picked),
		}}, nil
	})

	// ===== Online discovery =====
	need := req.Target - len(all)
	if need > 0 {
		setStatus(model.RunStatusDiscovering)
		var online []model.Candidate
		_ = trackPhase("discover", func() (*model.PhaseResult, error) {
			online = p.discover(ctx, unis, profile, req, need, result.Stats)
			return &model.PhaseResult{Metadata: map[string]any{
				"need":  need,
				"found": len(online),
			}}, nil
		})

		_ = trackPhase("persist", func() (*model.PhaseResult, error) {
			kept, saved := p.persist(ctx, online, profile, unis, result.Stats)
			result.OnlineHits = len(kept)
			all = append(all, kept...)

			merged := p.mergeLocal(ctx, all, profile, unis, req)
			added := len(merged) - len(all)
			all = merged
			return &model.PhaseResult{Metadata: map[string]any{
				"kept":         len(kept),
				"saved":        saved,
				"local_merged": added,
			}}, nil
		})
	} else {
		log.Info("pipeline: local repository satisfied target, skipping online search")
		_ = trackPhase("discover", func() (*model.PhaseResult, error) {
			return &model.PhaseResult{Status: model.PhaseStatusSkipped}, nil
		})
	}

	// ===== Final selection =====
	setStatus(model.RunStatusSelecting)
	_ = trackPhase("select", func() (*model.PhaseResult, error) {
		result.Selected = p.selectFinal(all, req)
		return &model.PhaseResult{Metadata: map[string]any{
			"pool":         len(all),
			"selected":     len(result.Selected),
			"core":         countTier(result.Selected, model.TierCore),
			"institutions": countInstitutions(result.Selected),
		}}, nil
	})

	// ===== Export =====
	if req.OutPath != "" {
		setStatus(model.RunStatusExporting)
		if err := trackPhase("export", func() (*model.PhaseResult, error) {
			files, exportErr := export.Write(ctx, result.Selected, req.OutPath)
			if exportErr != nil {
				return nil, exportErr
			}
			result.Files = files
			return &model.PhaseResult{Metadata: map[string]any{"files": files}}, nil
		}); err != nil {
			return fail(err)
		}
	}

	p.logUsage()
	result.Stats.Log()
	p.finishRun(ctx, run.ID, result, nil)

	log.Info("pipeline: run complete",
		zap.Int("local_hits", result.LocalHits),
		zap.Int("online_hits", result.OnlineHits),
		zap.Int("selected", len(result.Selected)),
	)
	return result, nil
}

// buildProfile returns the override profile, or asks the LLM for one from
// the CV sections and keywords.
func (p *Pipeline) buildProfile(ctx context.Context, req Request) (model.ResearchProfile, error) {
	if req.Profile != nil && !req.Profile.Empty() {
		return *req.Profile, nil
	}

	var sections string
	if req.CVPath != "" {
		text, err := cvtext.Read(req.CVPath)
		if err != nil {
			return model.ResearchProfile{}, err
		}
		sections = cvtext.Sections(text)
		zap.L().Info("pipeline: extracted cv sections", zap.Int("chars", len(sections)))
	}

	profile := p.llm.BuildResearchProfile(ctx, sections, req.Keywords)
	if profile.Empty() {
		return profile, eris.New("pipeline: research profile has no keywords")
	}
	return profile, nil
}

// selectFinal deduplicates the pool and applies diversity selection with
// the paid or free-tier settings.
func (p *Pipeline) selectFinal(all []model.Candidate, req Request) []model.Candidate {
	unique := selection.Deduplicate(all)
	sc := p.cfg.Selection
	if req.FreeTier {
		return selection.SelectWithDiversity(p.scorer, unique, selection.DiversityOptions{
			N:                 sc.FreeTierN,
			MaxPerInstitution: sc.FreeTierCap,
			MinInstitutions:   sc.FreeTierMinInstitution,
			Strict:            true,
			MaxRelaxedCap:     sc.FreeTierCap,
		})
	}
	return selection.SelectWithDiversity(p.scorer, unique, selection.DiversityOptions{
		N:                 req.Target,
		MaxPerInstitution: sc.MaxPerInstitution,
	})
}

func (p *Pipeline) finishRun(ctx context.Context, runID string, result *Result, runErr error) {
	rr := &model.RunResult{
		Universities: result.Universities,
		LocalHits:    result.LocalHits,
		OnlineHits:   result.OnlineHits,
		Selected:     len(result.Selected),
		DropReasons:  result.Stats.Drops(),
		Phases:       result.Phases,
	}
	if runErr != nil {
		rr.Error = runErr.Error()
	}
	if err := p.store.UpdateRunResult(ctx, runID, rr); err != nil {
		zap.L().Warn("pipeline: failed to store run result", zap.String("run_id", runID), zap.Error(err))
	}
}

func (p *Pipeline) logUsage() {
	ur, ok := p.llm.(UsageReporter)
	if !ok {
		return
	}
	usage, calls := ur.Usage()
	if calls == 0 {
		return
	}
	usage.LogCost(ur.Model(), "run")
}

func countTier(cands []model.Candidate, tier model.Tier) int {
	n := 0
	for _, c := range cands {
		if c.Tier == tier {
			n++
		}
	}
	return n
}

func countInstitutions(cands []model.Candidate) int {
	seen := make(map[string]bool)
	for _, c := range cands {
		seen[normInstitution(c.Institution)] = true
	}
	return len(seen)
}
