package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/supervisor-cli/internal/config"
	"github.com/sells-group/supervisor-cli/internal/extract"
	"github.com/sells-group/supervisor-cli/internal/identity"
	"github.com/sells-group/supervisor-cli/internal/model"
	"github.com/sells-group/supervisor-cli/internal/scorer"
	"github.com/sells-group/supervisor-cli/internal/store"
)

const janeURL = "https://test.edu/people/jane-doe"

const janeText = `Jane Doe. Professor of Radiology, Test University. Biography: Jane Doe leads work on medical imaging ` +
	`and deep learning for clinical diagnosis. Her laboratory develops methods for image reconstruction, segmentation ` +
	`and analysis of MRI and CT data, with funding from national research councils. Research interests: medical imaging, ` +
	`deep learning, computational radiology, uncertainty estimation in clinical models. Publications: Doe J. et al. ` +
	`Learning to reconstruct accelerated MRI. Journal of Imaging Science, 2023. Teaching: she teaches the graduate ` +
	`course on imaging physics and leads the clinical data science module.`

func janePage(pageURL string) model.Page {
	html := `<html><head><title>Jane Doe | Test University</title></head><body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<h1>Jane Doe</h1>
<div class="bio"><p>` + janeText + `</p></div>
<h2>Research interests</h2>
<h2>Publications</h2>
<a href="mailto:jane.doe@test.edu">Email</a>
</body></html>`
	return model.Page{URL: pageURL, StatusCode: 200, HTML: html, Text: janeText}
}

func imagingProfile() model.ResearchProfile {
	return model.ResearchProfile{Core: []string{"medical imaging", "deep learning"}}
}

func goodKeywords() model.ProfileKeywords {
	return model.ProfileKeywords{
		Keywords: []string{"medical imaging", "deep learning"},
		FitScore: 0.8,
		Reason:   "Strong imaging fit",
	}
}

func testUniversity() model.University {
	return model.University{Institution: "Test University", Domain: "test.edu", Country: "United States", Region: "North America", QSRank: 50}
}

func testConfig() *config.Config {
	return &config.Config{
		Crawl: config.CrawlConfig{CacheTTLHours: 24},
		Pipeline: config.PipelineConfig{
			Target:               5,
			MaxSearchURLs:        30,
			MaxProfileURLs:       200,
			EarlyExitFactor:      2,
			LocalQueryLimit:      800,
			CachePruneAfter:      10,
			CachePruneMaxEntries: 500,
			KeepScoreFloor:       0.15,
			KeepPIScoreFloor:     0.05,
		},
		Selection: config.SelectionConfig{
			MaxPerInstitution:      10,
			FreeTierN:              10,
			FreeTierCap:            1,
			FreeTierMinInstitution: 3,
		},
		Scoring: scorer.DefaultConfig(),
	}
}

type testDeps struct {
	store    *store.SQLiteStore
	fetcher  *mockFetcher
	searcher *mockSearcher
	llm      *mockLLM
}

func newTestPipeline(t *testing.T, cfg *config.Config) (*Pipeline, testDeps) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	d := testDeps{store: st, fetcher: &mockFetcher{}, searcher: &mockSearcher{}, llm: &mockLLM{}}
	for _, m := range []*mock.Mock{&d.fetcher.Mock, &d.searcher.Mock, &d.llm.Mock} {
		m.Test(t)
	}
	t.Cleanup(func() {
		d.fetcher.AssertExpectations(t)
		d.searcher.AssertExpectations(t)
		d.llm.AssertExpectations(t)
	})
	return New(cfg, st, d.fetcher, d.searcher, d.llm), d
}

func writeUniversities(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "universities.csv")
	content := "institution,domain,country,region,qs_rank\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func localCandidate(name, email string) model.Candidate {
	c := model.Candidate{
		Name:            name,
		Title:           "Professor",
		Institution:     "Test University",
		Domain:          "test.edu",
		Country:         "United States",
		Region:          "North America",
		Email:           email,
		EmailConfidence: model.EmailHigh,
		ProfileURL:      "https://test.edu/people/" + strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Keywords:        []string{"medical imaging", "deep learning"},
	}
	c.SourceURL = c.ProfileURL
	c.CanonicalID = identity.CanonicalID(c.Email, c.Name, c.Institution, c.Domain, c.ProfileURL)
	return c
}

func phaseByName(phases []model.PhaseResult, name string) (model.PhaseResult, bool) {
	for _, ph := range phases {
		if ph.Name == name {
			return ph, true
		}
	}
	return model.PhaseResult{}, false
}

func TestRun_EndToEnd(t *testing.T) {
	ctx := context.Background()
	p, d := newTestPipeline(t, testConfig())

	d.llm.On("BuildResearchProfile", mock.Anything, "", "medical imaging, deep learning").Return(imagingProfile())
	d.llm.On("ExtractProfileKeywords", mock.Anything, mock.Anything, imagingProfile()).Return(goodKeywords())
	d.searcher.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return([]model.SearchResult{{Title: "Jane Doe", Link: janeURL}}, nil)
	d.fetcher.On("Fetch", mock.Anything, janeURL).Return(janePage(janeURL))

	out := filepath.Join(t.TempDir(), "out", "supervisors.csv")
	res, err := p.Run(ctx, Request{RunRequest: model.RunRequest{
		Keywords:         "medical imaging, deep learning",
		UniversitiesPath: writeUniversities(t, "Test University,test.edu,United States,North America,50"),
		OutPath:          out,
	}})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Universities)
	assert.Equal(t, 0, res.LocalHits)
	assert.Equal(t, 1, res.OnlineHits)
	require.Len(t, res.Selected, 1)

	jane := res.Selected[0]
	assert.Equal(t, "Jane Doe", jane.Name)
	assert.Equal(t, "Test University", jane.Institution)
	assert.Equal(t, 50, jane.QSRank)
	assert.Equal(t, "jane.doe@test.edu", jane.Email)
	assert.InDelta(t, 0.35, jane.FitScore, 1e-9)
	assert.Equal(t, []string{"medical imaging", "deep learning"}, jane.MatchedTerms)

	assert.Equal(t, []string{out}, res.Files)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Jane Doe")

	assert.Equal(t, 1, res.Stats.Saved)
	assert.Equal(t, 1, res.Stats.UniversitiesProcessed)
	assert.Equal(t, 1, res.Stats.Reclassified)

	for _, name := range []string{"universities", "profile", "local", "discover", "persist", "select", "export"} {
		ph, ok := phaseByName(res.Phases, name)
		require.True(t, ok, name)
		assert.Equal(t, model.PhaseStatusComplete, ph.Status, name)
	}

	run, err := d.store.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 1, run.Result.Selected)

	// The discovered supervisor is now in the local repository.
	stored, err := d.store.QueryCandidates(ctx, store.Filter{Keywords: []string{"medical imaging"}})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, jane.CanonicalID, stored[0].CanonicalID)
}

func TestRun_LocalRepositorySatisfiesTarget(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Pipeline.Target = 2
	p, d := newTestPipeline(t, cfg)

	_, err := d.store.UpsertMany(ctx, []model.Candidate{
		localCandidate("Ann Lee", "ann.lee@test.edu"),
		localCandidate("Ben Ode", "ben.ode@test.edu"),
	})
	require.NoError(t, err)

	profile := imagingProfile()
	res, err := p.Run(ctx, Request{
		RunRequest: model.RunRequest{
			UniversitiesPath: writeUniversities(t, "Test University,test.edu,United States,North America,50"),
		},
		Profile: &profile,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.LocalHits)
	assert.Equal(t, 0, res.OnlineHits)
	assert.Len(t, res.Selected, 2)
	for _, c := range res.Selected {
		assert.True(t, c.FromLocalDB)
		assert.Equal(t, 50, c.QSRank)
	}

	ph, ok := phaseByName(res.Phases, "discover")
	require.True(t, ok)
	assert.Equal(t, model.PhaseStatusSkipped, ph.Status)
	_, ok = phaseByName(res.Phases, "export")
	assert.False(t, ok)
	d.searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_LocalCandidatesOutsideListIgnored(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Pipeline.Target = 1
	p, d := newTestPipeline(t, cfg)

	other := localCandidate("Ann Lee", "ann.lee@other.edu")
	other.Institution = "Other University"
	other.Domain = "other.edu"
	_, err := d.store.UpsertMany(ctx, []model.Candidate{other})
	require.NoError(t, err)

	d.searcher.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]model.SearchResult{}, nil)

	profile := imagingProfile()
	res, err := p.Run(ctx, Request{
		RunRequest: model.RunRequest{UniversitiesPath: writeUniversities(t, "Test University,test.edu,United States,North America,50")},
		Profile:    &profile,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.LocalHits)
	assert.Empty(t, res.Selected)
}

func TestRun_InvalidRequest(t *testing.T) {
	p, d := newTestPipeline(t, testConfig())

	_, err := p.Run(context.Background(), Request{RunRequest: model.RunRequest{UniversitiesPath: "u.csv"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cv or keywords")

	runs, err := d.store.ListRuns(context.Background(), model.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRun_MissingUniversityFile(t *testing.T) {
	ctx := context.Background()
	p, d := newTestPipeline(t, testConfig())
	d.llm.On("BuildResearchProfile", mock.Anything, "", "imaging").Return(imagingProfile()).Maybe()

	_, err := p.Run(ctx, Request{RunRequest: model.RunRequest{
		Keywords:         "imaging",
		UniversitiesPath: filepath.Join(t.TempDir(), "missing.csv"),
	}})
	require.Error(t, err)

	runs, err := d.store.ListRuns(ctx, model.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
}

func TestRun_EmptyProfileFails(t *testing.T) {
	p, d := newTestPipeline(t, testConfig())
	d.llm.On("BuildResearchProfile", mock.Anything, "", "???").Return(model.ResearchProfile{})

	_, err := p.Run(context.Background(), Request{RunRequest: model.RunRequest{
		Keywords:         "???",
		UniversitiesPath: writeUniversities(t, "Test University,test.edu,United States,North America,50"),
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no keywords")
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr string
	}{
		{"keywords only", Request{RunRequest: model.RunRequest{Keywords: "x", UniversitiesPath: "u.csv"}}, ""},
		{"cv only", Request{RunRequest: model.RunRequest{CVPath: "cv.txt", UniversitiesPath: "u.csv"}}, ""},
		{"profile override", Request{RunRequest: model.RunRequest{UniversitiesPath: "u.csv"}, Profile: &model.ResearchProfile{Core: []string{"x"}}}, ""},
		{"no input", Request{RunRequest: model.RunRequest{UniversitiesPath: "u.csv"}}, "cv or keywords"},
		{"no universities", Request{RunRequest: model.RunRequest{Keywords: "x"}}, "universities file"},
		{"inverted qs range", Request{RunRequest: model.RunRequest{Keywords: "x", UniversitiesPath: "u.csv", QSMin: 100, QSMax: 10}}, "qs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, strings.ToLower(err.Error()), tt.wantErr)
		})
	}
}

func TestDiscover_StopsWhenEnoughFound(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.EarlyExitFactor = 1
	p, d := newTestPipeline(t, cfg)

	d.llm.On("ExtractProfileKeywords", mock.Anything, mock.Anything, imagingProfile()).Return(goodKeywords())
	d.searcher.On("Search", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.Contains(q, "test.edu")
	}), mock.Anything).Return([]model.SearchResult{{Link: janeURL}}, nil)
	d.fetcher.On("Fetch", mock.Anything, janeURL).Return(janePage(janeURL))

	unis := []model.University{
		testUniversity(),
		{Institution: "Other University", Domain: "other.edu"},
	}
	stats := NewStats()
	found := p.discover(context.Background(), unis, imagingProfile(), Request{}, 1, stats)

	require.Len(t, found, 1)
	assert.Equal(t, 1, stats.UniversitiesProcessed)
	for _, call := range d.searcher.Calls {
		assert.NotContains(t, call.Arguments.String(1), "other.edu")
	}
}

func TestDiscover_UniversityPanicIsContained(t *testing.T) {
	p, d := newTestPipeline(t, testConfig())

	d.searcher.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return([]model.SearchResult{{Link: janeURL}}, nil)
	d.fetcher.On("Fetch", mock.Anything, janeURL).Run(func(mock.Arguments) { panic("boom") })

	stats := NewStats()
	found := p.discover(context.Background(), []model.University{testUniversity()}, imagingProfile(), Request{}, 5, stats)

	assert.Empty(t, found)
	assert.Equal(t, 1, stats.Drops()[DropUniversityErr])
}

func TestDiscover_SkipsUniversityWithoutDomain(t *testing.T) {
	p, _ := newTestPipeline(t, testConfig())

	stats := NewStats()
	found := p.discover(context.Background(), []model.University{{Institution: "Nowhere College"}}, imagingProfile(), Request{}, 5, stats)

	assert.Empty(t, found)
	assert.Equal(t, 1, stats.UniversitiesSkipped)
	assert.Equal(t, 1, stats.Drops()[DropNoDomain])
}

func TestDiscover_CancelledContext(t *testing.T) {
	p, _ := newTestPipeline(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	found := p.discover(ctx, []model.University{testUniversity()}, imagingProfile(), Request{}, 5, NewStats())
	assert.Empty(t, found)
}

func TestProcessUniversity_ShortlistsLongResultLists(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.MaxSearchURLs = 2
	p, d := newTestPipeline(t, cfg)

	var hits []model.SearchResult
	for i := range 12 {
		hits = append(hits, model.SearchResult{Link: "https://test.edu/news/item-" + string(rune('a'+i))})
	}
	d.searcher.On("Search", mock.Anything, "site:test.edu staff directory", mock.Anything).Return(hits, nil)
	d.searcher.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]model.SearchResult{}, nil)
	d.llm.On("SelectDirectoryURLs", mock.Anything, mock.Anything, "test.edu").
		Return([]string{"https://test.edu/news/item-k", "https://test.edu/news/item-l"})
	d.fetcher.On("Fetch", mock.Anything, "https://test.edu/news/item-k").Return(model.Page{URL: "https://test.edu/news/item-k"})
	d.fetcher.On("Fetch", mock.Anything, "https://test.edu/news/item-l").Return(model.Page{URL: "https://test.edu/news/item-l"})

	stats := NewStats()
	found, err := p.processUniversity(context.Background(), testUniversity(), imagingProfile(), Request{}, stats)
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Equal(t, 12, stats.SearchURLs)
	d.fetcher.AssertNumberOfCalls(t, "Fetch", 2)
}

func TestExpandSearchURL_Directory(t *testing.T) {
	p, d := newTestPipeline(t, testConfig())

	var b strings.Builder
	b.WriteString(`<html><body><h1>Our People</h1><ul>`)
	for _, n := range []string{"ann", "ben", "cat", "dan", "eve", "fay", "gus", "hal"} {
		b.WriteString(`<li><a href="/people/` + n + `">` + n + `</a></li>`)
	}
	b.WriteString(`</ul><div class="pagination"><a href="/people?page=2">2</a></div></body></html>`)
	page2 := `<html><body><a href="/people/ivy">Ivy</a></body></html>`

	d.fetcher.On("Fetch", mock.Anything, "https://test.edu/people").
		Return(model.Page{URL: "https://test.edu/people", StatusCode: 200, HTML: b.String(), Text: "Our People"})
	d.fetcher.On("Fetch", mock.Anything, "https://test.edu/people?page=2").
		Return(model.Page{URL: "https://test.edu/people?page=2", StatusCode: 200, HTML: page2, Text: "Ivy"})

	stats := NewStats()
	out := newOrderedSet()
	p.expandSearchURL(context.Background(), "https://test.edu/people", out, stats)

	assert.Len(t, out.items(), 9)
	assert.Contains(t, out.items(), "https://test.edu/people/ivy")
	assert.Equal(t, 1, stats.DirectoryPages)
	assert.Equal(t, 0, stats.Reclassified)
}

func TestExtractURL_Drops(t *testing.T) {
	p, d := newTestPipeline(t, testConfig())

	d.fetcher.On("Fetch", mock.Anything, "https://test.edu/down").Return(model.Page{URL: "https://test.edu/down"})
	d.fetcher.On("Fetch", mock.Anything, "https://test.edu/about").
		Return(model.Page{URL: "https://test.edu/about", StatusCode: 200, HTML: "<p>Hi</p>", Text: "Hi"})
	d.fetcher.On("Fetch", mock.Anything, "https://other.edu/people/x").
		Return(model.Page{URL: "https://other.edu/people/x", StatusCode: 200, HTML: "<p>x</p>", Text: janeText})

	ctx := context.Background()
	c, reason := p.extractURL(ctx, "https://test.edu/down", testUniversity(), imagingProfile(), extract.Options{})
	assert.Nil(t, c)
	assert.Equal(t, DropFetchFailed, reason)

	c, reason = p.extractURL(ctx, "https://test.edu/about", testUniversity(), imagingProfile(), extract.Options{})
	assert.Nil(t, c)
	assert.Equal(t, DropTextTooShort, reason)

	c, reason = p.extractURL(ctx, "https://other.edu/people/x", testUniversity(), imagingProfile(), extract.Options{})
	assert.Nil(t, c)
	assert.Equal(t, string(extract.ReasonDomainMismatch), reason)
}

func TestPersist_KeepFilterAndInstitutionFix(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Pipeline.CachePruneAfter = 1
	cfg.Pipeline.CachePruneMaxEntries = 1
	p, d := newTestPipeline(t, cfg)

	for _, u := range []string{"https://test.edu/a", "https://test.edu/b"} {
		require.NoError(t, d.store.SetCachedPage(ctx, model.Page{URL: u, StatusCode: 200, HTML: "x", Text: "x"}))
	}

	jane := localCandidate("Jane Doe", "jane.doe@test.edu")
	jane.Institution = "Test Univ"
	jane.ProfileURL = "https://profiles.test.edu/jane-doe"
	jane.SourceURL = jane.ProfileURL
	jane.FromLocalDB = false
	jane.FitScore = 0.8

	bob := localCandidate("Bob Roe", "")
	bob.EmailConfidence = model.EmailNone
	bob.Keywords = []string{"gardening"}
	bob.FitScore = 0.5

	carol := localCandidate("Carol Poe", "")
	carol.EmailConfidence = model.EmailNone
	carol.Keywords = []string{"medical imaging"}
	carol.Notes = "Principal Investigator/Group Leader"
	carol.FitScore = 0.4

	stats := NewStats()
	kept, saved := p.persist(ctx, []model.Candidate{jane, bob, carol, jane}, imagingProfile(), []model.University{testUniversity()}, stats)

	require.Len(t, kept, 2)
	assert.Equal(t, 2, saved)
	assert.Equal(t, 2, stats.Saved)
	assert.Equal(t, 1, stats.Drops()[DropLowRelevance])

	assert.Equal(t, "Jane Doe", kept[0].Name)
	assert.Equal(t, "Test University", kept[0].Institution)
	assert.Equal(t, 50, kept[0].QSRank)
	assert.Equal(t, "Carol Poe", kept[1].Name)
	assert.InDelta(t, 0.1, kept[1].FitScore, 1e-9)

	// Saving at least CachePruneAfter candidates trims the page cache.
	remaining := 0
	for _, u := range []string{"https://test.edu/a", "https://test.edu/b"} {
		pg, err := d.store.GetCachedPage(ctx, u, 0)
		require.NoError(t, err)
		if pg != nil {
			remaining++
		}
	}
	assert.Equal(t, 1, remaining)
}

func TestMergeLocal_AddsUnseenOnly(t *testing.T) {
	ctx := context.Background()
	p, d := newTestPipeline(t, testConfig())

	ann := localCandidate("Ann Lee", "ann.lee@test.edu")
	ben := localCandidate("Ben Ode", "ben.ode@test.edu")
	_, err := d.store.UpsertMany(ctx, []model.Candidate{ann, ben})
	require.NoError(t, err)

	merged := p.mergeLocal(ctx, []model.Candidate{ann}, imagingProfile(), []model.University{testUniversity()}, Request{})
	require.Len(t, merged, 2)
	assert.Equal(t, ben.CanonicalID, merged[1].CanonicalID)
	assert.True(t, merged[1].FromLocalDB)
}

func TestSelectFinal_FreeTier(t *testing.T) {
	p, _ := newTestPipeline(t, testConfig())

	mk := func(name, inst string) model.Candidate {
		c := localCandidate(name, strings.ToLower(strings.ReplaceAll(name, " ", "."))+"@x.edu")
		c.Institution = inst
		p.Scorer().Apply(imagingProfile(), &c)
		return c
	}
	pool := []model.Candidate{
		mk("Ann Lee", "Alpha University"),
		mk("Ben Ode", "Alpha University"),
		mk("Cat Ray", "Beta University"),
		mk("Dan Fox", "Gamma University"),
	}

	got := p.selectFinal(pool, Request{RunRequest: model.RunRequest{FreeTier: true}})
	require.Len(t, got, 3)
	assert.Equal(t, 3, countInstitutions(got))

	paid := p.selectFinal(pool, Request{RunRequest: model.RunRequest{Target: 10}})
	assert.Len(t, paid, 4)
}

func TestShortlistFirst(t *testing.T) {
	urls := []string{"a", "b", "c", "d"}
	assert.Equal(t, urls, shortlistFirst(urls, nil))
	assert.Equal(t, []string{"c", "a", "b", "d"}, shortlistFirst(urls, []string{"c"}))
	assert.Equal(t, []string{"d", "b", "a", "c"}, shortlistFirst(urls, []string{"d", "b", "d"}))
}

func TestIsProfileURL(t *testing.T) {
	assert.True(t, isProfileURL("https://profiles.test.edu/jane"))
	assert.True(t, isProfileURL("https://test.edu/people/jane"))
	assert.True(t, isProfileURL("https://test.edu/profile/jane"))
	assert.False(t, isProfileURL("https://test.edu/about"))
}

func TestStats_Drops(t *testing.T) {
	s := NewStats()
	s.Drop(DropFetchFailed)
	s.Drop(DropFetchFailed)
	s.AddDrops(map[string]int{"no_name": 3, DropFetchFailed: 1})

	drops := s.Drops()
	assert.Equal(t, map[string]int{DropFetchFailed: 3, "no_name": 3}, drops)

	drops["no_name"] = 0
	assert.Equal(t, 3, s.Drops()["no_name"])
}
