// Package store is the local repository of previously seen supervisors, the
// page cache and the run log, backed by SQLite or Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sells-group/supervisor-cli/internal/model"
)

const (
	defaultQueryLimit = 800
	defaultRunLimit   = 100
	maxQueryKeywords  = 10
)

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// IsNotFound reports whether err wraps ErrRunNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// Filter constrains a candidate query.
type Filter struct {
	Regions   []string `json:"regions,omitempty"`
	Countries []string `json:"countries,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

// Store defines the persistence interface for the discovery pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, req model.RunRequest) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error

	// Supervisors
	UpsertCandidate(ctx context.Context, c model.Candidate) error
	UpsertMany(ctx context.Context, cands []model.Candidate) (int, error)
	QueryCandidates(ctx context.Context, f Filter) ([]model.Candidate, error)

	// Page cache
	GetCachedPage(ctx context.Context, url string, maxAge time.Duration) (*model.Page, error)
	SetCachedPage(ctx context.Context, page model.Page) error
	PrunePageCache(ctx context.Context, maxAge time.Duration, maxEntries int) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// record is the stored projection of a candidate.
type record struct {
	CanonicalID     string
	Name            string
	Title           string
	Institution     string
	Domain          string
	Country         string
	Region          string
	Email           string
	EmailConfidence string
	Homepage        string
	ProfileURL      string
	SourceURL       string
	EvidenceEmail   string
	SnippetsJSON    string
	KeywordsJSON    string
	KeywordsText    string
	LastSeenAt      time.Time
	LastVerifiedAt  *time.Time
}

func toRecord(c model.Candidate, now time.Time) record {
	snippets := c.EvidenceSnippets
	if snippets == nil {
		snippets = []string{}
	}
	keywords := c.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	snippetsJSON, _ := json.Marshal(snippets)
	keywordsJSON, _ := json.Marshal(keywords)

	conf := c.EmailConfidence
	if conf == "" {
		conf = model.EmailNone
	}

	r := record{
		CanonicalID:     c.CanonicalID,
		Name:            c.Name,
		Title:           c.Title,
		Institution:     c.Institution,
		Domain:          c.Domain,
		Country:         c.Country,
		Region:          c.Region,
		Email:           c.Email,
		EmailConfidence: string(conf),
		Homepage:        c.Homepage,
		ProfileURL:      c.ProfileURL,
		SourceURL:       c.SourceURL,
		SnippetsJSON:    string(snippetsJSON),
		KeywordsJSON:    string(keywordsJSON),
		KeywordsText:    strings.Join(c.Keywords, ", "),
		LastSeenAt:      now,
	}
	if len(c.EvidenceSnippets) > 0 {
		r.EvidenceEmail = c.EvidenceSnippets[0]
	}
	if conf.Verified() {
		t := now
		r.LastVerifiedAt = &t
	}
	return r
}

func (r record) candidate() model.Candidate {
	c := model.Candidate{
		CanonicalID:     r.CanonicalID,
		Name:            r.Name,
		Title:           r.Title,
		Institution:     r.Institution,
		Domain:          r.Domain,
		Country:         r.Country,
		Region:          r.Region,
		Email:           r.Email,
		EmailConfidence: model.EmailConfidence(r.EmailConfidence),
		Homepage:        r.Homepage,
		ProfileURL:      r.ProfileURL,
		SourceURL:       r.SourceURL,
		EvidenceEmail:   r.EvidenceEmail,
		Tier:            model.TierAdjacent,
		FromLocalDB:     true,
		LastSeenAt:      r.LastSeenAt,
		LastVerifiedAt:  r.LastVerifiedAt,
	}
	if c.EmailConfidence == "" {
		c.EmailConfidence = model.EmailNone
	}
	// Corrupt JSON columns degrade to empty lists.
	_ = json.Unmarshal([]byte(r.KeywordsJSON), &c.Keywords)
	_ = json.Unmarshal([]byte(r.SnippetsJSON), &c.EvidenceSnippets)
	return c
}

// queryKeywords returns the trimmed, non-empty keywords used for matching.
func queryKeywords(keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		out = append(out, kw)
		if len(out) == maxQueryKeywords {
			break
		}
	}
	return out
}

// ftsQuery builds an FTS5 OR-query of quoted phrases.
func ftsQuery(keywords []string) string {
	terms := make([]string, len(keywords))
	for i, kw := range keywords {
		terms[i] = `"` + strings.ReplaceAll(kw, `"`, `""`) + `"`
	}
	return strings.Join(terms, " OR ")
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func queryLimit(n int) int {
	if n <= 0 {
		return defaultQueryLimit
	}
	return n
}

// finalStatus maps a run result to the status stored with it.
func finalStatus(result *model.RunResult) model.RunStatus {
	if result != nil && result.Error != "" {
		return model.RunStatusFailed
	}
	return model.RunStatusComplete
}
