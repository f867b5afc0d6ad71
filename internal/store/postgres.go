package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/supervisor-cli/internal/db"
	"github.com/sells-group/supervisor-cli/internal/identity"
	"github.com/sells-group/supervisor-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, for tests and callers that
// manage their own connections.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	request    JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     JSONB,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS supervisors (
	canonical_id           TEXT PRIMARY KEY,
	name                   TEXT NOT NULL,
	title                  TEXT NOT NULL DEFAULT '',
	institution            TEXT NOT NULL DEFAULT '',
	domain                 TEXT NOT NULL DEFAULT '',
	country                TEXT NOT NULL DEFAULT '',
	region                 TEXT NOT NULL DEFAULT '',
	email                  TEXT NOT NULL DEFAULT '',
	email_confidence       TEXT NOT NULL DEFAULT 'none',
	homepage               TEXT NOT NULL DEFAULT '',
	profile_url            TEXT NOT NULL DEFAULT '',
	source_url             TEXT NOT NULL DEFAULT '',
	evidence_email         TEXT NOT NULL DEFAULT '',
	evidence_snippets_json TEXT NOT NULL DEFAULT '[]',
	keywords_json          TEXT NOT NULL DEFAULT '[]',
	keywords_text          TEXT NOT NULL DEFAULT '',
	last_seen_at           TIMESTAMPTZ NOT NULL,
	last_verified_at       TIMESTAMPTZ,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS page_cache (
	url          TEXT PRIMARY KEY,
	html         TEXT NOT NULL DEFAULT '',
	text_content TEXT NOT NULL DEFAULT '',
	status_code  INTEGER NOT NULL,
	fetched_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
CREATE INDEX IF NOT EXISTS idx_supervisors_institution ON supervisors(institution);
CREATE INDEX IF NOT EXISTS idx_supervisors_region ON supervisors(lower(region));
CREATE INDEX IF NOT EXISTS idx_supervisors_country ON supervisors(lower(country));
CREATE INDEX IF NOT EXISTS idx_supervisors_email ON supervisors(email);
CREATE INDEX IF NOT EXISTS idx_supervisors_last_seen_at ON supervisors(last_seen_at);
CREATE INDEX IF NOT EXISTS idx_page_cache_fetched_at ON page_cache(fetched_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, req model.RunRequest) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal request")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, request, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, reqJSON, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Request:   req,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(finalStatus(result)), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, request, status, result, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPGRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := `SELECT id, request, status, result, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPGRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPGRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var reqJSON []byte
	var resultNull *[]byte

	if err := row.Scan(&r.ID, &reqJSON, &r.Status, &resultNull, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(reqJSON, &r.Request); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal request")
	}
	if resultNull != nil {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(*resultNull, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, runID, name, string(model.PhaseStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert phase for run %s", runID)
	}

	return &model.RunPhase{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal phase result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE run_phases SET status = $1, result = $2 WHERE id = $3`,
		string(result.Status), resultJSON, phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete phase %s", phaseID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("phase not found: %s", phaseID)
	}
	return nil
}

// --- Supervisors ---

var supervisorCols = []string{
	"canonical_id", "name", "title", "institution", "domain", "country", "region",
	"email", "email_confidence", "homepage", "profile_url", "source_url",
	"evidence_email", "evidence_snippets_json", "keywords_json", "keywords_text",
	"last_seen_at", "last_verified_at", "created_at", "updated_at",
}

// supervisorUpsert merges like the SQLite store: empty text never replaces a
// stored value and a missing verification keeps the previous one.
var supervisorUpsert = db.UpsertConfig{
	Table:        "supervisors",
	Columns:      supervisorCols,
	ConflictKeys: []string{"canonical_id"},
	UpdateCols: []string{
		"name", "title", "institution", "domain", "country", "region",
		"email", "email_confidence", "homepage", "profile_url", "source_url",
		"evidence_email", "evidence_snippets_json", "keywords_json", "keywords_text",
		"last_seen_at", "last_verified_at", "updated_at",
	},
	KeepNonEmpty: []string{
		"name", "title", "institution", "domain", "country", "region",
		"email", "homepage", "profile_url", "source_url", "evidence_email", "keywords_text",
	},
	SetExprs: map[string]string{
		"email_confidence":       `CASE WHEN EXCLUDED."email" = '' THEN t."email_confidence" ELSE EXCLUDED."email_confidence" END`,
		"evidence_snippets_json": `COALESCE(NULLIF(EXCLUDED."evidence_snippets_json", '[]'), t."evidence_snippets_json")`,
		"keywords_json":          `COALESCE(NULLIF(EXCLUDED."keywords_json", '[]'), t."keywords_json")`,
		"last_verified_at":       `COALESCE(EXCLUDED."last_verified_at", t."last_verified_at")`,
	},
}

func supervisorRow(c model.Candidate, now time.Time) []any {
	if c.CanonicalID == "" {
		c.CanonicalID = identity.CanonicalID(c.Email, c.Name, c.Institution, c.Domain, c.ProfileURL)
	}
	r := toRecord(c, now)
	var verified any
	if r.LastVerifiedAt != nil {
		verified = *r.LastVerifiedAt
	}
	return []any{
		r.CanonicalID, r.Name, r.Title, r.Institution, r.Domain, r.Country, r.Region,
		r.Email, r.EmailConfidence, r.Homepage, r.ProfileURL, r.SourceURL,
		r.EvidenceEmail, r.SnippetsJSON, r.KeywordsJSON, r.KeywordsText,
		r.LastSeenAt, verified, now, now,
	}
}

func (s *PostgresStore) UpsertCandidate(ctx context.Context, c model.Candidate) error {
	_, err := s.UpsertMany(ctx, []model.Candidate{c})
	return err
}

// UpsertMany writes candidates through a COPY into a temp table followed by
// one INSERT ... ON CONFLICT.
func (s *PostgresStore) UpsertMany(ctx context.Context, cands []model.Candidate) (int, error) {
	if len(cands) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([][]any, len(cands))
	for i, c := range cands {
		rows[i] = supervisorRow(c, now)
	}
	n, err := db.BulkUpsert(ctx, s.pool, supervisorUpsert, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert supervisors")
	}
	return int(n), nil
}

// QueryCandidates filters by region/country lists and an ILIKE match of any
// of the first ten keywords over keywords_text.
func (s *PostgresStore) QueryCandidates(ctx context.Context, f Filter) ([]model.Candidate, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if regions := lowerAll(f.Regions); len(regions) > 0 {
		where = append(where, "lower(region) = ANY("+arg(regions)+")")
	}
	if countries := lowerAll(f.Countries); len(countries) > 0 {
		where = append(where, "lower(country) = ANY("+arg(countries)+")")
	}
	if kws := queryKeywords(f.Keywords); len(kws) > 0 {
		likes := make([]string, len(kws))
		for i, kw := range kws {
			likes[i] = "keywords_text ILIKE " + arg("%"+kw+"%")
		}
		where = append(where, "("+strings.Join(likes, " OR ")+")")
	}

	query := `SELECT canonical_id, name, title, institution, domain, country, region,
		email, email_confidence, homepage, profile_url, source_url,
		evidence_email, evidence_snippets_json, keywords_json, keywords_text,
		last_seen_at, last_verified_at FROM supervisors`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY last_seen_at DESC LIMIT " + arg(queryLimit(f.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query supervisors")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var r record
		if err := rows.Scan(
			&r.CanonicalID, &r.Name, &r.Title, &r.Institution, &r.Domain, &r.Country, &r.Region,
			&r.Email, &r.EmailConfidence, &r.Homepage, &r.ProfileURL, &r.SourceURL,
			&r.EvidenceEmail, &r.SnippetsJSON, &r.KeywordsJSON, &r.KeywordsText,
			&r.LastSeenAt, &r.LastVerifiedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan supervisor")
		}
		out = append(out, r.candidate())
	}
	return out, eris.Wrap(rows.Err(), "postgres: query supervisors iterate")
}

// --- Page cache ---

func (s *PostgresStore) GetCachedPage(ctx context.Context, url string, maxAge time.Duration) (*model.Page, error) {
	var p model.Page
	var fetchedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT url, html, text_content, status_code, fetched_at FROM page_cache WHERE url = $1`,
		url,
	).Scan(&p.URL, &p.HTML, &p.Text, &p.StatusCode, &fetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached page")
	}
	if maxAge > 0 && time.Since(fetchedAt) > maxAge {
		return nil, nil
	}
	p.FromCache = true
	return &p, nil
}

func (s *PostgresStore) SetCachedPage(ctx context.Context, page model.Page) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO page_cache (url, html, text_content, status_code, fetched_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (url) DO UPDATE SET html = EXCLUDED.html, text_content = EXCLUDED.text_content,
		 status_code = EXCLUDED.status_code, fetched_at = EXCLUDED.fetched_at`,
		page.URL, page.HTML, page.Text, page.StatusCode, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: set cached page")
}

func (s *PostgresStore) PrunePageCache(ctx context.Context, maxAge time.Duration, maxEntries int) (int, error) {
	var deleted int64
	if maxAge > 0 {
		tag, err := s.pool.Exec(ctx,
			`DELETE FROM page_cache WHERE fetched_at < $1`, time.Now().UTC().Add(-maxAge))
		if err != nil {
			return 0, eris.Wrap(err, "postgres: prune expired pages")
		}
		deleted += tag.RowsAffected()
	}
	if maxEntries > 0 {
		tag, err := s.pool.Exec(ctx,
			`DELETE FROM page_cache WHERE url NOT IN (
				SELECT url FROM page_cache ORDER BY fetched_at DESC LIMIT $1
			)`, maxEntries)
		if err != nil {
			return int(deleted), eris.Wrap(err, "postgres: prune page cache overflow")
		}
		deleted += tag.RowsAffected()
	}
	return int(deleted), nil
}
