package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/supervisor-cli/internal/identity"
	"github.com/sells-group/supervisor-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	fts bool
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection keeps the single-writer assumption honest.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	request    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS supervisors (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	canonical_id           TEXT UNIQUE NOT NULL,
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
	last_seen_at           DATETIME NOT NULL,
	last_verified_at       DATETIME,
	created_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS page_cache (
	url          TEXT PRIMARY KEY,
	html         TEXT NOT NULL DEFAULT '',
	text_content TEXT NOT NULL DEFAULT '',
	status_code  INTEGER NOT NULL,
	fetched_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
CREATE INDEX IF NOT EXISTS idx_supervisors_institution ON supervisors(institution);
CREATE INDEX IF NOT EXISTS idx_supervisors_region ON supervisors(region);
CREATE INDEX IF NOT EXISTS idx_supervisors_country ON supervisors(country);
CREATE INDEX IF NOT EXISTS idx_supervisors_email ON supervisors(email);
CREATE INDEX IF NOT EXISTS idx_supervisors_last_seen_at ON supervisors(last_seen_at);
CREATE INDEX IF NOT EXISTS idx_page_cache_fetched_at ON page_cache(fetched_at);
`

const sqliteFTSMigration = `
CREATE VIRTUAL TABLE IF NOT EXISTS supervisors_fts USING fts5(
	name, institution, title, keywords_text,
	content='supervisors', content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS supervisors_fts_insert AFTER INSERT ON supervisors BEGIN
	INSERT INTO supervisors_fts(rowid, name, institution, title, keywords_text)
	VALUES (new.id, new.name, new.institution, new.title, new.keywords_text);
END;

CREATE TRIGGER IF NOT EXISTS supervisors_fts_delete AFTER DELETE ON supervisors BEGIN
	INSERT INTO supervisors_fts(supervisors_fts, rowid, name, institution, title, keywords_text)
	VALUES ('delete', old.id, old.name, old.institution, old.title, old.keywords_text);
END;

CREATE TRIGGER IF NOT EXISTS supervisors_fts_update AFTER UPDATE ON supervisors BEGIN
	INSERT INTO supervisors_fts(supervisors_fts, rowid, name, institution, title, keywords_text)
	VALUES ('delete', old.id, old.name, old.institution, old.title, old.keywords_text);
	INSERT INTO supervisors_fts(rowid, name, institution, title, keywords_text)
	VALUES (new.id, new.name, new.institution, new.title, new.keywords_text);
END;
`

// Migrate creates the schema. The FTS5 index is optional: when the module
// is unavailable keyword queries fall back to LIKE.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	if _, err := s.db.ExecContext(ctx, sqliteFTSMigration); err != nil {
		zap.L().Warn("sqlite: full-text index unavailable, using LIKE search", zap.Error(err))
		s.fts = false
		return nil
	}
	s.fts = true
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, req model.RunRequest) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal request")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, request, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(reqJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Request:   req,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(finalStatus(result)), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, request, status, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := `SELECT id, request, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, runID, name, string(model.PhaseStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert phase for run %s", runID)
	}

	return &model.RunPhase{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal phase result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE run_phases SET status = ?, result = ? WHERE id = ?`,
		string(result.Status), string(resultJSON), phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete phase %s", phaseID)
	}
	return checkRowsAffected(res, "phase", phaseID)
}

// --- Supervisors ---

// sqliteUpsert applies the merge rule: empty incoming text never replaces a
// stored value, and last_verified_at carries forward when the new record
// has no qualifying email confidence.
const sqliteUpsert = `
INSERT INTO supervisors (
	canonical_id, name, title, institution, domain, country, region,
	email, email_confidence, homepage, profile_url, source_url,
	evidence_email, evidence_snippets_json, keywords_json, keywords_text,
	last_seen_at, last_verified_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(canonical_id) DO UPDATE SET
	name                   = COALESCE(NULLIF(excluded.name, ''), supervisors.name),
	title                  = COALESCE(NULLIF(excluded.title, ''), supervisors.title),
	institution            = COALESCE(NULLIF(excluded.institution, ''), supervisors.institution),
	domain                 = COALESCE(NULLIF(excluded.domain, ''), supervisors.domain),
	country                = COALESCE(NULLIF(excluded.country, ''), supervisors.country),
	region                 = COALESCE(NULLIF(excluded.region, ''), supervisors.region),
	email                  = COALESCE(NULLIF(excluded.email, ''), supervisors.email),
	email_confidence       = CASE WHEN excluded.email = '' THEN supervisors.email_confidence ELSE excluded.email_confidence END,
	homepage               = COALESCE(NULLIF(excluded.homepage, ''), supervisors.homepage),
	profile_url            = COALESCE(NULLIF(excluded.profile_url, ''), supervisors.profile_url),
	source_url             = COALESCE(NULLIF(excluded.source_url, ''), supervisors.source_url),
	evidence_email         = COALESCE(NULLIF(excluded.evidence_email, ''), supervisors.evidence_email),
	evidence_snippets_json = COALESCE(NULLIF(excluded.evidence_snippets_json, '[]'), supervisors.evidence_snippets_json),
	keywords_json          = COALESCE(NULLIF(excluded.keywords_json, '[]'), supervisors.keywords_json),
	keywords_text          = COALESCE(NULLIF(excluded.keywords_text, ''), supervisors.keywords_text),
	last_seen_at           = excluded.last_seen_at,
	last_verified_at       = COALESCE(excluded.last_verified_at, supervisors.last_verified_at),
	updated_at             = excluded.updated_at
`

func (s *SQLiteStore) UpsertCandidate(ctx context.Context, c model.Candidate) error {
	return s.upsert(ctx, s.db, c, time.Now().UTC())
}

// UpsertMany upserts every candidate in one transaction and returns how many
// were written.
func (s *SQLiteStore) UpsertMany(ctx context.Context, cands []model.Candidate) (int, error) {
	if len(cands) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, c := range cands {
		if err := s.upsert(ctx, tx, c, now); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert")
	}
	return len(cands), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) upsert(ctx context.Context, ex execer, c model.Candidate, now time.Time) error {
	if c.CanonicalID == "" {
		c.CanonicalID = identity.CanonicalID(c.Email, c.Name, c.Institution, c.Domain, c.ProfileURL)
	}
	r := toRecord(c, now)

	var verified any
	if r.LastVerifiedAt != nil {
		verified = *r.LastVerifiedAt
	}

	_, err := ex.ExecContext(ctx, sqliteUpsert,
		r.CanonicalID, r.Name, r.Title, r.Institution, r.Domain, r.Country, r.Region,
		r.Email, r.EmailConfidence, r.Homepage, r.ProfileURL, r.SourceURL,
		r.EvidenceEmail, r.SnippetsJSON, r.KeywordsJSON, r.KeywordsText,
		r.LastSeenAt, verified, now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert supervisor %s", r.CanonicalID)
}

const supervisorColumns = `s.canonical_id, s.name, s.title, s.institution, s.domain, s.country, s.region,
	s.email, s.email_confidence, s.homepage, s.profile_url, s.source_url,
	s.evidence_email, s.evidence_snippets_json, s.keywords_json, s.keywords_text,
	s.last_seen_at, s.last_verified_at`

// QueryCandidates returns stored supervisors matching the region/country
// lists and any of the first ten keywords, most recently seen first.
func (s *SQLiteStore) QueryCandidates(ctx context.Context, f Filter) ([]model.Candidate, error) {
	var where []string
	var args []any

	if regions := lowerAll(f.Regions); len(regions) > 0 {
		where = append(where, `LOWER(s.region) IN (`+placeholders(len(regions))+`)`)
		for _, r := range regions {
			args = append(args, r)
		}
	}
	if countries := lowerAll(f.Countries); len(countries) > 0 {
		where = append(where, `LOWER(s.country) IN (`+placeholders(len(countries))+`)`)
		for _, c := range countries {
			args = append(args, c)
		}
	}

	from := `supervisors s`
	if kws := queryKeywords(f.Keywords); len(kws) > 0 {
		if s.fts {
			from = `supervisors s JOIN supervisors_fts ON s.id = supervisors_fts.rowid`
			where = append(where, `supervisors_fts MATCH ?`)
			args = append(args, ftsQuery(kws))
		} else {
			likes := make([]string, len(kws))
			for i, kw := range kws {
				likes[i] = `LOWER(s.keywords_text) LIKE ?`
				args = append(args, "%"+strings.ToLower(kw)+"%")
			}
			where = append(where, "("+strings.Join(likes, " OR ")+")")
		}
	}

	query := `SELECT ` + supervisorColumns + ` FROM ` + from
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY s.last_seen_at DESC LIMIT ?`
	args = append(args, queryLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query supervisors")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Candidate
	for rows.Next() {
		var r record
		var verified sql.NullTime
		if err := rows.Scan(
			&r.CanonicalID, &r.Name, &r.Title, &r.Institution, &r.Domain, &r.Country, &r.Region,
			&r.Email, &r.EmailConfidence, &r.Homepage, &r.ProfileURL, &r.SourceURL,
			&r.EvidenceEmail, &r.SnippetsJSON, &r.KeywordsJSON, &r.KeywordsText,
			&r.LastSeenAt, &verified,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan supervisor")
		}
		if verified.Valid {
			t := verified.Time
			r.LastVerifiedAt = &t
		}
		out = append(out, r.candidate())
	}
	return out, eris.Wrap(rows.Err(), "sqlite: query supervisors iterate")
}

// --- Page cache ---

// GetCachedPage returns the cached page for url when it is younger than
// maxAge, or nil.
func (s *SQLiteStore) GetCachedPage(ctx context.Context, url string, maxAge time.Duration) (*model.Page, error) {
	var p model.Page
	var fetchedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT url, html, text_content, status_code, fetched_at FROM page_cache WHERE url = ?`,
		url,
	).Scan(&p.URL, &p.HTML, &p.Text, &p.StatusCode, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached page")
	}
	if maxAge > 0 && time.Since(fetchedAt) > maxAge {
		return nil, nil
	}
	p.FromCache = true
	return &p, nil
}

func (s *SQLiteStore) SetCachedPage(ctx context.Context, page model.Page) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_cache (url, html, text_content, status_code, fetched_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET html = excluded.html, text_content = excluded.text_content,
		 status_code = excluded.status_code, fetched_at = excluded.fetched_at`,
		page.URL, page.HTML, page.Text, page.StatusCode, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: set cached page")
}

// PrunePageCache deletes rows older than maxAge (when positive) and then
// trims the table to the newest maxEntries rows (when positive).
func (s *SQLiteStore) PrunePageCache(ctx context.Context, maxAge time.Duration, maxEntries int) (int, error) {
	var deleted int64
	if maxAge > 0 {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM page_cache WHERE fetched_at < ?`, time.Now().UTC().Add(-maxAge))
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: prune expired pages")
		}
		n, _ := res.RowsAffected()
		deleted += n
	}
	if maxEntries > 0 {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM page_cache WHERE url NOT IN (
				SELECT url FROM page_cache ORDER BY fetched_at DESC LIMIT ?
			)`, maxEntries)
		if err != nil {
			return int(deleted), eris.Wrap(err, "sqlite: prune page cache overflow")
		}
		n, _ := res.RowsAffected()
		deleted += n
	}
	return int(deleted), nil
}

// helpers

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var reqJSON string
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &reqJSON, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(reqJSON), &r.Request); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal request")
	}
	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
