package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "supervisors",
		Columns:      []string{"canonical_id", "name"},
		ConflictKeys: []string{"canonical_id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "supervisors",
		ConflictKeys: []string{"canonical_id"},
	}, [][]any{{"a", "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "supervisors",
		Columns: []string{"canonical_id", "name"},
	}, [][]any{{"a", "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"canonical_id", "name"}
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_supervisors"}, cols).WillReturnResult(2)
	mock.ExpectExec("DELETE FROM").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "supervisors",
		Columns:      cols,
		ConflictKeys: []string{"canonical_id"},
	}, [][]any{{"a", "A"}, {"b", "B"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("db down"))

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "supervisors",
		Columns:      []string{"canonical_id"},
		ConflictKeys: []string{"canonical_id"},
	}, [][]any{{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
}

func TestBuildUpsertSQL(t *testing.T) {
	sql := buildUpsertSQL(UpsertConfig{
		Table:        "supervisors",
		Columns:      []string{"canonical_id", "name", "email", "seen"},
		ConflictKeys: []string{"canonical_id"},
		KeepNonEmpty: []string{"email"},
		SetExprs:     map[string]string{"seen": "now()"},
	}, `"_tmp"`)

	assert.Contains(t, sql, `INSERT INTO "supervisors" AS t ("canonical_id", "name", "email", "seen")`)
	assert.Contains(t, sql, `ON CONFLICT ("canonical_id")`)
	assert.Contains(t, sql, `"name" = EXCLUDED."name"`)
	assert.Contains(t, sql, `"email" = COALESCE(NULLIF(EXCLUDED."email", ''), t."email")`)
	assert.Contains(t, sql, `"seen" = now()`)
	assert.NotContains(t, sql, `"canonical_id" = EXCLUDED`)
}

func TestDedupSQL(t *testing.T) {
	sql := dedupSQL(`"_tmp"`, []string{"canonical_id"})
	assert.Equal(t, `DELETE FROM "_tmp" a USING "_tmp" b WHERE a.ctid < b.ctid AND a."canonical_id" = b."canonical_id"`, sql)
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.supervisors", `"public"."supervisors"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}
