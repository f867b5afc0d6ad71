//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/supervisor-cli/internal/api"
	"github.com/sells-group/supervisor-cli/internal/config"
	"github.com/sells-group/supervisor-cli/internal/model"
)

func TestBuildServer(t *testing.T) {
	srv := buildServer(8081, http.NotFoundHandler())
	assert.Equal(t, ":8081", srv.Addr)
	assert.Equal(t, 10*time.Second, srv.ReadHeaderTimeout)
	assert.NotNil(t, srv.Handler)
}

func TestServe_RouterOverSQLite(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "serve.db"),
	}}
	ctx := context.Background()

	st, err := openStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.UpsertCandidate(ctx, model.Candidate{
		CanonicalID: "jane-doe|mit",
		Name:        "Jane Doe",
		Institution: "MIT",
		Country:     "United States",
		Region:      "North America",
		Keywords:    []string{"medical imaging"},
		FitScore:    0.5,
		Tier:        model.TierCore,
		SourceURL:   "https://www.mit.edu/people/jane",
	}))

	ts := httptest.NewServer(api.NewRouter(st))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/supervisors?countries=United%20States")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got []model.Candidate
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "Jane Doe", got[0].Name)

	missing, err := http.Get(ts.URL + "/runs/does-not-exist")
	require.NoError(t, err)
	defer missing.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}
