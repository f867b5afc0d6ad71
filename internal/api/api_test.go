package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/supervisor-cli/internal/model"
	"github.com/sells-group/supervisor-cli/internal/store"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) QueryCandidates(ctx context.Context, f store.Filter) ([]model.Candidate, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Candidate), args.Error(1)
}

func (m *mockRepo) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockRepo) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func serve(t *testing.T, repo Repository, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Origin", "https://app.example.org")
	rr := httptest.NewRecorder()
	NewRouter(repo).ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	rr := serve(t, &mockRepo{}, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestSupervisors_PassesFilter(t *testing.T) {
	repo := &mockRepo{}
	repo.On("QueryCandidates", mock.Anything, store.Filter{
		Keywords:  []string{"medical imaging", "mri"},
		Regions:   []string{"Europe"},
		Countries: nil,
		Limit:     25,
	}).Return([]model.Candidate{{Name: "Jane Doe", Institution: "Test University", FromLocalDB: true}}, nil)

	rr := serve(t, repo, http.MethodGet, "/supervisors?keywords=medical+imaging,+mri,&regions=Europe&limit=25")

	require.Equal(t, http.StatusOK, rr.Code)
	var got []model.Candidate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Jane Doe", got[0].Name)
	repo.AssertExpectations(t)
}

func TestSupervisors_DefaultAndCappedLimit(t *testing.T) {
	repo := &mockRepo{}
	repo.On("QueryCandidates", mock.Anything, mock.MatchedBy(func(f store.Filter) bool { return f.Limit == defaultLimit })).
		Return(nil, nil).Once()
	repo.On("QueryCandidates", mock.Anything, mock.MatchedBy(func(f store.Filter) bool { return f.Limit == maxLimit })).
		Return([]model.Candidate{}, nil).Once()

	rr := serve(t, repo, http.MethodGet, "/supervisors")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = serve(t, repo, http.MethodGet, "/supervisors?limit=5000")
	require.Equal(t, http.StatusOK, rr.Code)
	repo.AssertExpectations(t)
}

func TestSupervisors_BadLimit(t *testing.T) {
	for _, limit := range []string{"abc", "0", "-3"} {
		rr := serve(t, &mockRepo{}, http.MethodGet, "/supervisors?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rr.Code, limit)
		assert.Contains(t, rr.Body.String(), "limit")
	}
}

func TestSupervisors_StoreError(t *testing.T) {
	repo := &mockRepo{}
	repo.On("QueryCandidates", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	rr := serve(t, repo, http.MethodGet, "/supervisors?keywords=x")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "db down")
}

func TestRuns(t *testing.T) {
	repo := &mockRepo{}
	repo.On("ListRuns", mock.Anything, model.RunFilter{Status: model.RunStatusComplete, Limit: 10}).
		Return([]model.Run{{ID: "run-1", Status: model.RunStatusComplete}}, nil)

	rr := serve(t, repo, http.MethodGet, "/runs?status=complete&limit=10")
	require.Equal(t, http.StatusOK, rr.Code)

	var got []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "run-1", got[0].ID)
}

func TestRun_FoundAndMissing(t *testing.T) {
	repo := &mockRepo{}
	repo.On("GetRun", mock.Anything, "run-1").Return(&model.Run{ID: "run-1", Status: model.RunStatusFailed}, nil)
	repo.On("GetRun", mock.Anything, "nope").Return(nil, store.ErrRunNotFound)
	repo.On("GetRun", mock.Anything, "boom").Return(nil, errors.New("db down"))

	rr := serve(t, repo, http.MethodGet, "/runs/run-1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"failed"`)

	rr = serve(t, repo, http.MethodGet, "/runs/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(t, repo, http.MethodGet, "/runs/boom")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	rr := serve(t, &mockRepo{}, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(t, &mockRepo{}, http.MethodPost, "/supervisors")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b c"}, splitList(" a, ,b c,"))
}
