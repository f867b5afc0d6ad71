package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOpts(base string) []Option {
	return []Option{
		WithBaseURL(base),
		WithRateLimit(6000, time.Millisecond),
		WithBackoff(3, time.Millisecond),
	}
}

func items(start, n int) []Result {
	out := make([]Result, n)
	for i := range out {
		idx := start + i
		out[i] = Result{
			Title:   fmt.Sprintf("Result %d", idx),
			Link:    fmt.Sprintf("https://test.edu/people/p%d", idx),
			Snippet: "Professor",
		}
	}
	return out
}

func TestSearch_SinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customsearch/v1", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "test-cx", q.Get("cx"))
		assert.Equal(t, "site:test.edu faculty", q.Get("q"))
		assert.Equal(t, "5", q.Get("num"))
		assert.Equal(t, "1", q.Get("start"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response{Items: items(1, 5)})
	}))
	defer srv.Close()

	client := NewClient("test-key", "test-cx", fastOpts(srv.URL)...)
	got, err := client.Search(context.Background(), "site:test.edu faculty", 5)

	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "https://test.edu/people/p1", got[0].Link)
}

func TestSearch_PaginatesAndStopsOnShortPage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		n := 10
		if start == 21 {
			n = 3
		}
		_ = json.NewEncoder(w).Encode(response{Items: items(start, n)})
	}))
	defer srv.Close()

	client := NewClient("k", "cx", fastOpts(srv.URL)...)
	got, err := client.Search(context.Background(), "q", 50)

	require.NoError(t, err)
	assert.Len(t, got, 23)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSearch_CapsAtFifty(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		_ = json.NewEncoder(w).Encode(response{Items: items(start, 10)})
	}))
	defer srv.Close()

	client := NewClient("k", "cx", fastOpts(srv.URL)...)
	got, err := client.Search(context.Background(), "q", 500)

	require.NoError(t, err)
	assert.Len(t, got, 50)
	assert.Equal(t, int32(5), calls.Load())
}

func TestSearch_RetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(response{Items: items(1, 2)})
	}))
	defer srv.Close()

	client := NewClient("k", "cx", fastOpts(srv.URL)...)
	got, err := client.Search(context.Background(), "q", 10)

	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSearch_429Exhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient("k", "cx", fastOpts(srv.URL)...)
	got, err := client.Search(context.Background(), "q", 10)

	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, int32(4), calls.Load())
}

func TestSearch_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "invalid API key"}`))
	}))
	defer srv.Close()

	client := NewClient("bad", "cx", fastOpts(srv.URL)...)
	_, err := client.Search(context.Background(), "q", 10)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearch_ReturnsPartialOnLaterFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") == "1" {
			_ = json.NewEncoder(w).Encode(response{Items: items(1, 10)})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient("k", "cx", fastOpts(srv.URL)...)
	got, err := client.Search(context.Background(), "q", 30)

	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestSearch_NoItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"kind": "customsearch#search"}`))
	}))
	defer srv.Close()

	client := NewClient("k", "cx", fastOpts(srv.URL)...)
	got, err := client.Search(context.Background(), "nothing", 10)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("k", "cx", fastOpts(srv.URL)...)
	got, err := client.Search(ctx, "q", 10)

	assert.Error(t, err)
	assert.Nil(t, got)
}
