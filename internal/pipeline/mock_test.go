package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/supervisor-cli/internal/model"
)

// --- Fetcher Mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) model.Page {
	args := m.Called(ctx, url)
	return args.Get(0).(model.Page)
}

// --- Searcher Mock ---

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	args := m.Called(ctx, query, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SearchResult), args.Error(1)
}

// --- LLM Mock ---

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) ExtractProfileKeywords(ctx context.Context, pageText string, profile model.ResearchProfile) model.ProfileKeywords {
	args := m.Called(ctx, pageText, profile)
	return args.Get(0).(model.ProfileKeywords)
}

func (m *mockLLM) BuildResearchProfile(ctx context.Context, cvText, keywords string) model.ResearchProfile {
	args := m.Called(ctx, cvText, keywords)
	return args.Get(0).(model.ResearchProfile)
}

func (m *mockLLM) SelectDirectoryURLs(ctx context.Context, candidates []string, domain string) []string {
	args := m.Called(ctx, candidates, domain)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}
