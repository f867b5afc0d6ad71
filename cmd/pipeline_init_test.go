//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/supervisor-cli/internal/config"
	"github.com/sells-group/supervisor-cli/internal/pipeline"
)

func TestPipelineEnv_Close_Nil(t *testing.T) {
	pe := &pipelineEnv{}
	assert.NotPanics(t, func() {
		pe.Close()
	})
}

func TestPipelineEnv_Close_WithStore(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "close.db"),
	}}

	st, err := initStore(context.Background())
	require.NoError(t, err)

	pe := &pipelineEnv{Store: st}
	assert.NotPanics(t, func() {
		pe.Close()
	})
}

func TestInitPipeline_ValidatesConfig(t *testing.T) {
	cfg = &config.Config{
		Search:   config.SearchConfig{Provider: "google"},
		Pipeline: config.PipelineConfig{Target: 10},
	}

	env, err := initPipeline(context.Background())
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestInitPipeline_SQLite(t *testing.T) {
	cfg = &config.Config{
		Store:     config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "run.db")},
		Anthropic: config.AnthropicConfig{Key: "sk-test", Model: "claude-haiku-4-5-20251001"},
		Search:    config.SearchConfig{Provider: "jina"},
		Jina:      config.JinaConfig{Key: "jina-test"},
		Pipeline:  config.PipelineConfig{Target: 10},
	}

	env, err := initPipeline(context.Background())
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Store)
	assert.NotNil(t, env.Pipeline)
	assert.Equal(t, "claude-haiku-4-5-20251001", env.LLM.Model())
}

func TestNewSearcher(t *testing.T) {
	cfg = &config.Config{Search: config.SearchConfig{
		Provider:  "google",
		GoogleKey: "key",
		GoogleCX:  "cx",
		PerMinute: 100,
	}}
	s, err := newSearcher()
	require.NoError(t, err)
	assert.IsType(t, pipeline.GoogleSearcher{}, s)

	cfg = &config.Config{
		Search: config.SearchConfig{Provider: "jina"},
		Jina:   config.JinaConfig{Key: "key", SearchBaseURL: "http://localhost:9"},
	}
	s, err = newSearcher()
	require.NoError(t, err)
	assert.IsType(t, pipeline.JinaSearcher{}, s)

	cfg = &config.Config{Search: config.SearchConfig{Provider: "bing"}}
	_, err = newSearcher()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported search provider")
}
