package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/supervisor-cli/internal/fetcher"
	"github.com/sells-group/supervisor-cli/internal/llm"
	"github.com/sells-group/supervisor-cli/internal/pipeline"
	"github.com/sells-group/supervisor-cli/internal/store"
	anthropicpkg "github.com/sells-group/supervisor-cli/pkg/anthropic"
	"github.com/sells-group/supervisor-cli/pkg/jina"
	"github.com/sells-group/supervisor-cli/pkg/search"
)

// pipelineEnv holds the store and the pipeline built for a run.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	LLM      *llm.Extractor
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates the run configuration, opens the store and builds
// the pipeline with its clients. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("run"); err != nil {
		return nil, err
	}

	searcher, err := newSearcher()
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	extractor := llm.New(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic)
	crawler := fetcher.New(fetcher.OptionsFromConfig(cfg.Crawl), st)

	zap.L().Info("pipeline initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("search", cfg.Search.Provider),
		zap.String("model", extractor.Model()),
	)

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, st, crawler, searcher, extractor),
		LLM:      extractor,
	}, nil
}

// newSearcher builds the configured web search provider.
func newSearcher() (pipeline.Searcher, error) {
	switch cfg.Search.Provider {
	case "", "google":
		client := search.NewClient(cfg.Search.GoogleKey, cfg.Search.GoogleCX,
			search.WithBaseURL(cfg.Search.GoogleBaseURL),
			search.WithRateLimit(cfg.Search.PerMinute, time.Duration(cfg.Search.MinIntervalMS)*time.Millisecond),
			search.WithBackoff(cfg.Search.MaxRetries, time.Duration(cfg.Search.BackoffBaseSecs)*time.Second),
		)
		return pipeline.GoogleSearcher{Client: client}, nil
	case "jina":
		var opts []jina.Option
		if cfg.Jina.SearchBaseURL != "" {
			opts = append(opts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
		}
		return pipeline.JinaSearcher{Client: jina.NewClient(cfg.Jina.Key, opts...)}, nil
	default:
		return nil, eris.Errorf("unsupported search provider: %s", cfg.Search.Provider)
	}
}
