// Package llm asks a language model for the three fixed-shape answers the
// discovery pipeline needs: a research profile from a CV, keywords and a
// provisional fit score for a profile page, and a shortlist of directory
// URLs. Every call degrades to a default value instead of failing.
package llm

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/supervisor-cli/internal/config"
	"github.com/sells-group/supervisor-cli/internal/model"
	"github.com/sells-group/supervisor-cli/internal/resilience"
	"github.com/sells-group/supervisor-cli/pkg/anthropic"
)

const (
	// MaxPageChars bounds the page text sent for keyword extraction.
	MaxPageChars = 4000
	// MaxDirectoryCandidates bounds the URL list sent for directory selection.
	MaxDirectoryCandidates = 50
)

// Extractor implements the keyword/LLM calls over an Anthropic client.
type Extractor struct {
	client anthropic.Client
	cfg    config.AnthropicConfig

	backoff time.Duration

	mu    sync.Mutex
	usage anthropic.TokenUsage
	calls int
}

// New creates an Extractor. A nil client makes every call return its default.
func New(client anthropic.Client, cfg config.AnthropicConfig) *Extractor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Extractor{client: client, cfg: cfg, backoff: 500 * time.Millisecond}
}

// Usage returns the accumulated token usage and number of successful calls.
func (e *Extractor) Usage() (anthropic.TokenUsage, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.usage, e.calls
}

// Model returns the configured model id.
func (e *Extractor) Model() string { return e.cfg.Model }

// BuildResearchProfile derives a research profile from CV text and a
// comma-separated keyword string. When the model is unavailable or answers
// with no usable keywords, the user keywords become the core list.
func (e *Extractor) BuildResearchProfile(ctx context.Context, cvText, keywords string) model.ResearchProfile {
	fallback := FallbackProfile(keywords)

	var out model.ResearchProfile
	if err := e.call(ctx, "research_profile", anthropic.CachedSystem(profileSystemPrompt, ""), profileUserPrompt(cvText, keywords), &out); err != nil {
		zap.L().Warn("llm: research profile failed, using keywords", zap.Error(err))
		return fallback
	}

	out = cleanProfile(out)
	if out.Empty() {
		zap.L().Warn("llm: research profile empty, using keywords")
		return fallback
	}
	return out
}

// ExtractProfileKeywords reads high-level research keywords and a
// provisional fit score from a supervisor page. The zero value is returned
// on any failure.
func (e *Extractor) ExtractProfileKeywords(ctx context.Context, pageText string, profile model.ResearchProfile) model.ProfileKeywords {
	var out model.ProfileKeywords
	system := anthropic.CachedSystem(pageSystemPrompt+"\n\n"+profileContext(profile), "")
	if err := e.call(ctx, "profile_keywords", system, pageUserPrompt(truncate(pageText, MaxPageChars)), &out); err != nil {
		zap.L().Debug("llm: profile keywords failed", zap.Error(err))
		return model.ProfileKeywords{}
	}
	out.Keywords = cleanList(out.Keywords)
	out.FitScore = min(max(out.FitScore, 0), 1)
	return out
}

// SelectDirectoryURLs asks which of the candidate URLs are staff or
// faculty directories. Only URLs present in candidates are returned, in the
// model's order.
func (e *Extractor) SelectDirectoryURLs(ctx context.Context, candidates []string, domain string) []string {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) > MaxDirectoryCandidates {
		candidates = candidates[:MaxDirectoryCandidates]
	}

	var out struct {
		DirectoryURLs []string `json:"directory_urls"`
	}
	if err := e.call(ctx, "directory_urls", anthropic.CachedSystem(directorySystemPrompt, ""), directoryUserPrompt(candidates, domain), &out); err != nil {
		zap.L().Debug("llm: directory selection failed", zap.String("domain", domain), zap.Error(err))
		return nil
	}

	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c] = true
	}
	seen := make(map[string]bool)
	var picked []string
	for _, u := range out.DirectoryURLs {
		u = strings.TrimSpace(u)
		if known[u] && !seen[u] {
			seen[u] = true
			picked = append(picked, u)
		}
	}
	return picked
}

// call sends one JSON-only prompt and decodes the answer into out, retrying
// failed requests and unparseable answers.
func (e *Extractor) call(ctx context.Context, phase string, system []anthropic.SystemBlock, user string, out any) error {
	if e.client == nil {
		return eris.New("llm: no client configured")
	}

	temp := e.cfg.Temperature
	req := anthropic.MessageRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temp,
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = e.cfg.MaxAttempts
	retry.InitialBackoff = e.backoff
	retry.ShouldRetry = func(error) bool { return ctx.Err() == nil }
	retry.OnRetry = resilience.RetryLogger("anthropic", phase)

	return resilience.Do(ctx, retry, func(ctx context.Context) error {
		resp, err := e.client.CreateMessage(ctx, req)
		if err != nil {
			return err
		}
		e.record(resp.Usage)

		text := cleanJSON(resp.Text())
		if text == "" {
			return eris.Errorf("llm: %s: empty response", phase)
		}
		if err := json.Unmarshal([]byte(text), out); err != nil {
			return eris.Wrapf(err, "llm: %s: decode response", phase)
		}
		return nil
	})
}

func (e *Extractor) record(u anthropic.TokenUsage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.usage = e.usage.Add(u)
	e.calls++
}

// FallbackProfile builds a profile whose core keywords are the
// comma-separated user keywords.
func FallbackProfile(keywords string) model.ResearchProfile {
	return model.ResearchProfile{Core: cleanList(strings.Split(keywords, ","))}
}

// cleanJSON extracts a JSON object from text that may carry markdown code
// fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}

func cleanProfile(p model.ResearchProfile) model.ResearchProfile {
	p.Core = cleanList(p.Core)
	p.Adjacent = cleanList(p.Adjacent)
	p.Negative = cleanList(p.Negative)
	p.PreferredDepartments = cleanList(p.PreferredDepartments)

	var templates []string
	for _, t := range cleanList(p.QueryTemplates) {
		if strings.Contains(t, "{domain}") {
			templates = append(templates, t)
		}
	}
	p.QueryTemplates = templates
	return p
}

// cleanList trims entries and drops blanks and case-insensitive duplicates.
func cleanList(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.Join(strings.Fields(s), " ")
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
