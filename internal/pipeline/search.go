package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/supervisor-cli/internal/model"
	"github.com/sells-group/supervisor-cli/pkg/jina"
	"github.com/sells-group/supervisor-cli/pkg/search"
)

// Searcher runs one web search query.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error)
}

// GoogleSearcher adapts the Custom Search client.
type GoogleSearcher struct {
	Client search.Client
}

// Search implements Searcher. Partial results are returned with the error.
func (g GoogleSearcher) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	res, err := g.Client.Search(ctx, query, maxResults)
	out := make([]model.SearchResult, 0, len(res))
	for _, r := range res {
		out = append(out, model.SearchResult{Title: r.Title, Link: r.Link, Snippet: r.Snippet})
	}
	return out, err
}

// JinaSearcher adapts the Jina search client.
type JinaSearcher struct {
	Client jina.Client
}

// Search implements Searcher. A leading site: operator becomes Jina's site
// filter.
func (j JinaSearcher) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	opts := []jina.SearchOption{jina.WithCount(maxResults)}
	if site, rest, ok := splitSite(query); ok {
		opts = append(opts, jina.WithSiteFilter(site))
		query = rest
		if query == "" {
			query = site
		}
	}

	resp, err := j.Client.Search(ctx, query, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: jina search")
	}
	var out []model.SearchResult
	for _, r := range resp.Data {
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		out = append(out, model.SearchResult{Title: r.Title, Link: r.URL, Snippet: snippet})
		if maxResults > 0 && len(out) == maxResults {
			break
		}
	}
	return out, nil
}

// splitSite separates a leading "site:host" term from the rest of a query.
func splitSite(query string) (string, string, bool) {
	query = strings.TrimSpace(query)
	if !strings.HasPrefix(query, "site:") {
		return "", query, false
	}
	first, rest, _ := strings.Cut(query, " ")
	return strings.TrimPrefix(first, "site:"), strings.TrimSpace(rest), true
}

// directoryQueries are the staff-directory searches for a domain.
func directoryQueries(domain string) []string {
	qs := []string{
		"site:" + domain + " staff directory",
		"site:" + domain + " faculty members",
		"site:profiles." + domain,
		"site:" + domain + " /people/",
		"site:" + domain + " /profiles/",
	}
	if strings.HasSuffix(domain, ".ac.uk") {
		for _, sub := range []string{"eng", "med", "www"} {
			qs = append(qs,
				"site:"+sub+"."+domain+" people",
				"site:"+sub+"."+domain+" staff",
			)
		}
	}
	return qs
}

// profileQueries are the keyword-driven searches for researcher pages.
func profileQueries(domain string, keywords, templates []string) []profileQuery {
	var qs []profileQuery
	if len(keywords) > 0 {
		top := strings.Join(keywords[:min(5, len(keywords))], " OR ")
		qs = append(qs,
			profileQuery{`site:` + domain + ` (` + top + `) professor OR "associate professor" OR "assistant professor"`, 10},
			profileQuery{`site:` + domain + ` (` + top + `)`, 10},
		)
		for _, kw := range keywords[:min(3, len(keywords))] {
			qs = append(qs, profileQuery{`site:` + domain + ` "` + kw + `" professor`, 5})
		}
	}
	for _, t := range templates[:min(3, len(templates))] {
		qs = append(qs, profileQuery{strings.ReplaceAll(t, "{domain}", domain), 5})
	}
	return qs
}

type profileQuery struct {
	query string
	max   int
}

// runQueries runs each query and returns the unique hits in order. Search
// errors are logged; whatever came back is kept.
func (p *Pipeline) runQueries(ctx context.Context, queries []profileQuery, seen map[string]bool) []model.SearchResult {
	var out []model.SearchResult
	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		res, err := p.searcher.Search(ctx, q.query, q.max)
		if err != nil {
			logSearchError(q.query, err)
		}
		for _, r := range res {
			link := strings.TrimSpace(r.Link)
			if link == "" || seen[link] {
				continue
			}
			seen[link] = true
			r.Link = link
			out = append(out, r)
		}
	}
	return out
}
