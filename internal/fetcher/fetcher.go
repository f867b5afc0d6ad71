// Package fetcher retrieves academic web pages for the discovery pipeline and
// reads the tabular files (CSV, XLSX) that university lists arrive in.
package fetcher

import (
	"context"
	"time"

	"github.com/sells-group/supervisor-cli/internal/model"
)

// Fetcher returns a page for a URL. Failures are reported through
// Page.StatusCode (0 when no response was obtained), never as an error.
type Fetcher interface {
	Fetch(ctx context.Context, url string) model.Page
}

// PageCache is the subset of the local repository the crawler uses to
// persist successful responses.
type PageCache interface {
	GetCachedPage(ctx context.Context, url string, maxAge time.Duration) (*model.Page, error)
	SetCachedPage(ctx context.Context, page model.Page) error
}
