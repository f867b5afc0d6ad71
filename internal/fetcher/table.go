package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadRows reads a .csv or .xlsx file into rows, header row included.
func ReadRows(ctx context.Context, path string) ([][]string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		return ReadXLSX(path, XLSXOptions{})
	case ".csv", ".txt":
		f, err := os.Open(path) //nolint:gosec
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: open table")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(ctx, f)
	default:
		return nil, eris.Errorf("fetcher: unsupported table format %q", ext)
	}
}
