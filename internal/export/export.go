// Package export writes the selected supervisors to CSV and XLSX files.
package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/supervisor-cli/internal/model"
)

// Columns defines the ordered output columns.
var Columns = []string{
	"Institution",
	"QS Rank",
	"Region",
	"Country",
	"Title",
	"Name",
	"Email",
	"Profile URL",
	"Keywords",
	"Fit Score",
	"Tier",
	"Matched Terms",
	"Scholar URL",
}

const profileURLCol = 7

// Write exports candidates to path. A .csv or .xlsx extension selects the
// format; a path without an extension gets both files, written concurrently.
// The returned slice lists the files written.
func Write(ctx context.Context, cands []model.Candidate, path string) ([]string, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "export: create output dir")
		}
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return []string{path}, WriteCSV(cands, path)
	case ".xlsx":
		return []string{path}, WriteXLSX(cands, path)
	case "":
		csvPath, xlsxPath := path+".csv", path+".xlsx"
		g, _ := errgroup.WithContext(ctx)
		g.Go(func() error { return WriteCSV(cands, csvPath) })
		g.Go(func() error { return WriteXLSX(cands, xlsxPath) })
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return []string{csvPath, xlsxPath}, nil
	default:
		return nil, eris.Errorf("export: unsupported output format %q", ext)
	}
}

// WriteCSV writes candidates as a CSV file.
func WriteCSV(cands []model.Candidate, path string) error {
	f, err := os.Create(path) //nolint:gosec
	if err != nil {
		return eris.Wrap(err, "export: create csv")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, c := range cands {
		if err := w.Write(Row(c)); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush csv")
}

// WriteXLSX writes candidates to a "Supervisors" sheet with a bold header
// and link-styled profile URLs.
func WriteXLSX(cands []model.Candidate, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Supervisors")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	bold := xlsx.NewStyle()
	bold.Font.Bold = true
	bold.Alignment.Horizontal = "center"
	bold.ApplyFont = true
	bold.ApplyAlignment = true

	link := xlsx.NewStyle()
	link.Font.Color = "FF0563C1"
	link.Font.Underline = true
	link.ApplyFont = true

	header := sheet.AddRow()
	for _, col := range Columns {
		cell := header.AddCell()
		cell.SetString(col)
		cell.SetStyle(bold)
	}

	for _, c := range cands {
		row := sheet.AddRow()
		for i, v := range Row(c) {
			cell := row.AddCell()
			switch {
			case i == 1 && c.QSRank > 0:
				cell.SetInt(c.QSRank)
			case i == 9:
				cell.SetFloatWithFormat(round3(c.FitScore), "0.000")
			case i == profileURLCol && isHTTP(v):
				cell.SetString(v)
				cell.SetStyle(link)
			default:
				cell.SetString(v)
			}
		}
	}

	for i, col := range Columns {
		width := min(max(len(col), 15)+2, 50)
		sheet.SetColWidth(i, i, float64(width))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save xlsx")
	}
	return nil
}

// Row maps a candidate to the output columns.
func Row(c model.Candidate) []string {
	rank := ""
	if c.QSRank > 0 {
		rank = strconv.Itoa(c.QSRank)
	}
	return []string{
		c.Institution,
		rank,
		c.Region,
		c.Country,
		c.Title,
		CleanName(c.Name),
		c.Email,
		c.ProfileURL,
		strings.Join(c.Keywords, ", "),
		strconv.FormatFloat(round3(c.FitScore), 'f', 3, 64),
		string(c.Tier),
		strings.Join(c.MatchedTerms, ", "),
		c.ScholarURL,
	}
}

var honorificRe = regexp.MustCompile(`(?i)\b(professor|prof|dr|mrs|mr|ms)\b\.?`)

// CleanName removes honorifics from a display name.
func CleanName(name string) string {
	name = honorificRe.ReplaceAllString(name, " ")
	return strings.Join(strings.Fields(name), " ")
}

func round3(v float64) float64 {
	f, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 3, 64), 64)
	return f
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
