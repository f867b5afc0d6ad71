// Package university loads the institution list a run searches and applies
// the region, country and QS rank filters.
package university

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/supervisor-cli/internal/fetcher"
	"github.com/sells-group/supervisor-cli/internal/model"
)

// columns maps canonical field names to the header spellings accepted for them.
var columns = map[string][]string{
	"institution": {"institution", "name", "university"},
	"domain":      {"domain"},
	"country":     {"country"},
	"region":      {"region"},
	"qs_rank":     {"qs_rank_2026", "qs_rank", "qs"},
	"include":     {"include"},
	"notes":       {"notes"},
}

// Load reads universities from a .csv or .xlsx file with a header row.
// Rows whose include column is 0 are skipped and a missing domain is
// inferred from the institution name.
func Load(ctx context.Context, path string) ([]model.University, error) {
	rows, err := fetcher.ReadRows(ctx, path)
	if err != nil {
		return nil, eris.Wrap(err, "university: read list")
	}
	return Parse(rows)
}

// Parse converts table rows (header first) into universities.
func Parse(rows [][]string) ([]model.University, error) {
	if len(rows) == 0 {
		return nil, eris.New("university: empty list")
	}

	idx := headerIndex(rows[0])
	if _, ok := idx["institution"]; !ok {
		return nil, eris.New("university: missing institution column")
	}

	var out []model.University
	for i, row := range rows[1:] {
		get := func(field string) string {
			col, ok := idx[field]
			if !ok || col >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[col])
		}

		if inc := get("include"); inc != "" {
			if n, err := strconv.ParseFloat(inc, 64); err == nil && n == 0 {
				continue
			}
		}

		u := model.University{
			Institution: get("institution"),
			Domain:      strings.ToLower(get("domain")),
			Country:     get("country"),
			Region:      get("region"),
			Notes:       get("notes"),
		}
		if u.Institution == "" {
			continue
		}
		if rank := get("qs_rank"); rank != "" {
			n, err := strconv.ParseFloat(rank, 64)
			if err != nil {
				zap.L().Warn("university: ignoring bad qs rank",
					zap.Int("row", i+2),
					zap.String("value", rank),
				)
			} else {
				u.QSRank = int(n)
			}
		}
		if u.Domain == "" {
			u.Domain = InferDomain(u.Institution, u.Country)
		}
		out = append(out, u)
	}
	return out, nil
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(columns))
	lower := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := lower[key]; !dup {
			lower[key] = i
		}
	}
	for field, names := range columns {
		for _, name := range names {
			if col, ok := lower[name]; ok {
				idx[field] = col
				break
			}
		}
	}
	return idx
}

// knownDomains is checked in order; the first key contained in the
// lowercased institution name wins.
var knownDomains = []struct{ key, domain string }{
	{"imperial college london", "imperial.ac.uk"},
	{"university college london", "ucl.ac.uk"},
	{"king's college london", "kcl.ac.uk"},
	{"kings college london", "kcl.ac.uk"},
	{"london school of economics", "lse.ac.uk"},
	{"university of oxford", "ox.ac.uk"},
	{"university of cambridge", "cam.ac.uk"},
	{"university of edinburgh", "ed.ac.uk"},
	{"university of manchester", "manchester.ac.uk"},
	{"eth zurich", "ethz.ch"},
	{"oxford", "ox.ac.uk"},
	{"cambridge", "cam.ac.uk"},
	{"edinburgh", "ed.ac.uk"},
	{"manchester", "manchester.ac.uk"},
	{"imperial", "imperial.ac.uk"},
	{"ucl", "ucl.ac.uk"},
	{"kcl", "kcl.ac.uk"},
	{"lse", "lse.ac.uk"},
}

var stopWords = map[string]bool{
	"university": true, "of": true, "the": true, "college": true,
	"london": true, "school": true,
}

// InferDomain guesses a web domain for an institution. Known names map
// directly; other United Kingdom institutions get <first significant
// word>.ac.uk. An empty string means no guess.
func InferDomain(institution, country string) string {
	name := strings.ToLower(institution)
	for _, k := range knownDomains {
		if strings.Contains(name, k.key) {
			return k.domain
		}
	}

	c := strings.ToLower(country)
	if !strings.Contains(c, "united kingdom") && c != "uk" {
		return ""
	}
	for _, w := range strings.Fields(name) {
		w = strings.Trim(w, ",.()'")
		if stopWords[w] {
			continue
		}
		if len(w) > 2 {
			return w + ".ac.uk"
		}
		return ""
	}
	return ""
}

// Filter restricts the university list.
type Filter struct {
	Regions   []string
	Countries []string
	// QSMin and QSMax are inclusive; 0 means unset.
	QSMin int
	QSMax int
}

// Apply returns the universities that pass every set filter. A university
// without a QS rank fails when QSMin is set and passes a max-only filter.
func (f Filter) Apply(unis []model.University) []model.University {
	regions := lowerSet(f.Regions)
	countries := lowerSet(f.Countries)

	var out []model.University
	for _, u := range unis {
		if len(regions) > 0 && !regions[strings.ToLower(u.Region)] {
			continue
		}
		if len(countries) > 0 && !countries[strings.ToLower(u.Country)] {
			continue
		}
		if !f.rankOK(u) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func (f Filter) rankOK(u model.University) bool {
	if f.QSMin > 0 {
		if !u.HasRank() || u.QSRank < f.QSMin {
			return false
		}
	}
	if f.QSMax > 0 && u.HasRank() && u.QSRank > f.QSMax {
		return false
	}
	return true
}

// Validate reports an inverted QS range.
func (f Filter) Validate() error {
	if f.QSMin > 0 && f.QSMax > 0 && f.QSMin > f.QSMax {
		return eris.Errorf("university: qs_min %d is greater than qs_max %d", f.QSMin, f.QSMax)
	}
	return nil
}

// Allowed returns the set of lowercased institution names.
func Allowed(unis []model.University) map[string]bool {
	out := make(map[string]bool, len(unis))
	for _, u := range unis {
		out[strings.ToLower(strings.TrimSpace(u.Institution))] = true
	}
	return out
}

// ByHost returns the university whose domain matches host, including
// subdomains such as profiles.ucl.ac.uk for ucl.ac.uk.
func ByHost(unis []model.University, host string) (model.University, bool) {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	best := -1
	for i, u := range unis {
		d := strings.TrimPrefix(u.Domain, "www.")
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			if best < 0 || len(d) > len(unis[best].Domain) {
				best = i
			}
		}
	}
	if best < 0 {
		return model.University{}, false
	}
	return unis[best], true
}

func lowerSet(in []string) map[string]bool {
	out := make(map[string]bool, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out[s] = true
		}
	}
	return out
}
