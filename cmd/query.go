package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/supervisor-cli/internal/model"
	"github.com/sells-group/supervisor-cli/internal/store"
)

var (
	queryKeywords  string
	queryRegions   []string
	queryCountries []string
	queryLimit     int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search supervisors already in the local repository",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("query"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cands, err := st.QueryCandidates(ctx, store.Filter{
			Regions:   queryRegions,
			Countries: queryCountries,
			Keywords:  splitKeywords(queryKeywords),
			Limit:     queryLimit,
		})
		if err != nil {
			return eris.Wrap(err, "query candidates")
		}

		if len(cands) == 0 {
			fmt.Fprintln(os.Stderr, "No supervisors found.")
			return nil
		}
		formatCandidates(os.Stdout, cands)
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryKeywords, "keywords", "", "comma-separated keywords to match")
	queryCmd.Flags().StringSliceVar(&queryRegions, "regions", nil, "comma-separated regions")
	queryCmd.Flags().StringSliceVar(&queryCountries, "countries", nil, "comma-separated countries")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 50, "max number of supervisors")
	rootCmd.AddCommand(queryCmd)
}

// splitKeywords splits a comma- or semicolon-separated keyword list.
func splitKeywords(s string) []string {
	var out []string
	for _, k := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// formatCandidates writes a tabular list of candidates to w.
func formatCandidates(out io.Writer, cands []model.Candidate) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tINSTITUTION\tCOUNTRY\tSCORE\tTIER\tEMAIL")
	_, _ = fmt.Fprintln(w, "----\t-----------\t-------\t-----\t----\t-----")

	for _, c := range cands {
		email := c.Email
		if email == "" {
			email = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%s\t%s\n",
			truncate(c.Name, 30),
			truncate(c.Institution, 40),
			c.Country,
			c.FitScore,
			c.Tier,
			email,
		)
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}
