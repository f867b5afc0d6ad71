package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/supervisor-cli/internal/cvtext"
	"github.com/sells-group/supervisor-cli/internal/llm"
	"github.com/sells-group/supervisor-cli/internal/profile"
	anthropicpkg "github.com/sells-group/supervisor-cli/pkg/anthropic"
)

var (
	profileCV       string
	profileKeywords string
	profileOut      string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Build a research profile and print it as YAML",
	Long: "Builds the core, adjacent and negative keyword profile from a CV and/or keywords. " +
		"The output can be edited and passed back to run with --profile.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if profileCV == "" && profileKeywords == "" {
			return eris.New("at least one of --cv or --keywords is required")
		}
		if err := cfg.Validate("profile"); err != nil {
			return err
		}

		var sections string
		if profileCV != "" {
			text, err := cvtext.Read(profileCV)
			if err != nil {
				return err
			}
			sections = cvtext.Sections(text)
		}

		extractor := llm.New(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic)
		p := extractor.BuildResearchProfile(ctx, sections, profileKeywords)
		if p.Empty() {
			return eris.New("research profile has no keywords")
		}

		if usage, calls := extractor.Usage(); calls > 0 {
			usage.LogCost(extractor.Model(), "profile")
		}

		if profileOut == "" {
			return profile.Write(os.Stdout, p)
		}
		if err := profile.Save(profileOut, p); err != nil {
			return err
		}
		zap.L().Info("research profile written", zap.String("path", profileOut))
		return nil
	},
}

func init() {
	profileCmd.Flags().StringVar(&profileCV, "cv", "", "path to CV (txt or md)")
	profileCmd.Flags().StringVar(&profileKeywords, "keywords", "", "free-text research keywords")
	profileCmd.Flags().StringVar(&profileOut, "out", "", "write YAML to this file instead of stdout")
	rootCmd.AddCommand(profileCmd)
}
