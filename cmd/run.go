package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/supervisor-cli/internal/model"
	"github.com/sells-group/supervisor-cli/internal/pipeline"
	"github.com/sells-group/supervisor-cli/internal/profile"
)

// runOptions mirrors the run command flags.
type runOptions struct {
	cv            string
	keywords      string
	universities  string
	out           string
	profilePath   string
	regions       []string
	countries     []string
	qsMin         int
	qsMax         int
	target        int
	freeTier      bool
	allowStudents bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover supervisors matching a CV or keywords",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts := runOpts
		if !cmd.Flags().Changed("target") && cfg.Pipeline.Target > 0 {
			opts.target = cfg.Pipeline.Target
		}

		req, err := buildRunRequest(opts)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		zap.L().Info("run finished",
			zap.String("run_id", result.RunID),
			zap.Int("local_hits", result.LocalHits),
			zap.Int("online_hits", result.OnlineHits),
			zap.Int("selected", len(result.Selected)),
		)

		formatCandidates(os.Stdout, result.Selected)
		for _, f := range result.Files {
			fmt.Fprintf(os.Stderr, "wrote %s\n", f)
		}
		return nil
	},
}

// buildRunRequest turns flags into a validated pipeline request. Input files
// must exist before any run is recorded.
func buildRunRequest(o runOptions) (pipeline.Request, error) {
	req := pipeline.Request{
		RunRequest: model.RunRequest{
			CVPath:           o.cv,
			Keywords:         o.keywords,
			UniversitiesPath: o.universities,
			OutPath:          o.out,
			Regions:          o.regions,
			Countries:        o.countries,
			QSMin:            o.qsMin,
			QSMax:            o.qsMax,
			Target:           o.target,
			FreeTier:         o.freeTier,
		},
		AllowStudentPostdoc: o.allowStudents,
	}

	if o.profilePath != "" {
		p, err := profile.Load(o.profilePath)
		if err != nil {
			return req, err
		}
		req.Profile = &p
	}

	if err := req.Validate(); err != nil {
		return req, err
	}
	if req.Target < 0 {
		return req, eris.Errorf("target must be positive, got %d", req.Target)
	}

	if _, err := os.Stat(req.UniversitiesPath); err != nil {
		return req, eris.Wrapf(err, "universities file %s", req.UniversitiesPath)
	}
	if req.CVPath != "" {
		if _, err := os.Stat(req.CVPath); err != nil {
			return req, eris.Wrapf(err, "cv file %s", req.CVPath)
		}
	}
	return req, nil
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.cv, "cv", "", "path to CV (txt or md)")
	f.StringVar(&runOpts.keywords, "keywords", "", "free-text research keywords")
	f.StringVar(&runOpts.universities, "universities", "", "university list (csv or xlsx)")
	f.StringVar(&runOpts.out, "out", "", "output path (.csv or .xlsx)")
	f.StringVar(&runOpts.profilePath, "profile", "", "YAML research profile to use instead of building one")
	f.StringSliceVar(&runOpts.regions, "regions", nil, "comma-separated regions to include")
	f.StringSliceVar(&runOpts.countries, "countries", nil, "comma-separated countries to include")
	f.IntVar(&runOpts.qsMin, "qs_min", 0, "best QS rank to include")
	f.IntVar(&runOpts.qsMax, "qs_max", 0, "worst QS rank to include")
	f.IntVar(&runOpts.target, "target", 100, "number of supervisors to select")
	f.BoolVar(&runOpts.freeTier, "free-tier", false, "small preview list, one supervisor per institution")
	f.BoolVar(&runOpts.allowStudents, "allow-students", false, "keep student and postdoc pages")
	_ = runCmd.MarkFlagRequired("universities")
	rootCmd.AddCommand(runCmd)
}
