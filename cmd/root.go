package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/supervisor-cli/internal/config"
)

var cfg *config.Config

// globalFlags are the persistent flags shared by every subcommand. Each one,
// when set, wins over config.yaml and SUPERVISOR_* variables.
type globalFlags struct {
	configPath string
	logLevel   string
	storeDrv   string
	dbPath     string
}

var globals globalFlags

var rootCmd = &cobra.Command{
	Use:   "supervisor-cli",
	Short: "Find PhD supervisors that match a CV",
	Long: `supervisor-cli turns a CV or a list of research keywords into a ranked shortlist
of potential PhD supervisors.

Supervisors found by earlier runs are kept in a local store (SQLite by default)
and reused first. Only universities that still fall short are searched and
crawled. Each page must pass the extraction gates before it is scored against
the research profile, and the export spreads picks across institutions.

Typical use:
  supervisor-cli profile --cv cv.md --out profile.yaml
  supervisor-cli run --profile profile.yaml --universities qs.xlsx --out shortlist.xlsx
  supervisor-cli query --keywords "medical imaging" --countries "United Kingdom"`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadFile(globals.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyGlobalFlags(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		zap.L().Debug("config loaded",
			zap.String("command", cmd.Name()),
			zap.String("store", cfg.Store.Driver),
			zap.String("search", cfg.Search.Provider),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// applyGlobalFlags copies explicitly set persistent flags onto c.
func applyGlobalFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.Log.Level = globals.logLevel
	}
	if flags.Changed("store") {
		c.Store.Driver = globals.storeDrv
	}
	if flags.Changed("db") {
		if c.Store.Driver == "postgres" {
			c.Store.DatabaseURL = globals.dbPath
		} else {
			c.Store.SQLitePath = globals.dbPath
		}
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globals.configPath, "config", "", "config file (default ./config.yaml when present)")
	pf.StringVar(&globals.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&globals.storeDrv, "store", "", "supervisor store driver: sqlite or postgres")
	pf.StringVar(&globals.dbPath, "db", "", "SQLite file, or Postgres URL with --store postgres")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
