package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/supervisor-cli/internal/config"
)

func subcommandNames(c *cobra.Command) map[string]bool {
	names := make(map[string]bool)
	for _, sub := range c.Commands() {
		names[sub.Name()] = true
	}
	return names
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(rootCmd)
	for _, name := range []string{"run", "profile", "query", "runs", "cache", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "supervisor-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestRunCommand_Flags(t *testing.T) {
	for _, name := range []string{
		"cv", "keywords", "universities", "out", "regions", "countries",
		"qs_min", "qs_max", "target", "free-tier", "profile", "allow-students",
	} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "run command should have --%s flag", name)
	}

	target := runCmd.Flags().Lookup("target")
	require.NotNil(t, target)
	assert.Equal(t, "100", target.DefValue)

	unis := runCmd.Flags().Lookup("universities")
	require.NotNil(t, unis)
	assert.Equal(t, []string{"true"}, unis.Annotations[cobra.BashCompOneRequiredFlag])
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestQueryCommand_Flags(t *testing.T) {
	flag := queryCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(runsCmd)
	for _, name := range []string{"list", "show", "stats"} {
		assert.True(t, names[name], "expected runs subcommand %q not found", name)
	}
}

func TestCacheCommand_Prune(t *testing.T) {
	assert.True(t, subcommandNames(cacheCmd)["prune"])

	maxEntries := cachePruneCmd.Flags().Lookup("max-entries")
	require.NotNil(t, maxEntries)
	assert.Equal(t, "500", maxEntries.DefValue)

	maxAge := cachePruneCmd.Flags().Lookup("max-age")
	require.NotNil(t, maxAge)
	assert.Equal(t, "168h0m0s", maxAge.DefValue)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "log-level", "store", "db"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "root should have --%s", name)
	}
}

// flagCmd returns a command carrying the global flags, parsed from args.
func flagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	globals = globalFlags{}
	t.Cleanup(func() { globals = globalFlags{} })

	c := &cobra.Command{Use: "x"}
	c.Flags().StringVar(&globals.configPath, "config", "", "")
	c.Flags().StringVar(&globals.logLevel, "log-level", "", "")
	c.Flags().StringVar(&globals.storeDrv, "store", "", "")
	c.Flags().StringVar(&globals.dbPath, "db", "", "")
	require.NoError(t, c.ParseFlags(args))
	return c
}

func TestApplyGlobalFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want config.Config
	}{
		{
			name: "unset flags keep config",
			want: config.Config{
				Log:   config.LogConfig{Level: "info"},
				Store: config.StoreConfig{Driver: "sqlite", SQLitePath: "data/supervisors.db"},
			},
		},
		{
			name: "sqlite path and level",
			args: []string{"--db", "/tmp/x.db", "--log-level", "debug"},
			want: config.Config{
				Log:   config.LogConfig{Level: "debug"},
				Store: config.StoreConfig{Driver: "sqlite", SQLitePath: "/tmp/x.db"},
			},
		},
		{
			name: "postgres url",
			args: []string{"--store", "postgres", "--db", "postgres://u@h/db"},
			want: config.Config{
				Log:   config.LogConfig{Level: "info"},
				Store: config.StoreConfig{Driver: "postgres", SQLitePath: "data/supervisors.db", DatabaseURL: "postgres://u@h/db"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &config.Config{
				Log:   config.LogConfig{Level: "info"},
				Store: config.StoreConfig{Driver: "sqlite", SQLitePath: "data/supervisors.db"},
			}
			applyGlobalFlags(flagCmd(t, tt.args...), c)
			assert.Equal(t, tt.want.Log, c.Log)
			assert.Equal(t, tt.want.Store, c.Store)
		})
	}
}
