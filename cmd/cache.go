package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the page cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop expired and excess cached pages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("query"); err != nil {
			return err
		}

		maxAge, _ := cmd.Flags().GetDuration("max-age")
		if !cmd.Flags().Changed("max-age") && cfg.Crawl.CacheTTLHours > 0 {
			maxAge = time.Duration(cfg.Crawl.CacheTTLHours) * time.Hour
		}
		maxEntries, _ := cmd.Flags().GetInt("max-entries")
		if !cmd.Flags().Changed("max-entries") && cfg.Pipeline.CachePruneMaxEntries > 0 {
			maxEntries = cfg.Pipeline.CachePruneMaxEntries
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		removed, err := st.PrunePageCache(ctx, maxAge, maxEntries)
		if err != nil {
			return eris.Wrap(err, "cache prune")
		}

		zap.L().Info("page cache pruned",
			zap.Int("removed", removed),
			zap.Duration("max_age", maxAge),
			zap.Int("max_entries", maxEntries),
		)
		fmt.Printf("removed %d cached pages\n", removed)
		return nil
	},
}

func init() {
	cachePruneCmd.Flags().Duration("max-age", 7*24*time.Hour, "drop pages older than this (default from config)")
	cachePruneCmd.Flags().Int("max-entries", 500, "keep at most this many pages (default from config)")
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}
