package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hnrobert/glsync/internal/config"
	"github.com/hnrobert/glsync/internal/hostusers"
	"github.com/hnrobert/glsync/internal/logger"
	"github.com/hnrobert/glsync/internal/syncer"
)

func newSyncCmd(configPath *string) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation against the configured GitLab groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", *configPath, err)
			}
			lvl, err := logger.ParseLevel(cfg.Logging.LogLevel)
			if err != nil {
				return err
			}
			if err := logger.Init(lvl, cfg.Logging.LogPath); err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			defer logger.Close()

			hostusers.EnsureSystemPath()
			if _, err := syncer.New(cfg, dryRun).Run(cmd.Context()); err != nil {
				logger.Error("sync failed: %v", err)
				return &exitError{code: apiExitCode(err), err: err}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log intended changes without touching the host")
	return cmd
}
