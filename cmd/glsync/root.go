package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hnrobert/glsync/internal/config"
	"github.com/hnrobert/glsync/internal/gitlab"
)

var (
	version = "dev"
	commit  = "none"
)

// Exit codes the surrounding scheduler/alerting keys on. Anything
// failing before a run starts (usage, unreadable config) exits 1.
const (
	exitConnect = 10
	exitToken   = 11
	exitRequest = 12
	exitUnknown = 13
)

func execute(ctx context.Context) int {
	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var configPath string
	rootCmd := &cobra.Command{
		Use:   "glsync",
		Short: "Synchronize GitLab group membership to local Unix accounts",
		Long: `glsync reconciles the members of configured GitLab groups against the
local user database: it creates missing accounts and groups, publishes
a sudoers file, and installs each member's SSH public keys. Accounts
are only ever created or extended, never removed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the configuration file")
	rootCmd.AddCommand(newSyncCmd(&configPath))
	rootCmd.AddCommand(newCheckConfigCmd(&configPath))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// exitError carries a specific process exit code up through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func apiExitCode(err error) int {
	var connect *gitlab.ConnectError
	var token *gitlab.TokenError
	var request *gitlab.RequestError
	switch {
	case errors.As(err, &connect):
		return exitConnect
	case errors.As(err, &token):
		return exitToken
	case errors.As(err, &request):
		return exitRequest
	}
	return exitUnknown
}
