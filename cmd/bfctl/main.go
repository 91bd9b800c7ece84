// Package main provides bfctl, the operator CLI for capability management,
// reconciliation and data backfills.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anonto42/barrierfree/backend/internal/router"
	"github.com/anonto42/barrierfree/backend/internal/services"
	"github.com/anonto42/barrierfree/backend/pkg/config"
	"github.com/spf13/cobra"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:   "bfctl",
	Short: "Operate the barrier-free backend",
	Long: `bfctl runs privileged maintenance against the configured databases.

It reads the same environment (and .env file) as the API server.

Examples:
  bfctl grant 12 admin                 # Make user 12 an administrator
  bfctl revoke 12 admin                # Take it away again
  bfctl reconcile stats                # Recount every derived counter
  bfctl reconcile stats --user 12      # Recount one user and their issues
  bfctl reconcile lifecycle            # Repair issue/project status drift
  bfctl backfill-solutions             # Move inline proposals to their collection
  bfctl token uid-dev --name Dev       # Mint a development token`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}

// withServices connects to both databases and runs fn against the services.
// Index setup is bounded by STORE_TIMEOUT; fn runs until done or interrupted.
func withServices(ctx context.Context, fn func(*services.Services) error) error {
	cfg := config.Load()
	db, err := config.InitDB(cfg)
	if err != nil {
		return err
	}
	defer db.CloseDB()

	setupCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()
	stores, err := router.NewStores(setupCtx, db)
	if err != nil {
		return err
	}
	svc, err := router.NewServices(cfg, stores, nil)
	if err != nil {
		return err
	}
	return fn(svc)
}

// report prints v as JSON with --json, otherwise as the summary line
func report(cmd *cobra.Command, v any, summary string) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), summary)
	return err
}
