package main

import (
	"fmt"

	"github.com/anonto42/barrierfree/backend/internal/services"
	"github.com/spf13/cobra"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill-solutions",
	Short: "Move proposals stored inline on issues into the proposals collection",
	Long: `Older issues carry designer proposals inline. This copies each one into
the proposals collection, keeping the first proposal per designer, recomputes
the issue's proposal count and clears the inline list. It is safe to rerun.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		return withServices(ctx, func(svc *services.Services) error {
			rep, err := svc.Proposals.BackfillLegacySolutions(ctx)
			if err != nil {
				return err
			}
			return report(cmd, rep, fmt.Sprintf("%d issues: %d proposals migrated, %d duplicates skipped",
				rep.Issues, rep.Migrated, rep.Skipped))
		})
	},
}
