package main

import (
	"fmt"

	"github.com/anonto42/barrierfree/backend/internal/services"
	"github.com/spf13/cobra"
)

var reconcileUser string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute derived state from the source rows",
}

var reconcileStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Recount follower, following, like, comment and proposal counters",
	Long: `Recount every derived counter from its source rows and overwrite the
stored values. Running it twice in a row changes nothing the second time.

Self-follow edges are left out of the counts and reported as malformed.`,
	RunE: runReconcileStats,
}

var reconcileLifecycleCmd = &cobra.Command{
	Use:   "lifecycle",
	Short: "Repair issue status drift and release abandoned claims",
	RunE:  runReconcileLifecycle,
}

func init() {
	reconcileStatsCmd.Flags().StringVar(&reconcileUser, "user", "", "Only this user and the issues they reported")
	reconcileCmd.AddCommand(reconcileStatsCmd)
	reconcileCmd.AddCommand(reconcileLifecycleCmd)
}

func runReconcileStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	return withServices(ctx, func(svc *services.Services) error {
		if reconcileUser != "" {
			userID, err := parseUserID(reconcileUser)
			if err != nil {
				return err
			}
			stats, err := svc.Stats.ReconcileUser(ctx, userID)
			if err != nil {
				return err
			}
			return report(cmd, stats, fmt.Sprintf("user %d: following=%d followers=%d likes=%d",
				userID, stats.FollowingCount, stats.FollowersCount, stats.LikesCount))
		}
		rep, err := svc.Stats.ReconcileAll(ctx)
		if err != nil {
			return err
		}
		return report(cmd, rep, fmt.Sprintf("reconciled %d users and %d issues (%d malformed)",
			rep.Users, rep.Issues, rep.Malformed))
	})
}

func runReconcileLifecycle(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	return withServices(ctx, func(svc *services.Services) error {
		rep, err := svc.Projects.ResyncAll(ctx)
		if err != nil {
			return err
		}
		return report(cmd, rep, fmt.Sprintf("checked %d projects: %d repaired, %d claims released, %d malformed",
			rep.Projects, rep.Repaired, rep.Released, rep.Malformed))
	})
}
