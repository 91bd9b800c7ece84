package main

import (
	"fmt"
	"strconv"

	"github.com/anonto42/barrierfree/backend/internal/services"
	"github.com/spf13/cobra"
)

var grantCmd = &cobra.Command{
	Use:   "grant <user-id> <capability>",
	Short: "Grant a capability to a user",
	Long: `Grant a capability such as "admin". The grant is recorded in the audit
trail with the system (0) as the actor. Granting a held capability is a no-op.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeCapability(cmd, args, true)
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <user-id> <capability>",
	Short: "Revoke a capability from a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeCapability(cmd, args, false)
	},
}

func changeCapability(cmd *cobra.Command, args []string, grant bool) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	capability := args[1]
	return withServices(cmd.Context(), func(svc *services.Services) error {
		verb := "revoked"
		if grant {
			verb = "granted"
			err = svc.Guard.Bootstrap(cmd.Context(), userID, capability)
		} else {
			err = svc.Guard.BootstrapRevoke(cmd.Context(), userID, capability)
		}
		if err != nil {
			return err
		}
		return report(cmd,
			map[string]any{"user_id": userID, "capability": capability, "granted": grant},
			fmt.Sprintf("%s %q for user %d", verb, capability, userID))
	})
}

func parseUserID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return uint(id), nil
}
