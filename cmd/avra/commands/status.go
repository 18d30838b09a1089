package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show agent, key and session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cli, err := openClient(ctx)
			if err != nil {
				return err
			}
			defer cli.Close()
			fmt.Printf("Service ID: %s\n", cli.Store.ServiceID)
			fmt.Printf("Device ID: %d\n", cli.Store.DeviceID)
			fmt.Printf("Registration ID: %d\n", cli.Store.RegistrationID)
			count, err := cli.UploadedPreKeyCount(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Uploaded one-time prekeys not yet consumed: %d\n", count)
			sessions, err := cli.ListSessions(ctx)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No active sessions")
				return nil
			}
			fmt.Printf("Active sessions (%d):\n", len(sessions))
			for _, peer := range sessions {
				key, trustLevel, err := cli.LoadRemoteIdentityKeyBytes(ctx, peer)
				if err != nil {
					return err
				}
				trust := "no identity pinned"
				if key != nil {
					trust = string(trustLevel)
				}
				fmt.Printf("  %s (%s)\n", peer, trust)
			}
			return nil
		},
	}
}
