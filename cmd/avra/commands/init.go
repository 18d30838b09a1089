package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reis-ship-it/avra-sub011/pkg/avrasignal"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Provision the local agent identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			agents, err := container.GetAllAgents(ctx)
			if err != nil {
				return err
			}
			if len(agents) > 0 {
				return fmt.Errorf("agent already provisioned (service ID %s)", agents[0].ServiceID)
			}
			agent, err := avrasignal.ProvisionAgent(ctx, container, cfg.Agent.DeviceID)
			if err != nil {
				return err
			}
			fmt.Println("Agent created.")
			fmt.Printf("Service ID: %s\n", agent.ServiceID)
			fmt.Printf("Device ID: %d\n", agent.DeviceID)
			fmt.Printf("Registration ID: %d\n", agent.RegistrationID)
			return nil
		},
	}
}
