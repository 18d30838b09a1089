package commands

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/reis-ship-it/avra-sub011/pkg/avrasignal"
)

func decryptCmd() *cobra.Command {
	var peerDevice int
	cmd := &cobra.Command{
		Use:   "decrypt <peer-service-id>",
		Short: "Decrypt a base64 ciphertext from stdin and print the plaintext",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peerServiceID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid peer service ID: %w", err)
			}
			encoded, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
			if err != nil {
				return fmt.Errorf("ciphertext is not valid base64: %w", err)
			}
			ctx := cmd.Context()
			cli, err := openClient(ctx)
			if err != nil {
				return err
			}
			defer cli.Close()
			peer := avrasignal.PeerDevice{ServiceID: peerServiceID, DeviceID: peerDevice}
			plaintext, err := cli.DecryptMessage(ctx, ciphertext, peer)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(plaintext)
			return err
		},
	}
	cmd.Flags().IntVar(&peerDevice, "peer-device", avrasignal.DefaultDeviceID, "peer device ID")
	return cmd
}
