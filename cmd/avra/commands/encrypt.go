package commands

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/reis-ship-it/avra-sub011/pkg/avrasignal"
)

func encryptCmd() *cobra.Command {
	var peerDevice int
	cmd := &cobra.Command{
		Use:   "encrypt <peer-service-id>",
		Short: "Encrypt stdin for a peer and print the base64 ciphertext",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peerServiceID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid peer service ID: %w", err)
			}
			plaintext, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			cli, err := openClient(ctx)
			if err != nil {
				return err
			}
			defer cli.Close()
			peer := avrasignal.PeerDevice{ServiceID: peerServiceID, DeviceID: peerDevice}
			encrypted, err := cli.EncryptMessage(ctx, plaintext, peer)
			if err != nil {
				return err
			}
			if encrypted.IsPreKeyMessage() {
				fmt.Fprintln(cmd.ErrOrStderr(), "New session established, ciphertext carries the handshake preamble")
			}
			fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(encrypted.Ciphertext))
			return nil
		},
	}
	cmd.Flags().IntVar(&peerDevice, "peer-device", avrasignal.DefaultDeviceID, "peer device ID")
	return cmd
}
