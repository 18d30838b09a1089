package commands

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	qrterminal "github.com/mdp/qrterminal/v3"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/reis-ship-it/avra-sub011/pkg/avrasignal"
	"github.com/reis-ship-it/avra-sub011/pkg/avrasignal/store"
)

func safetyNumberCmd() *cobra.Command {
	var peerDevice int
	var showQR bool
	var pngPath string
	var scanned string
	cmd := &cobra.Command{
		Use:   "safety-number <peer-service-id>",
		Short: "Show or verify the safety number shared with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peerServiceID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid peer service ID: %w", err)
			}
			ctx := cmd.Context()
			cli, err := openClient(ctx)
			if err != nil {
				return err
			}
			defer cli.Close()
			peer := avrasignal.PeerDevice{ServiceID: peerServiceID, DeviceID: peerDevice}

			if scanned != "" {
				scannedBytes, err := base64.StdEncoding.DecodeString(scanned)
				if err != nil {
					return fmt.Errorf("invalid scanned code: %w", err)
				}
				match, err := cli.CompareScannedSafetyNumber(ctx, peer, scannedBytes)
				if err != nil {
					return err
				}
				if !match {
					return fmt.Errorf("safety number MISMATCH with %s, do not trust this channel until re-verified", peer)
				}
				err = cli.SetIdentityTrustLevel(ctx, peer, store.TrustLevelVerified)
				if err != nil {
					return err
				}
				fmt.Println("Safety number verified")
				return nil
			}

			number, err := cli.SafetyNumber(ctx, peer)
			if err != nil {
				return err
			}
			fmt.Println("Safety number:")
			fmt.Println(formatSafetyNumber(number.Numeric))
			scannable := base64.StdEncoding.EncodeToString(number.Scannable)
			if showQR {
				fmt.Println()
				qrterminal.GenerateWithConfig(scannable, qrterminal.Config{
					Level:     qrterminal.L,
					Writer:    os.Stdout,
					BlackChar: qrterminal.BLACK,
					WhiteChar: qrterminal.WHITE,
				})
			}
			if pngPath != "" {
				qrCode, err := qrcode.Encode(scannable, qrcode.Low, 512)
				if err != nil {
					return fmt.Errorf("failed to encode QR code: %w", err)
				}
				err = os.WriteFile(pngPath, qrCode, 0o600)
				if err != nil {
					return err
				}
				fmt.Printf("Wrote scannable code to %s\n", pngPath)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&peerDevice, "peer-device", avrasignal.DefaultDeviceID, "peer device ID")
	cmd.Flags().BoolVar(&showQR, "qr", false, "print a scannable QR code in the terminal")
	cmd.Flags().StringVar(&pngPath, "png", "", "write the scannable QR code to a PNG file")
	cmd.Flags().StringVar(&scanned, "scan", "", "verify a scanned code (base64) instead of printing")
	return cmd
}

// formatSafetyNumber renders the 60 digits in groups of five, four groups
// per line, the way messaging apps display them for manual comparison.
func formatSafetyNumber(numeric string) string {
	var b strings.Builder
	for i := 0; i < len(numeric); i += 5 {
		end := i + 5
		if end > len(numeric) {
			end = len(numeric)
		}
		b.WriteString(numeric[i:end])
		if end == len(numeric) {
			break
		}
		if (i/5)%4 == 3 {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
