package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func rotateKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-keys",
		Short: "Generate fresh prekeys and publish them to the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDirectory(); err != nil {
				return err
			}
			ctx := cmd.Context()
			cli, err := openClient(ctx)
			if err != nil {
				return err
			}
			defer cli.Close()
			err = cli.RotatePreKeys(ctx)
			if err != nil {
				return err
			}
			count, err := cli.UploadedPreKeyCount(ctx)
			if err != nil {
				return err
			}
			fmt.Println("Published a fresh prekey batch to the directory")
			fmt.Printf("Uploaded one-time prekeys not yet consumed: %d\n", count)
			return nil
		},
	}
}
