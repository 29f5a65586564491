package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lifegpc/cwm-export/pkg/decrypt"
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt <file>",
	Short: "Decrypt a raw payload file and print it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		passphrase, _ := cmd.Flags().GetString("passphrase")

		raw, err := os.ReadFile(args[0])
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to read %s: %w", args[0], err))
		}

		plain, err := decrypt.DecryptOnce(string(raw), passphrase)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("decryption failed: %w", err))
		}
		os.Stdout.Write(plain)
	},
}

func init() {
	decryptCmd.Flags().StringP("passphrase", "p", decrypt.DefaultKey, "Passphrase used to derive the key")
}
