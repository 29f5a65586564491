package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lifegpc/cwm-export/pkg/services"
)

var importKeyCmd = &cobra.Command{
	Use:     "importkey",
	Aliases: []string{"ik"},
	Short:   "Import chapter keys into the key database",
	Long:    "Import the chapter keys of the reader's key directory or zip file into the key database",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		err := withController(func(ctl *services.Controller) error {
			n, err := ctl.ImportKeys(cmd.Context(), force)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d keys\n", n)
			return nil
		})
		if err != nil {
			cobra.CheckErr(fmt.Errorf("key import failed: %w", err))
		}
	},
}

func init() {
	importKeyCmd.Flags().BoolP("force", "f", false, "Overwrite keys that already exist with different content")
}
