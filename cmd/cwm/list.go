package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lifegpc/cwm-export/pkg/app/components"
	"github.com/lifegpc/cwm-export/pkg/app/styles"
	"github.com/lifegpc/cwm-export/pkg/services"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the books known to the reader",
	Long:  "Display the books of the shelf and the read history in a formatted table",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		err := withController(func(ctl *services.Controller) error {
			books, err := ctl.ListBooks(cmd.Context())
			if err != nil {
				return err
			}
			if len(books) == 0 {
				fmt.Println(styles.MutedStyle.Render("📚 No books found in the reader database."))
				return nil
			}

			components.SortBooks(books)
			fmt.Printf("\n📚 %s\n\n", styles.SubtitleStyle.Render(fmt.Sprintf("Library (%d books)", len(books))))
			fmt.Println(components.BookTable(books))
			return nil
		})
		if err != nil {
			cobra.CheckErr(fmt.Errorf("list failed: %w", err))
		}
	},
}
