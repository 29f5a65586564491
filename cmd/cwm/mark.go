package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lifegpc/cwm-export/pkg/services"
)

var markCmd = &cobra.Command{
	Use:       "mark <division-id> <linear|nonlinear>",
	Short:     "Set whether a division is part of the EPUB reading order",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"linear", "nonlinear"},
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid division id %q: %w", args[0], err))
		}

		var linear bool
		switch args[1] {
		case "linear", "yes":
			linear = true
		case "nonlinear", "no":
			linear = false
		default:
			cobra.CheckErr(fmt.Errorf("expected linear or nonlinear, got %q", args[1]))
		}

		err = withController(func(ctl *services.Controller) error {
			return ctl.MarkDivision(id, linear)
		})
		if err != nil {
			cobra.CheckErr(fmt.Errorf("mark failed: %w", err))
		}
		fmt.Printf("Division %d marked %s\n", id, args[1])
	},
}
