package cmd

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lifegpc/cwm-export/pkg/app/components"
	"github.com/lifegpc/cwm-export/pkg/app/styles"
	"github.com/lifegpc/cwm-export/pkg/config"
	"github.com/lifegpc/cwm-export/pkg/services"
)

var exportChapterCmd = &cobra.Command{
	Use:     "exportchapter <chapter-id>",
	Aliases: []string{"ec"},
	Short:   "Export a single chapter",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid chapter id %q: %w", args[0], err))
		}

		err = withExporter(func(e *services.Exporter) error {
			out, err := e.ExportChapter(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("📄 Chapter exported: %s\n", out)
			return nil
		})
		if err != nil {
			cobra.CheckErr(fmt.Errorf("chapter export failed: %w", err))
		}
	},
}

var exportBookCmd = &cobra.Command{
	Use:     "exportbook <book-id>",
	Aliases: []string{"eb"},
	Short:   "Export a book",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid book id %q: %w", args[0], err))
		}

		err = withExporter(func(e *services.Exporter) error {
			paths, err := e.ExportBook(cmd.Context(), id)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Printf("📖 Created: %s\n", p)
			}
			return nil
		})
		if err != nil {
			cobra.CheckErr(fmt.Errorf("book export failed: %w", err))
		}
	},
}

var exportCmd = &cobra.Command{
	Use:     "export",
	Aliases: []string{"e"},
	Short:   "Export every book on the shelf and in the read history",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		err := withExporter(func(e *services.Exporter) error {
			summary, err := e.ExportAll(cmd.Context())
			if err != nil {
				return err
			}
			printSummary(summary)
			return nil
		})
		if err != nil {
			cobra.CheckErr(fmt.Errorf("export failed: %w", err))
		}
	},
}

// withExporter runs fn while printing the exporter's progress.
func withExporter(fn func(e *services.Exporter) error) error {
	return withController(func(ctl *services.Controller) error {
		e, err := ctl.Exporter()
		if err != nil {
			return err
		}

		show := func(p services.ExportProgress) { fmt.Println(components.ProgressLine(p)) }
		if config.EnableColorOutput(os.Stdout) {
			width, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err != nil || width <= 0 {
				width = 80
			}
			show = components.NewLiveProgress(os.Stdout, min(width, 80)).Update
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			for progress := range e.GetProgressChannel() {
				show(progress)
			}
		}()

		err = fn(e)
		e.Close()
		<-done
		return err
	})
}

func printSummary(s *services.Summary) {
	fmt.Println()
	fmt.Println(styles.TitleStyle.Render(fmt.Sprintf("Exported %d books", len(s.Exported))))
	if len(s.Failed) == 0 {
		return
	}

	ids := make([]int64, 0, len(s.Failed))
	for id := range s.Failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fmt.Println(styles.StatusError.Render(fmt.Sprintf("%d books failed:", len(ids))))
	for _, id := range ids {
		fmt.Printf("  %d: %v\n", id, s.Failed[id])
	}
}
