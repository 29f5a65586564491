package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/lifegpc/cwm-export/pkg/config"
	"github.com/lifegpc/cwm-export/pkg/metrics"
	"github.com/lifegpc/cwm-export/pkg/services"
)

var (
	v      = viper.New()
	cfg    *config.Config
	logger = zap.NewNop()
)

// flag name -> config key
var boundFlags = map[string]string{
	"db":           "db",
	"key":          "key",
	"cwmdb":        "cwmdb",
	"booksnew":     "booksnew",
	"type":         "type",
	"ebt":          "export_book_template",
	"ect":          "export_chapter_template",
	"icd":          "img_cache_dir",
	"image-type":   "image_type",
	"workers":      "workers",
	"metrics-file": "metrics_file",
}

var rootCmd = &cobra.Command{
	Use:   "cwm-export",
	Short: "Export the CiWeiMao novel cache",
	Long:  "Decrypt chapters cached by the CiWeiMao reader and export them as text and EPUB books",
	// export everything when no subcommand is given
	Run: func(cmd *cobra.Command, args []string) {
		exportCmd.Run(cmd, args)
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		useReal, _ := cmd.Flags().GetBool("real")
		save, _ := cmd.Flags().GetBool("save")

		if _, err := config.EnsureFile(path); err != nil {
			return err
		}
		if err := config.Read(v, path); err != nil {
			return err
		}
		for flag, key := range boundFlags {
			if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return err
			}
		}
		if useReal {
			config.UseAndroidPaths(v)
		}

		var err error
		if cfg, err = config.Decode(v); err != nil {
			return err
		}
		if logger, err = cfg.Logging.Prepare(); err != nil {
			return err
		}
		if save {
			return config.Save(v, path)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg != nil && cfg.MetricsFile != "" {
			err = metrics.WriteTextfile(cfg.MetricsFile)
		}
		// stdout cannot always be synced
		_ = logger.Sync()
		return err
	},
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", config.DefaultConfigFile, "The path of the config file")
	pf.StringP("db", "d", "", "The path of the key database file")
	pf.StringP("key", "k", "", "The path to Y2hlcy8 key directory or zip file")
	pf.String("cwmdb", "", "The path to NovelCiwei file")
	pf.StringP("booksnew", "b", "", "The path to booksnew directory or zip file")
	pf.StringP("type", "t", "", "Export type. Available types: epub, txt")
	pf.String("ebt", "", "Template of exported books. Keys: <ext>, <book_id>, <book_name>, <author_name>, <book_slug>")
	pf.String("ect", "", "Template of exported chapters. Keys: <ext>, <book_id>, <chapter_id>, <chapter_title>")
	pf.String("icd", "", "Path to image cache directory")
	pf.String("image-type", "", "Image rendering in EPUB: inline or footnote")
	pf.Int("workers", 0, "Books exported in parallel")
	pf.String("metrics-file", "", "Write prometheus metrics to this file after the run")
	pf.BoolP("real", "r", false, "Use the reader's default locations (Android, root required)")
	pf.Bool("save", false, "Save the effective settings to the config file")

	rootCmd.AddCommand(importKeyCmd)
	rootCmd.AddCommand(exportChapterCmd)
	rootCmd.AddCommand(exportBookCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(markCmd)
	rootCmd.AddCommand(decryptCmd)
	rootCmd.AddCommand(listCmd)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// withController runs fn with a controller over the loaded configuration.
func withController(fn func(ctl *services.Controller) error) (err error) {
	ctl, err := services.NewController(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open key store: %w", err)
	}
	defer func() {
		err = multierr.Append(err, ctl.Close())
	}()
	return fn(ctl)
}
