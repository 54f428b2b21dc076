package cmd

import (
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relicrush/relicpack/internal/packaging"
)

func printAssets(w io.Writer, results []packaging.AssetResult) error {
	for _, r := range results {
		status := fmt.Sprintf("%d files", r.Files)
		if r.Skipped {
			status = "source missing, left empty"
		}
		if _, err := fmt.Fprintf(w, "%-6s %s -> %s (%s)\n", r.Name, r.Source, r.Dest, status); err != nil {
			return err
		}
	}
	return nil
}

// build: run PyInstaller and refresh the DB and icons trees in dist.
func (a *app) buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Package the application and refresh dist/DB and dist/icons",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.manifest()
			if err != nil {
				return err
			}
			b := packaging.New(cfg, a.runner, a.metrics)
			results, err := b.Build(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd, results, func(w io.Writer) error {
				return printAssets(w, results)
			})
		},
	}
}

// sync-assets: refresh dist/DB and dist/icons without packaging, optionally on change.
func (a *app) syncAssetsCmd() *cobra.Command {
	var (
		watch    bool
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sync-assets",
		Short: "Replace dist/DB and dist/icons with the source trees",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.manifest()
			if err != nil {
				return err
			}
			b := packaging.New(cfg, a.runner, a.metrics)
			results, err := b.RefreshAssets()
			if err != nil {
				return err
			}
			if !watch {
				return a.emit(cmd, results, func(w io.Writer) error {
					return printAssets(w, results)
				})
			}
			if errPrint := printAssets(cmd.OutOrStdout(), results); errPrint != nil {
				return errPrint
			}
			log.Info("watching asset sources, press Ctrl+C to stop")
			return b.Watch(cmd.Context(), debounce, func(res []packaging.AssetResult, errRefresh error) {
				if errRefresh == nil {
					_ = printAssets(cmd.OutOrStdout(), res)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and refresh when the sources change")
	cmd.Flags().DurationVar(&debounce, "debounce", packaging.DefaultDebounce, "quiet period before a refresh")
	return cmd
}
