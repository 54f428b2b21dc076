package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/relicrush/relicpack/internal/config"
	"github.com/relicrush/relicpack/internal/publish"
	"github.com/relicrush/relicpack/internal/signing"
)

// publishFiles lists the release artifacts with their signatures and the
// checksum file, keeping only what exists.
func publishFiles(cfg *config.Config) []string {
	var files []string
	for _, f := range releaseArtifacts(cfg) {
		files = append(files, f)
		if _, err := os.Stat(f + signing.SignatureExt); err == nil {
			files = append(files, f+signing.SignatureExt)
		}
	}
	sums := filepath.Join(cfg.Resolve(cfg.Installer.OutputDir), signing.ChecksumFile)
	if _, err := os.Stat(sums); err == nil {
		files = append(files, sums)
	}
	return files
}

const stepPublish = "publish"

// publish [file...]: upload release files to object storage.
func (a *app) publishCmd() *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "publish [file...]",
		Short: "Upload the setup program, zip, signatures and SHA256SUMS",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.manifest()
			if err != nil {
				return err
			}
			files := args
			if len(files) == 0 {
				files = publishFiles(cfg)
			}
			if len(files) == 0 {
				return usageError(fmt.Errorf("nothing to publish; run package inno or package zip first"))
			}
			if version == "" {
				version = cfg.App.Version
			}
			store, err := a.store(cfg.Publish)
			if err != nil {
				return err
			}
			var uploaded []publish.Uploaded
			err = a.metrics.Time(stepPublish, func() error {
				var errUpload error
				uploaded, errUpload = publish.Upload(cmd.Context(), store, cfg.Publish.Bucket, cfg.Publish.Prefix, version, files)
				return errUpload
			})
			a.result = uploaded
			if err != nil {
				return err
			}
			return a.emit(cmd, uploaded, func(w io.Writer) error {
				for _, u := range uploaded {
					if _, errPrint := fmt.Fprintf(w, "%s -> %s/%s\n", filepath.Base(u.File), cfg.Publish.Bucket, u.Key); errPrint != nil {
						return errPrint
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "release version used in object keys (default: app.version)")
	return cmd
}
