package cmd

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relicrush/relicpack/internal/config"
	apperr "github.com/relicrush/relicpack/internal/errors"
	"github.com/relicrush/relicpack/internal/installer"
	"github.com/relicrush/relicpack/internal/layout"
	"github.com/relicrush/relicpack/internal/update"
)

func (a *app) updateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for and apply application releases from GitHub",
	}
	cmd.AddCommand(a.updateCheckCmd(), a.updateApplyCmd())
	return cmd
}

// updateSettings returns the manifest's update section, or the defaults with the
// token from the environment when there is no manifest.
func (a *app) updateSettings() config.UpdateConfig {
	if cfg := a.optionalManifest(); cfg != nil {
		return cfg.Update
	}
	return config.UpdateConfig{
		Owner: config.DefaultUpdateOwner,
		Repo:  config.DefaultUpdateRepo,
		Token: strings.TrimSpace(os.Getenv(config.EnvGitHubToken)),
	}
}

// installedVersion reads the version from root's install record, falling back to
// the manifest version.
func (a *app) installedVersion(root string) string {
	if root != "" {
		if rec, err := installer.LoadRecord(filepath.Join(root, layout.RecordFileName)); err == nil && rec != nil {
			return rec.Version
		}
	}
	if a.cfg != nil {
		return a.cfg.App.Version
	}
	return ""
}

// update check: report whether a newer release exists.
func (a *app) updateCheckCmd() *cobra.Command {
	var (
		current string
		root    string
		open    bool
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the installed version with the latest release",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := a.updateSettings()
			if current == "" {
				current = a.installedVersion(root)
			}
			if current == "" {
				return usageError(fmt.Errorf("unknown current version; pass --current or --root"))
			}
			info, err := a.updates(settings).Check(cmd.Context(), current)
			if err != nil {
				return err
			}
			if open && info.Available {
				if errOpen := update.OpenReleasesPage(settings.Owner, settings.Repo); errOpen != nil {
					log.WithError(errOpen).Warn("could not open the releases page")
				}
			}
			return a.emit(cmd, info, func(w io.Writer) error {
				if !info.Available {
					_, errPrint := fmt.Fprintf(w, "%s is up to date (latest %s)\n", info.Current, info.Latest)
					return errPrint
				}
				_, errPrint := fmt.Fprintf(w, "update available: %s -> %s\n%s\n", info.Current, info.Latest, update.ReleasesPage(settings.Owner, settings.Repo))
				return errPrint
			})
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "current version (default: install record or app.version)")
	cmd.Flags().StringVar(&root, "root", "", "install directory to read the version from")
	cmd.Flags().BoolVar(&open, "open", false, "open the releases page when an update is available")
	return cmd
}

type applyResult struct {
	Root     string   `json:"root"`
	From     string   `json:"from"`
	Version  string   `json:"version,omitempty"`
	Replaced []string `json:"replaced"`
}

// update apply: download the latest release, or use --file, and apply it to an install.
func (a *app) updateApplyCmd() *cobra.Command {
	var (
		root      string
		file      string
		version   string
		preferZip bool
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Replace an installation's program files with a newer release",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.optionalManifest()
			dir, _, err := a.findInstall(cfg, root)
			if err != nil {
				return err
			}
			recPath := filepath.Join(dir, layout.RecordFileName)
			rec, _ := installer.LoadRecord(recPath)

			res := applyResult{Root: dir, From: file, Version: version}
			if file == "" {
				settings := a.updateSettings()
				client := a.updates(settings)
				info, errCheck := client.Check(cmd.Context(), a.installedVersion(dir))
				if errCheck != nil {
					return errCheck
				}
				if !info.Available && !force {
					return a.emit(cmd, info, func(w io.Writer) error {
						_, errPrint := fmt.Fprintf(w, "%s is up to date\n", info.Current)
						return errPrint
					})
				}
				link := info.ExeURL
				if preferZip || link == "" {
					link = info.ZipURL
				}
				if link == "" {
					return apperr.New(apperr.ExitFailure, apperr.CodeNetworkFailed, "release has no downloadable asset", nil).
						WithDetail("version", info.Latest)
				}
				tmp, errTmp := os.MkdirTemp("", "relicpack-update-")
				if errTmp != nil {
					return errTmp
				}
				defer os.RemoveAll(tmp)
				res.From = filepath.Join(tmp, downloadName(link))
				if err := client.Download(cmd.Context(), link, res.From); err != nil {
					return err
				}
				res.Version = info.Latest
			}

			if strings.EqualFold(filepath.Ext(res.From), ".exe") {
				exeName := ""
				switch {
				case cfg != nil:
					exeName = cfg.App.ExeName
				case rec != nil:
					exeName = rec.Exe
				}
				if exeName == "" {
					return usageError(fmt.Errorf("unknown executable name; pass --config"))
				}
				if err := update.ApplyExe(filepath.Join(dir, exeName), res.From); err != nil {
					return err
				}
				res.Replaced = []string{exeName}
			} else {
				res.Replaced, err = update.ApplyZip(dir, res.From)
				if err != nil {
					return err
				}
			}

			if rec != nil && res.Version != "" {
				rec.Version = strings.TrimPrefix(res.Version, "v")
				if err := rec.Save(recPath); err != nil {
					log.WithError(err).Warn("could not update install record version")
				}
			}
			return a.emit(cmd, res, func(w io.Writer) error {
				_, errPrint := fmt.Fprintf(w, "updated %s: %d entries replaced\n", res.Root, len(res.Replaced))
				return errPrint
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&root, "root", "", "install directory (default: find the manifest's install)")
	f.StringVar(&file, "file", "", "apply this downloaded .exe or .zip instead of fetching")
	f.StringVar(&version, "version", "", "version recorded for --file")
	f.BoolVar(&preferZip, "zip", false, "prefer the full zip release over the exe asset")
	f.BoolVar(&force, "force", false, "apply even when the installed version is current")
	return cmd
}

// downloadName picks a local file name for a release asset URL. GitHub zipball
// URLs carry no extension.
func downloadName(link string) string {
	name := "release.zip"
	if u, err := url.Parse(link); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = base
		}
	}
	if ext := strings.ToLower(path.Ext(name)); ext != ".exe" && ext != ".zip" {
		name += ".zip"
	}
	return name
}
