package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relicrush/relicpack/internal/archive"
	"github.com/relicrush/relicpack/internal/config"
	apperr "github.com/relicrush/relicpack/internal/errors"
	"github.com/relicrush/relicpack/internal/innosetup"
	"github.com/relicrush/relicpack/internal/layout"
	"github.com/relicrush/relicpack/internal/packaging"
)

const (
	stepRenderScript = "render-script"
	stepCompile      = "compile-installer"
	stepPortableZip  = "portable-zip"
)

// portableZipPath is where package zip writes the portable archive.
func portableZipPath(cfg *config.Config) string {
	base := strings.TrimSuffix(cfg.App.ExeName, filepath.Ext(cfg.App.ExeName))
	return filepath.Join(cfg.Resolve(cfg.Installer.OutputDir), fmt.Sprintf("%s-%s-portable.zip", base, cfg.App.Version))
}

func (a *app) packageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "package",
		Short: "Produce release artifacts from the dist directory",
	}
	cmd.AddCommand(a.packageInnoCmd(), a.packageZipCmd())
	return cmd
}

type innoResult struct {
	Script  string `json:"script"`
	Changed bool   `json:"changed"`
	Setup   string `json:"setup,omitempty"`
}

// package inno: render the Inno Setup script and compile it with ISCC.
func (a *app) packageInnoCmd() *cobra.Command {
	var (
		renderOnly bool
		build      bool
		defines    map[string]string
	)
	cmd := &cobra.Command{
		Use:   "inno",
		Short: "Generate the Inno Setup script and compile the setup program",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.manifest()
			if err != nil {
				return err
			}
			if build {
				if _, err := packaging.New(cfg, a.runner, a.metrics).Build(cmd.Context()); err != nil {
					return err
				}
			}

			res := innoResult{}
			err = a.metrics.Time(stepRenderScript, func() error {
				var errWrite error
				res.Script, res.Changed, errWrite = innosetup.WriteScript(cfg)
				return errWrite
			})
			if err != nil {
				return apperr.Wrap(apperr.CodeInstallFailed, "write setup script", err)
			}
			if res.Changed {
				log.Infof("wrote %s", res.Script)
			} else {
				log.Debugf("%s is up to date", res.Script)
			}

			if !renderOnly {
				err = a.metrics.Time(stepCompile, func() error {
					iscc, errFind := innosetup.NewFinder(a.runner).Find(cfg.Installer.ISCC)
					if errFind != nil {
						return errFind
					}
					return innosetup.Compile(cmd.Context(), a.runner, iscc, res.Script, defines)
				})
				if err != nil {
					return err
				}
				res.Setup = innosetup.SetupPath(cfg)
			}
			return a.emit(cmd, res, func(w io.Writer) error {
				if res.Setup != "" {
					_, errPrint := fmt.Fprintf(w, "setup program: %s\n", res.Setup)
					return errPrint
				}
				_, errPrint := fmt.Fprintf(w, "setup script: %s\n", res.Script)
				return errPrint
			})
		},
	}
	cmd.Flags().BoolVar(&renderOnly, "render-only", false, "write the .iss script without running ISCC")
	cmd.Flags().BoolVar(&build, "build", false, "run build first")
	cmd.Flags().StringToStringVar(&defines, "define", nil, "extra ISCC preprocessor defines (NAME=VALUE)")
	return cmd
}

type zipResult struct {
	Path  string `json:"path"`
	Files int    `json:"files"`
}

// package zip: archive the exe, the icons tree and an empty DB directory.
func (a *app) packageZipCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "zip",
		Short: "Build the portable zip release",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.manifest()
			if err != nil {
				return err
			}
			res := zipResult{Path: out}
			if res.Path == "" {
				res.Path = portableZipPath(cfg)
			}
			dist := cfg.Resolve(cfg.Build.DistDir)
			err = a.metrics.Time(stepPortableZip, func() error {
				exe := filepath.Join(dist, cfg.App.ExeName)
				if _, errStat := os.Stat(exe); errStat != nil {
					return apperr.New(apperr.ExitFailure, apperr.CodeConfigInvalid, "application executable not found; run build first", errStat).
						WithDetail("exe", exe)
				}
				entries := []archive.Entry{
					{Name: cfg.App.ExeName, Path: exe},
					{Name: layout.DataDirName + "/"},
				}
				icons := filepath.Join(dist, layout.IconsDirName)
				if info, errStat := os.Stat(icons); errStat == nil && info.IsDir() {
					iconEntries, errList := archive.DirEntries(icons, layout.IconsDirName)
					if errList != nil {
						return apperr.Wrap(apperr.CodeCopyFailed, "list icons", errList)
					}
					entries = append(entries, iconEntries...)
				} else {
					log.Warnf("%s not found, the archive will carry no icons", icons)
				}
				for _, e := range entries {
					if e.Path != "" {
						res.Files++
					}
				}
				return apperr.Wrap(apperr.CodeCopyFailed, "write portable zip", archive.ZipFiles(res.Path, entries))
			})
			if err != nil {
				return err
			}
			return a.emit(cmd, res, func(w io.Writer) error {
				_, errPrint := fmt.Fprintf(w, "portable zip: %s (%d files)\n", res.Path, res.Files)
				return errPrint
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "archive path (default: <output-dir>/<exe>-<version>-portable.zip)")
	return cmd
}
