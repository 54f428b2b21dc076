package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/relicrush/relicpack/internal/installer"
	"github.com/relicrush/relicpack/internal/layout"
	"github.com/relicrush/relicpack/internal/verify"
)

// verify: check an installed layout against what the installer promises.
func (a *app) verifyCmd() *cobra.Command {
	var (
		root        string
		sourceIcons string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an installation: exe, icons, writable DB, record and shortcuts",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.optionalManifest()
			dir, scope, err := a.findInstall(cfg, root)
			if err != nil {
				return err
			}

			rec, _ := installer.LoadRecord(filepath.Join(dir, layout.RecordFileName))
			exeName, appName := "", ""
			switch {
			case cfg != nil:
				exeName, appName = cfg.App.ExeName, cfg.App.Name
			case rec != nil:
				appName = rec.AppName
			}
			if exeName == "" && rec != nil {
				exeName = rec.Exe
			}

			opts := verify.Options{SourceIcons: sourceIcons}
			if opts.SourceIcons == "" && cfg != nil {
				opts.SourceIcons = filepath.Join(cfg.Resolve(cfg.Build.DistDir), layout.IconsDirName)
			}
			if dirs, errDirs := a.dirs(scope); errDirs == nil && appName != "" {
				opts.DesktopShortcut = verify.DesktopShortcutPath(dirs.Desktop, appName)
			}

			findings := verify.Check(layout.New(dir, exeName), opts)
			a.result = findings
			out := cmd.OutOrStdout()
			if a.jsonOut {
				err = verify.RenderJSON(out, findings)
			} else {
				err = verify.RenderText(out, "relicpack verify: "+dir, findings)
			}
			if err != nil {
				return err
			}
			return verify.Failed(findings)
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "install directory (default: find the manifest's install)")
	cmd.Flags().StringVar(&sourceIcons, "source-icons", "", "icons tree the install should match (default: dist/icons)")
	return cmd
}
