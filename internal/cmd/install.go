package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relicrush/relicpack/internal/config"
	"github.com/relicrush/relicpack/internal/datadir"
	apperr "github.com/relicrush/relicpack/internal/errors"
	"github.com/relicrush/relicpack/internal/installer"
	"github.com/relicrush/relicpack/internal/layout"
	"github.com/relicrush/relicpack/internal/prompt"
)

// installRoot picks the install directory: dir when given, else the manifest's
// default-dir expanded for scope.
func (a *app) installRoot(cfg *config.Config, scope layout.Scope, dir string) (string, layout.Dirs, error) {
	dirs, err := a.dirs(scope)
	if err != nil {
		return "", dirs, apperr.Wrap(apperr.CodeInstallFailed, "resolve system folders", err)
	}
	if dir != "" {
		abs, errAbs := filepath.Abs(dir)
		return abs, dirs, errAbs
	}
	return layout.ExpandDir(cfg.Installer.DefaultDir, dirs), dirs, nil
}

// findInstall locates an existing install: dir when given, else whichever default
// root of the manifest holds an install record.
func (a *app) findInstall(cfg *config.Config, dir string) (string, layout.Scope, error) {
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", layout.PerMachine, err
		}
		scope := layout.PerMachine
		if rec, _ := installer.LoadRecord(filepath.Join(abs, layout.RecordFileName)); rec != nil && rec.Scope == layout.PerUser.String() {
			scope = layout.PerUser
		}
		return abs, scope, nil
	}
	if cfg == nil {
		return "", layout.PerMachine, usageError(fmt.Errorf("no manifest found; pass --root"))
	}
	for _, scope := range []layout.Scope{layout.PerMachine, layout.PerUser} {
		root, _, err := a.installRoot(cfg, scope, "")
		if err != nil {
			continue
		}
		if _, errStat := os.Stat(filepath.Join(root, layout.RecordFileName)); errStat == nil {
			return root, scope, nil
		}
	}
	return "", layout.PerMachine, apperr.New(apperr.ExitFailure, apperr.CodeUninstallFailed,
		"no installation of "+cfg.App.Name+" found; pass --root", nil)
}

// install: copy dist into the install root the way the setup program does.
func (a *app) installCmd() *cobra.Command {
	var (
		user      bool
		dir       string
		from      string
		desktop   bool
		launch    bool
		quiet     bool
		overwrite string
	)
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the packaged application without the setup program",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.manifest()
			if err != nil {
				return err
			}
			scope := layout.PerMachine
			if user {
				scope = layout.PerUser
			}
			root, dirs, err := a.installRoot(cfg, scope, dir)
			if err != nil {
				return err
			}
			src := from
			if src == "" {
				src = cfg.Resolve(cfg.Build.DistDir)
			}
			if !cmd.Flags().Changed("desktop-shortcut") {
				desktop = cfg.Installer.DesktopIconDefault
			}
			if !cmd.Flags().Changed("launch") {
				launch = cfg.Installer.ShouldLaunch()
			}
			uninstaller, errSelf := a.self()
			if errSelf != nil {
				log.WithError(errSelf).Warn("cannot locate relicpack, skipping the uninstaller")
				uninstaller = ""
			}

			in := installer.New(cfg, a.system, nil)
			in.Now = a.now
			rec, err := in.Install(cmd.Context(), installer.Options{
				Root:            root,
				Scope:           scope,
				SourceExe:       filepath.Join(src, cfg.App.ExeName),
				SourceIcons:     filepath.Join(src, layout.IconsDirName),
				DesktopShortcut: desktop,
				Launch:          launch,
				Overwrite:       overwrite,
				Quiet:           quiet,
				Uninstaller:     uninstaller,
				Dirs:            dirs,
			})
			if err != nil {
				return err
			}
			return a.emit(cmd, rec, func(w io.Writer) error {
				_, errPrint := fmt.Fprintf(w, "installed %s %s into %s (%d files)\n", rec.AppName, rec.Version, rec.Root, len(rec.Files))
				return errPrint
			})
		},
	}
	f := cmd.Flags()
	f.BoolVar(&user, "user", false, "per-user install; no administrator rights needed")
	f.StringVar(&dir, "dir", "", "install directory (default: the manifest's default-dir)")
	f.StringVar(&from, "from", "", "directory holding the built exe and icons (default: dist)")
	f.BoolVar(&desktop, "desktop-shortcut", false, "create a desktop shortcut (default: manifest desktop-icon-default)")
	f.BoolVar(&launch, "launch", false, "start the application afterwards (default: manifest launch-after-install)")
	f.BoolVar(&quiet, "quiet", false, "unattended install; never launches the application")
	f.StringVar(&overwrite, "overwrite", "", "exe overwrite policy: ignoreversion or version (default: manifest)")
	return cmd
}

// uninstall: remove what the install record lists, then ask about the data folder.
func (a *app) uninstallCmd() *cobra.Command {
	var (
		root       string
		removeData bool
		keepData   bool
		backupData string
		gui        bool
		quiet      bool
	)
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove an installation, optionally keeping the DB folder",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.optionalManifest()
			dir, _, err := a.findInstall(cfg, root)
			if err != nil {
				return err
			}

			var p prompt.Prompter = prompt.Terminal{In: cmd.InOrStdin(), Out: cmd.ErrOrStderr()}
			if gui && prompt.GUIAvailable() {
				p = prompt.MessageBox{}
			}
			in := &installer.Installer{System: a.system, Prompter: p, Now: a.now}
			if cfg != nil {
				in = installer.New(cfg, a.system, p)
				in.Now = a.now
			}
			in.Backup = datadir.Backup

			opts := installer.UninstallOptions{Root: dir, Quiet: quiet}
			switch {
			case removeData:
				opts.RemoveData = boolPtr(true)
			case keepData:
				opts.RemoveData = boolPtr(false)
			}
			if backupData != "" {
				if opts.BackupData, err = filepath.Abs(backupData); err != nil {
					return err
				}
			}
			if self, errSelf := a.self(); errSelf == nil {
				opts.Self = self
			}

			res, err := in.Uninstall(cmd.Context(), opts)
			if res != nil {
				a.result = res
			}
			if err != nil {
				return err
			}
			return a.emit(cmd, res, func(w io.Writer) error {
				data := "kept " + filepath.Join(dir, layout.DataDirName)
				if res.DataRemoved {
					data = "removed saved data"
				}
				_, errPrint := fmt.Fprintf(w, "uninstalled %s: %d files removed, %s\n", dir, len(res.Removed), data)
				if errPrint == nil && len(res.Pending) > 0 {
					_, errPrint = fmt.Fprintf(w, "%d files will be removed at the next restart\n", len(res.Pending))
				}
				return errPrint
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&root, "root", "", "install directory (default: find the manifest's install)")
	f.BoolVar(&removeData, "remove-data", false, "delete the DB folder without asking")
	f.BoolVar(&keepData, "keep-data", false, "keep the DB folder without asking")
	f.StringVar(&backupData, "backup-data", "", "zip the DB folder to this file before deciding")
	f.BoolVar(&gui, "gui", false, "ask with a message box instead of the console")
	f.BoolVar(&quiet, "quiet", false, "never prompt; keeps the DB folder unless --remove-data")
	cmd.MarkFlagsMutuallyExclusive("remove-data", "keep-data")
	return cmd
}

func boolPtr(b bool) *bool { return &b }
