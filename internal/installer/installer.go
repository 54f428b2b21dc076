// Package installer installs and uninstalls a packaged application without Inno
// Setup. The installed layout matches what the generated setup program produces:
// the executable and icons tree in the install root, a user-writable DB directory,
// Start Menu entries, an optional desktop entry and an uninstall registration.
// Uninstall removes exactly what the install record lists and then asks once
// whether the DB directory should go too.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relicrush/relicpack/internal/config"
	apperr "github.com/relicrush/relicpack/internal/errors"
	"github.com/relicrush/relicpack/internal/fsutil"
	"github.com/relicrush/relicpack/internal/layout"
	"github.com/relicrush/relicpack/internal/prompt"
	"github.com/relicrush/relicpack/internal/semver"
)

// Installer performs installs and uninstalls of one application.
type Installer struct {
	App      config.AppConfig
	Settings config.InstallerConfig
	System   System
	Prompter prompt.Prompter
	// Backup archives the data directory into dst. Required for UninstallOptions.BackupData.
	Backup func(dir, dst string) error
	Now    func() time.Time
}

// New returns an Installer for the manifest's application.
func New(cfg *config.Config, sys System, p prompt.Prompter) *Installer {
	return &Installer{
		App:      cfg.App,
		Settings: cfg.Installer,
		System:   sys,
		Prompter: p,
		Now:      time.Now,
	}
}

// Options controls one install.
type Options struct {
	Root        string
	Scope       layout.Scope
	SourceExe   string
	SourceIcons string
	// DesktopShortcut opts in to the desktop entry.
	DesktopShortcut bool
	Launch          bool
	// Overwrite overrides the manifest's overwrite policy when set.
	Overwrite string
	// Quiet suppresses the post-install launch.
	Quiet bool
	// Uninstaller is copied into the root and used by the uninstall shortcut and
	// registration. Empty skips both.
	Uninstaller string
	Dirs        layout.Dirs
}

func (in *Installer) now() time.Time {
	if in.Now == nil {
		return time.Now()
	}
	return in.Now()
}

// Install copies the application into opts.Root and records what it wrote.
// Per-machine installs fail with not_elevated before anything is written.
func (in *Installer) Install(ctx context.Context, opts Options) (*Record, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, apperr.Wrap(apperr.CodeConfigInvalid, "install root is empty", errors.New("no install directory"))
	}
	if info, err := os.Stat(opts.SourceExe); err != nil || info.IsDir() {
		return nil, apperr.New(apperr.ExitFailure, apperr.CodeConfigInvalid, "application executable not found; run build first", err).
			WithDetail("exe", opts.SourceExe)
	}
	if opts.Scope == layout.PerMachine {
		elevated, err := in.System.Elevation.IsElevated()
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInstallFailed, "cannot determine elevation", err)
		}
		if !elevated {
			return nil, apperr.New(apperr.ExitFailure, apperr.CodeNotElevated,
				"administrator privileges are required for a per-machine install (rerun elevated or pass --user)", nil).
				WithDetail("root", opts.Root)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lay := layout.New(opts.Root, in.App.ExeName)
	prev, err := LoadRecord(lay.RecordPath)
	if err != nil {
		log.WithError(err).Warnf("ignoring unreadable install record %s", lay.RecordPath)
		prev = nil
	}
	if err := os.MkdirAll(lay.Root, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.CodeInstallFailed, "create install root", err)
	}

	rec := &Record{
		AppID:           in.App.GUID(),
		AppName:         in.App.Name,
		Version:         in.App.Version,
		Root:            lay.Root,
		Scope:           opts.Scope.String(),
		Exe:             in.App.ExeName,
		InstalledAt:     in.now().UTC(),
		DesktopShortcut: opts.DesktopShortcut,
		DataDir:         layout.DataDirName,
	}

	policy := opts.Overwrite
	if policy == "" {
		policy = in.Settings.Overwrite
	}
	if in.shouldReplaceExe(lay.ExePath, prev, policy) {
		if err := fsutil.CopyFile(opts.SourceExe, lay.ExePath); err != nil {
			return nil, apperr.Wrap(apperr.CodeInstallFailed, "copy application executable", err)
		}
		log.Infof("installed %s", lay.ExePath)
	} else {
		rec.Version = prev.Version
		log.Warnf("kept %s: installed version %s is newer than %s", lay.ExePath, prev.Version, in.App.Version)
	}
	rec.Files = append(rec.Files, in.App.ExeName)

	if fsutil.IsDir(opts.SourceIcons) {
		files, err := fsutil.CopyTree(opts.SourceIcons, lay.IconsDir)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInstallFailed, "copy icons", err)
		}
		rec.Dirs = append(rec.Dirs, layout.IconsDirName)
		for _, f := range files {
			rel := path.Join(layout.IconsDirName, f)
			rec.Files = append(rec.Files, rel)
			for d := path.Dir(rel); d != layout.IconsDirName && d != "."; d = path.Dir(d) {
				rec.Dirs = append(rec.Dirs, d)
			}
		}
		log.Infof("installed %d icon files", len(files))
	} else {
		log.Warnf("icons source %s not found, skipping", opts.SourceIcons)
	}

	// Existing data from a previous install is kept as is.
	if err := os.MkdirAll(lay.DataDir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.CodeInstallFailed, "create data directory", err)
	}
	if err := in.System.Permissions.AllowUsersModify(lay.DataDir); err != nil {
		return nil, apperr.Wrap(apperr.CodeInstallFailed, "grant users modify on data directory", err)
	}

	uninstaller := ""
	if opts.Uninstaller != "" {
		dst := filepath.Join(lay.Root, uninstallerName)
		if !samePath(opts.Uninstaller, dst) {
			if err := fsutil.CopyFile(opts.Uninstaller, dst); err != nil {
				return nil, apperr.Wrap(apperr.CodeInstallFailed, "copy uninstaller", err)
			}
		}
		uninstaller = dst
		rec.Files = append(rec.Files, uninstallerName)
	}

	in.createShortcuts(rec, prev, lay, opts, uninstaller)

	if err := in.System.Registrar.Register(in.uninstallEntry(lay, opts.Scope, rec, uninstaller)); err != nil {
		log.WithError(err).Warn("uninstall registration failed")
	} else {
		rec.Registered = true
	}

	if prev != nil {
		rec.Files = merge(prev.Files, rec.Files)
		rec.Dirs = merge(prev.Dirs, rec.Dirs)
		rec.ShortcutDirs = merge(prev.ShortcutDirs, rec.ShortcutDirs)
	} else {
		rec.Files = merge(nil, rec.Files)
		rec.Dirs = merge(nil, rec.Dirs)
	}
	if err := rec.Save(lay.RecordPath); err != nil {
		return nil, apperr.Wrap(apperr.CodeInstallFailed, "write install record", err)
	}

	if opts.Launch && !opts.Quiet {
		if err := in.System.Launcher.Launch(lay.ExePath, lay.Root); err != nil {
			log.WithError(err).Warn("could not start the application")
		}
	}
	return rec, nil
}

// shouldReplaceExe applies the overwrite policy. Under "version" an existing exe is
// kept only when the recorded installed version is newer than the incoming one.
func (in *Installer) shouldReplaceExe(dst string, prev *Record, policy string) bool {
	if policy != config.OverwriteVersion || !fsutil.Exists(dst) || prev == nil {
		return true
	}
	installed, err := semver.Parse(prev.Version)
	if err != nil {
		return true
	}
	incoming, err := semver.Parse(in.App.Version)
	if err != nil {
		return true
	}
	return semver.Compare(installed, incoming) <= 0
}

func (in *Installer) createShortcuts(rec, prev *Record, lay layout.Layout, opts Options, uninstaller string) {
	icon := iconFor(lay)
	var wanted []Shortcut
	if opts.Dirs.StartMenu != "" {
		group := filepath.Join(opts.Dirs.StartMenu, in.Settings.GroupName)
		rec.ShortcutDirs = append(rec.ShortcutDirs, group)
		wanted = append(wanted, Shortcut{
			Path:        filepath.Join(group, layout.ShortcutName(in.App.Name)),
			Name:        in.App.Name,
			Target:      lay.ExePath,
			WorkingDir:  lay.Root,
			Icon:        icon,
			Description: in.App.Name,
		})
		if uninstaller != "" {
			name := "Uninstall " + in.App.Name
			wanted = append(wanted, Shortcut{
				Path:        filepath.Join(group, layout.ShortcutName(name)),
				Name:        name,
				Target:      uninstaller,
				Args:        uninstallArgs(lay.Root),
				WorkingDir:  lay.Root,
				Description: name,
			})
		}
	} else {
		log.Warn("no Start Menu folder, skipping program group")
	}

	desktop := ""
	if opts.Dirs.Desktop != "" {
		desktop = filepath.Join(opts.Dirs.Desktop, layout.ShortcutName(in.App.Name))
	}
	if opts.DesktopShortcut && desktop != "" {
		wanted = append(wanted, Shortcut{
			Path:        desktop,
			Name:        in.App.Name,
			Target:      lay.ExePath,
			WorkingDir:  lay.Root,
			Icon:        icon,
			Description: in.App.Name,
		})
	}

	for _, s := range wanted {
		if err := in.System.Shortcuts.Create(s); err != nil {
			log.WithError(err).Warnf("could not create shortcut %s", s.Path)
			continue
		}
		rec.Shortcuts = append(rec.Shortcuts, s.Path)
	}

	// A desktop entry left by an earlier opted-in install is dropped when this
	// install did not opt in.
	for _, old := range prevShortcuts(prev) {
		if contains(rec.Shortcuts, old) {
			continue
		}
		if old == desktop && !opts.DesktopShortcut {
			if err := in.System.Shortcuts.Remove(old); err != nil {
				log.WithError(err).Warnf("could not remove shortcut %s", old)
				rec.Shortcuts = append(rec.Shortcuts, old)
			}
			continue
		}
		rec.Shortcuts = append(rec.Shortcuts, old)
	}
	sort.Strings(rec.Shortcuts)
}

func (in *Installer) uninstallEntry(lay layout.Layout, scope layout.Scope, rec *Record, uninstaller string) UninstallEntry {
	e := UninstallEntry{
		GUID:            in.App.GUID(),
		Scope:           scope,
		DisplayName:     in.App.Name,
		DisplayVersion:  rec.Version,
		Publisher:       in.App.Publisher,
		URLInfoAbout:    in.App.PublisherURL,
		InstallLocation: lay.Root,
		DisplayIcon:     lay.ExePath,
		EstimatedSizeKB: estimateSizeKB(lay.Root, rec.Files),
	}
	if uninstaller != "" {
		e.UninstallString = `"` + uninstaller + `" ` + uninstallArgs(lay.Root)
		e.QuietUninstall = e.UninstallString + " --quiet"
	}
	return e
}

func uninstallArgs(root string) string {
	return `uninstall --root "` + root + `"`
}

func iconFor(lay layout.Layout) string {
	entries, err := os.ReadDir(lay.IconsDir)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".ico") {
				return filepath.Join(lay.IconsDir, e.Name())
			}
		}
	}
	return lay.ExePath
}

func estimateSizeKB(root string, files []string) uint32 {
	var total int64
	for _, f := range files {
		if info, err := os.Stat(filepath.Join(root, filepath.FromSlash(f))); err == nil {
			total += info.Size()
		}
	}
	return uint32(total / 1024)
}

func prevShortcuts(prev *Record) []string {
	if prev == nil {
		return nil
	}
	return prev.Shortcuts
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func samePath(a, b string) bool {
	aa, errA := filepath.Abs(a)
	bb, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return false
	}
	if filepath.Separator == '\\' {
		return strings.EqualFold(aa, bb)
	}
	return aa == bb
}

// UninstallOptions controls one uninstall.
type UninstallOptions struct {
	Root string
	// RemoveData answers the data question without prompting when set.
	RemoveData *bool
	// BackupData, when set, zips the data directory to this path before the
	// answer is applied.
	BackupData string
	// Quiet answers No to the data question unless RemoveData is set.
	Quiet bool
	// Self is the running uninstaller; failing to delete it is not an error.
	Self string
}

// UninstallResult reports what an uninstall did.
type UninstallResult struct {
	Removed     []string `json:"removed"`
	Pending     []string `json:"pending_reboot,omitempty"`
	DataRemoved bool     `json:"data_removed"`
	DataBackup  string   `json:"data_backup,omitempty"`
	RootRemoved bool     `json:"root_removed"`
}

// Uninstall removes everything the install record lists, then decides once whether
// to delete the data directory. Declining, dismissing the prompt, or a prompt
// failure all leave the data directory untouched.
func (in *Installer) Uninstall(ctx context.Context, opts UninstallOptions) (*UninstallResult, error) {
	root := filepath.Clean(opts.Root)
	recordPath := filepath.Join(root, layout.RecordFileName)
	rec, err := LoadRecord(recordPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUninstallFailed, "read install record", err)
	}
	if rec == nil {
		return nil, apperr.New(apperr.ExitFailure, apperr.CodeUninstallFailed, "no install record found", nil).
			WithDetail("root", root)
	}

	res := &UninstallResult{}
	var failed []string
	for _, rel := range rec.Files {
		p, ok := insideRoot(root, rel)
		if !ok || rel == rec.DataDir || strings.HasPrefix(rel, rec.DataDir+"/") {
			log.Warnf("skipping record entry %q outside the removable tree", rel)
			continue
		}
		pending, err := removeFile(p)
		switch {
		case err != nil && opts.Self != "" && samePath(p, opts.Self):
			log.WithError(err).Debugf("leaving running uninstaller %s", p)
		case err != nil:
			log.WithError(err).Warnf("could not remove %s", p)
			failed = append(failed, rel)
		case pending:
			res.Pending = append(res.Pending, rel)
		default:
			res.Removed = append(res.Removed, rel)
		}
	}

	for _, s := range rec.Shortcuts {
		if err := in.System.Shortcuts.Remove(s); err != nil {
			log.WithError(err).Warnf("could not remove shortcut %s", s)
		}
	}
	for _, d := range rec.ShortcutDirs {
		if _, err := fsutil.RemoveIfEmpty(d); err != nil {
			log.WithError(err).Debugf("leaving %s", d)
		}
	}
	if rec.Registered {
		if err := in.System.Registrar.Unregister(rec.AppID, scopeOf(rec.Scope)); err != nil {
			log.WithError(err).Warn("could not remove uninstall registration")
		}
	}
	for _, rel := range deepestFirst(rec.Dirs) {
		if p, ok := insideRoot(root, rel); ok && rel != rec.DataDir {
			if _, err := fsutil.RemoveIfEmpty(p); err != nil {
				log.WithError(err).Debugf("leaving %s", p)
			}
		}
	}

	if len(failed) > 0 {
		// Keep what could not be removed so a second run can retry.
		rec.Files = failed
		if err := rec.Save(recordPath); err != nil {
			log.WithError(err).Warn("could not update install record")
		}
	} else if err := os.Remove(recordPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("could not remove install record")
	}

	dataRel := rec.DataDir
	if dataRel == "" {
		dataRel = layout.DataDirName
	}
	dataDir, ok := insideRoot(root, dataRel)
	if ok && fsutil.IsDir(dataDir) {
		if opts.BackupData != "" {
			if in.Backup == nil {
				return res, apperr.Wrap(apperr.CodeUninstallFailed, "back up data directory", errors.New("no backup function configured"))
			}
			if err := in.Backup(dataDir, opts.BackupData); err != nil {
				return res, apperr.Wrap(apperr.CodeUninstallFailed, "back up data directory", err)
			}
			res.DataBackup = opts.BackupData
			log.Infof("data backed up to %s", opts.BackupData)
		}
		if in.confirmDataRemoval(ctx, rec, opts) {
			if err := os.RemoveAll(dataDir); err != nil {
				return res, apperr.Wrap(apperr.CodeUninstallFailed, "remove data directory", err)
			}
			res.DataRemoved = true
			log.Infof("removed %s", dataDir)
		} else {
			log.Infof("kept %s", dataDir)
		}
	}

	if removed, err := fsutil.RemoveIfEmpty(root); err == nil && removed {
		res.RootRemoved = true
	}

	if len(failed) > 0 {
		return res, apperr.New(apperr.ExitFailure, apperr.CodeUninstallFailed,
			fmt.Sprintf("%d files could not be removed", len(failed)), nil).WithDetail("files", failed)
	}
	return res, nil
}

func (in *Installer) confirmDataRemoval(ctx context.Context, rec *Record, opts UninstallOptions) bool {
	if opts.RemoveData != nil {
		return *opts.RemoveData
	}
	if opts.Quiet || in.Prompter == nil {
		return false
	}
	name := in.App.Name
	if name == "" {
		name = rec.AppName
	}
	message := in.Settings.DataPrompt
	if strings.TrimSpace(message) == "" {
		message = config.DefaultDataPrompt
	}
	yes, err := in.Prompter.Confirm(ctx, strings.TrimSpace(name+" Uninstall"), message)
	if err != nil {
		log.WithError(err).Warn("data prompt failed, keeping data")
		return false
	}
	return yes
}

func scopeOf(s string) layout.Scope {
	if s == layout.PerUser.String() {
		return layout.PerUser
	}
	return layout.PerMachine
}
