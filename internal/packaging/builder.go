// Package packaging wraps the PyInstaller invocation that turns the application
// source into a standalone executable, and refreshes the DB and icons trees that
// ship next to it in the dist directory.
package packaging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/relicrush/relicpack/internal/config"
	apperr "github.com/relicrush/relicpack/internal/errors"
	"github.com/relicrush/relicpack/internal/fsutil"
	"github.com/relicrush/relicpack/internal/layout"
	"github.com/relicrush/relicpack/internal/metrics"
	"github.com/relicrush/relicpack/internal/toolexec"
	log "github.com/sirupsen/logrus"
)

// Step names used for metrics and logs.
const (
	StepEnsureTool    = "ensure-tool"
	StepPackage       = "package"
	StepRefreshAssets = "refresh-assets"
)

// Builder runs the packaging pipeline for one project manifest.
type Builder struct {
	cfg     *config.Config
	runner  toolexec.Runner
	metrics *metrics.Recorder
}

// New returns a Builder. A nil runner uses toolexec.ExecRunner; rec may be nil.
func New(cfg *config.Config, runner toolexec.Runner, rec *metrics.Recorder) *Builder {
	if runner == nil {
		runner = toolexec.ExecRunner{}
	}
	return &Builder{cfg: cfg, runner: runner, metrics: rec}
}

// DistDir is the absolute dist directory.
func (b *Builder) DistDir() string {
	return b.cfg.Resolve(b.cfg.Build.DistDir)
}

// EnsureTool probes the packager and installs it with pip when it is missing and
// auto-install is enabled.
func (b *Builder) EnsureTool(ctx context.Context) error {
	return b.metrics.Time(StepEnsureTool, func() error {
		packager := b.cfg.Build.Packager
		probeErr := b.runner.Run(ctx, b.cfg.Root, packager, "--version")
		if probeErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !b.cfg.Build.ShouldAutoInstall() {
			return apperr.New(apperr.ExitFailure, apperr.CodeToolMissing,
				fmt.Sprintf("%s is not available and auto-install is disabled", packager), probeErr)
		}

		log.Infof("%s not available, installing with pip", packager)
		python := b.cfg.Build.Python
		if err := b.runner.Run(ctx, b.cfg.Root, python, "-m", "pip", "install", config.DefaultPackager); err != nil {
			return apperr.New(apperr.ExitFailure, apperr.CodeToolMissing,
				fmt.Sprintf("install %s with %s -m pip", config.DefaultPackager, python), err)
		}
		if err := b.runner.Run(ctx, b.cfg.Root, packager, "--version"); err != nil {
			return apperr.New(apperr.ExitFailure, apperr.CodeToolMissing,
				fmt.Sprintf("%s still unavailable after install", packager), err)
		}
		return nil
	})
}

// Package runs the packager against the build spec. A non-zero exit is reported as
// tool_failed carrying the tool's own exit code.
func (b *Builder) Package(ctx context.Context) error {
	return b.metrics.Time(StepPackage, func() error {
		spec := b.cfg.Resolve(b.cfg.Build.SpecFile)
		if _, err := os.Stat(spec); err != nil {
			return apperr.New(apperr.ExitFailure, apperr.CodeConfigInvalid, "build spec not found", err).
				WithDetail("spec", spec)
		}
		args := append([]string{"--noconfirm", spec}, b.cfg.Build.ExtraArgs...)
		err := b.runner.Run(ctx, b.cfg.Root, b.cfg.Build.Packager, args...)
		if err == nil {
			log.Infof("packaged %s", filepath.Base(spec))
			return nil
		}
		if code, ok := toolexec.ExitCode(err); ok {
			return apperr.New(code, apperr.CodeToolFailed,
				fmt.Sprintf("%s exited with status %d", b.cfg.Build.Packager, code), err)
		}
		if toolexec.NotFound(err) {
			return apperr.New(apperr.ExitFailure, apperr.CodeToolMissing,
				fmt.Sprintf("%s could not be started", b.cfg.Build.Packager), err)
		}
		return apperr.New(apperr.ExitFailure, apperr.CodeToolFailed, "packaging failed", err)
	})
}

// AssetResult describes one refreshed tree.
type AssetResult struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	Dest    string `json:"dest"`
	Files   int    `json:"files"`
	Skipped bool   `json:"skipped,omitempty"`
}

// RefreshAssets replaces <dist>/DB and <dist>/icons with fresh copies of the source
// trees. Stale files never survive. A missing source is skipped with a warning after
// its destination has been removed.
func (b *Builder) RefreshAssets() ([]AssetResult, error) {
	var results []AssetResult
	err := b.metrics.Time(StepRefreshAssets, func() error {
		dist := b.DistDir()
		if err := os.MkdirAll(dist, 0o755); err != nil {
			return apperr.New(apperr.ExitFailure, apperr.CodeCopyFailed, "create dist directory", err)
		}
		trees := []struct{ name, src string }{
			{layout.DataDirName, b.cfg.Resolve(b.cfg.Build.SourceDB)},
			{layout.IconsDirName, b.cfg.Resolve(b.cfg.Build.SourceIcons)},
		}
		for _, tree := range trees {
			res := AssetResult{Name: tree.name, Source: tree.src, Dest: filepath.Join(dist, tree.name)}
			if !fsutil.IsDir(tree.src) {
				if err := os.RemoveAll(res.Dest); err != nil {
					return apperr.New(apperr.ExitFailure, apperr.CodeCopyFailed, "remove "+res.Dest, err)
				}
				log.Warnf("source %s not found, %s left empty", tree.src, res.Dest)
				res.Skipped = true
				results = append(results, res)
				continue
			}
			copied, err := fsutil.ReplaceTree(tree.src, res.Dest)
			if err != nil {
				return apperr.New(apperr.ExitFailure, apperr.CodeCopyFailed,
					fmt.Sprintf("copy %s to %s", tree.src, res.Dest), err)
			}
			res.Files = len(copied)
			log.Infof("copied %d files into %s", res.Files, res.Dest)
			results = append(results, res)
		}
		return nil
	})
	return results, err
}

// Build runs EnsureTool, Package and RefreshAssets in order, stopping at the first failure.
func (b *Builder) Build(ctx context.Context) ([]AssetResult, error) {
	start := time.Now()
	if err := b.EnsureTool(ctx); err != nil {
		return nil, err
	}
	if err := b.Package(ctx); err != nil {
		return nil, err
	}
	results, err := b.RefreshAssets()
	if err != nil {
		return results, err
	}
	b.metrics.MarkSuccess(time.Now())
	log.Infof("build finished in %s", time.Since(start).Round(time.Millisecond))
	return results, nil
}
