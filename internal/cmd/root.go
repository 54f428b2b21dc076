// Package cmd provides the relicpack command tree.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relicrush/relicpack/internal/buildinfo"
	"github.com/relicrush/relicpack/internal/config"
	apperr "github.com/relicrush/relicpack/internal/errors"
	"github.com/relicrush/relicpack/internal/installer"
	"github.com/relicrush/relicpack/internal/layout"
	"github.com/relicrush/relicpack/internal/logging"
	"github.com/relicrush/relicpack/internal/metrics"
	"github.com/relicrush/relicpack/internal/publish"
	"github.com/relicrush/relicpack/internal/toolexec"
	"github.com/relicrush/relicpack/internal/update"
)

// app carries global flags and the collaborators shared by every command.
type app struct {
	configPath  string
	logLevel    string
	logDir      string
	reportPath  string
	metricsPath string
	jsonOut     bool

	cfg    *config.Config
	cfgErr error

	runner  toolexec.Runner
	system  installer.System
	dirs    func(layout.Scope) (layout.Dirs, error)
	self    func() (string, error)
	now     func() time.Time
	metrics *metrics.Recorder
	store   func(config.PublishConfig) (publish.ObjectStore, error)
	updates func(config.UpdateConfig) *update.Client

	command string
	result  interface{}
}

func newApp() *app {
	return &app{
		runner:  toolexec.ExecRunner{},
		system:  installer.DefaultSystem(),
		dirs:    layout.SystemDirs,
		self:    os.Executable,
		now:     time.Now,
		metrics: metrics.New(),
		store:   newObjectStore,
		updates: update.NewClient,
	}
}

func newObjectStore(cfg config.PublishConfig) (publish.ObjectStore, error) {
	return publish.NewClient(cfg)
}

// Execute runs relicpack with the process arguments.
func Execute(ctx context.Context) error {
	return newApp().run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func (a *app) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	started := a.now()
	err := root.ExecuteContext(ctx)
	if isCobraUsage(err) {
		err = usageError(err)
	}
	a.finish(err, started)
	if err != nil {
		a.printError(stderr, err)
	}
	return err
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "relicpack",
		Short:             "Package, install and release Warframe Relic Companion",
		Version:           buildinfo.String(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "project manifest (default: relicpack.yaml found from the working directory upward)")
	pf.StringVar(&a.logLevel, "log-level", "info", "debug, info, warn, error or quiet")
	pf.StringVar(&a.logDir, "log-dir", "", "also write a rotating log file into this directory")
	pf.StringVar(&a.reportPath, "report", "", "write a JSON run report to this file")
	pf.StringVar(&a.metricsPath, "metrics-textfile", "", "write step metrics in node-exporter textfile format")
	pf.BoolVar(&a.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		a.initCmd(),
		a.buildCmd(),
		a.syncAssetsCmd(),
		a.packageCmd(),
		a.installCmd(),
		a.uninstallCmd(),
		a.verifyCmd(),
		a.dataCmd(),
		a.signCmd(),
		a.verifySigCmd(),
		a.checksumsCmd(),
		a.publishCmd(),
		a.updateCmd(),
		a.versionCmd(),
	)
	return root
}

// setup configures logging and loads the manifest. A missing manifest is not an
// error here; commands that need one call manifest.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.command = cmd.CommandPath()
	logging.SetupBaseLogger()
	logging.SetLogLevel(a.logLevel)

	a.loadConfig()

	level := a.logLevel
	opts := logging.FileOptions{Dir: a.logDir}
	if a.jsonOut {
		opts.Console = cmd.ErrOrStderr()
	}
	if a.cfg != nil {
		if !cmd.Flags().Changed("log-level") {
			level = a.cfg.Log.Level
		}
		if opts.Dir == "" {
			opts.Dir = a.cfg.Resolve(a.cfg.Log.Dir)
		}
		opts.MaxSizeMB = a.cfg.Log.MaxSizeMB
		opts.MaxBackups = a.cfg.Log.MaxBackups
		opts.MaxAgeDays = a.cfg.Log.MaxAgeDays
	}
	logging.SetLogLevel(level)
	if err := logging.ConfigureLogOutput(opts); err != nil {
		return apperr.Wrap(apperr.CodeConfigInvalid, "configure log output", err)
	}
	if a.cfg != nil {
		log.Debugf("using manifest %s", a.cfg.Path)
	}
	return nil
}

func (a *app) loadConfig() {
	path := a.configPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			a.cfgErr = err
			return
		}
		found, err := config.Find(wd)
		if err != nil {
			a.cfgErr = err
			return
		}
		path = found
	}
	cfg, err := config.Load(path)
	if err != nil {
		a.cfgErr = err
		return
	}
	a.cfg = cfg
}

// manifest returns the loaded manifest or a config_invalid error explaining why
// there is none.
func (a *app) manifest() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	err := a.cfgErr
	if err == nil {
		err = config.ErrNotFound
	}
	if errors.Is(err, config.ErrNotFound) {
		return nil, apperr.New(apperr.ExitFailure, apperr.CodeConfigInvalid,
			"no relicpack manifest found; run relicpack init or pass --config", err)
	}
	return nil, apperr.Wrap(apperr.CodeConfigInvalid, "load manifest", err)
}

// optionalManifest returns the manifest when there is one. An explicit --config
// that fails to load is reported as a warning.
func (a *app) optionalManifest() *config.Config {
	if a.cfg == nil && a.configPath != "" && a.cfgErr != nil {
		log.WithError(a.cfgErr).Warnf("ignoring manifest %s", a.configPath)
	}
	return a.cfg
}

// emit records v for the run report and prints it as JSON or through text.
func (a *app) emit(cmd *cobra.Command, v interface{}, text func(w io.Writer) error) error {
	a.result = v
	out := cmd.OutOrStdout()
	if a.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	if text == nil {
		return nil
	}
	return text(out)
}

type runReport struct {
	Command  string             `json:"command"`
	Version  string             `json:"relicpack_version"`
	Started  time.Time          `json:"started"`
	Duration string             `json:"duration"`
	OK       bool               `json:"ok"`
	ExitCode int                `json:"exit_code"`
	Error    *apperr.AppError   `json:"error,omitempty"`
	Result   interface{}        `json:"result,omitempty"`
	Problems []logging.LogEntry `json:"problems,omitempty"`
}

func (a *app) finish(runErr error, started time.Time) {
	defer logging.CloseLogOutput()

	if a.metricsPath != "" {
		if runErr == nil {
			a.metrics.MarkSuccess(a.now())
		}
		if err := a.metrics.WriteTextfile(a.metricsPath); err != nil {
			log.WithError(err).Warn("could not write metrics textfile")
		}
	}
	if a.reportPath == "" {
		return
	}
	report := runReport{
		Command:  a.command,
		Version:  buildinfo.Version,
		Started:  started.UTC(),
		Duration: a.now().Sub(started).Round(time.Millisecond).String(),
		OK:       runErr == nil,
		ExitCode: apperr.ExitCodeOf(runErr),
		Error:    asAppError(runErr),
		Result:   a.result,
		Problems: logging.GlobalBuffer.Problems(),
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.WithError(err).Warn("could not encode run report")
		return
	}
	if err := os.MkdirAll(filepath.Dir(a.reportPath), 0o755); err != nil {
		log.WithError(err).Warn("could not create report directory")
		return
	}
	if err := os.WriteFile(a.reportPath, append(data, '\n'), 0o644); err != nil {
		log.WithError(err).Warn("could not write run report")
	}
}

func (a *app) printError(w io.Writer, err error) {
	if a.jsonOut {
		fmt.Fprintln(w, string(asAppError(err).ToJSON()))
		return
	}
	fmt.Fprintf(w, "relicpack: %v\n", err)
}

// asAppError returns the first AppError in err's chain, or wraps err in one.
func asAppError(err error) *apperr.AppError {
	if err == nil {
		return nil
	}
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperr.New(apperr.ExitCodeOf(err), "", err.Error(), err)
}

// cobraUsagePrefixes start the plain errors cobra returns for unknown commands,
// missing required flags and violated flag groups. None of these pass through the
// flag error func.
var cobraUsagePrefixes = []string{
	"unknown command",
	"required flag(s)",
	"if any flags in the group",
	"at least one of the flags in the group",
}

func isCobraUsage(err error) bool {
	if err == nil {
		return false
	}
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return false
	}
	for _, prefix := range cobraUsagePrefixes {
		if strings.HasPrefix(err.Error(), prefix) {
			return true
		}
	}
	return false
}

func usageError(err error) error {
	return apperr.New(apperr.ExitUsage, apperr.CodeUsage, err.Error(), nil)
}

// usageArgs converts argument validation failures into usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
