// Package config loads the relicpack project manifest. The manifest describes the
// packaged application (name, version, publisher, AppId), where the build inputs live,
// how the installer behaves, and where releases are published.
// YAML (relicpack.yaml) and TOML (relicpack.toml) manifests are both accepted.
package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Overwrite policies for the application executable.
const (
	OverwriteIgnoreVersion = "ignoreversion"
	OverwriteVersion       = "version"
)

// Default values applied by Load.
const (
	DefaultPython        = "python"
	DefaultPackager      = "pyinstaller"
	DefaultSourceDB      = "DB"
	DefaultSourceIcons   = "icons"
	DefaultDistDir       = "dist"
	DefaultInstallScript = "installer/setup.iss"
	DefaultUpdateOwner   = "RelicRush"
	DefaultUpdateRepo    = "RelicCompanion"
	DefaultDataPrompt    = "Do you want to remove your saved data (settings and inventory)?" +
		"\n\nChoose No to keep it for a future installation."
)

// Config is the project manifest.
type Config struct {
	App       AppConfig       `yaml:"app" toml:"app"`
	Build     BuildConfig     `yaml:"build" toml:"build"`
	Installer InstallerConfig `yaml:"installer" toml:"installer"`
	Publish   PublishConfig   `yaml:"publish" toml:"publish"`
	Signing   SigningConfig   `yaml:"signing" toml:"signing"`
	Update    UpdateConfig    `yaml:"update" toml:"update"`
	Log       LogConfig       `yaml:"log" toml:"log"`

	// Path is the manifest file the configuration was loaded from.
	Path string `yaml:"-" toml:"-"`
	// Root is the directory containing the manifest; relative paths resolve against it.
	Root string `yaml:"-" toml:"-"`
}

// AppConfig holds installer metadata for the packaged application.
type AppConfig struct {
	Name         string `yaml:"name" toml:"name"`
	Version      string `yaml:"version" toml:"version"`
	Publisher    string `yaml:"publisher" toml:"publisher"`
	PublisherURL string `yaml:"publisher-url" toml:"publisher-url"`
	SupportURL   string `yaml:"support-url" toml:"support-url"`
	UpdatesURL   string `yaml:"updates-url" toml:"updates-url"`
	// AppID is the fixed GUID identifying the application to the installer framework.
	AppID   string `yaml:"app-id" toml:"app-id"`
	ExeName string `yaml:"exe-name" toml:"exe-name"`
}

// BuildConfig describes the packaging step.
type BuildConfig struct {
	SpecFile string `yaml:"spec-file" toml:"spec-file"`
	Python   string `yaml:"python" toml:"python"`
	Packager string `yaml:"packager" toml:"packager"`
	// AutoInstall installs the packager with pip when it is not available.
	// nil means default (true).
	AutoInstall *bool    `yaml:"auto-install,omitempty" toml:"auto-install,omitempty"`
	SourceDB    string   `yaml:"source-db" toml:"source-db"`
	SourceIcons string   `yaml:"source-icons" toml:"source-icons"`
	DistDir     string   `yaml:"dist-dir" toml:"dist-dir"`
	ExtraArgs   []string `yaml:"extra-args,omitempty" toml:"extra-args,omitempty"`
}

// InstallerConfig describes the generated setup program and the Go installer.
type InstallerConfig struct {
	Script         string `yaml:"script" toml:"script"`
	OutputDir      string `yaml:"output-dir" toml:"output-dir"`
	OutputBaseName string `yaml:"output-base-name" toml:"output-base-name"`
	// DefaultDir uses Inno Setup constants, e.g. {autopf}\Warframe Relic Companion.
	DefaultDir         string `yaml:"default-dir" toml:"default-dir"`
	GroupName          string `yaml:"group-name" toml:"group-name"`
	DesktopIconDefault bool   `yaml:"desktop-icon-default" toml:"desktop-icon-default"`
	// LaunchAfterInstall nil means default (true).
	LaunchAfterInstall *bool  `yaml:"launch-after-install,omitempty" toml:"launch-after-install,omitempty"`
	Overwrite          string `yaml:"overwrite" toml:"overwrite"`
	DataPrompt         string `yaml:"data-prompt" toml:"data-prompt"`
	ISCC               string `yaml:"iscc,omitempty" toml:"iscc,omitempty"`
}

// PublishConfig points at S3-compatible release storage.
type PublishConfig struct {
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	Bucket   string `yaml:"bucket" toml:"bucket"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
	// Secure nil means default (true).
	Secure *bool  `yaml:"secure,omitempty" toml:"secure,omitempty"`
	Region string `yaml:"region,omitempty" toml:"region,omitempty"`

	AccessKey string `yaml:"-" toml:"-"`
	SecretKey string `yaml:"-" toml:"-"`
}

// SigningConfig locates the OpenPGP release key.
type SigningConfig struct {
	KeyFile    string `yaml:"key-file" toml:"key-file"`
	Passphrase string `yaml:"-" toml:"-"`
}

// UpdateConfig locates the GitHub repository that publishes releases.
type UpdateConfig struct {
	Owner  string `yaml:"owner" toml:"owner"`
	Repo   string `yaml:"repo" toml:"repo"`
	APIURL string `yaml:"api-url,omitempty" toml:"api-url,omitempty"`
	Token  string `yaml:"-" toml:"-"`
}

// LogConfig controls log level and the optional rotating log file.
type LogConfig struct {
	Level      string `yaml:"level" toml:"level"`
	Dir        string `yaml:"dir" toml:"dir"`
	MaxSizeMB  int    `yaml:"max-size-mb" toml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups" toml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days" toml:"max-age-days"`
}

// ShouldAutoInstall reports whether a missing packager is installed on demand, defaulting to true.
func (b *BuildConfig) ShouldAutoInstall() bool {
	if b == nil || b.AutoInstall == nil {
		return true
	}
	return *b.AutoInstall
}

// ShouldLaunch reports whether the app starts after install, defaulting to true.
func (c *InstallerConfig) ShouldLaunch() bool {
	if c == nil || c.LaunchAfterInstall == nil {
		return true
	}
	return *c.LaunchAfterInstall
}

// IsSecure reports whether publishing uses TLS, defaulting to true.
func (p *PublishConfig) IsSecure() bool {
	if p == nil || p.Secure == nil {
		return true
	}
	return *p.Secure
}

// GUID returns the AppId without braces, upper-cased as Inno Setup writes it.
func (a AppConfig) GUID() string {
	id := strings.TrimSpace(a.AppID)
	id = strings.TrimPrefix(id, "{")
	id = strings.TrimSuffix(id, "}")
	return strings.ToUpper(id)
}

var semverPattern = regexp.MustCompile(`^v?\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.\-]+)?$`)

// Validate checks the fields every command relies on.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.App.Name) == "" {
		problems = append(problems, "app.name is required")
	}
	if !semverPattern.MatchString(strings.TrimSpace(c.App.Version)) {
		problems = append(problems, fmt.Sprintf("app.version %q is not MAJOR.MINOR.PATCH", c.App.Version))
	}
	if !strings.HasSuffix(strings.ToLower(c.App.ExeName), ".exe") {
		problems = append(problems, fmt.Sprintf("app.exe-name %q must end in .exe", c.App.ExeName))
	}
	if strings.ContainsAny(c.App.ExeName, `/\`) {
		problems = append(problems, "app.exe-name must be a bare file name")
	}
	if _, err := uuid.Parse(c.App.GUID()); err != nil {
		problems = append(problems, fmt.Sprintf("app.app-id %q is not a GUID", c.App.AppID))
	}
	switch c.Installer.Overwrite {
	case OverwriteIgnoreVersion, OverwriteVersion:
	default:
		problems = append(problems, fmt.Sprintf("installer.overwrite %q must be %q or %q", c.Installer.Overwrite, OverwriteIgnoreVersion, OverwriteVersion))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid manifest: %s", strings.Join(problems, "; "))
	}
	return nil
}

// NewAppID returns a fresh AppId GUID in Inno Setup form.
func NewAppID() string {
	return "{" + strings.ToUpper(uuid.NewString()) + "}"
}
