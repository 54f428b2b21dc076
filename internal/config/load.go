package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ManifestNames lists the file names Find looks for, in priority order.
var ManifestNames = []string{"relicpack.yaml", "relicpack.yml", "relicpack.toml"}

// ErrNotFound is returned by Find when no manifest exists in dir or its parents.
var ErrNotFound = errors.New("no relicpack manifest found")

// Environment variables that override or complete the manifest.
const (
	EnvVersion           = "RELICPACK_VERSION"
	EnvInstallDir        = "RELICPACK_INSTALL_DIR"
	EnvS3AccessKey       = "RELICPACK_S3_ACCESS_KEY"
	EnvS3SecretKey       = "RELICPACK_S3_SECRET_KEY"
	EnvSigningPassphrase = "RELICPACK_SIGNING_PASSPHRASE"
	EnvGitHubToken       = "GITHUB_TOKEN"
)

// Find walks from dir towards the filesystem root and returns the first manifest.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range ManifestNames {
			candidate := filepath.Join(dir, name)
			if info, errStat := os.Stat(candidate); errStat == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// Load reads the manifest at path, loads a sibling .env file, applies defaults and
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	cfg := &Config{Path: abs, Root: filepath.Dir(abs)}
	if err := decode(abs, data, cfg); err != nil {
		return nil, err
	}

	envFile := filepath.Join(cfg.Root, ".env")
	if _, errStat := os.Stat(envFile); errStat == nil {
		// Existing process variables take precedence over .env values.
		if errEnv := godotenv.Load(envFile); errEnv != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, errEnv)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty manifest decodes to the zero Config so validation names the missing fields.
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	default:
		return fmt.Errorf("unsupported manifest format %q", filepath.Ext(path))
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.ExeName == "" && c.App.Name != "" {
		c.App.ExeName = strings.ReplaceAll(c.App.Name, " ", "") + ".exe"
	}
	if c.Build.Python == "" {
		c.Build.Python = DefaultPython
	}
	if c.Build.Packager == "" {
		c.Build.Packager = DefaultPackager
	}
	if c.Build.SourceDB == "" {
		c.Build.SourceDB = DefaultSourceDB
	}
	if c.Build.SourceIcons == "" {
		c.Build.SourceIcons = DefaultSourceIcons
	}
	if c.Build.DistDir == "" {
		c.Build.DistDir = DefaultDistDir
	}
	if c.Build.SpecFile == "" && c.App.ExeName != "" {
		c.Build.SpecFile = strings.TrimSuffix(c.App.ExeName, filepath.Ext(c.App.ExeName)) + ".spec"
	}
	if c.Installer.Script == "" {
		c.Installer.Script = DefaultInstallScript
	}
	if c.Installer.OutputDir == "" {
		c.Installer.OutputDir = DefaultDistDir
	}
	if c.Installer.OutputBaseName == "" && c.App.Name != "" {
		c.Installer.OutputBaseName = strings.ReplaceAll(c.App.Name, " ", "") + "-Setup"
	}
	if c.Installer.DefaultDir == "" && c.App.Name != "" {
		c.Installer.DefaultDir = `{autopf}\` + c.App.Name
	}
	if c.Installer.GroupName == "" {
		c.Installer.GroupName = c.App.Name
	}
	if c.Installer.Overwrite == "" {
		c.Installer.Overwrite = OverwriteIgnoreVersion
	}
	if strings.TrimSpace(c.Installer.DataPrompt) == "" {
		c.Installer.DataPrompt = DefaultDataPrompt
	}
	if c.Update.Owner == "" {
		c.Update.Owner = DefaultUpdateOwner
	}
	if c.Update.Repo == "" {
		c.Update.Repo = DefaultUpdateRepo
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvVersion)); v != "" {
		c.App.Version = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvInstallDir)); v != "" {
		c.Installer.DefaultDir = v
	}
	c.Publish.AccessKey = strings.TrimSpace(os.Getenv(EnvS3AccessKey))
	c.Publish.SecretKey = strings.TrimSpace(os.Getenv(EnvS3SecretKey))
	c.Signing.Passphrase = os.Getenv(EnvSigningPassphrase)
	c.Update.Token = strings.TrimSpace(os.Getenv(EnvGitHubToken))
}

// Resolve returns p made absolute against the manifest directory.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}

// Write serializes cfg to path, choosing YAML or TOML by extension.
// It refuses to overwrite an existing file unless force is set.
func Write(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		data, err = toml.Marshal(cfg)
	case ".yaml", ".yml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err = enc.Encode(cfg); err == nil {
			err = enc.Close()
		}
		data = buf.Bytes()
	default:
		return fmt.Errorf("unsupported manifest format %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Template returns a starter manifest for a new project.
func Template(name string) *Config {
	cfg := &Config{
		App: AppConfig{
			Name:      name,
			Version:   "1.0.0",
			Publisher: name,
			AppID:     NewAppID(),
		},
	}
	cfg.applyDefaults()
	return cfg
}
