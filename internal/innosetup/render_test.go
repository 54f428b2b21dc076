package innosetup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/relicrush/relicpack/internal/config"
	apperr "github.com/relicrush/relicpack/internal/errors"
	"github.com/relicrush/relicpack/internal/toolexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Template("Warframe Relic Companion")
	cfg.Root = t.TempDir()
	cfg.App.Version = "1.1.8"
	cfg.App.Publisher = "RelicRush"
	cfg.App.PublisherURL = "https://github.com/RelicRush/RelicCompanion"
	cfg.App.AppID = "{4b1e7c2a-9d3f-4e8b-a6c1-2f5d8e9b0a71}"
	return cfg
}

func render(t *testing.T, cfg *config.Config) string {
	t.Helper()
	body, err := Render(cfg)
	require.NoError(t, err)
	return string(body)
}

func TestRender_Metadata(t *testing.T) {
	out := render(t, newConfig(t))

	assert.Contains(t, out, "AppId={{4B1E7C2A-9D3F-4E8B-A6C1-2F5D8E9B0A71}\n")
	assert.Contains(t, out, "AppName=Warframe Relic Companion\n")
	assert.Contains(t, out, `#define AppVersion "1.1.8"`)
	assert.Contains(t, out, "AppVersion={#AppVersion}\n")
	assert.Contains(t, out, "AppPublisher=RelicRush\n")
	assert.Contains(t, out, "AppPublisherURL=https://github.com/RelicRush/RelicCompanion\n")
	assert.Contains(t, out, "AppSupportURL=https://github.com/RelicRush/RelicCompanion\n")
	assert.Contains(t, out, "DefaultDirName={autopf}\\Warframe Relic Companion\n")
	assert.Contains(t, out, "DefaultGroupName=Warframe Relic Companion\n")
	assert.Contains(t, out, "PrivilegesRequired=admin\n")
	assert.Contains(t, out, `#define DistDir "..\dist"`)
	assert.Contains(t, out, "OutputBaseFilename=WarframeRelicCompanion-Setup\n")
	assert.NotContains(t, out, "SetupIconFile")
}

func TestRender_FilesDirsAndIcons(t *testing.T) {
	out := render(t, newConfig(t))

	assert.Contains(t, out, `Source: "{#DistDir}\WarframeRelicCompanion.exe"; DestDir: "{app}"; Flags: ignoreversion`)
	assert.Contains(t, out, `Source: "{#DistDir}\icons\*"; DestDir: "{app}\icons"; Flags: ignoreversion recursesubdirs createallsubdirs`)
	assert.Contains(t, out, `Name: "{app}\DB"; Permissions: users-modify`)
	assert.Contains(t, out, `Name: "{group}\Warframe Relic Companion"; Filename: "{app}\WarframeRelicCompanion.exe"`)
	assert.Contains(t, out, `Name: "{autodesktop}\Warframe Relic Companion"; Filename: "{app}\WarframeRelicCompanion.exe"; WorkingDir: "{app}"; Tasks: desktopicon`)
	assert.Contains(t, out, `Flags: nowait postinstall skipifsilent`)
}

func TestRender_DesktopIconUncheckedByDefault(t *testing.T) {
	cfg := newConfig(t)
	out := render(t, cfg)
	assert.Contains(t, out, `Name: "desktopicon"; Description: "{cm:CreateDesktopIcon}"; GroupDescription: "{cm:AdditionalIcons}"; Flags: unchecked`)

	cfg.Installer.DesktopIconDefault = true
	out = render(t, cfg)
	assert.Contains(t, out, `GroupDescription: "{cm:AdditionalIcons}"`+"\n")
	assert.NotContains(t, out, "Flags: unchecked")
}

func TestRender_VersionOverwritePolicy(t *testing.T) {
	cfg := newConfig(t)
	cfg.Installer.Overwrite = config.OverwriteVersion
	out := render(t, cfg)
	assert.Contains(t, out, `Source: "{#DistDir}\WarframeRelicCompanion.exe"; DestDir: "{app}"`+"\n")
	assert.Contains(t, out, `DestDir: "{app}\icons"; Flags: recursesubdirs createallsubdirs`)
}

func TestRender_NoLaunch(t *testing.T) {
	cfg := newConfig(t)
	off := false
	cfg.Installer.LaunchAfterInstall = &off
	out := render(t, cfg)
	assert.NotContains(t, out, "[Run]")
	assert.Contains(t, out, "Tasks: desktopicon\n\n[Code]")
}

func TestRender_UninstallPrompt(t *testing.T) {
	cfg := newConfig(t)
	cfg.Installer.DataPrompt = "Remove Tenno's saved data?\nNo keeps it."
	out := render(t, cfg)

	assert.Contains(t, out, "if CurUninstallStep = usPostUninstall then")
	assert.Contains(t, out, `SuppressibleMsgBox('Remove Tenno''s saved data?' + #13#10 + 'No keeps it.', mbConfirmation, MB_YESNO, IDNO) = IDYES`)
	assert.Contains(t, out, `DelTree(ExpandConstant('{app}\DB'), True, True, True);`)
}

func TestRender_EscapesValues(t *testing.T) {
	cfg := newConfig(t)
	cfg.App.Publisher = `Relic "Rush" {Tenno}`
	out := render(t, cfg)
	assert.Contains(t, out, `AppPublisher=Relic ""Rush"" {{Tenno}`+"\n")
}

func TestRender_EscapesMessageArguments(t *testing.T) {
	cfg := newConfig(t)
	cfg.App.Name = `Relics, Rewards {100%}`
	out := render(t, cfg)
	assert.Contains(t, out, `AppName=Relics, Rewards {{100%}`+"\n")
	assert.Contains(t, out, `Name: "{group}\{cm:UninstallProgram,Relics%2c Rewards {{100%25%7d}"; Filename: "{uninstallexe}"`)
	assert.Contains(t, out, `Description: "{cm:LaunchProgram,Relics%2c Rewards {{100%25%7d}"`)
}

func TestRender_Deterministic(t *testing.T) {
	cfg := newConfig(t)
	assert.Equal(t, render(t, cfg), render(t, cfg))
}

func TestRender_SetupIcon(t *testing.T) {
	cfg := newConfig(t)
	icons := filepath.Join(cfg.Root, "icons")
	require.NoError(t, os.MkdirAll(icons, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(icons, "zeta.ico"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(icons, "app.ico"), nil, 0o644))
	out := render(t, cfg)
	assert.Contains(t, out, "SetupIconFile={#DistDir}\\icons\\app.ico\n")
}

func TestWriteScript_OnlyWhenChanged(t *testing.T) {
	cfg := newConfig(t)
	path, changed, err := WriteScript(cfg)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, filepath.Join(cfg.Root, "installer", "setup.iss"), path)

	_, changed, err = WriteScript(cfg)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestFinder_Order(t *testing.T) {
	base := t.TempDir()
	pf := filepath.Join(base, "pf")
	reg := filepath.Join(base, "reg")
	require.NoError(t, os.MkdirAll(filepath.Join(pf, "Inno Setup 6"), 0o755))
	require.NoError(t, os.MkdirAll(reg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(reg, "ISCC.exe"), nil, 0o755))

	env := map[string]string{"ProgramFiles": pf}
	f := &Finder{
		LookPath:         (&toolexec.Fake{}).LookPath,
		Getenv:           func(k string) string { return env[k] },
		InstallLocations: func() []string { return []string{reg + string(filepath.Separator)} },
	}
	got, err := f.Find("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(reg, "ISCC.exe"), got)

	require.NoError(t, os.WriteFile(filepath.Join(pf, "Inno Setup 6", "ISCC.exe"), nil, 0o755))
	got, err = f.Find("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(pf, "Inno Setup 6", "ISCC.exe"), got)

	f.LookPath = (&toolexec.Fake{Paths: map[string]string{"ISCC": "/usr/local/bin/ISCC"}}).LookPath
	got, err = f.Find("")
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/ISCC", got)
}

func TestFinder_Missing(t *testing.T) {
	f := &Finder{
		LookPath: (&toolexec.Fake{}).LookPath,
		Getenv:   func(string) string { return "" },
	}
	_, err := f.Find("")
	assert.True(t, apperr.Is(err, apperr.CodeToolMissing))

	_, err = f.Find(filepath.Join(t.TempDir(), "ISCC.exe"))
	assert.True(t, apperr.Is(err, apperr.CodeToolMissing))
}

func TestCompile(t *testing.T) {
	script := filepath.Join(t.TempDir(), "setup.iss")
	require.NoError(t, os.WriteFile(script, []byte("; iss"), 0o644))

	fake := &toolexec.Fake{}
	err := Compile(context.Background(), fake, "ISCC", script, map[string]string{
		DefineOutputDir:  "/out",
		DefineAppVersion: "1.1.8",
	})
	require.NoError(t, err)
	require.Len(t, fake.Calls, 1)
	assert.Equal(t, filepath.Dir(script), fake.Calls[0].Dir)
	assert.Equal(t, "ISCC /Q /DAppVersion=1.1.8 /DOutputDir=/out "+script, fake.Lines()[0])

	fake.Handle = func(toolexec.Call) error { return &toolexec.ExitError{Code: 2} }
	err = Compile(context.Background(), fake, "ISCC", script, nil)
	assert.Equal(t, apperr.CodeToolFailed, apperr.CodeOf(err))
	assert.Equal(t, 2, apperr.ExitCodeOf(err))
}

func TestPascalString(t *testing.T) {
	assert.Equal(t, "'a' + #13#10 + ''''", pascalString("a\n'"))
	assert.False(t, strings.Contains(quoteValue("a\nb"), "\n"))
}
