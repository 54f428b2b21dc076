// Package innosetup generates the Inno Setup script for the packaged application
// and drives the ISCC compiler that turns it into a setup program.
//
// The generated script installs the executable into {app} with version-aware
// overwrite semantics, copies icons recursively, creates a user-writable DB
// directory, offers an unchecked desktop icon task and, after uninstall, asks
// whether the DB directory should be deleted as well.
package innosetup

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/relicrush/relicpack/internal/config"
	"github.com/relicrush/relicpack/internal/layout"
)

// Preprocessor defines accepted by the generated script. Compile passes them to
// ISCC with /D so a build can override the rendered defaults.
const (
	DefineAppVersion = "AppVersion"
	DefineDistDir    = "DistDir"
	DefineOutputDir  = "OutputDir"
)

type scriptData struct {
	GUID             string
	Name             string
	MessageArg       string
	Version          string
	Publisher        string
	PublisherURL     string
	SupportURL       string
	UpdatesURL       string
	DefaultDir       string
	GroupName        string
	OutputBaseName   string
	DistDir          string
	OutputDir        string
	SetupIcon        string
	Exe              string
	ExeFlags         string
	IconFlags        string
	DataDir          string
	IconsDir         string
	DesktopUnchecked bool
	Launch           bool
	DataPrompt       string
}

var scriptTemplate = template.Must(template.New("setup.iss").Delims("[[", "]]").Parse(`; Generated by relicpack. Regenerate with "relicpack package inno --render-only".

#ifndef AppVersion
  #define AppVersion "[[.Version]]"
#endif
#ifndef DistDir
  #define DistDir "[[.DistDir]]"
#endif
#ifndef OutputDir
  #define OutputDir "[[.OutputDir]]"
#endif

[Setup]
AppId={{[[.GUID]]}
AppName=[[.Name]]
AppVersion={#AppVersion}
AppVerName=[[.Name]] {#AppVersion}
AppPublisher=[[.Publisher]]
[[- if .PublisherURL]]
AppPublisherURL=[[.PublisherURL]]
[[- end]]
[[- if .SupportURL]]
AppSupportURL=[[.SupportURL]]
[[- end]]
[[- if .UpdatesURL]]
AppUpdatesURL=[[.UpdatesURL]]
[[- end]]
DefaultDirName=[[.DefaultDir]]
DefaultGroupName=[[.GroupName]]
DisableProgramGroupPage=yes
PrivilegesRequired=admin
OutputDir={#OutputDir}
OutputBaseFilename=[[.OutputBaseName]]
[[- if .SetupIcon]]
SetupIconFile={#DistDir}\[[.SetupIcon]]
[[- end]]
UninstallDisplayIcon={app}\[[.Exe]]
Compression=lzma
SolidCompression=yes
WizardStyle=modern

[Languages]
Name: "english"; MessagesFile: "compiler:Default.isl"

[Tasks]
Name: "desktopicon"; Description: "{cm:CreateDesktopIcon}"; GroupDescription: "{cm:AdditionalIcons}"[[if .DesktopUnchecked]]; Flags: unchecked[[end]]

[Files]
Source: "{#DistDir}\[[.Exe]]"; DestDir: "{app}"[[if .ExeFlags]]; Flags: [[.ExeFlags]][[end]]
Source: "{#DistDir}\[[.IconsDir]]\*"; DestDir: "{app}\[[.IconsDir]]"; Flags: [[.IconFlags]]

[Dirs]
Name: "{app}\[[.DataDir]]"; Permissions: users-modify

[Icons]
Name: "{group}\[[.Name]]"; Filename: "{app}\[[.Exe]]"; WorkingDir: "{app}"
Name: "{group}\{cm:UninstallProgram,[[.MessageArg]]}"; Filename: "{uninstallexe}"
Name: "{autodesktop}\[[.Name]]"; Filename: "{app}\[[.Exe]]"; WorkingDir: "{app}"; Tasks: desktopicon
[[- if .Launch]]

[Run]
Filename: "{app}\[[.Exe]]"; Description: "{cm:LaunchProgram,[[.MessageArg]]}"; Flags: nowait postinstall skipifsilent
[[- end]]

[Code]
procedure CurUninstallStepChanged(CurUninstallStep: TUninstallStep);
begin
  if CurUninstallStep = usPostUninstall then
  begin
    if SuppressibleMsgBox([[.DataPrompt]], mbConfirmation, MB_YESNO, IDNO) = IDYES then
      DelTree(ExpandConstant('{app}\[[.DataDir]]'), True, True, True);
  end;
end;
`))

// Render produces the setup script for cfg. The output depends only on the manifest
// and on which .ico files exist in the icons source tree.
func Render(cfg *config.Config) ([]byte, error) {
	scriptDir := filepath.Dir(ScriptPath(cfg))
	distDir, err := relativeTo(scriptDir, cfg.Resolve(cfg.Build.DistDir))
	if err != nil {
		return nil, err
	}
	outDir, err := relativeTo(scriptDir, cfg.Resolve(cfg.Installer.OutputDir))
	if err != nil {
		return nil, err
	}

	data := scriptData{
		GUID:             strings.ToUpper(cfg.App.GUID()),
		Name:             quoteValue(cfg.App.Name),
		MessageArg:       messageArg(cfg.App.Name),
		Version:          preprocessorString(cfg.App.Version),
		Publisher:        quoteValue(cfg.App.Publisher),
		PublisherURL:     quoteValue(cfg.App.PublisherURL),
		SupportURL:       quoteValue(firstNonEmpty(cfg.App.SupportURL, cfg.App.PublisherURL)),
		UpdatesURL:       quoteValue(firstNonEmpty(cfg.App.UpdatesURL, cfg.App.PublisherURL)),
		DefaultDir:       cfg.Installer.DefaultDir,
		GroupName:        quoteValue(cfg.Installer.GroupName),
		OutputBaseName:   quoteValue(cfg.Installer.OutputBaseName),
		DistDir:          preprocessorString(distDir),
		OutputDir:        preprocessorString(outDir),
		Exe:              cfg.App.ExeName,
		DataDir:          layout.DataDirName,
		IconsDir:         layout.IconsDirName,
		DesktopUnchecked: !cfg.Installer.DesktopIconDefault,
		Launch:           cfg.Installer.ShouldLaunch(),
		DataPrompt:       pascalString(cfg.Installer.DataPrompt),
	}
	data.ExeFlags, data.IconFlags = fileFlags(cfg.Installer.Overwrite)
	if icon := setupIcon(cfg.Resolve(cfg.Build.SourceIcons)); icon != "" {
		data.SetupIcon = layout.IconsDirName + `\` + icon
	}

	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render setup script: %w", err)
	}
	return buf.Bytes(), nil
}

// ScriptPath is where the rendered script is written.
func ScriptPath(cfg *config.Config) string {
	return cfg.Resolve(cfg.Installer.Script)
}

// SetupPath is the setup program ISCC produces.
func SetupPath(cfg *config.Config) string {
	return filepath.Join(cfg.Resolve(cfg.Installer.OutputDir), cfg.Installer.OutputBaseName+".exe")
}

// WriteScript renders the script and writes it when its content changed.
// It reports whether the file was rewritten.
func WriteScript(cfg *config.Config) (string, bool, error) {
	body, err := Render(cfg)
	if err != nil {
		return "", false, err
	}
	path := ScriptPath(cfg)
	if existing, errRead := os.ReadFile(path); errRead == nil && bytes.Equal(existing, body) {
		return path, false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", false, err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", false, err
	}
	return path, true, nil
}

func fileFlags(overwrite string) (exe, icons string) {
	if overwrite == config.OverwriteVersion {
		return "", "recursesubdirs createallsubdirs"
	}
	return "ignoreversion", "ignoreversion recursesubdirs createallsubdirs"
}

// setupIcon returns the first top-level .ico in dir by name.
func setupIcon(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var icons []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".ico") {
			icons = append(icons, e.Name())
		}
	}
	if len(icons) == 0 {
		return ""
	}
	sort.Strings(icons)
	return icons[0]
}

func relativeTo(base, target string) (string, error) {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", fmt.Errorf("locate %s from %s: %w", target, base, err)
	}
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", `\`), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// quoteValue escapes a [Setup] or entry value: constants start with "{" so a
// literal brace is doubled, and line breaks are not allowed.
func quoteValue(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ").Replace(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "{", "{{")
	return strings.ReplaceAll(s, `"`, `""`)
}

// messageArg escapes an argument of a {cm:Name,Arg} constant. Inside a constant a
// percent, comma, vertical bar or closing brace must be %-encoded.
func messageArg(s string) string {
	s = strings.NewReplacer(
		"%", "%25",
		",", "%2c",
		"|", "%7c",
		"}", "%7d",
	).Replace(s)
	return quoteValue(s)
}

// preprocessorString escapes text placed inside an ISPP "..." literal.
func preprocessorString(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// pascalString renders s as a Pascal Script string expression, doubling single
// quotes and joining lines with #13#10.
func pascalString(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	parts := make([]string, len(lines))
	for i, line := range lines {
		parts[i] = "'" + strings.ReplaceAll(line, "'", "''") + "'"
	}
	return strings.Join(parts, " + #13#10 + ")
}
