//go:build windows

package innosetup

import (
	"strings"

	"golang.org/x/sys/windows/registry"
)

const uninstallKey = `Software\Microsoft\Windows\CurrentVersion\Uninstall`

var uninstallRoots = []struct {
	root registry.Key
	path string
}{
	{registry.CURRENT_USER, uninstallKey},
	{registry.LOCAL_MACHINE, uninstallKey},
	{registry.LOCAL_MACHINE, `Software\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall`},
}

// registryInstallLocations reads InstallLocation from every "Inno Setup" uninstall entry.
func registryInstallLocations() []string {
	var out []string
	for _, r := range uninstallRoots {
		parent, err := registry.OpenKey(r.root, r.path, registry.ENUMERATE_SUB_KEYS)
		if err != nil {
			continue
		}
		names, err := parent.ReadSubKeyNames(-1)
		_ = parent.Close()
		if err != nil {
			continue
		}
		for _, name := range names {
			if !strings.HasPrefix(strings.ToLower(name), "inno setup") {
				continue
			}
			if loc := readInstallLocation(r.root, r.path+`\`+name); loc != "" {
				out = append(out, loc)
			}
		}
	}
	return out
}

func readInstallLocation(root registry.Key, path string) string {
	k, err := registry.OpenKey(root, path, registry.QUERY_VALUE)
	if err != nil {
		return ""
	}
	defer func() { _ = k.Close() }()
	loc, _, err := k.GetStringValue("InstallLocation")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.Trim(loc, `"`))
}
