//go:build !windows

package innosetup

// registryInstallLocations has nothing to read outside Windows; ISCC can still be
// found on PATH (for example a wine wrapper).
func registryInstallLocations() []string { return nil }
