//go:build windows

package installer

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/relicrush/relicpack/internal/layout"
)

const uninstallerName = "relicpack-uninstall.exe"

const uninstallKeyBase = `Software\Microsoft\Windows\CurrentVersion\Uninstall\`

const accessDelete = 0x00010000

type platformElevation struct{}

func (platformElevation) IsElevated() (bool, error) {
	return windows.GetCurrentProcessToken().IsElevated(), nil
}

// platformPermissions grants BUILTIN\Users modify rights, inherited by children.
type platformPermissions struct{}

func (platformPermissions) AllowUsersModify(dir string) error {
	users, err := windows.CreateWellKnownSid(windows.WinBuiltinUsersSid)
	if err != nil {
		return fmt.Errorf("users sid: %w", err)
	}
	sd, err := windows.GetNamedSecurityInfo(dir, windows.SE_FILE_OBJECT, windows.DACL_SECURITY_INFORMATION)
	if err != nil {
		return fmt.Errorf("read acl: %w", err)
	}
	current, _, err := sd.DACL()
	if err != nil {
		return fmt.Errorf("read acl: %w", err)
	}
	access := []windows.EXPLICIT_ACCESS{{
		AccessPermissions: windows.ACCESS_MASK(windows.GENERIC_READ | windows.GENERIC_WRITE | windows.GENERIC_EXECUTE | accessDelete),
		AccessMode:        windows.GRANT_ACCESS,
		Inheritance:       windows.SUB_CONTAINERS_AND_OBJECTS_INHERIT,
		Trustee: windows.TRUSTEE{
			TrusteeForm:  windows.TRUSTEE_IS_SID,
			TrusteeType:  windows.TRUSTEE_IS_WELL_KNOWN_GROUP,
			TrusteeValue: windows.TrusteeValueFromSID(users),
		},
	}}
	updated, err := windows.ACLFromEntries(access, current)
	if err != nil {
		return fmt.Errorf("build acl: %w", err)
	}
	return windows.SetNamedSecurityInfo(dir, windows.SE_FILE_OBJECT, windows.DACL_SECURITY_INFORMATION, nil, nil, updated, nil)
}

// platformRegistrar writes the uninstall entry under the same {GUID}_is1 key the
// generated Inno Setup installer uses, so either uninstaller finds the other's install.
type platformRegistrar struct{}

func uninstallKey(guid string, scope layout.Scope) (registry.Key, string) {
	root := registry.LOCAL_MACHINE
	if scope == layout.PerUser {
		root = registry.CURRENT_USER
	}
	return root, uninstallKeyBase + "{" + guid + "}_is1"
}

func (platformRegistrar) Register(e UninstallEntry) error {
	root, path := uninstallKey(e.GUID, e.Scope)
	key, _, err := registry.CreateKey(root, path, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("create uninstall key: %w", err)
	}
	defer key.Close()

	values := []struct{ name, value string }{
		{"DisplayName", e.DisplayName},
		{"DisplayVersion", e.DisplayVersion},
		{"Publisher", e.Publisher},
		{"URLInfoAbout", e.URLInfoAbout},
		{"InstallLocation", e.InstallLocation},
		{"DisplayIcon", e.DisplayIcon},
		{"UninstallString", e.UninstallString},
		{"QuietUninstallString", e.QuietUninstall},
	}
	for _, v := range values {
		if v.value == "" {
			continue
		}
		if err := key.SetStringValue(v.name, v.value); err != nil {
			return fmt.Errorf("set %s: %w", v.name, err)
		}
	}
	if err := key.SetDWordValue("NoModify", 1); err != nil {
		return fmt.Errorf("set NoModify: %w", err)
	}
	if err := key.SetDWordValue("NoRepair", 1); err != nil {
		return fmt.Errorf("set NoRepair: %w", err)
	}
	if e.EstimatedSizeKB > 0 {
		_ = key.SetDWordValue("EstimatedSize", e.EstimatedSizeKB)
	}
	return nil
}

func (platformRegistrar) Unregister(guid string, scope layout.Scope) error {
	root, path := uninstallKey(guid, scope)
	if err := registry.DeleteKey(root, path); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("delete uninstall key: %w", err)
	}
	return nil
}

func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}
}

// removeFile deletes path. A file held open by a running process is scheduled for
// deletion at the next reboot and reported as pending.
func removeFile(path string) (pending bool, err error) {
	err = os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if !errors.Is(err, windows.ERROR_SHARING_VIOLATION) && !errors.Is(err, windows.ERROR_ACCESS_DENIED) {
		return false, err
	}
	p, errPtr := windows.UTF16PtrFromString(path)
	if errPtr != nil {
		return false, err
	}
	if errMove := windows.MoveFileEx(p, nil, windows.MOVEFILE_DELAY_UNTIL_REBOOT); errMove != nil {
		return false, fmt.Errorf("%w (schedule on reboot: %v)", err, errMove)
	}
	return true, nil
}

var (
	clsidShellLink = windows.GUID{
		Data1: 0x00021401,
		Data4: [8]byte{0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46},
	}
	iidShellLinkW = windows.GUID{
		Data1: 0x000214F9,
		Data4: [8]byte{0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46},
	}
	iidPersistFile = windows.GUID{
		Data1: 0x0000010B,
		Data4: [8]byte{0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46},
	}
)

type shellLinkVtbl struct {
	QueryInterface      uintptr
	AddRef              uintptr
	Release             uintptr
	GetPath             uintptr
	GetIDList           uintptr
	SetIDList           uintptr
	GetDescription      uintptr
	SetDescription      uintptr
	GetWorkingDirectory uintptr
	SetWorkingDirectory uintptr
	GetArguments        uintptr
	SetArguments        uintptr
	GetHotkey           uintptr
	SetHotkey           uintptr
	GetShowCmd          uintptr
	SetShowCmd          uintptr
	GetIconLocation     uintptr
	SetIconLocation     uintptr
	SetRelativePath     uintptr
	Resolve             uintptr
	SetPath             uintptr
}

type shellLink struct{ vtbl *shellLinkVtbl }

type persistFileVtbl struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr
	GetClassID     uintptr
	IsDirty        uintptr
	Load           uintptr
	Save           uintptr
	SaveCompleted  uintptr
	GetCurFile     uintptr
}

type persistFile struct{ vtbl *persistFileVtbl }

var (
	ole32            = windows.NewLazySystemDLL("ole32.dll")
	coInitializeEx   = ole32.NewProc("CoInitializeEx")
	coCreateInstance = ole32.NewProc("CoCreateInstance")
	coUninitialize   = ole32.NewProc("CoUninitialize")
)

const (
	coinitApartmentThreaded = 0x2
	clsctxInprocServer      = 0x1
)

// platformShortcuts writes .lnk files through IShellLinkW.
type platformShortcuts struct{}

func (platformShortcuts) Create(s Shortcut) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create shortcut directory: %w", err)
	}

	// COM apartments are per thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	hr, _, _ := coInitializeEx.Call(0, coinitApartmentThreaded)
	if hr != 0 && hr != 1 { // S_OK or S_FALSE
		return fmt.Errorf("CoInitializeEx failed: 0x%X", hr)
	}
	defer coUninitialize.Call()

	var link *shellLink
	hr, _, _ = coCreateInstance.Call(
		uintptr(unsafe.Pointer(&clsidShellLink)),
		0,
		clsctxInprocServer,
		uintptr(unsafe.Pointer(&iidShellLinkW)),
		uintptr(unsafe.Pointer(&link)),
	)
	if hr != 0 {
		return fmt.Errorf("CoCreateInstance failed: 0x%X", hr)
	}
	defer syscall.SyscallN(link.vtbl.Release, uintptr(unsafe.Pointer(link)))

	set := func(method uintptr, name, value string) error {
		if value == "" {
			return nil
		}
		w, err := windows.UTF16PtrFromString(value)
		if err != nil {
			return err
		}
		if hr, _, _ := syscall.SyscallN(method, uintptr(unsafe.Pointer(link)), uintptr(unsafe.Pointer(w))); hr != 0 {
			return fmt.Errorf("%s failed: 0x%X", name, hr)
		}
		return nil
	}
	if err := set(link.vtbl.SetPath, "SetPath", s.Target); err != nil {
		return err
	}
	if err := set(link.vtbl.SetArguments, "SetArguments", s.Args); err != nil {
		return err
	}
	if err := set(link.vtbl.SetWorkingDirectory, "SetWorkingDirectory", s.WorkingDir); err != nil {
		return err
	}
	if err := set(link.vtbl.SetDescription, "SetDescription", s.Description); err != nil {
		return err
	}
	if s.Icon != "" {
		if w, err := windows.UTF16PtrFromString(s.Icon); err == nil {
			// A missing icon leaves the target's own icon in place.
			_, _, _ = syscall.SyscallN(link.vtbl.SetIconLocation, uintptr(unsafe.Pointer(link)), uintptr(unsafe.Pointer(w)), 0)
		}
	}

	var persist *persistFile
	hr, _, _ = syscall.SyscallN(
		link.vtbl.QueryInterface,
		uintptr(unsafe.Pointer(link)),
		uintptr(unsafe.Pointer(&iidPersistFile)),
		uintptr(unsafe.Pointer(&persist)),
	)
	if hr != 0 {
		return fmt.Errorf("QueryInterface(IPersistFile) failed: 0x%X", hr)
	}
	defer syscall.SyscallN(persist.vtbl.Release, uintptr(unsafe.Pointer(persist)))

	path, err := windows.UTF16PtrFromString(s.Path)
	if err != nil {
		return err
	}
	if hr, _, _ = syscall.SyscallN(persist.vtbl.Save, uintptr(unsafe.Pointer(persist)), uintptr(unsafe.Pointer(path)), 1); hr != 0 {
		return fmt.Errorf("IPersistFile.Save failed: 0x%X", hr)
	}
	return nil
}

func (platformShortcuts) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
