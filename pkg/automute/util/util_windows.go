package util

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

const (
	// frame process that hosts UWP apps; the real app owns a child window
	applicationFrameHost = "applicationframehost.exe"

	maxImagePathLength = 1024
)

var errNoForegroundWindow = errors.New("no foreground window")

// foregroundWindow resolves the current foreground window to its owning process.
func foregroundWindow() (Window, error) {
	hwnd := win.GetForegroundWindow()
	if hwnd == 0 || !win.IsWindowVisible(hwnd) {
		return Window{}, errNoForegroundWindow
	}

	var ownerPID uint32
	win.GetWindowThreadProcessId(hwnd, &ownerPID)

	// system idle process, e.g. while the secure desktop is up
	if ownerPID == 0 {
		return Window{}, errNoForegroundWindow
	}

	ownerPath, err := processImagePath(ownerPID)
	if err != nil {
		return Window{}, fmt.Errorf("get image path for PID %d: %w", ownerPID, err)
	}

	if strings.ToLower(filepath.Base(ownerPath)) != applicationFrameHost {
		return Window{PID: ownerPID, ProgramPath: ownerPath}, nil
	}

	if hosted, ok := hostedChildWindow(hwnd, ownerPID); ok {
		return hosted, nil
	}

	return Window{PID: ownerPID, ProgramPath: ownerPath}, nil
}

// hostedChildWindow returns the first child window of hwnd owned by a
// process other than ownerPID.
func hostedChildWindow(hwnd win.HWND, ownerPID uint32) (Window, bool) {
	var result Window
	found := false

	enumChildWindowsCallback := func(childHWND *uintptr, lParam *uintptr) uintptr {
		owner := (*uint32)(unsafe.Pointer(lParam))

		var childPID uint32
		win.GetWindowThreadProcessId((win.HWND)(unsafe.Pointer(childHWND)), &childPID)

		if childPID == 0 || childPID == *owner {
			return 1 // continue enumerating
		}

		childPath, err := processImagePath(childPID)
		if err != nil {
			return 1
		}

		result = Window{PID: childPID, ProgramPath: childPath}
		found = true
		return 0
	}

	win.EnumChildWindows(hwnd, syscall.NewCallback(enumChildWindowsCallback), (uintptr)(unsafe.Pointer(&ownerPID)))

	return result, found
}

// processImagePath asks the OS for the full executable path of pid.
func processImagePath(pid uint32) (string, error) {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", fmt.Errorf("open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(handle)

	buf := make([]uint16, maxImagePathLength)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(handle, 0, &buf[0], &size); err != nil {
		return "", fmt.Errorf("query image name of process %d: %w", pid, err)
	}

	return windows.UTF16ToString(buf[:size]), nil
}
