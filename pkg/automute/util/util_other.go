//go:build !windows

package util

import (
	"fmt"
	"os"
)

// foregroundWindow has no portable implementation outside Windows: X11 and
// Wayland compositors expose the active window in incompatible ways.
func foregroundWindow() (Window, error) {
	return Window{}, fmt.Errorf("foreground window: %w", ErrUnsupported)
}

// processImagePath reads the executable link from procfs.
func processImagePath(pid uint32) (string, error) {
	path, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return "", fmt.Errorf("read image path of process %d: %w", pid, err)
	}
	return path, nil
}
