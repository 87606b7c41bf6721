package util

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// ErrUnsupported is returned by helpers that have no implementation on the current OS.
var ErrUnsupported = errors.New("not supported on " + runtime.GOOS)

// Window describes a top-level window by the process that owns it.
type Window struct {
	PID         uint32
	ProgramPath string
}

// EnsureDirExists creates the given directory path if it doesn't already exist.
func EnsureDirExists(path string) error {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("ensure directory exists (%s): %w", path, err)
	}
	return nil
}

// FileExists checks if a file exists and is not a directory.
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Linux returns true if we're running on Linux.
func Linux() bool {
	return runtime.GOOS == "linux"
}

// SetupCloseHandler returns a channel that receives interrupt and
// termination signals from the OS.
func SetupCloseHandler() chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	return c
}

// FoldPath case-folds a program path or executable name so that paths which
// differ only in case compare equal.
func FoldPath(path string) string {
	return cases.Fold().String(path)
}

// ForegroundWindow returns the window the user is currently interacting with.
// Hosted apps (UWP frames) resolve to the hosted process.
func ForegroundWindow() (Window, error) {
	return foregroundWindow()
}

// ProcessImagePath returns the full path of the executable running as pid.
func ProcessImagePath(pid uint32) (string, error) {
	return processImagePath(pid)
}

// OpenExternal spawns a detached process (e.g., opening a file or URL) with the given command and argument.
func OpenExternal(logger *zap.SugaredLogger, cmd string, arg string) error {
	command := createExternalCommand(cmd, arg)
	if err := command.Run(); err != nil {
		logger.Warnw("Failed to spawn detached process", "command", cmd, "argument", arg, "error", err)
		return fmt.Errorf("spawn detached proc: %w", err)
	}
	return nil
}

// createExternalCommand prepares the appropriate command for launching an external process depending on the OS.
func createExternalCommand(cmd string, arg string) *exec.Cmd {
	if Linux() {
		return exec.Command("/bin/bash", "-c", fmt.Sprintf("%s %s", cmd, arg))
	}
	return exec.Command("cmd.exe", "/C", "start", "/b", cmd, arg)
}
