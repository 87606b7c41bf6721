package util

import (
	"fmt"

	"github.com/mitchellh/go-ps"
)

// PIDsByName returns the PIDs of all running processes whose executable name
// matches name, ignoring case.
func PIDsByName(name string) ([]uint32, error) {
	processes, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	folded := FoldPath(name)
	return filterPIDs(processes, func(p ps.Process) bool {
		return FoldPath(p.Executable()) == folded
	}), nil
}

// PIDsByPath returns the PIDs of all running processes started from the
// executable at path, ignoring case. Processes whose image path can't be read
// (e.g. protected system processes) are skipped.
func PIDsByPath(path string) ([]uint32, error) {
	processes, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	folded := FoldPath(path)
	return filterPIDs(processes, func(p ps.Process) bool {
		imagePath, err := processImagePath(uint32(p.Pid()))
		return err == nil && FoldPath(imagePath) == folded
	}), nil
}

func filterPIDs(processes []ps.Process, match func(ps.Process) bool) []uint32 {
	var pids []uint32
	for _, p := range processes {
		if p.Pid() <= 0 {
			continue
		}
		if match(p) {
			pids = append(pids, uint32(p.Pid()))
		}
	}
	return pids
}
