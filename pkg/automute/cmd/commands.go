package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/retr0680/automute/pkg/automute"
	"github.com/retr0680/automute/pkg/automute/audio"
	"github.com/retr0680/automute/pkg/automute/util"
)

func newMuteCmd(mute bool) *cobra.Command {
	use, short := "mute", "Mute the audio sessions of the given processes"
	if !mute {
		use, short = "unmute", "Unmute the audio sessions of the given processes"
	}

	return &cobra.Command{
		Use:   use + " <pid|executable>...",
		Short: short,
		Long: short + ".\n\nEach argument is either a process ID or an executable name\n" +
			"(e.g. spotify.exe); names match every running process with that name.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pids, err := resolveTargets(args, util.PIDsByName)
			if err != nil {
				return err
			}

			return applyMute(cmd, audio.NewMuter(logger, nil), pids, mute)
		},
	}
}

// resolveTargets turns PID and executable-name arguments into PIDs, keeping
// the order of the arguments and dropping duplicates.
func resolveTargets(targets []string, byName func(name string) ([]uint32, error)) ([]uint32, error) {
	var pids []uint32
	seen := make(map[uint32]bool)

	add := func(pid uint32) {
		if !seen[pid] {
			seen[pid] = true
			pids = append(pids, pid)
		}
	}

	for _, target := range targets {
		// only plain decimal counts as a PID; cast also accepts octal, hex and
		// values that silently wrap past 32 bits
		if pid, err := cast.ToUint32E(target); err == nil && pid != 0 && strconv.FormatUint(uint64(pid), 10) == target {
			add(pid)
			continue
		}

		matches, err := byName(target)
		if err != nil {
			return nil, fmt.Errorf("find processes named %s: %w", target, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no running process named %s", target)
		}

		for _, pid := range matches {
			add(pid)
		}
	}

	return pids, nil
}

func applyMute(cmd *cobra.Command, muter automute.Muter, pids []uint32, mute bool) error {
	action := "muted"
	if !mute {
		action = "unmuted"
	}

	var errs error
	for _, pid := range pids {
		err := muter.ApplyMute(pid, mute)
		switch {
		case err == nil:
			fmt.Fprintf(cmd.OutOrStdout(), "pid %d: %s\n", pid, action)
		case audio.IsNoSession(err):
			fmt.Fprintf(cmd.OutOrStdout(), "pid %d: no audio session\n", pid)
			errs = multierr.Append(errs, err)
		default:
			fmt.Fprintf(cmd.ErrOrStderr(), "pid %d: %v\n", pid, err)
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func newAppsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "List or change the managed apps",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the managed apps",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				config, err := loadConfig()
				if err != nil {
					return err
				}

				settings := config.Settings()
				fmt.Fprintf(cmd.OutOrStdout(), "enabled: %t\n", settings.Enabled)
				if len(settings.ManagedApps) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no managed apps")
				}
				for _, path := range settings.ManagedApps {
					fmt.Fprintln(cmd.OutOrStdout(), path)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <path>...",
			Short: "Start managing the programs at the given paths",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return updateConfig(func(s *automute.Settings) {
					s.ManagedApps = append(s.ManagedApps, args...)
				})
			},
		},
		&cobra.Command{
			Use:   "remove <path>...",
			Short: "Stop managing the programs at the given paths",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return updateConfig(func(s *automute.Settings) {
					s.ManagedApps = removeAppPaths(s.ManagedApps, args)
				})
			},
		},
	)

	return cmd
}

func newEnabledCmd(enabled bool) *cobra.Command {
	use, short := "enable", "Turn automuting on"
	if !enabled {
		use, short = "disable", "Turn automuting off"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfig(func(s *automute.Settings) {
				s.Enabled = enabled
			})
		},
	}
}

// removeAppPaths drops every path in remove from paths, ignoring case.
func removeAppPaths(paths []string, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, path := range remove {
		drop[util.FoldPath(strings.TrimSpace(path))] = true
	}

	var result []string
	for _, path := range paths {
		if !drop[util.FoldPath(path)] {
			result = append(result, path)
		}
	}
	return result
}

func loadConfig() (*automute.CanonicalConfig, error) {
	config, err := automute.NewConfig(logger, automute.NewLogNotifier(logger), cfgPath)
	if err != nil {
		return nil, err
	}

	if err := config.Load(); err != nil {
		return nil, err
	}

	return config, nil
}

func updateConfig(fn func(s *automute.Settings)) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	return config.Update(fn)
}
