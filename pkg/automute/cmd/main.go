package main

//go:generate go run github.com/akavel/rsrc -manifest automute.manifest -ico ../../../assets/automute.ico -o rsrc_windows.syso

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/retr0680/automute/pkg/automute"
)

// set through -ldflags at build time
var (
	gitCommit  string
	versionTag string
	buildType  string
)

var (
	cfgPath string
	verbose bool
	logger  *zap.SugaredLogger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "automute",
		Short: "Mute applications while they are in the background",
		Long: "automute mutes managed applications whenever they lose focus and unmutes them\n" +
			"when they come back to the foreground. Without a subcommand it runs in the tray.",
		SilenceUsage:      true,
		PersistentPreRunE: setupLogger,
		RunE:              runDaemon,
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", automute.DefaultConfigFilepath, "path to the config file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show verbose logs")

	cmd.AddCommand(
		newRunCmd(),
		newMuteCmd(true),
		newMuteCmd(false),
		newAppsCmd(),
		newEnabledCmd(true),
		newEnabledCmd(false),
		newShellCmd(),
	)

	return cmd
}

func setupLogger(cmd *cobra.Command, args []string) error {
	if logger != nil {
		return nil
	}

	l, err := automute.NewLogger(buildType, verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return err
	}

	logger = l
	named := logger.Named("main")
	named.Debug("Created logger")

	if versionTag != "" || gitCommit != "" {
		named.Infow("Version info", "gitCommit", gitCommit, "versionTag", versionTag, "buildType", buildType)
	}

	if verbose {
		named.Debug("Verbose mode enabled, all log messages will be shown")
	}

	cmd.Flags().Visit(func(f *pflag.Flag) {
		named.Debugw("Flag set", "command", cmd.Name(), "flag", f.Name, "value", f.Value.String())
	})

	return nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run automute in the tray (the default)",
		Args:  cobra.NoArgs,
		RunE:  runDaemon,
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	named := logger.Named("main")

	a, err := automute.NewAutomute(logger, cfgPath, verbose)
	if err != nil {
		named.Errorw("Failed to create automute instance", "error", err)
		return err
	}

	if versionTag != "" || gitCommit != "" {
		versionIdentifier := versionTag
		if versionIdentifier == "" {
			versionIdentifier = gitCommit
		}
		a.SetVersion(fmt.Sprintf("Version %s-%s", buildType, versionIdentifier))
	}

	if err := a.Initialize(); err != nil {
		named.Errorw("Failed to initialize automute", "error", err)
		return err
	}

	return nil
}
