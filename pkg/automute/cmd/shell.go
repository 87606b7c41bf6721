package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
)

func newShellCmd() *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive shell for the other commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractiveShell(cmd.OutOrStdout(), prompt)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "automute> ", "prompt shown by the shell")

	return cmd
}

func runInteractiveShell(out io.Writer, prompt string) error {
	historyFile := filepath.Join(os.TempDir(), "automute-shell.history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("start shell: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(out, "Type 'help' for usage, 'exit' to quit.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line: %w", err)
		}

		switch strings.TrimSpace(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			printShellHelp(out)
			continue
		}

		if err := executeShellLine(out, line); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

// executeShellLine splits line like a POSIX shell would and dispatches it to
// a fresh command tree.
func executeShellLine(out io.Writer, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse %q: %w", line, err)
	}
	if len(tokens) == 0 {
		return nil
	}

	switch tokens[0] {
	case "shell":
		return errors.New("already in the shell")
	case "run":
		return errors.New("the tray daemon can't be started from the shell")
	}

	// building the tree resets the flag variables to their defaults
	currentConfig := cfgPath
	root := newRootCmd()
	if err := root.PersistentFlags().Set("config", currentConfig); err != nil {
		return err
	}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(tokens)
	return root.Execute()
}

func printShellHelp(out io.Writer) {
	fmt.Fprintln(out, `Examples:
  mute 1234                      # mute the session of PID 1234
  unmute spotify.exe             # unmute every spotify.exe process
  apps list                      # show managed apps
  apps add "C:\Program Files\Spotify\Spotify.exe"
  apps remove "C:\Program Files\Spotify\Spotify.exe"
  enable / disable               # toggle automuting
  exit / quit                    # leave the shell`)
}
