package automute

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/retr0680/automute/pkg/automute/util"
)

const (
	crashlogFilename        = "automute-crash-%s.log"
	crashlogTimestampFormat = "2006.01.02-15.04.05"
	crashMessageTemplate    = `-----------------------------------------------------------------
                        automute crashlog
-----------------------------------------------------------------
Unfortunately, automute has crashed. This really shouldn't happen!
Apps it muted may still be muted; start automute again or use
"automute unmute <pid>" to restore them.
-----------------------------------------------------------------
Time: %s
Panic occurred: %s
Stack trace:
%s
-----------------------------------------------------------------
`
)

// recoverFromPanic writes a crash log and exits if the calling goroutine panics.
func (a *Automute) recoverFromPanic() {
	if r := recover(); r != nil {
		a.handlePanic(r)
	}
}

func (a *Automute) handlePanic(recoverValue interface{}) {
	now := time.Now()
	crashlogPath := filepath.Join(logDirectory, fmt.Sprintf(crashlogFilename, now.Format(crashlogTimestampFormat)))

	if err := util.EnsureDirExists(logDirectory); err != nil {
		panic(fmt.Errorf("create log directory: %w", err))
	}

	if err := os.WriteFile(crashlogPath, createCrashLogContent(now, recoverValue), 0644); err != nil {
		panic(fmt.Errorf("write crash log: %w", err))
	}

	a.logger.Errorw("Application panic encountered",
		"crashlogPath", crashlogPath,
		"error", recoverValue)

	a.notifier.Notify("Unexpected crash occurred",
		fmt.Sprintf("Details logged to: %s", crashlogPath))

	a.logger.Errorw("Exiting due to panic", "exitCode", 1)
	a.logger.Sync()
	os.Exit(1)
}

func createCrashLogContent(timestamp time.Time, recoverValue interface{}) []byte {
	return []byte(fmt.Sprintf(crashMessageTemplate,
		timestamp.Format(crashlogTimestampFormat),
		recoverValue,
		debug.Stack(),
	))
}
