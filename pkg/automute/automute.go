// Package automute mutes background instances of selected applications and
// unmutes whichever of them has focus.
package automute

import (
	"fmt"
	"os"
	"sync"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/retr0680/automute/pkg/automute/audio"
	"github.com/retr0680/automute/pkg/automute/util"
)

const (
	// EnvNoTray disables the tray icon when set.
	EnvNoTray = "AUTOMUTE_NO_TRAY_ICON"
)

// Automute manages the main application components.
type Automute struct {
	logger     *zap.SugaredLogger
	notifier   Notifier
	config     *CanonicalConfig
	muter      *audio.Muter
	controller *muteController
	foreground *foregroundWatcher
	tray       *trayMenu

	stopChannel chan bool
	stopOnce    sync.Once
	version     string
	verbose     bool
}

// NewAutomute creates a new Automute instance using the config file at configPath.
func NewAutomute(logger *zap.SugaredLogger, configPath string, verbose bool) (*Automute, error) {
	logger = logger.Named("automute")

	notifier, err := NewToastNotifier(logger)
	if err != nil {
		logger.Errorw("Failed to create notifier", "error", err)
		return nil, fmt.Errorf("create notifier: %w", err)
	}

	config, err := NewConfig(logger, notifier, configPath)
	if err != nil {
		logger.Errorw("Failed to create configuration", "error", err)
		return nil, fmt.Errorf("create configuration: %w", err)
	}

	a := &Automute{
		logger:      logger,
		notifier:    notifier,
		config:      config,
		muter:       audio.NewMuter(logger, nil),
		foreground:  newForegroundWatcher(logger, nil),
		stopChannel: make(chan bool, 1),
		verbose:     verbose,
	}

	logger.Debug("Automute instance created successfully")
	return a, nil
}

// Initialize loads the configuration and runs the application until it is stopped.
func (a *Automute) Initialize() error {
	a.logger.Debug("Initializing automute")

	if err := a.config.Load(); err != nil {
		a.logger.Errorw("Failed to load configuration", "error", err)
		return fmt.Errorf("load configuration: %w", err)
	}

	a.controller = newMuteController(a.logger, a.muter, util.PIDsByPath, a.config.Settings())

	a.setupInterruptHandler()

	if os.Getenv(EnvNoTray) != "" {
		a.logger.Debug("Running without tray icon")
		a.run()
	} else {
		a.initializeTray(a.run)
	}

	return nil
}

// SetVersion sets the application version for display in the tray menu.
func (a *Automute) SetVersion(version string) {
	a.version = version
}

// Verbose indicates whether the application runs in verbose mode.
func (a *Automute) Verbose() bool {
	return a.verbose
}

func (a *Automute) setupInterruptHandler() {
	interruptChannel := util.SetupCloseHandler()

	go func() {
		signal := <-interruptChannel
		a.logger.Debugw("Interrupt received", "signal", signal)
		a.signalStop()
	}()
}

func (a *Automute) run() {
	a.logger.Info("Run loop starting")

	foregroundChanges := a.foreground.SubscribeToChanges()
	configReloads := a.config.SubscribeToChanges()
	eventLoopDone := make(chan struct{})

	var wg conc.WaitGroup
	wg.Go(a.config.WatchConfigFileChanges)
	wg.Go(a.foreground.Start)
	wg.Go(func() {
		a.eventLoop(foregroundChanges, configReloads, eventLoopDone)
	})

	// bring processes that are already running in line with the config
	a.controller.updateMuteStatusAll()

	<-a.stopChannel
	a.logger.Debug("Stop signal received")

	close(eventLoopDone)
	a.config.StopWatchingConfigFile()
	a.foreground.Stop()
	wg.Wait()

	a.stop()
	os.Exit(0)
}

func (a *Automute) eventLoop(foregroundChanges chan util.Window, configReloads chan bool, done chan struct{}) {
	defer a.recoverFromPanic()

	for {
		select {
		case <-done:
			return

		case window := <-foregroundChanges:
			if a.controller.handleForegroundWindow(window) {
				a.refreshTray()
			}

		case <-configReloads:
			a.logger.Info("Detected config reload, applying new settings")
			a.controller.applySettings(a.config.Settings())
			a.refreshTray()
		}
	}
}

// setEnabled toggles automuting and persists the choice.
func (a *Automute) setEnabled(enabled bool) {
	if !a.controller.setEnabled(enabled) {
		return
	}
	a.saveSettings()
	a.refreshTray()
}

// setAppManaged adds or removes an app and persists the choice.
func (a *Automute) setAppManaged(path string, managed bool) {
	if !a.controller.setAppManaged(path, managed) {
		return
	}
	a.saveSettings()
	a.refreshTray()
}

func (a *Automute) reloadConfig() {
	if err := a.config.Reload(); err != nil {
		a.logger.Warnw("Failed to reload configuration", "error", err)
	}
}

func (a *Automute) unmuteAll() {
	a.controller.forceUnmuteAll()
	a.notifier.Notify("All apps unmuted", "Managed apps will be muted again on the next focus change.")
}

func (a *Automute) saveSettings() {
	if err := a.config.Save(a.controller.settings()); err != nil {
		a.logger.Warnw("Failed to save configuration", "error", err)
		a.notifier.Notify("Can't save configuration!", "Check logs for more details.")
	}
}

func (a *Automute) signalStop() {
	a.stopOnce.Do(func() {
		a.logger.Debug("Sending stop signal")
		a.stopChannel <- true
	})
}

func (a *Automute) stop() {
	a.logger.Info("Shutting down automute")

	// never leave apps muted behind us
	a.controller.forceUnmuteAll()

	a.stopTray()
	a.logger.Sync()
}
