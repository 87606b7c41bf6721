package automute

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/retr0680/automute/pkg/automute/util"
)

const defaultForegroundPollInterval = time.Millisecond * 250

// foregroundWatcher polls the foreground window and reports changes.
type foregroundWatcher struct {
	logger   *zap.SugaredLogger
	interval time.Duration
	current  func() (util.Window, error)

	stopChannel chan struct{}
	consumers   []chan util.Window
}

func newForegroundWatcher(logger *zap.SugaredLogger, current func() (util.Window, error)) *foregroundWatcher {
	logger = logger.Named("foreground")

	if current == nil {
		current = util.ForegroundWindow
	}

	fw := &foregroundWatcher{
		logger:      logger,
		interval:    defaultForegroundPollInterval,
		current:     current,
		stopChannel: make(chan struct{}),
	}

	logger.Debug("Created foreground watcher instance")

	return fw
}

// SubscribeToChanges returns a channel that receives every new foreground window.
func (fw *foregroundWatcher) SubscribeToChanges() chan util.Window {
	c := make(chan util.Window, 1)
	fw.consumers = append(fw.consumers, c)
	return c
}

// Start polls until Stop is called, or returns right away when the OS can't
// report the foreground window.
func (fw *foregroundWatcher) Start() {
	ticker := time.NewTicker(fw.interval)
	defer ticker.Stop()

	var last *util.Window

	for {
		window, err := fw.current()
		switch {
		case errors.Is(err, util.ErrUnsupported):
			fw.logger.Warnw("Foreground window tracking unavailable, automuting on focus change is disabled", "error", err)
			return
		case err != nil:
			fw.logger.Debugw("Failed to get foreground window", "error", err)
		case last == nil || *last != window:
			last = &window
			if !fw.publish(window) {
				return
			}
		}

		select {
		case <-fw.stopChannel:
			fw.logger.Debug("Stopping foreground watcher")
			return
		case <-ticker.C:
		}
	}
}

// Stop ends Start. It must be called at most once.
func (fw *foregroundWatcher) Stop() {
	close(fw.stopChannel)
}

func (fw *foregroundWatcher) publish(window util.Window) bool {
	for _, consumer := range fw.consumers {
		select {
		case consumer <- window:
		case <-fw.stopChannel:
			return false
		}
	}
	return true
}
