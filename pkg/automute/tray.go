package automute

import (
	"path/filepath"
	"sync"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"github.com/retr0680/automute/pkg/automute/icon"
	"github.com/retr0680/automute/pkg/automute/util"
)

const (
	enabledTitle       = "Enabled"
	enabledTooltip     = "Mute managed apps while they are in the background"
	recentAppsTitle    = "Recent apps"
	recentAppsTooltip  = "Check an app to let automute manage it"
	editConfigTitle    = "Edit configuration"
	editConfigTooltip  = "Open config file with notepad"
	reloadConfigTitle  = "Reload configuration"
	reloadConfigTip    = "Re-read the config file and re-apply mute states"
	unmuteAllTitle     = "Unmute all apps"
	unmuteAllTooltip   = "Unmute every app automute has muted"
	quitTitle          = "Quit"
	quitTooltip        = "Unmute everything, stop automute and quit"
	noRecentAppsTitle  = "(no recent apps)"
	recentSlotsDefault = defaultMaxRecentApps
)

// trayMenu keeps the menu items that change at runtime.
type trayMenu struct {
	enabled      *systray.MenuItem
	recentApps   *systray.MenuItem
	noRecentApps *systray.MenuItem

	lock        sync.Mutex
	recentSlots []*systray.MenuItem
	slotPaths   []string
}

func (a *Automute) initializeTray(onDone func()) {
	logger := a.logger.Named("tray")

	onReady := func() {
		logger.Debug("Tray instance ready")

		systray.SetTemplateIcon(icon.AutomuteLogo, icon.AutomuteLogo)
		systray.SetTitle("automute")
		systray.SetTooltip("automute")

		menu := &trayMenu{}

		menu.enabled = systray.AddMenuItem(enabledTitle, enabledTooltip)

		menu.recentApps = systray.AddMenuItem(recentAppsTitle, recentAppsTooltip)
		menu.noRecentApps = menu.recentApps.AddSubMenuItem(noRecentAppsTitle, "")
		menu.noRecentApps.Disable()

		// systray can't remove items, so the slots are created up front and
		// shown or hidden as the list changes
		slots := a.controller.settings().MaxRecentApps
		if slots <= 0 {
			slots = recentSlotsDefault
		}
		for i := 0; i < slots; i++ {
			slot := menu.recentApps.AddSubMenuItem("", "")
			slot.Hide()
			menu.recentSlots = append(menu.recentSlots, slot)
		}
		menu.slotPaths = make([]string, slots)

		systray.AddSeparator()
		editConfig := systray.AddMenuItem(editConfigTitle, editConfigTooltip)
		reloadConfig := systray.AddMenuItem(reloadConfigTitle, reloadConfigTip)
		unmuteAll := systray.AddMenuItem(unmuteAllTitle, unmuteAllTooltip)

		if a.version != "" {
			systray.AddSeparator()
			versionInfo := systray.AddMenuItem(a.version, "")
			versionInfo.Disable()
		}

		systray.AddSeparator()
		quit := systray.AddMenuItem(quitTitle, quitTooltip)

		a.tray = menu
		a.refreshTray()

		for i, slot := range menu.recentSlots {
			go a.handleRecentAppClicks(logger, menu, i, slot)
		}
		go a.handleTrayActions(logger, menu, editConfig, reloadConfig, unmuteAll, quit)

		onDone()
	}

	onExit := func() {
		logger.Debug("Tray exited")
	}

	logger.Debug("Running in tray")
	systray.Run(onReady, onExit)
}

func (a *Automute) handleTrayActions(
	logger *zap.SugaredLogger,
	menu *trayMenu,
	editConfig, reloadConfig, unmuteAll, quit *systray.MenuItem,
) {
	for {
		select {
		case <-quit.ClickedCh:
			logger.Info("Quit menu item clicked, stopping")
			a.signalStop()

		case <-menu.enabled.ClickedCh:
			enabled := !a.controller.isEnabled()
			logger.Infow("Enabled menu item clicked", "enabled", enabled)
			a.setEnabled(enabled)

		case <-editConfig.ClickedCh:
			logger.Info("Edit config menu item clicked, opening config for editing")
			if err := util.OpenExternal(logger, getEditor(), a.config.Path()); err != nil {
				logger.Warnw("Failed to open config file for editing", "error", err)
			}

		case <-reloadConfig.ClickedCh:
			logger.Info("Reload config menu item clicked, reloading")
			a.reloadConfig()

		case <-unmuteAll.ClickedCh:
			logger.Info("Unmute all menu item clicked, unmuting managed apps")
			a.unmuteAll()
		}
	}
}

func (a *Automute) handleRecentAppClicks(logger *zap.SugaredLogger, menu *trayMenu, index int, slot *systray.MenuItem) {
	for range slot.ClickedCh {
		menu.lock.Lock()
		path := menu.slotPaths[index]
		menu.lock.Unlock()

		if path == "" {
			continue
		}

		managed := !slot.Checked()
		logger.Infow("Recent app clicked", "path", path, "managed", managed)
		a.setAppManaged(path, managed)
	}
}

// refreshTray syncs the menu with the controller. No-op without a tray.
func (a *Automute) refreshTray() {
	menu := a.tray
	if menu == nil {
		return
	}

	if a.controller.isEnabled() {
		menu.enabled.Check()
	} else {
		menu.enabled.Uncheck()
	}

	recent := a.controller.recent()

	menu.lock.Lock()
	defer menu.lock.Unlock()

	if len(recent) == 0 {
		menu.noRecentApps.Show()
	} else {
		menu.noRecentApps.Hide()
	}

	for i, slot := range menu.recentSlots {
		if i >= len(recent) {
			menu.slotPaths[i] = ""
			slot.Hide()
			continue
		}

		app := recent[i]
		menu.slotPaths[i] = app.Path
		slot.SetTitle(filepath.Base(app.Path))
		slot.SetTooltip(app.Path)
		if app.Managed {
			slot.Check()
		} else {
			slot.Uncheck()
		}
		slot.Show()
	}
}

func getEditor() string {
	if util.Linux() {
		return "gedit"
	}
	return "notepad.exe"
}

func (a *Automute) stopTray() {
	if a.tray == nil {
		return
	}
	a.logger.Debug("Quitting tray")
	systray.Quit()
}
