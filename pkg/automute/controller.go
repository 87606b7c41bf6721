package automute

import (
	"sort"
	"sync"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/retr0680/automute/pkg/automute/audio"
	"github.com/retr0680/automute/pkg/automute/util"
)

// Muter applies a mute flag to the audio session of one process.
type Muter interface {
	ApplyMute(pid uint32, mute bool) error
}

// RecentApp is one entry of the recently focused apps list.
type RecentApp struct {
	Path    string
	Managed bool
}

// muteController decides which processes should be muted: managed apps are
// muted while they are in the background and unmuted when they gain focus.
type muteController struct {
	logger   *zap.SugaredLogger
	muter    Muter
	findPIDs func(path string) ([]uint32, error)

	lock          sync.Mutex
	enabled       bool
	managed       map[string]string // folded path -> configured path
	maxRecentApps int
	foreground    *util.Window
	recentApps    []string
	mutedPIDs     map[uint32]struct{}
}

func newMuteController(
	logger *zap.SugaredLogger,
	muter Muter,
	findPIDs func(path string) ([]uint32, error),
	settings Settings,
) *muteController {
	c := &muteController{
		logger:    logger.Named("controller"),
		muter:     muter,
		findPIDs:  findPIDs,
		mutedPIDs: make(map[uint32]struct{}),
	}
	c.adoptLocked(settings)

	c.logger.Debugw("Created mute controller instance", "enabled", c.enabled, "managedApps", len(c.managed))

	return c
}

// handleForegroundWindow reacts to a focus change. It returns true when the
// recent apps list changed.
func (c *muteController) handleForegroundWindow(w util.Window) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	old := c.foreground

	if c.enabled && (old == nil || old.PID != w.PID) {
		if old != nil && c.isManagedLocked(old.ProgramPath) {
			c.setMuteLocked(old.PID, true)
		}
		if c.isManagedLocked(w.ProgramPath) {
			c.setMuteLocked(w.PID, false)
		}
	}

	recentChanged := false
	if old == nil || util.FoldPath(old.ProgramPath) != util.FoldPath(w.ProgramPath) {
		c.pushRecentLocked(w.ProgramPath)
		recentChanged = true
	}

	c.logger.Debugw("New foreground window", "pid", w.PID, "path", w.ProgramPath)
	c.foreground = &w

	return recentChanged
}

// setEnabled turns automuting on or off. It returns false if nothing changed.
func (c *muteController) setEnabled(enabled bool) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.enabled == enabled {
		return false
	}

	c.enabled = enabled
	c.logger.Infow("Automuting toggled", "enabled", enabled)

	if enabled {
		c.updateMuteStatusAllLocked()
	} else {
		c.forceUnmuteAllLocked()
	}

	return true
}

// setAppManaged adds or removes path from the managed apps. Newly managed
// apps are muted right away unless they're in the foreground; apps that stop
// being managed are unmuted. It returns false if nothing changed.
func (c *muteController) setAppManaged(path string, managed bool) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	folded := util.FoldPath(path)
	_, wasManaged := c.managed[folded]
	if wasManaged == managed {
		return false
	}

	pids := c.pidsLocked(path)

	if managed {
		c.managed[folded] = path
		c.logger.Infow("Added app to managed apps", "path", path)

		if c.enabled {
			for _, pid := range pids {
				if !c.isForegroundLocked(pid) {
					c.setMuteLocked(pid, true)
				}
			}
		}
	} else {
		delete(c.managed, folded)
		c.logger.Infow("Removed app from managed apps", "path", path)

		for _, pid := range pids {
			c.setMuteLocked(pid, false)
		}
	}

	return true
}

// applySettings swaps in freshly loaded settings: everything is unmuted
// under the old rules, then re-muted under the new ones.
func (c *muteController) applySettings(s Settings) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.forceUnmuteAllLocked()
	c.adoptLocked(s)
	c.updateMuteStatusAllLocked()
}

// forceUnmuteAll unmutes every process we muted and every managed process.
// PIDs whose unmute fails stay tracked and are retried next time.
func (c *muteController) forceUnmuteAll() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.forceUnmuteAllLocked()
}

// updateMuteStatusAll mutes every managed process that isn't in the foreground.
func (c *muteController) updateMuteStatusAll() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.updateMuteStatusAllLocked()
}

// settings returns the controller's view of the persisted settings.
func (c *muteController) settings() Settings {
	c.lock.Lock()
	defer c.lock.Unlock()

	return Settings{
		Enabled:       c.enabled,
		ManagedApps:   sortedAppPaths(maps.Values(c.managed)),
		MaxRecentApps: c.maxRecentApps,
	}
}

func (c *muteController) isEnabled() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.enabled
}

// recent returns the recently focused apps, most recent first.
func (c *muteController) recent() []RecentApp {
	c.lock.Lock()
	defer c.lock.Unlock()

	apps := make([]RecentApp, 0, len(c.recentApps))
	for _, path := range c.recentApps {
		apps = append(apps, RecentApp{Path: path, Managed: c.isManagedLocked(path)})
	}
	return apps
}

func (c *muteController) adoptLocked(s Settings) {
	c.enabled = s.Enabled
	c.maxRecentApps = s.MaxRecentApps
	if c.maxRecentApps <= 0 {
		c.maxRecentApps = defaultMaxRecentApps
	}

	c.managed = make(map[string]string, len(s.ManagedApps))
	for _, path := range s.ManagedApps {
		c.managed[util.FoldPath(path)] = path
	}

	if len(c.recentApps) > c.maxRecentApps {
		c.recentApps = c.recentApps[:c.maxRecentApps]
	}
}

func (c *muteController) forceUnmuteAllLocked() {
	pids := make(map[uint32]struct{}, len(c.mutedPIDs))
	for pid := range c.mutedPIDs {
		pids[pid] = struct{}{}
	}
	for _, path := range c.managed {
		for _, pid := range c.pidsLocked(path) {
			pids[pid] = struct{}{}
		}
	}

	sorted := maps.Keys(pids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	c.logger.Debugw("Unmuting all apps", "processes", len(sorted))
	for _, pid := range sorted {
		c.setMuteLocked(pid, false)
	}
}

func (c *muteController) updateMuteStatusAllLocked() {
	if !c.enabled {
		return
	}

	for _, path := range c.managed {
		for _, pid := range c.pidsLocked(path) {
			if !c.isForegroundLocked(pid) {
				c.setMuteLocked(pid, true)
			}
		}
	}
}

func (c *muteController) setMuteLocked(pid uint32, mute bool) {
	err := c.muter.ApplyMute(pid, mute)

	switch {
	case err == nil:
	case audio.IsNoSession(err):
		c.logger.Debugw("Process has no audio session", "pid", pid, "mute", mute)
	default:
		c.logger.Warnw("Failed to set mute status", "pid", pid, "mute", mute, "error", err)
		return
	}

	if mute && err == nil {
		c.mutedPIDs[pid] = struct{}{}
	} else if !mute {
		delete(c.mutedPIDs, pid)
	}
}

func (c *muteController) pidsLocked(path string) []uint32 {
	pids, err := c.findPIDs(path)
	if err != nil {
		c.logger.Warnw("Failed to find processes for app", "path", path, "error", err)
		return nil
	}
	return pids
}

func (c *muteController) pushRecentLocked(path string) {
	folded := util.FoldPath(path)
	rest := funk.FilterString(c.recentApps, func(p string) bool {
		return util.FoldPath(p) != folded
	})

	c.recentApps = append([]string{path}, rest...)
	if len(c.recentApps) > c.maxRecentApps {
		c.recentApps = c.recentApps[:c.maxRecentApps]
	}
}

func (c *muteController) isManagedLocked(path string) bool {
	_, ok := c.managed[util.FoldPath(path)]
	return ok
}

func (c *muteController) isForegroundLocked(pid uint32) bool {
	return c.foreground != nil && c.foreground.PID == pid
}
