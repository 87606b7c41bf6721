package automute

import (
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/retr0680/automute/pkg/automute/audio"
	"github.com/retr0680/automute/pkg/automute/util"
)

const (
	spotifyPath = `C:\Apps\Spotify.exe`
	discordPath = `C:\Apps\Discord.exe`
	editorPath  = `C:\Apps\Editor.exe`
)

type muteCall struct {
	pid  uint32
	mute bool
}

type recordingMuter struct {
	calls  []muteCall
	errors map[uint32]error
}

func (m *recordingMuter) ApplyMute(pid uint32, mute bool) error {
	m.calls = append(m.calls, muteCall{pid: pid, mute: mute})
	return m.errors[pid]
}

func (m *recordingMuter) reset() {
	m.calls = nil
}

func newTestController(t *testing.T, settings Settings) (*muteController, *recordingMuter) {
	t.Helper()

	processes := map[string][]uint32{
		util.FoldPath(spotifyPath): {10, 11},
		util.FoldPath(discordPath): {20},
		util.FoldPath(editorPath):  {30},
	}
	findPIDs := func(path string) ([]uint32, error) {
		return processes[util.FoldPath(path)], nil
	}

	muter := &recordingMuter{errors: map[uint32]error{}}
	return newMuteController(zaptest.NewLogger(t).Sugar(), muter, findPIDs, settings), muter
}

func managedSettings(apps ...string) Settings {
	return Settings{Enabled: true, ManagedApps: apps, MaxRecentApps: 3}
}

func TestControllerFocusChanges(t *testing.T) {
	c, muter := newTestController(t, managedSettings(spotifyPath))

	c.handleForegroundWindow(util.Window{PID: 10, ProgramPath: spotifyPath})
	if want := []muteCall{{pid: 10, mute: false}}; !reflect.DeepEqual(muter.calls, want) {
		t.Errorf("focus managed app: calls = %v, want %v", muter.calls, want)
	}

	muter.reset()
	c.handleForegroundWindow(util.Window{PID: 30, ProgramPath: editorPath})
	if want := []muteCall{{pid: 10, mute: true}}; !reflect.DeepEqual(muter.calls, want) {
		t.Errorf("focus other app: calls = %v, want %v", muter.calls, want)
	}

	muter.reset()
	c.handleForegroundWindow(util.Window{PID: 30, ProgramPath: editorPath})
	if len(muter.calls) != 0 {
		t.Errorf("same window again: calls = %v, want none", muter.calls)
	}

	muter.reset()
	c.handleForegroundWindow(util.Window{PID: 10, ProgramPath: `c:\apps\SPOTIFY.exe`})
	if want := []muteCall{{pid: 10, mute: false}}; !reflect.DeepEqual(muter.calls, want) {
		t.Errorf("refocus managed app: calls = %v, want %v", muter.calls, want)
	}
}

func TestControllerDisabledDoesNothingOnFocus(t *testing.T) {
	settings := managedSettings(spotifyPath)
	settings.Enabled = false
	c, muter := newTestController(t, settings)

	c.handleForegroundWindow(util.Window{PID: 10, ProgramPath: spotifyPath})
	c.handleForegroundWindow(util.Window{PID: 30, ProgramPath: editorPath})

	if len(muter.calls) != 0 {
		t.Errorf("calls = %v, want none while disabled", muter.calls)
	}
}

func TestControllerSetEnabled(t *testing.T) {
	c, muter := newTestController(t, managedSettings(spotifyPath))
	c.handleForegroundWindow(util.Window{PID: 11, ProgramPath: spotifyPath})
	muter.reset()

	if c.setEnabled(true) {
		t.Error("setEnabled(true) reported a change while already enabled")
	}

	if !c.setEnabled(false) {
		t.Fatal("setEnabled(false) reported no change")
	}
	if want := []muteCall{{pid: 10, mute: false}, {pid: 11, mute: false}}; !reflect.DeepEqual(muter.calls, want) {
		t.Errorf("disable: calls = %v, want %v", muter.calls, want)
	}

	muter.reset()
	c.setEnabled(true)
	// the foreground instance stays audible
	if want := []muteCall{{pid: 10, mute: true}}; !reflect.DeepEqual(muter.calls, want) {
		t.Errorf("enable: calls = %v, want %v", muter.calls, want)
	}
}

func TestControllerSetAppManaged(t *testing.T) {
	c, muter := newTestController(t, managedSettings())
	c.handleForegroundWindow(util.Window{PID: 30, ProgramPath: editorPath})
	muter.reset()

	if !c.setAppManaged(discordPath, true) {
		t.Fatal("adding an app reported no change")
	}
	if want := []muteCall{{pid: 20, mute: true}}; !reflect.DeepEqual(muter.calls, want) {
		t.Errorf("add: calls = %v, want %v", muter.calls, want)
	}
	if c.setAppManaged(`c:\apps\discord.exe`, true) {
		t.Error("adding the same app twice reported a change")
	}

	muter.reset()
	if !c.setAppManaged(discordPath, false) {
		t.Fatal("removing an app reported no change")
	}
	if want := []muteCall{{pid: 20, mute: false}}; !reflect.DeepEqual(muter.calls, want) {
		t.Errorf("remove: calls = %v, want %v", muter.calls, want)
	}

	if got := c.settings().ManagedApps; len(got) != 0 {
		t.Errorf("managed apps = %v, want none", got)
	}
}

func TestControllerAddingForegroundAppKeepsItAudible(t *testing.T) {
	c, muter := newTestController(t, managedSettings())
	c.handleForegroundWindow(util.Window{PID: 20, ProgramPath: discordPath})
	muter.reset()

	c.setAppManaged(discordPath, true)

	if len(muter.calls) != 0 {
		t.Errorf("calls = %v, want none for the foreground app", muter.calls)
	}
}

func TestControllerForceUnmuteAllRetriesFailedUnmutes(t *testing.T) {
	c, muter := newTestController(t, managedSettings(spotifyPath, discordPath))
	c.handleForegroundWindow(util.Window{PID: 30, ProgramPath: editorPath})
	c.updateMuteStatusAll()

	// discord drops out of the config but can't be unmuted yet
	muter.errors[20] = errors.New("device busy")
	c.applySettings(managedSettings(spotifyPath))
	delete(muter.errors, 20)
	muter.reset()

	c.forceUnmuteAll()

	want := []muteCall{{pid: 10, mute: false}, {pid: 11, mute: false}, {pid: 20, mute: false}}
	if !reflect.DeepEqual(muter.calls, want) {
		t.Errorf("calls = %v, want %v", muter.calls, want)
	}
}

func TestControllerApplySettings(t *testing.T) {
	c, muter := newTestController(t, managedSettings(discordPath))
	c.handleForegroundWindow(util.Window{PID: 30, ProgramPath: editorPath})
	c.updateMuteStatusAll()
	muter.reset()

	c.applySettings(managedSettings(spotifyPath))

	want := []muteCall{
		{pid: 20, mute: false},
		{pid: 10, mute: true},
		{pid: 11, mute: true},
	}
	if !reflect.DeepEqual(muter.calls, want) {
		t.Errorf("calls = %v, want %v", muter.calls, want)
	}
}

func TestControllerNoSessionIsNotTracked(t *testing.T) {
	c, muter := newTestController(t, managedSettings(discordPath))
	muter.errors[20] = &audio.Error{Kind: audio.ProcessHasNoAudioSession, PID: 20}

	c.handleForegroundWindow(util.Window{PID: 30, ProgramPath: editorPath})
	c.updateMuteStatusAll()

	if _, ok := c.mutedPIDs[20]; ok {
		t.Error("pid without a session recorded as muted")
	}
}

func TestControllerRecentApps(t *testing.T) {
	c, _ := newTestController(t, managedSettings(spotifyPath))

	for _, w := range []util.Window{
		{PID: 10, ProgramPath: spotifyPath},
		{PID: 20, ProgramPath: discordPath},
		{PID: 11, ProgramPath: `C:\APPS\SPOTIFY.EXE`},
		{PID: 30, ProgramPath: editorPath},
		{PID: 40, ProgramPath: `C:\Apps\Browser.exe`},
	} {
		c.handleForegroundWindow(w)
	}

	want := []RecentApp{
		{Path: `C:\Apps\Browser.exe`},
		{Path: editorPath},
		{Path: `C:\APPS\SPOTIFY.EXE`, Managed: true},
	}
	if got := c.recent(); !reflect.DeepEqual(got, want) {
		t.Errorf("recent = %v, want %v", got, want)
	}

	if c.handleForegroundWindow(util.Window{PID: 41, ProgramPath: `C:\Apps\Browser.exe`}) {
		t.Error("a new PID of the same program must not change the recent list")
	}
}
