package audio

import (
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newTestMuter(t *testing.T, platform Platform) *Muter {
	t.Helper()
	return NewMuter(zaptest.NewLogger(t).Sugar(), platform)
}

func assertNoLeaks(t *testing.T, p *fakePlatform) {
	t.Helper()

	if p.outstanding != 0 {
		t.Errorf("outstanding resources = %d, want 0 (release order %v)", p.outstanding, p.releaseOrder)
	}
	if len(p.doubleRelease) > 0 {
		t.Errorf("resources released more than once: %v", p.doubleRelease)
	}
}

func TestApplyMuteScenario(t *testing.T) {
	p := newFakePlatform(
		&fakeSession{pid: 100},
		&fakeSession{pid: 200},
	)
	m := newTestMuter(t, p)

	if err := m.ApplyMute(200, true); err != nil {
		t.Fatalf("ApplyMute(200, true) = %v", err)
	}

	if !p.sessions[1].muted {
		t.Error("session of pid 200 is not muted")
	}
	if p.sessions[0].muted {
		t.Error("session of pid 100 was changed")
	}
	if len(p.mutations) != 1 {
		t.Errorf("mutations = %v, want exactly one", p.mutations)
	}
	assertNoLeaks(t, p)
}

func TestApplyMuteToggle(t *testing.T) {
	p := newFakePlatform(&fakeSession{pid: 42})
	m := newTestMuter(t, p)

	if err := m.ApplyMute(42, true); err != nil {
		t.Fatalf("mute: %v", err)
	}
	if err := m.ApplyMute(42, false); err != nil {
		t.Fatalf("unmute: %v", err)
	}

	want := []mutation{{index: 0, pid: 42, mute: true}, {index: 0, pid: 42, mute: false}}
	if !reflect.DeepEqual(p.mutations, want) {
		t.Errorf("mutations = %v, want %v", p.mutations, want)
	}
	if p.sessions[0].muted {
		t.Error("session should end up unmuted")
	}
	assertNoLeaks(t, p)
}

func TestApplyMuteDoesNotShortCircuit(t *testing.T) {
	p := newFakePlatform(&fakeSession{pid: 42})
	m := newTestMuter(t, p)

	for i := 0; i < 2; i++ {
		if err := m.ApplyMute(42, true); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	want := []mutation{{index: 0, pid: 42, mute: true}, {index: 0, pid: 42, mute: true}}
	if !reflect.DeepEqual(p.mutations, want) {
		t.Errorf("mutations = %v, want %v", p.mutations, want)
	}
	assertNoLeaks(t, p)
}

func TestApplyMuteFirstMatchWins(t *testing.T) {
	p := newFakePlatform(
		&fakeSession{pid: 7},
		&fakeSession{pid: 7},
	)
	m := newTestMuter(t, p)

	if err := m.ApplyMute(7, true); err != nil {
		t.Fatalf("ApplyMute: %v", err)
	}

	if len(p.mutations) != 1 || p.mutations[0].index != 0 {
		t.Errorf("mutations = %v, want only index 0", p.mutations)
	}
	if p.sessions[1].muted {
		t.Error("second session of the same process must be left alone")
	}
	// the second descriptor is never fetched
	if p.acquired != 6 {
		t.Errorf("acquired = %d, want 6", p.acquired)
	}
	assertNoLeaks(t, p)
}

func TestApplyMuteNoSession(t *testing.T) {
	for _, tc := range []struct {
		name     string
		sessions []*fakeSession
	}{
		{name: "empty endpoint"},
		{name: "other processes", sessions: []*fakeSession{{pid: 1}, {pid: 2}, {pid: 3}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := newFakePlatform(tc.sessions...)
			m := newTestMuter(t, p)

			err := m.ApplyMute(999, true)
			if !errors.Is(err, ErrNoSession) {
				t.Fatalf("err = %v, want ErrNoSession", err)
			}
			if !IsNoSession(err) {
				t.Error("IsNoSession = false")
			}
			if len(p.mutations) != 0 {
				t.Errorf("mutations = %v, want none", p.mutations)
			}
			assertNoLeaks(t, p)
		})
	}
}

func TestApplyMuteSkipsBadDescriptors(t *testing.T) {
	p := newFakePlatform(
		&fakeSession{pid: 1, fetchErr: errInjected},
		&fakeSession{pid: 2, pidErr: errInjected},
		&fakeSession{pid: 3},
		&fakeSession{pid: 50},
	)
	m := newTestMuter(t, p)

	if err := m.ApplyMute(50, true); err != nil {
		t.Fatalf("ApplyMute: %v", err)
	}

	if !p.sessions[3].muted {
		t.Error("session after the bad ones was not muted")
	}
	assertNoLeaks(t, p)
}

func TestApplyMuteFailures(t *testing.T) {
	for _, tc := range []struct {
		name          string
		setup         func(p *fakePlatform)
		want          error
		wantMutations int
	}{
		{
			name:  "subsystem",
			setup: func(p *fakePlatform) { p.acquireErr = errInjected },
			want:  ErrSubsystemUnavailable,
		},
		{
			name:  "default endpoint",
			setup: func(p *fakePlatform) { p.endpointErr = errInjected },
			want:  ErrNoDefaultEndpoint,
		},
		{
			name:  "session manager",
			setup: func(p *fakePlatform) { p.managerErr = errInjected },
			want:  ErrEndpointActivationFailed,
		},
		{
			name:  "session enumerator",
			setup: func(p *fakePlatform) { p.sessionsErr = errInjected },
			want:  ErrEnumerationFailed,
		},
		{
			name:  "session count",
			setup: func(p *fakePlatform) { p.countErr = errInjected },
			want:  ErrEnumerationFailed,
		},
		{
			name:  "mute control",
			setup: func(p *fakePlatform) { p.sessions[0].controlErr = errInjected },
			want:  ErrMuteControlUnsupported,
		},
		{
			name:          "set mute",
			setup:         func(p *fakePlatform) { p.setMuteErr = errInjected },
			want:          ErrMuteApplyFailed,
			wantMutations: 1,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := newFakePlatform(&fakeSession{pid: 10})
			tc.setup(p)
			m := newTestMuter(t, p)

			err := m.ApplyMute(10, true)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if !errors.Is(err, errInjected) {
				t.Errorf("err = %v does not wrap the platform error", err)
			}
			if len(p.mutations) != tc.wantMutations {
				t.Errorf("mutations = %v, want %d", p.mutations, tc.wantMutations)
			}
			if p.sessions[0].muted {
				t.Error("session muted despite failure")
			}
			assertNoLeaks(t, p)
		})
	}
}

func TestApplyMuteErrorDetails(t *testing.T) {
	p := newFakePlatform()
	m := newTestMuter(t, p)

	err := m.ApplyMute(1234, false)

	var muteErr *Error
	if !errors.As(err, &muteErr) {
		t.Fatalf("err = %T, want *Error", err)
	}
	if muteErr.PID != 1234 {
		t.Errorf("PID = %d, want 1234", muteErr.PID)
	}
	if KindOf(err) != ProcessHasNoAudioSession {
		t.Errorf("KindOf = %v", KindOf(err))
	}
	if errors.Is(err, ErrMuteApplyFailed) {
		t.Error("no-session error must not match other kinds")
	}
}

func TestApplyMuteReleasesInReverseOrder(t *testing.T) {
	p := newFakePlatform(&fakeSession{pid: 1}, &fakeSession{pid: 2})
	m := newTestMuter(t, p)

	if err := m.ApplyMute(2, true); err != nil {
		t.Fatalf("ApplyMute: %v", err)
	}

	want := []string{
		"session 0",
		"mute control",
		"session 1",
		"enumerator",
		"manager",
		"endpoint",
		"subsystem",
	}
	if !reflect.DeepEqual(p.releaseOrder, want) {
		t.Errorf("release order = %v, want %v", p.releaseOrder, want)
	}
}

func TestApplyMuteReleaseFailuresAreLoggedOnly(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := newFakePlatform(&fakeSession{pid: 5})
	p.releaseErr = errInjected
	m := NewMuter(zap.New(core).Sugar(), p)

	if err := m.ApplyMute(5, true); err != nil {
		t.Fatalf("release failure leaked into result: %v", err)
	}

	if logs.FilterMessage("Failed to release audio resources").Len() != 1 {
		t.Errorf("expected one release failure log, got %v", logs.All())
	}
	assertNoLeaks(t, p)
}

func TestApplyMuteReleaseFailureKeepsPrimaryError(t *testing.T) {
	p := newFakePlatform(&fakeSession{pid: 5})
	p.releaseErr = errors.New("release broke")
	p.setMuteErr = errInjected
	m := newTestMuter(t, p)

	err := m.ApplyMute(5, true)
	if !errors.Is(err, ErrMuteApplyFailed) || !errors.Is(err, errInjected) {
		t.Fatalf("err = %v, want the mute failure", err)
	}
	assertNoLeaks(t, p)
}
