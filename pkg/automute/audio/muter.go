package audio

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Muter applies mute flags to process audio sessions. It keeps no state
// between calls; concurrent ApplyMute calls each build their own chain.
type Muter struct {
	logger   *zap.SugaredLogger
	platform Platform
}

// NewMuter creates a Muter backed by the given platform. A nil platform
// selects the backend for the current OS.
func NewMuter(logger *zap.SugaredLogger, platform Platform) *Muter {
	logger = logger.Named("muter")

	if platform == nil {
		platform = NewPlatform(logger)
	}

	m := &Muter{
		logger:   logger,
		platform: platform,
	}

	logger.Debug("Created muter instance")

	return m
}

// ApplyMute finds the audio session owned by pid on the default rendering
// endpoint and sets its mute flag. Failures are always *Error values; a
// process without a session yields ProcessHasNoAudioSession.
func (m *Muter) ApplyMute(pid uint32, mute bool) error {
	var stack releaseStack
	defer func() {
		if releaseErr := stack.unwind(); releaseErr != nil {
			m.logger.Warnw("Failed to release audio resources",
				"pid", pid,
				"errors", multierr.Errors(releaseErr))
		}
	}()

	subsystem, err := m.platform.Acquire()
	if err != nil {
		m.logger.Warnw("Failed to acquire audio subsystem", "error", err)
		return newError(SubsystemUnavailable, pid, err)
	}
	stack.push("subsystem", subsystem)

	endpoint, err := subsystem.DefaultEndpoint()
	if err != nil {
		m.logger.Warnw("Failed to get default audio endpoint", "error", err)
		return newError(NoDefaultEndpoint, pid, err)
	}
	stack.push("endpoint", endpoint)

	manager, err := endpoint.SessionManager()
	if err != nil {
		m.logger.Warnw("Failed to activate session manager", "error", err)
		return newError(EndpointActivationFailed, pid, err)
	}
	stack.push("session manager", manager)

	enumerator, err := manager.Sessions()
	if err != nil {
		m.logger.Warnw("Failed to get session enumerator", "error", err)
		return newError(EnumerationFailed, pid, err)
	}
	stack.push("session enumerator", enumerator)

	session, err := m.findSession(enumerator, pid)
	if err != nil {
		return err
	}
	stack.push("session", session)

	control, err := session.MuteControl()
	if err != nil {
		m.logger.Warnw("Failed to get mute control for session", "pid", pid, "error", err)
		return newError(MuteControlUnsupported, pid, err)
	}
	stack.push("mute control", control)

	if err := control.SetMute(mute); err != nil {
		m.logger.Warnw("Failed to set session mute", "pid", pid, "mute", mute, "error", err)
		return newError(MuteApplyFailed, pid, err)
	}

	m.logger.Infow("Set session mute", "pid", pid, "mute", mute)
	return nil
}

// findSession scans the enumerator and returns the first session owned by
// pid. Every other descriptor it fetched has been released by the time it
// returns; the returned one belongs to the caller.
func (m *Muter) findSession(enumerator SessionEnumerator, pid uint32) (SessionDescriptor, error) {
	count, err := enumerator.Count()
	if err != nil {
		m.logger.Warnw("Failed to get session count", "error", err)
		return nil, newError(EnumerationFailed, pid, err)
	}

	for i := 0; i < count; i++ {
		session, err := enumerator.Session(i)
		if err != nil {
			// the session list can change under us, keep scanning
			m.logger.Debugw("Skipping unreadable session", "index", i, "error", err)
			continue
		}

		sessionPID, err := session.ProcessID()
		if err == nil && sessionPID == pid {
			return session, nil
		}

		if err != nil {
			m.logger.Debugw("Skipping session without process ID", "index", i, "error", err)
		}

		if releaseErr := session.Release(); releaseErr != nil {
			m.logger.Warnw("Failed to release session", "index", i, "error", releaseErr)
		}
	}

	m.logger.Debugw("No audio session for process", "pid", pid, "sessions", count)
	return nil, newError(ProcessHasNoAudioSession, pid, nil)
}
