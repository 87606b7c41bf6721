// Package audio resolves a process to its audio session on the default
// rendering endpoint and toggles that session's mute state.
//
// The platform audio layer is reached through a chain of capabilities, each
// derived from the previous one:
//
//	Platform -> Subsystem -> Endpoint -> SessionManager -> SessionEnumerator -> SessionDescriptor -> MuteControl
//
// Every link in the chain is owned by exactly one ApplyMute call and must be
// released by it. Platform is the injection point: the OS backends live in
// platform_<os>.go, tests substitute a fake.
package audio

// Releaser is implemented by every platform capability acquired during a call.
type Releaser interface {
	Release() error
}

// Platform acquires the audio subsystem for the calling execution context.
type Platform interface {
	Acquire() (Subsystem, error)
}

// Subsystem is a scoped handle to the platform audio layer.
type Subsystem interface {
	Releaser

	// DefaultEndpoint returns the current default rendering device.
	DefaultEndpoint() (Endpoint, error)
}

// Endpoint is an audio output device.
type Endpoint interface {
	Releaser

	// SessionManager activates the session-management capability on the device.
	SessionManager() (SessionManager, error)
}

// SessionManager is scoped to one endpoint and only hands out enumerators.
type SessionManager interface {
	Releaser

	Sessions() (SessionEnumerator, error)
}

// SessionEnumerator is a finite, non-restartable view over the sessions bound
// to an endpoint at the moment it was obtained. Its order is platform-defined.
type SessionEnumerator interface {
	Releaser

	Count() (int, error)
	Session(index int) (SessionDescriptor, error)
}

// SessionDescriptor identifies one audio session.
type SessionDescriptor interface {
	Releaser

	// ProcessID returns the identifier of the process owning the session.
	ProcessID() (uint32, error)

	// MuteControl narrows the descriptor to its mute-control surface.
	// The conversion is fallible and the result must be released separately.
	MuteControl() (MuteControl, error)
}

// MuteControl exposes exactly one mutation: setting the session's mute flag.
type MuteControl interface {
	Releaser

	SetMute(mute bool) error
}
