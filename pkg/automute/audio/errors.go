package audio

import (
	"errors"
	"fmt"
)

// Kind classifies why ApplyMute failed.
type Kind int

const (
	// KindUnknown is reported by KindOf for errors that did not come from ApplyMute.
	KindUnknown Kind = iota
	SubsystemUnavailable
	NoDefaultEndpoint
	EndpointActivationFailed
	EnumerationFailed
	ProcessHasNoAudioSession
	MuteControlUnsupported
	MuteApplyFailed
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	SubsystemUnavailable:     "audio subsystem unavailable",
	NoDefaultEndpoint:        "no default audio endpoint",
	EndpointActivationFailed: "endpoint activation failed",
	EnumerationFailed:        "session enumeration failed",
	ProcessHasNoAudioSession: "process has no audio session",
	MuteControlUnsupported:   "mute control unsupported",
	MuteApplyFailed:          "mute apply failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrSubsystemUnavailable     = &Error{Kind: SubsystemUnavailable}
	ErrNoDefaultEndpoint        = &Error{Kind: NoDefaultEndpoint}
	ErrEndpointActivationFailed = &Error{Kind: EndpointActivationFailed}
	ErrEnumerationFailed        = &Error{Kind: EnumerationFailed}
	ErrNoSession                = &Error{Kind: ProcessHasNoAudioSession}
	ErrMuteControlUnsupported   = &Error{Kind: MuteControlUnsupported}
	ErrMuteApplyFailed          = &Error{Kind: MuteApplyFailed}
)

// Error is returned by ApplyMute for every failure.
type Error struct {
	Kind Kind
	PID  uint32
	Err  error
}

func newError(kind Kind, pid uint32, err error) *Error {
	return &Error{Kind: kind, PID: pid, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("pid %d: %s", e.PID, e.Kind)
	}
	return fmt.Sprintf("pid %d: %s: %v", e.PID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can compare against the
// Err* sentinels without caring about the PID or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNoSession reports whether err means the process simply isn't producing audio.
func IsNoSession(err error) bool {
	return KindOf(err) == ProcessHasNoAudioSession
}
