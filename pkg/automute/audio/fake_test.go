package audio

import (
	"errors"
	"fmt"
)

var errInjected = errors.New("injected failure")

type fakeSession struct {
	pid   uint32
	muted bool

	// fault injection per session
	fetchErr   error
	pidErr     error
	controlErr error
}

type mutation struct {
	index int
	pid   uint32
	mute  bool
}

// fakePlatform models one default endpoint with an ordered session list and
// counts every capability it hands out until it is released.
type fakePlatform struct {
	sessions []*fakeSession

	acquireErr  error
	endpointErr error
	managerErr  error
	sessionsErr error
	countErr    error
	setMuteErr  error
	releaseErr  error

	outstanding   int
	acquired      int
	doubleRelease []string
	releaseOrder  []string
	mutations     []mutation
}

func newFakePlatform(sessions ...*fakeSession) *fakePlatform {
	return &fakePlatform{sessions: sessions}
}

func (p *fakePlatform) track(name string) *fakeResource {
	p.outstanding++
	p.acquired++
	return &fakeResource{platform: p, name: name}
}

type fakeResource struct {
	platform *fakePlatform
	name     string
	released bool
}

func (r *fakeResource) Release() error {
	if r.released {
		r.platform.doubleRelease = append(r.platform.doubleRelease, r.name)
		return nil
	}

	r.released = true
	r.platform.outstanding--
	r.platform.releaseOrder = append(r.platform.releaseOrder, r.name)
	return r.platform.releaseErr
}

func (p *fakePlatform) Acquire() (Subsystem, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	return &fakeSubsystem{fakeResource: p.track("subsystem"), platform: p}, nil
}

type fakeSubsystem struct {
	*fakeResource
	platform *fakePlatform
}

func (s *fakeSubsystem) DefaultEndpoint() (Endpoint, error) {
	if s.platform.endpointErr != nil {
		return nil, s.platform.endpointErr
	}
	return &fakeEndpoint{fakeResource: s.platform.track("endpoint"), platform: s.platform}, nil
}

type fakeEndpoint struct {
	*fakeResource
	platform *fakePlatform
}

func (e *fakeEndpoint) SessionManager() (SessionManager, error) {
	if e.platform.managerErr != nil {
		return nil, e.platform.managerErr
	}
	return &fakeManager{fakeResource: e.platform.track("manager"), platform: e.platform}, nil
}

type fakeManager struct {
	*fakeResource
	platform *fakePlatform
}

func (m *fakeManager) Sessions() (SessionEnumerator, error) {
	if m.platform.sessionsErr != nil {
		return nil, m.platform.sessionsErr
	}
	return &fakeEnumerator{fakeResource: m.platform.track("enumerator"), platform: m.platform}, nil
}

type fakeEnumerator struct {
	*fakeResource
	platform *fakePlatform
}

func (e *fakeEnumerator) Count() (int, error) {
	if e.platform.countErr != nil {
		return 0, e.platform.countErr
	}
	return len(e.platform.sessions), nil
}

func (e *fakeEnumerator) Session(index int) (SessionDescriptor, error) {
	if index < 0 || index >= len(e.platform.sessions) {
		return nil, fmt.Errorf("index %d out of range", index)
	}

	session := e.platform.sessions[index]
	if session.fetchErr != nil {
		return nil, session.fetchErr
	}

	return &fakeDescriptor{
		fakeResource: e.platform.track(fmt.Sprintf("session %d", index)),
		platform:     e.platform,
		index:        index,
		session:      session,
	}, nil
}

type fakeDescriptor struct {
	*fakeResource
	platform *fakePlatform
	index    int
	session  *fakeSession
}

func (d *fakeDescriptor) ProcessID() (uint32, error) {
	if d.session.pidErr != nil {
		return 0, d.session.pidErr
	}
	return d.session.pid, nil
}

func (d *fakeDescriptor) MuteControl() (MuteControl, error) {
	if d.session.controlErr != nil {
		return nil, d.session.controlErr
	}
	return &fakeMuteControl{
		fakeResource: d.platform.track("mute control"),
		platform:     d.platform,
		index:        d.index,
		session:      d.session,
	}, nil
}

type fakeMuteControl struct {
	*fakeResource
	platform *fakePlatform
	index    int
	session  *fakeSession
}

func (c *fakeMuteControl) SetMute(mute bool) error {
	c.platform.mutations = append(c.platform.mutations, mutation{index: c.index, pid: c.session.pid, mute: mute})
	if c.platform.setMuteErr != nil {
		return c.platform.setMuteErr
	}
	c.session.muted = mute
	return nil
}
