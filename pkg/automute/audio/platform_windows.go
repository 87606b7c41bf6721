package audio

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	wca "github.com/moutend/go-wca/pkg/wca"
	"go.uber.org/zap"
)

const (
	// event context passed along with our mute changes, lets other clients
	// tell them apart from user-initiated ones
	automuteEventContextGUID = "{5b0c7a61-9a3e-4b52-8d0c-2f6e3c1a9d47}"

	// CoInitializeEx returns S_FALSE when COM is already initialized on the thread
	comAlreadyInitialized = 1
)

type wcaPlatform struct {
	logger   *zap.SugaredLogger
	eventCtx *ole.GUID
}

// NewPlatform returns the WASAPI backend.
func NewPlatform(logger *zap.SugaredLogger) Platform {
	p := &wcaPlatform{
		logger:   logger.Named("wca"),
		eventCtx: ole.NewGUID(automuteEventContextGUID),
	}

	p.logger.Debug("Created WCA platform instance")

	return p
}

// Acquire initializes COM for the calling goroutine's OS thread. The thread
// stays locked until the subsystem is released.
func (p *wcaPlatform) Acquire() (Subsystem, error) {
	runtime.LockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		var oleErr *ole.OleError
		if errors.As(err, &oleErr) && oleErr.Code() == comAlreadyInitialized {
			p.logger.Debug("CoInitializeEx called redundantly")
		} else {
			runtime.UnlockOSThread()
			return nil, fmt.Errorf("initialize COM: %w", err)
		}
	}

	s := &wcaSubsystem{platform: p}

	if err := wca.CoCreateInstance(
		wca.CLSID_MMDeviceEnumerator,
		0,
		wca.CLSCTX_ALL,
		wca.IID_IMMDeviceEnumerator,
		&s.deviceEnumerator,
	); err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("create device enumerator: %w", err)
	}

	return s, nil
}

type wcaSubsystem struct {
	platform         *wcaPlatform
	deviceEnumerator *wca.IMMDeviceEnumerator
}

func (s *wcaSubsystem) DefaultEndpoint() (Endpoint, error) {
	var device *wca.IMMDevice
	if err := s.deviceEnumerator.GetDefaultAudioEndpoint(wca.ERender, wca.EMultimedia, &device); err != nil {
		return nil, fmt.Errorf("get default render endpoint: %w", err)
	}

	return &wcaEndpoint{device: device, eventCtx: s.platform.eventCtx}, nil
}

func (s *wcaSubsystem) Release() error {
	s.deviceEnumerator.Release()
	ole.CoUninitialize()
	runtime.UnlockOSThread()
	return nil
}

type wcaEndpoint struct {
	device   *wca.IMMDevice
	eventCtx *ole.GUID
}

func (e *wcaEndpoint) SessionManager() (SessionManager, error) {
	var manager *wca.IAudioSessionManager2
	if err := e.device.Activate(wca.IID_IAudioSessionManager2, wca.CLSCTX_ALL, nil, &manager); err != nil {
		return nil, fmt.Errorf("activate audio session manager: %w", err)
	}

	return &wcaSessionManager{manager: manager, eventCtx: e.eventCtx}, nil
}

func (e *wcaEndpoint) Release() error {
	e.device.Release()
	return nil
}

type wcaSessionManager struct {
	manager  *wca.IAudioSessionManager2
	eventCtx *ole.GUID
}

func (m *wcaSessionManager) Sessions() (SessionEnumerator, error) {
	var enumerator *wca.IAudioSessionEnumerator
	if err := m.manager.GetSessionEnumerator(&enumerator); err != nil {
		return nil, fmt.Errorf("get session enumerator: %w", err)
	}

	return &wcaSessionEnumerator{enumerator: enumerator, eventCtx: m.eventCtx}, nil
}

func (m *wcaSessionManager) Release() error {
	m.manager.Release()
	return nil
}

type wcaSessionEnumerator struct {
	enumerator *wca.IAudioSessionEnumerator
	eventCtx   *ole.GUID
}

func (e *wcaSessionEnumerator) Count() (int, error) {
	var count int
	if err := e.enumerator.GetCount(&count); err != nil {
		return 0, fmt.Errorf("get session count: %w", err)
	}

	return count, nil
}

// Session fetches the control at index and narrows it to IAudioSessionControl2,
// which is the interface that knows its owning process.
func (e *wcaSessionEnumerator) Session(index int) (SessionDescriptor, error) {
	var control *wca.IAudioSessionControl
	if err := e.enumerator.GetSession(index, &control); err != nil {
		return nil, fmt.Errorf("get session %d: %w", index, err)
	}
	defer control.Release()

	dispatch, err := control.QueryInterface(wca.IID_IAudioSessionControl2)
	if err != nil {
		return nil, fmt.Errorf("query session %d for IAudioSessionControl2: %w", index, err)
	}

	return &wcaSession{
		control:  (*wca.IAudioSessionControl2)(unsafe.Pointer(dispatch)),
		eventCtx: e.eventCtx,
	}, nil
}

func (e *wcaSessionEnumerator) Release() error {
	e.enumerator.Release()
	return nil
}

type wcaSession struct {
	control  *wca.IAudioSessionControl2
	eventCtx *ole.GUID
}

// ProcessID fails for the system sounds session (AUDCLNT_S_NO_SINGLE_PROCESS),
// which is never a match for a real process anyway.
func (s *wcaSession) ProcessID() (uint32, error) {
	var pid uint32
	if err := s.control.GetProcessId(&pid); err != nil {
		return 0, fmt.Errorf("get session process id: %w", err)
	}

	return pid, nil
}

func (s *wcaSession) MuteControl() (MuteControl, error) {
	dispatch, err := s.control.QueryInterface(wca.IID_ISimpleAudioVolume)
	if err != nil {
		return nil, fmt.Errorf("query session for ISimpleAudioVolume: %w", err)
	}

	return &wcaMuteControl{
		volume:   (*wca.ISimpleAudioVolume)(unsafe.Pointer(dispatch)),
		eventCtx: s.eventCtx,
	}, nil
}

func (s *wcaSession) Release() error {
	s.control.Release()
	return nil
}

type wcaMuteControl struct {
	volume   *wca.ISimpleAudioVolume
	eventCtx *ole.GUID
}

func (c *wcaMuteControl) SetMute(mute bool) error {
	if err := c.volume.SetMute(mute, c.eventCtx); err != nil {
		return fmt.Errorf("set mute: %w", err)
	}

	return nil
}

func (c *wcaMuteControl) Release() error {
	c.volume.Release()
	return nil
}
