package audio

import (
	"fmt"
	"net"
	"strconv"

	"github.com/jfreymuth/pulse/proto"
	"go.uber.org/zap"
)

const (
	pulseClientName    = "automute"
	pulsePropProcessID = "application.process.id"
)

type paPlatform struct {
	logger *zap.SugaredLogger
}

// NewPlatform returns the PulseAudio backend. Sink inputs play the role of
// sessions; the default sink is the rendering endpoint.
func NewPlatform(logger *zap.SugaredLogger) Platform {
	p := &paPlatform{logger: logger.Named("pulse")}

	p.logger.Debug("Created PA platform instance")

	return p
}

// Acquire opens a fresh connection to the PulseAudio server.
func (p *paPlatform) Acquire() (Subsystem, error) {
	client, conn, err := proto.Connect("")
	if err != nil {
		return nil, fmt.Errorf("establish PulseAudio connection: %w", err)
	}

	request := proto.SetClientName{
		Props: proto.PropList{
			"application.name": proto.PropListString(pulseClientName),
		},
	}
	if err := client.Request(&request, &proto.SetClientNameReply{}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set client name: %w", err)
	}

	return &paSubsystem{client: client, conn: conn}, nil
}

type paSubsystem struct {
	client *proto.Client
	conn   net.Conn
}

func (s *paSubsystem) DefaultEndpoint() (Endpoint, error) {
	serverInfo := proto.GetServerInfoReply{}
	if err := s.client.Request(&proto.GetServerInfo{}, &serverInfo); err != nil {
		return nil, fmt.Errorf("get server info: %w", err)
	}

	if serverInfo.DefaultSinkName == "" {
		return nil, fmt.Errorf("no default sink configured")
	}

	sinkInfo := proto.GetSinkInfoReply{}
	request := proto.GetSinkInfo{
		SinkIndex: proto.Undefined,
		SinkName:  serverInfo.DefaultSinkName,
	}
	if err := s.client.Request(&request, &sinkInfo); err != nil {
		return nil, fmt.Errorf("get default sink %s: %w", serverInfo.DefaultSinkName, err)
	}

	return &paEndpoint{client: s.client, sinkIndex: sinkInfo.SinkIndex}, nil
}

func (s *paSubsystem) Release() error {
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close PulseAudio connection: %w", err)
	}
	return nil
}

type paEndpoint struct {
	client    *proto.Client
	sinkIndex uint32
}

// SessionManager has nothing to activate on PulseAudio; the manager is just
// the endpoint's view of the sink input list.
func (e *paEndpoint) SessionManager() (SessionManager, error) {
	return &paSessionManager{client: e.client, sinkIndex: e.sinkIndex}, nil
}

func (e *paEndpoint) Release() error {
	return nil
}

type paSessionManager struct {
	client    *proto.Client
	sinkIndex uint32
}

// Sessions snapshots the sink inputs currently playing to this sink.
func (m *paSessionManager) Sessions() (SessionEnumerator, error) {
	reply := proto.GetSinkInputInfoListReply{}
	if err := m.client.Request(&proto.GetSinkInputInfoList{}, &reply); err != nil {
		return nil, fmt.Errorf("get sink input list: %w", err)
	}

	return &paSessionEnumerator{client: m.client, inputs: sinkInputsOn(reply, m.sinkIndex)}, nil
}

// sinkInputsOn keeps the sink inputs playing to sinkIndex, in server order.
func sinkInputsOn(list proto.GetSinkInputInfoListReply, sinkIndex uint32) []*proto.GetSinkInputInfoReply {
	var inputs []*proto.GetSinkInputInfoReply
	for _, info := range list {
		if info != nil && info.SinkIndex == sinkIndex {
			inputs = append(inputs, info)
		}
	}
	return inputs
}

func (m *paSessionManager) Release() error {
	return nil
}

type paSessionEnumerator struct {
	client *proto.Client
	inputs []*proto.GetSinkInputInfoReply
}

func (e *paSessionEnumerator) Count() (int, error) {
	return len(e.inputs), nil
}

func (e *paSessionEnumerator) Session(index int) (SessionDescriptor, error) {
	if index < 0 || index >= len(e.inputs) {
		return nil, fmt.Errorf("sink input index %d out of range", index)
	}

	return &paSession{client: e.client, info: e.inputs[index]}, nil
}

func (e *paSessionEnumerator) Release() error {
	e.inputs = nil
	return nil
}

type paSession struct {
	client *proto.Client
	info   *proto.GetSinkInputInfoReply
}

func (s *paSession) ProcessID() (uint32, error) {
	prop, ok := s.info.Properties[pulsePropProcessID]
	if !ok {
		return 0, fmt.Errorf("sink input %d has no process id", s.info.SinkInputIndex)
	}

	pid, err := strconv.ParseUint(prop.String(), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse sink input %d process id: %w", s.info.SinkInputIndex, err)
	}

	return uint32(pid), nil
}

func (s *paSession) MuteControl() (MuteControl, error) {
	return &paMuteControl{client: s.client, sinkInputIndex: s.info.SinkInputIndex}, nil
}

func (s *paSession) Release() error {
	return nil
}

type paMuteControl struct {
	client         *proto.Client
	sinkInputIndex uint32
}

func (c *paMuteControl) SetMute(mute bool) error {
	request := proto.SetSinkInputMute{
		SinkInputIndex: c.sinkInputIndex,
		Mute:           mute,
	}
	if err := c.client.Request(&request, nil); err != nil {
		return fmt.Errorf("set sink input %d mute: %w", c.sinkInputIndex, err)
	}

	return nil
}

func (c *paMuteControl) Release() error {
	return nil
}
