package link

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stratify-tools/link/driverpath"
	"github.com/stratify-tools/link/transport"
)

// ConnectionKind is the classification a Session settles into once a pipe
// is open and the target has been probed.
type ConnectionKind int

const (
	ConnNone ConnectionKind = iota
	ConnBootloader
	ConnOS
)

func (k ConnectionKind) String() string {
	switch k {
	case ConnBootloader:
		return "bootloader"
	case ConnOS:
		return "os"
	default:
		return "none"
	}
}

type connState int

const (
	stateDisconnected connState = iota
	statePipeOpen
	stateClassified
)

// Session is a single connection to one target device, driven by one
// goroutine at a time. A process may hold multiple independent Sessions.
type Session struct {
	id     uuid.UUID
	dialer Dialer
	cfg    Config

	client *transport.Client
	state  connState
	kind   ConnectionKind

	isLegacy        bool
	path            driverpath.Path
	sysInfo         SysInfo
	bootloaderAttrs BootloaderAttrs

	progress    uint32
	progressMax uint32

	lastErr error
}

// NewSession creates a Session that will dial its pipe through dialer.
func NewSession(dialer Dialer, opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Session{
		id:     uuid.New(),
		dialer: dialer,
		cfg:    cfg,
	}
}

// ID returns this session's process-local correlation identifier, unique
// per Session. The session does not add it to its own log lines.
func (s *Session) ID() uuid.UUID { return s.id }

// IsConnected reports whether the session's pipe handle is valid: this
// holds if and only if the session is not disconnected.
func (s *Session) IsConnected() bool { return s.state != stateDisconnected }

// Kind reports the current classification.
func (s *Session) Kind() ConnectionKind { return s.kind }

// SysInfo returns the last-known system info, which survives a failed
// reconnect so the caller can still identify the device it was talking to.
func (s *Session) SysInfo() SysInfo { return s.sysInfo }

// BootloaderAttrs returns the last-known bootloader attributes.
func (s *Session) BootloaderAttrs() BootloaderAttrs { return s.bootloaderAttrs }

// Path returns the device address this session is (or was last) connected
// to.
func (s *Session) Path() driverpath.Path { return s.path }

// Progress returns the current and maximum progress counters with plain,
// unsynchronized loads. These are the only session fields designed to be
// read from another goroutine; such a reader uses ProgressSnapshot, which
// loads them atomically.
func (s *Session) Progress() (current, max uint32) { return s.progress, s.progressMax }

// ProgressSnapshot atomically loads the progress counters, safe to call
// from a goroutine other than the one driving the session.
func (s *Session) ProgressSnapshot() (current, max uint32) {
	return atomic.LoadUint32(&s.progress), atomic.LoadUint32(&s.progressMax)
}

func (s *Session) setProgress(current, max uint32) {
	atomic.StoreUint32(&s.progress, current)
	atomic.StoreUint32(&s.progressMax, max)
}

// Client exposes the underlying transport client so sibling packages
// (appfs, firmware, remotefs, link's own task/sysinfo helpers) can issue
// opcodes once the session is connected. It returns nil when disconnected.
func (s *Session) Client() *transport.Client {
	if s.state == stateDisconnected {
		return nil
	}
	return s.client
}

// Err returns the session's sticky error, if any. Every method checks this
// on entry and becomes a no-op when it is set; callers must call
// ResetError explicitly after handling it.
func (s *Session) Err() error { return s.lastErr }

// ResetError clears the sticky error slot.
func (s *Session) ResetError() { s.lastErr = nil }

func (s *Session) fail(op string, kind ErrorKind, err error) error {
	se := newSessionError(op, kind, err)
	s.lastErr = se
	s.cfg.Logger.Error(op, "kind", kind.String(), "err", err)
	return se
}

func (s *Session) guard(op string) error {
	if s.lastErr != nil {
		return s.lastErr
	}
	return nil
}

// Connect opens (or reuses) the pipe to path and classifies the connection
// as Bootloader or Os. isLegacy selects which bootloader
// probe opcode is used.
func (s *Session) Connect(ctx context.Context, path driverpath.Path, isLegacy bool) error {
	const op = "connect"
	if err := s.guard(op); err != nil {
		return err
	}

	if s.state != stateDisconnected && !s.path.IsEmpty() && !path.IsEmpty() && !s.path.Equal(path) {
		return s.fail(op, KindInvalidArgument, fmt.Errorf("already connected to %s, cannot connect to %s", s.path, path))
	}

	s.setProgress(0, 0)
	s.isLegacy = isLegacy

	if s.state == stateDisconnected {
		pipe, err := s.dialer.Dial(path)
		if err != nil {
			return s.fail(op, KindTransport, err)
		}
		s.client = transport.NewClient(pipe)
		s.state = statePipeOpen
		s.path = path
	}

	var result int8
	var err error
	if isLegacy {
		result, err = s.client.IsBootloaderLegacy()
	} else {
		result, err = s.client.IsBootloader()
	}
	if err != nil {
		s.closePipe()
		return s.fail(op, classifyTransportErr(err), err)
	}

	switch {
	case result > 0:
		raw, err := s.client.BootloaderAttrRaw(isLegacy)
		if err != nil {
			s.closePipe()
			return s.fail(op, classifyTransportErr(err), err)
		}
		attrs, err := decodeBootloaderAttrs(raw)
		if err != nil {
			s.closePipe()
			return s.fail(op, KindTransport, err)
		}
		s.bootloaderAttrs = attrs
		s.sysInfo = bootloaderSyntheticSysInfo(attrs)
		s.kind = ConnBootloader
	case result == 0:
		raw, err := s.client.GetSysInfoRaw()
		if err != nil {
			s.closePipe()
			return s.fail(op, classifyTransportErr(err), err)
		}
		info, err := decodeSysInfo(raw)
		if err != nil {
			s.closePipe()
			return s.fail(op, KindTransport, err)
		}
		s.sysInfo = info
		s.kind = ConnOS
	default:
		s.closePipe()
		return s.fail(op, KindDevice, fmt.Errorf("classify probe returned negative result %d", result))
	}

	s.state = stateClassified
	s.cfg.Logger.Info("connected", "path", path.String(), "kind", s.kind.String())
	return nil
}

func (s *Session) closePipe() {
	s.client = nil
	s.state = stateDisconnected
	s.kind = ConnNone
}

func classifyTransportErr(err error) ErrorKind {
	if transport.IsDeviceError(err) {
		return KindDevice
	}
	return KindTransport
}

// Reconnect retries up to retries rounds, trying the last-known path first
// and then each enumerated path, declaring success only when connect
// succeeds AND the resulting SysInfo.Serial matches the previously stored
// identity. On total failure the last-known SysInfo is
// restored so the caller can still report "lost device <serial>".
func (s *Session) Reconnect(ctx context.Context, retries int, delay time.Duration) error {
	const op = "reconnect"
	if err := s.guard(op); err != nil {
		return err
	}
	if delay <= 0 {
		delay = s.cfg.ReconnectDelay
	}

	wantSerial := s.sysInfo.Serial
	savedInfo := s.sysInfo
	lastKnownPath := s.path

	for round := 0; round < retries; round++ {
		candidates := []driverpath.Path{lastKnownPath}
		if paths, err := s.GetPathList(); err == nil {
			candidates = append(candidates, paths...)
		}

		for _, candidate := range candidates {
			if candidate.IsEmpty() {
				continue
			}
			s.ResetError()
			s.disconnectInternal()
			if err := s.Connect(ctx, candidate, s.isLegacy); err != nil {
				continue
			}
			if s.sysInfo.Serial.Equal(wantSerial) {
				s.cfg.Logger.Info("reconnected", "path", candidate.String())
				return nil
			}
			s.disconnectInternal()
		}

		select {
		case <-ctx.Done():
			s.sysInfo = savedInfo
			return s.fail(op, KindTransport, ctx.Err())
		case <-time.After(delay):
		}
	}

	s.sysInfo = savedInfo
	return s.fail(op, KindTransport, fmt.Errorf("lost device %s: no match after %d rounds", wantSerial.String(), retries))
}

// Ping classifies path without keeping the connection, unless keep is true.
func (s *Session) Ping(ctx context.Context, path driverpath.Path, keep bool) (bool, error) {
	const op = "ping"
	if err := s.guard(op); err != nil {
		return false, err
	}

	err := s.Connect(ctx, path, s.isLegacy)
	if err != nil {
		s.ResetError()
		return false, nil
	}
	if !keep {
		suppress(s.Disconnect)
	}
	return true, nil
}

// Disconnect closes the pipe and returns to the disconnected state. It is
// idempotent.
func (s *Session) Disconnect() error {
	if s.state == stateDisconnected {
		return nil
	}
	s.disconnectInternal()
	s.cfg.Logger.Info("disconnected")
	return nil
}

func (s *Session) disconnectInternal() {
	s.client = nil
	s.state = stateDisconnected
	s.kind = ConnNone
}

// Disregard drops the pipe handle without touching the wire, used after
// Reset/ResetBootloader where the peer is expected to vanish mid-request.
func (s *Session) Disregard() {
	s.client = nil
	s.state = stateDisconnected
	s.kind = ConnNone
}

// Reset sends the OS reset opcode. The peer is expected to disappear, so
// the resulting transport error is suppressed, then the pipe is disregarded.
func (s *Session) Reset() error {
	const op = "reset"
	if err := s.guard(op); err != nil {
		return err
	}
	if s.client != nil {
		suppress(s.client.Reset)
	}
	s.Disregard()
	return nil
}

// ResetBootloader sends the bootloader reset opcode with the same
// expect-and-suppress-one-error contract as Reset.
func (s *Session) ResetBootloader() error {
	const op = "reset_bootloader"
	if err := s.guard(op); err != nil {
		return err
	}
	if s.client != nil {
		suppress(s.client.ResetBootloader)
	}
	s.Disregard()
	return nil
}
