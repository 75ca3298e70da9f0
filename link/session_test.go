package link

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stratify-tools/link/driverpath"
	"github.com/stratify-tools/link/internal/mocktransport"
	"github.com/stratify-tools/link/transport"
)

// fakeDevice models a single target that can answer either as a bootloader
// or as a running OS, and can be reconfigured mid-test to simulate a device
// reappearing at a new path with the same identity.
type fakeDevice struct {
	asBootloader bool
	hardwareID   uint32
	serial       SerialNumber
	name         string
	version      string
	arch         string
	failProbe    bool
}

func (d *fakeDevice) pipe() *mocktransport.Pipe {
	return &mocktransport.Pipe{Handler: func(op transport.Opcode, data []byte) (byte, []byte) {
		switch op {
		case transport.OpIsBootloader, transport.OpIsBootloaderLegacy:
			if d.failProbe {
				return byte(0xFF), nil
			}
			if d.asBootloader {
				return 1, nil
			}
			return 0, nil
		case transport.OpBootloaderAttr, transport.OpBootloaderAttrLegacy:
			return 0, encodeBootloaderAttrsForTest(d.version, d.hardwareID, d.serial)
		case transport.OpGetSysInfo:
			return 0, encodeSysInfoForTest(d.name, d.serial, d.hardwareID, d.version, d.arch)
		case transport.OpReset, transport.OpResetBootloader:
			return 0, nil
		default:
			return 0, nil
		}
	}}
}

func encodeSysInfoForTest(name string, serial SerialNumber, hardwareID uint32, version, arch string) []byte {
	buf := make([]byte, nameFieldSize+16+4+4+4+4)
	copy(buf[0:nameFieldSize], name)
	for i, w := range serial {
		putLE32(buf[nameFieldSize+i*4:], w)
	}
	putLE32(buf[nameFieldSize+16:], hardwareID)
	putLE32(buf[nameFieldSize+20:], 96000000)
	buf = append(buf, []byte(version)...)
	buf = append(buf, 0)
	buf = append(buf, []byte(arch)...)
	buf = append(buf, 0)
	return buf
}

func encodeBootloaderAttrsForTest(version string, hardwareID uint32, serial SerialNumber) []byte {
	buf := make([]byte, 2+4+4+16)
	putLE16(buf[0:], 0x500)
	putLE32(buf[6:], hardwareID)
	for i, w := range serial {
		putLE32(buf[10+i*4:], w)
	}
	return buf
}

func putLE16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

type staticDialer struct {
	pipe transport.Pipe
	err  error
}

func (d staticDialer) Dial(path driverpath.Path) (transport.Pipe, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.pipe, nil
}

func TestConnectClassifiesOS(t *testing.T) {
	dev := &fakeDevice{name: "target-os", version: "2.0.0", arch: "armv7m", serial: SerialNumber{1, 2, 3, 4}}
	sess := NewSession(staticDialer{pipe: dev.pipe()})
	err := sess.Connect(context.Background(), driverpath.Parse("serial@/dev/ttyUSB0"), false)
	require.NoError(t, err)
	require.Equal(t, ConnOS, sess.Kind())
	require.Equal(t, "target-os", sess.SysInfo().Name)
	require.True(t, sess.SysInfo().Valid())
}

func TestConnectClassifiesBootloader(t *testing.T) {
	dev := &fakeDevice{asBootloader: true, hardwareID: 0xCAFEBABE, serial: SerialNumber{5, 6, 7, 8}}
	sess := NewSession(staticDialer{pipe: dev.pipe()})
	err := sess.Connect(context.Background(), driverpath.Parse("serial@/dev/ttyUSB0"), false)
	require.NoError(t, err)
	require.Equal(t, ConnBootloader, sess.Kind())
	require.Equal(t, "bootloader", sess.SysInfo().Name)
	require.Equal(t, uint32(0xCAFEBABE), sess.SysInfo().HardwareID)
}

func TestConnectRejectsSecondDifferentPathWhileConnected(t *testing.T) {
	dev := &fakeDevice{name: "target-os", serial: SerialNumber{1, 1, 1, 1}}
	sess := NewSession(staticDialer{pipe: dev.pipe()})
	require.NoError(t, sess.Connect(context.Background(), driverpath.Parse("serial@/dev/ttyUSB0"), false))

	err := sess.Connect(context.Background(), driverpath.Parse("serial@/dev/ttyUSB1"), false)
	require.Error(t, err)
	var se *SessionError
	require.ErrorAs(t, err, &se)
	require.Equal(t, KindInvalidArgument, se.Kind)
}

func TestConnectNegativeProbeResultIsDeviceError(t *testing.T) {
	dev := &fakeDevice{failProbe: true}
	sess := NewSession(staticDialer{pipe: dev.pipe()})
	err := sess.Connect(context.Background(), driverpath.Parse("serial@/dev/ttyUSB0"), false)
	require.Error(t, err)
	var se *SessionError
	require.ErrorAs(t, err, &se)
	require.Equal(t, KindDevice, se.Kind)
	require.False(t, sess.IsConnected())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	dev := &fakeDevice{name: "target-os", serial: SerialNumber{1, 1, 1, 1}}
	sess := NewSession(staticDialer{pipe: dev.pipe()})
	require.NoError(t, sess.Connect(context.Background(), driverpath.Parse("serial@/dev/ttyUSB0"), false))
	require.NoError(t, sess.Disconnect())
	require.NoError(t, sess.Disconnect())
	require.False(t, sess.IsConnected())
}

func TestPingReturnsFalseWithoutStickyError(t *testing.T) {
	sess := NewSession(staticDialer{err: assertErr})
	ok, err := sess.Ping(context.Background(), driverpath.Parse("serial@/dev/ttyUSB0"), false)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, sess.Err())
}

func TestResetSuppressesTransportErrorAndDisregards(t *testing.T) {
	dev := &fakeDevice{name: "target-os", serial: SerialNumber{1, 1, 1, 1}}
	sess := NewSession(staticDialer{pipe: dev.pipe()})
	require.NoError(t, sess.Connect(context.Background(), driverpath.Parse("serial@/dev/ttyUSB0"), false))
	require.NoError(t, sess.Reset())
	require.False(t, sess.IsConnected())
	require.Equal(t, ConnNone, sess.Kind())
}

func TestReconnectSucceedsWhenSerialMatches(t *testing.T) {
	dev := &fakeDevice{name: "target-os", serial: SerialNumber{9, 9, 9, 9}}
	sess := NewSession(staticDialer{pipe: dev.pipe()}, WithReconnectDelay(time.Millisecond))
	require.NoError(t, sess.Connect(context.Background(), driverpath.Parse("serial@/dev/ttyUSB0"), false))
	require.NoError(t, sess.Disconnect())

	err := sess.Reconnect(context.Background(), 1, time.Millisecond)
	require.NoError(t, err)
	require.True(t, sess.IsConnected())
	require.Equal(t, dev.serial, sess.SysInfo().Serial)
}

var assertErr = errDial{}

type errDial struct{}

func (errDial) Error() string { return "dial failed" }
