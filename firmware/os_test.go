package firmware

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratify-tools/link/internal/mocktransport"
	"github.com/stratify-tools/link/sig"
	"github.com/stratify-tools/link/transport"
)

// osDevice models a running target's flash-device node: a byte region at
// [start, start+size) reachable only through PosixOpen/PosixIoctl/PosixClose
// on a single path, plus the GET_OS_INFO/IS_SIGNATURE_REQUIRED/WRITE_PAGE/
// VERIFY_SIGNATURE ioctls this package depends on.
type osDevice struct {
	path            string
	start           uint32
	region          []byte
	signatureNeeded bool
	nextFD          int32
	openFD          int32
	erasedAddrs     []uint32
	verifiedWith    [64]byte
	verifyCalled    bool
	rejectSignature bool
}

func newOSDevice(path string, start uint32, size int, signatureNeeded bool) *osDevice {
	d := &osDevice{path: path, start: start, region: make([]byte, size), signatureNeeded: signatureNeeded, nextFD: 3}
	for i := range d.region {
		d.region[i] = 0xFF
	}
	return d
}

func (d *osDevice) pipe() *mocktransport.Pipe {
	pipe := &mocktransport.Pipe{}
	pipe.Handler = func(op transport.Opcode, data []byte) (byte, []byte) {
		switch op {
		case transport.OpPosixOpen:
			d.openFD = d.nextFD
			fd := make([]byte, 4)
			binary.LittleEndian.PutUint32(fd, uint32(d.openFD))
			return 0, fd
		case transport.OpPosixClose:
			return 0, nil
		case transport.OpPosixIoctl:
			fd := int32(binary.LittleEndian.Uint32(data[0:4]))
			if fd != d.openFD {
				return 1, nil
			}
			request := binary.LittleEndian.Uint32(data[4:8])
			payload := data[8:]
			return d.ioctl(request, payload)
		default:
			return 1, nil
		}
	}
	return pipe
}

func (d *osDevice) ioctl(request uint32, payload []byte) (byte, []byte) {
	switch request {
	case ioctlGetOSInfo:
		resp := make([]byte, 8)
		binary.LittleEndian.PutUint32(resp[0:4], d.start)
		binary.LittleEndian.PutUint32(resp[4:8], uint32(len(d.region)))
		return 0, resp
	case ioctlIsSignatureRequired:
		if d.signatureNeeded {
			return 0, []byte{1}
		}
		return 0, []byte{0}
	case ioctlWritePage:
		addr := binary.LittleEndian.Uint32(payload[0:4])
		n := binary.LittleEndian.Uint32(payload[4:8])
		off := addr - d.start
		if n == 0 {
			d.erasedAddrs = append(d.erasedAddrs, addr)
			for i := off; i < off+osPageSize && int(i) < len(d.region); i++ {
				d.region[i] = 0xFF
			}
			return 0, nil
		}
		copy(d.region[off:], payload[8:8+n])
		return 0, nil
	case ioctlVerifySignature:
		d.verifyCalled = true
		if d.rejectSignature {
			return 1, nil
		}
		copy(d.verifiedWith[:], payload)
		return 0, nil
	default:
		return 1, nil
	}
}

func TestUpdateOSUnsignedTarget(t *testing.T) {
	device := newOSDevice("/dev/flash0", 0x1000, 4096, false)
	client := transport.NewClient(device.pipe())
	u := New(client)

	body := make([]byte, 1024)
	for i := range body {
		body[i] = byte(i)
	}
	image := &memBuf{data: append([]byte(nil), body...)}

	err := u.UpdateOS(device.path, image)
	require.NoError(t, err)
	require.Equal(t, PhaseDone, u.Phase())
	require.Equal(t, body, device.region[:len(body)])
	require.False(t, device.verifyCalled)
}

func TestUpdateOSSignedTargetSendsMarkerAndExcludesItFromProgramming(t *testing.T) {
	device := newOSDevice("/dev/flash0", 0x1000, 4096, true)
	client := transport.NewClient(device.pipe())
	u := New(client)

	body := make([]byte, 1024)
	for i := range body {
		body[i] = byte(i + 1)
	}
	var signature [64]byte
	signature[0] = 0x99
	image := &memBuf{data: append([]byte(nil), body...)}
	require.NoError(t, sig.Append(image, signature))

	err := u.UpdateOS(device.path, &memBuf{data: image.data})
	require.NoError(t, err)
	require.Equal(t, PhaseDone, u.Phase())
	require.Equal(t, body, device.region[:len(body)])
	require.True(t, device.verifyCalled)
	require.Equal(t, signature, device.verifiedWith)
}

func TestUpdateOSSignatureRequiredButMissingFails(t *testing.T) {
	device := newOSDevice("/dev/flash0", 0x1000, 4096, true)
	client := transport.NewClient(device.pipe())
	u := New(client)

	body := make([]byte, 512)
	image := &memBuf{data: append([]byte(nil), body...)}

	err := u.UpdateOS(device.path, image)
	require.Error(t, err)
	require.Equal(t, PhaseFailed, u.Phase())
}

func TestUpdateOSRejectsOversizedImage(t *testing.T) {
	device := newOSDevice("/dev/flash0", 0x1000, 256, false)
	client := transport.NewClient(device.pipe())
	u := New(client)

	body := make([]byte, 1024)
	image := &memBuf{data: append([]byte(nil), body...)}

	err := u.UpdateOS(device.path, image)
	require.Error(t, err)
	require.Equal(t, PhaseFailed, u.Phase())
}
