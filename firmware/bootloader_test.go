package firmware

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stratify-tools/link/internal/mocktransport"
	"github.com/stratify-tools/link/sig"
	"github.com/stratify-tools/link/transport"
)

// bootloaderDevice models a bootloader target's flash as a plain byte slice
// and serves EraseFlash, WriteFlash, ReadFlash, VerifySignature, and the
// bootloader_attr probe this package depends on.
type bootloaderDevice struct {
	version    uint16
	hardwareID uint32
	flash      []byte
	erased     int
	lastSig    [64]byte
	sawVerify  bool
}

func newBootloaderDevice(version uint16, hardwareID uint32, flashSize int) *bootloaderDevice {
	d := &bootloaderDevice{version: version, hardwareID: hardwareID, flash: make([]byte, flashSize)}
	for i := range d.flash {
		d.flash[i] = 0xFF
	}
	return d
}

func (d *bootloaderDevice) pipe() *mocktransport.Pipe {
	pipe := &mocktransport.Pipe{}
	pipe.Handler = func(op transport.Opcode, data []byte) (byte, []byte) {
		switch op {
		case transport.OpBootloaderAttr:
			resp := make([]byte, 2+4+4+16)
			binary.LittleEndian.PutUint16(resp[0:2], d.version)
			binary.LittleEndian.PutUint32(resp[6:10], d.hardwareID)
			return 0, resp
		case transport.OpEraseFlash:
			d.erased++
			for i := range d.flash {
				d.flash[i] = 0xFF
			}
			return 0, nil
		case transport.OpWriteFlash:
			loc := binary.LittleEndian.Uint32(data[0:4])
			copy(d.flash[loc:], data[4:])
			return 0, nil
		case transport.OpReadFlash:
			loc := binary.LittleEndian.Uint32(data[0:4])
			n := binary.LittleEndian.Uint32(data[4:8])
			return 0, append([]byte(nil), d.flash[loc:loc+n]...)
		case transport.OpVerifySignature:
			d.sawVerify = true
			copy(d.lastSig[:], data)
			return 0, nil
		default:
			return 1, nil
		}
	}
	return pipe
}

func buildImage(hardwareID uint32, bodySize int) []byte {
	img := make([]byte, bodySize)
	binary.LittleEndian.PutUint32(img[HardwareIDOffset:HardwareIDOffset+4], hardwareID)
	for i := HardwareIDOffset + 4; i < bodySize; i++ {
		img[i] = byte(i)
	}
	return img
}

func TestUpdateBootloaderModernUnsignedFlow(t *testing.T) {
	device := newBootloaderDevice(0x500, 0xABCD, 8192)
	client := transport.NewClient(device.pipe())

	img := buildImage(0xABCD, 2048)
	u := New(client, WithVerify(true), WithPollInterval(time.Millisecond))

	err := u.UpdateBootloader(bytes.NewReader(img))
	require.NoError(t, err)
	require.Equal(t, PhaseDone, u.Phase())
	require.Equal(t, 1, device.erased)
	require.Equal(t, img, device.flash[:len(img)])
}

func TestUpdateBootloaderLegacyMasksAndCachesFirstPage(t *testing.T) {
	device := newBootloaderDevice(0x100, 0x1111, 8192)
	client := transport.NewClient(device.pipe())

	img := buildImage(0x1111, 2048)
	u := New(client, WithPollInterval(time.Millisecond))

	err := u.UpdateBootloader(bytes.NewReader(img))
	require.NoError(t, err)
	require.Equal(t, PhaseDone, u.Phase())
	// The legacy commit write restores the cached, hardware-id-patched first
	// page after streaming the rest with a blanked first page.
	require.Equal(t, img[:StartAddressBufferSize], device.flash[:StartAddressBufferSize])
	require.Equal(t, img[StartAddressBufferSize:], device.flash[StartAddressBufferSize:len(img)])
}

func TestUpdateBootloaderRejectsHardwareIDMismatch(t *testing.T) {
	device := newBootloaderDevice(0x500, 0xABCD, 8192)
	client := transport.NewClient(device.pipe())

	img := buildImage(0xFFFF, 2048)
	u := New(client, WithPollInterval(time.Millisecond))

	err := u.UpdateBootloader(bytes.NewReader(img))
	require.Error(t, err)
	require.Equal(t, PhaseFailed, u.Phase())
	require.Equal(t, 0, device.erased)
}

func TestUpdateBootloaderSignedImageSkipsVerifyAndExcludesMarker(t *testing.T) {
	device := newBootloaderDevice(0x500, 0x2222, 8192)
	client := transport.NewClient(device.pipe())

	body := buildImage(0x2222, 2048)
	var signature [64]byte
	signature[0] = 0x42
	signedFile := &memBuf{data: append([]byte(nil), body...)}
	require.NoError(t, sig.Append(signedFile, signature))

	u := New(client, WithVerify(true), WithPollInterval(time.Millisecond))
	err := u.UpdateBootloader(&memBuf{data: signedFile.data})
	require.NoError(t, err)
	require.Equal(t, PhaseDone, u.Phase())
	require.True(t, device.sawVerify)
	require.Equal(t, signature, device.lastSig)
	require.Equal(t, body, device.flash[:len(body)])
}

// memBuf is a minimal io.ReadWriteSeeker over an in-memory slice, used where
// a test needs to append a trailing marker before replaying the result as a
// fresh io.ReadSeeker.
type memBuf struct {
	data []byte
	pos  int64
}

func (m *memBuf) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memBuf) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	n := copy(m.data[m.pos:], p)
	m.pos += int64(n)
	return n, nil
}

func (m *memBuf) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		m.pos = offset
	case 1:
		m.pos += offset
	case 2:
		m.pos = int64(len(m.data)) + offset
	}
	return m.pos, nil
}
