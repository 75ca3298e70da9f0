package firmware

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/stratify-tools/link/sig"
	"github.com/stratify-tools/link/transport"
)

// StartAddressBufferSize is the size of the image's first flash page, which
// a legacy bootloader requires the host to cache and blank out itself.
const StartAddressBufferSize = 256

// ChunkSize is the streaming chunk used for write_flash on the bootloader
// path.
const ChunkSize = 1024

// HardwareIDOffset is the fixed byte offset within a bootloader image at
// which its 4-byte little-endian hardware_id is stored.
const HardwareIDOffset = 0x18

// Updater drives a firmware update against a target, either through its
// bootloader or through a running OS's flash-device node.
type Updater struct {
	client *transport.Client
	cfg    Config
	phase  Phase
	// phaseSeen is false until the first setPhase call, so PhaseValidating
	// (the iota zero value) is reported as a transition on entry.
	phaseSeen bool

	cachedFirstPage []byte
}

// New creates an Updater bound to client.
func New(client *transport.Client, opts ...Option) *Updater {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Updater{client: client, cfg: cfg}
}

// Phase reports the update's current state-machine phase.
func (u *Updater) Phase() Phase { return u.phase }

// UpdateBootloader streams image onto a target that is connected and
// classified as running its bootloader. image must support seeking so its
// hardware_id header field and, on signed images, its trailing signature
// marker can be read without disturbing the sequential write.
func (u *Updater) UpdateBootloader(image io.ReadSeeker) error {
	u.setPhase(PhaseValidating, 0, 0)

	imageSize, err := image.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}

	imageHWID, err := readImageHardwareID(image)
	if err != nil {
		return err
	}

	attrs, err := u.fetchAttrs()
	if err != nil {
		return err
	}
	if imageHWID & ^uint32(1) != attrs.HardwareID & ^uint32(1) {
		u.setPhase(PhaseFailed, 0, 0)
		return fmt.Errorf("firmware: image hardware id 0x%08X does not match bootloader 0x%08X (EINVAL)",
			imageHWID, attrs.HardwareID)
	}

	marker, signed := u.checkSignature(image, imageSize)
	programSize := imageSize
	if signed {
		programSize -= sig.MarkerSize
	}

	u.setPhase(PhaseErasing, 0, 0)
	if err := u.eraseAndAwaitReady(); err != nil {
		u.setPhase(PhaseFailed, 0, 0)
		return err
	}

	if err := u.program(image, programSize, imageHWID, attrs); err != nil {
		u.eraseOnFailure()
		u.setPhase(PhaseFailed, 0, 0)
		return err
	}

	if u.cfg.Verify && !signed {
		u.setPhase(PhaseVerifying, 0, int(programSize))
		if err := u.verifyProgrammed(image, programSize, attrs.IsLegacy()); err != nil {
			u.setPhase(PhaseFailed, 0, 0)
			return err
		}
	}

	u.setPhase(PhaseCommitting, 0, 0)
	if err := u.client.VerifySignature(marker); err != nil {
		if signed {
			u.setPhase(PhaseFailed, 0, 0)
			return fmt.Errorf("firmware: signature verification rejected by target: %w (EIO)", err)
		}
		// Unsigned targets treat verify_signature as a no-op probe; any
		// error here is not fatal to the commit.
		u.logDebug("verify_signature probe failed on unsigned target", "err", err)
	}

	if !signed && attrs.IsLegacy() {
		if err := u.writeChunk(0, u.cachedFirstPage); err != nil {
			u.eraseOnFailure()
			u.setPhase(PhaseFailed, 0, 0)
			return fmt.Errorf("firmware: first-page commit failed: %w (EIO)", err)
		}
	}

	u.setPhase(PhaseDone, int(programSize), int(programSize))
	u.logInfo("bootloader update complete", "bytes", programSize, "signed", signed)
	return nil
}

func readImageHardwareID(image io.ReadSeeker) (uint32, error) {
	if _, err := image.Seek(HardwareIDOffset, io.SeekStart); err != nil {
		return 0, err
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(image, buf); err != nil {
		return 0, fmt.Errorf("firmware: reading image hardware id: %w (EINVAL)", err)
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (u *Updater) fetchAttrs() (bootloaderAttrs, error) {
	data, err := u.client.BootloaderAttrRaw(false)
	if err != nil {
		return bootloaderAttrs{}, err
	}
	return decodeBootloaderAttrs(data)
}

// checkSignature looks for a trailing signature marker on image. It leaves
// image positioned wherever sig.GetSignature stopped; program seeks back to
// the start itself.
func (u *Updater) checkSignature(image io.ReadSeeker, imageSize int64) ([64]byte, bool) {
	m, err := sig.GetSignature(image)
	if err != nil {
		return [64]byte{}, false
	}
	return m.Signature, true
}

func (u *Updater) eraseAndAwaitReady() error {
	if err := u.client.EraseFlash(); err != nil {
		return err
	}
	for attempt := 0; attempt < u.cfg.PollRetryCount; attempt++ {
		if _, err := u.client.BootloaderAttrRaw(false); err == nil {
			return nil
		}
		u.client.Flush()
		time.Sleep(u.cfg.PollInterval)
	}
	return fmt.Errorf("firmware: bootloader did not become ready after erase (EIO)")
}

func (u *Updater) program(image io.ReadSeeker, programSize int64, imageHWID uint32, attrs bootloaderAttrs) error {
	u.setPhase(PhaseProgramming, 0, int(programSize))

	if _, err := image.Seek(0, io.SeekStart); err != nil {
		return err
	}

	firstPage := make([]byte, StartAddressBufferSize)
	if _, err := io.ReadFull(image, firstPage); err != nil && err != io.ErrUnexpectedEOF {
		return err
	}

	streamPage := firstPage
	if attrs.IsLegacy() {
		cached := append([]byte(nil), firstPage...)
		if imageHWID != attrs.HardwareID {
			binary.LittleEndian.PutUint32(cached[HardwareIDOffset:HardwareIDOffset+4], attrs.HardwareID)
		}
		u.cachedFirstPage = cached

		streamPage = append([]byte(nil), firstPage...)
		for i := range streamPage {
			streamPage[i] = 0xFF
		}
	}

	var loc uint32
	written := int64(0)
	if err := u.writeChunk(loc, streamPage); err != nil {
		return err
	}
	loc += uint32(len(streamPage))
	written += int64(len(streamPage))
	u.setPhase(PhaseProgramming, int(written), int(programSize))

	buf := make([]byte, ChunkSize)
	for written < programSize {
		want := int64(len(buf))
		if remaining := programSize - written; remaining < want {
			want = remaining
		}
		n, err := io.ReadFull(image, buf[:want])
		if err != nil && err != io.ErrUnexpectedEOF {
			return err
		}
		if err := u.writeChunk(loc, buf[:n]); err != nil {
			return err
		}
		loc += uint32(n)
		written += int64(n)
		u.setPhase(PhaseProgramming, int(written), int(programSize))
	}
	return nil
}

func (u *Updater) writeChunk(loc uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return u.client.WriteFlash(loc, data)
}

func (u *Updater) verifyProgrammed(image io.ReadSeeker, programSize int64, legacy bool) error {
	if _, err := image.Seek(0, io.SeekStart); err != nil {
		return err
	}
	buf := make([]byte, ChunkSize)
	var loc uint32
	var read int64
	for read < programSize {
		want := int64(len(buf))
		if remaining := programSize - read; remaining < want {
			want = remaining
		}
		n, err := io.ReadFull(image, buf[:want])
		if err != nil && err != io.ErrUnexpectedEOF {
			return err
		}
		expected := append([]byte(nil), buf[:n]...)
		if legacy && loc == 0 {
			for i := 0; i < StartAddressBufferSize && i < len(expected); i++ {
				expected[i] = 0xFF
			}
		}
		actual, err := u.client.ReadFlash(loc, n)
		if err != nil {
			return fmt.Errorf("firmware: read-back at 0x%X: %w", loc, err)
		}
		if string(actual) != string(expected) {
			return fmt.Errorf("firmware: verify mismatch at 0x%X (EIO)", loc)
		}
		loc += uint32(n)
		read += int64(n)
		u.setPhase(PhaseVerifying, int(read), int(programSize))
	}
	return nil
}

func (u *Updater) eraseOnFailure() {
	u.logError("programming failed, erasing to leave device non-bootable")
	_ = u.client.EraseFlash()
}

func (u *Updater) logDebug(msg string, kv ...interface{}) { u.cfg.Logger.Debug(msg, kv...) }
func (u *Updater) logInfo(msg string, kv ...interface{})  { u.cfg.Logger.Info(msg, kv...) }
func (u *Updater) logError(msg string, kv ...interface{}) { u.cfg.Logger.Error(msg, kv...) }
