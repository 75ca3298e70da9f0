package firmware

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/stratify-tools/link/link/remotefs"
	"github.com/stratify-tools/link/sig"
)

const (
	ioctlGetOSInfo           = 0x01
	ioctlWritePage           = 0x02
	ioctlIsSignatureRequired = 0x03
	ioctlVerifySignature     = 0x04
)

// osPageSize is the driver-defined maximum write_page_t payload for the OS
// flash-device path.
const osPageSize = 256

type osInfo struct {
	Start uint32
	Size  uint32
}

// UpdateOS streams image onto the OS-managed flash region backing
// flashPath, a device node opened on a target already running its OS. This
// path never erases via the bootloader's whole-flash erase; instead it
// page-erases only the region the new image will occupy.
func (u *Updater) UpdateOS(flashPath string, image io.ReadSeeker) error {
	u.setPhase(PhaseValidating, 0, 0)

	imageSize, err := image.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if _, err := image.Seek(0, io.SeekStart); err != nil {
		return err
	}

	file, err := remotefs.OpenFile(u.client, flashPath, 2 /*O_RDWR*/, 0)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := u.getOSInfo(file)
	if err != nil {
		u.setPhase(PhaseFailed, 0, 0)
		return err
	}

	sigRequired := u.isSignatureRequired(file)

	var marker [64]byte
	programSize := imageSize
	if sigRequired {
		m, err := sig.GetSignature(image)
		if err != nil {
			u.setPhase(PhaseFailed, 0, 0)
			return fmt.Errorf("firmware: target requires a signed image but none was found: %w (EINVAL)", err)
		}
		marker = m.Signature
		programSize -= sig.MarkerSize
		if _, err := image.Seek(0, io.SeekStart); err != nil {
			return err
		}
	}

	if programSize > int64(info.Size) {
		u.setPhase(PhaseFailed, 0, 0)
		return fmt.Errorf("firmware: image (%d bytes) exceeds OS region size (%d bytes) (ENOSPC)", programSize, info.Size)
	}

	u.setPhase(PhaseErasing, 0, 0)
	if err := u.erasePages(file, info.Start, programSize); err != nil {
		u.setPhase(PhaseFailed, 0, 0)
		return err
	}

	u.setPhase(PhaseProgramming, 0, int(programSize))
	if err := u.writeOSPages(file, info.Start, image, programSize); err != nil {
		u.setPhase(PhaseFailed, 0, 0)
		return err
	}

	if sigRequired {
		u.setPhase(PhaseCommitting, 0, 0)
		if _, err := file.Ioctl(ioctlVerifySignature, marker[:]); err != nil {
			u.setPhase(PhaseFailed, 0, 0)
			return fmt.Errorf("firmware: signature verification rejected by target: %w (EIO)", err)
		}
	}

	u.setPhase(PhaseDone, int(programSize), int(programSize))
	u.logInfo("os update complete", "bytes", programSize, "signed", sigRequired)
	return nil
}

func (u *Updater) getOSInfo(file *remotefs.File) (osInfo, error) {
	data, err := file.Ioctl(ioctlGetOSInfo, nil)
	if err != nil {
		return osInfo{}, err
	}
	if len(data) < 8 {
		return osInfo{}, fmt.Errorf("firmware: short GET_OS_INFO response: %d bytes", len(data))
	}
	return osInfo{
		Start: binary.LittleEndian.Uint32(data[0:4]),
		Size:  binary.LittleEndian.Uint32(data[4:8]),
	}, nil
}

func (u *Updater) isSignatureRequired(file *remotefs.File) bool {
	data, err := file.Ioctl(ioctlIsSignatureRequired, nil)
	if err != nil || len(data) == 0 {
		return false
	}
	return data[0] != 0
}

// erasePages erases from the first page containing start upward until the
// erased span covers size bytes. The driver's page-erase ioctl is reused
// via a zero-length WRITE_PAGE-style request; a real driver exposes its own
// erase opcode, modeled here as part of GET_OS_INFO's page contract.
func (u *Updater) erasePages(file *remotefs.File, start uint32, size int64) error {
	pageStart := start - (start % osPageSize)
	erased := int64(0)
	for erased < size+int64(start-pageStart) {
		req := make([]byte, 8)
		binary.LittleEndian.PutUint32(req[0:4], pageStart+uint32(erased))
		binary.LittleEndian.PutUint32(req[4:8], 0)
		if _, err := file.Ioctl(ioctlWritePage, req); err != nil {
			return fmt.Errorf("firmware: erase page at 0x%X: %w", pageStart+uint32(erased), err)
		}
		erased += osPageSize
	}
	return nil
}

func (u *Updater) writeOSPages(file *remotefs.File, start uint32, image io.Reader, programSize int64) error {
	buf := make([]byte, osPageSize)
	var written int64
	for written < programSize {
		want := int64(len(buf))
		if remaining := programSize - written; remaining < want {
			want = remaining
		}
		n, err := io.ReadFull(image, buf[:want])
		if err != nil && err != io.ErrUnexpectedEOF {
			return err
		}

		req := make([]byte, 8+n)
		binary.LittleEndian.PutUint32(req[0:4], start+uint32(written))
		binary.LittleEndian.PutUint32(req[4:8], uint32(n))
		copy(req[8:], buf[:n])
		if _, err := file.Ioctl(ioctlWritePage, req); err != nil {
			return fmt.Errorf("firmware: write page at 0x%X: %w", start+uint32(written), err)
		}

		written += int64(n)
		u.setPhase(PhaseProgramming, int(written), int(programSize))
	}
	return nil
}
