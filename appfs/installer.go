package appfs

import (
	"errors"
	"fmt"
	"io"

	"github.com/stratify-tools/link/link/remotefs"
	"github.com/stratify-tools/link/transport"
)

// ErrNoSpace is returned by Append when called again after the stream has
// already received its full declared size (ENOSPC).
var ErrNoSpace = errors.New("appfs: append past declared size (ENOSPC)")

// PageSize is the fixed page granularity of the /app/.install stream.
const PageSize = 256

// ioctlWritePage is the per-request ioctl code used to append one page of
// data to the pending install/create stream.
const ioctlWritePage = 0x01

// ioctlSignatureRequired probes whether the target requires a trailing
// signature on installed executables. Older targets lack this opcode; a
// failure here is suppressed.
const ioctlSignatureRequired = 0x02

// ioctlVerifySignature posts the 64-byte signature extracted from an
// image's trailing marker for target-side verification.
const ioctlVerifySignature = 0x03

// requestKind distinguishes a data create from an executable install.
type requestKind int

const (
	requestCreate requestKind = iota
	requestInstall
)

// Construct describes a new appfs entry.
type Construct struct {
	// Mount defaults to "/app" when empty, matching the original
	// implementation's Appfs::Construct default.
	Mount      string
	Name       string
	Size       int64
	Executable bool
	Overwrite  bool

	// EventSink, if set, receives one event per install lifecycle stage
	// ("opened", "appending", "verifying", "done"), independent of the
	// higher-frequency ProgressFunc passed to Append.
	EventSink EventSink
}

// Event is one appfs install/create lifecycle transition.
type Event struct {
	Stage        string
	BytesWritten int64
	DataSize     int64
}

// EventSink receives Installer lifecycle events, letting a caller persist an
// install history (e.g. as JSONL) independent of Append's ProgressFunc.
type EventSink interface {
	OnEvent(Event)
}

// Installer is a page-aligned streaming builder that writes one appfs
// entry into /app/.install.
type Installer struct {
	file *remotefs.File

	request      requestKind
	pageBuffer   [PageSize]byte
	bytesWritten int64
	dataSize     int64
	loc          uint32

	signaturePresent bool
	progress         ProgressFunc
	sink             EventSink
}

func (inst *Installer) emit(stage string) {
	if inst.sink == nil {
		return
	}
	inst.sink.OnEvent(Event{Stage: stage, BytesWritten: inst.bytesWritten, DataSize: inst.dataSize})
}

// ProgressFunc is invoked after each page ioctl with (bytesWritten, dataSize);
// a final call with (0, 0) is the terminal sentinel. It
// may return abort=true to stop the append loop early.
type ProgressFunc func(current, total int64) (abort bool)

// NewInstaller opens /app/.install and prepares it for either a data create
// or an executable install, per Construct.
func NewInstaller(client *transport.Client, c Construct) (*Installer, error) {
	mount := c.Mount
	if mount == "" {
		mount = "/app"
	}

	targetPath := fmt.Sprintf("%s/flash/%s", mount, c.Name)
	if c.Overwrite {
		suppressErr(client.PosixUnlink(targetPath))
	}

	file, err := remotefs.OpenFile(client, "/app/.install", 1 /*O_WRONLY*/, 0)
	if err != nil {
		return nil, err
	}

	inst := &Installer{file: file, sink: c.EventSink}
	inst.emit("opened")

	if !c.Executable {
		if c.Size <= 0 {
			return nil, fmt.Errorf("appfs: data create requires size > 0")
		}
		hdr := FileHeader{
			Name:      baseName(c.Name),
			Mode:      0o444,
			CodeSize:  uint32(c.Size) + HeaderSize,
			Signature: CreateSignature,
		}
		buf, err := hdr.Encode()
		if err != nil {
			return nil, err
		}
		copy(inst.pageBuffer[:HeaderSize], buf)

		inst.request = requestCreate
		inst.bytesWritten = HeaderSize
		inst.dataSize = c.Size + HeaderSize
	} else {
		inst.request = requestInstall
		inst.bytesWritten = 0
		inst.dataSize = 0
	}

	return inst, nil
}

// IsAppendReady reports whether more data remains to be appended, mirroring
// the original Appfs::append's is_append_ready() predicate.
func (inst *Installer) IsAppendReady() bool {
	return inst.bytesWritten < inst.dataSize || (inst.request == requestInstall && inst.dataSize == 0)
}

// Append streams source in PageSize chunks.
// signatureSize, when nonzero, is subtracted from the source's total size
// on the first append of an install to determine data_size, matching the
// "data_size = file_size - marker_size" rule when a trailing signature is
// present on the image being installed.
func (inst *Installer) Append(source io.Reader, sourceSize int64, signatureSize int64, progress ProgressFunc) error {
	inst.progress = progress

	if inst.request == requestInstall && inst.dataSize == 0 {
		inst.dataSize = sourceSize - signatureSize
		inst.signaturePresent = signatureSize > 0
	} else if inst.bytesWritten >= inst.dataSize {
		return ErrNoSpace
	}
	inst.emit("appending")

	for inst.bytesWritten < inst.dataSize {
		offsetInPage := inst.bytesWritten % PageSize
		remaining := inst.dataSize - inst.bytesWritten
		want := int64(PageSize) - offsetInPage
		if remaining < want {
			want = remaining
		}

		n, err := io.ReadFull(source, inst.pageBuffer[offsetInPage:int64(offsetInPage)+want])
		if err != nil && err != io.ErrUnexpectedEOF {
			return err
		}
		inst.bytesWritten += int64(n)

		atPageBoundary := (inst.bytesWritten%PageSize == 0) || inst.bytesWritten == inst.dataSize
		if !atPageBoundary {
			continue
		}

		nbyte := offsetInPage + int64(n)
		if err := inst.writePage(inst.pageBuffer[:nbyte]); err != nil {
			return err
		}
		inst.loc += uint32(nbyte)

		if inst.progress != nil {
			if abort := inst.progress(inst.bytesWritten, inst.dataSize); abort {
				return nil
			}
		}
	}

	if inst.progress != nil {
		inst.progress(0, 0)
	}
	return nil
}

// VerifyInstalledSignature posts sig to the target for an install whose
// image carried a trailing signature marker.
func (inst *Installer) VerifyInstalledSignature(sig [64]byte) error {
	if inst.request != requestInstall || !inst.signaturePresent {
		return nil
	}
	inst.emit("verifying")
	_, err := inst.file.Ioctl(ioctlVerifySignature, sig[:])
	return err
}

func (inst *Installer) writePage(data []byte) error {
	if inst.bytesWritten > inst.dataSize {
		return ErrNoSpace
	}
	req := make([]byte, 8+len(data))
	putUint32(req[0:4], inst.loc)
	putUint32(req[4:8], uint32(len(data)))
	copy(req[8:], data)
	_, err := inst.file.Ioctl(ioctlWritePage, req)
	return err
}

// SignatureRequired probes whether the target requires a trailing signature
// on installed executables, suppressing failure on targets that lack the
// opcode.
func (inst *Installer) SignatureRequired() bool {
	data, err := inst.file.Ioctl(ioctlSignatureRequired, nil)
	if err != nil || len(data) == 0 {
		return false
	}
	return data[0] != 0
}

// Close releases the /app/.install handle.
func (inst *Installer) Close() error {
	inst.emit("done")
	return inst.file.Close()
}

func baseName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[i+1:]
		}
	}
	return name
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func suppressErr(err error) { _ = err }
