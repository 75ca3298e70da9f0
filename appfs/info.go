package appfs

import (
	"fmt"
	"strings"

	"github.com/stratify-tools/link/link/remotefs"
	"github.com/stratify-tools/link/transport"
)

// Info is the read-only projection of a FileHeader returned by GetInfo.
type Info struct {
	Signature uint32
	ID        string
	Name      string
	Mode      uint16
	Version   uint16
	RamSize   uint32
	OFlags    Flags
}

// IsValid reports whether this Info came from a real appfs entry rather
// than, e.g., a directory read returning zeroed bytes.
func (i Info) IsValid() bool { return i.Signature != 0 }

// GetInfo opens path read-only, reads one header's worth of bytes, and
// validates it. The basename must not start with
// ".sys" or ".free"; the header's stored name must be a prefix of the
// basename, tolerating an orphan-rename suffix the target may append.
func GetInfo(client *transport.Client, path string) (Info, error) {
	base := baseName(path)
	if strings.HasPrefix(base, ".sys") || strings.HasPrefix(base, ".free") {
		return Info{}, fmt.Errorf("appfs: %q is not an appfs entry (ENOEXEC)", path)
	}

	file, err := remotefs.OpenFile(client, path, 0 /*O_RDONLY*/, 0)
	if err != nil {
		return Info{}, err
	}
	defer file.Close()

	hdr, err := FileAttributesFromFile(fileSeeker{file})
	if err != nil {
		return Info{}, err
	}

	if hdr.Name != "" && !strings.HasPrefix(base, hdr.Name) {
		return Info{}, fmt.Errorf("appfs: %q does not match header name %q (ENOEXEC)", path, hdr.Name)
	}

	version := uint16(hdr.VersionMajor)<<8 | uint16(hdr.VersionMinor)
	return Info{
		Signature: hdr.Signature,
		ID:        hdr.ID,
		Name:      hdr.Name,
		Mode:      hdr.Mode,
		Version:   version,
		RamSize:   hdr.RamSize,
		OFlags:    hdr.OFlags,
	}, nil
}

// fileSeeker adapts remotefs.File to io.ReadSeeker for FileAttributesFromFile.
type fileSeeker struct{ f *remotefs.File }

func (s fileSeeker) Read(p []byte) (int, error) { return s.f.Read(p) }
func (s fileSeeker) Seek(offset int64, whence int) (int64, error) {
	return s.f.Seek(offset, int32(whence))
}

// IsFlashAvailable opens /app/flash and reports whether it has any entry.
// The leading '/' is required: an older revision of this probe was missing
// it, silently checking a relative "app/flash" instead.
func IsFlashAvailable(client *transport.Client) bool {
	return dirHasEntry(client, "/app/flash")
}

// IsRamAvailable opens /app/ram and reports whether it has any entry.
func IsRamAvailable(client *transport.Client) bool {
	return dirHasEntry(client, "/app/ram")
}

func dirHasEntry(client *transport.Client, path string) bool {
	dir, err := remotefs.OpenDir(client, path)
	if err != nil {
		return false
	}
	defer dir.Close()
	entry, ok, err := dir.Read()
	if err != nil {
		return false
	}
	return ok && entry.Name != ""
}
