package appfs

import (
	"encoding/binary"
	"fmt"
	"io"
)

// NameMax is the fixed width of the name and id fields.
const NameMax = 24

// MinRamSize is the floor ram_size is clamped to when nonzero.
const MinRamSize = 4096

// HeaderSize is sizeof(AppfsFileHeader) on the wire: two NameMax fields,
// mode and version (u16 each), then eight u32 exec fields.
const HeaderSize = NameMax + NameMax + 2 + 2 + 8*4

// CreateSignature is the fixed magic placed in exec.signature by a
// synthesized data-create header so the target recognizes it.
const CreateSignature = 0x5A5A1234

// FileHeader is the fixed on-disk executable header.
type FileHeader struct {
	Name         string
	ID           string
	Mode         uint16
	VersionMajor byte
	VersionMinor byte

	Startup   uint32
	CodeStart uint32
	CodeSize  uint32
	RamStart  uint32
	RamSize   uint32
	DataSize  uint32
	OFlags    Flags
	Signature uint32
}

// Encode renders h into its fixed HeaderSize-byte wire form. Name and ID
// longer than NameMax-1 are rejected.
func (h FileHeader) Encode() ([]byte, error) {
	if len(h.Name) > NameMax-1 {
		return nil, fmt.Errorf("appfs: name %q exceeds %d bytes", h.Name, NameMax-1)
	}
	if len(h.ID) > NameMax-1 {
		return nil, fmt.Errorf("appfs: id %q exceeds %d bytes", h.ID, NameMax-1)
	}

	buf := make([]byte, HeaderSize)
	copy(buf[0:NameMax], h.Name)
	copy(buf[NameMax:2*NameMax], h.ID)
	off := 2 * NameMax
	binary.LittleEndian.PutUint16(buf[off:off+2], h.Mode)
	off += 2
	buf[off] = h.VersionMinor
	buf[off+1] = h.VersionMajor
	off += 2
	binary.LittleEndian.PutUint32(buf[off:off+4], h.Startup)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], h.CodeStart)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], h.CodeSize)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], h.RamStart)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], h.RamSize)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], h.DataSize)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(h.OFlags))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], h.Signature)

	return buf, nil
}

// DecodeHeader parses a HeaderSize-byte buffer into a FileHeader. Name and
// ID are read up to the first NUL, and never past NameMax-1 bytes.
func DecodeHeader(buf []byte) (FileHeader, error) {
	if len(buf) < HeaderSize {
		return FileHeader{}, fmt.Errorf("appfs: short header: %d bytes, want %d", len(buf), HeaderSize)
	}

	h := FileHeader{
		Name: cString(buf[0 : NameMax-1]),
		ID:   cString(buf[NameMax : 2*NameMax-1]),
	}
	off := 2 * NameMax
	h.Mode = binary.LittleEndian.Uint16(buf[off : off+2])
	off += 2
	h.VersionMinor = buf[off]
	h.VersionMajor = buf[off+1]
	off += 2
	h.Startup = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	h.CodeStart = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	h.CodeSize = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	h.RamStart = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	h.RamSize = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	h.DataSize = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	h.OFlags = Flags(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	h.Signature = binary.LittleEndian.Uint32(buf[off : off+4])

	return h, nil
}

// FileAttributesFromFile reads exactly HeaderSize bytes from position 0 of
// f. f's position is left just past the header; callers that need to
// preserve position should save/restore it themselves around this call.
func FileAttributesFromFile(f io.ReadSeeker) (FileHeader, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return FileHeader{}, err
	}
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return FileHeader{}, err
	}
	return DecodeHeader(buf)
}

// ApplyFileAttributes writes attrs to f's header, saving and restoring f's
// current position. ram_size is clamped to MinRamSize when
// nonzero; a ram_size of exactly zero, or an empty name/id, leaves the
// corresponding stored field untouched by first reading whatever header is
// already present. Because the write only ever touches the first
// HeaderSize bytes and never truncates, a file that was already larger than
// the header keeps its pre-existing size; a file smaller than the header
// grows to exactly HeaderSize.
func ApplyFileAttributes(f io.ReadWriteSeeker, attrs FileHeader) error {
	cur, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	existing, _ := FileAttributesFromFile(f)

	merged := attrs
	if merged.Name == "" {
		merged.Name = existing.Name
	}
	if merged.ID == "" {
		merged.ID = existing.ID
	}
	switch {
	case merged.RamSize == 0:
		merged.RamSize = existing.RamSize
	case merged.RamSize < MinRamSize:
		merged.RamSize = MinRamSize
	}

	buf, err := merged.Encode()
	if err != nil {
		return err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		return err
	}
	_, err = f.Seek(cur, io.SeekStart)
	return err
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
