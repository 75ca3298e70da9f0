package appfs

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// memFile is a minimal io.ReadWriteSeeker backed by an in-memory buffer,
// used to exercise ApplyFileAttributes/FileAttributesFromFile without a
// real filesystem.
type memFile struct {
	buf []byte
	pos int64
}

func newMemFile(size int) *memFile { return &memFile{buf: make([]byte, size)} }

func (f *memFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.buf[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[f.pos:end], p)
	f.pos = end
	return len(p), nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.pos = offset
	case io.SeekCurrent:
		f.pos += offset
	case io.SeekEnd:
		f.pos = int64(len(f.buf)) + offset
	}
	return f.pos, nil
}

func TestHeaderRoundTrip(t *testing.T) {
	f := newMemFile(2000)
	attrs := FileHeader{
		Name:         "blink",
		ID:           "com.example.blink",
		Mode:         0o755,
		VersionMajor: 1,
		VersionMinor: 2,
		Startup:      0x1000,
		CodeStart:    0x1000,
		CodeSize:     4096,
		RamStart:     0x20000000,
		RamSize:      8192,
		DataSize:     512,
		OFlags:       FlagIsFlash | FlagIsStartup,
		Signature:    0xDEADBEEF,
	}

	require.NoError(t, ApplyFileAttributes(f, attrs))

	got, err := FileAttributesFromFile(f)
	require.NoError(t, err)
	require.Equal(t, attrs, got)
}

func TestHeaderRamSizeClamp(t *testing.T) {
	f := newMemFile(HeaderSize)
	attrs := FileHeader{Name: "x", RamSize: 100}
	require.NoError(t, ApplyFileAttributes(f, attrs))

	got, err := FileAttributesFromFile(f)
	require.NoError(t, err)
	require.Equal(t, uint32(MinRamSize), got.RamSize)
}

func TestHeaderEmptyNameLeavesFieldUntouched(t *testing.T) {
	f := newMemFile(HeaderSize)
	require.NoError(t, ApplyFileAttributes(f, FileHeader{Name: "original", ID: "id-1"}))

	require.NoError(t, ApplyFileAttributes(f, FileHeader{Name: "", ID: "", Mode: 0o400}))

	got, err := FileAttributesFromFile(f)
	require.NoError(t, err)
	require.Equal(t, "original", got.Name)
	require.Equal(t, "id-1", got.ID)
	require.Equal(t, uint16(0o400), got.Mode)
}

func TestApplyPreservesLargerFileSize(t *testing.T) {
	f := newMemFile(0)
	body := bytes.Repeat([]byte{0xAB}, 4096)
	_, err := f.Write(body)
	require.NoError(t, err)

	require.NoError(t, ApplyFileAttributes(f, FileHeader{Name: "x"}))
	require.Equal(t, 4096, len(f.buf))
}

func TestApplyGrowsSmallFileToHeaderSize(t *testing.T) {
	f := newMemFile(0)
	require.NoError(t, ApplyFileAttributes(f, FileHeader{Name: "x"}))
	require.Equal(t, HeaderSize, len(f.buf))
}
