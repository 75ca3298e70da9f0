package remotefs

import (
	"io"

	"github.com/stratify-tools/link/transport"
)

// Whence values for File.Seek, matching POSIX lseek semantics.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// File is a scoped remote file handle: a {fd, transport_ref} tuple.
type File struct {
	client *transport.Client
	fd     int32
	path   string
}

// OpenFile opens path on the target with the given POSIX flags and mode.
func OpenFile(client *transport.Client, path string, flags int32, mode uint32) (*File, error) {
	fd, err := client.PosixOpen(path, flags, mode)
	if err != nil {
		return nil, err
	}
	return &File{client: client, fd: fd, path: path}, nil
}

// Path returns the path this file was opened with.
func (f *File) Path() string { return f.path }

// FD returns the remote file descriptor.
func (f *File) FD() int32 { return f.fd }

// Read reads up to len(p) bytes into p, returning the number of bytes read.
// A zero-length result for a nonempty p means the remote file is at EOF, per
// PosixRead's POSIX read(2) semantics; Read reports that as io.EOF so
// callers using io.ReadFull/io.Copy don't spin.
func (f *File) Read(p []byte) (int, error) {
	data, err := f.client.PosixRead(f.fd, len(p))
	if err != nil {
		return 0, err
	}
	n := copy(p, data)
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write writes p to the file, returning the number of bytes written.
func (f *File) Write(p []byte) (int, error) {
	return f.client.PosixWrite(f.fd, p)
}

// Seek repositions the file offset, returning the new absolute offset.
func (f *File) Seek(offset int64, whence int32) (int64, error) {
	return f.client.PosixLseek(f.fd, offset, whence)
}

// Ioctl issues a target-defined ioctl on this file.
func (f *File) Ioctl(request uint32, data []byte) ([]byte, error) {
	return f.client.PosixIoctl(f.fd, request, data)
}

// Stat stats the open file.
func (f *File) Stat() (transport.StatInfo, error) {
	return f.client.PosixFstat(f.fd)
}

// Close releases the remote handle. Safe to call once; the fd is not
// reusable afterward.
func (f *File) Close() error {
	return f.client.PosixClose(f.fd)
}
