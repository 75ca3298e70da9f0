package remotefs

import (
	"github.com/stratify-tools/link/transport"
)

// Dir is a scoped remote directory stream handle.
type Dir struct {
	client *transport.Client
	handle int32
	path   string
}

// OpenDir opens a directory stream at path.
func OpenDir(client *transport.Client, path string) (*Dir, error) {
	handle, err := client.PosixOpendir(path)
	if err != nil {
		return nil, err
	}
	return &Dir{client: client, handle: handle, path: path}, nil
}

// Path returns the path this directory was opened with.
func (d *Dir) Path() string { return d.path }

// Read returns the next entry, or ok==false at end of stream.
func (d *Dir) Read() (entry transport.DirEntry, ok bool, err error) {
	return d.client.PosixReaddir(d.handle)
}

// Tell returns the current stream position.
func (d *Dir) Tell() (int64, error) {
	return d.client.PosixTelldir(d.handle)
}

// Seek repositions the stream.
func (d *Dir) Seek(pos int64) error {
	return d.client.PosixSeekdir(d.handle, pos)
}

// Rewind resets the stream to its beginning.
func (d *Dir) Rewind() error {
	return d.client.PosixRewinddir(d.handle)
}

// Close releases the remote handle.
func (d *Dir) Close() error {
	return d.client.PosixClosedir(d.handle)
}
