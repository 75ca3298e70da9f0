package transport

import (
	"encoding/binary"
	"fmt"
)

// StatInfo mirrors the fields of the target's struct stat that remote file
// and directory operations need.
type StatInfo struct {
	Mode uint32
	Size int64
	UID  uint32
	GID  uint32
}

func decodeStatInfo(data []byte) (StatInfo, error) {
	if len(data) < 20 {
		return StatInfo{}, fmt.Errorf("short stat response: %d bytes", len(data))
	}
	return StatInfo{
		Mode: binary.LittleEndian.Uint32(data[0:4]),
		Size: int64(binary.LittleEndian.Uint64(data[4:12])),
		UID:  binary.LittleEndian.Uint32(data[12:16]),
		GID:  binary.LittleEndian.Uint32(data[16:20]),
	}, nil
}

// PosixOpen opens path on the target with the given POSIX open flags and
// mode bits, returning a file descriptor.
func (c *Client) PosixOpen(path string, flags int32, mode uint32) (int32, error) {
	req := make([]byte, 8+len(path)+1)
	binary.LittleEndian.PutUint32(req[0:4], uint32(flags))
	binary.LittleEndian.PutUint32(req[4:8], mode)
	copy(req[8:], path)
	data, err := c.Call(OpPosixOpen, req)
	if err != nil {
		return -1, err
	}
	return decodeFD(data)
}

// PosixRead reads up to n bytes from fd.
func (c *Client) PosixRead(fd int32, n int) ([]byte, error) {
	req := make([]byte, 8)
	binary.LittleEndian.PutUint32(req[0:4], uint32(fd))
	binary.LittleEndian.PutUint32(req[4:8], uint32(n))
	return c.Call(OpPosixRead, req)
}

// PosixWrite writes buf to fd, returning the number of bytes written.
func (c *Client) PosixWrite(fd int32, buf []byte) (int, error) {
	req := make([]byte, 4+len(buf))
	binary.LittleEndian.PutUint32(req[0:4], uint32(fd))
	copy(req[4:], buf)
	data, err := c.Call(OpPosixWrite, req)
	if err != nil {
		return 0, err
	}
	if len(data) < 4 {
		return 0, fmt.Errorf("short write response")
	}
	return int(binary.LittleEndian.Uint32(data)), nil
}

// PosixLseek repositions fd's file offset, returning the new absolute
// offset.
func (c *Client) PosixLseek(fd int32, offset int64, whence int32) (int64, error) {
	req := make([]byte, 16)
	binary.LittleEndian.PutUint32(req[0:4], uint32(fd))
	binary.LittleEndian.PutUint64(req[4:12], uint64(offset))
	binary.LittleEndian.PutUint32(req[12:16], uint32(whence))
	data, err := c.Call(OpPosixLseek, req)
	if err != nil {
		return 0, err
	}
	if len(data) < 8 {
		return 0, fmt.Errorf("short lseek response")
	}
	return int64(binary.LittleEndian.Uint64(data)), nil
}

// PosixIoctl issues an ioctl on fd, sending request-specific data and
// returning any response payload.
func (c *Client) PosixIoctl(fd int32, request uint32, data []byte) ([]byte, error) {
	req := make([]byte, 8+len(data))
	binary.LittleEndian.PutUint32(req[0:4], uint32(fd))
	binary.LittleEndian.PutUint32(req[4:8], request)
	copy(req[8:], data)
	return c.Call(OpPosixIoctl, req)
}

// PosixClose closes fd.
func (c *Client) PosixClose(fd int32) error {
	req := make([]byte, 4)
	binary.LittleEndian.PutUint32(req, uint32(fd))
	_, err := c.Call(OpPosixClose, req)
	return err
}

// PosixStat stats path.
func (c *Client) PosixStat(path string) (StatInfo, error) {
	data, err := c.Call(OpPosixStat, []byte(path))
	if err != nil {
		return StatInfo{}, err
	}
	return decodeStatInfo(data)
}

// PosixFstat stats an open fd.
func (c *Client) PosixFstat(fd int32) (StatInfo, error) {
	req := make([]byte, 4)
	binary.LittleEndian.PutUint32(req, uint32(fd))
	data, err := c.Call(OpPosixFstat, req)
	if err != nil {
		return StatInfo{}, err
	}
	return decodeStatInfo(data)
}

// PosixMkdir creates a single directory level with the given permission
// bits.
func (c *Client) PosixMkdir(path string, mode uint32) error {
	req := make([]byte, 4+len(path))
	binary.LittleEndian.PutUint32(req[0:4], mode)
	copy(req[4:], path)
	_, err := c.Call(OpPosixMkdir, req)
	return err
}

// PosixRmdir removes an empty directory.
func (c *Client) PosixRmdir(path string) error {
	_, err := c.Call(OpPosixRmdir, []byte(path))
	return err
}

// PosixUnlink removes a file.
func (c *Client) PosixUnlink(path string) error {
	_, err := c.Call(OpPosixUnlink, []byte(path))
	return err
}

// PosixRename renames oldPath to newPath.
func (c *Client) PosixRename(oldPath, newPath string) error {
	req := append([]byte(oldPath), 0)
	req = append(req, []byte(newPath)...)
	_, err := c.Call(OpPosixRename, req)
	return err
}

// PosixOpendir opens a directory stream, returning a directory handle.
func (c *Client) PosixOpendir(path string) (int32, error) {
	data, err := c.Call(OpPosixOpendir, []byte(path))
	if err != nil {
		return -1, err
	}
	return decodeFD(data)
}

// DirEntry is one entry returned by PosixReaddir.
type DirEntry struct {
	Name  string
	IsDir bool
}

// PosixReaddir reads the next directory entry, or (DirEntry{}, false, nil)
// at end of stream.
func (c *Client) PosixReaddir(dirHandle int32) (DirEntry, bool, error) {
	req := make([]byte, 4)
	binary.LittleEndian.PutUint32(req, uint32(dirHandle))
	data, err := c.Call(OpPosixReaddir, req)
	if err != nil {
		if IsDeviceError(err) {
			return DirEntry{}, false, nil
		}
		return DirEntry{}, false, err
	}
	if len(data) < 1 {
		return DirEntry{}, false, nil
	}
	isDir := data[0] != 0
	return DirEntry{Name: string(data[1:]), IsDir: isDir}, true, nil
}

// PosixClosedir closes a directory stream.
func (c *Client) PosixClosedir(dirHandle int32) error {
	req := make([]byte, 4)
	binary.LittleEndian.PutUint32(req, uint32(dirHandle))
	_, err := c.Call(OpPosixClosedir, req)
	return err
}

// PosixTelldir returns the current stream position.
func (c *Client) PosixTelldir(dirHandle int32) (int64, error) {
	req := make([]byte, 4)
	binary.LittleEndian.PutUint32(req, uint32(dirHandle))
	data, err := c.Call(OpPosixTelldir, req)
	if err != nil {
		return 0, err
	}
	if len(data) < 8 {
		return 0, fmt.Errorf("short telldir response")
	}
	return int64(binary.LittleEndian.Uint64(data)), nil
}

// PosixSeekdir repositions a directory stream.
func (c *Client) PosixSeekdir(dirHandle int32, pos int64) error {
	req := make([]byte, 12)
	binary.LittleEndian.PutUint32(req[0:4], uint32(dirHandle))
	binary.LittleEndian.PutUint64(req[4:12], uint64(pos))
	_, err := c.Call(OpPosixSeekdir, req)
	return err
}

// PosixRewinddir resets a directory stream to its beginning.
func (c *Client) PosixRewinddir(dirHandle int32) error {
	req := make([]byte, 4)
	binary.LittleEndian.PutUint32(req, uint32(dirHandle))
	_, err := c.Call(OpPosixRewinddir, req)
	return err
}

func decodeFD(data []byte) (int32, error) {
	if len(data) < 4 {
		return -1, fmt.Errorf("short fd response")
	}
	return int32(binary.LittleEndian.Uint32(data)), nil
}
