package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Pipe is the opaque byte pipe a Client speaks over: a USB endpoint pair, a
// serial tty, or a mock in tests. Its lifecycle (open/close of the physical
// device) is the caller's responsibility; Client only reads and writes it.
type Pipe interface {
	io.ReadWriter
}

// Client implements the length-prefixed RPC described in this package's
// doc comment. It carries a negotiated protocol Version, reset to zero
// whenever a new Pipe is attached so the peer can renegotiate.
type Client struct {
	pipe    Pipe
	Version uint16

	// responseBufferSize is the size of the buffer used to read a response.
	// Large enough for any single frame this protocol defines.
	responseBufferSize int
}

// NewClient wraps pipe in a Client ready to make calls.
func NewClient(pipe Pipe) *Client {
	return &Client{pipe: pipe, responseBufferSize: 4096}
}

// Attach replaces the underlying pipe and resets the negotiated version to
// 0 so the new peer can renegotiate it.
func (c *Client) Attach(pipe Pipe) {
	c.pipe = pipe
	c.Version = 0
}

// Call sends op with data and returns the response payload. It retries up
// to MaxRetries times when the transport reports a Protocol error; a
// well-formed response carrying a nonzero result is a Device error and is
// never retried.
func (c *Client) Call(op Opcode, data []byte) ([]byte, error) {
	if c.pipe == nil {
		return nil, &ProtocolError{Op: op, Err: fmt.Errorf("no pipe attached")}
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		payload, err := c.callOnce(op, data)
		if err == nil {
			return payload, nil
		}
		if !IsProtocolError(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) callOnce(op Opcode, data []byte) ([]byte, error) {
	parsed, err := c.exchangeOnce(op, data)
	if err != nil {
		return nil, err
	}
	if parsed.resultByte != 0 {
		return nil, &DeviceError{Op: op, Errno: int(parsed.resultByte)}
	}
	return parsed.data, nil
}

func (c *Client) exchangeOnce(op Opcode, data []byte) (*parsedFrame, error) {
	frame := buildFrame(op, data)
	if _, err := c.pipe.Write(frame); err != nil {
		return nil, &ProtocolError{Op: op, Err: fmt.Errorf("write: %w", err)}
	}

	raw := make([]byte, c.responseBufferSize)
	n, err := c.pipe.Read(raw)
	if err != nil {
		return nil, &ProtocolError{Op: op, Err: fmt.Errorf("read: %w", err)}
	}

	parsed, err := parseFrame(raw[:n])
	if err != nil {
		return nil, &ProtocolError{Op: op, Err: err}
	}
	return parsed, nil
}

// CallRaw is like Call but returns the raw signed result byte instead of
// translating a nonzero result into a DeviceError. It exists for the
// handful of opcodes (the bootloader classify probes) whose result carries
// a three-way outcome rather than a plain success/errno flag: positive
// means one thing, zero another, negative a third. Protocol errors are
// still retried up to MaxRetries times.
func (c *Client) CallRaw(op Opcode, data []byte) (int8, []byte, error) {
	if c.pipe == nil {
		return 0, nil, &ProtocolError{Op: op, Err: fmt.Errorf("no pipe attached")}
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		parsed, err := c.exchangeOnce(op, data)
		if err == nil {
			return int8(parsed.resultByte), parsed.data, nil
		}
		if !IsProtocolError(err) {
			return 0, nil, err
		}
		lastErr = err
	}
	return 0, nil, lastErr
}

// Flush drains and discards a single pending read, used after a failed
// poll to discard stale bytes.
func (c *Client) Flush() {
	if c.pipe == nil {
		return
	}
	buf := make([]byte, c.responseBufferSize)
	_, _ = c.pipe.Read(buf)
}

// --- Bootloader probe & flash opcodes ---

// IsBootloader sends the modern bootloader probe opcode. The result is
// three-way: positive means the target is running its bootloader, zero
// means it is running the OS, negative means the probe itself failed.
func (c *Client) IsBootloader() (int8, error) {
	result, _, err := c.CallRaw(OpIsBootloader, nil)
	return result, err
}

// IsBootloaderLegacy sends the legacy bootloader probe opcode, used when
// the caller has selected is_legacy at connect time.
func (c *Client) IsBootloaderLegacy() (int8, error) {
	result, _, err := c.CallRaw(OpIsBootloaderLegacy, nil)
	return result, err
}

// BootloaderAttrRaw fetches the raw bootloader attribute payload for
// decoding by the link package (kept opaque here to avoid a dependency
// cycle between transport and link).
func (c *Client) BootloaderAttrRaw(legacy bool) ([]byte, error) {
	op := OpBootloaderAttr
	if legacy {
		op = OpBootloaderAttrLegacy
	}
	return c.Call(op, nil)
}

// GetSysInfoRaw fetches the raw system-info payload.
func (c *Client) GetSysInfoRaw() ([]byte, error) {
	return c.Call(OpGetSysInfo, nil)
}

// GetPublicKeyRaw fetches the raw public key payload.
func (c *Client) GetPublicKeyRaw() ([]byte, error) {
	return c.Call(OpGetPublicKey, nil)
}

// ReadFlash issues a read of n bytes at byte offset loc.
func (c *Client) ReadFlash(loc uint32, n int) ([]byte, error) {
	req := make([]byte, 8)
	binary.LittleEndian.PutUint32(req[0:4], loc)
	binary.LittleEndian.PutUint32(req[4:8], uint32(n))
	return c.Call(OpReadFlash, req)
}

// WriteFlash writes buf at byte offset loc.
func (c *Client) WriteFlash(loc uint32, buf []byte) error {
	req := make([]byte, 4+len(buf))
	binary.LittleEndian.PutUint32(req[0:4], loc)
	copy(req[4:], buf)
	_, err := c.Call(OpWriteFlash, req)
	return err
}

// EraseFlash requests a full-image erase.
func (c *Client) EraseFlash() error {
	_, err := c.Call(OpEraseFlash, nil)
	return err
}

// VerifySignature posts a 64-byte signature for target-side verification.
func (c *Client) VerifySignature(sig [64]byte) error {
	_, err := c.Call(OpVerifySignature, sig[:])
	return err
}

// ResetBootloader sends the bootloader reset opcode. The peer is expected
// to vanish mid-response; callers must suppress the resulting Protocol
// error.
func (c *Client) ResetBootloader() error {
	_, err := c.Call(OpResetBootloader, nil)
	return err
}

// Reset sends the OS reset opcode with the same vanish-mid-response
// contract as ResetBootloader.
func (c *Client) Reset() error {
	_, err := c.Call(OpReset, nil)
	return err
}

// AuthStart posts the caller's 32-byte outgoing token and returns the
// device's 32-byte response token.
func (c *Client) AuthStart(tokenOut [32]byte) ([32]byte, error) {
	data, err := c.Call(OpAuthStart, tokenOut[:])
	if err != nil {
		return [32]byte{}, err
	}
	var tokenIn [32]byte
	if len(data) < 32 {
		return tokenIn, fmt.Errorf("auth: short start response (%d bytes)", len(data))
	}
	copy(tokenIn[:], data)
	return tokenIn, nil
}

// AuthFinish posts the caller's 32-byte hash and returns the device's
// 32-byte hash.
func (c *Client) AuthFinish(hashOut [32]byte) ([32]byte, error) {
	data, err := c.Call(OpAuthFinish, hashOut[:])
	if err != nil {
		return [32]byte{}, err
	}
	var hashIn [32]byte
	if len(data) < 32 {
		return hashIn, fmt.Errorf("auth: short finish response (%d bytes)", len(data))
	}
	copy(hashIn[:], data)
	return hashIn, nil
}

// FlushRemote requests the target flush any buffered writes for the last opened
// file descriptor.
func (c *Client) FlushRemote() error {
	_, err := c.Call(OpFlush, nil)
	return err
}

// Exec requests the target start the given path as a new process.
func (c *Client) Exec(path string) error {
	_, err := c.Call(OpExec, []byte(path))
	return err
}

// Mkfs requests the target reformat the filesystem containing path.
func (c *Client) Mkfs(path string) error {
	_, err := c.Call(OpMkfs, []byte(path))
	return err
}

// GetTime returns the target's current Unix time.
func (c *Client) GetTime() (int64, error) {
	data, err := c.Call(OpGetTime, nil)
	if err != nil {
		return 0, err
	}
	if len(data) < 8 {
		return 0, &ProtocolError{Op: OpGetTime, Err: fmt.Errorf("short get_time response")}
	}
	return int64(binary.LittleEndian.Uint64(data)), nil
}

// SetTime sets the target's current Unix time.
func (c *Client) SetTime(unixTime int64) error {
	req := make([]byte, 8)
	binary.LittleEndian.PutUint64(req, uint64(unixTime))
	_, err := c.Call(OpSetTime, req)
	return err
}

// GetPathList drains the target's device-enumeration iterator into an
// ordered list of newline-separated driver path strings.
func (c *Client) GetPathList() ([]string, error) {
	data, err := c.Call(OpGetPathList, nil)
	if err != nil {
		return nil, err
	}
	return splitPathList(data), nil
}

func splitPathList(data []byte) []string {
	var out []string
	start := 0
	for i, b := range data {
		if b == 0 || b == '\n' {
			if i > start {
				out = append(out, string(data[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(data) {
		out = append(out, string(data[start:]))
	}
	return out
}
