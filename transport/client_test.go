package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// failThenSucceedPipe simulates a transport that returns N garbage
// (non-frame) responses before returning a well-formed success frame,
// exercising Client.Call's protocol-error retry path.
type failThenSucceedPipe struct {
	failures int
	calls    int
}

func (p *failThenSucceedPipe) Write(b []byte) (int, error) { return len(b), nil }

func (p *failThenSucceedPipe) Read(b []byte) (int, error) {
	p.calls++
	if p.calls <= p.failures {
		// Not a valid frame: wrong SOP byte.
		b[0] = 0xFF
		return 1, nil
	}
	frame := buildFrame(0, nil)
	// Reuse buildFrame's shape for a zero-result success response.
	copy(b, frame)
	return len(frame), nil
}

func TestClientRetrySucceedsUnderThreshold(t *testing.T) {
	for n := 0; n < MaxRetries; n++ {
		pipe := &failThenSucceedPipe{failures: n}
		c := NewClient(pipe)
		_, err := c.Call(OpGetSysInfo, nil)
		require.NoError(t, err, "n=%d failures should succeed within %d retries", n, MaxRetries)
	}
}

func TestClientRetryFailsAtThreshold(t *testing.T) {
	pipe := &failThenSucceedPipe{failures: MaxRetries}
	c := NewClient(pipe)
	_, err := c.Call(OpGetSysInfo, nil)
	require.Error(t, err)
	require.True(t, IsProtocolError(err))
}

// deviceErrorPipe always responds with a well-formed frame carrying a
// nonzero result, which must never be retried.
type deviceErrorPipe struct{ calls int }

func (p *deviceErrorPipe) Write(b []byte) (int, error) { return len(b), nil }
func (p *deviceErrorPipe) Read(b []byte) (int, error) {
	p.calls++
	frame := buildFrame(OpGetSysInfo, nil)
	frame[1] = 5 // nonzero result byte -> device errno 5
	copy(b, frame)
	return len(frame), nil
}

func TestClientDeviceErrorNotRetried(t *testing.T) {
	pipe := &deviceErrorPipe{}
	c := NewClient(pipe)
	_, err := c.Call(OpGetSysInfo, nil)
	require.Error(t, err)
	require.True(t, IsDeviceError(err))
	require.Equal(t, 1, pipe.calls)

	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	require.Equal(t, 5, devErr.Errno)
}

func TestAttachResetsVersion(t *testing.T) {
	c := NewClient(&failThenSucceedPipe{})
	c.Version = 7
	c.Attach(&failThenSucceedPipe{})
	require.Equal(t, uint16(0), c.Version)
}
