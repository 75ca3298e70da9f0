package sig

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratify-tools/link/internal/mocktransport"
	"github.com/stratify-tools/link/transport"
)

var sharedKey = []byte("a shared secret key")

// newAuthDevice builds a mock device that plays its half of the handshake
// correctly, optionally corrupting the echoed token or the final hash to
// exercise the two failure modes.
func newAuthDevice(t *testing.T, badEcho, badFinish bool) *transport.Client {
	t.Helper()
	var tokenIn [32]byte
	pipe := &mocktransport.Pipe{}
	pipe.Handler = func(op transport.Opcode, data []byte) (byte, []byte) {
		switch op {
		case transport.OpAuthStart:
			copy(tokenIn[:16], data[:16])
			if badEcho {
				tokenIn[0] ^= 0xFF
			}
			for i := 16; i < 32; i++ {
				tokenIn[i] = byte(i)
			}
			return 0, tokenIn[:]
		case transport.OpAuthFinish:
			h := sha256.Sum256(append(append([]byte{}, tokenIn[:]...), sharedKey...))
			if badFinish {
				h[0] ^= 0xFF
			}
			return 0, h[:]
		default:
			return 1, nil
		}
	}
	return transport.NewClient(pipe)
}

func TestAuthenticateSucceeds(t *testing.T) {
	client := newAuthDevice(t, false, false)
	ok, err := Authenticate(client, sharedKey)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAuthenticateFailsOnBadEcho(t *testing.T) {
	client := newAuthDevice(t, true, false)
	ok, err := Authenticate(client, sharedKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthenticateFailsOnBadFinish(t *testing.T) {
	client := newAuthDevice(t, false, true)
	ok, err := Authenticate(client, sharedKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthenticateFailsOnWrongKey(t *testing.T) {
	client := newAuthDevice(t, false, false)
	ok, err := Authenticate(client, []byte("wrong key entirely"))
	require.NoError(t, err)
	require.False(t, ok)
}
