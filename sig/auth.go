package sig

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"

	"github.com/stratify-tools/link/transport"
)

// Authenticate proves possession of key to the device on the other end of
// client via a four-message challenge-response handshake, without ever
// putting key on the wire. Any mismatch, including the caller's own
// half-echo check on the device's response token, returns (false, nil): a
// failed authentication is not a transport error.
func Authenticate(client *transport.Client, key []byte) (bool, error) {
	var r0 [16]byte
	if _, err := rand.Read(r0[:]); err != nil {
		return false, err
	}

	var tokenOut [32]byte
	copy(tokenOut[:16], r0[:])

	tokenIn, err := client.AuthStart(tokenOut)
	if err != nil {
		return false, err
	}
	if subtle.ConstantTimeCompare(tokenIn[:16], r0[:]) != 1 {
		return false, nil
	}

	hOut := sha256.Sum256(append(append([]byte{}, key...), tokenIn[:]...))

	hIn, err := client.AuthFinish(hOut)
	if err != nil {
		return false, err
	}

	expected := sha256.Sum256(append(append([]byte{}, tokenIn[:]...), key...))
	return subtle.ConstantTimeCompare(hIn[:], expected[:]) == 1, nil
}
