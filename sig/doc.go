// Package sig implements the trailing signature marker format that turns a
// plain appfs image into a signed one, and the challenge-response
// authentication handshake used to prove possession of a shared key without
// ever sending it over the wire.
//
// # Signing a file
//
//	sig, err := sig.Sign(f, mySigner)
//
// # Verifying a device
//
//	ok, err := sig.Authenticate(client, sharedKey)
package sig
