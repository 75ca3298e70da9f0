// Package transport implements the length-prefixed remote-procedure
// protocol used to talk to a target device over an opaque byte pipe (USB or
// serial tty). It does not implement the byte pipe itself — callers supply
// any io.ReadWriter.
//
// # Frame format
//
//	Request:  [SOP][OPCODE][LEN_L][LEN_H][DATA...][CHECKSUM_L][CHECKSUM_H][EOP]
//	Response: [SOP][RESULT ][LEN_L][LEN_H][DATA...][CHECKSUM_L][CHECKSUM_H][EOP]
//
// RESULT is zero on success; a nonzero RESULT is a target errno (a Device
// error, not retried). A response that fails to parse as a well-formed frame
// at all (bad SOP/EOP, checksum mismatch, short read, or a pipe read/write
// failure) is a Protocol error and is retried up to 3 times by Client.Call.
//
// # Retry semantics
//
// Every opcode is attempted up to 3 times when the transport itself reports
// a protocol-level error (malformed frame, checksum mismatch, timeout).
// Device errors (a well-formed response carrying a nonzero result) are
// never retried and are surfaced immediately, preserving the target errno.
package transport
