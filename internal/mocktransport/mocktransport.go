// Package mocktransport provides a scriptable transport.Pipe for tests
// across the link, appfs, and firmware packages, mirroring the role the
// teacher package's examples/mock_device plays for bootloader tests.
package mocktransport

import (
	"io"

	"github.com/stratify-tools/link/transport"
)

// Handler decides how a mock device responds to one opcode.
type Handler func(op transport.Opcode, data []byte) (result byte, payload []byte)

// Pipe implements transport.Pipe by dispatching each request frame to
// Handler and queuing the resulting response frame for the next Read.
type Pipe struct {
	Handler Handler
	pending []byte
	Calls   []transport.Opcode
}

func (p *Pipe) Write(b []byte) (int, error) {
	op, data, err := transport.DecodeRequestFrame(b)
	if err != nil {
		return 0, err
	}
	p.Calls = append(p.Calls, op)
	result, payload := p.Handler(op, data)
	p.pending = transport.EncodeResponseFrame(result, payload)
	return len(b), nil
}

func (p *Pipe) Read(b []byte) (int, error) {
	if p.pending == nil {
		return 0, io.EOF
	}
	n := copy(b, p.pending)
	p.pending = nil
	return n, nil
}
