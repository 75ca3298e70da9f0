package main

import (
	"fmt"
	"os"

	"github.com/stratify-tools/link/driverpath"
	"github.com/stratify-tools/link/transport"
)

// serialDialer opens a tty device node directly. It is the reference
// implementation of link.Dialer this CLI ships; it returns an error for a
// USB path, since no platform USB stack is linked into this build.
type serialDialer struct{}

func (serialDialer) Dial(path driverpath.Path) (transport.Pipe, error) {
	switch path.Scheme {
	case driverpath.SchemeSerial:
		f, err := os.OpenFile(path.DevicePath, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path.DevicePath, err)
		}
		return f, nil
	case driverpath.SchemeUSB:
		return nil, fmt.Errorf("dial %s: usb transport requires a platform USB stack not linked into this build", path.String())
	default:
		return nil, fmt.Errorf("dial %s: unrecognized scheme", path.String())
	}
}
