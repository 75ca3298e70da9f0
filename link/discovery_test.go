package link

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratify-tools/link/driverpath"
	"github.com/stratify-tools/link/transport"
)

type staticEnumerator []string

func (e staticEnumerator) Enumerate() ([]string, error) { return []string(e), nil }

// multiDialer routes each dial to the device registered for that path's raw
// address, so GetInfoList's per-path transient probes can each reach a
// distinct fake target.
type multiDialer map[string]*fakeDevice

func (m multiDialer) Dial(path driverpath.Path) (transport.Pipe, error) {
	dev, ok := m[path.String()]
	if !ok {
		return nil, errDial{}
	}
	return dev.pipe(), nil
}

func TestGetInfoListSkipsUnreachableDevices(t *testing.T) {
	good := &fakeDevice{name: "alpha", serial: SerialNumber{1, 0, 0, 0}}
	dialer := multiDialer{
		"serial@/dev/ttyUSB0": good,
	}
	enum := staticEnumerator{"serial@/dev/ttyUSB0", "serial@/dev/ttyUSB1"}

	sess := NewSession(dialer, WithEnumerator(enum))
	entries, err := sess.GetInfoList(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "alpha", entries[0].SysInfo.Name)
}

func TestGetPathListUsesEnumeratorWhenSet(t *testing.T) {
	enum := staticEnumerator{"serial@/dev/ttyUSB0", "usb/0403/6001/0/SN1"}
	sess := NewSession(multiDialer{}, WithEnumerator(enum))
	paths, err := sess.GetPathList()
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.Equal(t, driverpath.SchemeSerial, paths[0].Scheme)
	require.Equal(t, driverpath.SchemeUSB, paths[1].Scheme)
}
