package link

import (
	"time"

	"github.com/stratify-tools/link/driverpath"
	"github.com/stratify-tools/link/transport"
)

// Dialer opens the physical byte pipe addressed by path. This package
// never touches USB or serial hardware directly; a Dialer is the caller's
// bridge to whichever transport actually owns the wire.
type Dialer interface {
	Dial(path driverpath.Path) (transport.Pipe, error)
}

// Enumerator lists candidate device paths for discovery. Also an external
// collaborator; a real implementation walks /dev or a USB registry.
type Enumerator interface {
	Enumerate() ([]string, error)
}

// Config holds Session configuration set via functional options.
type Config struct {
	Logger            Logger
	ProgressCallback  ProgressCallback
	Enumerator        Enumerator
	ReconnectDelay    time.Duration
	DiscoveryParallel int
}

func defaultConfig() Config {
	return Config{
		Logger:            noopLogger{},
		ReconnectDelay:    500 * time.Millisecond,
		DiscoveryParallel: 4,
	}
}

// Option configures a Session at construction time.
type Option func(*Config)

// WithLogger attaches a Logger for diagnostic output.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithProgressCallback stores cb in Config.ProgressCallback. Session itself
// does not call it.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(c *Config) { c.ProgressCallback = cb }
}

// WithEnumerator attaches the device enumerator used by GetPathList and
// GetInfoList.
func WithEnumerator(e Enumerator) Option {
	return func(c *Config) { c.Enumerator = e }
}

// WithReconnectDelay overrides the sleep between reconnect rounds.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.ReconnectDelay = d
		}
	}
}

// WithDiscoveryParallelism bounds how many transient connections GetInfoList
// opens concurrently while probing enumerated devices.
func WithDiscoveryParallelism(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.DiscoveryParallel = n
		}
	}
}
