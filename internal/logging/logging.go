// Package logging adapts github.com/rs/zerolog to the small Logger
// interface every constructor in this module accepts (link.Logger,
// firmware.Logger). Library packages never import zerolog directly; only
// the CLI wires this adapter in.
package logging

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Logger adapts a zerolog.Logger to the Debug/Info/Error(msg string, kv
// ...interface{}) shape shared by link.Logger and firmware.Logger.
type Logger struct {
	log zerolog.Logger
}

// New builds a Logger writing to w. When pretty is true, output is rendered
// through zerolog.ConsoleWriter for interactive terminals; otherwise each
// line is a single JSON object suitable for redirection into a file or log
// aggregator.
func New(w io.Writer, level zerolog.Level, pretty bool) *Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return &Logger{log: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// NewDefault builds a Logger writing pretty console output to stderr at Info
// level, the CLI's default when no verbosity flags are given.
func NewDefault() *Logger {
	return New(os.Stderr, zerolog.InfoLevel, true)
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.event(l.log.Debug(), msg, kv) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.event(l.log.Info(), msg, kv) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.event(l.log.Error(), msg, kv) }

// event applies kv as alternating key/value pairs onto e before logging msg.
// A trailing unpaired key is logged under "extra" rather than dropped.
func (l *Logger) event(e *zerolog.Event, msg string, kv []interface{}) {
	i := 0
	for ; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = "arg"
		}
		e = e.Interface(key, kv[i+1])
	}
	if i < len(kv) {
		e = e.Interface("extra", kv[i])
	}
	e.Msg(msg)
}

// JSONLSink persists one JSON object per line to w, serializing concurrent
// writers with a mutex. It backs the install/update event history described
// in firmware.EventSink and appfs.EventSink: the CLI wraps it in a small
// per-package adapter so those packages never import this one.
type JSONLSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONLSink wraps w for line-delimited JSON event logging.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w}
}

// Write encodes event as one JSON line.
func (s *JSONLSink) Write(event interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.NewEncoder(s.w).Encode(event)
}
