package main

import (
	"os"

	"github.com/stratify-tools/link/appfs"
	"github.com/stratify-tools/link/firmware"
	"github.com/stratify-tools/link/internal/logging"
)

// firmwareEventSink adapts a JSONLSink to firmware.EventSink.
type firmwareEventSink struct {
	sink *logging.JSONLSink
}

func (s firmwareEventSink) OnEvent(p firmware.Progress) {
	s.sink.Write(struct {
		Phase   string `json:"phase"`
		Current int    `json:"current"`
		Total   int    `json:"total"`
	}{p.Phase.String(), p.Current, p.Total})
}

// appfsEventSink adapts a JSONLSink to appfs.EventSink.
type appfsEventSink struct {
	sink *logging.JSONLSink
}

func (s appfsEventSink) OnEvent(e appfs.Event) {
	s.sink.Write(struct {
		Stage        string `json:"stage"`
		BytesWritten int64  `json:"bytes_written"`
		DataSize     int64  `json:"data_size"`
	}{e.Stage, e.BytesWritten, e.DataSize})
}

// openHistoryFile opens path for appending line-delimited JSON event
// history, returning a nil sink and nil closer when path is empty.
func openHistoryFile(path string) (*logging.JSONLSink, func() error, error) {
	if path == "" {
		return nil, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return logging.NewJSONLSink(f), f.Close, nil
}
