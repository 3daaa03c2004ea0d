package obs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes structured event output to a writer, in either a
// human-readable text format or JSONL.
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter. A nil writer defaults to os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit writes one event in the configured format.
func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
		return
	}
	l.emitText(event)
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		JobID string         `json:"job_id,omitempty"`
		Msg   string         `json:"msg"`
		Meta  map[string]any `json:"meta,omitempty"`
		At    string         `json:"at"`
	}{
		JobID: event.JobID,
		Msg:   event.Msg,
		Meta:  event.Meta,
		At:    event.At.Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] job_id=%s", event.Msg, event.JobID)
	if len(event.Meta) > 0 {
		metaJSON, err := json.Marshal(event.Meta)
		if err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			_, _ = fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}
	_, _ = fmt.Fprint(l.writer, "\n")
}
