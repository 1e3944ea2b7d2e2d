package bus

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// FileSink writes one JSON object per line, UTF-8, with the event name
// embedded as "event" (spec §6 "Persisted state layout").
type FileSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewFileSink wraps an open writer (typically an *os.File opened for
// append). The caller owns closing it.
func NewFileSink(w io.Writer) *FileSink {
	if w == nil {
		w = os.Stdout
	}
	return &FileSink{w: w}
}

func (s *FileSink) Emit(e Event) error {
	line, err := json.Marshal(flatten(e))
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(line)
	return err
}

// ConsoleSink writes one structured log line per event via zerolog,
// grounded on this codebase's logging conventions (see logging.New).
type ConsoleSink struct {
	logger zerolog.Logger
}

// NewConsoleSink builds a sink over an already-configured zerolog.Logger.
func NewConsoleSink(logger zerolog.Logger) *ConsoleSink {
	return &ConsoleSink{logger: logger}
}

func (s *ConsoleSink) Emit(e Event) error {
	evt := s.logger.Info()
	if e.Event == EventErrorRaised {
		evt = s.logger.Error()
	}
	evt = evt.Str("event", e.Event).Str("run_id", e.RunID).Int("sequence", e.Sequence).Time("ts", e.TS)
	for k, v := range e.Fields {
		evt = evt.Interface(k, v)
	}
	evt.Msg(e.Event)
	return nil
}

// flatten merges an Event's envelope fields with its payload into a single
// map, the shape the file sink persists per line.
func flatten(e Event) map[string]interface{} {
	out := make(map[string]interface{}, len(e.Fields)+4)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["event"] = e.Event
	out["run_id"] = e.RunID
	out["sequence"] = e.Sequence
	out["ts"] = e.TS
	return out
}
