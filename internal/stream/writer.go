package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/harshasoftware/halohome-sub007/internal/metrics"
)

const (
	writeTimeout = 30 * time.Second
	keepalive    = ":\n\n"
)

// eventWriter frames server-sent events on one response.
type eventWriter struct {
	w      io.Writer
	rc     *http.ResponseController
	logger *slog.Logger

	frames int
	bytes  int64
}

func newEventWriter(w http.ResponseWriter, logger *slog.Logger) *eventWriter {
	return &eventWriter{w: w, rc: http.NewResponseController(w), logger: logger}
}

// retry sets the client's reconnect delay.
func (e *eventWriter) retry(d time.Duration) error {
	return e.frame(fmt.Sprintf("retry: %d\n\n", d.Milliseconds()), "")
}

// data sends m as a JSON "data:" event.
func (e *eventWriter) data(m message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", m.Type, err)
	}
	return e.frame("data: "+string(b)+"\n\n", m.Type)
}

// comment sends a keep-alive comment.
func (e *eventWriter) comment() error {
	return e.frame(keepalive, "keepalive")
}

// frame writes one frame under a fresh write deadline and flushes it. kind
// labels the stream message metric; frames without a kind are not counted.
func (e *eventWriter) frame(s, kind string) error {
	if err := e.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		e.logger.Debug("could not set write deadline", "error", err)
	}

	n, err := io.WriteString(e.w, s)
	e.bytes += int64(n)
	if err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	if err := e.rc.Flush(); err != nil {
		return fmt.Errorf("flushing frame: %w", err)
	}

	e.frames++
	if kind != "" {
		metrics.RecordStreamMessage(kind)
	}
	return nil
}
