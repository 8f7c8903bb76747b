package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/orbtrack/internal/metrics"
)

const writeTimeout = 30 * time.Second

// client writes server-sent events to one connection.
type client struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	ip     string
	logger *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// sendEvent writes v as a named event:
//
//	event: <name>
//	data: <json>
func (c *client) sendEvent(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		metrics.IncStreamErrors("marshal_error")
		return fmt.Errorf("json marshal: %w", err)
	}

	c.extendDeadline()
	n, err := fmt.Fprintf(c.w, "event: %s\ndata: %s\n\n", name, data)
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := c.rc.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}

	c.messagesSent++
	c.bytesSent += int64(n)
	metrics.IncStreamMessages(name)
	return nil
}

// sendKeepalive writes an SSE comment line.
func (c *client) sendKeepalive() error {
	c.extendDeadline()
	n, err := fmt.Fprint(c.w, ":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	if err := c.rc.Flush(); err != nil {
		return fmt.Errorf("keepalive flush: %w", err)
	}
	c.bytesSent += int64(n)
	return nil
}

func (c *client) extendDeadline() {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
}
