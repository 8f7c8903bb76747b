// Package stream pushes group and roster updates to clients as Server-Sent
// Events. Clients connect to GET /api/v1/stream and receive:
//
//	event: groups    every entry and the roster version, once on connect
//	event: group     one entry after each state change, refresh or failure
//	event: snapshot  positions of the whole roster every interval
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval. A reconnecting
// client gets a fresh groups event, so missed group events are recovered.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/star/orbtrack/internal/groups"
	"github.com/star/orbtrack/internal/httputil"
	"github.com/star/orbtrack/internal/metrics"
	"github.com/star/orbtrack/internal/propagation"
)

const (
	eventBuffer = 64

	defaultMaxPerIP  = 10
	defaultKeepalive = 30 * time.Second
	defaultInterval  = 5 * time.Second
)

// Source is the slice of the group pipeline a stream reads.
// *groups.Pipeline implements it.
type Source interface {
	Subscribe(buffer int) (<-chan groups.Event, func())
	Entries() []groups.Entry
	Roster() ([]*propagation.Object, uint64)
}

// Config holds streaming settings. Zero values take defaults.
type Config struct {
	MaxConcurrentPerIP int           // default 10
	KeepaliveInterval  time.Duration // default 30s
	SnapshotInterval   time.Duration // default 5s; clients may ask for 1-60s
	TrustProxy         bool
}

// Handler serves event streams.
type Handler struct {
	source  Source
	pool    *propagation.WorkerPool
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandler creates a stream handler.
func NewHandler(src Source, pool *propagation.WorkerPool, cfg Config, logger *slog.Logger) *Handler {
	if cfg.MaxConcurrentPerIP <= 0 {
		cfg.MaxConcurrentPerIP = defaultMaxPerIP
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = defaultKeepalive
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = defaultInterval
	}
	return &Handler{
		source:  src,
		pool:    pool,
		config:  cfg,
		limiter: newStreamLimiter(cfg.MaxConcurrentPerIP),
		logger:  logger,
		now:     time.Now,
	}
}

// HandleStream serves GET /api/v1/stream?interval=5.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	interval := h.config.SnapshotInterval
	if v := r.URL.Query().Get("interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			writeError(w, http.StatusBadRequest, "invalid interval parameter, must be 1-60")
			return
		}
		interval = time.Duration(n) * time.Second
	}

	ip := httputil.ClientKey(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.StreamOpened()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"interval_seconds", interval.Seconds(),
	)

	c := &client{
		w:      w,
		rc:     http.NewResponseController(w),
		ip:     ip,
		logger: h.logger,
	}

	defer func() {
		h.limiter.release(ip)
		metrics.StreamClosed()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
			"messages", c.messagesSent,
			"bytes", c.bytesSent,
		)
	}()

	// Subscribe before the first groups event so no change falls between them.
	events, unsubscribe := h.source.Subscribe(eventBuffer)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := c.rc.Flush(); err != nil {
		h.logger.Warn("streaming not supported", "remote_ip", ip, "error", err)
		return
	}
	// Long-lived: the server's WriteTimeout must not end the stream.
	if err := c.rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	// Jittered retry spreads reconnects after a server restart.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))

	_, version := h.source.Roster()
	if err := c.sendEvent("groups", groupsMessage{Groups: h.source.Entries(), Version: version}); err != nil {
		h.sendFailed(ip, err)
		return
	}
	if err := c.sendEvent("snapshot", h.snapshot(r, h.now())); err != nil {
		h.sendFailed(ip, err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				h.logger.Info("group pipeline closed, ending stream", "remote_ip", ip)
				return
			}
			if err := c.sendEvent("group", ev); err != nil {
				h.sendFailed(ip, err)
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-ticker.C:
			if err := c.sendEvent("snapshot", h.snapshot(r, h.now())); err != nil {
				h.sendFailed(ip, err)
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				h.sendFailed(ip, err)
				return
			}
		}
	}
}

func (h *Handler) sendFailed(ip string, err error) {
	metrics.IncStreamErrors("send_error")
	h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
}

// snapshot predicts the roster at t.
func (h *Handler) snapshot(r *http.Request, t time.Time) snapshotMessage {
	roster, version := h.source.Roster()
	preds, failures := h.pool.Snapshot(r.Context(), roster, t)

	msg := snapshotMessage{
		Time:     t.UTC(),
		Version:  version,
		Objects:  make([]objectPosition, 0, len(preds)),
		Failures: failures,
	}
	for _, p := range preds {
		msg.Objects = append(msg.Objects, objectPosition{
			Index:         p.Index,
			CatalogNumber: p.Object.CatalogNumber(),
			Name:          p.Object.Name(),
			Lat:           p.State.Lat,
			Lon:           p.State.Lon,
			Alt:           p.State.Alt,
		})
	}
	return msg
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Event payloads.

type groupsMessage struct {
	Groups  []groups.Entry `json:"groups"`
	Version uint64         `json:"version"`
}

type snapshotMessage struct {
	Time     time.Time        `json:"time"`
	Version  uint64           `json:"version"`
	Objects  []objectPosition `json:"objects"`
	Failures int              `json:"failures"`
}

type objectPosition struct {
	Index         int     `json:"index"`
	CatalogNumber int     `json:"norad_id"`
	Name          string  `json:"name"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	Alt           float64 `json:"alt"`
}
