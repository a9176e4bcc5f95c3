package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jayascript1/ai-editorial-team/internal/session"
	"github.com/jayascript1/ai-editorial-team/internal/session/session_models"
	"github.com/jayascript1/ai-editorial-team/internal/stream"
)

// streamEvents streams pipeline progress via Server-Sent Events. Updates
// arrive in publish order; heartbeats keep the connection alive while the
// pipeline is between stages. The stream ends on a terminal event, on client
// disconnect, on session eviction, or after the idle timeout.
func (h *PipelineHandler) streamEvents(c echo.Context) error {
	id := h.resolveUserID(c)
	if id == "" {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	rec, err := h.Store.GetSession(id)
	if err != nil {
		if session.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ctx := c.Request().Context()
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	if h.Telemetry != nil {
		h.Telemetry.StreamConnections.Inc()
		defer h.Telemetry.StreamConnections.Dec()
	}

	sub := h.Registry.Subscribe(id)

	heartbeat := h.Cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = time.Second
	}

	send := func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	// Initial snapshot so late subscribers see the current state immediately.
	// A session already in a terminal state gets a terminal snapshot and the
	// stream closes; re-consuming a finished run never hangs.
	if err := send("update", snapshotEvent(rec)); err != nil {
		return nil
	}
	if !rec.IsProcessing {
		return nil
	}

	lastEvent := time.Now()
	for {
		ev, ok, err := sub.Next(ctx, heartbeat)
		if err != nil {
			// Client went away or the reaper removed the session.
			return nil
		}
		if !ok {
			if h.Cfg.StreamIdleTimeout > 0 && time.Since(lastEvent) > h.Cfg.StreamIdleTimeout {
				h.Logger.Printf("closing idle stream for %s", id)
				return nil
			}
			// Heartbeats carry a fresh store snapshot so the stream observes
			// terminal state even when the terminal event was consumed by
			// another subscriber or never published.
			rec, err := h.Store.GetSession(id)
			if err != nil {
				return nil
			}
			snap := snapshotEvent(rec)
			if err := send("heartbeat", snap); err != nil {
				return nil
			}
			if !rec.IsProcessing {
				return nil
			}
			continue
		}

		lastEvent = time.Now()
		if err := send("update", ev); err != nil {
			return nil
		}
		if ev.Kind == stream.KindComplete || ev.Kind == stream.KindError {
			return nil
		}
	}
}

// snapshotEvent converts a session record into a stream event, deriving the
// terminal kind from the record itself.
func snapshotEvent(rec session_models.Record) stream.Event {
	kind := stream.KindProgress
	if !rec.IsProcessing {
		if rec.Error != "" {
			kind = stream.KindError
		} else if rec.FinalResult != "" {
			kind = stream.KindComplete
		}
	}
	return stream.Event{
		Kind:         kind,
		CurrentStep:  rec.CurrentStep,
		CurrentStage: rec.CurrentStage,
		Note:         rec.Note,
		IsProcessing: rec.IsProcessing,
		AgentOutputs: rec.AgentOutputs,
		FinalResult:  rec.FinalResult,
		Error:        rec.Error,
		At:           time.Now(),
	}
}
