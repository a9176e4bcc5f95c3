package server

import (
	"errors"
	"log"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jayascript1/ai-editorial-team/internal/pipeline"
	"github.com/jayascript1/ai-editorial-team/internal/session"
	"github.com/jayascript1/ai-editorial-team/internal/stream"
)

// DebugHandler exposes internals for local troubleshooting: state dumps, a
// canned pipeline run that skips the LLM, and run cancellation.
type DebugHandler struct {
	Store      session.Store
	Registry   *stream.Registry
	Runner     *pipeline.Runner
	TestRunner *pipeline.Runner
	Logger     *log.Logger
	Started    time.Time
}

func (h *DebugHandler) Register(g *echo.Group) {
	g.GET("", h.overview)
	g.GET("/sessions", h.sessions)
	g.POST("/test-process", h.testProcess)
	g.POST("/cancel", h.cancel)
}

func (h *DebugHandler) overview(c echo.Context) error {
	count := 0
	if recs, err := h.Store.Active(); err == nil {
		count = len(recs)
	}
	return c.JSON(http.StatusOK, DebugResponse{
		Sessions:    count,
		EventQueues: h.Registry.Len(),
		Goroutines:  runtime.NumGoroutine(),
		UptimeSecs:  int64(time.Since(h.Started).Seconds()),
	})
}

func (h *DebugHandler) sessions(c echo.Context) error {
	recs, err := h.Store.Active()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, recs)
}

// testProcess runs the full pipeline with canned stage outputs, proving the
// run/stream/store plumbing without an API key.
func (h *DebugHandler) testProcess(c echo.Context) error {
	var req GenerateRequest
	_ = c.Bind(&req)
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = "a test topic"
	}

	rec, err := h.Store.EnsureSession(strings.TrimSpace(c.QueryParam("user_id")))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.TestRunner.Start(rec.UserID, topic); err != nil {
		if errors.Is(err, session.ErrAlreadyProcessing) {
			return echo.NewHTTPError(http.StatusConflict, "a pipeline is already running for this session")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.Logger.Printf("test run admitted for %s", rec.UserID)
	return c.JSON(http.StatusAccepted, GenerateResponse{UserID: rec.UserID, Topic: topic, Status: "accepted"})
}

func (h *DebugHandler) cancel(c echo.Context) error {
	id := strings.TrimSpace(c.QueryParam("user_id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	cancelled := h.Runner.Cancel(id) || h.TestRunner.Cancel(id)
	return c.JSON(http.StatusOK, CancelResponse{UserID: id, Cancelled: cancelled})
}
