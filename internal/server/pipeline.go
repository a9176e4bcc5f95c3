package server

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jayascript1/ai-editorial-team/config"
	"github.com/jayascript1/ai-editorial-team/internal/agent/telemetry"
	"github.com/jayascript1/ai-editorial-team/internal/pipeline"
	"github.com/jayascript1/ai-editorial-team/internal/session"
	"github.com/jayascript1/ai-editorial-team/internal/stream"
)

// uidCookie identifies the browser session; a user_id query parameter
// overrides it so non-browser clients can address a session directly.
const uidCookie = "uid"

// PipelineHandler serves content generation, status and the progress stream.
type PipelineHandler struct {
	Store     session.Store
	Runner    *pipeline.Runner
	Registry  *stream.Registry
	Telemetry *telemetry.Telemetry
	Logger    *log.Logger
	Cfg       config.ServerConfig
}

func (h *PipelineHandler) Register(g *echo.Group) {
	g.POST("/generate", h.generate)
	g.GET("/status", h.status)
	g.GET("/stream", h.streamEvents)
	g.GET("/health", h.health)
}

// generate admits a pipeline run for the caller's session and returns
// immediately; progress is observed via /api/status and /api/stream.
func (h *PipelineHandler) generate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}

	rec, err := h.Store.EnsureSession(h.resolveUserID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.setUserCookie(c, rec.UserID)

	if err := h.Runner.Start(rec.UserID, topic); err != nil {
		if errors.Is(err, session.ErrAlreadyProcessing) {
			return echo.NewHTTPError(http.StatusConflict, "a pipeline is already running for this session")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusAccepted, GenerateResponse{UserID: rec.UserID, Topic: topic, Status: "accepted"})
}

// status returns the caller's session snapshot.
func (h *PipelineHandler) status(c echo.Context) error {
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
	return c.JSON(http.StatusOK, rec)
}

func (h *PipelineHandler) health(c echo.Context) error {
	count := 0
	if recs, err := h.Store.Active(); err == nil {
		count = len(recs)
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Sessions: count})
}

func (h *PipelineHandler) resolveUserID(c echo.Context) string {
	if id := strings.TrimSpace(c.QueryParam("user_id")); id != "" {
		return id
	}
	if ck, err := c.Cookie(uidCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	return ""
}

func (h *PipelineHandler) setUserCookie(c echo.Context, id string) {
	c.SetCookie(&http.Cookie{
		Name:     uidCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
