package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/jayascript1/ai-editorial-team/config"
	agentcore "github.com/jayascript1/ai-editorial-team/internal/agent/core"
	agenttele "github.com/jayascript1/ai-editorial-team/internal/agent/telemetry"
	"github.com/jayascript1/ai-editorial-team/internal/pipeline"
	"github.com/jayascript1/ai-editorial-team/internal/session"
	"github.com/jayascript1/ai-editorial-team/internal/stream"
)

// Run wires the full service and blocks serving HTTP.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}

	origins := cfg.Server.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	var tel *agenttele.Telemetry
	if cfg.Telemetry.Enabled {
		tel = agenttele.New(cfg.Telemetry.Namespace)
		e.GET("/metrics", echo.WrapHandler(agenttele.Handler()))
	}

	store, err := session.NewStore(cfg.Session)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	registry := stream.NewRegistry(log.New(log.Writer(), "[STREAM] ", log.LstdFlags))

	provider, err := agentcore.NewLLMProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	executor := agentcore.NewLLMExecutor(provider, cfg.LLM.Routing, tel, log.New(log.Writer(), "[EXEC] ", log.LstdFlags))

	runnerLogger := log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	runner := pipeline.NewRunner(store, registry, executor, tel, cfg.Pipeline, runnerLogger)
	testRunner := pipeline.NewRunner(store, registry, agentcore.StaticExecutor{Delay: 200 * time.Millisecond}, tel, cfg.Pipeline, runnerLogger)

	api := e.Group("/api")
	ph := &PipelineHandler{
		Store:     store,
		Runner:    runner,
		Registry:  registry,
		Telemetry: tel,
		Logger:    baseLogger,
		Cfg:       cfg.Server,
	}
	ph.Register(api)

	dh := &DebugHandler{
		Store:      store,
		Registry:   registry,
		Runner:     runner,
		TestRunner: testRunner,
		Logger:     log.New(log.Writer(), "[DEBUG] ", log.LstdFlags),
		Started:    time.Now(),
	}
	dh.Register(api.Group("/debug"))

	reaper := &Reaper{
		Store:     store,
		Registry:  registry,
		Telemetry: tel,
		Retention: cfg.Session.Retention,
		Interval:  cfg.Session.ReapInterval,
		Logger:    log.New(log.Writer(), "[REAPER] ", log.LstdFlags),
		Stop:      make(chan struct{}),
	}
	reaper.Start()
	defer close(reaper.Stop)

	return e.Start(cfg.Server.Address)
}
