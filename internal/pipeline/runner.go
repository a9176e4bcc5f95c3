package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jayascript1/ai-editorial-team/config"
	"github.com/jayascript1/ai-editorial-team/internal/agent/core"
	"github.com/jayascript1/ai-editorial-team/internal/agent/telemetry"
	"github.com/jayascript1/ai-editorial-team/internal/session"
	"github.com/jayascript1/ai-editorial-team/internal/session/session_models"
	"github.com/jayascript1/ai-editorial-team/internal/stream"
)

const (
	noteInitializing = "Initializing editorial pipeline..."
	noteAllDone      = "All stages completed successfully!"
)

// Runner executes the four-stage editorial pipeline in the background.
// Start returns as soon as the run is admitted; progress flows through the
// session store and the event registry.
type Runner struct {
	store     session.Store
	registry  *stream.Registry
	executor  core.StageExecutor
	telemetry *telemetry.Telemetry
	logger    *log.Logger
	cfg       config.PipelineConfig

	sem chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewRunner(store session.Store, registry *stream.Registry, executor core.StageExecutor, tel *telemetry.Telemetry, cfg config.PipelineConfig, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 15 * time.Minute
	}
	return &Runner{
		store:     store,
		registry:  registry,
		executor:  executor,
		telemetry: tel,
		logger:    logger,
		cfg:       cfg,
		sem:       make(chan struct{}, cfg.MaxConcurrent),
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Start admits and launches a run for the user. It returns
// session.ErrAlreadyProcessing when a run is already in flight; concurrent
// calls for one user admit exactly one. On success the pipeline continues in
// the background and Start returns immediately.
func (r *Runner) Start(userID, topic string) error {
	rec, err := r.store.BeginRun(userID, topic)
	if err != nil {
		return err
	}

	r.registry.Register(userID)
	rec, err = r.store.RecordStageStart(userID, 0, core.StageResearch, noteInitializing)
	if err != nil {
		// Release admission so the user is not locked out by a store hiccup.
		r.fail(userID, core.EditorialStages(), 0, fmt.Sprintf("pipeline failed to start: %v", err))
		return err
	}
	r.publish(userID, stream.KindProgress, rec)

	if r.telemetry != nil {
		r.telemetry.PipelinesStarted.Inc()
	}
	r.logger.Printf("run admitted for %s (topic=%q)", userID, topic)

	go r.run(userID, topic)
	return nil
}

// Cancel aborts a running pipeline. It reports whether a run was found.
func (r *Runner) Cancel(userID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[userID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (r *Runner) run(userID, topic string) {
	// The slot is taken inside the goroutine so admission never blocks the
	// HTTP request; a saturated pool just delays the first stage.
	r.sem <- struct{}{}
	defer func() { <-r.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RunTimeout)
	defer cancel()

	r.mu.Lock()
	r.cancels[userID] = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.cancels, userID)
		r.mu.Unlock()
	}()

	if r.telemetry != nil {
		r.telemetry.ActiveRuns.Inc()
		defer r.telemetry.ActiveRuns.Dec()
	}

	stages := core.EditorialStages()
	outputs := make([]string, 0, len(stages))
	previous := ""
	for _, stage := range stages {
		rec, err := r.store.RecordStageStart(userID, stage.Index, stage.Name, fmt.Sprintf("%s is working...", stage.Role))
		if err != nil {
			r.fail(userID, stages, stage.Index, fmt.Sprintf("pipeline failed at stage %s: recording progress: %v", stage.Name, err))
			return
		}
		r.publish(userID, stream.KindProgress, rec)

		result, err := r.executeStage(ctx, stage, topic, previous)
		if err != nil {
			r.fail(userID, stages, stage.Index, fmt.Sprintf("pipeline failed at stage %s: %v", stage.Name, err))
			return
		}
		previous = result.Output
		outputs = append(outputs, result.Output)

		rec, err = r.store.RecordStageOutput(userID, stage.Index, stage.Name, result.Output, fmt.Sprintf("%s completed successfully", stage.Role))
		if err != nil {
			r.fail(userID, stages, stage.Index, fmt.Sprintf("pipeline failed at stage %s: recording output: %v", stage.Name, err))
			return
		}
		r.publish(userID, stream.KindProgress, rec)
	}

	rec, err := r.store.FinishRun(userID, len(stages), composeFinalResult(stages, outputs), noteAllDone)
	if err != nil {
		r.fail(userID, stages, len(stages), fmt.Sprintf("pipeline failed while finalizing: %v", err))
		return
	}
	r.publish(userID, stream.KindComplete, rec)
	if r.telemetry != nil {
		r.telemetry.PipelinesFinished.WithLabelValues("success").Inc()
	}
	r.logger.Printf("run completed for %s", userID)
}

func (r *Runner) executeStage(ctx context.Context, stage core.Stage, topic, previous string) (core.StageResult, error) {
	if r.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.StageTimeout)
		defer cancel()
	}
	return r.executor.ExecuteStage(ctx, stage, topic, previous)
}

// fail ends the run without fabricating content: stages from fromIndex on get
// the error placeholder and the session carries the error message. A store
// failure here is best-effort; the admission lock is released by FailRun, so
// every error path goes through it rather than abandoning the run mid-flight.
func (r *Runner) fail(userID string, stages []core.Stage, fromIndex int, msg string) {
	unfinished := make([]string, 0, len(stages)-fromIndex)
	for _, s := range stages[fromIndex:] {
		unfinished = append(unfinished, s.Name)
	}

	rec, err := r.store.FailRun(userID, len(stages), msg, unfinished, msg)
	if err != nil {
		r.logger.Printf("recording failure for %s: %v", userID, err)
		return
	}
	r.publish(userID, stream.KindError, rec)
	if r.telemetry != nil {
		r.telemetry.PipelinesFinished.WithLabelValues("failed").Inc()
	}
	r.logger.Printf("run failed for %s: %s", userID, msg)
}

// composeFinalResult joins the stage outputs in stage order under role
// headers, giving the client one document covering the whole run.
func composeFinalResult(stages []core.Stage, outputs []string) string {
	var b strings.Builder
	for i, stage := range stages {
		if i >= len(outputs) {
			break
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "=== %s ===\n%s", stage.Role, outputs[i])
	}
	return b.String()
}

func (r *Runner) publish(userID, kind string, rec session_models.Record) {
	r.registry.Publish(userID, stream.Event{
		Kind:         kind,
		CurrentStep:  rec.CurrentStep,
		CurrentStage: rec.CurrentStage,
		Note:         rec.Note,
		IsProcessing: rec.IsProcessing,
		AgentOutputs: rec.AgentOutputs,
		FinalResult:  rec.FinalResult,
		Error:        rec.Error,
		At:           time.Now(),
	})
	if r.telemetry != nil {
		r.telemetry.EventsPublished.Inc()
	}
}
