package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jayascript1/ai-editorial-team/config"
	"github.com/jayascript1/ai-editorial-team/internal/agent/telemetry"
)

// LLMExecutor runs editorial stages against a configured LLM provider.
// A stage either returns real model output or an error; it never substitutes
// placeholder content for a failed call.
type LLMExecutor struct {
	provider  LLMProvider
	routing   config.LLMRoutingConfig
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

func NewLLMExecutor(provider LLMProvider, routing config.LLMRoutingConfig, tel *telemetry.Telemetry, logger *log.Logger) *LLMExecutor {
	if logger == nil {
		logger = log.New(log.Writer(), "[EXEC] ", log.LstdFlags)
	}
	return &LLMExecutor{provider: provider, routing: routing, telemetry: tel, logger: logger}
}

func (e *LLMExecutor) ExecuteStage(ctx context.Context, stage Stage, topic, previous string) (StageResult, error) {
	model := e.routing.ModelFor(stage.Name)
	if model == "" {
		return StageResult{}, fmt.Errorf("no model routed for stage %s", stage.Name)
	}

	prompt := BuildPrompt(stage, topic, previous)
	start := time.Now()

	output, tokensIn, tokensOut, err := e.provider.GenerateWithTokens(ctx, prompt, model, nil)
	elapsed := time.Since(start)
	if err != nil {
		return StageResult{}, fmt.Errorf("stage %s (%s): %w", stage.Name, model, err)
	}
	output = strings.TrimSpace(output)
	if output == "" {
		return StageResult{}, fmt.Errorf("stage %s (%s): empty completion", stage.Name, model)
	}

	if e.telemetry != nil {
		e.telemetry.ObserveStage(stage.Name, elapsed, tokensIn, tokensOut)
	}
	e.logger.Printf("stage %s done in %s (model=%s tokens=%d/%d)", stage.Name, elapsed.Round(time.Millisecond), model, tokensIn, tokensOut)

	return StageResult{
		Stage:      stage.Name,
		Output:     output,
		ModelUsed:  model,
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
		DurationMs: elapsed.Milliseconds(),
	}, nil
}
