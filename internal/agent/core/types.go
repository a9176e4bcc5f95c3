package core

import (
	"context"
)

// Stage describes one member of the editorial team and the task it performs.
// Stages run strictly in Index order; each task prompt is built from the
// previous stage's output.
type Stage struct {
	Index          int    `json:"index"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	Goal           string `json:"goal"`
	Backstory      string `json:"backstory"`
	TaskTemplate   string `json:"task_template"`
	ExpectedOutput string `json:"expected_output"`
}

// StageResult is the outcome of a single stage execution.
type StageResult struct {
	Stage      string `json:"stage"`
	Output     string `json:"output"`
	ModelUsed  string `json:"model_used"`
	TokensIn   int64  `json:"tokens_in"`
	TokensOut  int64  `json:"tokens_out"`
	DurationMs int64  `json:"duration_ms"`
}

// StageExecutor runs one editorial stage against an LLM.
type StageExecutor interface {
	ExecuteStage(ctx context.Context, stage Stage, topic, previous string) (StageResult, error)
}

// LLMProvider interface defines the contract for LLM providers
type LLMProvider interface {
	// Generate generates text using the LLM
	Generate(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, error)

	// GenerateWithTokens generates text and returns token usage
	GenerateWithTokens(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, int64, int64, error)

	// GetAvailableModels returns available models
	GetAvailableModels() []string

	// GetModelInfo returns information about a specific model
	GetModelInfo(model string) (ModelInfo, error)
}

// ModelInfo contains information about an LLM model
type ModelInfo struct {
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
}
