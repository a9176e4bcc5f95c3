package core

import (
	"context"
	"fmt"
	"time"
)

// StaticExecutor produces canned stage outputs after a fixed delay. It backs
// the debug test-process endpoint, which exercises the whole pipeline without
// touching an LLM.
type StaticExecutor struct {
	Delay time.Duration
}

func (s StaticExecutor) ExecuteStage(ctx context.Context, stage Stage, topic, previous string) (StageResult, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return StageResult{}, ctx.Err()
		}
	}

	var output string
	switch stage.Name {
	case StageResearch:
		output = fmt.Sprintf("Test research findings for %q: three facts, two statistics, one insight.", topic)
	case StageWrite:
		output = fmt.Sprintf("Test article draft on %q built from the research above.", topic)
	case StageEdit:
		output = fmt.Sprintf("Test edited article on %q, tightened and fact-checked.", topic)
	case StageTweet:
		output = fmt.Sprintf("Test tweet about %s #test", topic)
	default:
		return StageResult{}, fmt.Errorf("unknown stage %s", stage.Name)
	}

	return StageResult{Stage: stage.Name, Output: output, ModelUsed: "static"}, nil
}
