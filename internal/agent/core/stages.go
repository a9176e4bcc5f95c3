package core

import (
	"fmt"
	"strings"
)

// Stage names double as agent_outputs keys and SSE progress labels.
const (
	StageResearch = "research"
	StageWrite    = "write"
	StageEdit     = "edit"
	StageTweet    = "tweet"
)

// EditorialStages returns the fixed four-stage editorial team in execution
// order: research feeds writing, writing feeds editing, editing feeds the
// tweet. The slice is freshly allocated on each call.
func EditorialStages() []Stage {
	return []Stage{
		{
			Index:          0,
			Name:           StageResearch,
			Role:           "Research Analyst",
			Goal:           "Research the given topic and gather key insights",
			Backstory:      "You are an experienced research analyst with a talent for digging up interesting facts, statistics, and insights on any topic.",
			TaskTemplate:   "Research the topic: {input}. Find interesting facts, statistics, and insights.",
			ExpectedOutput: "A collection of key facts, statistics, and insights about the topic",
		},
		{
			Index:          1,
			Name:           StageWrite,
			Role:           "Article Writer",
			Goal:           "Write an engaging article based on the research",
			Backstory:      "You are a skilled writer who turns raw research into clear, engaging articles that hold a reader's attention.",
			TaskTemplate:   "Write a 400-word article based on this research: {input}",
			ExpectedOutput: "A well-structured article of roughly 400 words",
		},
		{
			Index:          2,
			Name:           StageEdit,
			Role:           "Editor",
			Goal:           "Polish the article for clarity, flow and correctness",
			Backstory:      "You are a meticulous editor with years of experience improving drafts without losing the writer's voice.",
			TaskTemplate:   "Edit and improve this article: {input}",
			ExpectedOutput: "The improved final version of the article",
		},
		{
			Index:          3,
			Name:           StageTweet,
			Role:           "Social Media Strategist",
			Goal:           "Distill the article into a single compelling tweet",
			Backstory:      "You are a social media strategist who knows how to capture an article's essence in under 280 characters.",
			TaskTemplate:   "Create a tweet (max 280 characters) summarizing this article: {input}",
			ExpectedOutput: "A single tweet of at most 280 characters",
		},
	}
}

// StageNames returns the stage names in execution order.
func StageNames() []string {
	stages := EditorialStages()
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	return names
}

// BuildPrompt assembles the full prompt for a stage. The first stage works
// from the topic; every later stage works from the previous stage's output.
func BuildPrompt(stage Stage, topic, previous string) string {
	input := previous
	if stage.Index == 0 {
		input = topic
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n", stage.Role)
	fmt.Fprintf(&b, "Goal: %s\n", stage.Goal)
	fmt.Fprintf(&b, "Background: %s\n\n", stage.Backstory)
	b.WriteString(strings.ReplaceAll(stage.TaskTemplate, "{input}", input))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Expected output: %s", stage.ExpectedOutput)
	return b.String()
}
