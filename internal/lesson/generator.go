// Package lesson produces the lesson text returned for a learning prompt.
package lesson

import (
	"context"
	"strings"

	"github.com/duynhne/learning-platform/internal/core/domain"
)

// Generator turns a topic and a learner prompt into lesson text.
type Generator interface {
	Generate(ctx context.Context, topic, prompt string) (string, error)
}

// checkArgs rejects blank inputs before any generator does work.
func checkArgs(topic, prompt string) error {
	if strings.TrimSpace(topic) == "" {
		return &domain.ArgumentError{Name: "topic", Reason: "topic is required"}
	}
	if strings.TrimSpace(prompt) == "" {
		return &domain.ArgumentError{Name: "prompt", Reason: "prompt is required"}
	}
	return nil
}
