package lesson

import (
	"context"
	"fmt"
	"strings"
)

// MockGenerator returns a deterministic structured lesson without any network call.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (MockGenerator) Generate(ctx context.Context, topic, prompt string) (string, error) {
	if err := checkArgs(topic, prompt); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	topic = strings.TrimSpace(topic)
	prompt = strings.TrimSpace(prompt)

	var b strings.Builder
	fmt.Fprintf(&b, "Lesson: %s\n\n", topic)
	fmt.Fprintf(&b, "Explanation:\nThis lesson answers \"%s\" by walking through the core ideas of %s step by step.\n\n", prompt, topic)
	b.WriteString("Key points:\n")
	fmt.Fprintf(&b, "1. What %s is and why it matters.\n", topic)
	fmt.Fprintf(&b, "2. The main concepts behind \"%s\".\n", prompt)
	b.WriteString("3. A worked example.\n\n")
	b.WriteString("Practice:\n")
	fmt.Fprintf(&b, "Summarize %s in your own words in three sentences.", topic)
	return b.String(), nil
}
