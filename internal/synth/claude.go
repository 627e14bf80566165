package synth

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultClaudeTimeout bounds one claude CLI call.
const DefaultClaudeTimeout = 2 * time.Minute

// ClaudeCLI completes prompts by shelling out to the claude CLI. The CLI does
// not report token usage, so Completion token counts stay zero.
type ClaudeCLI struct {
	command string
	model   string
	timeout time.Duration
}

// NewClaudeCLI creates a completer. An empty model uses "haiku".
func NewClaudeCLI(model string) *ClaudeCLI {
	if model == "" {
		model = "haiku"
	}
	return &ClaudeCLI{command: "claude", model: model, timeout: DefaultClaudeTimeout}
}

// Model implements Completer.
func (c *ClaudeCLI) Model() string { return c.model }

// flattenMessages joins chat messages into a single prompt, system first.
func flattenMessages(messages []Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, strings.TrimSpace(m.Content))
	}
	return strings.Join(parts, "\n\n")
}

// Complete implements Completer.
func (c *ClaudeCLI) Complete(ctx context.Context, messages []Message) (Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.command, "--model", c.model, "-p", flattenMessages(messages))
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Completion{}, fmt.Errorf("claude CLI timed out after %s", c.timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Completion{}, fmt.Errorf("claude CLI error: %s", string(exitErr.Stderr))
		}
		if errors.Is(err, exec.ErrNotFound) {
			return Completion{}, Terminal(fmt.Errorf("claude CLI not found: %w", err))
		}
		return Completion{}, fmt.Errorf("claude CLI error: %w", err)
	}

	return Completion{Text: strings.TrimSpace(string(output))}, nil
}
