package synth

import "context"

// Completion is a model response with its token usage.
type Completion struct {
	Text         string
	Reasoning    string
	InputTokens  int
	OutputTokens int
}

// Completer sends chat messages to a language model.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (Completion, error)

	// Model returns the model identifier, used for logging and metrics.
	Model() string
}

// terminalError marks an error that retrying cannot fix.
type terminalError struct{ err error }

func (e terminalError) Error() string { return e.err.Error() }
func (e terminalError) Unwrap() error { return e.err }

// Terminal wraps err so the synthesizer does not retry it.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return terminalError{err: err}
}
