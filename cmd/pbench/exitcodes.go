package main

import (
	"encoding/json"
	"errors"
	"io/fs"

	"github.com/matsen/paperbench/internal/config"
	"github.com/matsen/paperbench/internal/eval"
	"github.com/matsen/paperbench/internal/retrieval"
	"github.com/matsen/paperbench/internal/semantic"
	"github.com/matsen/paperbench/internal/storage"
)

// Exit codes. Per-query failures never change the exit code.
const (
	ExitSuccess       = 0 // Success
	ExitError         = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError   = 2 // Configuration error (credentials, index artifacts, missing input)
	ExitDataError     = 3 // Data error (malformed JSONL) / embedding server not available
	ExitModelNotFound = 5 // Embedding model not found
)

// exitCodeFor classifies a run-level error.
func exitCodeFor(err error) int {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, config.ErrMissingCredentials),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, semantic.ErrIndexNotFound),
		errors.Is(err, semantic.ErrArtifactMissing),
		errors.Is(err, semantic.ErrArtifactMismatch),
		errors.Is(err, semantic.ErrUnsupportedVersion),
		errors.Is(err, semantic.ErrModelMismatch),
		errors.Is(err, retrieval.ErrNotLoaded),
		errors.Is(err, retrieval.ErrNotConfigured),
		errors.Is(err, eval.ErrEmptyBatch):
		return ExitConfigError
	case errors.Is(err, storage.ErrMissingField),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr):
		return ExitDataError
	default:
		return ExitError
	}
}
