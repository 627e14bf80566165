// Package storage handles data persistence: JSON Lines files for documents,
// queries and results, and the relational paper store.
package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matsen/paperbench/internal/paper"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading query and
// result lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// MaxDocumentLineCapacity bounds a single document line. Documents carry
// full-text paragraphs and are much larger than queries.
const MaxDocumentLineCapacity = 64 * 1024 * 1024

// ErrMissingField is returned when a required JSONL field is absent or empty.
var ErrMissingField = errors.New("missing required field")

// readJSONL decodes one T per non-empty line. check, if non-nil, validates
// each record; its error is reported with the line number.
func readJSONL[T any](path string, capacity int, check func(T) error) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var items []T
	scanner := bufio.NewScanner(f)

	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, capacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue // Skip empty lines
		}

		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		if check != nil {
			if err := check(item); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
		}
		items = append(items, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return items, nil
}

// writeJSONLine marshals v and writes it followed by a newline.
func writeJSONLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("writing newline: %w", err)
	}
	return nil
}

// WriteJSONL writes items to path, replacing existing content. Parent
// directories are created.
func WriteJSONL[T any](path string, items []T) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, item := range items {
		if err := writeJSONLine(w, item); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return f.Close()
}

// ReadDocuments reads corpus documents from a JSONL file.
func ReadDocuments(path string) ([]paper.Document, error) {
	return readJSONL[paper.Document](path, MaxDocumentLineCapacity, nil)
}

// ReadQueries reads query records. Every record must carry a query and
// paperId that are not empty or whitespace only.
func ReadQueries(path string) ([]paper.QueryRecord, error) {
	return readJSONL(path, MaxJSONLLineCapacity, func(q paper.QueryRecord) error {
		if strings.TrimSpace(q.Query) == "" {
			return fmt.Errorf("%w: query", ErrMissingField)
		}
		if strings.TrimSpace(q.PaperID) == "" {
			return fmt.Errorf("%w: paperId", ErrMissingField)
		}
		return nil
	})
}

// WriteQueries writes query records to a JSONL file.
func WriteQueries(path string, queries []paper.QueryRecord) error {
	return WriteJSONL(path, queries)
}

// ReadResults reads result records from a JSONL file.
func ReadResults(path string) ([]paper.ResultRecord, error) {
	return readJSONL[paper.ResultRecord](path, MaxJSONLLineCapacity, nil)
}

// WriteResults writes result records to a JSONL file, one per query.
func WriteResults(path string, results []paper.ResultRecord) error {
	return WriteJSONL(path, results)
}
