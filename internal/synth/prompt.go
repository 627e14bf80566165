// Package synth translates natural-language paper queries into SQL against
// the relational paper store with a language model.
package synth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Errors returned by query synthesis.
var (
	ErrInvalidPromptStyle = errors.New("invalid prompt style")
	ErrNoQuery            = errors.New("model response contains no query")
)

// PromptStyle selects the system prompt.
type PromptStyle string

// Prompt styles.
const (
	// Minimal is a bare one-line instruction.
	Minimal PromptStyle = "minimal"

	// Detailed carries the full constraint list.
	Detailed PromptStyle = "detailed"
)

// ParsePromptStyle validates a prompt style name.
func ParsePromptStyle(s string) (PromptStyle, error) {
	switch PromptStyle(s) {
	case Minimal, Detailed:
		return PromptStyle(s), nil
	default:
		return "", fmt.Errorf("%w: %q (must be minimal or detailed)", ErrInvalidPromptStyle, s)
	}
}

// Message roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one chat message sent to a Completer.
type Message struct {
	Role    string
	Content string
}

const detailedSystemPrompt = `You are a SQL expert helping researchers find academic papers in a database.

Given a database schema and a natural language query (which might be conversational or informal), generate a %[1]s SQL query that retrieves the relevant papers.

Key requirements:
- Return ONLY the SQL query, no explanations or markdown formatting
- Always select at least the paper_id column
- Use %[2]s for case-insensitive partial text matching
- Use DISTINCT when joining with PaperAuthors to avoid duplicate papers
- Order by relevance (typically citation_count DESC, year DESC)
- Limit to %[3]d results maximum
- Do not end with semicolon

The database has Papers, Authors, and PaperAuthors tables. Use JOINs appropriately.`

const minimalSystemPrompt = "Generate a %s SQL query based on the database schema and user query."

const userPrompt = `%s

Researcher's query: %s

Generate a %s SQL query to find the relevant papers.`

// MaxResults is the result cap the detailed prompt asks for.
const MaxResults = 100

// Dialect describes the target SQL flavor for the prompt.
type Dialect struct {
	// Name as shown to the model, e.g. "SQLite".
	Name string

	// Like is the case-insensitive partial match operator, e.g. "LIKE".
	Like string
}

// BuildMessages builds the system and user messages for one query.
func BuildMessages(query, schema string, style PromptStyle, dialect Dialect) ([]Message, error) {
	var system string
	switch style {
	case Detailed:
		system = fmt.Sprintf(detailedSystemPrompt, dialect.Name, dialect.Like, MaxResults)
	case Minimal:
		system = fmt.Sprintf(minimalSystemPrompt, dialect.Name)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPromptStyle, style)
	}

	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: fmt.Sprintf(userPrompt, schema, query, dialect.Name)},
	}, nil
}

var (
	openFence  = regexp.MustCompile("^```(?:sql)?\\s*")
	closeFence = regexp.MustCompile("\\s*```$")
)

// ExtractQuery strips surrounding code fences and trailing semicolons from a
// model response. A response with nothing left is ErrNoQuery.
func ExtractQuery(response string) (string, error) {
	q := strings.TrimSpace(response)
	q = openFence.ReplaceAllString(q, "")
	q = closeFence.ReplaceAllString(q, "")
	q = strings.TrimSpace(strings.TrimRight(q, ";"))
	if q == "" {
		return "", ErrNoQuery
	}
	return q, nil
}
