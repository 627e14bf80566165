package synth

import (
	"errors"
	"strings"
	"testing"
)

var sqlite = Dialect{Name: "SQLite", Like: "LIKE"}

func TestBuildMessages(t *testing.T) {
	schema := "CREATE TABLE Papers (paper_id TEXT)"

	t.Run("detailed", func(t *testing.T) {
		msgs, err := BuildMessages("papers by Ada", schema, Detailed, sqlite)
		if err != nil {
			t.Fatalf("BuildMessages() error = %v", err)
		}
		if len(msgs) != 2 {
			t.Fatalf("got %d messages, want 2", len(msgs))
		}
		if msgs[0].Role != RoleSystem || msgs[1].Role != RoleUser {
			t.Errorf("roles = %q, %q", msgs[0].Role, msgs[1].Role)
		}
		for _, want := range []string{"SQLite SQL query", "Use LIKE", "Limit to 100 results", "Do not end with semicolon"} {
			if !strings.Contains(msgs[0].Content, want) {
				t.Errorf("system prompt missing %q", want)
			}
		}
		for _, want := range []string{schema, "Researcher's query: papers by Ada", "Generate a SQLite SQL query"} {
			if !strings.Contains(msgs[1].Content, want) {
				t.Errorf("user prompt missing %q", want)
			}
		}
	})

	t.Run("minimal", func(t *testing.T) {
		msgs, err := BuildMessages("q", schema, Minimal, Dialect{Name: "MySQL", Like: "LIKE"})
		if err != nil {
			t.Fatalf("BuildMessages() error = %v", err)
		}
		want := "Generate a MySQL SQL query based on the database schema and user query."
		if msgs[0].Content != want {
			t.Errorf("system prompt = %q, want %q", msgs[0].Content, want)
		}
	})

	t.Run("invalid style", func(t *testing.T) {
		_, err := BuildMessages("q", schema, PromptStyle("verbose"), sqlite)
		if !errors.Is(err, ErrInvalidPromptStyle) {
			t.Errorf("error = %v, want ErrInvalidPromptStyle", err)
		}
	})
}

func TestParsePromptStyle(t *testing.T) {
	for _, s := range []string{"minimal", "detailed"} {
		if got, err := ParsePromptStyle(s); err != nil || string(got) != s {
			t.Errorf("ParsePromptStyle(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := ParsePromptStyle("Detailed"); !errors.Is(err, ErrInvalidPromptStyle) {
		t.Errorf("ParsePromptStyle(Detailed) error = %v", err)
	}
}

func TestExtractQuery(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		wantErr  bool
	}{
		{"plain", "SELECT paper_id FROM Papers", "SELECT paper_id FROM Papers", false},
		{"sql fence", "```sql\nSELECT paper_id FROM Papers;\n```", "SELECT paper_id FROM Papers", false},
		{"bare fence", "```\nSELECT 1\n```", "SELECT 1", false},
		{"trailing semicolons", "SELECT paper_id FROM Papers;;", "SELECT paper_id FROM Papers", false},
		{"surrounding whitespace", "  SELECT a ; \n", "SELECT a", false},
		{"multiline", "```sql\nSELECT p.paper_id\nFROM Papers p\nLIMIT 100\n```",
			"SELECT p.paper_id\nFROM Papers p\nLIMIT 100", false},
		{"empty", "", "", true},
		{"only semicolon", ";", "", true},
		{"empty fence", "```sql\n```", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractQuery(tt.response)
			if tt.wantErr {
				if !errors.Is(err, ErrNoQuery) {
					t.Errorf("ExtractQuery() error = %v, want ErrNoQuery", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractQuery() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}
