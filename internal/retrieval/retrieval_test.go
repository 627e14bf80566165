package retrieval

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/matsen/paperbench/internal/metrics"
	"github.com/matsen/paperbench/internal/paper"
	"github.com/matsen/paperbench/internal/semantic"
	"github.com/matsen/paperbench/internal/storage"
	"github.com/matsen/paperbench/internal/synth"
	"github.com/matsen/paperbench/internal/unit"
)

func TestParseBackend(t *testing.T) {
	for _, s := range []string{"dense", "relational"} {
		if b, err := ParseBackend(s); err != nil || string(b) != s {
			t.Errorf("ParseBackend(%q) = %q, %v", s, b, err)
		}
	}
	if _, err := ParseBackend("sparse"); !errors.Is(err, ErrInvalidBackend) {
		t.Errorf("ParseBackend(sparse) error = %v", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"dense without provider", Config{Backend: Dense, IndexDir: "idx"}, ErrNotConfigured},
		{"dense without dir", Config{Backend: Dense, Provider: &bowProvider{model: "bow"}}, ErrNotConfigured},
		{"relational without db", Config{Backend: Relational}, ErrNotConfigured},
		{"unknown backend", Config{Backend: Backend("bm25")}, ErrInvalidBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	r, err := New(Config{Backend: Dense, IndexDir: t.TempDir(), Provider: &bowProvider{model: "bow"}})
	if err != nil {
		t.Fatalf("New(dense) error = %v", err)
	}
	if _, ok := r.(*DenseRetriever); !ok {
		t.Errorf("New(dense) returned %T", r)
	}
}

func TestDense_BuildLoadRetrieve(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "index")
	provider := &bowProvider{model: "bow"}
	m := metrics.New()

	builder := NewDense(dir, provider,
		WithUnitTypes([]unit.Type{unit.Title, unit.Abstract}),
		WithBatchSize(2),
		WithMetrics(m))
	summary, err := builder.Build(ctx, testDocs())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if summary.Backend != Dense || summary.PapersIndexed != 3 || summary.UnitsIndexed != 6 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.IndexSizeBytes <= 0 {
		t.Errorf("IndexSizeBytes = %d", summary.IndexSizeBytes)
	}

	r := NewDense(dir, provider)
	if _, err := r.Retrieve(ctx, nil, 5); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Retrieve before Load error = %v", err)
	}
	if err := r.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	queries := []paper.QueryRecord{
		{Query: "deep learning", PaperID: "P1"},
		{Query: "   ", PaperID: "P2"},
		{Query: "bayesian phylogenetics trees", PaperID: "P2"},
	}
	results, err := r.Retrieve(ctx, queries, 2)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != len(queries) {
		t.Fatalf("got %d results, want %d", len(results), len(queries))
	}

	first := results[0]
	if first.Query != "deep learning" || first.Expected != "P1" {
		t.Errorf("results[0] = %+v", first)
	}
	if len(first.Retrieved) == 0 || first.Retrieved[0] != "P1" {
		t.Errorf("results[0].Retrieved = %v, want P1 first", first.Retrieved)
	}
	if len(first.Retrieved) > 2 {
		t.Errorf("len(Retrieved) = %d, want <= 2", len(first.Retrieved))
	}
	if first.Units["P1_title"] != "Deep Learning for NLP" {
		t.Errorf("Units = %v", first.Units)
	}

	if results[1].Error == "" || results[1].Retrieved == nil || len(results[1].Retrieved) != 0 {
		t.Errorf("blank query record = %+v, want error and empty list", results[1])
	}
	if results[2].Retrieved[0] != "P2" {
		t.Errorf("results[2].Retrieved = %v", results[2].Retrieved)
	}
}

func TestDense_LoadModelMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if _, err := NewDense(dir, &bowProvider{model: "bow-a"}).Build(ctx, testDocs()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	err := NewDense(dir, &bowProvider{model: "bow-b"}).Load(ctx)
	if !errors.Is(err, semantic.ErrModelMismatch) {
		t.Errorf("Load() error = %v, want ErrModelMismatch", err)
	}
}

func TestDense_LoadMissingIndex(t *testing.T) {
	tests := []struct {
		name string
		dir  func(t *testing.T) string
		want error
	}{
		{"no directory", func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing") }, semantic.ErrIndexNotFound},
		{"empty directory", func(t *testing.T) string { return t.TempDir() }, semantic.ErrArtifactMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewDense(tt.dir(t), &bowProvider{model: "bow"})
			err := r.Load(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
			if _, err := r.Retrieve(context.Background(), []paper.QueryRecord{{Query: "q", PaperID: "P1"}}, 5); !errors.Is(err, ErrNotLoaded) {
				t.Errorf("Retrieve() after failed Load error = %v, want ErrNotLoaded", err)
			}
		})
	}
}

func newRelational(t *testing.T, answers map[string]string) *RelationalRetriever {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "papers.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := synth.New(&sqlCompleter{answers: answers},
		synth.WithSchema(storage.SchemaDescription, synth.Dialect{Name: "SQLite", Like: "LIKE"}),
		synth.WithRetryPolicy(synth.RetryPolicy{MaxAttempts: 2, BaseBackoff: time.Millisecond}))
	if err != nil {
		t.Fatalf("synth.New() error = %v", err)
	}
	return NewRelational(db, s)
}

func TestRelational_Retrieve(t *testing.T) {
	ctx := context.Background()
	r := newRelational(t, map[string]string{
		"papers by Ada": `SELECT DISTINCT p.paper_id, p.title FROM Papers p
JOIN PaperAuthors pa ON p.paper_id = pa.paper_id
JOIN Authors a ON a.author_id = pa.author_id
WHERE a.name LIKE '%Ada%'
ORDER BY p.citation_count DESC, p.year DESC
LIMIT 100`,
		"broken":   "SELECT paper_id FROM Nowhere",
		"no match": "SELECT paper_id FROM Papers WHERE title LIKE '%quantum%'",
	})

	if _, err := r.Retrieve(ctx, nil, 0); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Retrieve before Build error = %v", err)
	}

	summary, err := r.Build(ctx, testDocs())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if summary.PapersIndexed != 3 || summary.AuthorsIndexed != 2 || summary.Store.Papers != 3 {
		t.Errorf("summary = %+v", summary)
	}

	queries := []paper.QueryRecord{
		{Query: "papers by Ada", PaperID: "P1"},
		{Query: "broken", PaperID: "P2"},
		{Query: "unanswerable", PaperID: "P3"},
		{Query: "no match", PaperID: "P3"},
	}
	results, err := r.Retrieve(ctx, queries, 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != len(queries) {
		t.Fatalf("got %d results, want %d", len(results), len(queries))
	}

	ada := results[0]
	if !reflect.DeepEqual(ada.Retrieved, []string{"P3", "P1"}) {
		t.Errorf("Retrieved = %v, want [P3 P1]", ada.Retrieved)
	}
	if ada.Count != 2 || ada.SQL == nil || strings.HasSuffix(*ada.SQL, ";") || ada.Error != "" {
		t.Errorf("record = %+v", ada)
	}
	if ada.InputTokens != 300 || ada.OutputTokens != 40 {
		t.Errorf("tokens = %d/%d", ada.InputTokens, ada.OutputTokens)
	}

	broken := results[1]
	if broken.Error == "" || broken.SQL == nil || len(broken.Retrieved) != 0 {
		t.Errorf("execution failure record = %+v", broken)
	}

	failed := results[2]
	if !strings.HasPrefix(failed.Error, "failed to generate SQL query") || failed.SQL != nil {
		t.Errorf("synthesis failure record = %+v", failed)
	}
	if failed.Retrieved == nil || len(failed.Retrieved) != 0 {
		t.Errorf("failed.Retrieved = %v, want empty list", failed.Retrieved)
	}

	if results[3].Error != "" || len(results[3].Retrieved) != 0 {
		t.Errorf("empty result record = %+v", results[3])
	}

	sum := Summarize(results)
	if sum.Queries != 4 || sum.Failed != 2 || sum.AvgRetrieved != 0.5 {
		t.Errorf("Summarize() = %+v", sum)
	}
}

func TestRelational_LoadWithoutBuild(t *testing.T) {
	r := newRelational(t, nil)
	if err := r.Load(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Load() error = %v, want ErrNotLoaded", err)
	}
}

func TestRelational_NoSynthesizer(t *testing.T) {
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "papers.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	r := NewRelational(db, nil)
	defer r.Close()

	if _, err := r.Build(context.Background(), testDocs()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	_, err = r.Retrieve(context.Background(), []paper.QueryRecord{{Query: "q", PaperID: "P1"}}, 5)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Retrieve() error = %v, want ErrNotConfigured", err)
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize([]paper.ResultRecord{
		{Retrieved: []string{"a", "b", "c"}, InputTokens: 10, OutputTokens: 2},
		{Retrieved: []string{"a"}, InputTokens: 5, OutputTokens: 1},
		{Retrieved: []string{}, Error: "boom"},
	})
	want := Summary{Queries: 3, Failed: 1, AvgRetrieved: 4.0 / 3.0, InputTokens: 15, OutputTokens: 3}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}

	if got := Summarize(nil); got != (Summary{}) {
		t.Errorf("Summarize(nil) = %+v", got)
	}
}
