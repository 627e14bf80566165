package semantic

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matsen/paperbench/internal/embedding"
)

// Errors returned by semantic index operations.
var (
	ErrIndexNotFound      = errors.New("semantic index not found")
	ErrUnsupportedVersion = errors.New("unsupported index version")
	ErrArtifactMissing    = errors.New("index artifact missing")
	ErrArtifactMismatch   = errors.New("index artifacts are inconsistent")
	ErrModelMismatch      = errors.New("embedding model does not match index")
	ErrEmptyQuery         = errors.New("query text is empty")
	ErrNoUnits            = errors.New("no retrieval units to index")
)

const (
	// VectorsFileName holds the gob-encoded FlatIndex.
	VectorsFileName = "vectors.gob"

	// UnitIDsFileName holds the gob-encoded unit-id sequence aligned to index positions.
	UnitIDsFileName = "unit_ids.gob"

	// PapersFileName holds the gob-encoded paper objects.
	PapersFileName = "paper_objs.gob"

	// MetadataFileName holds the JSON metadata summary.
	MetadataFileName = "index_metadata.json"

	// CurrentIndexVersion is the format version for compatibility checking.
	// Increment this when making breaking changes to the index format.
	CurrentIndexVersion = 1
)

// artifactNames lists every file that makes up an index.
var artifactNames = []string{VectorsFileName, UnitIDsFileName, PapersFileName, MetadataFileName}

// Index is a loaded or freshly built dense index. Position i of Vectors
// corresponds to UnitIDs[i].
type Index struct {
	Meta    Metadata
	Vectors *FlatIndex
	UnitIDs []string
	Papers  []PaperObject

	unitPaper map[string]string
	unitText  map[string]string
}

// newIndex links the lookup tables. Every unit ID must belong to exactly one
// paper object and positions must align with the vectors.
func newIndex(meta Metadata, vectors *FlatIndex, unitIDs []string, papers []PaperObject) (*Index, error) {
	if vectors.Len() != len(unitIDs) {
		return nil, fmt.Errorf("%w: %d vectors but %d unit ids", ErrArtifactMismatch, vectors.Len(), len(unitIDs))
	}

	idx := &Index{
		Meta:      meta,
		Vectors:   vectors,
		UnitIDs:   unitIDs,
		Papers:    papers,
		unitPaper: make(map[string]string, len(unitIDs)),
		unitText:  make(map[string]string, len(unitIDs)),
	}
	for _, p := range papers {
		for id, u := range p.Units {
			if owner, dup := idx.unitPaper[id]; dup {
				return nil, fmt.Errorf("%w: unit %s owned by both %s and %s", ErrArtifactMismatch, id, owner, p.PaperID)
			}
			idx.unitPaper[id] = p.PaperID
			idx.unitText[id] = u.Text
		}
	}
	for i, id := range unitIDs {
		if _, ok := idx.unitPaper[id]; !ok {
			return nil, fmt.Errorf("%w: unit %s at position %d has no paper", ErrArtifactMismatch, id, i)
		}
	}
	return idx, nil
}

// PaperOf returns the owning paper ID of a unit.
func (idx *Index) PaperOf(unitID string) (string, bool) {
	p, ok := idx.unitPaper[unitID]
	return p, ok
}

// UnitText returns the stored text of a unit.
func (idx *Index) UnitText(unitID string) string {
	return idx.unitText[unitID]
}

// CheckProvider verifies that p produces vectors compatible with the index:
// same model, same pooling, same dimension when known.
func (idx *Index) CheckProvider(p embedding.Provider) error {
	if p.ModelName() != idx.Meta.ModelName {
		return fmt.Errorf("%w: index built with %q, provider uses %q", ErrModelMismatch, idx.Meta.ModelName, p.ModelName())
	}
	if p.Pooling() != idx.Meta.Pooling {
		return fmt.Errorf("%w: index pooling %q, provider pooling %q", ErrModelMismatch, idx.Meta.Pooling, p.Pooling())
	}
	if d := p.Dimensions(); d > 0 && d != idx.Meta.EmbeddingDim {
		return fmt.Errorf("%w: index dimension %d, provider dimension %d", ErrModelMismatch, idx.Meta.EmbeddingDim, d)
	}
	return nil
}

// Search returns the top-k unit hits for a normalized query vector.
func (idx *Index) Search(query []float32, k int) []Hit {
	neighbors := idx.Vectors.Search(query, k)
	hits := make([]Hit, len(neighbors))
	for i, n := range neighbors {
		id := idx.UnitIDs[n.Position]
		hits[i] = Hit{UnitID: id, PaperID: idx.unitPaper[id], Score: n.Score}
	}
	return hits
}

// Retrieve embeds the query with p, searches the top-k units and collapses
// them to a first-occurrence ordered paper list. len(PaperIDs) <= k.
func (idx *Index) Retrieve(ctx context.Context, p embedding.Provider, query string, k int) (*Retrieval, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if err := idx.CheckProvider(p); err != nil {
		return nil, err
	}

	emb, err := embedding.Embed(ctx, p, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	vec, err := embedding.Normalize(emb.Vector)
	if err != nil {
		return nil, fmt.Errorf("normalizing query embedding: %w", err)
	}
	if len(vec) != idx.Vectors.Dim {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", ErrModelMismatch, len(vec), idx.Vectors.Dim)
	}

	hits := idx.Search(vec, k)
	r := &Retrieval{
		UnitIDs:   make([]string, len(hits)),
		UnitTexts: make([]string, len(hits)),
		Scores:    make([]float32, len(hits)),
		PaperIDs:  DedupPapers(hits),
	}
	for i, h := range hits {
		r.UnitIDs[i] = h.UnitID
		r.UnitTexts[i] = idx.unitText[h.UnitID]
		r.Scores[i] = h.Score
	}
	return r, nil
}

// Save persists the four index artifacts into dir. Each file is written to a
// temp file first and renamed; the metadata summary is written last.
func (idx *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	if err := writeAtomic(filepath.Join(dir, VectorsFileName), gobEncode(idx.Vectors)); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, UnitIDsFileName), gobEncode(idx.UnitIDs)); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, PapersFileName), gobEncode(idx.Papers)); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, MetadataFileName), func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(idx.Meta)
	})
}

func gobEncode(v any) func(*os.File) error {
	return func(f *os.File) error {
		return gob.NewEncoder(f).Encode(v)
	}
}

// writeAtomic writes path through a temp file and rename.
func writeAtomic(path string, write func(*os.File) error) error {
	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Load reads all four artifacts from dir and checks they are consistent.
// Returns ErrIndexNotFound if dir does not exist, ErrArtifactMissing if any
// artifact is absent and ErrArtifactMismatch if they disagree.
func Load(dir string) (*Index, error) {
	if !Exists(dir) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, dir)
	}
	for _, name := range artifactNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, name)
			}
			return nil, fmt.Errorf("checking %s: %w", name, err)
		}
	}

	var meta Metadata
	if err := readFile(filepath.Join(dir, MetadataFileName), func(f *os.File) error {
		return json.NewDecoder(f).Decode(&meta)
	}); err != nil {
		return nil, err
	}

	// Check version compatibility
	if meta.Version != CurrentIndexVersion {
		return nil, fmt.Errorf("%w: got %d, want %d (rebuild with 'pbench index dense')",
			ErrUnsupportedVersion, meta.Version, CurrentIndexVersion)
	}

	var vectors FlatIndex
	if err := readFile(filepath.Join(dir, VectorsFileName), gobDecode(&vectors)); err != nil {
		return nil, err
	}
	var unitIDs []string
	if err := readFile(filepath.Join(dir, UnitIDsFileName), gobDecode(&unitIDs)); err != nil {
		return nil, err
	}
	var papers []PaperObject
	if err := readFile(filepath.Join(dir, PapersFileName), gobDecode(&papers)); err != nil {
		return nil, err
	}

	switch {
	case meta.NUnits != len(unitIDs):
		return nil, fmt.Errorf("%w: metadata records %d units, unit id file has %d", ErrArtifactMismatch, meta.NUnits, len(unitIDs))
	case meta.NPapers != len(papers):
		return nil, fmt.Errorf("%w: metadata records %d papers, paper file has %d", ErrArtifactMismatch, meta.NPapers, len(papers))
	case meta.EmbeddingDim != vectors.Dim:
		return nil, fmt.Errorf("%w: metadata dimension %d, vectors dimension %d", ErrArtifactMismatch, meta.EmbeddingDim, vectors.Dim)
	}

	return newIndex(meta, &vectors, unitIDs, papers)
}

func gobDecode(v any) func(*os.File) error {
	return func(f *os.File) error {
		return gob.NewDecoder(f).Decode(v)
	}
}

func readFile(path string, read func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if err := read(f); err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return nil
}

// IndexSize returns the total size of the index artifacts in bytes.
func IndexSize(dir string) (int64, error) {
	var total int64
	for _, name := range artifactNames {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				return 0, ErrIndexNotFound
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

// Exists checks if the index directory exists.
func Exists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
