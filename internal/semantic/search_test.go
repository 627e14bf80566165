package semantic

import (
	"reflect"
	"testing"
)

func TestFlatIndexSearch(t *testing.T) {
	idx := NewFlatIndex(2)
	for _, v := range [][]float32{
		{1, 0},
		{0, 1},
		{0.6, 0.8},
		{1, 0}, // ties with position 0
	} {
		if err := idx.Add(v); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	tests := []struct {
		name  string
		query []float32
		k     int
		want  []int
	}{
		{"top one", []float32{1, 0}, 1, []int{0}},
		{"ties ordered by position", []float32{1, 0}, 3, []int{0, 3, 2}},
		{"k larger than index", []float32{0, 1}, 10, []int{1, 2, 0, 3}},
		{"zero k", []float32{1, 0}, 0, nil},
		{"wrong dimension", []float32{1, 0, 0}, 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			for _, n := range idx.Search(tt.query, tt.k) {
				got = append(got, n.Position)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Search() positions = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlatIndexAdd_DimensionMismatch(t *testing.T) {
	idx := NewFlatIndex(3)
	if err := idx.Add([]float32{1, 0}); err == nil {
		t.Error("expected error for dimension mismatch")
	}
	if idx.Len() != 0 {
		t.Errorf("Len() = %d after rejected add, want 0", idx.Len())
	}
}

func TestDedupPapers(t *testing.T) {
	hit := func(unitID, paperID string) Hit { return Hit{UnitID: unitID, PaperID: paperID} }

	tests := []struct {
		name string
		hits []Hit
		want []string
	}{
		{
			name: "first occurrence order",
			hits: []Hit{hit("A_para_0", "A"), hit("A_para_1", "A"), hit("B_title", "B"), hit("A_title", "A"), hit("C_abstract", "C")},
			want: []string{"A", "B", "C"},
		},
		{
			name: "three paragraphs of one paper collapse",
			hits: []Hit{hit("A_para_0", "A"), hit("A_para_1", "A"), hit("A_para_2", "A")},
			want: []string{"A"},
		},
		{
			name: "all distinct",
			hits: []Hit{hit("B_title", "B"), hit("A_title", "A")},
			want: []string{"B", "A"},
		},
		{
			name: "empty",
			hits: nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DedupPapers(tt.hits)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DedupPapers() = %v, want %v", got, tt.want)
			}
			if len(got) > len(tt.hits) {
				t.Errorf("DedupPapers() returned %d papers for %d hits", len(got), len(tt.hits))
			}
		})
	}
}
