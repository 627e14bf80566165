// Package unit extracts addressable sub-document retrieval units (title,
// abstract, paragraphs, synthesized metadata) from corpus documents.
package unit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matsen/paperbench/internal/paper"
)

// Type is the kind of a retrieval unit.
type Type string

// Unit types.
const (
	Paragraph Type = "paragraph"
	Abstract  Type = "abstract"
	Title     Type = "title"
	Metadata  Type = "metadata"
)

// AllTypes lists every unit type in extraction order.
var AllTypes = []Type{Paragraph, Abstract, Title, Metadata}

// typeAliases maps accepted spellings (including the plural command-line
// names) to unit types.
var typeAliases = map[string]Type{
	"paragraph":  Paragraph,
	"paragraphs": Paragraph,
	"abstract":   Abstract,
	"abstracts":  Abstract,
	"title":      Title,
	"titles":     Title,
	"metadata":   Metadata,
}

// ParseType parses a unit type name.
func ParseType(s string) (Type, error) {
	t, ok := typeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown unit type %q (valid: paragraphs, abstracts, title, metadata)", s)
	}
	return t, nil
}

// ParseTypes parses a list of unit type names, dropping duplicates while
// keeping first-seen order.
func ParseTypes(names []string) ([]Type, error) {
	seen := make(map[Type]bool)
	var types []Type
	for _, name := range names {
		t, err := ParseType(name)
		if err != nil {
			return nil, err
		}
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("at least one unit type is required")
	}
	return types, nil
}

// Unit is an indexable span of text owned by exactly one document.
type Unit struct {
	ID       string     `json:"unit_id"`
	PaperID  string     `json:"paper_id"`
	Type     Type       `json:"unit_type"`
	Text     string     `json:"text"`
	Metadata Attributes `json:"metadata"`
}

// Attributes holds type-specific unit attributes.
type Attributes struct {
	UnitType Type `json:"unit_type"`

	// Paragraph units
	SectionTitle   string `json:"section_title,omitempty"`
	ParagraphTitle string `json:"paragraph_title,omitempty"`
	ParagraphID    string `json:"paragraph_id,omitempty"`

	// Metadata units
	Year          int    `json:"year,omitempty"`
	Venue         string `json:"venue,omitempty"`
	CitationCount int    `json:"citation_count,omitempty"`
}

// paragraphToken is the type segment used in paragraph unit IDs.
const paragraphToken = "para"

// ID builds the unit identifier for a unit of the given type. index is only
// used for paragraphs.
func ID(paperID string, t Type, index int) string {
	if t == Paragraph {
		return paperID + "_" + paragraphToken + "_" + strconv.Itoa(index)
	}
	return paperID + "_" + string(t)
}

// Extract returns the units of doc for the requested types, in the order
// paragraphs, abstract, title, metadata. Missing or empty fields are skipped,
// as are documents without an identifier.
func Extract(doc paper.Document, types []Type) []Unit {
	paperID := doc.ID()
	if paperID == "" {
		return nil
	}

	want := make(map[Type]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	var units []Unit

	if want[Paragraph] {
		for i, p := range doc.Paragraphs {
			if p.Text == "" {
				continue
			}
			units = append(units, Unit{
				ID:      ID(paperID, Paragraph, i),
				PaperID: paperID,
				Type:    Paragraph,
				Text:    p.Text,
				Metadata: Attributes{
					UnitType:       Paragraph,
					SectionTitle:   p.SectionTitle,
					ParagraphTitle: p.Title,
					ParagraphID:    p.ParagraphID,
				},
			})
		}
	}

	if want[Abstract] && doc.Abstract != "" {
		units = append(units, single(paperID, Abstract, doc.Abstract, Attributes{UnitType: Abstract}))
	}

	if want[Title] && doc.Title != "" {
		units = append(units, single(paperID, Title, doc.Title, Attributes{UnitType: Title}))
	}

	if want[Metadata] {
		if text := MetadataText(doc); text != "" {
			units = append(units, single(paperID, Metadata, text, Attributes{
				UnitType:      Metadata,
				Year:          doc.Year,
				Venue:         doc.Venue,
				CitationCount: doc.CitationCount,
			}))
		}
	}

	return units
}

func single(paperID string, t Type, text string, meta Attributes) Unit {
	return Unit{
		ID:       ID(paperID, t, 0),
		PaperID:  paperID,
		Type:     t,
		Text:     text,
		Metadata: meta,
	}
}

// MetadataText synthesizes the metadata unit text as "Label: value" segments
// joined by " | ". Returns "" when no metadata field is populated.
func MetadataText(doc paper.Document) string {
	var parts []string
	if len(doc.Authors) > 0 {
		parts = append(parts, "Authors: "+strings.Join(doc.AuthorNames(), ", "))
	}
	if doc.Venue != "" {
		parts = append(parts, "Venue: "+doc.Venue)
	}
	if doc.Year != 0 {
		parts = append(parts, "Year: "+strconv.Itoa(doc.Year))
	}
	if len(doc.FieldsOfStudy) > 0 {
		parts = append(parts, "Fields: "+strings.Join(doc.FieldsOfStudy, ", "))
	}
	if len(doc.PublicationTypes) > 0 {
		parts = append(parts, "Publication Types: "+strings.Join(doc.PublicationTypes, ", "))
	}
	return strings.Join(parts, " | ")
}

// ExtractAll extracts units from every document, preserving document order.
func ExtractAll(docs []paper.Document, types []Type) []Unit {
	var units []Unit
	for _, doc := range docs {
		units = append(units, Extract(doc, types)...)
	}
	return units
}

// CountByType tallies units per type.
func CountByType(units []Unit) map[Type]int {
	counts := make(map[Type]int)
	for _, u := range units {
		counts[u.Type]++
	}
	return counts
}
