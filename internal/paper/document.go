// Package paper defines the core domain types of the benchmark: corpus
// documents, query records and per-query result records.
package paper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Document is an academic paper as it appears in the corpus JSONL file
// (Semantic Scholar field names). Documents are immutable once loaded.
type Document struct {
	// Identity
	PaperID  string `json:"paperId,omitempty"`
	CorpusID FlexID `json:"corpusId,omitempty"`

	// Metadata
	Title            string      `json:"title,omitempty"`
	Abstract         string      `json:"abstract,omitempty"`
	Authors          []Author    `json:"authors,omitempty"`
	Venue            string      `json:"venue,omitempty"`
	Year             int         `json:"year,omitempty"`
	PublicationDate  string      `json:"publicationDate,omitempty"` // YYYY-MM-DD
	CitationCount    int         `json:"citationCount,omitempty"`
	FieldsOfStudy    []string    `json:"fieldsOfStudy,omitempty"`
	PublicationTypes []string    `json:"publicationTypes,omitempty"`
	OpenAccessPDF    *OpenAccess `json:"openAccessPdf,omitempty"`

	// Full text, split into paragraphs
	Paragraphs []Paragraph `json:"paragraphs,omitempty"`
}

// Author is a paper author as listed by the corpus, in author order.
type Author struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

// OpenAccess describes the open-access PDF of a paper, if any.
type OpenAccess struct {
	URL     string `json:"url,omitempty"`
	Status  string `json:"status,omitempty"`
	License string `json:"license,omitempty"`
}

// Paragraph is one body paragraph of a paper.
type Paragraph struct {
	Text         string `json:"text"`
	SectionTitle string `json:"sectionTitle,omitempty"`
	Title        string `json:"title,omitempty"`
	ParagraphID  string `json:"paragraphId,omitempty"`
}

// ID returns the document identifier: the paper ID, falling back to the
// corpus ID. Returns "" when neither is set.
func (d Document) ID() string {
	if d.PaperID != "" {
		return d.PaperID
	}
	return string(d.CorpusID)
}

// AuthorNames returns the author names in author order.
func (d Document) AuthorNames() []string {
	names := make([]string, 0, len(d.Authors))
	for _, a := range d.Authors {
		names = append(names, a.Name)
	}
	return names
}

// FlexID is an identifier that may be encoded as either a JSON string or a
// JSON number (corpus IDs come both ways).
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("corpus id must be a string or number: %w", err)
	}
	*f = FlexID(n.String())
	return nil
}

// MarshalJSON implements json.Marshaler. IDs in canonical integer form are
// written back as numbers; anything else ("007", "+5") stays a string.
func (f FlexID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(f), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(f) {
		return []byte(f), nil
	}
	return json.Marshal(string(f))
}
