package storage

// ddl returns the CREATE TABLE statements for the dialect, in dependency
// order. Deleting a paper cascades to its PaperAuthors rows.
func ddl(d Dialect) []string {
	textType, keyType := "TEXT", "TEXT"
	if d == MySQL {
		keyType = "VARCHAR(255)"
	}
	shortText := func(n string) string {
		if d == MySQL {
			return "VARCHAR(" + n + ")"
		}
		return "TEXT"
	}

	return []string{
		`CREATE TABLE Papers (
			paper_id ` + keyType + ` PRIMARY KEY,
			corpus_id ` + shortText("255") + `,
			title ` + textType + ` NOT NULL,
			abstract ` + textType + `,
			venue ` + shortText("500") + `,
			year INTEGER,
			publication_date ` + shortText("50") + `,
			citation_count INTEGER DEFAULT 0,
			open_access_url ` + textType + `,
			open_access_status ` + shortText("50") + `,
			open_access_license ` + shortText("100") + `
		)`,
		`CREATE TABLE Authors (
			author_id ` + keyType + ` PRIMARY KEY,
			name ` + shortText("500") + ` NOT NULL
		)`,
		`CREATE TABLE PaperAuthors (
			paper_id ` + keyType + ` NOT NULL,
			author_id ` + keyType + ` NOT NULL,
			author_position INTEGER NOT NULL,
			PRIMARY KEY (paper_id, author_id),
			FOREIGN KEY (paper_id) REFERENCES Papers(paper_id) ON DELETE CASCADE,
			FOREIGN KEY (author_id) REFERENCES Authors(author_id) ON DELETE CASCADE
		)`,
	}
}

// indexDDL creates the secondary indexes. The syntax is shared by both dialects.
var indexDDL = []string{
	"CREATE INDEX idx_papers_year ON Papers(year)",
	"CREATE INDEX idx_papers_venue ON Papers(venue)",
	"CREATE INDEX idx_papers_citation_count ON Papers(citation_count)",
	"CREATE INDEX idx_authors_name ON Authors(name)",
	"CREATE INDEX idx_paper_authors_paper ON PaperAuthors(paper_id)",
	"CREATE INDEX idx_paper_authors_author ON PaperAuthors(author_id)",
}

// SchemaDescription is the fixed schema text given to the query synthesizer.
const SchemaDescription = `
DATABASE SCHEMA:

Table: Papers
- paper_id (VARCHAR, PRIMARY KEY): Unique paper identifier
- corpus_id (VARCHAR): Corpus identifier
- title (TEXT, NOT NULL): Paper title
- abstract (TEXT): Paper abstract
- venue (VARCHAR): Publication venue (conference/journal name)
- year (INTEGER): Publication year
- publication_date (VARCHAR): Full publication date
- citation_count (INTEGER): Number of citations
- open_access_url (TEXT): URL to open access PDF
- open_access_status (VARCHAR): Open access status
- open_access_license (VARCHAR): License type

Table: Authors
- author_id (VARCHAR, PRIMARY KEY): Unique author identifier
- name (VARCHAR, NOT NULL): Author name

Table: PaperAuthors (Junction table for many-to-many relationship)
- paper_id (VARCHAR, FOREIGN KEY → Papers.paper_id): Reference to paper
- author_id (VARCHAR, FOREIGN KEY → Authors.author_id): Reference to author
- author_position (INTEGER): Author position in paper (0 = first author)
- PRIMARY KEY: (paper_id, author_id)

RELATIONSHIPS:
- Papers ←→ Authors (many-to-many through PaperAuthors)
- To get papers with their authors: JOIN Papers with PaperAuthors with Authors
- To filter by author: JOIN through PaperAuthors and filter on Authors.name
- author_position indicates author order (0 is first author, 1 is second, etc.)

INDEXES:
- idx_papers_year on Papers(year)
- idx_papers_venue on Papers(venue)
- idx_papers_citation_count on Papers(citation_count)
- idx_authors_name on Authors(name)
`
