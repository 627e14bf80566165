package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/matsen/paperbench/internal/paper"
)

// Dialect names a supported SQL backend.
type Dialect string

// Supported dialects.
const (
	SQLite Dialect = "sqlite"
	MySQL  Dialect = "mysql"
)

// ParseDialect validates a dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(s)) {
	case SQLite:
		return SQLite, nil
	case MySQL:
		return MySQL, nil
	default:
		return "", fmt.Errorf("unknown database driver %q (valid: sqlite, mysql)", s)
	}
}

// DisplayName is the dialect name used in prompts ("SQLite", "MySQL").
func (d Dialect) DisplayName() string {
	switch d {
	case MySQL:
		return "MySQL"
	default:
		return "SQLite"
	}
}

// insertIgnore is the dialect's duplicate-tolerant INSERT prefix. Conflicting
// rows are dropped, so the first write wins.
func (d Dialect) insertIgnore() string {
	if d == MySQL {
		return "INSERT IGNORE INTO"
	}
	return "INSERT OR IGNORE INTO"
}

// DB wraps the relational paper store.
type DB struct {
	db      *sql.DB
	dialect Dialect
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	return Open(SQLite, path)
}

// Open connects to the store. For SQLite dsn is a file path; for MySQL it is
// a go-sql-driver DSN such as "user:pass@tcp(localhost:3306)/papers".
func Open(dialect Dialect, dsn string) (*DB, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if dialect == SQLite {
		// Set pragmas; a single connection keeps them in effect
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &DB{db: db, dialect: dialect}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Dialect returns the store's SQL dialect.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// RebuildStats summarizes a rebuild.
type RebuildStats struct {
	PapersInserted  int `json:"papers_inserted"`
	PapersSkipped   int `json:"papers_skipped"`
	AuthorsInserted int `json:"authors_inserted"`
	AuthorsSkipped  int `json:"authors_skipped"`
}

// Rebuild drops and recreates the schema, then inserts every document. It is
// a full rebuild, not an upsert. Documents without an ID and authors without
// an ID or name are skipped. Re-inserting an existing paper, author or
// paper-author pair is a no-op.
func (d *DB) Rebuild(ctx context.Context, docs []paper.Document) (*RebuildStats, error) {
	if err := d.createSchema(ctx); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Prepare statements
	paperStmt, err := tx.PrepareContext(ctx, d.dialect.insertIgnore()+` Papers (
			paper_id, corpus_id, title, abstract, venue, year,
			publication_date, citation_count, open_access_url,
			open_access_status, open_access_license
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing papers insert: %w", err)
	}
	defer paperStmt.Close()

	authorStmt, err := tx.PrepareContext(ctx, d.dialect.insertIgnore()+` Authors (author_id, name) VALUES (?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing authors insert: %w", err)
	}
	defer authorStmt.Close()

	linkStmt, err := tx.PrepareContext(ctx, d.dialect.insertIgnore()+` PaperAuthors (paper_id, author_id, author_position) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing paper-authors insert: %w", err)
	}
	defer linkStmt.Close()

	stats := &RebuildStats{}
	for _, doc := range docs {
		paperID := doc.ID()
		if paperID == "" {
			stats.PapersSkipped++
			continue
		}

		oa := doc.OpenAccessPDF
		if oa == nil {
			oa = &paper.OpenAccess{}
		}
		res, err := paperStmt.ExecContext(ctx,
			paperID, nullableString(string(doc.CorpusID)), doc.Title, nullableString(doc.Abstract),
			nullableString(doc.Venue), nullableInt(doc.Year), nullableString(doc.PublicationDate),
			doc.CitationCount, nullableString(oa.URL), nullableString(oa.Status), nullableString(oa.License),
		)
		if err != nil {
			return nil, fmt.Errorf("inserting paper %s: %w", paperID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Duplicate paper: the first copy and its author links stay as they are.
			stats.PapersSkipped++
			continue
		}
		stats.PapersInserted++

		for position, author := range doc.Authors {
			if author.AuthorID == "" || author.Name == "" {
				stats.AuthorsSkipped++
				continue
			}
			res, err := authorStmt.ExecContext(ctx, author.AuthorID, author.Name)
			if err != nil {
				return nil, fmt.Errorf("inserting author %s: %w", author.AuthorID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				stats.AuthorsInserted++
			}
			if _, err := linkStmt.ExecContext(ctx, paperID, author.AuthorID, position); err != nil {
				return nil, fmt.Errorf("linking author %s to %s: %w", author.AuthorID, paperID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}
	return stats, nil
}

// createSchema drops existing tables in reverse dependency order and creates
// them again with their indexes.
func (d *DB) createSchema(ctx context.Context) error {
	var stmts []string
	stmts = append(stmts,
		"DROP TABLE IF EXISTS PaperAuthors",
		"DROP TABLE IF EXISTS Authors",
		"DROP TABLE IF EXISTS Papers",
	)
	stmts = append(stmts, ddl(d.dialect)...)
	stmts = append(stmts, indexDDL...)

	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// QueryPaperIDs executes query verbatim and returns the paper_id column of
// every row, in row order. Other columns are ignored; a result set without a
// paper_id column yields an empty list.
func (d *DB) QueryPaperIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	idCol := -1
	for i, c := range cols {
		if strings.EqualFold(c, "paper_id") {
			idCol = i
			break
		}
	}

	ids := []string{}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if idCol < 0 {
			continue
		}
		if id, ok := columnString(values[idCol]); ok {
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return ids, nil
}

// columnString renders a scanned column value as a string. NULL is reported
// as absent.
func columnString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	default:
		return fmt.Sprint(x), true
	}
}

// Count returns the number of rows in a table.
func (d *DB) Count(ctx context.Context, table string) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

// nullableString converts empty strings to NULL.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullableInt converts zero to NULL.
func nullableInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
