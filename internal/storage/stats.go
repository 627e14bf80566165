package storage

import (
	"context"
	"fmt"
)

// Bucket is a labelled count in Stats.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Stats summarizes the relational store after a build.
type Stats struct {
	Papers     int      `json:"papers"`
	Authors    int      `json:"authors"`
	Years      []Bucket `json:"years"`       // ten most recent years
	TopVenues  []Bucket `json:"top_venues"`  // five largest venues
	TopAuthors []Bucket `json:"top_authors"` // five most prolific authors
}

// Stats computes store statistics.
func (d *DB) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	var err error

	if s.Papers, err = d.Count(ctx, "Papers"); err != nil {
		return nil, err
	}
	if s.Authors, err = d.Count(ctx, "Authors"); err != nil {
		return nil, err
	}

	s.Years, err = d.buckets(ctx, `
		SELECT year, COUNT(*) AS count
		FROM Papers
		WHERE year IS NOT NULL
		GROUP BY year
		ORDER BY year DESC
		LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("year distribution: %w", err)
	}

	s.TopVenues, err = d.buckets(ctx, `
		SELECT venue, COUNT(*) AS count
		FROM Papers
		WHERE venue IS NOT NULL AND venue != ''
		GROUP BY venue
		ORDER BY count DESC, venue
		LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("top venues: %w", err)
	}

	s.TopAuthors, err = d.buckets(ctx, `
		SELECT a.name, COUNT(*) AS paper_count
		FROM Authors a
		JOIN PaperAuthors pa ON a.author_id = pa.author_id
		GROUP BY a.name
		ORDER BY paper_count DESC, a.name
		LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("prolific authors: %w", err)
	}

	return &s, nil
}

func (d *DB) buckets(ctx context.Context, query string) ([]Bucket, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bucket
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Label, &b.Count); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
