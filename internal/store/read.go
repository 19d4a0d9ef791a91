package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = errors.New("entry not found")

const selectEntry = `
		SELECT id, upload_id, mainfile, archive_hash, property_id, runs, systems, calculations, workflows, issues
		FROM entries`

// GetEntry returns the entry for mainfile.
func (s *Store) GetEntry(ctx context.Context, mainfile string) (Entry, error) {
	return scanEntryRow(s.db.QueryRowContext(ctx, selectEntry+` WHERE mainfile = ?`, mainfile))
}

// HasMainfile reports whether mainfile is already catalogued.
func (s *Store) HasMainfile(ctx context.Context, mainfile string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE mainfile = ?`, mainfile).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has mainfile: %w", err)
	}
	return n > 0, nil
}

// ListParams filters ListEntries. Zero values disable a filter.
type ListParams struct {
	UploadID string

	// PropertyID matches entries whose property id contains this substring.
	PropertyID string

	Limit  int
	Offset int
}

// ListEntries returns catalog entries in insertion order.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListEntries(ctx context.Context, p ListParams) ([]Entry, error) {
	var where []string
	var args []any
	if p.UploadID != "" {
		where = append(where, "upload_id = ?")
		args = append(args, p.UploadID)
	}
	if p.PropertyID != "" {
		where = append(where, "instr(property_id, ?) > 0")
		args = append(args, p.PropertyID)
	}

	query := selectEntry
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC, id COLLATE BINARY ASC"
	if p.Limit > 0 || p.Offset > 0 {
		limit := p.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, p.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	err := rows.Scan(&e.ID, &e.UploadID, &e.Mainfile, &e.ArchiveHash, &e.PropertyID,
		&e.Runs, &e.Systems, &e.Calculations, &e.Workflows, &e.Issues)
	if err != nil {
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	return e, nil
}

// Stats aggregates the catalog.
type Stats struct {
	Uploads      int `json:"uploads"`
	Entries      int `json:"entries"`
	Runs         int `json:"runs"`
	Systems      int `json:"systems"`
	Calculations int `json:"calculations"`
	Workflows    int `json:"workflows"`
	Issues       int `json:"issues"`
}

// Stats returns catalog-wide totals.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads`).Scan(&st.Uploads); err != nil {
		return Stats{}, fmt.Errorf("count uploads: %w", err)
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(runs), 0),
			COALESCE(SUM(systems), 0),
			COALESCE(SUM(calculations), 0),
			COALESCE(SUM(workflows), 0),
			COALESCE(SUM(issues), 0)
		FROM entries
	`).Scan(&st.Entries, &st.Runs, &st.Systems, &st.Calculations, &st.Workflows, &st.Issues)
	if err != nil {
		return Stats{}, fmt.Errorf("sum entries: %w", err)
	}
	return st, nil
}
