package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/kimconv/internal/archive"
)

// Upload groups the entries produced by one conversion or fetch.
type Upload struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// Entry describes one converted archive file.
type Entry struct {
	ID           string `json:"id"`
	UploadID     string `json:"upload_id"`
	Mainfile     string `json:"mainfile"`
	ArchiveHash  string `json:"archive_hash"`
	PropertyID   string `json:"property_id,omitempty"`
	Runs         int    `json:"runs"`
	Systems      int    `json:"systems"`
	Calculations int    `json:"calculations"`
	Workflows    int    `json:"workflows"`
	Issues       int    `json:"issues"`
}

// NewEntry summarizes a converted archive for the catalog.
func NewEntry(uploadID, mainfile, propertyID string, a *archive.Archive, issues int) (Entry, error) {
	hash, err := a.Hash()
	if err != nil {
		return Entry{}, fmt.Errorf("new entry: %w", err)
	}
	counts := a.Count()
	return Entry{
		UploadID:     uploadID,
		Mainfile:     mainfile,
		ArchiveHash:  hash,
		PropertyID:   propertyID,
		Runs:         counts.Runs,
		Systems:      counts.Systems,
		Calculations: counts.Calculations,
		Workflows:    counts.Workflows,
		Issues:       issues,
	}, nil
}

// CreateUpload registers a new upload.
func (s *Store) CreateUpload(ctx context.Context, source string) (Upload, error) {
	up := Upload{ID: s.ids.Generate(), Source: source}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO uploads (id, source) VALUES (?, ?)
	`, up.ID, up.Source)
	if err != nil {
		return Upload{}, fmt.Errorf("create upload: %w", err)
	}
	return up, nil
}

// PutEntry inserts an entry into the catalog.
// Returns the stored entry and whether a new row was inserted.
//
// Mainfile is unique. If an entry for the same mainfile already exists it is
// returned unchanged with inserted=false. The upload referenced by UploadID
// must exist (foreign key constraint).
func (s *Store) PutEntry(ctx context.Context, e Entry) (stored Entry, inserted bool, err error) {
	if e.Mainfile == "" {
		return Entry{}, false, errors.New("put entry: empty mainfile")
	}
	if e.ID == "" {
		e.ID = s.ids.Generate()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, false, fmt.Errorf("put entry: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO entries
		(id, upload_id, mainfile, archive_hash, property_id, runs, systems, calculations, workflows, issues)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mainfile) DO NOTHING
	`,
		e.ID,
		e.UploadID,
		e.Mainfile,
		e.ArchiveHash,
		e.PropertyID,
		e.Runs,
		e.Systems,
		e.Calculations,
		e.Workflows,
		e.Issues,
	)
	if err != nil {
		return Entry{}, false, fmt.Errorf("put entry: insert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return Entry{}, false, fmt.Errorf("put entry: rows affected: %w", err)
	}

	if affected == 0 {
		existing, err := scanEntryRow(tx.QueryRowContext(ctx, selectEntry+` WHERE mainfile = ?`, e.Mainfile))
		if err != nil {
			return Entry{}, false, fmt.Errorf("put entry: read existing: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return Entry{}, false, fmt.Errorf("put entry: commit: %w", err)
		}
		return existing, false, nil
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, false, fmt.Errorf("put entry: commit: %w", err)
	}
	return e, true, nil
}

// scanEntryRow scans a single entry; sql.ErrNoRows maps to ErrNotFound.
func scanEntryRow(row *sql.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.UploadID, &e.Mainfile, &e.ArchiveHash, &e.PropertyID,
		&e.Runs, &e.Systems, &e.Calculations, &e.Workflows, &e.Issues)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	return e, nil
}
