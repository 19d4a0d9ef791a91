package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/roach88/kimconv/internal/record"
)

// Querier fetches flat records for an element.
type Querier interface {
	Query(ctx context.Context, element string) ([]record.Record, error)
}

// Catalog reports whether a mainfile has already been ingested.
type Catalog interface {
	HasMainfile(ctx context.Context, mainfile string) (bool, error)
}

// Fetcher persists query results as one single-record input file per record.
type Fetcher struct {
	Querier Querier

	// Dir receives the record files. Empty means the working directory.
	Dir string

	// Catalog, when set, suppresses records whose file is already catalogued.
	Catalog Catalog

	Logger *zap.Logger
}

// FetchReport lists what a Fetch did with each record.
type FetchReport struct {
	Written []string `json:"written"`
	Skipped []string `json:"skipped"`

	// Unidentified holds the positions of records without any identifier.
	Unidentified []int `json:"unidentified"`
}

// Filename returns the file name a record with identifier id is stored under.
func Filename(id string) string {
	return record.SanitizeKey(id) + ".json"
}

// Fetch queries element and writes every new record to its own file.
//
// A record is skipped when it has no identifier, when its file already
// exists, or when the catalog already holds it. Existing files are never
// overwritten.
func (f *Fetcher) Fetch(ctx context.Context, element string) (*FetchReport, error) {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	records, err := f.Querier.Query(ctx, element)
	if err != nil {
		return nil, err
	}

	dir := f.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	report := &FetchReport{Written: []string{}, Skipped: []string{}, Unidentified: []int{}}
	for n, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		id, ok := rec.Identifier()
		if !ok {
			logger.Warn("cannot resolve record identifier, skipping", zap.Int("record", n))
			report.Unidentified = append(report.Unidentified, n)
			continue
		}
		name := Filename(id)

		if f.Catalog != nil {
			has, err := f.Catalog.HasMainfile(ctx, name)
			if err != nil {
				return report, fmt.Errorf("fetch: catalog lookup %s: %w", name, err)
			}
			if has {
				logger.Debug("record already catalogued", zap.String("file", name))
				report.Skipped = append(report.Skipped, name)
				continue
			}
		}

		written, err := writeRecord(filepath.Join(dir, name), rec)
		if err != nil {
			return report, fmt.Errorf("fetch: %w", err)
		}
		if !written {
			logger.Debug("record file exists", zap.String("file", name))
			report.Skipped = append(report.Skipped, name)
			continue
		}
		report.Written = append(report.Written, name)
	}

	logger.Info("fetch finished",
		zap.String("element", element),
		zap.Int("written", len(report.Written)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("unidentified", len(report.Unidentified)))
	return report, nil
}

// writeRecord writes rec as a one-element array. It reports false without
// writing when path already exists.
func writeRecord(path string, rec record.Record) (bool, error) {
	data, err := json.MarshalIndent([]record.Record{rec}, "", "    ")
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		file.Close()
		return false, err
	}
	return true, file.Close()
}
