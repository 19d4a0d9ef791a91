package convert

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/kimconv/internal/archive"
	"github.com/roach88/kimconv/internal/crystal"
	"github.com/roach88/kimconv/internal/record"
)

// Options control how records are mapped into the archive.
type Options struct {
	ProgramName     string
	ExtensionPrefix string
	MetaAttribute   string
	LengthUnit      string
	Tolerance       float64
	Workers         int
}

// DefaultOptions returns the OpenKIM defaults.
func DefaultOptions() Options {
	return Options{
		ProgramName:     "OpenKIM",
		ExtensionPrefix: "x_openkim_",
		MetaAttribute:   "x_openkim_meta",
		LengthUnit:      "m",
		Tolerance:       crystal.DefaultTolerance,
		Workers:         1,
	}
}

// Converter maps OpenKIM records onto an archive.
// A Converter is safe for concurrent use; it holds no per-call state.
type Converter struct {
	opts        Options
	logger      *zap.Logger
	classifiers []classifier
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Converter) {
		c.logger = logger
	}
}

// New creates a Converter. Zero-valued options fall back to DefaultOptions.
func New(opts Options, options ...Option) *Converter {
	def := DefaultOptions()
	if opts.ProgramName == "" {
		opts.ProgramName = def.ProgramName
	}
	if opts.ExtensionPrefix == "" {
		opts.ExtensionPrefix = def.ExtensionPrefix
	}
	if opts.MetaAttribute == "" {
		opts.MetaAttribute = def.MetaAttribute
	}
	if opts.LengthUnit == "" {
		opts.LengthUnit = def.LengthUnit
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	c := &Converter{
		opts:        opts,
		logger:      zap.NewNop(),
		classifiers: defaultClassifiers(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Result is the outcome of converting a record sequence.
type Result struct {
	Archive *archive.Archive

	// Issues lists the recovered failures in input order.
	Issues []*Error
}

// runResult is the output of one record before it is attached to the archive.
type runResult struct {
	index     int
	run       *archive.Run
	workflows []*archive.Workflow
	issues    []*Error
}

func (r *runResult) fail(kind ErrorKind, field string, index int, err error) {
	r.issues = append(r.issues, &Error{Kind: kind, Record: r.index, Field: field, Index: index, Err: err})
}

// Convert maps every record to one run. Workflows follow in record order.
// Only context cancellation aborts the conversion.
func (c *Converter) Convert(ctx context.Context, records []record.Record) (*archive.Archive, error) {
	res, err := c.Run(ctx, records)
	if err != nil {
		return nil, err
	}
	return res.Archive, nil
}

// ConvertFile converts records and writes the archive to filename when it is not empty.
func (c *Converter) ConvertFile(ctx context.Context, records []record.Record, filename string) (*Result, error) {
	res, err := c.Run(ctx, records)
	if err != nil {
		return nil, err
	}
	if filename != "" {
		if err := res.Archive.WriteFile(filename); err != nil {
			return nil, err
		}
		c.logger.Debug("archive written", zap.String("path", filename), zap.Int("runs", len(res.Archive.Run)))
	}
	return res, nil
}

// Run converts records and reports every recovered failure.
//
// With Workers > 1 records are converted concurrently; the archive is
// assembled afterwards in input order so the output does not depend on
// scheduling.
func (c *Converter) Run(ctx context.Context, records []record.Record) (*Result, error) {
	results := make([]*runResult, len(records))

	if c.opts.Workers <= 1 || len(records) <= 1 {
		for i, rec := range records {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("convert: %w", err)
			}
			results[i] = c.convertRecord(i, rec)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.opts.Workers)
		for i, rec := range records {
			i, rec := i, rec
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = c.convertRecord(i, rec)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("convert: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("convert: %w", err)
		}
	}

	out := &Result{Archive: archive.New()}
	for _, res := range results {
		out.Archive.AddRun(res.run)
		for _, wf := range res.workflows {
			out.Archive.AddWorkflow(wf)
		}
		for _, issue := range res.issues {
			c.logger.Warn("recovered conversion failure",
				zap.String("kind", string(issue.Kind)),
				zap.Int("record", issue.Record),
				zap.String("field", issue.Field),
				zap.Int("index", issue.Index),
				zap.Error(issue.Err))
			out.Issues = append(out.Issues, issue)
		}
	}
	c.logger.Debug("conversion finished",
		zap.Int("records", len(records)),
		zap.Int("workflows", len(out.Archive.Workflow)),
		zap.Int("issues", len(out.Issues)))
	return out, nil
}

// convertRecord runs the extraction steps against one record. Steps share a
// View so that each key consumed by a typed step is excluded from passthrough.
func (c *Converter) convertRecord(index int, rec record.Record) *runResult {
	res := &runResult{index: index, run: archive.NewRun(c.opts.ProgramName)}
	view := record.NewView(rec)

	c.extractProgram(res, view)
	c.extractStructures(res, view)
	c.extractQuantities(res, view)
	c.classify(res, view)
	c.passthrough(res, view)
	return res
}
