package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/kimconv/internal/archive"
	"github.com/roach88/kimconv/internal/convert"
	"github.com/roach88/kimconv/internal/record"
	"github.com/roach88/kimconv/internal/store"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	Output  string
	Catalog string
	Workers int
	Unit    string
}

// ConvertResult summarizes one converted input.
type ConvertResult struct {
	Input        string         `json:"input"`
	Kind         InputKind      `json:"kind"`
	Output       string         `json:"output"`
	Runs         int            `json:"runs"`
	Systems      int            `json:"systems"`
	Calculations int            `json:"calculations"`
	Workflows    int            `json:"workflows"`
	Extensions   int            `json:"extensions"`
	Issues       []string       `json:"issues"`
	Catalog      *CatalogResult `json:"catalog,omitempty"`
}

// CatalogResult reports how a converted archive was registered.
type CatalogResult struct {
	Path     string `json:"path"`
	EntryID  string `json:"entry_id"`
	UploadID string `json:"upload_id"`
	Inserted bool   `json:"inserted"`
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <input.json>",
		Short: "Convert OpenKIM records into a canonical archive",
		Long: `Convert a file of OpenKIM records into a canonical archive.

The input may be a bare array of flat records, a legacy object wrapping
them under "QUERY", or an archive that is already canonical. Canonical
input is re-emitted unchanged, including members this tool does not model. Per-record failures are reported as
issues; only an unreadable input aborts the command.

Unless --output is given the archive is written next to the input as
openkim_archive_<name>.json.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "archive output path")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "register the archive in this SQLite catalog")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "records converted concurrently (default from config)")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "length unit for positions and cells (default from config)")

	return cmd
}

func runConvert(opts *ConvertOptions, inputPath string, cmd *cobra.Command) error {
	if err := opts.setup(); err != nil {
		return err
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	input, err := LoadInput(inputPath)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			opts.Logger.Error("cannot load input", zap.Error(convert.NewInputError(inputPath, err)))
			return fail(formatter, ExitCommandError, loadErr.Code, loadErr.Message, map[string]string{"path": inputPath})
		}
		return fail(formatter, ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	output := opts.Output
	if output == "" {
		output = DefaultOutputPath(inputPath)
	}
	formatter.VerboseLog("Loaded %s input %s", input.Kind, inputPath)

	result := &ConvertResult{Input: inputPath, Kind: input.Kind, Output: output, Issues: []string{}}
	var a *archive.Archive

	if input.Kind == InputCanonical {
		a = input.Archive
		if err := input.WriteCanonical(output); err != nil {
			return fail(formatter, ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
		}
	} else {
		conv := convert.New(converterOptions(opts), convert.WithLogger(opts.Logger))
		res, err := conv.ConvertFile(ctx, input.Records, output)
		if err != nil {
			return fail(formatter, ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
		}
		a = res.Archive
		for _, issue := range res.Issues {
			result.Issues = append(result.Issues, issue.Error())
		}
	}

	counts := a.Count()
	result.Runs = counts.Runs
	result.Systems = counts.Systems
	result.Calculations = counts.Calculations
	result.Workflows = counts.Workflows
	result.Extensions = counts.Extensions

	catalogPath := opts.Catalog
	if catalogPath == "" {
		catalogPath = opts.Config.Catalog.Path
	}
	if catalogPath != "" {
		cr, err := register(ctx, catalogPath, input, a, len(result.Issues))
		if err != nil {
			return fail(formatter, ExitCommandError, ErrCodeCatalog, err.Error(), nil)
		}
		result.Catalog = cr
	}

	opts.Logger.Info("converted",
		zap.String("input", inputPath),
		zap.String("output", output),
		zap.Int("runs", result.Runs),
		zap.Int("issues", len(result.Issues)))

	return formatter.Result(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Converted %s → %s\n", inputPath, output)
		fmt.Fprintf(w, "  runs: %d  systems: %d  calculations: %d  workflows: %d\n",
			result.Runs, result.Systems, result.Calculations, result.Workflows)
		if len(result.Issues) > 0 {
			fmt.Fprintf(w, "  issues: %d\n", len(result.Issues))
			for _, issue := range result.Issues {
				fmt.Fprintf(w, "    - %s\n", issue)
			}
		}
		if result.Catalog != nil {
			state := "existing"
			if result.Catalog.Inserted {
				state = "new"
			}
			fmt.Fprintf(w, "  catalog: entry %s (%s)\n", result.Catalog.EntryID, state)
		}
	})
}

// converterOptions merges command flags over the configured converter settings.
func converterOptions(opts *ConvertOptions) convert.Options {
	c := opts.Config.Converter
	co := convert.Options{
		ProgramName:     c.ProgramName,
		ExtensionPrefix: c.ExtensionPrefix,
		MetaAttribute:   c.MetaAttribute,
		LengthUnit:      c.LengthUnit,
		Tolerance:       c.Tolerance,
		Workers:         c.Workers,
	}
	if opts.Workers > 0 {
		co.Workers = opts.Workers
	}
	if opts.Unit != "" {
		co.LengthUnit = opts.Unit
	}
	return co
}

// register records the archive in the catalog under the input's base name.
func register(ctx context.Context, path string, input *Input, a *archive.Archive, issues int) (*CatalogResult, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	upload, err := st.CreateUpload(ctx, input.Path)
	if err != nil {
		return nil, err
	}

	var propertyID string
	if len(input.Records) > 0 {
		propertyID, _ = input.Records[0][record.KeyPropertyID].(string)
	}
	entry, err := store.NewEntry(upload.ID, filepath.Base(input.Path), propertyID, a, issues)
	if err != nil {
		return nil, err
	}
	stored, inserted, err := st.PutEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	return &CatalogResult{Path: path, EntryID: stored.ID, UploadID: stored.UploadID, Inserted: inserted}, nil
}
