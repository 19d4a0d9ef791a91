package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/kimconv/internal/query"
	"github.com/roach88/kimconv/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Dir          string
	Catalog      string
	CheckCatalog bool
}

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	Element string `json:"element"`
	Dir     string `json:"dir"`
	*query.FetchReport
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <element>",
		Short: "Fetch OpenKIM records for an element",
		Long: `Fetch every OpenKIM record whose species include the element and store
each one as <identifier>.json in the target directory.

Records without an identifier are skipped. Existing files are never
overwritten. With --check-catalog, records already present in the
catalog are skipped as well.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "directory receiving record files")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "SQLite catalog path (default from config)")
	cmd.Flags().BoolVar(&opts.CheckCatalog, "check-catalog", false, "skip records already in the catalog")

	return cmd
}

func runQuery(opts *QueryOptions, element string, cmd *cobra.Command) error {
	if err := opts.setup(); err != nil {
		return err
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fetcher := &query.Fetcher{
		Querier: query.NewClient(query.OptionsFromConfig(opts.Config), query.WithLogger(opts.Logger)),
		Dir:     opts.Dir,
		Logger:  opts.Logger,
	}

	if opts.CheckCatalog {
		path := opts.Catalog
		if path == "" {
			path = opts.Config.Catalog.Path
		}
		if path == "" {
			return fail(formatter, ExitCommandError, ErrCodeConfig, "--check-catalog needs a catalog path", nil)
		}
		st, err := store.Open(path)
		if err != nil {
			return fail(formatter, ExitCommandError, ErrCodeCatalog, err.Error(), nil)
		}
		defer st.Close()
		fetcher.Catalog = st
	}

	formatter.VerboseLog("Querying %s for %s", opts.Config.Query.URL, element)
	report, err := fetcher.Fetch(ctx, element)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, query.ErrUnavailable) {
			msg = "query service unavailable, try again later"
		}
		return fail(formatter, ExitCommandError, ErrCodeQueryFailed, msg, nil)
	}

	result := QueryResult{Element: element, Dir: opts.Dir, FetchReport: report}
	return formatter.Result(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s: %d written, %d skipped, %d unidentified\n",
			element, len(report.Written), len(report.Skipped), len(report.Unidentified))
		for _, name := range report.Written {
			fmt.Fprintf(w, "  + %s\n", name)
		}
	})
}
