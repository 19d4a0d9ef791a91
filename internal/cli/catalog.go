package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/kimconv/internal/store"
)

// CatalogOptions holds flags shared by the catalog subcommands.
type CatalogOptions struct {
	*RootOptions
	Path string
}

// NewCatalogCommand creates the catalog command and its subcommands.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the catalog of converted archives",
	}
	cmd.PersistentFlags().StringVar(&opts.Path, "catalog", "", "SQLite catalog path (default from config)")

	cmd.AddCommand(newCatalogListCommand(opts))
	cmd.AddCommand(newCatalogStatsCommand(opts))
	return cmd
}

func newCatalogListCommand(opts *CatalogOptions) *cobra.Command {
	var params store.ListParams

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List catalogued entries in insertion order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, st, err := openCatalog(opts, cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.ListEntries(cmd.Context(), params)
			if err != nil {
				return fail(formatter, ExitCommandError, ErrCodeCatalog, err.Error(), nil)
			}
			return formatter.Result(entries, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintln(w, "No entries")
					return
				}
				for _, e := range entries {
					fmt.Fprintf(w, "%s  %s  runs=%d workflows=%d issues=%d  %s\n",
						e.ID, e.Mainfile, e.Runs, e.Workflows, e.Issues, e.PropertyID)
				}
			})
		},
	}

	cmd.Flags().StringVar(&params.UploadID, "upload", "", "only entries from this upload")
	cmd.Flags().StringVar(&params.PropertyID, "property", "", "only entries whose property id contains this text")
	cmd.Flags().IntVar(&params.Limit, "limit", 0, "maximum entries to list (0 for all)")
	cmd.Flags().IntVar(&params.Offset, "offset", 0, "entries to skip")
	return cmd
}

func newCatalogStatsCommand(opts *CatalogOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Show catalog totals",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, st, err := openCatalog(opts, cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return fail(formatter, ExitCommandError, ErrCodeCatalog, err.Error(), nil)
			}
			return formatter.Result(stats, func(w io.Writer) {
				fmt.Fprintf(w, "uploads:      %d\n", stats.Uploads)
				fmt.Fprintf(w, "entries:      %d\n", stats.Entries)
				fmt.Fprintf(w, "runs:         %d\n", stats.Runs)
				fmt.Fprintf(w, "systems:      %d\n", stats.Systems)
				fmt.Fprintf(w, "calculations: %d\n", stats.Calculations)
				fmt.Fprintf(w, "workflows:    %d\n", stats.Workflows)
				fmt.Fprintf(w, "issues:       %d\n", stats.Issues)
			})
		},
	}
}

// openCatalog resolves the catalog path and opens it.
func openCatalog(opts *CatalogOptions, cmd *cobra.Command) (*OutputFormatter, *store.Store, error) {
	if err := opts.setup(); err != nil {
		return nil, nil, err
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	path := opts.Path
	if path == "" {
		path = opts.Config.Catalog.Path
	}
	if path == "" {
		return nil, nil, fail(formatter, ExitCommandError, ErrCodeConfig, "no catalog path: use --catalog or catalog.path", nil)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, fail(formatter, ExitCommandError, ErrCodeCatalog, err.Error(), nil)
	}
	return formatter, st, nil
}
