package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/kimconv/internal/archive"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Path   string                    `json:"path"`
	Valid  bool                      `json:"valid"`
	Errors []archive.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <archive.json>",
		Short: "Check an archive against the canonical schema",
		Long: `Validate an archive document against the embedded CUE schema.

Reports every violation with its path and, where known, its line.
Exits 1 when the archive has violations and 2 when it cannot be read.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	if err := opts.setup(); err != nil {
		return err
	}
	formatter := newFormatter(opts, cmd)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fail(formatter, ExitCommandError, ErrCodeNotFound, "archive not found: "+path, nil)
	}
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeReadFailed, err.Error(), nil)
	}

	violations, err := archive.Validate(path, data)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeDecodeFailed, err.Error(), nil)
	}
	if len(violations) > 0 {
		return outputValidationErrors(formatter, path, violations)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Path: path, Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ Archive valid")
	return nil
}

// outputValidationErrors outputs every schema violation.
func outputValidationErrors(formatter *OutputFormatter, path string, errs []archive.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Path: path, Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    ErrCodeSchema,
				Message: errs[0].Error(),
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", ErrCodeSchema, err.Path, err.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
