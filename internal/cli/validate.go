package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/rsparser/internal/parser"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var topType string
	var markup []string

	cmd := &cobra.Command{
		Use:   "validate <types-dir>",
		Short: "Validate a columns markup against a record-types library",
		Long: `Validate CUE record-type definitions and compile a columns markup
against them without feeding any rows.

Reports schema definition errors and markup errors with column coordinates.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, args[0], topType, markup)
		},
	}

	cmd.Flags().StringVar(&topType, "type", "", "top record type name (required)")
	cmd.Flags().StringSliceVar(&markup, "markup", nil, "comma-separated column labels (required)")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("markup")

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command, typesDir, topType string, markup []string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := buildParser(formatter, typesDir, topType, markup); err != nil {
		return err
	}
	return formatter.Success("markup is valid")
}

// buildParser loads the record types, constructs a parser and compiles the
// markup, reporting failures through the formatter.
func buildParser(formatter *OutputFormatter, typesDir, topType string, markup []string) (*parser.Parser, error) {
	loadResult, err := LoadTypes(typesDir)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			formatter.Error(loadErr.Code, loadErr.Message)
			return nil, WrapExitError(ExitCommandError, "loading record types", err)
		}
		return nil, err
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, typesDir)

	p, err := parser.New(loadResult.Library, topType)
	if err != nil {
		var ue *parser.UsageError
		if errors.As(err, &ue) {
			formatter.Error(string(ue.Code), ue.Message)
			return nil, WrapExitError(ExitCommandError, "constructing parser", err)
		}
		return nil, err
	}

	if err := p.Init(markup); err != nil {
		var me *parser.MarkupError
		if errors.As(err, &me) {
			formatter.Error(string(me.Code), me.Error())
			return nil, WrapExitError(ExitFailure, "compiling markup", err)
		}
		return nil, err
	}
	formatter.VerboseLog("Compiled %d markup columns for %s", len(markup), topType)
	return p, nil
}
