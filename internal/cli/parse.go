package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rsparser/internal/parser"
	"github.com/roach88/rsparser/internal/record"
)

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	var topType string
	var markup []string
	var rowsFile string

	cmd := &cobra.Command{
		Use:   "parse <types-dir>",
		Short: "Parse a result set from a rows file into a record forest",
		Long: `Parse rows from a JSON file into hierarchical records.

The rows file holds a JSON array of rows. Each row is either a positional
array matching the markup, or an object keyed by markup label.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(rootOpts, cmd, args[0], topType, markup, rowsFile)
		},
	}

	cmd.Flags().StringVar(&topType, "type", "", "top record type name (required)")
	cmd.Flags().StringSliceVar(&markup, "markup", nil, "comma-separated column labels (required)")
	cmd.Flags().StringVar(&rowsFile, "rows", "", "path to the JSON rows file (required)")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("markup")
	cmd.MarkFlagRequired("rows")

	return cmd
}

func runParse(opts *RootOptions, cmd *cobra.Command, typesDir, topType string, markup []string, rowsFile string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	p, err := buildParser(formatter, typesDir, topType, markup)
	if err != nil {
		return err
	}

	rows, err := readRowsFile(rowsFile)
	if err != nil {
		formatter.Error(ErrCodeScanError, err.Error())
		return WrapExitError(ExitCommandError, "reading rows file", err)
	}
	formatter.VerboseLog("Read %d row(s) from %s", len(rows), rowsFile)

	if err := feedRows(p, rows); err != nil {
		var de *parser.DataError
		if errors.As(err, &de) {
			formatter.Error(string(de.Code), de.Error())
			return WrapExitError(ExitFailure, "parsing rows", err)
		}
		var ue *parser.UsageError
		if errors.As(err, &ue) {
			formatter.Error(string(ue.Code), ue.Message)
			return WrapExitError(ExitCommandError, "parsing rows", err)
		}
		return err
	}

	return outputForest(formatter, p)
}

// readRowsFile decodes a JSON array of rows: positional arrays or objects
// keyed by markup label.
func readRowsFile(path string) ([]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	var rows []any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding rows JSON: %w", err)
	}
	return rows, nil
}

func feedRows(p *parser.Parser, rows []any) error {
	for i, raw := range rows {
		switch row := raw.(type) {
		case []any:
			if err := p.FeedRow(row); err != nil {
				return err
			}
		case map[string]any:
			if err := p.FeedRowMap(row); err != nil {
				return err
			}
		default:
			return fmt.Errorf("row %d is neither an array nor an object", i)
		}
	}
	return nil
}

// outputForest serializes the parse result as canonical JSON.
func outputForest(formatter *OutputFormatter, p *parser.Parser) error {
	payload, err := record.MarshalCanonical(p.Forest())
	if err != nil {
		return WrapExitError(ExitFailure, "serializing records", err)
	}
	formatter.VerboseLog("Parsed %d record(s), %d referred record(s)",
		len(p.Records()), len(p.ReferredRecords()))
	return formatter.SuccessJSON(payload)
}
