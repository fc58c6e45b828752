package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/roach88/rsparser/internal/feed"
	"github.com/roach88/rsparser/internal/parser"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	var topType string
	var markup []string
	var dbPath string
	var query string

	cmd := &cobra.Command{
		Use:   "query <types-dir>",
		Short: "Execute a SQL query against SQLite and parse the result set",
		Long: `Execute a query against a SQLite database and parse its result set
into hierarchical records.

The query's column order must match the markup column order; rsparser
performs no SQL generation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, cmd, args[0], topType, markup, dbPath, query)
		},
	}

	cmd.Flags().StringVar(&topType, "type", "", "top record type name (required)")
	cmd.Flags().StringSliceVar(&markup, "markup", nil, "comma-separated column labels (required)")
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the SQLite database (required)")
	cmd.Flags().StringVar(&query, "sql", "", "SQL query to execute (required)")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("markup")
	cmd.MarkFlagRequired("db")
	cmd.MarkFlagRequired("sql")

	return cmd
}

func runQuery(opts *RootOptions, cmd *cobra.Command, typesDir, topType string, markup []string, dbPath, query string) error {
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

	if _, err := os.Stat(dbPath); err != nil {
		msg := fmt.Sprintf("database not found: %s", dbPath)
		formatter.Error(ErrCodeNotFound, msg)
		return WrapExitError(ExitCommandError, msg, err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		formatter.Error(ErrCodeScanError, err.Error())
		return WrapExitError(ExitCommandError, "opening database", err)
	}
	defer db.Close()

	fed, err := feed.Query(cmd.Context(), db, query, nil, p)
	if err != nil {
		var de *parser.DataError
		if errors.As(err, &de) {
			formatter.Error(string(de.Code), de.Error())
			return WrapExitError(ExitFailure, "parsing result set", err)
		}
		formatter.Error(ErrCodeScanError, err.Error())
		return WrapExitError(ExitCommandError, "executing query", err)
	}
	formatter.VerboseLog("Fed %d row(s) from %s", fed, dbPath)

	return outputForest(formatter, p)
}
