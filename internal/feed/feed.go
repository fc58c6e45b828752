// Package feed scans database/sql result sets into a result set parser.
//
// The feed layer is driver glue only: it performs no query generation and
// no value transformation. Cells reach the parser exactly as the driver
// produced them; the extractor registry owns typing.
package feed

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bdlm/log"
	"github.com/google/uuid"

	"github.com/roach88/rsparser/internal/parser"
)

// RunToken returns a time-sortable unique token identifying one feed run.
// Uses github.com/google/uuid package for RFC 4122 compliant UUIDs.
func RunToken() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FeedAll scans every row of an open result set into a positional vector
// and feeds it to the parser. Returns the number of rows fed.
//
// The result set's column count must equal the parser's markup length; the
// column names themselves are not consulted.
func FeedAll(p *parser.Parser, rows *sql.Rows) (int, error) {
	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("reading result set columns: %w", err)
	}
	if len(cols) != len(p.Markup()) {
		return 0, fmt.Errorf("result set has %d columns, markup has %d", len(cols), len(p.Markup()))
	}

	fed := 0
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fed, fmt.Errorf("scanning row %d: %w", fed, err)
		}
		if err := p.FeedRow(vals); err != nil {
			return fed, err
		}
		fed++
	}
	if err := rows.Err(); err != nil {
		return fed, fmt.Errorf("iterating result set: %w", err)
	}
	return fed, nil
}

// Query executes a query and feeds its result set to the parser.
// Returns the number of rows fed.
func Query(ctx context.Context, db *sql.DB, query string, args []any, p *parser.Parser) (int, error) {
	token := RunToken()
	log.WithFields(log.Fields{
		"run":   token,
		"type":  p.TopRecordTypeName(),
		"query": query,
	}).Debug("feeding result set")

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	fed, err := FeedAll(p, rows)
	if err != nil {
		log.WithFields(log.Fields{"run": token, "rows": fed}).Error(err)
		return fed, err
	}

	log.WithFields(log.Fields{
		"run":     token,
		"rows":    fed,
		"records": len(p.Records()),
	}).Debug("result set fed")
	return fed, nil
}
