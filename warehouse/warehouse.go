// Package warehouse runs the membership query against a data warehouse.
//
// BigQuery is queried through the REST API; Postgres (and wire compatible warehouses), Trino and DuckDB
// are queried through database/sql.
package warehouse

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"google.golang.org/api/option"
)

// Table is a query result with every value rendered as a string.
type Table struct {
	Header  []string
	Records [][]string
}

type Source interface {
	Query(ctx context.Context, sql string) (*Table, error)
	Close() error
}

type Options struct {
	Driver   string
	DSN      string
	Project  string
	Location string
	Timeout  time.Duration
}

const DEFAULT_COLUMN = "email"

// Open returns the source for the configured driver. The HTTP client is only used by BigQuery and is
// expected to carry the warehouse credentials.
func Open(ctx context.Context, options Options, client *http.Client, opts ...option.ClientOption) (Source, error) {
	switch driver := strings.ToLower(strings.TrimSpace(options.Driver)); driver {
	case "", "bigquery":
		if strings.TrimSpace(options.Project) == "" {
			return nil, fmt.Errorf("BigQuery requires a project ID")
		}

		return NewBigQuery(ctx, client, options.Project, options.Location, options.Timeout, opts...)

	case "pgx", "postgres", "postgresql":
		return NewSQL("pgx", options.DSN)

	case "trino", "duckdb":
		return NewSQL(driver, options.DSN)

	default:
		return nil, fmt.Errorf("unsupported warehouse driver '%s'", options.Driver)
	}
}

// Emails extracts the email column from a query result. The column is matched case-insensitively and a
// single column result is used regardless of its name. Addresses are trimmed, lower-cased and de-duplicated
// in query order. Blank values are skipped silently; malformed values are skipped and reported in the
// returned warnings.
func Emails(table *Table, column string) ([]string, []error, error) {
	if table == nil || len(table.Header) == 0 {
		return nil, nil, fmt.Errorf("empty query result")
	}

	if strings.TrimSpace(column) == "" {
		column = DEFAULT_COLUMN
	}

	index := -1
	for i, h := range table.Header {
		if normalise(h) == normalise(column) {
			index = i
			break
		}
	}

	if index < 0 && len(table.Header) == 1 {
		index = 0
	}

	if index < 0 {
		return nil, nil, fmt.Errorf("query result has no '%s' column (columns: %v)", column, strings.Join(table.Header, ", "))
	}

	emails := []string{}
	warnings := []error{}
	seen := map[string]bool{}

	for row, record := range table.Records {
		if index >= len(record) {
			continue
		}

		v := strings.TrimSpace(record[index])
		if v == "" {
			continue
		}

		address, err := mail.ParseAddress(v)
		if err != nil || !strings.Contains(address.Address, "@") {
			warnings = append(warnings, fmt.Errorf("row %d: invalid email address '%s'", row+1, v))
			continue
		}

		email := strings.ToLower(address.Address)
		if !seen[email] {
			seen[email] = true
			emails = append(emails, email)
		}
	}

	return emails, warnings, nil
}

func normalise(v string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(v), " ", ""))
}
