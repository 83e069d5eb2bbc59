package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/trinodb/trino-go-client/trino"
)

// SQL is a warehouse reached through a database/sql driver ('pgx', 'trino' or 'duckdb').
type SQL struct {
	driver string
	db     *sql.DB
}

func NewSQL(driver, dsn string) (*SQL, error) {
	if strings.TrimSpace(dsn) == "" && driver != "duckdb" {
		return nil, fmt.Errorf("%v warehouse requires a DSN", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v warehouse (%w)", driver, err)
	}

	return &SQL{
		driver: driver,
		db:     db,
	}, nil
}

func (s *SQL) Query(ctx context.Context, query string) (*Table, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%v query failed (%w)", s.driver, err)
	}

	defer rows.Close()

	return scan(rows)
}

func (s *SQL) Close() error {
	return s.db.Close()
}

type cursor interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scan(rows cursor) (*Table, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	table := Table{
		Header:  columns,
		Records: [][]string{},
	}

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		record := make([]string, len(columns))
		for i, v := range values {
			record[i] = stringify(v)
		}

		table.Records = append(table.Records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &table, nil
}

func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""

	case []byte:
		return string(value)

	case string:
		return value

	default:
		return fmt.Sprintf("%v", value)
	}
}
