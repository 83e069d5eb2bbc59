package warehouse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Scopes required to run queries.
var Scopes = []string{
	bigquery.BigqueryScope,
}

const DEFAULT_TIMEOUT = 5 * time.Minute

type BigQuery struct {
	service  *bigquery.Service
	project  string
	location string
	timeout  time.Duration
	poll     time.Duration
}

func NewBigQuery(ctx context.Context, client *http.Client, project, location string, timeout time.Duration, opts ...option.ClientOption) (*BigQuery, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)

	service, err := bigquery.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create BigQuery client (%w)", err)
	}

	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}

	return &BigQuery{
		service:  service,
		project:  project,
		location: location,
		timeout:  timeout,
		poll:     10 * time.Second,
	}, nil
}

// Query runs a standard SQL query and waits for the complete result, following result pages.
func (bq *BigQuery) Query(ctx context.Context, sql string) (*Table, error) {
	ctx, cancel := context.WithTimeout(ctx, bq.timeout)
	defer cancel()

	rq := bigquery.QueryRequest{
		Query:        sql,
		UseLegacySql: googleapi.Bool(false),
		Location:     bq.location,
		TimeoutMs:    bq.poll.Milliseconds(),
	}

	response, err := bq.service.Jobs.Query(bq.project, &rq).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("BigQuery query failed (%w)", err)
	}

	table := Table{
		Header:  header(response.Schema),
		Records: records(response.Rows),
	}

	if response.JobComplete && response.PageToken == "" {
		return &table, nil
	}

	if response.JobReference == nil {
		return nil, fmt.Errorf("BigQuery query response is missing a job reference")
	}

	// ... incomplete or paged result: (re)read from the job results
	job := response.JobReference
	location := job.Location
	if location == "" {
		location = bq.location
	}

	complete := response.JobComplete
	page := response.PageToken

	for !complete || page != "" {
		call := bq.service.Jobs.GetQueryResults(bq.project, job.JobId).
			TimeoutMs(bq.poll.Milliseconds()).
			Context(ctx)

		if location != "" {
			call.Location(location)
		}

		if page != "" {
			call.PageToken(page)
		}

		results, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("BigQuery job %v failed (%w)", job.JobId, err)
		}

		if !results.JobComplete {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("BigQuery job %v incomplete (%w)", job.JobId, err)
			}

			continue
		}

		if !complete {
			// ... first page of a job that was still running when the query call returned
			table.Header = header(results.Schema)
			complete = true
		}

		table.Records = append(table.Records, records(results.Rows)...)
		page = results.PageToken
	}

	return &table, nil
}

func (bq *BigQuery) Close() error {
	return nil
}

func header(schema *bigquery.TableSchema) []string {
	header := []string{}
	if schema != nil {
		for _, field := range schema.Fields {
			header = append(header, field.Name)
		}
	}

	return header
}

func records(rows []*bigquery.TableRow) [][]string {
	records := [][]string{}
	for _, row := range rows {
		record := make([]string, len(row.F))
		for i, cell := range row.F {
			if cell != nil && cell.V != nil {
				record[i] = fmt.Sprintf("%v", cell.V)
			}
		}

		records = append(records, record)
	}

	return records
}
