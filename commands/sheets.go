package commands

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"google.golang.org/api/sheets/v4"

	"github.com/BLloyd97/GCP-to-Groups/notify"
)

const TIMESTAMP = "2006-01-02 15:04:05"

var LOG_COLUMNS = map[string]int{
	"timestamp": 0,
	"run":       1,
	"group":     2,
	"unchanged": 3,
	"updated":   4,
	"added":     5,
	"deleted":   6,
	"failed":    7,
	"errors":    8,
}

type logSheet struct {
	google      *sheets.Service
	spreadsheet *sheets.Spreadsheet
	area        string
	retention   uint
}

func newLogSheet(ctx context.Context, google *sheets.Service, url string, area string, retention uint) (*logSheet, error) {
	id, err := spreadsheetID(url)
	if err != nil {
		return nil, err
	}

	spreadsheet, err := getSpreadsheet(google, id, ctx)
	if err != nil {
		return nil, err
	}

	if _, err := getSheet(spreadsheet, area); err != nil {
		return nil, err
	}

	return &logSheet{
		google:      google,
		spreadsheet: spreadsheet,
		area:        area,
		retention:   retention,
	}, nil
}

// update adds one row per group to the log worksheet, matching the worksheet columns by header name.
func (l *logSheet) update(ctx context.Context, run notify.Run) error {
	response, err := l.google.Spreadsheets.Values.Get(l.spreadsheet.SpreadsheetId, l.area).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to retrieve column headers from Log sheet (%v)", err)
	}

	index := LOG_COLUMNS
	if len(response.Values) > 0 {
		index = logIndex(response.Values[0])

		debugf("Log sheet column index: %v", index)
	}

	rows := sheets.ValueRange{
		Values: logRows(index, run),
	}

	if _, err := l.google.Spreadsheets.Values.Append(l.spreadsheet.SpreadsheetId, l.area, &rows).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("error writing log to Google Sheets (%w)", err)
	}

	return nil
}

// prune deletes the log rows older than the retention period.
func (l *logSheet) prune(ctx context.Context) error {
	sheet, err := getSheet(l.spreadsheet, l.area)
	if err != nil {
		return err
	}

	response, err := l.google.Spreadsheets.Values.Get(l.spreadsheet.SpreadsheetId, l.area).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to retrieve data from Log sheet (%v)", err)
	}

	cutoff := retentionCutoff(time.Now(), l.retention)
	index := LOG_COLUMNS
	if len(response.Values) > 0 {
		index = logIndex(response.Values[0])
	}

	infof("Pruning log records from before %v", cutoff.Format("2006-01-02"))

	rows := expired(response.Values, index["timestamp"], origin(l.area), cutoff)
	ranges := pruneRanges(rows)
	deleted := 0

	if len(ranges) > 0 {
		rq := sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{},
		}

		for _, r := range ranges {
			start, end := r[0], r[1]

			rq.Requests = append(rq.Requests, &sheets.Request{
				DeleteDimension: &sheets.DeleteDimensionRequest{
					Range: &sheets.DimensionRange{
						SheetId:    sheet.Properties.SheetId,
						Dimension:  "ROWS",
						StartIndex: int64(start - deleted),
						EndIndex:   int64(end - deleted + 1),
					},
				},
			})

			deleted += end - start + 1
		}

		if _, err := l.google.Spreadsheets.BatchUpdate(l.spreadsheet.SpreadsheetId, &rq).Context(ctx).Do(); err != nil {
			return err
		}
	}

	infof("Pruned %d log records from log sheet", deleted)

	return nil
}

func logIndex(header []any) map[string]int {
	index := map[string]int{}

	for i, v := range header {
		k := normalise(fmt.Sprintf("%v", v))
		if _, ok := LOG_COLUMNS[k]; ok {
			index[k] = i
		}
	}

	return index
}

func logRows(index map[string]int, run notify.Run) [][]any {
	columns := 0
	for _, v := range index {
		if v >= columns {
			columns = v + 1
		}
	}

	timestamp := run.Started.Format(TIMESTAMP)
	rows := [][]any{}

	for _, v := range run.Sets {
		row := make([]any, columns)

		for i := 0; i < columns; i++ {
			row[i] = ""
		}

		set := func(column string, value any) {
			if ix, ok := index[column]; ok {
				row[ix] = value
			}
		}

		set("timestamp", timestamp)
		set("run", run.ID)
		set("group", v.Group)
		set("unchanged", v.Unchanged)
		set("updated", v.Updated)
		set("added", v.Added)
		set("deleted", v.Deleted)
		set("failed", v.Failed)
		set("errors", v.Errored)

		rows = append(rows, row)
	}

	return rows
}

// retentionCutoff returns local midnight at the start of the oldest day that is retained.
func retentionCutoff(now time.Time, retention uint) time.Time {
	days := int(retention) - 1
	if days < 0 {
		days = 0
	}

	before := now.In(time.Local).AddDate(0, 0, -days)

	return time.Date(before.Year(), before.Month(), before.Day(), 0, 0, 0, 0, time.Local)
}

// origin returns the zero-based sheet row of the first row in an A1 range e.g. 2 for 'Log!A3:I'.
func origin(area string) int {
	match := regexp.MustCompile(`![a-zA-Z]*([0-9]+)`).FindStringSubmatch(area)
	if len(match) < 2 {
		return 0
	}

	row, err := strconv.Atoi(match[1])
	if err != nil || row < 1 {
		return 0
	}

	return row - 1
}

// expired returns the sheet rows of the records logged before the cutoff. offset is the sheet row of
// values[0].
func expired(values [][]any, column int, offset int, cutoff time.Time) []int {
	list := []int{}

	for row, record := range values {
		if column >= len(record) {
			continue
		}

		s, ok := record[column].(string)
		if !ok {
			continue
		}

		timestamp, err := time.ParseInLocation(TIMESTAMP, s, time.Local)
		if err == nil && timestamp.Before(cutoff) {
			list = append(list, offset+row)
		}
	}

	return list
}

// pruneRanges collapses row numbers into ascending [start,end] runs of contiguous rows.
func pruneRanges(rows []int) [][2]int {
	ranges := [][2]int{}
	if len(rows) == 0 {
		return ranges
	}

	list := append([]int{}, rows...)
	sort.Ints(list)

	start := list[0]
	last := list[0]
	for _, row := range list[1:] {
		if row == last {
			continue
		}

		if row != last+1 {
			ranges = append(ranges, [2]int{start, last})
			start = row
		}

		last = row
	}

	return append(ranges, [2]int{start, last})
}
