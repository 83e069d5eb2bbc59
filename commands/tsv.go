package commands

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/BLloyd97/GCP-to-Groups/directory"
	"github.com/BLloyd97/GCP-to-Groups/reconcile"
	"github.com/BLloyd97/GCP-to-Groups/warehouse"
)

func membersToTSV(f io.Writer, members []directory.Member) error {
	records := [][]string{
		{"Email", "Role", "Type", "Status"},
	}

	for _, m := range members {
		records = append(records, []string{m.Email, m.Role, m.Type, m.Status})
	}

	return writeTSV(f, records)
}

func tableToTSV(f io.Writer, table *warehouse.Table) error {
	if table == nil || len(table.Header) == 0 {
		return fmt.Errorf("query returned no columns")
	}

	records := [][]string{table.Header}
	for _, record := range table.Records {
		row := make([]string, len(table.Header))
		copy(row, record)

		records = append(records, row)
	}

	return writeTSV(f, records)
}

// plansToTSV lists each plan in application order followed by the members it leaves alone.
func plansToTSV(f io.Writer, plans []*reconcile.Plan) error {
	records := [][]string{
		{"Group", "Action", "Email", "Role"},
	}

	for _, plan := range plans {
		for _, action := range plan.Actions() {
			records = append(records, []string{plan.Group, action.Op.String(), action.Email, action.Role})
		}

		for _, email := range plan.Unchanged {
			records = append(records, []string{plan.Group, "unchanged", email, ""})
		}

		for _, email := range plan.Kept {
			records = append(records, []string{plan.Group, "protected", email, ""})
		}
	}

	return writeTSV(f, records)
}

// tsvToTable reads a TSV file with a header row. Short rows are padded to the header width.
func tsvToTable(f io.Reader) (*warehouse.Table, error) {
	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("TSV file is empty")
	}

	table := warehouse.Table{
		Header:  records[0],
		Records: [][]string{},
	}

	for _, record := range records[1:] {
		row := make([]string, len(table.Header))
		copy(row, record)

		table.Records = append(table.Records, row)
	}

	return &table, nil
}

func writeTSV(f io.Writer, records [][]string) error {
	w := csv.NewWriter(f)
	w.Comma = '\t'

	for _, record := range records {
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()

	return w.Error()
}
