package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

var QueryCmd = Query{
	command: command{
		workdir:     "",
		credentials: "",
		subject:     "",
		debug:       false,
	},

	query: "",
	file:  "",
}

type Query struct {
	command
	query string
	file  string
}

func (cmd *Query) Name() string {
	return "query"
}

func (cmd *Query) Description() string {
	return "Runs a data warehouse query and stores the result to a local file"
}

func (cmd *Query) Usage() string {
	return "--query <sql> [--file <file>]"
}

func (cmd *Query) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] [--config <file>] query [options] --query <sql>\n", APP)
	fmt.Println()
	fmt.Println("  Runs a query against the configured data warehouse and writes the result as TSV. A sync set")
	fmt.Println("  query can be checked with this command before it is used to update a group.")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Println(`    gcp-to-groups query --credentials "credentials.json" \`)
	fmt.Println(`                        --query "SELECT email FROM members.current" \`)
	fmt.Println(`                        --file "members.tsv"`)
	fmt.Println()
}

func (cmd *Query) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("query")

	flagset.StringVar(&cmd.query, "query", cmd.query, "SQL query")
	flagset.StringVar(&cmd.file, "file", cmd.file, "TSV file for the query result. Defaults to the console")

	return flagset
}

func (cmd *Query) Execute(args ...any) error {
	options := args[0].(*Options)

	if strings.TrimSpace(cmd.query) == "" {
		return fmt.Errorf("--query is a required option")
	}

	conf, err := cmd.configure(options)
	if err != nil {
		return err
	}

	ctx := context.Background()

	source, err := cmd.warehouse(ctx, conf)
	if err != nil {
		return err
	}

	defer source.Close()

	table, err := source.Query(ctx, cmd.query)
	if err != nil {
		return fmt.Errorf("query failed (%v)", err)
	}

	f := func(w io.Writer) error {
		return tableToTSV(w, table)
	}

	if strings.TrimSpace(cmd.file) == "" {
		return f(os.Stdout)
	}

	if err := write(cmd.file, f); err != nil {
		return fmt.Errorf("error creating TSV file (%v)", err)
	}

	infof("Retrieved %v records to file %s", len(table.Records), cmd.file)

	return nil
}
