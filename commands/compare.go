package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BLloyd97/GCP-to-Groups/reconcile"
	"github.com/BLloyd97/GCP-to-Groups/warehouse"
)

var CompareCmd = Compare{
	command: command{
		workdir:     "",
		credentials: "",
		subject:     "",
		debug:       false,
	},

	file:   "",
	emails: "",
}

type Compare struct {
	command
	adhoc

	file   string
	emails string
}

func (cmd *Compare) Name() string {
	return "compare"
}

func (cmd *Compare) Description() string {
	return "Compares the membership of one or more Google groups to a data warehouse query"
}

func (cmd *Compare) Usage() string {
	return "--group <group> --owner <email> --query <sql> [--file <file>]"
}

func (cmd *Compare) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] [--config <file>] compare [options]\n", APP)
	fmt.Println()
	fmt.Println("  Lists the changes a sync would make to each group without changing anything.")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Println(`    gcp-to-groups compare --credentials "credentials.json" \`)
	fmt.Println(`                          --group "members@example.org" \`)
	fmt.Println(`                          --owner "secretary@example.org" \`)
	fmt.Println(`                          --query "SELECT email FROM members.current" \`)
	fmt.Println(`                          --file "members.tsv"`)
	fmt.Println()
}

func (cmd *Compare) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("compare")

	cmd.adhoc.flags(flagset)

	flagset.StringVar(&cmd.file, "file", cmd.file, "TSV file for the comparison. Defaults to the console")
	flagset.StringVar(&cmd.emails, "emails", cmd.emails, "TSV file with the wanted email addresses, used instead of the warehouse query")

	return flagset
}

func (cmd *Compare) Execute(args ...any) error {
	options := args[0].(*Options)

	conf, err := cmd.configure(options)
	if err != nil {
		return err
	}

	cmd.adhoc.apply(conf)

	if strings.TrimSpace(cmd.emails) != "" {
		for i := range conf.Sets {
			conf.Sets[i].Query = cmd.emails
		}
	}

	if err := conf.Validate(); err != nil {
		return err
	}

	list, err := jobs(conf)
	if err != nil {
		return err
	}

	ctx := context.Background()

	var source warehouse.Source
	if strings.TrimSpace(cmd.emails) != "" {
		source = &tsvSource{file: cmd.emails}
	} else if source, err = cmd.warehouse(ctx, conf); err != nil {
		return err
	}

	defer source.Close()

	dir, err := cmd.directory(ctx, conf)
	if err != nil {
		return err
	}

	plans := []*reconcile.Plan{}
	for _, j := range list {
		p, _, err := plan(ctx, source, dir, j)
		if err != nil {
			return fmt.Errorf("%v: %v", j.set.Group, err)
		}

		infof("%v  delete:%v  owner:%v  insert:%v  unchanged:%v  protected:%v",
			p.Group, len(p.Deletes), len(p.Owner), len(p.Inserts), len(p.Unchanged), len(p.Kept))

		plans = append(plans, p)
	}

	f := func(w io.Writer) error {
		return plansToTSV(w, plans)
	}

	if strings.TrimSpace(cmd.file) == "" {
		return f(os.Stdout)
	}

	if err := write(cmd.file, f); err != nil {
		return err
	}

	infof("Stored comparison to file %s", cmd.file)

	return nil
}

// tsvSource answers every query with the contents of a TSV file.
type tsvSource struct {
	file string
}

func (s *tsvSource) Query(ctx context.Context, query string) (*warehouse.Table, error) {
	f, err := os.Open(s.file)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	return tsvToTable(f)
}

func (s *tsvSource) Close() error {
	return nil
}
