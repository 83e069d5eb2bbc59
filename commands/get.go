package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"
)

var GetCmd = Get{
	command: command{
		workdir:     "",
		credentials: "",
		subject:     "",
		debug:       false,
	},

	group: "",
	file:  time.Now().Format("2006-01-02T150405.tsv"),
}

type Get struct {
	command
	group string
	file  string
}

func (cmd *Get) Name() string {
	return "get"
}

func (cmd *Get) Description() string {
	return "Retrieves the membership of a Google group and stores it to a local file"
}

func (cmd *Get) Usage() string {
	return "--credentials <file> --group <group> --file <file>"
}

func (cmd *Get) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] get [options] --group <group> --file <file>\n", APP)
	fmt.Println()
	fmt.Println("  Downloads the members of a Google group to a TSV file")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Println(`    gcp-to-groups --debug get --credentials "credentials.json" \`)
	fmt.Println(`                              --subject "admin@example.org" \`)
	fmt.Println(`                              --group "members@example.org" \`)
	fmt.Println(`                              --file "members.tsv"`)
	fmt.Println()
}

func (cmd *Get) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("get")

	flagset.StringVar(&cmd.group, "group", cmd.group, "Group email address e.g. 'members@example.org'")
	flagset.StringVar(&cmd.file, "file", cmd.file, "TSV file name. Defaults to '<yyyy-mm-ddTHHmmss>.tsv'")

	return flagset
}

func (cmd *Get) Execute(args ...any) error {
	options := args[0].(*Options)

	// ... check parameters
	if strings.TrimSpace(cmd.group) == "" {
		return fmt.Errorf("--group is a required option")
	}

	if strings.TrimSpace(cmd.file) == "" {
		return fmt.Errorf("--file is a required option")
	}

	conf, err := cmd.configure(options)
	if err != nil {
		return err
	}

	if cmd.debug {
		debugf("group:%s  file:%s", cmd.group, cmd.file)
	}

	// ... retrieve members
	ctx := context.Background()

	dir, err := cmd.directory(ctx, conf)
	if err != nil {
		return err
	}

	members, err := dir.Members(ctx, cmd.group)
	if err != nil {
		return fmt.Errorf("unable to retrieve members of %v (%v)", cmd.group, err)
	}

	if err := write(cmd.file, func(w io.Writer) error { return membersToTSV(w, members) }); err != nil {
		return fmt.Errorf("error creating TSV file (%v)", err)
	}

	infof("Retrieved %v members of %v to file %s", len(members), cmd.group, cmd.file)

	return nil
}
