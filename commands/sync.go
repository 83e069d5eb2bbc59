package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BLloyd97/GCP-to-Groups/archive"
	"github.com/BLloyd97/GCP-to-Groups/config"
	"github.com/BLloyd97/GCP-to-Groups/notify"
	"github.com/BLloyd97/GCP-to-Groups/reconcile"
)

var SyncCmd = Sync{
	command: command{
		workdir:     "",
		credentials: "",
		subject:     "",
		debug:       false,
	},

	spreadsheet:  "",
	logRange:     "",
	logRetention: 0,
	nolog:        false,
	workers:      0,
	dryrun:       false,
}

type Sync struct {
	command
	adhoc

	spreadsheet  string
	logRange     string
	logRetention uint
	nolog        bool
	workers      int
	dryrun       bool
}

func (cmd *Sync) Name() string {
	return "sync"
}

func (cmd *Sync) Description() string {
	return "Updates the membership of one or more Google groups from a data warehouse query"
}

func (cmd *Sync) Usage() string {
	return "--group <group> --owner <email> --query <sql>"
}

func (cmd *Sync) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] [--config <file>] sync [options]\n", APP)
	fmt.Println()
	fmt.Println("  Retrieves a list of email addresses from a data warehouse and updates the group membership to match.")
	fmt.Println("  The group owner (and any protected members) are never removed.")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Println(`    gcp-to-groups sync --credentials "credentials.json" \`)
	fmt.Println(`                       --subject "admin@example.org" \`)
	fmt.Println(`                       --group "members@example.org" \`)
	fmt.Println(`                       --owner "secretary@example.org" \`)
	fmt.Println(`                       --query "SELECT email FROM members.current"`)
	fmt.Println()
	fmt.Println(`    gcp-to-groups --config groups.yaml sync --dryrun`)
	fmt.Println()
}

func (cmd *Sync) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("sync")

	cmd.adhoc.flags(flagset)

	flagset.StringVar(&cmd.spreadsheet, "log-spreadsheet", cmd.spreadsheet, "URL of the Google Sheets spreadsheet for the sync log")
	flagset.StringVar(&cmd.logRange, "log-range", cmd.logRange, "Spreadsheet range for the sync log. Defaults to 'Log!A1:I'")
	flagset.UintVar(&cmd.logRetention, "log-retention", cmd.logRetention, "Log sheet records older than 'log-retention' days are automatically pruned. Defaults to 30")
	flagset.BoolVar(&cmd.nolog, "no-log", cmd.nolog, "Disables writing a summary to the 'log' worksheet")
	flagset.IntVar(&cmd.workers, "workers", cmd.workers, "Maximum number of concurrent membership updates. Defaults to 4")
	flagset.BoolVar(&cmd.dryrun, "dryrun", cmd.dryrun, "Simulates a sync without making any changes to the groups")

	return flagset
}

func (cmd *Sync) Execute(args ...any) error {
	options := args[0].(*Options)

	conf, err := cmd.configure(options)
	if err != nil {
		return err
	}

	cmd.override(conf)

	if err := conf.Validate(); err != nil {
		return err
	}

	list, err := jobs(conf)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)

	defer cancel()

	// ... initialise clients
	source, err := cmd.warehouse(ctx, conf)
	if err != nil {
		return err
	}

	defer source.Close()

	dir, err := cmd.directory(ctx, conf)
	if err != nil {
		return err
	}

	store, err := archive.New(ctx, conf.Archive, archive.AWS{
		Region:          conf.AWS.Region,
		Endpoint:        conf.AWS.Endpoint,
		AccessKeyID:     conf.AWS.AccessKeyID,
		SecretAccessKey: conf.AWS.SecretAccessKey,
	})
	if err != nil {
		return err
	}

	// ... synchronise groups
	run := notify.Run{
		ID:      uuid.NewString(),
		Started: time.Now(),
		DryRun:  cmd.dryrun,
		Sets:    []reconcile.Summary{},
	}

	infof("sync run %v  sets:%v  dryrun:%v", run.ID, len(list), cmd.dryrun)

	opts := reconcile.Options{
		Workers: conf.Workers,
		DryRun:  cmd.dryrun,
	}

	for _, j := range list {
		report, err := synchronise(ctx, source, dir, store, j, opts, run.Started)
		if err != nil {
			errorf("%v  %v", j.set.Group, err)
			run.Errors = append(run.Errors, fmt.Sprintf("%v: %v", j.set.Group, err))
			continue
		}

		summary := reconcile.Summarize(*report)
		run.Sets = append(run.Sets, summary)

		format := "%v  unchanged:%v  updated:%v  added:%v  deleted:%v  failed:%v  errors:%v"
		infof(format, summary.Group, summary.Unchanged, summary.Updated, summary.Added, summary.Deleted, summary.Failed, summary.Errored)

		for _, err := range report.Errors {
			errorf("%v  %v", j.set.Group, err)
			run.Errors = append(run.Errors, fmt.Sprintf("%v: %v", j.set.Group, err))
		}
	}

	run.Finished = time.Now()

	// ... log sheet
	if !cmd.nolog && strings.TrimSpace(conf.Log.Spreadsheet) != "" {
		if err := cmd.log(ctx, conf, run); err != nil {
			errorf("%v", err)
			run.Errors = append(run.Errors, err.Error())
		}
	}

	// ... notifications
	cmd.notify(ctx, conf, run)

	if run.Failed() {
		return fmt.Errorf("sync run %v completed with errors", run.ID)
	}

	return nil
}

func (cmd *Sync) override(conf *config.Config) {
	cmd.adhoc.apply(conf)

	if strings.TrimSpace(cmd.spreadsheet) != "" {
		conf.Log.Spreadsheet = cmd.spreadsheet
	}

	if strings.TrimSpace(cmd.logRange) != "" {
		conf.Log.Range = cmd.logRange
	}

	if cmd.logRetention > 0 {
		conf.Log.Retention = cmd.logRetention
	}

	if cmd.workers > 0 {
		conf.Workers = cmd.workers
	}
}

func (cmd *Sync) log(ctx context.Context, conf *config.Config, run notify.Run) error {
	google, err := cmd.sheets(ctx, conf)
	if err != nil {
		return err
	}

	sheet, err := newLogSheet(ctx, google, conf.Log.Spreadsheet, conf.Log.Range, conf.Log.Retention)
	if err != nil {
		return err
	}

	if err := sheet.update(ctx, run); err != nil {
		return err
	}

	return sheet.prune(ctx)
}

// notify publishes the run report and, if the run failed, sends an alert. Notification errors are
// logged but do not fail the run.
func (cmd *Sync) notify(ctx context.Context, conf *config.Config, run notify.Run) {
	if url := strings.TrimSpace(conf.Notify.NATS); url != "" {
		nc := notify.Nats{
			URL:     url,
			Subject: conf.Notify.Subject,
		}

		if err := nc.Publish(ctx, run); err != nil {
			warnf("%v", err)
		} else if cmd.debug {
			debugf("published run report to %v", conf.Notify.Subject)
		}
	}

	if run.Failed() && conf.Notify.Alert.From != "" && len(conf.Notify.Alert.To) > 0 {
		ses := notify.SES{
			From:   conf.Notify.Alert.From,
			To:     conf.Notify.Alert.To,
			Region: conf.AWS.Region,
		}

		if err := ses.Alert(ctx, run); err != nil {
			warnf("%v", err)
		} else {
			infof("sent sync error alert to %v", strings.Join(conf.Notify.Alert.To, ","))
		}
	}
}
