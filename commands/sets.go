package commands

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/BLloyd97/GCP-to-Groups/archive"
	"github.com/BLloyd97/GCP-to-Groups/config"
	"github.com/BLloyd97/GCP-to-Groups/directory"
	"github.com/BLloyd97/GCP-to-Groups/reconcile"
	"github.com/BLloyd97/GCP-to-Groups/warehouse"
)

// adhoc is a sync set defined on the command line. If a group is given it replaces the configured sets,
// otherwise the owner, column, mode, protected members and allow-empty flags apply to every configured set.
type adhoc struct {
	group      string
	owner      string
	query      string
	column     string
	mode       string
	protect    string
	allowEmpty bool
}

type job struct {
	name   string
	query  string
	column string
	set    reconcile.Set
}

func (a *adhoc) flags(flagset *flag.FlagSet) {
	flagset.StringVar(&a.group, "group", a.group, "Group email address e.g. 'members@example.org'")
	flagset.StringVar(&a.owner, "owner", a.owner, "Group owner. The owner is never removed from the group")
	flagset.StringVar(&a.query, "query", a.query, "SQL query returning the email addresses of the group members")
	flagset.StringVar(&a.column, "column", a.column, "Query result column with the email addresses. Defaults to 'email'")
	flagset.StringVar(&a.mode, "mode", a.mode, "Reconciliation mode ('diff' or 'replace'). Defaults to 'diff'")
	flagset.StringVar(&a.protect, "protect", a.protect, "Comma separated list of members that are never removed")
	flagset.BoolVar(&a.allowEmpty, "allow-empty", a.allowEmpty, "Allows an empty query result to remove every member of the group")
}

func (a *adhoc) apply(conf *config.Config) {
	protect := []string{}
	for _, v := range strings.Split(a.protect, ",") {
		if v = strings.TrimSpace(v); v != "" {
			protect = append(protect, v)
		}
	}

	if strings.TrimSpace(a.group) != "" {
		conf.Sets = []config.Set{
			{
				Name:       a.group,
				Group:      a.group,
				Owner:      a.owner,
				Protect:    protect,
				Query:      a.query,
				Column:     a.column,
				Mode:       a.mode,
				AllowEmpty: a.allowEmpty,
			},
		}

		return
	}

	for i := range conf.Sets {
		set := &conf.Sets[i]

		if strings.TrimSpace(a.owner) != "" {
			set.Owner = a.owner
		}

		if strings.TrimSpace(a.column) != "" {
			set.Column = a.column
		}

		if strings.TrimSpace(a.mode) != "" {
			set.Mode = a.mode
		}

		if len(protect) > 0 {
			set.Protect = append(append([]string{}, set.Protect...), protect...)
		}

		if a.allowEmpty {
			set.AllowEmpty = true
		}
	}
}

func jobs(conf *config.Config) ([]job, error) {
	list := []job{}

	for _, s := range conf.Sets {
		mode, err := reconcile.ParseMode(s.Mode)
		if err != nil {
			return nil, fmt.Errorf("sync set '%s': %v", s.Name, err)
		}

		column := s.Column
		if strings.TrimSpace(column) == "" {
			column = warehouse.DEFAULT_COLUMN
		}

		list = append(list, job{
			name:   s.Name,
			query:  s.Query,
			column: column,
			set: reconcile.Set{
				Group:      strings.TrimSpace(s.Group),
				Owner:      strings.TrimSpace(s.Owner),
				Protected:  s.Protect,
				Mode:       mode,
				AllowEmpty: s.AllowEmpty,
			},
		})
	}

	return list, nil
}

// plan runs the job query, fetches the current group membership and computes the changes.
func plan(ctx context.Context, source warehouse.Source, dir directory.Directory, j job) (*reconcile.Plan, []directory.Member, error) {
	table, err := source.Query(ctx, j.query)
	if err != nil {
		return nil, nil, fmt.Errorf("query failed (%v)", err)
	}

	wanted, warnings, err := warehouse.Emails(table, j.column)
	if err != nil {
		return nil, nil, err
	}

	for _, w := range warnings {
		warnf("%v  %v", j.set.Group, w)
	}

	infof("%v  retrieved %v email addresses", j.set.Group, len(wanted))

	members, err := dir.Members(ctx, j.set.Group)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to retrieve group members (%w)", err)
	}

	infof("%v  group has %v members", j.set.Group, len(members))

	p, err := reconcile.NewPlan(j.set, members, wanted)
	if err != nil {
		return nil, nil, err
	}

	return p, members, nil
}

// synchronise plans a job, snapshots the current membership and applies the plan.
func synchronise(ctx context.Context, source warehouse.Source, dir directory.Directory, store archive.Store, j job, options reconcile.Options, timestamp time.Time) (*reconcile.Report, error) {
	p, members, err := plan(ctx, source, dir, j)
	if err != nil {
		return nil, err
	}

	if store != nil {
		var b bytes.Buffer
		if err := membersToTSV(&b, members); err != nil {
			return nil, err
		}

		key := fmt.Sprintf("%s/%s.tsv", j.set.Group, timestamp.Format("2006-01-02T150405"))
		if location, err := store.Put(ctx, key, bytes.NewReader(b.Bytes())); err != nil {
			return nil, fmt.Errorf("error storing membership snapshot (%v)", err)
		} else {
			infof("%v  stored membership snapshot to %v", j.set.Group, location)
		}
	}

	report := reconcile.Apply(ctx, dir, p, options)

	return &report, nil
}
