package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/BLloyd97/GCP-to-Groups/directory"
)

const DEFAULT_WORKERS = 4

type Options struct {
	Workers int
	DryRun  bool
}

type Report struct {
	Group     string
	DryRun    bool
	Unchanged []string
	Updated   []string
	Added     []string
	Deleted   []string
	Failed    []string
	Errors    []error
}

type Summary struct {
	Group     string `json:"group"`
	Unchanged int    `json:"unchanged"`
	Updated   int    `json:"updated"`
	Added     int    `json:"added"`
	Deleted   int    `json:"deleted"`
	Failed    int    `json:"failed"`
	Errored   int    `json:"errors"`
}

// Apply executes a plan against a directory. Failed calls are recorded in the report and do not stop the
// remaining changes. The phases (deletes, owner, inserts) run in sequence; the actions within a phase are
// fanned out over at most options.Workers concurrent calls.
func Apply(ctx context.Context, dir directory.Directory, plan *Plan, options Options) Report {
	report := Report{
		Group:     plan.Group,
		DryRun:    options.DryRun,
		Unchanged: append(append([]string{}, plan.Unchanged...), plan.Kept...),
		Updated:   []string{},
		Added:     []string{},
		Deleted:   []string{},
		Failed:    []string{},
		Errors:    []error{},
	}

	workers := options.Workers
	if workers < 1 {
		workers = DEFAULT_WORKERS
	}

	var guard sync.Mutex

	record := func(action Action, err error) {
		guard.Lock()
		defer guard.Unlock()

		switch {
		case err == nil && action.Op == Delete:
			report.Deleted = append(report.Deleted, action.Email)

		case err == nil && action.Op == Promote:
			report.Updated = append(report.Updated, action.Email)

		case err == nil && action.Op == Insert:
			report.Added = append(report.Added, action.Email)

		case action.Op == Insert && errors.Is(err, directory.ErrExists):
			report.Unchanged = append(report.Unchanged, action.Email)

		case action.Op == Delete && errors.Is(err, directory.ErrNotFound):
			report.Deleted = append(report.Deleted, action.Email)

		default:
			report.Failed = append(report.Failed, action.Email)
			report.Errors = append(report.Errors, err)
		}
	}

	for _, phase := range [][]Action{plan.Deletes, plan.Owner, plan.Inserts} {
		var g errgroup.Group

		g.SetLimit(workers)

		for _, action := range phase {
			g.Go(func() error {
				if options.DryRun {
					record(action, nil)
				} else if err := ctx.Err(); err != nil {
					record(action, err)
				} else {
					record(action, execute(ctx, dir, plan.Group, action))
				}

				return nil
			})
		}

		g.Wait()
	}

	sort.Strings(report.Unchanged)
	sort.Strings(report.Updated)
	sort.Strings(report.Added)
	sort.Strings(report.Deleted)
	sort.Strings(report.Failed)

	return report
}

func execute(ctx context.Context, dir directory.Directory, group string, action Action) error {
	switch action.Op {
	case Delete:
		return dir.Delete(ctx, group, action.Email)

	case Promote:
		return dir.Update(ctx, group, directory.Member{Email: action.Email, Role: action.Role})

	default:
		return dir.Insert(ctx, group, directory.Member{Email: action.Email, Role: action.Role})
	}
}

func Summarize(report Report) Summary {
	return Summary{
		Group:     report.Group,
		Unchanged: len(report.Unchanged),
		Updated:   len(report.Updated),
		Added:     len(report.Added),
		Deleted:   len(report.Deleted),
		Failed:    len(report.Failed),
		Errored:   len(report.Errors),
	}
}
