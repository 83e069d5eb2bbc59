package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/BLloyd97/GCP-to-Groups/archive"
	"github.com/BLloyd97/GCP-to-Groups/config"
	"github.com/BLloyd97/GCP-to-Groups/directory"
	"github.com/BLloyd97/GCP-to-Groups/reconcile"
	"github.com/BLloyd97/GCP-to-Groups/warehouse"
)

type source struct {
	table *warehouse.Table
	err   error
	query string
}

func (s *source) Query(ctx context.Context, query string) (*warehouse.Table, error) {
	s.query = query

	return s.table, s.err
}

func (s *source) Close() error {
	return nil
}

type group struct {
	members map[string]string
}

func (g *group) Members(ctx context.Context, key string) ([]directory.Member, error) {
	list := []directory.Member{}
	for k, v := range g.members {
		list = append(list, directory.Member{Email: k, Role: v, Type: "USER", Status: "ACTIVE"})
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Email < list[j].Email })

	return list, nil
}

func (g *group) Insert(ctx context.Context, key string, member directory.Member) error {
	if _, ok := g.members[member.Email]; ok {
		return directory.ErrExists
	}

	g.members[member.Email] = member.Role

	return nil
}

func (g *group) Update(ctx context.Context, key string, member directory.Member) error {
	if _, ok := g.members[member.Email]; !ok {
		return directory.ErrNotFound
	}

	g.members[member.Email] = member.Role

	return nil
}

func (g *group) Delete(ctx context.Context, key string, email string) error {
	if _, ok := g.members[email]; !ok {
		return directory.ErrNotFound
	}

	delete(g.members, email)

	return nil
}

func TestAdhocApply(t *testing.T) {
	conf := config.NewConfig()
	conf.Sets = []config.Set{{Name: "configured", Group: "configured@example.org"}}

	a := adhoc{
		group:   "list@example.org",
		owner:   "owner@example.org",
		query:   "SELECT email FROM members",
		mode:    "replace",
		protect: " admin@example.org, ,board@example.org",
	}

	a.apply(conf)

	expected := []config.Set{
		{
			Name:    "list@example.org",
			Group:   "list@example.org",
			Owner:   "owner@example.org",
			Protect: []string{"admin@example.org", "board@example.org"},
			Query:   "SELECT email FROM members",
			Mode:    "replace",
		},
	}

	if !reflect.DeepEqual(conf.Sets, expected) {
		t.Errorf("Incorrect sync sets\n   expected: %+v\n   got:      %+v", expected, conf.Sets)
	}
}

func TestAdhocApplyWithoutGroup(t *testing.T) {
	conf := config.NewConfig()
	conf.Sets = []config.Set{
		{Name: "configured", Group: "configured@example.org", Owner: "owner@example.org", Query: "SELECT 1", Protect: []string{"admin@example.org"}},
		{Name: "other", Group: "other@example.org", Owner: "owner@example.org", Query: "SELECT 2", Mode: "diff"},
	}

	a := adhoc{
		mode:       "replace",
		protect:    "board@example.org",
		allowEmpty: true,
	}

	a.apply(conf)

	expected := []config.Set{
		{Name: "configured", Group: "configured@example.org", Owner: "owner@example.org", Query: "SELECT 1", Mode: "replace", Protect: []string{"admin@example.org", "board@example.org"}, AllowEmpty: true},
		{Name: "other", Group: "other@example.org", Owner: "owner@example.org", Query: "SELECT 2", Mode: "replace", Protect: []string{"board@example.org"}, AllowEmpty: true},
	}

	if !reflect.DeepEqual(conf.Sets, expected) {
		t.Errorf("Incorrect sync sets\n   expected: %+v\n   got:      %+v", expected, conf.Sets)
	}
}

func TestSyncOverride(t *testing.T) {
	conf := config.NewConfig()
	conf.Sets = []config.Set{{Name: "configured", Group: "configured@example.org", Owner: "owner@example.org", Query: "SELECT 1"}}

	cmd := Sync{
		adhoc:        adhoc{allowEmpty: true},
		spreadsheet:  "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms",
		logRange:     "Sync Log!A1:I",
		logRetention: 7,
		workers:      8,
	}

	cmd.override(conf)

	if conf.Workers != 8 {
		t.Errorf("Incorrect workers - expected 8, got %v", conf.Workers)
	}

	if len(conf.Sets) != 1 || !conf.Sets[0].AllowEmpty || conf.Sets[0].Group != "configured@example.org" {
		t.Errorf("Expected --allow-empty to apply to the configured set, got %+v", conf.Sets)
	}

	if conf.Log.Spreadsheet != cmd.spreadsheet || conf.Log.Range != "Sync Log!A1:I" || conf.Log.Retention != 7 {
		t.Errorf("Incorrect log sheet configuration %+v", conf.Log)
	}
}

func TestJobs(t *testing.T) {
	conf := config.NewConfig()
	conf.Sets = []config.Set{
		{Name: "list", Group: " list@example.org ", Owner: "owner@example.org", Query: "SELECT 1", Mode: "Replace"},
		{Name: "other", Group: "other@example.org", Owner: "owner@example.org", Query: "SELECT 2", Column: "mail", AllowEmpty: true},
	}

	expected := []job{
		{
			name:   "list",
			query:  "SELECT 1",
			column: "email",
			set:    reconcile.Set{Group: "list@example.org", Owner: "owner@example.org", Mode: reconcile.Replace},
		},
		{
			name:   "other",
			query:  "SELECT 2",
			column: "mail",
			set:    reconcile.Set{Group: "other@example.org", Owner: "owner@example.org", Mode: reconcile.Diff, AllowEmpty: true},
		},
	}

	list, err := jobs(conf)
	if err != nil {
		t.Fatalf("Unexpected error (%v)", err)
	}

	if !reflect.DeepEqual(list, expected) {
		t.Errorf("Incorrect jobs\n   expected: %+v\n   got:      %+v", expected, list)
	}
}

func TestJobsWithInvalidMode(t *testing.T) {
	conf := config.NewConfig()
	conf.Sets = []config.Set{{Name: "list", Group: "list@example.org", Mode: "merge"}}

	if _, err := jobs(conf); err == nil {
		t.Errorf("Expected error for invalid mode")
	}
}

func TestSynchronise(t *testing.T) {
	dir := t.TempDir()
	store, _ := archive.New(context.Background(), dir, archive.AWS{})
	timestamp := time.Date(2024, time.October, 1, 12, 30, 45, 0, time.Local)

	src := source{
		table: &warehouse.Table{
			Header:  []string{"Email"},
			Records: [][]string{{"Alice@example.org"}, {"dave@example.org"}, {"owner@example.org"}},
		},
	}

	g := group{
		members: map[string]string{
			"alice@example.org": "MEMBER",
			"carol@example.org": "MEMBER",
			"owner@example.org": "MANAGER",
		},
	}

	j := job{
		name:   "list",
		query:  "SELECT email FROM members",
		column: "email",
		set:    reconcile.Set{Group: "list@example.org", Owner: "owner@example.org", Mode: reconcile.Diff},
	}

	report, err := synchronise(context.Background(), &src, &g, store, j, reconcile.Options{Workers: 2}, timestamp)
	if err != nil {
		t.Fatalf("Unexpected error (%v)", err)
	}

	if src.query != j.query {
		t.Errorf("Incorrect query - expected %q, got %q", j.query, src.query)
	}

	summary := reconcile.Summarize(*report)
	expected := reconcile.Summary{Group: "list@example.org", Unchanged: 1, Updated: 1, Added: 1, Deleted: 1}
	if summary != expected {
		t.Errorf("Incorrect summary\n   expected: %+v\n   got:      %+v", expected, summary)
	}

	members := map[string]string{
		"alice@example.org": "MEMBER",
		"dave@example.org":  "MEMBER",
		"owner@example.org": "OWNER",
	}

	if !reflect.DeepEqual(g.members, members) {
		t.Errorf("Incorrect group membership\n   expected: %v\n   got:      %v", members, g.members)
	}

	snapshot := "Email\tRole\tType\tStatus\n" +
		"alice@example.org\tMEMBER\tUSER\tACTIVE\n" +
		"carol@example.org\tMEMBER\tUSER\tACTIVE\n" +
		"owner@example.org\tMANAGER\tUSER\tACTIVE\n"

	b, err := os.ReadFile(filepath.Join(dir, "list@example.org", "2024-10-01T123045.tsv"))
	if err != nil {
		t.Fatalf("Error reading membership snapshot (%v)", err)
	}

	if string(b) != snapshot {
		t.Errorf("Incorrect snapshot\n   expected: %q\n   got:      %q", snapshot, string(b))
	}
}

func TestSynchroniseWithQueryError(t *testing.T) {
	src := source{err: fmt.Errorf("table not found")}
	g := group{members: map[string]string{"alice@example.org": "MEMBER"}}
	j := job{set: reconcile.Set{Group: "list@example.org", Owner: "owner@example.org"}}

	if _, err := synchronise(context.Background(), &src, &g, nil, j, reconcile.Options{}, time.Now()); err == nil {
		t.Errorf("Expected error for failed query")
	}

	if len(g.members) != 1 {
		t.Errorf("Expected group to be unchanged, got %v", g.members)
	}
}

func TestSynchroniseWithEmptyQuery(t *testing.T) {
	src := source{table: &warehouse.Table{Header: []string{"email"}, Records: [][]string{}}}
	g := group{members: map[string]string{"alice@example.org": "MEMBER"}}
	j := job{column: "email", set: reconcile.Set{Group: "list@example.org", Owner: "owner@example.org"}}

	if _, err := synchronise(context.Background(), &src, &g, nil, j, reconcile.Options{}, time.Now()); err == nil {
		t.Errorf("Expected error for empty query result")
	}

	if len(g.members) != 1 {
		t.Errorf("Expected group to be unchanged, got %v", g.members)
	}
}
