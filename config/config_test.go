package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

var variables = []string{
	"WORKDIR", "CREDENTIALS", "CREDENTIALS_JSON", "SUBJECT",
	"WAREHOUSE_DRIVER", "WAREHOUSE_DSN", "WAREHOUSE_PROJECT", "WAREHOUSE_LOCATION", "WAREHOUSE_TIMEOUT",
	"WAREHOUSE_CREDENTIALS", "WAREHOUSE_CREDENTIALS_JSON",
	"LOG_SPREADSHEET", "ARCHIVE", "AWS_REGION", "AWS_ENDPOINT", "NATS_URL", "ALERT_FROM", "ALERT_TO", "WORKERS",
	"GROUP", "OWNER", "QUERY", "COLUMN", "MODE", "PROTECT", "ALLOW_EMPTY",
}

// clean clears the environment for a test and applies the overrides.
func clean(t *testing.T, env map[string]string) {
	t.Helper()

	for _, k := range variables {
		t.Setenv(PREFIX+k, "")
	}

	for k, v := range env {
		t.Setenv(PREFIX+k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	clean(t, nil)

	c, err := Load("")
	if err != nil {
		t.Fatalf("Unexpected error loading configuration (%v)", err)
	}

	if !reflect.DeepEqual(c, NewConfig()) {
		t.Errorf("Incorrect default configuration\n   expected: %+v\n   got:      %+v", NewConfig(), c)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	clean(t, map[string]string{
		"CREDENTIALS_JSON":  `{"type":"service_account"}`,
		"SUBJECT":           "admin@example.org",
		"WAREHOUSE_PROJECT": "warehouse",
		"WAREHOUSE_TIMEOUT": "90s",
		"GROUP":             "list@example.org",
		"OWNER":             "owner@example.org",
		"QUERY":             "SELECT email FROM commons.listserv",
		"PROTECT":           "carol@example.org, dave@example.org",
		"ALLOW_EMPTY":       "true",
		"ALERT_TO":          "ops@example.org",
		"WORKERS":           "8",
	})

	c, err := Load("")
	if err != nil {
		t.Fatalf("Unexpected error loading configuration (%v)", err)
	}

	expected := []Set{
		{
			Name:       "list@example.org",
			Group:      "list@example.org",
			Owner:      "owner@example.org",
			Query:      "SELECT email FROM commons.listserv",
			Protect:    []string{"carol@example.org", "dave@example.org"},
			AllowEmpty: true,
		},
	}

	if !reflect.DeepEqual(c.Sets, expected) {
		t.Errorf("Incorrect sync sets\n   expected: %+v\n   got:      %+v", expected, c.Sets)
	}

	if c.Subject != "admin@example.org" {
		t.Errorf("Incorrect subject - got %v", c.Subject)
	}

	if c.Warehouse.Project != "warehouse" || c.Warehouse.Timeout != 90*time.Second {
		t.Errorf("Incorrect warehouse configuration %+v", c.Warehouse)
	}

	if !reflect.DeepEqual(c.Notify.Alert.To, []string{"ops@example.org"}) {
		t.Errorf("Incorrect alert recipients %v", c.Notify.Alert.To)
	}

	if c.Workers != 8 {
		t.Errorf("Incorrect workers - expected 8, got %v", c.Workers)
	}

	if b, err := c.Credentials.Bytes(); err != nil || string(b) != `{"type":"service_account"}` {
		t.Errorf("Incorrect credentials %s (%v)", b, err)
	}

	if err := c.Validate(); err != nil {
		t.Errorf("Unexpected validation error (%v)", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	clean(t, map[string]string{
		"OWNER": "",
	})

	t.Setenv("LISTSERV_OWNER", "owner@example.org")

	yaml := `
credentials:
  file: /etc/gcp-to-groups/credentials.json
subject: admin@example.org
warehouse:
  project: warehouse
  location: US
  timeout: 2m
sets:
  - group: updates@example.org
    owner: ${LISTSERV_OWNER}
    query: SELECT email FROM commons.data_updates_listserv
    mode: replace
  - name: volunteers
    group: volunteers@example.org
    owner: ${LISTSERV_OWNER}
    protect:
      - carol@example.org
    query: SELECT address FROM commons.volunteers
    column: address
    allow-empty: true
log:
  spreadsheet: https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms
archive: s3://snapshots/groups
`

	path := filepath.Join(t.TempDir(), "gcp-to-groups.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatalf("Error creating configuration file (%v)", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error loading configuration (%v)", err)
	}

	expected := []Set{
		{
			Name:  "updates@example.org",
			Group: "updates@example.org",
			Owner: "owner@example.org",
			Query: "SELECT email FROM commons.data_updates_listserv",
			Mode:  "replace",
		},
		{
			Name:       "volunteers",
			Group:      "volunteers@example.org",
			Owner:      "owner@example.org",
			Protect:    []string{"carol@example.org"},
			Query:      "SELECT address FROM commons.volunteers",
			Column:     "address",
			AllowEmpty: true,
		},
	}

	if !reflect.DeepEqual(c.Sets, expected) {
		t.Errorf("Incorrect sync sets\n   expected: %+v\n   got:      %+v", expected, c.Sets)
	}

	if c.Warehouse.Driver != "bigquery" || c.Warehouse.Location != "US" || c.Warehouse.Timeout != 2*time.Minute {
		t.Errorf("Incorrect warehouse configuration %+v", c.Warehouse)
	}

	if c.Log.Range != "Log!A1:I" || c.Log.Retention != 30 {
		t.Errorf("Log sheet defaults not retained %+v", c.Log)
	}

	if c.Archive != "s3://snapshots/groups" {
		t.Errorf("Incorrect archive - got %v", c.Archive)
	}
}

func TestLoadWithUnknownField(t *testing.T) {
	clean(t, nil)

	path := filepath.Join(t.TempDir(), "gcp-to-groups.yaml")
	if err := os.WriteFile(path, []byte("grops:\n  - group: list@example.org\n"), 0600); err != nil {
		t.Fatalf("Error creating configuration file (%v)", err)
	}

	if _, err := Load(path); err == nil {
		t.Errorf("Expected error for unknown configuration field")
	}
}

func TestLoadWithMissingFile(t *testing.T) {
	clean(t, nil)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Expected error for missing configuration file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		sets  []Set
		valid bool
	}{
		{"no sets", []Set{}, false},
		{"missing group", []Set{{Name: "x", Owner: "owner@example.org", Query: "SELECT 1"}}, false},
		{"missing owner", []Set{{Group: "list@example.org", Query: "SELECT 1"}}, false},
		{"missing query", []Set{{Group: "list@example.org", Owner: "owner@example.org"}}, false},
		{"valid", []Set{{Group: "list@example.org", Owner: "owner@example.org", Query: "SELECT 1"}}, true},
	}

	for _, test := range tests {
		c := NewConfig()
		c.Credentials.File = "credentials.json"
		c.Sets = test.sets

		if err := c.Validate(); test.valid && err != nil {
			t.Errorf("%v: unexpected error (%v)", test.name, err)
		} else if !test.valid && err == nil {
			t.Errorf("%v: expected validation error", test.name)
		}
	}
}
