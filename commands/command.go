package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	lib "github.com/uhppoted/uhppoted-lib/log"

	"github.com/BLloyd97/GCP-to-Groups/config"
	"github.com/BLloyd97/GCP-to-Groups/directory"
	"github.com/BLloyd97/GCP-to-Groups/warehouse"
)

const APP = "gcp-to-groups"
const VERSION = "v0.1.0"
const LOG_TAG = "groups"

type Options struct {
	Config string
	Debug  bool
}

// command holds the options shared by every command that talks to Google.
type command struct {
	workdir     string
	credentials string
	subject     string
	debug       bool
}

func (c *command) flagset(name string) *flag.FlagSet {
	flagset := flag.NewFlagSet(name, flag.ExitOnError)

	flagset.StringVar(&c.workdir, "workdir", c.workdir, "Directory for working files (tokens, snapshots, etc)")
	flagset.StringVar(&c.credentials, "credentials", c.credentials, "Path for the Google 'credentials.json' file")
	flagset.StringVar(&c.subject, "subject", c.subject, "Workspace administrator impersonated by a service account")

	return flagset
}

// configure loads the configuration file and environment and then applies the command line overrides.
func (c *command) configure(options *Options) (*config.Config, error) {
	c.debug = options.Debug

	conf, err := config.Load(options.Config)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(c.workdir) != "" {
		conf.Workdir = c.workdir
	} else if conf.Workdir == "" {
		conf.Workdir = DEFAULT_WORKDIR
	}

	if strings.TrimSpace(c.credentials) != "" {
		conf.Credentials = config.Credentials{File: c.credentials}
	} else if conf.Credentials.IsZero() {
		conf.Credentials = config.Credentials{File: DEFAULT_CREDENTIALS}
	}

	if strings.TrimSpace(c.subject) != "" {
		conf.Subject = c.subject
	}

	if c.debug {
		debugf("workdir:%v  credentials:%v  subject:%v  warehouse:%v", conf.Workdir, describe(conf.Credentials), conf.Subject, conf.Warehouse.Driver)
	}

	return conf, nil
}

func (c *command) directory(ctx context.Context, conf *config.Config) (*directory.Google, error) {
	client, err := authorize(ctx, conf.Credentials, conf.Subject, directory.Scopes, tokens(conf, "admin"))
	if err != nil {
		return nil, fmt.Errorf("Admin SDK authentication/authorization error (%v)", err)
	}

	return directory.NewGoogle(ctx, client)
}

func (c *command) warehouse(ctx context.Context, conf *config.Config) (warehouse.Source, error) {
	options := warehouse.Options{
		Driver:   conf.Warehouse.Driver,
		DSN:      conf.Warehouse.DSN,
		Project:  conf.Warehouse.Project,
		Location: conf.Warehouse.Location,
		Timeout:  conf.Warehouse.Timeout,
	}

	var client *http.Client

	if driver := strings.ToLower(options.Driver); driver == "" || driver == "bigquery" {
		credentials := conf.Warehouse.Credentials
		if credentials.IsZero() {
			credentials = conf.Credentials
		}

		var err error
		if client, err = authorize(ctx, credentials, "", warehouse.Scopes, tokens(conf, "bigquery")); err != nil {
			return nil, fmt.Errorf("BigQuery authentication/authorization error (%v)", err)
		}
	}

	return warehouse.Open(ctx, options, client)
}

func (c *command) sheets(ctx context.Context, conf *config.Config) (*sheets.Service, error) {
	client, err := authorize(ctx, conf.Credentials, conf.Subject, []string{sheets.SpreadsheetsScope}, tokens(conf, "sheets"))
	if err != nil {
		return nil, fmt.Errorf("Google Sheets authentication/authorization error (%v)", err)
	}

	google, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create new Google Sheets client (%v)", err)
	}

	return google, nil
}

func tokens(conf *config.Config, tag string) string {
	name := "credentials"
	if conf.Credentials.File != "" {
		_, file := filepath.Split(conf.Credentials.File)
		name = strings.TrimSuffix(file, filepath.Ext(file))
	}

	return filepath.Join(conf.Workdir, ".google", fmt.Sprintf("%s.%s", name, tag))
}

// write creates the file atomically via a temporary file in the same directory.
func write(file string, f func(io.Writer) error) error {
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0770); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tsv")
	if err != nil {
		return err
	}

	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := f(tmp); err != nil {
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), file)
}

func describe(credentials config.Credentials) string {
	if strings.TrimSpace(credentials.JSON) != "" {
		return "<environment>"
	}

	return credentials.File
}

func spreadsheetID(url string) (string, error) {
	match := regexp.MustCompile(`^https://docs.google.com/spreadsheets/d/(.*?)(?:/.*)?$`).FindStringSubmatch(strings.TrimSpace(url))
	if len(match) < 2 || match[1] == "" {
		return "", fmt.Errorf("invalid spreadsheet URL - expected something like 'https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms'")
	}

	return match[1], nil
}

func getSpreadsheet(google *sheets.Service, id string, ctx context.Context) (*sheets.Spreadsheet, error) {
	spreadsheet, err := google.Spreadsheets.Get(id).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spreadsheet (%v)", err)
	}

	return spreadsheet, nil
}

func getSheet(spreadsheet *sheets.Spreadsheet, area string) (*sheets.Sheet, error) {
	match := regexp.MustCompile(`(.+?)!.*`).FindStringSubmatch(area)
	if len(match) < 2 {
		return nil, fmt.Errorf("invalid range '%s'", area)
	}

	name := match[1]
	for _, sheet := range spreadsheet.Sheets {
		if strings.ToLower(strings.TrimSpace(sheet.Properties.Title)) == strings.ToLower(strings.TrimSpace(name)) {
			return sheet, nil
		}
	}

	return nil, fmt.Errorf("unable to identify worksheet for '%s'", area)
}

func helpOptions(flagset *flag.FlagSet) {
	flagset.VisitAll(func(f *flag.Flag) {
		fmt.Printf("    --%-13s %s\n", f.Name, f.Usage)
	})

	fmt.Println()
	fmt.Println("  Options:")
	fmt.Println()
	fmt.Println("    --config <file>  YAML sync configuration file")
	fmt.Println("    --debug          Displays internal information for diagnosing errors")
}

func normalise(v string) string {
	return strings.ToLower(strings.ReplaceAll(v, " ", ""))
}

func tagged(format string) string {
	return fmt.Sprintf("%-6v  %v", LOG_TAG, format)
}

func debugf(format string, args ...any) {
	lib.Debugf(tagged(format), args...)
}

func infof(format string, args ...any) {
	lib.Infof(tagged(format), args...)
}

func warnf(format string, args ...any) {
	lib.Warnf(tagged(format), args...)
}

func errorf(format string, args ...any) {
	lib.Errorf(tagged(format), args...)
}
