// Package config loads the sync configuration from a .env file, an optional YAML file and the process
// environment, in that order of precedence (later wins).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const PREFIX = "GCP_TO_GROUPS_"

type Config struct {
	Workdir     string      `yaml:"workdir"`
	Credentials Credentials `yaml:"credentials"`
	Subject     string      `yaml:"subject"`
	Warehouse   Warehouse   `yaml:"warehouse"`
	Sets        []Set       `yaml:"sets"`
	Log         Log         `yaml:"log"`
	Archive     string      `yaml:"archive"`
	AWS         AWS         `yaml:"aws"`
	Notify      Notify      `yaml:"notify"`
	Workers     int         `yaml:"workers"`
}

// Credentials is a Google credentials file, or the file contents held directly in the environment.
type Credentials struct {
	File string `yaml:"file"`
	JSON string `yaml:"json"`
}

type Warehouse struct {
	Driver      string        `yaml:"driver"`
	DSN         string        `yaml:"dsn"`
	Project     string        `yaml:"project"`
	Location    string        `yaml:"location"`
	Timeout     time.Duration `yaml:"timeout"`
	Credentials Credentials   `yaml:"credentials"`
}

type Set struct {
	Name       string   `yaml:"name"`
	Group      string   `yaml:"group"`
	Owner      string   `yaml:"owner"`
	Protect    []string `yaml:"protect"`
	Query      string   `yaml:"query"`
	Column     string   `yaml:"column"`
	Mode       string   `yaml:"mode"`
	AllowEmpty bool     `yaml:"allow-empty"`
}

type Log struct {
	Spreadsheet string `yaml:"spreadsheet"`
	Range       string `yaml:"range"`
	Retention   uint   `yaml:"retention"`
}

type AWS struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access-key-id"`
	SecretAccessKey string `yaml:"secret-access-key"`
}

type Notify struct {
	NATS    string `yaml:"nats"`
	Subject string `yaml:"subject"`
	Alert   Alert  `yaml:"alert"`
}

type Alert struct {
	From string   `yaml:"from"`
	To   []string `yaml:"to"`
}

func NewConfig() *Config {
	return &Config{
		Warehouse: Warehouse{
			Driver:  "bigquery",
			Timeout: 5 * time.Minute,
		},
		Sets: []Set{},
		Log: Log{
			Range:     "Log!A1:I",
			Retention: 30,
		},
		Notify: Notify{
			Subject: "gcp-to-groups.sync",
		},
		Workers: 4,
	}
}

// Load reads the configuration. A missing .env file is not an error, a missing YAML file is (unless the
// path is blank). ${VAR} references in the YAML file are expanded from the environment after the .env
// file has been loaded.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file (%v)", err)
	}

	c := NewConfig()

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not load configuration file '%s' (%w)", path, err)
		}

		if err := c.parse(b); err != nil {
			return nil, fmt.Errorf("invalid configuration file '%s' (%w)", path, err)
		}
	}

	c.environment()

	return c, nil
}

func (c *Config) parse(b []byte) error {
	expanded := os.ExpandEnv(string(b))
	decoder := yaml.NewDecoder(bytes.NewBufferString(expanded))

	decoder.KnownFields(true)

	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	for i := range c.Sets {
		if c.Sets[i].Name == "" {
			c.Sets[i].Name = c.Sets[i].Group
		}
	}

	return nil
}

func (c *Config) environment() {
	c.Workdir = getEnv("WORKDIR", c.Workdir)
	c.Credentials.File = getEnv("CREDENTIALS", c.Credentials.File)
	c.Credentials.JSON = getEnv("CREDENTIALS_JSON", c.Credentials.JSON)
	c.Subject = getEnv("SUBJECT", c.Subject)

	c.Warehouse.Driver = getEnv("WAREHOUSE_DRIVER", c.Warehouse.Driver)
	c.Warehouse.DSN = getEnv("WAREHOUSE_DSN", c.Warehouse.DSN)
	c.Warehouse.Project = getEnv("WAREHOUSE_PROJECT", c.Warehouse.Project)
	c.Warehouse.Location = getEnv("WAREHOUSE_LOCATION", c.Warehouse.Location)
	c.Warehouse.Timeout = getDurationEnv("WAREHOUSE_TIMEOUT", c.Warehouse.Timeout)
	c.Warehouse.Credentials.File = getEnv("WAREHOUSE_CREDENTIALS", c.Warehouse.Credentials.File)
	c.Warehouse.Credentials.JSON = getEnv("WAREHOUSE_CREDENTIALS_JSON", c.Warehouse.Credentials.JSON)

	c.Log.Spreadsheet = getEnv("LOG_SPREADSHEET", c.Log.Spreadsheet)
	c.Archive = getEnv("ARCHIVE", c.Archive)
	c.AWS.Region = getEnv("AWS_REGION", c.AWS.Region)
	c.AWS.Endpoint = getEnv("AWS_ENDPOINT", c.AWS.Endpoint)
	c.Notify.NATS = getEnv("NATS_URL", c.Notify.NATS)
	c.Notify.Alert.From = getEnv("ALERT_FROM", c.Notify.Alert.From)
	c.Workers = getIntEnv("WORKERS", c.Workers)

	if to := getEnv("ALERT_TO", ""); to != "" {
		c.Notify.Alert.To = split(to)
	}

	// ... ad-hoc sync set from the environment
	set := Set{
		Group:      getEnv("GROUP", ""),
		Owner:      getEnv("OWNER", ""),
		Query:      getEnv("QUERY", ""),
		Column:     getEnv("COLUMN", ""),
		Mode:       getEnv("MODE", ""),
		Protect:    split(getEnv("PROTECT", "")),
		AllowEmpty: getBoolEnv("ALLOW_EMPTY", false),
	}

	if set.Group != "" {
		set.Name = set.Group
		c.Sets = append(c.Sets, set)
	}
}

// Validate checks that every sync set is complete. Mode values are checked where they are parsed.
func (c *Config) Validate() error {
	if len(c.Sets) == 0 {
		return fmt.Errorf("no groups configured - expected a --group or a 'sets' section in the configuration file")
	}

	for _, set := range c.Sets {
		if strings.TrimSpace(set.Group) == "" {
			return fmt.Errorf("sync set '%s' is missing a group", set.Name)
		}

		if strings.TrimSpace(set.Owner) == "" {
			return fmt.Errorf("sync set '%s' is missing an owner", set.Name)
		}

		if strings.TrimSpace(set.Query) == "" {
			return fmt.Errorf("sync set '%s' is missing a query", set.Name)
		}
	}

	if c.Credentials.File == "" && c.Credentials.JSON == "" {
		return fmt.Errorf("missing Google credentials - expected --credentials or %sCREDENTIALS_JSON", PREFIX)
	}

	return nil
}

// Bytes returns the credentials JSON, preferring the inline value over the file.
func (c Credentials) Bytes() ([]byte, error) {
	if strings.TrimSpace(c.JSON) != "" {
		return []byte(c.JSON), nil
	}

	if strings.TrimSpace(c.File) == "" {
		return nil, fmt.Errorf("no credentials configured")
	}

	return os.ReadFile(c.File)
}

func (c Credentials) IsZero() bool {
	return strings.TrimSpace(c.File) == "" && strings.TrimSpace(c.JSON) == ""
}

func getEnv(key, defval string) string {
	if v := os.Getenv(PREFIX + key); v != "" {
		return v
	}

	return defval
}

func getIntEnv(key string, defval int) int {
	if v := os.Getenv(PREFIX + key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}

	return defval
}

func getBoolEnv(key string, defval bool) bool {
	if v := os.Getenv(PREFIX + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}

	return defval
}

func getDurationEnv(key string, defval time.Duration) time.Duration {
	if v := os.Getenv(PREFIX + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}

	return defval
}

func split(s string) []string {
	list := []string{}
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}

	return list
}
