// Package config loads gridctl settings from config.yaml, with ${VAR}
// references expanded from the environment and an optional .env file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gnemet/propertygrid"
	"github.com/gnemet/propertygrid/database/gridstore"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "config.yaml"

type Config struct {
	Application struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"application"`

	Server   ServerConfig     `yaml:"server"`
	Database []DatabaseConfig `yaml:"database"`
	Catalog  CatalogConfig    `yaml:"catalog"`
	Grid     GridConfig       `yaml:"grid"`
	Remote   RemoteConfig     `yaml:"remote"`
	Events   EventsConfig     `yaml:"events"`
	Logging  LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	Token           string        `yaml:"token"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig is one named connection. Either ConnString or the
// individual fields are used.
type DatabaseConfig struct {
	Name        string        `yaml:"name"`
	ConnString  string        `yaml:"conn_string"`
	Host        string        `yaml:"host"`
	Port        string        `yaml:"port"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	Database    string        `yaml:"database"`
	Schema      string        `yaml:"schema"`
	SSLMode     string        `yaml:"sslmode"`
	Default     bool          `yaml:"default"`
	MaxConns    int           `yaml:"max_conns"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	MaxLifetime time.Duration `yaml:"max_lifetime"`
}

type CatalogConfig struct {
	// Path to a catalog file. Empty uses the embedded catalog.
	Path string `yaml:"path"`
	Lang string `yaml:"lang"`
}

type GridConfig struct {
	PageSize    int           `yaml:"page_size"`
	MaxPageSize int           `yaml:"max_page_size"`
	Threshold   int           `yaml:"threshold"`
	Concurrency int           `yaml:"concurrency"`
	SearchDelay time.Duration `yaml:"search_delay"`
	ColumnDelay time.Duration `yaml:"column_delay"`
}

// RemoteConfig points the search command at a running data service. Empty
// BaseURL means the database is queried in-process.
type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// Development switches zap to its console encoder.
	Development bool `yaml:"development"`
}

// Default returns the settings used for anything config.yaml leaves out.
func Default() *Config {
	cfg := &Config{}
	cfg.Application.Name = "propertygrid"
	cfg.Server.Port = "8080"
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Catalog.Lang = "en"
	cfg.Grid = GridConfig{
		PageSize:    propertygrid.DefaultPageSize,
		MaxPageSize: propertygrid.DefaultMaxPageSize,
		Threshold:   propertygrid.DefaultServerDrivenThreshold,
		Concurrency: 4,
		SearchDelay: propertygrid.DefaultSearchDelay,
		ColumnDelay: propertygrid.DefaultColumnDelay,
	}
	cfg.Remote.Timeout = 30 * time.Second
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads path over the defaults. A missing file is not an error: the
// defaults (plus environment) are returned.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // optional

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Parse expands environment references in data and decodes it into cfg.
func Parse(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	return yaml.Unmarshal([]byte(expanded), cfg)
}

func (c *Config) Validate() error {
	if c.Grid.PageSize <= 0 {
		return &ConfigError{Field: "grid.page_size", Message: "must be greater than 0"}
	}
	if c.Grid.MaxPageSize < c.Grid.PageSize {
		return &ConfigError{Field: "grid.max_page_size", Message: "must not be less than grid.page_size"}
	}
	if c.Grid.Threshold <= 0 {
		return &ConfigError{Field: "grid.threshold", Message: "must be greater than 0"}
	}
	if c.Grid.Concurrency <= 0 {
		return &ConfigError{Field: "grid.concurrency", Message: "must be greater than 0"}
	}
	if c.Grid.SearchDelay < 0 || c.Grid.ColumnDelay < 0 {
		return &ConfigError{Field: "grid", Message: "delays must not be negative"}
	}
	if c.Remote.BaseURL != "" {
		u, err := url.Parse(c.Remote.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &ConfigError{Field: "remote.base_url", Message: "must be an absolute URL"}
		}
	}
	defaults := 0
	for _, d := range c.Database {
		if d.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return &ConfigError{Field: "database", Message: "only one entry may be marked default"}
	}
	return nil
}

// DefaultDatabase returns the entry marked default, or the first entry.
func (c *Config) DefaultDatabase() (*DatabaseConfig, bool) {
	for i := range c.Database {
		if c.Database[i].Default {
			return &c.Database[i], true
		}
	}
	if len(c.Database) > 0 {
		return &c.Database[0], true
	}
	return nil, false
}

// ConnStr renders a lib/pq connection string.
func (d *DatabaseConfig) ConnStr() string {
	if d.ConnString != "" {
		return d.ConnString
	}
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	parts := []string{
		"host=" + d.Host,
		"port=" + d.Port,
		"user=" + d.User,
		"password=" + d.Password,
		"dbname=" + d.Database,
		"sslmode=" + sslmode,
	}
	if d.Schema != "" {
		parts = append(parts, "search_path="+d.Schema+",public")
	}
	return strings.Join(parts, " ")
}

// StoreOptions maps the pool settings onto gridstore.Options.
func (d *DatabaseConfig) StoreOptions() gridstore.Options {
	return gridstore.Options{
		MaxConns:    d.MaxConns,
		IdleTimeout: d.IdleTimeout,
		MaxLifetime: d.MaxLifetime,
	}
}

// ConfigError reports an invalid setting.
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
