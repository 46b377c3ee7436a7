// Package appconfig loads the YAML configuration shared by the arbor binaries
// and builds the executor and repositories it describes.
package appconfig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/jacentio/arbor/internal/record"
	"github.com/jacentio/arbor/internal/sqlident"
	"github.com/jacentio/arbor/pgexec"
	"github.com/jacentio/arbor/rdsexec"
	"github.com/jacentio/arbor/sqlexec"
	"github.com/jacentio/arbor/tree"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRDSData  = "rdsdata"
)

// Config is the file format.
//
//	driver: postgres
//	dsn: postgres://arbor@localhost:5432/catalog
//	concurrency: 8
//	orphans: promote
//	entities:
//	  - name: category
//	    table: categories
//	    children_field: subcategories
//	    id_type: integer
//	    relations:
//	      - name: products
//	        table: products
//	        foreign_key: category_id
type Config struct {
	Driver string `yaml:"driver" validate:"required,oneof=sqlite postgres rdsdata"`

	// DSN is the database/sql or pgx connection string. Environment
	// variables in the file are expanded before parsing.
	DSN string `yaml:"dsn" validate:"required_unless=Driver rdsdata"`

	RDSData RDSData `yaml:"rdsdata"`

	// Concurrency bounds per-root pipelines. Zero means the library default.
	Concurrency int `yaml:"concurrency" validate:"gte=0,lte=256"`

	Orphans  string `yaml:"orphans" validate:"omitempty,oneof=error promote"`
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	Entities []Entity `yaml:"entities" validate:"required,min=1,unique=Name,dive"`
}

// RDSData locates an Aurora cluster reached through the Data API.
type RDSData struct {
	ResourceARN string `yaml:"resource_arn"`
	SecretARN   string `yaml:"secret_arn"`
	Database    string `yaml:"database"`
	Engine      string `yaml:"engine" validate:"omitempty,oneof=postgres mysql"`
}

// Entity maps one entity type to its table.
type Entity struct {
	Name         string `yaml:"name" validate:"required,printascii"`
	tree.Mapping `yaml:",inline"`
	Relations    []record.Relation `yaml:"relations" validate:"unique=Name,dive"`
}

var validate = validator.New()

func init() {
	_ = validate.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return sqlident.Valid(fl.Field().String())
	})
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads and validates a configuration. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(raw))))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("config is empty")
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for i := range cfg.Entities {
		cfg.Entities[i].Mapping = cfg.Entities[i].Mapping.WithDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Driver == DriverRDSData && (c.RDSData.ResourceARN == "" || c.RDSData.SecretARN == "") {
		return errors.New("invalid config: rdsdata driver needs resource_arn and secret_arn")
	}
	return nil
}

// TreeConfig returns the repository configuration.
func (c *Config) TreeConfig() (tree.Config, error) {
	cfg := tree.DefaultConfig()
	if c.Concurrency > 0 {
		cfg.Concurrency = c.Concurrency
	}
	orphans, err := tree.ParseOrphanPolicy(c.Orphans)
	if err != nil {
		return cfg, err
	}
	cfg.Orphans = orphans
	return cfg, nil
}

// Registry returns the mappings of every configured entity.
func (c *Config) Registry() (*tree.Registry, error) {
	reg := tree.NewRegistry()
	for _, e := range c.Entities {
		if err := reg.Register(e.Name, e.Mapping); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Entity returns the configured entity named name.
func (c *Config) Entity(name string) (Entity, error) {
	for _, e := range c.Entities {
		if e.Name == name {
			return e, nil
		}
	}
	return Entity{}, fmt.Errorf("%w: %q", tree.ErrUnknownEntityType, name)
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Open connects the configured executor. The returned function releases it.
func (c *Config) Open(ctx context.Context) (tree.Executor, func(), error) {
	switch c.Driver {
	case DriverSQLite:
		db, err := sqlexec.Open("sqlite", c.DSN, tree.SQLite)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	case DriverPostgres:
		pg, err := pgexec.Connect(ctx, c.DSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case DriverRDSData:
		e, err := rdsexec.NewFromEnv(ctx, rdsexec.Options{
			ResourceARN: c.RDSData.ResourceARN,
			SecretARN:   c.RDSData.SecretARN,
			Database:    c.RDSData.Database,
			Engine:      rdsexec.Engine(c.RDSData.Engine),
		})
		if err != nil {
			return nil, nil, err
		}
		return e, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported driver %q", c.Driver)
	}
}

// Repositories builds one Record repository per configured entity.
func (c *Config) Repositories(exec tree.Executor, logger *slog.Logger) (map[string]*tree.Repository[string, *record.Record], error) {
	cfg, err := c.TreeConfig()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	repos := make(map[string]*tree.Repository[string, *record.Record], len(c.Entities))
	for _, e := range c.Entities {
		repo, err := record.NewRepository(exec, e.Mapping, e.Relations, cfg, logger.With("entity", e.Name))
		if err != nil {
			return nil, fmt.Errorf("entity %q: %w", e.Name, err)
		}
		repos[e.Name] = repo
	}
	return repos, nil
}
