package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/solorad/blog-api/pkg/log"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"gopkg.in/yaml.v3"
)

// Supported values of DatabaseConfig.Driver
const (
	DriverMongo = "mongo"
	DriverBolt  = "bolt"
)

// Database names used when neither the url nor the config names one
const (
	DefaultDatabaseName     = "blog"
	DefaultTestDatabaseName = "blog-test"
)

const defaultMongoPort = "27017"

// Config holds the settings of the blog-api process
type Config struct {
	Listen          string         `yaml:"listen"`
	ShutdownTimeout time.Duration  `yaml:"shutdown_timeout"`
	Database        DatabaseConfig `yaml:"database"`
}

// DatabaseConfig selects and addresses the post store
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "mongo" or "bolt"
	URL    string `yaml:"url"`
	// TestURL is only used by the integration tests and must not point at the production database.
	TestURL        string        `yaml:"test_url"`
	Name           string        `yaml:"name"` // Optional: defaults to the database in URL
	BoltPath       string        `yaml:"bolt_path"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		Listen:          ":8081",
		ShutdownTimeout: 10 * time.Second,
		Database: DatabaseConfig{
			Driver:         DriverMongo,
			URL:            "mongodb://localhost:27017/blog",
			BoltPath:       "./data/blog.db",
			ConnectTimeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path,
// a .env file and the environment, in that order of precedence (last wins).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Infof("no .env file found, using environment variables")
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Listen = ":" + port
	}
	c.Listen = envString("LISTEN_ADDR", c.Listen)
	c.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.Database.Driver = envString("DB_DRIVER", c.Database.Driver)
	c.Database.URL = envString("DATABASE_URL", c.Database.URL)
	c.Database.TestURL = envString("TEST_DATABASE_URL", c.Database.TestURL)
	c.Database.Name = envString("DATABASE_NAME", c.Database.Name)
	c.Database.BoltPath = envString("BOLT_PATH", c.Database.BoltPath)
	c.Database.ConnectTimeout = envDuration("DB_CONNECT_TIMEOUT", c.Database.ConnectTimeout)
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMongo:
		if c.Database.URL == "" {
			return fmt.Errorf("database url is required for driver %q", DriverMongo)
		}
		if c.Database.TestURL != "" {
			if _, err := c.Database.TestDatabase(); err != nil {
				return err
			}
		}
	case DriverBolt:
		if c.Database.BoltPath == "" {
			return fmt.Errorf("bolt_path is required for driver %q", DriverBolt)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	return nil
}

// DatabaseName returns Name, falling back to the database in URL and then to DefaultDatabaseName
func (d DatabaseConfig) DatabaseName() string {
	if d.Name != "" {
		return d.Name
	}
	return DatabaseFromURI(d.URL, DefaultDatabaseName)
}

// TestDatabase returns the MongoDB settings the integration tests run against.
// A TestURL without a database path gets DefaultTestDatabaseName. It fails when
// TestURL is unset or resolves to a host and database the production URL also uses.
func (d DatabaseConfig) TestDatabase() (DatabaseConfig, error) {
	if d.TestURL == "" {
		return DatabaseConfig{}, errors.New("test database url is not set")
	}
	test := DatabaseConfig{
		Driver:         DriverMongo,
		URL:            d.TestURL,
		Name:           DatabaseFromURI(d.TestURL, DefaultTestDatabaseName),
		ConnectTimeout: d.ConnectTimeout,
	}

	testHosts, err := mongoHosts(test.URL)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("parse test database url: %w", err)
	}
	prodHosts, err := mongoHosts(d.URL)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("parse database url: %w", err)
	}
	if !strings.EqualFold(test.Name, d.DatabaseName()) {
		return test, nil
	}
	for host := range testHosts {
		if prodHosts[host] {
			return DatabaseConfig{}, fmt.Errorf("test database %q on %s is the production database", test.Name, host)
		}
	}
	return test, nil
}

// DatabaseFromURI returns the database path of a MongoDB connection string, or fallback
func DatabaseFromURI(uri, fallback string) string {
	cs, err := connstring.Parse(uri)
	if err != nil || cs.Database == "" {
		return fallback
	}
	return cs.Database
}

// mongoHosts returns the lower-cased host:port set of uri, with the default port filled in
func mongoHosts(uri string) (map[string]bool, error) {
	cs, err := connstring.Parse(uri)
	if err != nil {
		return nil, err
	}
	hosts := make(map[string]bool, len(cs.Hosts))
	for _, h := range cs.Hosts {
		h = strings.ToLower(h)
		if _, _, err := net.SplitHostPort(h); err != nil {
			h = net.JoinHostPort(strings.Trim(h, "[]"), defaultMongoPort)
		}
		hosts[h] = true
	}
	return hosts, nil
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warningf("config invalid duration for %s=%q, using default %s", key, v, def)
		return def
	}
	return d
}
