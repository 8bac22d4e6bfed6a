package database

import (
	"fmt"
	"strings"
)

const (
	// DriverPostgres selects PostgreSQL through lib/pq.
	DriverPostgres = "postgres"
	// DriverSQLite selects the embedded SQLite engine (modernc.org/sqlite).
	DriverSQLite = "sqlite"
)

// Config holds database connection settings shared across bots.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Path           string `yaml:"path" envconfig:"DB_PATH"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// Normalize applies defaults and validates driver specific settings.
func (c *Config) Normalize() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	switch c.Driver {
	case "", DriverSQLite, "sqlite3":
		c.Driver = DriverSQLite
		c.Path = strings.TrimSpace(c.Path)
		if c.Path == "" {
			c.Path = "data/cpabot.db"
		}
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
		c.MaxConnections = 1
	case DriverPostgres, "postgresql":
		c.Driver = DriverPostgres
		if strings.TrimSpace(c.Host) == "" {
			return fmt.Errorf("database.host is required for postgres")
		}
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("database.name is required for postgres")
		}
		if c.Port == "" {
			c.Port = "5432"
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
		if c.MaxConnections <= 0 {
			c.MaxConnections = 10
		}
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite", c.Driver)
	}
	return nil
}
