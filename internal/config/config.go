// Package config loads engine configuration from the environment and
// validates it before anything connects to a backend.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"ledgersync/internal/core"
)

// Backend names accepted by DATA_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	// HTTP server
	Port string

	// Backend selection
	DataBackend string

	// SQLite
	SQLiteDBPath string

	// Postgres
	PostgresURL string

	// AMQP change relay. Empty URL disables the relay; single-process
	// deployments don't need it.
	AMQPURL      string
	AMQPExchange string

	// Deployment namespaces the ledger collection so several
	// environments can share one backend.
	Deployment string

	// SessionToken pins the author identity. Empty means an anonymous
	// session is minted at startup.
	SessionToken string

	ShutdownTimeout time.Duration
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8081"),
		DataBackend: getEnv("DATA_BACKEND", BackendMemory),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ledger.db"),
		PostgresURL:  getEnv("POSTGRES_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledger_changes"),

		Deployment:   getEnv("DEPLOYMENT", "prod"),
		SessionToken: getEnv("SESSION_TOKEN", ""),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// CollectionPath is the namespaced path every component reads and
// writes. Deployments never see each other's entries.
func (c *Config) CollectionPath() string {
	return c.Deployment + "/entries"
}

// Validate checks the whole configuration and reports every problem at
// once, wrapped so callers can classify it.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port %q: must be a number", c.Port))
	} else if port < 0 || port > 65535 {
		// 0 binds an ephemeral port, which tests rely on.
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 0 and 65535", port))
	}

	switch c.DataBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLITE_DB_PATH cannot be empty with the sqlite backend")
		}
	case BackendPostgres:
		if c.PostgresURL == "" {
			problems = append(problems, "POSTGRES_URL is required with the postgres backend")
		} else if u, err := url.Parse(c.PostgresURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid POSTGRES_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			problems = append(problems, fmt.Sprintf("invalid POSTGRES_URL scheme %q: must be 'postgres' or 'postgresql'", u.Scheme))
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid data backend %q: must be one of [%s %s %s]",
			c.DataBackend, BackendMemory, BackendSQLite, BackendPostgres))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP_URL: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP_URL scheme %q: must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP_EXCHANGE cannot be empty when AMQP_URL is set")
		}
	}

	if strings.TrimSpace(c.Deployment) == "" {
		problems = append(problems, "DEPLOYMENT cannot be empty")
	} else if strings.ContainsAny(c.Deployment, "/ ") {
		problems = append(problems, fmt.Sprintf("invalid deployment %q: must not contain slashes or spaces", c.Deployment))
	}

	if c.ShutdownTimeout < time.Second {
		problems = append(problems, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n- %s", core.ErrConfiguration, strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
