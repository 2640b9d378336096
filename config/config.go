/*
config.go - Runtime configuration

PURPOSE:
  Collects the server settings from a .env file (if present) and the
  process environment. Command-line flags set by cmd/server override
  whatever is loaded here.

ENVIRONMENT:
  MFG_PORT          HTTP port (default 8080)
  MFG_DB_PATH       SQLite path (default mfg.db). "memory" selects the
                    in-memory store, ":memory:" an in-memory SQLite database.
  MFG_LOG_LEVEL     logrus level name (default info)
  MFG_LOG_FORMAT    text | json (default text)
  MFG_CORS_ORIGINS  comma separated list of allowed origins
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// MemoryDB is the MFG_DB_PATH value that selects the in-memory store.
const MemoryDB = "memory"

type Config struct {
	Port        int
	DBPath      string
	LogLevel    string
	LogFormat   string
	CORSOrigins []string
}

func Default() Config {
	return Config{
		Port:        8080,
		DBPath:      "mfg.db",
		LogLevel:    "info",
		LogFormat:   "text",
		CORSOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
	}
}

// Load reads .env files (missing files are ignored) and then the environment.
func Load(files ...string) (Config, error) {
	// If .env is missing, ignore error (env vars can be set by other means)
	_ = godotenv.Load(files...)
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function, starting from Default.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if v, ok := lookup("MFG_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return cfg, fmt.Errorf("invalid MFG_PORT %q", v)
		}
		cfg.Port = port
	}
	if v, ok := lookup("MFG_DB_PATH"); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := lookup("MFG_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup("MFG_LOG_FORMAT"); ok && v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v, ok := lookup("MFG_CORS_ORIGINS"); ok && v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (use text or json)", c.LogFormat)
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

// UseMemoryStore reports whether DBPath selects the in-memory store.
func (c Config) UseMemoryStore() bool {
	return c.DBPath == MemoryDB
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
