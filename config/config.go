// Package config loads server settings from .env, the environment and flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MemoryStore is the DBPath value that selects the in-memory store.
const MemoryStore = "memory"

type Config struct {
	Port        int
	DBPath      string
	LogLevel    string
	LogFormat   string
	LockTimeout time.Duration
	MaxRetries  int
	SeedAdminID string
	CORSOrigins []string
}

func Default() Config {
	return Config{
		Port:        8080,
		DBPath:      "leave.db",
		LogLevel:    "info",
		LogFormat:   "json",
		LockTimeout: 2 * time.Second,
		MaxRetries:  2,
		SeedAdminID: "admin",
		CORSOrigins: []string{"*"},
	}
}

// Load reads envFile (missing is fine), then the process environment, then
// args. Every invalid environment value is reported in one error.
func Load(envFile string, args []string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}

	fset := flag.NewFlagSet("leave-engine", flag.ContinueOnError)
	fset.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fset.StringVar(&cfg.DBPath, "db", cfg.DBPath, `SQLite database path (":memory:" for ephemeral SQLite, "memory" for the map store)`)
	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Port <= 0 {
		return Config{}, fmt.Errorf("invalid port: %d", cfg.Port)
	}

	return cfg, nil
}

// FromEnv applies environment variables over Default.
func FromEnv() (Config, error) {
	cfg := Default()
	invalid := make([]string, 0, 2)

	if v := env("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 {
			invalid = append(invalid, "PORT")
		} else {
			cfg.Port = port
		}
	}

	if v := env("DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	if v := env("LOG_LEVEL"); v != "" {
		switch strings.ToLower(v) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(v)
		default:
			invalid = append(invalid, "LOG_LEVEL")
		}
	}

	if v := env("LOG_FORMAT"); v != "" {
		switch strings.ToLower(v) {
		case "json", "console":
			cfg.LogFormat = strings.ToLower(v)
		default:
			invalid = append(invalid, "LOG_FORMAT")
		}
	}

	if v := env("LOCK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			invalid = append(invalid, "LOCK_TIMEOUT")
		} else {
			cfg.LockTimeout = d
		}
	}

	if v := env("MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			invalid = append(invalid, "MAX_RETRIES")
		} else {
			cfg.MaxRetries = n
		}
	}

	if v := env("SEED_ADMIN_ID"); v != "" {
		cfg.SeedAdminID = v
	}

	if v := env("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORSOrigins = origins
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
