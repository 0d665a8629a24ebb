package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/anneal/internal/optimization/anneal"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Database struct {
		// DSN is a sqlite path or URI. Empty disables run persistence.
		DSN string `env:"DB_DSN" envDefault:"data/anneal.db"`
	}
	Optimization struct {
		WorkerCount int           `env:"OPT_WORKER_COUNT" envDefault:"4"`
		JobTimeout  time.Duration `env:"OPT_JOB_TIMEOUT" envDefault:"5m"`
		Schedule    string        `env:"ANNEAL_SCHEDULE" envDefault:"fast"`
		MaxIter     int           `env:"ANNEAL_MAXITER" envDefault:"400"`
		MaxEval     int           `env:"ANNEAL_MAXEVAL" envDefault:"0"`
		Dwell       int           `env:"ANNEAL_DWELL" envDefault:"50"`
		Polish      bool          `env:"ANNEAL_POLISH" envDefault:"false"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure the data directory exists for file databases
	if dir := dataDir(cfg.Database.DSN); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks the optimization defaults.
func (c *Config) Validate() error {
	if c.Optimization.WorkerCount < 1 {
		return fmt.Errorf("OPT_WORKER_COUNT must be at least 1, got %d", c.Optimization.WorkerCount)
	}
	_, err := c.AnnealOptions()
	return err
}

// AnnealOptions returns the default options applied to jobs that do not
// override them.
func (c *Config) AnnealOptions() (anneal.Options, error) {
	opts := anneal.DefaultOptions()
	schedule, err := anneal.ParseSchedule(c.Optimization.Schedule)
	if err != nil {
		return anneal.Options{}, err
	}
	opts.Schedule = schedule
	opts.MaxIter = c.Optimization.MaxIter
	opts.MaxEval = c.Optimization.MaxEval
	opts.Dwell = c.Optimization.Dwell
	opts.Polish = c.Optimization.Polish
	if err := opts.Validate(); err != nil {
		return anneal.Options{}, err
	}
	return opts, nil
}

// dataDir returns the directory holding a file DSN, or "" for in-memory and
// empty DSNs.
func dataDir(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}

// GetEnv returns the value of the environment variable or the default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
