package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/fuzzopt/internal/comparison"
	"github.com/copyleftdev/fuzzopt/internal/errors"
	"github.com/copyleftdev/fuzzopt/internal/logging"
	"github.com/copyleftdev/fuzzopt/internal/optimization"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Database struct {
		Type string `env:"DB_TYPE" envDefault:"memory"`
		DSN  string `env:"DB_DSN"`
	}
	Fuzzy struct {
		Resolution int `env:"FUZZY_RESOLUTION" envDefault:"100"`
	}
	Optimization struct {
		WorkerCount int     `env:"OPT_WORKER_COUNT" envDefault:"4"`
		Seed        int64   `env:"OPT_SEED" envDefault:"0"`
		Tolerance   float64 `env:"OPT_AGREEMENT_TOLERANCE" envDefault:"0.01"`
		// Zero selects the driver default for every parameter below.
		DEPopulation    int     `env:"OPT_DE_POPULATION"`
		DEMaxIterations int     `env:"OPT_DE_MAX_ITERATIONS"`
		DECrossover     float64 `env:"OPT_DE_CROSSOVER"`
		DETolerance     float64 `env:"OPT_DE_TOLERANCE"`
		GAPopulation    int     `env:"OPT_GA_POPULATION"`
		GAGenerations   int     `env:"OPT_GA_GENERATIONS"`
		GACrossover     float64 `env:"OPT_GA_CROSSOVER"`
		GAMutation      float64 `env:"OPT_GA_MUTATION"`
	}
	Report struct {
		Dir string `env:"REPORT_DIR" envDefault:"reports"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		}
	}

	// Set default database DSN based on store type
	if cfg.Database.Type == "sqlite" && cfg.Database.DSN == "" {
		// Ensure the data directory exists
		if err := os.MkdirAll("data", 0o755); err != nil {
			return nil, errors.Wrap(err, "create data directory")
		}
		cfg.Database.DSN = filepath.Join("data", "fuzzopt.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that env parsing alone cannot.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "memory", "sqlite":
	default:
		return errors.Configurationf("DB_TYPE must be memory or sqlite, got %q", c.Database.Type)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return errors.Configurationf("LOG_LEVEL: %v", err)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return errors.Configurationf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.Configurationf("HTTP_PORT out of range: %d", c.HTTP.Port)
	}
	if c.Fuzzy.Resolution < 1 {
		return errors.Configurationf("FUZZY_RESOLUTION must be positive, got %d", c.Fuzzy.Resolution)
	}
	if c.Optimization.WorkerCount < 1 {
		return errors.Configurationf("OPT_WORKER_COUNT must be positive, got %d", c.Optimization.WorkerCount)
	}
	if c.Optimization.Tolerance < 0 || c.Optimization.Tolerance > 1 {
		return errors.Configurationf("OPT_AGREEMENT_TOLERANCE must be in [0, 1], got %v", c.Optimization.Tolerance)
	}
	return nil
}

// Comparison returns the comparator settings described by the Optimization
// group.
func (c *Config) Comparison() comparison.Config {
	o := c.Optimization
	return comparison.Config{
		Seed:      o.Seed,
		Workers:   o.WorkerCount,
		Tolerance: o.Tolerance,
		DifferentialEvolution: optimization.OptimizerConfig{
			PopulationSize: o.DEPopulation,
			MaxIterations:  o.DEMaxIterations,
			CrossoverRate:  o.DECrossover,
			Tolerance:      o.DETolerance,
		},
		Genetic: optimization.OptimizerConfig{
			PopulationSize: o.GAPopulation,
			MaxIterations:  o.GAGenerations,
			CrossoverRate:  o.GACrossover,
			MutationRate:   o.GAMutation,
		},
	}
}

// GetEnv returns the value of the environment variable or the default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt returns the value of the environment variable as int or the default value
func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
