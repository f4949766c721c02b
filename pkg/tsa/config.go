package tsa

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SchemeConfig holds per-scheme overrides.
type SchemeConfig struct {
	// Library is the shared object path, replacing lib_dir/<default name>.
	Library string `yaml:"library"`
}

// Config is the server configuration.
//
// Example YAML:
//
//	listen_addr: ":8080"
//	param_dir: "./params"
//	lib_dir: "./lib"
//	default_scheme: stealth
//	max_benchmark_iterations: 1000
//	log_level: info
//	log_format: text
//	cors_origins: ["http://localhost:3000"]
//	schemes:
//	  sitaiba:
//	    library: /opt/tsa/lib/libsitaiba.so
type Config struct {
	ListenAddr             string                  `yaml:"listen_addr"`
	ParamDir               string                  `yaml:"param_dir"`
	LibDir                 string                  `yaml:"lib_dir"`
	DefaultScheme          string                  `yaml:"default_scheme"`
	MaxBenchmarkIterations int                     `yaml:"max_benchmark_iterations"`
	LogLevel               string                  `yaml:"log_level"`
	LogFormat              string                  `yaml:"log_format"`
	CORSOrigins            []string                `yaml:"cors_origins"`
	Schemes                map[string]SchemeConfig `yaml:"schemes"`
}

// Environment variables applied over the file configuration.
const (
	EnvListenAddr    = "STEALTHD_LISTEN_ADDR"
	EnvParamDir      = "STEALTHD_PARAM_DIR"
	EnvLibDir        = "STEALTHD_LIB_DIR"
	EnvDefaultScheme = "STEALTHD_DEFAULT_SCHEME"
	EnvLogLevel      = "STEALTHD_LOG_LEVEL"
	EnvMaxIterations = "STEALTHD_MAX_BENCHMARK_ITERATIONS"
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:             ":8080",
		ParamDir:               "params",
		LibDir:                 "lib",
		MaxBenchmarkIterations: DefaultMaxBenchmarkIterations,
		LogLevel:               "info",
		LogFormat:              "text",
		CORSOrigins:            []string{"*"},
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(body, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads key=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an
// error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from the STEALTHD_* variables returned by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for env, dst := range map[string]*string{
		EnvListenAddr:    &c.ListenAddr,
		EnvParamDir:      &c.ParamDir,
		EnvLibDir:        &c.LibDir,
		EnvDefaultScheme: &c.DefaultScheme,
		EnvLogLevel:      &c.LogLevel,
	} {
		if v, ok := lookup(env); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup(EnvMaxIterations); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxIterations, err)
		}
		c.MaxBenchmarkIterations = n
	}
	return c.Validate()
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("config: listen_addr is required")
	}
	if c.MaxBenchmarkIterations <= 0 {
		return fmt.Errorf("config: max_benchmark_iterations must be positive, got %d", c.MaxBenchmarkIterations)
	}
	return nil
}

// LibraryOverrides returns the per-scheme library paths.
func (c *Config) LibraryOverrides() map[string]string {
	out := make(map[string]string, len(c.Schemes))
	for id, sc := range c.Schemes {
		if sc.Library != "" {
			out[id] = sc.Library
		}
	}
	return out
}
