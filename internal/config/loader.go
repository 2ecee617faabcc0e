package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "LOOKALIKE_"

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load reads a lookalike.yaml file, applies LOOKALIKE_* environment
// overrides and defaults, and validates the result. An empty path skips the
// file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	var err error
	integer := func(name string, dst *int) {
		if v, ok := os.LookupEnv(envPrefix + name); ok && err == nil {
			n, convErr := strconv.Atoi(v)
			if convErr != nil {
				err = fmt.Errorf("%s%s: %w", envPrefix, name, convErr)
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(envPrefix + name); ok && err == nil {
			b, convErr := strconv.ParseBool(v)
			if convErr != nil {
				err = fmt.Errorf("%s%s: %w", envPrefix, name, convErr)
				return
			}
			*dst = b
		}
	}

	str("ADDR", &cfg.Server.Addr)
	str("ADMIN_TOKEN", &cfg.Server.AdminToken)
	boolean("ALLOW_RELOAD_SOURCE", &cfg.Server.AllowReloadSource)
	str("CATALOG_PATH", &cfg.Catalog.Path)
	boolean("CATALOG_WATCH", &cfg.Catalog.Watch)
	str("S3_REGION", &cfg.Catalog.S3Region)
	str("S3_ENDPOINT", &cfg.Catalog.S3Endpoint)
	integer("EXPECTED_DIMENSION", &cfg.Matching.ExpectedDimension)
	integer("TOP_K", &cfg.Matching.TopK)
	str("SCORE_MODE", &cfg.Matching.ScoreMode)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("CLUSTER_JOIN", &cfg.Cluster.Join)

	if v, ok := os.LookupEnv(envPrefix + "THRESHOLD"); ok && err == nil {
		t, convErr := strconv.ParseFloat(v, 64)
		if convErr != nil {
			return fmt.Errorf("%sTHRESHOLD: %w", envPrefix, convErr)
		}
		cfg.Matching.Threshold = &t
	}
	return err
}

func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if len(cfg.Server.AllowOrigins) == 0 {
		cfg.Server.AllowOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	}
	if cfg.Server.BodyLimit == 0 {
		cfg.Server.BodyLimit = 8 * 1024 * 1024
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "data/prototypes.json"
	}
	if cfg.Matching.ExpectedDimension == 0 {
		cfg.Matching.ExpectedDimension = 512
	}
	if cfg.Matching.TopK == 0 {
		cfg.Matching.TopK = 3
	}
	if cfg.Matching.ScoreMode == "" {
		cfg.Matching.ScoreMode = "percent"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Cluster.DataDir == "" {
		cfg.Cluster.DataDir = "data/raft"
	}
	if cfg.Cluster.RaftAddr == "" {
		cfg.Cluster.RaftAddr = "127.0.0.1:19000"
	}
	if cfg.Cluster.Timeout == 0 {
		cfg.Cluster.Timeout = 10 * time.Second
	}
}
