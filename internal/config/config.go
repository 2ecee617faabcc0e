// Package config loads the lookalike.yaml service configuration.
package config

import "time"

// Config is the top-level lookalike.yaml structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Matching MatchingConfig `yaml:"matching"`
	Log      LogConfig      `yaml:"log"`
	Cluster  ClusterConfig  `yaml:"cluster"`
}

type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	AllowOrigins []string `yaml:"allow_origins,omitempty"`
	BodyLimit    int      `yaml:"body_limit,omitempty"`
	// AdminToken guards /admin routes. Without it they answer 403.
	AdminToken string `yaml:"admin_token,omitempty"`
	// AllowReloadSource lets /admin/reload load a location other than
	// catalog.path.
	AllowReloadSource bool `yaml:"allow_reload_source,omitempty"`
}

// CatalogConfig says where the prototype catalog lives. Path is a file path
// or an s3://bucket/key location.
type CatalogConfig struct {
	Path       string `yaml:"path"`
	Watch      bool   `yaml:"watch,omitempty"`
	S3Region   string `yaml:"s3_region,omitempty"`
	S3Endpoint string `yaml:"s3_endpoint,omitempty"`
}

// MatchingConfig holds the engine options.
type MatchingConfig struct {
	ExpectedDimension int      `yaml:"expected_dimension"`
	TopK              int      `yaml:"top_k"`
	Threshold         *float64 `yaml:"threshold,omitempty"`
	ScoreMode         string   `yaml:"score_mode"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ClusterConfig enables raft replication of catalog reloads.
type ClusterConfig struct {
	Enabled   bool          `yaml:"enabled"`
	NodeID    string        `yaml:"node_id"`
	RaftAddr  string        `yaml:"raft_addr"`
	DataDir   string        `yaml:"data_dir"`
	Bootstrap bool          `yaml:"bootstrap"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	// Join is the HTTP base URL of a running member. On start the node asks
	// it to add this node as a voter.
	Join string `yaml:"join,omitempty"`
}
