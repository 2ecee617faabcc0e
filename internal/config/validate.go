package config

import (
	"errors"
	"fmt"
)

// Validate checks option ranges. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Matching.ExpectedDimension <= 0 {
		errs = append(errs, fmt.Errorf("matching.expected_dimension must be positive, got %d", c.Matching.ExpectedDimension))
	}
	if c.Matching.TopK <= 0 {
		errs = append(errs, fmt.Errorf("matching.top_k must be positive, got %d", c.Matching.TopK))
	}
	if t := c.Matching.Threshold; t != nil && (*t < -1 || *t > 1) {
		errs = append(errs, fmt.Errorf("matching.threshold must be within [-1, 1], got %v", *t))
	}
	switch c.Matching.ScoreMode {
	case "percent", "cosine":
	default:
		errs = append(errs, fmt.Errorf("matching.score_mode must be percent or cosine, got %q", c.Matching.ScoreMode))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Cluster.Enabled && c.Cluster.NodeID == "" {
		errs = append(errs, errors.New("cluster.node_id is required when cluster.enabled is set"))
	}
	if c.Cluster.Join != "" {
		if c.Cluster.Bootstrap {
			errs = append(errs, errors.New("cluster.join and cluster.bootstrap are mutually exclusive"))
		}
		if c.Server.AdminToken == "" {
			errs = append(errs, errors.New("cluster.join requires server.admin_token"))
		}
	}

	return errors.Join(errs...)
}
