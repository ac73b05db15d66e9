// Package config loads cluster bootstrap configuration from YAML, the
// format used throughout the retrieval pack (teacher and cuemby/warren
// alike) for static node config.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	NumShards          uint16     `yaml:"num_shards"`
	ReplicationFactor  int        `yaml:"replication_factor"`
	VirtualNodes       int        `yaml:"virtual_nodes"`
	Watermarks         Watermarks `yaml:"watermarks"`
	Transport          Transport  `yaml:"transport"`
	SegmentTargetBytes int64      `yaml:"segment_target_bytes"`
}

type Watermarks struct {
	LowPct      uint8 `yaml:"low_pct"`
	HighPct     uint8 `yaml:"high_pct"`
	CriticalPct uint8 `yaml:"critical_pct"`
}

type Transport struct {
	FailureThreshold      int   `yaml:"failure_threshold"`
	RecoveryThreshold     int   `yaml:"recovery_threshold"`
	LatencyThresholdMs    int64 `yaml:"latency_threshold_ms"`
	CircuitOpenDurationMs int64 `yaml:"circuit_open_duration_ms"`
	CircuitTimeoutMs      int64 `yaml:"circuit_timeout_ms"`
	MaxBatchSize          int   `yaml:"max_batch_size"`
	MaxBatchBytes         int   `yaml:"max_batch_bytes"`
	LingerMs              int64 `yaml:"linger_ms"`
	StarvationThreshold   int   `yaml:"starvation_threshold"`
}

func Default() *Config {
	return &Config{
		NumShards:         256,
		ReplicationFactor: 3,
		VirtualNodes:      150,
		Watermarks:        Watermarks{LowPct: 60, HighPct: 80, CriticalPct: 95},
		Transport: Transport{
			FailureThreshold:      5,
			RecoveryThreshold:     3,
			LatencyThresholdMs:    500,
			CircuitOpenDurationMs: 30_000,
			CircuitTimeoutMs:      5_000,
			MaxBatchSize:          128,
			MaxBatchBytes:         4 << 20,
			LingerMs:              10,
			StarvationThreshold:   8,
		},
		SegmentTargetBytes: 2 << 20,
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
