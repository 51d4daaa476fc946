// Package config loads the broker and client-herd YAML configuration,
// grounded on the teacher's internal/config.LoadConfig
// (os.Open + yaml.NewDecoder). Unlike the teacher, there is no per-tenant
// override layer here: spec.md has no tenant concept, so
// internal/config/manager.go's Manager.Get(tenantID) merge logic has no
// home and is not carried forward (see DESIGN.md).
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the broker's full runtime configuration.
type Config struct {
	Broker    BrokerConfig    `yaml:"broker"`
	Handshake HandshakeConfig `yaml:"handshake"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// BrokerConfig covers the network-facing settings of the scheduler and
// its TCP listener (spec.md C5/C7).
type BrokerConfig struct {
	ListenAddress    string `yaml:"listen_address"`
	MaxFrameBytes    uint32 `yaml:"max_frame_bytes"`
	DispatchQueueLen int    `yaml:"dispatch_queue_len"`
}

// HandshakeConfig resolves spec.md §9's open question: the source has no
// handshake timeout at all; this gives it a configurable one.
type HandshakeConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// RateLimitConfig bounds the rate of client operations per session,
// grounded on the teacher's internal/middleware.RateLimiter.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	MaxRequests       int           `yaml:"max_requests"`
	Window            time.Duration `yaml:"window"`
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Default returns the configuration used when no config file is given:
// spec.md's stated defaults (16 MiB frame cap, 10s handshake timeout).
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			ListenAddress:    "0.0.0.0:10000",
			MaxFrameBytes:    16 * 1024 * 1024,
			DispatchQueueLen: 1024,
		},
		Handshake: HandshakeConfig{
			Timeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxRequests: 200,
			Window:      time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: "0.0.0.0:9090",
		},
	}
}

// LoadConfig reads and decodes a YAML config file over Default(): fields
// the file does not set keep their default values, while a field the
// file sets explicitly (even to zero) overrides its default.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
