// Package config resolves node configuration from CLI flags and an
// optional YAML overlay file, following the precedence flags > file >
// built-in defaults.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the fully resolved set of inputs the core consumes at
// start-up.
type Config struct {
	ListenPort  uint16   `yaml:"listen_port"`
	DataDir     string   `yaml:"data_dir"`
	NodeKeyPath string   `yaml:"node_key_path"`
	Bootnodes   []string `yaml:"bootnodes"`

	SuperNodeCount   int `yaml:"super_node_count"`
	BlockTimeSeconds int `yaml:"block_time_seconds"`
	RewardedTopX     int `yaml:"rewarded_top_x"`

	MaxConnections int `yaml:"max_connections"`
	MinPeers       int `yaml:"min_peers"`
	WorkerThreads  int `yaml:"worker_threads"`

	EnableCompression bool `yaml:"enable_compression"`
	EnableEncryption  bool `yaml:"enable_encryption"`
	MessageTTLMs      int  `yaml:"message_ttl_ms"`

	FeeThreshold uint64 `yaml:"fee_threshold"`
}

// Defaults returns the built-in baseline, overridden in turn by a
// config file and then by explicit flags.
func Defaults() Config {
	return Config{
		ListenPort:        11235,
		DataDir:           defaultDataDir(),
		NodeKeyPath:       "",
		SuperNodeCount:    50,
		BlockTimeSeconds:  8,
		RewardedTopX:      15,
		MaxConnections:    32,
		MinPeers:          4,
		WorkerThreads:     4,
		EnableCompression: true,
		EnableEncryption:  true,
		MessageTTLMs:      5 * 60 * 1000,
		FeeThreshold:      1,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vrfchain"
	}
	return home + "/.vrfchain"
}

// LoadFile overlays cfg with the contents of a YAML file at path. A
// missing file is not an error: it leaves cfg untouched, since the
// file is optional and defaults/flags may fully cover a run.
func LoadFile(cfg Config, path string) (Config, error) {
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrap(err, "config: read file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "config: parse file")
	}
	return cfg, nil
}

// Validate enforces the invariants the core requires before it will
// start consensus.
func (c Config) Validate() error {
	if c.ListenPort == 0 {
		return errInvalidListenPort
	}
	if c.MinPeers <= 0 {
		return errInvalidMinPeers
	}
	if c.MaxConnections < c.MinPeers {
		return errMaxBelowMin
	}
	if c.SuperNodeCount <= 0 {
		return errInvalidSuperNodeCount
	}
	if c.RewardedTopX <= 0 || c.RewardedTopX > c.SuperNodeCount {
		return errInvalidRewardedTopX
	}
	return nil
}

var (
	errInvalidListenPort     = errors.New("config: listen_port is required")
	errInvalidMinPeers       = errors.New("config: min_peers must be positive")
	errMaxBelowMin           = errors.New("config: max_connections must be >= min_peers")
	errInvalidSuperNodeCount = errors.New("config: super_node_count must be positive")
	errInvalidRewardedTopX   = errors.New("config: rewarded_top_x must be in (0, super_node_count]")
)
