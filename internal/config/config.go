// Package config provides configuration management for iscsidb.
//
// Two files are involved:
//   - the tool settings file (iscsidb.yaml) says where the tables live,
//     which iscsid.conf to read and how to log
//   - iscsid.conf overrides the hardcoded record defaults (see LoadDefaults)
//
// Settings file locations (priority order):
//  1. $ISCSIDB_CONFIG
//  2. ./iscsidb.yaml
//  3. ~/.config/iscsidb/config.yaml
//  4. /etc/iscsidb/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDBDir             = "/var/db/iscsi"
	DefaultDiscoveryFile     = "discovery.db"
	DefaultNodeFile          = "node.db"
	DefaultISCSIConfig       = "/etc/iscsi/iscsid.conf"
	DefaultInitiatorNameFile = "/etc/iscsi/initiatorname.iscsi"
)

// Config is the tool settings file
type Config struct {
	Version  int            `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	ISCSI    ISCSIConfig    `yaml:"iscsi"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig locates the two record tables
type DatabaseConfig struct {
	Dir           string `yaml:"dir"`
	DiscoveryFile string `yaml:"discovery_file,omitempty"`
	NodeFile      string `yaml:"node_file,omitempty"`
}

// ISCSIConfig locates the initiator's own configuration files
type ISCSIConfig struct {
	ConfigFile        string `yaml:"config_file"`
	InitiatorNameFile string `yaml:"initiator_name_file"`
}

// LogConfig controls logger construction
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr or file

	FilePath   string `yaml:"file_path,omitempty"`
	MaxSize    int    `yaml:"max_size,omitempty"` // megabytes
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAge     int    `yaml:"max_age,omitempty"` // days
	Compress   bool   `yaml:"compress,omitempty"`
}

// DiscoveryPath returns the discovery table path
func (d DatabaseConfig) DiscoveryPath() string {
	return filepath.Join(d.Dir, d.DiscoveryFile)
}

// NodePath returns the node table path
func (d DatabaseConfig) NodePath() string {
	return filepath.Join(d.Dir, d.NodeFile)
}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns the settings of a stock installation
func DefaultConfig() *Config {
	cfg := &Config{Version: 1}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Database.Dir == "" {
		c.Database.Dir = DefaultDBDir
	}
	if c.Database.DiscoveryFile == "" {
		c.Database.DiscoveryFile = DefaultDiscoveryFile
	}
	if c.Database.NodeFile == "" {
		c.Database.NodeFile = DefaultNodeFile
	}
	if c.ISCSI.ConfigFile == "" {
		c.ISCSI.ConfigFile = DefaultISCSIConfig
	}
	if c.ISCSI.InitiatorNameFile == "" {
		c.ISCSI.InitiatorNameFile = DefaultInitiatorNameFile
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stderr"
	}
	if c.Log.Output == "file" {
		if c.Log.MaxSize == 0 {
			c.Log.MaxSize = 10
		}
		if c.Log.MaxBackups == 0 {
			c.Log.MaxBackups = 3
		}
		if c.Log.MaxAge == 0 {
			c.Log.MaxAge = 28
		}
	}
}
