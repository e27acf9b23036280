// Package config loads service configuration from defaults, an optional
// YAML file, and BATCHDESK_-prefixed environment variables, with hot
// reload of the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Firestore  FirestoreConfig  `mapstructure:"firestore" yaml:"firestore"`
	Assignment AssignmentConfig `mapstructure:"assignment" yaml:"assignment"`
	Sweep      SweepConfig      `mapstructure:"sweep" yaml:"sweep"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// FirestoreConfig holds store backend settings.
type FirestoreConfig struct {
	ProjectID              string `mapstructure:"project_id" yaml:"project_id"`
	BatchCollection        string `mapstructure:"batch_collection" yaml:"batch_collection"`
	DocumentCollection     string `mapstructure:"document_collection" yaml:"document_collection"`
	OrganizationCollection string `mapstructure:"organization_collection" yaml:"organization_collection"`
}

// AssignmentConfig bounds the contention retry loop on batch assignment.
type AssignmentConfig struct {
	RetryAttempts  uint          `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
	RetryMaxJitter time.Duration `mapstructure:"retry_max_jitter" yaml:"retry_max_jitter"`
}

// SweepConfig holds the liveness sweep cadence and staleness policies.
type SweepConfig struct {
	Interval            time.Duration `mapstructure:"interval" yaml:"interval"`
	StaleThreshold      time.Duration `mapstructure:"stale_threshold" yaml:"stale_threshold"`
	AggressiveThreshold time.Duration `mapstructure:"aggressive_threshold" yaml:"aggressive_threshold"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Firestore: FirestoreConfig{
			BatchCollection:        "batches",
			DocumentCollection:     "documents",
			OrganizationCollection: "organizations",
		},
		Assignment: AssignmentConfig{
			RetryAttempts:  5,
			RetryBaseDelay: 50 * time.Millisecond,
			RetryMaxJitter: 250 * time.Millisecond,
		},
		Sweep: SweepConfig{
			Interval:            time.Minute,
			StaleThreshold:      20 * time.Minute,
			AggressiveThreshold: 5 * time.Minute,
		},
	}
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a config manager and loads the initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("server", defaults.Server)
	viper.SetDefault("firestore", defaults.Firestore)
	viper.SetDefault("assignment", defaults.Assignment)
	viper.SetDefault("sweep", defaults.Sweep)

	viper.SetEnvPrefix("BATCHDESK")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.batchdesk")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of the config file.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// WriteDefault writes the default configuration to the given path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Batchdesk configuration
# Environment variables with the BATCHDESK_ prefix override file values,
# e.g. BATCHDESK_FIRESTORE_PROJECT_ID.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
