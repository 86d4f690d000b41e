package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete ownership configuration
type Config struct {
	Lock    LockConfig    `mapstructure:"lock"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// LockConfig controls lock acquisition
type LockConfig struct {
	// DefaultTTL is how long a lock lives when no --ttl is given (default: 5m)
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	// AtomicUpdates serializes each load–modify–save cycle through the
	// backend's own locking (flock, SQLite transaction, Redis mutex, etcd
	// compare-and-swap). When false, concurrent writers race and the last
	// save wins. (default: false)
	AtomicUpdates bool `mapstructure:"atomic_updates"`
}

// Store backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendEtcd   = "etcd"
	BackendMemory = "memory"
)

// StoreConfig selects and configures the registry backend
type StoreConfig struct {
	// Backend is one of "file", "sqlite", "redis", "etcd" or "memory" (default: "file")
	Backend string            `mapstructure:"backend"`
	File    FileStoreConfig   `mapstructure:"file"`
	SQLite  SQLiteStoreConfig `mapstructure:"sqlite"`
	Redis   RedisStoreConfig  `mapstructure:"redis"`
	Etcd    EtcdStoreConfig   `mapstructure:"etcd"`
}

// FileStoreConfig configures the JSON file backend
type FileStoreConfig struct {
	// Dir holds one subdirectory per scope (default: <config dir>/locks)
	Dir string `mapstructure:"dir"`
	// LockTimeout bounds the wait for a registry's flock when atomic updates are on
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// SQLiteStoreConfig configures the SQLite backend
type SQLiteStoreConfig struct {
	// Path is the database file (default: <config dir>/ownership.db)
	Path string `mapstructure:"path"`
}

// RedisStoreConfig configures the Redis backend
type RedisStoreConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	// MutexTTL is the lifetime of the per-scope mutex taken by atomic updates
	MutexTTL time.Duration `mapstructure:"mutex_ttl"`
}

// EtcdStoreConfig configures the etcd backend
type EtcdStoreConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	// MaxRetries bounds compare-and-swap attempts per atomic update
	MaxRetries int `mapstructure:"max_retries"`
}

// LoggingConfig controls the debug log file
type LoggingConfig struct {
	// Enabled turns on JSON logging to <dir>/ownership.log (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is one of "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the log directory (default: <config dir>/logs)
	Dir string `mapstructure:"dir"`
	// MaxSizeMB rotates the log file at this size (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is how many rotated files are kept (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Lock: LockConfig{
			DefaultTTL:    5 * time.Minute,
			AtomicUpdates: false,
		},
		Store: StoreConfig{
			Backend: BackendFile,
			File: FileStoreConfig{
				Dir:         "",
				LockTimeout: 5 * time.Second,
			},
			SQLite: SQLiteStoreConfig{
				Path: "",
			},
			Redis: RedisStoreConfig{
				Addr:      "localhost:6379",
				DB:        0,
				KeyPrefix: "ownership:",
				MutexTTL:  5 * time.Second,
			},
			Etcd: EtcdStoreConfig{
				Endpoints:   []string{"localhost:2379"},
				DialTimeout: 5 * time.Second,
				KeyPrefix:   "/ownership/",
				MaxRetries:  8,
			},
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Lock defaults
	viper.SetDefault("lock.default_ttl", defaults.Lock.DefaultTTL)
	viper.SetDefault("lock.atomic_updates", defaults.Lock.AtomicUpdates)

	// Store defaults
	viper.SetDefault("store.backend", defaults.Store.Backend)
	viper.SetDefault("store.file.dir", defaults.Store.File.Dir)
	viper.SetDefault("store.file.lock_timeout", defaults.Store.File.LockTimeout)
	viper.SetDefault("store.sqlite.path", defaults.Store.SQLite.Path)
	viper.SetDefault("store.redis.addr", defaults.Store.Redis.Addr)
	viper.SetDefault("store.redis.password", defaults.Store.Redis.Password)
	viper.SetDefault("store.redis.db", defaults.Store.Redis.DB)
	viper.SetDefault("store.redis.key_prefix", defaults.Store.Redis.KeyPrefix)
	viper.SetDefault("store.redis.mutex_ttl", defaults.Store.Redis.MutexTTL)
	viper.SetDefault("store.etcd.endpoints", defaults.Store.Etcd.Endpoints)
	viper.SetDefault("store.etcd.dial_timeout", defaults.Store.Etcd.DialTimeout)
	viper.SetDefault("store.etcd.key_prefix", defaults.Store.Etcd.KeyPrefix)
	viper.SetDefault("store.etcd.max_retries", defaults.Store.Etcd.MaxRetries)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ownership")
	}
	// Fall back to ~/.config/ownership
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ownership"
	}
	return filepath.Join(home, ".config", "ownership")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// FileDir returns the file backend's root directory.
func (s *StoreConfig) FileDir() string {
	return resolvePath(s.File.Dir, filepath.Join(ConfigDir(), "locks"))
}

// SQLitePath returns the SQLite database file.
func (s *StoreConfig) SQLitePath() string {
	return resolvePath(s.SQLite.Path, filepath.Join(ConfigDir(), "ownership.db"))
}

// ResolveDir returns the log directory.
func (l *LoggingConfig) ResolveDir() string {
	return resolvePath(l.Dir, filepath.Join(ConfigDir(), "logs"))
}

// resolvePath expands a leading ~ in path, or returns def when path is empty.
func resolvePath(path, def string) string {
	if path == "" {
		return def
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

// ValidBackends returns the list of valid store backends
func ValidBackends() []string {
	return []string{BackendFile, BackendSQLite, BackendRedis, BackendEtcd, BackendMemory}
}
