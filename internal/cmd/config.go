package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Iron-Ham/ownership/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify ownership configuration",
	Long: `View or modify ownership configuration.

Without arguments, displays the effective configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  ownership config set store.backend sqlite
  ownership config set lock.default_ttl 10m
  ownership config set lock.atomic_updates true`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// settableKeys maps each key accepted by "config set" to its value kind.
var settableKeys = map[string]string{
	"lock.default_ttl":        "duration",
	"lock.atomic_updates":     "bool",
	"store.backend":           "string",
	"store.file.dir":          "string",
	"store.file.lock_timeout": "duration",
	"store.sqlite.path":       "string",
	"store.redis.addr":        "string",
	"store.redis.password":    "string",
	"store.redis.db":          "int",
	"store.redis.key_prefix":  "string",
	"store.redis.mutex_ttl":   "duration",
	"store.etcd.dial_timeout": "duration",
	"store.etcd.key_prefix":   "string",
	"store.etcd.max_retries":  "int",
	"logging.enabled":         "bool",
	"logging.level":           "string",
	"logging.dir":             "string",
	"logging.max_size_mb":     "int",
	"logging.max_backups":     "int",
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	view := map[string]any{
		"lock": map[string]any{
			"default_ttl":    cfg.Lock.DefaultTTL.String(),
			"atomic_updates": cfg.Lock.AtomicUpdates,
		},
		"store": map[string]any{
			"backend": cfg.Store.Backend,
			"file": map[string]any{
				"dir":          cfg.Store.FileDir(),
				"lock_timeout": cfg.Store.File.LockTimeout.String(),
			},
			"sqlite": map[string]any{"path": cfg.Store.SQLitePath()},
			"redis": map[string]any{
				"addr":       cfg.Store.Redis.Addr,
				"password":   maskSecret(cfg.Store.Redis.Password),
				"db":         cfg.Store.Redis.DB,
				"key_prefix": cfg.Store.Redis.KeyPrefix,
				"mutex_ttl":  cfg.Store.Redis.MutexTTL.String(),
			},
			"etcd": map[string]any{
				"endpoints":    cfg.Store.Etcd.Endpoints,
				"dial_timeout": cfg.Store.Etcd.DialTimeout.String(),
				"key_prefix":   cfg.Store.Etcd.KeyPrefix,
				"max_retries":  cfg.Store.Etcd.MaxRetries,
			},
		},
		"logging": map[string]any{
			"enabled":     cfg.Logging.Enabled,
			"level":       cfg.Logging.Level,
			"dir":         cfg.Logging.ResolveDir(),
			"max_size_mb": cfg.Logging.MaxSizeMB,
			"max_backups": cfg.Logging.MaxBackups,
		},
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return err
	}
	return enc.Close()
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	kind, ok := settableKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'ownership config set --help' to see examples", key)
	}

	var typedValue any
	switch kind {
	case "string":
		typedValue = value
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = b
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		typedValue = n
	case "duration":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid value for %s: expected a duration such as 90s or 5m", key)
		}
		typedValue = value
	}

	viper.Set(key, typedValue)
	if _, err := config.Load(); err != nil {
		return err
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = config.ConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

const defaultConfigContent = `# Ownership configuration

lock:
  # Lifetime of a lock when no --ttl is given
  default_ttl: 5m
  # Serialize registry updates through the backend's own locking.
  # When false, two agents acquiring at the same instant may both succeed
  # and the later save wins.
  atomic_updates: false

store:
  # Options: file, sqlite, redis, etcd, memory
  backend: file
  file:
    # Default: <config dir>/locks
    dir: ""
    lock_timeout: 5s
  sqlite:
    # Default: <config dir>/ownership.db
    path: ""
  redis:
    addr: localhost:6379
    password: ""
    db: 0
    key_prefix: "ownership:"
    mutex_ttl: 5s
  etcd:
    endpoints:
      - localhost:2379
    dial_timeout: 5s
    key_prefix: /ownership/
    max_retries: 8

logging:
  enabled: true
  # Options: debug, info, warn, error
  level: info
  # Default: <config dir>/logs
  dir: ""
  max_size_mb: 10
  max_backups: 3
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'ownership config set' to modify values", configFile)
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", config.ConfigFile())
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintln(out, "\nEnvironment variables: OWNERSHIP_* (e.g., OWNERSHIP_STORE_BACKEND)")
	return nil
}
