package cmd

import (
	"strings"

	"github.com/Iron-Ham/ownership/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "ownership",
	Short: "Advisory file locks for agents sharing a working tree",
	Long: `Ownership coordinates several agents editing one working tree. An agent
acquires a lock on each file before touching it; other agents asking for
the same file are told who holds it and until when. Locks expire on their
own after a TTL, so a crashed agent never blocks the tree for long.

Locks are kept per scope (the working-tree root, the current directory by
default) in the configured store backend.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/ownership/config.yaml)")
	rootCmd.PersistentFlags().String("scope", "", "working-tree root the locks belong to (default is the current directory)")
	rootCmd.PersistentFlags().String("backend", "", "store backend: file, sqlite, redis, etcd or memory")
	rootCmd.PersistentFlags().Bool("atomic", false, "serialize registry updates through the backend's own locking")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("scope", rootCmd.PersistentFlags().Lookup("scope"))
	_ = viper.BindPFlag("store.backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("lock.atomic_updates", rootCmd.PersistentFlags().Lookup("atomic"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("OWNERSHIP")
	// Replace dots with underscores for nested keys in env vars
	// e.g., OWNERSHIP_STORE_BACKEND for store.backend
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
