// Package cli implements the command-line interface for Fakturo
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	fklogger "github.com/fakturo/fakturo/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	verboseMode bool
	version     string
	buildDate   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fakturo",
	Short: "Fakturo - Keep your invoices in sync across devices",
	Long: `Fakturo synchronizes a local invoice data directory with a cloud
backend and resolves concurrent edits automatically.

Records are merged field-for-field on their last-modified timestamps,
deletions propagate as tombstones, and every resolved conflict is kept
on record for later inspection. Google Drive and WebDAV backends are
supported.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, bd string) {
	version = v
	buildDate = bd
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildDate)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fakturo/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add all subcommands
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(logsCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(fakturoDir())
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("FAKTURO")
	viper.AutomaticEnv() // read in environment variables that match

	setDefaults()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil && verboseMode {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}

	logLevel := viper.GetString("logging.level")
	if verboseMode {
		logLevel = "debug"
	}
	fklogger.Initialize(&fklogger.LogConfig{
		Level:       logLevel,
		OutputPath:  viper.GetString("logging.file"),
		MaxSize:     viper.GetInt("logging.max_size"),
		MaxBackups:  viper.GetInt("logging.max_backups"),
		MaxAge:      viper.GetInt("logging.max_age"),
		Compress:    true,
		Development: verboseMode,
	})
}

func setDefaults() {
	dir := fakturoDir()
	viper.SetDefault("data.dir", filepath.Join(dir, "data"))
	viper.SetDefault("database.path", filepath.Join(dir, "fakturo.db"))
	viper.SetDefault("sync.data_source", "")
	viper.SetDefault("sync.interval", "5m")
	viper.SetDefault("sync.retry_attempts", 3)
	viper.SetDefault("sync.retry_delay", "30s")
	viper.SetDefault("watch.debounce", "2s")
	viper.SetDefault("drive.credentials_file", "")
	viper.SetDefault("drive.token_file", "")
	viper.SetDefault("drive.root_folder", "Fakturo")
	viper.SetDefault("webdav.url", "")
	viper.SetDefault("webdav.username", "")
	viper.SetDefault("webdav.password", "")
	viper.SetDefault("webdav.root_path", "/Fakturo")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", filepath.Join(dir, "logs", "fakturo.log"))
	viper.SetDefault("logging.max_size", 50)
	viper.SetDefault("logging.max_backups", 5)
	viper.SetDefault("logging.max_age", 30)
}

// fakturoDir returns the application home directory
func fakturoDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get home directory: %v\n", err)
		os.Exit(1)
	}
	return filepath.Join(home, ".fakturo")
}
