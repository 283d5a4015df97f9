package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize Fakturo configuration",
	Long: `Initialize Fakturo configuration in your home directory.

This command creates the necessary configuration files and directories
for Fakturo to operate. It will create:
- ~/.fakturo/config.yaml - Main configuration file
- ~/.fakturo/data/ - Local invoice data directory
- ~/.fakturo/logs/ - Directory for log files`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	dir := fakturoDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create Fakturo directory: %w", err)
	}

	for _, sub := range []string{"data", "logs", "credentials", "tokens"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0700); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", sub, err)
		}
	}

	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration already exists at %s. Use --force to overwrite", configPath)
	}

	defaultConfig := map[string]interface{}{
		"version": "1.0",
		"data": map[string]interface{}{
			"dir": filepath.Join(dir, "data"),
		},
		"database": map[string]interface{}{
			"path": filepath.Join(dir, "fakturo.db"),
		},
		"sync": map[string]interface{}{
			"data_source":    "",
			"interval":       "5m",
			"retry_attempts": 3,
			"retry_delay":    "30s",
		},
		"watch": map[string]interface{}{
			"debounce": "2s",
		},
		"drive": map[string]interface{}{
			"root_folder": "Fakturo",
		},
		"webdav": map[string]interface{}{
			"url":       "",
			"username":  "",
			"root_path": "/Fakturo",
		},
		"logging": map[string]interface{}{
			"level":       "info",
			"file":        filepath.Join(dir, "logs", "fakturo.log"),
			"max_size":    50,
			"max_backups": 5,
			"max_age":     30,
		},
	}

	configData, err := yaml.Marshal(defaultConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.WriteFile(configPath, configData, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Printf("✅ Fakturo initialized successfully!\n")
	fmt.Printf("📁 Configuration directory: %s\n", dir)
	fmt.Printf("📝 Configuration file: %s\n", configPath)
	fmt.Printf("\n")
	fmt.Printf("Next steps:\n")
	fmt.Printf("1. Run 'fakturo auth google' or 'fakturo auth webdav' to connect a backend\n")
	fmt.Printf("2. Run 'fakturo sync' for a one-time sync, or 'fakturo watch' to keep syncing\n")

	return nil
}
