package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const (
	// Version is the current version of FlowForge
	Version = "1.0.0"
)

// Config holds the global configuration for the FlowForge CLI
type Config struct {
	ConfigDir string
	Debug     bool
}

// GlobalConfig is the shared configuration instance
var GlobalConfig = &Config{}

// NewRootCommand creates the root cobra command for FlowForge
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flowforge",
		Short: "FlowForge - Workflow graph compiler for Google Cloud",
		Long: `FlowForge compiles visual workflow graphs into deployable cloud artifacts.
A workflow graph of nodes and connections is validated, lowered into a
GCP Workflows definition, and bundled with scaffolded source for each
compute node plus optional deployment templates.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			if GlobalConfig.Debug {
				log.SetOutput(os.Stderr)
				log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
			} else {
				log.SetOutput(io.Discard)
			}

			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&GlobalConfig.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&GlobalConfig.ConfigDir, "config-dir", "", "Configuration directory (default: ~/.flowforge)")

	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewPreviewCommand())
	cmd.AddCommand(NewGenerateCommand())
	cmd.AddCommand(NewCredentialCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}

// initConfig initializes the FlowForge configuration directory
func initConfig() error {
	// Environment variable always takes priority (for testing)
	if envDir := os.Getenv("FLOWFORGE_CONFIG_DIR"); envDir != "" {
		GlobalConfig.ConfigDir = envDir
	} else if GlobalConfig.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		GlobalConfig.ConfigDir = filepath.Join(homeDir, ".flowforge")
	}

	if err := os.MkdirAll(GlobalConfig.ConfigDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	for _, dir := range []string{"workflows", "bundles"} {
		dirPath := filepath.Join(GlobalConfig.ConfigDir, dir)
		if err := os.MkdirAll(dirPath, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// GetConfigDir returns the configuration directory path.
// Priority order: 1) FLOWFORGE_CONFIG_DIR env var, 2) --config-dir flag, 3) ~/.flowforge
func GetConfigDir() string {
	if envDir := os.Getenv("FLOWFORGE_CONFIG_DIR"); envDir != "" {
		return envDir
	}
	if GlobalConfig.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".flowforge"
		}
		return filepath.Join(homeDir, ".flowforge")
	}
	return GlobalConfig.ConfigDir
}

// GetHistoryDBPath returns the path to the generation history database
func GetHistoryDBPath() string {
	return filepath.Join(GetConfigDir(), "flowforge.db")
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}
