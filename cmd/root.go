package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adalundhe/docsearch/core/config"
	"github.com/adalundhe/docsearch/core/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	configManager *config.Manager
)

var rootCmd = &cobra.Command{
	Use:   "docsearch",
	Short: "docsearch - search plain-text documents page by page",
	Long: `docsearch searches paginated plain-text documents and presents the
matches per document and page, with the text around each match.

Pages are separated by form feed characters.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a config file")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "Log format (text, json)")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig layers the config sources and installs the process logger.
func loadConfig(cmd *cobra.Command, _ []string) error {
	m := config.NewManager(config.DefaultPaths(configPath))
	m.SetOverrides(&config.Config{
		Log: config.LogConfig{Level: logLevel, Format: logFormat},
	})
	if err := m.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logging.Install(os.Stderr, m); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	configManager = m
	return nil
}

func currentConfig() *config.Config {
	if configManager == nil {
		return config.DefaultConfig()
	}
	return configManager.Get()
}
