package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jpender/revisit/internal/config"
	"github.com/jpender/revisit/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "revisit",
	Short: "Adaptive resurfacing and nudges for your knowledge library",
	Long:  "Revisit watches a personal knowledge library and surfaces saved items at the right moment: spaced resurfacing, triage reminders, connection prompts, and dialectical check-ins. Single Go binary.",
}

var configPath string

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ~/.revisit/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(nudgesCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadConfig resolves the config file path and reads it. A missing file
// yields the defaults.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Default(), err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	// Env override for the Anthropic key, so the file never has to hold it.
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.LLM.AnthropicKey == "" {
		cfg.LLM.AnthropicKey = key
	}
	return cfg, nil
}

// openDB opens the database for CLI commands.
func openDB(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}
