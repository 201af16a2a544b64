package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/xdbsoft/docstore"
	"github.com/xdbsoft/docstore/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "docstore",
	Short: "Persist plain records into a document database",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// a missing .env file is fine
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "docstore.toml", "path to the configuration file")
	rootCmd.AddCommand(serveCmd, exampleCmd)
}

func loadConfig() (*docstore.Config, error) {

	cfg, err := docstore.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.LogLevel)

	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.GetLogger().WithError(err).Error("docstore failed")
		os.Exit(1)
	}
}
