package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	port       string
	configPath string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	// a missing .env is fine; real environment variables still apply
	_ = godotenv.Load()

	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:          "trivora",
		Short:        "Trivora trivia backend and offline-first quiz agent",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVar(&port, "port", os.Getenv("PORT"), "port to listen on")
	cmd.AddCommand(NewStartCmd(&configPath, &port))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewAgentCmd(&configPath, &port))
	cmd.AddCommand(NewSyncCmd(&configPath))
	cmd.AddCommand(NewDownloadCmd(&configPath))
	cmd.AddCommand(NewCleanupCmd(&configPath))
	cmd.AddCommand(NewWipeCmd(&configPath))
	cmd.AddCommand(NewTokenCmd(&configPath))
	return cmd
}
