package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stoik/timeline/services/digest-service/internal/config"
	"github.com/stoik/timeline/services/digest-service/internal/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "timeline",
	Short:        "GitHub Timeline Updates digest service",
	Long:         "Fetches each subscriber's recent GitHub activity and emails them a digest",
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)
	config.SetDefaults(viper.GetViper())

	// Flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./config.yaml)")
	rootCmd.PersistentFlags().String("log.level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log.format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().String("github.api_url", "https://api.github.com", "GitHub API base URL")
	rootCmd.PersistentFlags().String("database.url", "", "Database connection URL")
	rootCmd.PersistentFlags().Duration("digest.interval", 0, "Repeat cycles at this interval (0 runs once, or only on POST /cycles when serving)")

	// Bind flags to viper
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log.level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log.format"))
	viper.BindPFlag("github.api_url", rootCmd.PersistentFlags().Lookup("github.api_url"))
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database.url"))
	viper.BindPFlag("digest.interval", rootCmd.PersistentFlags().Lookup("digest.interval"))
}

func initConfig() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./services/digest-service")
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig validates the full configuration and installs the logger.
// A *config.ConfigError here stops the command before any work starts.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	l, err := logger.Setup(cfg.Log, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
