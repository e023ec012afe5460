// Package cmd - findata CLI commands
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/wonny/findata/internal/pkg/config"
	"github.com/wonny/findata/internal/pkg/logger"
)

const (
	serviceName    = "findata"
	serviceVersion = "1.0.0"
)

var (
	// 공통 플래그
	cfgFile string
	verbose bool

	cfg *config.Config
)

// rootCmd 루트 커맨드
var rootCmd = &cobra.Command{
	Use:   "findata",
	Short: "Daily stock price store - CLI",
	Long: `Daily stock price store - CLI

Usage:
    go run ./cmd/findata [command]

Commands:
    serve       - HTTP API server (financial_data, statistics)
    ingest      - Load daily prices from Alpha Vantage or a bar file
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute 루트 커맨드 실행
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
}

// initConfig loads the env file, the configuration and the global logger
func initConfig() error {
	var err error
	if cfgFile != "" {
		if err := godotenv.Load(cfgFile); err != nil {
			return fmt.Errorf("load %s: %w", cfgFile, err)
		}
		cfg, err = config.FromEnv()
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := logger.Init(loggerConfig(cfg)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return err
	}
	return nil
}

func loggerConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FileEnabled:    cfg.Logging.FileEnabled,
		FilePath:       cfg.Logging.FilePath,
		RotationSize:   cfg.Logging.RotationSize,
		RetentionDays:  cfg.Logging.RetentionDays,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	}
}
