package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"AssessmentPipeline/internal/app"
	"AssessmentPipeline/internal/config"
	"AssessmentPipeline/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "assessment",
	Short:         "Business assessment pipeline",
	Long:          `assessment scores questionnaire submissions and produces category, chapter and executive analyses through a generative-text job service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides ASSESSMENT_CONFIG)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

// newApplication loads configuration and wires the application.
func newApplication() (*app.Application, *zap.Logger, error) {
	if configPath != "" {
		if err := os.Setenv("ASSESSMENT_CONFIG", configPath); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Encoding)

	application, err := app.New(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return application, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
