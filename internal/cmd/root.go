// Package cmd implements the assetforge command line.
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

// errRunFailed reports a run that finished without every step completing.
// The summary has already been printed, so no further message is needed.
var errRunFailed = errors.New("pipeline run failed")

var rootCmd = &cobra.Command{
	Use:   "assetforge",
	Short: "Asset pipeline for game export bundles",
	Long: `assetforge converts a game's extracted export bundle into web-ready
images and a packaged database. Steps run in dependency order with
bounded retries; configuration comes from the environment.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errRunFailed) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func init() {
	rootCmd.SilenceErrors = true
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
