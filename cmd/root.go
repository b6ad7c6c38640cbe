// Package cmd holds the servod CLI commands.
package cmd

import (
	"os"

	"github.com/edaniels/golog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	mock       bool
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "servod",
	Short: "Servo controller service for the PCA9685",
	Long: `servod drives servos attached to a PCA9685 16-channel PWM controller
over I2C. It runs either as an HTTP JSON service (servod serve) or as a
one-shot channel tester (servod set).`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/servod.json", "path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&mock, "mock", false, "use an in-memory register file instead of hardware")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func newLogger(name string) golog.Logger {
	if debug {
		return golog.NewDebugLogger(name)
	}
	return golog.NewDevelopmentLogger(name)
}
