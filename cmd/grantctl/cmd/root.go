package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	applog "go.pilab.hu/codegrant/log"
)

var appLogger applog.Logger

var rootCmd = &cobra.Command{
	Use:   "grantctl",
	Short: "Operational companion for the codegrant authorization server",
	Long: `grantctl bundles the small maintenance and testing helpers that the
authorization server itself does not expose over HTTP, such as
generating PKCE material and sweeping expired authorization codes.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		appLogger = applog.NewZerologAdapter(level, true)
		return nil
	},
	SilenceUsage: true,
}

var logLevel string

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
}
