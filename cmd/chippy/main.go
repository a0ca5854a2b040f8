// Chippy is a TCP server for RFID transceivers.
//
// Transceivers connect, are configured into transaction mode through a short
// handshake, and then report transponder reads. Each read is forwarded as a
// JSON event to a Redis list (or NATS subject) for downstream consumers.
//
// Usage:
//
//	chippy start [flags]
//	chippy status [flags]
//
// See 'chippy --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FastTravelAS/chippy/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chippy",
	Short: "RFID transceiver server",
	Long: `Chippy accepts TCP connections from RFID transceivers, puts each one into
transaction mode and forwards every transponder read to Redis.

Configuration is read from a YAML file, CHIPPY_* environment variables and
command-line flags, in increasing order of precedence.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Global flags
var (
	configPath string
	logLevel   string
)

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/chippy/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("chippy %s\n", version.Full())
	},
}
