package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joshuafuller/udpurl/internal/config"
	"github.com/joshuafuller/udpurl/internal/observability"
	"github.com/joshuafuller/udpurl/internal/options"
	"github.com/joshuafuller/udpurl/internal/output"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
	logLevel     string

	// Shared state set during PersistentPreRun
	cfg       *config.Config
	logger    *zap.Logger
	formatter output.Formatter
)

var rootCmd = &cobra.Command{
	Use:   "udpcat",
	Short: "Send and receive UDP datagrams addressed by udp:// URLs",
	Long: `udpcat opens UDP transport sessions from URLs such as

  udp://239.1.1.1:5004?ttl=32&buffer_size=65536
  udp://[ff3e::1234]:5004?sources=2001:db8::5
  udp://?localport=6000

and sends, receives or inspects datagrams on them. Unicast, multicast and
source-specific multicast destinations are supported.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if outputFormat != "" {
			cfg.Output = outputFormat
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}

		logger, err = observability.SetupLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		formatter = output.NewFormatter(cfg.Output)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// RootCmd returns the root cobra.Command for testing purposes.
func RootCmd() *cobra.Command {
	return rootCmd
}

// withConfigDefaults merges the configured default options into rawURL.
func withConfigDefaults(rawURL string) string {
	if len(cfg.Defaults) == 0 {
		return rawURL
	}
	base, query, _ := strings.Cut(rawURL, "?")
	query = options.WithDefaults(query, cfg.Defaults)
	if query == "" {
		return base
	}
	return base + "?" + query
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./udpcat.yaml or ~/.udpcat/udpcat.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table, json, yaml (default \"table\")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}
