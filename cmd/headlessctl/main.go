// headlessctl is a command-line client for driving one Chromium tab over
// the Chrome DevTools Protocol: connect, open a tab, run one operation,
// tear down. Grounded on ajsharma/browser_tail's cmd/browser_tail/main.go
// (root command with persistent connection flags, a "control" subcommand
// tree of single-shot operations, SIGINT/SIGTERM-driven graceful
// shutdown).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wippy-projects/headless/internal/config"
)

var cfgPath string
var cfg = config.DefaultConfig()

var rootCmd = &cobra.Command{
	Use:   "headlessctl",
	Short: "Drive a Chromium tab over the Chrome DevTools Protocol",
	Long: `headlessctl connects to a Chromium instance with remote debugging
enabled, opens one tab, runs a single operation against it, and exits.

Example:
  # Navigate and print the resulting page title
  headlessctl navigate --url https://example.com

  # Block images and stylesheets for the duration of a navigation
  headlessctl navigate --url https://example.com --block Image,Stylesheet

  # Capture a download triggered by clicking a link
  headlessctl download --url https://example.com/reports --selector "a#report" --operation report-run-1`,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&cfg.BrowserAddr, "browser-addr", cfg.BrowserAddr, "browser remote-debugging host:port")
	rootCmd.PersistentFlags().IntVar(&cfg.MaxTabs, "max-tabs", cfg.MaxTabs, "maximum concurrently attached tabs (0 = unlimited)")
	rootCmd.PersistentFlags().DurationVar(&cfg.CommandTimeout, "command-timeout", cfg.CommandTimeout, "default per-command timeout")

	rootCmd.AddCommand(navigateCmd, blockCmd, downloadCmd)
}

// loadConfig layers cfgPath (if set) and environment overrides underneath
// whatever persistent flags the user passed, then validates the result.
// Flags set explicitly on the command line win over the file, matching
// cobra's usual precedence; the file and env layer only fill in values the
// user didn't touch on the command line.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cfgPath != "" {
		fileCfg, err := config.LoadFromFile(cfgPath)
		if err != nil {
			return err
		}
		applyUnsetFlags(cmd, fileCfg)
	}
	envCfg := *cfg
	config.ApplyEnvOverrides(&envCfg)
	applyUnsetFlags(cmd, &envCfg)
	return cfg.Validate()
}

// applyUnsetFlags copies fields from fileCfg (a file-loaded or
// env-layered config) into cfg wherever the corresponding flag was not
// explicitly set on the command line.
func applyUnsetFlags(cmd *cobra.Command, fileCfg *config.Config) {
	if !cmd.Flags().Changed("browser-addr") {
		cfg.BrowserAddr = fileCfg.BrowserAddr
	}
	if !cmd.Flags().Changed("max-tabs") {
		cfg.MaxTabs = fileCfg.MaxTabs
	}
	if !cmd.Flags().Changed("command-timeout") {
		cfg.CommandTimeout = fileCfg.CommandTimeout
	}
	cfg.ConnectTimeout = fileCfg.ConnectTimeout
	cfg.ReadTimeout = fileCfg.ReadTimeout
	cfg.CreateTimeout = fileCfg.CreateTimeout
	cfg.HealthInterval = fileCfg.HealthInterval
	cfg.SubscriptionCapacity = fileCfg.SubscriptionCapacity
	cfg.ReconnectBase = fileCfg.ReconnectBase
	cfg.ReconnectMax = fileCfg.ReconnectMax
	cfg.ReconnectAttempts = fileCfg.ReconnectAttempts
}

// signalContext returns a context canceled on SIGINT/SIGTERM, the same
// shutdown trigger ajsharma/browser_tail's run() wires up around its
// manager.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
