package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/k8stag/k8stag/pkg/logger"
	"github.com/k8stag/k8stag/pkg/version"
)

// Timeout constants
const (
	// OTelShutdownTimeout is the timeout for gracefully shutting down the OpenTelemetry TracerProvider
	OTelShutdownTimeout = 5 * time.Second
)

// logOptions are shared by every subcommand
type logOptions struct {
	Level  string `yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"logFormat" validate:"omitempty,oneof=text json"`
	Output string `yaml:"logOutput" validate:"omitempty,oneof=stdout stderr"`
}

func main() {
	// Add flags to root command (so they work on all subcommands)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	logOpts := &logOptions{}

	rootCmd := &cobra.Command{
		Use:   "k8stag",
		Short: "k8stag - typed Kubernetes objects from YAML templates",
		Long: `k8stag renders YAML manifest templates, maps every document onto the
typed client-go object for its kind and creates or deletes it through
the matching typed API call.`,
		SilenceUsage: true,
		// Disable default completion command
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&logOpts.Level, "log-level", "",
		"Log level (debug, info, warn, error). Env: LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logOpts.Format, "log-format", "",
		"Log format (text, json). Env: LOG_FORMAT")
	rootCmd.PersistentFlags().StringVar(&logOpts.Output, "log-output", "",
		"Log output (stdout, stderr). Env: LOG_OUTPUT")

	rootCmd.AddCommand(newRenderCmd(logOpts))
	rootCmd.AddCommand(newApplyCmd(logOpts, verbCreate))
	rootCmd.AddCommand(newApplyCmd(logOpts, verbDelete))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	info := version.Info()
	_, _ = fmt.Fprintf(w, "k8stag\n")
	_, _ = fmt.Fprintf(w, "  Version:    %s\n", info.Version)
	_, _ = fmt.Fprintf(w, "  Commit:     %s\n", info.Commit)
	_, _ = fmt.Fprintf(w, "  Built:      %s\n", info.BuildDate)
	_, _ = fmt.Fprintf(w, "  Tag:        %s\n", info.Tag)
}

// buildLoggerConfig creates a logger configuration from environment variables
// and command-line flags. Flags take precedence over environment variables.
// Logs go to stderr unless configured otherwise, since stdout carries manifests.
func buildLoggerConfig(opts *logOptions, errOut io.Writer) logger.Config {
	cfg := logger.ConfigFromEnv()
	if os.Getenv("LOG_OUTPUT") == "" {
		cfg.Output = "stderr"
	}

	// Override with command-line flags if provided
	if opts.Level != "" {
		cfg.Level = opts.Level
	}
	if opts.Format != "" {
		cfg.Format = opts.Format
	}
	if opts.Output != "" {
		cfg.Output = opts.Output
	}
	if cfg.Output == "stderr" && errOut != nil {
		cfg.Writer = errOut
	}

	cfg.Component = "k8stag"
	cfg.Version = version.Version

	return cfg
}
