package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/greg-hellings/scmindex/pkg/config"
	"github.com/greg-hellings/scmindex/pkg/plugin"
	"github.com/greg-hellings/scmindex/pkg/probe"
	"github.com/greg-hellings/scmindex/pkg/scm"
	"github.com/greg-hellings/scmindex/pkg/server"
	"github.com/greg-hellings/scmindex/pkg/validation"
)

// build-time override (e.g. -ldflags "-X main.version=1.2.3")
var version = "dev"

// Global (root-level) flag variables
var (
	flagVerbose bool
	flagDebug   bool
	flagConfig  string
)

func main() {
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError reports err on w. Validation failures name the faulty parameter.
func printError(w io.Writer, err error) {
	if verr, ok := validation.As(err); ok {
		fmt.Fprintf(w, "Validation failed: field=%s rule=%s value=%q\n", verr.Field, verr.Rule, verr.Value)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

// newRootCmd creates the root Cobra command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scmindex",
		Short: "Index-based SCM plug-in CLI",
		Long: strings.TrimSpace(`
scmindex - Index-based source code management plug-in

Validates repositories and administrative access against index servers
(Subversion, plain HTTP listings) and discovers repositories by name. The
tools, their nodes, and their subscriptions are declared in a YAML or TOML
configuration file.`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initLogging()
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (info) logging")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging (overrides --verbose)")
	cmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "scmindex.yaml", "Configuration file (YAML or TOML)")
	cmd.Version = version

	// Add subcommands
	cmd.AddCommand(newFindCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newLinkCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// newVersionCmd prints version info (simple helper).
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scmindex version: %s\n", version)
		},
	}
}

func initLogging() {
	var level slog.Level
	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	default:
		level = slog.LevelWarn
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging initialized", "level", level.String())
}

// loadRegistry loads the configuration file and registers its tools.
func loadRegistry() (*config.Config, *scm.Registry, error) {
	cfg, err := config.LoadFromFile(flagConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	prober := probe.NewHTTPProber(
		probe.WithTimeout(cfg.Timeout()),
		probe.WithObserver(server.ObserveProbe),
	)
	reg, err := cfg.NewRegistry(prober)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register tools: %w", err)
	}

	slog.Info("Configuration loaded", "configFile", flagConfig, "tools", reg.Names())
	return cfg, reg, nil
}

// lookupTool loads the registry and returns the named tool.
func lookupTool(name string) (*scm.Registry, *plugin.Resource, error) {
	_, reg, err := loadRegistry()
	if err != nil {
		return nil, nil, err
	}
	tool, ok := reg.Tool(name)
	if !ok {
		return nil, nil, fmt.Errorf("unknown tool %q (configured: %s)", name, strings.Join(reg.Names(), ", "))
	}
	return reg, tool, nil
}
