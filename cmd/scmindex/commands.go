package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/greg-hellings/scmindex/pkg/report"
	consolefmt "github.com/greg-hellings/scmindex/pkg/report/format"
	"github.com/greg-hellings/scmindex/pkg/server"
)

// output flags shared by the commands that render results
type outputFlags struct {
	format     string
	noColor    bool
	colWidth   int
	jsonIndent bool
}

func (o *outputFlags) register(c *cobra.Command) {
	c.Flags().StringVarP(&o.format, "format", "f", "console", "Output format: console|json")
	c.Flags().BoolVar(&o.noColor, "no-color", false, "Disable ANSI colors (console format)")
	c.Flags().IntVar(&o.colWidth, "col-width", 0, "Max width of each column (console format; 0=auto)")
	c.Flags().BoolVar(&o.jsonIndent, "json-indent", false, "Pretty-print JSON output")
}

func (o *outputFlags) formatter() *consolefmt.ConsoleFormatter {
	f := consolefmt.NewConsoleFormatter()
	f.EnableColors = !o.noColor
	f.MaxColWidth = o.colWidth
	return f
}

// render writes v as JSON, or calls console when the format is console.
func (o *outputFlags) render(w io.Writer, v any, console func() error) error {
	switch strings.ToLower(o.format) {
	case "console":
		return console()
	case "json":
		var data []byte
		var err error
		if o.jsonIndent {
			data, err = json.MarshalIndent(v, "", "  ")
		} else {
			data, err = json.Marshal(v)
		}
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, _ = w.Write(data)
		_, _ = w.Write([]byte("\n"))
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", o.format)
	}
}

// newFindCmd creates the 'find' subcommand.
func newFindCmd() *cobra.Command {
	var out outputFlags
	c := &cobra.Command{
		Use:   "find <tool> <node> <criteria>",
		Short: "Find the repositories of a node whose name contains the criteria",
		Long: strings.TrimSpace(`
Fetch the root listing of a node and list the repositories whose normalized
name contains the normalized criteria. Case and accents are ignored. At most
10 repositories are returned, in listing order.

Examples:
  scmindex find svn service:scm:svn:dig as-
  scmindex find svn service:scm:svn:dig as- --format json
`),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tool, err := lookupTool(args[0])
			if err != nil {
				return err
			}
			entries, err := tool.FindAllByName(cmd.Context(), args[1], args[2])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return out.render(w, entries, func() error {
				return out.formatter().RenderEntries(entries, w)
			})
		},
	}
	out.register(c)
	return c
}

// newCheckCmd creates the 'check' subcommand.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <tool> <node>",
		Short: "Check the administrative access of a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, tool, err := lookupTool(args[0])
			if err != nil {
				return err
			}
			p, err := reg.Resolver().NodeParameters(cmd.Context(), args[1])
			if err != nil {
				return fmt.Errorf("failed to resolve node parameters: %w", err)
			}
			if _, err := tool.CheckStatus(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: up\n", args[1])
			return nil
		},
	}
}

// newLinkCmd creates the 'link' subcommand.
func newLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <tool> <subscription>",
		Short: "Validate the repository of a subscription",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSubscription(args[1])
			if err != nil {
				return err
			}
			_, tool, err := lookupTool(args[0])
			if err != nil {
				return err
			}
			if err := tool.Link(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subscription %d: linked\n", id)
			return nil
		},
	}
}

// newStatusCmd creates the 'status' subcommand.
func newStatusCmd() *cobra.Command {
	var jsonIndent bool
	c := &cobra.Command{
		Use:   "status <tool> <subscription>",
		Short: "Check the repository of a subscription and print its status data",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSubscription(args[1])
			if err != nil {
				return err
			}
			reg, tool, err := lookupTool(args[0])
			if err != nil {
				return err
			}
			p, err := reg.Resolver().SubscriptionParameters(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to resolve subscription parameters: %w", err)
			}
			status, err := tool.CheckSubscriptionStatus(cmd.Context(), p)
			if err != nil {
				return err
			}
			out := outputFlags{format: "json", jsonIndent: jsonIndent}
			return out.render(cmd.OutOrStdout(), status, nil)
		},
	}
	c.Flags().BoolVar(&jsonIndent, "json-indent", false, "Pretty-print JSON output")
	return c
}

// report command flags
type reportFlags struct {
	out         outputFlags
	timeout     time.Duration
	failOnError bool
}

// jsonReport is the structured JSON shape of the report command.
type jsonReport struct {
	Version       string                      `json:"cliVersion"`
	GeneratedAt   time.Time                   `json:"generatedAt"`
	Nodes         []report.NodeReport         `json:"nodes"`
	Subscriptions []report.SubscriptionReport `json:"subscriptions"`
	Errors        map[string]string           `json:"errors,omitempty"`
}

// newReportCmd creates the 'report' subcommand.
func newReportCmd() *cobra.Command {
	var flags reportFlags
	c := &cobra.Command{
		Use:   "report",
		Short: "Check every configured node and subscription",
		Long: strings.TrimSpace(`
Check the administrative access of every node and the repository of every
subscription declared in the configuration file, in parallel.

Examples:
  scmindex report -c scmindex.yaml
  scmindex report --format json --json-indent
  scmindex report --fail-on-error
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			cfg, reg, err := loadRegistry()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()

			rpt, err := report.NewGenerator(reg).Generate(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to generate report: %w", err)
			}

			var errMap map[string]string
			if rpt.HasErrors() {
				errMap = make(map[string]string)
				for id, err := range rpt.GetErrors() {
					errMap[id] = err.Error()
				}
			}
			payload := jsonReport{
				Version:       version,
				GeneratedAt:   time.Now().UTC(),
				Nodes:         rpt.Nodes,
				Subscriptions: rpt.Subscriptions,
				Errors:        errMap,
			}

			w := cmd.OutOrStdout()
			if err := flags.out.render(w, payload, func() error {
				return flags.out.formatter().Render(rpt, w)
			}); err != nil {
				return err
			}

			slog.Info("Status report complete",
				"nodes", len(rpt.Nodes),
				"subscriptions", len(rpt.Subscriptions),
				"duration", time.Since(start).String())

			if flags.failOnError && rpt.HasErrors() {
				return errors.New("one or more checks failed (fail-on-error enabled)")
			}
			return nil
		},
	}
	flags.out.register(c)
	c.Flags().DurationVar(&flags.timeout, "timeout", 5*time.Minute, "Timeout for generating the report")
	c.Flags().BoolVar(&flags.failOnError, "fail-on-error", false, "Exit with non-zero status if any check failed")
	return c
}

// newServeCmd creates the 'serve' subcommand.
func newServeCmd() *cobra.Command {
	var addr string
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, reg, err := loadRegistry()
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:         addr,
				Handler:      server.NewRouter(server.Config{Registry: reg, Logger: slog.Default()}),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: cfg.Timeout() + 15*time.Second,
				IdleTimeout:  60 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				slog.Warn("Listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
				slog.Info("Shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		},
	}
	c.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	return c
}

func parseSubscription(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subscription %q: must be a positive integer", raw)
	}
	return id, nil
}
