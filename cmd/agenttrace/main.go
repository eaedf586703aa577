// Package main provides the agenttrace command line: one-shot trace queries,
// the HTTP query server and the MCP stdio server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"agenttrace/internal/app"
	"agenttrace/internal/config"
	"agenttrace/internal/query"
	"agenttrace/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	configFile string
	noColor    bool
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:          "agenttrace",
		Short:        "Query agent spans and lifecycle events recorded by the tracing producer",
		SilenceUsage: true,
		Version:      version,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().StringVar(&c.configFile, "config", "", "path to config file (default: config.yaml on the search path)")

	queryCmd := &cobra.Command{
		Use:   "query <name> [key=value...]",
		Short: "Run one query (lineage, runs, stats, span, events) and print the result",
		Example: `  agenttrace query lineage trace_id=abc123 format=deep
  agenttrace query runs agent_id=worker limit=5
  agenttrace query events type=agent:error`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.runQuery,
	}
	queryCmd.Flags().BoolVar(&c.noColor, "no-color", false, "disable coloured status markers")

	queriesCmd := &cobra.Command{
		Use:   "queries",
		Short: "List supported queries and their arguments",
		Args:  cobra.NoArgs,
		RunE:  c.runQueries,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve queries, health and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE:  c.runServe,
	}

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the trace tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE:  c.runMCP,
	}

	rootCmd.AddCommand(queryCmd, queriesCmd, serveCmd, mcpCmd)
	return rootCmd
}

// open loads configuration and wires the application. Logs go to stderr so
// stdout carries only query output or protocol frames.
func (c *cli) open() (*app.App, error) {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg.App, c.stderr)
	slog.SetDefault(logger)
	return app.New(cfg, logger)
}

func (c *cli) runQuery(cmd *cobra.Command, args []string) error {
	qargs, err := query.ParseArgs(args[1:])
	if err != nil {
		return err
	}

	a, err := c.open()
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.Dispatcher.Dispatch(cmd.Context(), args[0], qargs)
	if err != nil {
		if errors.Is(err, query.ErrUnsupportedQuery) {
			return fmt.Errorf("%w (run 'agenttrace queries' for the list)", err)
		}
		return err
	}

	if !c.noColor && isTerminal(c.stdout) {
		out = colorize(out)
	}
	_, err = fmt.Fprintln(c.stdout, out)
	return err
}

func (c *cli) runQueries(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return err
	}

	for _, def := range query.Catalog(cfg.Query.RunsLimit, cfg.Query.EventsLimit) {
		params := make([]string, 0, len(def.Params))
		for _, p := range def.Params {
			params = append(params, describeParam(p))
		}
		if _, err := fmt.Fprintf(c.stdout, "%-8s  %-14s  %s\n%-8s  %-14s  %s\n",
			def.Name, def.ToolName, def.Description, "", "", strings.Join(params, " ")); err != nil {
			return err
		}
	}
	return nil
}

func describeParam(p query.Param) string {
	s := p.Name
	if len(p.Enum) > 0 {
		s += "=" + strings.Join(p.Enum, "|")
	}
	if p.Default != nil {
		s += fmt.Sprintf("(%v)", p.Default)
	}
	if !p.Required {
		s = "[" + s + "]"
	}
	return s
}

func (c *cli) runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := c.open()
	if err != nil {
		return err
	}
	defer a.Close()

	otelShutdown, err := initTelemetry(ctx, a.Config)
	if err != nil {
		return err
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	srv := a.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	return srv.Shutdown(context.Background())
}

func (c *cli) runMCP(cmd *cobra.Command, _ []string) error {
	a, err := c.open()
	if err != nil {
		return err
	}
	defer a.Close()

	otelShutdown, err := initTelemetry(cmd.Context(), a.Config)
	if err != nil {
		return err
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	a.Logger.Info("agenttrace MCP server listening on stdio", "version", version)
	return mcpserver.ServeStdio(a.MCPServer(version))
}

func initTelemetry(ctx context.Context, cfg *config.Config) (telemetry.Shutdown, error) {
	return telemetry.Init(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName, version, cfg.Telemetry.Insecure)
}
