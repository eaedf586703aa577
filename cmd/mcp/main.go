// Package main provides the entry point for the agenttrace MCP (Model Context Protocol) server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"agenttrace/internal/app"
	"agenttrace/internal/config"
	"agenttrace/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()
	os.Exit(run(*configFile))
}

func run(configFile string) int {
	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	// stdout carries the protocol; logs go to stderr.
	logger := app.NewLogger(cfg.App, os.Stderr)
	slog.SetDefault(logger)

	ctx := context.Background()
	otelShutdown, err := telemetry.Init(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName, version, cfg.Telemetry.Insecure)
	if err != nil {
		logger.Error("failed to init telemetry", "error", err)
		return 1
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to open trace store", "error", err)
		return 1
	}
	defer a.Close()

	logger.Info("agenttrace MCP server listening on stdio", "version", version)
	// Start serving the MCP protocol over standard input/output streams.
	if err := server.ServeStdio(a.MCPServer(version)); err != nil {
		logger.Error("server error", "error", err)
		return 1
	}
	return 0
}
