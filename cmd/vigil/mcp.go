package main

import (
	"context"

	"github.com/vigil-ai/vigil/pkg/config"
	"github.com/vigil-ai/vigil/pkg/mcp"
)

func runMCP(ctx context.Context, cfg *config.Config) {
	app, err := build(ctx, cfg, buildOptions{})
	if err != nil {
		fatal(err)
	}
	defer app.Close(context.Background())

	server := mcp.NewServer("vigil", version, app.Engine, app.Registry)
	app.Logger.Info("mcp server on stdio")
	if err := server.ServeStdio(); err != nil {
		fatal(err)
	}
}
