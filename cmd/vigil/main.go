// Command vigil runs the safety monitoring assistant: an HTTP JSON API,
// an MCP stdio server, and a few operational helpers over the same
// engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/vigil-ai/vigil/pkg/config"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := flag.NewFlagSet("vigil", flag.ExitOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	flags.Usage = printUsage
	if err := flags.Parse(os.Args[1:]); err != nil {
		fatal(err)
	}
	args := flags.Args()
	if len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(fmt.Errorf("load config: %w", err))
	}

	switch cmd := args[0]; cmd {
	case "serve":
		runServe(ctx, cfg)
	case "mcp":
		runMCP(ctx, cfg)
	case "skills":
		runSkills(ctx, cfg)
	case "query":
		runQuery(ctx, cfg, args[1:])
	case "seed":
		runSeed(ctx, cfg, args[1:])
	case "version":
		fmt.Println("vigil", version)
	case "help":
		printUsage()
	default:
		fatal(fmt.Errorf("unknown command %q", cmd))
	}
}

func runSkills(ctx context.Context, cfg *config.Config) {
	app, err := build(ctx, cfg, buildOptions{SkipStore: true})
	if err != nil {
		fatal(err)
	}
	defer app.Close(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SKILL\tVERSION\tDEFAULT TASK\tTASKS")
	for _, d := range app.Registry.Descriptors() {
		tasks, err := app.Registry.Capabilities(d.Name)
		if err != nil {
			continue
		}
		sorted := append([]string(nil), tasks...)
		sort.Strings(sorted)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Version, d.DefaultTask, strings.Join(sorted, ","))
	}
	w.Flush()
}

func runQuery(ctx context.Context, cfg *config.Config, args []string) {
	if len(args) == 0 {
		fatal(fmt.Errorf("usage: vigil query <text>"))
	}
	app, err := build(ctx, cfg, buildOptions{})
	if err != nil {
		fatal(err)
	}
	defer app.Close(ctx)

	response, runID := app.Engine.Handle(ctx, strings.Join(args, " "), nil)
	fmt.Fprintln(os.Stderr, "run:", runID)
	fmt.Println(response)
}

func runSeed(ctx context.Context, cfg *config.Config, args []string) {
	app, err := build(ctx, cfg, buildOptions{})
	if err != nil {
		fatal(err)
	}
	defer app.Close(ctx)

	if len(args) > 0 {
		n, err := app.ImportEvents(ctx, args[0])
		if err != nil {
			fatal(err)
		}
		fmt.Printf("imported %d events from %s\n", n, args[0])
	}

	n, err := app.SeedKnowledge(ctx)
	if err != nil {
		fatal(err)
	}
	if n > 0 {
		fmt.Printf("indexed %d knowledge documents\n", n)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `vigil - safety monitoring assistant

Usage:
  vigil [-config path] <command>

Commands:
  serve          start the HTTP JSON API
  mcp            serve the engine over MCP on stdio
  skills         list registered skills and their tasks
  query <text>   run a single request and print the response
  seed [file]    import events from a JSON file and seed the knowledge base
  version        print the version
  help           show this message
`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "vigil:", err)
	os.Exit(1)
}
