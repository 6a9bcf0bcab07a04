// toctreectl is the CLI entry point over internal/toc.Builder: a
// single-file run against one PDF, a glob-batch run over many, or the
// MCP server (stdio mode), matching the teacher's
// cmd/mcp-pdf-reader/main.go split between stdio and server modes plus
// its version flag and signal-handled shutdown.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"

	"github.com/a3tai/toctree/internal/config"
	"github.com/a3tai/toctree/internal/mcpserver"
	"github.com/a3tai/toctree/internal/toc"
	"github.com/a3tai/toctree/internal/tlog"
)

var (
	version = "dev"
)

func main() {
	app := &cli.App{
		Name:    "toctreectl",
		Usage:   "extract a hierarchical table-of-contents tree from a PDF",
		Version: version,
		Commands: []*cli.Command{
			buildCommand(),
			batchCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "build the tree for a single PDF and print its JSON result",
		ArgsUsage: "<path>",
		Flags:     optionFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("exactly one PDF path is required", 1)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return runOne(c.Context, cfg, c.Args().First())
		},
	}
}

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "build trees for every PDF matching a glob, one JSON result per line",
		ArgsUsage: "<glob>",
		Flags:     optionFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("exactly one glob pattern is required", 1)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			matches, err := doublestar.FilepathGlob(c.Args().First())
			if err != nil {
				return cli.Exit(fmt.Sprintf("invalid glob: %v", err), 1)
			}
			if len(matches) == 0 {
				return cli.Exit("glob matched no files", 1)
			}
			var firstErr error
			for _, path := range matches {
				if err := runOne(c.Context, cfg, path); err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
					if firstErr == nil {
						firstErr = err
					}
				}
			}
			return firstErr
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the MCP server (stdio mode)",
		Flags: optionFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			tlog.Init(cfg.LogLevel == "debug")

			builder := toc.NewBuilder(cfg.Env)
			srv, err := mcpserver.NewServer(cfg, builder)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			signalCh := make(chan os.Signal, 1)
			signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-signalCh
				cancel()
			}()

			return srv.Run(ctx)
		},
	}
}

// optionFlags mirrors config.BindFlags's option table as urfave/cli
// flags; loadConfig bridges them into a pflag.FlagSet so config.Load
// can bind them the same way it binds flags registered by any other
// entry point.
func optionFlags() []cli.Flag {
	d := config.DefaultOptions()
	return []cli.Flag{
		&cli.StringFlag{Name: "model", Value: d.Model, Usage: "LLM model name forwarded to the client"},
		&cli.IntFlag{Name: "toc-check-pages", Value: d.TOCCheckPages, Usage: "leading pages scanned for a printed contents page"},
		&cli.IntFlag{Name: "max-pages-per-node", Value: d.MaxPagesPerNode, Usage: "page-span threshold above which a node may be recursed into"},
		&cli.IntFlag{Name: "max-tokens-per-node", Value: d.MaxTokensPerNode, Usage: "token budget for recursion / body segmentation"},
		&cli.IntFlag{Name: "max-verify-count", Value: d.MaxVerifyCount, Usage: "cap on verification calls"},
		&cli.IntFlag{Name: "verification-concurrency", Value: d.VerificationConcurrency, Usage: "concurrent verification calls"},
		&cli.BoolFlag{Name: "no-recursive", Value: d.NoRecursive, Usage: "disable recursive extraction of oversized nodes"},
		&cli.BoolFlag{Name: "force-verification", Value: d.ForceVerification, Usage: "bypass size-based verification skip"},
		&cli.IntFlag{Name: "large-pdf-threshold", Value: d.LargePDFThreshold, Usage: "page count above which some phases auto-downshift"},
		&cli.BoolFlag{Name: "add-node-id", Value: d.IfAddNodeID, Usage: "attach node_id strings"},
		&cli.BoolFlag{Name: "add-node-text", Value: d.IfAddNodeText, Usage: "attach text slice per node"},
		&cli.BoolFlag{Name: "add-node-summary", Value: d.IfAddNodeSummary, Usage: "attach an LLM-generated summary per node"},
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "log level (debug, info, warn, error)"},
	}
}

// loadConfig re-registers the already-parsed cli flags onto a pflag
// set so config.Load can read them back with its usual flags-over-env-
// over-defaults precedence, without config itself depending on
// urfave/cli.
func loadConfig(c *cli.Context) (*config.Config, error) {
	fs := pflag.NewFlagSet("toctreectl", pflag.ContinueOnError)
	config.BindFlags(fs)

	for _, name := range c.FlagNames() {
		if f := fs.Lookup(name); f != nil && c.IsSet(name) {
			switch f.Value.Type() {
			case "bool":
				_ = fs.Set(name, fmt.Sprintf("%v", c.Bool(name)))
			case "int":
				_ = fs.Set(name, fmt.Sprintf("%d", c.Int(name)))
			default:
				_ = fs.Set(name, c.String(name))
			}
		}
	}

	return config.Load(fs)
}

func runOne(ctx context.Context, cfg *config.Config, path string) error {
	builder := toc.NewBuilder(cfg.Env)
	result, err := builder.BuildTree(ctx, path, cfg.Options, nil)
	if err != nil {
		return fmt.Errorf("build tree for %s: %w", path, err)
	}

	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(result)
}
