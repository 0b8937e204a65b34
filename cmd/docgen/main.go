package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/odyssey-erp/odyssey-docs/cmd/docgen/cli"
	"github.com/odyssey-erp/odyssey-docs/internal/app"
	"github.com/odyssey-erp/odyssey-docs/jobs"
)

const usage = `usage: docgen <command> [flags]

commands:
  render   render a JSON record file into a PDF (default)
  enqueue  queue a background render of a stored record
  queue    print the render queue state
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	cmd := "render"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "docgen: load config: %v\n", err)
		return cli.ExitUsage
	}

	switch cmd {
	case "render":
		return runRender(ctx, cfg, args)
	case "enqueue":
		return runEnqueue(ctx, cfg, args)
	case "queue":
		return runQueue(ctx, cfg, args)
	case "help":
		fmt.Fprint(os.Stdout, usage)
		return cli.ExitOK
	default:
		fmt.Fprintf(os.Stderr, "docgen: unknown command %q\n\n%s", cmd, usage)
		return cli.ExitUsage
	}
}

func runRender(ctx context.Context, cfg *app.Config, args []string) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	var (
		opts       cli.RenderOptions
		includeVAT string
		verbose    bool
	)
	fs.StringVar(&opts.Variant, "variant", "", "document variant (quotation, invoice, sub-invoice, delivery-note, purchase-order)")
	fs.StringVar(&opts.Input, "in", "", "JSON record file, or - for stdin")
	fs.StringVar(&opts.OutputDir, "out", cfg.DocumentStorageDir, "output directory")
	fs.StringVar(&opts.LogoRef, "logo", "", "logo reference overriding the company logo")
	fs.StringVar(&includeVAT, "include-vat", "", "force the VAT line on or off (true/false)")
	fs.BoolVar(&opts.Barcode, "barcode", false, "append a Code 128 symbol of the document number")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "lay out the document without writing a file")
	fs.BoolVar(&opts.JSONOutput, "json", false, "print the summary as JSON")
	fs.BoolVar(&verbose, "verbose", false, "log asset fallbacks and render details")
	if err := fs.Parse(args); err != nil {
		return cli.ExitUsage
	}
	if includeVAT != "" {
		v, err := strconv.ParseBool(includeVAT)
		if err != nil {
			fmt.Fprintf(os.Stderr, "render: invalid -include-vat %q\n", includeVAT)
			return cli.ExitUsage
		}
		opts.IncludeVAT = &v
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if verbose {
		logger = app.NewLogger(cfg)
	}
	svc := app.NewDocumentService(cfg, logger, app.DocumentDeps{LocalFiles: true})
	return cli.NewRenderCLI(svc).RenderCommand(ctx, opts)
}

func runEnqueue(ctx context.Context, cfg *app.Config, args []string) int {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	var payload jobs.DocumentRenderPayload
	fs.StringVar(&payload.Variant, "variant", "", "document variant")
	fs.StringVar(&payload.Number, "number", "", "stored document number")
	fs.StringVar(&payload.LogoRef, "logo", "", "logo reference overriding the company logo")
	fs.BoolVar(&payload.Barcode, "barcode", false, "append a Code 128 symbol of the document number")
	if err := fs.Parse(args); err != nil {
		return cli.ExitUsage
	}

	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "enqueue: %v\n", err)
		return cli.ExitFailed
	}
	defer jobsCLI.Close()

	info, err := jobsCLI.Trigger(ctx, payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "enqueue: %v\n", err)
		return cli.ExitFailed
	}
	fmt.Fprintf(os.Stdout, "queued %s on %s\n", info.ID, info.Queue)
	return cli.ExitOK
}

func runQueue(ctx context.Context, cfg *app.Config, args []string) int {
	fs := flag.NewFlagSet("queue", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return cli.ExitUsage
	}

	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "queue: %v\n", err)
		return cli.ExitFailed
	}
	defer jobsCLI.Close()

	stats, err := jobsCLI.InspectQueue(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "queue: %v\n", err)
		return cli.ExitFailed
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return cli.ExitFailed
	}
	return cli.ExitOK
}
