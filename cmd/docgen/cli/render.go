// Package cli implements the docgen subcommands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/odyssey-erp/odyssey-docs/internal/documents"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/output"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/record"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/variants"
)

// Exit codes of the render command.
const (
	ExitOK      = 0
	ExitUsage   = 1
	ExitInvalid = 2
	ExitFailed  = 3
)

// RenderOptions defines the flags of the render command.
type RenderOptions struct {
	Variant    string
	Input      string
	OutputDir  string
	LogoRef    string
	IncludeVAT *bool
	Barcode    bool
	DryRun     bool
	JSONOutput bool
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

// RenderSummary is the JSON output of the render command.
type RenderSummary struct {
	Variant string   `json:"variant"`
	Number  string   `json:"number"`
	File    string   `json:"file,omitempty"`
	Pages   int      `json:"pages"`
	Bytes   int      `json:"bytes,omitempty"`
	DryRun  bool     `json:"dry_run"`
	Stages  []string `json:"stages"`
}

// RenderCLI renders record files through the document service.
type RenderCLI struct {
	service *documents.Service
}

// NewRenderCLI constructs the command around svc.
func NewRenderCLI(svc *documents.Service) *RenderCLI {
	return &RenderCLI{service: svc}
}

// RenderCommand reads a JSON record, renders it and prints the outcome. It
// returns the process exit code.
func (c *RenderCLI) RenderCommand(ctx context.Context, opts RenderOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	variant, ok := record.ParseVariant(opts.Variant)
	if !ok {
		_, _ = fmt.Fprintf(opts.Stderr, "render: unknown variant %q\n", opts.Variant)
		return ExitUsage
	}
	if strings.TrimSpace(opts.Input) == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "render: -in is required (use - for stdin)")
		return ExitUsage
	}
	rec, err := readRecord(opts.Input, opts.Stdin)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "render: %v\n", err)
		return ExitInvalid
	}

	req := documents.RenderRequest{
		Variant: variant,
		Record:  rec,
		Options: variants.Options{LogoRef: opts.LogoRef, IncludeVAT: opts.IncludeVAT, Barcode: opts.Barcode},
	}
	summary := RenderSummary{Variant: string(variant), Number: rec.Number, DryRun: opts.DryRun}
	if opts.DryRun {
		res, err := c.service.DryRun(ctx, req)
		if err != nil {
			return c.fail(opts, err)
		}
		summary.Pages = res.Pages
		summary.Stages = stageNames(res.Stages)
	} else {
		store := output.NewDirStore(opts.OutputDir)
		res, err := c.service.Render(ctx, req, store)
		if err != nil {
			return c.fail(opts, err)
		}
		summary.File = store.Path(res.FileName)
		summary.Pages = res.Pages
		summary.Bytes = res.Size
		summary.Stages = stageNames(res.Stages)
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "render: encode json: %v\n", err)
			return ExitFailed
		}
		return ExitOK
	}
	renderHuman(opts.Stdout, summary)
	return ExitOK
}

func (c *RenderCLI) fail(opts RenderOptions, err error) int {
	_, _ = fmt.Fprintf(opts.Stderr, "render: %v\n", err)
	if errors.Is(err, record.ErrNoRecord) || errors.Is(err, record.ErrInvalidRecord) {
		return ExitInvalid
	}
	return ExitFailed
}

func readRecord(path string, stdin io.Reader) (*record.Record, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

func renderHuman(out io.Writer, s RenderSummary) {
	if s.DryRun {
		_, _ = fmt.Fprintf(out, "%s %s: %d page(s) (dry run)\n", s.Variant, s.Number, s.Pages)
	} else {
		_, _ = fmt.Fprintf(out, "%s %s: %d page(s), %d bytes\n", s.Variant, s.Number, s.Pages, s.Bytes)
		_, _ = fmt.Fprintf(out, "written to %s\n", s.File)
	}
	_, _ = fmt.Fprintf(out, "stages: %s\n", strings.Join(s.Stages, ", "))
}

func stageNames[S fmt.Stringer](stages []S) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.String()
	}
	return names
}
