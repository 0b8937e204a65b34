package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-docs/internal/documents"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/asset"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/engine"
)

const deliveryNote = `{
	"number": "DN-0009",
	"created_at": "2025-08-10T09:00:00Z",
	"party": {"name": "Acme Contracting"},
	"items": [
		{"name": "Cable drum", "quantity": 10, "delivered": 10, "balance": 0},
		{"name": "Junction box", "quantity": 10, "delivered": 4}
	]
}`

func newRenderCLI() *RenderCLI {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	offline := asset.LoaderFunc(func(context.Context, string) ([]byte, bool) { return nil, false })
	return NewRenderCLI(documents.NewService(documents.ServiceConfig{
		Engine:  engine.New(offline, engine.WithLogger(logger)),
		Company: engine.Company{Name: "Odyssey Trading LLC"},
		Logger:  logger,
	}))
}

func writeRecord(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRenderCommandWritesPDF(t *testing.T) {
	outDir := t.TempDir()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	code := newRenderCLI().RenderCommand(context.Background(), RenderOptions{
		Variant:    "delivery-note",
		Input:      writeRecord(t, deliveryNote),
		OutputDir:  outDir,
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Equal(t, ExitOK, code, stderr.String())

	var summary RenderSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.Equal(t, filepath.Join(outDir, "DN-0009.pdf"), summary.File)
	assert.Equal(t, 1, summary.Pages)
	assert.False(t, summary.DryRun)

	data, err := os.ReadFile(summary.File)
	require.NoError(t, err)
	assert.Equal(t, summary.Bytes, len(data))
}

func TestRenderCommandDryRunFromStdin(t *testing.T) {
	outDir := t.TempDir()
	stdout := new(bytes.Buffer)

	code := newRenderCLI().RenderCommand(context.Background(), RenderOptions{
		Variant:   "delivery_note",
		Input:     "-",
		OutputDir: outDir,
		DryRun:    true,
		Stdin:     strings.NewReader(deliveryNote),
		Stdout:    stdout,
		Stderr:    io.Discard,
	})
	require.Equal(t, ExitOK, code)
	assert.Contains(t, stdout.String(), "delivery_note DN-0009: 1 page(s) (dry run)")
	assert.Contains(t, stdout.String(), "stages: header, parties_info, items_table")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRenderCommandExitCodes(t *testing.T) {
	cli := newRenderCLI()
	ctx := context.Background()
	stderr := new(bytes.Buffer)

	code := cli.RenderCommand(ctx, RenderOptions{Variant: "receipt", Input: "x.json", Stdout: io.Discard, Stderr: stderr})
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr.String(), `unknown variant "receipt"`)

	code = cli.RenderCommand(ctx, RenderOptions{Variant: "invoice", Stdout: io.Discard, Stderr: io.Discard})
	assert.Equal(t, ExitUsage, code)

	code = cli.RenderCommand(ctx, RenderOptions{Variant: "invoice", Input: writeRecord(t, "{"), Stdout: io.Discard, Stderr: io.Discard})
	assert.Equal(t, ExitInvalid, code)

	code = cli.RenderCommand(ctx, RenderOptions{Variant: "sub-invoice", Input: writeRecord(t, deliveryNote), OutputDir: t.TempDir(), Stdout: io.Discard, Stderr: io.Discard})
	assert.Equal(t, ExitInvalid, code)
}
