// Package engine lays documents out block by block onto paginated pages and
// delivers the finished file.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/asset"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/layout"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/normalize"
)

// ErrInvalidDocument is returned when a document lacks its identifying number.
var ErrInvalidDocument = errors.New("documents: invalid document")

// ContentType of every rendered artifact.
const ContentType = "application/pdf"

// Stage is a step of the block layout sequence.
type Stage int

const (
	StageHeader Stage = iota
	StagePartiesInfo
	StageItemsTable
	StageTotalsBox
	StageTermsAndPayments
	StageClosingNotice
	StageFinalize
)

func (s Stage) String() string {
	switch s {
	case StageHeader:
		return "header"
	case StagePartiesInfo:
		return "parties_info"
	case StageItemsTable:
		return "items_table"
	case StageTotalsBox:
		return "totals_box"
	case StageTermsAndPayments:
		return "terms_and_payments"
	case StageClosingNotice:
		return "closing_notice"
	default:
		return "finalize"
	}
}

// Artifact is an encoded document.
type Artifact struct {
	FileName string
	Data     []byte
	Pages    int
}

// Preview is a transient handle to an artifact.
type Preview struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// Delivery hands a finished artifact to its consumer.
type Delivery interface {
	Save(ctx context.Context, a Artifact) error
	Preview(ctx context.Context, a Artifact) (Preview, error)
}

// Options are per-call render options.
type Options struct {
	// OpenPreview delivers through Delivery.Preview instead of Delivery.Save.
	OpenPreview bool
}

// Result describes a completed render.
type Result struct {
	FileName string
	Pages    int
	Size     int
	Stages   []Stage
	Preview  *Preview
}

// Engine renders documents. It holds only read-only configuration and is safe
// for concurrent use; every call owns its page context, canvas and asset session.
type Engine struct {
	loader   asset.Loader
	geometry layout.Geometry
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithGeometry overrides the page geometry.
func WithGeometry(g layout.Geometry) Option {
	return func(e *Engine) { e.geometry = g }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New builds an engine over loader. A nil loader renders every asset as a placeholder.
func New(loader asset.Loader, opts ...Option) *Engine {
	e := &Engine{loader: loader, geometry: layout.A4(), logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FileName returns the output file name for a document number.
func FileName(number string) string {
	return normalize.SanitizeFileName(number) + ".pdf"
}

// Render lays out doc, encodes it in memory and delivers it through exactly
// one of d.Save or d.Preview.
func (e *Engine) Render(ctx context.Context, doc *Document, opts Options, d Delivery) (*Result, error) {
	if d == nil {
		return nil, errors.New("engine: no delivery configured")
	}
	art, stages, err := e.encode(ctx, doc)
	if err != nil {
		return nil, err
	}
	res := &Result{FileName: art.FileName, Pages: art.Pages, Size: len(art.Data), Stages: stages}
	if opts.OpenPreview {
		p, err := d.Preview(ctx, art)
		if err != nil {
			return nil, fmt.Errorf("deliver preview: %w", err)
		}
		res.Preview = &p
		return res, nil
	}
	if err := d.Save(ctx, art); err != nil {
		return nil, fmt.Errorf("deliver file: %w", err)
	}
	return res, nil
}

// Encode lays out doc and returns the encoded artifact without delivering it.
func (e *Engine) Encode(ctx context.Context, doc *Document) (Artifact, error) {
	art, _, err := e.encode(ctx, doc)
	return art, err
}

// DryRun lays doc out on a recording canvas. No PDF is produced.
func (e *Engine) DryRun(ctx context.Context, doc *Document) (*layout.Recorder, *Result, error) {
	if err := checkDocument(doc); err != nil {
		return nil, nil, err
	}
	rec := layout.NewRecorder()
	stages, err := e.layout(ctx, rec, doc)
	if err != nil {
		return nil, nil, err
	}
	return rec, &Result{FileName: FileName(doc.Number), Pages: rec.Pages(), Stages: stages}, nil
}

func (e *Engine) encode(ctx context.Context, doc *Document) (Artifact, []Stage, error) {
	if err := checkDocument(doc); err != nil {
		return Artifact{}, nil, err
	}
	canvas := layout.NewPDFCanvas(e.geometry, layout.DocumentInfo{
		Title:     doc.Title + " " + doc.Number,
		Author:    doc.Company.Name,
		Subject:   doc.Variant,
		CreatedAt: doc.CreatedAt,
	})
	stages, err := e.layout(ctx, canvas, doc)
	if err != nil {
		return Artifact{}, nil, err
	}
	var buf bytes.Buffer
	if err := canvas.Encode(&buf); err != nil {
		return Artifact{}, nil, err
	}
	return Artifact{FileName: FileName(doc.Number), Data: buf.Bytes(), Pages: canvas.Pages()}, stages, nil
}

func checkDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.Number) == "" {
		return fmt.Errorf("%w: missing document number", ErrInvalidDocument)
	}
	return nil
}

// layout runs the stages in order. Stages never go back.
func (e *Engine) layout(ctx context.Context, canvas layout.Canvas, doc *Document) ([]Stage, error) {
	session := asset.NewSession(e.loader)
	session.Prefetch(ctx, doc.imageRefs())

	r := &renderCtx{ctx: ctx, doc: doc, session: session, canvas: canvas, decimals: doc.Decimals, logger: e.logger}
	if r.decimals <= 0 {
		r.decimals = normalize.DefaultDecimals
	}
	r.pc = layout.NewPageContext(canvas, e.geometry, r.decorate)

	steps := []struct {
		stage Stage
		run   func()
		skip  bool
	}{
		{StageHeader, r.header, false},
		{StagePartiesInfo, r.parties, false},
		{StageItemsTable, r.items, len(doc.Columns) == 0},
		{StageTotalsBox, r.totalsBox, len(doc.Totals) == 0},
		{StageTermsAndPayments, r.blocks, len(doc.Blocks) == 0},
		{StageClosingNotice, r.notice, strings.TrimSpace(doc.Notice) == ""},
	}
	var visited []Stage
	r.pc.BeginPage()
	for _, step := range steps {
		if step.skip {
			continue
		}
		step.run()
		visited = append(visited, step.stage)
		if err := canvas.Err(); err != nil {
			e.logger.Error("render document", slog.String("number", doc.Number),
				slog.String("stage", step.stage.String()), slog.Any("error", err))
			return nil, wrapSurface(err)
		}
	}
	return append(visited, StageFinalize), nil
}

func wrapSurface(err error) error {
	if errors.Is(err, layout.ErrRenderSurface) {
		return err
	}
	return fmt.Errorf("%w: %v", layout.ErrRenderSurface, err)
}
