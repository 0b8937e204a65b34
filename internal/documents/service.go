// Package documents renders business documents from record snapshots and
// delivers them as saved files, downloads or short-lived previews.
package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/engine"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/output"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/record"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/variants"
	"github.com/odyssey-erp/odyssey-docs/internal/observability"
)

// Service errors.
var (
	ErrRecordNotFound  = errors.New("documents: record not found")
	ErrNoRecordStore   = errors.New("documents: record store not configured")
	ErrNoDocumentStore = errors.New("documents: document storage not configured")
)

// Delivery mode labels.
const (
	ModeFile    = "file"
	ModePreview = "preview"
)

// RecordStore loads and stores record snapshots.
type RecordStore interface {
	Load(ctx context.Context, v record.Variant, number string) (*record.Record, error)
	Save(ctx context.Context, v record.Variant, rec *record.Record) error
}

// RenderRequest asks for one document.
type RenderRequest struct {
	Variant record.Variant
	Record  *record.Record
	Options variants.Options
}

// ServiceConfig collects the service dependencies. Records, Previews, Store
// and Metrics are optional; the operations needing them fail without them.
type ServiceConfig struct {
	Engine   *engine.Engine
	Company  engine.Company
	Decimals int
	Records  RecordStore
	Previews output.PreviewStore
	Store    *output.DirStore
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// Service orchestrates record lookup, rendering and delivery.
type Service struct {
	engine   *engine.Engine
	company  engine.Company
	decimals int
	records  RecordStore
	previews output.PreviewStore
	store    *output.DirStore
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewService constructs the service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	eng := cfg.Engine
	if eng == nil {
		eng = engine.New(nil, engine.WithLogger(logger))
	}
	return &Service{
		engine:   eng,
		company:  cfg.Company,
		decimals: cfg.Decimals,
		records:  cfg.Records,
		previews: cfg.Previews,
		store:    cfg.Store,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
}

// Render renders req and hands the file to saver, or to the preview store
// when req.Options.OpenPreview is set.
func (s *Service) Render(ctx context.Context, req RenderRequest, saver output.Saver) (*engine.Result, error) {
	mode := ModeFile
	if req.Options.OpenPreview {
		mode = ModePreview
	}
	ctx, span := observability.StartSpan(ctx, "documents.render",
		attribute.String("document.variant", string(req.Variant)),
		attribute.String("document.mode", mode),
	)
	start := time.Now()
	gen := s.generator(output.Delivery{Saver: saver, Previews: s.previews})
	res, err := gen.Generate(ctx, req.Variant, req.Record, req.Options)

	pages := 0
	if res != nil {
		pages = res.Pages
		span.SetAttributes(attribute.Int("document.pages", pages))
	}
	observability.EndSpan(span, err)
	s.metrics.ObserveRender(string(req.Variant), mode, err, time.Since(start), pages)

	logger := s.logger.With(slog.String("variant", string(req.Variant)), slog.String("mode", mode))
	if err != nil {
		if isClientError(err) {
			logger.Warn("document rejected", slog.Any("error", err))
		} else {
			logger.Error("render document", slog.Any("error", err))
		}
		return nil, err
	}
	logger.Info("document rendered",
		slog.String("file", res.FileName),
		slog.Int("pages", res.Pages),
		slog.Int("bytes", res.Size),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

// RenderStored renders the stored record for number.
func (s *Service) RenderStored(ctx context.Context, v record.Variant, number string, opts variants.Options, saver output.Saver) (*engine.Result, error) {
	rec, err := s.Load(ctx, v, number)
	if err != nil {
		return nil, err
	}
	return s.Render(ctx, RenderRequest{Variant: v, Record: rec, Options: opts}, saver)
}

// RenderToStore renders the stored record for number into the document
// directory and returns the written path.
func (s *Service) RenderToStore(ctx context.Context, v record.Variant, number string, opts variants.Options) (string, *engine.Result, error) {
	if s.store == nil {
		return "", nil, ErrNoDocumentStore
	}
	opts.OpenPreview = false
	res, err := s.RenderStored(ctx, v, number, opts, s.store)
	if err != nil {
		return "", nil, err
	}
	return s.store.Path(res.FileName), res, nil
}

// DryRun lays out req without producing a file and reports the page count.
func (s *Service) DryRun(ctx context.Context, req RenderRequest) (*engine.Result, error) {
	return s.generator(nil).DryRun(ctx, req.Variant, req.Record, req.Options)
}

// Load returns the stored record for number.
func (s *Service) Load(ctx context.Context, v record.Variant, number string) (*record.Record, error) {
	if s.records == nil {
		return nil, ErrNoRecordStore
	}
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: unknown variant %q", record.ErrInvalidRecord, v)
	}
	return s.records.Load(ctx, v, number)
}

// Store validates rec for v and saves it as the snapshot for its number.
func (s *Service) Store(ctx context.Context, v record.Variant, rec *record.Record) error {
	if s.records == nil {
		return ErrNoRecordStore
	}
	if err := record.Validate(rec, v); err != nil {
		return err
	}
	if err := s.records.Save(ctx, v, rec); err != nil {
		return fmt.Errorf("documents: save snapshot: %w", err)
	}
	return nil
}

// Preview returns the artifact behind a preview handle.
func (s *Service) Preview(ctx context.Context, id string) (engine.Artifact, error) {
	if s.previews == nil {
		return engine.Artifact{}, output.ErrPreviewNotFound
	}
	return s.previews.Get(ctx, id)
}

func (s *Service) generator(d engine.Delivery) *variants.Generator {
	return variants.NewGenerator(s.engine, d, s.company, s.decimals)
}

func isClientError(err error) bool {
	return errors.Is(err, record.ErrNoRecord) ||
		errors.Is(err, record.ErrInvalidRecord) ||
		errors.Is(err, ErrRecordNotFound)
}
