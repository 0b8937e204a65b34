package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-docs/internal/documents"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/engine"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/record"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/variants"
	jobmetrics "github.com/odyssey-erp/odyssey-docs/internal/jobs"
)

// DocumentRenderer renders a stored record into durable storage.
type DocumentRenderer interface {
	RenderToStore(ctx context.Context, v record.Variant, number string, opts variants.Options) (string, *engine.Result, error)
}

// DocumentRenderJob handles TaskDocumentRender.
type DocumentRenderJob struct {
	Renderer DocumentRenderer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewDocumentRenderJob wires dependencies for the render handler.
func NewDocumentRenderJob(renderer DocumentRenderer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DocumentRenderJob {
	return &DocumentRenderJob{Renderer: renderer, Logger: logger, Metrics: metrics}
}

// Handle processes document render tasks. Payload and record errors are not
// retried; storage and surface errors are.
func (j *DocumentRenderJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Renderer == nil {
		return errors.New("document render: handler not configured")
	}
	var payload DocumentRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	variant, ok := record.ParseVariant(payload.Variant)
	if !ok {
		return fmt.Errorf("unknown variant %q: %w", payload.Variant, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskDocumentRender)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("variant", string(variant)), slog.String("number", payload.Number))
	opts := variants.Options{LogoRef: payload.LogoRef, IncludeVAT: payload.IncludeVAT, Barcode: payload.Barcode}
	path, res, err := j.Renderer.RenderToStore(ctx, variant, payload.Number, opts)
	if err != nil {
		logger.Error("render document", slog.Any("error", err))
		if errors.Is(err, documents.ErrRecordNotFound) || errors.Is(err, record.ErrInvalidRecord) || errors.Is(err, record.ErrNoRecord) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	logger.Info("document ready", slog.String("file", path), slog.Int("pages", res.Pages))
	return nil
}

func (j *DocumentRenderJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *DocumentRenderJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
