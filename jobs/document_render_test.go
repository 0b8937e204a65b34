package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-docs/internal/documents"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/engine"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/record"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/variants"
	jobmetrics "github.com/odyssey-erp/odyssey-docs/internal/jobs"
)

type stubRenderer struct {
	calls   int
	variant record.Variant
	number  string
	opts    variants.Options
	err     error
}

func (s *stubRenderer) RenderToStore(_ context.Context, v record.Variant, number string, opts variants.Options) (string, *engine.Result, error) {
	s.calls++
	s.variant, s.number, s.opts = v, number, opts
	if s.err != nil {
		return "", nil, s.err
	}
	return "/tmp/" + number + ".pdf", &engine.Result{FileName: number + ".pdf", Pages: 2}, nil
}

func newRenderJob(r DocumentRenderer) *DocumentRenderJob {
	return NewDocumentRenderJob(r, slog.New(slog.NewTextHandler(io.Discard, nil)), jobmetrics.NewMetrics(prometheus.NewRegistry()))
}

func renderTask(t *testing.T, payload DocumentRenderPayload) *asynq.Task {
	t.Helper()
	task, err := NewDocumentRenderTask(payload)
	require.NoError(t, err)
	return task
}

// =============================================================================
// TASK TESTS
// =============================================================================

func TestNewDocumentRenderTask(t *testing.T) {
	exclude := false
	task := renderTask(t, DocumentRenderPayload{Variant: "purchase-order", Number: "PO-1", IncludeVAT: &exclude})
	assert.Equal(t, TaskDocumentRender, task.Type())

	var got DocumentRenderPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &got))
	require.NotNil(t, got.IncludeVAT)
	assert.False(t, *got.IncludeVAT)

	_, err := NewDocumentRenderTask(DocumentRenderPayload{Variant: "invoice"})
	assert.Error(t, err)
}

// =============================================================================
// HANDLER TESTS
// =============================================================================

func TestDocumentRenderJobRendersStoredRecord(t *testing.T) {
	r := &stubRenderer{}
	err := newRenderJob(r).Handle(context.Background(), renderTask(t, DocumentRenderPayload{Variant: "delivery-note", Number: "DN-9", LogoRef: "uploads/logo.png"}))
	require.NoError(t, err)

	assert.Equal(t, 1, r.calls)
	assert.Equal(t, record.VariantDeliveryNote, r.variant)
	assert.Equal(t, "DN-9", r.number)
	assert.Equal(t, "uploads/logo.png", r.opts.LogoRef)
	assert.False(t, r.opts.OpenPreview)
}

func TestDocumentRenderJobSkipsBadPayload(t *testing.T) {
	r := &stubRenderer{}
	job := newRenderJob(r)

	err := job.Handle(context.Background(), asynq.NewTask(TaskDocumentRender, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskDocumentRender, []byte(`{"variant":"receipt","number":"R-1"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, r.calls)
}

func TestDocumentRenderJobRetryPolicy(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		retry bool
	}{
		{"missing record", fmt.Errorf("%w: invoice INV-1", documents.ErrRecordNotFound), false},
		{"invalid record", fmt.Errorf("%w: number is required", record.ErrInvalidRecord), false},
		{"storage failure", errors.New("output: rename: read-only file system"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := newRenderJob(&stubRenderer{err: tc.err}).Handle(context.Background(), renderTask(t, DocumentRenderPayload{Variant: "invoice", Number: "INV-1"}))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, !tc.retry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestDocumentRenderJobUnconfigured(t *testing.T) {
	var job *DocumentRenderJob
	assert.Error(t, job.Handle(context.Background(), asynq.NewTask(TaskDocumentRender, nil)))
}

func TestClientUnavailable(t *testing.T) {
	var c *Client
	_, err := c.EnqueueDocumentRender(context.Background(), DocumentRenderPayload{Variant: "invoice", Number: "INV-1"})
	assert.ErrorIs(t, err, ErrClientUnavailable)
	assert.NoError(t, c.Close())
}
