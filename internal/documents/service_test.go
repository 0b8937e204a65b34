package documents

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/asset"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/engine"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/output"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/record"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/variants"
	"github.com/odyssey-erp/odyssey-docs/internal/observability"
)

type memoryRecords struct {
	mu   sync.Mutex
	data map[string]*record.Record
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{data: make(map[string]*record.Record)}
}

func (m *memoryRecords) Load(_ context.Context, v record.Variant, number string) (*record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.data[string(v)+"/"+number]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrRecordNotFound, v, number)
	}
	return rec, nil
}

func (m *memoryRecords) Save(_ context.Context, v record.Variant, rec *record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(v)+"/"+rec.Number] = rec
	return nil
}

type captureSaver struct {
	saved []engine.Artifact
}

func (c *captureSaver) Save(_ context.Context, a engine.Artifact) error {
	c.saved = append(c.saved, a)
	return nil
}

type fixture struct {
	svc      *Service
	records  *memoryRecords
	previews *output.MemoryPreviewStore
	store    *output.DirStore
	metrics  *observability.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	offline := asset.LoaderFunc(func(context.Context, string) ([]byte, bool) { return nil, false })
	f := fixture{
		records:  newMemoryRecords(),
		previews: output.NewMemoryPreviewStore(time.Minute, "/previews"),
		store:    output.NewDirStore(t.TempDir()),
		metrics:  observability.NewMetrics(),
	}
	t.Cleanup(f.previews.Close)
	f.svc = NewService(ServiceConfig{
		Engine:   engine.New(offline, engine.WithLogger(logger)),
		Company:  engine.Company{Name: "Odyssey Trading LLC"},
		Decimals: 3,
		Records:  f.records,
		Previews: f.previews,
		Store:    f.store,
		Metrics:  f.metrics,
		Logger:   logger,
	})
	return f
}

func invoice() *record.Record {
	return &record.Record{
		Number:    "INV-0007",
		CreatedAt: "2025-08-10",
		Party:     record.Party{Name: "Acme Contracting"},
		Items:     []record.LineItem{{Name: "Cable", UnitPrice: 25, Quantity: 4}},
		Totals:    record.TotalsInput{Subtotal: 100, VAT: 5},
	}
}

func metricsBody(t *testing.T, m *observability.Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rr.Body.String()
}

// =============================================================================
// RENDER TESTS
// =============================================================================

func TestRenderDeliversToSaver(t *testing.T) {
	f := newFixture(t)
	saver := &captureSaver{}

	res, err := f.svc.Render(context.Background(), RenderRequest{Variant: record.VariantInvoice, Record: invoice()}, saver)
	require.NoError(t, err)

	require.Len(t, saver.saved, 1)
	assert.Equal(t, "INV-0007.pdf", res.FileName)
	assert.Equal(t, 1, res.Pages)
	assert.Zero(t, f.previews.Len())
	assert.Contains(t, metricsBody(t, f.metrics), `odyssey_documents_rendered_total{mode="file",status="success",variant="invoice"} 1`)
}

func TestRenderPreview(t *testing.T) {
	f := newFixture(t)
	saver := &captureSaver{}
	req := RenderRequest{Variant: record.VariantInvoice, Record: invoice(), Options: variants.Options{OpenPreview: true}}

	res, err := f.svc.Render(context.Background(), req, saver)
	require.NoError(t, err)
	require.NotNil(t, res.Preview)
	assert.Empty(t, saver.saved)

	art, err := f.svc.Preview(context.Background(), res.Preview.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-0007.pdf", art.FileName)
	assert.Equal(t, "/previews/"+res.Preview.ID, res.Preview.URL)
}

func TestRenderRejectsInvalidRecord(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Render(context.Background(), RenderRequest{Variant: record.VariantSubInvoice, Record: invoice()}, &captureSaver{})
	assert.ErrorIs(t, err, record.ErrInvalidRecord)
	assert.Contains(t, metricsBody(t, f.metrics), `odyssey_documents_rendered_total{mode="file",status="failure",variant="sub_invoice"} 1`)
}

func TestDryRunCountsPages(t *testing.T) {
	f := newFixture(t)
	rec := invoice()
	for i := 0; i < 90; i++ {
		rec.Items = append(rec.Items, record.LineItem{Name: fmt.Sprintf("Item %d", i), UnitPrice: 1, Quantity: 1})
	}
	res, err := f.svc.DryRun(context.Background(), RenderRequest{Variant: record.VariantQuotation, Record: rec})
	require.NoError(t, err)
	assert.Greater(t, res.Pages, 1)
}

// =============================================================================
// STORED RECORD TESTS
// =============================================================================

func TestStoreAndRenderStored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Store(ctx, record.VariantInvoice, invoice()))

	saver := &captureSaver{}
	res, err := f.svc.RenderStored(ctx, record.VariantInvoice, "INV-0007", variants.Options{}, saver)
	require.NoError(t, err)
	assert.Equal(t, "INV-0007.pdf", res.FileName)
	require.Len(t, saver.saved, 1)
}

func TestStoreValidates(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Store(context.Background(), record.VariantSubInvoice, invoice())
	assert.ErrorIs(t, err, record.ErrInvalidRecord)
	_, err = f.records.Load(context.Background(), record.VariantSubInvoice, "INV-0007")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRenderStoredMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RenderStored(context.Background(), record.VariantInvoice, "INV-404", variants.Options{}, &captureSaver{})
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = f.svc.RenderStored(context.Background(), record.Variant("receipt"), "INV-404", variants.Options{}, &captureSaver{})
	assert.ErrorIs(t, err, record.ErrInvalidRecord)
}

func TestRenderToStoreWritesFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Store(ctx, record.VariantInvoice, invoice()))

	path, res, err := f.svc.RenderToStore(ctx, record.VariantInvoice, "INV-0007", variants.Options{OpenPreview: true})
	require.NoError(t, err)
	assert.Nil(t, res.Preview)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(data[:5]))
}

func TestUnconfiguredStores(t *testing.T) {
	svc := NewService(ServiceConfig{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx := context.Background()

	_, err := svc.Load(ctx, record.VariantInvoice, "INV-1")
	assert.ErrorIs(t, err, ErrNoRecordStore)
	assert.ErrorIs(t, svc.Store(ctx, record.VariantInvoice, invoice()), ErrNoRecordStore)
	_, _, err = svc.RenderToStore(ctx, record.VariantInvoice, "INV-1", variants.Options{})
	assert.ErrorIs(t, err, ErrNoDocumentStore)
	_, err = svc.Preview(ctx, "x")
	assert.ErrorIs(t, err, output.ErrPreviewNotFound)
}

// =============================================================================
// SNAPSHOT TESTS
// =============================================================================

func TestDecodeSnapshotIsTolerant(t *testing.T) {
	rec, err := decodeSnapshot([]byte(`{
		"number": "QT-1",
		"party": {"name": "Acme"},
		"items": [{"name": "Cable", "unit_price": "1,250.500", "quantity": "2", "line_total": null}],
		"totals": {"subtotal": "2,501.000", "vat": "n/a"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, 1250.5, rec.Items[0].UnitPrice.Float())
	assert.Equal(t, 2.0, rec.Items[0].Quantity.Float())
	assert.Equal(t, 2501.0, rec.Totals.Subtotal.Float())
	assert.Zero(t, rec.Totals.VAT.Float())

	_, err = decodeSnapshot([]byte(`not json`))
	assert.ErrorIs(t, err, record.ErrInvalidRecord)
}

func TestSchemaIsEmbedded(t *testing.T) {
	assert.Contains(t, Schema, "CREATE TABLE IF NOT EXISTS document_snapshots (")
	assert.Contains(t, Schema, "CREATE TABLE IF NOT EXISTS document_snapshot_history")
}
