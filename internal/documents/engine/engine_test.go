package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/asset"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/layout"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/table"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/totals"
)

type stubDelivery struct {
	saved     []Artifact
	previewed []Artifact
	err       error
}

func (s *stubDelivery) Save(_ context.Context, a Artifact) error {
	s.saved = append(s.saved, a)
	return s.err
}

func (s *stubDelivery) Preview(_ context.Context, a Artifact) (Preview, error) {
	s.previewed = append(s.previewed, a)
	return Preview{ID: "p-1", ExpiresAt: time.Now().Add(time.Minute)}, s.err
}

var unreachable = asset.LoaderFunc(func(context.Context, string) ([]byte, bool) { return nil, false })

func quietEngine(loader asset.Loader) *Engine {
	return New(loader, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func sampleDocument(items int) *Document {
	rows := make([]table.Row, items)
	for i := range rows {
		rows[i] = table.Row{table.Text(fmt.Sprint(i + 1)), table.Text(fmt.Sprintf("Item %d", i+1)), table.Number(10), table.Number(2), table.Number(20)}
	}
	return &Document{
		Variant:  "quotation",
		Title:    "QUOTATION",
		Number:   "QT 2025/001",
		Theme:    DefaultTheme(),
		Company:  Company{Name: "Odyssey Trading LLC", Address: "PO Box 12\nMuscat", Phone: "+968 2400 0000", LogoRef: "/assets/logo.png"},
		Running:  []Field{{Label: "Date", Value: "10 Aug 2025"}},
		Party:    Party{Heading: "QUOTE FOR", Name: "Acme", Lines: []Field{{Label: "Contact", Value: "+968 9000 0000"}}},
		Details:  []Field{{Label: "Valid Until", Value: "09 Sep 2025"}},
		Columns: []table.Column{
			{Title: "#", Width: 10},
			{Title: "Description"},
			{Title: "Unit Price", Width: 28, Format: table.FormatAmount},
			{Title: "Qty", Width: 16, Format: table.FormatQuantity},
			{Title: "Total", Width: 30, Format: table.FormatAmount},
		},
		Rows:   rows,
		Totals: totals.Rows(totals.Input{Subtotal: float64(items) * 20, VAT: float64(items)}),
		Blocks: []Block{&TermsList{Heading: "Terms & Conditions", Lines: []string{"Prices in OMR.", "Delivery within 14 days."}, Numbered: true}},
		Notice: "Thank you for your business.",
	}
}

// =============================================================================
// STAGE TESTS
// =============================================================================

func TestDryRunVisitsStagesInOrder(t *testing.T) {
	_, res, err := quietEngine(unreachable).DryRun(context.Background(), sampleDocument(3))
	require.NoError(t, err)

	assert.Equal(t, []Stage{
		StageHeader, StagePartiesInfo, StageItemsTable, StageTotalsBox,
		StageTermsAndPayments, StageClosingNotice, StageFinalize,
	}, res.Stages)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, "QT_2025001.pdf", res.FileName)
}

func TestDryRunSkipsOptionalStages(t *testing.T) {
	doc := sampleDocument(1)
	doc.Blocks = nil
	doc.Notice = ""
	doc.Totals = nil

	_, res, err := quietEngine(unreachable).DryRun(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageHeader, StagePartiesInfo, StageItemsTable, StageFinalize}, res.Stages)
}

func TestDryRunDecoratesEveryPageOnce(t *testing.T) {
	rec, res, err := quietEngine(unreachable).DryRun(context.Background(), sampleDocument(120))
	require.NoError(t, err)
	require.Greater(t, res.Pages, 2)

	numbers := rec.CountText("No: QT 2025/001")
	descriptions := rec.CountText("Description")
	for page := 1; page <= res.Pages; page++ {
		assert.Equal(t, 1, numbers[page], "running number on page %d", page)
		assert.Contains(t, rec.Texts(page), fmt.Sprintf("Page %d of %d", page, res.Pages))
	}
	for page := 1; page < res.Pages; page++ {
		assert.Equal(t, 1, descriptions[page], "table header on page %d", page)
	}
}

func TestDryRunTotalsRowsFollowItems(t *testing.T) {
	rec, res, err := quietEngine(unreachable).DryRun(context.Background(), sampleDocument(2))
	require.NoError(t, err)

	texts := rec.Texts(res.Pages)
	assert.Contains(t, texts, "Sub Total")
	assert.Contains(t, texts, "40.000")
	assert.Contains(t, texts, "Total")
	assert.Contains(t, texts, "42.000")
}

// =============================================================================
// ASSET FALLBACK TESTS
// =============================================================================

func TestUnavailableLogoRendersPlaceholder(t *testing.T) {
	rec, res, err := quietEngine(unreachable).DryRun(context.Background(), sampleDocument(80))
	require.NoError(t, err)

	logos := rec.CountText("LOGO")
	for page := 1; page <= res.Pages; page++ {
		assert.Equal(t, 1, logos[page])
	}
}

func TestUnavailableLogoStillDelivers(t *testing.T) {
	d := &stubDelivery{}
	res, err := quietEngine(unreachable).Render(context.Background(), sampleDocument(5), Options{}, d)
	require.NoError(t, err)

	require.Len(t, d.saved, 1)
	assert.Empty(t, d.previewed)
	assert.True(t, bytes.HasPrefix(d.saved[0].Data, []byte("%PDF-")))
	assert.Equal(t, res.Size, len(d.saved[0].Data))
	assert.Nil(t, res.Preview)
}

func TestTruncatedLogoRendersPlaceholder(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 7)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))
	half := buf.Bytes()[:buf.Len()/2]
	truncated := asset.LoaderFunc(func(context.Context, string) ([]byte, bool) { return half, true })

	d := &stubDelivery{}
	res, err := quietEngine(truncated).Render(context.Background(), sampleDocument(60), Options{}, d)
	require.NoError(t, err)
	require.Len(t, d.saved, 1)
	assert.True(t, bytes.HasPrefix(d.saved[0].Data, []byte("%PDF-")))

	rec, dry, err := quietEngine(truncated).DryRun(context.Background(), sampleDocument(60))
	require.NoError(t, err)
	assert.Equal(t, dry.Pages, res.Pages)
	logos := rec.CountText("LOGO")
	for page := 1; page <= dry.Pages; page++ {
		assert.Equal(t, 1, logos[page])
	}
}

// =============================================================================
// BARCODE TESTS
// =============================================================================

func TestBarcodeBlockDrawsSymbol(t *testing.T) {
	doc := sampleDocument(2)
	doc.Blocks = append(doc.Blocks, &Barcode{Heading: "Document Reference", Value: doc.Number})

	rec, res, err := quietEngine(unreachable).DryRun(context.Background(), doc)
	require.NoError(t, err)

	var images []string
	for _, op := range rec.Ops() {
		if op.Kind == layout.OpImage {
			images = append(images, op.Text)
		}
	}
	assert.Contains(t, images, "barcode:QT 2025/001")
	assert.Contains(t, rec.Texts(res.Pages), "Document Reference")
}

func TestBarcodeFallsBackOnUnsupportedValue(t *testing.T) {
	doc := sampleDocument(1)
	doc.Blocks = []Block{&Barcode{Heading: "Document Reference", Value: "عرض-001"}}

	rec, res, err := quietEngine(unreachable).DryRun(context.Background(), doc)
	require.NoError(t, err)
	assert.Contains(t, rec.Texts(res.Pages), "Barcode unavailable")
}

func TestEncodeBarcodeProducesEmbeddablePNG(t *testing.T) {
	img, err := encodeBarcode("PO-2025-0042")
	require.NoError(t, err)
	assert.Equal(t, "PNG", img.Format)
	assert.Equal(t, barcodePixelH, img.Height)
	assert.Positive(t, img.Width)

	decoded, err := asset.Decode(img.Data)
	require.NoError(t, err)
	assert.Equal(t, "PNG", decoded.Format)

	d := &stubDelivery{}
	doc := sampleDocument(1)
	doc.Blocks = []Block{&Barcode{Heading: "Document Reference", Value: "PO-2025-0042"}}
	_, err = quietEngine(unreachable).Render(context.Background(), doc, Options{}, d)
	require.NoError(t, err)
	require.Len(t, d.saved, 1)
}

// =============================================================================
// DELIVERY TESTS
// =============================================================================

func TestRenderPreviewDeliversOnce(t *testing.T) {
	d := &stubDelivery{}
	res, err := quietEngine(nil).Render(context.Background(), sampleDocument(2), Options{OpenPreview: true}, d)
	require.NoError(t, err)

	assert.Empty(t, d.saved)
	require.Len(t, d.previewed, 1)
	require.NotNil(t, res.Preview)
	assert.Equal(t, "p-1", res.Preview.ID)
	assert.Equal(t, "QT_2025001.pdf", d.previewed[0].FileName)
}

func TestRenderDeliveryError(t *testing.T) {
	d := &stubDelivery{err: errors.New("disk full")}
	_, err := quietEngine(nil).Render(context.Background(), sampleDocument(2), Options{}, d)
	assert.ErrorContains(t, err, "disk full")
}

func TestRenderIsIdempotent(t *testing.T) {
	e := quietEngine(unreachable)
	first, err := e.Encode(context.Background(), sampleDocument(40))
	require.NoError(t, err)
	second, err := e.Encode(context.Background(), sampleDocument(40))
	require.NoError(t, err)

	assert.Equal(t, first.FileName, second.FileName)
	assert.Equal(t, first.Pages, second.Pages)
	assert.Equal(t, len(first.Data), len(second.Data))
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestRenderRejectsInvalidDocuments(t *testing.T) {
	d := &stubDelivery{}
	_, err := quietEngine(nil).Render(context.Background(), nil, Options{}, d)
	assert.ErrorIs(t, err, ErrInvalidDocument)

	doc := sampleDocument(1)
	doc.Number = "  "
	_, err = quietEngine(nil).Render(context.Background(), doc, Options{}, d)
	assert.ErrorIs(t, err, ErrInvalidDocument)
	assert.Empty(t, d.saved)
}

func TestSurfaceFailureIsFatal(t *testing.T) {
	rec := layout.NewRecorder()
	rec.Fail(errors.New("out of memory"))

	_, err := quietEngine(nil).layout(context.Background(), rec, sampleDocument(1))
	assert.ErrorIs(t, err, layout.ErrRenderSurface)
}
