// Package variants maps business records onto the shared document engine,
// one definition per document type.
package variants

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/engine"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/layout"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/normalize"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/record"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/table"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/totals"
)

// Options are the per-call rendering options.
type Options struct {
	// LogoRef overrides the configured company logo.
	LogoRef string
	// OpenPreview delivers a transient preview instead of a saved file.
	OpenPreview bool
	// IncludeVAT adds VAT into purchase order totals. Nil means true.
	IncludeVAT *bool
	// Barcode appends a Code 128 symbol of the document number.
	Barcode bool
}

func (o Options) includeVAT() bool { return o.IncludeVAT == nil || *o.IncludeVAT }

// Bool returns a pointer to b, for Options.IncludeVAT.
func Bool(b bool) *bool { return &b }

// Generator renders records of every variant through one engine.
type Generator struct {
	engine   *engine.Engine
	delivery engine.Delivery
	company  engine.Company
	decimals int
}

// NewGenerator wires an engine, a delivery and the issuing company profile.
func NewGenerator(e *engine.Engine, d engine.Delivery, company engine.Company, decimals int) *Generator {
	if decimals <= 0 {
		decimals = normalize.DefaultDecimals
	}
	return &Generator{engine: e, delivery: d, company: company, decimals: decimals}
}

// GenerateQuotationPDF renders a quotation.
func (g *Generator) GenerateQuotationPDF(ctx context.Context, rec *record.Record, opts Options) (*engine.Result, error) {
	return g.Generate(ctx, record.VariantQuotation, rec, opts)
}

// GenerateInvoicePDF renders a tax invoice.
func (g *Generator) GenerateInvoicePDF(ctx context.Context, rec *record.Record, opts Options) (*engine.Result, error) {
	return g.Generate(ctx, record.VariantInvoice, rec, opts)
}

// GenerateSubInvoicePDF renders a sub invoice raised against a parent invoice.
func (g *Generator) GenerateSubInvoicePDF(ctx context.Context, rec *record.Record, opts Options) (*engine.Result, error) {
	return g.Generate(ctx, record.VariantSubInvoice, rec, opts)
}

// GenerateDeliveryNotePDF renders a delivery note.
func (g *Generator) GenerateDeliveryNotePDF(ctx context.Context, rec *record.Record, opts Options) (*engine.Result, error) {
	return g.Generate(ctx, record.VariantDeliveryNote, rec, opts)
}

// GeneratePurchaseOrderPDF renders a purchase order.
func (g *Generator) GeneratePurchaseOrderPDF(ctx context.Context, rec *record.Record, opts Options) (*engine.Result, error) {
	return g.Generate(ctx, record.VariantPurchaseOrder, rec, opts)
}

// Generate validates rec, builds the document for v and renders it.
func (g *Generator) Generate(ctx context.Context, v record.Variant, rec *record.Record, opts Options) (*engine.Result, error) {
	doc, err := g.Build(v, rec, opts)
	if err != nil {
		return nil, err
	}
	return g.engine.Render(ctx, doc, engine.Options{OpenPreview: opts.OpenPreview}, g.delivery)
}

// Encode validates rec and returns the encoded artifact without delivering it.
func (g *Generator) Encode(ctx context.Context, v record.Variant, rec *record.Record, opts Options) (engine.Artifact, error) {
	doc, err := g.Build(v, rec, opts)
	if err != nil {
		return engine.Artifact{}, err
	}
	return g.engine.Encode(ctx, doc)
}

// DryRun validates rec and lays it out without producing a file.
func (g *Generator) DryRun(ctx context.Context, v record.Variant, rec *record.Record, opts Options) (*engine.Result, error) {
	doc, err := g.Build(v, rec, opts)
	if err != nil {
		return nil, err
	}
	_, res, err := g.engine.DryRun(ctx, doc)
	return res, err
}

// Build validates rec and maps it onto a document for v.
func (g *Generator) Build(v record.Variant, rec *record.Record, opts Options) (*engine.Document, error) {
	if err := record.Validate(rec, v); err != nil {
		return nil, err
	}
	def, ok := definitions[v]
	if !ok {
		return nil, fmt.Errorf("%w: no definition for %q", record.ErrInvalidRecord, v)
	}

	company := g.company
	if opts.LogoRef != "" {
		company.LogoRef = opts.LogoRef
	}
	created, _, _ := normalize.ParseTimestamp(rec.CreatedAt)

	doc := &engine.Document{
		Variant:   string(v),
		Title:     def.title,
		Number:    strings.TrimSpace(rec.Number),
		Theme:     def.theme,
		Company:   company,
		Running:   running(rec),
		Party:     party(def.partyHeading, rec),
		Decimals:  g.decimals,
		CreatedAt: created,
		Notice:    def.notice,
	}
	def.build(doc, rec, opts, g.decimals)
	if opts.Barcode {
		doc.Blocks = append(doc.Blocks, &engine.Barcode{Heading: "Document Reference", Value: doc.Number})
	}
	return doc, nil
}

type definition struct {
	title        string
	partyHeading string
	theme        engine.Theme
	notice       string
	build        func(doc *engine.Document, rec *record.Record, opts Options, decimals int)
}

var definitions = map[record.Variant]definition{
	record.VariantQuotation: {
		title:        "QUOTATION",
		partyHeading: "QUOTE FOR",
		theme:        theme(layout.Color{R: 0, G: 110, B: 120}, layout.Color{R: 225, G: 243, B: 244}),
		notice:       "Thank you for the opportunity to quote. Prices are valid for the period stated above.",
		build:        buildQuotation,
	},
	record.VariantInvoice: {
		title:        "TAX INVOICE",
		partyHeading: "BILL TO",
		theme:        engine.DefaultTheme(),
		notice:       "This is a computer generated invoice and does not require a signature.",
		build:        buildInvoice,
	},
	record.VariantSubInvoice: {
		title:        "SUB INVOICE",
		partyHeading: "BILL TO",
		theme:        theme(layout.Color{R: 88, G: 60, B: 140}, layout.Color{R: 239, G: 234, B: 248}),
		notice:       "This is a computer generated invoice and does not require a signature.",
		build:        buildInvoice,
	},
	record.VariantDeliveryNote: {
		title:        "DELIVERY NOTE",
		partyHeading: "DELIVERY TO",
		theme:        theme(layout.Color{R: 46, G: 125, B: 50}, layout.Color{R: 232, G: 245, B: 233}),
		notice:       "Goods are received in good order and condition unless noted otherwise.",
		build:        buildDeliveryNote,
	},
	record.VariantPurchaseOrder: {
		title:        "PURCHASE ORDER",
		partyHeading: "Supplier",
		theme:        theme(layout.Color{R: 150, G: 75, B: 0}, layout.Color{R: 250, G: 239, B: 226}),
		notice:       "Please quote this purchase order number on all invoices and delivery documents.",
		build:        buildPurchaseOrder,
	},
}

func theme(accent, soft layout.Color) engine.Theme {
	t := engine.DefaultTheme()
	t.Accent = accent
	t.AccentSoft = soft
	return t
}

// =============================================================================
// SHARED MAPPING
// =============================================================================

func running(rec *record.Record) []engine.Field {
	fields := []engine.Field{{Label: "Date", Value: normalize.ParseDisplayDate(rec.CreatedAt)}}
	if rec.ParentNumber != "" {
		fields = append(fields, engine.Field{Label: "Parent Invoice", Value: rec.ParentNumber})
	}
	for _, ref := range rec.References {
		if strings.TrimSpace(ref.Number) != "" {
			fields = append(fields, engine.Field{Label: ref.Label, Value: ref.Number})
		}
	}
	return fields
}

func party(heading string, rec *record.Record) engine.Party {
	p := rec.Party
	return engine.Party{
		Heading: heading,
		Name:    p.Name,
		Lines: []engine.Field{
			{Label: "Contact", Value: p.Contact},
			{Label: "Email", Value: p.Email},
			{Label: "Address", Value: p.Address},
			{Label: "Tax ID", Value: p.TaxID},
			{Label: "Project", Value: p.Project},
		},
	}
}

func details(numberLabel string, rec *record.Record, extra ...engine.Field) []engine.Field {
	fields := []engine.Field{
		{Label: numberLabel, Value: rec.Number},
		{Label: "Date", Value: normalize.ParseDisplayDate(rec.CreatedAt)},
	}
	if rec.Currency != "" {
		fields = append(fields, engine.Field{Label: "Currency", Value: rec.Currency})
	}
	if rec.Status != "" {
		fields = append(fields, engine.Field{Label: "Status", Value: rec.Status})
	}
	for _, f := range extra {
		if strings.TrimSpace(f.Value) != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

var priceColumns = []table.Column{
	{Title: "#", Width: 10, Align: layout.AlignCenter},
	{Title: "Description"},
	{Title: "Unit Price", Width: 30, Format: table.FormatAmount},
	{Title: "Qty", Width: 18, Format: table.FormatQuantity},
	{Title: "Total", Width: 32, Format: table.FormatAmount},
}

func priceRows(items []record.LineItem) []table.Row {
	rows := make([]table.Row, 0, len(items))
	for i, item := range items {
		rows = append(rows, table.Row{
			table.Text(fmt.Sprint(i + 1)),
			table.Text(item.Label()),
			table.Number(item.UnitPrice.Float()),
			table.Number(item.Quantity.Float()),
			table.Number(item.Total()),
		})
	}
	return rows
}

func totalsInput(rec *record.Record, decimals int) totals.Input {
	return totals.Input{
		Subtotal: rec.Subtotal(),
		Discount: rec.Totals.Discount.Float(),
		VAT:      rec.Totals.VAT.Float(),
		Delivery: rec.Totals.Delivery.Float(),
		Decimals: decimals,
	}
}

func termsAndNotes(rec *record.Record) []engine.Block {
	var blocks []engine.Block
	if len(rec.Terms) > 0 {
		blocks = append(blocks, &engine.TermsList{Heading: "Terms & Conditions", Lines: rec.Terms, Numbered: true})
	}
	if strings.TrimSpace(rec.Notes) != "" {
		blocks = append(blocks, &engine.TermsList{Heading: "Notes", Lines: strings.Split(rec.Notes, "\n")})
	}
	return blocks
}

// =============================================================================
// VARIANTS
// =============================================================================

func buildQuotation(doc *engine.Document, rec *record.Record, _ Options, decimals int) {
	validUntil := normalize.ParseDisplayDate(rec.ValidUntil)
	if validUntil != "" {
		doc.Subtitle = "Valid until " + validUntil
	}
	doc.Details = details("Quotation No", rec, engine.Field{Label: "Valid Until", Value: validUntil})
	doc.Columns = priceColumns
	doc.Rows = priceRows(rec.Items)
	doc.Totals = totals.Rows(totalsInput(rec, decimals))
	doc.Blocks = termsAndNotes(rec)
}

func buildInvoice(doc *engine.Document, rec *record.Record, _ Options, decimals int) {
	numberLabel := "Invoice No"
	if doc.Variant == string(record.VariantSubInvoice) {
		numberLabel = "Sub Invoice No"
	}
	in := totalsInput(rec, decimals)
	in.Refund = rec.Totals.Refund.Float()
	in.Paid = rec.PaidAmount()
	in.Mode = totals.ModeInvoice
	summary := totals.Compute(in)

	if rec.Status != "" {
		doc.Subtitle = "Status: " + rec.Status
	}
	doc.Details = details(numberLabel, rec,
		engine.Field{Label: "Parent Invoice", Value: rec.ParentNumber},
		engine.Field{Label: "Amount Due", Value: normalize.FormatCurrency(summary.TotalDue.InexactFloat64(), decimals)},
	)
	doc.Columns = priceColumns
	doc.Rows = priceRows(rec.Items)
	doc.Totals = totals.Rows(in)

	payments := make([]table.Row, 0, len(rec.Payments))
	for _, p := range rec.Payments {
		date := normalize.ParseDisplayDate(p.Date)
		payments = append(payments, table.Row{
			table.Text(date), table.Text(p.Method), table.Text(p.Reference), table.Number(p.Amount.Float()),
		})
	}
	doc.Blocks = append([]engine.Block{&engine.TableBlock{
		Heading: "Payment History",
		Columns: []table.Column{
			{Title: "Date", Width: 36},
			{Title: "Method", Width: 40},
			{Title: "Reference"},
			{Title: "Amount", Width: 36, Format: table.FormatAmount},
		},
		Rows:      payments,
		EmptyText: "No payments recorded",
	}}, termsAndNotes(rec)...)
}

var statusColors = map[record.DeliveryStatus]layout.Color{
	record.DeliveryDelivered: {R: 46, G: 125, B: 50},
	record.DeliveryPartial:   {R: 196, G: 110, B: 0},
	record.DeliveryPending:   {R: 110, G: 110, B: 110},
}

func buildDeliveryNote(doc *engine.Document, rec *record.Record, _ Options, _ int) {
	var ordered, delivered float64
	rows := make([]table.Row, 0, len(rec.Items))
	for i, item := range rec.Items {
		status := item.Status()
		ordered += item.Quantity.Float()
		delivered += item.Delivered.Float()
		rows = append(rows, table.Row{
			table.Text(fmt.Sprint(i + 1)),
			table.Text(item.Label()),
			table.Number(item.Quantity.Float()),
			table.Number(item.Delivered.Float()),
			table.Number(item.BalanceQty()),
			table.Text(string(status)).WithColor(statusColors[status]),
		})
	}
	doc.Details = details("Delivery No", rec,
		engine.Field{Label: "Total Items", Value: fmt.Sprint(len(rec.Items))},
		engine.Field{Label: "Qty Delivered", Value: normalize.FormatQuantity(delivered) + " / " + normalize.FormatQuantity(ordered)},
	)
	doc.Columns = []table.Column{
		{Title: "#", Width: 10, Align: layout.AlignCenter},
		{Title: "Description"},
		{Title: "Ordered", Width: 20, Format: table.FormatQuantity},
		{Title: "Delivered", Width: 20, Format: table.FormatQuantity},
		{Title: "Balance", Width: 20, Format: table.FormatQuantity},
		{Title: "Status", Width: 22, Align: layout.AlignCenter},
	}
	doc.Rows = rows

	var blocks []engine.Block
	if len(rec.Images) > 0 {
		photos := make([]engine.Photo, 0, len(rec.Images))
		for _, img := range rec.Images {
			photos = append(photos, engine.Photo{
				Ref:     img.Path,
				Caption: img.Caption,
				Date:    normalize.ParseDisplayDate(img.Date),
			})
		}
		blocks = append(blocks, &engine.ImageGrid{Heading: "Proof of Delivery", Photos: photos})
	}
	blocks = append(blocks, termsAndNotes(rec)...)
	blocks = append(blocks, &engine.Signatures{
		Labels: []string{"Received By", "Delivered By"},
		Names:  []string{rec.ReceivedBy},
	})
	doc.Blocks = blocks
}

func buildPurchaseOrder(doc *engine.Document, rec *record.Record, opts Options, decimals int) {
	vat := "Included"
	if !opts.includeVAT() {
		vat = "Excluded"
	}
	doc.Details = details("PO No", rec, engine.Field{Label: "VAT", Value: vat})
	doc.Columns = priceColumns
	doc.Rows = priceRows(rec.Items)
	in := totalsInput(rec, decimals)
	in.ExcludeVAT = !opts.includeVAT()
	doc.Totals = totals.Rows(in)
	doc.Blocks = termsAndNotes(rec)
}
