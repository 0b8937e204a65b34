package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/asset"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/layout"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/table"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/totals"
)

// Logo box inside the header band.
const (
	logoWidth  = 34
	logoHeight = 22
	blockGap   = 5
)

// renderCtx is the per-call state threaded through every stage.
type renderCtx struct {
	ctx      context.Context
	doc      *Document
	session  *asset.Session
	canvas   layout.Canvas
	pc       *layout.PageContext
	decimals int
	logger   *slog.Logger
}

// decorate draws the header band and footer strip. It is the only content
// repeated on every page.
func (r *renderCtx) decorate(pc *layout.PageContext) {
	c, g, doc := r.canvas, pc.Geometry(), r.doc
	theme := doc.Theme
	top := g.Margin
	left := g.Margin
	right := g.Width - g.Margin

	textLeft := left
	if doc.Company.LogoRef != "" {
		if img, ok := r.session.Image(r.ctx, doc.Company.LogoRef); ok {
			w, h := fit(img, logoWidth, logoHeight)
			c.Image(doc.Company.LogoRef, img, left, top, w, h)
		} else {
			layout.Placeholder(c, left, top, logoWidth, logoHeight, "LOGO")
		}
		textLeft = left + logoWidth + 4
	}

	half := (right - textLeft) / 2
	c.SetFont("B", 11)
	c.SetTextColor(theme.Accent)
	c.Text(textLeft, top, half, 5, doc.Company.Name, layout.AlignLeft)
	c.SetFont("", 7.5)
	c.SetTextColor(theme.Muted)
	y := top + 5.5
	for _, line := range strings.Split(doc.Company.Address, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		c.Text(textLeft, y, half, 3.6, strings.TrimSpace(line), layout.AlignLeft)
		y += 3.6
	}
	if doc.Company.TaxID != "" {
		c.Text(textLeft, y, half, 3.6, "Tax ID: "+doc.Company.TaxID, layout.AlignLeft)
	}

	c.SetFont("B", 15)
	c.SetTextColor(theme.Accent)
	c.Text(right-half, top, half, 7, doc.Title, layout.AlignRight)
	c.SetFont("", 8)
	c.SetTextColor(layout.Black)
	y = top + 8
	running := append([]Field{{Label: "No", Value: doc.Number}}, doc.Running...)
	for i, f := range running {
		if i >= 6 || strings.TrimSpace(f.Value) == "" {
			continue
		}
		c.Text(right-half, y, half, 3.8, f.Label+": "+f.Value, layout.AlignRight)
		y += 3.8
	}

	c.SetDrawColor(theme.Accent)
	c.SetLineWidth(0.6)
	c.Line(left, top+g.HeaderBand-1, right, top+g.HeaderBand-1)

	footTop := g.Height - g.Margin - g.FooterBand + 2
	c.SetLineWidth(0.2)
	c.Line(left, footTop, right, footTop)
	c.SetFont("", 7)
	c.SetTextColor(theme.Muted)
	c.Text(left, footTop+1.5, right-left, 4, contactStrip(doc.Company), layout.AlignCenter)
	c.Text(left, footTop+6, (right-left)/2, 4, doc.Number, layout.AlignLeft)
	c.Text(left+(right-left)/2, footTop+6, (right-left)/2, 4,
		fmt.Sprintf("Page %d of %s", pc.Page(), layout.PageCountAlias), layout.AlignRight)
	c.SetTextColor(layout.Black)
	c.SetDrawColor(layout.Black)
}

func contactStrip(co Company) string {
	var parts []string
	for _, p := range []string{co.Name, co.Phone, co.Email} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "  |  ")
}

// fit scales img into a w×h box keeping its aspect ratio.
func fit(img asset.Image, w, h float64) (float64, float64) {
	if img.Width <= 0 || img.Height <= 0 {
		return w, h
	}
	scale := math.Min(w/float64(img.Width), h/float64(img.Height))
	return float64(img.Width) * scale, float64(img.Height) * scale
}

// header draws the first-page title bar.
func (r *renderCtx) header() {
	const h = 9.0
	c, g, doc := r.canvas, r.pc.Geometry(), r.doc
	r.pc.EnsureSpace(h)
	y := r.pc.Cursor()
	c.SetFillColor(doc.Theme.AccentSoft)
	c.Rect(g.Margin, y, g.ContentWidth(), h-2, layout.FillOnly)
	c.SetFont("B", 10)
	c.SetTextColor(doc.Theme.Accent)
	c.Text(g.Margin+2, y, g.ContentWidth()/2, h-2, doc.Title, layout.AlignLeft)
	if doc.Subtitle != "" {
		c.SetFont("", 8.5)
		c.SetTextColor(layout.Black)
		c.Text(g.Margin+g.ContentWidth()/2, y, g.ContentWidth()/2-2, h-2, doc.Subtitle, layout.AlignRight)
	}
	c.SetTextColor(layout.Black)
	r.pc.Advance(h)
}

// parties draws the party box and the document details box side by side.
func (r *renderCtx) parties() {
	c, g, doc := r.canvas, r.pc.Geometry(), r.doc
	colW := (g.ContentWidth() - 6) / 2
	lh := layout.LineHeight(8.5)

	partyLines := []string{doc.Party.Name}
	for _, f := range doc.Party.Lines {
		if strings.TrimSpace(f.Value) != "" {
			partyLines = append(partyLines, f.Label+": "+f.Value)
		}
	}
	c.SetFont("", 8.5)
	leftH := 0.0
	for _, l := range partyLines {
		leftH += layout.MeasureParagraph(c, colW-4, 8.5, l)
	}
	rightH := float64(len(doc.Details)) * lh
	h := 7 + math.Max(leftH, rightH) + 3

	r.pc.EnsureSpace(h)
	y := r.pc.Cursor()
	left := g.Margin
	right := g.Margin + colW + 6

	r.box(left, y, colW, h, doc.Party.Heading)
	c.SetFont("B", 8.5)
	ly := y + 7
	for i, l := range partyLines {
		if i == 1 {
			c.SetFont("", 8.5)
		}
		ly += layout.Paragraph(c, left+2, ly, colW-4, 8.5, l, layout.AlignLeft)
	}

	r.box(right, y, colW, h, "DOCUMENT DETAILS")
	c.SetFont("", 8.5)
	dy := y + 7
	for _, f := range doc.Details {
		c.SetTextColor(doc.Theme.Muted)
		c.Text(right+2, dy, colW*0.45, lh, f.Label, layout.AlignLeft)
		c.SetTextColor(layout.Black)
		c.Text(right+2+colW*0.45, dy, colW*0.55-4, lh, f.Value, layout.AlignRight)
		dy += lh
	}
	r.pc.Advance(h + blockGap)
}

func (r *renderCtx) box(x, y, w, h float64, heading string) {
	c := r.canvas
	c.SetDrawColor(r.doc.Theme.Accent)
	c.SetLineWidth(0.3)
	c.Rect(x, y, w, h, layout.StrokeOnly)
	c.SetFillColor(r.doc.Theme.Accent)
	c.Rect(x, y, w, 5.5, layout.FillOnly)
	c.SetFont("B", 8)
	c.SetTextColor(layout.White)
	c.Text(x+2, y, w-4, 5.5, heading, layout.AlignLeft)
	c.SetTextColor(layout.Black)
	c.SetDrawColor(layout.Black)
}

func (r *renderCtx) items() {
	style := table.DefaultStyle(r.doc.Theme.Accent)
	style.Decimals = r.decimals
	table.Render(r.pc, r.doc.Columns, r.doc.Rows, style)
	r.pc.Advance(blockGap)
}

// totalsBox draws the summary rows right-aligned below the item table.
func (r *renderCtx) totalsBox() {
	const (
		rowH = 6.5
		boxW = 84.0
	)
	c, g, doc := r.canvas, r.pc.Geometry(), r.doc
	h := float64(len(doc.Totals))*rowH + 2
	r.pc.EnsureSpace(h)
	x := g.Width - g.Margin - boxW
	y := r.pc.Cursor()

	c.SetDrawColor(doc.Theme.Accent)
	c.SetLineWidth(0.3)
	c.Rect(x, y, boxW, h-2, layout.StrokeOnly)
	for i, row := range doc.Totals {
		ry := y + float64(i)*rowH
		label, value := row.Label, row.Text(r.decimals)
		c.SetFont("", 8.5)
		c.SetTextColor(layout.Black)
		switch row.Kind {
		case totals.KindEmphasis:
			c.SetFillColor(doc.Theme.Accent)
			c.Rect(x, ry, boxW, rowH, layout.FillOnly)
			c.SetFont("B", 9.5)
			c.SetTextColor(layout.White)
		case totals.KindRefund:
			c.SetFont("B", 8.5)
			c.SetTextColor(doc.Theme.Refund)
		case totals.KindDiscount:
			c.SetTextColor(doc.Theme.Discount)
		case totals.KindDelivery:
			c.SetTextColor(doc.Theme.Delivery)
		}
		c.Text(x+2, ry, boxW*0.55, rowH, label, layout.AlignLeft)
		c.Text(x+boxW*0.5, ry, boxW*0.5-2, rowH, value, layout.AlignRight)
		if i < len(doc.Totals)-1 && row.Kind != totals.KindEmphasis {
			c.SetDrawColor(layout.Color{R: 220, G: 224, B: 230})
			c.SetLineWidth(0.15)
			c.Line(x, ry+rowH, x+boxW, ry+rowH)
		}
	}
	c.SetTextColor(layout.Black)
	c.SetDrawColor(layout.Black)
	r.pc.Advance(h + blockGap)
}

func (r *renderCtx) blocks() {
	for _, b := range r.doc.Blocks {
		b.draw(r)
	}
}

// notice draws the closing notice, centred and italic.
func (r *renderCtx) notice() {
	c, g := r.canvas, r.pc.Geometry()
	c.SetFont("I", 8)
	h := layout.MeasureParagraph(c, g.ContentWidth(), 8, r.doc.Notice) + 4
	r.pc.EnsureSpace(h)
	y := r.pc.Cursor()
	c.SetDrawColor(r.doc.Theme.Accent)
	c.SetLineWidth(0.2)
	c.Line(g.Margin+g.ContentWidth()*0.25, y, g.Margin+g.ContentWidth()*0.75, y)
	c.SetTextColor(r.doc.Theme.Muted)
	c.SetFont("I", 8)
	layout.Paragraph(c, g.Margin, y+2, g.ContentWidth(), 8, r.doc.Notice, layout.AlignCenter)
	c.SetTextColor(layout.Black)
	c.SetDrawColor(layout.Black)
	r.pc.Advance(h)
}

// heading draws a section heading, keeping it together with minBody of content.
func (r *renderCtx) heading(title string, minBody float64) {
	const h = 7.0
	c, g := r.canvas, r.pc.Geometry()
	r.pc.EnsureSpace(h + minBody)
	y := r.pc.Cursor()
	c.SetFont("B", 9)
	c.SetTextColor(r.doc.Theme.Accent)
	c.Text(g.Margin, y, g.ContentWidth(), 5, title, layout.AlignLeft)
	c.SetDrawColor(r.doc.Theme.Accent)
	c.SetLineWidth(0.3)
	c.Line(g.Margin, y+5.5, g.Margin+g.ContentWidth(), y+5.5)
	c.SetTextColor(layout.Black)
	c.SetDrawColor(layout.Black)
	r.pc.Advance(h)
}
