// Package table draws item tables that split across pages, repeating the
// header row on every continuation page.
package table

import (
	"math"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/layout"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/normalize"
)

// Format controls how a cell value is printed.
type Format int

const (
	FormatText Format = iota
	// FormatAmount prints Number through FormatCurrency.
	FormatAmount
	// FormatQuantity prints Number with trailing zeros trimmed.
	FormatQuantity
)

// Column defines one table column.
type Column struct {
	Title string
	// Width in millimetres. Zero columns share the remaining width.
	Width  float64
	Align  layout.Align
	Format Format
}

// Value is one cell. Text is used for FormatText columns, Number otherwise.
type Value struct {
	Text   string
	Number float64
	Color  *layout.Color
}

// Text returns a text cell.
func Text(s string) Value { return Value{Text: s} }

// Number returns a numeric cell.
func Number(v float64) Value { return Value{Number: v} }

// WithColor returns v drawn in c.
func (v Value) WithColor(c layout.Color) Value {
	v.Color = &c
	return v
}

// Row is a body row.
type Row []Value

// Style holds the presentation of a table.
type Style struct {
	HeaderFill   layout.Color
	HeaderText   layout.Color
	StripeFill   layout.Color
	Stripes      bool
	BorderColor  layout.Color
	FontSize     float64
	HeaderSize   float64
	Padding      float64
	MinRowHeight float64
	Decimals     int
	EmptyText    string
	// X is the left edge; zero means the page margin.
	X float64
	// Width is the table width; zero means the content width.
	Width float64
}

// DefaultStyle returns the standard item table style in accent colours.
func DefaultStyle(accent layout.Color) Style {
	return Style{
		HeaderFill:   accent,
		HeaderText:   layout.White,
		StripeFill:   layout.Color{R: 245, G: 246, B: 248},
		Stripes:      true,
		BorderColor:  layout.Color{R: 210, G: 214, B: 220},
		FontSize:     8.5,
		HeaderSize:   8.5,
		Padding:      1.6,
		MinRowHeight: 7,
		Decimals:     normalize.DefaultDecimals,
		EmptyText:    "No items",
	}
}

type renderer struct {
	pc      *layout.PageContext
	canvas  layout.Canvas
	cols    []Column
	widths  []float64
	x       float64
	style   Style
	headerH float64
}

// Render draws the header and rows starting at the page cursor and returns
// the cursor after the last row.
func Render(pc *layout.PageContext, cols []Column, rows []Row, style Style) float64 {
	if len(cols) == 0 {
		return pc.Cursor()
	}
	g := pc.Geometry()
	x := style.X
	if x == 0 {
		x = g.Margin
	}
	width := style.Width
	if width == 0 {
		width = g.ContentWidth()
	}
	r := &renderer{
		pc:     pc,
		canvas: pc.Canvas(),
		cols:   cols,
		widths: Widths(cols, width),
		x:      x,
		style:  style,
	}
	r.headerH = r.measureHeader()

	if len(rows) == 0 {
		h := math.Max(style.MinRowHeight, layout.LineHeight(style.FontSize)+2*style.Padding)
		pc.EnsureSpace(r.headerH + h)
		r.drawHeader()
		r.drawEmpty(h, width)
		return pc.Cursor()
	}

	// The first row on each page is reserved together with the header, so a
	// header is never left alone at the bottom of a page.
	pc.EnsureSpace(r.headerH + r.measureRow(rows[0]))
	r.drawHeader()
	onPage := 0
	for i, row := range rows {
		h := r.measureRow(row)
		if onPage > 0 && pc.EnsureSpace(h) {
			r.drawHeader()
			onPage = 0
		}
		r.drawRow(i, row, h)
		onPage++
	}
	return pc.Cursor()
}

// Widths distributes total across columns; zero-width columns share the rest.
func Widths(cols []Column, total float64) []float64 {
	widths := make([]float64, len(cols))
	fixed := 0.0
	auto := 0
	for i, c := range cols {
		if c.Width > 0 {
			widths[i] = c.Width
			fixed += c.Width
		} else {
			auto++
		}
	}
	if auto > 0 {
		each := math.Max(0, total-fixed) / float64(auto)
		for i, c := range cols {
			if c.Width <= 0 {
				widths[i] = each
			}
		}
	}
	return widths
}

func (r *renderer) innerWidth(i int) float64 {
	return math.Max(1, r.widths[i]-2*r.style.Padding)
}

func (r *renderer) measureHeader() float64 {
	r.canvas.SetFont("B", r.style.HeaderSize)
	lines := 1
	for i, c := range r.cols {
		if n := len(layout.Wrap(r.canvas, c.Title, r.innerWidth(i))); n > lines {
			lines = n
		}
	}
	return math.Max(r.style.MinRowHeight, float64(lines)*layout.LineHeight(r.style.HeaderSize)+2*r.style.Padding)
}

func (r *renderer) measureRow(row Row) float64 {
	r.canvas.SetFont("", r.style.FontSize)
	lines := 1
	for i := range r.cols {
		if n := len(layout.Wrap(r.canvas, r.cellText(i, row), r.innerWidth(i))); n > lines {
			lines = n
		}
	}
	return math.Max(r.style.MinRowHeight, float64(lines)*layout.LineHeight(r.style.FontSize)+2*r.style.Padding)
}

func (r *renderer) cellText(i int, row Row) string {
	if i >= len(row) {
		return ""
	}
	v := row[i]
	switch r.cols[i].Format {
	case FormatAmount:
		return normalize.FormatCurrency(v.Number, r.style.Decimals)
	case FormatQuantity:
		return normalize.FormatQuantity(v.Number)
	default:
		return v.Text
	}
}

func (r *renderer) align(i int) layout.Align {
	if a := r.cols[i].Align; a != "" {
		return a
	}
	if r.cols[i].Format != FormatText {
		return layout.AlignRight
	}
	return layout.AlignLeft
}

func (r *renderer) drawHeader() {
	c := r.canvas
	y := r.pc.Cursor()
	c.SetFillColor(r.style.HeaderFill)
	c.SetDrawColor(r.style.BorderColor)
	c.SetLineWidth(0.2)
	c.Rect(r.x, y, sum(r.widths), r.headerH, layout.FillOnly)
	c.SetFont("B", r.style.HeaderSize)
	c.SetTextColor(r.style.HeaderText)
	x := r.x
	for i, col := range r.cols {
		align := r.align(i)
		layout.Paragraph(c, x+r.style.Padding, y+r.style.Padding, r.innerWidth(i), r.style.HeaderSize, col.Title, align)
		x += r.widths[i]
	}
	c.SetTextColor(layout.Black)
	r.pc.Advance(r.headerH)
}

func (r *renderer) drawRow(index int, row Row, h float64) {
	c := r.canvas
	y := r.pc.Cursor()
	total := sum(r.widths)
	if r.style.Stripes && index%2 == 1 {
		c.SetFillColor(r.style.StripeFill)
		c.Rect(r.x, y, total, h, layout.FillOnly)
	}
	c.SetDrawColor(r.style.BorderColor)
	c.SetLineWidth(0.2)
	c.Line(r.x, y+h, r.x+total, y+h)

	c.SetFont("", r.style.FontSize)
	x := r.x
	for i := range r.cols {
		if i < len(row) && row[i].Color != nil {
			c.SetTextColor(*row[i].Color)
		}
		layout.Paragraph(c, x+r.style.Padding, y+r.style.Padding, r.innerWidth(i), r.style.FontSize, r.cellText(i, row), r.align(i))
		c.SetTextColor(layout.Black)
		x += r.widths[i]
	}
	r.pc.Advance(h)
}

func (r *renderer) drawEmpty(h, width float64) {
	c := r.canvas
	y := r.pc.Cursor()
	c.SetDrawColor(r.style.BorderColor)
	c.Rect(r.x, y, width, h, layout.StrokeOnly)
	c.SetFont("I", r.style.FontSize)
	c.SetTextColor(layout.Grey)
	c.Text(r.x, y, width, h, r.style.EmptyText, layout.AlignCenter)
	c.SetTextColor(layout.Black)
	r.pc.Advance(h)
}

func sum(vs []float64) float64 {
	total := 0.0
	for _, v := range vs {
		total += v
	}
	return total
}
