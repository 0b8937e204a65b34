package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/layout"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/table"
)

// Block is an optional section drawn in the terms-and-payments stage.
type Block interface {
	draw(r *renderCtx)
}

// TermsList is a headed list of terms or notes.
type TermsList struct {
	Heading  string
	Lines    []string
	Numbered bool
}

func (b *TermsList) draw(r *renderCtx) {
	var lines []string
	for _, l := range b.Lines {
		if s := strings.TrimSpace(l); s != "" {
			lines = append(lines, s)
		}
	}
	if len(lines) == 0 {
		return
	}
	c, g := r.canvas, r.pc.Geometry()
	const size = 8.5
	c.SetFont("", size)
	first := layout.MeasureParagraph(c, g.ContentWidth()-6, size, lines[0])
	r.heading(b.Heading, first)
	for i, l := range lines {
		bullet := "-"
		if b.Numbered {
			bullet = fmt.Sprintf("%d.", i+1)
		}
		c.SetFont("", size)
		h := layout.MeasureParagraph(c, g.ContentWidth()-6, size, l)
		r.pc.EnsureSpace(h)
		y := r.pc.Cursor()
		c.Text(g.Margin, y, 6, layout.LineHeight(size), bullet, layout.AlignLeft)
		layout.Paragraph(c, g.Margin+6, y, g.ContentWidth()-6, size, l, layout.AlignLeft)
		r.pc.Advance(h + 0.8)
	}
	r.pc.Advance(blockGap)
}

// TableBlock is a headed secondary table, such as a payment history.
type TableBlock struct {
	Heading   string
	Columns   []table.Column
	Rows      []table.Row
	EmptyText string
}

func (b *TableBlock) draw(r *renderCtx) {
	r.heading(b.Heading, 16)
	style := table.DefaultStyle(r.doc.Theme.Accent)
	style.Decimals = r.decimals
	style.HeaderFill = r.doc.Theme.AccentSoft
	style.HeaderText = r.doc.Theme.Accent
	if b.EmptyText != "" {
		style.EmptyText = b.EmptyText
	}
	table.Render(r.pc, b.Columns, b.Rows, style)
	r.pc.Advance(blockGap)
}

// Photo is an image with an optional caption and date line.
type Photo struct {
	Ref     string
	Caption string
	Date    string
}

// ImageGrid lays photos out three per row.
type ImageGrid struct {
	Heading string
	Photos  []Photo
}

func (b *ImageGrid) draw(r *renderCtx) {
	if len(b.Photos) == 0 {
		return
	}
	const (
		perRow   = 3
		gap      = 4.0
		imgH     = 42.0
		captionH = 8.0
	)
	c, g := r.canvas, r.pc.Geometry()
	cellW := (g.ContentWidth() - gap*(perRow-1)) / perRow
	rowH := imgH + captionH + gap

	r.heading(b.Heading, rowH)
	for start := 0; start < len(b.Photos); start += perRow {
		r.pc.EnsureSpace(rowH)
		y := r.pc.Cursor()
		end := int(math.Min(float64(start+perRow), float64(len(b.Photos))))
		for i, p := range b.Photos[start:end] {
			x := g.Margin + float64(i)*(cellW+gap)
			if img, ok := r.session.Image(r.ctx, p.Ref); ok {
				w, h := fit(img, cellW, imgH)
				c.Image(p.Ref, img, x+(cellW-w)/2, y+(imgH-h)/2, w, h)
				c.SetDrawColor(layout.Color{R: 210, G: 214, B: 220})
				c.SetLineWidth(0.2)
				c.Rect(x, y, cellW, imgH, layout.StrokeOnly)
			} else {
				layout.Placeholder(c, x, y, cellW, imgH, "Image unavailable")
			}
			c.SetFont("", 7.5)
			c.SetTextColor(layout.Black)
			c.Text(x, y+imgH+0.5, cellW, 3.8, p.Caption, layout.AlignCenter)
			c.SetTextColor(r.doc.Theme.Muted)
			c.Text(x, y+imgH+4.2, cellW, 3.6, p.Date, layout.AlignCenter)
			c.SetTextColor(layout.Black)
		}
		r.pc.Advance(rowH)
	}
	r.pc.Advance(blockGap)
}

// Signatures draws signature boxes side by side.
type Signatures struct {
	Labels []string
	// Names pre-fills the printed name under each box.
	Names []string
}

func (b *Signatures) draw(r *renderCtx) {
	if len(b.Labels) == 0 {
		return
	}
	const (
		h   = 26.0
		gap = 8.0
	)
	c, g := r.canvas, r.pc.Geometry()
	n := float64(len(b.Labels))
	w := (g.ContentWidth() - gap*(n-1)) / n
	r.pc.EnsureSpace(h)
	y := r.pc.Cursor()
	for i, label := range b.Labels {
		x := g.Margin + float64(i)*(w+gap)
		c.SetFont("B", 8)
		c.SetTextColor(r.doc.Theme.Accent)
		c.Text(x, y, w, 4, label, layout.AlignLeft)
		c.SetDrawColor(layout.Grey)
		c.SetLineWidth(0.3)
		c.Line(x, y+16, x+w, y+16)
		c.SetFont("", 7.5)
		c.SetTextColor(layout.Black)
		name := "Name:"
		if i < len(b.Names) && strings.TrimSpace(b.Names[i]) != "" {
			name = "Name: " + strings.TrimSpace(b.Names[i])
		}
		c.Text(x, y+17, w, 4, name, layout.AlignLeft)
		c.Text(x, y+21, w, 4, "Date:", layout.AlignLeft)
	}
	c.SetDrawColor(layout.Black)
	r.pc.Advance(h + blockGap)
}
