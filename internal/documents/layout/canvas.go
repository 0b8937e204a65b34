package layout

import (
	"errors"
	"strings"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/asset"
)

// ErrRenderSurface reports a failure of the drawing surface. It is fatal for
// the render: no output is delivered.
var ErrRenderSurface = errors.New("documents: render surface failure")

// PageCountAlias is replaced by the total page count when the document is finished.
const PageCountAlias = "{nb}"

// Color is an RGB triple.
type Color struct{ R, G, B int }

// Common colours.
var (
	Black = Color{0, 0, 0}
	White = Color{255, 255, 255}
	Grey  = Color{110, 110, 110}
)

// Align is a horizontal text alignment.
type Align string

const (
	AlignLeft   Align = "L"
	AlignCenter Align = "C"
	AlignRight  Align = "R"
)

// Rect fill styles.
const (
	StrokeOnly    = "D"
	FillOnly      = "F"
	FillAndStroke = "FD"
)

// Canvas is the drawing surface a document is laid out on. Coordinates are in
// millimetres from the top-left corner of the page.
type Canvas interface {
	AddPage()
	SetFont(style string, size float64)
	SetTextColor(c Color)
	SetFillColor(c Color)
	SetDrawColor(c Color)
	SetLineWidth(w float64)
	Rect(x, y, w, h float64, style string)
	Line(x1, y1, x2, y2 float64)
	// Text writes a single line inside the box (x, y, w, h).
	Text(x, y, w, h float64, s string, align Align)
	// StringWidth measures s in the current font.
	StringWidth(s string) float64
	Image(name string, img asset.Image, x, y, w, h float64)
	Err() error
}

// LineHeight is the baseline-to-baseline distance for a font size in points.
func LineHeight(size float64) float64 {
	return size * 0.3528 * 1.3
}

// Wrap breaks s into lines no wider than w in the canvas' current font.
// Explicit newlines are kept; words longer than w are split by rune.
func Wrap(c Canvas, s string, w float64) []string {
	var lines []string
	for _, para := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := ""
		for _, word := range words {
			candidate := word
			if line != "" {
				candidate = line + " " + word
			}
			if c.StringWidth(candidate) <= w {
				line = candidate
				continue
			}
			if line != "" {
				lines = append(lines, line)
			}
			line = ""
			for _, piece := range splitWord(c, word, w) {
				if line != "" {
					lines = append(lines, line)
				}
				line = piece
			}
		}
		lines = append(lines, line)
	}
	return lines
}

func splitWord(c Canvas, word string, w float64) []string {
	if c.StringWidth(word) <= w {
		return []string{word}
	}
	var parts []string
	var cur []rune
	for _, r := range word {
		next := append(cur, r)
		if len(cur) > 0 && c.StringWidth(string(next)) > w {
			parts = append(parts, string(cur))
			cur = []rune{r}
			continue
		}
		cur = next
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}

// Paragraph draws wrapped text starting at (x, y) and returns the height used.
func Paragraph(c Canvas, x, y, w float64, size float64, s string, align Align) float64 {
	lh := LineHeight(size)
	lines := Wrap(c, s, w)
	for i, line := range lines {
		c.Text(x, y+float64(i)*lh, w, lh, line, align)
	}
	return float64(len(lines)) * lh
}

// MeasureParagraph returns the height Paragraph would use.
func MeasureParagraph(c Canvas, w float64, size float64, s string) float64 {
	return float64(len(Wrap(c, s, w))) * LineHeight(size)
}

// Placeholder draws a bordered box with a centred label where an asset could
// not be loaded.
func Placeholder(c Canvas, x, y, w, h float64, label string) {
	c.SetDrawColor(Grey)
	c.SetLineWidth(0.3)
	c.Rect(x, y, w, h, StrokeOnly)
	c.Line(x, y, x+w, y+h)
	c.Line(x, y+h, x+w, y)
	c.SetFont("", 7)
	c.SetTextColor(Grey)
	c.SetFillColor(White)
	lw := c.StringWidth(label) + 3
	if lw > w {
		lw = w
	}
	c.Rect(x+(w-lw)/2, y+h/2-2.5, lw, 5, FillOnly)
	c.Text(x, y+h/2-2.5, w, 5, label, AlignCenter)
	c.SetTextColor(Black)
	c.SetDrawColor(Black)
}
