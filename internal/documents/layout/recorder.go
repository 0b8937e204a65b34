package layout

import (
	"strconv"
	"strings"

	"codeberg.org/go-pdf/fpdf"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/asset"
)

// OpKind names a recorded drawing operation.
type OpKind string

const (
	OpPage  OpKind = "page"
	OpText  OpKind = "text"
	OpRect  OpKind = "rect"
	OpLine  OpKind = "line"
	OpImage OpKind = "image"
)

// Op is one recorded drawing call.
type Op struct {
	Page  int
	Kind  OpKind
	X, Y  float64
	W, H  float64
	Text  string
	Style string
	Fill  Color
	Color Color
}

// Recorder is a Canvas that records operations instead of producing a file.
// Text is measured with the same font metrics as PDFCanvas, so page breaks
// land in the same places.
type Recorder struct {
	metrics *fpdf.Fpdf
	tr      func(string) string

	fill  Color
	color Color
	style string
	page  int
	ops   []Op
	err   error
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	m := fpdf.New("P", "mm", "A4", "")
	r := &Recorder{metrics: m, tr: m.UnicodeTranslatorFromDescriptor("")}
	r.SetFont("", 9)
	return r
}

// Fail makes Err report err, simulating a broken surface.
func (r *Recorder) Fail(err error) { r.err = err }

func (r *Recorder) AddPage() {
	r.page++
	r.ops = append(r.ops, Op{Page: r.page, Kind: OpPage})
}

func (r *Recorder) SetFont(style string, size float64) {
	r.style = style
	r.metrics.SetFont(fontFamily, style, size)
}

func (r *Recorder) SetTextColor(c Color) { r.color = c }
func (r *Recorder) SetFillColor(c Color) { r.fill = c }
func (r *Recorder) SetDrawColor(Color)   {}
func (r *Recorder) SetLineWidth(float64) {}

func (r *Recorder) Rect(x, y, w, h float64, style string) {
	r.ops = append(r.ops, Op{Page: r.page, Kind: OpRect, X: x, Y: y, W: w, H: h, Style: style, Fill: r.fill})
}

func (r *Recorder) Line(x1, y1, x2, y2 float64) {
	r.ops = append(r.ops, Op{Page: r.page, Kind: OpLine, X: x1, Y: y1, W: x2 - x1, H: y2 - y1})
}

func (r *Recorder) Text(x, y, w, h float64, s string, align Align) {
	if s == "" {
		return
	}
	r.ops = append(r.ops, Op{
		Page: r.page, Kind: OpText, X: x, Y: y, W: w, H: h,
		Text: s, Style: r.style + string(align), Color: r.color,
	})
}

func (r *Recorder) StringWidth(s string) float64 { return r.metrics.GetStringWidth(r.tr(s)) }

func (r *Recorder) Image(name string, _ asset.Image, x, y, w, h float64) {
	r.ops = append(r.ops, Op{Page: r.page, Kind: OpImage, X: x, Y: y, W: w, H: h, Text: name})
}

func (r *Recorder) Err() error { return r.err }

// Pages returns the number of pages recorded.
func (r *Recorder) Pages() int { return r.page }

// Ops returns the recorded operations with the page-count alias resolved.
func (r *Recorder) Ops() []Op {
	total := strconv.Itoa(r.page)
	out := make([]Op, len(r.ops))
	for i, op := range r.ops {
		op.Text = strings.ReplaceAll(op.Text, PageCountAlias, total)
		out[i] = op
	}
	return out
}

// Texts returns every text drawn on page, in drawing order.
func (r *Recorder) Texts(page int) []string {
	var out []string
	for _, op := range r.Ops() {
		if op.Kind == OpText && op.Page == page {
			out = append(out, op.Text)
		}
	}
	return out
}

// CountText returns how many times s was drawn on each page, indexed from 1.
func (r *Recorder) CountText(s string) map[int]int {
	counts := make(map[int]int)
	for _, op := range r.Ops() {
		if op.Kind == OpText && op.Text == s {
			counts[op.Page]++
		}
	}
	return counts
}
