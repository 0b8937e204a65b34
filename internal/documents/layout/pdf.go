package layout

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"codeberg.org/go-pdf/fpdf"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/asset"
)

const fontFamily = "Helvetica"

// DocumentInfo is written into the PDF metadata.
type DocumentInfo struct {
	Title   string
	Author  string
	Subject string
	// CreatedAt pins the metadata timestamps so identical records encode to
	// identical bytes.
	CreatedAt time.Time
}

// PDFCanvas draws onto an fpdf document.
type PDFCanvas struct {
	pdf      *fpdf.Fpdf
	tr       func(string) string
	size     float64
	style    string
	images   map[string]bool
	finished bool
}

// NewPDFCanvas creates an empty document sized to g.
func NewPDFCanvas(g Geometry, info DocumentInfo) *PDFCanvas {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: g.Width, Ht: g.Height},
	})
	pdf.SetMargins(g.Margin, g.Margin, g.Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AliasNbPages(PageCountAlias)
	pdf.SetCatalogSort(true)
	created := info.CreatedAt
	if created.IsZero() {
		created = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)
	pdf.SetCreator("odyssey-docs", true)
	pdf.SetProducer("odyssey-docs", true)
	if info.Title != "" {
		pdf.SetTitle(info.Title, true)
	}
	if info.Author != "" {
		pdf.SetAuthor(info.Author, true)
	}
	if info.Subject != "" {
		pdf.SetSubject(info.Subject, true)
	}

	c := &PDFCanvas{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		images: make(map[string]bool),
	}
	c.SetFont("", 9)
	return c
}

func (c *PDFCanvas) AddPage() { c.pdf.AddPage() }

func (c *PDFCanvas) SetFont(style string, size float64) {
	c.style, c.size = style, size
	c.pdf.SetFont(fontFamily, style, size)
}

func (c *PDFCanvas) SetTextColor(col Color) { c.pdf.SetTextColor(col.R, col.G, col.B) }
func (c *PDFCanvas) SetFillColor(col Color) { c.pdf.SetFillColor(col.R, col.G, col.B) }
func (c *PDFCanvas) SetDrawColor(col Color) { c.pdf.SetDrawColor(col.R, col.G, col.B) }
func (c *PDFCanvas) SetLineWidth(w float64) { c.pdf.SetLineWidth(w) }

func (c *PDFCanvas) Rect(x, y, w, h float64, style string) { c.pdf.Rect(x, y, w, h, style) }

func (c *PDFCanvas) Line(x1, y1, x2, y2 float64) { c.pdf.Line(x1, y1, x2, y2) }

func (c *PDFCanvas) Text(x, y, w, h float64, s string, align Align) {
	c.pdf.SetXY(x, y)
	c.pdf.CellFormat(w, h, c.tr(s), "", 0, string(align)+"M", false, 0, "")
}

func (c *PDFCanvas) StringWidth(s string) float64 { return c.pdf.GetStringWidth(c.tr(s)) }

// Image draws img, registering it under name on first use. Data the surface
// cannot parse is drawn as a placeholder and does not fail the document.
func (c *PDFCanvas) Image(name string, img asset.Image, x, y, w, h float64) {
	opts := fpdf.ImageOptions{ImageType: img.Format}
	usable, seen := c.images[name]
	if !seen {
		usable = c.register(name, opts, img.Data)
		c.images[name] = usable
	}
	if !usable {
		Placeholder(c, x, y, w, h, "Image unavailable")
		return
	}
	c.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
}

// register reports whether the surface accepted the image. fpdf panics on some
// truncated streams and flags others as a document error; both are undone.
func (c *PDFCanvas) register(name string, opts fpdf.ImageOptions, data []byte) (ok bool) {
	if c.pdf.Err() {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
		if c.pdf.Err() {
			c.pdf.ClearError()
			ok = false
		}
	}()
	c.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	return true
}

func (c *PDFCanvas) Err() error {
	if err := c.pdf.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrRenderSurface, err)
	}
	return nil
}

// Pages returns the number of pages added so far.
func (c *PDFCanvas) Pages() int { return c.pdf.PageCount() }

// Encode serialises the finished document. The canvas cannot be drawn on afterwards.
func (c *PDFCanvas) Encode(w io.Writer) error {
	if c.finished {
		return fmt.Errorf("%w: document already encoded", ErrRenderSurface)
	}
	c.finished = true
	if err := c.Err(); err != nil {
		return err
	}
	if err := c.pdf.Output(w); err != nil {
		return fmt.Errorf("%w: %v", ErrRenderSurface, err)
	}
	return nil
}
