package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/asset"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/layout"
)

// Barcode draws a Code 128 symbol of Value, typically the document number,
// for scanning at goods receipt.
type Barcode struct {
	Heading string
	Value   string
}

const (
	barcodeWidth  = 64.0
	barcodeHeight = 14.0
	barcodeModule = 3
	barcodePixelH = 80
)

func (b *Barcode) draw(r *renderCtx) {
	value := strings.TrimSpace(b.Value)
	if value == "" {
		return
	}
	const textH = 4.0
	c, g := r.canvas, r.pc.Geometry()
	r.heading(b.Heading, barcodeHeight+textH)
	y := r.pc.Cursor()
	if img, err := encodeBarcode(value); err == nil {
		c.Image("barcode:"+value, img, g.Margin, y, barcodeWidth, barcodeHeight)
	} else {
		r.logger.Warn("barcode unavailable", slog.String("value", value), slog.Any("error", err))
		layout.Placeholder(c, g.Margin, y, barcodeWidth, barcodeHeight, "Barcode unavailable")
	}
	c.SetFont("", 8)
	c.SetTextColor(layout.Black)
	c.Text(g.Margin, y+barcodeHeight+0.5, barcodeWidth, textH, value, layout.AlignCenter)
	r.pc.Advance(barcodeHeight + textH + blockGap)
}

// encodeBarcode renders value as a PNG Code 128 symbol.
func encodeBarcode(value string) (asset.Image, error) {
	code, err := code128.Encode(value)
	if err != nil {
		return asset.Image{}, fmt.Errorf("encode code128: %w", err)
	}
	width := code.Bounds().Dx() * barcodeModule
	scaled, err := barcode.Scale(code, width, barcodePixelH)
	if err != nil {
		return asset.Image{}, fmt.Errorf("scale barcode: %w", err)
	}
	data, err := asset.EncodePNG(scaled)
	if err != nil {
		return asset.Image{}, err
	}
	return asset.Image{Data: data, Format: "PNG", Width: width, Height: barcodePixelH}, nil
}
