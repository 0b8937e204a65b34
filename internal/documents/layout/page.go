// Package layout owns page geometry, the drawing surface and the vertical
// layout cursor shared by every document block.
package layout

// Geometry describes a page in millimetres.
type Geometry struct {
	Width      float64
	Height     float64
	Margin     float64
	HeaderBand float64
	FooterBand float64
	Gap        float64
}

// A4 returns portrait A4 with the default bands.
func A4() Geometry {
	return Geometry{
		Width:      210,
		Height:     297,
		Margin:     12,
		HeaderBand: 36,
		FooterBand: 14,
		Gap:        4,
	}
}

// ContentTop is where the cursor starts on every page.
func (g Geometry) ContentTop() float64 { return g.Margin + g.HeaderBand + g.Gap }

// ContentBottom is the lowest position the cursor may reach.
func (g Geometry) ContentBottom() float64 { return g.Height - g.FooterBand - g.Margin }

// Available is the usable content height of one page.
func (g Geometry) Available() float64 { return g.ContentBottom() - g.ContentTop() }

// ContentWidth is the width between the side margins.
func (g Geometry) ContentWidth() float64 { return g.Width - 2*g.Margin }

// DecorateFunc draws the per-page header and footer. It runs once per page.
type DecorateFunc func(pc *PageContext)

// PageContext tracks the page number and layout cursor of one render.
type PageContext struct {
	canvas   Canvas
	geo      Geometry
	decorate DecorateFunc

	page   int
	cursor float64
	fresh  bool
}

// NewPageContext binds a canvas and geometry. No page exists until BeginPage.
func NewPageContext(c Canvas, g Geometry, decorate DecorateFunc) *PageContext {
	return &PageContext{canvas: c, geo: g, decorate: decorate}
}

// BeginPage opens a new page, resets the cursor and runs the decorate hook.
func (pc *PageContext) BeginPage() {
	pc.canvas.AddPage()
	pc.page++
	pc.cursor = pc.geo.ContentTop()
	if pc.decorate != nil {
		pc.decorate(pc)
	}
	pc.fresh = true
}

// EnsureSpace starts a new page when h does not fit below the cursor and
// reports whether a break happened. A block taller than a whole page is placed
// on the current page if nothing has been drawn on it yet.
func (pc *PageContext) EnsureSpace(h float64) bool {
	if pc.page == 0 {
		pc.BeginPage()
		return false
	}
	if pc.cursor+h <= pc.geo.ContentBottom()+1e-9 {
		return false
	}
	if pc.fresh {
		return false
	}
	pc.BeginPage()
	return true
}

// Advance moves the cursor down after a block has been drawn.
func (pc *PageContext) Advance(h float64) {
	if h <= 0 {
		return
	}
	pc.cursor += h
	pc.fresh = false
}

// Page is the current page number, starting at 1.
func (pc *PageContext) Page() int { return pc.page }

// Cursor is the current vertical position.
func (pc *PageContext) Cursor() float64 { return pc.cursor }

// Remaining is the height left above the footer band.
func (pc *PageContext) Remaining() float64 { return pc.geo.ContentBottom() - pc.cursor }

// Geometry returns the page geometry.
func (pc *PageContext) Geometry() Geometry { return pc.geo }

// Canvas returns the drawing surface.
func (pc *PageContext) Canvas() Canvas { return pc.canvas }
