package engine

import (
	"time"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/layout"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/table"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/totals"
)

// Theme holds the colour constants of a document variant.
type Theme struct {
	Accent     layout.Color
	AccentSoft layout.Color
	Muted      layout.Color
	Refund     layout.Color
	Discount   layout.Color
	Delivery   layout.Color
}

// DefaultTheme is a neutral blue theme.
func DefaultTheme() Theme {
	return Theme{
		Accent:     layout.Color{R: 31, G: 78, B: 121},
		AccentSoft: layout.Color{R: 232, G: 239, B: 247},
		Muted:      layout.Color{R: 100, G: 108, B: 118},
		Refund:     layout.Color{R: 192, G: 40, B: 40},
		Discount:   layout.Color{R: 196, G: 110, B: 0},
		Delivery:   layout.Color{R: 60, G: 120, B: 60},
	}
}

// Company is the issuing company printed in the page header and footer.
type Company struct {
	Name    string
	Address string
	Phone   string
	Email   string
	TaxID   string
	LogoRef string
}

// Field is a label/value pair.
type Field struct {
	Label string
	Value string
}

// Party is the counter-party box.
type Party struct {
	Heading string
	Name    string
	Lines   []Field
}

// Document is a fully mapped document ready for layout. Variants build it
// from a record; the engine never looks at the record itself.
type Document struct {
	Variant  string
	Title    string
	Number   string
	Subtitle string
	Theme    Theme
	Company  Company

	// Running lists the per-page running numbers (date, cross references).
	Running []Field
	Party   Party
	Details []Field

	Columns []table.Column
	Rows    []table.Row
	Totals  []totals.Row

	Blocks []Block
	Notice string

	Decimals  int
	CreatedAt time.Time
}

// imageRefs lists every asset the document will draw, logo first.
func (d *Document) imageRefs() []string {
	var refs []string
	if d.Company.LogoRef != "" {
		refs = append(refs, d.Company.LogoRef)
	}
	for _, b := range d.Blocks {
		if g, ok := b.(*ImageGrid); ok {
			for _, p := range g.Photos {
				refs = append(refs, p.Ref)
			}
		}
	}
	return refs
}
