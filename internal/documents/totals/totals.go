// Package totals derives the monetary summary rows printed in the totals box.
package totals

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/normalize"
)

// Mode selects how the summary culminates.
type Mode int

const (
	// ModeQuote ends on Total or Grand Total.
	ModeQuote Mode = iota
	// ModeInvoice always ends on Total Due.
	ModeInvoice
)

// Kind tags a row with its presentation. Renderers style by Kind, never by label.
type Kind int

const (
	KindNormal Kind = iota
	KindDiscount
	KindDelivery
	KindRefund
	KindEmphasis
)

func (k Kind) String() string {
	switch k {
	case KindDiscount:
		return "discount"
	case KindDelivery:
		return "delivery"
	case KindRefund:
		return "refund"
	case KindEmphasis:
		return "emphasis"
	default:
		return "normal"
	}
}

// Row labels.
const (
	LabelSubTotal            = "Sub Total"
	LabelDiscount            = "Discount"
	LabelSubAfterDiscount    = "Sub Total (After Discount)"
	LabelVAT                 = "VAT"
	LabelVATExcluded         = "VAT (Not Included)"
	LabelTotal               = "Total"
	LabelDeliveryCharges     = "Delivery Charges"
	LabelChargesWithDelivery = "Charges with Delivery"
	LabelRefund              = "Refund Amount"
	LabelGrandTotal          = "Grand Total"
	LabelPaid                = "Paid Amount"
	LabelTotalDue            = "Total Due"
)

// Input carries the raw financial figures of a document.
type Input struct {
	Subtotal float64
	Discount float64
	VAT      float64
	Delivery float64
	Refund   float64
	Paid     float64

	// ExcludeVAT keeps the VAT row visible but leaves it out of every total.
	ExcludeVAT bool
	Mode       Mode
	// Decimals is the display precision; the suppression threshold follows it.
	// Zero means normalize.DefaultDecimals.
	Decimals int
}

func (in Input) decimals() int {
	if in.Decimals <= 0 {
		return normalize.DefaultDecimals
	}
	return in.Decimals
}

// Summary holds the intermediate and final figures.
type Summary struct {
	Subtotal              decimal.Decimal
	Discount              decimal.Decimal
	VAT                   decimal.Decimal
	Delivery              decimal.Decimal
	Refund                decimal.Decimal
	Paid                  decimal.Decimal
	SubAfterDiscount      decimal.Decimal
	TotalBeforeDelivery   decimal.Decimal
	ChargesWithDelivery   decimal.Decimal
	GrandTotalAfterRefund decimal.Decimal
	TotalDue              decimal.Decimal
}

// Compute runs the totals arithmetic. It performs no I/O.
func Compute(in Input) Summary {
	s := Summary{
		Subtotal: amount(in.Subtotal),
		Discount: amount(in.Discount),
		VAT:      amount(in.VAT),
		Delivery: amount(in.Delivery),
		Refund:   amount(in.Refund),
		Paid:     amount(in.Paid),
	}
	s.SubAfterDiscount = decimal.Max(decimal.Zero, s.Subtotal.Sub(s.Discount))
	s.TotalBeforeDelivery = s.SubAfterDiscount
	if !in.ExcludeVAT {
		s.TotalBeforeDelivery = s.TotalBeforeDelivery.Add(s.VAT)
	}
	s.ChargesWithDelivery = s.TotalBeforeDelivery.Add(s.Delivery)
	s.GrandTotalAfterRefund = s.ChargesWithDelivery.Sub(s.Refund)
	s.TotalDue = decimal.Max(decimal.Zero, s.GrandTotalAfterRefund.Sub(s.Paid))
	return s
}

// Row is one line of the totals box.
type Row struct {
	Label string
	Value decimal.Decimal
	Kind  Kind
}

// Text formats the row value for display.
func (r Row) Text(decimals int) string {
	return normalize.FormatCurrency(r.Value.InexactFloat64(), decimals)
}

// Rows returns the ordered, filtered summary rows for in.
func Rows(in Input) []Row {
	s := Compute(in)
	eps := decimal.NewFromFloat(normalize.Epsilon(in.decimals()))
	shows := func(d decimal.Decimal) bool { return d.Abs().GreaterThan(eps) }

	hasDelivery := shows(s.Delivery)
	hasRefund := shows(s.Refund)
	hasPaid := shows(s.Paid)
	dueMode := in.Mode == ModeInvoice || hasPaid
	adjusted := hasDelivery || hasRefund || dueMode

	rows := make([]Row, 0, 11)
	rows = append(rows, Row{Label: LabelSubTotal, Value: s.Subtotal, Kind: KindNormal})
	if shows(s.Discount) {
		rows = append(rows,
			Row{Label: LabelDiscount, Value: s.Discount, Kind: KindDiscount},
			Row{Label: LabelSubAfterDiscount, Value: s.SubAfterDiscount, Kind: KindNormal},
		)
	}
	if shows(s.VAT) {
		label := LabelVAT
		if in.ExcludeVAT {
			label = LabelVATExcluded
		}
		rows = append(rows, Row{Label: label, Value: s.VAT, Kind: KindNormal})
	}
	if !adjusted {
		return append(rows, Row{Label: LabelTotal, Value: s.TotalBeforeDelivery, Kind: KindEmphasis})
	}
	rows = append(rows, Row{Label: LabelTotal, Value: s.TotalBeforeDelivery, Kind: KindNormal})
	if hasDelivery {
		rows = append(rows,
			Row{Label: LabelDeliveryCharges, Value: s.Delivery, Kind: KindDelivery},
			Row{Label: LabelChargesWithDelivery, Value: s.ChargesWithDelivery, Kind: KindNormal},
		)
	}
	if hasRefund {
		rows = append(rows, Row{Label: LabelRefund, Value: s.Refund.Neg(), Kind: KindRefund})
	}
	if !dueMode {
		return append(rows, Row{Label: LabelGrandTotal, Value: s.GrandTotalAfterRefund, Kind: KindEmphasis})
	}
	if hasRefund {
		rows = append(rows, Row{Label: LabelGrandTotal, Value: s.GrandTotalAfterRefund, Kind: KindNormal})
	}
	if hasPaid {
		rows = append(rows, Row{Label: LabelPaid, Value: s.Paid, Kind: KindNormal})
	}
	return append(rows, Row{Label: LabelTotalDue, Value: s.TotalDue, Kind: KindEmphasis})
}

func amount(v float64) decimal.Decimal {
	return decimal.NewFromFloat(normalize.ParseAmount(v))
}
