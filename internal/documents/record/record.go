// Package record defines the business records consumed by the document renderer.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/normalize"
)

// Input contract violations. Rendering never starts when one is returned.
var (
	ErrNoRecord      = errors.New("documents: record required")
	ErrInvalidRecord = errors.New("documents: invalid record")
)

// Variant identifies a document type.
type Variant string

const (
	VariantQuotation     Variant = "quotation"
	VariantInvoice       Variant = "invoice"
	VariantSubInvoice    Variant = "sub_invoice"
	VariantDeliveryNote  Variant = "delivery_note"
	VariantPurchaseOrder Variant = "purchase_order"
)

// IsValid reports whether v names a supported variant.
func (v Variant) IsValid() bool {
	switch v {
	case VariantQuotation, VariantInvoice, VariantSubInvoice, VariantDeliveryNote, VariantPurchaseOrder:
		return true
	default:
		return false
	}
}

// ParseVariant accepts both snake and kebab case spellings.
func ParseVariant(s string) (Variant, bool) {
	v := Variant(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	return v, v.IsValid()
}

// Amount is a monetary or quantity value that tolerates heterogeneous JSON
// encodings ("1,234.500", 1234.5, null).
type Amount float64

// UnmarshalJSON never fails on malformed numbers; they normalise to zero.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		*a = 0
		return nil
	}
	*a = Amount(normalize.ParseAmount(raw))
	return nil
}

// Float returns the value as float64.
func (a Amount) Float() float64 { return float64(a) }

// Reference is a cross-reference to a related document ("Quotation No" → "QT-0042").
type Reference struct {
	Label  string `json:"label"`
	Number string `json:"number"`
}

// Party identifies the counter-party printed in the party block.
type Party struct {
	Name    string `json:"name" validate:"required"`
	Contact string `json:"contact,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	TaxID   string `json:"tax_id,omitempty"`
	Project string `json:"project,omitempty"`
}

// LineItem is one row of the item table.
type LineItem struct {
	ProductCode string  `json:"product_code,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	UOM         string  `json:"uom,omitempty"`
	UnitPrice   Amount  `json:"unit_price"`
	Quantity    Amount  `json:"quantity"`
	LineTotal   Amount  `json:"line_total"`
	Delivered   Amount  `json:"delivered,omitempty"`
	Balance     *Amount `json:"balance,omitempty"`

	// Set when the decoded JSON carried the key, so an explicit zero is
	// told apart from a missing value.
	hasUnitPrice bool
	hasQuantity  bool
}

// UnmarshalJSON decodes the item and remembers which of unit_price and
// quantity were supplied.
func (l *LineItem) UnmarshalJSON(data []byte) error {
	type plain LineItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*l = LineItem(p)
	l.hasUnitPrice = supplied(keys["unit_price"])
	l.hasQuantity = supplied(keys["quantity"])
	return nil
}

func supplied(raw json.RawMessage) bool {
	v := strings.TrimSpace(string(raw))
	return v != "" && v != "null" && v != `""`
}

// Total returns unit price × quantity when both are present, even when the
// product is zero. A precomputed line total is only used when one of them is
// missing.
func (l LineItem) Total() float64 {
	hasPrice := l.hasUnitPrice || l.UnitPrice != 0
	hasQty := l.hasQuantity || l.Quantity != 0
	if hasPrice && hasQty {
		return l.UnitPrice.Float() * l.Quantity.Float()
	}
	return l.LineTotal.Float()
}

// Label is the text shown in the description column.
func (l LineItem) Label() string {
	name := strings.TrimSpace(l.Name)
	if name == "" {
		name = strings.TrimSpace(l.ProductCode)
	}
	desc := strings.TrimSpace(l.Description)
	switch {
	case name == "":
		return desc
	case desc == "" || desc == name:
		return name
	default:
		return name + "\n" + desc
	}
}

// BalanceQty is the quantity still to be delivered. A supplied balance wins;
// otherwise it is ordered minus delivered, floored at zero.
func (l LineItem) BalanceQty() float64 {
	if l.Balance != nil {
		return math.Max(0, l.Balance.Float())
	}
	return math.Max(0, l.Quantity.Float()-l.Delivered.Float())
}

// DeliveryStatus classifies a delivery note line.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "Pending"
	DeliveryPartial   DeliveryStatus = "Partial"
	DeliveryDelivered DeliveryStatus = "Delivered"
)

// Status resolves the delivery status of the line.
func (l LineItem) Status() DeliveryStatus {
	const eps = 1e-9
	delivered := l.Delivered.Float()
	switch {
	case delivered <= eps:
		return DeliveryPending
	case l.BalanceQty() <= eps:
		return DeliveryDelivered
	default:
		return DeliveryPartial
	}
}

// TotalsInput carries the raw financial figures of a record.
type TotalsInput struct {
	Subtotal Amount `json:"subtotal"`
	Discount Amount `json:"discount"`
	VAT      Amount `json:"vat"`
	VATRate  Amount `json:"vat_rate,omitempty"`
	Delivery Amount `json:"delivery"`
	Refund   Amount `json:"refund"`
	Paid     Amount `json:"paid"`
}

// PaymentRow is one entry of an invoice payment history.
type PaymentRow struct {
	Date      string `json:"date"`
	Method    string `json:"method,omitempty"`
	Reference string `json:"reference,omitempty"`
	Amount    Amount `json:"amount"`
}

// ImageAttachment is a photo embedded in the document.
type ImageAttachment struct {
	Path    string `json:"path" validate:"required"`
	Caption string `json:"caption,omitempty"`
	Date    string `json:"date,omitempty"`
}

// Record is the caller-supplied document. It is treated as read-only.
type Record struct {
	Number       string            `json:"number" validate:"required"`
	ParentNumber string            `json:"parent_number,omitempty"`
	References   []Reference       `json:"references,omitempty"`
	CreatedAt    string            `json:"created_at,omitempty"`
	ValidUntil   string            `json:"valid_until,omitempty"`
	Status       string            `json:"status,omitempty"`
	Currency     string            `json:"currency,omitempty"`
	Party        Party             `json:"party"`
	Items        []LineItem        `json:"items,omitempty"`
	Totals       TotalsInput       `json:"totals"`
	Payments     []PaymentRow      `json:"payments,omitempty"`
	Images       []ImageAttachment `json:"images,omitempty" validate:"dive"`
	Terms        []string          `json:"terms,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	ReceivedBy   string            `json:"received_by,omitempty"`
}

// Subtotal returns the record subtotal, or the sum of line totals when none was supplied.
func (r *Record) Subtotal() float64 {
	if r.Totals.Subtotal != 0 {
		return r.Totals.Subtotal.Float()
	}
	var sum float64
	for _, item := range r.Items {
		sum += item.Total()
	}
	return sum
}

// PaidAmount returns the paid figure, or the sum of payment rows when none was supplied.
func (r *Record) PaidAmount() float64 {
	if r.Totals.Paid != 0 {
		return r.Totals.Paid.Float()
	}
	var sum float64
	for _, p := range r.Payments {
		sum += p.Amount.Float()
	}
	return sum
}

var validate = validator.New()

// Validate checks the identifying fields required for variant v.
func Validate(r *Record, v Variant) error {
	if r == nil {
		return ErrNoRecord
	}
	if !v.IsValid() {
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidRecord, v)
	}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed on %s", ErrInvalidRecord, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if strings.TrimSpace(r.Number) == "" {
		return fmt.Errorf("%w: Record.Number is blank", ErrInvalidRecord)
	}
	if v == VariantSubInvoice && strings.TrimSpace(r.ParentNumber) == "" {
		return fmt.Errorf("%w: sub invoice requires parent_number", ErrInvalidRecord)
	}
	return nil
}
