package receipts

import (
	"github.com/shopspring/decimal"
)

// DefaultTolerance is the reconciliation tolerance for line items: one cent.
var DefaultTolerance = decimal.New(1, -2)

// Fields is the structured content of a receipt. Empty strings and nil
// amounts mean the value was not present on the document.
type Fields struct {
	Merchant    Merchant         `json:"merchant"`
	Transaction Transaction      `json:"transaction"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Subtotal    *decimal.Decimal `json:"subtotal,omitempty"`
	Tax         *decimal.Decimal `json:"tax,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	Items       []LineItem       `json:"items"`
	Flags       []Flag           `json:"flags,omitempty"`
}

type Merchant struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	Contact string `json:"contact,omitempty"`
}

type Transaction struct {
	Date          string `json:"date,omitempty"`
	ReceiptNumber string `json:"receipt_number,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

type LineItem struct {
	Name       string          `json:"name"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Flag marks a line item whose unit price times quantity does not match
// its total price.
type Flag struct {
	Item     int             `json:"item"`
	Name     string          `json:"name"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
}

// Reconcile checks every line item against tolerance, records the
// mismatches on f.Flags, and returns them. Mismatches never invalidate
// the fields.
func (f *Fields) Reconcile(tolerance decimal.Decimal) []Flag {
	var flags []Flag
	for i, item := range f.Items {
		expected := item.UnitPrice.Mul(item.Quantity)
		if expected.Sub(item.TotalPrice).Abs().GreaterThan(tolerance) {
			flags = append(flags, Flag{
				Item:     i,
				Name:     item.Name,
				Expected: expected.Round(2),
				Actual:   item.TotalPrice,
			})
		}
	}
	f.Flags = flags
	return flags
}

// IsEmpty reports whether no identifying receipt content was extracted.
func (f *Fields) IsEmpty() bool {
	return f.Merchant.Name == "" && f.Amount == nil && len(f.Items) == 0
}
