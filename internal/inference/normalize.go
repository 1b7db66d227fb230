package inference

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JaimeStill/receipts/internal/receipts"
)

var dateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	time.RFC3339,
}

func normalize(f *receipts.Fields) {
	f.Merchant.Name = strings.TrimSpace(f.Merchant.Name)
	f.Merchant.Address = strings.TrimSpace(f.Merchant.Address)
	f.Merchant.Contact = strings.TrimSpace(f.Merchant.Contact)
	f.Summary = strings.TrimSpace(f.Summary)
	f.Currency = strings.ToUpper(strings.TrimSpace(f.Currency))
	f.Transaction.Date = normalizeDate(f.Transaction.Date)

	for i := range f.Items {
		f.Items[i].Name = strings.TrimSpace(f.Items[i].Name)
		if f.Items[i].Quantity.IsZero() {
			f.Items[i].Quantity = decimal.NewFromInt(1)
		}
	}

	if f.Amount == nil {
		f.Amount = deriveAmount(f)
	}

	f.Reconcile(receipts.DefaultTolerance)
}

// normalizeDate rewrites recognized date formats as YYYY-MM-DD and leaves
// anything else untouched.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return s
}

// deriveAmount prefers subtotal plus tax, then the sum of line totals.
func deriveAmount(f *receipts.Fields) *decimal.Decimal {
	if f.Subtotal != nil {
		total := *f.Subtotal
		if f.Tax != nil {
			total = total.Add(*f.Tax)
		}
		return &total
	}

	if len(f.Items) == 0 {
		return nil
	}

	total := decimal.Zero
	for _, item := range f.Items {
		total = total.Add(item.TotalPrice)
	}
	return &total
}
