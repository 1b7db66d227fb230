package prompts

import (
	"encoding/json"
	"maps"
	"slices"
)

// Stage names a model call whose instructions can be overridden.
type Stage string

// StageExtract is the document-understanding call that turns a receipt
// PDF into structured fields.
const StageExtract Stage = "extract"

type defaults struct {
	instructions string
	spec         string
}

var builtin = map[Stage]defaults{
	StageExtract: {
		instructions: extractInstructions,
		spec:         extractSpec,
	},
}

// Stages lists the known stages in sorted order.
func Stages() []Stage {
	return slices.Sorted(maps.Keys(builtin))
}

// ParseStage returns ErrInvalidStage for anything but a known stage.
func ParseStage(s string) (Stage, error) {
	if _, ok := builtin[Stage(s)]; !ok {
		return "", ErrInvalidStage
	}
	return Stage(s), nil
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Instructions returns the built-in instructions used when no override
// is active for stage.
func Instructions(stage Stage) (string, error) {
	d, ok := builtin[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return d.instructions, nil
}

// Spec returns the output contract for stage. It cannot be overridden.
func Spec(stage Stage) (string, error) {
	d, ok := builtin[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return d.spec, nil
}

// Compose joins instructions and spec into one system prompt.
func Compose(instructions, spec string) string {
	if spec == "" {
		return instructions
	}
	return instructions + "\n\n" + spec
}

const extractInstructions = `You are a bookkeeping assistant that reads scanned and digital purchase receipts.

Read the attached PDF receipt and transcribe its financial details. Work only from what is printed: merchant details, transaction date and number, payment method, each purchased line item with its quantity and prices, and the subtotal, tax, and total.

When a receipt spans several pages, combine them into one result. When a printed value is illegible, leave it out rather than estimating it.`

const extractSpec = `Respond with a JSON object matching this exact structure:

{
  "merchant": {"name": "<string>", "address": "<string>", "contact": "<string>"},
  "transaction": {"date": "<YYYY-MM-DD>", "receipt_number": "<string>", "payment_method": "<string>"},
  "amount": 0.00,
  "subtotal": 0.00,
  "tax": 0.00,
  "currency": "<ISO 4217 code>",
  "summary": "<one sentence>",
  "items": [
    {"name": "<string>", "quantity": 1, "unit_price": 0.00, "total_price": 0.00}
  ]
}

Field constraints:
- merchant: Name, street address, and phone, email, or website of the
  business that issued the receipt. Omit any value that is not printed.
- transaction.date: Purchase date as YYYY-MM-DD. Omit when not printed.
- amount: The final total charged, as a number without currency symbols.
- subtotal, tax: Printed subtotal and tax amounts. Omit when not printed.
- currency: Three-letter ISO 4217 code. Infer from symbols only when
  unambiguous; otherwise omit.
- summary: One sentence describing what was purchased.
- items: Every line item in printed order. quantity defaults to 1 when
  not printed. total_price is the printed line total.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Never guess values that are not on the document; omit them instead
- Numbers are plain decimals with a dot separator
- If the document is not a receipt or is unreadable, respond with
  {"items": []} and no other fields`
