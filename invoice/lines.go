/*
lines.go - Structured line-item payload

PURPOSE:
  The wire format carries line items as a serialized string. Internally
  they are a tagged, versioned record so the schema can evolve without
  breaking stored invoices. All arithmetic uses decimal.Decimal; floats
  never touch money.

SCHEMA (version 1):
  {"schema": 1, "items": [
      {"description": "...", "quantity": "2", "unit_price": "150.00",
       "amount": "300.00"}
  ]}

CONSISTENCY RULES:
  - items must be non-empty
  - per item: amount = quantity * unit_price
  - invoice net_amt must equal the sum of item amounts

SEE ALSO:
  - validate.go: maps parse/consistency failures onto the 3xxx codes
*/
package invoice

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// LineSchemaVersion is the only schema this core reads and writes.
const LineSchemaVersion = 1

// LineItems is the parsed form of the Invoice.Lines payload.
type LineItems struct {
	Schema int        `json:"schema"`
	Items  []LineItem `json:"items"`
}

// LineItem is a single billed position. Quantity, UnitPrice and Amount
// are decimal strings.
type LineItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Amount      string `json:"amount"`
}

// ParseLines decodes and checks a serialized line-item payload.
func ParseLines(raw string) (LineItems, error) {
	var li LineItems
	if raw == "" {
		return li, fmt.Errorf("empty lines payload")
	}
	if err := json.Unmarshal([]byte(raw), &li); err != nil {
		return li, fmt.Errorf("lines payload is not valid JSON: %w", err)
	}
	if li.Schema != LineSchemaVersion {
		return li, fmt.Errorf("unsupported lines schema %d", li.Schema)
	}
	if len(li.Items) == 0 {
		return li, fmt.Errorf("lines payload has no items")
	}
	for i, item := range li.Items {
		qty, err := decimal.NewFromString(item.Quantity)
		if err != nil {
			return li, fmt.Errorf("item %d: bad quantity %q", i, item.Quantity)
		}
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return li, fmt.Errorf("item %d: bad unit price %q", i, item.UnitPrice)
		}
		amount, err := decimal.NewFromString(item.Amount)
		if err != nil {
			return li, fmt.Errorf("item %d: bad amount %q", i, item.Amount)
		}
		if !qty.Mul(price).Equal(amount) {
			return li, fmt.Errorf("item %d: amount %s does not equal quantity*unit_price", i, item.Amount)
		}
	}
	return li, nil
}

// Total returns the sum of item amounts. Items are assumed already
// validated by ParseLines.
func (li LineItems) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range li.Items {
		amount, err := decimal.NewFromString(item.Amount)
		if err != nil {
			continue
		}
		total = total.Add(amount)
	}
	return total
}

// Encode serializes back to the wire string form.
func (li LineItems) Encode() (string, error) {
	b, err := json.Marshal(li)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
