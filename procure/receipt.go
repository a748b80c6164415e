/*
receipt.go - Receipt validation against a purchase order

PURPOSE:
  Compares what a vendor says was delivered and charged against what the
  purchase order committed to, and reports every difference as structured
  data. Pure comparison: no storage, no mutation, no verdict policy beyond
  "any discrepancy means not OK". Finance reads the discrepancy list and
  decides what to do.

MATCHING:
  Lines are matched by normalized item name (trimmed, lowercased). Each
  matched pair is checked for quantity and unit price; order lines absent
  from the receipt are missing_item, receipt lines absent from the order
  are unexpected_item. Receipt-level extra charges (shipping, fees) are
  reported as additional_charge. Totals are compared last so a pure total
  error (all lines fine, arithmetic off) still surfaces.

TOLERANCE:
  Unit price comparison accepts an absolute tolerance, zero by default.
  Quantities are always exact.

SEE ALSO:
  - po.go: The snapshot being validated against
*/
package procure

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECEIPT INPUT
// =============================================================================

// ReceiptItem is one delivered line as stated on the receipt.
type ReceiptItem struct {
	Name      string
	Quantity  int64
	UnitPrice decimal.Decimal
}

// ReceiptCharge is a receipt-level charge that has no order line, such as
// shipping or handling.
type ReceiptCharge struct {
	Description string
	Amount      decimal.Decimal
}

// Receipt is the structured content of a delivery receipt.
type Receipt struct {
	VendorName        string
	Number            string
	Items             []ReceiptItem
	AdditionalCharges []ReceiptCharge
	Total             decimal.Decimal
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

type DiscrepancyKind string

const (
	DiscrepancyOverDelivery     DiscrepancyKind = "over_delivery"
	DiscrepancyUnderDelivery    DiscrepancyKind = "under_delivery"
	DiscrepancyPriceMismatch    DiscrepancyKind = "price_mismatch"
	DiscrepancyMissingItem      DiscrepancyKind = "missing_item"
	DiscrepancyUnexpectedItem   DiscrepancyKind = "unexpected_item"
	DiscrepancyAdditionalCharge DiscrepancyKind = "additional_charge"
	DiscrepancyTotalMismatch    DiscrepancyKind = "total_mismatch"
)

// Discrepancy is one difference between order and receipt. Expected carries
// the order-side value, Found the receipt-side value; for quantities both
// are whole numbers, for prices and totals they are money.
type Discrepancy struct {
	Kind     DiscrepancyKind
	Item     string
	Expected decimal.Decimal
	Found    decimal.Decimal
	Detail   string
}

// ValidationResult is the full comparison outcome. OK is true iff the
// discrepancy list is empty.
type ValidationResult struct {
	PONumber      string
	OK            bool
	Discrepancies []Discrepancy
	Summary       string
}

// =============================================================================
// VALIDATOR
// =============================================================================

// ReceiptValidator compares receipts against purchase orders.
type ReceiptValidator struct {
	priceTolerance decimal.Decimal
}

// NewReceiptValidator returns a validator with the given absolute unit price
// tolerance. Negative tolerances are treated as zero.
func NewReceiptValidator(priceTolerance decimal.Decimal) *ReceiptValidator {
	if priceTolerance.IsNegative() {
		priceTolerance = decimal.Zero
	}
	return &ReceiptValidator{priceTolerance: priceTolerance}
}

// Validate compares a receipt against a purchase order and returns every
// discrepancy found. Inputs are not modified.
func (v *ReceiptValidator) Validate(po *PurchaseOrder, receipt Receipt) ValidationResult {
	result := ValidationResult{PONumber: po.Number}

	// Index receipt lines by normalized name. Duplicate receipt lines for
	// one item collapse into summed quantity; the price check uses the
	// first stated price.
	type receiptLine struct {
		item    ReceiptItem
		matched bool
	}
	lines := make(map[string]*receiptLine, len(receipt.Items))
	order := make([]string, 0, len(receipt.Items))
	for _, it := range receipt.Items {
		k := NormalizeItemName(it.Name)
		if existing, ok := lines[k]; ok {
			existing.item.Quantity += it.Quantity
			continue
		}
		lines[k] = &receiptLine{item: it}
		order = append(order, k)
	}

	for _, oi := range po.Items {
		k := NormalizeItemName(oi.Name)
		line, ok := lines[k]
		if !ok {
			result.Discrepancies = append(result.Discrepancies, Discrepancy{
				Kind:     DiscrepancyMissingItem,
				Item:     oi.Name,
				Expected: decimal.NewFromInt(oi.Quantity),
				Found:    decimal.Zero,
				Detail:   "ordered item absent from receipt",
			})
			continue
		}
		line.matched = true

		ri := line.item
		switch {
		case ri.Quantity > oi.Quantity:
			result.Discrepancies = append(result.Discrepancies, Discrepancy{
				Kind:     DiscrepancyOverDelivery,
				Item:     oi.Name,
				Expected: decimal.NewFromInt(oi.Quantity),
				Found:    decimal.NewFromInt(ri.Quantity),
				Detail:   fmt.Sprintf("received %d, ordered %d", ri.Quantity, oi.Quantity),
			})
		case ri.Quantity < oi.Quantity:
			result.Discrepancies = append(result.Discrepancies, Discrepancy{
				Kind:     DiscrepancyUnderDelivery,
				Item:     oi.Name,
				Expected: decimal.NewFromInt(oi.Quantity),
				Found:    decimal.NewFromInt(ri.Quantity),
				Detail:   fmt.Sprintf("received %d, ordered %d", ri.Quantity, oi.Quantity),
			})
		}

		if ri.UnitPrice.Sub(oi.UnitPrice).Abs().GreaterThan(v.priceTolerance) {
			result.Discrepancies = append(result.Discrepancies, Discrepancy{
				Kind:     DiscrepancyPriceMismatch,
				Item:     oi.Name,
				Expected: oi.UnitPrice,
				Found:    ri.UnitPrice,
				Detail:   fmt.Sprintf("charged %s, ordered at %s", ri.UnitPrice, oi.UnitPrice),
			})
		}
	}

	// Receipt lines with no order line.
	for _, k := range order {
		line := lines[k]
		if line.matched {
			continue
		}
		result.Discrepancies = append(result.Discrepancies, Discrepancy{
			Kind:     DiscrepancyUnexpectedItem,
			Item:     line.item.Name,
			Expected: decimal.Zero,
			Found:    decimal.NewFromInt(line.item.Quantity),
			Detail:   "received item was not ordered",
		})
	}

	for _, c := range receipt.AdditionalCharges {
		result.Discrepancies = append(result.Discrepancies, Discrepancy{
			Kind:     DiscrepancyAdditionalCharge,
			Item:     c.Description,
			Expected: decimal.Zero,
			Found:    c.Amount,
			Detail:   "charge has no order line",
		})
	}

	// Total check. Only meaningful when the receipt states a total; a zero
	// total on a non-empty receipt is treated as unstated.
	if !receipt.Total.IsZero() && !receipt.Total.Sub(po.Total).Abs().LessThanOrEqual(v.priceTolerance) {
		result.Discrepancies = append(result.Discrepancies, Discrepancy{
			Kind:     DiscrepancyTotalMismatch,
			Item:     "total",
			Expected: po.Total,
			Found:    receipt.Total,
			Detail:   fmt.Sprintf("receipt total %s, order total %s", receipt.Total, po.Total),
		})
	}

	result.OK = len(result.Discrepancies) == 0
	if result.OK {
		result.Summary = fmt.Sprintf("receipt matches purchase order %s", po.Number)
	} else {
		result.Summary = fmt.Sprintf("%d discrepancies against purchase order %s", len(result.Discrepancies), po.Number)
	}
	return result
}
