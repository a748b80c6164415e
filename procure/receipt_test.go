/*
receipt_test.go - Receipt validation against a purchase order

The canonical example throughout: an order for 10 pens at 2.00, total
20.00. Each test perturbs the receipt one way and asserts the exact
discrepancy reported.
*/
package procure_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nsarob/Save-a-penny/procure"
)

func penOrder() *procure.PurchaseOrder {
	return &procure.PurchaseOrder{
		Number: "PO-20260825-0001",
		Buyer:  procure.BuyerName,
		Items: []procure.POItem{
			{Name: "Pens", Quantity: 10, UnitPrice: decimal.NewFromFloat(2.00)},
		},
		Total: decimal.NewFromFloat(20.00),
	}
}

func kinds(result procure.ValidationResult) []procure.DiscrepancyKind {
	out := make([]procure.DiscrepancyKind, len(result.Discrepancies))
	for i, d := range result.Discrepancies {
		out[i] = d.Kind
	}
	return out
}

func TestReceiptExactMatch(t *testing.T) {
	// GIVEN: A receipt that mirrors the order exactly
	v := procure.NewReceiptValidator(decimal.Zero)
	result := v.Validate(penOrder(), procure.Receipt{
		Items: []procure.ReceiptItem{
			{Name: "Pens", Quantity: 10, UnitPrice: decimal.NewFromFloat(2.00)},
		},
		Total: decimal.NewFromFloat(20.00),
	})

	// THEN: No discrepancies
	assert.True(t, result.OK)
	assert.Empty(t, result.Discrepancies)
	assert.Equal(t, "PO-20260825-0001", result.PONumber)
}

func TestReceiptMatchesByNormalizedName(t *testing.T) {
	// "  PENS " matches "Pens": names are trimmed and lowercased
	v := procure.NewReceiptValidator(decimal.Zero)
	result := v.Validate(penOrder(), procure.Receipt{
		Items: []procure.ReceiptItem{
			{Name: "  PENS ", Quantity: 10, UnitPrice: decimal.NewFromFloat(2.00)},
		},
	})
	assert.True(t, result.OK)
}

func TestReceiptOverDelivery(t *testing.T) {
	// GIVEN: 12 delivered against 10 ordered
	v := procure.NewReceiptValidator(decimal.Zero)
	result := v.Validate(penOrder(), procure.Receipt{
		Items: []procure.ReceiptItem{
			{Name: "Pens", Quantity: 12, UnitPrice: decimal.NewFromFloat(2.00)},
		},
	})

	// THEN: One over_delivery with expected 10, found 12
	require.False(t, result.OK)
	require.Len(t, result.Discrepancies, 1)
	d := result.Discrepancies[0]
	assert.Equal(t, procure.DiscrepancyOverDelivery, d.Kind)
	assert.Equal(t, "Pens", d.Item)
	assert.True(t, d.Expected.Equal(decimal.NewFromInt(10)))
	assert.True(t, d.Found.Equal(decimal.NewFromInt(12)))
}

func TestReceiptUnderDelivery(t *testing.T) {
	v := procure.NewReceiptValidator(decimal.Zero)
	result := v.Validate(penOrder(), procure.Receipt{
		Items: []procure.ReceiptItem{
			{Name: "Pens", Quantity: 7, UnitPrice: decimal.NewFromFloat(2.00)},
		},
	})
	require.Len(t, result.Discrepancies, 1)
	assert.Equal(t, procure.DiscrepancyUnderDelivery, result.Discrepancies[0].Kind)
}

func TestReceiptPriceMismatchAndTolerance(t *testing.T) {
	receipt := procure.Receipt{
		Items: []procure.ReceiptItem{
			{Name: "Pens", Quantity: 10, UnitPrice: decimal.NewFromFloat(2.05)},
		},
	}

	// WHEN: Zero tolerance
	strict := procure.NewReceiptValidator(decimal.Zero)
	result := strict.Validate(penOrder(), receipt)

	// THEN: price_mismatch
	require.Len(t, result.Discrepancies, 1)
	d := result.Discrepancies[0]
	assert.Equal(t, procure.DiscrepancyPriceMismatch, d.Kind)
	assert.True(t, d.Expected.Equal(decimal.NewFromFloat(2.00)))
	assert.True(t, d.Found.Equal(decimal.NewFromFloat(2.05)))

	// WHEN: Tolerance covers the difference
	lenient := procure.NewReceiptValidator(decimal.NewFromFloat(0.10))
	assert.True(t, lenient.Validate(penOrder(), receipt).OK)

	// Negative tolerance behaves as zero
	weird := procure.NewReceiptValidator(decimal.NewFromInt(-1))
	assert.False(t, weird.Validate(penOrder(), receipt).OK)
}

func TestReceiptMissingAndUnexpectedItems(t *testing.T) {
	// GIVEN: The ordered pens never arrive; staplers do instead
	v := procure.NewReceiptValidator(decimal.Zero)
	result := v.Validate(penOrder(), procure.Receipt{
		Items: []procure.ReceiptItem{
			{Name: "Staplers", Quantity: 2, UnitPrice: decimal.NewFromFloat(7.00)},
		},
	})

	assert.ElementsMatch(t,
		[]procure.DiscrepancyKind{procure.DiscrepancyMissingItem, procure.DiscrepancyUnexpectedItem},
		kinds(result))
}

func TestReceiptAdditionalCharges(t *testing.T) {
	v := procure.NewReceiptValidator(decimal.Zero)
	result := v.Validate(penOrder(), procure.Receipt{
		Items: []procure.ReceiptItem{
			{Name: "Pens", Quantity: 10, UnitPrice: decimal.NewFromFloat(2.00)},
		},
		AdditionalCharges: []procure.ReceiptCharge{
			{Description: "Shipping", Amount: decimal.NewFromFloat(5.00)},
		},
	})

	require.Len(t, result.Discrepancies, 1)
	d := result.Discrepancies[0]
	assert.Equal(t, procure.DiscrepancyAdditionalCharge, d.Kind)
	assert.Equal(t, "Shipping", d.Item)
	assert.True(t, d.Found.Equal(decimal.NewFromFloat(5.00)))
}

func TestReceiptTotalMismatch(t *testing.T) {
	// All lines correct but the stated total is wrong
	v := procure.NewReceiptValidator(decimal.Zero)
	result := v.Validate(penOrder(), procure.Receipt{
		Items: []procure.ReceiptItem{
			{Name: "Pens", Quantity: 10, UnitPrice: decimal.NewFromFloat(2.00)},
		},
		Total: decimal.NewFromFloat(22.00),
	})

	require.Len(t, result.Discrepancies, 1)
	assert.Equal(t, procure.DiscrepancyTotalMismatch, result.Discrepancies[0].Kind)

	// An unstated (zero) total is not a mismatch
	result = v.Validate(penOrder(), procure.Receipt{
		Items: []procure.ReceiptItem{
			{Name: "Pens", Quantity: 10, UnitPrice: decimal.NewFromFloat(2.00)},
		},
	})
	assert.True(t, result.OK)
}

func TestReceiptDuplicateLinesCollapse(t *testing.T) {
	// Two receipt lines for pens sum to the ordered quantity
	v := procure.NewReceiptValidator(decimal.Zero)
	result := v.Validate(penOrder(), procure.Receipt{
		Items: []procure.ReceiptItem{
			{Name: "Pens", Quantity: 6, UnitPrice: decimal.NewFromFloat(2.00)},
			{Name: "pens", Quantity: 4, UnitPrice: decimal.NewFromFloat(2.00)},
		},
	})
	assert.True(t, result.OK)
}

func TestReceiptMultipleDiscrepanciesReported(t *testing.T) {
	// Everything wrong at once: all problems surface in one pass
	v := procure.NewReceiptValidator(decimal.Zero)
	result := v.Validate(penOrder(), procure.Receipt{
		Items: []procure.ReceiptItem{
			{Name: "Pens", Quantity: 12, UnitPrice: decimal.NewFromFloat(2.50)},
			{Name: "Tape", Quantity: 1, UnitPrice: decimal.NewFromFloat(1.00)},
		},
		AdditionalCharges: []procure.ReceiptCharge{
			{Description: "Handling", Amount: decimal.NewFromFloat(3.00)},
		},
		Total: decimal.NewFromFloat(34.00),
	})

	assert.ElementsMatch(t, []procure.DiscrepancyKind{
		procure.DiscrepancyOverDelivery,
		procure.DiscrepancyPriceMismatch,
		procure.DiscrepancyUnexpectedItem,
		procure.DiscrepancyAdditionalCharge,
		procure.DiscrepancyTotalMismatch,
	}, kinds(result))
	assert.Contains(t, result.Summary, "5 discrepancies")
}
