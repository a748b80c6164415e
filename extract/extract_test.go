/*
extract_test.go - Extraction response parsing

Extraction backends return JSON, sometimes wrapped in markdown fences.
These tests cover the parsing layer; the network side is exercised only
through the Extractor interface with fakes elsewhere.
*/
package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

const proformaJSON = `{
	"vendor_name": "Kigali Office Mart",
	"vendor_contact": "sales@kigaliofficemart.rw",
	"invoice_number": "PF-2031",
	"date": "2026-08-20",
	"items": [
		{"name": "Pens", "description": "Blue ballpoint", "quantity": 10, "unit_price": 2.00, "total": 20.00}
	],
	"subtotal": 20.00,
	"tax_amount": 0,
	"total_amount": 20.00,
	"payment_terms": "Net 30"
}`

func TestParseProformaJSON(t *testing.T) {
	doc, err := ParseProformaJSON([]byte(proformaJSON))
	require.NoError(t, err)

	assert.Equal(t, "Kigali Office Mart", doc.VendorName)
	assert.Equal(t, "PF-2031", doc.InvoiceNumber)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "Pens", doc.Items[0].Name)
	assert.True(t, doc.Items[0].Quantity.Equal(mustDec("10")))
	assert.True(t, doc.Items[0].UnitPrice.Equal(mustDec("2")))
	assert.True(t, doc.TotalAmount.Equal(mustDec("20")))
	assert.Equal(t, "Net 30", doc.PaymentTerms)
}

func TestParseProformaStripsMarkdownFences(t *testing.T) {
	// Chat models wrap JSON in fences despite instructions
	fenced := "```json\n" + proformaJSON + "\n```"
	doc, err := ParseProformaJSON([]byte(fenced))
	require.NoError(t, err)
	assert.Equal(t, "Kigali Office Mart", doc.VendorName)

	// Bare fences without the language tag
	bare := "```\n" + proformaJSON + "\n```"
	doc, err = ParseProformaJSON([]byte(bare))
	require.NoError(t, err)
	assert.Equal(t, "Kigali Office Mart", doc.VendorName)
}

func TestParseProformaBadJSON(t *testing.T) {
	for _, bad := range []string{"", "not json", `{"items": "nope"}`} {
		_, err := ParseProformaJSON([]byte(bad))
		assert.ErrorIs(t, err, ErrExtraction, "input %q", bad)
	}
}

func TestParseReceiptJSON(t *testing.T) {
	data := `{
		"vendor_name": "Kigali Office Mart",
		"receipt_number": "R-5512",
		"items": [
			{"name": "Pens", "quantity": 12, "unit_price": 2.00}
		],
		"total_amount": 24.00,
		"additional_charges": [
			{"description": "Shipping", "amount": 5.00}
		]
	}`

	doc, err := ParseReceiptJSON([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "R-5512", doc.ReceiptNumber)
	require.Len(t, doc.Items, 1)
	assert.True(t, doc.Items[0].Quantity.Equal(mustDec("12")))
	require.Len(t, doc.AdditionalCharges, 1)
	assert.Equal(t, "Shipping", doc.AdditionalCharges[0].Description)
	assert.True(t, doc.AdditionalCharges[0].Amount.Equal(mustDec("5")))
}

func TestParseReceiptBadJSON(t *testing.T) {
	_, err := ParseReceiptJSON([]byte("```json\n{broken\n```"))
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestFractionalQuantitiesSurviveParsing(t *testing.T) {
	// Sloppy extraction output like "2.5" must parse here; the domain
	// boundary decides whether to reject it
	data := `{"items": [{"name": "Boxes", "quantity": 2.5, "unit_price": 1.00}]}`
	doc, err := ParseProformaJSON([]byte(data))
	require.NoError(t, err)
	assert.True(t, doc.Items[0].Quantity.Equal(mustDec("2.5")))
}
