/*
Package extract turns vendor document text into structured data.

PURPOSE:
  Proformas and receipts arrive as unstructured text (scans, PDFs, emails).
  This package defines the extraction contract the API consumes and the
  document shapes extraction produces. Everything here is UNTRUSTED input
  to the rest of the system: the workflow core re-validates all extracted
  line items before accepting them.

IMPLEMENTATIONS:
  - openai.go: Chat-completion extraction with JSON-mode responses
  Tests use small fakes; nothing in the core depends on which
  implementation is wired.

NUMBERS:
  Quantities and prices are decoded as decimals, not ints, because
  extraction output is sloppy ("2.0" boxes). The conversion to whole
  quantities happens at the domain boundary, where non-integers are
  rejected with a validation error.
*/
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrExtraction wraps every extraction failure: upstream API errors and
// unparseable responses alike.
var ErrExtraction = errors.New("document extraction failed")

// Extractor produces structured documents from raw text.
type Extractor interface {
	ExtractProforma(ctx context.Context, text string) (*ProformaDocument, error)
	ExtractReceipt(ctx context.Context, text string) (*ReceiptDocument, error)
}

// =============================================================================
// DOCUMENT SHAPES
// =============================================================================

// LineItem is one extracted item line.
type LineItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// ProformaDocument is the structured content of a proforma invoice or
// quotation.
type ProformaDocument struct {
	VendorName    string          `json:"vendor_name"`
	VendorContact string          `json:"vendor_contact"`
	InvoiceNumber string          `json:"invoice_number"`
	Date          string          `json:"date"`
	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentTerms  string          `json:"payment_terms"`
	DeliveryTerms string          `json:"delivery_terms"`
}

// ReceiptCharge is a receipt-level charge with no item line.
type ReceiptCharge struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// ReceiptDocument is the structured content of a delivery receipt.
type ReceiptDocument struct {
	VendorName        string          `json:"vendor_name"`
	ReceiptNumber     string          `json:"receipt_number"`
	Date              string          `json:"date"`
	Items             []LineItem      `json:"items"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	AdditionalCharges []ReceiptCharge `json:"additional_charges"`
}

// =============================================================================
// RESPONSE PARSING
// =============================================================================

// ParseProformaJSON decodes an extraction response body into a proforma
// document. Markdown code fences around the JSON are tolerated.
func ParseProformaJSON(data []byte) (*ProformaDocument, error) {
	var doc ProformaDocument
	if err := json.Unmarshal(stripFences(data), &doc); err != nil {
		return nil, fmt.Errorf("parse proforma response: %v: %w", err, ErrExtraction)
	}
	return &doc, nil
}

// ParseReceiptJSON decodes an extraction response body into a receipt
// document.
func ParseReceiptJSON(data []byte) (*ReceiptDocument, error) {
	var doc ReceiptDocument
	if err := json.Unmarshal(stripFences(data), &doc); err != nil {
		return nil, fmt.Errorf("parse receipt response: %v: %w", err, ErrExtraction)
	}
	return &doc, nil
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte("```")) {
		return trimmed
	}
	trimmed = bytes.TrimPrefix(trimmed, []byte("```json"))
	trimmed = bytes.TrimPrefix(trimmed, []byte("```"))
	trimmed = bytes.TrimSuffix(bytes.TrimSpace(trimmed), []byte("```"))
	return bytes.TrimSpace(trimmed)
}
