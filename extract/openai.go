/*
openai.go - Chat-completion document extraction

PURPOSE:
  Implements Extractor against the OpenAI chat completion API. Low
  temperature, JSON-object response format, one prompt per document kind.
  The model is asked for specific keys; anything missing comes back null
  and decodes to a zero value.
*/
package extract

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const defaultModel = openai.GPT4oMini

const proformaSystemPrompt = "You are a document processing assistant that extracts structured data " +
	"from invoices and quotations. Always return valid JSON."

const proformaPrompt = `Extract the following information from this proforma invoice/quotation:

1. Vendor name and contact details
2. Invoice/Quote number
3. Date
4. List of items with descriptions, quantities, unit prices, and totals
5. Subtotal, tax, and total amount
6. Payment terms
7. Delivery terms

Proforma text:
%s

Return the data as a JSON object with these keys:
- vendor_name
- vendor_contact (single string combining email, phone, address)
- invoice_number
- date
- items (array of objects with: name, description, quantity, unit_price, total)
- subtotal
- tax_amount
- total_amount
- payment_terms
- delivery_terms

If any field is not found, use null.`

const receiptSystemPrompt = "You are a document processing assistant that extracts structured data " +
	"from delivery receipts. Always return valid JSON."

const receiptPrompt = `Extract the following information from this delivery receipt:

1. Vendor name
2. Receipt number
3. Date
4. List of received items with quantities and unit prices
5. Total amount
6. Any charges that are not item lines (shipping, handling, fees)

Receipt text:
%s

Return the data as a JSON object with these keys:
- vendor_name
- receipt_number
- date
- items (array of objects with: name, description, quantity, unit_price, total)
- total_amount
- additional_charges (array of objects with: description, amount)

If any field is not found, use null.`

// OpenAIExtractor implements Extractor with OpenAI chat completions.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
}

// NewOpenAIExtractor builds an extractor for the given API key. Model may be
// empty to use the default.
func NewOpenAIExtractor(apiKey, model string) *OpenAIExtractor {
	if model == "" {
		model = defaultModel
	}
	return &OpenAIExtractor{client: openai.NewClient(apiKey), model: model}
}

func (e *OpenAIExtractor) ExtractProforma(ctx context.Context, text string) (*ProformaDocument, error) {
	content, err := e.complete(ctx, proformaSystemPrompt, fmt.Sprintf(proformaPrompt, text))
	if err != nil {
		return nil, err
	}
	return ParseProformaJSON([]byte(content))
}

func (e *OpenAIExtractor) ExtractReceipt(ctx context.Context, text string) (*ReceiptDocument, error) {
	content, err := e.complete(ctx, receiptSystemPrompt, fmt.Sprintf(receiptPrompt, text))
	if err != nil {
		return nil, err
	}
	return ParseReceiptJSON([]byte(content))
}

func (e *OpenAIExtractor) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %v: %w", err, ErrExtraction)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices: %w", ErrExtraction)
	}
	return resp.Choices[0].Message.Content, nil
}
