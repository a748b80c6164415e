/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Prices and totals travel as decimal strings ("12.50"), never floats.
  decimal.Decimal accepts both quoted and bare numbers on input.

VALIDATION:
  Structural validation (missing fields, bad JSON) happens in handlers;
  domain validation (quantities, prices, roles) happens in the procure
  package and surfaces through the shared error mapping.

SEE ALSO:
  - handlers.go: Uses these types
  - procure/types.go: The domain model behind them
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Nsarob/Save-a-penny/identity"
	"github.com/Nsarob/Save-a-penny/procure"
)

// =============================================================================
// AUTH
// =============================================================================

// RegisterRequest creates an account. Role is one of the workflow roles.
type RegisterRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// LoginRequest authenticates an account.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserDTO represents an account in API responses. No credential fields.
type UserDTO struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Phone      string `json:"phone,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// =============================================================================
// PURCHASE REQUESTS
// =============================================================================

// ItemDTO is one request line in either direction.
type ItemDTO struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// SubmitRequestRequest creates a purchase request.
type SubmitRequestRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Items       []ItemDTO `json:"items"`
}

// EditItemsRequest replaces the items of a pending request.
type EditItemsRequest struct {
	Items []ItemDTO `json:"items"`
}

// ApprovalDTO is one recorded decision.
type ApprovalDTO struct {
	Level     int    `json:"level"`
	Decision  string `json:"decision"`
	DecidedBy string `json:"decided_by"`
	Comment   string `json:"comment,omitempty"`
	DecidedAt string `json:"decided_at"`
}

// ProformaDTO is the attached vendor document metadata.
type ProformaDTO struct {
	VendorName    string          `json:"vendor_name"`
	VendorContact string          `json:"vendor_contact,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	Date          string          `json:"date,omitempty"`
	Items         []ItemDTO       `json:"items,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentTerms  string          `json:"payment_terms,omitempty"`
	DeliveryTerms string          `json:"delivery_terms,omitempty"`
}

// AttachProformaRequest carries either raw document text to run through
// extraction, or already-structured proforma data. Exactly one is used;
// text wins when both are present.
type AttachProformaRequest struct {
	Text     string       `json:"text,omitempty"`
	Proforma *ProformaDTO `json:"proforma,omitempty"`
}

// RequestDTO represents a purchase request in API responses.
type RequestDTO struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	RequestedBy string          `json:"requested_by"`
	Status      string          `json:"status"`
	Items       []ItemDTO       `json:"items"`
	Total       decimal.Decimal `json:"total"`
	Proforma    *ProformaDTO    `json:"proforma,omitempty"`
	Approvals   []ApprovalDTO   `json:"approvals,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	ApprovedAt  string          `json:"approved_at,omitempty"`
	RejectedAt  string          `json:"rejected_at,omitempty"`
}

// DecisionRequest records an approval decision.
type DecisionRequest struct {
	Level    int    `json:"level"`
	Decision string `json:"decision"`
	Comment  string `json:"comment,omitempty"`
}

// DecisionResponse reports the decision outcome.
type DecisionResponse struct {
	Request       RequestDTO        `json:"request"`
	Approval      ApprovalDTO       `json:"approval"`
	PurchaseOrder *PurchaseOrderDTO `json:"purchase_order,omitempty"`
}

// =============================================================================
// PURCHASE ORDERS AND RECEIPTS
// =============================================================================

// PurchaseOrderDTO represents a generated purchase order.
type PurchaseOrderDTO struct {
	ID            string          `json:"id"`
	Number        string          `json:"po_number"`
	RequestID     string          `json:"request_id"`
	Buyer         string          `json:"buyer"`
	VendorName    string          `json:"vendor_name,omitempty"`
	VendorContact string          `json:"vendor_contact,omitempty"`
	Items         []ItemDTO       `json:"items"`
	Total         decimal.Decimal `json:"total"`
	IssuedAt      string          `json:"issued_at"`
}

// ReceiptItemDTO is one delivered line as stated on a receipt.
type ReceiptItemDTO struct {
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ReceiptChargeDTO is a receipt-level charge with no order line.
type ReceiptChargeDTO struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// ValidateReceiptRequest submits a receipt for validation against a
// purchase order.
type ValidateReceiptRequest struct {
	VendorName        string             `json:"vendor_name,omitempty"`
	ReceiptNumber     string             `json:"receipt_number,omitempty"`
	Items             []ReceiptItemDTO   `json:"items"`
	AdditionalCharges []ReceiptChargeDTO `json:"additional_charges,omitempty"`
	Total             decimal.Decimal    `json:"total"`
}

// DiscrepancyDTO is one difference between order and receipt.
type DiscrepancyDTO struct {
	Kind     string          `json:"kind"`
	Item     string          `json:"item"`
	Expected decimal.Decimal `json:"expected"`
	Found    decimal.Decimal `json:"found"`
	Detail   string          `json:"detail,omitempty"`
}

// ValidationResultDTO is the full receipt validation outcome.
type ValidationResultDTO struct {
	PONumber      string           `json:"po_number"`
	OK            bool             `json:"ok"`
	Discrepancies []DiscrepancyDTO `json:"discrepancies"`
	Summary       string           `json:"summary"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toUserDTO(u *identity.User) UserDTO {
	return UserDTO{
		ID:         string(u.ID),
		Email:      u.Email,
		Name:       u.Name,
		Role:       string(u.Role),
		Department: u.Department,
		Phone:      u.Phone,
		CreatedAt:  u.CreatedAt.Format(time.RFC3339),
	}
}

func toDomainItems(items []ItemDTO) []procure.RequestItem {
	out := make([]procure.RequestItem, len(items))
	for i, it := range items {
		out[i] = procure.RequestItem{
			Name:        it.Name,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return out
}

func toItemDTOs(items []procure.RequestItem) []ItemDTO {
	out := make([]ItemDTO, len(items))
	for i, it := range items {
		out[i] = ItemDTO{
			Name:        it.Name,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return out
}

func toRequestDTO(req *procure.PurchaseRequest, approvals []procure.Approval) RequestDTO {
	dto := RequestDTO{
		ID:          string(req.ID),
		Title:       req.Title,
		Description: req.Description,
		RequestedBy: string(req.RequestedBy),
		Status:      string(req.Status),
		Items:       toItemDTOs(req.Items),
		Total:       req.Total,
		CreatedAt:   req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   req.UpdatedAt.Format(time.RFC3339),
	}
	if req.ApprovedAt != nil {
		dto.ApprovedAt = req.ApprovedAt.Format(time.RFC3339)
	}
	if req.RejectedAt != nil {
		dto.RejectedAt = req.RejectedAt.Format(time.RFC3339)
	}
	if req.Proforma != nil {
		p := toProformaDTO(req.Proforma)
		dto.Proforma = &p
	}
	for _, a := range approvals {
		dto.Approvals = append(dto.Approvals, toApprovalDTO(a))
	}
	return dto
}

func toApprovalDTO(a procure.Approval) ApprovalDTO {
	return ApprovalDTO{
		Level:     int(a.Level),
		Decision:  string(a.Decision),
		DecidedBy: string(a.DecidedBy),
		Comment:   a.Comment,
		DecidedAt: a.DecidedAt.Format(time.RFC3339),
	}
}

func toProformaDTO(p *procure.Proforma) ProformaDTO {
	return ProformaDTO{
		VendorName:    p.VendorName,
		VendorContact: p.VendorContact,
		InvoiceNumber: p.InvoiceNumber,
		Date:          p.Date,
		Items:         toItemDTOs(p.Items),
		Subtotal:      p.Subtotal,
		TaxAmount:     p.TaxAmount,
		TotalAmount:   p.TotalAmount,
		PaymentTerms:  p.PaymentTerms,
		DeliveryTerms: p.DeliveryTerms,
	}
}

func toDomainProforma(p ProformaDTO) procure.Proforma {
	return procure.Proforma{
		VendorName:    p.VendorName,
		VendorContact: p.VendorContact,
		InvoiceNumber: p.InvoiceNumber,
		Date:          p.Date,
		Items:         toDomainItems(p.Items),
		Subtotal:      p.Subtotal,
		TaxAmount:     p.TaxAmount,
		TotalAmount:   p.TotalAmount,
		PaymentTerms:  p.PaymentTerms,
		DeliveryTerms: p.DeliveryTerms,
	}
}

func toPurchaseOrderDTO(po *procure.PurchaseOrder) PurchaseOrderDTO {
	items := make([]ItemDTO, len(po.Items))
	for i, it := range po.Items {
		items[i] = ItemDTO{
			Name:        it.Name,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return PurchaseOrderDTO{
		ID:            string(po.ID),
		Number:        po.Number,
		RequestID:     string(po.RequestID),
		Buyer:         po.Buyer,
		VendorName:    po.VendorName,
		VendorContact: po.VendorContact,
		Items:         items,
		Total:         po.Total,
		IssuedAt:      po.IssuedAt.Format(time.RFC3339),
	}
}

func toDomainReceipt(req ValidateReceiptRequest) procure.Receipt {
	items := make([]procure.ReceiptItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = procure.ReceiptItem{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	charges := make([]procure.ReceiptCharge, len(req.AdditionalCharges))
	for i, c := range req.AdditionalCharges {
		charges[i] = procure.ReceiptCharge{Description: c.Description, Amount: c.Amount}
	}
	return procure.Receipt{
		VendorName:        req.VendorName,
		Number:            req.ReceiptNumber,
		Items:             items,
		AdditionalCharges: charges,
		Total:             req.Total,
	}
}

func toValidationResultDTO(res procure.ValidationResult) ValidationResultDTO {
	dto := ValidationResultDTO{
		PONumber:      res.PONumber,
		OK:            res.OK,
		Discrepancies: make([]DiscrepancyDTO, len(res.Discrepancies)),
		Summary:       res.Summary,
	}
	for i, d := range res.Discrepancies {
		dto.Discrepancies[i] = DiscrepancyDTO{
			Kind:     string(d.Kind),
			Item:     d.Item,
			Expected: d.Expected,
			Found:    d.Found,
			Detail:   d.Detail,
		}
	}
	return dto
}
