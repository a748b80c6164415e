/*
handlers.go - HTTP API handlers for the procure-to-pay workflow

PURPOSE:
  Exposes the procurement workflow via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/auth/register            Create account, returns token
    POST   /api/auth/login               Returns token
    GET    /api/auth/profile             Caller profile

  Requests:
    POST   /api/requests                 Submit purchase request
    GET    /api/requests                 List (status / mine filters)
    GET    /api/requests/{id}            Request with items and approvals
    PUT    /api/requests/{id}/items      Edit items (owner, pending only)
    POST   /api/requests/{id}/proforma   Attach / extract proforma
    POST   /api/requests/{id}/decisions  Record an approval decision
    GET    /api/requests/{id}/po         Purchase order for the request

  Finance:
    GET    /api/finance/requests         Approved requests
    POST   /api/pos/{number}/receipt/validate  Validate a receipt

  Scenarios:
    GET    /api/scenarios                List demo scenarios
    POST   /api/scenarios/load           Load a demo scenario

ERROR MAPPING:
  validation_error -> 400, permission_denied -> 403, not_found -> 404,
  invalid_state / already_decided / duplicate_po -> 409,
  po_generation_failed -> 502, everything else -> 500. The body carries
  the machine code plus the precondition that failed.

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Bearer-token authentication
  - server.go: Router setup
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nsarob/Save-a-penny/extract"
	"github.com/Nsarob/Save-a-penny/identity"
	"github.com/Nsarob/Save-a-penny/metrics"
	"github.com/Nsarob/Save-a-penny/procure"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter is implemented by stores that can drop all data. Scenario loading
// requires it; everything else works without.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger    *procure.Ledger
	Workflow  *procure.Workflow
	Validator *procure.ReceiptValidator
	Store     procure.TxStore
	Directory *identity.Directory
	Users     identity.Store
	Tokens    *identity.TokenService
	Extractor extract.Extractor // nil when no extraction backend is configured
	Metrics   *metrics.Metrics
	Log       zerolog.Logger

	// Resetter is optional; scenario endpoints fail without it.
	Resetter Resetter

	currentScenario string
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Register creates an account and returns a token for it.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	u, err := h.Directory.Register(r.Context(), identity.Registration{
		Email:      req.Email,
		Name:       req.Name,
		Password:   req.Password,
		Role:       req.Role,
		Department: req.Department,
		Phone:      req.Phone,
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "Email already registered", nil)
			return
		}
		h.writeDomainError(w, err)
		return
	}

	token, err := h.Tokens.Issue(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: toUserDTO(u)})
}

// Login authenticates an account and returns a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	u, err := h.Directory.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Login failed", err)
		return
	}

	token, err := h.Tokens.Issue(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: toUserDTO(u)})
}

// Profile returns the caller's account.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	u, err := h.Directory.Profile(r.Context(), callerID(r))
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "Account not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest creates a purchase request for the caller.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := h.Ledger.Submit(r.Context(), callerID(r), req.Title, req.Description, toDomainItems(req.Items))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Metrics.RequestsSubmitted.Inc()
	writeJSON(w, http.StatusCreated, toRequestDTO(created, nil))
}

// ListRequests lists purchase requests. Query params: status, mine=true.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	var filter procure.RequestFilter

	if s := r.URL.Query().Get("status"); s != "" {
		status, err := procure.ParseStatus(s)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		filter.Status = &status
	}
	if r.URL.Query().Get("mine") == "true" {
		me := callerID(r)
		filter.RequestedBy = &me
	}

	requests, err := h.Ledger.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]RequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req, nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRequest returns one request with its approval history.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := procure.RequestID(chi.URLParam(r, "id"))

	req, err := h.Ledger.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	approvals, err := h.Store.ListApprovals(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestDTO(req, approvals))
}

// EditItems replaces the items of a pending request.
func (h *Handler) EditItems(w http.ResponseWriter, r *http.Request) {
	id := procure.RequestID(chi.URLParam(r, "id"))

	var req EditItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := h.Ledger.EditItems(r.Context(), id, callerID(r), toDomainItems(req.Items))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestDTO(updated, nil))
}

// AttachProforma attaches vendor document data to a request, running the
// extraction service first when raw text is submitted.
func (h *Handler) AttachProforma(w http.ResponseWriter, r *http.Request) {
	id := procure.RequestID(chi.URLParam(r, "id"))

	var req AttachProformaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var proforma procure.Proforma
	switch {
	case req.Text != "":
		if h.Extractor == nil {
			writeError(w, http.StatusNotImplemented, "Document extraction is not configured", nil)
			return
		}
		doc, err := h.Extractor.ExtractProforma(r.Context(), req.Text)
		if err != nil {
			writeError(w, http.StatusBadGateway, "Document extraction failed", err)
			return
		}
		p, err := proformaFromDocument(doc)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		proforma = p
	case req.Proforma != nil:
		proforma = toDomainProforma(*req.Proforma)
	default:
		writeError(w, http.StatusBadRequest, "Either text or proforma is required", nil)
		return
	}

	updated, err := h.Ledger.AttachProforma(r.Context(), id, callerID(r), proforma)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestDTO(updated, nil))
}

// proformaFromDocument converts untrusted extraction output to the domain
// shape. Non-integer quantities are a validation failure, same as any other
// malformed item.
func proformaFromDocument(doc *extract.ProformaDocument) (procure.Proforma, error) {
	items := make([]procure.RequestItem, len(doc.Items))
	for i, it := range doc.Items {
		if !it.Quantity.IsInteger() {
			return procure.Proforma{}, &procure.ValidationError{
				Field:  "items.quantity",
				Reason: fmt.Sprintf("must be a whole number, got %s", it.Quantity),
			}
		}
		items[i] = procure.RequestItem{
			Name:        it.Name,
			Description: it.Description,
			Quantity:    it.Quantity.IntPart(),
			UnitPrice:   it.UnitPrice,
		}
	}
	return procure.Proforma{
		VendorName:    doc.VendorName,
		VendorContact: doc.VendorContact,
		InvoiceNumber: doc.InvoiceNumber,
		Date:          doc.Date,
		Items:         items,
		Subtotal:      doc.Subtotal,
		TaxAmount:     doc.TaxAmount,
		TotalAmount:   doc.TotalAmount,
		PaymentTerms:  doc.PaymentTerms,
		DeliveryTerms: doc.DeliveryTerms,
	}, nil
}

// =============================================================================
// DECISION HANDLERS
// =============================================================================

// Decide records an approval decision on a request.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	id := procure.RequestID(chi.URLParam(r, "id"))

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	level, err := procure.ParseLevel(req.Level)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	decision, err := procure.ParseDecision(req.Decision)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	outcome, err := h.Workflow.Decide(r.Context(), id, level, callerID(r), decision, req.Comment)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Metrics.Decisions.WithLabelValues(strconv.Itoa(int(level)), string(decision)).Inc()
	if outcome.PurchaseOrder != nil {
		h.Metrics.POsGenerated.Inc()
	}

	resp := DecisionResponse{
		Request:  toRequestDTO(outcome.Request, nil),
		Approval: toApprovalDTO(outcome.Approval),
	}
	if outcome.PurchaseOrder != nil {
		po := toPurchaseOrderDTO(outcome.PurchaseOrder)
		resp.PurchaseOrder = &po
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPurchaseOrder returns the purchase order generated for a request.
func (h *Handler) GetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id := procure.RequestID(chi.URLParam(r, "id"))

	po, err := h.Store.GetPOByRequest(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPurchaseOrderDTO(po))
}

// =============================================================================
// FINANCE HANDLERS
// =============================================================================

// ListFinanceRequests returns approved requests for the finance role.
func (h *Handler) ListFinanceRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Ledger.ListForFinance(r.Context(), callerID(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]RequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req, nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ValidateReceipt compares a submitted receipt against a purchase order.
// Finance role only.
func (h *Handler) ValidateReceipt(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	caller := callerID(r)

	role, err := h.Directory.ResolveRole(r.Context(), caller)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := procure.Check(role, caller, procure.ActionViewFinance, nil); err != nil {
		h.writeDomainError(w, err)
		return
	}

	var req ValidateReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Items) == 0 {
		h.writeDomainError(w, &procure.ValidationError{Field: "items", Reason: "at least one item is required"})
		return
	}

	po, err := h.Store.GetPOByNumber(r.Context(), number)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result := h.Validator.Validate(po, toDomainReceipt(req))

	verdict := "ok"
	if !result.OK {
		verdict = "discrepancies"
	}
	h.Metrics.ReceiptValidations.WithLabelValues(verdict).Inc()

	audit := procure.AuditEntry{
		ID:        uuid.NewString(),
		At:        time.Now().UTC(),
		ActorID:   caller,
		Action:    procure.AuditReceiptValidated,
		RequestID: po.RequestID,
		Detail: map[string]any{
			"po_number":     po.Number,
			"ok":            result.OK,
			"discrepancies": len(result.Discrepancies),
		},
	}
	if err := h.Store.AppendAudit(r.Context(), audit); err != nil {
		h.Log.Error().Err(err).Str("po_number", number).Msg("failed to record receipt validation audit")
	}

	h.Log.Info().
		Str("po_number", number).
		Bool("ok", result.OK).
		Int("discrepancies", len(result.Discrepancies)).
		Msg("receipt validated")

	writeJSON(w, http.StatusOK, toValidationResultDTO(result))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps workflow errors to HTTP statuses. The body carries
// the stable machine code plus the precondition that failed.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, procure.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, procure.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, procure.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, procure.ErrAlreadyDecided),
		errors.Is(err, procure.ErrInvalidState),
		errors.Is(err, procure.ErrDuplicatePO):
		status = http.StatusConflict
	case errors.Is(err, procure.ErrPOGenerationFailed):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.Log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: procure.CodeOf(err)})
}
