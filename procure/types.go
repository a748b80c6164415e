/*
Package procure implements the procure-to-pay workflow core.

PURPOSE:
  This package contains the domain types and services that carry a purchase
  request from submission through two approval levels to purchase order
  generation and receipt validation. It owns the state machine, the
  authorization rules, and the money arithmetic; everything else (HTTP,
  persistence, document extraction, user identity) plugs in around it.

KEY CONCEPTS IN THIS FILE (types.go):
  - PurchaseRequest: A staff purchase request with its line items
  - RequestItem: A single line (name, quantity, unit price)
  - Approval: An immutable record of one level-1 or level-2 decision
  - PurchaseOrder: The document generated when level 2 approves
  - Role/Action: The authorization vocabulary
  - Typed IDs: RequestID, ApprovalID, POID, UserID

DESIGN PRINCIPLES:
  1. Derived money: totals are always recomputed from items, never stored
     independently of them
  2. Precision: decimal.Decimal for all prices, no floats
  3. Immutability: approvals and purchase orders are written once
  4. Closed enums: statuses, roles, decisions and levels reject unknown values
     at the boundary via Parse functions

SEE ALSO:
  - ledger.go: Request lifecycle (submit, edit, list)
  - workflow.go: The two-level approval state machine
  - po.go: Purchase order generation
  - receipt.go: Receipt validation against a purchase order
*/
package procure

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RequestID string
type ItemID string
type ApprovalID string
type POID string
type UserID string

func NewRequestID() RequestID   { return RequestID(uuid.NewString()) }
func NewItemID() ItemID         { return ItemID(uuid.NewString()) }
func NewApprovalID() ApprovalID { return ApprovalID(uuid.NewString()) }
func NewPOID() POID             { return POID(uuid.NewString()) }
func NewUserID() UserID         { return UserID(uuid.NewString()) }

// =============================================================================
// ROLES AND ACTIONS - Authorization vocabulary
// =============================================================================

// Role is the workflow role attached to an identity. Roles are resolved by a
// RoleResolver; this package never stores role assignments itself.
type Role string

const (
	RoleStaff      Role = "staff"
	RoleApproverL1 Role = "approver_level_1"
	RoleApproverL2 Role = "approver_level_2"
	RoleFinance    Role = "finance"
)

// ParseRole validates a role string. Unknown roles are rejected so a typo in
// a registration payload cannot mint an unprivileged-but-unknown role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStaff, RoleApproverL1, RoleApproverL2, RoleFinance:
		return Role(s), nil
	}
	return "", &ValidationError{Field: "role", Reason: "unknown role: " + s}
}

// Action names an operation that can be authorized.
type Action string

const (
	ActionCreateRequest Action = "create_request"
	ActionEditRequest   Action = "edit_request"
	ActionDecideLevel1  Action = "decide_level1"
	ActionDecideLevel2  Action = "decide_level2"
	ActionViewFinance   Action = "view_finance"
)

// RoleResolver maps an identity to its workflow role. Implemented by the
// identity directory; tests use a map-backed resolver.
type RoleResolver interface {
	ResolveRole(ctx context.Context, id UserID) (Role, error)
}

// =============================================================================
// REQUEST STATUS - The state machine vocabulary
// =============================================================================

type RequestStatus string

const (
	StatusPendingLevel1 RequestStatus = "pending_level_1"
	StatusPendingLevel2 RequestStatus = "pending_level_2"
	StatusApproved      RequestStatus = "approved"
	StatusRejected      RequestStatus = "rejected"
)

func ParseStatus(s string) (RequestStatus, error) {
	switch RequestStatus(s) {
	case StatusPendingLevel1, StatusPendingLevel2, StatusApproved, StatusRejected:
		return RequestStatus(s), nil
	}
	return "", &ValidationError{Field: "status", Reason: "unknown status: " + s}
}

// Terminal reports whether no further decisions are possible.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// =============================================================================
// APPROVAL LEVELS AND DECISIONS
// =============================================================================

type ApprovalLevel int

const (
	Level1 ApprovalLevel = 1
	Level2 ApprovalLevel = 2
)

func ParseLevel(n int) (ApprovalLevel, error) {
	switch ApprovalLevel(n) {
	case Level1, Level2:
		return ApprovalLevel(n), nil
	}
	return 0, &ValidationError{Field: "level", Reason: "approval level must be 1 or 2"}
}

// Action returns the authorization action for deciding at this level.
func (l ApprovalLevel) Action() Action {
	if l == Level2 {
		return ActionDecideLevel2
	}
	return ActionDecideLevel1
}

// PendingStatus returns the request status in which this level may decide.
func (l ApprovalLevel) PendingStatus() RequestStatus {
	if l == Level2 {
		return StatusPendingLevel2
	}
	return StatusPendingLevel1
}

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApproved, DecisionRejected:
		return Decision(s), nil
	}
	return "", &ValidationError{Field: "decision", Reason: "decision must be approved or rejected"}
}

// =============================================================================
// PURCHASE REQUEST
// =============================================================================

// RequestItem is one line of a purchase request.
type RequestItem struct {
	ID          ItemID
	Name        string
	Description string
	Quantity    int64
	UnitPrice   decimal.Decimal
}

// LineTotal is quantity times unit price.
func (it RequestItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))
}

// ItemsTotal sums the line totals of a set of items.
func ItemsTotal(items []RequestItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// PurchaseRequest is a staff purchase request moving through the approval
// pipeline. Items carry the money; Total is derived from them on every write.
type PurchaseRequest struct {
	ID          RequestID
	Title       string
	Description string
	RequestedBy UserID
	Status      RequestStatus
	Items       []RequestItem
	Total       decimal.Decimal
	Proforma    *Proforma

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ApprovedAt *time.Time
	RejectedAt *time.Time
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate persisted state through a shared pointer.
func (r *PurchaseRequest) Clone() *PurchaseRequest {
	if r == nil {
		return nil
	}
	out := *r
	out.Items = append([]RequestItem(nil), r.Items...)
	if r.Proforma != nil {
		p := *r.Proforma
		p.Items = append([]RequestItem(nil), r.Proforma.Items...)
		out.Proforma = &p
	}
	if r.ApprovedAt != nil {
		t := *r.ApprovedAt
		out.ApprovedAt = &t
	}
	if r.RejectedAt != nil {
		t := *r.RejectedAt
		out.RejectedAt = &t
	}
	return &out
}

// =============================================================================
// PROFORMA - Vendor document metadata attached to a request
// =============================================================================

// Proforma holds the structured content of a vendor proforma invoice as
// extracted by the document pipeline. Extraction output is untrusted input:
// the ledger validates Items with the same rules as manually entered items
// before an attach is accepted.
type Proforma struct {
	VendorName    string
	VendorContact string
	InvoiceNumber string
	Date          string
	Items         []RequestItem
	Subtotal      decimal.Decimal
	TaxAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	PaymentTerms  string
	DeliveryTerms string
	AttachedAt    time.Time
}

// =============================================================================
// APPROVAL - Immutable decision record
// =============================================================================

// Approval records one decision at one level. Approvals are append-only; the
// store enforces at most one per (request, level).
type Approval struct {
	ID        ApprovalID
	RequestID RequestID
	Level     ApprovalLevel
	Decision  Decision
	DecidedBy UserID
	Comment   string
	DecidedAt time.Time
}

// =============================================================================
// PURCHASE ORDER
// =============================================================================

// BuyerName appears on every generated purchase order.
const BuyerName = "Save-a-Penny Procurement"

// POItem is a request line snapshotted into a purchase order at generation
// time. Issued orders never track later request state.
type POItem struct {
	Name        string
	Description string
	Quantity    int64
	UnitPrice   decimal.Decimal
}

func (it POItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))
}

// PurchaseOrder is generated exactly once per request, when level 2 approves.
type PurchaseOrder struct {
	ID            POID
	Number        string
	RequestID     RequestID
	Buyer         string
	VendorName    string
	VendorContact string
	Items         []POItem
	Total         decimal.Decimal
	IssuedAt      time.Time
}

func (po *PurchaseOrder) Clone() *PurchaseOrder {
	if po == nil {
		return nil
	}
	out := *po
	out.Items = append([]POItem(nil), po.Items...)
	return &out
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

type AuditAction string

const (
	AuditRequestSubmitted AuditAction = "request_submitted"
	AuditRequestEdited    AuditAction = "request_edited"
	AuditProformaAttached AuditAction = "proforma_attached"
	AuditLevel1Approved   AuditAction = "level1_approved"
	AuditLevel1Rejected   AuditAction = "level1_rejected"
	AuditLevel2Approved   AuditAction = "level2_approved"
	AuditLevel2Rejected   AuditAction = "level2_rejected"
	AuditPOGenerated      AuditAction = "po_generated"
	AuditReceiptValidated AuditAction = "receipt_validated"
)

// AuditEntry records who did what to which request. Append-only.
type AuditEntry struct {
	ID        string
	At        time.Time
	ActorID   UserID
	Action    AuditAction
	RequestID RequestID
	Detail    map[string]any
}

// =============================================================================
// HELPERS
// =============================================================================

// NormalizeItemName is the key under which receipt lines are matched against
// purchase order lines.
func NormalizeItemName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MustDecimal parses a decimal string, returning zero on failure. Only for
// values that were written by this system (database round-trips, fixtures).
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
