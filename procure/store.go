/*
store.go - Persistence interface for requests, approvals, and purchase orders

PURPOSE:
  Defines the interface between the workflow core and the database.
  Implementations: store/sqlite (production) and procure/store (in-memory,
  tests and dev).

KEY INTERFACES:
  Store:   All reads and writes for one logical procurement database
  TxStore: Store plus WithTx for atomic multi-write operations

APPEND-ONLY TABLES:
  Approvals and audit entries are append-only: the interface exposes no
  update or delete for them. A wrong decision is corrected by process
  (a new request), never by editing history.

UNIQUENESS CONTRACT:
  Implementations must enforce:
  - at most one approval per (request, level)  -> ErrAlreadyDecided
  - at most one purchase order per request     -> ErrDuplicatePO
  - globally unique purchase order numbers     -> ErrDuplicatePO
  These constraints are the correctness backstop when two processes race
  on the same request; the mutex in each implementation only serializes
  within a single process.

STATUS CAS:
  UpdateStatus performs a compare-and-swap on the request status. If the
  stored status no longer equals `from`, the update must not apply and a
  StateError is returned. Combined with WithTx this makes the decide
  operation all-or-nothing: approval row, status transition, and purchase
  order either all commit or none do.

SEE ALSO:
  - procure/store/memory.go: In-memory implementation
  - store/sqlite/sqlite.go: SQLite implementation
  - workflow.go: The transactional consumer of this contract
*/
package procure

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FILTERS
// =============================================================================

// RequestFilter narrows ListRequests. Nil fields match everything.
type RequestFilter struct {
	Status      *RequestStatus
	RequestedBy *UserID
}

// AuditFilter narrows QueryAudit. Nil/empty fields match everything.
type AuditFilter struct {
	RequestID *RequestID
	ActorID   *UserID
	Actions   []AuditAction
}

// =============================================================================
// STORE
// =============================================================================

// Store is the persistence contract for the procurement workflow.
// Returned requests and purchase orders are defensive copies.
type Store interface {
	// --- Purchase requests ---

	// CreateRequest persists a new request with its items.
	CreateRequest(ctx context.Context, req *PurchaseRequest) error

	// GetRequest returns the request with items and proforma, or ErrNotFound.
	GetRequest(ctx context.Context, id RequestID) (*PurchaseRequest, error)

	// ListRequests returns requests matching the filter, newest first.
	ListRequests(ctx context.Context, filter RequestFilter) ([]*PurchaseRequest, error)

	// ReplaceItems swaps the item set and total of a request.
	// The caller has already validated items and recomputed the total.
	ReplaceItems(ctx context.Context, id RequestID, items []RequestItem, total decimal.Decimal) error

	// SaveProforma attaches extracted proforma metadata to a request.
	SaveProforma(ctx context.Context, id RequestID, p *Proforma) error

	// UpdateStatus transitions id from `from` to `to` iff the stored status
	// still equals `from`. Returns ErrNotFound if the request is missing and
	// a StateError (ErrInvalidState) if the status moved underneath us.
	// Entering a terminal status stamps ApprovedAt/RejectedAt.
	UpdateStatus(ctx context.Context, id RequestID, from, to RequestStatus) error

	// --- Approvals (append-only) ---

	// AppendApproval records a decision. Returns an AlreadyDecidedError
	// (ErrAlreadyDecided) if a decision exists for (request, level).
	AppendApproval(ctx context.Context, a Approval) error

	// GetApproval returns the decision at one level, or ErrNotFound.
	GetApproval(ctx context.Context, id RequestID, level ApprovalLevel) (*Approval, error)

	// ListApprovals returns all decisions for a request, ordered by level.
	ListApprovals(ctx context.Context, id RequestID) ([]Approval, error)

	// --- Purchase orders ---

	// CreatePO persists a purchase order. Returns ErrDuplicatePO if the
	// request already has one or the number is taken.
	CreatePO(ctx context.Context, po *PurchaseOrder) error

	// GetPOByRequest returns the order for a request, or ErrNotFound.
	GetPOByRequest(ctx context.Context, id RequestID) (*PurchaseOrder, error)

	// GetPOByNumber returns the order with the given number, or ErrNotFound.
	GetPOByNumber(ctx context.Context, number string) (*PurchaseOrder, error)

	// NextPOSequence allocates the next value of the process-wide purchase
	// order sequence. Values are unique and strictly increasing; gaps from
	// rolled-back allocations are fine.
	NextPOSequence(ctx context.Context) (int64, error)

	// --- Audit trail (append-only) ---

	AppendAudit(ctx context.Context, e AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn against a transactional view of the store.
	// If fn returns an error the transaction is rolled back and the error
	// is returned unchanged; otherwise the transaction commits.
	WithTx(ctx context.Context, fn func(Store) error) error
}
