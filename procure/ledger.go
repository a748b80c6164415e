/*
ledger.go - Purchase request lifecycle

PURPOSE:
  Owns the system of record for purchase requests: submission, item edits,
  proforma attachment, and the read paths (including the finance view).
  Decisions live in workflow.go; this file never changes a request's status.

REQUEST FLOW:

  Staff submits ──▶ pending_level_1 ──▶ (workflow.go takes over)
       │                  ▲
       │   edit items /   │
       └── attach proforma┘   (only while pending_level_1, only the requester)

VALIDATION:
  Items are validated identically everywhere they enter the system, whether
  typed by staff or extracted from a vendor document:
  - at least one item on submit/edit
  - non-empty name
  - quantity > 0
  - unit price >= 0
  The stored total is always recomputed from the validated items.

ATOMICITY:
  Every mutation runs in a store transaction together with its audit entry.
  Authorization is checked before the transaction opens; role resolution
  never runs inside one.

SEE ALSO:
  - authz.go: Permission checks applied before every mutation
  - workflow.go: Status transitions
*/
package procure

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Ledger manages purchase requests up to (but excluding) approval decisions.
type Ledger struct {
	store TxStore
	authz *Authorizer
	log   zerolog.Logger
}

func NewLedger(store TxStore, authz *Authorizer, log zerolog.Logger) *Ledger {
	return &Ledger{store: store, authz: authz, log: log}
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit creates a new purchase request in pending_level_1.
// Only staff may submit; the caller becomes the requester.
func (l *Ledger) Submit(ctx context.Context, requester UserID, title, description string, items []RequestItem) (*PurchaseRequest, error) {
	if err := l.authz.Authorize(ctx, requester, ActionCreateRequest, nil); err != nil {
		return nil, err
	}
	if title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	req := &PurchaseRequest{
		ID:          NewRequestID(),
		Title:       title,
		Description: description,
		RequestedBy: requester,
		Status:      StatusPendingLevel1,
		Items:       withItemIDs(items),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	req.Total = ItemsTotal(req.Items)

	err := l.store.WithTx(ctx, func(tx Store) error {
		if err := tx.CreateRequest(ctx, req); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		return tx.AppendAudit(ctx, newAuditEntry(requester, AuditRequestSubmitted, req.ID, map[string]any{
			"title": title,
			"items": len(req.Items),
			"total": req.Total.String(),
		}))
	})
	if err != nil {
		return nil, err
	}

	l.log.Info().
		Str("request_id", string(req.ID)).
		Str("requested_by", string(requester)).
		Str("total", req.Total.String()).
		Msg("purchase request submitted")

	return req, nil
}

// =============================================================================
// EDITING
// =============================================================================

// EditItems replaces the item set of a request and recomputes its total.
// Only the requester may edit, and only while the request is pending_level_1.
func (l *Ledger) EditItems(ctx context.Context, id RequestID, requester UserID, items []RequestItem) (*PurchaseRequest, error) {
	// Role resolution can read the same store that backs the transaction, so
	// authorization runs before it opens. The in-tx status check still guards
	// against a decision landing in between.
	req, err := l.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.authz.Authorize(ctx, requester, ActionEditRequest, req); err != nil {
		return nil, err
	}

	var updated *PurchaseRequest
	err = l.store.WithTx(ctx, func(tx Store) error {
		req, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusPendingLevel1 {
			return &StateError{RequestID: id, Status: req.Status, Operation: "edit"}
		}
		if err := validateItems(items); err != nil {
			return err
		}

		next := withItemIDs(items)
		total := ItemsTotal(next)
		if err := tx.ReplaceItems(ctx, id, next, total); err != nil {
			return fmt.Errorf("failed to replace items: %w", err)
		}
		if err := tx.AppendAudit(ctx, newAuditEntry(requester, AuditRequestEdited, id, map[string]any{
			"items": len(next),
			"total": total.String(),
		})); err != nil {
			return err
		}

		updated, err = tx.GetRequest(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.log.Info().
		Str("request_id", string(id)).
		Str("total", updated.Total.String()).
		Msg("purchase request items edited")

	return updated, nil
}

// AttachProforma stores extracted vendor document metadata on a request.
// Same permissions and status window as EditItems. Extracted line items are
// untrusted and validated like manual input, though they do not replace the
// request's items.
func (l *Ledger) AttachProforma(ctx context.Context, id RequestID, requester UserID, p Proforma) (*PurchaseRequest, error) {
	// Same pre-transaction authorization as EditItems, for the same reason.
	req, err := l.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.authz.Authorize(ctx, requester, ActionEditRequest, req); err != nil {
		return nil, err
	}

	var updated *PurchaseRequest
	err = l.store.WithTx(ctx, func(tx Store) error {
		req, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusPendingLevel1 {
			return &StateError{RequestID: id, Status: req.Status, Operation: "attach proforma to"}
		}
		for _, it := range p.Items {
			if err := validateItemFields(it); err != nil {
				return err
			}
		}

		p.AttachedAt = time.Now().UTC()
		if err := tx.SaveProforma(ctx, id, &p); err != nil {
			return fmt.Errorf("failed to save proforma: %w", err)
		}
		if err := tx.AppendAudit(ctx, newAuditEntry(requester, AuditProformaAttached, id, map[string]any{
			"vendor":  p.VendorName,
			"invoice": p.InvoiceNumber,
			"items":   len(p.Items),
		})); err != nil {
			return err
		}

		updated, err = tx.GetRequest(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.log.Info().
		Str("request_id", string(id)).
		Str("vendor", p.VendorName).
		Msg("proforma attached")

	return updated, nil
}

// =============================================================================
// READS
// =============================================================================

// Get returns a request by ID.
func (l *Ledger) Get(ctx context.Context, id RequestID) (*PurchaseRequest, error) {
	return l.store.GetRequest(ctx, id)
}

// List returns requests matching the filter, newest first.
func (l *Ledger) List(ctx context.Context, filter RequestFilter) ([]*PurchaseRequest, error) {
	return l.store.ListRequests(ctx, filter)
}

// ListForFinance returns approved requests, visible to the finance role only.
func (l *Ledger) ListForFinance(ctx context.Context, caller UserID) ([]*PurchaseRequest, error) {
	if err := l.authz.Authorize(ctx, caller, ActionViewFinance, nil); err != nil {
		return nil, err
	}
	approved := StatusApproved
	return l.store.ListRequests(ctx, RequestFilter{Status: &approved})
}

// FinanceView returns a single request for the finance role. Requests that
// are not yet approved are denied, not merely hidden.
func (l *Ledger) FinanceView(ctx context.Context, caller UserID, id RequestID) (*PurchaseRequest, error) {
	req, err := l.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.authz.Authorize(ctx, caller, ActionViewFinance, req); err != nil {
		return nil, err
	}
	return req, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

func validateItems(items []RequestItem) error {
	if len(items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	for _, it := range items {
		if err := validateItemFields(it); err != nil {
			return err
		}
	}
	return nil
}

func validateItemFields(it RequestItem) error {
	if it.Name == "" {
		return &ValidationError{Field: "items.name", Reason: "must not be empty"}
	}
	if it.Quantity <= 0 {
		return &ValidationError{Field: "items.quantity", Reason: fmt.Sprintf("must be positive, got %d", it.Quantity)}
	}
	if it.UnitPrice.IsNegative() {
		return &ValidationError{Field: "items.unit_price", Reason: "must not be negative, got " + it.UnitPrice.String()}
	}
	return nil
}

// withItemIDs assigns fresh IDs to items that have none.
func withItemIDs(items []RequestItem) []RequestItem {
	out := make([]RequestItem, len(items))
	for i, it := range items {
		if it.ID == "" {
			it.ID = NewItemID()
		}
		out[i] = it
	}
	return out
}

func newAuditEntry(actor UserID, action AuditAction, id RequestID, detail map[string]any) AuditEntry {
	return AuditEntry{
		ID:        uuid.NewString(),
		At:        time.Now().UTC(),
		ActorID:   actor,
		Action:    action,
		RequestID: id,
		Detail:    detail,
	}
}
