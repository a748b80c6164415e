/*
workflow.go - Two-level approval state machine

PURPOSE:
  Drives a purchase request through its decisions. This is the only code
  that changes a request's status.

TRANSITIONS:

  pending_level_1 ──approve L1──▶ pending_level_2 ──approve L2──▶ approved
        │                               │                            │
     reject L1                       reject L2                 (+ purchase
        ▼                               ▼                         order)
     rejected                        rejected

  approved and rejected are terminal.

ATOMICITY:
  One Decide call is one store transaction: the approval record, the status
  transition, the purchase order (on final approval), and the audit entry
  all commit together or not at all. A failed purchase order generation
  therefore leaves no approval behind and the request stays decidable.
  Authorization reads run before the transaction opens; role resolution
  never nests inside it.

CONCURRENCY:
  Two concurrent decides on the same request cannot both win. Within a
  process the store serializes transactions; across processes the status
  compare-and-swap and the unique (request, level) approval index reject
  the loser. The loser observes the post-transition state: deciding a level
  that already has a decision yields ErrAlreadyDecided, anything else
  ErrInvalidState.

ERROR ORDER:
  not found -> permission denied -> already decided -> invalid state.
  Authorization is checked before state so a denied caller learns nothing
  about where the request currently sits.

SEE ALSO:
  - po.go: Purchase order generation invoked on final approval
  - store.go: The CAS and uniqueness contract this relies on
*/
package procure

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// DecisionOutcome reports what a successful Decide changed.
type DecisionOutcome struct {
	Request       *PurchaseRequest
	Approval      Approval
	PurchaseOrder *PurchaseOrder // non-nil only when level 2 approved
}

// Workflow applies approval decisions to purchase requests.
type Workflow struct {
	store TxStore
	authz *Authorizer
	log   zerolog.Logger
}

func NewWorkflow(store TxStore, authz *Authorizer, log zerolog.Logger) *Workflow {
	return &Workflow{store: store, authz: authz, log: log}
}

// Decide records one decision at one level and advances the request.
func (w *Workflow) Decide(ctx context.Context, id RequestID, level ApprovalLevel, decider UserID, decision Decision, comment string) (*DecisionOutcome, error) {
	if _, err := ParseLevel(int(level)); err != nil {
		return nil, err
	}
	if _, err := ParseDecision(string(decision)); err != nil {
		return nil, err
	}

	// Authorization resolves the decider's role through the identity store,
	// which can share a connection and lock with the transaction below, so it
	// runs before the transaction opens. The in-tx state guard, the status
	// CAS, and the unique (request, level) index still reject racing deciders.
	req, err := w.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := w.authz.Authorize(ctx, decider, level.Action(), req); err != nil {
		return nil, err
	}

	outcome := &DecisionOutcome{}
	err = w.store.WithTx(ctx, func(tx Store) error {
		req, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != level.PendingStatus() {
			return w.classifyStaleDecide(ctx, tx, req, level)
		}

		approval := Approval{
			ID:        NewApprovalID(),
			RequestID: id,
			Level:     level,
			Decision:  decision,
			DecidedBy: decider,
			Comment:   comment,
			DecidedAt: time.Now().UTC(),
		}
		if err := tx.AppendApproval(ctx, approval); err != nil {
			return err
		}

		to := nextStatus(level, decision)
		if err := tx.UpdateStatus(ctx, id, req.Status, to); err != nil {
			return err
		}
		// Reload so the outcome carries the store's timestamps.
		req, err = tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}

		if err := tx.AppendAudit(ctx, newAuditEntry(decider, auditActionFor(level, decision), id, map[string]any{
			"comment": comment,
		})); err != nil {
			return err
		}

		if to == StatusApproved {
			po, err := GeneratePurchaseOrder(ctx, tx, req)
			if err != nil {
				return err
			}
			outcome.PurchaseOrder = po
			if err := tx.AppendAudit(ctx, newAuditEntry(decider, AuditPOGenerated, id, map[string]any{
				"po_number": po.Number,
				"total":     po.Total.String(),
			})); err != nil {
				return err
			}
		}

		outcome.Request = req
		outcome.Approval = approval
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := w.log.Info().
		Str("request_id", string(id)).
		Int("level", int(level)).
		Str("decision", string(decision)).
		Str("decided_by", string(decider)).
		Str("status", string(outcome.Request.Status))
	if outcome.PurchaseOrder != nil {
		ev = ev.Str("po_number", outcome.PurchaseOrder.Number)
	}
	ev.Msg("decision recorded")

	return outcome, nil
}

// classifyStaleDecide distinguishes "this level was already decided" from
// "the request is not at this level". An existing approval for the exact
// (request, level) wins, even in terminal states.
func (w *Workflow) classifyStaleDecide(ctx context.Context, tx Store, req *PurchaseRequest, level ApprovalLevel) error {
	prior, err := tx.GetApproval(ctx, req.ID, level)
	if err == nil {
		return &AlreadyDecidedError{
			RequestID: req.ID,
			Level:     level,
			Decision:  prior.Decision,
			DecidedBy: prior.DecidedBy,
		}
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return &StateError{RequestID: req.ID, Status: req.Status, Operation: "decide"}
}

// nextStatus is the transition table.
func nextStatus(level ApprovalLevel, decision Decision) RequestStatus {
	if decision == DecisionRejected {
		return StatusRejected
	}
	if level == Level1 {
		return StatusPendingLevel2
	}
	return StatusApproved
}

func auditActionFor(level ApprovalLevel, decision Decision) AuditAction {
	switch {
	case level == Level1 && decision == DecisionApproved:
		return AuditLevel1Approved
	case level == Level1:
		return AuditLevel1Rejected
	case decision == DecisionApproved:
		return AuditLevel2Approved
	}
	return AuditLevel2Rejected
}
