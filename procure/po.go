/*
po.go - Purchase order generation

PURPOSE:
  Turns a fully approved purchase request into a purchase order document.
  Called by the workflow inside the final approval's transaction, so an
  order exists exactly when its request is approved, never without it.

NUMBERING:
  PO-YYYYMMDD-NNNN, e.g. PO-20260823-0042. The date is the UTC issue day;
  NNNN is the store-backed global sequence, zero-padded to four digits and
  widening naturally past 9999. Sequence allocation happens inside the
  surrounding transaction, so a rolled-back approval may leave a gap in the
  sequence but never a duplicate or an out-of-order number.

SNAPSHOT:
  Items and vendor fields are copied into the order at generation time.
  The order is immutable from then on.

SEE ALSO:
  - workflow.go: The only production caller
  - receipt.go: Validates deliveries against the snapshot
*/
package procure

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FormatPONumber renders the purchase order number for a sequence value
// issued on the given day.
func FormatPONumber(seq int64, issuedAt time.Time) string {
	return fmt.Sprintf("PO-%s-%04d", issuedAt.UTC().Format("20060102"), seq)
}

// GeneratePurchaseOrder creates the one purchase order for an approved
// request. The store handed in is usually a transactional view; any failure
// is reported as ErrPOGenerationFailed (or ErrDuplicatePO when the request
// already has an order) so the caller can roll back the whole decision.
func GeneratePurchaseOrder(ctx context.Context, s Store, req *PurchaseRequest) (*PurchaseOrder, error) {
	seq, err := s.NextPOSequence(ctx)
	if err != nil {
		return nil, &POGenerationError{RequestID: req.ID, Cause: fmt.Errorf("allocating sequence: %w", err)}
	}

	now := time.Now().UTC()
	po := &PurchaseOrder{
		ID:        NewPOID(),
		Number:    FormatPONumber(seq, now),
		RequestID: req.ID,
		Buyer:     BuyerName,
		Items:     snapshotItems(req.Items),
		IssuedAt:  now,
	}
	for _, it := range po.Items {
		po.Total = po.Total.Add(it.LineTotal())
	}
	if req.Proforma != nil {
		po.VendorName = req.Proforma.VendorName
		po.VendorContact = req.Proforma.VendorContact
	}

	if err := s.CreatePO(ctx, po); err != nil {
		if errors.Is(err, ErrDuplicatePO) {
			return nil, err
		}
		return nil, &POGenerationError{RequestID: req.ID, Cause: err}
	}
	return po, nil
}

func snapshotItems(items []RequestItem) []POItem {
	out := make([]POItem, len(items))
	for i, it := range items {
		out[i] = POItem{
			Name:        it.Name,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return out
}
