/*
po_test.go - Purchase order generation and numbering
*/
package procure_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nsarob/Save-a-penny/procure"
	pstore "github.com/Nsarob/Save-a-penny/procure/store"
)

func TestFormatPONumber(t *testing.T) {
	day := time.Date(2026, 8, 23, 15, 4, 5, 0, time.UTC)

	assert.Equal(t, "PO-20260823-0042", procure.FormatPONumber(42, day))
	assert.Equal(t, "PO-20260823-0001", procure.FormatPONumber(1, day))

	// Sequence widens naturally past four digits
	assert.Equal(t, "PO-20260823-12345", procure.FormatPONumber(12345, day))

	// Non-UTC times are rendered in UTC
	kigali := time.FixedZone("CAT", 2*60*60)
	lateEvening := time.Date(2026, 8, 23, 23, 30, 0, 0, kigali)
	assert.Equal(t, "PO-20260823-0007", procure.FormatPONumber(7, lateEvening))
}

func TestGeneratePurchaseOrderSnapshotsRequest(t *testing.T) {
	// GIVEN: An approved request with a proforma naming the vendor
	st := pstore.NewTxMemory()
	ctx := context.Background()
	req := &procure.PurchaseRequest{
		ID:          procure.NewRequestID(),
		Title:       "Office supplies",
		RequestedBy: "alice",
		Status:      procure.StatusApproved,
		Items: []procure.RequestItem{
			{ID: procure.NewItemID(), Name: "Pens", Quantity: 10, UnitPrice: decimal.NewFromFloat(2.00)},
		},
		Proforma: &procure.Proforma{
			VendorName:    "Kigali Office Mart",
			VendorContact: "sales@kigaliofficemart.rw",
		},
	}
	req.Total = procure.ItemsTotal(req.Items)
	require.NoError(t, st.CreateRequest(ctx, req))

	// WHEN: An order is generated
	po, err := procure.GeneratePurchaseOrder(ctx, st, req)
	require.NoError(t, err)

	// THEN: Items, vendor, and buyer are snapshotted and the total derived
	assert.Equal(t, procure.BuyerName, po.Buyer)
	assert.Equal(t, "Kigali Office Mart", po.VendorName)
	require.Len(t, po.Items, 1)
	assert.True(t, po.Total.Equal(decimal.NewFromFloat(20.00)))
	assert.Equal(t, req.ID, po.RequestID)
	assert.Regexp(t, `^PO-\d{8}-\d{4,}$`, po.Number)

	// AND: Later request edits never reach the issued order
	req.Items[0].Quantity = 99
	stored, err := st.GetPOByRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stored.Items[0].Quantity)
}

func TestGeneratePurchaseOrderRejectsSecondOrder(t *testing.T) {
	st := pstore.NewTxMemory()
	ctx := context.Background()
	req := &procure.PurchaseRequest{
		ID:          procure.NewRequestID(),
		Title:       "Office supplies",
		RequestedBy: "alice",
		Status:      procure.StatusApproved,
		Items: []procure.RequestItem{
			{ID: procure.NewItemID(), Name: "Pens", Quantity: 10, UnitPrice: decimal.NewFromFloat(2.00)},
		},
	}
	req.Total = procure.ItemsTotal(req.Items)
	require.NoError(t, st.CreateRequest(ctx, req))

	_, err := procure.GeneratePurchaseOrder(ctx, st, req)
	require.NoError(t, err)

	_, err = procure.GeneratePurchaseOrder(ctx, st, req)
	assert.ErrorIs(t, err, procure.ErrDuplicatePO)
}

func TestGeneratePurchaseOrderWithoutProforma(t *testing.T) {
	// Vendor fields stay empty when no proforma was attached
	st := pstore.NewTxMemory()
	ctx := context.Background()
	req := &procure.PurchaseRequest{
		ID:          procure.NewRequestID(),
		Title:       "Office supplies",
		RequestedBy: "alice",
		Status:      procure.StatusApproved,
		Items: []procure.RequestItem{
			{ID: procure.NewItemID(), Name: "Pens", Quantity: 10, UnitPrice: decimal.NewFromFloat(2.00)},
		},
	}
	req.Total = procure.ItemsTotal(req.Items)
	require.NoError(t, st.CreateRequest(ctx, req))

	po, err := procure.GeneratePurchaseOrder(ctx, st, req)
	require.NoError(t, err)
	assert.Empty(t, po.VendorName)
	assert.Empty(t, po.VendorContact)
}
