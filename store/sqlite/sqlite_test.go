/*
sqlite_test.go - Storage contract tests against a real SQLite database

Runs against ":memory:" so each test gets a fresh database. Focuses on
the guarantees the workflow relies on: the status compare-and-swap, the
unique approval and purchase order indexes, transactional rollback, the
monotonic order sequence, and the identity directory tables.
*/
package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nsarob/Save-a-penny/identity"
	"github.com/Nsarob/Save-a-penny/procure"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedRequest(t *testing.T, s *Store, status procure.RequestStatus) *procure.PurchaseRequest {
	t.Helper()
	now := time.Now().UTC()
	req := &procure.PurchaseRequest{
		ID:          procure.NewRequestID(),
		Title:       "Office supplies",
		Description: "Quarterly restock",
		RequestedBy: "alice",
		Status:      status,
		Items: []procure.RequestItem{
			{ID: procure.NewItemID(), Name: "Pens", Description: "Blue", Quantity: 10, UnitPrice: decimal.NewFromFloat(2.00)},
			{ID: procure.NewItemID(), Name: "Notebooks", Quantity: 20, UnitPrice: decimal.NewFromFloat(3.50)},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.Total = procure.ItemsTotal(req.Items)
	require.NoError(t, s.CreateRequest(context.Background(), req))
	return req
}

// =============================================================================
// REQUESTS
// =============================================================================

func TestRequestRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	req := seedRequest(t, s, procure.StatusPendingLevel1)

	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)

	assert.Equal(t, req.Title, got.Title)
	assert.Equal(t, req.RequestedBy, got.RequestedBy)
	assert.Equal(t, procure.StatusPendingLevel1, got.Status)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Pens", got.Items[0].Name, "item order preserved")
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.NewFromFloat(2.00)), "decimal survives the round trip")
	assert.True(t, got.Total.Equal(procure.MustDecimal("90")))
	assert.Nil(t, got.ApprovedAt)

	_, err = s.GetRequest(ctx, "missing")
	assert.ErrorIs(t, err, procure.ErrNotFound)
}

func TestListRequestsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedRequest(t, s, procure.StatusPendingLevel1)
	approvedReq := seedRequest(t, s, procure.StatusApproved)

	approved := procure.StatusApproved
	got, err := s.ListRequests(ctx, procure.RequestFilter{Status: &approved})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, approvedReq.ID, got[0].ID)
	assert.Len(t, got[0].Items, 2, "list hydrates items")

	nobody := procure.UserID("nobody")
	got, err = s.ListRequests(ctx, procure.RequestFilter{RequestedBy: &nobody})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReplaceItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	req := seedRequest(t, s, procure.StatusPendingLevel1)

	next := []procure.RequestItem{
		{ID: procure.NewItemID(), Name: "Staplers", Quantity: 4, UnitPrice: decimal.NewFromFloat(7.25)},
	}
	require.NoError(t, s.ReplaceItems(ctx, req.ID, next, procure.ItemsTotal(next)))

	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Staplers", got.Items[0].Name)
	assert.True(t, got.Total.Equal(decimal.NewFromFloat(29.0)))

	err = s.ReplaceItems(ctx, "missing", next, decimal.Zero)
	assert.ErrorIs(t, err, procure.ErrNotFound)
}

func TestSaveProformaRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	req := seedRequest(t, s, procure.StatusPendingLevel1)

	p := &procure.Proforma{
		VendorName:    "Kigali Office Mart",
		InvoiceNumber: "PF-100",
		Items: []procure.RequestItem{
			{Name: "Pens", Quantity: 10, UnitPrice: decimal.NewFromFloat(2.00)},
		},
		TotalAmount: decimal.NewFromFloat(20.00),
		AttachedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.SaveProforma(ctx, req.ID, p))

	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Proforma)
	assert.Equal(t, "Kigali Office Mart", got.Proforma.VendorName)
	assert.True(t, got.Proforma.TotalAmount.Equal(decimal.NewFromFloat(20.00)))
}

// =============================================================================
// STATUS CAS
// =============================================================================

func TestUpdateStatusCAS(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	req := seedRequest(t, s, procure.StatusPendingLevel1)

	// Matching `from` applies
	require.NoError(t, s.UpdateStatus(ctx, req.ID, procure.StatusPendingLevel1, procure.StatusPendingLevel2))

	// Stale `from` fails with the current status in the error
	err := s.UpdateStatus(ctx, req.ID, procure.StatusPendingLevel1, procure.StatusPendingLevel2)
	assert.ErrorIs(t, err, procure.ErrInvalidState)
	var se *procure.StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, procure.StatusPendingLevel2, se.Status)

	// Missing request is not-found, not a state error
	err = s.UpdateStatus(ctx, "missing", procure.StatusPendingLevel1, procure.StatusPendingLevel2)
	assert.ErrorIs(t, err, procure.ErrNotFound)
}

func TestUpdateStatusStampsTerminalTimes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	req := seedRequest(t, s, procure.StatusPendingLevel2)
	require.NoError(t, s.UpdateStatus(ctx, req.ID, procure.StatusPendingLevel2, procure.StatusApproved))
	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ApprovedAt)
	assert.Nil(t, got.RejectedAt)

	req = seedRequest(t, s, procure.StatusPendingLevel1)
	require.NoError(t, s.UpdateStatus(ctx, req.ID, procure.StatusPendingLevel1, procure.StatusRejected))
	got, err = s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RejectedAt)
	assert.Nil(t, got.ApprovedAt)
}

// =============================================================================
// APPROVALS
// =============================================================================

func TestApprovalUniquePerLevel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	req := seedRequest(t, s, procure.StatusPendingLevel1)

	first := procure.Approval{
		ID:        procure.NewApprovalID(),
		RequestID: req.ID,
		Level:     procure.Level1,
		Decision:  procure.DecisionApproved,
		DecidedBy: "bob",
		Comment:   "ok",
		DecidedAt: time.Now().UTC(),
	}
	require.NoError(t, s.AppendApproval(ctx, first))

	// Second decision at the same level hits the unique index and carries
	// the existing decision
	dup := first
	dup.ID = procure.NewApprovalID()
	dup.Decision = procure.DecisionRejected
	err := s.AppendApproval(ctx, dup)
	assert.ErrorIs(t, err, procure.ErrAlreadyDecided)
	var ade *procure.AlreadyDecidedError
	require.ErrorAs(t, err, &ade)
	assert.Equal(t, procure.DecisionApproved, ade.Decision)
	assert.Equal(t, procure.UserID("bob"), ade.DecidedBy)

	// A different level is fine
	second := first
	second.ID = procure.NewApprovalID()
	second.Level = procure.Level2
	second.DecidedBy = "carol"
	require.NoError(t, s.AppendApproval(ctx, second))

	all, err := s.ListApprovals(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, procure.Level1, all[0].Level, "ordered by level")

	got, err := s.GetApproval(ctx, req.ID, procure.Level2)
	require.NoError(t, err)
	assert.Equal(t, procure.UserID("carol"), got.DecidedBy)

	_, err = s.GetApproval(ctx, "missing", procure.Level1)
	assert.ErrorIs(t, err, procure.ErrNotFound)
}

// =============================================================================
// PURCHASE ORDERS
// =============================================================================

func TestPurchaseOrderUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	req := seedRequest(t, s, procure.StatusApproved)
	other := seedRequest(t, s, procure.StatusApproved)

	po := &procure.PurchaseOrder{
		ID:         procure.NewPOID(),
		Number:     "PO-20260825-0001",
		RequestID:  req.ID,
		Buyer:      procure.BuyerName,
		VendorName: "Kigali Office Mart",
		Items: []procure.POItem{
			{Name: "Pens", Quantity: 10, UnitPrice: decimal.NewFromFloat(2.00)},
		},
		Total:    decimal.NewFromFloat(20.00),
		IssuedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreatePO(ctx, po))

	// Same request, different number: duplicate
	dup := *po
	dup.ID = procure.NewPOID()
	dup.Number = "PO-20260825-0002"
	assert.ErrorIs(t, s.CreatePO(ctx, &dup), procure.ErrDuplicatePO)

	// Different request, same number: duplicate
	clash := *po
	clash.ID = procure.NewPOID()
	clash.RequestID = other.ID
	assert.ErrorIs(t, s.CreatePO(ctx, &clash), procure.ErrDuplicatePO)

	byReq, err := s.GetPOByRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, po.Number, byReq.Number)
	require.Len(t, byReq.Items, 1)
	assert.True(t, byReq.Items[0].UnitPrice.Equal(decimal.NewFromFloat(2.00)))

	byNum, err := s.GetPOByNumber(ctx, po.Number)
	require.NoError(t, err)
	assert.Equal(t, req.ID, byNum.RequestID)

	_, err = s.GetPOByNumber(ctx, "PO-19990101-0001")
	assert.ErrorIs(t, err, procure.ErrNotFound)
}

func TestPOSequenceMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		seq, err := s.NextPOSequence(ctx)
		require.NoError(t, err)
		assert.Greater(t, seq, prev)
		prev = seq
	}
}

func TestPOSequenceSurvivesReset(t *testing.T) {
	// AUTOINCREMENT keeps counting after DELETE, so numbers issued before a
	// reset are never reissued
	s := newTestStore(t)
	ctx := context.Background()

	before, err := s.NextPOSequence(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx))

	after, err := s.NextPOSequence(ctx)
	require.NoError(t, err)
	assert.Greater(t, after, before)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTxCommitsOnSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	req := seedRequest(t, s, procure.StatusPendingLevel1)

	err := s.WithTx(ctx, func(tx procure.Store) error {
		if err := tx.AppendApproval(ctx, procure.Approval{
			ID:        procure.NewApprovalID(),
			RequestID: req.ID,
			Level:     procure.Level1,
			Decision:  procure.DecisionApproved,
			DecidedBy: "bob",
			DecidedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, req.ID, procure.StatusPendingLevel1, procure.StatusPendingLevel2)
	})
	require.NoError(t, err)

	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, procure.StatusPendingLevel2, got.Status)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	req := seedRequest(t, s, procure.StatusPendingLevel1)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx procure.Store) error {
		if err := tx.UpdateStatus(ctx, req.ID, procure.StatusPendingLevel1, procure.StatusPendingLevel2); err != nil {
			return err
		}
		if err := tx.AppendApproval(ctx, procure.Approval{
			ID:        procure.NewApprovalID(),
			RequestID: req.ID,
			Level:     procure.Level1,
			Decision:  procure.DecisionApproved,
			DecidedBy: "bob",
			DecidedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom, "fn error comes back unchanged")

	// Nothing inside the transaction stuck
	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, procure.StatusPendingLevel1, got.Status)
	approvals, err := s.ListApprovals(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, approvals)
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func TestAuditAppendAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	req := seedRequest(t, s, procure.StatusPendingLevel1)

	entries := []procure.AuditEntry{
		{ID: "a1", At: time.Now().UTC(), ActorID: "alice", Action: procure.AuditRequestSubmitted, RequestID: req.ID, Detail: map[string]any{"total": "90"}},
		{ID: "a2", At: time.Now().UTC().Add(time.Second), ActorID: "bob", Action: procure.AuditLevel1Approved, RequestID: req.ID},
	}
	for _, e := range entries {
		require.NoError(t, s.AppendAudit(ctx, e))
	}

	id := req.ID
	got, err := s.QueryAudit(ctx, procure.AuditFilter{RequestID: &id})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID, "chronological order")
	assert.Equal(t, "90", got[0].Detail["total"])

	got, err = s.QueryAudit(ctx, procure.AuditFilter{
		RequestID: &id,
		Actions:   []procure.AuditAction{procure.AuditLevel1Approved},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, procure.UserID("bob"), got[0].ActorID)
}

func TestQueryAuditCorruptDetail(t *testing.T) {
	// A row whose detail column is not valid JSON surfaces as an error
	// instead of silently coming back with a nil detail map.
	s := newTestStore(t)
	ctx := context.Background()
	req := seedRequest(t, s, procure.StatusPendingLevel1)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, at, actor_id, action, request_id, detail_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, "a1", formatTime(time.Now().UTC()), "alice", procure.AuditRequestSubmitted, req.ID, "{not json")
	require.NoError(t, err)

	id := req.ID
	_, err = s.QueryAudit(ctx, procure.AuditFilter{RequestID: &id})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit detail")
}

// =============================================================================
// IDENTITY DIRECTORY
// =============================================================================

func TestUserStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &identity.User{
		ID:           procure.NewUserID(),
		Email:        "alice@saveapenny.dev",
		Name:         "Alice Uwase",
		PasswordHash: "$2a$10$fakehash",
		Role:         procure.RoleStaff,
		Department:   "Operations",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.CreateUser(ctx, u))

	// Duplicate email maps to the identity sentinel
	dup := *u
	dup.ID = procure.NewUserID()
	assert.ErrorIs(t, s.CreateUser(ctx, &dup), identity.ErrEmailTaken)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, procure.RoleStaff, got.Role)
	assert.Equal(t, "Operations", got.Department)

	got, err = s.GetUserByEmail(ctx, "alice@saveapenny.dev")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)

	all, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestResetClearsEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	req := seedRequest(t, s, procure.StatusPendingLevel1)
	require.NoError(t, s.CreateUser(ctx, &identity.User{
		ID:           procure.NewUserID(),
		Email:        "alice@saveapenny.dev",
		Name:         "Alice Uwase",
		PasswordHash: "x",
		Role:         procure.RoleStaff,
		CreatedAt:    time.Now().UTC(),
	}))

	require.NoError(t, s.Reset(ctx))

	_, err := s.GetRequest(ctx, req.ID)
	assert.ErrorIs(t, err, procure.ErrNotFound)
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}
