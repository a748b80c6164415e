// Package store provides the in-memory Store implementation used by tests
// and local development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Nsarob/Save-a-penny/procure"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements procure.Store with maps. All reads return deep copies so
// callers cannot mutate stored state.
type Memory struct {
	mu        sync.RWMutex
	requests  map[procure.RequestID]*procure.PurchaseRequest
	approvals map[procure.RequestID][]procure.Approval
	pos       map[procure.RequestID]*procure.PurchaseOrder
	poNumbers map[string]procure.RequestID
	audit     []procure.AuditEntry
	poSeq     int64
}

func NewMemory() *Memory {
	m := &Memory{}
	m.resetLocked()
	return m
}

func (m *Memory) resetLocked() {
	m.requests = make(map[procure.RequestID]*procure.PurchaseRequest)
	m.approvals = make(map[procure.RequestID][]procure.Approval)
	m.pos = make(map[procure.RequestID]*procure.PurchaseOrder)
	m.poNumbers = make(map[string]procure.RequestID)
	m.audit = nil
	// poSeq survives resets so numbers from before a reset are never reissued.
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

// --- Purchase requests ---

func (m *Memory) CreateRequest(_ context.Context, req *procure.PurchaseRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createRequestLocked(req)
}

func (m *Memory) createRequestLocked(req *procure.PurchaseRequest) error {
	m.requests[req.ID] = req.Clone()
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id procure.RequestID) (*procure.PurchaseRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRequestLocked(id)
}

func (m *Memory) getRequestLocked(id procure.RequestID) (*procure.PurchaseRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, &procure.NotFoundError{Kind: "request", ID: string(id)}
	}
	return req.Clone(), nil
}

func (m *Memory) ListRequests(_ context.Context, filter procure.RequestFilter) ([]*procure.PurchaseRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRequestsLocked(filter)
}

func (m *Memory) listRequestsLocked(filter procure.RequestFilter) ([]*procure.PurchaseRequest, error) {
	var out []*procure.PurchaseRequest
	for _, req := range m.requests {
		if filter.Status != nil && req.Status != *filter.Status {
			continue
		}
		if filter.RequestedBy != nil && req.RequestedBy != *filter.RequestedBy {
			continue
		}
		out = append(out, req.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) ReplaceItems(_ context.Context, id procure.RequestID, items []procure.RequestItem, total decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceItemsLocked(id, items, total)
}

func (m *Memory) replaceItemsLocked(id procure.RequestID, items []procure.RequestItem, total decimal.Decimal) error {
	req, ok := m.requests[id]
	if !ok {
		return &procure.NotFoundError{Kind: "request", ID: string(id)}
	}
	req.Items = append([]procure.RequestItem(nil), items...)
	req.Total = total
	req.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) SaveProforma(_ context.Context, id procure.RequestID, p *procure.Proforma) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveProformaLocked(id, p)
}

func (m *Memory) saveProformaLocked(id procure.RequestID, p *procure.Proforma) error {
	req, ok := m.requests[id]
	if !ok {
		return &procure.NotFoundError{Kind: "request", ID: string(id)}
	}
	cp := *p
	cp.Items = append([]procure.RequestItem(nil), p.Items...)
	req.Proforma = &cp
	req.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) UpdateStatus(_ context.Context, id procure.RequestID, from, to procure.RequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateStatusLocked(id, from, to)
}

func (m *Memory) updateStatusLocked(id procure.RequestID, from, to procure.RequestStatus) error {
	req, ok := m.requests[id]
	if !ok {
		return &procure.NotFoundError{Kind: "request", ID: string(id)}
	}
	if req.Status != from {
		return &procure.StateError{RequestID: id, Status: req.Status, Operation: "transition"}
	}
	now := time.Now().UTC()
	req.Status = to
	req.UpdatedAt = now
	switch to {
	case procure.StatusApproved:
		req.ApprovedAt = &now
	case procure.StatusRejected:
		req.RejectedAt = &now
	}
	return nil
}

// --- Approvals ---

func (m *Memory) AppendApproval(_ context.Context, a procure.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendApprovalLocked(a)
}

func (m *Memory) appendApprovalLocked(a procure.Approval) error {
	for _, existing := range m.approvals[a.RequestID] {
		if existing.Level == a.Level {
			return &procure.AlreadyDecidedError{
				RequestID: a.RequestID,
				Level:     a.Level,
				Decision:  existing.Decision,
				DecidedBy: existing.DecidedBy,
			}
		}
	}
	m.approvals[a.RequestID] = append(m.approvals[a.RequestID], a)
	return nil
}

func (m *Memory) GetApproval(_ context.Context, id procure.RequestID, level procure.ApprovalLevel) (*procure.Approval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getApprovalLocked(id, level)
}

func (m *Memory) getApprovalLocked(id procure.RequestID, level procure.ApprovalLevel) (*procure.Approval, error) {
	for _, a := range m.approvals[id] {
		if a.Level == level {
			cp := a
			return &cp, nil
		}
	}
	return nil, &procure.NotFoundError{Kind: "approval", ID: string(id)}
}

func (m *Memory) ListApprovals(_ context.Context, id procure.RequestID) ([]procure.Approval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listApprovalsLocked(id)
}

func (m *Memory) listApprovalsLocked(id procure.RequestID) ([]procure.Approval, error) {
	out := append([]procure.Approval(nil), m.approvals[id]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

// --- Purchase orders ---

func (m *Memory) CreatePO(_ context.Context, po *procure.PurchaseOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createPOLocked(po)
}

func (m *Memory) createPOLocked(po *procure.PurchaseOrder) error {
	if _, exists := m.pos[po.RequestID]; exists {
		return procure.ErrDuplicatePO
	}
	if _, exists := m.poNumbers[po.Number]; exists {
		return procure.ErrDuplicatePO
	}
	m.pos[po.RequestID] = po.Clone()
	m.poNumbers[po.Number] = po.RequestID
	return nil
}

func (m *Memory) GetPOByRequest(_ context.Context, id procure.RequestID) (*procure.PurchaseOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPOByRequestLocked(id)
}

func (m *Memory) getPOByRequestLocked(id procure.RequestID) (*procure.PurchaseOrder, error) {
	po, ok := m.pos[id]
	if !ok {
		return nil, &procure.NotFoundError{Kind: "purchase_order", ID: string(id)}
	}
	return po.Clone(), nil
}

func (m *Memory) GetPOByNumber(_ context.Context, number string) (*procure.PurchaseOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPOByNumberLocked(number)
}

func (m *Memory) getPOByNumberLocked(number string) (*procure.PurchaseOrder, error) {
	id, ok := m.poNumbers[number]
	if !ok {
		return nil, &procure.NotFoundError{Kind: "purchase_order", ID: number}
	}
	return m.getPOByRequestLocked(id)
}

func (m *Memory) NextPOSequence(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextPOSequenceLocked()
}

func (m *Memory) nextPOSequenceLocked() (int64, error) {
	m.poSeq++
	return m.poSeq, nil
}

// --- Audit trail ---

func (m *Memory) AppendAudit(_ context.Context, e procure.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendAuditLocked(e)
}

func (m *Memory) appendAuditLocked(e procure.AuditEntry) error {
	m.audit = append(m.audit, e)
	return nil
}

func (m *Memory) QueryAudit(_ context.Context, filter procure.AuditFilter) ([]procure.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryAuditLocked(filter)
}

func (m *Memory) queryAuditLocked(filter procure.AuditFilter) ([]procure.AuditEntry, error) {
	var out []procure.AuditEntry
	for _, e := range m.audit {
		if filter.RequestID != nil && e.RequestID != *filter.RequestID {
			continue
		}
		if filter.ActorID != nil && e.ActorID != *filter.ActorID {
			continue
		}
		if len(filter.Actions) > 0 && !containsAction(filter.Actions, e.Action) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func containsAction(actions []procure.AuditAction, a procure.AuditAction) bool {
	for _, candidate := range actions {
		if candidate == a {
			return true
		}
	}
	return false
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn holding the store lock, simulating a transaction with
// a snapshot that is restored if fn fails.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(procure.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()
	view := &txMemoryView{parent: tm.Memory}
	if err := fn(view); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	requests  map[procure.RequestID]*procure.PurchaseRequest
	approvals map[procure.RequestID][]procure.Approval
	pos       map[procure.RequestID]*procure.PurchaseOrder
	poNumbers map[string]procure.RequestID
	audit     []procure.AuditEntry
	poSeq     int64
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		requests:  make(map[procure.RequestID]*procure.PurchaseRequest, len(tm.requests)),
		approvals: make(map[procure.RequestID][]procure.Approval, len(tm.approvals)),
		pos:       make(map[procure.RequestID]*procure.PurchaseOrder, len(tm.pos)),
		poNumbers: make(map[string]procure.RequestID, len(tm.poNumbers)),
		audit:     append([]procure.AuditEntry(nil), tm.audit...),
		poSeq:     tm.poSeq,
	}
	for k, v := range tm.requests {
		s.requests[k] = v.Clone()
	}
	for k, v := range tm.approvals {
		s.approvals[k] = append([]procure.Approval(nil), v...)
	}
	for k, v := range tm.pos {
		s.pos[k] = v.Clone()
	}
	for k, v := range tm.poNumbers {
		s.poNumbers[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.requests = s.requests
	tm.approvals = s.approvals
	tm.pos = s.pos
	tm.poNumbers = s.poNumbers
	tm.audit = s.audit
	tm.poSeq = s.poSeq
}

// txMemoryView runs against the already-locked parent.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) CreateRequest(_ context.Context, req *procure.PurchaseRequest) error {
	return tv.parent.createRequestLocked(req)
}

func (tv *txMemoryView) GetRequest(_ context.Context, id procure.RequestID) (*procure.PurchaseRequest, error) {
	return tv.parent.getRequestLocked(id)
}

func (tv *txMemoryView) ListRequests(_ context.Context, filter procure.RequestFilter) ([]*procure.PurchaseRequest, error) {
	return tv.parent.listRequestsLocked(filter)
}

func (tv *txMemoryView) ReplaceItems(_ context.Context, id procure.RequestID, items []procure.RequestItem, total decimal.Decimal) error {
	return tv.parent.replaceItemsLocked(id, items, total)
}

func (tv *txMemoryView) SaveProforma(_ context.Context, id procure.RequestID, p *procure.Proforma) error {
	return tv.parent.saveProformaLocked(id, p)
}

func (tv *txMemoryView) UpdateStatus(_ context.Context, id procure.RequestID, from, to procure.RequestStatus) error {
	return tv.parent.updateStatusLocked(id, from, to)
}

func (tv *txMemoryView) AppendApproval(_ context.Context, a procure.Approval) error {
	return tv.parent.appendApprovalLocked(a)
}

func (tv *txMemoryView) GetApproval(_ context.Context, id procure.RequestID, level procure.ApprovalLevel) (*procure.Approval, error) {
	return tv.parent.getApprovalLocked(id, level)
}

func (tv *txMemoryView) ListApprovals(_ context.Context, id procure.RequestID) ([]procure.Approval, error) {
	return tv.parent.listApprovalsLocked(id)
}

func (tv *txMemoryView) CreatePO(_ context.Context, po *procure.PurchaseOrder) error {
	return tv.parent.createPOLocked(po)
}

func (tv *txMemoryView) GetPOByRequest(_ context.Context, id procure.RequestID) (*procure.PurchaseOrder, error) {
	return tv.parent.getPOByRequestLocked(id)
}

func (tv *txMemoryView) GetPOByNumber(_ context.Context, number string) (*procure.PurchaseOrder, error) {
	return tv.parent.getPOByNumberLocked(number)
}

func (tv *txMemoryView) NextPOSequence(_ context.Context) (int64, error) {
	return tv.parent.nextPOSequenceLocked()
}

func (tv *txMemoryView) AppendAudit(_ context.Context, e procure.AuditEntry) error {
	return tv.parent.appendAuditLocked(e)
}

func (tv *txMemoryView) QueryAudit(_ context.Context, filter procure.AuditFilter) ([]procure.AuditEntry, error) {
	return tv.parent.queryAuditLocked(filter)
}
