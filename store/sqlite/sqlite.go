/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements procure.Store, procure.TxStore, and identity.Store in one
  database. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  requests:        Purchase requests (mutable while pending)
  request_items:   Line items, replaced wholesale on edit
  approvals:       Append-only decision records
  purchase_orders: One per approved request, immutable
  po_sequence:     Monotonic AUTOINCREMENT counter for order numbers
  users:           Identity directory accounts
  audit_entries:   Append-only workflow audit trail

UNIQUENESS:
  Three unique indexes enforce the workflow invariants at the database:
  - idx_approvals_request_level:   one decision per (request, level)
  - idx_purchase_orders_request:   one purchase order per request
  - idx_purchase_orders_number:    globally unique order numbers
  Violations map to the domain conflict errors, so a race between two
  processes resolves the same way as a race between two goroutines.

STATUS CAS:
  UpdateStatus guards with WHERE status = ?. Zero rows affected means the
  request moved (or vanished) between read and write; the caller's
  transaction rolls back.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block,
  one writer at a time, better crash recovery.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - procure/store.go: Interface contract
  - procure/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Nsarob/Save-a-penny/identity"
	"github.com/Nsarob/Save-a-penny/procure"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so every query helper works
// inside and outside transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite allows a single writer anyway, the store mutex
	// already serializes access, and ":memory:" databases exist per
	// connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Purchase requests
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		requested_by TEXT NOT NULL,
		status TEXT NOT NULL,
		total TEXT NOT NULL,
		proforma_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		approved_at TEXT,
		rejected_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_requested_by
		ON requests(requested_by);

	-- Line items, replaced wholesale when a request is edited
	CREATE TABLE IF NOT EXISTS request_items (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES requests(id),
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_request_items_request
		ON request_items(request_id);

	-- Approvals (append-only decision records)
	CREATE TABLE IF NOT EXISTS approvals (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		level INTEGER NOT NULL,
		decision TEXT NOT NULL,
		decided_by TEXT NOT NULL,
		comment TEXT,
		decided_at TEXT NOT NULL
	);

	-- CRITICAL: at most one decision per (request, level). Two approvers
	-- racing on the same level resolve here, whatever process they run in.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_approvals_request_level
		ON approvals(request_id, level);

	-- Purchase orders (immutable, one per approved request)
	CREATE TABLE IF NOT EXISTS purchase_orders (
		id TEXT PRIMARY KEY,
		po_number TEXT NOT NULL,
		request_id TEXT NOT NULL,
		buyer TEXT NOT NULL,
		vendor_name TEXT,
		vendor_contact TEXT,
		items_json TEXT NOT NULL,
		total TEXT NOT NULL,
		issued_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_purchase_orders_request
		ON purchase_orders(request_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_purchase_orders_number
		ON purchase_orders(po_number);

	-- Monotonic sequence feeding purchase order numbers. AUTOINCREMENT
	-- keeps values strictly increasing even across deletes.
	CREATE TABLE IF NOT EXISTS po_sequence (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		allocated_at TEXT NOT NULL
	);

	-- Identity directory
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		department TEXT,
		phone TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
		ON users(email);

	-- Audit trail (append-only)
	CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		request_id TEXT NOT NULL,
		detail_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entries_request
		ON audit_entries(request_id);
	CREATE INDEX IF NOT EXISTS idx_audit_entries_actor
		ON audit_entries(actor_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PURCHASE REQUESTS (procure.Store)
// =============================================================================

// CreateRequest persists a new request with its items.
func (s *Store) CreateRequest(ctx context.Context, req *procure.PurchaseRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createRequest(ctx, s.db, req)
}

func createRequest(ctx context.Context, db dbtx, req *procure.PurchaseRequest) error {
	proformaJSON, err := marshalProforma(req.Proforma)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO requests
		(id, title, description, requested_by, status, total, proforma_json,
		 created_at, updated_at, approved_at, rejected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		req.ID,
		req.Title,
		req.Description,
		req.RequestedBy,
		req.Status,
		req.Total.String(),
		proformaJSON,
		formatTime(req.CreatedAt),
		formatTime(req.UpdatedAt),
		nullTime(req.ApprovedAt),
		nullTime(req.RejectedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}

	return insertItems(ctx, db, req.ID, req.Items)
}

func insertItems(ctx context.Context, db dbtx, id procure.RequestID, items []procure.RequestItem) error {
	for i, it := range items {
		_, err := db.ExecContext(ctx, `
			INSERT INTO request_items (id, request_id, position, name, description, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, it.ID, id, i, it.Name, it.Description, it.Quantity, it.UnitPrice.String())
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}
	return nil
}

// GetRequest returns a request with items and proforma.
func (s *Store) GetRequest(ctx context.Context, id procure.RequestID) (*procure.PurchaseRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRequest(ctx, s.db, id)
}

func getRequest(ctx context.Context, db dbtx, id procure.RequestID) (*procure.PurchaseRequest, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, title, description, requested_by, status, total, proforma_json,
		       created_at, updated_at, approved_at, rejected_at
		FROM requests
		WHERE id = ?
	`, id)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, &procure.NotFoundError{Kind: "request", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}

	req.Items, err = loadItems(ctx, db, req.ID)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ListRequests returns requests matching the filter, newest first.
func (s *Store) ListRequests(ctx context.Context, filter procure.RequestFilter) ([]*procure.PurchaseRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRequests(ctx, s.db, filter)
}

func listRequests(ctx context.Context, db dbtx, filter procure.RequestFilter) ([]*procure.PurchaseRequest, error) {
	query := `
		SELECT id, title, description, requested_by, status, total, proforma_json,
		       created_at, updated_at, approved_at, rejected_at
		FROM requests
	`
	var conds []string
	var args []any
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.RequestedBy != nil {
		conds = append(conds, "requested_by = ?")
		args = append(args, *filter.RequestedBy)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var out []*procure.PurchaseRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, req := range out {
		req.Items, err = loadItems(ctx, db, req.ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReplaceItems swaps a request's items and total.
func (s *Store) ReplaceItems(ctx context.Context, id procure.RequestID, items []procure.RequestItem, total decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return replaceItems(ctx, s.db, id, items, total)
}

func replaceItems(ctx context.Context, db dbtx, id procure.RequestID, items []procure.RequestItem, total decimal.Decimal) error {
	res, err := db.ExecContext(ctx, `
		UPDATE requests SET total = ?, updated_at = ? WHERE id = ?
	`, total.String(), formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to update total: %w", err)
	}
	if err := requireRow(res, "request", string(id)); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM request_items WHERE request_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}
	return insertItems(ctx, db, id, items)
}

// SaveProforma attaches proforma metadata to a request.
func (s *Store) SaveProforma(ctx context.Context, id procure.RequestID, p *procure.Proforma) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveProforma(ctx, s.db, id, p)
}

func saveProforma(ctx context.Context, db dbtx, id procure.RequestID, p *procure.Proforma) error {
	proformaJSON, err := marshalProforma(p)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE requests SET proforma_json = ?, updated_at = ? WHERE id = ?
	`, proformaJSON, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to save proforma: %w", err)
	}
	return requireRow(res, "request", string(id))
}

// UpdateStatus transitions the request status with a compare-and-swap.
func (s *Store) UpdateStatus(ctx context.Context, id procure.RequestID, from, to procure.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateStatus(ctx, s.db, id, from, to)
}

func updateStatus(ctx context.Context, db dbtx, id procure.RequestID, from, to procure.RequestStatus) error {
	now := formatTime(time.Now().UTC())
	res, err := db.ExecContext(ctx, `
		UPDATE requests
		SET status = ?, updated_at = ?,
		    approved_at = CASE WHEN ? = 'approved' THEN ? ELSE approved_at END,
		    rejected_at = CASE WHEN ? = 'rejected' THEN ? ELSE rejected_at END
		WHERE id = ? AND status = ?
	`, to, now, to, now, to, now, id, from)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Zero rows: either the request is gone or its status moved.
	var current string
	err = db.QueryRowContext(ctx, "SELECT status FROM requests WHERE id = ?", id).Scan(&current)
	if err == sql.ErrNoRows {
		return &procure.NotFoundError{Kind: "request", ID: string(id)}
	}
	if err != nil {
		return err
	}
	return &procure.StateError{RequestID: id, Status: procure.RequestStatus(current), Operation: "transition"}
}

func scanRequest(row interface{ Scan(dest ...any) error }) (*procure.PurchaseRequest, error) {
	var (
		req          procure.PurchaseRequest
		description  sql.NullString
		total        string
		proformaJSON sql.NullString
		createdAt    string
		updatedAt    string
		approvedAt   sql.NullString
		rejectedAt   sql.NullString
	)
	err := row.Scan(
		&req.ID, &req.Title, &description, &req.RequestedBy, &req.Status,
		&total, &proformaJSON, &createdAt, &updatedAt, &approvedAt, &rejectedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Description = description.String
	req.Total = procure.MustDecimal(total)
	req.CreatedAt = parseTime(createdAt)
	req.UpdatedAt = parseTime(updatedAt)
	req.ApprovedAt = parseNullTime(approvedAt)
	req.RejectedAt = parseNullTime(rejectedAt)

	if proformaJSON.Valid && proformaJSON.String != "" {
		var p procure.Proforma
		if err := json.Unmarshal([]byte(proformaJSON.String), &p); err != nil {
			return nil, fmt.Errorf("failed to decode proforma: %w", err)
		}
		req.Proforma = &p
	}
	return &req, nil
}

func loadItems(ctx context.Context, db dbtx, id procure.RequestID) ([]procure.RequestItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, description, quantity, unit_price
		FROM request_items
		WHERE request_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []procure.RequestItem
	for rows.Next() {
		var (
			it          procure.RequestItem
			description sql.NullString
			unitPrice   string
		)
		if err := rows.Scan(&it.ID, &it.Name, &description, &it.Quantity, &unitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		it.Description = description.String
		it.UnitPrice = procure.MustDecimal(unitPrice)
		items = append(items, it)
	}
	return items, rows.Err()
}

// =============================================================================
// APPROVALS (append-only)
// =============================================================================

// AppendApproval records a decision. The unique (request_id, level) index is
// the concurrency backstop.
func (s *Store) AppendApproval(ctx context.Context, a procure.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendApproval(ctx, s.db, a)
}

func appendApproval(ctx context.Context, db dbtx, a procure.Approval) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO approvals (id, request_id, level, decision, decided_by, comment, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.RequestID, a.Level, a.Decision, a.DecidedBy, a.Comment, formatTime(a.DecidedAt))
	if err == nil {
		return nil
	}
	if !isUniqueConstraintError(err) {
		return fmt.Errorf("failed to insert approval: %w", err)
	}

	existing, getErr := getApproval(ctx, db, a.RequestID, a.Level)
	if getErr != nil {
		return &procure.AlreadyDecidedError{RequestID: a.RequestID, Level: a.Level}
	}
	return &procure.AlreadyDecidedError{
		RequestID: a.RequestID,
		Level:     a.Level,
		Decision:  existing.Decision,
		DecidedBy: existing.DecidedBy,
	}
}

// GetApproval returns the decision at one level, or ErrNotFound.
func (s *Store) GetApproval(ctx context.Context, id procure.RequestID, level procure.ApprovalLevel) (*procure.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getApproval(ctx, s.db, id, level)
}

func getApproval(ctx context.Context, db dbtx, id procure.RequestID, level procure.ApprovalLevel) (*procure.Approval, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, request_id, level, decision, decided_by, comment, decided_at
		FROM approvals
		WHERE request_id = ? AND level = ?
	`, id, level)

	a, err := scanApproval(row)
	if err == sql.ErrNoRows {
		return nil, &procure.NotFoundError{Kind: "approval", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListApprovals returns all decisions for a request, ordered by level.
func (s *Store) ListApprovals(ctx context.Context, id procure.RequestID) ([]procure.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listApprovals(ctx, s.db, id)
}

func listApprovals(ctx context.Context, db dbtx, id procure.RequestID) ([]procure.Approval, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, request_id, level, decision, decided_by, comment, decided_at
		FROM approvals
		WHERE request_id = ?
		ORDER BY level ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	var out []procure.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanApproval(row interface{ Scan(dest ...any) error }) (*procure.Approval, error) {
	var (
		a         procure.Approval
		comment   sql.NullString
		decidedAt string
	)
	err := row.Scan(&a.ID, &a.RequestID, &a.Level, &a.Decision, &a.DecidedBy, &comment, &decidedAt)
	if err != nil {
		return nil, err
	}
	a.Comment = comment.String
	a.DecidedAt = parseTime(decidedAt)
	return &a, nil
}

// =============================================================================
// PURCHASE ORDERS
// =============================================================================

// CreatePO persists a purchase order. Either unique index (request, number)
// maps to ErrDuplicatePO.
func (s *Store) CreatePO(ctx context.Context, po *procure.PurchaseOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createPO(ctx, s.db, po)
}

func createPO(ctx context.Context, db dbtx, po *procure.PurchaseOrder) error {
	itemsJSON, err := json.Marshal(po.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO purchase_orders
		(id, po_number, request_id, buyer, vendor_name, vendor_contact, items_json, total, issued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		po.ID, po.Number, po.RequestID, po.Buyer,
		nullString(po.VendorName), nullString(po.VendorContact),
		string(itemsJSON), po.Total.String(), formatTime(po.IssuedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return procure.ErrDuplicatePO
		}
		return fmt.Errorf("failed to insert purchase order: %w", err)
	}
	return nil
}

// GetPOByRequest returns the purchase order for a request.
func (s *Store) GetPOByRequest(ctx context.Context, id procure.RequestID) (*procure.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPO(ctx, s.db, "request_id = ?", string(id))
}

// GetPOByNumber returns the purchase order with the given number.
func (s *Store) GetPOByNumber(ctx context.Context, number string) (*procure.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPO(ctx, s.db, "po_number = ?", number)
}

func getPO(ctx context.Context, db dbtx, where, arg string) (*procure.PurchaseOrder, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, po_number, request_id, buyer, vendor_name, vendor_contact, items_json, total, issued_at
		FROM purchase_orders
		WHERE `+where, arg)

	var (
		po            procure.PurchaseOrder
		vendorName    sql.NullString
		vendorContact sql.NullString
		itemsJSON     string
		total         string
		issuedAt      string
	)
	err := row.Scan(&po.ID, &po.Number, &po.RequestID, &po.Buyer,
		&vendorName, &vendorContact, &itemsJSON, &total, &issuedAt)
	if err == sql.ErrNoRows {
		return nil, &procure.NotFoundError{Kind: "purchase_order", ID: arg}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan purchase order: %w", err)
	}

	po.VendorName = vendorName.String
	po.VendorContact = vendorContact.String
	po.Total = procure.MustDecimal(total)
	po.IssuedAt = parseTime(issuedAt)
	if err := json.Unmarshal([]byte(itemsJSON), &po.Items); err != nil {
		return nil, fmt.Errorf("failed to decode purchase order items: %w", err)
	}
	return &po, nil
}

// NextPOSequence allocates the next purchase order sequence value.
func (s *Store) NextPOSequence(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nextPOSequence(ctx, s.db)
}

func nextPOSequence(ctx context.Context, db dbtx) (int64, error) {
	res, err := db.ExecContext(ctx,
		"INSERT INTO po_sequence (allocated_at) VALUES (?)",
		formatTime(time.Now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	return res.LastInsertId()
}

// =============================================================================
// AUDIT TRAIL (append-only)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e procure.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAudit(ctx, s.db, e)
}

func appendAudit(ctx context.Context, db dbtx, e procure.AuditEntry) error {
	detailJSON, _ := json.Marshal(e.Detail)
	_, err := db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, at, actor_id, action, request_id, detail_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, formatTime(e.At), e.ActorID, e.Action, e.RequestID, string(detailJSON))
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) QueryAudit(ctx context.Context, filter procure.AuditFilter) ([]procure.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryAudit(ctx, s.db, filter)
}

func queryAudit(ctx context.Context, db dbtx, filter procure.AuditFilter) ([]procure.AuditEntry, error) {
	query := "SELECT id, at, actor_id, action, request_id, detail_json FROM audit_entries"
	var conds []string
	var args []any
	if filter.RequestID != nil {
		conds = append(conds, "request_id = ?")
		args = append(args, *filter.RequestID)
	}
	if filter.ActorID != nil {
		conds = append(conds, "actor_id = ?")
		args = append(args, *filter.ActorID)
	}
	if len(filter.Actions) > 0 {
		placeholders := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			placeholders[i] = "?"
			args = append(args, a)
		}
		conds = append(conds, "action IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY at ASC, id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var out []procure.AuditEntry
	for rows.Next() {
		var (
			e          procure.AuditEntry
			at         string
			detailJSON sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &e.ActorID, &e.Action, &e.RequestID, &detailJSON); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.At = parseTime(at)
		if detailJSON.Valid && detailJSON.String != "" {
			if err := json.Unmarshal([]byte(detailJSON.String), &e.Detail); err != nil {
				return nil, fmt.Errorf("failed to decode audit detail: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (procure.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store procure.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore runs the same helpers against an open transaction. The parent's
// mutex is held for the duration of WithTx, so no additional locking here.
type txStore struct {
	tx *sql.Tx
}

func (t *txStore) CreateRequest(ctx context.Context, req *procure.PurchaseRequest) error {
	return createRequest(ctx, t.tx, req)
}

func (t *txStore) GetRequest(ctx context.Context, id procure.RequestID) (*procure.PurchaseRequest, error) {
	return getRequest(ctx, t.tx, id)
}

func (t *txStore) ListRequests(ctx context.Context, filter procure.RequestFilter) ([]*procure.PurchaseRequest, error) {
	return listRequests(ctx, t.tx, filter)
}

func (t *txStore) ReplaceItems(ctx context.Context, id procure.RequestID, items []procure.RequestItem, total decimal.Decimal) error {
	return replaceItems(ctx, t.tx, id, items, total)
}

func (t *txStore) SaveProforma(ctx context.Context, id procure.RequestID, p *procure.Proforma) error {
	return saveProforma(ctx, t.tx, id, p)
}

func (t *txStore) UpdateStatus(ctx context.Context, id procure.RequestID, from, to procure.RequestStatus) error {
	return updateStatus(ctx, t.tx, id, from, to)
}

func (t *txStore) AppendApproval(ctx context.Context, a procure.Approval) error {
	return appendApproval(ctx, t.tx, a)
}

func (t *txStore) GetApproval(ctx context.Context, id procure.RequestID, level procure.ApprovalLevel) (*procure.Approval, error) {
	return getApproval(ctx, t.tx, id, level)
}

func (t *txStore) ListApprovals(ctx context.Context, id procure.RequestID) ([]procure.Approval, error) {
	return listApprovals(ctx, t.tx, id)
}

func (t *txStore) CreatePO(ctx context.Context, po *procure.PurchaseOrder) error {
	return createPO(ctx, t.tx, po)
}

func (t *txStore) GetPOByRequest(ctx context.Context, id procure.RequestID) (*procure.PurchaseOrder, error) {
	return getPO(ctx, t.tx, "request_id = ?", string(id))
}

func (t *txStore) GetPOByNumber(ctx context.Context, number string) (*procure.PurchaseOrder, error) {
	return getPO(ctx, t.tx, "po_number = ?", number)
}

func (t *txStore) NextPOSequence(ctx context.Context) (int64, error) {
	return nextPOSequence(ctx, t.tx)
}

func (t *txStore) AppendAudit(ctx context.Context, e procure.AuditEntry) error {
	return appendAudit(ctx, t.tx, e)
}

func (t *txStore) QueryAudit(ctx context.Context, filter procure.AuditFilter) ([]procure.AuditEntry, error) {
	return queryAudit(ctx, t.tx, filter)
}

// =============================================================================
// IDENTITY DIRECTORY (identity.Store)
// =============================================================================

// CreateUser inserts an account. Duplicate emails map to ErrEmailTaken.
func (s *Store) CreateUser(ctx context.Context, u *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, department, phone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.Role,
		nullString(u.Department), nullString(u.Phone), formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return identity.ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser returns the account with the given ID.
func (s *Store) GetUser(ctx context.Context, id procure.UserID) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUser(ctx, "id = ?", string(id))
}

// GetUserByEmail returns the account with the given email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUser(ctx, "email = ?", email)
}

func (s *Store) getUser(ctx context.Context, where, arg string) (*identity.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, role, department, phone, created_at
		FROM users
		WHERE `+where, arg)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, identity.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers returns all accounts.
func (s *Store) ListUsers(ctx context.Context) ([]*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, name, password_hash, role, department, phone, created_at
		FROM users
		ORDER BY created_at ASC, email ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var out []*identity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUser(row interface{ Scan(dest ...any) error }) (*identity.User, error) {
	var (
		u          identity.User
		department sql.NullString
		phone      sql.NullString
		createdAt  string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &department, &phone, &createdAt)
	if err != nil {
		return nil, err
	}
	u.Department = department.String
	u.Phone = phone.String
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset clears all data. The purchase order sequence keeps counting so
// numbers from before a reset are never reissued.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{
		"audit_entries", "purchase_orders", "approvals", "request_items",
		"requests", "users", "po_sequence",
	} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func marshalProforma(p *procure.Proforma) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode proforma: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &procure.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
