package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/mfg-ledger/domain"
)

// =============================================================================
// CATALOG (domain.CatalogStore interface)
// =============================================================================

func (c *conn) InsertCustomer(ctx context.Context, cu domain.Customer) error {
	_, err := c.q.ExecContext(ctx,
		"INSERT INTO customers (id, code, name, created_at) VALUES (?, ?, ?, ?)",
		cu.ID, cu.Code, cu.Name, formatTime(cu.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return &domain.ConflictError{Entity: "customer", Field: "code", Value: cu.Code}
	}
	if err != nil {
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	return nil
}

func (c *conn) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var (
		cu        domain.Customer
		createdAt string
	)
	err := c.q.QueryRowContext(ctx,
		"SELECT id, code, name, created_at FROM customers WHERE id = ?", id,
	).Scan(&cu.ID, &cu.Code, &cu.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	cu.CreatedAt = parseTime(createdAt)
	return &cu, nil
}

func (c *conn) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT id, code, name, created_at FROM customers ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		var (
			cu        domain.Customer
			createdAt string
		)
		if err := rows.Scan(&cu.ID, &cu.Code, &cu.Name, &createdAt); err != nil {
			return nil, err
		}
		cu.CreatedAt = parseTime(createdAt)
		customers = append(customers, cu)
	}
	return customers, rows.Err()
}

func (c *conn) InsertWarehouse(ctx context.Context, w domain.Warehouse) error {
	_, err := c.q.ExecContext(ctx,
		"INSERT INTO warehouses (id, code, name, location, created_at) VALUES (?, ?, ?, ?, ?)",
		w.ID, w.Code, w.Name, nullString(w.Location), formatTime(w.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return &domain.ConflictError{Entity: "warehouse", Field: "code", Value: w.Code}
	}
	if err != nil {
		return fmt.Errorf("failed to insert warehouse: %w", err)
	}
	return nil
}

func (c *conn) GetWarehouse(ctx context.Context, id string) (*domain.Warehouse, error) {
	var (
		w         domain.Warehouse
		location  sql.NullString
		createdAt string
	)
	err := c.q.QueryRowContext(ctx,
		"SELECT id, code, name, location, created_at FROM warehouses WHERE id = ?", id,
	).Scan(&w.ID, &w.Code, &w.Name, &location, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get warehouse: %w", err)
	}
	w.Location = location.String
	w.CreatedAt = parseTime(createdAt)
	return &w, nil
}

func (c *conn) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT id, code, name, location, created_at FROM warehouses ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("failed to list warehouses: %w", err)
	}
	defer rows.Close()

	var warehouses []domain.Warehouse
	for rows.Next() {
		var (
			w         domain.Warehouse
			location  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&w.ID, &w.Code, &w.Name, &location, &createdAt); err != nil {
			return nil, err
		}
		w.Location = location.String
		w.CreatedAt = parseTime(createdAt)
		warehouses = append(warehouses, w)
	}
	return warehouses, rows.Err()
}

// =============================================================================
// MATERIALS (domain.MaterialStore interface)
// =============================================================================

const materialColumns = `id, customer_id, code, name, unit, current_stock, row_version, created_at, updated_at`

func (c *conn) InsertMaterial(ctx context.Context, m domain.Material) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO materials
		(id, customer_id, customer_scope, code, name, unit, current_stock, row_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, nullStringPtr(m.CustomerID), m.CustomerScope(), m.Code, m.Name, nullString(m.Unit),
		m.CurrentStock, m.RowVersion, formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return &domain.ConflictError{Entity: "material", Field: "code", Value: m.Code}
	}
	if err != nil {
		return fmt.Errorf("failed to insert material: %w", err)
	}
	return nil
}

func (c *conn) GetMaterial(ctx context.Context, id string) (*domain.Material, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+materialColumns+" FROM materials WHERE id = ?", id)
	return scanMaterial(row)
}

func (c *conn) FindMaterialByCode(ctx context.Context, scope, code string) (*domain.Material, error) {
	row := c.q.QueryRowContext(ctx,
		"SELECT "+materialColumns+" FROM materials WHERE customer_scope = ? AND code = ?", scope, code)
	return scanMaterial(row)
}

func (c *conn) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT "+materialColumns+" FROM materials ORDER BY code, customer_scope")
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	defer rows.Close()

	var materials []domain.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, *m)
	}
	return materials, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row scanner) (*domain.Material, error) {
	var (
		m          domain.Material
		customerID sql.NullString
		unit       sql.NullString
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(&m.ID, &customerID, &m.Code, &m.Name, &unit,
		&m.CurrentStock, &m.RowVersion, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan material: %w", err)
	}
	m.CustomerID = stringPtr(customerID)
	m.Unit = unit.String
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

// UpdateMaterialStock is a compare-and-swap on row_version.
func (c *conn) UpdateMaterialStock(ctx context.Context, id string, expectedVersion int64, stock decimal.Decimal) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE materials
		SET current_stock = ?, row_version = row_version + 1, updated_at = ?
		WHERE id = ? AND row_version = ?`,
		stock, formatTime(time.Now()), id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update material stock: %w", err)
	}
	return expectOneRow(res)
}

// =============================================================================
// MOVEMENTS
// =============================================================================

func (c *conn) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var count int
	if err := c.q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (c *conn) ReceiptNumberExists(ctx context.Context, number string) (bool, error) {
	return c.exists(ctx, "SELECT COUNT(*) FROM material_receipts WHERE receipt_number = ?", number)
}

func (c *conn) InsertReceipt(ctx context.Context, r domain.MaterialReceipt) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO material_receipts
		(id, receipt_number, material_id, warehouse_id, customer_id, po_id, quantity, unit_price,
		 status, received_at, confirmed_at, confirmed_by, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ReceiptNumber, r.MaterialID, r.WarehouseID, r.CustomerID, nullStringPtr(r.POID),
		r.Quantity, r.UnitPrice, string(r.Status), formatTime(r.ReceivedAt),
		formatTimePtr(r.ConfirmedAt), nullString(r.ConfirmedBy), nullString(r.Notes),
		nullString(r.CreatedBy), formatTime(r.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return &domain.ConflictError{Entity: "material receipt", Field: "receipt number", Value: r.ReceiptNumber}
	}
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func (c *conn) GetReceipt(ctx context.Context, id string) (*domain.MaterialReceipt, error) {
	var (
		r                                     domain.MaterialReceipt
		poID, confirmedAt, confirmedBy, notes sql.NullString
		createdBy                             sql.NullString
		status, receivedAt, createdAt         string
	)
	err := c.q.QueryRowContext(ctx, `
		SELECT id, receipt_number, material_id, warehouse_id, customer_id, po_id, quantity, unit_price,
		       status, received_at, confirmed_at, confirmed_by, notes, created_by, created_at
		FROM material_receipts WHERE id = ?`, id,
	).Scan(&r.ID, &r.ReceiptNumber, &r.MaterialID, &r.WarehouseID, &r.CustomerID, &poID,
		&r.Quantity, &r.UnitPrice, &status, &receivedAt, &confirmedAt, &confirmedBy,
		&notes, &createdBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	r.POID = stringPtr(poID)
	r.Status = domain.ReceiptStatus(status)
	r.ReceivedAt = parseTime(receivedAt)
	r.ConfirmedAt = parseTimePtr(confirmedAt)
	r.ConfirmedBy = confirmedBy.String
	r.Notes = notes.String
	r.CreatedBy = createdBy.String
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

// ConfirmReceipt only matches PENDING rows, so a second confirm affects nothing.
func (c *conn) ConfirmReceipt(ctx context.Context, id string, at time.Time, by string) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE material_receipts
		SET status = ?, confirmed_at = ?, confirmed_by = ?
		WHERE id = ? AND status = ?`,
		string(domain.ReceiptReceived), formatTime(at), nullString(by), id, string(domain.ReceiptPending),
	)
	if err != nil {
		return fmt.Errorf("failed to confirm receipt: %w", err)
	}
	return expectOneRow(res)
}

func (c *conn) IssueNumberExists(ctx context.Context, number string) (bool, error) {
	return c.exists(ctx, "SELECT COUNT(*) FROM material_issues WHERE issue_number = ?", number)
}

func (c *conn) InsertIssue(ctx context.Context, i domain.MaterialIssue) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO material_issues
		(id, issue_number, material_id, warehouse_id, customer_id, quantity, reason, status,
		 issued_at, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.IssueNumber, i.MaterialID, i.WarehouseID, i.CustomerID, i.Quantity,
		nullString(i.Reason), string(i.Status), formatTime(i.IssuedAt), nullString(i.Notes),
		nullString(i.CreatedBy), formatTime(i.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return &domain.ConflictError{Entity: "material issue", Field: "issue number", Value: i.IssueNumber}
	}
	if err != nil {
		return fmt.Errorf("failed to insert issue: %w", err)
	}
	return nil
}

func (c *conn) GetIssue(ctx context.Context, id string) (*domain.MaterialIssue, error) {
	var (
		i                           domain.MaterialIssue
		reason, notes, createdBy    sql.NullString
		status, issuedAt, createdAt string
	)
	err := c.q.QueryRowContext(ctx, `
		SELECT id, issue_number, material_id, warehouse_id, customer_id, quantity, reason, status,
		       issued_at, notes, created_by, created_at
		FROM material_issues WHERE id = ?`, id,
	).Scan(&i.ID, &i.IssueNumber, &i.MaterialID, &i.WarehouseID, &i.CustomerID, &i.Quantity,
		&reason, &status, &issuedAt, &notes, &createdBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}
	i.Reason = reason.String
	i.Status = domain.IssueStatus(status)
	i.IssuedAt = parseTime(issuedAt)
	i.Notes = notes.String
	i.CreatedBy = createdBy.String
	i.CreatedAt = parseTime(createdAt)
	return &i, nil
}

func (c *conn) AdjustmentNumberExists(ctx context.Context, number string) (bool, error) {
	return c.exists(ctx, "SELECT COUNT(*) FROM material_adjustments WHERE adjustment_number = ?", number)
}

func (c *conn) InsertAdjustment(ctx context.Context, a domain.MaterialAdjustment) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO material_adjustments
		(id, adjustment_number, material_id, warehouse_id, customer_id, quantity, reason,
		 responsible_person, status, adjusted_at, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.AdjustmentNumber, a.MaterialID, a.WarehouseID, a.CustomerID, a.Quantity,
		a.Reason, a.ResponsiblePerson, string(a.Status), formatTime(a.AdjustedAt),
		nullString(a.Notes), nullString(a.CreatedBy), formatTime(a.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return &domain.ConflictError{Entity: "material adjustment", Field: "adjustment number", Value: a.AdjustmentNumber}
	}
	if err != nil {
		return fmt.Errorf("failed to insert adjustment: %w", err)
	}
	return nil
}

func (c *conn) GetAdjustment(ctx context.Context, id string) (*domain.MaterialAdjustment, error) {
	var (
		a                             domain.MaterialAdjustment
		notes, createdBy              sql.NullString
		status, adjustedAt, createdAt string
	)
	err := c.q.QueryRowContext(ctx, `
		SELECT id, adjustment_number, material_id, warehouse_id, customer_id, quantity, reason,
		       responsible_person, status, adjusted_at, notes, created_by, created_at
		FROM material_adjustments WHERE id = ?`, id,
	).Scan(&a.ID, &a.AdjustmentNumber, &a.MaterialID, &a.WarehouseID, &a.CustomerID, &a.Quantity,
		&a.Reason, &a.ResponsiblePerson, &status, &adjustedAt, &notes, &createdBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get adjustment: %w", err)
	}
	a.Status = domain.AdjustmentStatus(status)
	a.AdjustedAt = parseTime(adjustedAt)
	a.Notes = notes.String
	a.CreatedBy = createdBy.String
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

// =============================================================================
// LEDGER HISTORY (append-only)
// =============================================================================

func (c *conn) AppendHistory(ctx context.Context, h domain.MaterialTransactionHistory) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO material_transaction_history
		(id, material_id, warehouse_id, customer_id, transaction_type, reference_id, reference_number,
		 stock_before, quantity_change, stock_after, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.MaterialID, nullString(h.WarehouseID), nullString(h.CustomerID),
		string(h.TransactionType), h.ReferenceID, nullString(h.ReferenceNumber),
		h.StockBefore, h.QuantityChange, h.StockAfter, nullString(h.Notes),
		nullString(h.CreatedBy), formatTime(h.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

const historyColumns = `seq, id, material_id, warehouse_id, customer_id, transaction_type, reference_id,
	reference_number, stock_before, quantity_change, stock_after, notes, created_by, created_at`

func (c *conn) ListHistory(ctx context.Context, materialID string) ([]domain.MaterialTransactionHistory, error) {
	rows, err := c.q.QueryContext(ctx,
		"SELECT "+historyColumns+" FROM material_transaction_history WHERE material_id = ? ORDER BY seq ASC",
		materialID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []domain.MaterialTransactionHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, *h)
	}
	return history, rows.Err()
}

func (c *conn) LatestHistory(ctx context.Context, materialID string) (*domain.MaterialTransactionHistory, error) {
	row := c.q.QueryRowContext(ctx,
		"SELECT "+historyColumns+" FROM material_transaction_history WHERE material_id = ? ORDER BY seq DESC LIMIT 1",
		materialID)
	return scanHistory(row)
}

func scanHistory(row scanner) (*domain.MaterialTransactionHistory, error) {
	var (
		h                                                    domain.MaterialTransactionHistory
		warehouseID, customerID, refNumber, notes, createdBy sql.NullString
		txType, createdAt                                    string
	)
	err := row.Scan(&h.Seq, &h.ID, &h.MaterialID, &warehouseID, &customerID, &txType,
		&h.ReferenceID, &refNumber, &h.StockBefore, &h.QuantityChange, &h.StockAfter,
		&notes, &createdBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan history: %w", err)
	}
	h.WarehouseID = warehouseID.String
	h.CustomerID = customerID.String
	h.TransactionType = domain.TransactionType(txType)
	h.ReferenceNumber = refNumber.String
	h.Notes = notes.String
	h.CreatedBy = createdBy.String
	h.CreatedAt = parseTime(createdAt)
	return &h, nil
}

func (c *conn) AppendReceiptHistory(ctx context.Context, h domain.MaterialReceiptHistory) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO material_receipt_history
		(id, po_id, receipt_id, receipt_number, material_id, quantity, received_at, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.POID, h.ReceiptID, h.ReceiptNumber, h.MaterialID, h.Quantity,
		formatTime(h.ReceivedAt), nullString(h.CreatedBy), formatTime(h.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append receipt history: %w", err)
	}
	return nil
}

func (c *conn) ListReceiptHistory(ctx context.Context, poID string) ([]domain.MaterialReceiptHistory, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, po_id, receipt_id, receipt_number, material_id, quantity, received_at, created_by, created_at
		FROM material_receipt_history WHERE po_id = ? ORDER BY seq ASC`, poID)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipt history: %w", err)
	}
	defer rows.Close()

	var history []domain.MaterialReceiptHistory
	for rows.Next() {
		var (
			h                     domain.MaterialReceiptHistory
			createdBy             sql.NullString
			receivedAt, createdAt string
		)
		if err := rows.Scan(&h.ID, &h.POID, &h.ReceiptID, &h.ReceiptNumber, &h.MaterialID,
			&h.Quantity, &receivedAt, &createdBy, &createdAt); err != nil {
			return nil, err
		}
		h.ReceivedAt = parseTime(receivedAt)
		h.CreatedBy = createdBy.String
		h.CreatedAt = parseTime(createdAt)
		history = append(history, h)
	}
	return history, rows.Err()
}
