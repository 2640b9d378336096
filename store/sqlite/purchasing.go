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
// PURCHASE ORDERS (domain.PurchaseOrderStore interface)
// =============================================================================

const poColumns = `id, po_number, customer_id, version, version_number, original_po_id, status,
	total_amount, order_date, due_date, notes, created_by, created_at, updated_at, row_version`

func (c *conn) InsertPO(ctx context.Context, po domain.PurchaseOrder) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO purchase_orders
		(id, po_number, customer_id, version, version_number, original_po_id, root_id, status,
		 total_amount, order_date, due_date, notes, created_by, created_at, updated_at, row_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		po.ID, po.PONumber, po.CustomerID, po.Version, po.VersionNumber,
		nullStringPtr(po.OriginalPOID), po.RootID(), string(po.Status), po.TotalAmount,
		formatTime(po.OrderDate), formatTimePtr(po.DueDate), nullString(po.Notes),
		nullString(po.CreatedBy), formatTime(po.CreatedAt), formatTime(po.UpdatedAt), po.RowVersion,
	)
	if isUniqueConstraintError(err) {
		if po.IsRoot() {
			return &domain.ConflictError{Entity: "purchase order", Field: "PO number", Value: po.PONumber}
		}
		// Two clones raced for the same version number.
		return domain.ErrConcurrentModification
	}
	if err != nil {
		return fmt.Errorf("failed to insert purchase order: %w", err)
	}
	return nil
}

func (c *conn) GetPO(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+poColumns+" FROM purchase_orders WHERE id = ?", id)
	return scanPO(row)
}

func (c *conn) FindPOByNumber(ctx context.Context, number string) (*domain.PurchaseOrder, error) {
	row := c.q.QueryRowContext(ctx,
		"SELECT "+poColumns+" FROM purchase_orders WHERE po_number = ? AND original_po_id IS NULL", number)
	return scanPO(row)
}

func (c *conn) ListPOs(ctx context.Context) ([]domain.PurchaseOrder, error) {
	return c.queryPOs(ctx, "SELECT "+poColumns+" FROM purchase_orders ORDER BY po_number, version_number")
}

func (c *conn) ListChain(ctx context.Context, rootID string) ([]domain.PurchaseOrder, error) {
	return c.queryPOs(ctx,
		"SELECT "+poColumns+" FROM purchase_orders WHERE root_id = ? ORDER BY version_number", rootID)
}

func (c *conn) queryPOs(ctx context.Context, query string, args ...any) ([]domain.PurchaseOrder, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase orders: %w", err)
	}
	defer rows.Close()

	var pos []domain.PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, err
		}
		pos = append(pos, *po)
	}
	return pos, rows.Err()
}

func scanPO(row scanner) (*domain.PurchaseOrder, error) {
	var (
		po                                  domain.PurchaseOrder
		originalPOID, dueDate, notes, by    sql.NullString
		status, orderDate, created, updated string
	)
	err := row.Scan(&po.ID, &po.PONumber, &po.CustomerID, &po.Version, &po.VersionNumber,
		&originalPOID, &status, &po.TotalAmount, &orderDate, &dueDate, &notes, &by,
		&created, &updated, &po.RowVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan purchase order: %w", err)
	}
	po.OriginalPOID = stringPtr(originalPOID)
	po.Status = domain.POStatus(status)
	po.OrderDate = parseTime(orderDate)
	po.DueDate = parseTimePtr(dueDate)
	po.Notes = notes.String
	po.CreatedBy = by.String
	po.CreatedAt = parseTime(created)
	po.UpdatedAt = parseTime(updated)
	return &po, nil
}

// UpdatePOStatus is a compare-and-swap on row_version. Promoting a second
// version of a chain trips idx_po_single_approved and is reported the same way.
func (c *conn) UpdatePOStatus(ctx context.Context, id string, expectedVersion int64, status domain.POStatus) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE purchase_orders
		SET status = ?, row_version = row_version + 1, updated_at = ?
		WHERE id = ? AND row_version = ?`,
		string(status), formatTime(time.Now()), id, expectedVersion,
	)
	if isUniqueConstraintError(err) {
		return domain.ErrConcurrentModification
	}
	if err != nil {
		return fmt.Errorf("failed to update purchase order status: %w", err)
	}
	return expectOneRow(res)
}

func (c *conn) UpdatePOTotal(ctx context.Context, id string, expectedVersion int64, total decimal.Decimal) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE purchase_orders
		SET total_amount = ?, row_version = row_version + 1, updated_at = ?
		WHERE id = ? AND row_version = ?`,
		total, formatTime(time.Now()), id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update purchase order total: %w", err)
	}
	return expectOneRow(res)
}

// DeleteChain removes line items explicitly so it does not depend on the
// foreign_keys pragma being honoured.
func (c *conn) DeleteChain(ctx context.Context, rootID string) error {
	statements := []string{
		"DELETE FROM po_operations WHERE po_id IN (SELECT id FROM purchase_orders WHERE root_id = ?)",
		"DELETE FROM po_products WHERE po_id IN (SELECT id FROM purchase_orders WHERE root_id = ?)",
		"DELETE FROM po_material_baselines WHERE po_id IN (SELECT id FROM purchase_orders WHERE root_id = ?)",
		"DELETE FROM purchase_orders WHERE root_id = ?",
	}
	for _, stmt := range statements {
		if _, err := c.q.ExecContext(ctx, stmt, rootID); err != nil {
			return fmt.Errorf("failed to delete purchase order chain: %w", err)
		}
	}
	return nil
}

// =============================================================================
// OPERATIONS
// =============================================================================

const operationColumns = `id, po_id, sequence, part_id, product_id, processing_type, process_method,
	description, charge_count, unit_price, quantity, total_amount, notes, created_at, updated_at`

func (c *conn) InsertOperation(ctx context.Context, op domain.POOperation) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO po_operations (`+operationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.POID, op.Sequence, nullStringPtr(op.PartID), nullStringPtr(op.ProductID),
		op.ProcessingType, nullString(op.ProcessMethod), nullString(op.Description),
		op.ChargeCount, op.UnitPrice, op.Quantity, op.TotalAmount, nullString(op.Notes),
		formatTime(op.CreatedAt), formatTime(op.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert operation: %w", err)
	}
	return nil
}

func (c *conn) GetOperation(ctx context.Context, id string) (*domain.POOperation, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+operationColumns+" FROM po_operations WHERE id = ?", id)
	return scanOperation(row)
}

func (c *conn) UpdateOperation(ctx context.Context, op domain.POOperation) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE po_operations
		SET sequence = ?, part_id = ?, product_id = ?, processing_type = ?, process_method = ?,
		    description = ?, charge_count = ?, unit_price = ?, quantity = ?, total_amount = ?,
		    notes = ?, updated_at = ?
		WHERE id = ?`,
		op.Sequence, nullStringPtr(op.PartID), nullStringPtr(op.ProductID), op.ProcessingType,
		nullString(op.ProcessMethod), nullString(op.Description), op.ChargeCount, op.UnitPrice,
		op.Quantity, op.TotalAmount, nullString(op.Notes), formatTime(op.UpdatedAt), op.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update operation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Entity: "operation", ID: op.ID}
	}
	return nil
}

func (c *conn) DeleteOperation(ctx context.Context, id string) error {
	if _, err := c.q.ExecContext(ctx, "DELETE FROM po_operations WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	return nil
}

func (c *conn) ListOperations(ctx context.Context, poID string) ([]domain.POOperation, error) {
	rows, err := c.q.QueryContext(ctx,
		"SELECT "+operationColumns+" FROM po_operations WHERE po_id = ? ORDER BY sequence, id", poID)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var ops []domain.POOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, *op)
	}
	return ops, rows.Err()
}

func scanOperation(row scanner) (*domain.POOperation, error) {
	var (
		op                                     domain.POOperation
		partID, productID, method, desc, notes sql.NullString
		createdAt, updatedAt                   string
	)
	err := row.Scan(&op.ID, &op.POID, &op.Sequence, &partID, &productID, &op.ProcessingType,
		&method, &desc, &op.ChargeCount, &op.UnitPrice, &op.Quantity, &op.TotalAmount,
		&notes, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan operation: %w", err)
	}
	op.PartID = stringPtr(partID)
	op.ProductID = stringPtr(productID)
	op.ProcessMethod = method.String
	op.Description = desc.String
	op.Notes = notes.String
	op.CreatedAt = parseTime(createdAt)
	op.UpdatedAt = parseTime(updatedAt)
	return &op, nil
}

// =============================================================================
// PRODUCTS AND MATERIAL BASELINES
// =============================================================================

func (c *conn) InsertProduct(ctx context.Context, p domain.POProduct) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO po_products
		(id, po_id, product_code, product_name, quantity, unit_price, total_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.POID, p.ProductCode, nullString(p.ProductName), p.Quantity, p.UnitPrice,
		p.TotalAmount, formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert product line: %w", err)
	}
	return nil
}

func (c *conn) ListProducts(ctx context.Context, poID string) ([]domain.POProduct, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, po_id, product_code, product_name, quantity, unit_price, total_amount, created_at
		FROM po_products WHERE po_id = ? ORDER BY seq`, poID)
	if err != nil {
		return nil, fmt.Errorf("failed to query product lines: %w", err)
	}
	defer rows.Close()

	var products []domain.POProduct
	for rows.Next() {
		var (
			p         domain.POProduct
			name      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.POID, &p.ProductCode, &name, &p.Quantity, &p.UnitPrice,
			&p.TotalAmount, &createdAt); err != nil {
			return nil, err
		}
		p.ProductName = name.String
		p.CreatedAt = parseTime(createdAt)
		products = append(products, p)
	}
	return products, rows.Err()
}

func (c *conn) InsertBaseline(ctx context.Context, b domain.POMaterialBaseline) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO po_material_baselines (id, po_id, material_id, required_quantity, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.POID, b.MaterialID, b.RequiredQuantity, nullString(b.Notes), formatTime(b.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert material baseline: %w", err)
	}
	return nil
}

func (c *conn) ListBaselines(ctx context.Context, poID string) ([]domain.POMaterialBaseline, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, po_id, material_id, required_quantity, notes, created_at
		FROM po_material_baselines WHERE po_id = ? ORDER BY seq`, poID)
	if err != nil {
		return nil, fmt.Errorf("failed to query material baselines: %w", err)
	}
	defer rows.Close()

	var baselines []domain.POMaterialBaseline
	for rows.Next() {
		var (
			b         domain.POMaterialBaseline
			notes     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&b.ID, &b.POID, &b.MaterialID, &b.RequiredQuantity, &notes, &createdAt); err != nil {
			return nil, err
		}
		b.Notes = notes.String
		b.CreatedAt = parseTime(createdAt)
		baselines = append(baselines, b)
	}
	return baselines, rows.Err()
}
