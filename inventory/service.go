/*
service.go - Material Stock Ledger

PURPOSE:
  Material.CurrentStock is a cached running balance. The only code that
  writes it is applyMovement, and every write is paired with exactly one
  MaterialTransactionHistory row in the same transaction:

    StockAfter = StockBefore + QuantityChange
    latest history row's StockAfter == Material.CurrentStock

MOVEMENTS:
  Receipt     +quantity   never fails numerically
  Issue       -quantity   InsufficientStockError if quantity > stock
  Adjustment  ±quantity   NegativeStockError if stock + quantity < 0

PRECONDITIONS:
  All checks (referenced rows exist, transaction number free, stock
  sufficient) run before the first write. A failed check returns the typed
  error and the transaction rolls back, so nothing is partially applied.

CONCURRENCY:
  Material rows carry RowVersion and the stock update is a compare-and-swap.
  A lost race surfaces as domain.ErrConcurrentModification and is safe to
  retry.

SEE ALSO:
  - stockin.go: batched receipts
  - audit.go: ledger replay check
  - catalog.go: customers, warehouses, materials and read queries
*/
package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/mfg-ledger/domain"
	"github.com/warp/mfg-ledger/metrics"
)

const module = "inventory"

// Number prefixes for generated transaction numbers.
const (
	PrefixReceipt    = "RCV"
	PrefixIssue      = "ISS"
	PrefixAdjustment = "ADJ"
	PrefixStockIn    = "STI"
)

// Service implements the Material Stock Ledger.
type Service struct {
	store   domain.TxStore
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	now   func() time.Time
	newID func() string
}

// NewService creates a stock ledger over store. m may be nil.
func NewService(store domain.TxStore, log logrus.FieldLogger, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		log:     log.WithField("module", module),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// =============================================================================
// RECEIPTS
// =============================================================================

func (s *Service) CreateReceipt(ctx context.Context, cmd CreateReceiptCommand) (*domain.MaterialReceipt, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, s.reject("create_receipt", err)
	}
	if cmd.Status == "" {
		cmd.Status = domain.ReceiptReceived
	}
	now := s.now()
	if cmd.ReceivedAt.IsZero() {
		cmd.ReceivedAt = now
	}
	if cmd.ReceiptNumber == "" {
		cmd.ReceiptNumber = s.generateNumber(PrefixReceipt, now)
	}

	var (
		receipt domain.MaterialReceipt
		history domain.MaterialTransactionHistory
	)
	err := s.store.WithTx(ctx, func(tx domain.Store) error {
		if err := s.checkParties(ctx, tx, cmd.WarehouseID, cmd.CustomerID); err != nil {
			return err
		}
		if err := checkReceiptNumber(ctx, tx, cmd.ReceiptNumber); err != nil {
			return err
		}
		po, err := s.linkedPO(ctx, tx, cmd.POID)
		if err != nil {
			return err
		}
		material, err := cmd.Material.resolve(ctx, s, tx)
		if err != nil {
			return err
		}

		receipt = domain.MaterialReceipt{
			ID:            s.newID(),
			ReceiptNumber: cmd.ReceiptNumber,
			MaterialID:    material.ID,
			WarehouseID:   cmd.WarehouseID,
			CustomerID:    cmd.CustomerID,
			POID:          po,
			Quantity:      cmd.Quantity,
			UnitPrice:     cmd.UnitPrice,
			Status:        cmd.Status,
			ReceivedAt:    cmd.ReceivedAt,
			Notes:         cmd.Notes,
			CreatedBy:     cmd.CreatedBy,
			CreatedAt:     now,
		}
		history, err = s.bookReceipt(ctx, tx, material, receipt)
		return err
	})
	if err != nil {
		return nil, s.reject("create_receipt", err)
	}

	s.logMovement("create_receipt", history)
	return &receipt, nil
}

// bookReceipt persists a receipt, applies it to stock and, when the receipt
// is linked to a PO, records it in the PO's receipt history.
func (s *Service) bookReceipt(ctx context.Context, tx domain.Store, material *domain.Material, r domain.MaterialReceipt) (domain.MaterialTransactionHistory, error) {
	if err := tx.InsertReceipt(ctx, r); err != nil {
		return domain.MaterialTransactionHistory{}, err
	}
	h, err := s.applyMovement(ctx, tx, material, movement{
		txType:          domain.TxReceipt,
		warehouseID:     r.WarehouseID,
		customerID:      r.CustomerID,
		referenceID:     r.ID,
		referenceNumber: r.ReceiptNumber,
		change:          r.Quantity,
		notes:           r.Notes,
		createdBy:       r.CreatedBy,
	})
	if err != nil {
		return h, err
	}
	if r.POID != nil {
		err = tx.AppendReceiptHistory(ctx, domain.MaterialReceiptHistory{
			ID:            s.newID(),
			POID:          *r.POID,
			ReceiptID:     r.ID,
			ReceiptNumber: r.ReceiptNumber,
			MaterialID:    r.MaterialID,
			Quantity:      r.Quantity,
			ReceivedAt:    r.ReceivedAt,
			CreatedBy:     r.CreatedBy,
			CreatedAt:     r.CreatedAt,
		})
	}
	return h, err
}

// ConfirmReceipt moves a PENDING receipt to RECEIVED. Stock was already
// booked when the receipt was created, so only the receipt row changes.
func (s *Service) ConfirmReceipt(ctx context.Context, receiptID, actor string) (*domain.MaterialReceipt, error) {
	var confirmed *domain.MaterialReceipt
	err := s.store.WithTx(ctx, func(tx domain.Store) error {
		r, err := tx.GetReceipt(ctx, receiptID)
		if err != nil {
			return err
		}
		if r == nil {
			return &domain.NotFoundError{Entity: "material receipt", ID: receiptID}
		}
		if r.Status != domain.ReceiptPending {
			return &domain.InvalidStateError{Entity: "material receipt", ID: receiptID, State: string(r.Status), Action: "confirm"}
		}
		if err := tx.ConfirmReceipt(ctx, r.ID, s.now(), actor); err != nil {
			return err
		}
		confirmed, err = tx.GetReceipt(ctx, r.ID)
		return err
	})
	if err != nil {
		return nil, s.reject("confirm_receipt", err)
	}

	s.metrics.RecordReceiptConfirmed()
	s.log.WithFields(logrus.Fields{
		"op":         "confirm_receipt",
		"receipt_id": receiptID,
		"actor":      actor,
	}).Info("material receipt confirmed")
	return confirmed, nil
}

// =============================================================================
// ISSUES AND ADJUSTMENTS
// =============================================================================

func (s *Service) CreateIssue(ctx context.Context, cmd CreateIssueCommand) (*domain.MaterialIssue, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, s.reject("create_issue", err)
	}
	now := s.now()
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = now
	}
	if cmd.IssueNumber == "" {
		cmd.IssueNumber = s.generateNumber(PrefixIssue, now)
	}

	var (
		issue   domain.MaterialIssue
		history domain.MaterialTransactionHistory
	)
	err := s.store.WithTx(ctx, func(tx domain.Store) error {
		material, err := s.loadMaterial(ctx, tx, cmd.MaterialID)
		if err != nil {
			return err
		}
		if err := s.checkParties(ctx, tx, cmd.WarehouseID, cmd.CustomerID); err != nil {
			return err
		}
		exists, err := tx.IssueNumberExists(ctx, cmd.IssueNumber)
		if err != nil {
			return err
		}
		if exists {
			return &domain.ConflictError{Entity: "material issue", Field: "issue number", Value: cmd.IssueNumber}
		}
		if cmd.Quantity.GreaterThan(material.CurrentStock) {
			return &domain.InsufficientStockError{
				MaterialID: material.ID,
				Available:  material.CurrentStock,
				Requested:  cmd.Quantity,
			}
		}

		issue = domain.MaterialIssue{
			ID:          s.newID(),
			IssueNumber: cmd.IssueNumber,
			MaterialID:  material.ID,
			WarehouseID: cmd.WarehouseID,
			CustomerID:  cmd.CustomerID,
			Quantity:    cmd.Quantity,
			Reason:      cmd.Reason,
			Status:      domain.IssueIssued,
			IssuedAt:    cmd.IssuedAt,
			Notes:       cmd.Notes,
			CreatedBy:   cmd.CreatedBy,
			CreatedAt:   now,
		}
		if err := tx.InsertIssue(ctx, issue); err != nil {
			return err
		}
		history, err = s.applyMovement(ctx, tx, material, movement{
			txType:          domain.TxIssue,
			warehouseID:     issue.WarehouseID,
			customerID:      issue.CustomerID,
			referenceID:     issue.ID,
			referenceNumber: issue.IssueNumber,
			change:          issue.Quantity.Neg(),
			notes:           issue.Notes,
			createdBy:       issue.CreatedBy,
		})
		return err
	})
	if err != nil {
		return nil, s.reject("create_issue", err)
	}

	s.logMovement("create_issue", history)
	return &issue, nil
}

func (s *Service) CreateAdjustment(ctx context.Context, cmd CreateAdjustmentCommand) (*domain.MaterialAdjustment, error) {
	cmd.normalize()
	if err := domain.Validate(cmd); err != nil {
		return nil, s.reject("create_adjustment", err)
	}
	now := s.now()
	if cmd.AdjustedAt.IsZero() {
		cmd.AdjustedAt = now
	}
	if cmd.AdjustmentNumber == "" {
		cmd.AdjustmentNumber = s.generateNumber(PrefixAdjustment, now)
	}

	var (
		adj     domain.MaterialAdjustment
		history domain.MaterialTransactionHistory
	)
	err := s.store.WithTx(ctx, func(tx domain.Store) error {
		material, err := s.loadMaterial(ctx, tx, cmd.MaterialID)
		if err != nil {
			return err
		}
		if err := s.checkParties(ctx, tx, cmd.WarehouseID, cmd.CustomerID); err != nil {
			return err
		}
		exists, err := tx.AdjustmentNumberExists(ctx, cmd.AdjustmentNumber)
		if err != nil {
			return err
		}
		if exists {
			return &domain.ConflictError{Entity: "material adjustment", Field: "adjustment number", Value: cmd.AdjustmentNumber}
		}
		if material.CurrentStock.Add(cmd.Quantity).IsNegative() {
			return &domain.NegativeStockError{
				MaterialID: material.ID,
				Current:    material.CurrentStock,
				Change:     cmd.Quantity,
			}
		}

		adj = domain.MaterialAdjustment{
			ID:                s.newID(),
			AdjustmentNumber:  cmd.AdjustmentNumber,
			MaterialID:        material.ID,
			WarehouseID:       cmd.WarehouseID,
			CustomerID:        cmd.CustomerID,
			Quantity:          cmd.Quantity,
			Reason:            cmd.Reason,
			ResponsiblePerson: cmd.ResponsiblePerson,
			Status:            domain.AdjustmentApproved,
			AdjustedAt:        cmd.AdjustedAt,
			Notes:             cmd.Notes,
			CreatedBy:         cmd.CreatedBy,
			CreatedAt:         now,
		}
		if err := tx.InsertAdjustment(ctx, adj); err != nil {
			return err
		}
		history, err = s.applyMovement(ctx, tx, material, movement{
			txType:          domain.TxAdjustment,
			warehouseID:     adj.WarehouseID,
			customerID:      adj.CustomerID,
			referenceID:     adj.ID,
			referenceNumber: adj.AdjustmentNumber,
			change:          adj.Quantity,
			notes:           adjustmentNotes(adj),
			createdBy:       adj.CreatedBy,
		})
		return err
	})
	if err != nil {
		return nil, s.reject("create_adjustment", err)
	}

	s.logMovement("create_adjustment", history)
	return &adj, nil
}

func adjustmentNotes(a domain.MaterialAdjustment) string {
	notes := fmt.Sprintf("Reason: %s; Responsible: %s", a.Reason, a.ResponsiblePerson)
	if a.Notes != "" {
		notes += "; " + a.Notes
	}
	return notes
}

// =============================================================================
// LEDGER WRITE
// =============================================================================

type movement struct {
	txType          domain.TransactionType
	warehouseID     string
	customerID      string
	referenceID     string
	referenceNumber string
	change          decimal.Decimal
	notes           string
	createdBy       string
}

// applyMovement is the single writer of Material.CurrentStock. It updates the
// cached balance with a compare-and-swap and appends the paired history row.
// material is advanced in place so later lines of a batch see the new balance.
func (s *Service) applyMovement(ctx context.Context, tx domain.Store, material *domain.Material, mv movement) (domain.MaterialTransactionHistory, error) {
	before := material.CurrentStock
	after := before.Add(mv.change)

	if err := tx.UpdateMaterialStock(ctx, material.ID, material.RowVersion, after); err != nil {
		return domain.MaterialTransactionHistory{}, err
	}
	material.CurrentStock = after
	material.RowVersion++

	h := domain.MaterialTransactionHistory{
		ID:              s.newID(),
		MaterialID:      material.ID,
		WarehouseID:     mv.warehouseID,
		CustomerID:      mv.customerID,
		TransactionType: mv.txType,
		ReferenceID:     mv.referenceID,
		ReferenceNumber: mv.referenceNumber,
		StockBefore:     before,
		QuantityChange:  mv.change,
		StockAfter:      after,
		Notes:           mv.notes,
		CreatedBy:       mv.createdBy,
		CreatedAt:       s.now(),
	}
	return h, tx.AppendHistory(ctx, h)
}

// =============================================================================
// PRECONDITIONS
// =============================================================================

func (s *Service) loadMaterial(ctx context.Context, tx domain.Store, id string) (*domain.Material, error) {
	return ExistingMaterial{ID: id}.resolve(ctx, s, tx)
}

func (s *Service) checkParties(ctx context.Context, tx domain.Store, warehouseID, customerID string) error {
	w, err := tx.GetWarehouse(ctx, warehouseID)
	if err != nil {
		return err
	}
	if w == nil {
		return &domain.NotFoundError{Entity: "warehouse", ID: warehouseID}
	}
	c, err := tx.GetCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if c == nil {
		return &domain.NotFoundError{Entity: "customer", ID: customerID}
	}
	return nil
}

func checkReceiptNumber(ctx context.Context, tx domain.Store, number string) error {
	exists, err := tx.ReceiptNumberExists(ctx, number)
	if err != nil {
		return err
	}
	if exists {
		return &domain.ConflictError{Entity: "material receipt", Field: "receipt number", Value: number}
	}
	return nil
}

// linkedPO resolves an optional PO reference; "" means no link.
func (s *Service) linkedPO(ctx context.Context, tx domain.Store, poID string) (*string, error) {
	if poID == "" {
		return nil, nil
	}
	po, err := tx.GetPO(ctx, poID)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, &domain.NotFoundError{Entity: "purchase order", ID: poID}
	}
	return &po.ID, nil
}

// generateNumber returns PREFIX-YYYYMMDD-XXXXXXXX.
func (s *Service) generateNumber(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(s.newID(), "-", ""))
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), suffix)
}

// =============================================================================
// LOGGING
// =============================================================================

func (s *Service) logMovement(op string, h domain.MaterialTransactionHistory) {
	s.metrics.RecordMovement(string(h.TransactionType), h.QuantityChange)
	s.log.WithFields(logrus.Fields{
		"op":           op,
		"material_id":  h.MaterialID,
		"reference":    h.ReferenceNumber,
		"change":       h.QuantityChange.String(),
		"stock_before": h.StockBefore.String(),
		"stock_after":  h.StockAfter.String(),
	}).Info("stock movement recorded")
}

// reject logs and counts a failed operation, then returns err unchanged.
func (s *Service) reject(op string, err error) error {
	kind := domain.Kind(err)
	s.metrics.RecordRejection(module, op, kind)
	entry := s.log.WithFields(logrus.Fields{"op": op, "kind": kind})
	if domain.IsClientError(err) || domain.IsRetryable(err) {
		entry.WithError(err).Warn("stock operation rejected")
	} else {
		entry.WithError(err).Error("stock operation failed")
	}
	return err
}
