/*
service.go - PO Version Ledger

PURPOSE:
  Purchase orders are versioned rather than edited. Every PO belongs to a
  chain: the root (V0, OriginalPOID == nil) and any number of clones
  (V1, V2, ...) that point back at the root. Exactly zero or one member of a
  chain is APPROVED_FOR_PMC at a time; that is the version production
  planning works from.

LIFECYCLE:
  DRAFT ──approve──► APPROVED_FOR_PMC ──lock──► LOCKED
    ▲                      │
    └──── demoted when a sibling is approved

  - CreatePO:       root at V0, DRAFT, total = Σ product lines
  - CloneVersion:   V(max+1), DRAFT, deep copy of every line item
  - ApproveVersion: demote approved siblings, promote target (one transaction)
  - LockVersion:    APPROVED_FOR_PMC → LOCKED; operations become read-only
  - DeletePO:       deletes the whole chain, whichever member is named

OPERATIONS AND TOTALS:
  After any operation write the PO total is re-summed from every current
  operation row. It is never adjusted incrementally.

CONCURRENCY:
  Each mutation runs in TxStore.WithTx. PO rows are updated with a
  compare-and-swap on RowVersion, and the store rejects a second approved
  row per chain, so two racing approvals cannot both commit.
*/
package purchasing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/mfg-ledger/domain"
	"github.com/warp/mfg-ledger/metrics"
)

const module = "purchasing"

// Service implements the PO Version Ledger.
type Service struct {
	store   domain.TxStore
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	now   func() time.Time
	newID func() string
}

// NewService creates a PO ledger over store. m may be nil.
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
// CHAIN LIFECYCLE
// =============================================================================

// CreatePO creates the root version of a new PO chain.
func (s *Service) CreatePO(ctx context.Context, cmd CreatePOCommand) (*POView, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, s.reject("create_po", err)
	}

	now := s.now()
	po := domain.PurchaseOrder{
		ID:            s.newID(),
		PONumber:      cmd.PONumber,
		CustomerID:    cmd.CustomerID,
		Version:       domain.VersionLabel(0),
		VersionNumber: 0,
		Status:        domain.POStatusDraft,
		OrderDate:     cmd.OrderDate,
		DueDate:       cmd.DueDate,
		Notes:         cmd.Notes,
		CreatedBy:     cmd.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if po.OrderDate.IsZero() {
		po.OrderDate = now
	}

	view := &POView{PurchaseOrder: po}
	for _, line := range cmd.Products {
		p := domain.POProduct{
			ID:          s.newID(),
			POID:        po.ID,
			ProductCode: line.ProductCode,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			CreatedAt:   now,
		}
		p.Recompute()
		view.Products = append(view.Products, p)
	}
	for _, line := range cmd.Baselines {
		view.Baselines = append(view.Baselines, domain.POMaterialBaseline{
			ID:               s.newID(),
			POID:             po.ID,
			MaterialID:       line.MaterialID,
			RequiredQuantity: line.RequiredQuantity,
			Notes:            line.Notes,
			CreatedAt:        now,
		})
	}
	view.TotalAmount = domain.SumProducts(view.Products)

	err := s.store.WithTx(ctx, func(tx domain.Store) error {
		customer, err := tx.GetCustomer(ctx, cmd.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return &domain.NotFoundError{Entity: "customer", ID: cmd.CustomerID}
		}
		existing, err := tx.FindPOByNumber(ctx, cmd.PONumber)
		if err != nil {
			return err
		}
		if existing != nil {
			return &domain.ConflictError{Entity: "purchase order", Field: "PO number", Value: cmd.PONumber}
		}
		for _, b := range view.Baselines {
			m, err := tx.GetMaterial(ctx, b.MaterialID)
			if err != nil {
				return err
			}
			if m == nil {
				return &domain.NotFoundError{Entity: "material", ID: b.MaterialID}
			}
		}

		if err := tx.InsertPO(ctx, view.PurchaseOrder); err != nil {
			return err
		}
		return s.insertLines(ctx, tx, view.Products, view.Baselines)
	})
	if err != nil {
		return nil, s.reject("create_po", err)
	}

	s.metrics.RecordPOAction("create")
	s.log.WithFields(logrus.Fields{
		"op":        "create_po",
		"po_id":     po.ID,
		"po_number": po.PONumber,
		"total":     view.TotalAmount.String(),
	}).Info("purchase order created")
	return view, nil
}

// CloneVersion copies the source version into a new DRAFT at the end of its chain.
func (s *Service) CloneVersion(ctx context.Context, cmd CloneVersionCommand) (*POView, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, s.reject("clone_version", err)
	}

	var view *POView
	err := s.store.WithTx(ctx, func(tx domain.Store) error {
		source, err := tx.GetPO(ctx, cmd.SourcePOID)
		if err != nil {
			return err
		}
		if source == nil {
			return &domain.NotFoundError{Entity: "purchase order", ID: cmd.SourcePOID}
		}

		rootID := source.RootID()
		chain, err := tx.ListChain(ctx, rootID)
		if err != nil {
			return err
		}
		next := 0
		for _, v := range chain {
			if v.VersionNumber > next {
				next = v.VersionNumber
			}
		}
		next++

		now := s.now()
		clone := domain.PurchaseOrder{
			ID:            s.newID(),
			PONumber:      source.PONumber,
			CustomerID:    source.CustomerID,
			Version:       domain.VersionLabel(next),
			VersionNumber: next,
			OriginalPOID:  &rootID,
			Status:        domain.POStatusDraft,
			TotalAmount:   source.TotalAmount,
			OrderDate:     source.OrderDate,
			DueDate:       source.DueDate,
			Notes:         source.Notes,
			CreatedBy:     cmd.CreatedBy,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if cmd.Notes != "" {
			clone.Notes = cmd.Notes
		}
		if err := tx.InsertPO(ctx, clone); err != nil {
			return err
		}

		ops, err := tx.ListOperations(ctx, source.ID)
		if err != nil {
			return err
		}
		products, err := tx.ListProducts(ctx, source.ID)
		if err != nil {
			return err
		}
		baselines, err := tx.ListBaselines(ctx, source.ID)
		if err != nil {
			return err
		}

		view = &POView{PurchaseOrder: clone}
		for _, op := range ops {
			op.ID = s.newID()
			op.POID = clone.ID
			op.CreatedAt, op.UpdatedAt = now, now
			if err := tx.InsertOperation(ctx, op); err != nil {
				return err
			}
			view.Operations = append(view.Operations, op)
		}
		for i := range products {
			products[i].ID = s.newID()
			products[i].POID = clone.ID
			products[i].CreatedAt = now
		}
		for i := range baselines {
			baselines[i].ID = s.newID()
			baselines[i].POID = clone.ID
			baselines[i].CreatedAt = now
		}
		view.Products, view.Baselines = products, baselines
		return s.insertLines(ctx, tx, products, baselines)
	})
	if err != nil {
		return nil, s.reject("clone_version", err)
	}

	s.metrics.RecordPOAction("clone")
	s.log.WithFields(logrus.Fields{
		"op":      "clone_version",
		"po_id":   view.ID,
		"source":  cmd.SourcePOID,
		"version": view.Version,
	}).Info("purchase order version cloned")
	return view, nil
}

// ApproveVersion makes poID the single APPROVED_FOR_PMC version of its chain,
// demoting whichever sibling held that status.
func (s *Service) ApproveVersion(ctx context.Context, poID, actor string) (*domain.PurchaseOrder, error) {
	var approved *domain.PurchaseOrder
	var demoted []string
	err := s.store.WithTx(ctx, func(tx domain.Store) error {
		po, err := tx.GetPO(ctx, poID)
		if err != nil {
			return err
		}
		if po == nil {
			return &domain.NotFoundError{Entity: "purchase order", ID: poID}
		}
		if po.Status == domain.POStatusLocked || po.Status == domain.POStatusApprovedForPMC {
			return &domain.InvalidStateError{Entity: "purchase order", ID: poID, State: string(po.Status), Action: "approve"}
		}

		chain, err := tx.ListChain(ctx, po.RootID())
		if err != nil {
			return err
		}
		for _, sibling := range chain {
			if sibling.ID == po.ID || sibling.Status != domain.POStatusApprovedForPMC {
				continue
			}
			if err := tx.UpdatePOStatus(ctx, sibling.ID, sibling.RowVersion, domain.POStatusDraft); err != nil {
				return err
			}
			demoted = append(demoted, sibling.ID)
		}
		if err := tx.UpdatePOStatus(ctx, po.ID, po.RowVersion, domain.POStatusApprovedForPMC); err != nil {
			return err
		}

		approved, err = tx.GetPO(ctx, po.ID)
		return err
	})
	if err != nil {
		return nil, s.reject("approve_version", err)
	}

	s.metrics.RecordPOAction("approve")
	s.log.WithFields(logrus.Fields{
		"op":      "approve_version",
		"po_id":   poID,
		"version": approved.Version,
		"demoted": demoted,
		"actor":   actor,
	}).Info("purchase order version approved")
	return approved, nil
}

// LockVersion hands an approved version to production. Its operations become read-only.
func (s *Service) LockVersion(ctx context.Context, poID, actor string) (*domain.PurchaseOrder, error) {
	var locked *domain.PurchaseOrder
	err := s.store.WithTx(ctx, func(tx domain.Store) error {
		po, err := tx.GetPO(ctx, poID)
		if err != nil {
			return err
		}
		if po == nil {
			return &domain.NotFoundError{Entity: "purchase order", ID: poID}
		}
		if po.Status != domain.POStatusApprovedForPMC {
			return &domain.InvalidStateError{Entity: "purchase order", ID: poID, State: string(po.Status), Action: "lock"}
		}
		if err := tx.UpdatePOStatus(ctx, po.ID, po.RowVersion, domain.POStatusLocked); err != nil {
			return err
		}
		locked, err = tx.GetPO(ctx, po.ID)
		return err
	})
	if err != nil {
		return nil, s.reject("lock_version", err)
	}

	s.metrics.RecordPOAction("lock")
	s.log.WithFields(logrus.Fields{"op": "lock_version", "po_id": poID, "actor": actor}).Info("purchase order version locked")
	return locked, nil
}

// DeletePO deletes the entire chain poID belongs to.
func (s *Service) DeletePO(ctx context.Context, poID string) error {
	var rootID string
	err := s.store.WithTx(ctx, func(tx domain.Store) error {
		po, err := tx.GetPO(ctx, poID)
		if err != nil {
			return err
		}
		if po == nil {
			return &domain.NotFoundError{Entity: "purchase order", ID: poID}
		}
		rootID = po.RootID()
		return tx.DeleteChain(ctx, rootID)
	})
	if err != nil {
		return s.reject("delete_po", err)
	}

	s.metrics.RecordPOAction("delete")
	s.log.WithFields(logrus.Fields{"op": "delete_po", "po_id": poID, "root_id": rootID}).Info("purchase order chain deleted")
	return nil
}

// =============================================================================
// OPERATIONS
// =============================================================================

func (s *Service) CreateOperation(ctx context.Context, cmd CreateOperationCommand) (*domain.POOperation, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, s.reject("create_operation", err)
	}

	var op domain.POOperation
	err := s.store.WithTx(ctx, func(tx domain.Store) error {
		po, err := s.editablePO(ctx, tx, cmd.POID, "add operation to")
		if err != nil {
			return err
		}
		existing, err := tx.ListOperations(ctx, po.ID)
		if err != nil {
			return err
		}

		now := s.now()
		op = domain.POOperation{ID: s.newID(), POID: po.ID, CreatedAt: now, UpdatedAt: now}
		cmd.OperationFields.apply(&op)
		if op.Sequence == 0 {
			op.Sequence = nextSequence(existing)
		}
		if err := tx.InsertOperation(ctx, op); err != nil {
			return err
		}
		return resumTotal(ctx, tx, po)
	})
	if err != nil {
		return nil, s.reject("create_operation", err)
	}

	s.logOperation("create_operation", &op)
	return &op, nil
}

func (s *Service) UpdateOperation(ctx context.Context, cmd UpdateOperationCommand) (*domain.POOperation, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, s.reject("update_operation", err)
	}

	var op *domain.POOperation
	err := s.store.WithTx(ctx, func(tx domain.Store) error {
		var err error
		op, err = tx.GetOperation(ctx, cmd.OperationID)
		if err != nil {
			return err
		}
		if op == nil {
			return &domain.NotFoundError{Entity: "operation", ID: cmd.OperationID}
		}
		po, err := s.editablePO(ctx, tx, op.POID, "update operation of")
		if err != nil {
			return err
		}

		cmd.OperationFields.apply(op)
		op.UpdatedAt = s.now()
		if err := tx.UpdateOperation(ctx, *op); err != nil {
			return err
		}
		return resumTotal(ctx, tx, po)
	})
	if err != nil {
		return nil, s.reject("update_operation", err)
	}

	s.logOperation("update_operation", op)
	return op, nil
}

func (s *Service) DeleteOperation(ctx context.Context, operationID string) error {
	var op *domain.POOperation
	err := s.store.WithTx(ctx, func(tx domain.Store) error {
		var err error
		op, err = tx.GetOperation(ctx, operationID)
		if err != nil {
			return err
		}
		if op == nil {
			return &domain.NotFoundError{Entity: "operation", ID: operationID}
		}
		po, err := s.editablePO(ctx, tx, op.POID, "delete operation of")
		if err != nil {
			return err
		}
		if err := tx.DeleteOperation(ctx, op.ID); err != nil {
			return err
		}
		return resumTotal(ctx, tx, po)
	})
	if err != nil {
		return s.reject("delete_operation", err)
	}

	s.logOperation("delete_operation", op)
	return nil
}

// editablePO loads the PO owning an operation and refuses LOCKED versions.
func (s *Service) editablePO(ctx context.Context, tx domain.Store, poID, action string) (*domain.PurchaseOrder, error) {
	po, err := tx.GetPO(ctx, poID)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, &domain.NotFoundError{Entity: "purchase order", ID: poID}
	}
	if po.Status == domain.POStatusLocked {
		return nil, &domain.InvalidStateError{Entity: "purchase order", ID: poID, State: string(po.Status), Action: action}
	}
	return po, nil
}

// resumTotal recomputes the PO total from every current operation row.
func resumTotal(ctx context.Context, tx domain.Store, po *domain.PurchaseOrder) error {
	ops, err := tx.ListOperations(ctx, po.ID)
	if err != nil {
		return err
	}
	return tx.UpdatePOTotal(ctx, po.ID, po.RowVersion, domain.SumOperations(ops))
}

func nextSequence(ops []domain.POOperation) int {
	highest := 0
	for _, op := range ops {
		if op.Sequence > highest {
			highest = op.Sequence
		}
	}
	return highest + 1
}

func (s *Service) insertLines(ctx context.Context, tx domain.Store, products []domain.POProduct, baselines []domain.POMaterialBaseline) error {
	for _, p := range products {
		if err := tx.InsertProduct(ctx, p); err != nil {
			return err
		}
	}
	for _, b := range baselines {
		if err := tx.InsertBaseline(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) logOperation(op string, o *domain.POOperation) {
	s.metrics.RecordPOAction(op)
	s.log.WithFields(logrus.Fields{
		"op":           op,
		"po_id":        o.POID,
		"operation_id": o.ID,
		"total":        o.TotalAmount.String(),
	}).Info("purchase order operation written")
}

// =============================================================================
// QUERIES
// =============================================================================

// GetPO returns one version with its operations, products and baselines.
func (s *Service) GetPO(ctx context.Context, poID string) (*POView, error) {
	po, err := s.store.GetPO(ctx, poID)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, &domain.NotFoundError{Entity: "purchase order", ID: poID}
	}

	view := &POView{PurchaseOrder: *po}
	if view.Operations, err = s.store.ListOperations(ctx, po.ID); err != nil {
		return nil, err
	}
	if view.Products, err = s.store.ListProducts(ctx, po.ID); err != nil {
		return nil, err
	}
	if view.Baselines, err = s.store.ListBaselines(ctx, po.ID); err != nil {
		return nil, err
	}
	return view, nil
}

// ListVersions returns every version of the chain poID belongs to, oldest first.
func (s *Service) ListVersions(ctx context.Context, poID string) ([]domain.PurchaseOrder, error) {
	po, err := s.store.GetPO(ctx, poID)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, &domain.NotFoundError{Entity: "purchase order", ID: poID}
	}
	return s.store.ListChain(ctx, po.RootID())
}

func (s *Service) ListPOs(ctx context.Context) ([]domain.PurchaseOrder, error) {
	return s.store.ListPOs(ctx)
}

// reject logs and counts a failed operation, then returns err unchanged.
func (s *Service) reject(op string, err error) error {
	kind := domain.Kind(err)
	s.metrics.RecordRejection(module, op, kind)
	entry := s.log.WithFields(logrus.Fields{"op": op, "kind": kind})
	if domain.IsClientError(err) || domain.IsRetryable(err) {
		entry.WithError(err).Warn("purchase order operation rejected")
	} else {
		entry.WithError(err).Error("purchase order operation failed")
	}
	return err
}
