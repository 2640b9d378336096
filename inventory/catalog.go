package inventory

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/mfg-ledger/domain"
)

// =============================================================================
// CATALOG
// =============================================================================

func (s *Service) CreateCustomer(ctx context.Context, cmd CreateCustomerCommand) (*domain.Customer, error) {
	cmd.Code = strings.TrimSpace(cmd.Code)
	if err := domain.Validate(cmd); err != nil {
		return nil, s.reject("create_customer", err)
	}
	c := domain.Customer{ID: s.newID(), Code: cmd.Code, Name: cmd.Name, CreatedAt: s.now()}
	if err := s.store.InsertCustomer(ctx, c); err != nil {
		return nil, s.reject("create_customer", err)
	}
	s.log.WithFields(logrus.Fields{"op": "create_customer", "customer_id": c.ID, "code": c.Code}).Info("customer created")
	return &c, nil
}

func (s *Service) CreateWarehouse(ctx context.Context, cmd CreateWarehouseCommand) (*domain.Warehouse, error) {
	cmd.Code = strings.TrimSpace(cmd.Code)
	if err := domain.Validate(cmd); err != nil {
		return nil, s.reject("create_warehouse", err)
	}
	w := domain.Warehouse{ID: s.newID(), Code: cmd.Code, Name: cmd.Name, Location: cmd.Location, CreatedAt: s.now()}
	if err := s.store.InsertWarehouse(ctx, w); err != nil {
		return nil, s.reject("create_warehouse", err)
	}
	s.log.WithFields(logrus.Fields{"op": "create_warehouse", "warehouse_id": w.ID, "code": w.Code}).Info("warehouse created")
	return &w, nil
}

// CreateMaterial registers a material with zero stock. Stock only ever
// changes through receipts, issues and adjustments.
func (s *Service) CreateMaterial(ctx context.Context, cmd NewMaterial) (*domain.Material, error) {
	var m *domain.Material
	err := s.store.WithTx(ctx, func(tx domain.Store) error {
		var err error
		m, err = cmd.resolve(ctx, s, tx)
		return err
	})
	if err != nil {
		return nil, s.reject("create_material", err)
	}
	return m, nil
}

func (s *Service) insertMaterial(ctx context.Context, tx domain.Store, n NewMaterial) (*domain.Material, error) {
	scope := ""
	if n.CustomerID != nil {
		scope = *n.CustomerID
		c, err := tx.GetCustomer(ctx, scope)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, &domain.NotFoundError{Entity: "customer", ID: scope}
		}
	}
	existing, err := tx.FindMaterialByCode(ctx, scope, n.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &domain.ConflictError{Entity: "material", Field: "code", Value: n.Code}
	}

	now := s.now()
	m := domain.Material{
		ID:           s.newID(),
		CustomerID:   n.CustomerID,
		Code:         n.Code,
		Name:         n.Name,
		Unit:         n.Unit,
		CurrentStock: decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.InsertMaterial(ctx, m); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"op": "create_material", "material_id": m.ID, "code": m.Code}).Info("material registered")
	return &m, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.store.ListCustomers(ctx)
}

func (s *Service) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	return s.store.ListWarehouses(ctx)
}

func (s *Service) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	return s.store.ListMaterials(ctx)
}

func (s *Service) GetMaterial(ctx context.Context, id string) (*domain.Material, error) {
	m, err := s.store.GetMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, &domain.NotFoundError{Entity: "material", ID: id}
	}
	return m, nil
}

// MaterialHistory returns a material's ledger rows, oldest first.
func (s *Service) MaterialHistory(ctx context.Context, materialID string) ([]domain.MaterialTransactionHistory, error) {
	if _, err := s.GetMaterial(ctx, materialID); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, materialID)
}

func (s *Service) GetReceipt(ctx context.Context, id string) (*domain.MaterialReceipt, error) {
	r, err := s.store.GetReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, &domain.NotFoundError{Entity: "material receipt", ID: id}
	}
	return r, nil
}

func (s *Service) GetIssue(ctx context.Context, id string) (*domain.MaterialIssue, error) {
	i, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if i == nil {
		return nil, &domain.NotFoundError{Entity: "material issue", ID: id}
	}
	return i, nil
}

func (s *Service) GetAdjustment(ctx context.Context, id string) (*domain.MaterialAdjustment, error) {
	a, err := s.store.GetAdjustment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &domain.NotFoundError{Entity: "material adjustment", ID: id}
	}
	return a, nil
}

// ReceiptHistoryForPO lists receipts booked against a PO. Rows outlive the
// PO itself, so a deleted PO still returns its history.
func (s *Service) ReceiptHistoryForPO(ctx context.Context, poID string) ([]domain.MaterialReceiptHistory, error) {
	return s.store.ListReceiptHistory(ctx, poID)
}
