package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/mfg-ledger/domain"
)

// =============================================================================
// MATERIAL REFERENCES
// =============================================================================

// MaterialRef names the material a receipt lands on. It is one of
// ExistingMaterial, NewMaterial or MaterialByCode.
type MaterialRef interface {
	resolve(ctx context.Context, s *Service, tx domain.Store) (*domain.Material, error)
}

// ExistingMaterial refers to a material by id.
type ExistingMaterial struct {
	ID string `validate:"required"`
}

// NewMaterial registers a never-seen material inline, with zero stock,
// before the receipt is applied. The code must be free within the customer scope.
type NewMaterial struct {
	Code       string  `validate:"required,max=64"`
	Name       string  `validate:"required"`
	Unit       string  `validate:"max=16"`
	CustomerID *string // nil: shared across customers
}

// MaterialByCode looks a material up by code, first within the customer's
// scope and then among shared materials.
type MaterialByCode struct {
	CustomerID string
	Code       string `validate:"required"`
}

func (r ExistingMaterial) resolve(ctx context.Context, _ *Service, tx domain.Store) (*domain.Material, error) {
	if err := domain.Validate(r); err != nil {
		return nil, err
	}
	m, err := tx.GetMaterial(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, &domain.NotFoundError{Entity: "material", ID: r.ID}
	}
	return m, nil
}

func (r NewMaterial) resolve(ctx context.Context, s *Service, tx domain.Store) (*domain.Material, error) {
	r.Code = strings.TrimSpace(r.Code)
	if err := domain.Validate(r); err != nil {
		return nil, err
	}
	if r.CustomerID != nil && *r.CustomerID == "" {
		r.CustomerID = nil
	}
	return s.insertMaterial(ctx, tx, r)
}

func (r MaterialByCode) resolve(ctx context.Context, _ *Service, tx domain.Store) (*domain.Material, error) {
	r.Code = strings.TrimSpace(r.Code)
	if err := domain.Validate(r); err != nil {
		return nil, err
	}
	if r.CustomerID != "" {
		m, err := tx.FindMaterialByCode(ctx, r.CustomerID, r.Code)
		if err != nil || m != nil {
			return m, err
		}
	}
	m, err := tx.FindMaterialByCode(ctx, "", r.Code)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, &domain.NotFoundError{Entity: "material", ID: r.Code}
	}
	return m, nil
}

// =============================================================================
// MOVEMENT COMMANDS
// =============================================================================

// CreateReceiptCommand books goods into a warehouse.
// Status defaults to RECEIVED; PENDING receipts are confirmed later.
type CreateReceiptCommand struct {
	ReceiptNumber string               `validate:"max=64"`
	Material      MaterialRef          `validate:"required"`
	WarehouseID   string               `validate:"required"`
	CustomerID    string               `validate:"required"`
	POID          string               // optional; links the receipt to a PO chain member
	Quantity      decimal.Decimal      `validate:"gt=0"`
	UnitPrice     decimal.Decimal      `validate:"gte=0"`
	Status        domain.ReceiptStatus `validate:"omitempty,oneof=PENDING RECEIVED"`
	ReceivedAt    time.Time
	Notes         string
	CreatedBy     string
}

type CreateIssueCommand struct {
	IssueNumber string          `validate:"max=64"`
	MaterialID  string          `validate:"required"`
	WarehouseID string          `validate:"required"`
	CustomerID  string          `validate:"required"`
	Quantity    decimal.Decimal `validate:"gt=0"`
	Reason      string
	IssuedAt    time.Time
	Notes       string
	CreatedBy   string
}

// CreateAdjustmentCommand corrects stock by a signed quantity after a count.
type CreateAdjustmentCommand struct {
	AdjustmentNumber  string          `validate:"max=64"`
	MaterialID        string          `validate:"required"`
	WarehouseID       string          `validate:"required"`
	CustomerID        string          `validate:"required"`
	Quantity          decimal.Decimal `validate:"ne=0"`
	Reason            string          `validate:"required"`
	ResponsiblePerson string          `validate:"required"`
	AdjustedAt        time.Time
	Notes             string
	CreatedBy         string
}

func (c *CreateAdjustmentCommand) normalize() {
	c.Reason = strings.TrimSpace(c.Reason)
	c.ResponsiblePerson = strings.TrimSpace(c.ResponsiblePerson)
}

// StockInCommand receives a batch of lines into one warehouse in a single
// transaction. Receipt numbers are BatchNumber for a one-line batch and
// BatchNumber-001, BatchNumber-002, ... otherwise.
type StockInCommand struct {
	BatchNumber string `validate:"max=60"`
	WarehouseID string `validate:"required"`
	CustomerID  string `validate:"required"`
	POID        string
	ReceivedAt  time.Time
	Notes       string
	CreatedBy   string
	Lines       []StockInLine `validate:"required,min=1,dive"`
}

type StockInLine struct {
	Material  MaterialRef     `validate:"required"`
	Quantity  decimal.Decimal `validate:"gt=0"`
	UnitPrice decimal.Decimal `validate:"gte=0"`
	Notes     string
}

type StockInResult struct {
	BatchNumber string
	Receipts    []domain.MaterialReceipt
	History     []domain.MaterialTransactionHistory
}

// =============================================================================
// CATALOG COMMANDS
// =============================================================================

type CreateCustomerCommand struct {
	Code string `validate:"required,max=32"`
	Name string `validate:"required"`
}

type CreateWarehouseCommand struct {
	Code     string `validate:"required,max=32"`
	Name     string `validate:"required"`
	Location string
}
