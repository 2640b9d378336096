package purchasing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/mfg-ledger/domain"
)

// CreatePOCommand opens a new PO chain at V0.
type CreatePOCommand struct {
	PONumber   string     `json:"po_number" validate:"required,max=64"`
	CustomerID string     `json:"customer_id" validate:"required"`
	OrderDate  time.Time  `json:"order_date"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	CreatedBy  string     `json:"-"`

	Products  []ProductLine  `json:"products,omitempty" validate:"dive"`
	Baselines []BaselineLine `json:"baselines,omitempty" validate:"dive"`
}

type ProductLine struct {
	ProductCode string          `json:"product_code" validate:"required"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

type BaselineLine struct {
	MaterialID       string          `json:"material_id" validate:"required"`
	RequiredQuantity decimal.Decimal `json:"required_quantity" validate:"gte=0"`
	Notes            string          `json:"notes,omitempty"`
}

// CloneVersionCommand creates the next version of the chain SourcePOID belongs to.
type CloneVersionCommand struct {
	SourcePOID string `json:"source_po_id" validate:"required"`
	Notes      string `json:"notes,omitempty"`
	CreatedBy  string `json:"-"`
}

// OperationFields are the editable columns of a PO operation.
type OperationFields struct {
	Sequence       int             `json:"sequence" validate:"gte=0"`
	PartID         *string         `json:"part_id,omitempty"`
	ProductID      *string         `json:"product_id,omitempty"`
	ProcessingType string          `json:"processing_type" validate:"required"`
	ProcessMethod  string          `json:"process_method,omitempty"`
	Description    string          `json:"description,omitempty"`
	ChargeCount    decimal.Decimal `json:"charge_count" validate:"gte=0"`
	UnitPrice      decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Quantity       decimal.Decimal `json:"quantity" validate:"gte=0"`
	Notes          string          `json:"notes,omitempty"`
}

type CreateOperationCommand struct {
	POID string `json:"po_id" validate:"required"`
	OperationFields
}

// UpdateOperationCommand replaces every editable field of the operation.
type UpdateOperationCommand struct {
	OperationID string `json:"operation_id" validate:"required"`
	OperationFields
}

func (f OperationFields) apply(op *domain.POOperation) {
	op.Sequence = f.Sequence
	op.PartID = blankToNil(f.PartID)
	op.ProductID = blankToNil(f.ProductID)
	op.ProcessingType = f.ProcessingType
	op.ProcessMethod = f.ProcessMethod
	op.Description = f.Description
	op.ChargeCount = f.ChargeCount
	op.UnitPrice = f.UnitPrice
	op.Quantity = f.Quantity
	op.Notes = f.Notes
	op.Recompute()
}

func blankToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// POView is a PO version with all of its line items.
type POView struct {
	domain.PurchaseOrder
	Operations []domain.POOperation
	Products   []domain.POProduct
	Baselines  []domain.POMaterialBaseline
}
