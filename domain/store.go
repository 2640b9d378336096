/*
store.go - Persistence contracts for the two ledgers

PURPOSE:
  Defines the interface between ledger logic and the database. The ledgers
  never talk to SQL directly; they run every multi-step mutation inside
  TxStore.WithTx so that a stock update and its history row, or a demotion
  and a promotion, commit or roll back together.

KEY INTERFACES:
  CatalogStore:       customers and warehouses
  MaterialStore:      materials, movements and the two append-only histories
  PurchaseOrderStore: PO versions and their line items
  TxStore:            all of the above plus WithTx

LOOKUP CONTRACT:
  Get* and Find* return (nil, nil) when the row does not exist. Ledgers turn
  that into a NotFoundError with the entity name.

WRITE CONTRACT:
  - Insert* returns a *ConflictError when a unique business key is taken
    (PONumber per root chain, receipt/issue/adjustment numbers, material code
    per customer, warehouse and customer codes).
  - Update* on PurchaseOrder and Material take the expected RowVersion and
    return ErrConcurrentModification when it no longer matches.
  - History rows have Append*, never Update or Delete.

IMPLEMENTATIONS:
  - store/sqlite: SQLite, production
  - domain/store: in-memory, tests and throwaway runs
*/
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type CatalogStore interface {
	InsertCustomer(ctx context.Context, c Customer) error
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)

	InsertWarehouse(ctx context.Context, w Warehouse) error
	GetWarehouse(ctx context.Context, id string) (*Warehouse, error)
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
}

type MaterialStore interface {
	InsertMaterial(ctx context.Context, m Material) error
	GetMaterial(ctx context.Context, id string) (*Material, error)
	// FindMaterialByCode looks a code up within one customer scope ("" = shared).
	FindMaterialByCode(ctx context.Context, customerScope, code string) (*Material, error)
	ListMaterials(ctx context.Context) ([]Material, error)
	// UpdateMaterialStock is the only writer of CurrentStock.
	UpdateMaterialStock(ctx context.Context, id string, expectedVersion int64, stock decimal.Decimal) error

	ReceiptNumberExists(ctx context.Context, number string) (bool, error)
	InsertReceipt(ctx context.Context, r MaterialReceipt) error
	GetReceipt(ctx context.Context, id string) (*MaterialReceipt, error)
	// ConfirmReceipt moves a receipt from PENDING to RECEIVED.
	// Returns ErrConcurrentModification if the receipt is no longer PENDING.
	ConfirmReceipt(ctx context.Context, id string, at time.Time, by string) error

	IssueNumberExists(ctx context.Context, number string) (bool, error)
	InsertIssue(ctx context.Context, i MaterialIssue) error
	GetIssue(ctx context.Context, id string) (*MaterialIssue, error)

	AdjustmentNumberExists(ctx context.Context, number string) (bool, error)
	InsertAdjustment(ctx context.Context, a MaterialAdjustment) error
	GetAdjustment(ctx context.Context, id string) (*MaterialAdjustment, error)

	AppendHistory(ctx context.Context, h MaterialTransactionHistory) error
	// ListHistory returns a material's rows oldest first.
	ListHistory(ctx context.Context, materialID string) ([]MaterialTransactionHistory, error)
	LatestHistory(ctx context.Context, materialID string) (*MaterialTransactionHistory, error)

	AppendReceiptHistory(ctx context.Context, h MaterialReceiptHistory) error
	ListReceiptHistory(ctx context.Context, poID string) ([]MaterialReceiptHistory, error)
}

type PurchaseOrderStore interface {
	InsertPO(ctx context.Context, po PurchaseOrder) error
	GetPO(ctx context.Context, id string) (*PurchaseOrder, error)
	// FindPOByNumber returns the chain root carrying the number.
	FindPOByNumber(ctx context.Context, number string) (*PurchaseOrder, error)
	ListPOs(ctx context.Context) ([]PurchaseOrder, error)
	// ListChain returns the root and every version pointing at it, by VersionNumber.
	ListChain(ctx context.Context, rootID string) ([]PurchaseOrder, error)
	UpdatePOStatus(ctx context.Context, id string, expectedVersion int64, status POStatus) error
	UpdatePOTotal(ctx context.Context, id string, expectedVersion int64, total decimal.Decimal) error
	// DeleteChain removes the root, its versions and all their line items.
	DeleteChain(ctx context.Context, rootID string) error

	InsertOperation(ctx context.Context, op POOperation) error
	GetOperation(ctx context.Context, id string) (*POOperation, error)
	UpdateOperation(ctx context.Context, op POOperation) error
	DeleteOperation(ctx context.Context, id string) error
	ListOperations(ctx context.Context, poID string) ([]POOperation, error)

	InsertProduct(ctx context.Context, p POProduct) error
	ListProducts(ctx context.Context, poID string) ([]POProduct, error)

	InsertBaseline(ctx context.Context, b POMaterialBaseline) error
	ListBaselines(ctx context.Context, poID string) ([]POMaterialBaseline, error)
}

type Store interface {
	CatalogStore
	MaterialStore
	PurchaseOrderStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
