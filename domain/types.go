/*
Package domain holds the entities, status enums, errors and storage contracts
shared by the purchasing and inventory ledgers.

KEY CONCEPTS IN THIS FILE (types.go):
  - PurchaseOrder: one version of a PO; versions form a chain under a root
  - POOperation / POProduct / POMaterialBaseline: line items owned by one PO version
  - Material: a stock-keeping unit with a cached running balance (CurrentStock)
  - MaterialReceipt / MaterialIssue / MaterialAdjustment: immutable movements
  - MaterialTransactionHistory: append-only ledger row paired 1:1 with a movement
  - MaterialReceiptHistory: PO-scoped view of a receipt linked to a PO

DESIGN PRINCIPLES:
  1. Precision: every money and quantity field is a decimal.Decimal
  2. Append-only history: ledger rows are written once, never updated
  3. Optimistic concurrency: PurchaseOrder and Material carry a RowVersion
     that every update must match (compare-and-swap)

SEE ALSO:
  - errors.go: typed failures returned by the ledgers
  - store.go: persistence contracts
  - purchasing/, inventory/: the two ledgers built on these types
*/
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PURCHASE ORDERS
// =============================================================================

type POStatus string

const (
	POStatusDraft          POStatus = "DRAFT"
	POStatusApprovedForPMC POStatus = "APPROVED_FOR_PMC"
	POStatusLocked         POStatus = "LOCKED"
)

// PurchaseOrder is a single version in a PO version chain.
// The root has OriginalPOID == nil; every later version points at the root.
type PurchaseOrder struct {
	ID            string
	PONumber      string
	CustomerID    string
	Version       string // "V0", "V1", ...
	VersionNumber int
	OriginalPOID  *string
	Status        POStatus
	TotalAmount   decimal.Decimal
	OrderDate     time.Time
	DueDate       *time.Time
	Notes         string
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	RowVersion    int64
}

// RootID returns the id of the chain root this version belongs to.
func (po *PurchaseOrder) RootID() string {
	if po.OriginalPOID != nil && *po.OriginalPOID != "" {
		return *po.OriginalPOID
	}
	return po.ID
}

func (po *PurchaseOrder) IsRoot() bool { return po.RootID() == po.ID }

// VersionLabel formats the human label for a version number.
func VersionLabel(n int) string { return fmt.Sprintf("V%d", n) }

// POOperation is a line of manufacturing work attached to one PO version.
type POOperation struct {
	ID             string
	POID           string
	Sequence       int
	PartID         *string // nil for operation types without a discrete part
	ProductID      *string
	ProcessingType string
	ProcessMethod  string
	Description    string
	ChargeCount    decimal.Decimal
	UnitPrice      decimal.Decimal
	Quantity       decimal.Decimal
	TotalAmount    decimal.Decimal
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Recompute sets TotalAmount = ChargeCount × UnitPrice × Quantity.
func (op *POOperation) Recompute() {
	op.TotalAmount = op.ChargeCount.Mul(op.UnitPrice).Mul(op.Quantity)
}

// POProduct is a product line supplied when the PO is created.
type POProduct struct {
	ID          string
	POID        string
	ProductCode string
	ProductName string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
}

func (p *POProduct) Recompute() { p.TotalAmount = p.Quantity.Mul(p.UnitPrice) }

// POMaterialBaseline records how much of a material a PO version is planned to consume.
type POMaterialBaseline struct {
	ID               string
	POID             string
	MaterialID       string
	RequiredQuantity decimal.Decimal
	Notes            string
	CreatedAt        time.Time
}

// SumOperations returns the full resum of operation totals.
func SumOperations(ops []POOperation) decimal.Decimal {
	total := decimal.Zero
	for _, op := range ops {
		total = total.Add(op.TotalAmount)
	}
	return total
}

// SumProducts returns the full resum of product line totals.
func SumProducts(products []POProduct) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.TotalAmount)
	}
	return total
}

// =============================================================================
// CATALOG
// =============================================================================

type Customer struct {
	ID        string
	Code      string
	Name      string
	CreatedAt time.Time
}

type Warehouse struct {
	ID        string
	Code      string
	Name      string
	Location  string
	CreatedAt time.Time
}

// Material is a stock-keeping unit.
// CurrentStock is a cache of the latest history row's StockAfter and is only
// ever written by the receipt/issue/adjustment operations.
type Material struct {
	ID           string
	CustomerID   *string // nil: shared across customers
	Code         string
	Name         string
	Unit         string
	CurrentStock decimal.Decimal
	RowVersion   int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CustomerScope is the key used for per-customer code uniqueness.
func (m *Material) CustomerScope() string {
	if m.CustomerID == nil {
		return ""
	}
	return *m.CustomerID
}

// =============================================================================
// MATERIAL MOVEMENTS
// =============================================================================

type ReceiptStatus string

const (
	ReceiptPending  ReceiptStatus = "PENDING"
	ReceiptReceived ReceiptStatus = "RECEIVED"
)

type IssueStatus string

const IssueIssued IssueStatus = "ISSUED"

type AdjustmentStatus string

const AdjustmentApproved AdjustmentStatus = "APPROVED"

type MaterialReceipt struct {
	ID            string
	ReceiptNumber string
	MaterialID    string
	WarehouseID   string
	CustomerID    string
	POID          *string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	Status        ReceiptStatus
	ReceivedAt    time.Time
	ConfirmedAt   *time.Time
	ConfirmedBy   string
	Notes         string
	CreatedBy     string
	CreatedAt     time.Time
}

type MaterialIssue struct {
	ID          string
	IssueNumber string
	MaterialID  string
	WarehouseID string
	CustomerID  string
	Quantity    decimal.Decimal
	Reason      string
	Status      IssueStatus
	IssuedAt    time.Time
	Notes       string
	CreatedBy   string
	CreatedAt   time.Time
}

type MaterialAdjustment struct {
	ID                string
	AdjustmentNumber  string
	MaterialID        string
	WarehouseID       string
	CustomerID        string
	Quantity          decimal.Decimal // signed
	Reason            string
	ResponsiblePerson string
	Status            AdjustmentStatus
	AdjustedAt        time.Time
	Notes             string
	CreatedBy         string
	CreatedAt         time.Time
}

// =============================================================================
// LEDGER ROWS
// =============================================================================

type TransactionType string

const (
	TxReceipt    TransactionType = "RECEIPT"
	TxIssue      TransactionType = "ISSUE"
	TxAdjustment TransactionType = "ADJUSTMENT"
)

// MaterialTransactionHistory is one append-only ledger entry.
// StockAfter = StockBefore + QuantityChange always holds.
type MaterialTransactionHistory struct {
	Seq             int64 // assigned by the store, orders rows per material
	ID              string
	MaterialID      string
	WarehouseID     string
	CustomerID      string
	TransactionType TransactionType
	ReferenceID     string // receipt/issue/adjustment id, lookup only
	ReferenceNumber string
	StockBefore     decimal.Decimal
	QuantityChange  decimal.Decimal
	StockAfter      decimal.Decimal
	Notes           string
	CreatedBy       string
	CreatedAt       time.Time
}

// Consistent reports whether the row's arithmetic holds.
func (h *MaterialTransactionHistory) Consistent() bool {
	return h.StockBefore.Add(h.QuantityChange).Equal(h.StockAfter)
}

// MaterialReceiptHistory links a receipt to the PO it was received against.
// ReceiptID matches the ReferenceID of the paired MaterialTransactionHistory row.
type MaterialReceiptHistory struct {
	ID            string
	POID          string
	ReceiptID     string
	ReceiptNumber string
	MaterialID    string
	Quantity      decimal.Decimal
	ReceivedAt    time.Time
	CreatedBy     string
	CreatedAt     time.Time
}
