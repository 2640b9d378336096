/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger entities from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MATERIAL REFERENCES:
  Receipts and stock-in lines name their material in exactly one way:
    "material_id":   an existing material
    "material_code": looked up in the customer's scope, then shared materials
    "new_material":  created inline with zero stock, then received into

DECIMALS:
  Quantities and amounts are decimal strings in responses ("12.50").
  Requests accept either JSON numbers or strings.

VALIDATION:
  Field rules live on the ledger commands; DTOs only reshape input.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/mfg-ledger/domain"
	"github.com/warp/mfg-ledger/inventory"
	"github.com/warp/mfg-ledger/purchasing"
)

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func tsPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return ts(*t)
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// =============================================================================
// CATALOG
// =============================================================================

type CustomerDTO struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateCustomerRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type WarehouseDTO struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Location  string `json:"location,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateWarehouseRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

type MaterialDTO struct {
	ID           string          `json:"id"`
	CustomerID   *string         `json:"customer_id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit,omitempty"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	CreatedAt    string          `json:"created_at,omitempty"`
	UpdatedAt    string          `json:"updated_at,omitempty"`
}

// NewMaterialRequest creates a material. A missing customer_id makes it shared.
type NewMaterialRequest struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Unit       string  `json:"unit"`
	CustomerID *string `json:"customer_id"`
}

func (r NewMaterialRequest) toCommand() inventory.NewMaterial {
	return inventory.NewMaterial{Code: r.Code, Name: r.Name, Unit: r.Unit, CustomerID: r.CustomerID}
}

// MaterialRefRequest picks the material a receipt line books against.
type MaterialRefRequest struct {
	MaterialID   string              `json:"material_id,omitempty"`
	MaterialCode string              `json:"material_code,omitempty"`
	NewMaterial  *NewMaterialRequest `json:"new_material,omitempty"`
}

// toRef returns nil when not exactly one of the three forms is given.
func (r MaterialRefRequest) toRef(customerID string) inventory.MaterialRef {
	set := 0
	var ref inventory.MaterialRef
	if r.MaterialID != "" {
		set++
		ref = inventory.ExistingMaterial{ID: r.MaterialID}
	}
	if r.MaterialCode != "" {
		set++
		ref = inventory.MaterialByCode{CustomerID: customerID, Code: r.MaterialCode}
	}
	if r.NewMaterial != nil {
		set++
		ref = r.NewMaterial.toCommand()
	}
	if set != 1 {
		return nil
	}
	return ref
}

// =============================================================================
// MOVEMENTS
// =============================================================================

type CreateReceiptRequest struct {
	MaterialRefRequest
	ReceiptNumber string          `json:"receipt_number"`
	WarehouseID   string          `json:"warehouse_id"`
	CustomerID    string          `json:"customer_id"`
	POID          string          `json:"po_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Status        string          `json:"status"`
	ReceivedAt    *time.Time      `json:"received_at"`
	Notes         string          `json:"notes"`
}

func (r CreateReceiptRequest) toCommand(actor string) inventory.CreateReceiptCommand {
	return inventory.CreateReceiptCommand{
		ReceiptNumber: r.ReceiptNumber,
		Material:      r.toRef(r.CustomerID),
		WarehouseID:   r.WarehouseID,
		CustomerID:    r.CustomerID,
		POID:          r.POID,
		Quantity:      r.Quantity,
		UnitPrice:     r.UnitPrice,
		Status:        domain.ReceiptStatus(r.Status),
		ReceivedAt:    timeOrZero(r.ReceivedAt),
		Notes:         r.Notes,
		CreatedBy:     actor,
	}
}

type ReceiptDTO struct {
	ID            string          `json:"id"`
	ReceiptNumber string          `json:"receipt_number"`
	MaterialID    string          `json:"material_id"`
	WarehouseID   string          `json:"warehouse_id"`
	CustomerID    string          `json:"customer_id"`
	POID          *string         `json:"po_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Status        string          `json:"status"`
	ReceivedAt    string          `json:"received_at"`
	ConfirmedAt   string          `json:"confirmed_at,omitempty"`
	ConfirmedBy   string          `json:"confirmed_by,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

type CreateIssueRequest struct {
	IssueNumber string          `json:"issue_number"`
	MaterialID  string          `json:"material_id"`
	WarehouseID string          `json:"warehouse_id"`
	CustomerID  string          `json:"customer_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Reason      string          `json:"reason"`
	IssuedAt    *time.Time      `json:"issued_at"`
	Notes       string          `json:"notes"`
}

type IssueDTO struct {
	ID          string          `json:"id"`
	IssueNumber string          `json:"issue_number"`
	MaterialID  string          `json:"material_id"`
	WarehouseID string          `json:"warehouse_id"`
	CustomerID  string          `json:"customer_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Reason      string          `json:"reason,omitempty"`
	Status      string          `json:"status"`
	IssuedAt    string          `json:"issued_at"`
	Notes       string          `json:"notes,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

type CreateAdjustmentRequest struct {
	AdjustmentNumber  string          `json:"adjustment_number"`
	MaterialID        string          `json:"material_id"`
	WarehouseID       string          `json:"warehouse_id"`
	CustomerID        string          `json:"customer_id"`
	Quantity          decimal.Decimal `json:"quantity"`
	Reason            string          `json:"reason"`
	ResponsiblePerson string          `json:"responsible_person"`
	AdjustedAt        *time.Time      `json:"adjusted_at"`
	Notes             string          `json:"notes"`
}

type AdjustmentDTO struct {
	ID                string          `json:"id"`
	AdjustmentNumber  string          `json:"adjustment_number"`
	MaterialID        string          `json:"material_id"`
	WarehouseID       string          `json:"warehouse_id"`
	CustomerID        string          `json:"customer_id"`
	Quantity          decimal.Decimal `json:"quantity"`
	Reason            string          `json:"reason"`
	ResponsiblePerson string          `json:"responsible_person"`
	Status            string          `json:"status"`
	AdjustedAt        string          `json:"adjusted_at"`
	Notes             string          `json:"notes,omitempty"`
	CreatedBy         string          `json:"created_by,omitempty"`
	CreatedAt         string          `json:"created_at"`
}

// HistoryDTO is one ledger row.
type HistoryDTO struct {
	ID              string          `json:"id"`
	MaterialID      string          `json:"material_id"`
	WarehouseID     string          `json:"warehouse_id"`
	CustomerID      string          `json:"customer_id"`
	TransactionType string          `json:"transaction_type"`
	ReferenceID     string          `json:"reference_id"`
	ReferenceNumber string          `json:"reference_number"`
	StockBefore     decimal.Decimal `json:"stock_before"`
	QuantityChange  decimal.Decimal `json:"quantity_change"`
	StockAfter      decimal.Decimal `json:"stock_after"`
	Notes           string          `json:"notes,omitempty"`
	CreatedBy       string          `json:"created_by,omitempty"`
	CreatedAt       string          `json:"created_at"`
}

type ReceiptHistoryDTO struct {
	ID            string          `json:"id"`
	POID          string          `json:"po_id"`
	ReceiptID     string          `json:"receipt_id"`
	ReceiptNumber string          `json:"receipt_number"`
	MaterialID    string          `json:"material_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	ReceivedAt    string          `json:"received_at"`
	CreatedBy     string          `json:"created_by,omitempty"`
}

type AuditDTO struct {
	MaterialID   string          `json:"material_id"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	LedgerStock  decimal.Decimal `json:"ledger_stock"`
	Entries      int             `json:"entries"`
	Consistent   bool            `json:"consistent"`
	Violations   []string        `json:"violations"`
}

// =============================================================================
// STOCK-IN
// =============================================================================

type StockInLineRequest struct {
	MaterialRefRequest
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Notes     string          `json:"notes"`
}

type StockInRequest struct {
	BatchNumber string               `json:"batch_number"`
	WarehouseID string               `json:"warehouse_id"`
	CustomerID  string               `json:"customer_id"`
	POID        string               `json:"po_id"`
	ReceivedAt  *time.Time           `json:"received_at"`
	Notes       string               `json:"notes"`
	Lines       []StockInLineRequest `json:"lines"`
}

func (r StockInRequest) toCommand(actor string) inventory.StockInCommand {
	cmd := inventory.StockInCommand{
		BatchNumber: r.BatchNumber,
		WarehouseID: r.WarehouseID,
		CustomerID:  r.CustomerID,
		POID:        r.POID,
		ReceivedAt:  timeOrZero(r.ReceivedAt),
		Notes:       r.Notes,
		CreatedBy:   actor,
	}
	for _, l := range r.Lines {
		cmd.Lines = append(cmd.Lines, inventory.StockInLine{
			Material:  l.toRef(r.CustomerID),
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Notes:     l.Notes,
		})
	}
	return cmd
}

type StockInDTO struct {
	BatchNumber string       `json:"batch_number"`
	Receipts    []ReceiptDTO `json:"receipts"`
	History     []HistoryDTO `json:"history"`
}

// =============================================================================
// PURCHASE ORDERS
// =============================================================================

type PurchaseOrderDTO struct {
	ID            string          `json:"id"`
	PONumber      string          `json:"po_number"`
	CustomerID    string          `json:"customer_id"`
	Version       string          `json:"version"`
	VersionNumber int             `json:"version_number"`
	OriginalPOID  *string         `json:"original_po_id"`
	Status        string          `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	OrderDate     string          `json:"order_date,omitempty"`
	DueDate       string          `json:"due_date,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

// PODetailDTO is a version with its line items.
type PODetailDTO struct {
	PurchaseOrderDTO
	Operations []OperationDTO `json:"operations"`
	Products   []ProductDTO   `json:"products"`
	Baselines  []BaselineDTO  `json:"baselines"`
}

type OperationDTO struct {
	ID             string          `json:"id"`
	POID           string          `json:"po_id"`
	Sequence       int             `json:"sequence"`
	PartID         *string         `json:"part_id"`
	ProductID      *string         `json:"product_id"`
	ProcessingType string          `json:"processing_type"`
	ProcessMethod  string          `json:"process_method,omitempty"`
	Description    string          `json:"description,omitempty"`
	ChargeCount    decimal.Decimal `json:"charge_count"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       decimal.Decimal `json:"quantity"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Notes          string          `json:"notes,omitempty"`
}

type ProductDTO struct {
	ID          string          `json:"id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type BaselineDTO struct {
	ID               string          `json:"id"`
	MaterialID       string          `json:"material_id"`
	RequiredQuantity decimal.Decimal `json:"required_quantity"`
	Notes            string          `json:"notes,omitempty"`
}

type CloneVersionRequest struct {
	Notes string `json:"notes"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toCustomerDTO(c domain.Customer) CustomerDTO {
	return CustomerDTO{ID: c.ID, Code: c.Code, Name: c.Name, CreatedAt: ts(c.CreatedAt)}
}

func toWarehouseDTO(w domain.Warehouse) WarehouseDTO {
	return WarehouseDTO{ID: w.ID, Code: w.Code, Name: w.Name, Location: w.Location, CreatedAt: ts(w.CreatedAt)}
}

func toMaterialDTO(m domain.Material) MaterialDTO {
	return MaterialDTO{
		ID:           m.ID,
		CustomerID:   m.CustomerID,
		Code:         m.Code,
		Name:         m.Name,
		Unit:         m.Unit,
		CurrentStock: m.CurrentStock,
		CreatedAt:    ts(m.CreatedAt),
		UpdatedAt:    ts(m.UpdatedAt),
	}
}

func toReceiptDTO(r domain.MaterialReceipt) ReceiptDTO {
	return ReceiptDTO{
		ID:            r.ID,
		ReceiptNumber: r.ReceiptNumber,
		MaterialID:    r.MaterialID,
		WarehouseID:   r.WarehouseID,
		CustomerID:    r.CustomerID,
		POID:          r.POID,
		Quantity:      r.Quantity,
		UnitPrice:     r.UnitPrice,
		Status:        string(r.Status),
		ReceivedAt:    ts(r.ReceivedAt),
		ConfirmedAt:   tsPtr(r.ConfirmedAt),
		ConfirmedBy:   r.ConfirmedBy,
		Notes:         r.Notes,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     ts(r.CreatedAt),
	}
}

func toIssueDTO(i domain.MaterialIssue) IssueDTO {
	return IssueDTO{
		ID:          i.ID,
		IssueNumber: i.IssueNumber,
		MaterialID:  i.MaterialID,
		WarehouseID: i.WarehouseID,
		CustomerID:  i.CustomerID,
		Quantity:    i.Quantity,
		Reason:      i.Reason,
		Status:      string(i.Status),
		IssuedAt:    ts(i.IssuedAt),
		Notes:       i.Notes,
		CreatedBy:   i.CreatedBy,
		CreatedAt:   ts(i.CreatedAt),
	}
}

func toAdjustmentDTO(a domain.MaterialAdjustment) AdjustmentDTO {
	return AdjustmentDTO{
		ID:                a.ID,
		AdjustmentNumber:  a.AdjustmentNumber,
		MaterialID:        a.MaterialID,
		WarehouseID:       a.WarehouseID,
		CustomerID:        a.CustomerID,
		Quantity:          a.Quantity,
		Reason:            a.Reason,
		ResponsiblePerson: a.ResponsiblePerson,
		Status:            string(a.Status),
		AdjustedAt:        ts(a.AdjustedAt),
		Notes:             a.Notes,
		CreatedBy:         a.CreatedBy,
		CreatedAt:         ts(a.CreatedAt),
	}
}

func toHistoryDTOs(rows []domain.MaterialTransactionHistory) []HistoryDTO {
	dtos := make([]HistoryDTO, len(rows))
	for i, h := range rows {
		dtos[i] = HistoryDTO{
			ID:              h.ID,
			MaterialID:      h.MaterialID,
			WarehouseID:     h.WarehouseID,
			CustomerID:      h.CustomerID,
			TransactionType: string(h.TransactionType),
			ReferenceID:     h.ReferenceID,
			ReferenceNumber: h.ReferenceNumber,
			StockBefore:     h.StockBefore,
			QuantityChange:  h.QuantityChange,
			StockAfter:      h.StockAfter,
			Notes:           h.Notes,
			CreatedBy:       h.CreatedBy,
			CreatedAt:       ts(h.CreatedAt),
		}
	}
	return dtos
}

func toReceiptHistoryDTOs(rows []domain.MaterialReceiptHistory) []ReceiptHistoryDTO {
	dtos := make([]ReceiptHistoryDTO, len(rows))
	for i, h := range rows {
		dtos[i] = ReceiptHistoryDTO{
			ID:            h.ID,
			POID:          h.POID,
			ReceiptID:     h.ReceiptID,
			ReceiptNumber: h.ReceiptNumber,
			MaterialID:    h.MaterialID,
			Quantity:      h.Quantity,
			ReceivedAt:    ts(h.ReceivedAt),
			CreatedBy:     h.CreatedBy,
		}
	}
	return dtos
}

func toPODTO(po domain.PurchaseOrder) PurchaseOrderDTO {
	return PurchaseOrderDTO{
		ID:            po.ID,
		PONumber:      po.PONumber,
		CustomerID:    po.CustomerID,
		Version:       po.Version,
		VersionNumber: po.VersionNumber,
		OriginalPOID:  po.OriginalPOID,
		Status:        string(po.Status),
		TotalAmount:   po.TotalAmount,
		OrderDate:     ts(po.OrderDate),
		DueDate:       tsPtr(po.DueDate),
		Notes:         po.Notes,
		CreatedBy:     po.CreatedBy,
		CreatedAt:     ts(po.CreatedAt),
		UpdatedAt:     ts(po.UpdatedAt),
	}
}

func toPODTOs(pos []domain.PurchaseOrder) []PurchaseOrderDTO {
	dtos := make([]PurchaseOrderDTO, len(pos))
	for i, po := range pos {
		dtos[i] = toPODTO(po)
	}
	return dtos
}

func toOperationDTO(op domain.POOperation) OperationDTO {
	return OperationDTO{
		ID:             op.ID,
		POID:           op.POID,
		Sequence:       op.Sequence,
		PartID:         op.PartID,
		ProductID:      op.ProductID,
		ProcessingType: op.ProcessingType,
		ProcessMethod:  op.ProcessMethod,
		Description:    op.Description,
		ChargeCount:    op.ChargeCount,
		UnitPrice:      op.UnitPrice,
		Quantity:       op.Quantity,
		TotalAmount:    op.TotalAmount,
		Notes:          op.Notes,
	}
}

func toPODetailDTO(v *purchasing.POView) PODetailDTO {
	dto := PODetailDTO{
		PurchaseOrderDTO: toPODTO(v.PurchaseOrder),
		Operations:       make([]OperationDTO, len(v.Operations)),
		Products:         make([]ProductDTO, len(v.Products)),
		Baselines:        make([]BaselineDTO, len(v.Baselines)),
	}
	for i, op := range v.Operations {
		dto.Operations[i] = toOperationDTO(op)
	}
	for i, p := range v.Products {
		dto.Products[i] = ProductDTO{
			ID:          p.ID,
			ProductCode: p.ProductCode,
			ProductName: p.ProductName,
			Quantity:    p.Quantity,
			UnitPrice:   p.UnitPrice,
			TotalAmount: p.TotalAmount,
		}
	}
	for i, b := range v.Baselines {
		dto.Baselines[i] = BaselineDTO{
			ID:               b.ID,
			MaterialID:       b.MaterialID,
			RequiredQuantity: b.RequiredQuantity,
			Notes:            b.Notes,
		}
	}
	return dto
}
