/*
handlers.go - HTTP API handlers for the material stock ledger

PURPOSE:
  Exposes the catalog and the stock ledger via REST API. Handles HTTP
  request/response and JSON serialization, and delegates every rule to
  inventory.Service.

ENDPOINTS:
  Catalog:
    GET    /api/customers                  List customers
    POST   /api/customers                  Create customer
    GET    /api/warehouses                 List warehouses
    POST   /api/warehouses                 Create warehouse
    GET    /api/materials                  List materials
    POST   /api/materials                  Create material (zero stock)
    GET    /api/materials/{id}             Get material
    GET    /api/materials/{id}/history     Ledger rows, oldest first
    GET    /api/materials/{id}/audit       Replay the ledger and compare

  Movements:
    POST   /api/receipts                   Receive stock
    GET    /api/receipts/{id}              Get receipt
    POST   /api/receipts/{id}/confirm      PENDING -> RECEIVED
    POST   /api/issues                     Issue stock
    GET    /api/issues/{id}                Get issue
    POST   /api/adjustments                Adjust stock (signed)
    GET    /api/adjustments/{id}           Get adjustment
    POST   /api/stock-in                   Batch receipt (JSON or xlsx upload)
    GET    /api/stock-in/template          Empty xlsx with the expected headers

  Purchase orders: see purchasing_handlers.go

ACTOR:
  The X-User header names who performed a write. It is recorded as
  CreatedBy/ConfirmedBy and never authenticated.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Duplicate number/code, or a concurrent modification (retry)
  - 422: State forbids the action, insufficient or negative stock
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/mfg-ledger/domain"
	"github.com/warp/mfg-ledger/importer"
	"github.com/warp/mfg-ledger/inventory"
	"github.com/warp/mfg-ledger/purchasing"
)

// maxUploadSize bounds stock-in sheet uploads.
const maxUploadSize = 10 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Purchasing *purchasing.Service
	Inventory  *inventory.Service
	log        logrus.FieldLogger
}

// NewHandler creates a new handler over the two ledgers.
func NewHandler(p *purchasing.Service, inv *inventory.Service, log logrus.FieldLogger) *Handler {
	return &Handler{
		Purchasing: p,
		Inventory:  inv,
		log:        log.WithField("module", "api"),
	}
}

func actor(r *http.Request) string {
	if u := strings.TrimSpace(r.Header.Get("X-User")); u != "" {
		return u
	}
	return "anonymous"
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Inventory.ListCustomers(r.Context())
	if err != nil {
		h.fail(w, "Failed to list customers", err)
		return
	}
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Inventory.CreateCustomer(r.Context(), inventory.CreateCustomerCommand{Code: req.Code, Name: req.Name})
	if err != nil {
		h.fail(w, "Failed to create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(*c))
}

func (h *Handler) ListWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.Inventory.ListWarehouses(r.Context())
	if err != nil {
		h.fail(w, "Failed to list warehouses", err)
		return
	}
	dtos := make([]WarehouseDTO, len(warehouses))
	for i, wh := range warehouses {
		dtos[i] = toWarehouseDTO(wh)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req CreateWarehouseRequest
	if !decode(w, r, &req) {
		return
	}
	wh, err := h.Inventory.CreateWarehouse(r.Context(), inventory.CreateWarehouseCommand{
		Code:     req.Code,
		Name:     req.Name,
		Location: req.Location,
	})
	if err != nil {
		h.fail(w, "Failed to create warehouse", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWarehouseDTO(*wh))
}

func (h *Handler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.Inventory.ListMaterials(r.Context())
	if err != nil {
		h.fail(w, "Failed to list materials", err)
		return
	}
	dtos := make([]MaterialDTO, len(materials))
	for i, m := range materials {
		dtos[i] = toMaterialDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req NewMaterialRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := h.Inventory.CreateMaterial(r.Context(), req.toCommand())
	if err != nil {
		h.fail(w, "Failed to create material", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMaterialDTO(*m))
}

func (h *Handler) GetMaterial(w http.ResponseWriter, r *http.Request) {
	m, err := h.Inventory.GetMaterial(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "Failed to get material", err)
		return
	}
	writeJSON(w, http.StatusOK, toMaterialDTO(*m))
}

// GetMaterialHistory returns the material's ledger rows, oldest first.
// GET /api/materials/{id}/history
func (h *Handler) GetMaterialHistory(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Inventory.MaterialHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "Failed to get material history", err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryDTOs(rows))
}

// AuditMaterial replays the ledger. An inconsistent ledger is still a 200;
// the body says what is wrong.
// GET /api/materials/{id}/audit
func (h *Handler) AuditMaterial(w http.ResponseWriter, r *http.Request) {
	report, err := h.Inventory.AuditMaterial(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "Failed to audit material", err)
		return
	}
	violations := report.Violations
	if violations == nil {
		violations = []string{}
	}
	writeJSON(w, http.StatusOK, AuditDTO{
		MaterialID:   report.MaterialID,
		CurrentStock: report.CurrentStock,
		LedgerStock:  report.LedgerStock,
		Entries:      report.Entries,
		Consistent:   report.Consistent(),
		Violations:   violations,
	})
}

// =============================================================================
// MOVEMENT HANDLERS
// =============================================================================

// CreateReceipt receives stock into a material.
// POST /api/receipts
func (h *Handler) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req CreateReceiptRequest
	if !decode(w, r, &req) {
		return
	}
	receipt, err := h.Inventory.CreateReceipt(r.Context(), req.toCommand(actor(r)))
	if err != nil {
		h.fail(w, "Failed to create receipt", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReceiptDTO(*receipt))
}

func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.Inventory.GetReceipt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "Failed to get receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptDTO(*receipt))
}

// ConfirmReceipt moves a pending receipt to RECEIVED.
// POST /api/receipts/{id}/confirm
func (h *Handler) ConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.Inventory.ConfirmReceipt(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		h.fail(w, "Failed to confirm receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptDTO(*receipt))
}

// CreateIssue takes stock out of a material.
// POST /api/issues
func (h *Handler) CreateIssue(w http.ResponseWriter, r *http.Request) {
	var req CreateIssueRequest
	if !decode(w, r, &req) {
		return
	}
	issue, err := h.Inventory.CreateIssue(r.Context(), inventory.CreateIssueCommand{
		IssueNumber: req.IssueNumber,
		MaterialID:  req.MaterialID,
		WarehouseID: req.WarehouseID,
		CustomerID:  req.CustomerID,
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		IssuedAt:    timeOrZero(req.IssuedAt),
		Notes:       req.Notes,
		CreatedBy:   actor(r),
	})
	if err != nil {
		h.fail(w, "Failed to create issue", err)
		return
	}
	writeJSON(w, http.StatusCreated, toIssueDTO(*issue))
}

func (h *Handler) GetIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := h.Inventory.GetIssue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "Failed to get issue", err)
		return
	}
	writeJSON(w, http.StatusOK, toIssueDTO(*issue))
}

// CreateAdjustment applies a signed correction.
// POST /api/adjustments
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req CreateAdjustmentRequest
	if !decode(w, r, &req) {
		return
	}
	adj, err := h.Inventory.CreateAdjustment(r.Context(), inventory.CreateAdjustmentCommand{
		AdjustmentNumber:  req.AdjustmentNumber,
		MaterialID:        req.MaterialID,
		WarehouseID:       req.WarehouseID,
		CustomerID:        req.CustomerID,
		Quantity:          req.Quantity,
		Reason:            req.Reason,
		ResponsiblePerson: req.ResponsiblePerson,
		AdjustedAt:        timeOrZero(req.AdjustedAt),
		Notes:             req.Notes,
		CreatedBy:         actor(r),
	})
	if err != nil {
		h.fail(w, "Failed to create adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdjustmentDTO(*adj))
}

func (h *Handler) GetAdjustment(w http.ResponseWriter, r *http.Request) {
	adj, err := h.Inventory.GetAdjustment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "Failed to get adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAdjustmentDTO(*adj))
}

// =============================================================================
// STOCK-IN
// =============================================================================

// StockIn books a batch of receipts atomically.
// POST /api/stock-in
//
// application/json: a StockInRequest.
// multipart/form-data: an xlsx in "file" plus warehouse_id, customer_id and
// optional po_id, batch_number, notes form fields. Sheet rows name materials
// by code.
func (h *Handler) StockIn(w http.ResponseWriter, r *http.Request) {
	var cmd inventory.StockInCommand
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var ok bool
		if cmd, ok = h.stockInFromUpload(w, r); !ok {
			return
		}
	} else {
		var req StockInRequest
		if !decode(w, r, &req) {
			return
		}
		cmd = req.toCommand(actor(r))
	}

	result, err := h.Inventory.ProcessStockIn(r.Context(), cmd)
	if err != nil {
		h.fail(w, "Stock-in rejected", err)
		return
	}
	dto := StockInDTO{
		BatchNumber: result.BatchNumber,
		Receipts:    make([]ReceiptDTO, len(result.Receipts)),
		History:     toHistoryDTOs(result.History),
	}
	for i, rc := range result.Receipts {
		dto.Receipts[i] = toReceiptDTO(rc)
	}
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) stockInFromUpload(w http.ResponseWriter, r *http.Request) (inventory.StockInCommand, bool) {
	var cmd inventory.StockInCommand
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload", err)
		return cmd, false
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field", err)
		return cmd, false
	}
	defer file.Close()

	rows, err := importer.ReadStockIn(file)
	if err != nil {
		h.fail(w, "Invalid stock-in sheet", err)
		return cmd, false
	}
	customerID := r.FormValue("customer_id")
	cmd = inventory.StockInCommand{
		BatchNumber: r.FormValue("batch_number"),
		WarehouseID: r.FormValue("warehouse_id"),
		CustomerID:  customerID,
		POID:        r.FormValue("po_id"),
		Notes:       r.FormValue("notes"),
		CreatedBy:   actor(r),
		Lines:       importer.ToLines(rows, customerID),
	}
	return cmd, true
}

// StockInTemplate serves an empty sheet with the expected headers.
// GET /api/stock-in/template
func (h *Handler) StockInTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="stock-in-template.xlsx"`)
	if err := importer.WriteTemplate(w); err != nil {
		h.log.WithError(err).Error("failed to write stock-in template")
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// statusFor maps a ledger error kind to its HTTP status.
func statusFor(err error) int {
	switch domain.Kind(err) {
	case "not_found":
		return http.StatusNotFound
	case "conflict", "concurrent_modification":
		return http.StatusConflict
	case "validation":
		return http.StatusBadRequest
	case "invalid_state", "insufficient_stock", "negative_stock":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// fail writes a ledger error. Internal errors are logged; their details are
// not echoed to the client.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: message, Kind: domain.Kind(err), Details: err.Error()}
	if status == http.StatusInternalServerError {
		h.log.WithError(err).Error(message)
		resp.Details = ""
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
