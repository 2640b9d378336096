package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/mfg-ledger/purchasing"
)

// =============================================================================
// PURCHASE ORDER HANDLERS
// =============================================================================

func (h *Handler) ListPOs(w http.ResponseWriter, r *http.Request) {
	pos, err := h.Purchasing.ListPOs(r.Context())
	if err != nil {
		h.fail(w, "Failed to list purchase orders", err)
		return
	}
	writeJSON(w, http.StatusOK, toPODTOs(pos))
}

// CreatePO creates a V0 in DRAFT.
// POST /api/purchase-orders
func (h *Handler) CreatePO(w http.ResponseWriter, r *http.Request) {
	var cmd purchasing.CreatePOCommand
	if !decode(w, r, &cmd) {
		return
	}
	cmd.CreatedBy = actor(r)
	view, err := h.Purchasing.CreatePO(r.Context(), cmd)
	if err != nil {
		h.fail(w, "Failed to create purchase order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPODetailDTO(view))
}

func (h *Handler) GetPO(w http.ResponseWriter, r *http.Request) {
	view, err := h.Purchasing.GetPO(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "Failed to get purchase order", err)
		return
	}
	writeJSON(w, http.StatusOK, toPODetailDTO(view))
}

// DeletePO removes the whole version chain the id belongs to.
// DELETE /api/purchase-orders/{id}
func (h *Handler) DeletePO(w http.ResponseWriter, r *http.Request) {
	if err := h.Purchasing.DeletePO(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "Failed to delete purchase order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.Purchasing.ListVersions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "Failed to list versions", err)
		return
	}
	writeJSON(w, http.StatusOK, toPODTOs(versions))
}

// CloneVersion copies a version into the next DRAFT of its chain.
// POST /api/purchase-orders/{id}/clone
func (h *Handler) CloneVersion(w http.ResponseWriter, r *http.Request) {
	var req CloneVersionRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	view, err := h.Purchasing.CloneVersion(r.Context(), purchasing.CloneVersionCommand{
		SourcePOID: chi.URLParam(r, "id"),
		Notes:      req.Notes,
		CreatedBy:  actor(r),
	})
	if err != nil {
		h.fail(w, "Failed to clone version", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPODetailDTO(view))
}

// ApproveVersion makes this the chain's single approved version.
// POST /api/purchase-orders/{id}/approve
func (h *Handler) ApproveVersion(w http.ResponseWriter, r *http.Request) {
	po, err := h.Purchasing.ApproveVersion(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		h.fail(w, "Failed to approve version", err)
		return
	}
	writeJSON(w, http.StatusOK, toPODTO(*po))
}

// POST /api/purchase-orders/{id}/lock
func (h *Handler) LockVersion(w http.ResponseWriter, r *http.Request) {
	po, err := h.Purchasing.LockVersion(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		h.fail(w, "Failed to lock version", err)
		return
	}
	writeJSON(w, http.StatusOK, toPODTO(*po))
}

// GetReceiptHistory lists receipts booked against this PO version.
// GET /api/purchase-orders/{id}/receipt-history
func (h *Handler) GetReceiptHistory(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Inventory.ReceiptHistoryForPO(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "Failed to get receipt history", err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptHistoryDTOs(rows))
}

// =============================================================================
// OPERATION HANDLERS
// =============================================================================

// CreateOperation adds an operation and resums the PO total.
// POST /api/purchase-orders/{id}/operations
func (h *Handler) CreateOperation(w http.ResponseWriter, r *http.Request) {
	var fields purchasing.OperationFields
	if !decode(w, r, &fields) {
		return
	}
	op, err := h.Purchasing.CreateOperation(r.Context(), purchasing.CreateOperationCommand{
		POID:            chi.URLParam(r, "id"),
		OperationFields: fields,
	})
	if err != nil {
		h.fail(w, "Failed to create operation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOperationDTO(*op))
}

// PUT /api/operations/{id}
func (h *Handler) UpdateOperation(w http.ResponseWriter, r *http.Request) {
	var fields purchasing.OperationFields
	if !decode(w, r, &fields) {
		return
	}
	op, err := h.Purchasing.UpdateOperation(r.Context(), purchasing.UpdateOperationCommand{
		OperationID:     chi.URLParam(r, "id"),
		OperationFields: fields,
	})
	if err != nil {
		h.fail(w, "Failed to update operation", err)
		return
	}
	writeJSON(w, http.StatusOK, toOperationDTO(*op))
}

// DELETE /api/operations/{id}
func (h *Handler) DeleteOperation(w http.ResponseWriter, r *http.Request) {
	if err := h.Purchasing.DeleteOperation(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "Failed to delete operation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
