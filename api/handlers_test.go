/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Receipt/issue/adjustment round trips and the error-to-status mapping
- Stock-in as JSON and as an xlsx upload
- The PO version workflow over HTTP
- The /metrics endpoint
*/
package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/mfg-ledger/config"
	"github.com/warp/mfg-ledger/inventory"
	"github.com/warp/mfg-ledger/metrics"
	"github.com/warp/mfg-ledger/purchasing"
	"github.com/warp/mfg-ledger/store/sqlite"
	"github.com/xuri/excelize/v2"
)

type testAPI struct {
	t      *testing.T
	router *chi.Mux
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := config.DiscardLogger()
	m := metrics.New(metrics.DefaultConfig())
	h := NewHandler(
		purchasing.NewService(store, log, m),
		inventory.NewService(store, log, m),
		log,
	)
	return &testAPI{t: t, router: NewRouter(h, RouterOptions{Metrics: m})}
}

func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", "alice")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// must performs the request, checks the status and decodes the body into out.
func (a *testAPI) must(status int, method, path string, body, out any) {
	a.t.Helper()
	rec := a.do(method, path, body)
	require.Equal(a.t, status, rec.Code, rec.Body.String())
	if out != nil {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), out))
	}
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Kind
}

// seed creates a customer, a warehouse and material M1 and returns their ids.
func (a *testAPI) seed() (customerID, warehouseID, materialID string) {
	var c CustomerDTO
	a.must(http.StatusCreated, "POST", "/api/customers", CreateCustomerRequest{Code: "ACME", Name: "Acme"}, &c)
	var w WarehouseDTO
	a.must(http.StatusCreated, "POST", "/api/warehouses", CreateWarehouseRequest{Code: "WH1", Name: "Main"}, &w)
	var m MaterialDTO
	a.must(http.StatusCreated, "POST", "/api/materials", NewMaterialRequest{Code: "M1", Name: "Steel", Unit: "kg"}, &m)
	return c.ID, w.ID, m.ID
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStockLedger_OverHTTP(t *testing.T) {
	// GIVEN: a material with zero stock
	api := newTestAPI(t)
	cust, wh, mat := api.seed()

	// WHEN: receiving 100 and issuing 30
	var rc ReceiptDTO
	api.must(http.StatusCreated, "POST", "/api/receipts", CreateReceiptRequest{
		MaterialRefRequest: MaterialRefRequest{MaterialID: mat},
		WarehouseID:        wh, CustomerID: cust, Quantity: d("100"),
	}, &rc)
	assert.Equal(t, "RECEIVED", rc.Status)
	assert.Regexp(t, `^RCV-\d{8}-[0-9A-F]{8}$`, rc.ReceiptNumber)

	var is IssueDTO
	api.must(http.StatusCreated, "POST", "/api/issues", CreateIssueRequest{
		MaterialID: mat, WarehouseID: wh, CustomerID: cust, Quantity: d("30"),
	}, &is)

	// THEN: overdrawing is a 422 and leaves stock at 70
	rec := api.do("POST", "/api/issues", CreateIssueRequest{
		MaterialID: mat, WarehouseID: wh, CustomerID: cust, Quantity: d("71"),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient_stock", errorKind(t, rec))

	rec = api.do("POST", "/api/adjustments", CreateAdjustmentRequest{
		MaterialID: mat, WarehouseID: wh, CustomerID: cust, Quantity: d("-80"),
		Reason: "count", ResponsiblePerson: "bob",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "negative_stock", errorKind(t, rec))

	var m MaterialDTO
	api.must(http.StatusOK, "GET", "/api/materials/"+mat, nil, &m)
	assert.True(t, d("70").Equal(m.CurrentStock), m.CurrentStock.String())

	var history []HistoryDTO
	api.must(http.StatusOK, "GET", "/api/materials/"+mat+"/history", nil, &history)
	require.Len(t, history, 2)
	assert.Equal(t, "RECEIPT", history[0].TransactionType)
	assert.Equal(t, "ISSUE", history[1].TransactionType)
	assert.True(t, d("-30").Equal(history[1].QuantityChange))
	assert.Equal(t, "alice", history[1].CreatedBy)

	var audit AuditDTO
	api.must(http.StatusOK, "GET", "/api/materials/"+mat+"/audit", nil, &audit)
	assert.True(t, audit.Consistent)
	assert.Equal(t, 2, audit.Entries)
	assert.Empty(t, audit.Violations)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	cust, wh, mat := api.seed()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"unknown material", "GET", "/api/materials/nope", nil, http.StatusNotFound, "not_found"},
		{"unknown receipt", "POST", "/api/receipts/nope/confirm", nil, http.StatusNotFound, "not_found"},
		{"duplicate customer code", "POST", "/api/customers", CreateCustomerRequest{Code: "ACME", Name: "Again"}, http.StatusConflict, "conflict"},
		{"no material reference", "POST", "/api/receipts", CreateReceiptRequest{
			WarehouseID: wh, CustomerID: cust, Quantity: d("1"),
		}, http.StatusBadRequest, "validation"},
		{"two material references", "POST", "/api/receipts", CreateReceiptRequest{
			MaterialRefRequest: MaterialRefRequest{MaterialID: mat, MaterialCode: "M1"},
			WarehouseID:        wh, CustomerID: cust, Quantity: d("1"),
		}, http.StatusBadRequest, "validation"},
		{"zero issue", "POST", "/api/issues", CreateIssueRequest{
			MaterialID: mat, WarehouseID: wh, CustomerID: cust, Quantity: d("0"),
		}, http.StatusBadRequest, "validation"},
		{"unknown warehouse", "POST", "/api/issues", CreateIssueRequest{
			MaterialID: mat, WarehouseID: "nope", CustomerID: cust, Quantity: d("1"),
		}, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, errorKind(t, rec))
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/issues", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestReceipt_PendingThenConfirm(t *testing.T) {
	api := newTestAPI(t)
	cust, wh, _ := api.seed()

	// GIVEN: a pending receipt that registers its material inline
	var rc ReceiptDTO
	api.must(http.StatusCreated, "POST", "/api/receipts", CreateReceiptRequest{
		MaterialRefRequest: MaterialRefRequest{NewMaterial: &NewMaterialRequest{Code: "BOLT-8", Name: "Bolt M8", CustomerID: &cust}},
		WarehouseID:        wh, CustomerID: cust, Quantity: d("500"), Status: "PENDING",
	}, &rc)
	assert.Equal(t, "PENDING", rc.Status)

	// WHEN
	var confirmed ReceiptDTO
	api.must(http.StatusOK, "POST", "/api/receipts/"+rc.ID+"/confirm", nil, &confirmed)

	// THEN: confirmed once, and a second confirm is a state error
	assert.Equal(t, "RECEIVED", confirmed.Status)
	assert.Equal(t, "alice", confirmed.ConfirmedBy)
	assert.NotEmpty(t, confirmed.ConfirmedAt)

	rec := api.do("POST", "/api/receipts/"+rc.ID+"/confirm", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStockIn_JSON(t *testing.T) {
	api := newTestAPI(t)
	cust, wh, mat := api.seed()

	var result StockInDTO
	api.must(http.StatusCreated, "POST", "/api/stock-in", StockInRequest{
		BatchNumber: "BATCH-7",
		WarehouseID: wh,
		CustomerID:  cust,
		Lines: []StockInLineRequest{
			{MaterialRefRequest: MaterialRefRequest{MaterialID: mat}, Quantity: d("5")},
			{MaterialRefRequest: MaterialRefRequest{MaterialCode: "M1"}, Quantity: d("7")},
		},
	}, &result)

	require.Len(t, result.Receipts, 2)
	assert.Equal(t, "BATCH-7-001", result.Receipts[0].ReceiptNumber)
	assert.Equal(t, "BATCH-7-002", result.Receipts[1].ReceiptNumber)
	assert.True(t, d("12").Equal(result.History[1].StockAfter))
}

func TestStockIn_XlsxUpload(t *testing.T) {
	api := newTestAPI(t)
	cust, wh, mat := api.seed()

	// GIVEN: a sheet with two rows for M1
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for ref, v := range map[string]any{
		"A1": "Material Code", "B1": "Quantity", "C1": "Unit Price",
		"A2": "M1", "B2": 10, "C2": "1.5",
		"A3": "M1", "B3": 2.5,
	} {
		require.NoError(t, f.SetCellValue(sheet, ref, v))
	}
	xlsx, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("warehouse_id", wh))
	require.NoError(t, mw.WriteField("customer_id", cust))
	require.NoError(t, mw.WriteField("batch_number", "UPLOAD-1"))
	part, err := mw.CreateFormFile("file", "stock.xlsx")
	require.NoError(t, err)
	_, err = part.Write(xlsx.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	// WHEN
	req := httptest.NewRequest("POST", "/api/stock-in", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	// THEN
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var m MaterialDTO
	api.must(http.StatusOK, "GET", "/api/materials/"+mat, nil, &m)
	assert.True(t, d("12.5").Equal(m.CurrentStock), m.CurrentStock.String())
}

func TestStockIn_UploadNotAnXlsx(t *testing.T) {
	api := newTestAPI(t)
	cust, wh, _ := api.seed()

	// GIVEN: a CSV posted as the sheet
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("warehouse_id", wh))
	require.NoError(t, mw.WriteField("customer_id", cust))
	part, err := mw.CreateFormFile("file", "stock.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("Material Code,Quantity\nM1,10\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	// WHEN
	req := httptest.NewRequest("POST", "/api/stock-in", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	// THEN: the caller sees a validation failure with the reason
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation", resp.Kind)
	assert.Contains(t, resp.Details, "not a readable xlsx workbook")
}

func TestStockInTemplate(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do("GET", "/api/stock-in/template", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	header, err := f.GetCellValue(f.GetSheetName(0), "A1")
	require.NoError(t, err)
	assert.Equal(t, "Material Code", header)
}

func TestPOWorkflow_OverHTTP(t *testing.T) {
	api := newTestAPI(t)
	cust, wh, mat := api.seed()

	// GIVEN: V0 with one product line, cloned into V1
	var v0 PODetailDTO
	api.must(http.StatusCreated, "POST", "/api/purchase-orders", map[string]any{
		"po_number":   "PO-1001",
		"customer_id": cust,
		"products":    []map[string]any{{"product_code": "P1", "quantity": "4", "unit_price": "2.5"}},
	}, &v0)
	assert.Equal(t, "V0", v0.Version)
	assert.Equal(t, "DRAFT", v0.Status)
	assert.True(t, d("10").Equal(v0.TotalAmount))

	rec := api.do("POST", "/api/purchase-orders", map[string]any{"po_number": "PO-1001", "customer_id": cust})
	assert.Equal(t, http.StatusConflict, rec.Code)

	var v1 PODetailDTO
	api.must(http.StatusCreated, "POST", "/api/purchase-orders/"+v0.ID+"/clone", CloneVersionRequest{Notes: "rev"}, &v1)
	assert.Equal(t, "V1", v1.Version)
	require.NotNil(t, v1.OriginalPOID)
	assert.Equal(t, v0.ID, *v1.OriginalPOID)
	require.Len(t, v1.Products, 1)

	// WHEN: approving V1 then V0
	api.must(http.StatusOK, "POST", "/api/purchase-orders/"+v1.ID+"/approve", nil, nil)
	api.must(http.StatusOK, "POST", "/api/purchase-orders/"+v0.ID+"/approve", nil, nil)

	// THEN: exactly V0 is approved
	var versions []PurchaseOrderDTO
	api.must(http.StatusOK, "GET", "/api/purchase-orders/"+v1.ID+"/versions", nil, &versions)
	require.Len(t, versions, 2)
	assert.Equal(t, "APPROVED_FOR_PMC", versions[0].Status)
	assert.Equal(t, "DRAFT", versions[1].Status)

	rec = api.do("POST", "/api/purchase-orders/"+v0.ID+"/approve", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Operations on V1 resum its total
	var op OperationDTO
	api.must(http.StatusCreated, "POST", "/api/purchase-orders/"+v1.ID+"/operations", map[string]any{
		"processing_type": "MACHINING", "charge_count": "2", "unit_price": "3", "quantity": "5",
	}, &op)
	assert.True(t, d("30").Equal(op.TotalAmount))
	assert.Nil(t, op.PartID)

	api.must(http.StatusOK, "PUT", "/api/operations/"+op.ID, map[string]any{
		"processing_type": "MACHINING", "charge_count": "1", "unit_price": "3", "quantity": "5",
	}, &op)
	var detail PODetailDTO
	api.must(http.StatusOK, "GET", "/api/purchase-orders/"+v1.ID, nil, &detail)
	assert.True(t, d("15").Equal(detail.TotalAmount), detail.TotalAmount.String())

	// Locking V0 freezes its operations
	api.must(http.StatusOK, "POST", "/api/purchase-orders/"+v0.ID+"/lock", nil, nil)
	rec = api.do("POST", "/api/purchase-orders/"+v0.ID+"/operations", map[string]any{"processing_type": "PAINT"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// A receipt against V1 shows up in its receipt history
	api.must(http.StatusCreated, "POST", "/api/receipts", CreateReceiptRequest{
		MaterialRefRequest: MaterialRefRequest{MaterialID: mat},
		WarehouseID:        wh, CustomerID: cust, POID: v1.ID, Quantity: d("3"),
	}, nil)
	var rh []ReceiptHistoryDTO
	api.must(http.StatusOK, "GET", "/api/purchase-orders/"+v1.ID+"/receipt-history", nil, &rh)
	require.Len(t, rh, 1)
	assert.True(t, d("3").Equal(rh[0].Quantity))

	// Deleting removes the whole chain
	api.must(http.StatusNoContent, "DELETE", "/api/purchase-orders/"+v1.ID, nil, nil)
	rec = api.do("GET", "/api/purchase-orders/"+v0.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.do("GET", "/api/customers", nil)

	rec := api.do("GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mfg_http_requests_total{method="GET",path="/api/customers`)
}
