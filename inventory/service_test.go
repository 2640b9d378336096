/*
service_test.go - Material Stock Ledger tests

Covers:
- Receipt / issue / adjustment arithmetic and the paired history rows
- Insufficient and negative stock rejections leave nothing behind
- Inline material registration and code uniqueness per customer
- Receipt confirmation
- Batched stock-in numbering, PO links and all-or-nothing rollback
- Ledger audit
Each behaviour runs against both the in-memory and the SQLite store.
*/
package inventory_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/mfg-ledger/config"
	"github.com/warp/mfg-ledger/domain"
	"github.com/warp/mfg-ledger/domain/store"
	"github.com/warp/mfg-ledger/inventory"
	"github.com/warp/mfg-ledger/metrics"
	"github.com/warp/mfg-ledger/store/sqlite"
)

const (
	customerID  = "cust-acme"
	warehouseID = "wh-main"
	materialID  = "mat-m1"
)

type backend struct {
	name string
	open func(t *testing.T) domain.TxStore
}

var backends = []backend{
	{"memory", func(t *testing.T) domain.TxStore { return store.NewTxMemory() }},
	{"sqlite", func(t *testing.T) domain.TxStore {
		s, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

// seed creates one customer, one warehouse and material M1 with zero stock.
func seed(t *testing.T, st domain.TxStore) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, st.InsertCustomer(ctx, domain.Customer{ID: customerID, Code: "ACME", Name: "Acme", CreatedAt: now}))
	require.NoError(t, st.InsertWarehouse(ctx, domain.Warehouse{ID: warehouseID, Code: "WH1", Name: "Main", CreatedAt: now}))
	require.NoError(t, st.InsertMaterial(ctx, domain.Material{
		ID: materialID, Code: "M1", Name: "Steel sheet", Unit: "kg", CreatedAt: now, UpdatedAt: now,
	}))
}

func forEachBackend(t *testing.T, fn func(t *testing.T, svc *inventory.Service, st domain.TxStore)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			st := b.open(t)
			seed(t, st)
			fn(t, inventory.NewService(st, config.DiscardLogger(), metrics.New(metrics.DefaultConfig())), st)
		})
	}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func receive(t *testing.T, svc *inventory.Service, qty string) *domain.MaterialReceipt {
	t.Helper()
	r, err := svc.CreateReceipt(context.Background(), inventory.CreateReceiptCommand{
		Material:    inventory.ExistingMaterial{ID: materialID},
		WarehouseID: warehouseID,
		CustomerID:  customerID,
		Quantity:    d(qty),
		CreatedBy:   "alice",
	})
	require.NoError(t, err)
	return r
}

func stockOf(t *testing.T, svc *inventory.Service, id string) decimal.Decimal {
	t.Helper()
	m, err := svc.GetMaterial(context.Background(), id)
	require.NoError(t, err)
	return m.CurrentStock
}

func requireAudited(t *testing.T, svc *inventory.Service, id string) *inventory.AuditReport {
	t.Helper()
	report, err := svc.AuditMaterial(context.Background(), id)
	require.NoError(t, err)
	require.True(t, report.Consistent(), "violations: %v", report.Violations)
	return report
}

// =============================================================================
// LEDGER SCENARIO
// =============================================================================

func TestLedgerScenario_ReceiptIssueAdjustment(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *inventory.Service, _ domain.TxStore) {
		ctx := context.Background()

		// GIVEN: 100 received
		receipt := receive(t, svc, "100")
		assert.Equal(t, domain.ReceiptReceived, receipt.Status)
		assert.True(t, d("100").Equal(stockOf(t, svc, materialID)))

		// WHEN: issuing 30
		issue, err := svc.CreateIssue(ctx, inventory.CreateIssueCommand{
			MaterialID: materialID, WarehouseID: warehouseID, CustomerID: customerID,
			Quantity: d("30"), Reason: "work order 17",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.IssueIssued, issue.Status)

		// THEN: 70 remain and history has two rows
		assert.True(t, d("70").Equal(stockOf(t, svc, materialID)))
		history, err := svc.MaterialHistory(ctx, materialID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, domain.TxReceipt, history[0].TransactionType)
		assert.True(t, d("0").Equal(history[0].StockBefore))
		assert.True(t, d("100").Equal(history[0].StockAfter))
		assert.Equal(t, receipt.ID, history[0].ReferenceID)
		assert.Equal(t, domain.TxIssue, history[1].TransactionType)
		assert.True(t, d("-30").Equal(history[1].QuantityChange))
		assert.True(t, d("70").Equal(history[1].StockAfter))
		assert.Equal(t, issue.IssueNumber, history[1].ReferenceNumber)

		// WHEN: adjusting by -80
		_, err = svc.CreateAdjustment(ctx, inventory.CreateAdjustmentCommand{
			MaterialID: materialID, WarehouseID: warehouseID, CustomerID: customerID,
			Quantity: d("-80"), Reason: "cycle count", ResponsiblePerson: "carol",
		})

		// THEN: rejected, nothing changed
		var neg *domain.NegativeStockError
		require.ErrorAs(t, err, &neg)
		assert.True(t, d("70").Equal(neg.Current))
		assert.True(t, d("70").Equal(stockOf(t, svc, materialID)))
		history, err = svc.MaterialHistory(ctx, materialID)
		require.NoError(t, err)
		assert.Len(t, history, 2)

		// WHEN: adjusting by -70
		adj, err := svc.CreateAdjustment(ctx, inventory.CreateAdjustmentCommand{
			MaterialID: materialID, WarehouseID: warehouseID, CustomerID: customerID,
			Quantity: d("-70"), Reason: "scrapped", ResponsiblePerson: "carol",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.AdjustmentApproved, adj.Status)

		// THEN: stock is zero and the history notes carry reason and person
		assert.True(t, stockOf(t, svc, materialID).IsZero())
		history, err = svc.MaterialHistory(ctx, materialID)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Contains(t, history[2].Notes, "scrapped")
		assert.Contains(t, history[2].Notes, "carol")

		report := requireAudited(t, svc, materialID)
		assert.Equal(t, 3, report.Entries)
	})
}

func TestCreateIssue_InsufficientStock(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *inventory.Service, _ domain.TxStore) {
		ctx := context.Background()
		receive(t, svc, "10")

		_, err := svc.CreateIssue(ctx, inventory.CreateIssueCommand{
			MaterialID: materialID, WarehouseID: warehouseID, CustomerID: customerID,
			Quantity: d("10.001"),
		})

		var insufficient *domain.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		assert.True(t, d("10").Equal(insufficient.Available))
		assert.True(t, d("10").Equal(stockOf(t, svc, materialID)))

		// Issuing exactly the balance is allowed
		_, err = svc.CreateIssue(ctx, inventory.CreateIssueCommand{
			MaterialID: materialID, WarehouseID: warehouseID, CustomerID: customerID,
			Quantity: d("10"),
		})
		require.NoError(t, err)
		assert.True(t, stockOf(t, svc, materialID).IsZero())
	})
}

func TestCreateAdjustment_Validation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *inventory.Service, _ domain.TxStore) {
		ctx := context.Background()
		base := inventory.CreateAdjustmentCommand{
			MaterialID: materialID, WarehouseID: warehouseID, CustomerID: customerID,
			Quantity: d("5"), Reason: "recount", ResponsiblePerson: "carol",
		}

		tests := []struct {
			name  string
			mod   func(c *inventory.CreateAdjustmentCommand)
			field string
		}{
			{"zero quantity", func(c *inventory.CreateAdjustmentCommand) { c.Quantity = decimal.Zero }, "Quantity"},
			{"blank reason", func(c *inventory.CreateAdjustmentCommand) { c.Reason = "   " }, "Reason"},
			{"blank responsible person", func(c *inventory.CreateAdjustmentCommand) { c.ResponsiblePerson = "" }, "ResponsiblePerson"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cmd := base
				tt.mod(&cmd)
				_, err := svc.CreateAdjustment(ctx, cmd)
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.field, verr.Field)
			})
		}

		// Positive adjustments always fit
		_, err := svc.CreateAdjustment(ctx, base)
		require.NoError(t, err)
		assert.True(t, d("5").Equal(stockOf(t, svc, materialID)))
	})
}

func TestMovements_Preconditions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *inventory.Service, _ domain.TxStore) {
		ctx := context.Background()

		_, err := svc.CreateReceipt(ctx, inventory.CreateReceiptCommand{
			Material: inventory.ExistingMaterial{ID: materialID}, WarehouseID: warehouseID, CustomerID: customerID,
			Quantity: decimal.Zero,
		})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = svc.CreateReceipt(ctx, inventory.CreateReceiptCommand{
			Material: inventory.ExistingMaterial{ID: "nope"}, WarehouseID: warehouseID, CustomerID: customerID,
			Quantity: d("1"),
		})
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "material", nf.Entity)

		_, err = svc.CreateIssue(ctx, inventory.CreateIssueCommand{
			MaterialID: materialID, WarehouseID: "nope", CustomerID: customerID, Quantity: d("1"),
		})
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "warehouse", nf.Entity)

		_, err = svc.CreateAdjustment(ctx, inventory.CreateAdjustmentCommand{
			MaterialID: materialID, WarehouseID: warehouseID, CustomerID: "nope",
			Quantity: d("1"), Reason: "r", ResponsiblePerson: "p",
		})
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "customer", nf.Entity)

		_, err = svc.CreateReceipt(ctx, inventory.CreateReceiptCommand{
			Material: inventory.ExistingMaterial{ID: materialID}, WarehouseID: warehouseID, CustomerID: customerID,
			Quantity: d("1"), POID: "nope",
		})
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "purchase order", nf.Entity)

		assert.True(t, stockOf(t, svc, materialID).IsZero())
	})
}

func TestMovements_DuplicateNumbers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *inventory.Service, _ domain.TxStore) {
		ctx := context.Background()
		cmd := inventory.CreateReceiptCommand{
			ReceiptNumber: "RCV-0001",
			Material:      inventory.ExistingMaterial{ID: materialID},
			WarehouseID:   warehouseID,
			CustomerID:    customerID,
			Quantity:      d("5"),
		}
		_, err := svc.CreateReceipt(ctx, cmd)
		require.NoError(t, err)

		_, err = svc.CreateReceipt(ctx, cmd)
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.True(t, d("5").Equal(stockOf(t, svc, materialID)))

		issue := inventory.CreateIssueCommand{
			IssueNumber: "ISS-0001", MaterialID: materialID, WarehouseID: warehouseID,
			CustomerID: customerID, Quantity: d("1"),
		}
		_, err = svc.CreateIssue(ctx, issue)
		require.NoError(t, err)
		_, err = svc.CreateIssue(ctx, issue)
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.True(t, d("4").Equal(stockOf(t, svc, materialID)))
	})
}

func TestGeneratedNumbers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *inventory.Service, _ domain.TxStore) {
		r := receive(t, svc, "1")
		assert.Regexp(t, regexp.MustCompile(`^RCV-\d{8}-[0-9A-F]{8}$`), r.ReceiptNumber)

		issue, err := svc.CreateIssue(context.Background(), inventory.CreateIssueCommand{
			MaterialID: materialID, WarehouseID: warehouseID, CustomerID: customerID, Quantity: d("1"),
		})
		require.NoError(t, err)
		assert.Regexp(t, `^ISS-\d{8}-[0-9A-F]{8}$`, issue.IssueNumber)
	})
}

// =============================================================================
// MATERIAL REFERENCES
// =============================================================================

func TestCreateReceipt_NewMaterialInline(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *inventory.Service, _ domain.TxStore) {
		ctx := context.Background()
		cust := customerID

		// WHEN: receiving a never-seen customer material
		r, err := svc.CreateReceipt(ctx, inventory.CreateReceiptCommand{
			Material:    inventory.NewMaterial{Code: "M2", Name: "Copper rod", Unit: "pcs", CustomerID: &cust},
			WarehouseID: warehouseID,
			CustomerID:  customerID,
			Quantity:    d("12"),
		})
		require.NoError(t, err)

		// THEN: the material exists with the received stock
		assert.True(t, d("12").Equal(stockOf(t, svc, r.MaterialID)))
		m, err := svc.GetMaterial(ctx, r.MaterialID)
		require.NoError(t, err)
		require.NotNil(t, m.CustomerID)
		assert.Equal(t, customerID, *m.CustomerID)
		requireAudited(t, svc, r.MaterialID)

		// AND registering the same code for the same customer conflicts
		_, err = svc.CreateReceipt(ctx, inventory.CreateReceiptCommand{
			Material:    inventory.NewMaterial{Code: "M2", Name: "Copper rod", CustomerID: &cust},
			WarehouseID: warehouseID,
			CustomerID:  customerID,
			Quantity:    d("1"),
		})
		assert.ErrorIs(t, err, domain.ErrConflict)

		// AND the same code as a shared material is a different scope
		_, err = svc.CreateReceipt(ctx, inventory.CreateReceiptCommand{
			Material:    inventory.NewMaterial{Code: "M2", Name: "Copper rod (shared)"},
			WarehouseID: warehouseID,
			CustomerID:  customerID,
			Quantity:    d("1"),
		})
		require.NoError(t, err)

		// AND M1 cannot be registered again in the shared scope
		_, err = svc.CreateMaterial(ctx, inventory.NewMaterial{Code: "M1", Name: "dup"})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestMaterialByCode_PrefersCustomerScope(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *inventory.Service, _ domain.TxStore) {
		ctx := context.Background()
		cust := customerID
		own, err := svc.CreateMaterial(ctx, inventory.NewMaterial{Code: "M1", Name: "Acme steel", CustomerID: &cust})
		require.NoError(t, err)

		r, err := svc.CreateReceipt(ctx, inventory.CreateReceiptCommand{
			Material: inventory.MaterialByCode{CustomerID: customerID, Code: "M1"}, WarehouseID: warehouseID,
			CustomerID: customerID, Quantity: d("3"),
		})
		require.NoError(t, err)
		assert.Equal(t, own.ID, r.MaterialID)

		r, err = svc.CreateReceipt(ctx, inventory.CreateReceiptCommand{
			Material: inventory.MaterialByCode{Code: "M1"}, WarehouseID: warehouseID,
			CustomerID: customerID, Quantity: d("3"),
		})
		require.NoError(t, err)
		assert.Equal(t, materialID, r.MaterialID)

		_, err = svc.CreateReceipt(ctx, inventory.CreateReceiptCommand{
			Material: inventory.MaterialByCode{Code: "NOPE"}, WarehouseID: warehouseID,
			CustomerID: customerID, Quantity: d("3"),
		})
		assert.True(t, domain.IsNotFound(err))
	})
}

// =============================================================================
// CONFIRMATION
// =============================================================================

func TestConfirmReceipt(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *inventory.Service, _ domain.TxStore) {
		ctx := context.Background()

		// GIVEN: a pending receipt
		r, err := svc.CreateReceipt(ctx, inventory.CreateReceiptCommand{
			Material: inventory.ExistingMaterial{ID: materialID}, WarehouseID: warehouseID, CustomerID: customerID,
			Quantity: d("8"), Status: domain.ReceiptPending,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ReceiptPending, r.Status)
		assert.True(t, d("8").Equal(stockOf(t, svc, materialID)))

		// WHEN: confirming it
		confirmed, err := svc.ConfirmReceipt(ctx, r.ID, "dave")

		// THEN: it is RECEIVED, stamped, and stock is unchanged
		require.NoError(t, err)
		assert.Equal(t, domain.ReceiptReceived, confirmed.Status)
		assert.Equal(t, "dave", confirmed.ConfirmedBy)
		require.NotNil(t, confirmed.ConfirmedAt)
		assert.True(t, d("8").Equal(stockOf(t, svc, materialID)))

		// AND a second confirmation is an invalid transition
		_, err = svc.ConfirmReceipt(ctx, r.ID, "dave")
		assert.ErrorIs(t, err, domain.ErrInvalidState)

		_, err = svc.ConfirmReceipt(ctx, "missing", "dave")
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestConfirmReceipt_CountsConfirmations(t *testing.T) {
	// GIVEN: a service with its own metrics and a pending receipt
	ctx := context.Background()
	st := store.NewTxMemory()
	seed(t, st)
	m := metrics.New(metrics.DefaultConfig())
	svc := inventory.NewService(st, config.DiscardLogger(), m)
	r, err := svc.CreateReceipt(ctx, inventory.CreateReceiptCommand{
		Material: inventory.ExistingMaterial{ID: materialID}, WarehouseID: warehouseID, CustomerID: customerID,
		Quantity: d("3"), Status: domain.ReceiptPending,
	})
	require.NoError(t, err)

	// WHEN: it is confirmed, then confirmed again
	_, err = svc.ConfirmReceipt(ctx, r.ID, "erin")
	require.NoError(t, err)
	_, err = svc.ConfirmReceipt(ctx, r.ID, "erin")
	require.Error(t, err)

	// THEN: only the committed confirmation is counted
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReceiptConfirmations))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StockMovements.WithLabelValues(string(domain.TxReceipt))))
}

// =============================================================================
// STOCK-IN
// =============================================================================

func TestProcessStockIn_NumbersAndPOLink(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *inventory.Service, st domain.TxStore) {
		ctx := context.Background()
		now := time.Now()
		require.NoError(t, st.InsertPO(ctx, domain.PurchaseOrder{
			ID: "po-1", PONumber: "PO-1", CustomerID: customerID, Version: "V0",
			Status: domain.POStatusDraft, OrderDate: now, CreatedAt: now, UpdatedAt: now,
		}))

		// WHEN: a two-line batch, one line creating a material, linked to a PO
		result, err := svc.ProcessStockIn(ctx, inventory.StockInCommand{
			BatchNumber: "STI-42",
			WarehouseID: warehouseID,
			CustomerID:  customerID,
			POID:        "po-1",
			Lines: []inventory.StockInLine{
				{Material: inventory.ExistingMaterial{ID: materialID}, Quantity: d("5"), UnitPrice: d("1.2")},
				{Material: inventory.NewMaterial{Code: "M9", Name: "Brass"}, Quantity: d("7")},
			},
		})
		require.NoError(t, err)

		// THEN: per-line numbers, RECEIVED status, and PO-scoped history
		require.Len(t, result.Receipts, 2)
		assert.Equal(t, "STI-42-001", result.Receipts[0].ReceiptNumber)
		assert.Equal(t, "STI-42-002", result.Receipts[1].ReceiptNumber)
		for _, r := range result.Receipts {
			assert.Equal(t, domain.ReceiptReceived, r.Status)
		}

		linked, err := svc.ReceiptHistoryForPO(ctx, "po-1")
		require.NoError(t, err)
		require.Len(t, linked, 2)
		assert.Equal(t, result.Receipts[0].ID, linked[0].ReceiptID)
		assert.Equal(t, result.History[0].ReferenceID, linked[0].ReceiptID)

		assert.True(t, d("5").Equal(stockOf(t, svc, materialID)))
		assert.True(t, d("7").Equal(stockOf(t, svc, result.Receipts[1].MaterialID)))

		// AND a one-line batch keeps the bare base number
		single, err := svc.ProcessStockIn(ctx, inventory.StockInCommand{
			BatchNumber: "STI-43", WarehouseID: warehouseID, CustomerID: customerID,
			Lines: []inventory.StockInLine{{Material: inventory.MaterialByCode{Code: "M1"}, Quantity: d("1")}},
		})
		require.NoError(t, err)
		assert.Equal(t, "STI-43", single.Receipts[0].ReceiptNumber)
	})
}

func TestProcessStockIn_SameMaterialTwice(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *inventory.Service, _ domain.TxStore) {
		_, err := svc.ProcessStockIn(context.Background(), inventory.StockInCommand{
			WarehouseID: warehouseID, CustomerID: customerID,
			Lines: []inventory.StockInLine{
				{Material: inventory.ExistingMaterial{ID: materialID}, Quantity: d("2.5")},
				{Material: inventory.MaterialByCode{Code: "M1"}, Quantity: d("4")},
			},
		})
		require.NoError(t, err)
		assert.True(t, d("6.5").Equal(stockOf(t, svc, materialID)))
		report := requireAudited(t, svc, materialID)
		assert.Equal(t, 2, report.Entries)
	})
}

func TestProcessStockIn_RollsBackWholeBatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *inventory.Service, st domain.TxStore) {
		ctx := context.Background()

		// WHEN: the second line references a missing material
		_, err := svc.ProcessStockIn(ctx, inventory.StockInCommand{
			BatchNumber: "STI-BAD",
			WarehouseID: warehouseID,
			CustomerID:  customerID,
			Lines: []inventory.StockInLine{
				{Material: inventory.ExistingMaterial{ID: materialID}, Quantity: d("50")},
				{Material: inventory.ExistingMaterial{ID: "ghost"}, Quantity: d("1")},
			},
		})

		// THEN: nothing from the first line survived
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
		assert.True(t, stockOf(t, svc, materialID).IsZero())
		exists, err := st.ReceiptNumberExists(ctx, "STI-BAD-001")
		require.NoError(t, err)
		assert.False(t, exists)
		history, err := svc.MaterialHistory(ctx, materialID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestProcessStockIn_Validation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *inventory.Service, _ domain.TxStore) {
		_, err := svc.ProcessStockIn(context.Background(), inventory.StockInCommand{WarehouseID: warehouseID, CustomerID: customerID})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = svc.ProcessStockIn(context.Background(), inventory.StockInCommand{
			WarehouseID: warehouseID, CustomerID: customerID,
			Lines: []inventory.StockInLine{{Material: inventory.ExistingMaterial{ID: materialID}, Quantity: d("-1")}},
		})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "Lines[0].Quantity", verr.Field)
	})
}

// =============================================================================
// CONCURRENCY AND AUDIT
// =============================================================================

func TestCreateIssue_ConcurrentIssuesNeverOverdraw(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *inventory.Service, _ domain.TxStore) {
		ctx := context.Background()
		receive(t, svc, "50")

		// WHEN: ten callers each try to issue 10
		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.CreateIssue(ctx, inventory.CreateIssueCommand{
					MaterialID: materialID, WarehouseID: warehouseID, CustomerID: customerID,
					Quantity: d("10"),
				})
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
					return
				}
				assert.True(t, domain.IsRetryable(err) || errors.Is(err, domain.ErrInsufficientStock), "unexpected error: %v", err)
			}()
		}
		wg.Wait()

		// THEN: stock never went negative and the ledger agrees with the cache
		assert.Equal(t, 5, succeeded)
		assert.True(t, stockOf(t, svc, materialID).IsZero())
		requireAudited(t, svc, materialID)
	})
}

func TestAuditMaterial_DetectsCacheDrift(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *inventory.Service, st domain.TxStore) {
		ctx := context.Background()
		receive(t, svc, "20")

		// GIVEN: someone writes the cached balance outside the ledger
		m, err := st.GetMaterial(ctx, materialID)
		require.NoError(t, err)
		require.NoError(t, st.UpdateMaterialStock(ctx, materialID, m.RowVersion, d("25")))

		// WHEN
		report, err := svc.AuditMaterial(ctx, materialID)

		// THEN
		require.NoError(t, err)
		assert.False(t, report.Consistent())
		assert.True(t, d("20").Equal(report.LedgerStock))
		assert.True(t, d("25").Equal(report.CurrentStock))
		require.Len(t, report.Violations, 1)
		assert.Contains(t, report.Violations[0], "does not match ledger")
	})
}
