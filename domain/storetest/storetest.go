// Package storetest runs the domain.TxStore contract against any implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/mfg-ledger/domain"
)

// Run exercises open's store. open must return an empty store per call.
func Run(t *testing.T, open func(t *testing.T) domain.TxStore) {
	tests := []struct {
		name string
		fn   func(t *testing.T, st domain.TxStore)
	}{
		{"MissingRowsAreNil", testMissingRowsAreNil},
		{"UniqueBusinessKeys", testUniqueBusinessKeys},
		{"MaterialCodeScope", testMaterialCodeScope},
		{"MaterialStockCompareAndSwap", testMaterialStockCAS},
		{"RollbackOnError", testRollbackOnError},
		{"HistoryOrder", testHistoryOrder},
		{"SingleApprovedPerChain", testSingleApprovedPerChain},
		{"ConfirmReceiptOnlyFromPending", testConfirmReceiptOnlyFromPending},
		{"DeleteChainKeepsReceiptHistory", testDeleteChainKeepsReceiptHistory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

var (
	ctx = context.Background()
	now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
)

func seedParties(t *testing.T, st domain.Store) {
	t.Helper()
	require.NoError(t, st.InsertCustomer(ctx, domain.Customer{ID: "c1", Code: "C1", Name: "Acme", CreatedAt: now}))
	require.NoError(t, st.InsertWarehouse(ctx, domain.Warehouse{ID: "w1", Code: "W1", Name: "Main", CreatedAt: now}))
	require.NoError(t, st.InsertMaterial(ctx, domain.Material{ID: "m1", Code: "M1", Name: "Steel", CreatedAt: now, UpdatedAt: now}))
}

func rootPO(id, number string) domain.PurchaseOrder {
	return domain.PurchaseOrder{
		ID: id, PONumber: number, CustomerID: "c1",
		Version: domain.VersionLabel(0), Status: domain.POStatusDraft,
		OrderDate: now, CreatedAt: now, UpdatedAt: now,
	}
}

func clonePO(id string, root domain.PurchaseOrder, n int) domain.PurchaseOrder {
	po := root
	po.ID = id
	po.OriginalPOID = &root.ID
	po.VersionNumber = n
	po.Version = domain.VersionLabel(n)
	return po
}

func testMissingRowsAreNil(t *testing.T, st domain.TxStore) {
	c, err := st.GetCustomer(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, c)

	m, err := st.FindMaterialByCode(ctx, "", "nope")
	require.NoError(t, err)
	assert.Nil(t, m)

	po, err := st.FindPOByNumber(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, po)

	h, err := st.LatestHistory(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func testUniqueBusinessKeys(t *testing.T, st domain.TxStore) {
	seedParties(t, st)

	err := st.InsertCustomer(ctx, domain.Customer{ID: "c2", Code: "C1", Name: "Dup", CreatedAt: now})
	assert.True(t, errors.Is(err, domain.ErrConflict), "customer code: %v", err)

	err = st.InsertWarehouse(ctx, domain.Warehouse{ID: "w2", Code: "W1", Name: "Dup", CreatedAt: now})
	assert.True(t, errors.Is(err, domain.ErrConflict), "warehouse code: %v", err)

	require.NoError(t, st.InsertPO(ctx, rootPO("po1", "PO-1")))
	err = st.InsertPO(ctx, rootPO("po2", "PO-1"))
	assert.True(t, errors.Is(err, domain.ErrConflict), "po number: %v", err)
}

func testMaterialCodeScope(t *testing.T, st domain.TxStore) {
	seedParties(t, st)
	cust := "c1"

	// Same code is fine once shared and once per customer
	require.NoError(t, st.InsertMaterial(ctx, domain.Material{ID: "m2", CustomerID: &cust, Code: "M1", Name: "Steel (Acme)", CreatedAt: now, UpdatedAt: now}))

	err := st.InsertMaterial(ctx, domain.Material{ID: "m3", Code: "M1", Name: "Dup", CreatedAt: now, UpdatedAt: now})
	assert.True(t, errors.Is(err, domain.ErrConflict), "shared dup: %v", err)
	err = st.InsertMaterial(ctx, domain.Material{ID: "m4", CustomerID: &cust, Code: "M1", Name: "Dup", CreatedAt: now, UpdatedAt: now})
	assert.True(t, errors.Is(err, domain.ErrConflict), "customer dup: %v", err)

	shared, err := st.FindMaterialByCode(ctx, "", "M1")
	require.NoError(t, err)
	require.NotNil(t, shared)
	assert.Equal(t, "m1", shared.ID)

	scoped, err := st.FindMaterialByCode(ctx, cust, "M1")
	require.NoError(t, err)
	require.NotNil(t, scoped)
	assert.Equal(t, "m2", scoped.ID)
}

func testMaterialStockCAS(t *testing.T, st domain.TxStore) {
	seedParties(t, st)

	m, err := st.GetMaterial(ctx, "m1")
	require.NoError(t, err)
	require.NoError(t, st.UpdateMaterialStock(ctx, "m1", m.RowVersion, decimal.RequireFromString("12.3456")))

	// Stale version loses
	err = st.UpdateMaterialStock(ctx, "m1", m.RowVersion, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	after, err := st.GetMaterial(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, m.RowVersion+1, after.RowVersion)
	assert.Equal(t, "12.3456", after.CurrentStock.String())
}

func testRollbackOnError(t *testing.T, st domain.TxStore) {
	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx domain.Store) error {
		require.NoError(t, tx.InsertCustomer(ctx, domain.Customer{ID: "c9", Code: "C9", Name: "Gone", CreatedAt: now}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	c, err := st.GetCustomer(ctx, "c9")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func testHistoryOrder(t *testing.T, st domain.TxStore) {
	seedParties(t, st)
	stock := decimal.Zero
	for i, change := range []string{"10", "-4", "2.5"} {
		q := decimal.RequireFromString(change)
		require.NoError(t, st.AppendHistory(ctx, domain.MaterialTransactionHistory{
			ID: "h" + change, MaterialID: "m1", WarehouseID: "w1", CustomerID: "c1",
			TransactionType: domain.TxAdjustment, ReferenceID: "ref", ReferenceNumber: change,
			StockBefore: stock, QuantityChange: q, StockAfter: stock.Add(q),
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}))
		stock = stock.Add(q)
	}

	rows, err := st.ListHistory(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "10", rows[0].ReferenceNumber)
	assert.Equal(t, "2.5", rows[2].ReferenceNumber)
	assert.Less(t, rows[0].Seq, rows[1].Seq)

	latest, err := st.LatestHistory(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "8.5", latest.StockAfter.String())
}

func testSingleApprovedPerChain(t *testing.T, st domain.TxStore) {
	seedParties(t, st)
	root := rootPO("po1", "PO-1")
	require.NoError(t, st.InsertPO(ctx, root))
	require.NoError(t, st.InsertPO(ctx, clonePO("po1-v1", root, 1)))

	// Same version number twice is a lost race
	err := st.InsertPO(ctx, clonePO("po1-v1b", root, 1))
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	require.NoError(t, st.UpdatePOStatus(ctx, "po1", 0, domain.POStatusApprovedForPMC))
	err = st.UpdatePOStatus(ctx, "po1-v1", 0, domain.POStatusApprovedForPMC)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	chain, err := st.ListChain(ctx, "po1")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, domain.POStatusApprovedForPMC, chain[0].Status)
	assert.Equal(t, domain.POStatusDraft, chain[1].Status)

	found, err := st.FindPOByNumber(ctx, "PO-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "po1", found.ID)
}

func testConfirmReceiptOnlyFromPending(t *testing.T, st domain.TxStore) {
	seedParties(t, st)
	require.NoError(t, st.InsertReceipt(ctx, domain.MaterialReceipt{
		ID: "r1", ReceiptNumber: "RCV-1", MaterialID: "m1", WarehouseID: "w1", CustomerID: "c1",
		Quantity: decimal.NewFromInt(5), Status: domain.ReceiptPending, ReceivedAt: now, CreatedAt: now,
	}))

	require.NoError(t, st.ConfirmReceipt(ctx, "r1", now, "alice"))
	err := st.ConfirmReceipt(ctx, "r1", now, "bob")
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	r, err := st.GetReceipt(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReceiptReceived, r.Status)
	assert.Equal(t, "alice", r.ConfirmedBy)

	exists, err := st.ReceiptNumberExists(ctx, "RCV-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func testDeleteChainKeepsReceiptHistory(t *testing.T, st domain.TxStore) {
	seedParties(t, st)
	root := rootPO("po1", "PO-1")
	require.NoError(t, st.InsertPO(ctx, root))
	require.NoError(t, st.InsertPO(ctx, clonePO("po1-v1", root, 1)))
	require.NoError(t, st.InsertOperation(ctx, domain.POOperation{
		ID: "op1", POID: "po1-v1", ProcessingType: "CUT", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, st.AppendReceiptHistory(ctx, domain.MaterialReceiptHistory{
		ID: "rh1", POID: "po1-v1", ReceiptID: "r1", ReceiptNumber: "RCV-1", MaterialID: "m1",
		Quantity: decimal.NewFromInt(3), ReceivedAt: now, CreatedAt: now,
	}))

	require.NoError(t, st.DeleteChain(ctx, "po1"))

	chain, err := st.ListChain(ctx, "po1")
	require.NoError(t, err)
	assert.Empty(t, chain)
	op, err := st.GetOperation(ctx, "op1")
	require.NoError(t, err)
	assert.Nil(t, op)

	rows, err := st.ListReceiptHistory(ctx, "po1-v1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
