/*
service_test.go - PO Version Ledger tests

Covers:
- CreatePO duplicate detection and product totals
- CloneVersion deep copy and version numbering
- ApproveVersion exclusivity, including concurrent approvals
- LockVersion and the LOCKED operation guard
- Operation writes and the full-resum total
- DeletePO chain cascade
Each behaviour runs against both the in-memory and the SQLite store.
*/
package purchasing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/mfg-ledger/config"
	"github.com/warp/mfg-ledger/domain"
	"github.com/warp/mfg-ledger/domain/store"
	"github.com/warp/mfg-ledger/metrics"
	"github.com/warp/mfg-ledger/purchasing"
	"github.com/warp/mfg-ledger/store/sqlite"
)

const customerID = "cust-acme"

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

func newTestService(t *testing.T, st domain.TxStore) *purchasing.Service {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.InsertCustomer(ctx, domain.Customer{
		ID: customerID, Code: "ACME", Name: "Acme Tooling", CreatedAt: time.Now(),
	}))
	return purchasing.NewService(st, config.DiscardLogger(), metrics.New(metrics.DefaultConfig()))
}

func forEachBackend(t *testing.T, fn func(t *testing.T, svc *purchasing.Service, st domain.TxStore)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			st := b.open(t)
			fn(t, newTestService(t, st), st)
		})
	}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func createPO(t *testing.T, svc *purchasing.Service, number string) *purchasing.POView {
	t.Helper()
	view, err := svc.CreatePO(context.Background(), purchasing.CreatePOCommand{
		PONumber:   number,
		CustomerID: customerID,
		CreatedBy:  "alice",
	})
	require.NoError(t, err)
	return view
}

func addOperation(t *testing.T, svc *purchasing.Service, poID, charge, price, qty string) *domain.POOperation {
	t.Helper()
	op, err := svc.CreateOperation(context.Background(), purchasing.CreateOperationCommand{
		POID: poID,
		OperationFields: purchasing.OperationFields{
			ProcessingType: "CNC",
			ChargeCount:    d(charge),
			UnitPrice:      d(price),
			Quantity:       d(qty),
		},
	})
	require.NoError(t, err)
	return op
}

// =============================================================================
// CREATE / CLONE
// =============================================================================

func TestCreatePO_DuplicateNumberConflicts(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *purchasing.Service, _ domain.TxStore) {
		ctx := context.Background()

		// GIVEN: PO-100 exists
		view := createPO(t, svc, "PO-100")
		assert.Equal(t, "V0", view.Version)
		assert.Equal(t, 0, view.VersionNumber)
		assert.Equal(t, domain.POStatusDraft, view.Status)
		assert.Nil(t, view.OriginalPOID)

		// WHEN: creating PO-100 again
		_, err := svc.CreatePO(ctx, purchasing.CreatePOCommand{PONumber: "PO-100", CustomerID: customerID})

		// THEN
		var conflict *domain.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "PO-100", conflict.Value)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestCreatePO_TotalIsSumOfProductLines(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *purchasing.Service, st domain.TxStore) {
		ctx := context.Background()

		view, err := svc.CreatePO(ctx, purchasing.CreatePOCommand{
			PONumber:   "PO-200",
			CustomerID: customerID,
			Products: []purchasing.ProductLine{
				{ProductCode: "BRKT-1", Quantity: d("10"), UnitPrice: d("2.50")},
				{ProductCode: "BRKT-2", Quantity: d("3"), UnitPrice: d("0.10")},
			},
		})
		require.NoError(t, err)
		assert.True(t, d("25.30").Equal(view.TotalAmount), "got %s", view.TotalAmount)

		stored, err := svc.GetPO(ctx, view.ID)
		require.NoError(t, err)
		assert.True(t, d("25.30").Equal(stored.TotalAmount))
		assert.Len(t, stored.Products, 2)
	})
}

func TestCreatePO_Validation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *purchasing.Service, _ domain.TxStore) {
		ctx := context.Background()

		_, err := svc.CreatePO(ctx, purchasing.CreatePOCommand{CustomerID: customerID})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "PONumber", verr.Field)

		_, err = svc.CreatePO(ctx, purchasing.CreatePOCommand{PONumber: "PO-1", CustomerID: "nobody"})
		assert.True(t, domain.IsNotFound(err))

		_, err = svc.CreatePO(ctx, purchasing.CreatePOCommand{
			PONumber: "PO-2", CustomerID: customerID,
			Products: []purchasing.ProductLine{{ProductCode: "X", Quantity: d("0")}},
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestCloneVersion_DeepCopiesLineItems(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *purchasing.Service, st domain.TxStore) {
		ctx := context.Background()

		// GIVEN: a material for the baseline and a PO with products, baselines and an operation
		require.NoError(t, st.InsertMaterial(ctx, domain.Material{
			ID: "mat-1", Code: "AL-6061", Name: "Aluminium bar", CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}))
		root, err := svc.CreatePO(ctx, purchasing.CreatePOCommand{
			PONumber:   "PO-300",
			CustomerID: customerID,
			Products:   []purchasing.ProductLine{{ProductCode: "P1", Quantity: d("4"), UnitPrice: d("5")}},
			Baselines:  []purchasing.BaselineLine{{MaterialID: "mat-1", RequiredQuantity: d("12.5")}},
		})
		require.NoError(t, err)
		op := addOperation(t, svc, root.ID, "2", "3.5", "10")

		// WHEN: cloning twice (second clone from the root again)
		v1, err := svc.CloneVersion(ctx, purchasing.CloneVersionCommand{SourcePOID: root.ID, Notes: "customer revision"})
		require.NoError(t, err)
		v2, err := svc.CloneVersion(ctx, purchasing.CloneVersionCommand{SourcePOID: root.ID})
		require.NoError(t, err)

		// THEN: numbering follows max+1 and every clone points at the root
		assert.Equal(t, "V1", v1.Version)
		assert.Equal(t, "V2", v2.Version)
		require.NotNil(t, v2.OriginalPOID)
		assert.Equal(t, root.ID, *v2.OriginalPOID)
		assert.Equal(t, domain.POStatusDraft, v1.Status)
		assert.Equal(t, "PO-300", v1.PONumber)
		assert.Equal(t, "customer revision", v1.Notes)

		// Line items are copied with new ids and equal values
		loaded, err := svc.GetPO(ctx, v1.ID)
		require.NoError(t, err)
		require.Len(t, loaded.Operations, 1)
		assert.NotEqual(t, op.ID, loaded.Operations[0].ID)
		assert.True(t, op.TotalAmount.Equal(loaded.Operations[0].TotalAmount))
		assert.Equal(t, op.ProcessingType, loaded.Operations[0].ProcessingType)
		require.Len(t, loaded.Products, 1)
		assert.Equal(t, "P1", loaded.Products[0].ProductCode)
		require.Len(t, loaded.Baselines, 1)
		assert.True(t, d("12.5").Equal(loaded.Baselines[0].RequiredQuantity))
		assert.True(t, d("70").Equal(loaded.TotalAmount))

		versions, err := svc.ListVersions(ctx, v2.ID)
		require.NoError(t, err)
		require.Len(t, versions, 3)
		assert.Equal(t, []int{0, 1, 2}, []int{versions[0].VersionNumber, versions[1].VersionNumber, versions[2].VersionNumber})
	})
}

func TestCloneVersion_MissingSource(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *purchasing.Service, _ domain.TxStore) {
		_, err := svc.CloneVersion(context.Background(), purchasing.CloneVersionCommand{SourcePOID: "missing"})
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "purchase order", nf.Entity)
	})
}

// =============================================================================
// APPROVAL
// =============================================================================

func TestApproveVersion_Scenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *purchasing.Service, _ domain.TxStore) {
		ctx := context.Background()

		// GIVEN: PO-100 with a clone V1
		root := createPO(t, svc, "PO-100")
		v1, err := svc.CloneVersion(ctx, purchasing.CloneVersionCommand{SourcePOID: root.ID})
		require.NoError(t, err)

		// WHEN: approving V1
		approved, err := svc.ApproveVersion(ctx, v1.ID, "bob")
		require.NoError(t, err)
		assert.Equal(t, domain.POStatusApprovedForPMC, approved.Status)

		// AND THEN approving V0
		_, err = svc.ApproveVersion(ctx, root.ID, "bob")
		require.NoError(t, err)

		// THEN: V0 is approved and V1 is back to DRAFT
		chain, err := svc.ListVersions(ctx, root.ID)
		require.NoError(t, err)
		require.Len(t, chain, 2)
		assert.Equal(t, domain.POStatusApprovedForPMC, chain[0].Status)
		assert.Equal(t, domain.POStatusDraft, chain[1].Status)
	})
}

func TestApproveVersion_RejectsApprovedAndLocked(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *purchasing.Service, _ domain.TxStore) {
		ctx := context.Background()
		root := createPO(t, svc, "PO-400")

		_, err := svc.ApproveVersion(ctx, root.ID, "bob")
		require.NoError(t, err)

		_, err = svc.ApproveVersion(ctx, root.ID, "bob")
		var ise *domain.InvalidStateError
		require.ErrorAs(t, err, &ise)
		assert.Equal(t, string(domain.POStatusApprovedForPMC), ise.State)

		_, err = svc.LockVersion(ctx, root.ID, "bob")
		require.NoError(t, err)

		_, err = svc.ApproveVersion(ctx, root.ID, "bob")
		require.ErrorAs(t, err, &ise)
		assert.Equal(t, string(domain.POStatusLocked), ise.State)

		_, err = svc.ApproveVersion(ctx, "missing", "bob")
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestApproveVersion_ConcurrentApprovalsLeaveOneApproved(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *purchasing.Service, _ domain.TxStore) {
		ctx := context.Background()

		// GIVEN: a chain of five versions
		root := createPO(t, svc, "PO-500")
		ids := []string{root.ID}
		for i := 0; i < 4; i++ {
			v, err := svc.CloneVersion(ctx, purchasing.CloneVersionCommand{SourcePOID: root.ID})
			require.NoError(t, err)
			ids = append(ids, v.ID)
		}

		// WHEN: every version is approved at the same time
		var wg sync.WaitGroup
		errs := make([]error, len(ids))
		for i, id := range ids {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				_, errs[i] = svc.ApproveVersion(ctx, id, "racer")
			}(i, id)
		}
		wg.Wait()

		// THEN: any failure is a retryable conflict, and exactly one version is approved
		for _, err := range errs {
			if err != nil {
				assert.True(t, domain.IsRetryable(err), "unexpected error: %v", err)
			}
		}
		chain, err := svc.ListVersions(ctx, root.ID)
		require.NoError(t, err)
		approved := 0
		for _, po := range chain {
			if po.Status == domain.POStatusApprovedForPMC {
				approved++
			}
		}
		assert.Equal(t, 1, approved)
	})
}

func TestLockVersion_RequiresApproval(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *purchasing.Service, _ domain.TxStore) {
		root := createPO(t, svc, "PO-600")

		_, err := svc.LockVersion(context.Background(), root.ID, "bob")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

// =============================================================================
// OPERATIONS
// =============================================================================

func TestOperations_TotalIsFullResum(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *purchasing.Service, _ domain.TxStore) {
		ctx := context.Background()
		root := createPO(t, svc, "PO-700")

		// WHEN: two operations are added
		op1 := addOperation(t, svc, root.ID, "1", "0.10", "3") // 0.30
		op2 := addOperation(t, svc, root.ID, "2", "1.25", "4") // 10.00
		assert.Equal(t, 1, op1.Sequence)
		assert.Equal(t, 2, op2.Sequence)
		assert.True(t, d("0.3").Equal(op1.TotalAmount))

		view, err := svc.GetPO(ctx, root.ID)
		require.NoError(t, err)
		assert.True(t, d("10.30").Equal(view.TotalAmount), "got %s", view.TotalAmount)

		// AND one is updated
		updated, err := svc.UpdateOperation(ctx, purchasing.UpdateOperationCommand{
			OperationID: op2.ID,
			OperationFields: purchasing.OperationFields{
				Sequence:       op2.Sequence,
				ProcessingType: "EDM",
				ChargeCount:    d("1"),
				UnitPrice:      d("7"),
				Quantity:       d("1"),
			},
		})
		require.NoError(t, err)
		assert.True(t, d("7").Equal(updated.TotalAmount))

		view, err = svc.GetPO(ctx, root.ID)
		require.NoError(t, err)
		assert.True(t, d("7.30").Equal(view.TotalAmount), "got %s", view.TotalAmount)
		assert.True(t, domain.SumOperations(view.Operations).Equal(view.TotalAmount))

		// AND one is deleted
		require.NoError(t, svc.DeleteOperation(ctx, op1.ID))
		view, err = svc.GetPO(ctx, root.ID)
		require.NoError(t, err)
		assert.True(t, d("7").Equal(view.TotalAmount))
		assert.Len(t, view.Operations, 1)
	})
}

func TestOperations_PartIsOptional(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *purchasing.Service, _ domain.TxStore) {
		ctx := context.Background()
		root := createPO(t, svc, "PO-710")
		blank := ""
		part := "part-9"

		op, err := svc.CreateOperation(ctx, purchasing.CreateOperationCommand{
			POID:            root.ID,
			OperationFields: purchasing.OperationFields{ProcessingType: "ANODIZE", PartID: &blank, ChargeCount: d("1"), UnitPrice: d("1"), Quantity: d("1")},
		})
		require.NoError(t, err)
		assert.Nil(t, op.PartID)

		op, err = svc.CreateOperation(ctx, purchasing.CreateOperationCommand{
			POID:            root.ID,
			OperationFields: purchasing.OperationFields{ProcessingType: "CNC", PartID: &part, ChargeCount: d("1"), UnitPrice: d("1"), Quantity: d("1")},
		})
		require.NoError(t, err)
		loaded, err := svc.GetPO(ctx, root.ID)
		require.NoError(t, err)
		require.Len(t, loaded.Operations, 2)
		require.NotNil(t, loaded.Operations[1].PartID)
		assert.Equal(t, "part-9", *loaded.Operations[1].PartID)
	})
}

func TestOperations_LockedPOIsReadOnly(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *purchasing.Service, _ domain.TxStore) {
		ctx := context.Background()

		// GIVEN: a locked PO with one operation
		root := createPO(t, svc, "PO-800")
		op := addOperation(t, svc, root.ID, "1", "5", "2")
		_, err := svc.ApproveVersion(ctx, root.ID, "bob")
		require.NoError(t, err)
		_, err = svc.LockVersion(ctx, root.ID, "bob")
		require.NoError(t, err)

		// WHEN / THEN: every operation write is rejected
		_, err = svc.CreateOperation(ctx, purchasing.CreateOperationCommand{
			POID:            root.ID,
			OperationFields: purchasing.OperationFields{ProcessingType: "CNC"},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidState)

		_, err = svc.UpdateOperation(ctx, purchasing.UpdateOperationCommand{
			OperationID:     op.ID,
			OperationFields: purchasing.OperationFields{ProcessingType: "CNC", Quantity: d("100")},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidState)

		err = svc.DeleteOperation(ctx, op.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidState)

		// AND nothing changed
		view, err := svc.GetPO(ctx, root.ID)
		require.NoError(t, err)
		require.Len(t, view.Operations, 1)
		assert.True(t, d("10").Equal(view.TotalAmount))
	})
}

func TestOperations_MissingTargets(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *purchasing.Service, _ domain.TxStore) {
		ctx := context.Background()

		_, err := svc.CreateOperation(ctx, purchasing.CreateOperationCommand{
			POID:            "missing",
			OperationFields: purchasing.OperationFields{ProcessingType: "CNC"},
		})
		assert.True(t, domain.IsNotFound(err))

		err = svc.DeleteOperation(ctx, "missing")
		assert.True(t, domain.IsNotFound(err))
	})
}

// =============================================================================
// DELETE
// =============================================================================

func TestDeletePO_RemovesWholeChain(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *purchasing.Service, st domain.TxStore) {
		ctx := context.Background()

		// GIVEN: a root with two versions, each carrying an operation
		root := createPO(t, svc, "PO-900")
		addOperation(t, svc, root.ID, "1", "1", "1")
		v1, err := svc.CloneVersion(ctx, purchasing.CloneVersionCommand{SourcePOID: root.ID})
		require.NoError(t, err)
		v2, err := svc.CloneVersion(ctx, purchasing.CloneVersionCommand{SourcePOID: v1.ID})
		require.NoError(t, err)
		other := createPO(t, svc, "PO-901")

		// WHEN: deleting via a non-root member
		require.NoError(t, svc.DeletePO(ctx, v1.ID))

		// THEN: every former member is gone, including its operations
		for _, id := range []string{root.ID, v1.ID, v2.ID} {
			_, err := svc.GetPO(ctx, id)
			assert.True(t, domain.IsNotFound(err), "po %s still present", id)
			ops, err := st.ListOperations(ctx, id)
			require.NoError(t, err)
			assert.Empty(t, ops)
		}
		_, err = svc.GetPO(ctx, other.ID)
		assert.NoError(t, err)

		// AND the number can be reused
		createPO(t, svc, "PO-900")

		err = svc.DeletePO(ctx, root.ID)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}
