package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/mfg-ledger/domain"
	"github.com/warp/mfg-ledger/domain/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.TxStore {
		s, err := New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestReset_ClearsEveryTable(t *testing.T) {
	// GIVEN: a file database with a customer
	ctx := context.Background()
	s, err := New(filepath.Join(t.TempDir(), "reset.db"))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.InsertCustomer(ctx, domain.Customer{ID: "c1", Code: "C1", Name: "Acme", CreatedAt: time.Now()}))

	// WHEN
	require.NoError(t, s.Reset(ctx))

	// THEN
	customers, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Empty(t, customers)
	assert.NoError(t, s.Ping(ctx))
}
