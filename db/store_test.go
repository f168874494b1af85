package db

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"github.com/x402-Systems/xmr-x402-facilitator/common"
	"github.com/x402-Systems/xmr-x402-facilitator/db/migrations"
	"github.com/x402-Systems/xmr-x402-facilitator/db/models"
	"github.com/x402-Systems/xmr-x402-facilitator/lib/service"
)

// These tests exercise the real Postgres-backed store and need a database.
// Run them with TEST_DATABASE_URI pointing at a throwaway database.
func setupStore(t *testing.T) (*InvoiceStore, *bun.DB) {
	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URI not set, skipping store integration tests")
	}

	dbConn, err := Open(&service.Config{
		DatabaseUri:          dsn,
		DatabaseMaxConns:     10,
		DatabaseMaxIdleConns: 5,
	})
	require.NoError(t, err)

	ctx := context.Background()
	migrator := migrate.NewMigrator(dbConn, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	_, err = dbConn.NewDelete().Model((*models.Invoice)(nil)).Where("1=1").Exec(ctx)
	require.NoError(t, err)

	t.Cleanup(func() { dbConn.Close() })
	return NewInvoiceStore(dbConn), dbConn
}

func insertPending(t *testing.T, store *InvoiceStore, address string, amount int64, createdAt time.Time) {
	require.NoError(t, store.Insert(context.Background(), &models.Invoice{
		Address:        address,
		AmountRequired: amount,
		Metadata:       "inv-" + address,
		Status:         common.InvoiceStatusPending,
		CreatedAt:      createdAt,
	}))
}

func TestStoreGetAbsentReturnsNil(t *testing.T) {
	store, _ := setupStore(t)

	invoice, err := store.Get(context.Background(), "no-such-address")
	require.NoError(t, err)
	assert.Nil(t, invoice)
}

func TestStoreInsertAndGet(t *testing.T) {
	store, _ := setupStore(t)
	insertPending(t, store, "addr-1", 1000, time.Now())

	invoice, err := store.Get(context.Background(), "addr-1")
	require.NoError(t, err)
	require.NotNil(t, invoice)
	assert.Equal(t, int64(1000), invoice.AmountRequired)
	assert.Equal(t, common.InvoiceStatusPending, invoice.Status)
}

func TestStoreConditionalUpdateIsSingleWinner(t *testing.T) {
	store, _ := setupStore(t)
	insertPending(t, store, "addr-1", 1000, time.Now())

	// many concurrent settlement attempts, exactly one may win
	const attempts = 8
	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			updated, err := store.UpdateStatusIfPending(context.Background(), "addr-1", common.InvoiceStatusPaid, fmt.Sprintf("tx-%d", n))
			assert.NoError(t, err)
			if updated {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)

	invoice, err := store.Get(context.Background(), "addr-1")
	require.NoError(t, err)
	assert.Equal(t, common.InvoiceStatusPaid, invoice.Status)
	assert.NotEmpty(t, invoice.TxID)
	assert.False(t, invoice.SettledAt.IsZero())
}

func TestStoreUpdatePaidInvoiceIsNoop(t *testing.T) {
	store, _ := setupStore(t)
	insertPending(t, store, "addr-1", 1000, time.Now())

	updated, err := store.UpdateStatusIfPending(context.Background(), "addr-1", common.InvoiceStatusPaid, "tx-1")
	require.NoError(t, err)
	require.True(t, updated)

	updated, err = store.UpdateStatusIfPending(context.Background(), "addr-1", common.InvoiceStatusPaid, "tx-2")
	require.NoError(t, err)
	assert.False(t, updated)

	invoice, _ := store.Get(context.Background(), "addr-1")
	assert.Equal(t, "tx-1", invoice.TxID)
}

func TestStoreDeleteExpiredPendingBoundary(t *testing.T) {
	store, _ := setupStore(t)
	cutoff := time.Now()

	insertPending(t, store, "at-cutoff", 1000, cutoff)
	insertPending(t, store, "before-cutoff", 1000, cutoff.Add(-time.Second))
	require.NoError(t, store.Insert(context.Background(), &models.Invoice{
		Address:        "paid-old",
		AmountRequired: 1000,
		Status:         common.InvoiceStatusPaid,
		TxID:           "tx-1",
		CreatedAt:      cutoff.Add(-time.Hour),
	}))

	count, err := store.DeleteExpiredPending(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// the comparison is strict: a row created exactly at the cutoff survives
	atCutoff, _ := store.Get(context.Background(), "at-cutoff")
	assert.NotNil(t, atCutoff)

	purged, _ := store.Get(context.Background(), "before-cutoff")
	assert.Nil(t, purged)

	paid, _ := store.Get(context.Background(), "paid-old")
	assert.NotNil(t, paid)
}

func TestStoreGetPendingByMetadataIgnoresPaid(t *testing.T) {
	store, _ := setupStore(t)
	insertPending(t, store, "addr-1", 1000, time.Now())

	invoice, err := store.GetPendingByMetadata(context.Background(), "inv-addr-1")
	require.NoError(t, err)
	require.NotNil(t, invoice)
	assert.Equal(t, "addr-1", invoice.Address)

	_, err = store.UpdateStatusIfPending(context.Background(), "addr-1", common.InvoiceStatusPaid, "tx-1")
	require.NoError(t, err)

	invoice, err = store.GetPendingByMetadata(context.Background(), "inv-addr-1")
	require.NoError(t, err)
	assert.Nil(t, invoice)
}
