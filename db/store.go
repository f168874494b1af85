package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/x402-Systems/xmr-x402-facilitator/common"
	"github.com/x402-Systems/xmr-x402-facilitator/db/models"
	"github.com/x402-Systems/xmr-x402-facilitator/lib/service"
)

// InvoiceStore is the bun/Postgres implementation of the store boundary the
// lifecycle engine depends on.
type InvoiceStore struct {
	DB *bun.DB
}

func NewInvoiceStore(db *bun.DB) *InvoiceStore {
	return &InvoiceStore{DB: db}
}

func (store *InvoiceStore) Insert(ctx context.Context, invoice *models.Invoice) error {
	_, err := store.DB.NewInsert().Model(invoice).Exec(ctx)
	return err
}

func (store *InvoiceStore) Get(ctx context.Context, address string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := store.DB.NewSelect().Model(&invoice).Where("address = ?", address).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (store *InvoiceStore) GetPendingByMetadata(ctx context.Context, metadata string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := store.DB.NewSelect().Model(&invoice).
		Where("metadata = ? AND status = ?", metadata, common.InvoiceStatusPending).
		Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// UpdateStatusIfPending is the single mutation path for settlement. The
// status predicate makes the pending -> paid transition atomic: of two
// concurrent settlement attempts only one sees RowsAffected = 1.
func (store *InvoiceStore) UpdateStatusIfPending(ctx context.Context, address string, newStatus string, txID string) (bool, error) {
	now := time.Now()
	res, err := store.DB.NewUpdate().Model((*models.Invoice)(nil)).
		Set("status = ?", newStatus).
		Set("tx_id = ?", txID).
		Set("settled_at = ?", now).
		Set("updated_at = ?", now).
		Where("address = ? AND status = ?", address, common.InvoiceStatusPending).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// DeleteExpiredPending drops abandoned invoices in one bulk statement. The
// cutoff comparison is strict, a row created exactly at the cutoff survives.
// Paid invoices are permanent and never match the predicate.
func (store *InvoiceStore) DeleteExpiredPending(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := store.DB.NewDelete().Model((*models.Invoice)(nil)).
		Where("status = ? AND created_at < ?", common.InvoiceStatusPending, cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ service.InvoiceStore = (*InvoiceStore)(nil)
