package service

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// StartExpiryRoutine sweeps abandoned pending invoices on a fixed interval.
// Tick failures are logged and reported, never fatal: the loop carries on
// regardless of the previous tick's outcome.
func (svc *FacilitatorService) StartExpiryRoutine(ctx context.Context) {
	interval := time.Duration(svc.Config.ReaperInterval) * time.Second
	svc.Logger.Infof("Starting invoice expiry routine: interval:%v expiry:%v", interval, svc.InvoiceExpiry())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.PurgeExpiredInvoices(ctx); err != nil {
				svc.Logger.Errorf("Failed to purge expired invoices: %v", err)
				sentry.CaptureException(err)
			}
		}
	}
}

// PurgeExpiredInvoices deletes every pending invoice older than the expiry
// window in one bulk operation. Paid invoices are permanent.
func (svc *FacilitatorService) PurgeExpiredInvoices(ctx context.Context) error {
	cutoff := time.Now().Add(-svc.InvoiceExpiry())
	count, err := svc.Store.DeleteExpiredPending(ctx, cutoff)
	if err != nil {
		return err
	}
	if count > 0 {
		svc.Logger.Infof("Purged expired pending invoices: count:%d cutoff:%v", count, cutoff)
	}
	return nil
}
