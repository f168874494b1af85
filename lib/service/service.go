package service

import (
	"context"
	"fmt"
	"time"

	"github.com/x402-Systems/xmr-x402-facilitator/db/models"
	"github.com/x402-Systems/xmr-x402-facilitator/price"
	"github.com/x402-Systems/xmr-x402-facilitator/wallet"
	"github.com/ziflex/lecho/v3"
)

// InvoiceStore is the only shared mutable state the engine touches. Get and
// GetPendingByMetadata return (nil, nil) when no row matches.
type InvoiceStore interface {
	Insert(ctx context.Context, invoice *models.Invoice) error
	Get(ctx context.Context, address string) (*models.Invoice, error)
	GetPendingByMetadata(ctx context.Context, metadata string) (*models.Invoice, error)
	// UpdateStatusIfPending atomically transitions an invoice out of pending
	// and reports whether this caller won the transition.
	UpdateStatusIfPending(ctx context.Context, address string, newStatus string, txID string) (bool, error)
	DeleteExpiredPending(ctx context.Context, cutoff time.Time) (int64, error)
}

type FacilitatorService struct {
	Config        *Config
	Store         InvoiceStore
	Wallet        wallet.Client
	Prices        *price.Resolver
	Logger        *lecho.Logger
	InvoicePubSub *Pubsub
}

// NetworkID is the CAIP-style chain identifier echoed in every wire payload.
func (svc *FacilitatorService) NetworkID() string {
	return fmt.Sprintf("monero:%s", svc.Config.Network)
}

func (svc *FacilitatorService) InvoiceExpiry() time.Duration {
	return time.Duration(svc.Config.InvoiceExpiry) * time.Second
}
