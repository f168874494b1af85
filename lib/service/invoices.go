package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/x402-Systems/xmr-x402-facilitator/common"
	"github.com/x402-Systems/xmr-x402-facilitator/db/models"
)

// ErrInvoiceNotFound is returned when no invoice exists for an address.
var ErrInvoiceNotFound = errors.New("invoice not found")

type SettlementStatus string

const (
	SettlementStatusPaid                 SettlementStatus = "paid"
	SettlementStatusInsufficient         SettlementStatus = "insufficient"
	SettlementStatusWaitingConfirmations SettlementStatus = "waiting_confirmations"
)

// SettlementResult is computed on every check. Only the paid outcome is ever
// persisted; insufficient and waiting_confirmations are re-derived each time
// the invoice is checked and the stored status stays pending.
type SettlementResult struct {
	Status        SettlementStatus
	Received      uint64
	Confirmations uint64
	TxID          string
}

func (r *SettlementResult) Settled() bool {
	return r.Status == SettlementStatusPaid
}

// CreateInvoice prices the fiat amount, allocates a fresh subaddress and
// persists a pending invoice. When the caller supplies a metadata key and a
// pending invoice for that key already exists, that invoice is returned
// unchanged instead of allocating a duplicate. The check is best-effort:
// racing identical requests can still each allocate an invoice.
func (svc *FacilitatorService) CreateInvoice(ctx context.Context, usdAmount float64, metadata string, payerID string) (*models.Invoice, error) {
	if metadata != "" {
		existing, err := svc.Store.GetPendingByMetadata(ctx, metadata)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			svc.Logger.Debugf("Returning existing pending invoice: metadata:%s address:%s", metadata, existing.Address)
			return existing, nil
		}
	}

	amount, err := svc.Prices.AtomicAmount(ctx, usdAmount)
	if err != nil {
		return nil, err
	}

	address, err := svc.Wallet.CreateAddress(ctx)
	if err != nil {
		return nil, err
	}

	invoiceID := metadata
	if invoiceID == "" {
		invoiceID = uuid.NewString()
	}

	invoice := &models.Invoice{
		Address:        address,
		AmountRequired: amount,
		Metadata:       invoiceID,
		PayerID:        payerID,
		Status:         common.InvoiceStatusPending,
		CreatedAt:      time.Now(),
	}
	if err := svc.Store.Insert(ctx, invoice); err != nil {
		return nil, err
	}

	svc.Logger.Infof("Created invoice: address:%s amount:%d invoice_id:%s payer_id:%s", invoice.Address, invoice.AmountRequired, invoice.Metadata, payerID)
	return invoice, nil
}

func (svc *FacilitatorService) LookupInvoice(ctx context.Context, address string) (*models.Invoice, error) {
	invoice, err := svc.Store.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}
	return invoice, nil
}

// VerifyPayment runs the proof check for an invoice without touching the
// store. Already-paid invoices short-circuit with zero backend calls.
func (svc *FacilitatorService) VerifyPayment(ctx context.Context, address string, txID string, txKey string) (*SettlementResult, error) {
	invoice, err := svc.LookupInvoice(ctx, address)
	if err != nil {
		return nil, err
	}
	if invoice.Status == common.InvoiceStatusPaid {
		return paidResult(invoice), nil
	}
	return svc.checkPayment(ctx, invoice, txID, txKey)
}

// CheckOrSettle runs the proof check and, when the payment covers the
// invoice at the required confirmation depth, transitions the invoice to
// paid. The transition goes through the store's conditional update, so a
// concurrent settlement attempt on the same address cannot double-write:
// the loser observes the already-settled row and reports success.
func (svc *FacilitatorService) CheckOrSettle(ctx context.Context, address string, txID string, txKey string) (*SettlementResult, error) {
	invoice, err := svc.LookupInvoice(ctx, address)
	if err != nil {
		return nil, err
	}
	return svc.settle(ctx, invoice, txID, txKey)
}

func (svc *FacilitatorService) settle(ctx context.Context, invoice *models.Invoice, txID string, txKey string) (*SettlementResult, error) {
	if invoice.Status == common.InvoiceStatusPaid {
		return paidResult(invoice), nil
	}

	result, err := svc.checkPayment(ctx, invoice, txID, txKey)
	if err != nil {
		return nil, err
	}
	if !result.Settled() {
		return result, nil
	}

	updated, err := svc.Store.UpdateStatusIfPending(ctx, invoice.Address, common.InvoiceStatusPaid, txID)
	if err != nil {
		return nil, err
	}
	if !updated {
		// lost the race against a concurrent settlement
		current, err := svc.Store.Get(ctx, invoice.Address)
		if err != nil {
			return nil, err
		}
		if current != nil && current.Status == common.InvoiceStatusPaid {
			svc.Logger.Infof("Invoice settled concurrently: address:%s tx_id:%s", current.Address, current.TxID)
			return paidResult(current), nil
		}
		return nil, fmt.Errorf("could not settle invoice %s", invoice.Address)
	}

	invoice.Status = common.InvoiceStatusPaid
	invoice.TxID = txID
	svc.Logger.Infof("Invoice settled: address:%s amount:%d received:%d confirmations:%d tx_id:%s",
		invoice.Address, invoice.AmountRequired, result.Received, result.Confirmations, txID)
	svc.InvoicePubSub.Publish(common.InvoiceStatusPaid, *invoice)

	return result, nil
}

// checkPayment asks the wallet backend what the address received and derives
// the transient settlement status from the invoice's amount and the
// configured confirmation threshold.
func (svc *FacilitatorService) checkPayment(ctx context.Context, invoice *models.Invoice, txID string, txKey string) (*SettlementResult, error) {
	var received, confirmations uint64
	var err error

	switch svc.Config.VerificationMode {
	case common.VerificationModeBalance:
		received, err = svc.Wallet.ReceivedByAddress(ctx, invoice.Address)
		// a wallet-scan balance carries no per-transaction confirmation
		// count, the threshold check is skipped in this mode
		confirmations = svc.Config.ConfirmationsRequired
	default:
		received, confirmations, err = svc.Wallet.CheckTxKey(ctx, txID, txKey, invoice.Address)
	}
	if err != nil {
		return nil, err
	}

	result := &SettlementResult{
		Received:      received,
		Confirmations: confirmations,
		TxID:          txID,
	}
	switch {
	case received < uint64(invoice.AmountRequired):
		result.Status = SettlementStatusInsufficient
	case confirmations < svc.Config.ConfirmationsRequired:
		result.Status = SettlementStatusWaitingConfirmations
	default:
		result.Status = SettlementStatusPaid
	}
	return result, nil
}

func paidResult(invoice *models.Invoice) *SettlementResult {
	return &SettlementResult{
		Status:   SettlementStatusPaid,
		Received: uint64(invoice.AmountRequired),
		TxID:     invoice.TxID,
	}
}
